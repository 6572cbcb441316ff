package services

import (
	"errors"
	"sort"
	"strings"
)

// Errors shared by the services and mapped to HTTP statuses by the handlers.
var (
	ErrMatchNotFound    = errors.New("match not found")
	ErrValidationFailed = errors.New("validation failed")
	ErrNotAuthenticated = errors.New("not authenticated")

	// Authorisation
	ErrNotMatchParty = errors.New("user is not a party to this match")
	ErrNotHost       = errors.New("only the host can perform this action")

	// Business rules
	ErrExclusivityConflict = errors.New("user is already in an active match")
	ErrMatchNotEditable    = errors.New("match can no longer be edited")
	ErrMatchNotActive      = errors.New("match is no longer active")
	ErrNoOpponent          = errors.New("match has no opponent yet")
	ErrMatchChanged        = errors.New("match changed while the request was processed, try again")
	ErrResultWindowClosed  = errors.New("result submission window is closed")
	ErrInvalidFeedMode     = errors.New("invalid feed mode")
	ErrUploadsDisabled     = errors.New("proof uploads are not configured")
	ErrUnsupportedMedia    = errors.New("unsupported proof file type")

	// ErrOutcomePending means a match was completed but its score effect is still
	// waiting for the retry worker.
	ErrOutcomePending = errors.New("match outcome not applied yet")
)

// ValidationError lists the offending input fields. It matches ErrValidationFailed.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

type validator struct {
	fields map[string]string
}

func (v *validator) check(ok bool, field, message string) {
	if ok {
		return
	}
	if v.fields == nil {
		v.fields = make(map[string]string)
	}
	if _, exists := v.fields[field]; !exists {
		v.fields[field] = message
	}
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.fields}
}
