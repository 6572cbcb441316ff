package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

const (
	jwtClaimUserID = "user_id"
	jwtClaimName   = "name"
)

// GetUserIDFromContext returns the id of the authenticated user. Numeric ids are
// rendered in decimal so the engine can treat every id as an opaque string.
func GetUserIDFromContext(ctx context.Context) (string, error) {
	claims, ok := ctx.Value(userContextKey).(jwt.MapClaims)
	if !ok {
		return "", errors.New("user claims not found in context or invalid type")
	}
	return userIDFromClaims(claims)
}

// GetDisplayNameFromContext returns the optional name claim, or "".
func GetDisplayNameFromContext(ctx context.Context) string {
	claims, ok := ctx.Value(userContextKey).(jwt.MapClaims)
	if !ok {
		return ""
	}
	name, _ := claims[jwtClaimName].(string)
	return strings.TrimSpace(name)
}

// WithUserID returns a context carrying claims for userID. Used by tests and
// internal callers that act on behalf of a user.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userContextKey, jwt.MapClaims{jwtClaimUserID: userID})
}

func userIDFromClaims(claims jwt.MapClaims) (string, error) {
	raw, ok := claims[jwtClaimUserID]
	if !ok {
		return "", fmt.Errorf("missing '%s' claim in token", jwtClaimUserID)
	}

	switch v := raw.(type) {
	case string:
		if id := strings.TrimSpace(v); id != "" {
			return id, nil
		}
		return "", fmt.Errorf("empty '%s' claim in token", jwtClaimUserID)
	case float64:
		if v != float64(int64(v)) || v <= 0 {
			return "", fmt.Errorf("invalid user ID value in '%s' claim: %v", jwtClaimUserID, v)
		}
		return strconv.FormatInt(int64(v), 10), nil
	}
	return "", fmt.Errorf("invalid type for '%s' claim: expected string or number, got %T", jwtClaimUserID, raw)
}
