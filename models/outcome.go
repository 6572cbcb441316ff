package models

import (
	"time"

	"github.com/google/uuid"
)

type OutcomeReason string

const (
	OutcomeForfeit OutcomeReason = "forfeit"
	OutcomeResult  OutcomeReason = "result"
	OutcomeAdmin   OutcomeReason = "admin"
)

// MatchOutcome is the score effect of a completed match. It is stored together
// with the completion and applied to profiles exactly once.
type MatchOutcome struct {
	ID        int64         `json:"id"`
	MatchID   uuid.UUID     `json:"match_id"`
	WinnerIDs []string      `json:"winner_ids"`
	LoserIDs  []string      `json:"loser_ids"`
	IsDraw    bool          `json:"is_draw"`
	Reason    OutcomeReason `json:"reason"`
	CreatedAt time.Time     `json:"created_at"`
	AppliedAt *time.Time    `json:"applied_at,omitempty"`
	Attempts  int           `json:"attempts"`
	LastError *string       `json:"last_error,omitempty"`
}

func (o *MatchOutcome) Applied() bool {
	return o.AppliedAt != nil
}

// Completion describes how a match reached the completed status.
type Completion struct {
	WinnerSide *TeamSide
	IsDraw     bool
}
