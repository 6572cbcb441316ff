package models

import (
	"time"

	"github.com/google/uuid"
)

// Participant is a roster entry of a team match.
type Participant struct {
	MatchID             uuid.UUID  `json:"match_id"`
	UserID              string     `json:"user_id"`
	DisplayName         string     `json:"display_name"`
	Team                TeamSide   `json:"team"`
	ResultSubmitted     bool       `json:"result_submitted"`
	SubmittedWinnerSide *TeamSide  `json:"submitted_winner_side,omitempty"`
	ProofReference      *string    `json:"proof_reference,omitempty"`
	SubmittedAt         *time.Time `json:"submitted_at,omitempty"`
	JoinedAt            time.Time  `json:"joined_at"`
}

func (p Participant) clone() Participant {
	c := p
	if p.SubmittedWinnerSide != nil {
		side := *p.SubmittedWinnerSide
		c.SubmittedWinnerSide = &side
	}
	c.ProofReference = cloneString(p.ProofReference)
	if p.SubmittedAt != nil {
		at := *p.SubmittedAt
		c.SubmittedAt = &at
	}
	return c
}

// TeamMember names a user placed on the host side when a team match is created.
type TeamMember struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}
