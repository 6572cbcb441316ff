package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/streakmatch/metrics"
	"github.com/Dosada05/streakmatch/models"
	"github.com/Dosada05/streakmatch/repositories"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	msgMatchUnavailable = "This match is no longer available."
	msgScoreMismatch    = "Your current streak does not match the score this match requires."
	msgAlreadyInMatch   = "You are already in an active match."
	msgAlreadyJoined    = "You are already part of this match."
)

// JoinConflict describes the active match that blocks a join and what resolving
// it would take.
type JoinConflict struct {
	MatchID uuid.UUID   `json:"match_id"`
	Role    models.Role `json:"role"`
	// ShouldRemoveFromCurrent is true when leaving the current match deletes it or
	// is a free departure, false when leaving means forfeiting.
	ShouldRemoveFromCurrent bool `json:"should_remove_from_current"`
}

type JoinResult struct {
	Success  bool             `json:"success"`
	Message  string           `json:"message"`
	MatchID  uuid.UUID        `json:"match_id"`
	Side     *models.TeamSide `json:"side,omitempty"`
	Conflict *JoinConflict    `json:"conflict,omitempty"`
}

type Matchmaker interface {
	// Join seats userID in the match. Refusals a user can act on are returned as
	// a JoinResult with Success false; only store failures are errors.
	Join(ctx context.Context, matchID uuid.UUID, userID, displayName string) (*JoinResult, error)
}

type matchmaker struct {
	matches       repositories.MatchRepository
	scores        repositories.ScoreRepository
	active        ActiveMatchFinder
	clock         clockwork.Clock
	forfeitWindow time.Duration
	notifier      Notifier
	logger        *slog.Logger
	metrics       metrics.MatchMetrics
}

func NewMatchmaker(
	matches repositories.MatchRepository,
	scores repositories.ScoreRepository,
	active ActiveMatchFinder,
	clock clockwork.Clock,
	forfeitWindow time.Duration,
	notifier Notifier,
	logger *slog.Logger,
	m metrics.MatchMetrics,
) Matchmaker {
	return &matchmaker{
		matches:       matches,
		scores:        scores,
		active:        active,
		clock:         clock,
		forfeitWindow: forfeitWindow,
		notifier:      notifier,
		logger:        logger,
		metrics:       m,
	}
}

func (mm *matchmaker) Join(ctx context.Context, matchID uuid.UUID, userID, displayName string) (*JoinResult, error) {
	start := mm.clock.Now()
	defer func() {
		mm.metrics.AddOperationElapsedTimeMs("join", mm.clock.Since(start))
	}()

	if userID == "" {
		return nil, ErrNotAuthenticated
	}

	current, err := mm.active.GetActiveMatch(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current != nil {
		mm.metrics.AddJoinResult("exclusivity_conflict")
		return mm.refuseBusy(current, matchID, userID), nil
	}

	match, err := mm.matches.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to load match %s: %w", matchID, err)
	}

	profile, err := mm.scores.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile %s: %w", userID, err)
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = profile.DisplayName
	}
	if displayName == "" {
		return nil, &ValidationError{Fields: map[string]string{"display_name": "must be provided"}}
	}
	if profile.CurrentStreak != match.RequiredScore {
		mm.metrics.AddJoinResult("score_mismatch")
		return &JoinResult{Message: msgScoreMismatch, MatchID: matchID}, nil
	}

	var side *models.TeamSide
	switch match.Type() {
	case models.MatchTypeTeam:
		var s models.TeamSide
		s, err = mm.matches.JoinTeam(ctx, matchID, userID, displayName)
		side = &s
	default:
		err = mm.matches.JoinPairwise(ctx, matchID, userID, displayName)
	}
	if err != nil {
		return mm.joinFailed(ctx, matchID, userID, err)
	}

	mm.metrics.AddJoinResult("joined")
	mm.logger.Info("user joined match",
		slog.String("match_id", matchID.String()),
		slog.String("user_id", userID),
		slog.String("match_type", string(match.Type())))

	if joined, getErr := mm.matches.GetByID(ctx, matchID); getErr == nil {
		mm.notifier.Publish(EventMatchJoined, joined, matchRooms(joined)...)
	} else {
		mm.logger.Warn("failed to reload joined match", slog.String("match_id", matchID.String()), slog.Any("error", getErr))
	}

	return &JoinResult{
		Success: true,
		Message: fmt.Sprintf("You joined %s.", matchLabel(match)),
		MatchID: matchID,
		Side:    side,
	}, nil
}

func (mm *matchmaker) joinFailed(ctx context.Context, matchID uuid.UUID, userID string, err error) (*JoinResult, error) {
	switch {
	case errors.Is(err, repositories.ErrMatchNotJoinable):
		mm.metrics.AddJoinResult("not_joinable")
		return &JoinResult{Message: msgMatchUnavailable, MatchID: matchID}, nil
	case errors.Is(err, repositories.ErrMatchNotFound):
		mm.metrics.AddJoinResult("not_joinable")
		return &JoinResult{Message: msgMatchUnavailable, MatchID: matchID}, nil
	case errors.Is(err, repositories.ErrExclusivityConflict):
		// The user entered another match between the check above and the join.
		mm.metrics.AddJoinResult("exclusivity_conflict")
		current, getErr := mm.active.GetActiveMatch(ctx, userID)
		if getErr != nil || current == nil {
			return &JoinResult{Message: msgAlreadyInMatch, MatchID: matchID}, nil
		}
		return mm.refuseBusy(current, matchID, userID), nil
	}
	return nil, fmt.Errorf("failed to join match %s: %w", matchID, err)
}

// refuseBusy explains the refusal in terms of what leaving current would do.
func (mm *matchmaker) refuseBusy(current *models.Match, target uuid.UUID, userID string) *JoinResult {
	if current.ID == target {
		return &JoinResult{Message: msgAlreadyJoined, MatchID: target}
	}

	d, err := decideLeave(current, userID, mm.clock.Now(), mm.forfeitWindow)
	if err != nil {
		return &JoinResult{Message: msgAlreadyInMatch, MatchID: target}
	}

	var msg string
	switch {
	case d.role == models.RoleHost && !current.HasOpponent():
		msg = "You are hosting a match that nobody has joined yet. Withdraw it to join another one."
	case d.role == models.RoleHost && d.action == leaveForfeit:
		msg = "You are hosting a match with an opponent that starts soon. Resolve it before joining another one; leaving now counts as a forfeit."
	case d.role == models.RoleHost:
		msg = "You are hosting a match with an opponent. Cancel it before joining another one."
	case d.action == leaveForfeit:
		msg = "You are in a match that starts soon. Resolve it before joining another one; leaving now counts as a forfeit."
	default:
		msg = "You are already in another match. You can leave it freely before joining this one."
	}

	return &JoinResult{
		Message: msg,
		MatchID: target,
		Conflict: &JoinConflict{
			MatchID:                 current.ID,
			Role:                    d.role,
			ShouldRemoveFromCurrent: d.action != leaveForfeit,
		},
	}
}

func matchLabel(m *models.Match) string {
	if m.Title != nil && strings.TrimSpace(*m.Title) != "" {
		return strings.TrimSpace(*m.Title)
	}
	return fmt.Sprintf("%s's match at %s", m.HostDisplayName, m.Venue)
}
