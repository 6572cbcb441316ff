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

type LeaveResult struct {
	Forfeited  bool    `json:"forfeited"`
	Deleted    bool    `json:"deleted"`
	WinnerName *string `json:"winner_name,omitempty"`
	// ScorePending is set when the forfeit was recorded but its score effect is
	// still waiting for the retry worker.
	ScorePending bool `json:"score_pending,omitempty"`
}

type LifecycleService interface {
	Leave(ctx context.Context, matchID uuid.UUID, actingUserID string) (*LeaveResult, error)
}

type lifecycleService struct {
	matches       repositories.MatchRepository
	ledger        ScoreLedger
	clock         clockwork.Clock
	forfeitWindow time.Duration
	notifier      Notifier
	logger        *slog.Logger
	metrics       metrics.MatchMetrics
}

func NewLifecycleService(
	matches repositories.MatchRepository,
	ledger ScoreLedger,
	clock clockwork.Clock,
	forfeitWindow time.Duration,
	notifier Notifier,
	logger *slog.Logger,
	m metrics.MatchMetrics,
) LifecycleService {
	return &lifecycleService{
		matches:       matches,
		ledger:        ledger,
		clock:         clock,
		forfeitWindow: forfeitWindow,
		notifier:      notifier,
		logger:        logger,
		metrics:       m,
	}
}

// maxLeaveAttempts bounds how often Leave re-reads a match whose roster
// changed under it.
const maxLeaveAttempts = 3

func (s *lifecycleService) Leave(ctx context.Context, matchID uuid.UUID, actingUserID string) (*LeaveResult, error) {
	start := s.clock.Now()
	defer func() {
		s.metrics.AddOperationElapsedTimeMs("leave", s.clock.Since(start))
	}()

	if actingUserID == "" {
		return nil, ErrNotAuthenticated
	}

	for attempt := 1; ; attempt++ {
		match, err := s.matches.GetByID(ctx, matchID)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return nil, ErrMatchNotFound
			}
			return nil, fmt.Errorf("failed to load match %s: %w", matchID, err)
		}
		if !match.IsActive() {
			return nil, ErrMatchNotActive
		}

		d, err := decideLeave(match, actingUserID, s.clock.Now(), s.forfeitWindow)
		if err != nil {
			return nil, err
		}

		var result *LeaveResult
		switch d.action {
		case leaveDelete:
			result, err = s.delete(ctx, match, d)
		case leaveForfeit:
			result, err = s.forfeit(ctx, match, actingUserID, d)
		default:
			result, err = s.depart(ctx, match, actingUserID, d)
		}
		if errors.Is(err, repositories.ErrMatchOpposed) && attempt < maxLeaveAttempts {
			s.logger.Info("opponent joined while leaving, deciding again",
				slog.String("match_id", matchID.String()),
				slog.String("user_id", actingUserID),
				slog.Int("attempt", attempt))
			continue
		}
		if errors.Is(err, repositories.ErrMatchOpposed) {
			return nil, fmt.Errorf("%w: %v", ErrMatchChanged, err)
		}
		if err != nil {
			return nil, err
		}

		s.metrics.AddLeaveOutcome(d.action.String())
		s.logger.Info("user left match",
			slog.String("match_id", matchID.String()),
			slog.String("user_id", actingUserID),
			slog.String("role", string(d.role)),
			slog.String("outcome", d.action.String()))
		return result, nil
	}
}

func (s *lifecycleService) delete(ctx context.Context, match *models.Match, d leaveDecision) (*LeaveResult, error) {
	if err := s.matches.Delete(ctx, match.ID, d.unopposed); err != nil {
		if errors.Is(err, repositories.ErrMatchOpposed) {
			return nil, err
		}
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to delete match %s: %w", match.ID, err)
	}
	s.notifier.Publish(EventMatchDeleted, match, matchRooms(match)...)
	return &LeaveResult{Deleted: true}, nil
}

func (s *lifecycleService) depart(ctx context.Context, match *models.Match, userID string, d leaveDecision) (*LeaveResult, error) {
	var err error
	if match.Type() == models.MatchTypeTeam {
		err = s.matches.RemoveParticipant(ctx, match.ID, userID, d.unopposed)
	} else {
		err = s.matches.ClearFoe(ctx, match.ID, userID)
	}
	if err != nil {
		if errors.Is(err, repositories.ErrMatchOpposed) {
			return nil, err
		}
		if errors.Is(err, repositories.ErrParticipantNotFound) || errors.Is(err, repositories.ErrMatchNotActive) {
			return nil, ErrMatchNotActive
		}
		return nil, fmt.Errorf("failed to leave match %s: %w", match.ID, err)
	}

	rooms := matchRooms(match)
	if updated, getErr := s.matches.GetByID(ctx, match.ID); getErr == nil {
		s.notifier.Publish(EventMatchLeft, updated, rooms...)
	}
	return &LeaveResult{}, nil
}

func (s *lifecycleService) forfeit(ctx context.Context, match *models.Match, userID string, d leaveDecision) (*LeaveResult, error) {
	winnerSide := forfeitWinnerSide(d)
	winnerIDs := forfeitWinners(match, winnerSide)
	if len(winnerIDs) == 0 {
		return nil, fmt.Errorf("match %s has nobody to award a forfeit to", match.ID)
	}

	outcome := &models.MatchOutcome{
		WinnerIDs: winnerIDs,
		LoserIDs:  []string{userID},
		Reason:    models.OutcomeForfeit,
	}
	completion := models.Completion{WinnerSide: &winnerSide}
	if err := s.matches.Complete(ctx, match.ID, completion, outcome); err != nil {
		if errors.Is(err, repositories.ErrMatchNotActive) {
			return nil, ErrMatchNotActive
		}
		return nil, fmt.Errorf("failed to record forfeit of match %s: %w", match.ID, err)
	}

	result := &LeaveResult{Forfeited: true}
	if name := winnerName(match, winnerSide); name != "" {
		result.WinnerName = &name
	}
	if err := s.ledger.Apply(ctx, outcome); err != nil {
		// The match is completed and the outcome is stored; the worker finishes it.
		result.ScorePending = true
	}

	completed := match.Clone()
	completed.Status = models.StatusCompleted
	completed.WinnerSide = &winnerSide
	s.notifier.Publish(EventMatchForfeited, completed, matchRooms(match)...)
	return result, nil
}

// forfeitWinnerSide is the side opposite the leaver. A host-side teammate
// forfeits for the host side too.
func forfeitWinnerSide(d leaveDecision) models.TeamSide {
	return d.side.Opposite()
}

// forfeitWinners lists who is credited with the win. When the foe side wins a
// team match every foe-side member wins; when the host side wins only the host
// is credited.
func forfeitWinners(match *models.Match, winnerSide models.TeamSide) []string {
	if match.Type() == models.MatchTypeTeam && winnerSide == models.SideHost {
		return []string{match.HostID}
	}
	return match.SideIDs(winnerSide)
}

func winnerName(match *models.Match, winnerSide models.TeamSide) string {
	if winnerSide == models.SideHost {
		return match.HostDisplayName
	}
	switch k := match.Kind.(type) {
	case *models.PairwiseKind:
		if k.FoeDisplayName != nil {
			return *k.FoeDisplayName
		}
	case *models.TeamKind:
		names := make([]string, 0)
		for _, p := range k.Members(models.SideFoe) {
			names = append(names, p.DisplayName)
		}
		return strings.Join(names, ", ")
	}
	return ""
}
