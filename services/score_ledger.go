package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dosada05/streakmatch/metrics"
	"github.com/Dosada05/streakmatch/models"
	"github.com/Dosada05/streakmatch/repositories"
)

// ScoreLedger owns every change to users' streak counters.
type ScoreLedger interface {
	// ApplyOutcome applies a single decisive result or draw between two users.
	ApplyOutcome(ctx context.Context, winnerID, loserID string, isDraw bool) error
	// Apply applies a recorded match outcome. It retries a bounded number of times
	// and returns ErrOutcomePending if the outcome is still unapplied afterwards.
	Apply(ctx context.Context, outcome *models.MatchOutcome) error
	// RetryPending makes one attempt on up to limit unapplied outcomes and reports
	// how many were applied.
	RetryPending(ctx context.Context, limit int) (int, error)
	GetScore(ctx context.Context, userID string) (*models.UserProfile, error)
	UpdateProfile(ctx context.Context, userID string, input ProfileInput) (*models.UserProfile, error)
}

type ProfileInput struct {
	DisplayName string `json:"display_name"`
	PostalCode  string `json:"postal_code"`
}

type scoreLedger struct {
	scores   repositories.ScoreRepository
	cache    *ReadThroughCache
	attempts int
	logger   *slog.Logger
	metrics  metrics.MatchMetrics
}

func NewScoreLedger(
	scores repositories.ScoreRepository,
	cache *ReadThroughCache,
	attempts int,
	logger *slog.Logger,
	m metrics.MatchMetrics,
) ScoreLedger {
	if attempts < 1 {
		attempts = 1
	}
	return &scoreLedger{
		scores:   scores,
		cache:    cache,
		attempts: attempts,
		logger:   logger,
		metrics:  m,
	}
}

func (l *scoreLedger) ApplyOutcome(ctx context.Context, winnerID, loserID string, isDraw bool) error {
	var v validator
	v.check(strings.TrimSpace(winnerID) != "", "winner_id", "must be provided")
	v.check(strings.TrimSpace(loserID) != "", "loser_id", "must be provided")
	v.check(winnerID != loserID, "loser_id", "must differ from winner_id")
	if err := v.err(); err != nil {
		return err
	}

	if err := l.scores.ApplyScores(ctx, []string{winnerID}, []string{loserID}, isDraw); err != nil {
		return fmt.Errorf("failed to apply outcome %s vs %s: %w", winnerID, loserID, err)
	}
	l.forget(winnerID, loserID)
	return nil
}

func (l *scoreLedger) Apply(ctx context.Context, outcome *models.MatchOutcome) error {
	var lastErr error
	for attempt := 1; attempt <= l.attempts; attempt++ {
		lastErr = l.applyOnce(ctx, outcome)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, repositories.ErrOutcomeNotFound) || ctx.Err() != nil {
			break
		}
		l.logger.Warn("applying match outcome failed",
			slog.Int64("outcome_id", outcome.ID),
			slog.String("match_id", outcome.MatchID.String()),
			slog.Int("attempt", attempt),
			slog.Any("error", lastErr))
	}
	if errors.Is(lastErr, repositories.ErrOutcomeNotFound) {
		return fmt.Errorf("outcome %d: %w", outcome.ID, lastErr)
	}

	l.metrics.AddOutcomeApplyFailure("immediate")
	l.logger.Error("match outcome left pending for retry",
		slog.Int64("outcome_id", outcome.ID),
		slog.String("match_id", outcome.MatchID.String()),
		slog.Any("error", lastErr))
	return fmt.Errorf("%w: outcome %d: %v", ErrOutcomePending, outcome.ID, lastErr)
}

func (l *scoreLedger) applyOnce(ctx context.Context, outcome *models.MatchOutcome) error {
	err := l.scores.ApplyOutcome(ctx, outcome.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrOutcomeNotFound) {
			return err
		}
		if recErr := l.scores.RecordOutcomeFailure(ctx, outcome.ID, err); recErr != nil && !errors.Is(recErr, repositories.ErrOutcomeNotFound) {
			l.logger.Error("failed to record outcome failure", slog.Int64("outcome_id", outcome.ID), slog.Any("error", recErr))
		}
		return err
	}
	l.forget(outcome.WinnerIDs...)
	l.forget(outcome.LoserIDs...)
	return nil
}

func (l *scoreLedger) RetryPending(ctx context.Context, limit int) (int, error) {
	pending, err := l.scores.ListPendingOutcomes(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending outcomes: %w", err)
	}
	l.metrics.SetPendingOutcomes(len(pending))

	applied := 0
	for _, outcome := range pending {
		if ctx.Err() != nil {
			return applied, ctx.Err()
		}
		if err := l.applyOnce(ctx, outcome); err != nil {
			l.metrics.AddOutcomeApplyFailure("retry")
			l.logger.Error("retrying match outcome failed",
				slog.Int64("outcome_id", outcome.ID),
				slog.String("match_id", outcome.MatchID.String()),
				slog.Int("attempts", outcome.Attempts+1),
				slog.Any("error", err))
			continue
		}
		applied++
		l.logger.Info("pending match outcome applied",
			slog.Int64("outcome_id", outcome.ID),
			slog.String("match_id", outcome.MatchID.String()))
	}
	return applied, nil
}

func (l *scoreLedger) GetScore(ctx context.Context, userID string) (*models.UserProfile, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	profile, err := cached(l.cache, scoreCacheKey(userID), func() (models.UserProfile, error) {
		p, err := l.scores.GetProfile(ctx, userID)
		if err != nil {
			return models.UserProfile{}, fmt.Errorf("failed to load profile %s: %w", userID, err)
		}
		return *p, nil
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (l *scoreLedger) UpdateProfile(ctx context.Context, userID string, input ProfileInput) (*models.UserProfile, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	displayName := strings.TrimSpace(input.DisplayName)
	postalCode := models.NormalizePostalCode(input.PostalCode)

	var v validator
	v.check(displayName != "", "display_name", "must be provided")
	v.check(len(displayName) <= 100, "display_name", "must not be more than 100 characters long")
	v.check(len(postalCode) <= 16, "postal_code", "must not be more than 16 characters long")
	if err := v.err(); err != nil {
		return nil, err
	}

	profile := &models.UserProfile{UserID: userID, DisplayName: displayName, PostalCode: postalCode}
	if err := l.scores.UpsertProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to save profile %s: %w", userID, err)
	}
	l.forget(userID)
	return profile, nil
}

func (l *scoreLedger) forget(userIDs ...string) {
	for _, id := range userIDs {
		l.cache.Invalidate(scoreCacheKey(id))
	}
}

func scoreCacheKey(userID string) string {
	return "score:" + userID
}
