package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/Dosada05/streakmatch/models"
	"github.com/lib/pq"
)

var ErrOutcomeNotFound = errors.New("match outcome not found")

// ScoreRepository stores per-user streak counters and the outcome outbox.
type ScoreRepository interface {
	// GetProfile returns the stored profile, or a zero profile for unknown users.
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	// UpsertProfile writes display name and postal code only and loads the
	// current counters back into profile.
	UpsertProfile(ctx context.Context, profile *models.UserProfile) error
	// ApplyScores applies one result to every winner and loser atomically.
	ApplyScores(ctx context.Context, winnerIDs, loserIDs []string, isDraw bool) error
	// ApplyOutcome applies a recorded outcome and marks it applied in the same
	// transaction. Applying an already applied outcome is a no-op.
	ApplyOutcome(ctx context.Context, outcomeID int64) error
	ListPendingOutcomes(ctx context.Context, limit int) ([]*models.MatchOutcome, error)
	RecordOutcomeFailure(ctx context.Context, outcomeID int64, cause error) error
}

type postgresScoreRepository struct {
	db *sql.DB
}

func NewPostgresScoreRepository(db *sql.DB) ScoreRepository {
	return &postgresScoreRepository{db: db}
}

func (r *postgresScoreRepository) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	query := `
		SELECT user_id, display_name, postal_code, current_streak, longest_streak, wins, losses, updated_at
		FROM profiles
		WHERE user_id = $1`
	p, err := scanProfile(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.UserProfile{UserID: userID}, nil
		}
		return nil, fmt.Errorf("failed to scan profile %s: %w", userID, err)
	}
	return p, nil
}

func (r *postgresScoreRepository) UpsertProfile(ctx context.Context, profile *models.UserProfile) error {
	query := `
		INSERT INTO profiles (user_id, display_name, postal_code, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id) DO UPDATE
		SET display_name = EXCLUDED.display_name, postal_code = EXCLUDED.postal_code, updated_at = now()
		RETURNING current_streak, longest_streak, wins, losses, updated_at`
	err := r.db.QueryRowContext(ctx, query, profile.UserID, profile.DisplayName, profile.PostalCode).
		Scan(&profile.CurrentStreak, &profile.LongestStreak, &profile.Wins, &profile.Losses, &profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert profile %s: %w", profile.UserID, err)
	}
	return nil
}

func (r *postgresScoreRepository) ApplyScores(ctx context.Context, winnerIDs, loserIDs []string, isDraw bool) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return applyScores(ctx, tx, winnerIDs, loserIDs, isDraw)
	})
}

func (r *postgresScoreRepository) ApplyOutcome(ctx context.Context, outcomeID int64) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			SELECT id, match_id, winner_ids, loser_ids, is_draw, reason, created_at, applied_at, attempts, last_error
			FROM match_outcomes
			WHERE id = $1
			FOR UPDATE`
		outcome, err := scanOutcome(tx.QueryRowContext(ctx, query, outcomeID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrOutcomeNotFound
			}
			return fmt.Errorf("failed to lock outcome %d: %w", outcomeID, err)
		}
		if outcome.Applied() {
			return nil
		}
		if err := applyScores(ctx, tx, outcome.WinnerIDs, outcome.LoserIDs, outcome.IsDraw); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE match_outcomes SET applied_at = now(), attempts = attempts + 1, last_error = NULL WHERE id = $1`,
			outcomeID)
		if err != nil {
			return fmt.Errorf("failed to mark outcome %d applied: %w", outcomeID, err)
		}
		return nil
	})
}

func (r *postgresScoreRepository) ListPendingOutcomes(ctx context.Context, limit int) ([]*models.MatchOutcome, error) {
	query := `
		SELECT id, match_id, winner_ids, loser_ids, is_draw, reason, created_at, applied_at, attempts, last_error
		FROM match_outcomes
		WHERE applied_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := make([]*models.MatchOutcome, 0)
	for rows.Next() {
		o, scanErr := scanOutcome(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan outcome row: %w", scanErr)
		}
		outcomes = append(outcomes, o)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during outcome rows iteration: %w", err)
	}
	return outcomes, nil
}

func (r *postgresScoreRepository) RecordOutcomeFailure(ctx context.Context, outcomeID int64, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE match_outcomes SET attempts = attempts + 1, last_error = $2 WHERE id = $1 AND applied_at IS NULL`,
		outcomeID, msg)
	if err != nil {
		return fmt.Errorf("failed to record failure for outcome %d: %w", outcomeID, err)
	}
	return checkAffectedRows(result, ErrOutcomeNotFound)
}

// applyScores locks every affected profile (creating missing ones) and writes the
// new counters computed by the models.UserScore rules.
func applyScores(ctx context.Context, exec SQLExecutor, winnerIDs, loserIDs []string, isDraw bool) error {
	changes := ScoreChanges(winnerIDs, loserIDs, isDraw)

	ids := make([]string, 0, len(changes))
	for id := range changes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if _, err := exec.ExecContext(ctx,
			`INSERT INTO profiles (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, id); err != nil {
			return fmt.Errorf("failed to ensure profile %s: %w", id, err)
		}
		var s models.UserScore
		err := exec.QueryRowContext(ctx,
			`SELECT current_streak, longest_streak, wins, losses FROM profiles WHERE user_id = $1 FOR UPDATE`, id,
		).Scan(&s.CurrentStreak, &s.LongestStreak, &s.Wins, &s.Losses)
		if err != nil {
			return fmt.Errorf("failed to lock profile %s: %w", id, err)
		}
		next := changes[id](s)
		_, err = exec.ExecContext(ctx, `
			UPDATE profiles
			SET current_streak = $2, longest_streak = $3, wins = $4, losses = $5, updated_at = now()
			WHERE user_id = $1`,
			id, next.CurrentStreak, next.LongestStreak, next.Wins, next.Losses)
		if err != nil {
			return fmt.Errorf("failed to update profile %s: %w", id, err)
		}
	}
	return nil
}

func insertOutcome(ctx context.Context, exec SQLExecutor, o *models.MatchOutcome) error {
	if o.Reason == "" {
		o.Reason = models.OutcomeResult
	}
	query := `
		INSERT INTO match_outcomes (match_id, winner_ids, loser_ids, is_draw, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, created_at`
	err := exec.QueryRowContext(ctx, query,
		o.MatchID, pq.Array(o.WinnerIDs), pq.Array(o.LoserIDs), o.IsDraw, string(o.Reason),
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "match_outcomes_match_id_key") {
			return fmt.Errorf("outcome for match %s already recorded: %w", o.MatchID, err)
		}
		return fmt.Errorf("failed to insert outcome for match %s: %w", o.MatchID, err)
	}
	return nil
}

func scanProfile(row interface{ Scan(...interface{}) error }) (*models.UserProfile, error) {
	var p models.UserProfile
	err := row.Scan(&p.UserID, &p.DisplayName, &p.PostalCode,
		&p.CurrentStreak, &p.LongestStreak, &p.Wins, &p.Losses, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanOutcome(row interface{ Scan(...interface{}) error }) (*models.MatchOutcome, error) {
	var (
		o      models.MatchOutcome
		reason string
	)
	err := row.Scan(&o.ID, &o.MatchID, pq.Array(&o.WinnerIDs), pq.Array(&o.LoserIDs), &o.IsDraw,
		&reason, &o.CreatedAt, &o.AppliedAt, &o.Attempts, &o.LastError)
	if err != nil {
		return nil, err
	}
	o.Reason = models.OutcomeReason(reason)
	return &o, nil
}

// ScoreChanges maps every affected user to the rule that updates their score.
func ScoreChanges(winnerIDs, loserIDs []string, isDraw bool) map[string]func(models.UserScore) models.UserScore {
	changes := make(map[string]func(models.UserScore) models.UserScore, len(winnerIDs)+len(loserIDs))
	for _, id := range winnerIDs {
		if isDraw {
			changes[id] = models.UserScore.Drew
		} else {
			changes[id] = models.UserScore.Won
		}
	}
	for _, id := range loserIDs {
		if isDraw {
			changes[id] = models.UserScore.Drew
		} else {
			changes[id] = models.UserScore.Lost
		}
	}
	return changes
}
