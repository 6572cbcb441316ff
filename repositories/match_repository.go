package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dosada05/streakmatch/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound       = errors.New("match not found")
	ErrMatchNotJoinable    = errors.New("match is no longer joinable")
	ErrMatchNotActive      = errors.New("match is not active")
	ErrExclusivityConflict = errors.New("user is already in an active match")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrParticipantConflict = errors.New("user is already on the roster of this match")
	ErrMatchOpposed        = errors.New("match has an opponent")
	ErrScoreMismatch       = errors.New("current streak does not match the required score")
)

// ScoreMismatchError names the party whose current streak differs from the
// required score of the match being created.
type ScoreMismatchError struct {
	UserID   string
	Streak   int
	Required int
}

func (e *ScoreMismatchError) Error() string {
	return fmt.Sprintf("streak of %s is %d, match requires %d", e.UserID, e.Streak, e.Required)
}

func (e *ScoreMismatchError) Unwrap() error { return ErrScoreMismatch }

// FeedQuery filters joinable matches for a viewer. Nil pointers mean "no filter".
type FeedQuery struct {
	ViewerID          string
	Statuses          []models.MatchStatus
	RequiredScore     *int
	PostalCode        *string
	ExcludePostalCode *string
	Limit             int
}

// MatchRepository is the match store. Every method is a single atomic unit
// against the store; callers never need to compose them into transactions.
type MatchRepository interface {
	// Create inserts the match (and the host-side roster of a team match) after
	// checking that neither the host nor any teammate is in an active match and
	// that every one of them has a current streak equal to the required score.
	Create(ctx context.Context, match *models.Match) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Match, error)
	UpdateDetails(ctx context.Context, match *models.Match) error
	// ListActiveHostedOrFoe returns active matches where the user is host or foe.
	ListActiveHostedOrFoe(ctx context.Context, userID string) ([]*models.Match, error)
	// ListActiveByParticipant returns active team matches with a roster row for the user.
	ListActiveByParticipant(ctx context.Context, userID string) ([]*models.Match, error)
	ListFeed(ctx context.Context, q FeedQuery) ([]*models.Match, error)
	// JoinPairwise seats the user as foe if the slot is still open, the match score
	// equals the user's current streak and the user has no active match.
	JoinPairwise(ctx context.Context, matchID uuid.UUID, userID, displayName string) error
	// JoinTeam adds the user to the side that still has room, under the same checks.
	JoinTeam(ctx context.Context, matchID uuid.UUID, userID, displayName string) (models.TeamSide, error)
	ClearFoe(ctx context.Context, matchID uuid.UUID, foeID string) error
	// RemoveParticipant drops the user from a team roster. With requireUnopposed
	// it fails with ErrMatchOpposed once the foe side has anyone on it.
	RemoveParticipant(ctx context.Context, matchID uuid.UUID, userID string, requireUnopposed bool) error
	// Delete removes the roster and then the match. With requireUnopposed it
	// fails with ErrMatchOpposed if an opponent joined in the meantime.
	Delete(ctx context.Context, matchID uuid.UUID, requireUnopposed bool) error
	// Complete moves an active match to completed and records its outcome.
	Complete(ctx context.Context, matchID uuid.UUID, completion models.Completion, outcome *models.MatchOutcome) error
	SetPairwiseClaim(ctx context.Context, matchID uuid.UUID, side, claim models.TeamSide, proof string) (*models.Match, error)
	SetParticipantClaim(ctx context.Context, matchID uuid.UUID, userID string, claim models.TeamSide, proof string, at time.Time) (*models.Match, error)
	// PromoteStarted marks scheduled matches that have an opponent and whose start
	// time passed as live.
	PromoteStarted(ctx context.Context, now time.Time) (int64, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

const matchColumns = `m.id, m.host_id, m.host_display_name, m.match_type, m.max_participants, m.title,
	m.venue, m.postal_code, m.starts_at, m.required_score, m.status, m.foe_id, m.foe_display_name,
	m.host_claim, m.foe_claim, m.host_proof, m.foe_proof, m.winner_side, m.is_draw, m.created_at, m.updated_at`

const activeForUserCondition = `(
	EXISTS (SELECT 1 FROM matches a WHERE a.status = ANY(%[1]s) AND (a.host_id = %[2]s OR a.foe_id = %[2]s))
	OR EXISTS (SELECT 1 FROM match_participants ap JOIN matches a ON a.id = ap.match_id
	           WHERE ap.user_id = %[2]s AND a.status = ANY(%[1]s))
)`

func (r *postgresMatchRepository) Create(ctx context.Context, match *models.Match) error {
	userIDs := match.PartyIDs()
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockUsers(ctx, tx, userIDs...); err != nil {
			return err
		}
		for _, id := range userIDs {
			busy, err := r.hasActiveMatch(ctx, tx, id)
			if err != nil {
				return err
			}
			if busy {
				return fmt.Errorf("%w: %s", ErrExclusivityConflict, id)
			}
		}
		streaks, err := readStreaks(ctx, tx, userIDs)
		if err != nil {
			return err
		}
		for _, id := range userIDs {
			if streaks[id] != match.RequiredScore {
				return &ScoreMismatchError{UserID: id, Streak: streaks[id], Required: match.RequiredScore}
			}
		}

		var foeID, foeName *string
		if pk, ok := match.Pairwise(); ok {
			foeID, foeName = pk.FoeID, pk.FoeDisplayName
		}
		query := `
			INSERT INTO matches
				(id, host_id, host_display_name, match_type, max_participants, title, venue, postal_code,
				 starts_at, required_score, status, foe_id, foe_display_name, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)`
		_, err = tx.ExecContext(ctx, query,
			match.ID, match.HostID, match.HostDisplayName, match.Type(), match.MaxParticipants, match.Title,
			match.Venue, match.PostalCode, match.StartsAt, match.RequiredScore, match.Status,
			foeID, foeName, match.CreatedAt,
		)
		if err != nil {
			return r.handleMatchError(err)
		}
		match.UpdatedAt = match.CreatedAt

		if tk, ok := match.Team(); ok {
			for i := range tk.Participants {
				p := &tk.Participants[i]
				p.MatchID = match.ID
				if p.JoinedAt.IsZero() {
					p.JoinedAt = match.CreatedAt
				}
				if err := insertParticipant(ctx, tx, p); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// readStreaks share-locks the profiles of userIDs so no score change lands
// before the transaction commits. Users without a profile are absent and read
// as zero.
func readStreaks(ctx context.Context, tx *sql.Tx, userIDs []string) (map[string]int, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT user_id, current_streak FROM profiles WHERE user_id = ANY($1) FOR SHARE`, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to read streaks: %w", err)
	}
	defer rows.Close()

	streaks := make(map[string]int, len(userIDs))
	for rows.Next() {
		var (
			id     string
			streak int
		)
		if err := rows.Scan(&id, &streak); err != nil {
			return nil, fmt.Errorf("failed to scan streak row: %w", err)
		}
		streaks[id] = streak
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during streak rows iteration: %w", err)
	}
	return streaks, nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	return r.getByID(ctx, r.db, id, false)
}

func (r *postgresMatchRepository) getByID(ctx context.Context, exec SQLExecutor, id uuid.UUID, forUpdate bool) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches m WHERE m.id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	match, err := scanMatch(exec.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by id %s: %w", id, err)
	}
	if err := r.attachParticipants(ctx, exec, []*models.Match{match}); err != nil {
		return nil, err
	}
	return match, nil
}

func (r *postgresMatchRepository) UpdateDetails(ctx context.Context, match *models.Match) error {
	query := `
		UPDATE matches
		SET title = $1, venue = $2, postal_code = $3, starts_at = $4, updated_at = now()
		WHERE id = $5
		RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query, match.Title, match.Venue, match.PostalCode, match.StartsAt, match.ID).
		Scan(&match.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrMatchNotFound
		}
		return fmt.Errorf("failed to update match %s: %w", match.ID, err)
	}
	return nil
}

func (r *postgresMatchRepository) ListActiveHostedOrFoe(ctx context.Context, userID string) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + `
		FROM matches m
		WHERE (m.host_id = $1 OR m.foe_id = $1) AND m.status = ANY($2)
		ORDER BY m.created_at DESC`
	return r.list(ctx, query, userID, activeStatusArray())
}

func (r *postgresMatchRepository) ListActiveByParticipant(ctx context.Context, userID string) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + `
		FROM matches m
		JOIN match_participants p ON p.match_id = m.id
		WHERE p.user_id = $1 AND m.match_type = 'team' AND m.status = ANY($2)
		ORDER BY m.created_at DESC`
	return r.list(ctx, query, userID, activeStatusArray())
}

func (r *postgresMatchRepository) ListFeed(ctx context.Context, q FeedQuery) ([]*models.Match, error) {
	var qb strings.Builder
	args := make([]interface{}, 0, 6)

	qb.WriteString(`SELECT ` + matchColumns + `
		FROM matches m
		LEFT JOIN LATERAL (
			SELECT count(*) FILTER (WHERE p.team = 'host') AS host_n,
			       count(*) FILTER (WHERE p.team = 'foe') AS foe_n
			FROM match_participants p
			WHERE p.match_id = m.id
		) c ON true
		WHERE m.status = ANY(`)
	qb.WriteString(placeholder(&args, statusArray(q.Statuses)))
	viewer := placeholder(&args, q.ViewerID)
	qb.WriteString(`) AND m.host_id <> ` + viewer)
	qb.WriteString(` AND m.foe_id IS DISTINCT FROM ` + viewer)
	qb.WriteString(` AND NOT EXISTS (SELECT 1 FROM match_participants vp WHERE vp.match_id = m.id AND vp.user_id = ` + viewer + `)`)
	qb.WriteString(` AND ((m.match_type = 'pairwise' AND m.foe_id IS NULL)
		OR (m.match_type = 'team' AND c.host_n + c.foe_n < m.max_participants AND (c.host_n <> c.foe_n OR c.host_n = 0)))`)

	if q.RequiredScore != nil {
		qb.WriteString(` AND m.required_score = ` + placeholder(&args, *q.RequiredScore))
	}
	if q.PostalCode != nil {
		qb.WriteString(` AND m.postal_code = ` + placeholder(&args, *q.PostalCode))
	}
	if q.ExcludePostalCode != nil {
		qb.WriteString(` AND m.postal_code <> ` + placeholder(&args, *q.ExcludePostalCode))
	}
	qb.WriteString(` ORDER BY m.created_at DESC`)
	if q.Limit > 0 {
		qb.WriteString(` LIMIT ` + placeholder(&args, q.Limit))
	}

	return r.list(ctx, qb.String(), args...)
}

func (r *postgresMatchRepository) JoinPairwise(ctx context.Context, matchID uuid.UUID, userID, displayName string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockUsers(ctx, tx, userID); err != nil {
			return err
		}
		query := fmt.Sprintf(`
			UPDATE matches m
			SET foe_id = $2, foe_display_name = $3, updated_at = now()
			WHERE m.id = $1
			  AND m.match_type = 'pairwise'
			  AND m.status = 'scheduled'
			  AND m.foe_id IS NULL
			  AND m.host_id <> $2
			  AND m.required_score = COALESCE((SELECT current_streak FROM profiles WHERE user_id = $2), 0)
			  AND NOT %s`, fmt.Sprintf(activeForUserCondition, "$4", "$2"))
		result, err := tx.ExecContext(ctx, query, matchID, userID, displayName, activeStatusArray())
		if err != nil {
			return fmt.Errorf("failed to join match %s: %w", matchID, err)
		}
		if err := checkAffectedRows(result, ErrMatchNotJoinable); err != nil {
			if errors.Is(err, ErrMatchNotJoinable) {
				return r.explainJoinFailure(ctx, tx, matchID, userID)
			}
			return err
		}
		return nil
	})
}

func (r *postgresMatchRepository) JoinTeam(ctx context.Context, matchID uuid.UUID, userID, displayName string) (models.TeamSide, error) {
	var side models.TeamSide
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockUsers(ctx, tx, userID); err != nil {
			return err
		}
		match, err := r.getByID(ctx, tx, matchID, true)
		if err != nil {
			return err
		}
		if match.Type() != models.MatchTypeTeam || match.Status != models.StatusScheduled || match.IsParty(userID) {
			return ErrMatchNotJoinable
		}
		busy, err := r.hasActiveMatch(ctx, tx, userID)
		if err != nil {
			return err
		}
		if busy {
			return ErrExclusivityConflict
		}
		var streak int
		err = tx.QueryRowContext(ctx, `SELECT COALESCE((SELECT current_streak FROM profiles WHERE user_id = $1), 0)`, userID).Scan(&streak)
		if err != nil {
			return fmt.Errorf("failed to read streak of user %s: %w", userID, err)
		}
		if streak != match.RequiredScore {
			return ErrMatchNotJoinable
		}
		open, ok := match.OpenSide()
		if !ok {
			return ErrMatchNotJoinable
		}
		p := &models.Participant{MatchID: matchID, UserID: userID, DisplayName: displayName, Team: open}
		if err := insertParticipant(ctx, tx, p); err != nil {
			if errors.Is(err, ErrParticipantConflict) {
				return ErrMatchNotJoinable
			}
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE matches SET updated_at = now() WHERE id = $1`, matchID); err != nil {
			return fmt.Errorf("failed to touch match %s: %w", matchID, err)
		}
		side = open
		return nil
	})
	return side, err
}

func (r *postgresMatchRepository) ClearFoe(ctx context.Context, matchID uuid.UUID, foeID string) error {
	query := `
		UPDATE matches
		SET foe_id = NULL, foe_display_name = NULL, host_claim = NULL, foe_claim = NULL,
		    host_proof = NULL, foe_proof = NULL, updated_at = now()
		WHERE id = $1 AND foe_id = $2 AND status = ANY($3)`
	result, err := r.db.ExecContext(ctx, query, matchID, foeID, activeStatusArray())
	if err != nil {
		return fmt.Errorf("failed to clear foe of match %s: %w", matchID, err)
	}
	return checkAffectedRows(result, ErrMatchNotActive)
}

func (r *postgresMatchRepository) RemoveParticipant(ctx context.Context, matchID uuid.UUID, userID string, requireUnopposed bool) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if requireUnopposed {
			if err := r.ensureUnopposed(ctx, tx, matchID, ErrParticipantNotFound); err != nil {
				return err
			}
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM match_participants WHERE match_id = $1 AND user_id = $2`, matchID, userID)
		if err != nil {
			return fmt.Errorf("failed to remove participant %s from match %s: %w", userID, matchID, err)
		}
		if err := checkAffectedRows(result, ErrParticipantNotFound); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE matches SET updated_at = now() WHERE id = $1`, matchID)
		return err
	})
}

func (r *postgresMatchRepository) Delete(ctx context.Context, matchID uuid.UUID, requireUnopposed bool) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if requireUnopposed {
			if err := r.ensureUnopposed(ctx, tx, matchID, ErrMatchNotFound); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM match_participants WHERE match_id = $1`, matchID); err != nil {
			return fmt.Errorf("failed to delete participants of match %s: %w", matchID, err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM matches WHERE id = $1`, matchID)
		if err != nil {
			return fmt.Errorf("failed to delete match %s: %w", matchID, err)
		}
		return checkAffectedRows(result, ErrMatchNotFound)
	})
}

// ensureUnopposed locks the match row, which both join paths also need, and
// checks that nobody is seated against the host.
func (r *postgresMatchRepository) ensureUnopposed(ctx context.Context, tx *sql.Tx, matchID uuid.UUID, notFound error) error {
	match, err := r.getByID(ctx, tx, matchID, true)
	if err != nil {
		if errors.Is(err, ErrMatchNotFound) {
			return notFound
		}
		return err
	}
	if match.HasOpponent() {
		return ErrMatchOpposed
	}
	return nil
}

func (r *postgresMatchRepository) Complete(ctx context.Context, matchID uuid.UUID, completion models.Completion, outcome *models.MatchOutcome) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			UPDATE matches
			SET status = 'completed', winner_side = $2, is_draw = $3, updated_at = now()
			WHERE id = $1 AND status = ANY($4)`
		result, err := tx.ExecContext(ctx, query, matchID, sideString(completion.WinnerSide), completion.IsDraw, activeStatusArray())
		if err != nil {
			return fmt.Errorf("failed to complete match %s: %w", matchID, err)
		}
		if err := checkAffectedRows(result, ErrMatchNotActive); err != nil {
			return err
		}
		if outcome == nil {
			return nil
		}
		outcome.MatchID = matchID
		return insertOutcome(ctx, tx, outcome)
	})
}

func (r *postgresMatchRepository) SetPairwiseClaim(ctx context.Context, matchID uuid.UUID, side, claim models.TeamSide, proof string) (*models.Match, error) {
	var updated *models.Match
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		match, err := r.getByID(ctx, tx, matchID, true)
		if err != nil {
			return err
		}
		if !match.IsActive() {
			return ErrMatchNotActive
		}
		query := `UPDATE matches SET host_claim = $2, host_proof = $3, updated_at = now() WHERE id = $1`
		if side == models.SideFoe {
			query = `UPDATE matches SET foe_claim = $2, foe_proof = $3, updated_at = now() WHERE id = $1`
		}
		if _, err := tx.ExecContext(ctx, query, matchID, string(claim), proof); err != nil {
			return fmt.Errorf("failed to store claim for match %s: %w", matchID, err)
		}
		updated, err = r.getByID(ctx, tx, matchID, false)
		return err
	})
	return updated, err
}

func (r *postgresMatchRepository) SetParticipantClaim(ctx context.Context, matchID uuid.UUID, userID string, claim models.TeamSide, proof string, at time.Time) (*models.Match, error) {
	var updated *models.Match
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		match, err := r.getByID(ctx, tx, matchID, true)
		if err != nil {
			return err
		}
		if !match.IsActive() {
			return ErrMatchNotActive
		}
		query := `
			UPDATE match_participants
			SET result_submitted = true, submitted_winner_side = $3, proof_reference = $4, submitted_at = $5
			WHERE match_id = $1 AND user_id = $2`
		result, err := tx.ExecContext(ctx, query, matchID, userID, string(claim), proof, at)
		if err != nil {
			return fmt.Errorf("failed to store claim of %s for match %s: %w", userID, matchID, err)
		}
		if err := checkAffectedRows(result, ErrParticipantNotFound); err != nil {
			return err
		}
		updated, err = r.getByID(ctx, tx, matchID, false)
		return err
	})
	return updated, err
}

func (r *postgresMatchRepository) PromoteStarted(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE matches m
		SET status = 'live', updated_at = now()
		WHERE m.status = 'scheduled' AND m.starts_at <= $1
		  AND ((m.match_type = 'pairwise' AND m.foe_id IS NOT NULL)
		    OR (m.match_type = 'team'
		        AND EXISTS (SELECT 1 FROM match_participants p WHERE p.match_id = m.id AND p.team = 'host')
		        AND EXISTS (SELECT 1 FROM match_participants p WHERE p.match_id = m.id AND p.team = 'foe')))`
	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to promote started matches: %w", err)
	}
	return result.RowsAffected()
}

func (r *postgresMatchRepository) hasActiveMatch(ctx context.Context, exec SQLExecutor, userID string) (bool, error) {
	query := `SELECT ` + fmt.Sprintf(activeForUserCondition, "$2", "$1")
	var busy bool
	if err := exec.QueryRowContext(ctx, query, userID, activeStatusArray()).Scan(&busy); err != nil {
		return false, fmt.Errorf("failed to check active matches of user %s: %w", userID, err)
	}
	return busy, nil
}

// explainJoinFailure tells an exclusivity conflict apart from a lost slot after a
// conditional join matched no rows.
func (r *postgresMatchRepository) explainJoinFailure(ctx context.Context, exec SQLExecutor, matchID uuid.UUID, userID string) error {
	var exists bool
	if err := exec.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM matches WHERE id = $1)`, matchID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check match %s: %w", matchID, err)
	}
	if !exists {
		return ErrMatchNotFound
	}
	busy, err := r.hasActiveMatch(ctx, exec, userID)
	if err != nil {
		return err
	}
	if busy {
		return ErrExclusivityConflict
	}
	return ErrMatchNotJoinable
}

func (r *postgresMatchRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Match, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		match, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, match)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	if err := r.attachParticipants(ctx, r.db, matches); err != nil {
		return nil, err
	}
	return matches, nil
}

func (r *postgresMatchRepository) attachParticipants(ctx context.Context, exec SQLExecutor, matches []*models.Match) error {
	byID := make(map[uuid.UUID]*models.TeamKind)
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		if tk, ok := m.Team(); ok {
			byID[m.ID] = tk
			ids = append(ids, m.ID.String())
		}
	}
	if len(ids) == 0 {
		return nil
	}

	query := `
		SELECT match_id, user_id, display_name, team, result_submitted, submitted_winner_side,
		       proof_reference, submitted_at, joined_at
		FROM match_participants
		WHERE match_id = ANY($1::uuid[])
		ORDER BY joined_at ASC, user_id ASC`
	rows, err := exec.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.Participant
		var team string
		var winner *string
		if err := rows.Scan(&p.MatchID, &p.UserID, &p.DisplayName, &team, &p.ResultSubmitted, &winner,
			&p.ProofReference, &p.SubmittedAt, &p.JoinedAt); err != nil {
			return fmt.Errorf("failed to scan participant row: %w", err)
		}
		p.Team = models.TeamSide(team)
		p.SubmittedWinnerSide = nullableSide(winner)
		if tk := byID[p.MatchID]; tk != nil {
			tk.Participants = append(tk.Participants, p)
		}
	}
	return rows.Err()
}

// insertParticipant stamps joined_at with the database clock unless p already
// carries a join time.
func insertParticipant(ctx context.Context, exec SQLExecutor, p *models.Participant) error {
	var joinedAt interface{}
	if !p.JoinedAt.IsZero() {
		joinedAt = p.JoinedAt
	}
	query := `
		INSERT INTO match_participants (match_id, user_id, display_name, team, joined_at)
		VALUES ($1, $2, $3, $4, COALESCE($5::timestamptz, now()))
		RETURNING joined_at`
	err := exec.QueryRowContext(ctx, query, p.MatchID, p.UserID, p.DisplayName, string(p.Team), joinedAt).
		Scan(&p.JoinedAt)
	if err != nil {
		if isUniqueViolation(err, "match_participants_pkey") {
			return ErrParticipantConflict
		}
		return fmt.Errorf("failed to insert participant %s: %w", p.UserID, err)
	}
	return nil
}

func scanMatch(row interface{ Scan(...interface{}) error }) (*models.Match, error) {
	var (
		m                           models.Match
		matchType, status           string
		foeID, foeName              *string
		hostClaim, foeClaim, winner *string
		hostProof, foeProof         *string
	)
	err := row.Scan(
		&m.ID, &m.HostID, &m.HostDisplayName, &matchType, &m.MaxParticipants, &m.Title,
		&m.Venue, &m.PostalCode, &m.StartsAt, &m.RequiredScore, &status, &foeID, &foeName,
		&hostClaim, &foeClaim, &hostProof, &foeProof, &winner, &m.IsDraw, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Status = models.MatchStatus(status)
	m.WinnerSide = nullableSide(winner)
	switch models.MatchType(matchType) {
	case models.MatchTypeTeam:
		m.Kind = &models.TeamKind{Participants: []models.Participant{}}
	default:
		m.Kind = &models.PairwiseKind{
			FoeID:          foeID,
			FoeDisplayName: foeName,
			HostClaim:      nullableSide(hostClaim),
			FoeClaim:       nullableSide(foeClaim),
			HostProof:      hostProof,
			FoeProof:       foeProof,
		}
	}
	return &m, nil
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Constraint {
		case "matches_pkey":
			return fmt.Errorf("match id conflict: %w", err)
		case "matches_match_type_check", "matches_status_check":
			return fmt.Errorf("match violates a check constraint: %w", err)
		}
	}
	return fmt.Errorf("failed to create match: %w", err)
}
