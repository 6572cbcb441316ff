package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Dosada05/streakmatch/models"
	"github.com/lib/pq"
)

// SQLExecutor is satisfied by both *sql.DB and *sql.Tx.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func checkAffectedRows(result sql.Result, notFoundError error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return notFoundError
	}
	return nil
}

// withTx runs fn inside a transaction, committing when fn returns nil.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.Error("transaction rollback failed", slog.Any("error", rbErr), slog.Any("cause", err))
			}
		} else if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()
	return fn(tx)
}

// lockUsers takes transaction-scoped advisory locks for every user, in a stable
// order so two transactions locking overlapping sets cannot deadlock.
func lockUsers(ctx context.Context, exec SQLExecutor, userIDs ...string) error {
	ids := append([]string(nil), userIDs...)
	sort.Strings(ids)
	for i, id := range ids {
		if i > 0 && ids[i-1] == id {
			continue
		}
		if _, err := exec.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext('user:' || $1))`, id); err != nil {
			return fmt.Errorf("failed to lock user %s: %w", id, err)
		}
	}
	return nil
}

// activeStatusArray is the active status set as a Postgres text[] argument.
func activeStatusArray() interface{} {
	return statusArray(models.ActiveStatuses)
}

func statusArray(statuses []models.MatchStatus) interface{} {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	return pq.Array(values)
}

func isUniqueViolation(err error, constraint string) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505" && (constraint == "" || pqErr.Constraint == constraint)
}

func placeholder(args *[]interface{}, value interface{}) string {
	*args = append(*args, value)
	return fmt.Sprintf("$%d", len(*args))
}

func nullableSide(s *string) *models.TeamSide {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	side := models.TeamSide(*s)
	return &side
}

func sideString(s *models.TeamSide) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}
