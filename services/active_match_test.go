package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Dosada05/streakmatch/models"
	"github.com/Dosada05/streakmatch/repositories"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listingRepo serves fixed active-match lists and nothing else.
type listingRepo struct {
	repositories.MatchRepository
	hosted, rostered []*models.Match
	err              error
}

func (r *listingRepo) ListActiveHostedOrFoe(context.Context, string) ([]*models.Match, error) {
	return r.hosted, r.err
}

func (r *listingRepo) ListActiveByParticipant(context.Context, string) ([]*models.Match, error) {
	return r.rostered, nil
}

func activeAt(created time.Time) *models.Match {
	return &models.Match{ID: uuid.New(), Status: models.StatusScheduled, CreatedAt: created, Kind: &models.PairwiseKind{}}
}

func TestActiveMatchNone(t *testing.T) {
	env := newTestEnv(t)
	got, err := env.active.GetActiveMatch(env.ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = env.active.GetActiveMatch(env.ctx, "")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestActiveMatchFindsEveryRole(t *testing.T) {
	env := newTestEnv(t)
	pw := env.createPairwise(t, "alice", 72*time.Hour)
	require.True(t, env.join(t, pw, "bob").Success)
	team := env.createTeam(t, "host", 72*time.Hour, "mate")

	for user, want := range map[string]uuid.UUID{"alice": pw.ID, "bob": pw.ID, "host": team.ID, "mate": team.ID} {
		got, err := env.active.GetActiveMatch(env.ctx, user)
		require.NoError(t, err)
		require.NotNil(t, got, user)
		assert.Equal(t, want, got.ID, user)
	}
}

func TestActiveMatchIgnoresCompleted(t *testing.T) {
	env := newTestEnv(t)
	m := env.createPairwise(t, "alice", time.Hour)
	require.True(t, env.join(t, m, "bob").Success)
	env.advance(2 * time.Hour)
	_, err := env.results.SubmitResult(env.ctx, m.ID, "alice", true, proofURL)
	require.NoError(t, err)
	_, err = env.results.SubmitResult(env.ctx, m.ID, "bob", false, proofURL)
	require.NoError(t, err)

	got, err := env.active.GetActiveMatch(env.ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestActiveMatchDuplicatesPickNewestAndWarn(t *testing.T) {
	env := newTestEnv(t)
	older := activeAt(testNow.Add(-time.Hour))
	newer := activeAt(testNow)
	repo := &listingRepo{hosted: []*models.Match{older}, rostered: []*models.Match{newer, older}}

	finder := NewActiveMatchFinder(repo, env.logger)
	got, err := finder.GetActiveMatch(env.ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)
	assert.Contains(t, env.logs.String(), "data integrity violation")
	assert.Contains(t, env.logs.String(), older.ID.String())
}

func TestActiveMatchQueryError(t *testing.T) {
	env := newTestEnv(t)
	boom := errors.New("connection reset")
	finder := NewActiveMatchFinder(&listingRepo{err: boom}, env.logger)

	_, err := finder.GetActiveMatch(env.ctx, "alice")
	assert.ErrorIs(t, err, boom)
}
