package memory

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

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newPairwise(host string, startsIn time.Duration) *models.Match {
	return &models.Match{
		ID:              uuid.New(),
		HostID:          host,
		HostDisplayName: host,
		MaxParticipants: 2,
		Venue:           "Court",
		PostalCode:      "AB1",
		StartsAt:        t0.Add(startsIn),
		Status:          models.StatusScheduled,
		CreatedAt:       t0,
		Kind:            &models.PairwiseKind{},
	}
}

func TestCreateEnforcesExclusivity(t *testing.T) {
	ctx := context.Background()
	s := NewStoreWithClock(func() time.Time { return t0 })

	m := newPairwise("alice", time.Hour)
	require.NoError(t, s.Create(ctx, m))
	err := s.Create(ctx, newPairwise("alice", 2*time.Hour))
	assert.ErrorIs(t, err, repositories.ErrExclusivityConflict)

	require.NoError(t, s.JoinPairwise(ctx, m.ID, "bob", "Bob"))
	err = s.Create(ctx, newPairwise("bob", 2*time.Hour))
	assert.ErrorIs(t, err, repositories.ErrExclusivityConflict)
}

func TestStoredMatchIsIsolatedFromCaller(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	m := newPairwise("alice", time.Hour)
	require.NoError(t, s.Create(ctx, m))

	m.Venue = "changed"
	got, err := s.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Court", got.Venue)

	got.Venue = "changed again"
	again, err := s.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Court", again.Venue)
}

func TestJoinPairwiseRules(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.SetScore("alice", models.UserScore{CurrentStreak: 2})
	m := newPairwise("alice", time.Hour)
	m.RequiredScore = 2
	require.NoError(t, s.Create(ctx, m))

	assert.ErrorIs(t, s.JoinPairwise(ctx, m.ID, "bob", "Bob"), repositories.ErrMatchNotJoinable, "score mismatch")
	s.SetScore("bob", models.UserScore{CurrentStreak: 2})
	s.SetScore("carol", models.UserScore{CurrentStreak: 2})
	require.NoError(t, s.JoinPairwise(ctx, m.ID, "bob", "Bob"))
	assert.ErrorIs(t, s.JoinPairwise(ctx, m.ID, "carol", "Carol"), repositories.ErrMatchNotJoinable, "slot taken")
	assert.ErrorIs(t, s.JoinPairwise(ctx, uuid.New(), "carol", "Carol"), repositories.ErrMatchNotFound)

	require.NoError(t, s.ClearFoe(ctx, m.ID, "bob"))
	assert.ErrorIs(t, s.ClearFoe(ctx, m.ID, "bob"), repositories.ErrMatchNotActive)
	require.NoError(t, s.JoinPairwise(ctx, m.ID, "carol", "Carol"))
}

func TestCompleteWritesOutcomeOnce(t *testing.T) {
	ctx := context.Background()
	s := NewStoreWithClock(func() time.Time { return t0 })
	m := newPairwise("alice", time.Hour)
	require.NoError(t, s.Create(ctx, m))
	require.NoError(t, s.JoinPairwise(ctx, m.ID, "bob", "Bob"))

	winner := models.SideHost
	outcome := &models.MatchOutcome{WinnerIDs: []string{"alice"}, LoserIDs: []string{"bob"}}
	require.NoError(t, s.Complete(ctx, m.ID, models.Completion{WinnerSide: &winner}, outcome))
	assert.NotZero(t, outcome.ID)
	assert.Equal(t, models.OutcomeResult, outcome.Reason)

	err := s.Complete(ctx, m.ID, models.Completion{WinnerSide: &winner}, outcome)
	assert.ErrorIs(t, err, repositories.ErrMatchNotActive)

	pending, err := s.ListPendingOutcomes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, s.ApplyOutcome(ctx, outcome.ID))
	require.NoError(t, s.ApplyOutcome(ctx, outcome.ID))
	alice, err := s.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, alice.Wins, "applying twice counts once")

	assert.ErrorIs(t, s.RecordOutcomeFailure(ctx, outcome.ID, errors.New("late")), repositories.ErrOutcomeNotFound)
	assert.ErrorIs(t, s.ApplyOutcome(ctx, 999), repositories.ErrOutcomeNotFound)

	stored, ok := s.Outcome(m.ID)
	require.True(t, ok)
	assert.True(t, stored.Applied())
}

func TestUpsertProfileKeepsScore(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.SetScore("alice", models.UserScore{CurrentStreak: 3, LongestStreak: 5, Wins: 8})

	p := &models.UserProfile{UserID: "alice", DisplayName: "Alice", PostalCode: "AB1", UserScore: models.UserScore{CurrentStreak: 99}}
	require.NoError(t, s.UpsertProfile(ctx, p))
	assert.Equal(t, 3, p.CurrentStreak)
	assert.Equal(t, "Alice", p.DisplayName)

	unknown, err := s.GetProfile(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, models.UserProfile{UserID: "ghost"}, *unknown)
}

func TestPromoteStartedNeedsOpponent(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	lonely := newPairwise("alice", -time.Minute)
	paired := newPairwise("bob", -time.Minute)
	future := newPairwise("dave", time.Hour)
	for _, m := range []*models.Match{lonely, paired, future} {
		require.NoError(t, s.Create(ctx, m))
	}
	require.NoError(t, s.JoinPairwise(ctx, paired.ID, "carol", "Carol"))
	require.NoError(t, s.JoinPairwise(ctx, future.ID, "erin", "Erin"))

	n, err := s.PromoteStarted(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.GetByID(ctx, paired.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusLive, got.Status)
}

func newTeam(host string, startsIn time.Duration, mates ...string) *models.Match {
	m := newPairwise(host, startsIn)
	roster := []models.Participant{{UserID: host, DisplayName: host, Team: models.SideHost}}
	for _, id := range mates {
		roster = append(roster, models.Participant{UserID: id, DisplayName: id, Team: models.SideHost})
	}
	m.MaxParticipants = 2 * len(roster)
	m.Kind = &models.TeamKind{Participants: roster}
	return m
}

func TestCreateRequiresEveryPartyAtRequiredScore(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.SetScore("zed", models.UserScore{CurrentStreak: 7, LongestStreak: 7})

	err := s.Create(ctx, newTeam("alice", 72*time.Hour, "zed"))
	var mismatch *repositories.ScoreMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.ErrorIs(t, err, repositories.ErrScoreMismatch)
	assert.Equal(t, "zed", mismatch.UserID)
	assert.Equal(t, 7, mismatch.Streak)
	assert.Equal(t, 0, mismatch.Required)

	for _, id := range []string{"alice", "zed"} {
		active, err := s.ListActiveByParticipant(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, active, id)
	}

	s.SetScore("alice", models.UserScore{CurrentStreak: 7, LongestStreak: 7})
	m := newTeam("alice", 72*time.Hour, "zed")
	m.RequiredScore = 7
	require.NoError(t, s.Create(ctx, m))
}

func TestDeleteUnopposedFailsOnceOpponentJoined(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	m := newPairwise("alice", time.Hour)
	require.NoError(t, s.Create(ctx, m))
	require.NoError(t, s.JoinPairwise(ctx, m.ID, "bob", "Bob"))

	assert.ErrorIs(t, s.Delete(ctx, m.ID, true), repositories.ErrMatchOpposed)
	_, err := s.GetByID(ctx, m.ID)
	require.NoError(t, err, "match survives a refused delete")

	require.NoError(t, s.Delete(ctx, m.ID, false))
	assert.ErrorIs(t, s.Delete(ctx, m.ID, false), repositories.ErrMatchNotFound)
}

func TestRemoveParticipantUnopposedFailsOnceFoeSideFilled(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	m := newTeam("alice", time.Hour, "amy")
	require.NoError(t, s.Create(ctx, m))
	_, err := s.JoinTeam(ctx, m.ID, "carl", "Carl")
	require.NoError(t, err)

	assert.ErrorIs(t, s.RemoveParticipant(ctx, m.ID, "amy", true), repositories.ErrMatchOpposed)
	require.NoError(t, s.RemoveParticipant(ctx, m.ID, "carl", false))
	require.NoError(t, s.RemoveParticipant(ctx, m.ID, "amy", true))
	assert.ErrorIs(t, s.RemoveParticipant(ctx, m.ID, "amy", false), repositories.ErrParticipantNotFound)
}
