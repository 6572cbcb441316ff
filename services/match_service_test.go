package services

import (
	"testing"
	"time"

	"github.com/Dosada05/streakmatch/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMatchSnapshotsHostStreak(t *testing.T) {
	env := newTestEnv(t)
	env.setStreak("alice", 4)

	m := env.createPairwise(t, "alice", 72*time.Hour)
	assert.Equal(t, 4, m.RequiredScore)
	assert.Equal(t, models.StatusScheduled, m.Status)
	assert.Equal(t, 2, m.MaxParticipants)
	assert.Equal(t, "AB12CD", m.PostalCode)
	assert.Contains(t, env.notifier.types(), EventMatchCreated)

	// Later streak changes leave the stored requirement alone.
	env.setStreak("alice", 9)
	assert.Equal(t, 4, env.reload(t, m).RequiredScore)
}

func TestCreateTeamMatchSeatsHostSide(t *testing.T) {
	env := newTestEnv(t)
	m := env.createTeam(t, "host", 72*time.Hour, "mate1", "mate2")

	assert.Equal(t, 6, m.MaxParticipants)
	team, ok := m.Team()
	require.True(t, ok)
	assert.Equal(t, 3, team.Count(models.SideHost))
	assert.Equal(t, 0, team.Count(models.SideFoe))

	for _, id := range []string{"host", "mate1", "mate2"} {
		active, err := env.matches.GetActiveMatch(env.ctx, id)
		require.NoError(t, err)
		require.NotNil(t, active, id)
		assert.Equal(t, m.ID, active.ID)
	}
}

func TestCreateTeamRejectsTeammateWithDifferentStreak(t *testing.T) {
	env := newTestEnv(t)
	env.setStreak("zed", 7)

	_, err := env.matches.CreateMatch(env.ctx, "alice", CreateMatchInput{
		Type:            models.MatchTypeTeam,
		Venue:           "Pitch 4",
		PostalCode:      "AB1 2CD",
		StartsAt:        env.clock.Now().Add(72 * time.Hour),
		HostDisplayName: "alice",
		Teammates:       []models.TeamMember{{UserID: "zed", DisplayName: "zed"}},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields["teammates"], "zed")

	for _, id := range []string{"alice", "zed"} {
		active, err := env.matches.GetActiveMatch(env.ctx, id)
		require.NoError(t, err)
		assert.Nil(t, active, id)
	}

	env.setStreak("alice", 7)
	m := env.createTeam(t, "alice", 72*time.Hour, "zed")
	assert.Equal(t, 7, m.RequiredScore)
}

func TestCreateMatchValidation(t *testing.T) {
	env := newTestEnv(t)
	future := env.clock.Now().Add(time.Hour)

	tests := []struct {
		name  string
		input CreateMatchInput
		field string
	}{
		{"missing venue", CreateMatchInput{PostalCode: "AB1", StartsAt: future, HostDisplayName: "h"}, "venue"},
		{"missing postal code", CreateMatchInput{Venue: "v", StartsAt: future, HostDisplayName: "h"}, "postal_code"},
		{"start in the past", CreateMatchInput{Venue: "v", PostalCode: "AB1", StartsAt: env.clock.Now().Add(-time.Minute), HostDisplayName: "h"}, "starts_at"},
		{"unknown type", CreateMatchInput{Type: "squad", Venue: "v", PostalCode: "AB1", StartsAt: future, HostDisplayName: "h"}, "match_type"},
		{"teammates on pairwise", CreateMatchInput{Type: models.MatchTypePairwise, Venue: "v", PostalCode: "AB1", StartsAt: future, HostDisplayName: "h",
			Teammates: []models.TeamMember{{UserID: "m", DisplayName: "m"}}}, "teammates"},
		{"host as teammate", CreateMatchInput{Type: models.MatchTypeTeam, Venue: "v", PostalCode: "AB1", StartsAt: future, HostDisplayName: "h",
			Teammates: []models.TeamMember{{UserID: "host", DisplayName: "h"}}}, "teammates"},
		{"duplicate teammates", CreateMatchInput{Type: models.MatchTypeTeam, Venue: "v", PostalCode: "AB1", StartsAt: future, HostDisplayName: "h",
			Teammates: []models.TeamMember{{UserID: "m", DisplayName: "m"}, {UserID: "m", DisplayName: "m"}}}, "teammates"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.matches.CreateMatch(env.ctx, "host", tt.input)
			require.ErrorIs(t, err, ErrValidationFailed)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}

	_, err := env.matches.CreateMatch(env.ctx, "", CreateMatchInput{})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestCreateMatchFallsBackToProfileName(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.ledger.UpdateProfile(env.ctx, "alice", ProfileInput{DisplayName: "Alice A."})
	require.NoError(t, err)

	m, err := env.matches.CreateMatch(env.ctx, "alice", CreateMatchInput{
		Venue:      "Court 2",
		PostalCode: "AB1",
		StartsAt:   env.clock.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", m.HostDisplayName)
	assert.Equal(t, models.MatchTypePairwise, m.Type())
}

func TestEditMatch(t *testing.T) {
	env := newTestEnv(t)
	m := env.createPairwise(t, "alice", 72*time.Hour)

	ok, err := env.matches.CanEdit(env.ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	venue := "  Court 9 "
	later := env.clock.Now().Add(96 * time.Hour)
	edited, err := env.matches.EditMatch(env.ctx, "alice", m.ID, EditMatchInput{Venue: &venue, StartsAt: &later})
	require.NoError(t, err)
	assert.Equal(t, "Court 9", edited.Venue)
	assert.True(t, later.Equal(env.reload(t, m).StartsAt))
	assert.Contains(t, env.notifier.types(), EventMatchEdited)

	_, err = env.matches.EditMatch(env.ctx, "bob", m.ID, EditMatchInput{Venue: &venue})
	assert.ErrorIs(t, err, ErrNotHost)

	past := env.clock.Now().Add(-time.Hour)
	_, err = env.matches.EditMatch(env.ctx, "alice", m.ID, EditMatchInput{StartsAt: &past})
	assert.ErrorIs(t, err, ErrValidationFailed)

	require.True(t, env.join(t, m, "bob").Success)
	ok, err = env.matches.CanEdit(env.ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = env.matches.EditMatch(env.ctx, "alice", m.ID, EditMatchInput{Venue: &venue})
	assert.ErrorIs(t, err, ErrMatchNotEditable)
}

func TestGetMatchUnknown(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.matches.GetMatch(env.ctx, uuid.New())
	assert.ErrorIs(t, err, ErrMatchNotFound)
	_, err = env.matches.CanEdit(env.ctx, uuid.New())
	assert.ErrorIs(t, err, ErrMatchNotFound)
}
