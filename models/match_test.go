package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func teamMatch(max int, sides ...TeamSide) *Match {
	k := &TeamKind{}
	for i, side := range sides {
		k.Participants = append(k.Participants, Participant{UserID: string(rune('a' + i)), Team: side})
	}
	return &Match{HostID: "a", MaxParticipants: max, Status: StatusScheduled, Kind: k}
}

func TestOpenSide(t *testing.T) {
	tests := []struct {
		name  string
		match *Match
		side  TeamSide
		open  bool
	}{
		{"empty roster", teamMatch(4), SideFoe, true},
		{"host side ahead", teamMatch(4, SideHost, SideHost), SideFoe, true},
		{"balanced", teamMatch(4, SideHost, SideFoe), "", false},
		{"foe side ahead", teamMatch(4, SideHost, SideFoe, SideFoe), SideHost, true},
		{"at capacity", teamMatch(2, SideHost, SideHost), "", false},
		{"pairwise", &Match{Kind: &PairwiseKind{}}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			side, open := tt.match.OpenSide()
			assert.Equal(t, tt.open, open)
			assert.Equal(t, tt.side, side)
		})
	}
}

func TestHasOpponent(t *testing.T) {
	assert.False(t, (&Match{Kind: &PairwiseKind{}}).HasOpponent())
	assert.False(t, (&Match{Kind: &PairwiseKind{FoeID: strPtr("")}}).HasOpponent())
	assert.True(t, (&Match{Kind: &PairwiseKind{FoeID: strPtr("bob")}}).HasOpponent())
	assert.False(t, teamMatch(4, SideHost, SideHost).HasOpponent())
	assert.True(t, teamMatch(4, SideHost, SideFoe).HasOpponent())
}

func TestRoleOf(t *testing.T) {
	pw := &Match{HostID: "alice", Kind: &PairwiseKind{FoeID: strPtr("bob")}}
	role, side, ok := pw.RoleOf("bob")
	require.True(t, ok)
	assert.Equal(t, RoleFoe, role)
	assert.Equal(t, SideFoe, side)

	_, _, ok = pw.RoleOf("carol")
	assert.False(t, ok)
	_, _, ok = pw.RoleOf("")
	assert.False(t, ok)

	team := teamMatch(4, SideHost, SideHost, SideFoe)
	role, side, ok = team.RoleOf("a")
	require.True(t, ok)
	assert.Equal(t, RoleHost, role)
	assert.Equal(t, SideHost, side)
	role, side, ok = team.RoleOf("c")
	require.True(t, ok)
	assert.Equal(t, RoleMember, role)
	assert.Equal(t, SideFoe, side)

	assert.Equal(t, []string{"a", "b", "c"}, team.PartyIDs())
	assert.Equal(t, []string{"c"}, team.SideIDs(SideFoe))
}

func TestForfeitWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	window := 48 * time.Hour

	tests := []struct {
		startsIn time.Duration
		within   bool
	}{
		{72 * time.Hour, false},
		{48 * time.Hour, false},
		{47*time.Hour + 59*time.Minute, true},
		{10 * time.Hour, true},
		{-time.Hour, true},
	}
	for _, tt := range tests {
		m := &Match{StartsAt: now.Add(tt.startsIn)}
		assert.Equal(t, tt.within, m.WithinForfeitWindow(now, window), tt.startsIn.String())
	}
}

func TestResultWindowOpen(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := &Match{StartsAt: start}
	window := 24 * time.Hour

	assert.False(t, m.ResultWindowOpen(start.Add(-time.Second), window))
	assert.True(t, m.ResultWindowOpen(start, window))
	assert.True(t, m.ResultWindowOpen(start.Add(window), window))
	assert.False(t, m.ResultWindowOpen(start.Add(window+time.Second), window))
}

func TestCloneIsDeep(t *testing.T) {
	claim := SideHost
	orig := &Match{HostID: "a", Title: strPtr("Friday"), Kind: &PairwiseKind{FoeID: strPtr("b"), HostClaim: &claim}}
	c := orig.Clone()

	*c.Title = "Saturday"
	pk, _ := c.Pairwise()
	*pk.FoeID = "z"
	*pk.HostClaim = SideFoe

	assert.Equal(t, "Friday", *orig.Title)
	opk, _ := orig.Pairwise()
	assert.Equal(t, "b", *opk.FoeID)
	assert.Equal(t, SideHost, *opk.HostClaim)

	team := teamMatch(4, SideHost)
	tc := team.Clone()
	tk, _ := tc.Team()
	tk.Participants[0].Team = SideFoe
	otk, _ := team.Team()
	assert.Equal(t, SideHost, otk.Participants[0].Team)

	assert.Nil(t, (*Match)(nil).Clone())
}

func TestMatchJSONCarriesKind(t *testing.T) {
	m := Match{HostID: "a", Status: StatusScheduled, Kind: &PairwiseKind{FoeID: strPtr("b")}}
	raw, err := json.Marshal(m)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "pairwise", got["match_type"])
	assert.Equal(t, "b", got["pairwise"].(map[string]interface{})["foe_id"])
	assert.NotContains(t, got, "team")
	assert.NotContains(t, got, "Kind")
}

func TestNormalizePostalCode(t *testing.T) {
	assert.Equal(t, "SW1A1AA", NormalizePostalCode(" sw1a 1aa "))
	assert.Equal(t, "SW1A1AA", NormalizePostalCode("SW1A-1AA"))
	assert.Equal(t, "", NormalizePostalCode("   "))
}

func TestStatusActivity(t *testing.T) {
	for _, s := range ActiveStatuses {
		assert.True(t, s.IsActive(), s)
	}
	assert.False(t, StatusCompleted.IsActive())
	assert.False(t, StatusInProgress.IsActive())
}
