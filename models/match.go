package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	StatusScheduled      MatchStatus = "scheduled"
	StatusPendingBalance MatchStatus = "pending_balance"
	StatusLive           MatchStatus = "live"
	StatusInProgress     MatchStatus = "in_progress" // reserved, never set by the engine
	StatusCompleted      MatchStatus = "completed"
)

// ActiveStatuses are the statuses that count towards the one-active-match rule.
var ActiveStatuses = []MatchStatus{StatusScheduled, StatusPendingBalance, StatusLive}

func (s MatchStatus) IsActive() bool {
	switch s {
	case StatusScheduled, StatusPendingBalance, StatusLive:
		return true
	}
	return false
}

type MatchType string

const (
	MatchTypePairwise MatchType = "pairwise"
	MatchTypeTeam     MatchType = "team"
)

func (t MatchType) Valid() bool {
	return t == MatchTypePairwise || t == MatchTypeTeam
}

// TeamSide names one of the two parties of a match. Pairwise matches use it for
// claims too: the host is SideHost, the foe is SideFoe.
type TeamSide string

const (
	SideHost TeamSide = "host"
	SideFoe  TeamSide = "foe"
)

func (s TeamSide) Opposite() TeamSide {
	if s == SideHost {
		return SideFoe
	}
	return SideHost
}

// MatchKind holds the shape-specific part of a match. It is either *PairwiseKind
// or *TeamKind.
type MatchKind interface {
	Type() MatchType
	isMatchKind()
}

type PairwiseKind struct {
	FoeID          *string   `json:"foe_id,omitempty"`
	FoeDisplayName *string   `json:"foe_display_name,omitempty"`
	HostClaim      *TeamSide `json:"host_claim,omitempty"`
	FoeClaim       *TeamSide `json:"foe_claim,omitempty"`
	HostProof      *string   `json:"host_proof,omitempty"`
	FoeProof       *string   `json:"foe_proof,omitempty"`
}

func (*PairwiseKind) Type() MatchType { return MatchTypePairwise }
func (*PairwiseKind) isMatchKind()    {}

func (k *PairwiseKind) HasFoe() bool {
	return k.FoeID != nil && *k.FoeID != ""
}

type TeamKind struct {
	Participants []Participant `json:"participants"`
}

func (*TeamKind) Type() MatchType { return MatchTypeTeam }
func (*TeamKind) isMatchKind()    {}

func (k *TeamKind) Count(side TeamSide) int {
	n := 0
	for _, p := range k.Participants {
		if p.Team == side {
			n++
		}
	}
	return n
}

func (k *TeamKind) Members(side TeamSide) []Participant {
	members := make([]Participant, 0, len(k.Participants))
	for _, p := range k.Participants {
		if p.Team == side {
			members = append(members, p)
		}
	}
	return members
}

func (k *TeamKind) Find(userID string) (*Participant, bool) {
	for i := range k.Participants {
		if k.Participants[i].UserID == userID {
			return &k.Participants[i], true
		}
	}
	return nil, false
}

type Match struct {
	ID              uuid.UUID   `json:"id"`
	HostID          string      `json:"host_id"`
	HostDisplayName string      `json:"host_display_name"`
	MaxParticipants int         `json:"max_participants"`
	Title           *string     `json:"title,omitempty"`
	Venue           string      `json:"venue"`
	PostalCode      string      `json:"postal_code"`
	StartsAt        time.Time   `json:"starts_at"`
	RequiredScore   int         `json:"required_score"`
	Status          MatchStatus `json:"status"`
	WinnerSide      *TeamSide   `json:"winner_side,omitempty"`
	IsDraw          bool        `json:"is_draw"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`

	Kind MatchKind `json:"-"`
}

func (m *Match) Type() MatchType {
	if m.Kind == nil {
		return ""
	}
	return m.Kind.Type()
}

func (m *Match) Pairwise() (*PairwiseKind, bool) {
	k, ok := m.Kind.(*PairwiseKind)
	return k, ok
}

func (m *Match) Team() (*TeamKind, bool) {
	k, ok := m.Kind.(*TeamKind)
	return k, ok
}

func (m *Match) IsActive() bool {
	return m.Status.IsActive()
}

// HasOpponent reports whether somebody stands against the host: a foe for pairwise
// matches, at least one member on each side for team matches.
func (m *Match) HasOpponent() bool {
	switch k := m.Kind.(type) {
	case *PairwiseKind:
		return k.HasFoe()
	case *TeamKind:
		return k.Count(SideHost) > 0 && k.Count(SideFoe) > 0
	}
	return false
}

// IsFull reports whether nobody else can join right now.
func (m *Match) IsFull() bool {
	switch k := m.Kind.(type) {
	case *PairwiseKind:
		return k.HasFoe()
	case *TeamKind:
		_, open := m.OpenSide()
		return !open || len(k.Participants) >= m.MaxParticipants
	}
	return true
}

// OpenSide returns the side a new team member would join. A side may take a
// member only while it is strictly smaller than the other one, or when both are empty.
func (m *Match) OpenSide() (TeamSide, bool) {
	k, ok := m.Team()
	if !ok {
		return "", false
	}
	if m.MaxParticipants > 0 && len(k.Participants) >= m.MaxParticipants {
		return "", false
	}
	hosts, foes := k.Count(SideHost), k.Count(SideFoe)
	switch {
	case hosts == 0 && foes == 0:
		return SideFoe, true
	case foes < hosts:
		return SideFoe, true
	case hosts < foes:
		return SideHost, true
	}
	return "", false
}

type Role string

const (
	RoleHost   Role = "host"
	RoleFoe    Role = "foe"
	RoleMember Role = "member"
)

// RoleOf returns how userID takes part in the match. The team host is reported
// as RoleHost even though it also has a participant row.
func (m *Match) RoleOf(userID string) (Role, TeamSide, bool) {
	if userID == "" {
		return "", "", false
	}
	if m.HostID == userID {
		return RoleHost, SideHost, true
	}
	switch k := m.Kind.(type) {
	case *PairwiseKind:
		if k.HasFoe() && *k.FoeID == userID {
			return RoleFoe, SideFoe, true
		}
	case *TeamKind:
		if p, ok := k.Find(userID); ok {
			return RoleMember, p.Team, true
		}
	}
	return "", "", false
}

func (m *Match) IsParty(userID string) bool {
	_, _, ok := m.RoleOf(userID)
	return ok
}

// WithinForfeitWindow reports whether leaving now would concede the match. A
// match exactly window away is still outside it; one that already started is
// always within it.
func (m *Match) WithinForfeitWindow(now time.Time, window time.Duration) bool {
	return m.StartsAt.Sub(now) < window
}

// ResultWindowOpen reports whether results may be submitted at now.
func (m *Match) ResultWindowOpen(now time.Time, window time.Duration) bool {
	return !now.Before(m.StartsAt) && !now.After(m.StartsAt.Add(window))
}

// PartyIDs lists every user taking part in the match, host first.
func (m *Match) PartyIDs() []string {
	ids := []string{m.HostID}
	switch k := m.Kind.(type) {
	case *PairwiseKind:
		if k.HasFoe() {
			ids = append(ids, *k.FoeID)
		}
	case *TeamKind:
		for _, p := range k.Participants {
			if p.UserID != m.HostID {
				ids = append(ids, p.UserID)
			}
		}
	}
	return ids
}

// SideIDs lists the users standing on side. For pairwise matches that is the host
// or the foe.
func (m *Match) SideIDs(side TeamSide) []string {
	switch k := m.Kind.(type) {
	case *PairwiseKind:
		if side == SideHost {
			return []string{m.HostID}
		}
		if k.HasFoe() {
			return []string{*k.FoeID}
		}
	case *TeamKind:
		members := k.Members(side)
		ids := make([]string, 0, len(members))
		for _, p := range members {
			ids = append(ids, p.UserID)
		}
		return ids
	}
	return nil
}

// Clone returns a deep copy so callers can mutate it freely.
func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	c := *m
	c.Title = cloneString(m.Title)
	if m.WinnerSide != nil {
		side := *m.WinnerSide
		c.WinnerSide = &side
	}
	switch k := m.Kind.(type) {
	case *PairwiseKind:
		pk := &PairwiseKind{
			FoeID:          cloneString(k.FoeID),
			FoeDisplayName: cloneString(k.FoeDisplayName),
			HostProof:      cloneString(k.HostProof),
			FoeProof:       cloneString(k.FoeProof),
		}
		if k.HostClaim != nil {
			claim := *k.HostClaim
			pk.HostClaim = &claim
		}
		if k.FoeClaim != nil {
			claim := *k.FoeClaim
			pk.FoeClaim = &claim
		}
		c.Kind = pk
	case *TeamKind:
		tk := &TeamKind{Participants: make([]Participant, len(k.Participants))}
		for i, p := range k.Participants {
			tk.Participants[i] = p.clone()
		}
		c.Kind = tk
	}
	return &c
}

func (m Match) MarshalJSON() ([]byte, error) {
	type plain Match
	out := struct {
		plain
		MatchType MatchType     `json:"match_type"`
		Pairwise  *PairwiseKind `json:"pairwise,omitempty"`
		Team      *TeamKind     `json:"team,omitempty"`
	}{plain: plain(m), MatchType: m.Type()}
	switch k := m.Kind.(type) {
	case *PairwiseKind:
		out.Pairwise = k
	case *TeamKind:
		out.Team = k
	}
	return json.Marshal(out)
}

// NormalizePostalCode upper-cases the code and strips spaces and dashes so that
// "sw1a 1aa" and "SW1A-1AA" compare equal.
func NormalizePostalCode(code string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(code)) {
		if r == ' ' || r == '-' || r == '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
