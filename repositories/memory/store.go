// Package memory is an in-process implementation of the repository interfaces.
// One mutex serialises every operation, which gives each method the same
// all-or-nothing behaviour the Postgres repositories get from transactions.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/streakmatch/models"
	"github.com/Dosada05/streakmatch/repositories"
	"github.com/elliotchance/pie/v2"
	"github.com/google/uuid"
)

type matchRecord struct {
	match *models.Match
	seq   int64
}

type Store struct {
	mu       sync.Mutex
	matches  map[uuid.UUID]*matchRecord
	profiles map[string]*models.UserProfile
	outcomes map[int64]*models.MatchOutcome
	seq      int64
	now      func() time.Time
}

var (
	_ repositories.MatchRepository = (*Store)(nil)
	_ repositories.ScoreRepository = (*Store)(nil)
)

func NewStore() *Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock lets tests control the timestamps the store writes.
func NewStoreWithClock(now func() time.Time) *Store {
	return &Store{
		matches:  make(map[uuid.UUID]*matchRecord),
		profiles: make(map[string]*models.UserProfile),
		outcomes: make(map[int64]*models.MatchOutcome),
		now:      now,
	}
}

func (s *Store) Create(_ context.Context, match *models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.matches[match.ID]; exists {
		return fmt.Errorf("match id conflict: %s", match.ID)
	}
	for _, id := range match.PartyIDs() {
		if s.hasActiveMatch(id) {
			return fmt.Errorf("%w: %s", repositories.ErrExclusivityConflict, id)
		}
	}
	for _, id := range match.PartyIDs() {
		if streak := s.streakOf(id); streak != match.RequiredScore {
			return &repositories.ScoreMismatchError{UserID: id, Streak: streak, Required: match.RequiredScore}
		}
	}
	match.UpdatedAt = match.CreatedAt
	if tk, ok := match.Team(); ok {
		for i := range tk.Participants {
			tk.Participants[i].MatchID = match.ID
			if tk.Participants[i].JoinedAt.IsZero() {
				tk.Participants[i].JoinedAt = match.CreatedAt
			}
		}
	}
	s.seq++
	s.matches[match.ID] = &matchRecord{match: match.Clone(), seq: s.seq}
	return nil
}

func (s *Store) GetByID(_ context.Context, id uuid.UUID) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return rec.match.Clone(), nil
}

func (s *Store) UpdateDetails(_ context.Context, match *models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.matches[match.ID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	rec.match.Title = match.Title
	rec.match.Venue = match.Venue
	rec.match.PostalCode = match.PostalCode
	rec.match.StartsAt = match.StartsAt
	rec.match.UpdatedAt = s.now()
	match.UpdatedAt = rec.match.UpdatedAt
	return nil
}

func (s *Store) ListActiveHostedOrFoe(_ context.Context, userID string) ([]*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.collect(func(m *models.Match) bool {
		if !m.IsActive() {
			return false
		}
		if m.HostID == userID {
			return true
		}
		pk, ok := m.Pairwise()
		return ok && pk.HasFoe() && *pk.FoeID == userID
	}, 0), nil
}

func (s *Store) ListActiveByParticipant(_ context.Context, userID string) ([]*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.collect(func(m *models.Match) bool {
		tk, ok := m.Team()
		if !ok || !m.IsActive() {
			return false
		}
		_, member := tk.Find(userID)
		return member
	}, 0), nil
}

func (s *Store) ListFeed(_ context.Context, q repositories.FeedQuery) ([]*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.collect(func(m *models.Match) bool {
		if !pie.Contains(q.Statuses, m.Status) {
			return false
		}
		if m.IsParty(q.ViewerID) || m.IsFull() {
			return false
		}
		if q.RequiredScore != nil && m.RequiredScore != *q.RequiredScore {
			return false
		}
		if q.PostalCode != nil && m.PostalCode != *q.PostalCode {
			return false
		}
		if q.ExcludePostalCode != nil && m.PostalCode == *q.ExcludePostalCode {
			return false
		}
		return true
	}, q.Limit), nil
}

func (s *Store) JoinPairwise(_ context.Context, matchID uuid.UUID, userID, displayName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.matches[matchID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m := rec.match
	if s.hasActiveMatch(userID) {
		return repositories.ErrExclusivityConflict
	}
	pk, ok := m.Pairwise()
	if !ok || m.Status != models.StatusScheduled || pk.HasFoe() || m.HostID == userID {
		return repositories.ErrMatchNotJoinable
	}
	if s.streakOf(userID) != m.RequiredScore {
		return repositories.ErrMatchNotJoinable
	}
	id, name := userID, displayName
	pk.FoeID, pk.FoeDisplayName = &id, &name
	m.UpdatedAt = s.now()
	return nil
}

func (s *Store) JoinTeam(_ context.Context, matchID uuid.UUID, userID, displayName string) (models.TeamSide, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.matches[matchID]
	if !ok {
		return "", repositories.ErrMatchNotFound
	}
	m := rec.match
	tk, ok := m.Team()
	if !ok || m.Status != models.StatusScheduled || m.IsParty(userID) {
		return "", repositories.ErrMatchNotJoinable
	}
	if s.hasActiveMatch(userID) {
		return "", repositories.ErrExclusivityConflict
	}
	if s.streakOf(userID) != m.RequiredScore {
		return "", repositories.ErrMatchNotJoinable
	}
	side, open := m.OpenSide()
	if !open {
		return "", repositories.ErrMatchNotJoinable
	}
	now := s.now()
	tk.Participants = append(tk.Participants, models.Participant{
		MatchID:     matchID,
		UserID:      userID,
		DisplayName: displayName,
		Team:        side,
		JoinedAt:    now,
	})
	m.UpdatedAt = now
	return side, nil
}

func (s *Store) ClearFoe(_ context.Context, matchID uuid.UUID, foeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.matches[matchID]
	if !ok {
		return repositories.ErrMatchNotActive
	}
	pk, ok := rec.match.Pairwise()
	if !ok || !rec.match.IsActive() || !pk.HasFoe() || *pk.FoeID != foeID {
		return repositories.ErrMatchNotActive
	}
	rec.match.Kind = &models.PairwiseKind{}
	rec.match.UpdatedAt = s.now()
	return nil
}

func (s *Store) RemoveParticipant(_ context.Context, matchID uuid.UUID, userID string, requireUnopposed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.matches[matchID]
	if !ok {
		return repositories.ErrParticipantNotFound
	}
	tk, ok := rec.match.Team()
	if !ok {
		return repositories.ErrParticipantNotFound
	}
	if _, found := tk.Find(userID); !found {
		return repositories.ErrParticipantNotFound
	}
	if requireUnopposed && rec.match.HasOpponent() {
		return repositories.ErrMatchOpposed
	}
	tk.Participants = pie.Filter(tk.Participants, func(p models.Participant) bool {
		return p.UserID != userID
	})
	rec.match.UpdatedAt = s.now()
	return nil
}

func (s *Store) Delete(_ context.Context, matchID uuid.UUID, requireUnopposed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.matches[matchID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if requireUnopposed && rec.match.HasOpponent() {
		return repositories.ErrMatchOpposed
	}
	delete(s.matches, matchID)
	return nil
}

func (s *Store) Complete(_ context.Context, matchID uuid.UUID, completion models.Completion, outcome *models.MatchOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.matches[matchID]
	if !ok || !rec.match.IsActive() {
		return repositories.ErrMatchNotActive
	}
	if outcome != nil {
		for _, o := range s.outcomes {
			if o.MatchID == matchID {
				return fmt.Errorf("outcome for match %s already recorded", matchID)
			}
		}
	}

	now := s.now()
	rec.match.Status = models.StatusCompleted
	rec.match.IsDraw = completion.IsDraw
	rec.match.WinnerSide = nil
	if completion.WinnerSide != nil {
		side := *completion.WinnerSide
		rec.match.WinnerSide = &side
	}
	rec.match.UpdatedAt = now

	if outcome != nil {
		s.seq++
		outcome.ID = s.seq
		outcome.MatchID = matchID
		outcome.CreatedAt = now
		if outcome.Reason == "" {
			outcome.Reason = models.OutcomeResult
		}
		stored := *outcome
		stored.WinnerIDs = append([]string(nil), outcome.WinnerIDs...)
		stored.LoserIDs = append([]string(nil), outcome.LoserIDs...)
		s.outcomes[outcome.ID] = &stored
	}
	return nil
}

func (s *Store) SetPairwiseClaim(_ context.Context, matchID uuid.UUID, side, claim models.TeamSide, proof string) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.matches[matchID]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	if !rec.match.IsActive() {
		return nil, repositories.ErrMatchNotActive
	}
	pk, ok := rec.match.Pairwise()
	if !ok {
		return nil, repositories.ErrParticipantNotFound
	}
	c, p := claim, proof
	if side == models.SideFoe {
		pk.FoeClaim, pk.FoeProof = &c, &p
	} else {
		pk.HostClaim, pk.HostProof = &c, &p
	}
	rec.match.UpdatedAt = s.now()
	return rec.match.Clone(), nil
}

func (s *Store) SetParticipantClaim(_ context.Context, matchID uuid.UUID, userID string, claim models.TeamSide, proof string, at time.Time) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.matches[matchID]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	if !rec.match.IsActive() {
		return nil, repositories.ErrMatchNotActive
	}
	tk, ok := rec.match.Team()
	if !ok {
		return nil, repositories.ErrParticipantNotFound
	}
	p, found := tk.Find(userID)
	if !found {
		return nil, repositories.ErrParticipantNotFound
	}
	c, ref, when := claim, proof, at
	p.ResultSubmitted = true
	p.SubmittedWinnerSide = &c
	p.ProofReference = &ref
	p.SubmittedAt = &when
	rec.match.UpdatedAt = s.now()
	return rec.match.Clone(), nil
}

func (s *Store) PromoteStarted(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var promoted int64
	for _, rec := range s.matches {
		m := rec.match
		if m.Status == models.StatusScheduled && !m.StartsAt.After(now) && m.HasOpponent() {
			m.Status = models.StatusLive
			m.UpdatedAt = s.now()
			promoted++
		}
	}
	return promoted, nil
}

func (s *Store) GetProfile(_ context.Context, userID string) (*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.profiles[userID]; ok {
		c := *p
		return &c, nil
	}
	return &models.UserProfile{UserID: userID}, nil
}

func (s *Store) UpsertProfile(_ context.Context, profile *models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[profile.UserID]
	if !ok {
		p = &models.UserProfile{UserID: profile.UserID}
		s.profiles[profile.UserID] = p
	}
	p.DisplayName = profile.DisplayName
	p.PostalCode = profile.PostalCode
	p.UpdatedAt = s.now()
	*profile = *p
	return nil
}

// SetScore overwrites a user's counters. Seeding helper for tests and local runs.
func (s *Store) SetScore(userID string, score models.UserScore) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		p = &models.UserProfile{UserID: userID}
		s.profiles[userID] = p
	}
	p.UserScore = score
	p.UpdatedAt = s.now()
}

func (s *Store) ApplyScores(_ context.Context, winnerIDs, loserIDs []string, isDraw bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.applyScores(winnerIDs, loserIDs, isDraw)
	return nil
}

func (s *Store) ApplyOutcome(_ context.Context, outcomeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.outcomes[outcomeID]
	if !ok {
		return repositories.ErrOutcomeNotFound
	}
	if o.Applied() {
		return nil
	}
	s.applyScores(o.WinnerIDs, o.LoserIDs, o.IsDraw)
	now := s.now()
	o.AppliedAt = &now
	o.Attempts++
	o.LastError = nil
	return nil
}

func (s *Store) ListPendingOutcomes(_ context.Context, limit int) ([]*models.MatchOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make([]*models.MatchOutcome, 0)
	for _, o := range s.outcomes {
		if !o.Applied() {
			c := *o
			pending = append(pending, &c)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *Store) RecordOutcomeFailure(_ context.Context, outcomeID int64, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.outcomes[outcomeID]
	if !ok || o.Applied() {
		return repositories.ErrOutcomeNotFound
	}
	o.Attempts++
	if cause != nil {
		msg := cause.Error()
		o.LastError = &msg
	}
	return nil
}

// Outcome returns a copy of a recorded outcome. Tests use it to inspect the outbox.
func (s *Store) Outcome(matchID uuid.UUID) (*models.MatchOutcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.outcomes {
		if o.MatchID == matchID {
			c := *o
			return &c, true
		}
	}
	return nil, false
}

func (s *Store) applyScores(winnerIDs, loserIDs []string, isDraw bool) {
	now := s.now()
	for id, rule := range repositories.ScoreChanges(winnerIDs, loserIDs, isDraw) {
		p, ok := s.profiles[id]
		if !ok {
			p = &models.UserProfile{UserID: id}
			s.profiles[id] = p
		}
		p.UserScore = rule(p.UserScore)
		p.UpdatedAt = now
	}
}

func (s *Store) hasActiveMatch(userID string) bool {
	for _, rec := range s.matches {
		if rec.match.IsActive() && rec.match.IsParty(userID) {
			return true
		}
	}
	return false
}

func (s *Store) streakOf(userID string) int {
	if p, ok := s.profiles[userID]; ok {
		return p.CurrentStreak
	}
	return 0
}

// collect returns clones of the matching records, newest first.
func (s *Store) collect(keep func(*models.Match) bool, limit int) []*models.Match {
	recs := make([]*matchRecord, 0)
	for _, rec := range s.matches {
		if keep(rec.match) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].match.CreatedAt.Equal(recs[j].match.CreatedAt) {
			return recs[i].match.CreatedAt.After(recs[j].match.CreatedAt)
		}
		return recs[i].seq > recs[j].seq
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return pie.Map(recs, func(rec *matchRecord) *models.Match {
		return rec.match.Clone()
	})
}
