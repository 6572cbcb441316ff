package services

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/streakmatch/metrics"
	"github.com/Dosada05/streakmatch/models"
	"github.com/Dosada05/streakmatch/repositories/memory"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type publishedEvent struct {
	Type  string
	Rooms []string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (n *recordingNotifier) Publish(eventType string, _ interface{}, rooms ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, publishedEvent{Type: eventType, Rooms: rooms})
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, e := range n.events {
		out[i] = e.Type
	}
	return out
}

type testEnv struct {
	ctx      context.Context
	clock    clockwork.Clock
	advance  func(time.Duration)
	store    *memory.Store
	notifier *recordingNotifier
	logs     *bytes.Buffer
	logger   *slog.Logger

	ledger     ScoreLedger
	active     ActiveMatchFinder
	matchmaker Matchmaker
	lifecycle  LifecycleService
	feed       FeedService
	results    ResultService
	matches    MatchService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testNow)
	store := memory.NewStoreWithClock(clock.Now)
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	notifier := &recordingNotifier{}
	m := metrics.Noop{}

	ledger := NewScoreLedger(store, NewReadThroughCache(time.Minute), 3, logger, m)
	feed := NewFeedService(store, ledger, NewReadThroughCache(time.Minute))
	notify := Notifiers{notifier, feed}
	active := NewActiveMatchFinder(store, logger)

	return &testEnv{
		ctx:        context.Background(),
		clock:      clock,
		advance:    clock.Advance,
		store:      store,
		notifier:   notifier,
		logs:       logs,
		logger:     logger,
		ledger:     ledger,
		active:     active,
		matchmaker: NewMatchmaker(store, store, active, clock, 48*time.Hour, notify, logger, m),
		lifecycle:  NewLifecycleService(store, ledger, clock, 48*time.Hour, notify, logger, m),
		feed:       feed,
		results:    NewResultService(store, ledger, nil, clock, 24*time.Hour, notify, logger, m),
		matches:    NewMatchService(store, store, active, clock, notify, logger, m),
	}
}

func (e *testEnv) setStreak(userID string, streak int) {
	e.store.SetScore(userID, models.UserScore{CurrentStreak: streak, LongestStreak: streak})
}

func (e *testEnv) score(t *testing.T, userID string) models.UserScore {
	t.Helper()
	p, err := e.store.GetProfile(e.ctx, userID)
	require.NoError(t, err)
	return p.UserScore
}

func (e *testEnv) setPostal(t *testing.T, userID, postal string) {
	t.Helper()
	_, err := e.ledger.UpdateProfile(e.ctx, userID, ProfileInput{DisplayName: userID, PostalCode: postal})
	require.NoError(t, err)
}

func (e *testEnv) createPairwise(t *testing.T, hostID string, startsIn time.Duration) *models.Match {
	t.Helper()
	m, err := e.matches.CreateMatch(e.ctx, hostID, CreateMatchInput{
		Type:            models.MatchTypePairwise,
		Venue:           "Court 1",
		PostalCode:      "AB1 2CD",
		StartsAt:        e.clock.Now().Add(startsIn),
		HostDisplayName: hostID,
	})
	require.NoError(t, err)
	return m
}

func (e *testEnv) createPairwiseAt(t *testing.T, hostID, postal string, startsIn time.Duration) *models.Match {
	t.Helper()
	m, err := e.matches.CreateMatch(e.ctx, hostID, CreateMatchInput{
		Type:            models.MatchTypePairwise,
		Venue:           "Court 1",
		PostalCode:      postal,
		StartsAt:        e.clock.Now().Add(startsIn),
		HostDisplayName: hostID,
	})
	require.NoError(t, err)
	return m
}

func (e *testEnv) createTeam(t *testing.T, hostID string, startsIn time.Duration, teammates ...string) *models.Match {
	t.Helper()
	roster := make([]models.TeamMember, 0, len(teammates))
	for _, id := range teammates {
		roster = append(roster, models.TeamMember{UserID: id, DisplayName: id})
	}
	m, err := e.matches.CreateMatch(e.ctx, hostID, CreateMatchInput{
		Type:            models.MatchTypeTeam,
		Venue:           "Pitch 4",
		PostalCode:      "AB1 2CD",
		StartsAt:        e.clock.Now().Add(startsIn),
		HostDisplayName: hostID,
		Teammates:       roster,
	})
	require.NoError(t, err)
	return m
}

func (e *testEnv) join(t *testing.T, m *models.Match, userID string) *JoinResult {
	t.Helper()
	res, err := e.matchmaker.Join(e.ctx, m.ID, userID, userID)
	require.NoError(t, err)
	return res
}

func (e *testEnv) reload(t *testing.T, m *models.Match) *models.Match {
	t.Helper()
	got, err := e.store.GetByID(e.ctx, m.ID)
	require.NoError(t, err)
	return got
}
