package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/Dosada05/streakmatch/handlers"
	"github.com/Dosada05/streakmatch/metrics"
	"github.com/Dosada05/streakmatch/middleware"
	"github.com/Dosada05/streakmatch/realtime"
	"github.com/Dosada05/streakmatch/repositories/memory"
	"github.com/Dosada05/streakmatch/routes"
	"github.com/Dosada05/streakmatch/services"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v4"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jwtSecret = "handler-test-secret"

type api struct {
	t      *testing.T
	server *httptest.Server
	clock  *clockwork.FakeClock
	store  *memory.Store
}

func newAPI(t *testing.T) *api {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := memory.NewStoreWithClock(clock.Now)
	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)
	hub := realtime.NewHub(logger)

	ledger := services.NewScoreLedger(store, services.NewReadThroughCache(time.Minute), 3, logger, m)
	feed := services.NewFeedService(store, ledger, services.NewReadThroughCache(time.Minute))
	notify := services.Notifiers{hub, feed}
	active := services.NewActiveMatchFinder(store, logger)
	matchService := services.NewMatchService(store, store, active, clock, notify, logger, m)

	router := chi.NewRouter()
	routes.SetupRoutes(router,
		routes.Options{
			Auth:           middleware.NewAuthenticator(jwtSecret, logger),
			Gatherer:       registry,
			AllowedOrigins: []string{"*"},
			Logger:         logger,
		},
		handlers.NewMatchHandler(
			matchService,
			services.NewMatchmaker(store, store, active, clock, 48*time.Hour, notify, logger, m),
			services.NewLifecycleService(store, ledger, clock, 48*time.Hour, notify, logger, m),
			services.NewResultService(store, ledger, nil, clock, 24*time.Hour, notify, logger, m),
			logger,
		),
		handlers.NewMeHandler(matchService, ledger, logger),
		handlers.NewFeedHandler(feed, logger),
		handlers.NewWebSocketHandler(hub, matchService, []string{"*"}, logger),
	)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &api{t: t, server: server, clock: clock, store: store}
}

func token(t *testing.T, userID string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"name":    strings.ToUpper(userID[:1]) + userID[1:],
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return signed
}

func (a *api) do(method, path, userID string, body interface{}) (int, map[string]interface{}) {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(a.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+token(a.t, userID))
	}
	res, err := a.server.Client().Do(req)
	require.NoError(a.t, err)
	defer res.Body.Close()

	var out map[string]interface{}
	raw, err := io.ReadAll(res.Body)
	require.NoError(a.t, err)
	if len(raw) > 0 && strings.HasPrefix(res.Header.Get("Content-Type"), "application/json") {
		require.NoError(a.t, json.Unmarshal(raw, &out), string(raw))
	}
	return res.StatusCode, out
}

func (a *api) createMatch(userID string, startsIn time.Duration) string {
	a.t.Helper()
	status, body := a.do(http.MethodPost, "/api/v1/matches", userID, map[string]interface{}{
		"venue":       "Court 1",
		"postal_code": "AB1 2CD",
		"starts_at":   a.clock.Now().Add(startsIn).Format(time.RFC3339),
	})
	require.Equal(a.t, http.StatusCreated, status, body)
	return body["match"].(map[string]interface{})["id"].(string)
}

func TestMatchLifecycleOverHTTP(t *testing.T) {
	a := newAPI(t)
	matchID := a.createMatch("alice", 72*time.Hour)

	status, body := a.do(http.MethodGet, "/api/v1/matches/"+matchID+"/can-edit", "alice", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["can_edit"])

	status, body = a.do(http.MethodPost, "/api/v1/matches/"+matchID+"/join", "bob", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])

	status, body = a.do(http.MethodGet, "/api/v1/me/active-match", "bob", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, matchID, body["match"].(map[string]interface{})["id"])
	assert.Equal(t, "Bob", body["match"].(map[string]interface{})["pairwise"].(map[string]interface{})["foe_display_name"])

	// Carol is refused with a 200 and a reason.
	status, body = a.do(http.MethodPost, "/api/v1/matches/"+matchID+"/join", "carol", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["message"])

	a.clock.Advance(30 * time.Hour)
	status, body = a.do(http.MethodPost, "/api/v1/matches/"+matchID+"/leave", "alice", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["forfeited"])
	assert.Equal(t, "Bob", body["winner_name"])

	status, body = a.do(http.MethodGet, "/api/v1/me/score", "bob", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["current_streak"])
}

func TestSubmitResultOverHTTP(t *testing.T) {
	a := newAPI(t)
	matchID := a.createMatch("alice", time.Hour)
	status, _ := a.do(http.MethodPost, "/api/v1/matches/"+matchID+"/join", "bob", map[string]string{"display_name": "Bobby"})
	require.Equal(t, http.StatusOK, status)

	status, _ = a.do(http.MethodPost, "/api/v1/matches/"+matchID+"/result", "alice",
		map[string]interface{}{"claimed_won": true, "proof_reference": "https://cdn.example.com/p.png"})
	assert.Equal(t, http.StatusConflict, status, "before start")

	a.clock.Advance(2 * time.Hour)
	status, body := a.do(http.MethodPost, "/api/v1/matches/"+matchID+"/result", "alice",
		map[string]interface{}{"proof_reference": "https://cdn.example.com/p.png"})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, body["error"], "claimed_won")

	status, body = a.do(http.MethodPost, "/api/v1/matches/"+matchID+"/result", "alice",
		map[string]interface{}{"claimed_won": true, "proof_reference": "not a url"})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, body["error"], "proof_reference")

	status, _ = a.do(http.MethodPost, "/api/v1/matches/"+matchID+"/result", "alice",
		map[string]interface{}{"claimed_won": true, "proof_reference": "https://cdn.example.com/p.png"})
	require.Equal(t, http.StatusOK, status)
	status, body = a.do(http.MethodPost, "/api/v1/matches/"+matchID+"/result", "bob",
		map[string]interface{}{"claimed_won": false, "proof_reference": "https://cdn.example.com/q.png"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["settled"])
}

func TestErrorMapping(t *testing.T) {
	a := newAPI(t)
	matchID := a.createMatch("alice", 72*time.Hour)

	status, _ := a.do(http.MethodGet, "/api/v1/matches/"+matchID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = a.do(http.MethodGet, "/api/v1/matches/not-a-uuid", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = a.do(http.MethodGet, "/api/v1/matches/00000000-0000-0000-0000-000000000001", "alice", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = a.do(http.MethodPatch, "/api/v1/matches/"+matchID, "bob", map[string]string{"venue": "Elsewhere"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = a.do(http.MethodPost, "/api/v1/matches/"+matchID+"/leave", "bob", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body := a.do(http.MethodPost, "/api/v1/matches", "alice", map[string]interface{}{
		"venue": "Court 2", "postal_code": "AB1", "starts_at": a.clock.Now().Add(time.Hour).Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusConflict, status, body)

	status, _ = a.do(http.MethodPost, "/api/v1/matches", "carol", map[string]interface{}{"unknown": 1})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = a.do(http.MethodGet, "/api/v1/feed?mode=random", "carol", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = a.do(http.MethodPost, "/api/v1/matches/"+matchID+"/proof", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestFeedAndProfileOverHTTP(t *testing.T) {
	a := newAPI(t)
	a.createMatch("alice", 72*time.Hour)

	status, body := a.do(http.MethodPut, "/api/v1/me/profile", "carol", map[string]string{"display_name": "Carol", "postal_code": "ab1 2cd"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "AB12CD", body["postal_code"])

	status, body = a.do(http.MethodGet, "/api/v1/feed", "carol", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "strict", body["mode"])
	assert.Len(t, body["matches"], 1)

	status, body = a.do(http.MethodGet, "/api/v1/feed?mode=explore&limit=5", "carol", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["matches"], 0)
}

func TestUploadProofDisabled(t *testing.T) {
	a := newAPI(t)
	matchID := a.createMatch("alice", 72*time.Hour)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="proof.png"`)
	h.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, _ = part.Write([]byte("png"))
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, a.server.URL+"/api/v1/matches/"+matchID+"/proof", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token(t, "alice"))
	res, err := a.server.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestPublicEndpoints(t *testing.T) {
	a := newAPI(t)

	res, err := a.server.Client().Get(a.server.URL + "/healthz")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	a.createMatch("alice", 72*time.Hour)
	a.do(http.MethodPost, "/api/v1/matches/00000000-0000-0000-0000-000000000001/join", "bob", nil)

	res, err = a.server.Client().Get(a.server.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "streakmatch_")
}
