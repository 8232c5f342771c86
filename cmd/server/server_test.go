package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/mfl-sync/internal/apperr"
	"github.com/yourorg/mfl-sync/internal/config"
	"github.com/yourorg/mfl-sync/internal/lock"
	"github.com/yourorg/mfl-sync/internal/model"
	"github.com/yourorg/mfl-sync/internal/store"
	"github.com/yourorg/mfl-sync/internal/syncer"
	"github.com/yourorg/mfl-sync/internal/valuation"
)

const wallet = "0x1234567890abcdef1234567890abcdef12345678"

type stubAPI struct{}

func (stubAPI) FetchPlayer(_ context.Context, id int64) (*model.Player, error) {
	if id != 7 {
		return nil, &apperr.UpstreamError{Endpoint: "/players", StatusCode: 404, Err: errors.New("not found")}
	}
	return &model.Player{ID: 7, Metadata: model.PlayerMetadata{
		FirstName: "Ana", LastName: "Silva", Overall: 78, Age: 24,
		Positions:  []model.Position{model.CAM, model.CM},
		Attributes: model.Attributes{Pace: 72, Shooting: 70, Passing: 84, Dribbling: 82, Defense: 50, Physical: 64},
	}}, nil
}

func (s stubAPI) FetchOwnerPlayers(ctx context.Context, _ string, _ int) ([]model.Player, error) {
	p, _ := s.FetchPlayer(ctx, 7)
	return []model.Player{*p}, nil
}

func (stubAPI) FetchClubs(context.Context, string) ([]model.ClubData, error) {
	return []model.ClubData{{Club: model.Club{ID: 1, Name: "Porto Pirates"}}}, nil
}

func (stubAPI) FetchUpcomingMatches(context.Context, int64) ([]model.Match, error) { return nil, nil }
func (stubAPI) FetchPastMatches(context.Context, int64) ([]model.Match, error)     { return nil, nil }
func (stubAPI) FetchOpponentPastMatches(context.Context, int64, int) ([]model.Match, error) {
	return nil, nil
}
func (stubAPI) FetchMatchFormation(context.Context, int64) (*model.MatchFormations, error) {
	return nil, nil
}
func (stubAPI) FetchMarketComparables(context.Context, model.ComparableSearch) ([]model.MarketListing, error) {
	return nil, nil
}
func (stubAPI) FetchSaleHistory(context.Context, int64, int) ([]model.SaleEntry, error) {
	return nil, nil
}
func (stubAPI) FetchExperienceHistory(context.Context, int64) ([]model.ProgressionPoint, error) {
	return nil, nil
}
func (stubAPI) FetchPlayerMatches(context.Context, int64, int) (int, error) { return 0, nil }

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *store.Memory) {
	t.Helper()
	cfg := config.Config{SyncRetryDelay: time.Millisecond, OpponentPause: 0}
	if mutate != nil {
		mutate(&cfg)
	}
	st := store.NewMemory()
	srv := NewServer(cfg, syncer.Deps{
		Store:     st,
		API:       stubAPI{},
		Estimator: valuation.NewEstimator(valuation.WithoutJitter()),
	}, nil)
	t.Cleanup(srv.Close)
	return srv, st
}

func do(t *testing.T, h http.Handler, method, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	var body map[string]interface{}
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHandleSync_RunsSession(t *testing.T) {
	srv, st := newTestServer(t, nil)
	h := srv.routes()

	rec, body := do(t, h, http.MethodPost, "/sync?wallet="+wallet+"&force=true")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "started", body["status"])
	assert.Equal(t, true, body["force"])

	srv.running.Wait()
	assert.Equal(t, 1, st.Rows(store.TableAgencyPlayers))
	assert.Equal(t, 1, st.Rows(store.TableMarketValues))

	rec, body = do(t, h, http.MethodGet, "/sync/progress?wallet="+wallet)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["syncing"])
	assert.Len(t, body["progress"], 7)

	rec, body = do(t, h, http.MethodGet, "/sync/status?wallet="+wallet)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["status"], 7)
}

func TestHandleSync_RejectsBadRequests(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.routes()

	tests := []struct {
		name   string
		method string
		target string
		want   int
	}{
		{"wrong method", http.MethodGet, "/sync?wallet=" + wallet, http.StatusMethodNotAllowed},
		{"missing wallet", http.MethodPost, "/sync", http.StatusBadRequest},
		{"malformed wallet", http.MethodPost, "/sync?wallet=0xnothex", http.StatusBadRequest},
		{"cap out of range", http.MethodPost, "/sync?wallet=" + wallet + "&cap=5000", http.StatusBadRequest},
		{"cap not a number", http.MethodPost, "/sync?wallet=" + wallet + "&cap=ten", http.StatusBadRequest},
		{"force not a boolean", http.MethodPost, "/sync?wallet=" + wallet + "&force=maybe", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, h, tt.method, tt.target)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, "error", body["status"])
		})
	}
}

func TestHandleSync_RateLimited(t *testing.T) {
	srv, _ := newTestServer(t, func(c *config.Config) {
		c.TriggerRateRPS = 0.001
		c.TriggerRateBurst = 1
	})
	h := srv.routes()

	rec, _ := do(t, h, http.MethodPost, "/sync?wallet="+wallet)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	rec, _ = do(t, h, http.MethodPost, "/sync?wallet="+wallet)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestHandleStop_WithoutSession(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec, body := do(t, srv.routes(), http.MethodPost, "/sync/stop?wallet="+wallet)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["stopped"])
}

func TestHandleRatings(t *testing.T) {
	srv, st := newTestServer(t, nil)
	h := srv.routes()

	rec, body := do(t, h, http.MethodGet, "/ratings?player=7")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["best"], 5)
	assert.Len(t, body["positions"], len(model.AllPositions))
	assert.Equal(t, 1, st.Rows(store.TablePlayers))

	rec, _ = do(t, h, http.MethodGet, "/ratings?player=8")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/ratings?player=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	srv, st := newTestServer(t, nil)
	h := srv.routes()

	rec, body := do(t, h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", body["status"])
	assert.NotContains(t, body, "playersSyncedAt")

	_, _ = do(t, h, http.MethodGet, "/ratings?player=7")
	_, body = do(t, h, http.MethodGet, "/health")
	assert.NotEmpty(t, body["playersSyncedAt"])

	st.FailPing(errors.New("connection refused"))
	rec, body = do(t, h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "UNAVAILABLE", body["status"])
}

func TestHandleMetrics(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec, _ := do(t, srv.routes(), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&apperr.ValidationError{Field: "wallet", Reason: "must not be empty"}, http.StatusBadRequest},
		{syncer.ErrSyncInProgress, http.StatusConflict},
		{fmt.Errorf("start: %w", lock.ErrLocked), http.StatusConflict},
		{&apperr.UpstreamError{Endpoint: "/players", StatusCode: 404, Err: errors.New("gone")}, http.StatusNotFound},
		{&apperr.UpstreamError{Endpoint: "/players", StatusCode: 503, Err: errors.New("down")}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
