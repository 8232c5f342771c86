package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/mfl-sync/internal/model"
)

type capture struct {
	mu      sync.Mutex
	batches [][]model.SyncRecord
	auth    []string
}

func (c *capture) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Events []model.SyncRecord `json:"events"`
			Count  int                `json:"count"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, len(payload.Events), payload.Count)

		c.mu.Lock()
		c.batches = append(c.batches, payload.Events)
		c.auth = append(c.auth, r.Header.Get("Authorization"))
		c.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}
}

func (c *capture) events() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, b := range c.batches {
		n += len(b)
	}
	return n
}

func TestWebhook_FlushesFullBatch(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler(t))
	defer srv.Close()

	w := NewWebhook(Config{URL: srv.URL, APIKey: "secret", BatchSize: 2, Interval: time.Hour})
	require.NotNil(t, w)
	defer w.Stop()

	w.Observe(model.SyncRecord{Category: model.CategoryClubData, Status: model.StatusInProgress})
	w.Observe(model.SyncRecord{Category: model.CategoryClubData, Status: model.StatusCompleted, Progress: 100})

	assert.Eventually(t, func() bool { return c.events() == 2 }, time.Second, 10*time.Millisecond)
	c.mu.Lock()
	assert.Equal(t, "Bearer secret", c.auth[0])
	c.mu.Unlock()
}

func TestWebhook_StopSendsRemainder(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler(t))
	defer srv.Close()

	w := NewWebhook(Config{URL: srv.URL, BatchSize: 50, Interval: time.Hour})
	w.Observe(model.SyncRecord{Category: model.CategoryMatches, Status: model.StatusCompleted})
	assert.Equal(t, 1, w.Status()["current_batch"])

	w.Stop()
	assert.Equal(t, 1, c.events())
	assert.Empty(t, c.auth[0])
}

func TestWebhook_IntervalFlush(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler(t))
	defer srv.Close()

	w := NewWebhook(Config{URL: srv.URL, BatchSize: 50, Interval: 20 * time.Millisecond})
	defer w.Stop()
	w.Observe(model.SyncRecord{Category: model.CategoryUserInfo, Status: model.StatusCompleted})

	assert.Eventually(t, func() bool { return c.events() == 1 }, time.Second, 10*time.Millisecond)
}

func TestWebhook_DisabledWithoutURL(t *testing.T) {
	w := NewWebhook(Config{})
	assert.Nil(t, w)
	assert.NotPanics(t, func() {
		w.Observe(model.SyncRecord{})
		w.Stop()
	})
	assert.Equal(t, false, w.Status()["enabled"])
}
