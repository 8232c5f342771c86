package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/mfl-sync/internal/model"
	"github.com/yourorg/mfl-sync/internal/store"
)

// Observer receives every progress event of a session.
type Observer func(model.SyncRecord)

// tracker holds the in-memory progress list, one entry per category. Observers
// are called with the lock held, in event order; they must not call back into
// the orchestrator.
type tracker struct {
	mu        sync.RWMutex
	records   []model.SyncRecord
	observers []Observer
	session   Observer
	store     store.Store
	now       func() time.Time
}

func newTracker(st store.Store, now func() time.Time, observers []Observer) *tracker {
	return &tracker{store: st, now: now, observers: observers}
}

// begin resets the list for a new session with its own callback.
func (t *tracker) begin(onProgress Observer) {
	t.mu.Lock()
	t.records = nil
	t.session = onProgress
	t.mu.Unlock()
}

func (t *tracker) clear() {
	t.mu.Lock()
	t.records = nil
	t.mu.Unlock()
}

// emit publishes rec and mirrors it to the store. Once ctx is cancelled the
// event is only mirrored, so nothing reaches observers after a stop.
func (t *tracker) emit(ctx context.Context, rec model.SyncRecord) {
	rec.UpdatedAt = t.now()

	t.mu.Lock()
	if ctx.Err() == nil {
		t.publishLocked(rec)
	}
	t.mu.Unlock()

	t.mirror(ctx, rec)
}

// publish adds rec regardless of cancellation.
func (t *tracker) publish(ctx context.Context, rec model.SyncRecord) {
	rec.UpdatedAt = t.now()
	t.mu.Lock()
	t.publishLocked(rec)
	t.mu.Unlock()
	t.mirror(ctx, rec)
}

func (t *tracker) publishLocked(rec model.SyncRecord) {
	replaced := false
	for i := range t.records {
		if t.records[i].Category == rec.Category {
			t.records[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		t.records = append(t.records, rec)
	}

	if t.session != nil {
		t.session(rec)
	}
	for _, obs := range t.observers {
		obs(rec)
	}
}

// mirror persists rec as the category's sync_status row. Failures are logged only.
func (t *tracker) mirror(ctx context.Context, rec model.SyncRecord) {
	if rec.Category == model.CategorySyncCancelled {
		return
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := t.store.UpsertSyncStatus(wctx, rec); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"category": rec.Category,
			"status":   rec.Status,
		}).Warn("Failed to persist sync status")
	}
}

// snapshot returns a copy of the current list.
func (t *tracker) snapshot() []model.SyncRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]model.SyncRecord, len(t.records))
	copy(out, t.records)
	return out
}
