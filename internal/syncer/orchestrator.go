// Package syncer runs sync sessions: it walks the data categories in dependency
// order, skips the ones that are still fresh, retries failures, reports progress
// and persists the results including derived ratings and market values.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourorg/mfl-sync/internal/apperr"
	"github.com/yourorg/mfl-sync/internal/fetch"
	"github.com/yourorg/mfl-sync/internal/freshness"
	"github.com/yourorg/mfl-sync/internal/lock"
	"github.com/yourorg/mfl-sync/internal/metrics"
	"github.com/yourorg/mfl-sync/internal/model"
	"github.com/yourorg/mfl-sync/internal/otel"
	"github.com/yourorg/mfl-sync/internal/ratelimit"
	"github.com/yourorg/mfl-sync/internal/rating"
	"github.com/yourorg/mfl-sync/internal/store"
	"github.com/yourorg/mfl-sync/internal/validation"
	"github.com/yourorg/mfl-sync/internal/valuation"
)

// ErrSyncInProgress is returned when a session is already running on the orchestrator.
var ErrSyncInProgress = errors.New("sync already in progress")

// Deps are the collaborators of an Orchestrator. Store and API are required;
// everything else falls back to a default instance.
type Deps struct {
	Store      store.Store
	API        fetch.API
	Gate       *freshness.Gate
	Calculator *rating.Calculator
	Estimator  *valuation.Estimator
	Limiter    *ratelimit.Window
	Cache      *valuation.Cache
	Locker     lock.Locker
	Metrics    *metrics.Recorder
	Clock      func() time.Time
}

// CategoryFailure is one failed category of a session.
type CategoryFailure struct {
	Category model.Category
	Err      error
}

// SessionError aggregates the failures of a session.
type SessionError struct {
	Wallet   string
	Failures []CategoryFailure
}

func (e *SessionError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %v", f.Category, f.Err)
	}
	return fmt.Sprintf("sync failed for %d categories: %s", len(e.Failures), strings.Join(parts, "; "))
}

func (e *SessionError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// Orchestrator coordinates sync sessions. It runs at most one session at a time;
// the wallet lock extends that guarantee across orchestrators and processes.
type Orchestrator struct {
	deps     Deps
	cfg      settings
	progress *tracker

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wallet  string
}

// New creates an Orchestrator over deps.
func New(deps Deps, opts ...Option) *Orchestrator {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Gate == nil {
		deps.Gate = freshness.Default().WithClock(deps.Clock)
	}
	if deps.Calculator == nil {
		deps.Calculator = rating.NewCalculator()
	}
	if deps.Estimator == nil {
		deps.Estimator = valuation.NewEstimator()
	}
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.Default()
	}
	if deps.Cache == nil {
		deps.Cache = valuation.NewCache(0).WithClock(deps.Clock)
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewMemory(cfg.lockTTL)
	}
	return &Orchestrator{
		deps:     deps,
		cfg:      cfg,
		progress: newTracker(deps.Store, deps.Clock, cfg.observers),
	}
}

// session is the state of one SyncAllData call.
type session struct {
	id         string
	wallet     string
	opts       SyncOptions
	maxRetries int
	retryDelay time.Duration
	log        *logrus.Entry
}

// category describes how one data category is checked and synced.
type category struct {
	name  model.Category
	label string
	// global categories keep their sync_status row under an empty wallet.
	global bool
	// lastSynced reads the freshness timestamp. Nil disables the category gate.
	lastSynced func(ctx context.Context, s *session) (*time.Time, error)
	run        func(ctx context.Context, s *session) (string, error)
}

func (o *Orchestrator) categories() []category {
	return []category{
		{name: model.CategoryUserInfo, label: "User info", lastSynced: o.userLastSynced, run: o.syncUserInfo},
		{name: model.CategoryClubData, label: "Club data", lastSynced: o.statusLastSynced(model.CategoryClubData), run: o.syncClubs},
		{name: model.CategoryAgencyPlayers, label: "Agency players", lastSynced: o.agencyLastSynced, run: o.syncAgencyPlayers},
		{name: model.CategoryMarketValues, label: "Market values", run: o.syncMarketValues},
		{name: model.CategoryMatches, label: "Matches", lastSynced: o.statusLastSynced(model.CategoryMatches), run: o.syncMatches},
		{name: model.CategoryUpcomingOpposition, label: "Upcoming opposition", lastSynced: o.statusLastSynced(model.CategoryUpcomingOpposition), run: o.syncOpponents(model.CategoryUpcomingOpposition)},
		{name: model.CategoryOpponentMatches, label: "Opponent matches", global: true, lastSynced: o.opponentLastSynced, run: o.syncOpponents(model.CategoryOpponentMatches)},
	}
}

// SyncAllData runs every category for wallet in order. Category failures do not
// stop the session; they are collected into a *SessionError. A stopped session
// returns a cancellation error and calls neither OnComplete nor OnError.
func (o *Orchestrator) SyncAllData(ctx context.Context, wallet string, opts SyncOptions) error {
	var playerCap *int
	if opts.PlayerCap != 0 {
		playerCap = &opts.PlayerCap
	}
	wallet, err := validation.ValidateSyncOptions(wallet, playerCap)
	if err != nil {
		return err
	}

	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return ErrSyncInProgress
	}
	sessionCtx, cancel := context.WithCancel(ctx)
	o.running = true
	o.cancel = cancel
	o.wallet = wallet
	o.mu.Unlock()

	defer func() {
		cancel()
		o.mu.Lock()
		o.running = false
		o.cancel = nil
		o.mu.Unlock()
	}()

	lease, err := lock.Hold(sessionCtx, o.deps.Locker, lock.Key(wallet), o.cfg.lockTTL)
	if err != nil {
		return err
	}
	defer func() {
		rctx, rcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer rcancel()
		if err := lease.Release(rctx); err != nil {
			logrus.WithError(err).WithField("wallet", wallet).Warn("Failed to release sync lock")
		}
	}()
	go func() {
		select {
		case <-lease.Lost():
			cancel()
		case <-sessionCtx.Done():
		}
	}()

	s := &session{
		id:         uuid.NewString(),
		wallet:     wallet,
		opts:       opts,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
	}
	if s.maxRetries <= 0 {
		s.maxRetries = o.cfg.maxRetries
	}
	if s.retryDelay <= 0 {
		s.retryDelay = o.cfg.retryDelay
	}
	s.log = logrus.WithFields(logrus.Fields{"session": s.id, "wallet": wallet})

	o.deps.Metrics.SessionStarted()
	defer o.deps.Metrics.SessionEnded()

	sessionCtx, span := otel.StartSpan(sessionCtx, "sync.session", wallet, "")
	defer span.End()

	o.progress.begin(opts.OnProgress)
	cached := o.deps.Cache.Purge()
	s.log.WithFields(logrus.Fields{"force": opts.ForceRefresh, "cached_estimates": cached}).Info("Sync session started")

	if err := o.TestConnection(sessionCtx); err != nil {
		if sessionCtx.Err() != nil {
			return apperr.Cancelled("Sync", sessionCtx.Err())
		}
		return o.fail(sessionCtx, s, &SessionError{Wallet: wallet, Failures: []CategoryFailure{
			{Category: model.CategorySyncError, Err: fmt.Errorf("connection test failed: %w", err)},
		}})
	}

	var failures []CategoryFailure
	for _, cat := range o.categories() {
		if err := sessionCtx.Err(); err != nil {
			break
		}
		if err := o.runCategory(sessionCtx, s, cat); err != nil {
			if apperr.IsCancellation(err) {
				break
			}
			failures = append(failures, CategoryFailure{Category: cat.name, Err: err})
		}
	}

	if err := sessionCtx.Err(); err != nil {
		s.log.Info("Sync session cancelled")
		return apperr.Cancelled("Sync", err)
	}
	if len(failures) > 0 {
		return o.fail(sessionCtx, s, &SessionError{Wallet: wallet, Failures: failures})
	}

	s.log.Info("Sync session completed")
	if opts.OnComplete != nil {
		opts.OnComplete()
	}
	return nil
}

// fail records the synthetic sync_error entry and reports err.
func (o *Orchestrator) fail(ctx context.Context, s *session, err *SessionError) error {
	last := err.Failures[len(err.Failures)-1]
	o.progress.emit(ctx, model.SyncRecord{
		Category: model.CategorySyncError,
		Wallet:   s.wallet,
		Status:   model.StatusFailed,
		Message:  fmt.Sprintf("Sync finished with %d failed categories, last: %s", len(err.Failures), last.Category),
		Error:    err.Error(),
	})
	otel.RecordError(ctx, err)
	s.log.WithError(err).Error("Sync session failed")
	if s.opts.OnError != nil {
		s.opts.OnError(err)
	}
	return err
}

// runCategory applies the freshness gate to cat and, when stale, runs it with retries.
func (o *Orchestrator) runCategory(ctx context.Context, s *session, cat category) error {
	start := o.deps.Clock()
	wallet := s.wallet
	if cat.global {
		wallet = ""
	}
	log := s.log.WithField("category", cat.name)

	if cat.lastSynced != nil {
		last, err := cat.lastSynced(ctx, s)
		if err != nil {
			if ctx.Err() != nil {
				return apperr.Cancelled(cat.label+" sync", ctx.Err())
			}
			log.WithError(err).Warn("Could not read last sync time, syncing")
			last = nil
		}
		if !o.deps.Gate.NeedsSync(cat.name, last, s.opts.ForceRefresh) {
			o.progress.emit(ctx, model.SyncRecord{
				Category:     cat.name,
				Wallet:       wallet,
				Status:       model.StatusCompleted,
				Progress:     100,
				Message:      cat.label + " is up to date",
				LastSyncedAt: last,
			})
			o.deps.Metrics.CategoryFinished(string(cat.name), "up_to_date", o.deps.Clock().Sub(start))
			log.Debug("Category up to date")
			return nil
		}
	}

	ctx, span := otel.StartSpan(ctx, "sync.category", s.wallet, string(cat.name))
	defer span.End()

	o.progress.emit(ctx, model.SyncRecord{
		Category: cat.name,
		Wallet:   wallet,
		Status:   model.StatusInProgress,
		Message:  "Syncing " + strings.ToLower(cat.label) + "...",
	})

	message, err := withRetry(ctx, log, cat.label+" sync", s.maxRetries, s.retryDelay, func(ctx context.Context) (string, error) {
		return cat.run(ctx, s)
	})
	elapsed := o.deps.Clock().Sub(start)

	if err != nil {
		if apperr.IsCancellation(err) {
			o.progress.emit(ctx, model.SyncRecord{
				Category: cat.name,
				Wallet:   wallet,
				Status:   model.StatusCancelled,
				Message:  cat.label + " sync cancelled",
			})
			o.deps.Metrics.CategoryFinished(string(cat.name), string(model.StatusCancelled), elapsed)
			return err
		}
		otel.RecordError(ctx, err)
		o.progress.emit(ctx, model.SyncRecord{
			Category: cat.name,
			Wallet:   wallet,
			Status:   model.StatusFailed,
			Message:  "Failed to sync " + strings.ToLower(cat.label),
			Error:    err.Error(),
		})
		o.deps.Metrics.CategoryFinished(string(cat.name), string(model.StatusFailed), elapsed)
		return err
	}

	now := o.deps.Clock()
	o.progress.emit(ctx, model.SyncRecord{
		Category:     cat.name,
		Wallet:       wallet,
		Status:       model.StatusCompleted,
		Progress:     100,
		Message:      message,
		LastSyncedAt: &now,
	})
	o.deps.Metrics.CategoryFinished(string(cat.name), string(model.StatusCompleted), elapsed)
	log.WithField("elapsed", elapsed).Info(message)
	return nil
}

// report updates the in-progress entry of a running category.
func (o *Orchestrator) report(ctx context.Context, s *session, cat model.Category, percent int, message string) {
	wallet := s.wallet
	if cat == model.CategoryOpponentMatches {
		wallet = ""
	}
	o.progress.emit(ctx, model.SyncRecord{
		Category: cat,
		Wallet:   wallet,
		Status:   model.StatusInProgress,
		Progress: min(max(percent, 0), 99),
		Message:  message,
	})
}

// StopSync cancels the running session. It reports false when nothing was running.
func (o *Orchestrator) StopSync() bool {
	o.mu.Lock()
	cancel := o.cancel
	wallet := o.wallet
	o.mu.Unlock()
	if cancel == nil {
		return false
	}

	cancel()
	o.progress.clear()
	o.progress.publish(context.Background(), model.SyncRecord{
		Category: model.CategorySyncCancelled,
		Wallet:   wallet,
		Status:   model.StatusCancelled,
		Message:  "Sync cancelled by user",
	})
	logrus.WithField("wallet", wallet).Info("Sync cancelled by user")
	return true
}

// GetCurrentProgress returns the progress of the running or last session.
func (o *Orchestrator) GetCurrentProgress() []model.SyncRecord {
	return o.progress.snapshot()
}

// GetSyncStatus returns the persisted status rows of wallet, including global categories.
func (o *Orchestrator) GetSyncStatus(ctx context.Context, wallet string) ([]model.SyncRecord, error) {
	wallet, err := validation.NormalizeWallet(wallet)
	if err != nil {
		return nil, err
	}
	return o.deps.Store.ListSyncStatus(ctx, wallet)
}

// TestConnection checks that the store is reachable.
func (o *Orchestrator) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return o.deps.Store.Ping(ctx)
}

// PlayersLastSynced returns when any player record was last refreshed, or nil
// when none is stored.
func (o *Orchestrator) PlayersLastSynced(ctx context.Context) (*time.Time, error) {
	return o.deps.Store.LatestPlayerSync(ctx)
}

// IsSyncing reports whether a session is running.
func (o *Orchestrator) IsSyncing() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}
