package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/yourorg/mfl-sync/internal/apperr"
	"github.com/yourorg/mfl-sync/internal/config"
	"github.com/yourorg/mfl-sync/internal/lock"
	"github.com/yourorg/mfl-sync/internal/model"
	"github.com/yourorg/mfl-sync/internal/notify"
	"github.com/yourorg/mfl-sync/internal/rating"
	"github.com/yourorg/mfl-sync/internal/syncer"
	"github.com/yourorg/mfl-sync/internal/validation"
	"golang.org/x/time/rate"
)

// startTime records when the service was initialized for uptime reporting
var startTime = time.Now()

// Server exposes sync sessions over HTTP. Every wallet gets its own
// orchestrator so different wallets can sync concurrently while one wallet
// never runs two sessions.
type Server struct {
	config  config.Config
	deps    syncer.Deps
	options []syncer.Option

	// HTTP server instance
	server *http.Server

	// Limits how often sessions can be triggered
	rateLimit *rate.Limiter

	webhook *notify.Webhook

	// players serves single-player lookups and health checks
	players *syncer.Orchestrator

	mu       sync.Mutex
	sessions map[string]*syncer.Orchestrator

	// Background sessions outlive their request but not the process
	baseCtx context.Context
	stopAll context.CancelFunc
	running sync.WaitGroup
}

// NewServer creates a server sharing deps across all wallet orchestrators.
func NewServer(cfg config.Config, deps syncer.Deps, webhook *notify.Webhook) *Server {
	if deps.Calculator == nil {
		deps.Calculator = rating.NewCalculator()
	}

	options := []syncer.Option{
		syncer.WithRetryPolicy(cfg.SyncMaxRetries, cfg.SyncRetryDelay),
		syncer.WithLockTTL(cfg.LockTTL),
		syncer.WithOpponentTimeouts(cfg.OpponentTimeout, cfg.FormationTimeout),
		syncer.WithOpponentPause(cfg.OpponentPause),
		syncer.WithMarketData(cfg.MarketDataMaxWait, cfg.MarketDataMaxFailures),
	}
	if webhook != nil {
		options = append(options, syncer.WithObserver(webhook.Observe))
	}

	rps := rate.Limit(cfg.TriggerRateRPS)
	if cfg.TriggerRateRPS <= 0 {
		rps = rate.Inf
	}

	s := &Server{
		config:    cfg,
		deps:      deps,
		options:   options,
		rateLimit: rate.NewLimiter(rps, max(1, cfg.TriggerRateBurst)),
		webhook:   webhook,
		sessions:  make(map[string]*syncer.Orchestrator),
	}
	s.players = syncer.New(deps, options...)
	s.baseCtx, s.stopAll = context.WithCancel(context.Background())
	return s
}

// orchestrator returns the orchestrator of wallet, creating it on first use.
func (s *Server) orchestrator(wallet string) *syncer.Orchestrator {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.sessions[wallet]
	if !ok {
		o = syncer.New(s.deps, s.options...)
		s.sessions[wallet] = o
	}
	return o
}

func (s *Server) existing(wallet string) *syncer.Orchestrator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[wallet]
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/sync", s.handleSync)
	mux.HandleFunc("/sync/stop", s.handleStop)
	mux.HandleFunc("/sync/progress", s.handleProgress)
	mux.HandleFunc("/sync/status", s.handleStatus)
	mux.HandleFunc("/ratings", s.handleRatings)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Start begins the HTTP server and sets up graceful shutdown
func (s *Server) Start() {
	s.server = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("Server starting on port %s", s.config.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Error starting server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server shutdown failed: %v", err)
	}
	s.Close()
	logrus.Info("Server stopped")
}

// Close stops running sessions, waits for them to return and flushes the webhook.
func (s *Server) Close() {
	s.mu.Lock()
	for _, o := range s.sessions {
		o.StopSync()
	}
	s.mu.Unlock()
	s.stopAll()
	s.running.Wait()
	s.webhook.Stop()
}

// handleSync starts a session in the background.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !s.rateLimit.Allow() {
		errorResponse(w, http.StatusTooManyRequests, "Too many sync requests")
		return
	}

	force, err := queryBool(r, "force")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	playerCap, err := queryInt(r, "cap", s.config.SyncPlayerCap)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	var capPtr *int
	if playerCap != 0 {
		capPtr = &playerCap
	}
	wallet, err := validation.ValidateSyncOptions(r.URL.Query().Get("wallet"), capPtr)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	o := s.orchestrator(wallet)
	if o.IsSyncing() {
		errorResponse(w, http.StatusConflict, syncer.ErrSyncInProgress.Error())
		return
	}

	log := logrus.WithField("wallet", wallet)
	s.running.Add(1)
	go func() {
		defer s.running.Done()
		err := o.SyncAllData(s.baseCtx, wallet, syncer.SyncOptions{
			ForceRefresh: force,
			PlayerCap:    playerCap,
		})
		switch {
		case err == nil:
		case errors.Is(err, syncer.ErrSyncInProgress), errors.Is(err, lock.ErrLocked):
			log.WithError(err).Warn("Sync not started")
		case apperr.IsCancellation(err):
			log.Info("Sync stopped")
		default:
			log.WithError(err).Warn("Sync finished with errors")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status": "started",
		"wallet": wallet,
		"force":  force,
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	wallet, err := validation.NormalizeWallet(r.URL.Query().Get("wallet"))
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	stopped := false
	if o := s.existing(wallet); o != nil {
		stopped = o.StopSync()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"wallet": wallet, "stopped": stopped})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	wallet, err := validation.NormalizeWallet(r.URL.Query().Get("wallet"))
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	progress := []model.SyncRecord{}
	syncing := false
	if o := s.existing(wallet); o != nil {
		progress = o.GetCurrentProgress()
		syncing = o.IsSyncing()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"wallet":   wallet,
		"syncing":  syncing,
		"progress": progress,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rows, err := s.players.GetSyncStatus(r.Context(), r.URL.Query().Get("wallet"))
	if err != nil {
		errorResponse(w, statusFor(err), err.Error())
		return
	}
	if rows == nil {
		rows = []model.SyncRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": rows})
}

// handleRatings returns the position ratings of one player.
func (s *Server) handleRatings(w http.ResponseWriter, r *http.Request) {
	id, err := queryInt(r, "player", 0)
	if err != nil || id <= 0 {
		errorResponse(w, http.StatusBadRequest, "player must be a positive id")
		return
	}
	force, err := queryBool(r, "force")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	player, err := s.players.SyncPlayer(r.Context(), int64(id), force)
	if err != nil {
		errorResponse(w, statusFor(err), err.Error())
		return
	}
	best, err := s.deps.Calculator.BestPositions(player.Metadata, rating.DefaultBestPositions)
	if err != nil {
		errorResponse(w, statusFor(err), err.Error())
		return
	}
	all, err := s.deps.Calculator.CalculateAllPositionOVRs(player.Metadata)
	if err != nil {
		errorResponse(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"player":    player,
		"best":      best,
		"positions": rating.Ratings(all),
	})
}

// handleHealth reports whether the store is reachable
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "OK", http.StatusOK
	if err := s.players.TestConnection(r.Context()); err != nil {
		logrus.WithError(err).Warn("Health check failed")
		status, code = "UNAVAILABLE", http.StatusServiceUnavailable
	}
	body := map[string]interface{}{
		"status":    status,
		"version":   "1.0.0",
		"uptime":    time.Since(startTime).Round(time.Second).String(),
		"webhook":   s.webhook.Status(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if code == http.StatusOK {
		if last, err := s.players.PlayersLastSynced(r.Context()); err != nil {
			logrus.WithError(err).Debug("Could not read player sync time")
		} else if last != nil {
			body["playersSyncedAt"] = last.UTC().Format(time.RFC3339)
		}
	}
	writeJSON(w, code, body)
}
