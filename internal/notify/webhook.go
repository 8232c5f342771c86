// Package notify forwards sync progress events to an external webhook.
package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/mfl-sync/internal/model"
)

// Config holds configuration for the progress webhook
type Config struct {
	URL       string
	APIKey    string
	BatchSize int
	Interval  time.Duration
}

// Webhook batches progress events and POSTs them either when a batch fills up
// or on every interval tick.
type Webhook struct {
	config     Config
	httpClient *http.Client
	mutex      sync.Mutex
	batch      []model.SyncRecord
	lastExport time.Time
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewWebhook starts the periodic exporter. It returns nil when no URL is configured.
func NewWebhook(config Config) *Webhook {
	if config.URL == "" {
		return nil
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 20
	}
	if config.Interval <= 0 {
		config.Interval = 30 * time.Second
	}

	w := &Webhook{
		config: config,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
				IdleConnTimeout: 90 * time.Second,
			},
		},
		batch: make([]model.SyncRecord, 0, config.BatchSize),
	}
	w.ctx, w.cancel = context.WithCancel(context.Background())

	w.wg.Add(1)
	go w.periodicExport()

	logrus.WithField("url", config.URL).Info("Progress webhook initialized")
	return w
}

// Observe queues a progress event. It satisfies the orchestrator's observer hook.
func (w *Webhook) Observe(rec model.SyncRecord) {
	if w == nil {
		return
	}
	w.mutex.Lock()
	w.batch = append(w.batch, rec)
	full := len(w.batch) >= w.config.BatchSize
	w.mutex.Unlock()

	if full {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.flush()
		}()
	}
}

func (w *Webhook) periodicExport() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.flush()
		case <-w.ctx.Done():
			return
		}
	}
}

func (w *Webhook) flush() {
	w.mutex.Lock()
	if len(w.batch) == 0 {
		w.mutex.Unlock()
		return
	}
	events := w.batch
	w.batch = make([]model.SyncRecord, 0, w.config.BatchSize)
	w.lastExport = time.Now()
	w.mutex.Unlock()

	if err := w.post(events); err != nil {
		logrus.WithError(err).WithField("events", len(events)).Warn("Progress webhook export failed")
		return
	}
	logrus.WithField("events", len(events)).Debug("Progress events exported")
}

func (w *Webhook) post(events []model.SyncRecord) error {
	payload := struct {
		Events     []model.SyncRecord `json:"events"`
		ExportTime string             `json:"export_time"`
		Count      int                `json:"count"`
	}{
		Events:     events,
		ExportTime: time.Now().UTC().Format(time.RFC3339),
		Count:      len(events),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, w.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.config.APIKey)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned error status: %d", resp.StatusCode)
	}
	return nil
}

// Stop ends the periodic export and sends whatever is still queued.
func (w *Webhook) Stop() {
	if w == nil {
		return
	}
	w.cancel()
	w.wg.Wait()
	w.flush()
}

// Status reports the exporter state for the status endpoint.
func (w *Webhook) Status() map[string]interface{} {
	if w == nil {
		return map[string]interface{}{"enabled": false}
	}
	w.mutex.Lock()
	defer w.mutex.Unlock()

	status := map[string]interface{}{
		"enabled":         true,
		"batch_size":      w.config.BatchSize,
		"export_interval": w.config.Interval.String(),
		"current_batch":   len(w.batch),
	}
	if !w.lastExport.IsZero() {
		status["last_export"] = w.lastExport.Format(time.RFC3339)
	}
	return status
}
