// Package fetch provides the client for the upstream game API.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"github.com/yourorg/mfl-sync/internal/apperr"
	"github.com/yourorg/mfl-sync/internal/model"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the production game API.
const DefaultBaseURL = "https://z519wdyajg.execute-api.us-east-1.amazonaws.com/prod"

// API defines the upstream calls the sync pipeline depends on. Every call
// honours ctx cancellation.
type API interface {
	FetchPlayer(ctx context.Context, playerID int64) (*model.Player, error)
	FetchOwnerPlayers(ctx context.Context, wallet string, limit int) ([]model.Player, error)
	FetchClubs(ctx context.Context, wallet string) ([]model.ClubData, error)
	FetchUpcomingMatches(ctx context.Context, clubID int64) ([]model.Match, error)
	FetchPastMatches(ctx context.Context, clubID int64) ([]model.Match, error)
	FetchOpponentPastMatches(ctx context.Context, squadID int64, limit int) ([]model.Match, error)
	FetchMatchFormation(ctx context.Context, matchID int64) (*model.MatchFormations, error)
	FetchMarketComparables(ctx context.Context, search model.ComparableSearch) ([]model.MarketListing, error)
	FetchSaleHistory(ctx context.Context, playerID int64, limit int) ([]model.SaleEntry, error)
	FetchExperienceHistory(ctx context.Context, playerID int64) ([]model.ProgressionPoint, error)
	FetchPlayerMatches(ctx context.Context, playerID int64, limit int) (int, error)
}

// ErrorObserver is told about every failed upstream call.
type ErrorObserver interface {
	UpstreamError(endpoint string)
}

// Config holds connection settings for the API client
type Config struct {
	BaseURL string

	// Timeout bounds a single request including low-level retries
	Timeout time.Duration

	// RetryMax is the number of transport-level retries per request
	RetryMax int

	// RatePerSecond and Burst smooth the request rate across the process
	RatePerSecond float64
	Burst         int
}

// DefaultConfig returns settings matching the upstream budget of 2000 requests
// per five minutes.
func DefaultConfig() Config {
	return Config{
		BaseURL:       DefaultBaseURL,
		Timeout:       10 * time.Second,
		RetryMax:      3,
		RatePerSecond: 2000.0 / 300.0,
		Burst:         10,
	}
}

// Client implements API over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	observer   ErrorObserver

	squadMu  sync.Mutex
	squadIDs map[int64]int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithErrorObserver registers an observer for failed calls.
func WithErrorObserver(o ErrorObserver) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient creates a new API client
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: newRetryClient(cfg.RetryMax).StandardClient(),
		limiter:    rate.NewLimiter(limit, max(1, cfg.Burst)),
		timeout:    cfg.Timeout,
		squadIDs:   make(map[int64]int64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// newRetryClient creates a new HTTP client with retry capabilities
func newRetryClient(retryMax int) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = max(0, retryMax)
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 3 * time.Second
	c.Logger = nil
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return c
}

// getJSON issues a GET for path with query and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, endpoint, path string, query url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return c.fail(endpoint, 0, err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	logrus.WithField("endpoint", endpoint).Debugf("Fetching %s", target)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return c.fail(endpoint, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return c.fail(endpoint, resp.StatusCode, fmt.Errorf("%s", strings.TrimSpace(string(body))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return c.fail(endpoint, resp.StatusCode, fmt.Errorf("error decoding response: %w", err))
	}
	return nil
}

func (c *Client) fail(endpoint string, status int, err error) error {
	if c.observer != nil {
		c.observer.UpstreamError(endpoint)
	}
	return &apperr.UpstreamError{Endpoint: endpoint, StatusCode: status, Err: err}
}
