package syncer

import "time"

// SyncOptions configure one SyncAllData session.
type SyncOptions struct {
	// ForceRefresh bypasses the category freshness gate. The per-player
	// market value gate still applies.
	ForceRefresh bool

	// PlayerCap limits market value calculation to the N highest rated
	// players. Zero means no cap.
	PlayerCap int

	// MaxRetries and RetryDelay control per-category retries. Zero values use
	// the orchestrator defaults.
	MaxRetries int
	RetryDelay time.Duration

	OnProgress Observer
	OnComplete func()
	OnError    func(err error)
}

type settings struct {
	maxRetries         int
	retryDelay         time.Duration
	lockTTL            time.Duration
	opponentTimeout    time.Duration
	formationTimeout   time.Duration
	opponentPause      time.Duration
	opponentErrorPause time.Duration
	marketDataMaxWait  time.Duration
	marketDataFailures int
	observers          []Observer
}

func defaultSettings() settings {
	return settings{
		maxRetries:         defaultMaxRetries,
		retryDelay:         defaultRetryDelay,
		lockTTL:            30 * time.Second,
		opponentTimeout:    10 * time.Second,
		formationTimeout:   5 * time.Second,
		opponentPause:      500 * time.Millisecond,
		opponentErrorPause: time.Second,
		marketDataMaxWait:  60 * time.Second,
		marketDataFailures: 3,
	}
}

// Option configures an Orchestrator.
type Option func(*settings)

// WithRetryPolicy sets the default per-category retry count and base delay.
func WithRetryPolicy(maxRetries int, delay time.Duration) Option {
	return func(s *settings) {
		if maxRetries > 0 {
			s.maxRetries = maxRetries
		}
		if delay >= 0 {
			s.retryDelay = delay
		}
	}
}

// WithLockTTL sets the wallet lock lease duration.
func WithLockTTL(ttl time.Duration) Option {
	return func(s *settings) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithOpponentTimeouts bounds the per-opponent match fetch and the per-match
// formation fetch.
func WithOpponentTimeouts(matches, formation time.Duration) Option {
	return func(s *settings) {
		if matches > 0 {
			s.opponentTimeout = matches
		}
		if formation > 0 {
			s.formationTimeout = formation
		}
	}
}

// WithOpponentPause sets the pause after each opponent fetch. A failed fetch
// pauses twice as long.
func WithOpponentPause(d time.Duration) Option {
	return func(s *settings) {
		if d < 0 {
			d = 0
		}
		s.opponentPause = d
		s.opponentErrorPause = 2 * d
	}
}

// WithMarketData sets how long a player may wait for the market-data window and
// after how many failed comparable fetches a session stops calling the endpoint.
func WithMarketData(maxWait time.Duration, maxFailures int) Option {
	return func(s *settings) {
		if maxWait >= 0 {
			s.marketDataMaxWait = maxWait
		}
		if maxFailures > 0 {
			s.marketDataFailures = maxFailures
		}
	}
}

// WithObserver adds an observer that sees the events of every session.
func WithObserver(obs Observer) Option {
	return func(s *settings) {
		if obs != nil {
			s.observers = append(s.observers, obs)
		}
	}
}
