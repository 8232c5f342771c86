// Package freshness decides whether a cached data category must be refetched.
package freshness

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/mfl-sync/internal/model"
)

// DefaultDurations returns the cache lifetime of every category. Categories absent
// from the table always resync; a zero duration never expires once synced.
func DefaultDurations() map[model.Category]time.Duration {
	return map[model.Category]time.Duration{
		model.CategoryUserInfo:        7 * 24 * time.Hour,
		model.CategoryPlayerData:      21 * 24 * time.Hour,
		model.CategoryAgencyPlayers:   21 * 24 * time.Hour,
		model.CategoryClubData:        42 * 24 * time.Hour,
		model.CategoryMatches:         12 * time.Hour,
		model.CategoryOpponentMatches: 12 * time.Hour,
		model.CategoryMarketValues:    7 * 24 * time.Hour,
		model.CategoryPreviousMatches: 0,
	}
}

// Gate applies the cache duration table to last-synced timestamps.
type Gate struct {
	durations map[model.Category]time.Duration
	now       func() time.Time
}

// New creates a Gate over durations. The table is copied.
func New(durations map[model.Category]time.Duration) *Gate {
	copied := make(map[model.Category]time.Duration, len(durations))
	for k, v := range durations {
		copied[k] = v
	}
	return &Gate{durations: copied, now: time.Now}
}

// Default creates a Gate over DefaultDurations.
func Default() *Gate {
	return New(DefaultDurations())
}

// WithClock replaces the time source and returns the gate.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Duration returns the configured lifetime of category and whether one is set.
func (g *Gate) Duration(category model.Category) (time.Duration, bool) {
	d, ok := g.durations[category]
	return d, ok
}

// NeedsSync reports whether category must be refreshed. A record exactly at the
// boundary of its cache duration is still fresh.
func (g *Gate) NeedsSync(category model.Category, lastSyncedAt *time.Time, force bool) bool {
	log := logrus.WithField("category", category)

	if force {
		log.Debug("Force refresh requested")
		return true
	}
	if lastSyncedAt == nil || lastSyncedAt.IsZero() {
		log.Debug("No previous sync found")
		return true
	}

	duration, ok := g.durations[category]
	if !ok {
		log.Debug("No cache duration set")
		return true
	}
	if duration == 0 {
		return false
	}

	elapsed := g.now().Sub(*lastSyncedAt)
	stale := elapsed > duration
	log.WithFields(logrus.Fields{
		"cache_duration": duration,
		"since_sync":     elapsed,
		"needs_sync":     stale,
	}).Debug("Cache check")
	return stale
}
