// Package lock provides the per-wallet exclusion that keeps two sync sessions
// from running against the same data at once, across processes when backed by
// the database.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultTTL is how long a lease lives without a refresh.
const DefaultTTL = 30 * time.Second

var (
	// ErrLocked is returned when another owner holds the lease.
	ErrLocked = errors.New("sync lock held by another session")
	// ErrNotHeld is returned when refreshing or releasing a lease the caller does not own.
	ErrNotHeld = errors.New("sync lock not held")
)

// Locker grants time-bounded leases on keys.
type Locker interface {
	// Acquire takes key for owner. It reports false when a live lease belongs to
	// someone else. Re-acquiring an own lease extends it.
	Acquire(ctx context.Context, key, owner string) (bool, error)
	Refresh(ctx context.Context, key, owner string) error
	Release(ctx context.Context, key, owner string) error
}

// NewOwner returns a unique lease owner identifier.
func NewOwner() string {
	return uuid.NewString()
}

// Key is the lease key for a wallet's sync session.
func Key(wallet string) string {
	return "sync:" + wallet
}

// Lease is a held lock kept alive by a background heartbeat.
type Lease struct {
	locker Locker
	key    string
	owner  string
	stop   chan struct{}
	done   chan struct{}
	lost   chan struct{}
}

// Hold acquires key and refreshes it every ttl/3 until Release. It returns
// ErrLocked when the key is taken.
func Hold(ctx context.Context, l Locker, key string, ttl time.Duration) (*Lease, error) {
	owner := NewOwner()
	ok, err := l.Acquire(ctx, key, owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}
	lease := &Lease{locker: l, key: key, owner: owner, stop: make(chan struct{}), done: make(chan struct{}), lost: make(chan struct{})}
	go lease.heartbeat(max(ttl/3, time.Millisecond))
	return lease, nil
}

// Owner returns the lease owner.
func (l *Lease) Owner() string { return l.owner }

// Lost is closed when a refresh finds the key owned by someone else. The
// heartbeat stops at that point.
func (l *Lease) Lost() <-chan struct{} { return l.lost }

func (l *Lease) heartbeat(every time.Duration) {
	defer close(l.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), every)
			err := l.locker.Refresh(ctx, l.key, l.owner)
			cancel()
			if err == nil {
				continue
			}
			log := logrus.WithError(err).WithField("key", l.key)
			if errors.Is(err, ErrNotHeld) {
				log.Warn("Sync lock lost")
				close(l.lost)
				return
			}
			log.Warn("Failed to refresh sync lock")
		}
	}
}

// Release stops the heartbeat and gives the key back.
func (l *Lease) Release(ctx context.Context) error {
	close(l.stop)
	<-l.done
	return l.locker.Release(ctx, l.key, l.owner)
}
