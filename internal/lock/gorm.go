package lock

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type lockRow struct {
	LockKey   string    `gorm:"column:lock_key;type:varchar(128);primaryKey"`
	Owner     string    `gorm:"column:owner;type:varchar(64);not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;type:timestamptz;not null"`
}

func (lockRow) TableName() string { return "sync_locks" }

// Gorm is a Locker shared by every process using the same database.
type Gorm struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewGorm migrates the sync_locks table and returns a Locker over it.
func NewGorm(db *gorm.DB, ttl time.Duration) (*Gorm, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := db.AutoMigrate(&lockRow{}); err != nil {
		return nil, fmt.Errorf("migrate sync_locks: %w", err)
	}
	return &Gorm{db: db, ttl: ttl, now: time.Now}, nil
}

// Acquire inserts the lease, or takes over a row that expired or is already ours.
func (g *Gorm) Acquire(ctx context.Context, key, owner string) (bool, error) {
	now := g.now()
	row := lockRow{LockKey: key, Owner: owner, ExpiresAt: now.Add(g.ttl)}
	res := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "lock_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"owner", "expires_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Or(
				clause.Lt{Column: clause.Column{Table: "sync_locks", Name: "expires_at"}, Value: now},
				clause.Eq{Column: clause.Column{Table: "sync_locks", Name: "owner"}, Value: owner},
			),
		}},
	}).Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("acquire %s: %w", key, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (g *Gorm) Refresh(ctx context.Context, key, owner string) error {
	res := g.db.WithContext(ctx).Model(&lockRow{}).
		Where("lock_key = ? AND owner = ?", key, owner).
		Update("expires_at", g.now().Add(g.ttl))
	if res.Error != nil {
		return fmt.Errorf("refresh %s: %w", key, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotHeld
	}
	return nil
}

func (g *Gorm) Release(ctx context.Context, key, owner string) error {
	res := g.db.WithContext(ctx).
		Where("lock_key = ? AND owner = ?", key, owner).
		Delete(&lockRow{})
	if res.Error != nil {
		return fmt.Errorf("release %s: %w", key, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotHeld
	}
	return nil
}
