// Package store persists synchronized data. Every write is an upsert on the
// row's natural key, so repeating a sync converges instead of duplicating rows.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/yourorg/mfl-sync/internal/model"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("record not found")

// Table names.
const (
	TableUsers           = "users"
	TablePlayers         = "players"
	TableAgencyPlayers   = "agency_players"
	TableClubs           = "clubs"
	TableMatches         = "matches"
	TableMarketValues    = "market_values"
	TableOpponentMatches = "opponent_matches"
	TableSyncStatus      = "sync_status"
)

// DataTables lists the tables holding synchronized data, excluding sync_status.
var DataTables = []string{
	TableUsers, TablePlayers, TableAgencyPlayers, TableClubs,
	TableMatches, TableMarketValues, TableOpponentMatches,
}

// Store is the persistence boundary of the sync pipeline.
type Store interface {
	Ping(ctx context.Context) error

	GetUser(ctx context.Context, wallet string) (*model.UserRecord, error)
	UpsertUser(ctx context.Context, rec model.UserRecord) error

	GetPlayer(ctx context.Context, playerID int64) (*model.PlayerRecord, error)
	LatestPlayerSync(ctx context.Context) (*time.Time, error)
	UpsertPlayers(ctx context.Context, recs []model.PlayerRecord) error

	LatestAgencySync(ctx context.Context, wallet string) (*time.Time, error)
	UpsertAgencyPlayers(ctx context.Context, recs []model.AgencyPlayerRecord) error
	ListAgencyPlayers(ctx context.Context, wallet string) ([]model.AgencyPlayer, error)

	UpsertClubs(ctx context.Context, recs []model.ClubRecord) error
	UpsertMatches(ctx context.Context, recs []model.MatchRecord) error

	GetMarketValue(ctx context.Context, playerID int64) (*model.MarketValueRecord, error)
	UpsertMarketValue(ctx context.Context, rec model.MarketValueRecord) error

	GetOpponentMatches(ctx context.Context, squadID int64, limit int) (*model.OpponentMatchesRecord, error)
	LatestOpponentSync(ctx context.Context) (*time.Time, error)
	UpsertOpponentMatches(ctx context.Context, recs []model.OpponentMatchesRecord) error

	// GetSyncStatus returns the status row of category for wallet. Global
	// categories use an empty wallet.
	GetSyncStatus(ctx context.Context, category model.Category, wallet string) (*model.SyncRecord, error)
	// UpsertSyncStatus writes rec. A nil LastSyncedAt keeps the stored value.
	UpsertSyncStatus(ctx context.Context, rec model.SyncRecord) error
	ListSyncStatus(ctx context.Context, wallet string) ([]model.SyncRecord, error)
}
