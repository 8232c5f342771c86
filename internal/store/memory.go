package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yourorg/mfl-sync/internal/apperr"
	"github.com/yourorg/mfl-sync/internal/model"
)

type agencyKey struct {
	wallet   string
	playerID int64
}

type opponentKey struct {
	squadID int64
	limit   int
}

type statusKey struct {
	category model.Category
	wallet   string
}

// Memory is a process-local Store used in tests and when no database is configured.
type Memory struct {
	mu sync.RWMutex

	users     map[string]model.UserRecord
	players   map[int64]model.PlayerRecord
	agency    map[agencyKey]model.AgencyPlayerRecord
	clubs     map[int64]model.ClubRecord
	matches   map[int64]model.MatchRecord
	values    map[int64]model.MarketValueRecord
	opponents map[opponentKey]model.OpponentMatchesRecord
	status    map[statusKey]model.SyncRecord

	writes   map[string]int
	failures map[string]error
	pingErr  error
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		users:     make(map[string]model.UserRecord),
		players:   make(map[int64]model.PlayerRecord),
		agency:    make(map[agencyKey]model.AgencyPlayerRecord),
		clubs:     make(map[int64]model.ClubRecord),
		matches:   make(map[int64]model.MatchRecord),
		values:    make(map[int64]model.MarketValueRecord),
		opponents: make(map[opponentKey]model.OpponentMatchesRecord),
		status:    make(map[statusKey]model.SyncRecord),
		writes:    make(map[string]int),
		failures:  make(map[string]error),
	}
}

// FailWrites makes every write to table fail with err. A nil err clears it.
func (m *Memory) FailWrites(table string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, table)
		return
	}
	m.failures[table] = err
}

// FailPing makes Ping return err.
func (m *Memory) FailPing(err error) {
	m.mu.Lock()
	m.pingErr = err
	m.mu.Unlock()
}

// Writes returns the number of successful upsert calls against table.
func (m *Memory) Writes(table string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes[table]
}

// DataWrites sums Writes over DataTables.
func (m *Memory) DataWrites() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, t := range DataTables {
		total += m.writes[t]
	}
	return total
}

// Rows returns the number of rows stored in table.
func (m *Memory) Rows(table string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch table {
	case TableUsers:
		return len(m.users)
	case TablePlayers:
		return len(m.players)
	case TableAgencyPlayers:
		return len(m.agency)
	case TableClubs:
		return len(m.clubs)
	case TableMatches:
		return len(m.matches)
	case TableMarketValues:
		return len(m.values)
	case TableOpponentMatches:
		return len(m.opponents)
	case TableSyncStatus:
		return len(m.status)
	}
	return 0
}

// Matches returns every stored match row ordered by match ID.
func (m *Memory) Matches() []model.MatchRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.MatchRecord, 0, len(m.matches))
	for _, rec := range m.matches {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MatchID < out[j].MatchID })
	return out
}

// beginWrite must be called with the lock held.
func (m *Memory) beginWrite(ctx context.Context, table string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.failures[table]; err != nil {
		return &apperr.StoreWriteError{Table: table, Err: err}
	}
	m.writes[table]++
	return nil
}

func (m *Memory) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.pingErr
}

func (m *Memory) GetUser(_ context.Context, wallet string) (*model.UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.users[wallet]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *Memory) UpsertUser(ctx context.Context, rec model.UserRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.beginWrite(ctx, TableUsers); err != nil {
		return err
	}
	m.users[rec.WalletAddress] = rec
	return nil
}

func (m *Memory) GetPlayer(_ context.Context, playerID int64) (*model.PlayerRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.players[playerID]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *Memory) LatestPlayerSync(_ context.Context) (*time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *time.Time
	for _, rec := range m.players {
		latest = later(latest, rec.LastSynced)
	}
	return latest, nil
}

func (m *Memory) UpsertPlayers(ctx context.Context, recs []model.PlayerRecord) error {
	if len(recs) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.beginWrite(ctx, TablePlayers); err != nil {
		return err
	}
	for _, rec := range recs {
		m.players[rec.PlayerID] = rec
	}
	return nil
}

func (m *Memory) LatestAgencySync(_ context.Context, wallet string) (*time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *time.Time
	for key, rec := range m.agency {
		if key.wallet == wallet {
			latest = later(latest, rec.LastSynced)
		}
	}
	return latest, nil
}

func (m *Memory) UpsertAgencyPlayers(ctx context.Context, recs []model.AgencyPlayerRecord) error {
	if len(recs) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.beginWrite(ctx, TableAgencyPlayers); err != nil {
		return err
	}
	for _, rec := range recs {
		m.agency[agencyKey{wallet: rec.WalletAddress, playerID: rec.PlayerID}] = rec
	}
	return nil
}

func (m *Memory) ListAgencyPlayers(_ context.Context, wallet string) ([]model.AgencyPlayer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.AgencyPlayer
	for key, rec := range m.agency {
		if key.wallet != wallet {
			continue
		}
		entry := model.AgencyPlayer{AgencyPlayerRecord: rec}
		if p, ok := m.players[rec.PlayerID]; ok {
			player := p.Player
			entry.Player = &player
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out, nil
}

func (m *Memory) UpsertClubs(ctx context.Context, recs []model.ClubRecord) error {
	if len(recs) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.beginWrite(ctx, TableClubs); err != nil {
		return err
	}
	for _, rec := range recs {
		m.clubs[rec.ClubID] = rec
	}
	return nil
}

func (m *Memory) UpsertMatches(ctx context.Context, recs []model.MatchRecord) error {
	if len(recs) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.beginWrite(ctx, TableMatches); err != nil {
		return err
	}
	for _, rec := range recs {
		m.matches[rec.MatchID] = rec
	}
	return nil
}

func (m *Memory) GetMarketValue(_ context.Context, playerID int64) (*model.MarketValueRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.values[playerID]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *Memory) UpsertMarketValue(ctx context.Context, rec model.MarketValueRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.beginWrite(ctx, TableMarketValues); err != nil {
		return err
	}
	m.values[rec.PlayerID] = rec
	return nil
}

func (m *Memory) GetOpponentMatches(_ context.Context, squadID int64, limit int) (*model.OpponentMatchesRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.opponents[opponentKey{squadID: squadID, limit: limit}]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *Memory) LatestOpponentSync(_ context.Context) (*time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *time.Time
	for _, rec := range m.opponents {
		latest = later(latest, rec.LastSynced)
	}
	return latest, nil
}

func (m *Memory) UpsertOpponentMatches(ctx context.Context, recs []model.OpponentMatchesRecord) error {
	if len(recs) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.beginWrite(ctx, TableOpponentMatches); err != nil {
		return err
	}
	for _, rec := range recs {
		m.opponents[opponentKey{squadID: rec.OpponentSquadID, limit: rec.MatchLimit}] = rec
	}
	return nil
}

func (m *Memory) GetSyncStatus(_ context.Context, category model.Category, wallet string) (*model.SyncRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.status[statusKey{category: category, wallet: wallet}]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *Memory) UpsertSyncStatus(ctx context.Context, rec model.SyncRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.beginWrite(ctx, TableSyncStatus); err != nil {
		return err
	}
	key := statusKey{category: rec.Category, wallet: rec.Wallet}
	if rec.LastSyncedAt == nil {
		if prev, ok := m.status[key]; ok {
			rec.LastSyncedAt = prev.LastSyncedAt
		}
	}
	m.status[key] = rec
	return nil
}

func (m *Memory) ListSyncStatus(_ context.Context, wallet string) ([]model.SyncRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.SyncRecord
	for key, rec := range m.status {
		if key.wallet == wallet || key.wallet == "" {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Wallet < out[j].Wallet
	})
	return out, nil
}

func later(current *time.Time, t time.Time) *time.Time {
	if t.IsZero() {
		return current
	}
	if current == nil || t.After(*current) {
		return &t
	}
	return current
}
