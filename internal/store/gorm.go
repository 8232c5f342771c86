package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yourorg/mfl-sync/internal/apperr"
	"github.com/yourorg/mfl-sync/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Gorm is a Store backed by PostgreSQL.
type Gorm struct {
	db *gorm.DB
}

// OpenPostgres connects to dsn and migrates the schema.
func OpenPostgres(dsn string) (*Gorm, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewGorm(db)
}

// NewGorm wraps an open connection and migrates the schema.
func NewGorm(db *gorm.DB) (*Gorm, error) {
	if err := db.AutoMigrate(rowModels()...); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Gorm{db: db}, nil
}

// DB exposes the connection for components sharing it.
func (g *Gorm) DB() *gorm.DB { return g.db }

func writeErr(table string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &apperr.StoreWriteError{Table: table, Err: err}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (g *Gorm) latest(ctx context.Context, row interface{}, where string, args ...interface{}) (*time.Time, error) {
	q := g.db.WithContext(ctx).Model(row).Select("MAX(last_synced)")
	if where != "" {
		q = q.Where(where, args...)
	}
	var latest sql.NullTime
	if err := q.Row().Scan(&latest); err != nil {
		return nil, err
	}
	if !latest.Valid {
		return nil, nil
	}
	return &latest.Time, nil
}

func (g *Gorm) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (g *Gorm) GetUser(ctx context.Context, wallet string) (*model.UserRecord, error) {
	var row userRow
	if err := g.db.WithContext(ctx).Where("wallet_address = ?", wallet).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return &model.UserRecord{
		WalletAddress: row.WalletAddress,
		Data:          json.RawMessage(row.Data),
		LastSynced:    row.LastSynced,
	}, nil
}

func (g *Gorm) UpsertUser(ctx context.Context, rec model.UserRecord) error {
	row := userRow{WalletAddress: rec.WalletAddress, Data: []byte(rec.Data), LastSynced: rec.LastSynced}
	return writeErr(TableUsers, g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wallet_address"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "last_synced"}),
	}).Create(&row).Error)
}

func (g *Gorm) GetPlayer(ctx context.Context, playerID int64) (*model.PlayerRecord, error) {
	var row playerRow
	if err := g.db.WithContext(ctx).Where("mfl_player_id = ?", playerID).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	rec := &model.PlayerRecord{PlayerID: row.MFLPlayerID, LastSynced: row.LastSynced}
	if err := json.Unmarshal(row.Data, &rec.Player); err != nil {
		return nil, fmt.Errorf("decode player %d: %w", playerID, err)
	}
	return rec, nil
}

func (g *Gorm) LatestPlayerSync(ctx context.Context) (*time.Time, error) {
	return g.latest(ctx, &playerRow{}, "")
}

func (g *Gorm) UpsertPlayers(ctx context.Context, recs []model.PlayerRecord) error {
	if len(recs) == 0 {
		return nil
	}
	rows := make([]playerRow, 0, len(recs))
	for _, rec := range recs {
		data, err := toJSON(rec.Player)
		if err != nil {
			return writeErr(TablePlayers, err)
		}
		rows = append(rows, playerRow{MFLPlayerID: rec.PlayerID, Data: data, LastSynced: rec.LastSynced})
	}
	return writeErr(TablePlayers, g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "mfl_player_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "last_synced"}),
	}).CreateInBatches(&rows, 200).Error)
}

func (g *Gorm) LatestAgencySync(ctx context.Context, wallet string) (*time.Time, error) {
	return g.latest(ctx, &agencyPlayerRow{}, "wallet_address = ?", wallet)
}

func (g *Gorm) UpsertAgencyPlayers(ctx context.Context, recs []model.AgencyPlayerRecord) error {
	if len(recs) == 0 {
		return nil
	}
	rows := make([]agencyPlayerRow, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, agencyPlayerRow{WalletAddress: rec.WalletAddress, MFLPlayerID: rec.PlayerID, LastSynced: rec.LastSynced})
	}
	return writeErr(TableAgencyPlayers, g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wallet_address"}, {Name: "mfl_player_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_synced"}),
	}).CreateInBatches(&rows, 200).Error)
}

func (g *Gorm) ListAgencyPlayers(ctx context.Context, wallet string) ([]model.AgencyPlayer, error) {
	var agency []agencyPlayerRow
	if err := g.db.WithContext(ctx).Where("wallet_address = ?", wallet).Order("mfl_player_id").Find(&agency).Error; err != nil {
		return nil, err
	}
	if len(agency) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(agency))
	for i, a := range agency {
		ids[i] = a.MFLPlayerID
	}
	var players []playerRow
	if err := g.db.WithContext(ctx).Where("mfl_player_id IN ?", ids).Find(&players).Error; err != nil {
		return nil, err
	}
	byID := make(map[int64]*model.Player, len(players))
	for _, row := range players {
		var p model.Player
		if err := json.Unmarshal(row.Data, &p); err != nil {
			return nil, fmt.Errorf("decode player %d: %w", row.MFLPlayerID, err)
		}
		byID[row.MFLPlayerID] = &p
	}

	out := make([]model.AgencyPlayer, 0, len(agency))
	for _, a := range agency {
		out = append(out, model.AgencyPlayer{
			AgencyPlayerRecord: model.AgencyPlayerRecord{WalletAddress: a.WalletAddress, PlayerID: a.MFLPlayerID, LastSynced: a.LastSynced},
			Player:             byID[a.MFLPlayerID],
		})
	}
	return out, nil
}

func (g *Gorm) UpsertClubs(ctx context.Context, recs []model.ClubRecord) error {
	if len(recs) == 0 {
		return nil
	}
	rows := make([]clubRow, 0, len(recs))
	for _, rec := range recs {
		data, err := toJSON(rec.Data)
		if err != nil {
			return writeErr(TableClubs, err)
		}
		rows = append(rows, clubRow{MFLClubID: rec.ClubID, Data: data, LastSynced: rec.LastSynced})
	}
	return writeErr(TableClubs, g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "mfl_club_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "last_synced"}),
	}).Create(&rows).Error)
}

func (g *Gorm) UpsertMatches(ctx context.Context, recs []model.MatchRecord) error {
	if len(recs) == 0 {
		return nil
	}
	rows := make([]matchRow, 0, len(recs))
	for _, rec := range recs {
		data, err := toJSON(rec.Data)
		if err != nil {
			return writeErr(TableMatches, err)
		}
		rows = append(rows, matchRow{
			MFLMatchID:    rec.MatchID,
			MatchType:     string(rec.MatchType),
			WalletAddress: rec.WalletAddress,
			ClubID:        rec.ClubID,
			Data:          data,
			LastSynced:    rec.LastSynced,
		})
	}
	return writeErr(TableMatches, g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "mfl_match_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"match_type", "wallet_address", "club_id", "data", "last_synced"}),
	}).CreateInBatches(&rows, 200).Error)
}

func (g *Gorm) GetMarketValue(ctx context.Context, playerID int64) (*model.MarketValueRecord, error) {
	var row marketValueRow
	if err := g.db.WithContext(ctx).Where("player_id = ?", playerID).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	rec, err := row.toModel()
	if err != nil {
		return nil, fmt.Errorf("decode market value %d: %w", playerID, err)
	}
	return &rec, nil
}

func (g *Gorm) UpsertMarketValue(ctx context.Context, rec model.MarketValueRecord) error {
	positions, err := toJSON(rec.Positions)
	if err != nil {
		return writeErr(TableMarketValues, err)
	}
	ratings, err := toJSON(rec.PositionRatings)
	if err != nil {
		return writeErr(TableMarketValues, err)
	}
	row := marketValueRow{
		PlayerID:        rec.PlayerID,
		WalletAddress:   rec.WalletAddress,
		MarketValue:     rec.MarketValue,
		OverallRating:   rec.OverallRating,
		Positions:       positions,
		PositionRatings: ratings,
		Method:          rec.Method,
		Confidence:      rec.Confidence,
		LastCalculated:  rec.LastCalculated,
	}
	return writeErr(TableMarketValues, g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "player_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"wallet_address", "market_value", "overall_rating", "positions",
			"position_ratings", "method", "confidence", "last_calculated",
		}),
	}).Create(&row).Error)
}

func (g *Gorm) GetOpponentMatches(ctx context.Context, squadID int64, limit int) (*model.OpponentMatchesRecord, error) {
	var row opponentMatchesRow
	err := g.db.WithContext(ctx).
		Where("opponent_squad_id = ? AND match_limit = ?", squadID, limit).
		First(&row).Error
	if err != nil {
		return nil, notFound(err)
	}
	rec, err := row.toModel()
	if err != nil {
		return nil, fmt.Errorf("decode opponent %d: %w", squadID, err)
	}
	return &rec, nil
}

func (g *Gorm) LatestOpponentSync(ctx context.Context) (*time.Time, error) {
	return g.latest(ctx, &opponentMatchesRow{}, "")
}

func (g *Gorm) UpsertOpponentMatches(ctx context.Context, recs []model.OpponentMatchesRecord) error {
	if len(recs) == 0 {
		return nil
	}
	rows := make([]opponentMatchesRow, 0, len(recs))
	for _, rec := range recs {
		matches, err := toJSON(rec.Matches)
		if err != nil {
			return writeErr(TableOpponentMatches, err)
		}
		formations, err := toJSON(rec.Formations)
		if err != nil {
			return writeErr(TableOpponentMatches, err)
		}
		rows = append(rows, opponentMatchesRow{
			OpponentSquadID: rec.OpponentSquadID,
			MatchLimit:      rec.MatchLimit,
			MatchesData:     matches,
			FormationsData:  formations,
			LastSynced:      rec.LastSynced,
		})
	}
	return writeErr(TableOpponentMatches, g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "opponent_squad_id"}, {Name: "match_limit"}},
		DoUpdates: clause.AssignmentColumns([]string{"matches_data", "formations_data", "last_synced"}),
	}).Create(&rows).Error)
}

func (g *Gorm) GetSyncStatus(ctx context.Context, category model.Category, wallet string) (*model.SyncRecord, error) {
	var row syncStatusRow
	err := g.db.WithContext(ctx).
		Where("data_type = ? AND wallet_address = ?", string(category), wallet).
		First(&row).Error
	if err != nil {
		return nil, notFound(err)
	}
	rec := row.toModel()
	return &rec, nil
}

func (g *Gorm) UpsertSyncStatus(ctx context.Context, rec model.SyncRecord) error {
	row := syncStatusRow{
		DataType:      string(rec.Category),
		WalletAddress: rec.Wallet,
		Status:        string(rec.Status),
		Progress:      rec.Progress,
		Message:       rec.Message,
		ErrorMessage:  rec.Error,
		LastSynced:    rec.LastSyncedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
	columns := []string{"status", "progress", "message", "error_message", "updated_at"}
	if rec.LastSyncedAt != nil {
		columns = append(columns, "last_synced")
	}
	return writeErr(TableSyncStatus, g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "data_type"}, {Name: "wallet_address"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(&row).Error)
}

func (g *Gorm) ListSyncStatus(ctx context.Context, wallet string) ([]model.SyncRecord, error) {
	var rows []syncStatusRow
	err := g.db.WithContext(ctx).
		Where("wallet_address = ? OR wallet_address = ''", wallet).
		Order("data_type").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]model.SyncRecord, len(rows))
	for i, row := range rows {
		out[i] = row.toModel()
	}
	return out, nil
}
