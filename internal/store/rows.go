package store

import (
	"encoding/json"
	"time"

	"github.com/yourorg/mfl-sync/internal/model"
	"gorm.io/datatypes"
)

type userRow struct {
	WalletAddress string         `gorm:"column:wallet_address;type:varchar(64);primaryKey"`
	Data          datatypes.JSON `gorm:"column:data;type:jsonb"`
	LastSynced    time.Time      `gorm:"column:last_synced;type:timestamptz;not null"`
}

func (userRow) TableName() string { return TableUsers }

type playerRow struct {
	MFLPlayerID int64          `gorm:"column:mfl_player_id;primaryKey;autoIncrement:false"`
	Data        datatypes.JSON `gorm:"column:data;type:jsonb;not null"`
	LastSynced  time.Time      `gorm:"column:last_synced;type:timestamptz;not null;index"`
}

func (playerRow) TableName() string { return TablePlayers }

type agencyPlayerRow struct {
	ID            uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	WalletAddress string    `gorm:"column:wallet_address;type:varchar(64);not null;uniqueIndex:idx_agency_wallet_player"`
	MFLPlayerID   int64     `gorm:"column:mfl_player_id;not null;uniqueIndex:idx_agency_wallet_player"`
	LastSynced    time.Time `gorm:"column:last_synced;type:timestamptz;not null"`
}

func (agencyPlayerRow) TableName() string { return TableAgencyPlayers }

type clubRow struct {
	MFLClubID  int64          `gorm:"column:mfl_club_id;primaryKey;autoIncrement:false"`
	Data       datatypes.JSON `gorm:"column:data;type:jsonb;not null"`
	LastSynced time.Time      `gorm:"column:last_synced;type:timestamptz;not null"`
}

func (clubRow) TableName() string { return TableClubs }

type matchRow struct {
	MFLMatchID    int64          `gorm:"column:mfl_match_id;primaryKey;autoIncrement:false"`
	MatchType     string         `gorm:"column:match_type;type:varchar(16);not null"`
	WalletAddress string         `gorm:"column:wallet_address;type:varchar(64);not null;index"`
	ClubID        int64          `gorm:"column:club_id;not null"`
	Data          datatypes.JSON `gorm:"column:data;type:jsonb;not null"`
	LastSynced    time.Time      `gorm:"column:last_synced;type:timestamptz;not null"`
}

func (matchRow) TableName() string { return TableMatches }

type marketValueRow struct {
	PlayerID        int64          `gorm:"column:player_id;primaryKey;autoIncrement:false"`
	WalletAddress   string         `gorm:"column:wallet_address;type:varchar(64);not null;index"`
	MarketValue     int64          `gorm:"column:market_value;not null"`
	OverallRating   int            `gorm:"column:overall_rating"`
	Positions       datatypes.JSON `gorm:"column:positions;type:jsonb"`
	PositionRatings datatypes.JSON `gorm:"column:position_ratings;type:jsonb"`
	Method          string         `gorm:"column:method;type:varchar(16)"`
	Confidence      string         `gorm:"column:confidence;type:varchar(16)"`
	LastCalculated  time.Time      `gorm:"column:last_calculated;type:timestamptz;not null"`
}

func (marketValueRow) TableName() string { return TableMarketValues }

type opponentMatchesRow struct {
	ID              uint64         `gorm:"column:id;primaryKey;autoIncrement"`
	OpponentSquadID int64          `gorm:"column:opponent_squad_id;not null;uniqueIndex:idx_opponent_squad_limit"`
	MatchLimit      int            `gorm:"column:match_limit;not null;uniqueIndex:idx_opponent_squad_limit"`
	MatchesData     datatypes.JSON `gorm:"column:matches_data;type:jsonb"`
	FormationsData  datatypes.JSON `gorm:"column:formations_data;type:jsonb"`
	LastSynced      time.Time      `gorm:"column:last_synced;type:timestamptz;not null"`
}

func (opponentMatchesRow) TableName() string { return TableOpponentMatches }

type syncStatusRow struct {
	ID            uint64     `gorm:"column:id;primaryKey;autoIncrement"`
	DataType      string     `gorm:"column:data_type;type:varchar(64);not null;uniqueIndex:idx_sync_status_key"`
	WalletAddress string     `gorm:"column:wallet_address;type:varchar(64);not null;default:'';uniqueIndex:idx_sync_status_key"`
	Status        string     `gorm:"column:status;type:varchar(16);not null"`
	Progress      int        `gorm:"column:progress"`
	Message       string     `gorm:"column:message;type:text"`
	ErrorMessage  string     `gorm:"column:error_message;type:text"`
	LastSynced    *time.Time `gorm:"column:last_synced;type:timestamptz"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;type:timestamptz"`
}

func (syncStatusRow) TableName() string { return TableSyncStatus }

// rowModels lists every row type for migration.
func rowModels() []interface{} {
	return []interface{}{
		&userRow{}, &playerRow{}, &agencyPlayerRow{}, &clubRow{},
		&matchRow{}, &marketValueRow{}, &opponentMatchesRow{}, &syncStatusRow{},
	}
}

func toJSON(v interface{}) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func (r syncStatusRow) toModel() model.SyncRecord {
	return model.SyncRecord{
		Category:     model.Category(r.DataType),
		Wallet:       r.WalletAddress,
		Status:       model.Status(r.Status),
		Progress:     r.Progress,
		Message:      r.Message,
		LastSyncedAt: r.LastSynced,
		Error:        r.ErrorMessage,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (r marketValueRow) toModel() (model.MarketValueRecord, error) {
	rec := model.MarketValueRecord{
		PlayerID:       r.PlayerID,
		WalletAddress:  r.WalletAddress,
		MarketValue:    r.MarketValue,
		OverallRating:  r.OverallRating,
		Method:         r.Method,
		Confidence:     r.Confidence,
		LastCalculated: r.LastCalculated,
	}
	if len(r.Positions) > 0 {
		if err := json.Unmarshal(r.Positions, &rec.Positions); err != nil {
			return rec, err
		}
	}
	if len(r.PositionRatings) > 0 {
		if err := json.Unmarshal(r.PositionRatings, &rec.PositionRatings); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

func (r opponentMatchesRow) toModel() (model.OpponentMatchesRecord, error) {
	rec := model.OpponentMatchesRecord{
		OpponentSquadID: r.OpponentSquadID,
		MatchLimit:      r.MatchLimit,
		LastSynced:      r.LastSynced,
	}
	if len(r.MatchesData) > 0 {
		if err := json.Unmarshal(r.MatchesData, &rec.Matches); err != nil {
			return rec, err
		}
	}
	if len(r.FormationsData) > 0 {
		if err := json.Unmarshal(r.FormationsData, &rec.Formations); err != nil {
			return rec, err
		}
	}
	return rec, nil
}
