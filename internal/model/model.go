// Package model defines the core data structures shared by the sync pipeline.
package model

import (
	"encoding/json"
	"time"
)

// Category names a synchronized data set.
type Category string

// Data categories. The string values are persisted in sync_status.data_type.
const (
	CategoryUserInfo           Category = "user_info"
	CategoryPlayerData         Category = "player_data"
	CategoryClubData           Category = "club_data"
	CategoryAgencyPlayers      Category = "agency_players"
	CategoryMarketValues       Category = "agency_player_market_values"
	CategoryMatches            Category = "matches_data"
	CategoryUpcomingOpposition Category = "upcoming_opposition"
	CategoryOpponentMatches    Category = "opponent_matches"
	CategoryPreviousMatches    Category = "previous_matches"

	// Synthetic entries emitted by a session rather than a category task.
	CategorySyncError     Category = "sync_error"
	CategorySyncCancelled Category = "sync_cancelled"
)

// Status is the lifecycle state of a category within a session.
type Status string

// Category states.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transitions are expected in the session.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// SyncRecord is both the progress event and the persisted sync_status row.
type SyncRecord struct {
	Category     Category   `json:"dataType"`
	Wallet       string     `json:"walletAddress,omitempty"`
	Status       Status     `json:"status"`
	Progress     int        `json:"progress"`
	Message      string     `json:"message"`
	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`
	Error        string     `json:"error,omitempty"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Position is one of the fifteen pitch positions.
type Position string

// Pitch positions.
const (
	GK  Position = "GK"
	CB  Position = "CB"
	LB  Position = "LB"
	RB  Position = "RB"
	LWB Position = "LWB"
	RWB Position = "RWB"
	CDM Position = "CDM"
	CM  Position = "CM"
	CAM Position = "CAM"
	LM  Position = "LM"
	RM  Position = "RM"
	LW  Position = "LW"
	RW  Position = "RW"
	CF  Position = "CF"
	ST  Position = "ST"
)

// AllPositions lists every position in canonical order.
var AllPositions = []Position{GK, CB, LB, RB, LWB, RWB, CDM, CM, CAM, LM, RM, LW, RW, CF, ST}

// Valid reports whether p is a known position.
func (p Position) Valid() bool {
	for _, known := range AllPositions {
		if p == known {
			return true
		}
	}
	return false
}

// Attributes are the player's core skill values, each normally in [0,99].
type Attributes struct {
	Pace        int `json:"pace"`
	Shooting    int `json:"shooting"`
	Passing     int `json:"passing"`
	Dribbling   int `json:"dribbling"`
	Defense     int `json:"defense"`
	Physical    int `json:"physical"`
	Goalkeeping int `json:"goalkeeping"`
}

// PlayerMetadata is the descriptive part of an upstream player payload.
type PlayerMetadata struct {
	FirstName       string     `json:"firstName"`
	LastName        string     `json:"lastName"`
	Overall         int        `json:"overall"`
	Age             int        `json:"age"`
	Height          int        `json:"height,omitempty"` // centimetres
	Positions       []Position `json:"positions"`
	RetirementYears *int       `json:"retirementYears,omitempty"`
	Attributes
}

// FullName joins first and last name.
func (m PlayerMetadata) FullName() string {
	if m.LastName == "" {
		return m.FirstName
	}
	return m.FirstName + " " + m.LastName
}

// Player is an upstream player entity.
type Player struct {
	ID       int64          `json:"id"`
	Metadata PlayerMetadata `json:"metadata"`
	OwnedBy  *Owner         `json:"ownedBy,omitempty"`
}

// Owner identifies the wallet holding an asset.
type Owner struct {
	WalletAddress string `json:"walletAddress"`
	Name          string `json:"name,omitempty"`
}

// Club is a club owned by a wallet.
type Club struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Division int    `json:"division,omitempty"`
	City     string `json:"city,omitempty"`
	Country  string `json:"country,omitempty"`
}

// ClubData is the upstream club listing element.
type ClubData struct {
	Club Club `json:"club"`
}

// Squad references a club squad inside a match.
type Squad struct {
	ID int64 `json:"id"`
}

// Match is an upcoming or past match of a squad.
type Match struct {
	ID           int64     `json:"id"`
	Status       string    `json:"status"`
	StartDate    time.Time `json:"startDate"`
	HomeTeamName string    `json:"homeTeamName"`
	AwayTeamName string    `json:"awayTeamName"`
	HomeSquad    Squad     `json:"homeSquad"`
	AwaySquad    Squad     `json:"awaySquad"`
	HomeScore    int       `json:"homeScore,omitempty"`
	AwayScore    int       `json:"awayScore,omitempty"`
}

// OpponentOf returns the squad facing the named club in m.
func (m Match) OpponentOf(clubName string) int64 {
	if m.HomeTeamName == clubName {
		return m.AwaySquad.ID
	}
	return m.HomeSquad.ID
}

// MatchFormations are the formations both sides fielded in a match.
type MatchFormations struct {
	MatchID     int64  `json:"matchId"`
	HomeSquadID int64  `json:"homeSquadId"`
	AwaySquadID int64  `json:"awaySquadId"`
	Home        string `json:"home"`
	Away        string `json:"away"`
}

// For returns the formation used by squadID, or "" when it did not play.
func (f MatchFormations) For(squadID int64) string {
	switch squadID {
	case f.HomeSquadID:
		return f.Home
	case f.AwaySquadID:
		return f.Away
	}
	return ""
}

// MarketListing is a comparable player listing on the market.
type MarketListing struct {
	ListingResourceID string  `json:"listingResourceId"`
	Price             float64 `json:"price"`
	Player            struct {
		Metadata PlayerMetadata `json:"metadata"`
	} `json:"player"`
}

// SaleEntry is one historical sale of a player.
type SaleEntry struct {
	Price        float64   `json:"price"`
	PurchaseDate time.Time `json:"purchaseDateTime"`
}

// ProgressionPoint is the player's overall at a point in time.
type ProgressionPoint struct {
	Date    time.Time `json:"date"`
	Overall int       `json:"overall"`
}

// ComparableSearch are the market query parameters for comparable listings.
type ComparableSearch struct {
	Positions  []Position
	AgeMin     int
	AgeMax     int
	OverallMin int
	OverallMax int
	Limit      int
}

// NewComparableSearch derives the comparable window around a player.
func NewComparableSearch(m PlayerMetadata) ComparableSearch {
	return ComparableSearch{
		Positions:  m.Positions,
		AgeMin:     max(1, m.Age-1),
		AgeMax:     min(50, m.Age+1),
		OverallMin: max(1, m.Overall-1),
		OverallMax: min(99, m.Overall+1),
		Limit:      50,
	}
}

// User is the wallet profile derived from its clubs.
type User struct {
	WalletAddress string `json:"walletAddress"`
	Username      string `json:"username,omitempty"`
	DisplayName   string `json:"displayName,omitempty"`
}

// UserRecord is the persisted users row.
type UserRecord struct {
	WalletAddress string
	Data          json.RawMessage
	LastSynced    time.Time
}

// PlayerRecord is the persisted players row.
type PlayerRecord struct {
	PlayerID   int64
	Player     Player
	LastSynced time.Time
}

// AgencyPlayerRecord links a wallet to a player it owns.
type AgencyPlayerRecord struct {
	WalletAddress string
	PlayerID      int64
	LastSynced    time.Time
}

// AgencyPlayer is an agency row joined with its player row.
type AgencyPlayer struct {
	AgencyPlayerRecord
	Player *Player
}

// ClubRecord is the persisted clubs row.
type ClubRecord struct {
	ClubID     int64
	Data       ClubData
	LastSynced time.Time
}

// MatchType distinguishes upcoming from past matches in the matches table.
type MatchType string

// Match types.
const (
	MatchUpcoming MatchType = "upcoming"
	MatchPrevious MatchType = "previous"
)

// MatchRecord is the persisted matches row.
type MatchRecord struct {
	MatchID       int64
	MatchType     MatchType
	WalletAddress string
	ClubID        int64
	Data          Match
	LastSynced    time.Time
}

// PositionRating is the stored per-position rating of a market value record.
type PositionRating struct {
	Rating      int    `json:"rating"`
	Familiarity string `json:"familiarity"`
	Penalty     int    `json:"penalty"`
}

// MarketValueRecord is the persisted market_values row.
type MarketValueRecord struct {
	PlayerID        int64
	WalletAddress   string
	MarketValue     int64
	OverallRating   int
	Positions       []Position
	PositionRatings map[Position]PositionRating
	Method          string
	Confidence      string
	LastCalculated  time.Time
}

// OpponentMatchesRecord is the persisted opponent_matches row.
type OpponentMatchesRecord struct {
	OpponentSquadID int64
	MatchLimit      int
	Matches         []Match
	Formations      []string
	LastSynced      time.Time
}
