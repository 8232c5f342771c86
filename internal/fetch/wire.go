package fetch

import (
	"sort"
	"time"

	"github.com/yourorg/mfl-sync/internal/model"
)

// millis converts an epoch-milliseconds timestamp.
func millis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

type wireMatch struct {
	ID           int64       `json:"id"`
	Status       string      `json:"status"`
	StartDate    int64       `json:"startDate"`
	HomeTeamName string      `json:"homeTeamName"`
	AwayTeamName string      `json:"awayTeamName"`
	HomeSquad    model.Squad `json:"homeSquad"`
	AwaySquad    model.Squad `json:"awaySquad"`
	HomeScore    int         `json:"homeScore"`
	AwayScore    int         `json:"awayScore"`
}

func (w wireMatch) toModel() model.Match {
	return model.Match{
		ID:           w.ID,
		Status:       w.Status,
		StartDate:    millis(w.StartDate),
		HomeTeamName: w.HomeTeamName,
		AwayTeamName: w.AwayTeamName,
		HomeSquad:    w.HomeSquad,
		AwaySquad:    w.AwaySquad,
		HomeScore:    w.HomeScore,
		AwayScore:    w.AwayScore,
	}
}

func toMatches(in []wireMatch) []model.Match {
	out := make([]model.Match, len(in))
	for i, w := range in {
		out[i] = w.toModel()
	}
	return out
}

type wireFormation struct {
	Type string `json:"type"`
}

type wireMatchDetails struct {
	ID            int64          `json:"id"`
	HomeSquad     model.Squad    `json:"homeSquad"`
	AwaySquad     model.Squad    `json:"awaySquad"`
	HomeFormation *wireFormation `json:"homeFormation"`
	AwayFormation *wireFormation `json:"awayFormation"`
}

func (w wireMatchDetails) toModel() *model.MatchFormations {
	f := &model.MatchFormations{
		MatchID:     w.ID,
		HomeSquadID: w.HomeSquad.ID,
		AwaySquadID: w.AwaySquad.ID,
	}
	if w.HomeFormation != nil {
		f.Home = w.HomeFormation.Type
	}
	if w.AwayFormation != nil {
		f.Away = w.AwayFormation.Type
	}
	return f
}

type wireSale struct {
	ID               int64   `json:"id"`
	Status           string  `json:"status"`
	Price            float64 `json:"price"`
	PurchaseDateTime int64   `json:"purchaseDateTime"`
}

type wireExperience struct {
	Date   int64 `json:"date"`
	Values struct {
		Overall *int `json:"overall"`
	} `json:"values"`
}

// toProgression sorts entries by date and carries the last known overall
// forward. Entries before the first overall are dropped.
func toProgression(in []wireExperience) []model.ProgressionPoint {
	sorted := append([]wireExperience(nil), in...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	var (
		out     []model.ProgressionPoint
		overall *int
	)
	for _, e := range sorted {
		if e.Values.Overall != nil {
			overall = e.Values.Overall
		}
		if overall == nil {
			continue
		}
		out = append(out, model.ProgressionPoint{Date: millis(e.Date), Overall: *overall})
	}
	return out
}

type wireClubDetails struct {
	ID    int64 `json:"id"`
	Squad *struct {
		ID int64 `json:"id"`
	} `json:"squad"`
	Squads []struct {
		ID int64 `json:"id"`
	} `json:"squads"`
}

// squadID resolves the squad used for match queries, falling back to the club ID.
func (w wireClubDetails) squadID(clubID int64) int64 {
	if w.Squad != nil && w.Squad.ID != 0 {
		return w.Squad.ID
	}
	if len(w.Squads) > 0 && w.Squads[0].ID != 0 {
		return w.Squads[0].ID
	}
	if w.ID != 0 {
		return w.ID
	}
	return clubID
}
