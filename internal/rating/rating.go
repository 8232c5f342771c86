// Package rating computes position-specific overall ratings from player
// attributes and position familiarity.
package rating

import (
	"math"
	"sort"

	"github.com/yourorg/mfl-sync/internal/apperr"
	"github.com/yourorg/mfl-sync/internal/model"
	"github.com/yourorg/mfl-sync/internal/validation"
)

// Familiarity describes how well a player knows a position.
type Familiarity string

// Familiarity tiers.
const (
	Primary    Familiarity = "PRIMARY"
	Secondary  Familiarity = "SECONDARY"
	Familiar   Familiarity = "FAMILIAR"
	Unfamiliar Familiarity = "UNFAMILIAR"
)

// DefaultBestPositions is the number of positions BestPositions returns for a
// non-positive limit.
const DefaultBestPositions = 5

// Penalties are the rating adjustments per familiarity tier. A secondary
// position costs Secondary plus SecondaryStep for every listed position beyond two.
type Penalties struct {
	Secondary     int
	SecondaryStep int
	Familiar      int
	Unfamiliar    int
}

// DefaultPenalties returns the standard familiarity penalties.
func DefaultPenalties() Penalties {
	return Penalties{
		Secondary:     -1,
		SecondaryStep: 0,
		Familiar:      -5,
		Unfamiliar:    -20,
	}
}

// Result is the rating of one player at one position.
type Result struct {
	Position        model.Position `json:"position"`
	OVR             int            `json:"ovr"`
	WeightedAverage float64        `json:"weightedAverage"`
	Penalty         int            `json:"penalty"`
	Familiarity     Familiarity    `json:"familiarity"`
}

// Calculator rates players. It holds no mutable state and is safe for concurrent use.
type Calculator struct {
	penalties Penalties
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithPenalties overrides the familiarity penalties.
func WithPenalties(p Penalties) Option {
	return func(c *Calculator) { c.penalties = p }
}

// WithSecondaryStep sets the extra penalty per listed position beyond two.
func WithSecondaryStep(step int) Option {
	return func(c *Calculator) { c.penalties.SecondaryStep = step }
}

// NewCalculator creates a Calculator with DefaultPenalties.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{penalties: DefaultPenalties()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validate checks the player's attributes and positions.
func Validate(m model.PlayerMetadata) error {
	if err := validation.ValidateAttributes(m.Attributes); err != nil {
		return err
	}
	return validation.ValidatePositions(m.Positions)
}

// CalculatePositionOVR rates the player at target. Invalid attributes or positions
// return a *apperr.ValidationError and no rating.
func (c *Calculator) CalculatePositionOVR(m model.PlayerMetadata, target model.Position) (Result, error) {
	if err := Validate(m); err != nil {
		return Result{}, err
	}
	w, ok := positionWeights[target]
	if !ok {
		return Result{}, &apperr.ValidationError{Field: "target position", Value: string(target), Reason: "unknown position"}
	}
	return c.rate(m, target, w), nil
}

// CalculateAllPositionOVRs rates the player at all fifteen positions.
func (c *Calculator) CalculateAllPositionOVRs(m model.PlayerMetadata) (map[model.Position]Result, error) {
	if err := Validate(m); err != nil {
		return nil, err
	}
	results := make(map[model.Position]Result, len(model.AllPositions))
	for _, p := range model.AllPositions {
		results[p] = c.rate(m, p, positionWeights[p])
	}
	return results, nil
}

// BestPositions returns up to limit positions ordered by rating, highest first.
// Ties keep the canonical position order and zero ratings are dropped.
func (c *Calculator) BestPositions(m model.PlayerMetadata, limit int) ([]Result, error) {
	all, err := c.CalculateAllPositionOVRs(m)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultBestPositions
	}

	ranked := make([]Result, 0, len(all))
	for _, p := range model.AllPositions {
		if r := all[p]; r.OVR > 0 {
			ranked = append(ranked, r)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].OVR > ranked[j].OVR })
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// Ratings converts results into the form stored with a market value.
func Ratings(results map[model.Position]Result) map[model.Position]model.PositionRating {
	out := make(map[model.Position]model.PositionRating, len(results))
	for p, r := range results {
		out[p] = model.PositionRating{Rating: r.OVR, Familiarity: string(r.Familiarity), Penalty: r.Penalty}
	}
	return out
}

func (c *Calculator) rate(m model.PlayerMetadata, target model.Position, w weights) Result {
	familiarity, penalty := c.familiarity(m.Positions, target)
	avg := w.weightedAverage(m.Attributes)
	ovr := int(math.Round(avg + float64(penalty)))
	return Result{
		Position:        target,
		OVR:             min(99, max(0, ovr)),
		WeightedAverage: avg,
		Penalty:         penalty,
		Familiarity:     familiarity,
	}
}

func (c *Calculator) familiarity(positions []model.Position, target model.Position) (Familiarity, int) {
	if positions[0] == target {
		return Primary, 0
	}
	for _, p := range positions[1:] {
		if p == target {
			extra := max(0, len(positions)-2)
			return Secondary, c.penalties.Secondary + c.penalties.SecondaryStep*extra
		}
	}
	for _, p := range positions {
		if _, ok := adjacency[p][target]; ok {
			return Familiar, c.penalties.Familiar
		}
	}
	return Unfamiliar, c.penalties.Unfamiliar
}
