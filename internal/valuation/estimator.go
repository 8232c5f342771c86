// Package valuation estimates player market values from comparable listings,
// sale history and progression, with a tiered fallback when the market gives
// no comparables.
package valuation

import (
	"math"
	"sort"

	"github.com/yourorg/mfl-sync/internal/aggregate"
	"github.com/yourorg/mfl-sync/internal/model"
)

// Valuation methods.
const (
	MethodComparables = "comparables"
	MethodFallback    = "fallback"
)

// Confidence levels.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Input is everything known about a player when pricing it. Only Metadata is
// required; empty slices and nil pointers mean the data is unavailable.
type Input struct {
	PlayerID        int64
	Metadata        model.PlayerMetadata
	Comparables     []model.MarketListing
	Sales           []model.SaleEntry
	Progression     []model.ProgressionPoint
	PositionRatings map[model.Position]model.PositionRating
	RetirementYears *int
	MatchCount      *int
}

// Adjustment is one factor of the base value. Factors add up before they are
// applied, so +0.2 and +0.1 give 130% of base.
type Adjustment struct {
	Name   string  `json:"name"`
	Factor float64 `json:"factor"`
}

// Estimate is the priced result and how it was reached.
type Estimate struct {
	Value       int64        `json:"estimatedValue"`
	Method      string       `json:"method"`
	Confidence  string       `json:"confidence"`
	BaseValue   float64      `json:"baseValue"`
	Comparables int          `json:"comparables"`
	Sales       int          `json:"sales"`
	Adjustments []Adjustment `json:"adjustments,omitempty"`
}

// Estimator prices players. The only state it holds is the jitter source.
type Estimator struct {
	random RandomSource
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithRandom sets the source used for market-volatility jitter.
func WithRandom(r RandomSource) Option {
	return func(e *Estimator) { e.random = r }
}

// WithSeed uses a deterministic jitter source.
func WithSeed(seed int64) Option {
	return func(e *Estimator) { e.random = NewSeededSource(seed) }
}

// WithoutJitter disables market-volatility jitter.
func WithoutJitter() Option {
	return func(e *Estimator) { e.random = nil }
}

// NewEstimator creates an Estimator with time-seeded jitter.
func NewEstimator(opts ...Option) *Estimator {
	e := &Estimator{random: NewTimeSource()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Estimate prices the player. With comparables it prices off the market, otherwise
// it falls back to the tiered formula. The result is never negative.
func (e *Estimator) Estimate(in Input) Estimate {
	var est Estimate
	if len(in.Comparables) > 0 {
		est = e.fromComparables(in)
	} else {
		est = e.fallback(in)
	}
	est.Sales = len(in.Sales)
	return est
}

func (e *Estimator) fromComparables(in Input) Estimate {
	listings := in.Comparables
	var base float64
	if len(listings) >= 4 {
		listings = aggregate.FilterOutliers(listings)
		base = aggregate.Mean(aggregate.Prices(listings))
	} else {
		base = aggregate.Median(aggregate.Prices(listings))
	}

	if recent := recentSales(in.Sales, 3); len(recent) > 0 {
		base = aggregate.WeightedMean([]float64{base, aggregate.Mean(recent)}, []float64{0.7, 0.3})
	}

	meta := in.Metadata
	avgAge := aggregate.MeanBy(listings, func(l model.MarketListing) float64 { return float64(l.Player.Metadata.Age) })
	avgOverall := aggregate.MeanBy(listings, func(l model.MarketListing) float64 { return float64(l.Player.Metadata.Overall) })

	var adjustments []Adjustment
	add := func(name string, factor float64) {
		if factor != 0 && !math.IsNaN(factor) {
			adjustments = append(adjustments, Adjustment{Name: name, Factor: factor})
		}
	}

	add("age", (float64(meta.Age)-avgAge)*0.02)
	add("overall", (float64(meta.Overall)-avgOverall)*0.03)
	add("position", positionPremium(playablePositions(in.PositionRatings, meta)))
	if len(in.Sales) == 0 {
		add("single_owner", 0.05)
	}
	add("progression", progression(in.Progression))
	if in.MatchCount != nil && *in.MatchCount < 10 {
		add("newly_minted", 0.10)
	}
	add("pace", pace(meta))
	add("height", goalkeeperHeight(meta))
	add("retirement", retirement(retirementYears(in)))

	return Estimate{
		Value:       finalize(base, adjustments),
		Method:      MethodComparables,
		Confidence:  confidence(len(in.Comparables)),
		BaseValue:   base,
		Comparables: len(in.Comparables),
		Adjustments: adjustments,
	}
}

// recentSales returns up to n sale prices, most recent first.
func recentSales(sales []model.SaleEntry, n int) []float64 {
	if len(sales) == 0 {
		return nil
	}
	sorted := append([]model.SaleEntry(nil), sales...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].PurchaseDate.After(sorted[j].PurchaseDate) })

	prices := make([]float64, 0, n)
	for _, s := range sorted[:min(n, len(sorted))] {
		prices = append(prices, s.Price)
	}
	return prices
}

// playablePositions counts positions rated within six points of overall. A
// zero rating is not playable. Without ratings every listed position counts.
func playablePositions(ratings map[model.Position]model.PositionRating, meta model.PlayerMetadata) int {
	if len(ratings) == 0 {
		return len(meta.Positions)
	}
	n := 0
	for _, r := range ratings {
		if r.Rating > 0 && meta.Overall-r.Rating <= 6 {
			n++
		}
	}
	return n
}

func positionPremium(playable int) float64 {
	switch {
	case playable >= 4:
		return 0.20
	case playable == 3:
		return 0.15
	case playable == 2:
		return 0.10
	}
	return 0
}

// progression rewards a gain of 20 or more overall points across the series
// and penalises a player who never improved.
func progression(series []model.ProgressionPoint) float64 {
	if len(series) < 2 {
		return 0
	}
	sorted := append([]model.ProgressionPoint(nil), series...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	switch gained := sorted[len(sorted)-1].Overall - sorted[0].Overall; {
	case gained >= 20:
		return 0.25
	case gained == 0:
		return -0.15
	}
	return 0
}

var widePositions = map[model.Position]bool{
	model.LW: true, model.RW: true,
	model.LB: true, model.RB: true,
	model.LWB: true, model.RWB: true,
	model.LM: true, model.RM: true,
}

func hasPosition(meta model.PlayerMetadata, want func(model.Position) bool) bool {
	for _, p := range meta.Positions {
		if want(p) {
			return true
		}
	}
	return false
}

func isGoalkeeper(meta model.PlayerMetadata) bool {
	return hasPosition(meta, func(p model.Position) bool { return p == model.GK })
}

// pace prices speed outside the wide roles, where it is expected anyway, and
// discounts slow outfield players.
func pace(meta model.PlayerMetadata) float64 {
	if meta.Overall > 60 && meta.Pace < 50 && !isGoalkeeper(meta) {
		return -0.10
	}
	if hasPosition(meta, func(p model.Position) bool { return widePositions[p] }) {
		return 0
	}
	switch {
	case meta.Pace >= 90:
		return 0.10
	case meta.Pace >= 85:
		return 0.05
	}
	return 0
}

// goalkeeperHeight applies to goalkeepers with a known height only.
func goalkeeperHeight(meta model.PlayerMetadata) float64 {
	if !isGoalkeeper(meta) || meta.Height <= 0 {
		return 0
	}
	switch {
	case meta.Height > 188:
		return 0.05
	case meta.Height < 175:
		return -0.05
	}
	return 0
}

func retirementYears(in Input) *int {
	if in.RetirementYears != nil {
		return in.RetirementYears
	}
	return in.Metadata.RetirementYears
}

func retirement(years *int) float64 {
	switch {
	case years == nil:
		return 0
	case *years <= 1:
		return -0.20
	case *years <= 2:
		return -0.10
	}
	return 0
}

func confidence(comparables int) string {
	switch {
	case comparables >= 25:
		return ConfidenceHigh
	case comparables >= 10:
		return ConfidenceMedium
	}
	return ConfidenceLow
}

// finalize adds the summed adjustment factors to base, clamps at zero and rounds.
func finalize(base float64, adjustments []Adjustment) int64 {
	total := 0.0
	for _, a := range adjustments {
		total += a.Factor
	}
	value := base * (1 + total)
	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return 0
	}
	if value >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(math.Round(value))
}
