package valuation

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/mfl-sync/internal/model"
)

func intPtr(v int) *int { return &v }

func comparable(price float64, age, overall int) model.MarketListing {
	var l model.MarketListing
	l.Price = price
	l.Player.Metadata.Age = age
	l.Player.Metadata.Overall = overall
	return l
}

func centreBack() model.PlayerMetadata {
	return model.PlayerMetadata{
		Overall:    80,
		Age:        25,
		Positions:  []model.Position{model.CB},
		Attributes: model.Attributes{Pace: 70},
	}
}

func TestFallbackBase(t *testing.T) {
	tests := []struct {
		overall int
		want    float64
	}{
		{95, 1300},
		{90, 800},
		{87, 560},
		{85, 400},
		{82, 280},
		{80, 200},
		{77, 140},
		{75, 100},
		{72, 70},
		{70, 50},
		{60, 180},
		{5, 25},
		{0, 25},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, FallbackBase(tt.overall), 1e-9, "overall %d", tt.overall)
	}
}

func TestEstimate_FallbackDeterministic(t *testing.T) {
	est := NewEstimator(WithoutJitter()).Estimate(Input{
		Metadata: model.PlayerMetadata{Overall: 80, Age: 24, Positions: []model.Position{model.ST}},
	})
	assert.Equal(t, MethodFallback, est.Method)
	assert.Equal(t, ConfidenceLow, est.Confidence)
	// 200 * (1 + 0.20 + 0.15)
	assert.Equal(t, int64(270), est.Value)

	multi := NewEstimator(WithoutJitter()).Estimate(Input{
		Metadata: model.PlayerMetadata{Overall: 80, Age: 33, Positions: []model.Position{model.CB, model.CDM}},
	})
	// 200 * (1 - 0.10 + 0.10)
	assert.Equal(t, int64(200), multi.Value)

	veteran := NewEstimator(WithoutJitter()).Estimate(Input{
		Metadata: model.PlayerMetadata{Overall: 70, Age: 37, Positions: []model.Position{model.GK}},
	})
	assert.Equal(t, int64(35), veteran.Value)
}

func TestEstimate_FallbackAdjustmentsAdd(t *testing.T) {
	in := Input{Metadata: model.PlayerMetadata{Overall: 80, Age: 24, Positions: []model.Position{model.ST, model.CF}}}

	// 200 * (1 + 0.20 + 0.15 + 0.10), not 200 * 1.20 * 1.15 * 1.10
	assert.Equal(t, int64(290), NewEstimator(WithoutJitter()).Estimate(in).Value)
	// top of the jitter range adds another 0.10
	assert.Equal(t, int64(310), NewEstimator(WithRandom(FixedSource(1.0))).Estimate(in).Value)
}

func TestEstimate_FallbackJitterBounds(t *testing.T) {
	in := Input{Metadata: model.PlayerMetadata{Overall: 85, Age: 28, Positions: []model.Position{model.CM}}}

	low := NewEstimator(WithRandom(FixedSource(0))).Estimate(in)
	high := NewEstimator(WithRandom(FixedSource(0.999999))).Estimate(in)
	mid := NewEstimator(WithRandom(FixedSource(0.5))).Estimate(in)

	assert.Equal(t, int64(360), low.Value)
	assert.Equal(t, int64(400), mid.Value)
	assert.Equal(t, int64(440), high.Value)
}

func TestEstimate_SeededIsReproducible(t *testing.T) {
	in := Input{Metadata: model.PlayerMetadata{Overall: 83, Age: 22, Positions: []model.Position{model.LW, model.RW}}}
	a := NewEstimator(WithSeed(42))
	b := NewEstimator(WithSeed(42))
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Estimate(in).Value, b.Estimate(in).Value)
	}
}

func TestEstimate_Comparables(t *testing.T) {
	comps := []model.MarketListing{comparable(100, 25, 80), comparable(120, 25, 80), comparable(140, 25, 80)}
	est := NewEstimator().Estimate(Input{Metadata: centreBack(), Comparables: comps})

	assert.Equal(t, MethodComparables, est.Method)
	assert.Equal(t, ConfidenceLow, est.Confidence)
	assert.InDelta(t, 120, est.BaseValue, 1e-9)
	// single owner premium only
	assert.Equal(t, int64(126), est.Value)
	assert.Equal(t, 3, est.Comparables)
}

func TestEstimate_FewComparablesUseMedian(t *testing.T) {
	comps := []model.MarketListing{comparable(100, 25, 80), comparable(110, 25, 80), comparable(900, 25, 80)}
	est := NewEstimator().Estimate(Input{Metadata: centreBack(), Comparables: comps})
	assert.InDelta(t, 110, est.BaseValue, 1e-9)

	five := append(comps, comparable(110, 25, 80), comparable(120, 25, 80))
	est = NewEstimator().Estimate(Input{Metadata: centreBack(), Comparables: five})
	// 900 is outside 1.5 IQR, the rest average to 110
	assert.InDelta(t, 110, est.BaseValue, 1e-9)
}

func TestEstimate_ComparablesWithSales(t *testing.T) {
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	comps := []model.MarketListing{comparable(100, 25, 80), comparable(120, 25, 80), comparable(140, 25, 80)}
	sales := []model.SaleEntry{
		{Price: 1000, PurchaseDate: now.AddDate(0, -6, 0)},
		{Price: 200, PurchaseDate: now},
		{Price: 100, PurchaseDate: now.AddDate(0, -1, 0)},
		{Price: 100, PurchaseDate: now.AddDate(0, -2, 0)},
	}

	est := NewEstimator().Estimate(Input{Metadata: centreBack(), Comparables: comps, Sales: sales})
	// 0.7*120 + 0.3*mean(200,100,100)
	assert.InDelta(t, 124, est.BaseValue, 1e-9)
	assert.Equal(t, int64(124), est.Value)
	assert.Equal(t, 4, est.Sales)
}

func factors(est Estimate) map[string]float64 {
	out := map[string]float64{}
	for _, a := range est.Adjustments {
		out[a.Name] = a.Factor
	}
	return out
}

// priceAt100 prices meta against three listings at 100 matching a 25 year old
// rated 80.
func priceAt100(in Input) Estimate {
	in.Comparables = []model.MarketListing{comparable(100, 25, 80), comparable(100, 25, 80), comparable(100, 25, 80)}
	return NewEstimator().Estimate(in)
}

func TestEstimate_ComparableAdjustmentsAdd(t *testing.T) {
	comps := []model.MarketListing{
		comparable(100, 26, 79), comparable(100, 26, 79), comparable(100, 26, 79),
		comparable(100, 26, 79), comparable(100, 26, 79),
	}
	player := centreBack()
	player.Positions = []model.Position{model.CB, model.RB}
	est := NewEstimator().Estimate(Input{
		Metadata:    player,
		Comparables: comps,
		Sales: []model.SaleEntry{
			{Price: 100, PurchaseDate: time.Unix(2000, 0)},
			{Price: 100, PurchaseDate: time.Unix(1000, 0)},
		},
		Progression: []model.ProgressionPoint{
			{Date: time.Unix(3000, 0), Overall: 80},
			{Date: time.Unix(1000, 0), Overall: 60},
		},
		PositionRatings: map[model.Position]model.PositionRating{
			model.CB: {Rating: 83}, model.RB: {Rating: 78}, model.GK: {Rating: 20},
		},
		MatchCount:      intPtr(12),
		RetirementYears: intPtr(2),
	})

	got := factors(est)
	assert.InDelta(t, -0.02, got["age"], 1e-9, "younger than the comparables")
	assert.InDelta(t, 0.03, got["overall"], 1e-9)
	assert.InDelta(t, 0.10, got["position"], 1e-9)
	assert.InDelta(t, 0.25, got["progression"], 1e-9)
	assert.InDelta(t, -0.10, got["retirement"], 1e-9)
	assert.NotContains(t, got, "single_owner")
	assert.NotContains(t, got, "newly_minted")
	assert.Len(t, got, 5)

	// 100 * (1 - 0.02 + 0.03 + 0.10 + 0.25 - 0.10)
	assert.Equal(t, int64(126), est.Value)
}

func TestEstimate_AgeAgainstComparables(t *testing.T) {
	player := centreBack()
	player.Age = 30
	est := priceAt100(Input{Metadata: player})
	assert.InDelta(t, 0.10, factors(est)["age"], 1e-9, "older than the comparables")
	// 100 * (1 + 0.10 + 0.05)
	assert.Equal(t, int64(115), est.Value)
}

func TestEstimate_OverallAgainstComparables(t *testing.T) {
	player := centreBack()
	player.Overall = 78
	est := priceAt100(Input{Metadata: player})
	assert.InDelta(t, -0.06, factors(est)["overall"], 1e-9)
}

func TestEstimate_PositionPremium(t *testing.T) {
	tests := []struct {
		name    string
		ratings map[model.Position]int
		listed  []model.Position
		want    float64
	}{
		{"two playable", map[model.Position]int{model.LB: 80, model.LWB: 75, model.CB: 68, model.RB: 63}, nil, 0.10},
		{"three playable", map[model.Position]int{model.LB: 80, model.LWB: 75, model.CB: 74, model.RB: 63}, nil, 0.15},
		{"four playable", map[model.Position]int{model.LB: 80, model.LWB: 75, model.CB: 74, model.RB: 76, model.CDM: 63}, nil, 0.20},
		{"one playable", map[model.Position]int{model.LB: 80, model.LWB: 68, model.CB: 63, model.RB: 58}, nil, 0},
		{"zero ratings are not playable", map[model.Position]int{model.LB: 80, model.LWB: 0, model.CB: 74, model.RB: 0}, nil, 0.10},
		{"listed positions without ratings", nil, []model.Position{model.LB, model.LWB, model.CB, model.RB}, 0.20},
		{"single listed position", nil, []model.Position{model.CB}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			player := centreBack()
			if tt.listed != nil {
				player.Positions = tt.listed
			}
			var ratings map[model.Position]model.PositionRating
			if tt.ratings != nil {
				ratings = map[model.Position]model.PositionRating{}
				for p, r := range tt.ratings {
					ratings[p] = model.PositionRating{Rating: r}
				}
			}
			est := priceAt100(Input{Metadata: player, PositionRatings: ratings})
			assert.InDelta(t, tt.want, factors(est)["position"], 1e-9)
		})
	}
}

func TestEstimate_Progression(t *testing.T) {
	series := func(first, last int) []model.ProgressionPoint {
		return []model.ProgressionPoint{
			{Date: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), Overall: first},
			{Date: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Overall: last},
		}
	}
	tests := []struct {
		name   string
		series []model.ProgressionPoint
		want   float64
	}{
		{"gained twenty or more", series(60, 82), 0.25},
		{"flat", series(82, 82), -0.15},
		{"modest gain", series(75, 82), 0},
		{"declined", series(84, 82), 0},
		{"single point", series(82, 82)[:1], 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est := priceAt100(Input{Metadata: centreBack(), Progression: tt.series})
			assert.InDelta(t, tt.want, factors(est)["progression"], 1e-9)
		})
	}

	flat := priceAt100(Input{Metadata: centreBack(), Progression: series(82, 82)})
	// 100 * (1 + 0.05 - 0.15)
	assert.Equal(t, int64(90), flat.Value)
}

func TestEstimate_NewlyMinted(t *testing.T) {
	fresh := priceAt100(Input{Metadata: centreBack(), MatchCount: intPtr(5)})
	assert.InDelta(t, 0.10, factors(fresh)["newly_minted"], 1e-9)
	// 100 * (1 + 0.05 + 0.10)
	assert.Equal(t, int64(115), fresh.Value)

	seasoned := priceAt100(Input{Metadata: centreBack(), MatchCount: intPtr(15)})
	assert.NotContains(t, factors(seasoned), "newly_minted")

	unknown := priceAt100(Input{Metadata: centreBack()})
	assert.NotContains(t, factors(unknown), "newly_minted")
}

func TestEstimate_Pace(t *testing.T) {
	tests := []struct {
		name      string
		pace      int
		overall   int
		positions []model.Position
		want      float64
	}{
		{"very fast central player", 90, 80, []model.Position{model.CM, model.CAM}, 0.10},
		{"fast central player", 87, 80, []model.Position{model.CM, model.CAM}, 0.05},
		{"fast winger", 90, 80, []model.Position{model.LW, model.RW}, 0},
		{"fast full back", 95, 80, []model.Position{model.RB}, 0},
		{"slow outfield player", 45, 80, []model.Position{model.CB}, -0.10},
		{"slow goalkeeper", 45, 80, []model.Position{model.GK}, 0},
		{"slow low rated player", 45, 60, []model.Position{model.CB}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			player := centreBack()
			player.Pace = tt.pace
			player.Overall = tt.overall
			player.Positions = tt.positions
			est := priceAt100(Input{Metadata: player})
			assert.InDelta(t, tt.want, factors(est)["pace"], 1e-9)
		})
	}
}

func TestEstimate_GoalkeeperHeight(t *testing.T) {
	tests := []struct {
		name      string
		height    int
		positions []model.Position
		want      float64
	}{
		{"tall goalkeeper", 190, []model.Position{model.GK}, 0.05},
		{"short goalkeeper", 170, []model.Position{model.GK}, -0.05},
		{"average goalkeeper", 182, []model.Position{model.GK}, 0},
		{"unknown height", 0, []model.Position{model.GK}, 0},
		{"tall defender", 190, []model.Position{model.LB, model.CB}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			player := centreBack()
			player.Height = tt.height
			player.Positions = tt.positions
			est := priceAt100(Input{Metadata: player})
			assert.InDelta(t, tt.want, factors(est)["height"], 1e-9)
		})
	}
}

func TestEstimate_ConfidenceByComparables(t *testing.T) {
	for _, tt := range []struct {
		n    int
		want string
	}{{25, ConfidenceHigh}, {24, ConfidenceMedium}, {10, ConfidenceMedium}, {9, ConfidenceLow}, {1, ConfidenceLow}} {
		comps := make([]model.MarketListing, tt.n)
		for i := range comps {
			comps[i] = comparable(100, 25, 80)
		}
		est := NewEstimator().Estimate(Input{Metadata: centreBack(), Comparables: comps})
		assert.Equal(t, tt.want, est.Confidence, "%d comparables", tt.n)
	}
}

func TestEstimate_RetirementFromMetadata(t *testing.T) {
	player := centreBack()
	player.RetirementYears = intPtr(1)
	est := NewEstimator().Estimate(Input{Metadata: player, Comparables: []model.MarketListing{comparable(100, 25, 80)}})
	// 100 * (1 + 0.05 - 0.20)
	assert.Equal(t, int64(85), est.Value)
	assert.Equal(t, ConfidenceLow, est.Confidence)
}

func TestEstimate_NeverNegativeOrNonFinite(t *testing.T) {
	estimator := NewEstimator(WithSeed(1))
	metas := []model.PlayerMetadata{
		{},
		{Overall: 99, Age: 18, Positions: []model.Position{model.ST, model.CF, model.CAM}},
		{Overall: 40, Age: 45, Positions: []model.Position{model.GK}},
	}
	compSets := [][]model.MarketListing{nil, {comparable(0, 0, 0)}, {comparable(-50, 99, 1), comparable(10, 20, 99)}}
	saleSets := [][]model.SaleEntry{nil, {{Price: -1000}}, {{Price: 5}, {Price: 7}}}
	progressions := [][]model.ProgressionPoint{nil, {{Overall: 99}, {Date: time.Unix(1, 0), Overall: 0}}}
	counts := []*int{nil, intPtr(0), intPtr(30)}
	retire := []*int{nil, intPtr(0), intPtr(5)}

	for _, meta := range metas {
		for _, comps := range compSets {
			for _, sales := range saleSets {
				for _, prog := range progressions {
					for _, mc := range counts {
						for _, ry := range retire {
							est := estimator.Estimate(Input{
								Metadata: meta, Comparables: comps, Sales: sales,
								Progression: prog, MatchCount: mc, RetirementYears: ry,
							})
							require.GreaterOrEqual(t, est.Value, int64(0))
						}
					}
				}
			}
		}
	}
}

func TestFinalize(t *testing.T) {
	assert.Equal(t, int64(0), finalize(math.NaN(), nil))
	assert.Equal(t, int64(0), finalize(math.Inf(1), nil))
	assert.Equal(t, int64(0), finalize(-10, nil))
	assert.Equal(t, int64(11), finalize(10, []Adjustment{{Name: "x", Factor: 0.1}}))
	assert.Equal(t, int64(13), finalize(10, []Adjustment{{Name: "x", Factor: 0.2}, {Name: "y", Factor: 0.1}}))
	assert.Equal(t, int64(0), finalize(10, []Adjustment{{Name: "x", Factor: -0.8}, {Name: "y", Factor: -0.5}}))
}
