package valuation

import "github.com/yourorg/mfl-sync/internal/model"

var attackingPositions = map[model.Position]bool{
	model.ST:  true,
	model.CF:  true,
	model.CAM: true,
	model.LW:  true,
	model.RW:  true,
}

// FallbackBase is the tiered base value for a player's overall. Higher tiers
// add more per point.
func FallbackBase(overall int) float64 {
	o := float64(overall)
	switch {
	case overall >= 90:
		return 800 + (o-90)*100
	case overall >= 85:
		return 400 + (o-85)*80
	case overall >= 80:
		return 200 + (o-80)*40
	case overall >= 75:
		return 100 + (o-75)*20
	case overall >= 70:
		return 50 + (o-70)*10
	}
	return max(25, o*3)
}

func ageFactor(age int) float64 {
	switch {
	case age <= 25:
		return 0.20
	case age <= 30:
		return 0
	case age <= 35:
		return -0.10
	}
	return -0.30
}

func (e *Estimator) fallback(in Input) Estimate {
	meta := in.Metadata
	base := FallbackBase(meta.Overall)

	var adjustments []Adjustment
	if f := ageFactor(meta.Age); f != 0 {
		adjustments = append(adjustments, Adjustment{Name: "age", Factor: f})
	}
	for _, p := range meta.Positions {
		if attackingPositions[p] {
			adjustments = append(adjustments, Adjustment{Name: "attacking_position", Factor: 0.15})
			break
		}
	}
	if len(meta.Positions) > 1 {
		adjustments = append(adjustments, Adjustment{Name: "multi_position", Factor: 0.10})
	}
	if e.random != nil {
		adjustments = append(adjustments, Adjustment{Name: "volatility", Factor: e.random.Float64()*0.2 - 0.1})
	}

	return Estimate{
		Value:       finalize(base, adjustments),
		Method:      MethodFallback,
		Confidence:  ConfidenceLow,
		BaseValue:   base,
		Adjustments: adjustments,
	}
}
