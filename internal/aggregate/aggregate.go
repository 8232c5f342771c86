// Package aggregate provides the statistics used to price players from market
// listings and sale history.
package aggregate

import (
	"math"
	"sort"

	"github.com/yourorg/mfl-sync/internal/model"
)

// Mean berechnet den einfachen Durchschnitt. Leere Eingaben ergeben 0.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// WeightedMean berechnet den gewichteten Durchschnitt. Nicht-positive Gewichte
// werden ignoriert.
func WeightedMean(values, weights []float64) float64 {
	var total, weighted float64
	for i, v := range values {
		if i >= len(weights) || weights[i] <= 0 {
			continue
		}
		total += weights[i]
		weighted += v * weights[i]
	}
	if total <= 0 || math.IsNaN(weighted) {
		return 0
	}
	return weighted / total
}

// Median berechnet den Medianwert, robust gegen Ausreißer.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// Quartiles returns the first and third quartile of values using the lower index
// convention (n/4 and 3n/4 of the sorted slice).
func Quartiles(values []float64) (q1, q3 float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	return sorted[n/4], sorted[n*3/4]
}

// FilterOutliers entfernt Listings, deren Preis außerhalb von 1.5*IQR liegt.
// Weniger als vier Listings werden unverändert zurückgegeben.
func FilterOutliers(listings []model.MarketListing) []model.MarketListing {
	if len(listings) < 4 {
		return listings
	}

	prices := Prices(listings)
	q1, q3 := Quartiles(prices)
	iqr := q3 - q1
	lowerBound := q1 - 1.5*iqr
	upperBound := q3 + 1.5*iqr

	filtered := make([]model.MarketListing, 0, len(listings))
	for _, l := range listings {
		if l.Price >= lowerBound && l.Price <= upperBound {
			filtered = append(filtered, l)
		}
	}
	if len(filtered) == 0 {
		return listings
	}
	return filtered
}

// Prices extracts listing prices in order.
func Prices(listings []model.MarketListing) []float64 {
	out := make([]float64, len(listings))
	for i, l := range listings {
		out[i] = l.Price
	}
	return out
}

// MeanBy averages selector over listings.
func MeanBy(listings []model.MarketListing, selector func(model.MarketListing) float64) float64 {
	values := make([]float64, len(listings))
	for i, l := range listings {
		values[i] = selector(l)
	}
	return Mean(values)
}
