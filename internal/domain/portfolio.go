package domain

import (
	"math"
	"time"
)

// WeightTable holds the target portfolio weight of every asset on every
// date. Gross exposure on a date never exceeds the max position size the
// table was allocated with.
type WeightTable struct {
	Dates   []time.Time
	Symbols []string
	Weights [][]float64
}

// GrossExposure is the sum of absolute weights on the date at index i
func (w WeightTable) GrossExposure(i int) float64 {
	sum := 0.0
	for _, weight := range w.Weights[i] {
		sum += math.Abs(weight)
	}
	return sum
}

// AssetWeights returns the weights held on the date at index i, keyed by
// symbol. Flat assets are left out.
func (w WeightTable) AssetWeights(i int) map[string]float64 {
	out := map[string]float64{}
	for j, weight := range w.Weights[i] {
		if weight != 0 {
			out[w.Symbols[j]] = weight
		}
	}
	return out
}

// MaxAbsWeights is the largest absolute weight each asset ever held,
// keyed by symbol
func (w WeightTable) MaxAbsWeights() map[string]float64 {
	out := map[string]float64{}
	for j, symbol := range w.Symbols {
		out[symbol] = 0
		for _, row := range w.Weights {
			out[symbol] = math.Max(out[symbol], math.Abs(row[j]))
		}
	}
	return out
}
