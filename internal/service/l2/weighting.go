package l2_service

import (
	"meanrevbacktest/internal/domain"
)

// AllocateWeights splits maxPositionSize equally across every asset that
// holds a position on a date, signed by direction. Signal strength is
// not taken into account. Days with no position hold nothing.
func AllocateWeights(positions domain.PositionTable, maxPositionSize float64) domain.WeightTable {
	weights := make([][]float64, len(positions.Positions))
	for i, row := range positions.Positions {
		weights[i] = make([]float64, len(row))

		active := 0
		for _, p := range row {
			active += p.Abs()
		}
		if active == 0 {
			continue
		}

		scale := maxPositionSize / float64(active)
		for j, p := range row {
			weights[i][j] = float64(p) * scale
		}
	}

	return domain.WeightTable{
		Dates:   positions.Dates,
		Symbols: positions.Symbols,
		Weights: weights,
	}
}
