package l1_service

import (
	"fmt"
	"math"

	"meanrevbacktest/internal/domain"

	"github.com/montanaflynn/stats"
)

// ComputeZScores standardizes every price against the trailing window
// of `window` observations ending on (and including) its own date, using
// the sample stdev. Cells without a full window, or whose window is
// constant, hold the no-signal sentinel.
func ComputeZScores(prices domain.PriceSeries, window int) (*domain.ZScoreTable, error) {
	if window < 1 {
		return nil, fmt.Errorf("cannot compute z-scores with window %d", window)
	}

	values := make([][]domain.ZScore, prices.NumDates())
	for i := range values {
		values[i] = make([]domain.ZScore, prices.NumAssets())
	}

	for j, symbol := range prices.Symbols {
		column := prices.Column(j)
		zScores, err := rollingZScores(column, window)
		if err != nil {
			return nil, fmt.Errorf("failed to compute z-scores for %s: %w", symbol, err)
		}
		for i, z := range zScores {
			values[i][j] = z
		}
	}

	return &domain.ZScoreTable{
		Dates:   prices.Dates,
		Symbols: prices.Symbols,
		Values:  values,
	}, nil
}

func rollingZScores(series []float64, window int) ([]domain.ZScore, error) {
	out := make([]domain.ZScore, len(series))
	for i := window - 1; i < len(series); i++ {
		dataset := stats.Float64Data(series[i-window+1 : i+1])
		// a flat window can leave rounding noise in the stdev, so it is
		// caught before dividing by it
		constant, err := isConstant(dataset)
		if err != nil {
			return nil, err
		}
		if constant {
			continue
		}

		mean, err := stats.Mean(dataset)
		if err != nil {
			return nil, err
		}
		stdev, err := stats.StandardDeviationSample(dataset)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate stdev: %w", err)
		}

		// a window of one observation has an undefined (NaN) sample stdev
		if stdev == 0 || math.IsNaN(stdev) {
			continue
		}
		out[i] = domain.NewZScore((series[i] - mean) / stdev)
	}
	return out, nil
}

func isConstant(dataset stats.Float64Data) (bool, error) {
	low, err := dataset.Min()
	if err != nil {
		return false, err
	}
	high, err := dataset.Max()
	if err != nil {
		return false, err
	}
	return low == high, nil
}
