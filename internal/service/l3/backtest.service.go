package l3_service

import (
	"fmt"
	"math"

	"meanrevbacktest/internal/domain"
)

type RunBacktestInput struct {
	Prices          domain.PriceSeries
	Weights         domain.WeightTable
	InitialCapital  float64
	TransactionCost float64
}

// RunBacktest replays the weights against the prices one day at a time.
// Returns on a day come from the previous day's weights, so a signal
// never trades on the price move that produced it. Turnover on the first
// day is measured against an all-cash portfolio.
func RunBacktest(in RunBacktestInput) (*domain.BacktestResult, error) {
	if err := checkAligned(in.Prices, in.Weights); err != nil {
		return nil, err
	}

	numDates := in.Prices.NumDates()
	numAssets := in.Prices.NumAssets()
	out := &domain.BacktestResult{
		Dates:        in.Prices.Dates,
		EquityCurve:  make([]float64, numDates),
		NetReturns:   make([]float64, numDates),
		Turnover:     make([]float64, numDates),
		GrossReturns: make([]float64, numDates),
		Costs:        make([]float64, numDates),
	}

	prevWeights := make([]float64, numAssets)
	growth := 1.0
	for i := 0; i < numDates; i++ {
		weights := in.Weights.Weights[i]

		gross := 0.0
		if i > 0 {
			for j := 0; j < numAssets; j++ {
				assetReturn := in.Prices.Prices[i][j]/in.Prices.Prices[i-1][j] - 1
				gross += prevWeights[j] * assetReturn
			}
		}

		turnover := 0.0
		for j := 0; j < numAssets; j++ {
			turnover += math.Abs(weights[j] - prevWeights[j])
		}

		cost := turnover * in.TransactionCost
		net := gross - cost
		growth *= 1 + net

		out.GrossReturns[i] = gross
		out.Turnover[i] = turnover
		out.Costs[i] = cost
		out.NetReturns[i] = net
		out.EquityCurve[i] = growth * in.InitialCapital

		prevWeights = weights
	}

	return out, nil
}

func checkAligned(prices domain.PriceSeries, weights domain.WeightTable) error {
	if len(prices.Prices) != len(weights.Weights) {
		return fmt.Errorf("prices have %d dates but weights have %d", len(prices.Prices), len(weights.Weights))
	}
	if len(prices.Dates) != len(prices.Prices) {
		return fmt.Errorf("prices have %d dates but %d rows", len(prices.Dates), len(prices.Prices))
	}
	for i := range prices.Prices {
		if len(prices.Prices[i]) != len(prices.Symbols) || len(weights.Weights[i]) != len(prices.Symbols) {
			return fmt.Errorf("row %d is not aligned with %d symbols", i, len(prices.Symbols))
		}
	}
	return nil
}
