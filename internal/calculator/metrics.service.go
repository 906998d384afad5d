package calculator

import (
	"fmt"
	"math"

	"meanrevbacktest/internal/domain"

	"github.com/montanaflynn/stats"
)

const TradingDaysPerYear = 252

type CalculateMetricsInput struct {
	NetReturns  []float64
	EquityCurve []float64
	Turnover    []float64
	// annual rate, spread evenly over trading days
	RiskFreeRate float64
}

// CalculateMetrics rolls a backtest up into its summary statistics. The
// Sharpe ratio is NaN rather than an error when excess returns have no
// variance, e.g. a single observation or a strategy that never traded,
// so callers can tell "no risk taken" apart from a failed calculation.
func CalculateMetrics(in CalculateMetricsInput) (*domain.PerformanceMetrics, error) {
	if len(in.NetReturns) == 0 {
		return nil, fmt.Errorf("cannot calculate metrics on empty return series")
	}
	if len(in.EquityCurve) != len(in.NetReturns) {
		return nil, fmt.Errorf("received %d returns but %d equity values", len(in.NetReturns), len(in.EquityCurve))
	}

	sharpe, err := SharpeRatio(in.NetReturns, in.RiskFreeRate)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate sharpe ratio: %w", err)
	}

	stdev, err := stats.StandardDeviationSample(in.NetReturns)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate stdev: %w", err)
	}

	growth := 1.0
	for _, r := range in.NetReturns {
		growth *= 1 + r
	}
	annualizedReturn := math.Pow(growth, TradingDaysPerYear/float64(len(in.NetReturns))) - 1

	averageTurnover := 0.0
	if len(in.Turnover) > 0 {
		averageTurnover, err = stats.Mean(in.Turnover)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate average turnover: %w", err)
		}
	}

	endValue := in.EquityCurve[len(in.EquityCurve)-1]

	return &domain.PerformanceMetrics{
		SharpeRatio:      sharpe,
		MaxDrawdown:      MaxDrawdown(in.EquityCurve),
		WinRate:          WinRate(in.NetReturns),
		TotalReturn:      TotalReturn(in.EquityCurve),
		AnnualizedReturn: annualizedReturn,
		AnnualizedStdev:  stdev * math.Sqrt(TradingDaysPerYear),
		AverageTurnover:  averageTurnover,
		FinalEquity:      endValue,
	}, nil
}

// SharpeRatio annualizes mean daily excess return over its sample stdev
func SharpeRatio(returns []float64, riskFreeRate float64) (float64, error) {
	dailyRiskFree := riskFreeRate / TradingDaysPerYear
	excess := make(stats.Float64Data, len(returns))
	for i, r := range returns {
		excess[i] = r - dailyRiskFree
	}

	mean, err := excess.Mean()
	if err != nil {
		return 0, err
	}
	stdev, err := excess.StandardDeviationSample()
	if err != nil {
		return 0, err
	}
	if stdev == 0 || math.IsNaN(stdev) {
		return math.NaN(), nil
	}

	return math.Sqrt(TradingDaysPerYear) * mean / stdev, nil
}

// TotalReturn measures growth from the first day's closing equity,
// which is already net of that day's costs
func TotalReturn(equityCurve []float64) float64 {
	if len(equityCurve) == 0 {
		return 0
	}
	return equityCurve[len(equityCurve)-1]/equityCurve[0] - 1
}

// MaxDrawdown is the worst peak-to-trough decline, as a non-positive
// fraction of the running peak
func MaxDrawdown(equityCurve []float64) float64 {
	maxDrawdown := 0.0
	peak := math.Inf(-1)
	for _, equity := range equityCurve {
		peak = math.Max(peak, equity)
		maxDrawdown = math.Min(maxDrawdown, equity/peak-1)
	}
	return maxDrawdown
}

func WinRate(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	wins := 0
	for _, r := range returns {
		if r > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(returns))
}
