package calculator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSharpeRatio(t *testing.T) {
	t.Run("single zero return is NaN", func(t *testing.T) {
		sharpe, err := SharpeRatio([]float64{0}, 0)
		require.NoError(t, err)
		require.True(t, math.IsNaN(sharpe))
	})

	t.Run("all zero returns is NaN", func(t *testing.T) {
		sharpe, err := SharpeRatio([]float64{0, 0, 0, 0}, 0)
		require.NoError(t, err)
		require.True(t, math.IsNaN(sharpe))
	})

	t.Run("known series", func(t *testing.T) {
		// mean 0.01, sample stdev 0.01
		sharpe, err := SharpeRatio([]float64{0.0, 0.01, 0.02}, 0)
		require.NoError(t, err)
		require.InDelta(t, math.Sqrt(252), sharpe, 1e-9)
	})

	t.Run("risk free rate is subtracted daily", func(t *testing.T) {
		sharpe, err := SharpeRatio([]float64{0.0, 0.01, 0.02}, 0.0252*100)
		require.NoError(t, err)
		// daily rf = 0.01, so mean excess is zero
		require.InDelta(t, 0, sharpe, 1e-9)
	})

	t.Run("empty series errors", func(t *testing.T) {
		_, err := SharpeRatio([]float64{}, 0)
		require.Error(t, err)
	})
}

func TestMaxDrawdown(t *testing.T) {
	t.Run("monotonic equity", func(t *testing.T) {
		require.Equal(t, 0.0, MaxDrawdown([]float64{100, 100, 101, 150}))
	})

	t.Run("worst trough from running peak", func(t *testing.T) {
		dd := MaxDrawdown([]float64{100, 120, 90, 130, 104, 140})
		require.InDelta(t, -0.25, dd, 1e-12)
	})

	t.Run("drop from first value", func(t *testing.T) {
		require.InDelta(t, -0.5, MaxDrawdown([]float64{100, 50, 75}), 1e-12)
	})
}

func TestWinRate(t *testing.T) {
	require.Equal(t, 0.5, WinRate([]float64{0.01, 0, -0.02, 0.03}))
	require.Equal(t, 0.0, WinRate([]float64{0, 0}))
	require.Equal(t, 0.0, WinRate(nil))
}

func TestTotalReturn(t *testing.T) {
	require.InDelta(t, -0.34, TotalReturn([]float64{100, 110, 55, 66}), 1e-12)
	// day one already paid its cost, so growth starts from 999
	require.InDelta(t, 1010.0/999.0-1, TotalReturn([]float64{999, 1010}), 1e-12)
	require.Equal(t, 0.0, TotalReturn(nil))
}

func TestCalculateMetrics(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		netReturns := []float64{0, 0.1, -0.5, 0.2}
		equity := []float64{100, 110, 55, 66}

		metrics, err := CalculateMetrics(CalculateMetricsInput{
			NetReturns:  netReturns,
			EquityCurve: equity,
			Turnover:    []float64{0, 1, 0, 1},
		})
		require.NoError(t, err)

		require.InDelta(t, -0.5, metrics.MaxDrawdown, 1e-12)
		require.Equal(t, 0.5, metrics.WinRate)
		require.InDelta(t, -0.34, metrics.TotalReturn, 1e-12)
		require.Equal(t, 66.0, metrics.FinalEquity)
		require.Equal(t, 0.5, metrics.AverageTurnover)
		require.InDelta(t, math.Pow(0.66, 63)-1, metrics.AnnualizedReturn, 1e-9)
		require.False(t, math.IsNaN(metrics.SharpeRatio))
		require.Less(t, metrics.SharpeRatio, 0.0)
	})

	t.Run("single day reports NaN sharpe", func(t *testing.T) {
		metrics, err := CalculateMetrics(CalculateMetricsInput{
			NetReturns:  []float64{0},
			EquityCurve: []float64{1000},
		})
		require.NoError(t, err)
		require.True(t, math.IsNaN(metrics.SharpeRatio))
		require.Equal(t, 0.0, metrics.MaxDrawdown)
		require.Equal(t, 0.0, metrics.WinRate)
	})

	t.Run("empty series", func(t *testing.T) {
		_, err := CalculateMetrics(CalculateMetricsInput{})
		require.Error(t, err)
	})

	t.Run("misaligned series", func(t *testing.T) {
		_, err := CalculateMetrics(CalculateMetricsInput{
			NetReturns:  []float64{0, 0.1},
			EquityCurve: []float64{1},
		})
		require.Error(t, err)
	})
}
