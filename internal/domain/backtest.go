package domain

import (
	"time"

	"github.com/google/uuid"
)

// StrategyParams is the validated, immutable set of knobs the signal
// pipeline runs with. It is built once from config and passed by value.
type StrategyParams struct {
	LookbackWindow  int     `validate:"gte=2"`
	EntryZScore     float64 `validate:"gt=0"`
	ExitZScore      float64 `validate:"gte=0,ltfield=EntryZScore"`
	MaxPositionSize float64 `validate:"gt=0,lte=1"`
	InitialCapital  float64 `validate:"gt=0"`
	TransactionCost float64 `validate:"gte=0,lt=0.01"`
	RiskFreeRate    float64 `validate:"gte=0,lt=1"`
}

// BacktestResult holds the aligned daily series produced by a backtest
type BacktestResult struct {
	Dates        []time.Time
	EquityCurve  []float64
	NetReturns   []float64
	Turnover     []float64
	GrossReturns []float64
	Costs        []float64
}

func (b BacktestResult) FinalEquity() float64 {
	if len(b.EquityCurve) == 0 {
		return 0
	}
	return b.EquityCurve[len(b.EquityCurve)-1]
}

type PerformanceMetrics struct {
	// NaN when the excess return series has zero or undefined variance
	SharpeRatio float64
	MaxDrawdown float64
	WinRate     float64

	TotalReturn      float64
	AnnualizedReturn float64
	AnnualizedStdev  float64
	AverageTurnover  float64
	FinalEquity      float64
}

// BacktestRunRecord is what gets persisted about a finished run
type BacktestRunRecord struct {
	RunID     uuid.UUID
	Symbols   []string
	StartDate time.Time
	EndDate   time.Time
	Params    StrategyParams
	Metrics   PerformanceMetrics
	Profile   *Profile
}
