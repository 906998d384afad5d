package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"meanrevbacktest/internal/calculator"
	"meanrevbacktest/internal/config"
	"meanrevbacktest/internal/domain"
	"meanrevbacktest/internal/logger"
	"meanrevbacktest/internal/repository"
	l1_service "meanrevbacktest/internal/service/l1"
	l2_service "meanrevbacktest/internal/service/l2"
	l3_service "meanrevbacktest/internal/service/l3"
	interestrate "meanrevbacktest/pkg/interest_rate"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
)

// maturity used when the risk free rate comes from the yield curve
const riskFreeMaturityMonths = 12

var validate = validator.New()

// ErrInvalidParams wraps parameter validation failures so callers can
// tell bad input apart from a failed run
var ErrInvalidParams = errors.New("invalid strategy params")

type YieldCurveClient interface {
	GetYieldCurve(ctx context.Context, date time.Time) (*interestrate.InterestRateMap, error)
}

type BacktestHandler struct {
	PriceService     l1_service.PriceService
	YieldCurveClient YieldCurveClient
	ExportRepository repository.ResultsExportRepository
	// optional, runs are only recorded when set
	RunRepository repository.BacktestRunRepository
}

// BacktestRun carries every intermediate table of a run so callers can
// render or export whichever stage they need
type BacktestRun struct {
	RunID   uuid.UUID
	Params  domain.StrategyParams
	Prices  domain.PriceSeries
	ZScores domain.ZScoreTable
	Signals domain.PositionTable
	Weights domain.WeightTable
	Result  domain.BacktestResult
	Metrics domain.PerformanceMetrics
	Profile *domain.Profile
}

// Run executes the pipeline on prices that are already dense
func (h BacktestHandler) Run(ctx context.Context, params domain.StrategyParams, prices domain.PriceSeries) (*BacktestRun, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}
	if prices.NumDates() == 0 || prices.NumAssets() == 0 {
		return nil, fmt.Errorf("%w: price series is empty", ErrInvalidParams)
	}

	profile, endProfile := domain.GetProfile(ctx)
	defer endProfile()
	log := logger.FromContext(ctx)

	run := &BacktestRun{
		RunID:   uuid.New(),
		Params:  params,
		Prices:  prices,
		Profile: profile,
	}
	log = log.With("runID", run.RunID)
	logDataSummary(log, prices)

	_, endSpan := profile.StartNewSpan("computing z-scores")
	zScores, err := l1_service.ComputeZScores(prices, params.LookbackWindow)
	endSpan()
	if err != nil {
		return nil, fmt.Errorf("failed to compute z-scores: %w", err)
	}
	run.ZScores = *zScores

	_, endSpan = profile.StartNewSpan("generating signals")
	run.Signals = l2_service.GenerateSignals(run.ZScores, l2_service.NewSignalThresholds(params))
	endSpan()
	log.Infow("signals generated", "activeDays", run.Signals.ActiveDays())

	_, endSpan = profile.StartNewSpan("allocating weights")
	run.Weights = l2_service.AllocateWeights(run.Signals, params.MaxPositionSize)
	endSpan()
	log.Infow("weights allocated", "maxAbsWeight", run.Weights.MaxAbsWeights())

	_, endSpan = profile.StartNewSpan("running backtest")
	result, err := l3_service.RunBacktest(l3_service.RunBacktestInput{
		Prices:          prices,
		Weights:         run.Weights,
		InitialCapital:  params.InitialCapital,
		TransactionCost: params.TransactionCost,
	})
	endSpan()
	if err != nil {
		return nil, fmt.Errorf("failed to run backtest: %w", err)
	}
	run.Result = *result
	logBacktestSummary(log, params, run.Result)

	_, endSpan = profile.StartNewSpan("calculating metrics")
	metrics, err := calculator.CalculateMetrics(calculator.CalculateMetricsInput{
		NetReturns:   run.Result.NetReturns,
		EquityCurve:  run.Result.EquityCurve,
		Turnover:     run.Result.Turnover,
		RiskFreeRate: params.RiskFreeRate,
	})
	endSpan()
	if err != nil {
		return nil, fmt.Errorf("failed to calculate metrics: %w", err)
	}
	run.Metrics = *metrics

	log.Infow(
		"backtest complete",
		"sharpeRatio", metrics.SharpeRatio,
		"maxDrawdown", metrics.MaxDrawdown,
		"winRate", metrics.WinRate,
		"annualizedReturn", metrics.AnnualizedReturn,
		"annualizedStdev", metrics.AnnualizedStdev,
	)

	if h.RunRepository != nil {
		err := h.RunRepository.Add(ctx, domain.BacktestRunRecord{
			RunID:     run.RunID,
			Symbols:   prices.Symbols,
			StartDate: prices.FirstDate(),
			EndDate:   prices.LastDate(),
			Params:    params,
			Metrics:   run.Metrics,
			Profile:   profile,
		})
		if err != nil {
			log.Warnw("failed to record backtest run", "error", err)
		}
	}

	return run, nil
}

// RunFromConfig loads prices and the risk free rate for a validated
// config, then runs the pipeline
func (h BacktestHandler) RunFromConfig(ctx context.Context, cfg config.Config) (*BacktestRun, error) {
	profile, endProfile := domain.GetProfile(ctx)
	defer endProfile()
	ctx = domain.NewCtxWithProfile(ctx, profile)

	start, end, err := cfg.Dates()
	if err != nil {
		return nil, err
	}
	params := cfg.StrategyParams()

	if cfg.RiskFreeSource == config.RiskFreeSource_Treasury {
		_, endSpan := profile.StartNewSpan("getting risk free rate")
		rate, err := h.TreasuryRiskFreeRate(ctx, start)
		endSpan()
		if err != nil {
			return nil, err
		}
		params.RiskFreeRate = rate
	}

	span, endSpan := profile.StartNewSpan("loading prices")
	prices, err := h.PriceService.LoadPriceSeries(domain.NewCtxWithSubProfile(ctx, span), l1_service.LoadPriceSeriesInput{
		Symbols: cfg.Assets,
		Start:   start,
		End:     end,
	})
	endSpan()
	if err != nil {
		return nil, fmt.Errorf("failed to load prices: %w", err)
	}

	return h.Run(ctx, params, *prices)
}

// TreasuryRiskFreeRate reads the one year yield on the date
func (h BacktestHandler) TreasuryRiskFreeRate(ctx context.Context, date time.Time) (float64, error) {
	if h.YieldCurveClient == nil {
		return 0, fmt.Errorf("treasury risk free rate requested but no yield curve client is configured")
	}
	curve, err := h.YieldCurveClient.GetYieldCurve(ctx, date)
	if err != nil {
		return 0, fmt.Errorf("failed to get yield curve: %w", err)
	}
	rate, err := curve.GetRate(riskFreeMaturityMonths)
	if err != nil {
		return 0, err
	}
	logger.FromContext(ctx).Infow("using treasury risk free rate", "date", date.Format(time.DateOnly), "rate", rate)
	return rate, nil
}

// Export writes the run's daily series to a csv file
func (h BacktestHandler) Export(ctx context.Context, path string, run BacktestRun) error {
	if h.ExportRepository == nil {
		return fmt.Errorf("no export repository configured")
	}
	if err := h.ExportRepository.Export(path, run.Result); err != nil {
		return err
	}
	logger.FromContext(ctx).Infow("exported results", "path", path, "rows", len(run.Result.Dates))
	return nil
}

func validateParams(params domain.StrategyParams) error {
	err := validate.Struct(params)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	msgs := []string{}
	for _, e := range validationErrors {
		msgs = append(msgs, fmt.Sprintf("%s failed %s=%s (got %v)", e.Field(), e.Tag(), e.Param(), e.Value()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidParams, strings.Join(msgs, "; "))
}

func logDataSummary(log *zap.SugaredLogger, prices domain.PriceSeries) {
	log.Infow(
		"loaded price data",
		"numDates", prices.NumDates(),
		"numAssets", prices.NumAssets(),
		"symbols", prices.Symbols,
		"firstDate", prices.FirstDate().Format(time.DateOnly),
		"lastDate", prices.LastDate().Format(time.DateOnly),
	)
}

func logBacktestSummary(log *zap.SugaredLogger, params domain.StrategyParams, result domain.BacktestResult) {
	meanReturn, _ := stats.Mean(result.NetReturns)
	stdReturn, _ := stats.StandardDeviationSample(result.NetReturns)
	avgTurnover, _ := stats.Mean(result.Turnover)
	finalEquity := result.FinalEquity()

	log.Infow(
		"backtest summary",
		"initialCapital", params.InitialCapital,
		"finalEquity", finalEquity,
		"totalReturn", calculator.TotalReturn(result.EquityCurve),
		"meanDailyReturn", meanReturn,
		"stdDailyReturn", stdReturn,
		"averageTurnover", avgTurnover,
	)
}
