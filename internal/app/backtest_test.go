package app

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"meanrevbacktest/internal/config"
	"meanrevbacktest/internal/domain"
	"meanrevbacktest/internal/logger"
	mock_repository "meanrevbacktest/internal/repository/mocks"
	l1_service "meanrevbacktest/internal/service/l1"
	interestrate "meanrevbacktest/pkg/interest_rate"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakePriceService struct {
	series *domain.PriceSeries
	err    error
	got    *l1_service.LoadPriceSeriesInput
}

func (f *fakePriceService) LoadPriceSeries(ctx context.Context, in l1_service.LoadPriceSeriesInput) (*domain.PriceSeries, error) {
	f.got = &in
	return f.series, f.err
}

type fakeYieldCurveClient struct {
	rates map[int]float64
	err   error
}

func (f fakeYieldCurveClient) GetYieldCurve(ctx context.Context, date time.Time) (*interestrate.InterestRateMap, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &interestrate.InterestRateMap{Rates: f.rates}, nil
}

func scenarioPrices() domain.PriceSeries {
	dates := []time.Time{}
	for i := 0; i < 6; i++ {
		dates = append(dates, time.Date(2020, 1, 1+i, 0, 0, 0, 0, time.UTC))
	}
	a := []float64{100, 100, 100, 100, 90, 100}
	b := []float64{50, 50, 50, 50, 50, 50}
	rows := make([][]float64, len(a))
	for i := range a {
		rows[i] = []float64{a[i], b[i]}
	}
	return domain.PriceSeries{
		Dates:   dates,
		Symbols: []string{"A", "B"},
		Prices:  rows,
	}
}

func scenarioParams() domain.StrategyParams {
	return domain.StrategyParams{
		LookbackWindow:  3,
		EntryZScore:     1.0,
		ExitZScore:      0.3,
		MaxPositionSize: 0.5,
		InitialCapital:  1000,
		TransactionCost: 0.001,
	}
}

func TestBacktestHandler_Run(t *testing.T) {
	t.Run("two asset scenario", func(t *testing.T) {
		h := BacktestHandler{}
		run, err := h.Run(context.Background(), scenarioParams(), scenarioPrices())
		require.NoError(t, err)

		flat, long := domain.PositionFlat, domain.PositionLong
		require.Equal(
			t,
			[][]domain.Position{
				{flat, flat},
				{flat, flat},
				{flat, flat},
				{flat, flat},
				{long, flat},
				{flat, flat},
			},
			run.Signals.Positions,
		)
		require.Equal(
			t,
			[][]float64{
				{0, 0},
				{0, 0},
				{0, 0},
				{0, 0},
				{0.5, 0},
				{0, 0},
			},
			run.Weights.Weights,
		)

		require.Equal(t, []float64{0, 0, 0, 0, 0.5, 0.5}, run.Result.Turnover)

		day4 := -0.5 * 0.001
		day5 := 0.5*(100.0/90.0-1) - 0.5*0.001
		require.InDelta(t, day4, run.Result.NetReturns[4], 1e-12)
		require.InDelta(t, day5, run.Result.NetReturns[5], 1e-12)
		require.InDelta(t, 1000*(1+day4)*(1+day5), run.Result.FinalEquity(), 1e-9)

		require.InDelta(t, 1.0/6.0, run.Metrics.WinRate, 1e-12)
		require.InDelta(t, day4, run.Metrics.MaxDrawdown, 1e-12)
		require.False(t, math.IsNaN(run.Metrics.SharpeRatio))

		for _, e := range run.Result.EquityCurve {
			require.Greater(t, e, 0.0)
		}
		require.NotNil(t, run.Profile)
		require.Len(t, run.Profile.Spans, 5)
	})

	t.Run("reruns are identical", func(t *testing.T) {
		h := BacktestHandler{}
		first, err := h.Run(context.Background(), scenarioParams(), scenarioPrices())
		require.NoError(t, err)
		second, err := h.Run(context.Background(), scenarioParams(), scenarioPrices())
		require.NoError(t, err)

		require.Equal(t, "", cmp.Diff(first.Result, second.Result))
		require.Equal(t, "", cmp.Diff(first.Signals, second.Signals))
		require.Equal(t, first.Metrics.SharpeRatio, second.Metrics.SharpeRatio)
	})

	t.Run("no trades gives nan sharpe", func(t *testing.T) {
		params := scenarioParams()
		params.EntryZScore = 50
		run, err := BacktestHandler{}.Run(context.Background(), params, scenarioPrices())
		require.NoError(t, err)
		require.True(t, math.IsNaN(run.Metrics.SharpeRatio))
		require.Equal(t, 0.0, run.Metrics.MaxDrawdown)
		require.Equal(t, 1000.0, run.Result.FinalEquity())
	})

	t.Run("invalid params", func(t *testing.T) {
		params := scenarioParams()
		params.ExitZScore = 1.5
		_, err := BacktestHandler{}.Run(context.Background(), params, scenarioPrices())
		require.ErrorIs(t, err, ErrInvalidParams)
		require.ErrorContains(t, err, "ExitZScore")

		params = scenarioParams()
		params.LookbackWindow = 1
		_, err = BacktestHandler{}.Run(context.Background(), params, scenarioPrices())
		require.ErrorIs(t, err, ErrInvalidParams)
	})

	t.Run("records run", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		runRepository := mock_repository.NewMockBacktestRunRepository(ctrl)

		var recorded domain.BacktestRunRecord
		runRepository.EXPECT().
			Add(gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, r domain.BacktestRunRecord) error {
				recorded = r
				return nil
			})

		h := BacktestHandler{RunRepository: runRepository}
		run, err := h.Run(context.Background(), scenarioParams(), scenarioPrices())
		require.NoError(t, err)
		require.Equal(t, run.RunID, recorded.RunID)
		require.Equal(t, []string{"A", "B"}, recorded.Symbols)
		require.Equal(t, scenarioParams(), recorded.Params)
		require.Equal(t, time.Date(2020, 1, 6, 0, 0, 0, 0, time.UTC), recorded.EndDate)
	})

	t.Run("record failure does not fail the run", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		runRepository := mock_repository.NewMockBacktestRunRepository(ctrl)
		runRepository.EXPECT().Add(gomock.Any(), gomock.Any()).Return(errors.New("connection refused"))

		h := BacktestHandler{RunRepository: runRepository}
		_, err := h.Run(context.Background(), scenarioParams(), scenarioPrices())
		require.NoError(t, err)
	})

	t.Run("summary log agrees with metrics", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		ctx := logger.NewContext(context.Background(), zap.New(core).Sugar())

		run, err := BacktestHandler{}.Run(ctx, scenarioParams(), scenarioPrices())
		require.NoError(t, err)

		summaries := logs.FilterMessage("backtest summary").All()
		require.Len(t, summaries, 1)
		require.Equal(t, run.Metrics.TotalReturn, summaries[0].ContextMap()["totalReturn"])
		require.Equal(t, run.Metrics.FinalEquity, summaries[0].ContextMap()["finalEquity"])
	})

	t.Run("flat prices never trade", func(t *testing.T) {
		dates := []time.Time{}
		rows := [][]float64{}
		for i := 0; i < 25; i++ {
			dates = append(dates, time.Date(2020, 1, 1+i, 0, 0, 0, 0, time.UTC))
			rows = append(rows, []float64{101.37, 0.1})
		}
		params := scenarioParams()
		params.LookbackWindow = 20
		params.EntryZScore = 0.5
		params.ExitZScore = 0.1

		run, err := BacktestHandler{}.Run(context.Background(), params, domain.PriceSeries{
			Dates:   dates,
			Symbols: []string{"A", "B"},
			Prices:  rows,
		})
		require.NoError(t, err)
		for _, row := range run.Signals.Positions {
			require.Equal(t, []domain.Position{domain.PositionFlat, domain.PositionFlat}, row)
		}
		require.Equal(t, 1000.0, run.Result.FinalEquity())
	})

	t.Run("empty prices", func(t *testing.T) {
		_, err := BacktestHandler{}.Run(context.Background(), scenarioParams(), domain.PriceSeries{})
		require.ErrorIs(t, err, ErrInvalidParams)
	})
}

func TestBacktestHandler_RunFromConfig(t *testing.T) {
	cfg := config.Config{
		Assets:          []string{"A", "B"},
		StartDate:       "2020-01-01",
		EndDate:         "2020-01-06",
		InitialCapital:  1000,
		LookbackWindow:  3,
		EntryZScore:     1,
		ExitZScore:      0.3,
		MaxPositionSize: 0.5,
		TransactionCost: 0.001,
		RiskFreeSource:  config.RiskFreeSource_Treasury,
	}

	t.Run("uses treasury rate", func(t *testing.T) {
		prices := scenarioPrices()
		priceService := &fakePriceService{series: &prices}
		h := BacktestHandler{
			PriceService:     priceService,
			YieldCurveClient: fakeYieldCurveClient{rates: map[int]float64{12: 0.0159}},
		}

		run, err := h.RunFromConfig(context.Background(), cfg)
		require.NoError(t, err)
		require.Equal(t, 0.0159, run.Params.RiskFreeRate)
		require.Equal(t, []string{"A", "B"}, priceService.got.Symbols)
		require.Equal(t, time.Date(2020, 1, 6, 0, 0, 0, 0, time.UTC), priceService.got.End)
		require.Equal(t, "getting risk free rate", run.Profile.Spans[0].Name)
		require.Equal(t, "loading prices", run.Profile.Spans[1].Name)
	})

	t.Run("price load failure", func(t *testing.T) {
		fixed := cfg
		fixed.RiskFreeSource = config.RiskFreeSource_Fixed
		h := BacktestHandler{
			PriceService: &fakePriceService{err: errors.New("no prices found for A")},
		}
		_, err := h.RunFromConfig(context.Background(), fixed)
		require.ErrorContains(t, err, "failed to load prices")
	})

	t.Run("failed stages close their spans", func(t *testing.T) {
		profile, _ := domain.NewProfile()
		ctx := domain.NewCtxWithProfile(context.Background(), profile)
		h := BacktestHandler{
			PriceService:     &fakePriceService{err: errors.New("no prices found for A")},
			YieldCurveClient: fakeYieldCurveClient{err: errors.New("treasury api returned 500")},
		}

		_, err := h.RunFromConfig(ctx, cfg)
		require.ErrorContains(t, err, "treasury api returned 500")
		require.Len(t, profile.Spans, 1)
		require.Equal(t, "getting risk free rate", profile.Spans[0].Name)
		require.NotNil(t, profile.Spans[0].Elapsed)

		fixed := cfg
		fixed.RiskFreeSource = config.RiskFreeSource_Fixed
		profile, _ = domain.NewProfile()
		ctx = domain.NewCtxWithProfile(context.Background(), profile)
		_, err = h.RunFromConfig(ctx, fixed)
		require.Error(t, err)
		require.Len(t, profile.Spans, 1)
		require.Equal(t, "loading prices", profile.Spans[0].Name)
		require.NotNil(t, profile.Spans[0].Elapsed)
		require.NotNil(t, profile.Spans[0].SubProfile)
	})

	t.Run("treasury without client", func(t *testing.T) {
		prices := scenarioPrices()
		h := BacktestHandler{PriceService: &fakePriceService{series: &prices}}
		_, err := h.RunFromConfig(context.Background(), cfg)
		require.Error(t, err)
	})
}
