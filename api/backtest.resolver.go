package api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"meanrevbacktest/internal/app"
	"meanrevbacktest/internal/domain"
	l1_service "meanrevbacktest/internal/service/l1"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type PricePoint struct {
	Symbol string  `json:"symbol" binding:"required"`
	Date   string  `json:"date" binding:"required"`
	Price  float64 `json:"price"`
}

type BacktestRequest struct {
	// either inline prices, or assets plus a date range to fetch
	Prices    []PricePoint `json:"prices"`
	Assets    []string     `json:"assets"`
	StartDate string       `json:"startDate"`
	EndDate   string       `json:"endDate"`

	LookbackWindow  int     `json:"lookbackWindow"`
	EntryZScore     float64 `json:"entryZScore"`
	ExitZScore      float64 `json:"exitZScore"`
	MaxPositionSize float64 `json:"maxPositionSize"`
	InitialCapital  float64 `json:"initialCapital"`
	TransactionCost float64 `json:"transactionCost"`

	RiskFreeRate    float64 `json:"riskFreeRate"`
	UseTreasuryRate bool    `json:"useTreasuryRate"`
}

type MetricsResponse struct {
	SharpeRatio      *float64 `json:"sharpeRatio"`
	MaxDrawdown      *float64 `json:"maxDrawdown"`
	WinRate          *float64 `json:"winRate"`
	TotalReturn      *float64 `json:"totalReturn"`
	AnnualizedReturn *float64 `json:"annualizedReturn"`
	AnnualizedStdev  *float64 `json:"annualizedStdev"`
	AverageTurnover  *float64 `json:"averageTurnover"`
	FinalEquity      *float64 `json:"finalEquity"`
}

type BacktestResponse struct {
	RunID       string                 `json:"runID"`
	Symbols     []string               `json:"symbols"`
	Dates       []string               `json:"dates"`
	EquityCurve []*float64             `json:"equityCurve"`
	NetReturns  []*float64             `json:"netReturns"`
	Turnover    []*float64             `json:"turnover"`
	Positions   map[string][]int       `json:"positions"`
	Weights     map[string][]*float64  `json:"weights"`
	ZScores     map[string][]*float64  `json:"zScores"`
	Metrics     MetricsResponse        `json:"metrics"`
	Profile     *domain.Profile        `json:"profile"`
	Params      map[string]interface{} `json:"params"`
}

// errBadRequest marks failures caused by the request itself
var errBadRequest = errors.New("bad request")

func (m ApiHandler) backtest(c *gin.Context) {
	profile, endProfile := domain.NewProfile()
	defer endProfile()
	ctx := domain.NewCtxWithProfile(c.Request.Context(), profile)

	var requestBody BacktestRequest
	if err := c.ShouldBindJSON(&requestBody); err != nil {
		returnErrorJsonCode(err, c, 400)
		return
	}

	params := domain.StrategyParams{
		LookbackWindow:  requestBody.LookbackWindow,
		EntryZScore:     requestBody.EntryZScore,
		ExitZScore:      requestBody.ExitZScore,
		MaxPositionSize: requestBody.MaxPositionSize,
		InitialCapital:  requestBody.InitialCapital,
		TransactionCost: requestBody.TransactionCost,
		RiskFreeRate:    requestBody.RiskFreeRate,
	}

	prices, err := m.loadPrices(ctx, profile, requestBody)
	if err != nil {
		if errors.Is(err, errBadRequest) {
			returnErrorJsonCode(err, c, 400)
		} else {
			returnErrorJson(err, c)
		}
		return
	}

	if requestBody.UseTreasuryRate {
		_, endSpan := profile.StartNewSpan("getting risk free rate")
		rate, err := m.BacktestHandler.TreasuryRiskFreeRate(ctx, prices.FirstDate())
		endSpan()
		if err != nil {
			returnErrorJson(err, c)
			return
		}
		params.RiskFreeRate = rate
	}

	run, err := m.BacktestHandler.Run(ctx, params, *prices)
	if err != nil {
		if errors.Is(err, app.ErrInvalidParams) {
			returnErrorJsonCode(err, c, 400)
		} else {
			returnErrorJson(err, c)
		}
		return
	}
	backtestDays.Observe(float64(run.Prices.NumDates()))

	c.JSON(200, backtestResponseFromRun(*run))
}

func (m ApiHandler) loadPrices(ctx context.Context, profile *domain.Profile, in BacktestRequest) (*domain.PriceSeries, error) {
	if len(in.Prices) > 0 {
		return pricesFromRequest(in)
	}

	if len(in.Assets) == 0 {
		return nil, fmt.Errorf("%w: either prices or assets must be provided", errBadRequest)
	}
	start, err := time.Parse(time.DateOnly, in.StartDate)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse startDate: %s", errBadRequest, err.Error())
	}
	end, err := time.Parse(time.DateOnly, in.EndDate)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse endDate: %s", errBadRequest, err.Error())
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date cannot be before start date", errBadRequest)
	}
	if m.BacktestHandler.PriceService == nil {
		return nil, fmt.Errorf("price fetching is not configured")
	}

	symbols := make([]string, len(in.Assets))
	for i, a := range in.Assets {
		symbols[i] = strings.ToUpper(strings.TrimSpace(a))
	}

	span, endSpan := profile.StartNewSpan("loading prices")
	defer endSpan()
	return m.BacktestHandler.PriceService.LoadPriceSeries(domain.NewCtxWithSubProfile(ctx, span), l1_service.LoadPriceSeriesInput{
		Symbols: symbols,
		Start:   start,
		End:     end,
	})
}

func pricesFromRequest(in BacktestRequest) (*domain.PriceSeries, error) {
	symbols := []string{}
	seen := map[string]bool{}
	for _, a := range in.Assets {
		symbol := strings.ToUpper(strings.TrimSpace(a))
		if !seen[symbol] {
			seen[symbol] = true
			symbols = append(symbols, symbol)
		}
	}
	restrictToAssets := len(symbols) > 0

	assetPrices := make([]domain.AssetPrice, 0, len(in.Prices))
	for _, p := range in.Prices {
		symbol := strings.ToUpper(strings.TrimSpace(p.Symbol))
		date, err := time.Parse(time.DateOnly, p.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse price date %s", errBadRequest, p.Date)
		}
		if !seen[symbol] {
			if restrictToAssets {
				continue
			}
			seen[symbol] = true
			symbols = append(symbols, symbol)
		}
		assetPrices = append(assetPrices, domain.AssetPrice{
			Symbol: symbol,
			Date:   date,
			Price:  decimal.NewFromFloat(p.Price),
		})
	}

	series, err := l1_service.BuildPriceSeries(symbols, assetPrices)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errBadRequest, err.Error())
	}
	return series, nil
}

func nullableFloat(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func nullableFloats(in []float64) []*float64 {
	out := make([]*float64, len(in))
	for i, f := range in {
		out[i] = nullableFloat(f)
	}
	return out
}

func backtestResponseFromRun(run app.BacktestRun) BacktestResponse {
	dates := make([]string, len(run.Result.Dates))
	for i, d := range run.Result.Dates {
		dates[i] = d.Format(time.DateOnly)
	}

	positions := map[string][]int{}
	weights := map[string][]*float64{}
	zScores := map[string][]*float64{}
	for j, symbol := range run.Prices.Symbols {
		p := []int{}
		for _, pos := range run.Signals.Column(j) {
			p = append(p, int(pos))
		}
		positions[symbol] = p

		w := make([]*float64, len(run.Weights.Weights))
		for i := range w {
			w[i] = nullableFloat(run.Weights.Weights[i][j])
		}
		weights[symbol] = w

		z := []*float64{}
		for _, zScore := range run.ZScores.Column(j) {
			if !zScore.Valid {
				z = append(z, nil)
				continue
			}
			z = append(z, nullableFloat(zScore.Value))
		}
		zScores[symbol] = z
	}

	metrics := run.Metrics
	return BacktestResponse{
		RunID:       run.RunID.String(),
		Symbols:     run.Prices.Symbols,
		Dates:       dates,
		EquityCurve: nullableFloats(run.Result.EquityCurve),
		NetReturns:  nullableFloats(run.Result.NetReturns),
		Turnover:    nullableFloats(run.Result.Turnover),
		Positions:   positions,
		Weights:     weights,
		ZScores:     zScores,
		Metrics: MetricsResponse{
			SharpeRatio:      nullableFloat(metrics.SharpeRatio),
			MaxDrawdown:      nullableFloat(metrics.MaxDrawdown),
			WinRate:          nullableFloat(metrics.WinRate),
			TotalReturn:      nullableFloat(metrics.TotalReturn),
			AnnualizedReturn: nullableFloat(metrics.AnnualizedReturn),
			AnnualizedStdev:  nullableFloat(metrics.AnnualizedStdev),
			AverageTurnover:  nullableFloat(metrics.AverageTurnover),
			FinalEquity:      nullableFloat(metrics.FinalEquity),
		},
		Profile: run.Profile,
		Params: map[string]interface{}{
			"lookbackWindow":  run.Params.LookbackWindow,
			"entryZScore":     run.Params.EntryZScore,
			"exitZScore":      run.Params.ExitZScore,
			"maxPositionSize": run.Params.MaxPositionSize,
			"initialCapital":  run.Params.InitialCapital,
			"transactionCost": run.Params.TransactionCost,
			"riskFreeRate":    run.Params.RiskFreeRate,
		},
	}
}
