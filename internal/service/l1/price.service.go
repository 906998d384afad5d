package l1_service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"meanrevbacktest/internal/domain"
	"meanrevbacktest/internal/logger"
	"meanrevbacktest/internal/repository"
	"meanrevbacktest/internal/util"

	"golang.org/x/sync/errgroup"
)

/**

when i ask for prices, i should get back a dense table with one row per
trading day and one column per requested symbol

the cache is checked first. a symbol is only considered cached if the
cache covers the requested range, give or take a week of non-trading days.
everything else goes upstream, one request per symbol

*/

const (
	defaultFetchConcurrency = 4
	cacheCoverageBufferDays = 7
)

type PriceService interface {
	LoadPriceSeries(ctx context.Context, in LoadPriceSeriesInput) (*domain.PriceSeries, error)
}

type LoadPriceSeriesInput struct {
	Symbols []string
	Start   time.Time
	End     time.Time
}

type priceServiceHandler struct {
	UpstreamRepository repository.PriceRepository
	// nil when caching is disabled
	CacheRepository  repository.PriceCacheRepository
	FetchConcurrency int
}

func NewPriceService(upstreamRepository repository.PriceRepository, cacheRepository repository.PriceCacheRepository) PriceService {
	return priceServiceHandler{
		UpstreamRepository: upstreamRepository,
		CacheRepository:    cacheRepository,
		FetchConcurrency:   defaultFetchConcurrency,
	}
}

func (h priceServiceHandler) LoadPriceSeries(ctx context.Context, in LoadPriceSeriesInput) (*domain.PriceSeries, error) {
	profile, endProfile := domain.GetProfile(ctx)
	defer endProfile()
	log := logger.FromContext(ctx)

	if len(in.Symbols) == 0 {
		return nil, fmt.Errorf("no symbols requested")
	}
	if in.End.Before(in.Start) {
		return nil, fmt.Errorf("end date %s is before start date %s", in.End.Format(time.DateOnly), in.Start.Format(time.DateOnly))
	}

	prices := []domain.AssetPrice{}
	missing := in.Symbols

	if h.CacheRepository != nil {
		_, endSpan := profile.StartNewSpan("reading price cache")
		cached, err := h.CacheRepository.List(ctx, in.Symbols, in.Start, in.End)
		endSpan()
		if err != nil {
			return nil, fmt.Errorf("failed to read price cache: %w", err)
		}
		var hits []domain.AssetPrice
		hits, missing = splitCacheCoverage(in.Symbols, cached, in.Start, in.End)
		prices = append(prices, hits...)
		log.Debugw("price cache lookup", "hits", len(in.Symbols)-len(missing), "misses", len(missing))
	}

	if len(missing) > 0 {
		_, endSpan := profile.StartNewSpan("fetching upstream prices")
		fetched, err := h.fetchUpstream(ctx, missing, in.Start, in.End)
		endSpan()
		if err != nil {
			return nil, err
		}
		prices = append(prices, fetched...)

		if h.CacheRepository != nil {
			if err := h.CacheRepository.Add(ctx, fetched); err != nil {
				// a stale cache only costs another fetch next time
				log.Warnw("failed to write prices to cache", "error", err)
			}
		}
	}

	_, endSpan := profile.StartNewSpan("building price series")
	defer endSpan()

	return BuildPriceSeries(in.Symbols, filterDateRange(prices, in.Start, in.End))
}

func (h priceServiceHandler) fetchUpstream(ctx context.Context, symbols []string, start, end time.Time) ([]domain.AssetPrice, error) {
	results := make([][]domain.AssetPrice, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	limit := h.FetchConcurrency
	if limit < 1 {
		limit = defaultFetchConcurrency
	}
	g.SetLimit(limit)

	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			prices, err := h.UpstreamRepository.List(gctx, []string{symbol}, start, end)
			if err != nil {
				return fmt.Errorf("failed to fetch prices for %s: %w", symbol, err)
			}
			results[i] = prices
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := []domain.AssetPrice{}
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// splitCacheCoverage returns the cached prices for symbols whose cached
// history spans the requested range, and the symbols that need a fetch
func splitCacheCoverage(symbols []string, cached []domain.AssetPrice, start, end time.Time) ([]domain.AssetPrice, []string) {
	bySymbol := map[string][]domain.AssetPrice{}
	for _, p := range cached {
		bySymbol[p.Symbol] = append(bySymbol[p.Symbol], p)
	}

	bufferedStart := start.AddDate(0, 0, cacheCoverageBufferDays)
	bufferedEnd := end.AddDate(0, 0, -cacheCoverageBufferDays)

	hits := []domain.AssetPrice{}
	missing := []string{}
	for _, symbol := range symbols {
		prices := bySymbol[symbol]
		if len(prices) == 0 {
			missing = append(missing, symbol)
			continue
		}
		first, last := prices[0].Date, prices[0].Date
		for _, p := range prices {
			if p.Date.Before(first) {
				first = p.Date
			}
			if p.Date.After(last) {
				last = p.Date
			}
		}
		if first.After(bufferedStart) || last.Before(bufferedEnd) {
			missing = append(missing, symbol)
			continue
		}
		hits = append(hits, prices...)
	}

	return hits, missing
}

func filterDateRange(prices []domain.AssetPrice, start, end time.Time) []domain.AssetPrice {
	out := make([]domain.AssetPrice, 0, len(prices))
	for _, p := range prices {
		if !util.DateInRange(p.Date, start, end) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// BuildPriceSeries pivots raw prices into a dense table. Dates with no
// price for any symbol are dropped, then each column is forward filled
// and back filled. Symbols keep the requested order.
func BuildPriceSeries(symbols []string, prices []domain.AssetPrice) (*domain.PriceSeries, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols requested")
	}

	symbolIndex := map[string]int{}
	for j, symbol := range symbols {
		if _, ok := symbolIndex[symbol]; ok {
			return nil, fmt.Errorf("duplicate symbol %s", symbol)
		}
		symbolIndex[symbol] = j
	}

	byDate := map[time.Time][]float64{}
	for _, p := range prices {
		j, ok := symbolIndex[p.Symbol]
		if !ok {
			continue
		}
		price := p.Price.InexactFloat64()
		if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
			return nil, fmt.Errorf("invalid price %s for %s on %s", p.Price.String(), p.Symbol, p.Date.Format(time.DateOnly))
		}
		date := util.TruncateToDate(p.Date)
		row, ok := byDate[date]
		if !ok {
			row = make([]float64, len(symbols))
			for k := range row {
				row[k] = math.NaN()
			}
			byDate[date] = row
		}
		row[j] = price
	}

	dates := make([]time.Time, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Slice(dates, func(a, b int) bool {
		return dates[a].Before(dates[b])
	})

	rows := make([][]float64, len(dates))
	for i, date := range dates {
		rows[i] = byDate[date]
	}

	for j, symbol := range symbols {
		if !fillColumn(rows, j) {
			return nil, fmt.Errorf("no prices found for %s", symbol)
		}
	}

	return &domain.PriceSeries{
		Dates:   dates,
		Symbols: symbols,
		Prices:  rows,
	}, nil
}

// fillColumn forward fills then back fills column j in place. It
// returns false if the column has no values at all.
func fillColumn(rows [][]float64, j int) bool {
	firstValid := -1
	last := math.NaN()
	for i := range rows {
		if math.IsNaN(rows[i][j]) {
			rows[i][j] = last
			continue
		}
		if firstValid < 0 {
			firstValid = i
		}
		last = rows[i][j]
	}
	if firstValid < 0 {
		return false
	}
	for i := 0; i < firstValid; i++ {
		rows[i][j] = rows[firstValid][j]
	}
	return true
}
