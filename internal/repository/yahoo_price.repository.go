package repository

import (
	"context"
	"fmt"
	"time"

	"meanrevbacktest/internal/domain"
	"meanrevbacktest/internal/util"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
)

// NewYahooPriceRepository returns daily adjusted closes from the yahoo
// chart api
func NewYahooPriceRepository() PriceRepository {
	return yahooPriceRepositoryHandler{}
}

type yahooPriceRepositoryHandler struct{}

func (h yahooPriceRepositoryHandler) List(ctx context.Context, symbols []string, start, end time.Time) ([]domain.AssetPrice, error) {
	out := []domain.AssetPrice{}
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		prices, err := h.listSymbol(symbol, start, end)
		if err != nil {
			return nil, err
		}
		out = append(out, prices...)
	}
	return out, nil
}

func (h yahooPriceRepositoryHandler) listSymbol(symbol string, start, end time.Time) ([]domain.AssetPrice, error) {
	// the chart api treats end as exclusive
	inclusiveEnd := end.AddDate(0, 0, 1)
	params := &chart.Params{
		Start:    datetime.New(&start),
		End:      datetime.New(&inclusiveEnd),
		Symbol:   symbol,
		Interval: datetime.OneDay,
	}
	iter := chart.Get(params)

	out := []domain.AssetPrice{}
	for iter.Next() {
		bar := iter.Bar()
		out = append(out, domain.AssetPrice{
			Symbol: symbol,
			Date:   util.TruncateToDate(time.Unix(int64(bar.Timestamp), 0).UTC()),
			Price:  bar.AdjClose,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to get prices for %s: %w", symbol, err)
	}

	return out, nil
}
