package repository

import (
	"context"
	"fmt"
	"time"

	"meanrevbacktest/internal/domain"
	"meanrevbacktest/internal/util"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
)

func NewAlpacaPriceRepository(apiKey, apiSecret, endpoint string) PriceRepository {
	return alpacaPriceRepositoryHandler{
		MdClient: marketdata.NewClient(marketdata.ClientOpts{
			BaseURL:   endpoint,
			APIKey:    apiKey,
			APISecret: apiSecret,
		}),
	}
}

type alpacaPriceRepositoryHandler struct {
	MdClient *marketdata.Client
}

// List returns split and dividend adjusted daily closes
func (h alpacaPriceRepositoryHandler) List(ctx context.Context, symbols []string, start, end time.Time) ([]domain.AssetPrice, error) {
	if len(symbols) == 0 {
		return []domain.AssetPrice{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	barsBySymbol, err := h.MdClient.GetMultiBars(symbols, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: marketdata.All,
		Start:      start,
		End:        end.AddDate(0, 0, 1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get alpaca bars: %w", err)
	}

	out := []domain.AssetPrice{}
	for symbol, bars := range barsBySymbol {
		for _, bar := range bars {
			if bar.Close == 0 {
				return nil, fmt.Errorf("failed to get price for %s on %s: got 0 price", symbol, bar.Timestamp.Format(time.DateOnly))
			}
			out = append(out, domain.AssetPrice{
				Symbol: symbol,
				Date:   util.TruncateToDate(bar.Timestamp.UTC()),
				Price:  decimal.NewFromFloat(bar.Close),
			})
		}
	}

	return out, nil
}
