package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"meanrevbacktest/internal/db/models/postgres/public/model"
	. "meanrevbacktest/internal/db/models/postgres/public/table"
	"meanrevbacktest/internal/domain"
	"meanrevbacktest/internal/util"

	. "github.com/go-jet/jet/v2/postgres"
	"github.com/shopspring/decimal"
)

const adjustedPriceBatchSize = 5000

const createAdjustedPriceTable = `
CREATE TABLE IF NOT EXISTS adjusted_price (
	symbol     TEXT NOT NULL,
	date       DATE NOT NULL,
	price      NUMERIC NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT now(),
	PRIMARY KEY (symbol, date)
)`

func NewAdjustedPriceRepository(db *sql.DB) *AdjustedPriceRepositoryHandler {
	return &AdjustedPriceRepositoryHandler{
		Db: db,
	}
}

type AdjustedPriceRepositoryHandler struct {
	Db *sql.DB
}

func (h AdjustedPriceRepositoryHandler) Migrate(ctx context.Context) error {
	if _, err := h.Db.ExecContext(ctx, createAdjustedPriceTable); err != nil {
		return fmt.Errorf("failed to create adjusted_price table: %w", err)
	}
	return nil
}

func (h AdjustedPriceRepositoryHandler) List(ctx context.Context, symbols []string, start, end time.Time) ([]domain.AssetPrice, error) {
	if len(symbols) == 0 {
		return []domain.AssetPrice{}, nil
	}

	result := []model.AdjustedPrice{}
	err := listAdjustedPricesQuery(symbols, start, end).QueryContext(ctx, h.Db, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to list adjusted prices: %w", err)
	}

	out := []domain.AssetPrice{}
	for _, p := range result {
		out = append(out, domain.AssetPrice{
			Symbol: p.Symbol,
			Date:   util.TruncateToDate(p.Date),
			Price:  decimal.NewFromFloat(p.Price),
		})
	}

	return out, nil
}

func listAdjustedPricesQuery(symbols []string, start, end time.Time) SelectStatement {
	symbolExpressions := []Expression{}
	for _, s := range symbols {
		symbolExpressions = append(symbolExpressions, String(s))
	}

	return AdjustedPrice.
		SELECT(AdjustedPrice.AllColumns).
		WHERE(
			AND(
				AdjustedPrice.Symbol.IN(symbolExpressions...),
				AdjustedPrice.Date.BETWEEN(DateT(start), DateT(end)),
			),
		).
		ORDER_BY(AdjustedPrice.Symbol.ASC(), AdjustedPrice.Date.ASC())
}

// upserts in batches to stay under the postgres bind parameter limit
func (h AdjustedPriceRepositoryHandler) Add(ctx context.Context, prices []domain.AssetPrice) error {
	if len(prices) == 0 {
		return nil
	}

	tx, err := h.Db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	defer tx.Rollback()

	for i := 0; i < len(prices); i += adjustedPriceBatchSize {
		batch := prices[i:min(i+adjustedPriceBatchSize, len(prices))]
		if _, err := addAdjustedPricesQuery(batch).ExecContext(ctx, tx); err != nil {
			return fmt.Errorf("failed to add adjusted prices to db: %w", err)
		}
	}

	return tx.Commit()
}

func addAdjustedPricesQuery(prices []domain.AssetPrice) InsertStatement {
	models := make([]model.AdjustedPrice, 0, len(prices))
	for _, p := range prices {
		models = append(models, model.AdjustedPrice{
			Symbol: p.Symbol,
			Date:   util.TruncateToDate(p.Date),
			Price:  p.Price.InexactFloat64(),
		})
	}

	return AdjustedPrice.
		INSERT(AdjustedPrice.AllColumns).
		MODELS(models).
		ON_CONFLICT(
			AdjustedPrice.Symbol, AdjustedPrice.Date,
		).DO_UPDATE(
		SET(
			AdjustedPrice.Price.SET(AdjustedPrice.EXCLUDED.Price),
		),
	)
}
