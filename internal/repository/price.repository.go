package repository

import (
	"context"
	"time"

	"meanrevbacktest/internal/domain"
)

// PriceRepository is any upstream source of daily adjusted closes. The
// returned prices may be in any order and may have gaps; the price
// service is responsible for turning them into a dense table.
type PriceRepository interface {
	List(ctx context.Context, symbols []string, start, end time.Time) ([]domain.AssetPrice, error)
}

// PriceCacheRepository is a PriceRepository that can also persist
// prices fetched elsewhere
type PriceCacheRepository interface {
	PriceRepository
	Add(ctx context.Context, prices []domain.AssetPrice) error
}
