package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetPrice is a single adjusted close as returned by a price
// repository, before it is pivoted into a PriceSeries
type AssetPrice struct {
	Symbol string
	Price  decimal.Decimal
	Date   time.Time
}

// PriceSeries is a dense date x asset table of prices. Dates are
// ascending and unique, and every cell is expected to hold a finite
// positive price by the time it reaches the signal pipeline.
type PriceSeries struct {
	Dates   []time.Time
	Symbols []string
	// Prices[i][j] is the price of Symbols[j] on Dates[i]
	Prices [][]float64
}

func (p PriceSeries) NumDates() int {
	return len(p.Dates)
}

func (p PriceSeries) NumAssets() int {
	return len(p.Symbols)
}

// Column returns a copy of the price history of the asset at index j
func (p PriceSeries) Column(j int) []float64 {
	out := make([]float64, len(p.Prices))
	for i, row := range p.Prices {
		out[i] = row[j]
	}
	return out
}

func (p PriceSeries) FirstDate() time.Time {
	if len(p.Dates) == 0 {
		return time.Time{}
	}
	return p.Dates[0]
}

func (p PriceSeries) LastDate() time.Time {
	if len(p.Dates) == 0 {
		return time.Time{}
	}
	return p.Dates[len(p.Dates)-1]
}
