package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"meanrevbacktest/internal/domain"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCsvPriceRepository_List(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.csv")
	contents := `symbol,date,price
AAPL,2020-01-02,300.35
aapl,2020-01-03,297.43
MSFT,2020-01-02,160.62
AAPL,2019-12-31,293.65
TSLA,2020-01-02,86.05
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	repo := NewCsvPriceRepository(path)
	prices, err := repo.List(
		context.Background(),
		[]string{"AAPL", "MSFT"},
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	require.Equal(
		t,
		"",
		cmp.Diff(
			[]domain.AssetPrice{
				{Symbol: "AAPL", Date: time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), Price: decimal.RequireFromString("300.35")},
				{Symbol: "AAPL", Date: time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC), Price: decimal.RequireFromString("297.43")},
				{Symbol: "MSFT", Date: time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), Price: decimal.RequireFromString("160.62")},
			},
			prices,
			cmp.Comparer(func(a, b decimal.Decimal) bool {
				return a.Equal(b)
			}),
		),
	)
}

func TestCsvPriceRepository_BadFile(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		repo := NewCsvPriceRepository(filepath.Join(t.TempDir(), "missing.csv"))
		_, err := repo.List(context.Background(), []string{"AAPL"}, time.Time{}, time.Now())
		require.Error(t, err)
	})

	t.Run("bad date", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prices.csv")
		require.NoError(t, os.WriteFile(path, []byte("symbol,date,price\nAAPL,01/02/2020,1\n"), 0o644))
		repo := NewCsvPriceRepository(path)
		_, err := repo.List(context.Background(), []string{"AAPL"}, time.Time{}, time.Now())
		require.ErrorContains(t, err, "failed to parse price file")
	})
}

func TestResultsExportRepository_Export(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	result := domain.BacktestResult{
		Dates: []time.Time{
			time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
			time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC),
		},
		EquityCurve: []float64{1000, 1010.5},
		NetReturns:  []float64{0, 0.0105},
		Turnover:    []float64{0, 0.5},
	}

	err := NewResultsExportRepository().Export(path, result)
	require.NoError(t, err)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(
		t,
		"date,equity_curve,net_returns,turnover\n2020-01-02,1000,0,0\n2020-01-03,1010.5,0.0105,0.5\n",
		string(written),
	)
}
