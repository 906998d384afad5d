package repository

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"meanrevbacktest/internal/domain"
	"meanrevbacktest/internal/util"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
)

// CsvDate reads and writes YYYY-MM-DD cells
type CsvDate struct {
	time.Time
}

func (d *CsvDate) UnmarshalCSV(s string) error {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func (d CsvDate) MarshalCSV() (string, error) {
	return d.Format(time.DateOnly), nil
}

type priceCsvRow struct {
	Symbol string          `csv:"symbol"`
	Date   CsvDate         `csv:"date"`
	Price  decimal.Decimal `csv:"price"`
}

// NewCsvPriceRepository reads prices from a long format file with a
// symbol,date,price header
func NewCsvPriceRepository(path string) PriceRepository {
	return csvPriceRepositoryHandler{
		Path: path,
	}
}

type csvPriceRepositoryHandler struct {
	Path string
}

func (h csvPriceRepositoryHandler) List(ctx context.Context, symbols []string, start, end time.Time) ([]domain.AssetPrice, error) {
	f, err := os.Open(h.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open price file: %w", err)
	}
	defer f.Close()

	rows := []priceCsvRow{}
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse price file %s: %w", h.Path, err)
	}

	wanted := map[string]bool{}
	for _, s := range symbols {
		wanted[strings.ToUpper(s)] = true
	}

	out := []domain.AssetPrice{}
	for _, row := range rows {
		symbol := strings.ToUpper(strings.TrimSpace(row.Symbol))
		if !wanted[symbol] {
			continue
		}
		if !util.DateInRange(row.Date.Time, start, end) {
			continue
		}
		out = append(out, domain.AssetPrice{
			Symbol: symbol,
			Date:   row.Date.Time,
			Price:  row.Price,
		})
	}

	return out, nil
}

type resultCsvRow struct {
	Date        CsvDate `csv:"date"`
	EquityCurve float64 `csv:"equity_curve"`
	NetReturns  float64 `csv:"net_returns"`
	Turnover    float64 `csv:"turnover"`
}

type ResultsExportRepository interface {
	Export(path string, result domain.BacktestResult) error
}

func NewResultsExportRepository() ResultsExportRepository {
	return resultsExportRepositoryHandler{}
}

type resultsExportRepositoryHandler struct{}

// Export writes the aligned backtest series, one row per date
func (h resultsExportRepositoryHandler) Export(path string, result domain.BacktestResult) error {
	rows := make([]resultCsvRow, len(result.Dates))
	for i, date := range result.Dates {
		rows[i] = resultCsvRow{
			Date:        CsvDate{date},
			EquityCurve: result.EquityCurve[i],
			NetReturns:  result.NetReturns[i],
			Turnover:    result.Turnover[i],
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return fmt.Errorf("failed to write results to %s: %w", path, err)
	}

	return nil
}
