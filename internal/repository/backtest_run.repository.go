package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"meanrevbacktest/internal/db/models/postgres/public/model"
	. "meanrevbacktest/internal/db/models/postgres/public/table"
	"meanrevbacktest/internal/domain"

	"github.com/lib/pq"
)

const createBacktestRunTable = `
CREATE TABLE IF NOT EXISTS backtest_run (
	run_id            UUID PRIMARY KEY,
	symbols           TEXT[] NOT NULL,
	start_date        DATE NOT NULL,
	end_date          DATE NOT NULL,
	lookback_window   INT NOT NULL,
	entry_zscore      DOUBLE PRECISION NOT NULL,
	exit_zscore       DOUBLE PRECISION NOT NULL,
	max_position_size DOUBLE PRECISION NOT NULL,
	initial_capital   DOUBLE PRECISION NOT NULL,
	transaction_cost  DOUBLE PRECISION NOT NULL,
	risk_free_rate    DOUBLE PRECISION NOT NULL,
	sharpe_ratio      DOUBLE PRECISION,
	max_drawdown      DOUBLE PRECISION,
	win_rate          DOUBLE PRECISION,
	final_equity      DOUBLE PRECISION,
	processing_times  JSONB,
	created_at        TIMESTAMP NOT NULL DEFAULT now()
)`

type BacktestRunRepository interface {
	Add(ctx context.Context, run domain.BacktestRunRecord) error
}

func NewBacktestRunRepository(db *sql.DB) *BacktestRunRepositoryHandler {
	return &BacktestRunRepositoryHandler{
		Db: db,
	}
}

type BacktestRunRepositoryHandler struct {
	Db *sql.DB
}

func (h BacktestRunRepositoryHandler) Migrate(ctx context.Context) error {
	if _, err := h.Db.ExecContext(ctx, createBacktestRunTable); err != nil {
		return fmt.Errorf("failed to create backtest_run table: %w", err)
	}
	return nil
}

func (h BacktestRunRepositoryHandler) Add(ctx context.Context, run domain.BacktestRunRecord) error {
	m, err := backtestRunModel(run)
	if err != nil {
		return err
	}

	query := BacktestRun.
		INSERT(BacktestRun.AllColumns).
		MODEL(m)

	_, err = query.ExecContext(ctx, h.Db)
	if err != nil {
		return fmt.Errorf("failed to insert backtest run %s: %w", run.RunID, err)
	}

	return nil
}

func backtestRunModel(run domain.BacktestRunRecord) (model.BacktestRun, error) {
	var processingTimes *string
	if run.Profile != nil {
		bytes, err := run.Profile.ToJsonBytes()
		if err != nil {
			return model.BacktestRun{}, fmt.Errorf("failed to encode run profile: %w", err)
		}
		str := string(bytes)
		processingTimes = &str
	}

	return model.BacktestRun{
		RunID:           run.RunID,
		Symbols:         pq.StringArray(run.Symbols),
		StartDate:       run.StartDate,
		EndDate:         run.EndDate,
		LookbackWindow:  int32(run.Params.LookbackWindow),
		EntryZscore:     run.Params.EntryZScore,
		ExitZscore:      run.Params.ExitZScore,
		MaxPositionSize: run.Params.MaxPositionSize,
		InitialCapital:  run.Params.InitialCapital,
		TransactionCost: run.Params.TransactionCost,
		RiskFreeRate:    run.Params.RiskFreeRate,
		SharpeRatio:     nullableFloat(run.Metrics.SharpeRatio),
		MaxDrawdown:     nullableFloat(run.Metrics.MaxDrawdown),
		WinRate:         nullableFloat(run.Metrics.WinRate),
		FinalEquity:     nullableFloat(run.Metrics.FinalEquity),
		ProcessingTimes: processingTimes,
	}, nil
}

// postgres accepts NaN for double precision, but a null reads better
// for an undefined ratio
func nullableFloat(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
