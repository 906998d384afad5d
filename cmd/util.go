package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"meanrevbacktest/api"
	"meanrevbacktest/internal/app"
	"meanrevbacktest/internal/config"
	"meanrevbacktest/internal/logger"
	"meanrevbacktest/internal/repository"
	l1_service "meanrevbacktest/internal/service/l1"
	interestrate "meanrevbacktest/pkg/interest_rate"

	_ "github.com/lib/pq"
)

func CloseDependencies(handler *api.ApiHandler) error {
	if handler.Db == nil {
		return nil
	}
	if err := handler.Db.Close(); err != nil {
		return fmt.Errorf("failed to close db: %w", err)
	}
	return nil
}

// InitializeDependencies wires the price source named by the config,
// plus the postgres cache when it is enabled
func InitializeDependencies(ctx context.Context, cfg config.Config) (*api.ApiHandler, error) {
	log := logger.FromContext(ctx)

	var dbConn *sql.DB
	if cfg.DataSource == config.DataSource_Postgres || cfg.CachePrices {
		if cfg.DatabaseUrl == "" {
			return nil, fmt.Errorf("database_url is required for data source %s with cache_prices=%t", cfg.DataSource, cfg.CachePrices)
		}
		conn, err := sql.Open("postgres", cfg.DatabaseUrl)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to db: %w", err)
		}
		if err := conn.PingContext(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to ping db: %w", err)
		}
		dbConn = conn
	}

	var (
		upstream        repository.PriceRepository
		cache           repository.PriceCacheRepository
		priceRepository *repository.AdjustedPriceRepositoryHandler
		runRepository   repository.BacktestRunRepository
	)
	fail := func(err error) (*api.ApiHandler, error) {
		if dbConn != nil {
			dbConn.Close()
		}
		return nil, err
	}
	if dbConn != nil {
		priceRepository = repository.NewAdjustedPriceRepository(dbConn)
		if err := priceRepository.Migrate(ctx); err != nil {
			return fail(err)
		}
		backtestRunRepository := repository.NewBacktestRunRepository(dbConn)
		if err := backtestRunRepository.Migrate(ctx); err != nil {
			return fail(err)
		}
		runRepository = backtestRunRepository
	}

	switch cfg.DataSource {
	case config.DataSource_Yahoo, "":
		upstream = repository.NewYahooPriceRepository()
	case config.DataSource_Alpaca:
		if cfg.Alpaca.ApiKey == "" || cfg.Alpaca.ApiSecret == "" {
			return fail(fmt.Errorf("alpaca data source requires api key and secret"))
		}
		upstream = repository.NewAlpacaPriceRepository(cfg.Alpaca.ApiKey, cfg.Alpaca.ApiSecret, cfg.Alpaca.Endpoint)
	case config.DataSource_Csv:
		if cfg.CsvPath == "" {
			return fail(fmt.Errorf("csv data source requires csv_path"))
		}
		upstream = repository.NewCsvPriceRepository(cfg.CsvPath)
	case config.DataSource_Postgres:
		upstream = priceRepository
	default:
		return fail(fmt.Errorf("unknown data source %s", cfg.DataSource))
	}

	if cfg.CachePrices && cfg.DataSource != config.DataSource_Postgres {
		cache = priceRepository
	}

	log.Infow("initialized dependencies", "dataSource", cfg.DataSource, "cachePrices", cache != nil)

	return &api.ApiHandler{
		Db: dbConn,
		BacktestHandler: app.BacktestHandler{
			PriceService:     l1_service.NewPriceService(upstream, cache),
			YieldCurveClient: interestrate.NewClient(),
			ExportRepository: repository.NewResultsExportRepository(),
			RunRepository:    runRepository,
		},
		Logger: log,
	}, nil
}
