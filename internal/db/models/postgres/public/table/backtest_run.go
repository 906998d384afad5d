package table

import (
	"github.com/go-jet/jet/v2/postgres"
)

var BacktestRun = newBacktestRunTable("public", "backtest_run", "")

type backtestRunTable struct {
	postgres.Table

	// Columns
	RunID           postgres.ColumnString
	Symbols         postgres.ColumnString
	StartDate       postgres.ColumnDate
	EndDate         postgres.ColumnDate
	LookbackWindow  postgres.ColumnInteger
	EntryZscore     postgres.ColumnFloat
	ExitZscore      postgres.ColumnFloat
	MaxPositionSize postgres.ColumnFloat
	InitialCapital  postgres.ColumnFloat
	TransactionCost postgres.ColumnFloat
	RiskFreeRate    postgres.ColumnFloat
	SharpeRatio     postgres.ColumnFloat
	MaxDrawdown     postgres.ColumnFloat
	WinRate         postgres.ColumnFloat
	FinalEquity     postgres.ColumnFloat
	ProcessingTimes postgres.ColumnString

	AllColumns     postgres.ColumnList
	MutableColumns postgres.ColumnList
}

type BacktestRunTable struct {
	backtestRunTable

	EXCLUDED backtestRunTable
}

// AS creates new BacktestRunTable with assigned alias
func (a BacktestRunTable) AS(alias string) *BacktestRunTable {
	return newBacktestRunTable(a.SchemaName(), a.TableName(), alias)
}

// FromSchema creates new BacktestRunTable with assigned schema name
func (a BacktestRunTable) FromSchema(schemaName string) *BacktestRunTable {
	return newBacktestRunTable(schemaName, a.TableName(), a.Alias())
}

func newBacktestRunTable(schemaName, tableName, alias string) *BacktestRunTable {
	return &BacktestRunTable{
		backtestRunTable: newBacktestRunTableImpl(schemaName, tableName, alias),
		EXCLUDED:         newBacktestRunTableImpl("", "excluded", ""),
	}
}

func newBacktestRunTableImpl(schemaName, tableName, alias string) backtestRunTable {
	var (
		RunIDColumn           = postgres.StringColumn("run_id")
		SymbolsColumn         = postgres.StringColumn("symbols")
		StartDateColumn       = postgres.DateColumn("start_date")
		EndDateColumn         = postgres.DateColumn("end_date")
		LookbackWindowColumn  = postgres.IntegerColumn("lookback_window")
		EntryZscoreColumn     = postgres.FloatColumn("entry_zscore")
		ExitZscoreColumn      = postgres.FloatColumn("exit_zscore")
		MaxPositionSizeColumn = postgres.FloatColumn("max_position_size")
		InitialCapitalColumn  = postgres.FloatColumn("initial_capital")
		TransactionCostColumn = postgres.FloatColumn("transaction_cost")
		RiskFreeRateColumn    = postgres.FloatColumn("risk_free_rate")
		SharpeRatioColumn     = postgres.FloatColumn("sharpe_ratio")
		MaxDrawdownColumn     = postgres.FloatColumn("max_drawdown")
		WinRateColumn         = postgres.FloatColumn("win_rate")
		FinalEquityColumn     = postgres.FloatColumn("final_equity")
		ProcessingTimesColumn = postgres.StringColumn("processing_times")
		allColumns            = postgres.ColumnList{RunIDColumn, SymbolsColumn, StartDateColumn, EndDateColumn, LookbackWindowColumn, EntryZscoreColumn, ExitZscoreColumn, MaxPositionSizeColumn, InitialCapitalColumn, TransactionCostColumn, RiskFreeRateColumn, SharpeRatioColumn, MaxDrawdownColumn, WinRateColumn, FinalEquityColumn, ProcessingTimesColumn}
		mutableColumns        = postgres.ColumnList{SymbolsColumn, StartDateColumn, EndDateColumn, LookbackWindowColumn, EntryZscoreColumn, ExitZscoreColumn, MaxPositionSizeColumn, InitialCapitalColumn, TransactionCostColumn, RiskFreeRateColumn, SharpeRatioColumn, MaxDrawdownColumn, WinRateColumn, FinalEquityColumn, ProcessingTimesColumn}
	)

	return backtestRunTable{
		Table: postgres.NewTable(schemaName, tableName, alias, allColumns...),

		//Columns
		RunID:           RunIDColumn,
		Symbols:         SymbolsColumn,
		StartDate:       StartDateColumn,
		EndDate:         EndDateColumn,
		LookbackWindow:  LookbackWindowColumn,
		EntryZscore:     EntryZscoreColumn,
		ExitZscore:      ExitZscoreColumn,
		MaxPositionSize: MaxPositionSizeColumn,
		InitialCapital:  InitialCapitalColumn,
		TransactionCost: TransactionCostColumn,
		RiskFreeRate:    RiskFreeRateColumn,
		SharpeRatio:     SharpeRatioColumn,
		MaxDrawdown:     MaxDrawdownColumn,
		WinRate:         WinRateColumn,
		FinalEquity:     FinalEquityColumn,
		ProcessingTimes: ProcessingTimesColumn,

		AllColumns:     allColumns,
		MutableColumns: mutableColumns,
	}
}
