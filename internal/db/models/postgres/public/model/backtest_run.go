package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type BacktestRun struct {
	RunID           uuid.UUID `sql:"primary_key"`
	Symbols         pq.StringArray
	StartDate       time.Time
	EndDate         time.Time
	LookbackWindow  int32
	EntryZscore     float64
	ExitZscore      float64
	MaxPositionSize float64
	InitialCapital  float64
	TransactionCost float64
	RiskFreeRate    float64
	SharpeRatio     *float64
	MaxDrawdown     *float64
	WinRate         *float64
	FinalEquity     *float64
	ProcessingTimes *string
}
