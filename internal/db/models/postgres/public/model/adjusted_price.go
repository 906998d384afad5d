package model

import (
	"time"
)

type AdjustedPrice struct {
	Symbol string    `sql:"primary_key"`
	Date   time.Time `sql:"primary_key"`
	Price  float64
}
