package domain

import "time"

// ZScore is a tagged z-score. The zero value is the "no signal"
// sentinel: it is never below or above any threshold, so it can not
// trigger an entry or an exit.
type ZScore struct {
	Value float64
	Valid bool
}

var NoSignal = ZScore{}

func NewZScore(v float64) ZScore {
	return ZScore{
		Value: v,
		Valid: true,
	}
}

func (z ZScore) Below(threshold float64) bool {
	return z.Valid && z.Value < threshold
}

func (z ZScore) Above(threshold float64) bool {
	return z.Valid && z.Value > threshold
}

// ZScoreTable has the same shape as the PriceSeries it was computed from
type ZScoreTable struct {
	Dates   []time.Time
	Symbols []string
	Values  [][]ZScore
}

// Column returns the z-score history of the asset at index j
func (z ZScoreTable) Column(j int) []ZScore {
	out := make([]ZScore, len(z.Values))
	for i, row := range z.Values {
		out[i] = row[j]
	}
	return out
}

type Position int8

const (
	PositionShort Position = -1
	PositionFlat  Position = 0
	PositionLong  Position = 1
)

func (p Position) String() string {
	switch p {
	case PositionLong:
		return "LONG"
	case PositionShort:
		return "SHORT"
	default:
		return "FLAT"
	}
}

// Abs is 1 for any directional position and 0 when flat
func (p Position) Abs() int {
	if p < 0 {
		return int(-p)
	}
	return int(p)
}

type PositionTable struct {
	Dates     []time.Time
	Symbols   []string
	Positions [][]Position
}

func (p PositionTable) Column(j int) []Position {
	out := make([]Position, len(p.Positions))
	for i, row := range p.Positions {
		out[i] = row[j]
	}
	return out
}

// ActiveDays counts the dates on which each asset held a non-flat
// position, keyed by symbol
func (p PositionTable) ActiveDays() map[string]int {
	out := map[string]int{}
	for j, symbol := range p.Symbols {
		out[symbol] = 0
		for _, row := range p.Positions {
			out[symbol] += row[j].Abs()
		}
	}
	return out
}
