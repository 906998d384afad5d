package l2_service

import (
	"meanrevbacktest/internal/domain"
)

// SignalThresholds configures the hysteresis band. Entry must be
// strictly wider than Exit, which is checked where config is loaded.
type SignalThresholds struct {
	Entry float64
	Exit  float64
}

func NewSignalThresholds(params domain.StrategyParams) SignalThresholds {
	return SignalThresholds{
		Entry: params.EntryZScore,
		Exit:  params.ExitZScore,
	}
}

// Transition is the per-day step of the position state machine. Entry
// conditions are only evaluated while flat; a directional position can
// only go back to flat.
func Transition(state domain.Position, z domain.ZScore, th SignalThresholds) domain.Position {
	switch state {
	case domain.PositionFlat:
		if z.Below(-th.Entry) {
			return domain.PositionLong
		} else if z.Above(th.Entry) {
			return domain.PositionShort
		}
	case domain.PositionLong:
		if z.Above(-th.Exit) {
			return domain.PositionFlat
		}
	case domain.PositionShort:
		if z.Below(th.Exit) {
			return domain.PositionFlat
		}
	}
	return state
}

// ReplaySignals folds Transition over one asset's z-scores, starting
// flat. out[i] depends only on zScores[:i+1].
func ReplaySignals(zScores []domain.ZScore, th SignalThresholds) []domain.Position {
	out := make([]domain.Position, len(zScores))
	state := domain.PositionFlat
	for i, z := range zScores {
		state = Transition(state, z, th)
		out[i] = state
	}
	return out
}

// GenerateSignals runs an independent state machine per asset
func GenerateSignals(zScores domain.ZScoreTable, th SignalThresholds) domain.PositionTable {
	positions := make([][]domain.Position, len(zScores.Values))
	for i := range positions {
		positions[i] = make([]domain.Position, len(zScores.Symbols))
	}

	for j := range zScores.Symbols {
		for i, p := range ReplaySignals(zScores.Column(j), th) {
			positions[i][j] = p
		}
	}

	return domain.PositionTable{
		Dates:     zScores.Dates,
		Symbols:   zScores.Symbols,
		Positions: positions,
	}
}
