package strategy

import (
	"fmt"
	"math"
	"time"
)

// Direction is the side of a trade signal.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Score weights and emission threshold.
const (
	scoreTrendAlignment = 25
	scoreRSIBand        = 20
	scoreMACDAlignment  = 25
	scoreMomentumBand   = 15
	scoreTrendStrength  = 15

	// MinSignalScore is the composite score required to emit a signal.
	MinSignalScore = 60
)

const stopATRMultiple = 1.5

// Signal is a scored directional trade recommendation. It is immutable
// once built.
type Signal struct {
	Symbol      string    `json:"symbol"`
	Direction   Direction `json:"direction"`
	EntryPrice  float64   `json:"entry_price"`
	StopLoss    float64   `json:"stop_loss"`
	TakeProfit1 float64   `json:"take_profit_1"`
	TakeProfit2 float64   `json:"take_profit_2"`
	TakeProfit3 float64   `json:"take_profit_3"`
	Score       int       `json:"score"`
	Reasons     []string  `json:"reasons"`
	EmittedAt   time.Time `json:"emitted_at"`
}

// Reason returns the contributing factors joined in evaluation order.
func (s *Signal) Reason() string {
	out := ""
	for i, r := range s.Reasons {
		if i > 0 {
			out += "; "
		}
		out += r
	}
	return out
}

// Evaluate scores the indicator snapshot additively. The EMA ordering
// establishes the candidate direction; without it no signal is possible
// regardless of the other factors.
func Evaluate(snap Snapshot) (Direction, int, []string) {
	var direction Direction
	score := 0
	var reasons []string

	switch {
	case snap.Price > snap.EMA20 && snap.EMA20 > snap.EMA50:
		direction = DirectionLong
		score += scoreTrendAlignment
		reasons = append(reasons, "uptrend: price above EMA20 above EMA50")
	case snap.Price < snap.EMA20 && snap.EMA20 < snap.EMA50:
		direction = DirectionShort
		score += scoreTrendAlignment
		reasons = append(reasons, "downtrend: price below EMA20 below EMA50")
	default:
		return "", 0, nil
	}

	if direction == DirectionLong && snap.RSI > 40 && snap.RSI < 70 {
		score += scoreRSIBand
		reasons = append(reasons, fmt.Sprintf("RSI %.1f in long entry band", snap.RSI))
	} else if direction == DirectionShort && snap.RSI > 30 && snap.RSI < 60 {
		score += scoreRSIBand
		reasons = append(reasons, fmt.Sprintf("RSI %.1f in short entry band", snap.RSI))
	}

	if (direction == DirectionLong && snap.MACD > 0 && snap.MACD > snap.Signal) ||
		(direction == DirectionShort && snap.MACD < 0 && snap.MACD < snap.Signal) {
		score += scoreMACDAlignment
		reasons = append(reasons, "MACD aligned with trend")
	}

	if snap.EMA20 != 0 {
		momentum := (snap.Price - snap.EMA20) / snap.EMA20 * 100
		if (direction == DirectionLong && momentum > 0 && momentum < 2) ||
			(direction == DirectionShort && momentum < 0 && momentum > -2) {
			score += scoreMomentumBand
			reasons = append(reasons, fmt.Sprintf("momentum %.2f%% from EMA20", momentum))
		}
	}

	if snap.EMA50 != 0 {
		strength := math.Abs(snap.EMA20-snap.EMA50) / snap.EMA50 * 100
		if strength > 0.5 {
			score += scoreTrendStrength
			reasons = append(reasons, fmt.Sprintf("trend strength %.2f%%", strength))
		}
	}

	return direction, score, reasons
}

// BuildSignal derives stop and take-profit levels from ATR and assembles
// the final signal.
func BuildSignal(symbol string, snap Snapshot, direction Direction, score int, reasons []string, now time.Time) *Signal {
	stopDistance := snap.ATR * stopATRMultiple
	entry := snap.Price

	sig := &Signal{
		Symbol:     symbol,
		Direction:  direction,
		EntryPrice: entry,
		Score:      score,
		Reasons:    reasons,
		EmittedAt:  now,
	}

	if direction == DirectionLong {
		sig.StopLoss = entry - stopDistance
		sig.TakeProfit1 = entry + stopDistance*1.5
		sig.TakeProfit2 = entry + stopDistance*2.5
		sig.TakeProfit3 = entry + stopDistance*4
	} else {
		sig.StopLoss = entry + stopDistance
		sig.TakeProfit1 = entry - stopDistance*1.5
		sig.TakeProfit2 = entry - stopDistance*2.5
		sig.TakeProfit3 = entry - stopDistance*4
	}

	return sig
}
