// Package strategy computes indicators over the bar history and scores
// entry signals for a single instrument.
package strategy

import (
	"math"

	"github.com/koshedutech/binance-futures-bot/internal/market"
)

// Indicator periods.
const (
	emaFastPeriod = 12
	emaSlowPeriod = 26
	ema20Period   = 20
	ema50Period   = 50
	rsiPeriod     = 14
	atrPeriod     = 14
)

// CalculateEMA computes an SMA-seeded exponential moving average over
// closes, oldest first. With fewer than period points the latest close is
// returned so downstream math always has a value.
func CalculateEMA(closes []float64, period int) float64 {
	if len(closes) == 0 {
		return 0
	}
	if len(closes) < period {
		return closes[len(closes)-1]
	}

	sum := 0.0
	for _, c := range closes[:period] {
		sum += c
	}
	ema := sum / float64(period)

	multiplier := 2.0 / float64(period+1)
	for _, c := range closes[period:] {
		ema = (c-ema)*multiplier + ema
	}
	return ema
}

// CalculateRSI computes the relative strength index over the last period
// deltas of closes. With fewer than period+1 points the neutral value 50
// is returned; with no losses in the window the result saturates at 100.
func CalculateRSI(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 50
	}

	window := closes[len(closes)-period-1:]
	gains := 0.0
	losses := 0.0
	for i := 1; i < len(window); i++ {
		change := window[i] - window[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// CalculateMACD returns the MACD line, signal line, and histogram. The
// signal line is a fixed 0.9 damping of the MACD line rather than an EMA
// of it, so alignment flips as soon as the MACD line crosses zero.
func CalculateMACD(closes []float64) (macd, signal, histogram float64) {
	emaFast := CalculateEMA(closes, emaFastPeriod)
	emaSlow := CalculateEMA(closes, emaSlowPeriod)

	macd = emaFast - emaSlow
	signal = macd * 0.9
	histogram = macd - signal
	return macd, signal, histogram
}

// CalculateATR computes the average true range over bars, oldest first.
// With fewer than period+1 bars it falls back to 1% of the latest close
// so stop distances stay sane during warmup.
func CalculateATR(bars []market.Bar, period int) float64 {
	if len(bars) == 0 {
		return 0
	}
	if len(bars) < period+1 {
		return bars[len(bars)-1].Close * 0.01
	}

	start := len(bars) - period
	sum := 0.0
	for i := start; i < len(bars); i++ {
		prevClose := bars[i-1].Close
		tr := bars[i].High - bars[i].Low
		if hc := math.Abs(bars[i].High - prevClose); hc > tr {
			tr = hc
		}
		if lc := math.Abs(bars[i].Low - prevClose); lc > tr {
			tr = lc
		}
		sum += tr
	}
	return sum / float64(period)
}

// Snapshot is the full indicator state computed from one bar history.
type Snapshot struct {
	Price     float64
	EMA20     float64
	EMA50     float64
	RSI       float64
	MACD      float64
	Signal    float64
	Histogram float64
	ATR       float64
}

// ComputeSnapshot evaluates every indicator over the closed-bar history.
func ComputeSnapshot(bars []market.Bar) Snapshot {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	var price float64
	if len(closes) > 0 {
		price = closes[len(closes)-1]
	}

	macd, signal, histogram := CalculateMACD(closes)
	return Snapshot{
		Price:     price,
		EMA20:     CalculateEMA(closes, ema20Period),
		EMA50:     CalculateEMA(closes, ema50Period),
		RSI:       CalculateRSI(closes, rsiPeriod),
		MACD:      macd,
		Signal:    signal,
		Histogram: histogram,
		ATR:       CalculateATR(bars, atrPeriod),
	}
}
