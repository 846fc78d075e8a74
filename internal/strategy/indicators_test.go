package strategy

import (
	"math"
	"testing"

	"github.com/koshedutech/binance-futures-bot/internal/market"
)

func constantSeries(value float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = value
	}
	return out
}

func TestEMAConstantSeriesConvergesToValue(t *testing.T) {
	closes := constantSeries(50000, 100)
	if got := CalculateEMA(closes, 20); math.Abs(got-50000) > 1e-9 {
		t.Errorf("expected EMA 50000 on constant series, got %f", got)
	}
}

func TestEMAFallbackWithShortSeries(t *testing.T) {
	closes := []float64{100, 110, 120}
	if got := CalculateEMA(closes, 20); got != 120 {
		t.Errorf("expected latest close 120 as fallback, got %f", got)
	}
	if got := CalculateEMA(nil, 20); got != 0 {
		t.Errorf("expected 0 for empty series, got %f", got)
	}
}

func TestEMAWeightsRecentValues(t *testing.T) {
	closes := append(constantSeries(100, 30), 110, 110, 110)
	ema := CalculateEMA(closes, 20)
	if ema <= 100 || ema >= 110 {
		t.Errorf("expected EMA between 100 and 110, got %f", ema)
	}
}

func TestRSIBoundaries(t *testing.T) {
	rising := make([]float64, 20)
	for i := range rising {
		rising[i] = 100 + float64(i)
	}
	if got := CalculateRSI(rising, 14); got != 100 {
		t.Errorf("expected RSI 100 for gains-only series, got %f", got)
	}

	falling := make([]float64, 20)
	for i := range falling {
		falling[i] = 200 - float64(i)
	}
	if got := CalculateRSI(falling, 14); got != 0 {
		t.Errorf("expected RSI 0 for losses-only series, got %f", got)
	}

	if got := CalculateRSI([]float64{1, 2, 3}, 14); got != 50 {
		t.Errorf("expected neutral RSI 50 with short series, got %f", got)
	}
}

func TestRSIBalancedSeries(t *testing.T) {
	// Alternating equal gains and losses should land near 50.
	closes := make([]float64, 30)
	for i := range closes {
		if i%2 == 0 {
			closes[i] = 100
		} else {
			closes[i] = 101
		}
	}
	got := CalculateRSI(closes, 14)
	if got < 40 || got > 60 {
		t.Errorf("expected RSI near 50 for balanced series, got %f", got)
	}
}

func TestMACDSignalLineDamping(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}

	macd, signal, histogram := CalculateMACD(closes)
	if macd <= 0 {
		t.Errorf("expected positive MACD on rising series, got %f", macd)
	}
	if math.Abs(signal-macd*0.9) > 1e-9 {
		t.Errorf("expected signal = macd*0.9, got macd=%f signal=%f", macd, signal)
	}
	if math.Abs(histogram-(macd-signal)) > 1e-9 {
		t.Errorf("expected histogram = macd-signal, got %f", histogram)
	}
}

func TestATRFallbackWithShortHistory(t *testing.T) {
	bars := []market.Bar{
		{Open: 100, High: 105, Low: 95, Close: 100},
		{Open: 100, High: 110, Low: 100, Close: 108},
	}
	if got := CalculateATR(bars, 14); math.Abs(got-1.08) > 1e-9 {
		t.Errorf("expected 1%% of latest close (1.08), got %f", got)
	}
	if got := CalculateATR(nil, 14); got != 0 {
		t.Errorf("expected 0 for empty history, got %f", got)
	}
}

func TestATRAveragesTrueRange(t *testing.T) {
	bars := make([]market.Bar, 20)
	price := 100.0
	for i := range bars {
		bars[i] = market.Bar{Open: price, High: price + 2, Low: price, Close: price + 2}
		price += 2
	}

	// Each bar: high-low = 2, |high-prevClose| = 2, so TR = 2 throughout.
	if got := CalculateATR(bars, 14); math.Abs(got-2) > 1e-9 {
		t.Errorf("expected ATR 2, got %f", got)
	}
}

func TestEvaluateRequiresEMAOrdering(t *testing.T) {
	snap := Snapshot{Price: 100, EMA20: 101, EMA50: 99, RSI: 55, MACD: 1, Signal: 0.9}
	direction, score, reasons := Evaluate(snap)
	if direction != "" || score != 0 || reasons != nil {
		t.Errorf("expected no candidate without EMA ordering, got %s score %d", direction, score)
	}
}

func TestEvaluateLongSetup(t *testing.T) {
	snap := Snapshot{
		Price:  102,
		EMA20:  101,
		EMA50:  100,
		RSI:    55,
		MACD:   0.8,
		Signal: 0.72,
	}

	direction, score, reasons := Evaluate(snap)
	if direction != DirectionLong {
		t.Fatalf("expected LONG, got %s", direction)
	}
	// 25 trend + 20 RSI + 25 MACD + 15 momentum (0.99%) + 15 strength (1%).
	if score != 100 {
		t.Errorf("expected score 100, got %d", score)
	}
	if len(reasons) != 5 {
		t.Errorf("expected 5 reasons, got %d: %v", len(reasons), reasons)
	}
}

func TestEvaluateShortSetup(t *testing.T) {
	snap := Snapshot{
		Price:  98,
		EMA20:  99,
		EMA50:  100,
		RSI:    45,
		MACD:   -0.8,
		Signal: -0.72,
	}

	direction, score, _ := Evaluate(snap)
	if direction != DirectionShort {
		t.Fatalf("expected SHORT, got %s", direction)
	}
	if score != 100 {
		t.Errorf("expected score 100, got %d", score)
	}
}

func TestEvaluatePartialScore(t *testing.T) {
	// Uptrend ordering but overbought RSI and stretched momentum.
	snap := Snapshot{
		Price:  110,
		EMA20:  104,
		EMA50:  100,
		RSI:    85,
		MACD:   1,
		Signal: 0.9,
	}

	direction, score, _ := Evaluate(snap)
	if direction != DirectionLong {
		t.Fatalf("expected LONG, got %s", direction)
	}
	// 25 trend + 25 MACD + 15 strength; RSI and momentum bands missed.
	if score != 65 {
		t.Errorf("expected score 65, got %d", score)
	}
}

func TestBuildSignalLevels(t *testing.T) {
	snap := Snapshot{Price: 50000, ATR: 100}

	long := BuildSignal("BTCUSDT", snap, DirectionLong, 80, []string{"uptrend"}, testTime())
	if long.StopLoss != 50000-150 {
		t.Errorf("expected long stop 49850, got %f", long.StopLoss)
	}
	if long.TakeProfit1 != 50000+225 || long.TakeProfit2 != 50000+375 || long.TakeProfit3 != 50000+600 {
		t.Errorf("unexpected long take profits: %f %f %f",
			long.TakeProfit1, long.TakeProfit2, long.TakeProfit3)
	}
	if !(long.TakeProfit1 < long.TakeProfit2 && long.TakeProfit2 < long.TakeProfit3) {
		t.Error("expected ascending long take profits")
	}

	short := BuildSignal("BTCUSDT", snap, DirectionShort, 80, []string{"downtrend"}, testTime())
	if short.StopLoss != 50000+150 {
		t.Errorf("expected short stop 50150, got %f", short.StopLoss)
	}
	if !(short.TakeProfit1 > short.TakeProfit2 && short.TakeProfit2 > short.TakeProfit3) {
		t.Error("expected descending short take profits")
	}
}

func TestSignalReasonConcatenation(t *testing.T) {
	sig := &Signal{Reasons: []string{"uptrend", "MACD aligned with trend"}}
	if got := sig.Reason(); got != "uptrend; MACD aligned with trend" {
		t.Errorf("unexpected reason string: %q", got)
	}
}
