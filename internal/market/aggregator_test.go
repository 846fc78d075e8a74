package market

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/koshedutech/binance-futures-bot/internal/binance"
)

const fiveMinMs = int64(5 * 60 * 1000)

func tick(eventTime int64, price float64) binance.Tick {
	return binance.Tick{Symbol: "BTCUSDT", Price: price, EventTime: eventTime}
}

func newTestAggregator(limit int) *Aggregator {
	return NewAggregator(5*time.Minute, limit, zerolog.Nop())
}

func TestHistoryBounded(t *testing.T) {
	h := NewHistory(3)

	for i := int64(0); i < 5; i++ {
		if !h.Append(Bar{BucketStart: i * fiveMinMs, Close: float64(i)}) {
			t.Fatalf("append %d rejected", i)
		}
	}

	if h.Len() != 3 {
		t.Fatalf("expected 3 bars retained, got %d", h.Len())
	}
	bars := h.Bars()
	if bars[0].BucketStart != 2*fiveMinMs {
		t.Errorf("expected oldest bar at bucket %d, got %d", 2*fiveMinMs, bars[0].BucketStart)
	}
	last, ok := h.Last()
	if !ok || last.BucketStart != 4*fiveMinMs {
		t.Errorf("expected newest bar at bucket %d", 4*fiveMinMs)
	}
}

func TestHistoryRejectsNonAdvancingBuckets(t *testing.T) {
	h := NewHistory(10)
	h.Append(Bar{BucketStart: fiveMinMs})

	if h.Append(Bar{BucketStart: fiveMinMs}) {
		t.Error("expected duplicate bucket rejected")
	}
	if h.Append(Bar{BucketStart: 0}) {
		t.Error("expected older bucket rejected")
	}
	if h.Len() != 1 {
		t.Errorf("expected 1 bar, got %d", h.Len())
	}
}

func TestAggregatorBucketing(t *testing.T) {
	a := newTestAggregator(200)

	base := int64(1700000000000)
	bucket := (base / fiveMinMs) * fiveMinMs

	if _, closed := a.OnTick(tick(base, 100)); closed {
		t.Fatal("first tick should not close a bar")
	}

	cur, ok := a.CurrentBar()
	if !ok {
		t.Fatal("expected an open bar")
	}
	if cur.BucketStart != bucket {
		t.Errorf("expected bucket %d, got %d", bucket, cur.BucketStart)
	}
	if cur.Open != 100 || cur.High != 100 || cur.Low != 100 || cur.Close != 100 {
		t.Errorf("expected all prices 100 on first tick, got %+v", cur)
	}
}

func TestAggregatorUpdatesOpenBar(t *testing.T) {
	a := newTestAggregator(200)

	bucket := int64(1700000100000) / fiveMinMs * fiveMinMs
	a.OnTick(tick(bucket, 100))
	a.OnTick(tick(bucket+1000, 105))
	a.OnTick(tick(bucket+2000, 95))
	a.OnTick(tick(bucket+3000, 102))

	cur, _ := a.CurrentBar()
	if cur.Open != 100 {
		t.Errorf("expected open 100, got %f", cur.Open)
	}
	if cur.High != 105 {
		t.Errorf("expected high 105, got %f", cur.High)
	}
	if cur.Low != 95 {
		t.Errorf("expected low 95, got %f", cur.Low)
	}
	if cur.Close != 102 {
		t.Errorf("expected close 102, got %f", cur.Close)
	}
	if cur.Volume != 0 {
		t.Errorf("expected tick-built bar volume 0, got %f", cur.Volume)
	}
	if a.BarCount() != 0 {
		t.Errorf("expected no closed bars, got %d", a.BarCount())
	}
}

func TestAggregatorClosesBarOnNewBucket(t *testing.T) {
	a := newTestAggregator(200)

	bucket := int64(1700000000000) / fiveMinMs * fiveMinMs
	a.OnTick(tick(bucket, 100))
	a.OnTick(tick(bucket+60000, 110))

	closed, ok := a.OnTick(tick(bucket+fiveMinMs, 111))
	if !ok {
		t.Fatal("expected bar closed on new bucket")
	}
	if closed.BucketStart != bucket {
		t.Errorf("expected closed bucket %d, got %d", bucket, closed.BucketStart)
	}
	if closed.Close != 110 {
		t.Errorf("expected closed bar close 110, got %f", closed.Close)
	}
	if a.BarCount() != 1 {
		t.Errorf("expected 1 closed bar, got %d", a.BarCount())
	}

	cur, _ := a.CurrentBar()
	if cur.BucketStart != bucket+fiveMinMs {
		t.Errorf("expected new bucket %d, got %d", bucket+fiveMinMs, cur.BucketStart)
	}
	if cur.Open != 111 {
		t.Errorf("expected new bar open 111, got %f", cur.Open)
	}
}

func TestAggregatorDropsOutOfOrderTick(t *testing.T) {
	a := newTestAggregator(200)

	bucket := int64(1700000000000) / fiveMinMs * fiveMinMs
	a.OnTick(tick(bucket+fiveMinMs, 100))

	if _, closed := a.OnTick(tick(bucket, 90)); closed {
		t.Error("expected stale tick not to close a bar")
	}
	cur, _ := a.CurrentBar()
	if cur.Close != 100 {
		t.Errorf("expected stale tick ignored, close still 100, got %f", cur.Close)
	}
}

func TestAggregatorSeed(t *testing.T) {
	a := newTestAggregator(200)

	klines := []binance.Kline{
		{OpenTime: 0, Open: 100, High: 110, Low: 95, Close: 105, Volume: 12.5},
		{OpenTime: fiveMinMs, Open: 105, High: 108, Low: 101, Close: 102, Volume: 8.1},
		{OpenTime: fiveMinMs, Open: 105, High: 108, Low: 101, Close: 102, Volume: 8.1},
	}

	if added := a.Seed(klines); added != 2 {
		t.Errorf("expected 2 seeded bars, got %d", added)
	}
	bars := a.Bars()
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[0].Volume != 12.5 {
		t.Errorf("expected seeded volume retained, got %f", bars[0].Volume)
	}
}
