package market

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/koshedutech/binance-futures-bot/internal/binance"
)

// Aggregator folds ticker updates into fixed-interval bars. Ticks update
// the open bar in place; the first tick of a later bucket closes the open
// bar into history. Tick streams carry no per-trade quantity, so bars
// built from ticks keep Volume at zero; seeded bars retain venue volume.
type Aggregator struct {
	mu sync.Mutex

	interval   time.Duration
	intervalMs int64
	history    *History
	current    *Bar
	log        zerolog.Logger
}

// NewAggregator creates an aggregator producing bars of the given interval
// with a history bounded to limit closed bars.
func NewAggregator(interval time.Duration, limit int, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		interval:   interval,
		intervalMs: interval.Milliseconds(),
		history:    NewHistory(limit),
		log:        log,
	}
}

// Seed preloads history from venue candles. Rows that do not advance the
// series are skipped. The open bar is untouched.
func (a *Aggregator) Seed(klines []binance.Kline) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	added := 0
	for _, k := range klines {
		bar := Bar{
			BucketStart: k.OpenTime,
			Open:        k.Open,
			High:        k.High,
			Low:         k.Low,
			Close:       k.Close,
			Volume:      k.Volume,
		}
		if a.history.Append(bar) {
			added++
		}
	}
	return added
}

// OnTick folds one ticker update in. When the tick opens a new bucket, the
// previous open bar is closed and returned.
func (a *Aggregator) OnTick(tick binance.Tick) (Bar, bool) {
	bucket := (tick.EventTime / a.intervalMs) * a.intervalMs

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current == nil {
		a.current = a.newBar(bucket, tick.Price)
		return Bar{}, false
	}

	if bucket == a.current.BucketStart {
		a.updateCurrent(tick.Price)
		return Bar{}, false
	}

	if bucket < a.current.BucketStart {
		// Late tick from an already-closed bucket; drop it.
		a.log.Debug().
			Int64("bucket", bucket).
			Int64("current", a.current.BucketStart).
			Msg("dropping out-of-order tick")
		return Bar{}, false
	}

	closed := *a.current
	if !a.history.Append(closed) {
		a.log.Warn().Int64("bucket", closed.BucketStart).Msg("closed bar rejected by history")
	}
	a.current = a.newBar(bucket, tick.Price)
	return closed, true
}

func (a *Aggregator) newBar(bucket int64, price float64) *Bar {
	return &Bar{
		BucketStart: bucket,
		Open:        price,
		High:        price,
		Low:         price,
		Close:       price,
	}
}

func (a *Aggregator) updateCurrent(price float64) {
	if price > a.current.High {
		a.current.High = price
	}
	if price < a.current.Low {
		a.current.Low = price
	}
	a.current.Close = price
}

// Interval returns the bar interval.
func (a *Aggregator) Interval() time.Duration {
	return a.interval
}

// BarCount returns the number of closed bars in history.
func (a *Aggregator) BarCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history.Len()
}

// Bars returns a copy of the closed-bar history, oldest first.
func (a *Aggregator) Bars() []Bar {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history.Bars()
}

// CurrentBar returns the open bar, if one has started.
func (a *Aggregator) CurrentBar() (Bar, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return Bar{}, false
	}
	return *a.current, true
}
