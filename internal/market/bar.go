// Package market turns the raw ticker feed into fixed-interval OHLCV bars
// and keeps a bounded rolling history for analysis.
package market

// Bar is one fixed-interval OHLCV candle. BucketStart is the bucket's
// opening timestamp in epoch milliseconds.
type Bar struct {
	BucketStart int64
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
}

// History is a bounded, append-only series of closed bars. Bars are kept
// oldest-first and bucket starts are strictly increasing; once the limit
// is reached the oldest bar is evicted on append.
type History struct {
	bars  []Bar
	limit int
}

// NewHistory creates a history bounded to limit bars.
func NewHistory(limit int) *History {
	return &History{
		bars:  make([]Bar, 0, limit),
		limit: limit,
	}
}

// Append adds a closed bar. Bars that do not advance the bucket start are
// rejected so the series stays strictly ordered.
func (h *History) Append(bar Bar) bool {
	if n := len(h.bars); n > 0 && bar.BucketStart <= h.bars[n-1].BucketStart {
		return false
	}
	h.bars = append(h.bars, bar)
	if len(h.bars) > h.limit {
		h.bars = h.bars[1:]
	}
	return true
}

// Len returns the number of stored bars.
func (h *History) Len() int {
	return len(h.bars)
}

// Bars returns a copy of the stored bars, oldest first.
func (h *History) Bars() []Bar {
	out := make([]Bar, len(h.bars))
	copy(out, h.bars)
	return out
}

// Closes returns the close prices, oldest first.
func (h *History) Closes() []float64 {
	out := make([]float64, len(h.bars))
	for i, b := range h.bars {
		out[i] = b.Close
	}
	return out
}

// Last returns the most recent closed bar.
func (h *History) Last() (Bar, bool) {
	if len(h.bars) == 0 {
		return Bar{}, false
	}
	return h.bars[len(h.bars)-1], true
}
