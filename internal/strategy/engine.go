package strategy

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/koshedutech/binance-futures-bot/internal/binance"
	"github.com/koshedutech/binance-futures-bot/internal/market"
)

// SignalHandler receives emitted signals.
type SignalHandler func(*Signal)

// TickSource is the feed surface the engine subscribes to.
type TickSource interface {
	Subscribe(binance.TickHandler) string
	Unsubscribe(string)
}

// KlineFetcher seeds the bar history at startup.
type KlineFetcher interface {
	GetKlines(symbol, interval string, limit int) ([]binance.Kline, error)
}

// EngineConfig carries the analysis cadence and history sizing.
type EngineConfig struct {
	Symbol           string
	Interval         time.Duration
	BinanceInterval  string
	HistoryLimit     int
	SeedLimit        int
	MinBars          int
	AnalysisInterval time.Duration
	WarmupDelay      time.Duration
	SignalCooldown   time.Duration
}

// Status is a point-in-time view of the engine.
type Status struct {
	Running      bool      `json:"running"`
	BarCount     int       `json:"bar_count"`
	LastSignalAt time.Time `json:"last_signal_at"`
}

// Engine consumes ticks, maintains the bar history, and periodically
// evaluates the scoring function, emitting signals to subscribers.
type Engine struct {
	mu sync.Mutex

	cfg     EngineConfig
	agg     *market.Aggregator
	source  TickSource
	fetcher KlineFetcher
	log     zerolog.Logger

	running      bool
	tickToken    string
	warmupTimer  *time.Timer
	stopCh       chan struct{}
	lastSignalAt time.Time
	subs         map[string]SignalHandler

	now func() time.Time
}

// NewEngine wires the engine to its feed and optional seeding source. A
// nil fetcher disables seeding; history then builds from live ticks only.
func NewEngine(cfg EngineConfig, source TickSource, fetcher KlineFetcher, log zerolog.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		agg:     market.NewAggregator(cfg.Interval, cfg.HistoryLimit, log),
		source:  source,
		fetcher: fetcher,
		log:     log,
		subs:    make(map[string]SignalHandler),
		now:     time.Now,
	}
}

// Start seeds history, subscribes to the feed, and begins the periodic
// analysis cycle. Calling Start on a running engine is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopCh = make(chan struct{})
	stopCh := e.stopCh
	e.mu.Unlock()

	e.seed()

	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.tickToken = e.source.Subscribe(e.onTick)
	e.warmupTimer = time.AfterFunc(e.cfg.WarmupDelay, e.analyze)
	e.mu.Unlock()

	go e.analysisLoop(stopCh)

	e.log.Info().
		Str("symbol", e.cfg.Symbol).
		Dur("interval", e.cfg.Interval).
		Msg("signal engine started")
}

// Stop cancels the analysis timers and detaches from the feed before
// returning. Calling Stop on a stopped engine is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	if e.warmupTimer != nil {
		e.warmupTimer.Stop()
		e.warmupTimer = nil
	}
	close(e.stopCh)
	token := e.tickToken
	e.tickToken = ""
	e.mu.Unlock()

	if token != "" {
		e.source.Unsubscribe(token)
	}

	e.log.Info().Str("symbol", e.cfg.Symbol).Msg("signal engine stopped")
}

// SubscribeSignals registers a signal handler and returns a token for
// UnsubscribeSignals.
func (e *Engine) SubscribeSignals(handler SignalHandler) string {
	token := uuid.NewString()
	e.mu.Lock()
	e.subs[token] = handler
	e.mu.Unlock()
	return token
}

// UnsubscribeSignals removes the handler registered under token.
func (e *Engine) UnsubscribeSignals(token string) {
	e.mu.Lock()
	delete(e.subs, token)
	e.mu.Unlock()
}

// Status reports the engine's current state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		Running:      e.running,
		BarCount:     e.agg.BarCount(),
		LastSignalAt: e.lastSignalAt,
	}
}

// seed preloads history from the venue. Failure is non-fatal; the engine
// falls back to building history from the live stream.
func (e *Engine) seed() {
	if e.fetcher == nil {
		return
	}

	klines, err := e.fetcher.GetKlines(e.cfg.Symbol, e.cfg.BinanceInterval, e.cfg.SeedLimit)
	if err != nil {
		e.log.Warn().Err(err).Msg("history seeding failed, building from live stream")
		return
	}

	added := e.agg.Seed(klines)
	e.log.Info().Int("bars", added).Msg("history seeded")
}

func (e *Engine) onTick(tick binance.Tick) {
	if closed, ok := e.agg.OnTick(tick); ok {
		e.log.Debug().
			Int64("bucket", closed.BucketStart).
			Float64("close", closed.Close).
			Msg("bar closed")
	}
}

func (e *Engine) analysisLoop(stopCh <-chan struct{}) {
	ticker := time.NewTicker(e.cfg.AnalysisInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			e.analyze()
		}
	}
}

// analyze runs one scoring pass. It skips while history is warming up or
// the engine's own signal cooldown is active.
func (e *Engine) analyze() {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Msg("analysis pass panicked")
		}
	}()

	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	now := e.now()
	if !e.lastSignalAt.IsZero() && now.Sub(e.lastSignalAt) < e.cfg.SignalCooldown {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	bars := e.agg.Bars()
	if len(bars) < e.cfg.MinBars {
		e.log.Debug().Int("bars", len(bars)).Int("required", e.cfg.MinBars).
			Msg("skipping analysis, insufficient history")
		return
	}
	if cur, ok := e.agg.CurrentBar(); ok {
		bars = append(bars, cur)
	}

	snap := ComputeSnapshot(bars)
	direction, score, reasons := Evaluate(snap)
	if direction == "" || score < MinSignalScore {
		e.log.Debug().Str("direction", string(direction)).Int("score", score).
			Msg("no qualifying signal")
		return
	}

	sig := BuildSignal(e.cfg.Symbol, snap, direction, score, reasons, now)

	e.mu.Lock()
	e.lastSignalAt = now
	handlers := make(map[string]SignalHandler, len(e.subs))
	for id, h := range e.subs {
		handlers[id] = h
	}
	e.mu.Unlock()

	e.log.Info().
		Str("direction", string(direction)).
		Int("score", score).
		Float64("entry", sig.EntryPrice).
		Msg("signal emitted")

	for id, h := range handlers {
		e.deliver(id, h, sig)
	}
}

func (e *Engine) deliver(id string, handler SignalHandler, sig *Signal) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Str("subscription", id).Interface("panic", r).
				Msg("signal handler panicked")
		}
	}()
	handler(sig)
}
