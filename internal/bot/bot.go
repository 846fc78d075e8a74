// Package bot is the orchestrator: it wires the feed, the signal engine,
// and the execution gateway together and enforces trading policy.
package bot

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/koshedutech/binance-futures-bot/internal/binance"
	"github.com/koshedutech/binance-futures-bot/internal/events"
	"github.com/koshedutech/binance-futures-bot/internal/execution"
	"github.com/koshedutech/binance-futures-bot/internal/strategy"
)

const opLogLimit = 100

// Policy is the trading policy applied to every emitted signal.
type Policy struct {
	Enabled           bool          `json:"enabled"`
	MinScore          int           `json:"min_score"`
	MinOrderInterval  time.Duration `json:"min_order_interval"`
	AccountPercentage float64       `json:"account_percentage"`
	Leverage          int           `json:"leverage"`
	MarginType        string        `json:"margin_type"`
}

// LogEntry is one operational log record, newest first in the log.
type LogEntry struct {
	Type      string      `json:"type"`
	Message   string      `json:"message"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// Status aggregates the bot's observable state.
type Status struct {
	Running           bool      `json:"running"`
	GatewayConfigured bool      `json:"gateway_configured"`
	StreamConnected   bool      `json:"stream_connected"`
	BarCount          int       `json:"bar_count"`
	CurrentPrice      float64   `json:"current_price"`
	LastSignalAt      time.Time `json:"last_signal_at"`
	LastOrderAt       time.Time `json:"last_order_at"`
	TotalOrders       int       `json:"total_orders"`
	Policy            Policy    `json:"policy"`
}

// Stream is the market-data feed surface the bot controls.
type Stream interface {
	Start()
	Stop()
	Subscribe(binance.TickHandler) string
	Unsubscribe(string)
	IsConnected() bool
	LastTick() (binance.Tick, bool)
}

// Engine is the signal engine surface the bot controls.
type Engine interface {
	Start()
	Stop()
	SubscribeSignals(strategy.SignalHandler) string
	UnsubscribeSignals(string)
	Status() strategy.Status
}

// Executor is the order gateway surface the bot invokes.
type Executor interface {
	IsConfigured() bool
	ExecuteSignal(sig *strategy.Signal, accountPercentage float64, leverage int, marginType string) execution.OrderResult
}

// Notifier pushes human-readable alerts. Nil disables notifications.
type Notifier interface {
	Notify(title, body string, data map[string]interface{})
}

// Bot orchestrates the trading pipeline and applies Policy to every
// signal before any capital moves.
type Bot struct {
	mu sync.Mutex

	stream   Stream
	engine   Engine
	gateway  Executor
	bus      *events.Bus
	notifier Notifier
	log      zerolog.Logger

	policy  Policy
	running bool

	tickToken    string
	signalToken  string
	currentPrice float64
	lastOrderAt  time.Time
	totalOrders  int
	opLog        []LogEntry

	now func() time.Time
}

// New wires the orchestrator. notifier may be nil.
func New(stream Stream, engine Engine, gateway Executor, bus *events.Bus, notifier Notifier, log zerolog.Logger) *Bot {
	return &Bot{
		stream:   stream,
		engine:   engine,
		gateway:  gateway,
		bus:      bus,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// Configure always stores the policy, then transitions to Running when
// the policy enables trading and to Stopped otherwise. Both transitions
// are idempotent.
func (b *Bot) Configure(policy Policy) {
	b.mu.Lock()
	b.policy = policy
	enabled := policy.Enabled
	b.mu.Unlock()

	b.addLog("info", fmt.Sprintf("policy updated: enabled=%v minScore=%d", policy.Enabled, policy.MinScore), policy)

	if enabled {
		b.Start()
	} else {
		b.Stop()
	}
}

// Start transitions to Running: the feed and engine start and the bot
// attaches to ticks and signals. A second Start is a no-op.
func (b *Bot) Start() {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.mu.Unlock()

	b.stream.Start()
	b.engine.Start()

	b.mu.Lock()
	b.tickToken = b.stream.Subscribe(b.onTick)
	b.signalToken = b.engine.SubscribeSignals(b.onSignal)
	b.mu.Unlock()

	b.log.Info().Msg("bot started")
	b.addLog("info", "bot started", nil)
	b.publish(events.TypeBotStarted, nil)
	b.notify("Bot Started", "Trading bot is now running", nil)
}

// Stop transitions to Stopped: subscriptions detach and both stages shut
// down, cancelling their timers. A second Stop is a no-op.
func (b *Bot) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	tickToken := b.tickToken
	signalToken := b.signalToken
	b.tickToken = ""
	b.signalToken = ""
	b.mu.Unlock()

	if tickToken != "" {
		b.stream.Unsubscribe(tickToken)
	}
	if signalToken != "" {
		b.engine.UnsubscribeSignals(signalToken)
	}
	b.engine.Stop()
	b.stream.Stop()

	b.log.Info().Msg("bot stopped")
	b.addLog("info", "bot stopped", nil)
	b.publish(events.TypeBotStopped, nil)
	b.notify("Bot Stopped", "Trading bot has been stopped", nil)
}

// IsRunning reports whether the bot is in the Running state.
func (b *Bot) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// GetStatus aggregates state across all stages.
func (b *Bot) GetStatus() Status {
	engineStatus := b.engine.Status()

	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{
		Running:           b.running,
		GatewayConfigured: b.gateway.IsConfigured(),
		StreamConnected:   b.stream.IsConnected(),
		BarCount:          engineStatus.BarCount,
		CurrentPrice:      b.currentPrice,
		LastSignalAt:      engineStatus.LastSignalAt,
		LastOrderAt:       b.lastOrderAt,
		TotalOrders:       b.totalOrders,
		Policy:            b.policy,
	}
}

// GetLogs returns a copy of the operational log, newest first.
func (b *Bot) GetLogs() []LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]LogEntry, len(b.opLog))
	copy(out, b.opLog)
	return out
}

func (b *Bot) onTick(tick binance.Tick) {
	b.mu.Lock()
	b.currentPrice = tick.Price
	b.mu.Unlock()
}

// onSignal applies the policy gate in order; only a signal passing every
// check reaches the gateway. Drops are informational, not errors.
func (b *Bot) onSignal(sig *strategy.Signal) {
	b.mu.Lock()
	policy := b.policy
	lastOrderAt := b.lastOrderAt
	running := b.running
	b.mu.Unlock()

	b.addLog("signal", fmt.Sprintf("%s signal score=%d entry=%.2f", sig.Direction, sig.Score, sig.EntryPrice), sig)
	b.publish(events.TypeSignal, sig)

	if !running || !policy.Enabled {
		b.addLog("info", "signal dropped: trading disabled", nil)
		return
	}
	if sig.Score < policy.MinScore {
		b.addLog("info", fmt.Sprintf("signal dropped: score %d below threshold %d", sig.Score, policy.MinScore), nil)
		return
	}
	now := b.now()
	if !lastOrderAt.IsZero() && now.Sub(lastOrderAt) < policy.MinOrderInterval {
		b.addLog("info", "signal dropped: order cooldown active", nil)
		return
	}
	if !b.gateway.IsConfigured() {
		b.addLog("info", "signal detected but gateway not configured, notify only", nil)
		b.notify(
			fmt.Sprintf("%s Signal: %s", sig.Direction, sig.Symbol),
			fmt.Sprintf("Score %d at %.2f (no credentials, detection only)", sig.Score, sig.EntryPrice),
			map[string]interface{}{"signal": sig},
		)
		return
	}

	result := b.gateway.ExecuteSignal(sig, policy.AccountPercentage, policy.Leverage, policy.MarginType)
	if !result.Success {
		b.log.Error().Str("reason", result.Error).Msg("order execution failed")
		b.addLog("error", "order failed: "+result.Error, result)
		b.publish(events.TypeError, result)
		b.notify(
			fmt.Sprintf("Order Failed: %s", sig.Symbol),
			result.Error,
			map[string]interface{}{"signal": sig, "result": result},
		)
		return
	}

	b.mu.Lock()
	b.lastOrderAt = now
	b.totalOrders++
	b.mu.Unlock()

	b.log.Info().Int64("order_id", result.OrderID).Str("side", result.Side).
		Float64("qty", result.ExecutedQty).Msg("order executed")
	b.addLog("order", fmt.Sprintf("%s %s qty=%.3f avg=%.2f", result.Side, sig.Symbol, result.ExecutedQty, result.AvgPrice), result)
	b.publish(events.TypeOrder, result)
	b.notify(
		fmt.Sprintf("Order Executed: %s %s", result.Side, sig.Symbol),
		fmt.Sprintf("Qty %.3f at %.2f (score %d)", result.ExecutedQty, result.AvgPrice, sig.Score),
		map[string]interface{}{"signal": sig, "result": result},
	)
}

func (b *Bot) addLog(entryType, message string, data interface{}) {
	entry := LogEntry{
		Type:      entryType,
		Message:   message,
		Timestamp: b.now(),
		Data:      data,
	}

	b.mu.Lock()
	b.opLog = append([]LogEntry{entry}, b.opLog...)
	if len(b.opLog) > opLogLimit {
		b.opLog = b.opLog[:opLogLimit]
	}
	b.mu.Unlock()
}

func (b *Bot) publish(t events.Type, data interface{}) {
	if b.bus == nil {
		return
	}
	b.bus.Publish(events.Event{Type: t, Timestamp: b.now(), Data: data})
}

func (b *Bot) notify(title, body string, data map[string]interface{}) {
	if b.notifier == nil {
		return
	}
	b.notifier.Notify(title, body, data)
}
