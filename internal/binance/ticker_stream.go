package binance

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	streamBaseURL        = "wss://fstream.binance.com/ws"
	streamTestnetBaseURL = "wss://stream.binancefuture.com/ws"

	pingInterval         = 30 * time.Second
	maxReconnectAttempts = 10
	reconnectBaseDelay   = 5 * time.Second
	reconnectCooldown    = 60 * time.Second
)

// ConnState is the ticker stream connection state.
type ConnState int

const (
	StateIdle ConnState = iota
	StateConnecting
	StateOpen
	StateClosing
	StateFaulted
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// TickHandler receives normalized ticker updates.
type TickHandler func(Tick)

// TickerStream maintains one persistent websocket subscription to a single
// instrument's 24h ticker stream and fans ticks out to subscribers.
//
// The connection lifecycle is an explicit state machine with a single pending
// reconnect timer, so Stop can cancel everything synchronously.
type TickerStream struct {
	mu sync.Mutex

	symbol string
	url    string
	log    zerolog.Logger

	state     ConnState
	conn      *websocket.Conn
	shouldRun bool

	failures       int
	bo             *backoff.ExponentialBackOff
	reconnectTimer *time.Timer

	subs     map[string]TickHandler
	lastTick *Tick
}

// NewTickerStream creates a stream client for the given symbol.
func NewTickerStream(symbol string, testnet bool, log zerolog.Logger) *TickerStream {
	base := streamBaseURL
	if testnet {
		base = streamTestnetBaseURL
	}

	return &TickerStream{
		symbol: strings.ToUpper(symbol),
		url:    base + "/" + strings.ToLower(symbol) + "@ticker",
		log:    log,
		state:  StateIdle,
		bo:     newReconnectBackoff(),
		subs:   make(map[string]TickHandler),
	}
}

// newReconnectBackoff builds the reconnect schedule: 5s, 7.5s, 11.25s, ...
func newReconnectBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = reconnectBaseDelay
	bo.Multiplier = 1.5
	bo.RandomizationFactor = 0
	bo.MaxInterval = 10 * time.Minute
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// Start opens the feed. Calling Start on a running stream is a no-op.
func (s *TickerStream) Start() {
	s.mu.Lock()
	if s.shouldRun {
		s.mu.Unlock()
		return
	}
	s.shouldRun = true
	s.failures = 0
	s.bo.Reset()
	s.mu.Unlock()

	go s.connect()
}

// Stop tears down the connection and cancels any pending reconnect timer
// before returning. No callback fires after Stop.
func (s *TickerStream) Stop() {
	s.mu.Lock()
	if !s.shouldRun {
		s.mu.Unlock()
		return
	}
	s.shouldRun = false
	s.state = StateClosing
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	conn := s.conn
	s.conn = nil
	if conn == nil {
		s.state = StateIdle
	}
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}

	s.log.Info().Str("symbol", s.symbol).Msg("ticker stream stopped")
}

// Subscribe registers a tick handler and returns an opaque token for
// Unsubscribe.
func (s *TickerStream) Subscribe(handler TickHandler) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.subs[token] = handler
	s.mu.Unlock()
	return token
}

// Unsubscribe removes the handler registered under token.
func (s *TickerStream) Unsubscribe(token string) {
	s.mu.Lock()
	delete(s.subs, token)
	s.mu.Unlock()
}

// IsConnected reports whether the stream is currently open.
func (s *TickerStream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateOpen
}

// State returns the current connection state.
func (s *TickerStream) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastTick returns the most recent tick, if any has arrived.
func (s *TickerStream) LastTick() (Tick, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastTick == nil {
		return Tick{}, false
	}
	return *s.lastTick, true
}

func (s *TickerStream) connect() {
	s.mu.Lock()
	if !s.shouldRun {
		s.mu.Unlock()
		return
	}
	s.state = StateConnecting
	s.reconnectTimer = nil
	url := s.url
	s.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", s.symbol).Msg("ticker stream dial failed")
		s.scheduleReconnect()
		return
	}

	s.mu.Lock()
	if !s.shouldRun {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	s.state = StateOpen
	s.failures = 0
	s.bo.Reset()
	s.mu.Unlock()

	s.log.Info().Str("symbol", s.symbol).Msg("ticker stream connected")

	done := make(chan struct{})
	go s.pingLoop(conn, done)
	s.readLoop(conn, done)
}

func (s *TickerStream) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Info().Msg("ticker stream closed")
			} else {
				s.log.Warn().Err(err).Msg("ticker stream read error")
			}
			break
		}
		s.handleMessage(msg)
	}

	conn.Close()

	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	running := s.shouldRun
	if running {
		s.state = StateFaulted
	} else {
		s.state = StateIdle
	}
	s.mu.Unlock()

	if running {
		s.scheduleReconnect()
	}
}

// pingLoop sends a liveness probe while the connection is open. A missing
// pong does not force a reconnect; close and error events do.
func (s *TickerStream) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(10 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.log.Debug().Err(err).Msg("ticker stream ping failed")
			}
		}
	}
}

func (s *TickerStream) scheduleReconnect() {
	s.mu.Lock()
	if !s.shouldRun {
		s.mu.Unlock()
		return
	}
	s.state = StateFaulted
	delay := s.nextReconnectDelay()
	attempt := s.failures
	s.reconnectTimer = time.AfterFunc(delay, s.connect)
	s.mu.Unlock()

	s.log.Info().
		Dur("delay", delay).
		Int("attempt", attempt).
		Msg("ticker stream reconnect scheduled")
}

// nextReconnectDelay advances the backoff schedule. After the maximum
// consecutive failures it returns the fixed cooldown and resets the
// schedule. Caller holds the lock.
func (s *TickerStream) nextReconnectDelay() time.Duration {
	if s.failures >= maxReconnectAttempts {
		s.failures = 0
		s.bo.Reset()
		return reconnectCooldown
	}
	s.failures++
	return s.bo.NextBackOff()
}

// tickerEvent is the raw 24hrTicker stream payload.
type tickerEvent struct {
	EventType          string `json:"e"`
	EventTime          int64  `json:"E"`
	Symbol             string `json:"s"`
	LastPrice          string `json:"c"`
	PriceChange        string `json:"p"`
	PriceChangePercent string `json:"P"`
	Volume             string `json:"v"`
}

func (e *tickerEvent) tick() (Tick, error) {
	price, err := strconv.ParseFloat(e.LastPrice, 64)
	if err != nil {
		return Tick{}, err
	}
	volume, err := strconv.ParseFloat(e.Volume, 64)
	if err != nil {
		return Tick{}, err
	}
	change, err := strconv.ParseFloat(e.PriceChange, 64)
	if err != nil {
		return Tick{}, err
	}
	changePct, err := strconv.ParseFloat(e.PriceChangePercent, 64)
	if err != nil {
		return Tick{}, err
	}

	return Tick{
		Symbol:                e.Symbol,
		Price:                 price,
		EventTime:             e.EventTime,
		Volume24h:             volume,
		PriceChange24h:        change,
		PriceChangePercent24h: changePct,
	}, nil
}

// handleMessage parses a raw feed message and fans the tick out. Malformed
// messages are dropped; a panicking subscriber does not block the others.
func (s *TickerStream) handleMessage(msg []byte) {
	var ev tickerEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		s.log.Warn().Err(err).Msg("dropping malformed feed message")
		return
	}
	if ev.EventType != "24hrTicker" {
		return
	}

	tick, err := ev.tick()
	if err != nil {
		s.log.Warn().Err(err).Msg("dropping malformed ticker payload")
		return
	}

	s.mu.Lock()
	s.lastTick = &tick
	handlers := make(map[string]TickHandler, len(s.subs))
	for id, h := range s.subs {
		handlers[id] = h
	}
	s.mu.Unlock()

	for id, h := range handlers {
		s.deliver(id, h, tick)
	}
}

func (s *TickerStream) deliver(id string, handler TickHandler, tick Tick) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("subscription", id).Interface("panic", r).
				Msg("tick handler panicked")
		}
	}()
	handler(tick)
}
