package binance

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestStream() *TickerStream {
	return NewTickerStream("BTCUSDT", true, zerolog.Nop())
}

func TestReconnectBackoffSchedule(t *testing.T) {
	bo := newReconnectBackoff()

	want := []time.Duration{
		5 * time.Second,
		7500 * time.Millisecond,
		11250 * time.Millisecond,
	}
	for i, expected := range want {
		got := bo.NextBackOff()
		if got != expected {
			t.Errorf("delay %d: expected %v, got %v", i, expected, got)
		}
	}

	bo.Reset()
	if got := bo.NextBackOff(); got != 5*time.Second {
		t.Errorf("expected reset to return to 5s, got %v", got)
	}
}

func TestReconnectCooldownAfterMaxAttempts(t *testing.T) {
	s := newTestStream()

	want := []time.Duration{5 * time.Second, 7500 * time.Millisecond, 11250 * time.Millisecond}
	for i := 0; i < maxReconnectAttempts; i++ {
		delay := s.nextReconnectDelay()
		if i < len(want) && delay != want[i] {
			t.Fatalf("attempt %d: expected %v, got %v", i, want[i], delay)
		}
	}

	if delay := s.nextReconnectDelay(); delay != 60*time.Second {
		t.Errorf("expected 60s cooldown after %d failures, got %v", maxReconnectAttempts, delay)
	}
	if s.failures != 0 {
		t.Errorf("expected failure counter reset, got %d", s.failures)
	}
	if delay := s.nextReconnectDelay(); delay != 5*time.Second {
		t.Errorf("expected schedule back at 5s after cooldown, got %v", delay)
	}
}

func TestStreamURLs(t *testing.T) {
	prod := NewTickerStream("BTCUSDT", false, zerolog.Nop())
	if prod.url != "wss://fstream.binance.com/ws/btcusdt@ticker" {
		t.Errorf("unexpected production url: %s", prod.url)
	}

	test := NewTickerStream("ethusdt", true, zerolog.Nop())
	if test.url != "wss://stream.binancefuture.com/ws/ethusdt@ticker" {
		t.Errorf("unexpected testnet url: %s", test.url)
	}
	if test.symbol != "ETHUSDT" {
		t.Errorf("expected normalized symbol ETHUSDT, got %s", test.symbol)
	}
}

func TestHandleMessageParsesTicker(t *testing.T) {
	s := newTestStream()

	var received []Tick
	s.Subscribe(func(tick Tick) {
		received = append(received, tick)
	})

	msg := []byte(`{"e":"24hrTicker","E":1700000000000,"s":"BTCUSDT","c":"50123.45","p":"1200.50","P":"2.45","v":"98765.4"}`)
	s.handleMessage(msg)

	if len(received) != 1 {
		t.Fatalf("expected 1 tick delivered, got %d", len(received))
	}
	tick := received[0]
	if tick.Symbol != "BTCUSDT" {
		t.Errorf("expected symbol BTCUSDT, got %s", tick.Symbol)
	}
	if tick.Price != 50123.45 {
		t.Errorf("expected price 50123.45, got %f", tick.Price)
	}
	if tick.EventTime != 1700000000000 {
		t.Errorf("expected event time 1700000000000, got %d", tick.EventTime)
	}
	if tick.Volume24h != 98765.4 {
		t.Errorf("expected volume 98765.4, got %f", tick.Volume24h)
	}

	last, ok := s.LastTick()
	if !ok {
		t.Fatal("expected LastTick to be set")
	}
	if last.Price != 50123.45 {
		t.Errorf("expected last tick price 50123.45, got %f", last.Price)
	}
}

func TestHandleMessageDropsMalformed(t *testing.T) {
	s := newTestStream()

	delivered := 0
	s.Subscribe(func(Tick) { delivered++ })

	cases := [][]byte{
		[]byte(`not json at all`),
		[]byte(`{"e":"24hrTicker","s":"BTCUSDT","c":"not-a-number","p":"0","P":"0","v":"0"}`),
		[]byte(`{"e":"aggTrade","s":"BTCUSDT","c":"100","p":"0","P":"0","v":"0"}`),
	}
	for _, msg := range cases {
		s.handleMessage(msg)
	}

	if delivered != 0 {
		t.Errorf("expected no ticks delivered for malformed input, got %d", delivered)
	}
	if _, ok := s.LastTick(); ok {
		t.Error("expected no last tick after malformed input")
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	s := newTestStream()

	first := 0
	second := 0
	token := s.Subscribe(func(Tick) { first++ })
	s.Subscribe(func(Tick) { second++ })

	msg := []byte(`{"e":"24hrTicker","E":1,"s":"BTCUSDT","c":"100","p":"1","P":"1","v":"10"}`)
	s.handleMessage(msg)

	if first != 1 || second != 1 {
		t.Errorf("expected both handlers called once, got %d and %d", first, second)
	}

	s.Unsubscribe(token)
	s.handleMessage(msg)

	if first != 1 {
		t.Errorf("expected unsubscribed handler not called again, got %d", first)
	}
	if second != 2 {
		t.Errorf("expected remaining handler called twice, got %d", second)
	}
}

func TestPanickingHandlerDoesNotBlockOthers(t *testing.T) {
	s := newTestStream()

	s.Subscribe(func(Tick) { panic("boom") })
	healthy := 0
	s.Subscribe(func(Tick) { healthy++ })

	msg := []byte(`{"e":"24hrTicker","E":1,"s":"BTCUSDT","c":"100","p":"1","P":"1","v":"10"}`)
	s.handleMessage(msg)

	if healthy != 1 {
		t.Errorf("expected healthy handler to run despite panic, got %d calls", healthy)
	}
}

func TestStopWithoutStartIsNoop(t *testing.T) {
	s := newTestStream()
	s.Stop()

	if s.State() != StateIdle {
		t.Errorf("expected idle state, got %s", s.State())
	}
	if s.IsConnected() {
		t.Error("expected stream not connected")
	}
}

func TestConnStateString(t *testing.T) {
	states := map[ConnState]string{
		StateIdle:       "idle",
		StateConnecting: "connecting",
		StateOpen:       "open",
		StateClosing:    "closing",
		StateFaulted:    "faulted",
	}
	for state, expected := range states {
		if state.String() != expected {
			t.Errorf("expected %s, got %s", expected, state.String())
		}
	}
}
