// Package execution is the venue-facing order gateway: credential
// management, account queries, risk sizing, and market-order placement.
package execution

import (
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"

	"github.com/koshedutech/binance-futures-bot/internal/binance"
	"github.com/koshedutech/binance-futures-bot/internal/strategy"
)

const quoteAsset = "USDT"

// Credentials selects the venue account and endpoint.
type Credentials struct {
	APIKey    string
	SecretKey string
	Testnet   bool
}

// OrderResult is the outcome of one execution attempt.
type OrderResult struct {
	Success     bool    `json:"success"`
	OrderID     int64   `json:"order_id,omitempty"`
	Symbol      string  `json:"symbol,omitempty"`
	Side        string  `json:"side,omitempty"`
	ExecutedQty float64 `json:"executed_qty,omitempty"`
	AvgPrice    float64 `json:"avg_price,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// clientFactory builds the venue client for a credential set. Tests swap
// it to inject a mock.
type clientFactory func(Credentials) binance.FuturesAPI

// Gateway submits signed requests to the trading venue. It holds at most
// one active credential set; Configure replaces it atomically.
type Gateway struct {
	mu      sync.RWMutex
	client  binance.FuturesAPI
	log     zerolog.Logger
	factory clientFactory
}

// NewGateway creates an unconfigured gateway. Until Configure is called
// every execution attempt fails closed.
func NewGateway(log zerolog.Logger) *Gateway {
	return &Gateway{
		log: log,
		factory: func(c Credentials) binance.FuturesAPI {
			return binance.NewClient(c.APIKey, c.SecretKey, c.Testnet)
		},
	}
}

// Configure replaces the active credential set and target endpoint.
// Empty credentials deconfigure the gateway.
func (g *Gateway) Configure(creds Credentials) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if creds.APIKey == "" || creds.SecretKey == "" {
		g.client = nil
		g.log.Warn().Msg("gateway deconfigured, execution disabled")
		return
	}

	g.client = g.factory(creds)
	g.log.Info().Bool("testnet", creds.Testnet).Msg("gateway configured")
}

// IsConfigured reports whether the gateway holds credentials.
func (g *Gateway) IsConfigured() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.client != nil
}

func (g *Gateway) api() binance.FuturesAPI {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.client
}

// GetBalance returns the available quote-asset balance. Failures are
// logged and reported as zero.
func (g *Gateway) GetBalance() float64 {
	api := g.api()
	if api == nil {
		return 0
	}

	info, err := api.GetAccountInfo()
	if err != nil {
		g.log.Error().Err(err).Msg("balance fetch failed")
		return 0
	}

	for _, asset := range info.Assets {
		if asset.Asset == quoteAsset {
			return asset.AvailableBalance
		}
	}
	return 0
}

// GetOpenPositions returns positions with non-zero amounts for symbol.
// An empty symbol returns all open positions.
func (g *Gateway) GetOpenPositions(symbol string) ([]binance.FuturesPosition, error) {
	api := g.api()
	if api == nil {
		return nil, fmt.Errorf("gateway not configured")
	}

	positions, err := api.GetPositions(symbol)
	if err != nil {
		return nil, fmt.Errorf("error fetching positions: %w", err)
	}

	open := make([]binance.FuturesPosition, 0, len(positions))
	for _, p := range positions {
		if p.PositionAmt != 0 {
			open = append(open, p)
		}
	}
	return open, nil
}

// SetLeverage applies leverage for symbol. The venue's "not modified"
// rejection counts as success; other failures are logged and return false.
func (g *Gateway) SetLeverage(symbol string, leverage int) bool {
	api := g.api()
	if api == nil {
		return false
	}

	if err := api.SetLeverage(symbol, leverage); err != nil {
		if binance.IsAlreadySet(err) {
			return true
		}
		g.log.Error().Err(err).Int("leverage", leverage).Msg("set leverage failed")
		return false
	}
	return true
}

// SetMarginType applies the margin mode for symbol, tolerant of the
// "already set" rejection like SetLeverage.
func (g *Gateway) SetMarginType(symbol, marginType string) bool {
	api := g.api()
	if api == nil {
		return false
	}

	if err := api.SetMarginType(symbol, marginType); err != nil {
		if binance.IsAlreadySet(err) {
			return true
		}
		g.log.Error().Err(err).Str("margin_type", marginType).Msg("set margin type failed")
		return false
	}
	return true
}

// CalculatePositionSize converts an account-percentage risk allocation
// into a quantity, truncated to the instrument's 0.001 granularity.
func CalculatePositionSize(balance, accountPercentage float64, leverage int, entryPrice float64) float64 {
	if entryPrice <= 0 {
		return 0
	}
	raw := balance * accountPercentage / 100 * float64(leverage) / entryPrice
	return math.Floor(raw*1000) / 1000
}

// ExecuteSignal places a market order for the signal after configuring
// leverage and margin. An existing open position on the instrument blocks
// execution; nothing is sent to the venue in that case.
func (g *Gateway) ExecuteSignal(sig *strategy.Signal, accountPercentage float64, leverage int, marginType string) OrderResult {
	api := g.api()
	if api == nil {
		return OrderResult{Success: false, Error: "gateway not configured"}
	}

	open, err := g.GetOpenPositions(sig.Symbol)
	if err != nil {
		return OrderResult{Success: false, Error: fmt.Sprintf("position check failed: %v", err)}
	}
	if len(open) > 0 {
		g.log.Warn().Str("symbol", sig.Symbol).Msg("skipping signal, position already open")
		return OrderResult{Success: false, Error: "position already open for " + sig.Symbol}
	}

	if !g.SetLeverage(sig.Symbol, leverage) {
		return OrderResult{Success: false, Error: "failed to set leverage"}
	}
	if !g.SetMarginType(sig.Symbol, marginType) {
		return OrderResult{Success: false, Error: "failed to set margin type"}
	}

	balance := g.GetBalance()
	quantity := CalculatePositionSize(balance, accountPercentage, leverage, sig.EntryPrice)
	if quantity <= 0 {
		return OrderResult{Success: false, Error: "calculated quantity is zero"}
	}

	side := binance.SideBuy
	if sig.Direction == strategy.DirectionShort {
		side = binance.SideSell
	}

	resp, err := api.PlaceMarketOrder(sig.Symbol, side, quantity)
	if err != nil {
		g.log.Error().Err(err).Str("symbol", sig.Symbol).Msg("order placement failed")
		return OrderResult{Success: false, Error: err.Error()}
	}

	g.log.Info().
		Int64("order_id", resp.OrderID).
		Str("side", side).
		Float64("qty", resp.ExecutedQty).
		Float64("avg_price", resp.AvgPrice).
		Msg("order filled")

	return OrderResult{
		Success:     true,
		OrderID:     resp.OrderID,
		Symbol:      resp.Symbol,
		Side:        side,
		ExecutedQty: resp.ExecutedQty,
		AvgPrice:    resp.AvgPrice,
	}
}

// ClosePosition flattens the open position on symbol with an opposite
// market order.
func (g *Gateway) ClosePosition(symbol string) OrderResult {
	api := g.api()
	if api == nil {
		return OrderResult{Success: false, Error: "gateway not configured"}
	}

	open, err := g.GetOpenPositions(symbol)
	if err != nil {
		return OrderResult{Success: false, Error: fmt.Sprintf("position check failed: %v", err)}
	}
	if len(open) == 0 {
		return OrderResult{Success: false, Error: "no open position for " + symbol}
	}

	pos := open[0]
	side := binance.SideSell
	if pos.PositionAmt < 0 {
		side = binance.SideBuy
	}
	quantity := math.Abs(pos.PositionAmt)

	resp, err := api.PlaceMarketOrder(symbol, side, quantity)
	if err != nil {
		g.log.Error().Err(err).Str("symbol", symbol).Msg("close order failed")
		return OrderResult{Success: false, Error: err.Error()}
	}

	g.log.Info().Int64("order_id", resp.OrderID).Str("side", side).
		Float64("qty", quantity).Msg("position closed")

	return OrderResult{
		Success:     true,
		OrderID:     resp.OrderID,
		Symbol:      symbol,
		Side:        side,
		ExecutedQty: resp.ExecutedQty,
		AvgPrice:    resp.AvgPrice,
	}
}
