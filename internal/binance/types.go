package binance

// Tick is a normalized ticker update from the market-data stream.
// Only the last known tick is retained.
type Tick struct {
	Symbol                string  `json:"symbol"`
	Price                 float64 `json:"price"`
	EventTime             int64   `json:"event_time_ms"`
	Volume24h             float64 `json:"volume_24h"`
	PriceChange24h        float64 `json:"price_change_24h"`
	PriceChangePercent24h float64 `json:"price_change_percent_24h"`
}

// Kline represents a candlestick from the futures REST API.
type Kline struct {
	OpenTime  int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime int64
}

// FuturesAccountInfo is the /fapi/v2/account response, trimmed to the
// fields the bot reads.
type FuturesAccountInfo struct {
	TotalWalletBalance float64        `json:"totalWalletBalance,string"`
	Assets             []FuturesAsset `json:"assets"`
}

// FuturesAsset is one asset entry in the account response.
type FuturesAsset struct {
	Asset            string  `json:"asset"`
	WalletBalance    float64 `json:"walletBalance,string"`
	AvailableBalance float64 `json:"availableBalance,string"`
}

// FuturesPosition is one record from /fapi/v2/positionRisk.
type FuturesPosition struct {
	Symbol           string  `json:"symbol"`
	PositionAmt      float64 `json:"positionAmt,string"`
	EntryPrice       float64 `json:"entryPrice,string"`
	UnRealizedProfit float64 `json:"unRealizedProfit,string"`
	Leverage         float64 `json:"leverage,string"`
	MarginType       string  `json:"marginType"`
	PositionSide     string  `json:"positionSide"`
}

// FuturesOrderResponse is the fill response from /fapi/v1/order.
type FuturesOrderResponse struct {
	OrderID     int64   `json:"orderId"`
	Symbol      string  `json:"symbol"`
	Status      string  `json:"status"`
	Side        string  `json:"side"`
	Type        string  `json:"type"`
	OrigQty     float64 `json:"origQty,string"`
	ExecutedQty float64 `json:"executedQty,string"`
	AvgPrice    float64 `json:"avgPrice,string"`
}

// LeverageResponse is the /fapi/v1/leverage response.
type LeverageResponse struct {
	Symbol   string `json:"symbol"`
	Leverage int    `json:"leverage"`
}

// Order sides and margin types.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	MarginTypeCrossed  = "CROSSED"
	MarginTypeIsolated = "ISOLATED"
)

// FuturesAPI is the venue surface the execution gateway depends on.
// The concrete client implements it; tests substitute a mock.
type FuturesAPI interface {
	GetKlines(symbol, interval string, limit int) ([]Kline, error)
	GetAccountInfo() (*FuturesAccountInfo, error)
	GetPositions(symbol string) ([]FuturesPosition, error)
	SetLeverage(symbol string, leverage int) error
	SetMarginType(symbol, marginType string) error
	PlaceMarketOrder(symbol, side string, quantity float64) (*FuturesOrderResponse, error)
}
