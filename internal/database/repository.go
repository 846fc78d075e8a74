package database

import (
	"context"
	"fmt"
	"time"

	"github.com/koshedutech/binance-futures-bot/internal/execution"
	"github.com/koshedutech/binance-futures-bot/internal/strategy"
)

// SignalRecord is a persisted signal row.
type SignalRecord struct {
	ID         int64     `json:"id"`
	Symbol     string    `json:"symbol"`
	Direction  string    `json:"direction"`
	EntryPrice float64   `json:"entry_price"`
	Score      int       `json:"score"`
	Reason     string    `json:"reason"`
	EmittedAt  time.Time `json:"emitted_at"`
}

// OrderRecord is a persisted order row.
type OrderRecord struct {
	ID          int64     `json:"id"`
	OrderID     int64     `json:"order_id"`
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"`
	ExecutedQty float64   `json:"executed_qty"`
	AvgPrice    float64   `json:"avg_price"`
	Success     bool      `json:"success"`
	Error       string    `json:"error"`
	CreatedAt   time.Time `json:"created_at"`
}

// SaveSignal records an emitted signal.
func (db *DB) SaveSignal(ctx context.Context, sig *strategy.Signal) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO signals (symbol, direction, entry_price, stop_loss,
			take_profit_1, take_profit_2, take_profit_3, score, reason, emitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		sig.Symbol, string(sig.Direction), sig.EntryPrice, sig.StopLoss,
		sig.TakeProfit1, sig.TakeProfit2, sig.TakeProfit3, sig.Score,
		sig.Reason(), sig.EmittedAt)
	if err != nil {
		return fmt.Errorf("failed to save signal: %w", err)
	}
	return nil
}

// SaveOrder records the outcome of one execution attempt.
func (db *DB) SaveOrder(ctx context.Context, result execution.OrderResult) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO orders (order_id, symbol, side, executed_qty, avg_price, success, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		result.OrderID, result.Symbol, result.Side, result.ExecutedQty,
		result.AvgPrice, result.Success, result.Error)
	if err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

// RecentSignals returns the latest persisted signals, newest first.
func (db *DB) RecentSignals(ctx context.Context, limit int) ([]SignalRecord, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, symbol, direction, entry_price, score, reason, emitted_at
		 FROM signals ORDER BY emitted_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var records []SignalRecord
	for rows.Next() {
		var r SignalRecord
		if err := rows.Scan(&r.ID, &r.Symbol, &r.Direction, &r.EntryPrice,
			&r.Score, &r.Reason, &r.EmittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan signal row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// RecentOrders returns the latest persisted orders, newest first.
func (db *DB) RecentOrders(ctx context.Context, limit int) ([]OrderRecord, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, order_id, symbol, side, executed_qty, avg_price, success, error, created_at
		 FROM orders ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var records []OrderRecord
	for rows.Next() {
		var r OrderRecord
		if err := rows.Scan(&r.ID, &r.OrderID, &r.Symbol, &r.Side,
			&r.ExecutedQty, &r.AvgPrice, &r.Success, &r.Error, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
