package database

import (
	"time"

	"github.com/google/uuid"

	"smart-trading-engine/internal/market"
)

// TradeRow is a persisted closed trade
type TradeRow struct {
	ID         int64     `json:"id"`
	Symbol     string    `json:"symbol"`
	ProfitPct  float64   `json:"profit_pct"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	ExitReason string    `json:"exit_reason"`
	ExecutedAt time.Time `json:"executed_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// Record converts the row to the domain trade record
func (t TradeRow) Record() market.TradeRecord {
	return market.TradeRecord{
		Symbol:     t.Symbol,
		ProfitPct:  t.ProfitPct,
		EntryPrice: t.EntryPrice,
		ExitPrice:  t.ExitPrice,
		ExitReason: t.ExitReason,
		Timestamp:  t.ExecutedAt,
	}
}

// User is an API account
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}
