package market

import (
	"time"

	"github.com/google/uuid"
)

// Side represents the direction of a position
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Candle represents a single OHLCV interval
type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// OpenPosition represents a position currently held on the exchange
type OpenPosition struct {
	ID         uuid.UUID `json:"id"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	EntryPrice float64   `json:"entry_price"`
	EntryTime  time.Time `json:"entry_time"`
	Size       float64   `json:"size"`
	MarkPrice  float64   `json:"mark_price"`
}

// TradeRecord represents a closed trade outcome
type TradeRecord struct {
	Symbol     string    `json:"symbol"`
	ProfitPct  float64   `json:"profit_pct"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	ExitReason string    `json:"exit_reason"`
	Timestamp  time.Time `json:"timestamp"`
}

// Notional returns the position's current notional value in quote currency
func (p *OpenPosition) Notional() float64 {
	size := p.Size
	if size < 0 {
		size = -size
	}
	return size * p.MarkPrice
}

// ProfitPct returns the signed profit fraction of the position at price
func (p *OpenPosition) ProfitPct(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	if p.Side == SideLong {
		return (price - p.EntryPrice) / p.EntryPrice
	}
	return (p.EntryPrice - price) / p.EntryPrice
}

// Closes extracts close prices from a candle series
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Opens extracts open prices from a candle series
func Opens(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Open
	}
	return out
}

// Highs extracts high prices from a candle series
func Highs(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.High
	}
	return out
}

// Lows extracts low prices from a candle series
func Lows(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Low
	}
	return out
}

// Volumes extracts volumes from a candle series
func Volumes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}
