// Package risk tracks per-position trailing stop levels.
package risk

import (
	"math"
	"sync"

	"github.com/google/uuid"

	"smart-trading-engine/internal/market"
)

// TrailingUpdate is the outcome of feeding a price into the trailing stop
// for one position.
type TrailingUpdate struct {
	ShouldExit bool
	StopLevel  float64
	Distance   float64
}

// TrailingStopManager keeps a monotonic trailing stop per position. Stops
// are keyed by position ID, so two positions on the same symbol and side
// never share state. Safe for concurrent use.
type TrailingStopManager struct {
	mu     sync.Mutex
	levels map[uuid.UUID]float64
}

// NewTrailingStopManager creates an empty trailing stop manager
func NewTrailingStopManager() *TrailingStopManager {
	return &TrailingStopManager{
		levels: make(map[uuid.UUID]float64),
	}
}

// Update feeds the current price into the position's trailing stop. The
// stop only tightens: it rises for longs and falls for shorts. When price
// crosses the stop, the state is cleared and ShouldExit is true. Positions
// without profit are not trailed.
func (m *TrailingStopManager) Update(position market.OpenPosition, currentPrice, profitPct float64, closes []float64) TrailingUpdate {
	if profitPct <= 0 {
		return TrailingUpdate{}
	}

	distance := trailingDistance(closes, profitPct)

	m.mu.Lock()
	defer m.mu.Unlock()

	trail, ok := m.levels[position.ID]
	if !ok {
		if position.Side == market.SideLong {
			trail = currentPrice * (1 - distance)
		} else {
			trail = currentPrice * (1 + distance)
		}
		m.levels[position.ID] = trail
	}

	if position.Side == market.SideLong {
		if newTrail := currentPrice * (1 - distance); newTrail > trail {
			trail = newTrail
			m.levels[position.ID] = trail
		}
		if currentPrice <= trail {
			delete(m.levels, position.ID)
			return TrailingUpdate{ShouldExit: true, StopLevel: trail, Distance: distance}
		}
	} else {
		if newTrail := currentPrice * (1 + distance); newTrail < trail {
			trail = newTrail
			m.levels[position.ID] = trail
		}
		if currentPrice >= trail {
			delete(m.levels, position.ID)
			return TrailingUpdate{ShouldExit: true, StopLevel: trail, Distance: distance}
		}
	}

	return TrailingUpdate{StopLevel: trail, Distance: distance}
}

// Seed restores a persisted stop level for a position. The tighter level
// wins: a live stop is never loosened by a stale restore, and a restored
// stop is never loosened by a fresh Update.
func (m *TrailingStopManager) Seed(position market.OpenPosition, level float64) {
	if level <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.levels[position.ID]
	if ok {
		if position.Side == market.SideLong && current >= level {
			return
		}
		if position.Side == market.SideShort && current <= level {
			return
		}
	}
	m.levels[position.ID] = level
}

// Remove clears the trailing state for a closed position
func (m *TrailingStopManager) Remove(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.levels, id)
}

// Level returns the current stop level for a position, if one exists
func (m *TrailingStopManager) Level(id uuid.UUID) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	level, ok := m.levels[id]
	return level, ok
}

// trailingDistance derives the trailing gap from 20-bar volatility, clamped
// to [0.5%, 2%], then widened as profit grows. The 5% branch is shadowed by
// the 2% branch; kept to match the tuned live behavior.
func trailingDistance(closes []float64, profitPct float64) float64 {
	distance := 0.01
	if len(closes) >= 20 {
		tail := closes[len(closes)-20:]
		volatility := stdDevOf(tail) / meanOf(tail)
		distance = math.Max(0.005, math.Min(0.02, volatility*2))
	}

	if profitPct > 0.02 {
		distance *= 1.5
	} else if profitPct > 0.05 {
		distance *= 2.0
	}

	return distance
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdDevOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := meanOf(values)
	sum := 0.0
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(values)))
}
