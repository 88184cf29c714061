// Package performance tracks trade outcomes and walks the account through
// position-count tiers as the track record earns it.
package performance

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"smart-trading-engine/internal/market"
)

// Tier identifies a position-count tier
type Tier string

const (
	Tier1 Tier = "tier_1"
	Tier2 Tier = "tier_2"
	Tier3 Tier = "tier_3"
	Tier4 Tier = "tier_4"
)

var tierOrder = []Tier{Tier1, Tier2, Tier3, Tier4}

type tierRequirements struct {
	MaxPositions int
	MinBalance   float64
	MinTrades    int
}

var positionTiers = map[Tier]tierRequirements{
	Tier1: {MaxPositions: 1, MinBalance: 5, MinTrades: 0},
	Tier2: {MaxPositions: 2, MinBalance: 15, MinTrades: 30},
	Tier3: {MaxPositions: 3, MinBalance: 50, MinTrades: 100},
	Tier4: {MaxPositions: 4, MinBalance: 100, MinTrades: 200},
}

// UpgradeCriteria gates any promotion regardless of tier
type UpgradeCriteria struct {
	MinTrades          int     `json:"min_trades"`
	MinWinRate         float64 `json:"min_win_rate"`
	MinProfitFactor    float64 `json:"min_profit_factor"`
	MaxDrawdown        float64 `json:"max_drawdown"`
	MinTrackRecordDays int     `json:"min_track_record_days"`
	MinBalance         float64 `json:"min_balance"`
}

func defaultUpgradeCriteria() UpgradeCriteria {
	return UpgradeCriteria{
		MinTrades:          30,
		MinWinRate:         0.65,
		MinProfitFactor:    1.5,
		MaxDrawdown:        0.10,
		MinTrackRecordDays: 60,
		MinBalance:         15.0,
	}
}

// Metrics summarizes the tracked performance
type Metrics struct {
	TotalTrades     int     `json:"total_trades"`
	WinRate         float64 `json:"win_rate"`
	ProfitFactor    float64 `json:"profit_factor"`
	MaxDrawdown     float64 `json:"max_drawdown"`
	TrackRecordDays int     `json:"track_record_days"`
	CurrentBalance  float64 `json:"current_balance"`
	WinningTrades   int     `json:"winning_trades"`
	LosingTrades    int     `json:"losing_trades"`
}

// UpgradeConfig is the settings bundle handed out on promotion
type UpgradeConfig struct {
	Tier                Tier    `json:"tier"`
	MaxPositions        int     `json:"max_positions"`
	MaxOpenTrades       int     `json:"max_open_trades"`
	KellyFraction       float64 `json:"kelly_fraction"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	RiskLevel           string  `json:"risk_level"`
	Reason              string  `json:"reason"`
}

// UpgradeRecord captures one promotion for the audit trail
type UpgradeRecord struct {
	Timestamp time.Time     `json:"timestamp"`
	FromTier  Tier          `json:"from_tier"`
	ToTier    Tier          `json:"to_tier"`
	Metrics   Metrics       `json:"metrics"`
	Config    UpgradeConfig `json:"config"`
}

// State is the persisted monitor snapshot
type State struct {
	Trades         []market.TradeRecord `json:"trades"`
	CurrentBalance float64              `json:"current_balance"`
	InitialBalance float64              `json:"initial_balance"`
	UpgradeHistory []UpgradeRecord      `json:"upgrade_history"`
	CurrentTier    Tier                 `json:"current_tier"`
	LastUpgrade    *time.Time           `json:"last_upgrade,omitempty"`
}

// Status is the live view served over the API
type Status struct {
	CurrentTier  Tier            `json:"current_tier"`
	MaxPositions int             `json:"max_positions"`
	Metrics      Metrics         `json:"metrics"`
	Criteria     UpgradeCriteria `json:"upgrade_criteria"`
	NextUpgrade  *NextUpgrade    `json:"next_upgrade,omitempty"`
}

// NextUpgrade describes what the next tier demands and how close the
// account is.
type NextUpgrade struct {
	Tier           Tier    `json:"tier"`
	MinBalance     float64 `json:"min_balance"`
	MinTrades      int     `json:"min_trades"`
	CurrentBalance float64 `json:"current_balance"`
	CurrentTrades  int     `json:"current_trades"`
	BalanceMet     bool    `json:"balance_met"`
	TradesMet      bool    `json:"trades_met"`
}

// Store persists monitor state between runs
type Store interface {
	LoadState(ctx context.Context) (State, bool, error)
	SaveState(ctx context.Context, state State) error
}

// Monitor tracks trades and balances and promotes the account through the
// tiers once the criteria hold. Safe for concurrent use.
type Monitor struct {
	mu       sync.Mutex
	state    State
	criteria UpgradeCriteria
	store    Store
	now      func() time.Time

	// positionCap is the operator's hard position limit; tiers report at
	// most this many positions regardless of earned tier. Zero disables.
	positionCap int
}

// Option configures a Monitor
type Option func(*Monitor)

// WithStore attaches a persistence backend
func WithStore(store Store) Option {
	return func(m *Monitor) { m.store = store }
}

// WithClock injects a clock for tests
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithPositionCap caps the reported position limit below what the earned
// tier would allow
func WithPositionCap(cap int) Option {
	return func(m *Monitor) { m.positionCap = cap }
}

// NewMonitor creates a monitor starting at tier 1 with a 5.0 balance, then
// restores persisted state if a store is attached.
func NewMonitor(ctx context.Context, opts ...Option) (*Monitor, error) {
	m := &Monitor{
		state: State{
			CurrentBalance: 5.0,
			InitialBalance: 5.0,
			CurrentTier:    Tier1,
		},
		criteria: defaultUpgradeCriteria(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.store != nil {
		state, found, err := m.store.LoadState(ctx)
		if err != nil {
			return nil, fmt.Errorf("load performance state: %w", err)
		}
		if found {
			m.state = state
		}
	}

	return m, nil
}

// AddTrade records a closed trade and immediately re-checks the upgrade
// criteria. Returns the upgrade config when a promotion fires.
func (m *Monitor) AddTrade(ctx context.Context, trade market.TradeRecord) (*UpgradeConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if trade.Timestamp.IsZero() {
		trade.Timestamp = m.now()
	}
	m.state.Trades = append(m.state.Trades, trade)
	m.cleanupLocked()

	upgrade := m.checkUpgradeLocked()
	if err := m.saveLocked(ctx); err != nil {
		return upgrade, err
	}
	return upgrade, nil
}

// UpdateBalance records the current account balance and re-checks the
// upgrade criteria.
func (m *Monitor) UpdateBalance(ctx context.Context, balance float64) (*UpgradeConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.CurrentBalance = balance

	upgrade := m.checkUpgradeLocked()
	if err := m.saveLocked(ctx); err != nil {
		return upgrade, err
	}
	return upgrade, nil
}

// Metrics computes the current performance metrics
func (m *Monitor) Metrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metricsLocked()
}

// CurrentStatus reports the tier, metrics, and the distance to the next
// upgrade.
func (m *Monitor) CurrentStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics := m.metricsLocked()
	status := Status{
		CurrentTier:  m.state.CurrentTier,
		MaxPositions: m.capPositions(positionTiers[m.state.CurrentTier].MaxPositions),
		Metrics:      metrics,
		Criteria:     m.criteria,
	}

	if next := nextTier(m.state.CurrentTier, metrics.CurrentBalance, metrics.TotalTrades); next != "" {
		req := positionTiers[next]
		status.NextUpgrade = &NextUpgrade{
			Tier:           next,
			MinBalance:     req.MinBalance,
			MinTrades:      req.MinTrades,
			CurrentBalance: metrics.CurrentBalance,
			CurrentTrades:  metrics.TotalTrades,
			BalanceMet:     metrics.CurrentBalance >= req.MinBalance,
			TradesMet:      metrics.TotalTrades >= req.MinTrades,
		}
	}

	return status
}

// UpgradeHistory returns a copy of the recorded promotions
func (m *Monitor) UpgradeHistory() []UpgradeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]UpgradeRecord, len(m.state.UpgradeHistory))
	copy(out, m.state.UpgradeHistory)
	return out
}

func (m *Monitor) metricsLocked() Metrics {
	trades := m.state.Trades
	metrics := Metrics{CurrentBalance: m.state.CurrentBalance}
	if len(trades) == 0 {
		return metrics
	}

	metrics.TotalTrades = len(trades)

	totalProfit := 0.0
	totalLoss := 0.0
	for _, t := range trades {
		if t.ProfitPct > 0 {
			metrics.WinningTrades++
			totalProfit += t.ProfitPct
		} else if t.ProfitPct < 0 {
			metrics.LosingTrades++
			totalLoss += math.Abs(t.ProfitPct)
		}
	}

	metrics.WinRate = float64(metrics.WinningTrades) / float64(metrics.TotalTrades)
	if totalLoss > 0 {
		metrics.ProfitFactor = totalProfit / totalLoss
	}

	metrics.MaxDrawdown = maxDrawdown(trades, m.state.InitialBalance)

	first := trades[0].Timestamp
	last := trades[len(trades)-1].Timestamp
	metrics.TrackRecordDays = int(last.Sub(first).Hours() / 24)

	return metrics
}

// maxDrawdown replays the trade sequence compounding from the initial
// balance and takes the worst peak-to-trough fall.
func maxDrawdown(trades []market.TradeRecord, initialBalance float64) float64 {
	balance := initialBalance
	peak := balance
	worst := 0.0

	for _, t := range trades {
		balance *= 1 + t.ProfitPct
		if balance > peak {
			peak = balance
		}
		drawdown := (peak - balance) / peak
		if drawdown > worst {
			worst = drawdown
		}
	}

	return worst
}

// checkUpgradeLocked promotes at most one tier per call when every
// criterion holds. Tiers only move up.
func (m *Monitor) checkUpgradeLocked() *UpgradeConfig {
	metrics := m.metricsLocked()

	canUpgrade := metrics.TotalTrades >= m.criteria.MinTrades &&
		metrics.WinRate >= m.criteria.MinWinRate &&
		metrics.ProfitFactor >= m.criteria.MinProfitFactor &&
		metrics.MaxDrawdown <= m.criteria.MaxDrawdown &&
		metrics.TrackRecordDays >= m.criteria.MinTrackRecordDays &&
		metrics.CurrentBalance >= m.criteria.MinBalance

	if !canUpgrade {
		return nil
	}

	next := nextTier(m.state.CurrentTier, metrics.CurrentBalance, metrics.TotalTrades)
	if next == "" || next == m.state.CurrentTier {
		return nil
	}

	config := upgradeConfig(next, metrics)
	config.MaxPositions = m.capPositions(config.MaxPositions)
	config.MaxOpenTrades = m.capPositions(config.MaxOpenTrades)
	now := m.now()
	m.state.UpgradeHistory = append(m.state.UpgradeHistory, UpgradeRecord{
		Timestamp: now,
		FromTier:  m.state.CurrentTier,
		ToTier:    next,
		Metrics:   metrics,
		Config:    config,
	})
	m.state.CurrentTier = next
	m.state.LastUpgrade = &now
	m.cleanupLocked()

	return &config
}

// nextTier finds the first higher tier whose balance and trade-count
// requirements are both met.
func nextTier(current Tier, balance float64, totalTrades int) Tier {
	currentIndex := 0
	for i, t := range tierOrder {
		if t == current {
			currentIndex = i
			break
		}
	}

	for _, candidate := range tierOrder[currentIndex+1:] {
		req := positionTiers[candidate]
		if balance >= req.MinBalance && totalTrades >= req.MinTrades {
			return candidate
		}
	}
	return ""
}

func upgradeConfig(tier Tier, metrics Metrics) UpgradeConfig {
	config := UpgradeConfig{
		Tier:         tier,
		MaxPositions: positionTiers[tier].MaxPositions,
		Reason: fmt.Sprintf("performance criteria met: WR=%.1f%%, PF=%.2f, Trades=%d",
			metrics.WinRate*100, metrics.ProfitFactor, metrics.TotalTrades),
	}

	switch tier {
	case Tier2:
		config.MaxOpenTrades = 2
		config.KellyFraction = 0.6
		config.ConfidenceThreshold = 70
		config.RiskLevel = "conservative"
	case Tier3:
		config.MaxOpenTrades = 3
		config.KellyFraction = 0.5
		config.ConfidenceThreshold = 65
		config.RiskLevel = "balanced"
	case Tier4:
		config.MaxOpenTrades = 4
		config.KellyFraction = 0.4
		config.ConfidenceThreshold = 60
		config.RiskLevel = "balanced"
	}

	return config
}

// capPositions applies the operator's position limit
func (m *Monitor) capPositions(n int) int {
	if m.positionCap > 0 && n > m.positionCap {
		return m.positionCap
	}
	return n
}

// cleanupLocked caps the retained history: 1000 trades, 10 upgrades
func (m *Monitor) cleanupLocked() {
	if len(m.state.Trades) > 1000 {
		m.state.Trades = m.state.Trades[len(m.state.Trades)-1000:]
	}
	if len(m.state.UpgradeHistory) > 10 {
		m.state.UpgradeHistory = m.state.UpgradeHistory[len(m.state.UpgradeHistory)-10:]
	}
}

func (m *Monitor) saveLocked(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	if err := m.store.SaveState(ctx, m.state); err != nil {
		return fmt.Errorf("save performance state: %w", err)
	}
	return nil
}
