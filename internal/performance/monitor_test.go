package performance

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"smart-trading-engine/internal/market"
)

type memStore struct {
	state   State
	found   bool
	loadErr error
	saveErr error
	saves   int
}

func (s *memStore) LoadState(ctx context.Context) (State, bool, error) {
	return s.state, s.found, s.loadErr
}

func (s *memStore) SaveState(ctx context.Context, state State) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.state = state
	s.found = true
	s.saves++
	return nil
}

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	}
}

// qualifyingTrades spreads 20 wins and 10 losses over 90 days, enough to
// clear every upgrade criterion except balance.
func qualifyingTrades() []market.TradeRecord {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	trades := make([]market.TradeRecord, 30)
	for i := range trades {
		profit := 0.02
		if i%3 == 2 {
			profit = -0.01
		}
		trades[i] = market.TradeRecord{
			Symbol:    "BTCUSDT",
			ProfitPct: profit,
			Timestamp: base.Add(time.Duration(i) * 72 * time.Hour),
		}
	}
	return trades
}

func TestNewMonitorDefaults(t *testing.T) {
	m, err := NewMonitor(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	status := m.CurrentStatus()
	if status.CurrentTier != Tier1 {
		t.Errorf("expected tier_1, got %s", status.CurrentTier)
	}
	if status.MaxPositions != 1 {
		t.Errorf("expected 1 position, got %d", status.MaxPositions)
	}
	if status.Metrics.CurrentBalance != 5.0 {
		t.Errorf("expected starting balance 5.0, got %f", status.Metrics.CurrentBalance)
	}
	// 5.0 is under every higher tier's balance floor
	if status.NextUpgrade != nil {
		t.Errorf("expected no reachable next tier, got %+v", status.NextUpgrade)
	}
}

func TestNewMonitorRestoresState(t *testing.T) {
	store := &memStore{
		state: State{
			CurrentBalance: 75,
			InitialBalance: 5,
			CurrentTier:    Tier3,
		},
		found: true,
	}

	m, err := NewMonitor(context.Background(), WithStore(store))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	status := m.CurrentStatus()
	if status.CurrentTier != Tier3 {
		t.Errorf("expected restored tier_3, got %s", status.CurrentTier)
	}
	if status.MaxPositions != 3 {
		t.Errorf("expected 3 positions, got %d", status.MaxPositions)
	}
}

func TestNewMonitorLoadError(t *testing.T) {
	store := &memStore{loadErr: errors.New("redis down")}
	if _, err := NewMonitor(context.Background(), WithStore(store)); err == nil {
		t.Fatal("expected a load error")
	}
}

func TestAddTradePromotesAfterThirtyTrades(t *testing.T) {
	ctx := context.Background()
	m, err := NewMonitor(ctx, WithClock(fixedClock()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.UpdateBalance(ctx, 20); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	trades := qualifyingTrades()
	for i, trade := range trades[:29] {
		upgrade, err := m.AddTrade(ctx, trade)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if upgrade != nil {
			t.Fatalf("trade %d must not promote yet, got %+v", i, upgrade)
		}
	}

	upgrade, err := m.AddTrade(ctx, trades[29])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upgrade == nil {
		t.Fatal("expected a promotion on the 30th trade")
	}
	if upgrade.Tier != Tier2 {
		t.Errorf("expected tier_2, got %s", upgrade.Tier)
	}
	if upgrade.MaxOpenTrades != 2 || upgrade.KellyFraction != 0.6 {
		t.Errorf("unexpected tier_2 config: %+v", upgrade)
	}
	if upgrade.ConfidenceThreshold != 70 || upgrade.RiskLevel != "conservative" {
		t.Errorf("unexpected tier_2 config: %+v", upgrade)
	}

	history := m.UpgradeHistory()
	if len(history) != 1 {
		t.Fatalf("expected one upgrade record, got %d", len(history))
	}
	if history[0].FromTier != Tier1 || history[0].ToTier != Tier2 {
		t.Errorf("unexpected record: %+v", history[0])
	}
	if !history[0].Timestamp.Equal(fixedClock()()) {
		t.Errorf("record must carry the clock time, got %v", history[0].Timestamp)
	}
}

func TestDrawdownBlocksPromotion(t *testing.T) {
	ctx := context.Background()
	m, err := NewMonitor(ctx, WithClock(fixedClock()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.UpdateBalance(ctx, 20); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	trades := qualifyingTrades()
	// One 20% hit keeps the win rate and profit factor intact but pushes
	// the replayed drawdown past the 10% ceiling.
	trades[15].ProfitPct = -0.20

	var promoted bool
	for _, trade := range trades {
		upgrade, err := m.AddTrade(ctx, trade)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if upgrade != nil {
			promoted = true
		}
	}
	if promoted {
		t.Error("a 20% drawdown must block the upgrade")
	}

	metrics := m.Metrics()
	if metrics.MaxDrawdown < 0.10 {
		t.Errorf("expected the replayed drawdown above 10%%, got %f", metrics.MaxDrawdown)
	}
}

func TestShortTrackRecordBlocksPromotion(t *testing.T) {
	ctx := context.Background()
	m, err := NewMonitor(ctx, WithClock(fixedClock()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.UpdateBalance(ctx, 20); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Same outcomes, all closed within one day.
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		profit := 0.02
		if i%3 == 2 {
			profit = -0.01
		}
		upgrade, err := m.AddTrade(ctx, market.TradeRecord{
			Symbol:    "BTCUSDT",
			ProfitPct: profit,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if upgrade != nil {
			t.Fatalf("one day of history must not promote, got %+v", upgrade)
		}
	}
}

func TestUpdateBalanceTriggersPendingPromotion(t *testing.T) {
	ctx := context.Background()
	m, err := NewMonitor(ctx, WithClock(fixedClock()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Qualified on every metric except the balance floor.
	if _, err := m.UpdateBalance(ctx, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, trade := range qualifyingTrades() {
		upgrade, err := m.AddTrade(ctx, trade)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if upgrade != nil {
			t.Fatalf("balance under 15 must not promote, got %+v", upgrade)
		}
	}

	upgrade, err := m.UpdateBalance(ctx, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upgrade == nil || upgrade.Tier != Tier2 {
		t.Fatalf("expected the balance update to promote to tier_2, got %+v", upgrade)
	}
}

func TestNextUpgradeProgress(t *testing.T) {
	ctx := context.Background()
	m, err := NewMonitor(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.UpdateBalance(ctx, 16); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	status := m.CurrentStatus()
	next := status.NextUpgrade
	if next == nil {
		t.Fatal("expected tier_2 to be the next target")
	}
	if next.Tier != Tier2 {
		t.Errorf("expected tier_2, got %s", next.Tier)
	}
	if !next.BalanceMet {
		t.Error("16 must satisfy the tier_2 balance floor of 15")
	}
	if next.TradesMet {
		t.Error("zero trades must not satisfy the tier_2 trade count")
	}
}

func TestMetricsComputation(t *testing.T) {
	ctx := context.Background()
	m, err := NewMonitor(ctx, WithClock(fixedClock()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []market.TradeRecord{
		{ProfitPct: 0.10, Timestamp: base},
		{ProfitPct: -0.20, Timestamp: base.Add(24 * time.Hour)},
		{ProfitPct: 0.05, Timestamp: base.Add(72 * time.Hour)},
	}
	for _, trade := range records {
		if _, err := m.AddTrade(ctx, trade); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	metrics := m.Metrics()
	if metrics.TotalTrades != 3 || metrics.WinningTrades != 2 || metrics.LosingTrades != 1 {
		t.Errorf("unexpected counts: %+v", metrics)
	}
	if math.Abs(metrics.ProfitFactor-0.75) > 1e-9 {
		t.Errorf("expected profit factor 0.75, got %f", metrics.ProfitFactor)
	}
	if metrics.TrackRecordDays != 3 {
		t.Errorf("expected 3 days, got %d", metrics.TrackRecordDays)
	}
	// Peak after the first win, trough after the 20% loss.
	if math.Abs(metrics.MaxDrawdown-0.20) > 1e-9 {
		t.Errorf("expected max drawdown 0.20, got %f", metrics.MaxDrawdown)
	}
}

func TestCleanupCapsTradeHistory(t *testing.T) {
	ctx := context.Background()
	m, err := NewMonitor(ctx, WithClock(fixedClock()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Flat trades never qualify for an upgrade, so only the cap matters.
	for i := 0; i < 1005; i++ {
		if _, err := m.AddTrade(ctx, market.TradeRecord{Symbol: "BTCUSDT"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := m.Metrics().TotalTrades; got != 1000 {
		t.Errorf("expected the history capped at 1000, got %d", got)
	}
}

func TestStorePersistence(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	m, err := NewMonitor(ctx, WithStore(store), WithClock(fixedClock()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := m.AddTrade(ctx, market.TradeRecord{ProfitPct: 0.01}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.saves != 1 {
		t.Errorf("expected one save, got %d", store.saves)
	}
	if len(store.state.Trades) != 1 {
		t.Errorf("expected the trade persisted, got %d", len(store.state.Trades))
	}

	// A second monitor picks the state back up.
	restored, err := NewMonitor(ctx, WithStore(store))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if restored.Metrics().TotalTrades != 1 {
		t.Errorf("expected the restored monitor to see the trade")
	}
}

func TestSaveErrorSurfaces(t *testing.T) {
	ctx := context.Background()
	store := &memStore{saveErr: errors.New("redis down")}
	m, err := NewMonitor(ctx, WithStore(store))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := m.AddTrade(ctx, market.TradeRecord{ProfitPct: 0.01}); err == nil {
		t.Fatal("expected the save error to surface")
	}
}

func TestPositionCapClampsUpgrades(t *testing.T) {
	ctx := context.Background()
	m, err := NewMonitor(ctx, WithClock(fixedClock()), WithPositionCap(1))
	if err != nil {
		t.Fatalf("monitor: %v", err)
	}
	if _, err := m.UpdateBalance(ctx, 20); err != nil {
		t.Fatalf("balance: %v", err)
	}

	var upgrade *UpgradeConfig
	for _, trade := range qualifyingTrades() {
		u, err := m.AddTrade(ctx, trade)
		if err != nil {
			t.Fatalf("add trade: %v", err)
		}
		if u != nil {
			upgrade = u
		}
	}

	if upgrade == nil {
		t.Fatal("expected a promotion despite the cap")
	}
	if upgrade.Tier != Tier2 {
		t.Fatalf("expected tier_2, got %s", upgrade.Tier)
	}
	if upgrade.MaxPositions != 1 || upgrade.MaxOpenTrades != 1 {
		t.Errorf("cap must clamp the upgrade config, got %d positions / %d open trades",
			upgrade.MaxPositions, upgrade.MaxOpenTrades)
	}
	if status := m.CurrentStatus(); status.MaxPositions != 1 {
		t.Errorf("status must report the capped limit, got %d", status.MaxPositions)
	}
}

func TestPositionCapZeroIsDisabled(t *testing.T) {
	ctx := context.Background()
	m, err := NewMonitor(ctx, WithClock(fixedClock()))
	if err != nil {
		t.Fatalf("monitor: %v", err)
	}
	if got := m.capPositions(3); got != 3 {
		t.Errorf("no cap must pass the tier limit through, got %d", got)
	}
}
