package engine

import (
	"strings"
	"testing"
	"time"

	"smart-trading-engine/internal/market"
	"smart-trading-engine/internal/risk"
	"smart-trading-engine/internal/session"

	"github.com/google/uuid"
)

func newTestExitEngine(clock func() time.Time) *ExitEngine {
	if clock == nil {
		// Wednesday 15:00 UTC: no weekend, overlap session
		clock = func() time.Time {
			return time.Date(2024, 1, 3, 15, 0, 0, 0, time.UTC)
		}
	}
	return NewExitEngine(session.NewAnalyzerWithClock(clock), risk.NewTrailingStopManager())
}

func openLong(entryPrice float64) market.OpenPosition {
	return market.OpenPosition{
		ID:         uuid.New(),
		Symbol:     "BTCUSDT",
		Side:       market.SideLong,
		EntryPrice: entryPrice,
		Size:       1,
	}
}

func TestShouldExitInvalidEntryPrice(t *testing.T) {
	e := newTestExitEngine(nil)
	signal := e.ShouldExit(market.OpenPosition{}, 100, nil, nil)
	if signal.Action != ActionHold || signal.Reason != "invalid entry price" {
		t.Errorf("expected hold on invalid entry, got %+v", signal)
	}
}

func TestEmergencyStopBeatsEverything(t *testing.T) {
	e := newTestExitEngine(nil)
	signal := e.ShouldExit(openLong(100), 96, nil, nil)
	if signal.Action != ActionClose {
		t.Fatalf("expected close, got %s", signal.Action)
	}
	if signal.Urgency != UrgencyCritical {
		t.Errorf("expected CRITICAL, got %s", signal.Urgency)
	}
	if !strings.HasPrefix(signal.Reason, "EMERGENCY STOP") {
		t.Errorf("unexpected reason: %q", signal.Reason)
	}
}

func TestLowConfidenceEntryCutsFast(t *testing.T) {
	e := newTestExitEngine(nil)
	entry := &EntrySignal{Confidence: 20}
	// 2% down is above the hard stop but under the low-confidence cut
	signal := e.ShouldExit(openLong(100), 98, nil, entry)
	if signal.Action != ActionClose {
		t.Fatalf("expected close, got %+v", signal)
	}
	if signal.Urgency != UrgencyHigh {
		t.Errorf("expected HIGH, got %s", signal.Urgency)
	}
	if !strings.HasPrefix(signal.Reason, "LOW CONFIDENCE EXIT") {
		t.Errorf("unexpected reason: %q", signal.Reason)
	}
}

func TestVolatilityStopWithoutHistory(t *testing.T) {
	e := newTestExitEngine(nil)
	// 2.5% down: past the flat 2% default stop, short of the 3% emergency
	signal := e.ShouldExit(openLong(100), 97.5, nil, nil)
	if signal.Action != ActionClose {
		t.Fatalf("expected close, got %+v", signal)
	}
	if !strings.HasPrefix(signal.Reason, "SMART STOP") {
		t.Errorf("unexpected reason: %q", signal.Reason)
	}
	if signal.Urgency != UrgencyHigh {
		t.Errorf("expected HIGH, got %s", signal.Urgency)
	}
}

func TestQuickScalpProfitTaking(t *testing.T) {
	e := newTestExitEngine(nil)
	signal := e.ShouldExit(openLong(100), 100.4, nil, nil)
	if signal.Action != ActionClose {
		t.Fatalf("expected close, got %+v", signal)
	}
	if !strings.HasPrefix(signal.Reason, "Quick Scalp") {
		t.Errorf("unexpected reason: %q", signal.Reason)
	}
	if signal.Urgency != UrgencyLow {
		t.Errorf("expected LOW, got %s", signal.Urgency)
	}
}

func TestWeekendExits(t *testing.T) {
	fridayEvening := func() time.Time {
		return time.Date(2024, 1, 5, 21, 0, 0, 0, time.UTC)
	}

	t.Run("secures small profit", func(t *testing.T) {
		e := newTestExitEngine(fridayEvening)
		// profit below the quick scalp level so the session stage decides
		signal := e.ShouldExit(openLong(100), 100.2, nil, nil)
		if signal.Action != ActionClose {
			t.Fatalf("expected close, got %+v", signal)
		}
		if !strings.HasPrefix(signal.Reason, "WEEKEND APPROACH") {
			t.Errorf("unexpected reason: %q", signal.Reason)
		}
		if signal.Urgency != UrgencyMedium {
			t.Errorf("expected MEDIUM, got %s", signal.Urgency)
		}
	})

	t.Run("cuts losses before the weekend", func(t *testing.T) {
		e := newTestExitEngine(fridayEvening)
		signal := e.ShouldExit(openLong(100), 98.8, nil, nil)
		if signal.Action != ActionClose {
			t.Fatalf("expected close, got %+v", signal)
		}
		if !strings.HasPrefix(signal.Reason, "WEEKEND RISK") {
			t.Errorf("unexpected reason: %q", signal.Reason)
		}
		if signal.Urgency != UrgencyHigh {
			t.Errorf("expected HIGH, got %s", signal.Urgency)
		}
	})

	t.Run("midweek holds the same position", func(t *testing.T) {
		e := newTestExitEngine(nil)
		signal := e.ShouldExit(openLong(100), 100.05, nil, nil)
		if signal.Action != ActionHold {
			t.Errorf("expected hold, got %+v", signal)
		}
	})
}

func TestHoldFallback(t *testing.T) {
	e := newTestExitEngine(nil)
	signal := e.ShouldExit(openLong(100), 100.05, nil, nil)

	if signal.Action != ActionHold {
		t.Fatalf("expected hold, got %+v", signal)
	}
	if signal.HoldConfidence != 50 {
		t.Errorf("expected neutral hold confidence 50, got %f", signal.HoldConfidence)
	}
	if signal.Suggestion != HoldWeak {
		t.Errorf("expected WEAK_HOLD, got %s", signal.Suggestion)
	}
	if signal.Urgency != UrgencyNone {
		t.Errorf("expected NONE, got %s", signal.Urgency)
	}
}

func TestHoldConfidenceInputs(t *testing.T) {
	e := newTestExitEngine(nil)

	t.Run("profit cushion raises it", func(t *testing.T) {
		got := e.holdConfidence(0.02, nil, nil)
		if got != 70 {
			t.Errorf("expected 70, got %f", got)
		}
	})

	t.Run("losses lower it", func(t *testing.T) {
		got := e.holdConfidence(-0.02, nil, nil)
		if got != 30 {
			t.Errorf("expected 30, got %f", got)
		}
	})

	t.Run("entry confidence shifts it", func(t *testing.T) {
		entry := &EntrySignal{Confidence: 90}
		got := e.holdConfidence(0, nil, entry)
		if got != 62 {
			t.Errorf("expected 62, got %f", got)
		}
	})

	t.Run("clamped to the unit range", func(t *testing.T) {
		entry := &EntrySignal{Confidence: 0}
		got := e.holdConfidence(-0.05, nil, entry)
		if got < 0 || got > 100 {
			t.Errorf("out of range: %f", got)
		}
	})
}

func TestHoldSuggestionBuckets(t *testing.T) {
	cases := []struct {
		confidence float64
		want       HoldSuggestion
	}{
		{90, HoldStrong},
		{70, HoldNormal},
		{50, HoldWeak},
		{30, HoldConsiderExit},
	}
	for _, tc := range cases {
		if got := holdSuggestion(tc.confidence); got != tc.want {
			t.Errorf("confidence %f: expected %s, got %s", tc.confidence, tc.want, got)
		}
	}
}

func TestCheckMomentumExits(t *testing.T) {
	e := newTestExitEngine(nil)

	// A steep rise topped by a down bar: RSI stays extreme but rolls over.
	closes := make([]float64, 30)
	volumes := make([]float64, 30)
	for i := 0; i < 30; i++ {
		closes[i] = 100 * pow(1.01, i)
		volumes[i] = 1000
	}
	closes[29] = closes[28] * 0.999

	signal, fired := e.checkMomentumExits(closes, volumes, market.SideLong, 0.006)
	if !fired {
		t.Fatal("expected the momentum stage to fire")
	}
	if !strings.HasPrefix(signal.Reason, "MOMENTUM EXHAUSTION") {
		t.Errorf("unexpected reason: %q", signal.Reason)
	}
	if signal.Urgency != UrgencyMedium {
		t.Errorf("expected MEDIUM, got %s", signal.Urgency)
	}
}

func pow(base float64, exp int) float64 {
	out := 1.0
	for i := 0; i < exp; i++ {
		out *= base
	}
	return out
}

func TestTrailingStateClearsOnEmergency(t *testing.T) {
	trailing := risk.NewTrailingStopManager()
	e := NewExitEngine(session.NewAnalyzerWithClock(func() time.Time {
		return time.Date(2024, 1, 3, 15, 0, 0, 0, time.UTC)
	}), trailing)
	pos := openLong(100)

	// Small profit seeds a trailing level through the hold path.
	e.ShouldExit(pos, 100.05, nil, nil)
	if _, ok := trailing.Level(pos.ID); !ok {
		t.Fatal("expected trailing state after a profitable hold")
	}

	// The emergency stop fires before the trailing stage; state survives
	// for the caller to clean up.
	signal := e.ShouldExit(pos, 96, nil, nil)
	if signal.Urgency != UrgencyCritical {
		t.Fatalf("expected CRITICAL, got %+v", signal)
	}
	trailing.Remove(pos.ID)
	if _, ok := trailing.Level(pos.ID); ok {
		t.Error("trailing state must be removable after a close")
	}
}
