package session

import (
	"math"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// utcDate returns a known weekday at the given hour: 2024-01-01 is a Monday.
func utcDate(weekdayOffset, hour int) time.Time {
	return time.Date(2024, 1, 1+weekdayOffset, hour, 0, 0, 0, time.UTC)
}

func TestIdentifySessionBands(t *testing.T) {
	cases := []struct {
		hour    int
		session string
	}{
		{12, LondonNewYorkOverlap},
		{16, LondonNewYorkOverlap},
		{7, London},
		{11, London},
		{17, NewYork},
		{21, NewYork},
		{23, Asian},
		{0, Asian},
		{8, Asian},
		{22, OffSession},
	}
	for _, tc := range cases {
		session, _, _ := identifySession(tc.hour)
		if session != tc.session {
			t.Errorf("hour %d: expected %s, got %s", tc.hour, tc.session, session)
		}
	}
}

func TestOverlapShadowsLondon(t *testing.T) {
	// Hours 12-16 satisfy both the overlap and London bands; the overlap
	// must win with its boosts.
	session, vol, timing := identifySession(14)
	if session != LondonNewYorkOverlap {
		t.Fatalf("expected overlap at hour 14, got %s", session)
	}
	if vol != 1.4 || timing != 1.3 {
		t.Errorf("expected overlap boosts 1.4/1.3, got %f/%f", vol, timing)
	}
}

func TestAdjustmentFactor(t *testing.T) {
	t.Run("wednesday overlap is strong but news-discounted", func(t *testing.T) {
		// Wednesday 14:00 UTC: overlap, day 1.15, one hour after the US
		// open news window (13:00), so news impact applies.
		a := NewAnalyzerWithClock(fixedClock(utcDate(2, 14)))
		adj := a.AdjustmentFactor()
		want := 1.4 * 1.3 * 1.15 * 0.7
		if math.Abs(adj.Factor-want) > 1e-9 {
			t.Errorf("expected %f, got %f", want, adj.Factor)
		}
		if adj.Session != LondonNewYorkOverlap {
			t.Errorf("expected overlap, got %s", adj.Session)
		}
	})

	t.Run("clamped above", func(t *testing.T) {
		// Wednesday 15:00 UTC: overlap with no news window nearby.
		a := NewAnalyzerWithClock(fixedClock(utcDate(2, 15)))
		adj := a.AdjustmentFactor()
		if adj.Factor != 1.8 {
			t.Errorf("expected clamp at 1.8, got %f", adj.Factor)
		}
	})

	t.Run("clamped below on saturday", func(t *testing.T) {
		// Saturday 22:00 UTC: off session with the 0.3 day multiplier.
		a := NewAnalyzerWithClock(fixedClock(utcDate(5, 22)))
		adj := a.AdjustmentFactor()
		if adj.Factor != 0.3 {
			t.Errorf("expected clamp at 0.3, got %f", adj.Factor)
		}
	})

	t.Run("midnight discount outside news windows", func(t *testing.T) {
		a := NewAnalyzerWithClock(fixedClock(utcDate(1, 0)))
		adj := a.AdjustmentFactor()
		if adj.NewsImpact != 0.8 {
			t.Errorf("expected 0.8 at midnight, got %f", adj.NewsImpact)
		}
	})
}

func TestRecommendationBuckets(t *testing.T) {
	cases := []struct {
		factor float64
		prefix byte
	}{
		{1.5, 'E'},
		{1.2, 'G'},
		{1.0, 'N'},
		{0.8, 'C'},
		{0.5, 'A'},
	}
	for _, tc := range cases {
		got := recommendation(tc.factor)
		if got[0] != tc.prefix {
			t.Errorf("factor %f: unexpected recommendation %q", tc.factor, got)
		}
	}
}

func TestSessionQuality(t *testing.T) {
	cases := []struct {
		hour int
		want Quality
	}{
		{14, QualityExcellent},
		{9, QualityGood},
		{18, QualityGood},
		{2, QualityModerate},
		{22, QualityPoor},
	}
	for _, tc := range cases {
		a := NewAnalyzerWithClock(fixedClock(utcDate(1, tc.hour)))
		if got := a.SessionQuality(); got != tc.want {
			t.Errorf("hour %d: expected %s, got %s", tc.hour, tc.want, got)
		}
	}
}

func TestWeekendApproaching(t *testing.T) {
	t.Run("friday evening", func(t *testing.T) {
		a := NewAnalyzerWithClock(fixedClock(utcDate(4, 21)))
		status := a.WeekendApproaching()
		if !status.Approaching || !status.IsFriday || !status.IsEvening {
			t.Errorf("expected approaching weekend, got %+v", status)
		}
		if status.HoursToWeekend != 3 {
			t.Errorf("expected 3 hours to weekend, got %d", status.HoursToWeekend)
		}
		if status.Recommendation != "CLOSE_POSITIONS" {
			t.Errorf("expected CLOSE_POSITIONS, got %q", status.Recommendation)
		}
	})

	t.Run("friday morning is not yet approaching", func(t *testing.T) {
		a := NewAnalyzerWithClock(fixedClock(utcDate(4, 10)))
		status := a.WeekendApproaching()
		if status.Approaching {
			t.Error("friday morning must not trigger the close-out window")
		}
		if status.HoursToWeekend != 14 {
			t.Errorf("expected 14 hours to weekend, got %d", status.HoursToWeekend)
		}
	})

	t.Run("midweek is normal", func(t *testing.T) {
		a := NewAnalyzerWithClock(fixedClock(utcDate(1, 21)))
		status := a.WeekendApproaching()
		if status.Approaching || status.IsFriday {
			t.Errorf("tuesday must not approach the weekend, got %+v", status)
		}
		if status.Recommendation != "NORMAL" {
			t.Errorf("expected NORMAL, got %q", status.Recommendation)
		}
	})
}
