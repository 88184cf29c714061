package patterns

import (
	"strings"
	"testing"

	"smart-trading-engine/internal/market"
)

// flatBars builds n candles with no body and no range at price 100, so no
// detector fires on the filler itself.
func flatBars(n int) (highs, lows, opens, closes []float64) {
	highs = make([]float64, n)
	lows = make([]float64, n)
	opens = make([]float64, n)
	closes = make([]float64, n)
	for i := 0; i < n; i++ {
		highs[i] = 100
		lows[i] = 100
		opens[i] = 100
		closes[i] = 100
	}
	return
}

func setHammer(highs, lows, opens, closes []float64, i int) {
	lows[i] = 99.0
	opens[i] = 99.8
	closes[i] = 100.0
	highs[i] = 100.01
}

func setShootingStar(highs, lows, opens, closes []float64, i int) {
	highs[i] = 101.0
	opens[i] = 100.2
	closes[i] = 100.0
	lows[i] = 99.99
}

func containsPrefix(signals []string, prefix string) bool {
	for _, s := range signals {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

func TestDetectCandlesticks(t *testing.T) {
	r := NewRecognizer()

	t.Run("hammer", func(t *testing.T) {
		highs, lows, opens, closes := flatBars(15)
		setHammer(highs, lows, opens, closes, 7)
		result := r.Detect(highs, lows, opens, closes, make([]float64, 15))
		if !containsPrefix(result.Bullish, "hammer_at_") {
			t.Errorf("expected a hammer, got bullish=%v", result.Bullish)
		}
	})

	t.Run("shooting star", func(t *testing.T) {
		highs, lows, opens, closes := flatBars(15)
		setShootingStar(highs, lows, opens, closes, 7)
		result := r.Detect(highs, lows, opens, closes, make([]float64, 15))
		if !containsPrefix(result.Bearish, "shooting_star_at_") {
			t.Errorf("expected a shooting star, got bearish=%v", result.Bearish)
		}
	})

	t.Run("doji", func(t *testing.T) {
		highs, lows, opens, closes := flatBars(15)
		highs[7] = 100.5
		lows[7] = 99.5
		opens[7] = 100.0
		closes[7] = 100.005
		result := r.Detect(highs, lows, opens, closes, make([]float64, 15))
		if !containsPrefix(result.Reversal, "doji_at_") {
			t.Errorf("expected a doji, got reversal=%v", result.Reversal)
		}
	})

	t.Run("bullish engulfing", func(t *testing.T) {
		highs, lows, opens, closes := flatBars(15)
		// bearish bar then a larger bullish bar that wraps it
		opens[6], closes[6] = 100.5, 100.0
		highs[6], lows[6] = 100.5, 100.0
		opens[7], closes[7] = 99.9, 100.6
		highs[7], lows[7] = 100.6, 99.9
		result := r.Detect(highs, lows, opens, closes, make([]float64, 15))
		if !containsPrefix(result.Bullish, "bullish_engulfing_at_") {
			t.Errorf("expected a bullish engulfing, got bullish=%v", result.Bullish)
		}
	})

	t.Run("too few candles fires nothing", func(t *testing.T) {
		highs, lows, opens, closes := flatBars(5)
		setHammer(highs, lows, opens, closes, 3)
		result := r.Detect(highs, lows, opens, closes, make([]float64, 5))
		if len(result.Bullish) != 0 {
			t.Errorf("expected no candlestick signals under 10 bars, got %v", result.Bullish)
		}
	})
}

func TestAggregateClassification(t *testing.T) {
	r := NewRecognizer()

	highs, lows, opens, closes := flatBars(30)
	setHammer(highs, lows, opens, closes, 5)
	setHammer(highs, lows, opens, closes, 12)
	setHammer(highs, lows, opens, closes, 18)
	result := r.Detect(highs, lows, opens, closes, make([]float64, 30))

	if result.BullishCount() < 3 {
		t.Fatalf("expected at least 3 bullish signals, got %d", result.BullishCount())
	}
	if !strings.HasPrefix(result.Primary, "bullish_dominant") {
		t.Errorf("expected bullish_dominant primary, got %q", result.Primary)
	}
	if result.Strength <= 0 || result.Strength > 100 {
		t.Errorf("strength out of range: %f", result.Strength)
	}
}

func TestFindSwings(t *testing.T) {
	data := make([]float64, 21)
	for i := range data {
		// single peak at index 10
		if i <= 10 {
			data[i] = 100 + float64(i)
		} else {
			data[i] = 100 + float64(20-i)
		}
	}

	highs := FindSwingHighs(data)
	if len(highs) != 1 {
		t.Fatalf("expected exactly one swing high, got %d", len(highs))
	}
	if highs[0].Index != 10 || highs[0].Price != 110 {
		t.Errorf("expected swing at index 10 price 110, got %+v", highs[0])
	}

	lows := FindSwingLows(data)
	for _, s := range lows {
		if s.Index == 10 {
			t.Error("peak must not register as a swing low")
		}
	}
}

func TestIdentifyKeyLevels(t *testing.T) {
	n := 40
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i := 0; i < n; i++ {
		// gentle drift keeps the flat filler from registering as swings
		highs[i] = 100 + float64(i)*0.01
		lows[i] = 99 - float64(i)*0.01
	}
	highs[15] = 105
	lows[25] = 95

	levels := IdentifyKeyLevels(highs, lows)

	var foundResistance, foundSupport bool
	for _, l := range levels {
		if l.Type == Resistance && l.Price == 105 {
			foundResistance = true
		}
		if l.Type == Support && l.Price == 95 {
			foundSupport = true
		}
	}
	if !foundResistance {
		t.Errorf("expected a resistance level at 105, got %v", levels)
	}
	if !foundSupport {
		t.Errorf("expected a support level at 95, got %v", levels)
	}
}

func TestDetectReversalCandles(t *testing.T) {
	highs, lows, opens, closes := flatBars(10)
	setHammer(highs, lows, opens, closes, 5)
	setShootingStar(highs, lows, opens, closes, 8)

	found := DetectReversalCandles(highs, lows, opens, closes)

	var hammer, star bool
	for _, f := range found {
		if f == "hammer" {
			hammer = true
		}
		if f == "shooting_star" {
			star = true
		}
	}
	if !hammer || !star {
		t.Errorf("expected hammer and shooting_star, got %v", found)
	}
}

func TestDetectExhaustion(t *testing.T) {
	t.Run("insufficient data", func(t *testing.T) {
		result := DetectExhaustion([]float64{1}, []float64{1}, []float64{1}, []float64{1}, market.SideLong)
		if result.Exhausted || result.Pattern != "insufficient_data" {
			t.Errorf("unexpected result: %+v", result)
		}
	})

	t.Run("volume exhaustion on a long", func(t *testing.T) {
		closes := []float64{100, 100, 100, 100, 100, 100, 100.5, 101, 101.5, 102}
		volumes := []float64{1000, 1000, 1000, 1000, 1000, 1000, 1000, 500, 500, 500}
		highs := make([]float64, 10)
		lows := make([]float64, 10)
		copy(highs, closes)
		copy(lows, closes)
		result := DetectExhaustion(highs, lows, closes, volumes, market.SideLong)
		if !result.Exhausted || result.Pattern != "volume_exhaustion_up" {
			t.Errorf("expected volume_exhaustion_up, got %+v", result)
		}
	})

	t.Run("parabolic move", func(t *testing.T) {
		closes := []float64{100, 100, 100, 100, 100, 102, 104.5, 107, 110, 113}
		volumes := []float64{1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000}
		highs := make([]float64, 10)
		lows := make([]float64, 10)
		copy(highs, closes)
		copy(lows, closes)
		result := DetectExhaustion(highs, lows, closes, volumes, market.SideShort)
		if !result.Exhausted || result.Pattern != "parabolic_exhaustion" {
			t.Errorf("expected parabolic_exhaustion, got %+v", result)
		}
	})
}

func TestDetectDoubleTopBottomExit(t *testing.T) {
	t.Run("requires open profit", func(t *testing.T) {
		highs := make([]float64, 25)
		lows := make([]float64, 25)
		hit, pattern := DetectDoubleTopBottomExit(highs, lows, market.SideLong, 0.001)
		if hit || pattern != "insufficient_setup" {
			t.Errorf("expected insufficient_setup, got %v %q", hit, pattern)
		}
	})

	t.Run("double top against a long", func(t *testing.T) {
		highs := make([]float64, 25)
		lows := make([]float64, 25)
		for i := range highs {
			highs[i] = 100
			lows[i] = 99
		}
		highs[10] = 105
		highs[24] = 105.2 // retest within 1%
		hit, pattern := DetectDoubleTopBottomExit(highs, lows, market.SideLong, 0.01)
		if !hit || pattern != "double_top" {
			t.Errorf("expected double_top, got %v %q", hit, pattern)
		}
	})
}

func TestDetectDivergence(t *testing.T) {
	t.Run("bearish divergence", func(t *testing.T) {
		closes := make([]float64, 20)
		volumes := make([]float64, 20)
		for i := 0; i < 10; i++ {
			closes[i] = 100
			volumes[i] = 1000
		}
		for i := 10; i < 20; i++ {
			closes[i] = 103 // price up 3%
			volumes[i] = 700 // volume down 30%
		}
		result := DetectDivergence(closes, volumes)
		if !result.HasDivergence || result.Type != "bearish_divergence" {
			t.Errorf("expected bearish_divergence, got %+v", result)
		}
	})

	t.Run("no divergence on confirming volume", func(t *testing.T) {
		closes := make([]float64, 20)
		volumes := make([]float64, 20)
		for i := 0; i < 20; i++ {
			closes[i] = 100 + float64(i)
			volumes[i] = 1000 + float64(i)*100
		}
		result := DetectDivergence(closes, volumes)
		if result.HasDivergence {
			t.Errorf("expected no divergence, got %+v", result)
		}
	})
}
