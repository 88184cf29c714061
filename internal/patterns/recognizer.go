// Package patterns detects candlestick, price-action, and support/resistance
// break patterns over a candle window.
package patterns

import (
	"fmt"
	"math"

	"smart-trading-engine/internal/indicators"
)

// Swing marks a local extreme in a price series
type Swing struct {
	Index int
	Price float64
}

// KeyLevelType classifies a key price level
type KeyLevelType string

const (
	Resistance KeyLevelType = "resistance"
	Support    KeyLevelType = "support"
)

// KeyLevel is a support or resistance level derived from swing points
type KeyLevel struct {
	Price float64
	Type  KeyLevelType
}

// Result holds all patterns detected over a window plus an aggregate
// strength score and a primary classification.
type Result struct {
	Bullish      []string
	Bearish      []string
	Continuation []string
	Reversal     []string
	Strength     float64
	Primary      string
}

// BullishCount returns the number of bullish patterns found
func (r Result) BullishCount() int { return len(r.Bullish) }

// BearishCount returns the number of bearish patterns found
func (r Result) BearishCount() int { return len(r.Bearish) }

// ContinuationCount returns the number of continuation patterns found
func (r Result) ContinuationCount() int { return len(r.Continuation) }

// Recognizer scans candle windows for entry-side patterns
type Recognizer struct{}

// NewRecognizer creates a new pattern recognizer
func NewRecognizer() *Recognizer {
	return &Recognizer{}
}

// Detect runs all pattern detectors over the window and aggregates the
// results into a strength score and primary classification.
func (r *Recognizer) Detect(highs, lows, opens, closes, volumes []float64) Result {
	result := Result{Primary: "neutral"}

	r.detectCandlesticks(&result, highs, lows, opens, closes)
	r.detectPriceAction(&result, highs, lows, closes)
	r.detectLevelBreaks(&result, highs, lows, closes, volumes)

	bullish := len(result.Bullish)
	bearish := len(result.Bearish)
	continuation := len(result.Continuation)

	switch {
	case bullish > bearish+1:
		result.Strength = math.Min(float64(bullish)*20, 100)
		result.Primary = fmt.Sprintf("bullish_dominant (%d signals)", bullish)
	case bearish > bullish+1:
		result.Strength = math.Min(float64(bearish)*20, 100)
		result.Primary = fmt.Sprintf("bearish_dominant (%d signals)", bearish)
	case continuation > 2:
		result.Strength = math.Min(float64(continuation)*15, 80)
		result.Primary = fmt.Sprintf("continuation (%d signals)", continuation)
	}

	return result
}

// detectCandlesticks finds doji, hammer, shooting star, and engulfing
// candles. Needs at least 10 candles.
func (r *Recognizer) detectCandlesticks(result *Result, highs, lows, opens, closes []float64) {
	if len(closes) < 10 {
		return
	}

	for i := 2; i < len(closes); i++ {
		bodySize := math.Abs(closes[i] - opens[i])
		candleRange := highs[i] - lows[i]

		if candleRange > 0.0001 && bodySize/candleRange < 0.1 {
			result.Reversal = append(result.Reversal, fmt.Sprintf("doji_at_%d", i))
		}

		if candleRange > 0.0001 {
			lowerShadow := (math.Min(opens[i], closes[i]) - lows[i]) / candleRange
			upperShadow := (highs[i] - math.Max(opens[i], closes[i])) / candleRange

			if lowerShadow > 0.6 && upperShadow < 0.1 && closes[i] > opens[i] {
				result.Bullish = append(result.Bullish, fmt.Sprintf("hammer_at_%d", i))
			}
			if upperShadow > 0.6 && lowerShadow < 0.1 && opens[i] > closes[i] {
				result.Bearish = append(result.Bearish, fmt.Sprintf("shooting_star_at_%d", i))
			}
		}

		prevBody := math.Abs(closes[i-1] - opens[i-1])
		currBody := math.Abs(closes[i] - opens[i])

		if opens[i-1] > closes[i-1] && closes[i] > opens[i] &&
			closes[i] > opens[i-1] && opens[i] < closes[i-1] &&
			currBody > prevBody*1.1 {
			result.Bullish = append(result.Bullish, fmt.Sprintf("bullish_engulfing_at_%d", i))
		}
		if closes[i-1] > opens[i-1] && opens[i] > closes[i] &&
			opens[i] > closes[i-1] && closes[i] < opens[i-1] &&
			currBody > prevBody*1.1 {
			result.Bearish = append(result.Bearish, fmt.Sprintf("bearish_engulfing_at_%d", i))
		}
	}
}

// detectPriceAction finds double tops and bottoms plus trend-continuation
// setups from swing points. Needs at least 20 candles.
func (r *Recognizer) detectPriceAction(result *Result, highs, lows, closes []float64) {
	if len(closes) < 20 {
		return
	}

	swingHighs := FindSwingHighs(highs)
	swingLows := FindSwingLows(lows)

	if len(swingHighs) >= 2 {
		last := swingHighs[len(swingHighs)-1]
		prev := swingHighs[len(swingHighs)-2]
		if math.Abs(last.Price-prev.Price)/last.Price < 0.02 {
			result.Reversal = append(result.Reversal, "potential_double_top")
		}
	}
	if len(swingLows) >= 2 {
		last := swingLows[len(swingLows)-1]
		prev := swingLows[len(swingLows)-2]
		if math.Abs(last.Price-prev.Price)/last.Price < 0.02 {
			result.Reversal = append(result.Reversal, "potential_double_bottom")
		}
	}

	if len(closes) >= 30 {
		trend := indicators.DetectTrend(closes[len(closes)-30:])
		if trend == indicators.TrendUp {
			if len(swingLows) >= 2 && swingLows[len(swingLows)-1].Price > swingLows[len(swingLows)-2].Price {
				result.Continuation = append(result.Continuation, "higher_low_continuation")
			}
		} else if trend == indicators.TrendDown {
			if len(swingHighs) >= 2 && swingHighs[len(swingHighs)-1].Price < swingHighs[len(swingHighs)-2].Price {
				result.Continuation = append(result.Continuation, "lower_high_continuation")
			}
		}
	}
}

// detectLevelBreaks finds support/resistance breaks near key levels, with
// volume confirmation when the last bar trades 1.2x the 20-bar average.
// Needs at least 50 candles.
func (r *Recognizer) detectLevelBreaks(result *Result, highs, lows, closes, volumes []float64) {
	if len(closes) < 50 {
		return
	}

	keyLevels := IdentifyKeyLevels(highs, lows)
	currentPrice := closes[len(closes)-1]

	avgVolume := volumes[len(volumes)-1]
	if len(volumes) >= 20 {
		sum := 0.0
		for _, v := range volumes[len(volumes)-20:] {
			sum += v
		}
		avgVolume = sum / 20
	}
	volumeConfirmed := volumes[len(volumes)-1] > avgVolume*1.2

	for _, level := range keyLevels {
		distancePct := math.Abs(currentPrice-level.Price) / level.Price
		if distancePct >= 0.005 {
			continue
		}

		if level.Type == Resistance && currentPrice > level.Price {
			if volumeConfirmed {
				result.Bullish = append(result.Bullish, "resistance_break_with_volume")
			} else {
				result.Bullish = append(result.Bullish, "resistance_break")
			}
		} else if level.Type == Support && currentPrice < level.Price {
			if volumeConfirmed {
				result.Bearish = append(result.Bearish, "support_break_with_volume")
			} else {
				result.Bearish = append(result.Bearish, "support_break")
			}
		}
	}
}

// FindSwingHighs finds local maxima with a 5-bar window on each side,
// keeping the last 10.
func FindSwingHighs(data []float64) []Swing {
	return findSwings(data, true)
}

// FindSwingLows finds local minima with a 5-bar window on each side,
// keeping the last 10.
func FindSwingLows(data []float64) []Swing {
	return findSwings(data, false)
}

func findSwings(data []float64, high bool) []Swing {
	const window = 5

	var swings []Swing
	for i := window; i < len(data)-window; i++ {
		isSwing := true
		for j := i - window; j <= i+window; j++ {
			if high && data[i] < data[j] {
				isSwing = false
				break
			}
			if !high && data[i] > data[j] {
				isSwing = false
				break
			}
		}
		if isSwing {
			swings = append(swings, Swing{Index: i, Price: data[i]})
		}
	}

	if len(swings) > 10 {
		swings = swings[len(swings)-10:]
	}
	return swings
}

// IdentifyKeyLevels builds support/resistance levels from the last 5 swing
// highs and last 5 swing lows.
func IdentifyKeyLevels(highs, lows []float64) []KeyLevel {
	var levels []KeyLevel

	swingHighs := FindSwingHighs(highs)
	if len(swingHighs) > 5 {
		swingHighs = swingHighs[len(swingHighs)-5:]
	}
	for _, s := range swingHighs {
		levels = append(levels, KeyLevel{Price: s.Price, Type: Resistance})
	}

	swingLows := FindSwingLows(lows)
	if len(swingLows) > 5 {
		swingLows = swingLows[len(swingLows)-5:]
	}
	for _, s := range swingLows {
		levels = append(levels, KeyLevel{Price: s.Price, Type: Support})
	}

	return levels
}
