package patterns

import (
	"math"

	"smart-trading-engine/internal/market"
)

// ExhaustionResult reports whether a momentum exhaustion pattern was found
type ExhaustionResult struct {
	Exhausted bool
	Pattern   string
}

// DivergenceResult reports a price-volume divergence
type DivergenceResult struct {
	HasDivergence bool
	Type          string
}

// DetectReversalCandles finds reversal candles over the window using the
// looser exit-side shadow thresholds.
func DetectReversalCandles(highs, lows, opens, closes []float64) []string {
	var found []string

	if len(closes) < 3 {
		return found
	}

	for i := 2; i < len(closes); i++ {
		bodySize := math.Abs(closes[i] - opens[i])
		candleRange := highs[i] - lows[i]

		if candleRange > 0.0001 {
			upperShadow := (highs[i] - math.Max(opens[i], closes[i])) / candleRange
			lowerShadow := (math.Min(opens[i], closes[i]) - lows[i]) / candleRange

			if upperShadow > 0.6 && lowerShadow < 0.2 {
				found = append(found, "shooting_star")
			}
			if lowerShadow > 0.6 && upperShadow < 0.2 {
				found = append(found, "hammer")
			}
		}

		if candleRange > 0.0001 && bodySize/candleRange < 0.15 {
			found = append(found, "doji")
		}
	}

	return found
}

// DetectExhaustion looks for momentum exhaustion: a price extension on
// declining volume, or a parabolic run of oversized bars.
func DetectExhaustion(highs, lows, closes, volumes []float64, side market.Side) ExhaustionResult {
	if len(closes) < 10 {
		return ExhaustionResult{Pattern: "insufficient_data"}
	}

	if len(volumes) >= 10 {
		recentVolume := meanOf(volumes[len(volumes)-3:])
		olderVolume := meanOf(volumes[len(volumes)-10 : len(volumes)-3])
		volumeRatio := 1.0
		if olderVolume > 0 {
			volumeRatio = recentVolume / olderVolume
		}

		priceChange := (closes[len(closes)-1] - closes[len(closes)-5]) / closes[len(closes)-5]

		if side == market.SideLong && priceChange > 0.01 && volumeRatio < 0.7 {
			return ExhaustionResult{Exhausted: true, Pattern: "volume_exhaustion_up"}
		}
		if side == market.SideShort && priceChange < -0.01 && volumeRatio < 0.7 {
			return ExhaustionResult{Exhausted: true, Pattern: "volume_exhaustion_down"}
		}
	}

	// Parabolic move: average bar-to-bar move above 1.5%
	var moves []float64
	for i := 1; i < len(closes); i++ {
		moves = append(moves, math.Abs((closes[i]-closes[i-1])/closes[i-1]))
	}
	if len(moves) >= 5 && meanOf(moves[len(moves)-5:]) > 0.015 {
		return ExhaustionResult{Exhausted: true, Pattern: "parabolic_exhaustion"}
	}

	return ExhaustionResult{Pattern: "none"}
}

// DetectDoubleTopBottomExit checks whether the last bar retests a prior
// extreme within 1%, a double top against longs or a double bottom against
// shorts. Requires at least 0.5% open profit.
func DetectDoubleTopBottomExit(highs, lows []float64, side market.Side, profitPct float64) (bool, string) {
	if len(highs) < 20 || profitPct < 0.005 {
		return false, "insufficient_setup"
	}

	if side == market.SideLong {
		recentHighs := highs[len(highs)-20:]
		currentHigh := highs[len(highs)-1]
		for i := len(recentHighs) - 5; i > 0; i-- {
			if math.Abs(recentHighs[i]-currentHigh)/currentHigh < 0.01 {
				return true, "double_top"
			}
		}
	} else {
		recentLows := lows[len(lows)-20:]
		currentLow := lows[len(lows)-1]
		for i := len(recentLows) - 5; i > 0; i-- {
			if math.Abs(recentLows[i]-currentLow)/currentLow < 0.01 {
				return true, "double_bottom"
			}
		}
	}

	return false, "none"
}

// DetectDivergence compares the last 10 bars against the prior 10: price
// pushing on with volume drying up is a divergence against the move.
func DetectDivergence(closes, volumes []float64) DivergenceResult {
	if len(closes) < 20 || len(volumes) < 20 {
		return DivergenceResult{Type: "insufficient_data"}
	}

	recentPrice := meanOf(closes[len(closes)-10:])
	olderPrice := meanOf(closes[len(closes)-20 : len(closes)-10])
	priceTrend := (recentPrice - olderPrice) / olderPrice

	recentVolume := meanOf(volumes[len(volumes)-10:])
	olderVolume := meanOf(volumes[len(volumes)-20 : len(volumes)-10])
	volumeTrend := 0.0
	if olderVolume > 0 {
		volumeTrend = (recentVolume - olderVolume) / olderVolume
	}

	if priceTrend > 0.01 && volumeTrend < -0.1 {
		return DivergenceResult{HasDivergence: true, Type: "bearish_divergence"}
	}
	if priceTrend < -0.01 && volumeTrend < -0.1 {
		return DivergenceResult{HasDivergence: true, Type: "bullish_divergence"}
	}

	return DivergenceResult{Type: "none"}
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
