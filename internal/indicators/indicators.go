// Package indicators provides lightweight technical indicators over ordered
// price sequences. Every function degrades to a bounded default when the
// input is shorter than its required period instead of returning an error.
package indicators

import "math"

// ============================================================================
// MOVING AVERAGES
// ============================================================================

// CalculateSMA calculates Simple Moving Average over the last period prices.
// Short input returns the best available data point.
func CalculateSMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	if len(prices) < period {
		return prices[len(prices)-1]
	}

	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}

	return sum / float64(period)
}

// CalculateEMA calculates Exponential Moving Average seeded with the first
// price. Short input falls back to an SMA over what is available.
func CalculateEMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	if len(prices) < period {
		return CalculateSMA(prices, len(prices))
	}

	multiplier := 2.0 / float64(period+1)
	ema := prices[0]

	for _, price := range prices[1:] {
		ema = (price * multiplier) + (ema * (1 - multiplier))
	}

	return ema
}

// ============================================================================
// RSI (Relative Strength Index)
// ============================================================================

// CalculateRSI calculates the Relative Strength Index with Wilder smoothing.
// Returns a neutral 50 when there are fewer than period+1 prices.
func CalculateRSI(prices []float64, period int) float64 {
	if len(prices) < period+1 {
		return 50.0 // Neutral RSI
	}

	gains := make([]float64, 0, len(prices)-1)
	losses := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		if delta > 0 {
			gains = append(gains, delta)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -delta)
		}
	}

	avgGain := 0.0
	avgLoss := 0.0
	for i := 0; i < period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	// Wilder smoothing over the remaining deltas
	for i := period; i < len(gains); i++ {
		avgGain = (avgGain*float64(period-1) + gains[i]) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + losses[i]) / float64(period)
	}

	if avgLoss == 0 {
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// ============================================================================
// BOLLINGER BANDS
// ============================================================================

// BollingerBands holds Bollinger Band values
type BollingerBands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// CalculateBollingerBands calculates Bollinger Bands. With fewer than period
// prices the bands collapse onto the last price.
func CalculateBollingerBands(prices []float64, period int, stdDevMultiplier float64) BollingerBands {
	if len(prices) < period {
		mid := 0.0
		if len(prices) > 0 {
			mid = prices[len(prices)-1]
		}
		return BollingerBands{Upper: mid, Middle: mid, Lower: mid}
	}

	middle := CalculateSMA(prices, period)

	variance := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		diff := prices[i] - middle
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(period))

	return BollingerBands{
		Upper:  middle + (stdDev * stdDevMultiplier),
		Middle: middle,
		Lower:  middle - (stdDev * stdDevMultiplier),
	}
}

// ============================================================================
// MACD (Moving Average Convergence Divergence)
// ============================================================================

// MACDResult holds MACD indicator values
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// CalculateMACD calculates the MACD line with a simplified signal
// approximation. Maintaining a full EMA of MACD history is deliberately
// avoided; the signal line is a fixed fraction of the MACD line.
func CalculateMACD(prices []float64, fast, slow, signal int) MACDResult {
	if len(prices) < slow {
		return MACDResult{}
	}

	macdLine := CalculateEMA(prices, fast) - CalculateEMA(prices, slow)
	signalLine := macdLine * 0.1
	return MACDResult{
		MACD:      macdLine,
		Signal:    signalLine,
		Histogram: macdLine - signalLine,
	}
}

// ============================================================================
// ATR (Average True Range)
// ============================================================================

// CalculateATR calculates Average True Range over the last period bars
func CalculateATR(highs, lows, closes []float64, period int) float64 {
	n := len(closes)
	if n < 2 || len(highs) != n || len(lows) != n {
		return 0
	}

	trueRanges := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		tr := math.Max(highs[i]-lows[i],
			math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
		trueRanges = append(trueRanges, tr)
	}

	window := period
	if len(trueRanges) < window {
		window = len(trueRanges)
	}

	sum := 0.0
	for i := len(trueRanges) - window; i < len(trueRanges); i++ {
		sum += trueRanges[i]
	}
	return sum / float64(window)
}

// ============================================================================
// SUPPORT AND RESISTANCE
// ============================================================================

// SupportResistance holds simple support/resistance levels
type SupportResistance struct {
	Support    float64
	Resistance float64
}

// CalculateSupportResistance identifies support and resistance from swing
// points over a symmetric window. Short input returns a ±2% band around the
// current price.
func CalculateSupportResistance(prices []float64, window int) SupportResistance {
	if len(prices) < window*2 {
		current := 0.0
		if len(prices) > 0 {
			current = prices[len(prices)-1]
		}
		return SupportResistance{Support: current * 0.98, Resistance: current * 1.02}
	}

	var recentHighs, recentLows []float64
	for i := window; i < len(prices)-window; i++ {
		isHigh := true
		isLow := true
		for j := i - window; j <= i+window; j++ {
			if prices[i] < prices[j] {
				isHigh = false
			}
			if prices[i] > prices[j] {
				isLow = false
			}
		}
		if isHigh {
			recentHighs = append(recentHighs, prices[i])
		}
		if isLow {
			recentLows = append(recentLows, prices[i])
		}
	}

	tail := prices
	if len(prices) > 20 {
		tail = prices[len(prices)-20:]
	}

	resistance := maxOf(tail)
	if len(recentHighs) >= 3 {
		resistance = maxOf(recentHighs[len(recentHighs)-3:])
	}
	support := minOf(tail)
	if len(recentLows) >= 3 {
		support = minOf(recentLows[len(recentLows)-3:])
	}

	return SupportResistance{Support: support, Resistance: resistance}
}

// ============================================================================
// MOMENTUM
// ============================================================================

// CalculateMomentum calculates percent price change over the last period bars
func CalculateMomentum(prices []float64, period int) float64 {
	if len(prices) < period+1 {
		return 0
	}
	past := prices[len(prices)-period-1]
	if past == 0 {
		return 0
	}
	return ((prices[len(prices)-1] - past) / past) * 100
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
