// Package regime classifies a price/volume window into a market regime
// (trending, ranging, volatile) with a confidence score and directional bias.
package regime

import (
	"math"
	"sort"
)

// Regime represents the statistical character of the market
type Regime string

const (
	TrendingStrong   Regime = "trending_strong"
	TrendingWeak     Regime = "trending_weak"
	Volatile         Regime = "volatile"
	Ranging          Regime = "ranging"
	InsufficientData Regime = "insufficient_data"
)

// Bias represents the directional lean of the market
type Bias string

const (
	BiasBullish Bias = "bullish"
	BiasBearish Bias = "bearish"
	BiasNeutral Bias = "neutral"
)

// Result holds the outcome of a regime detection pass
type Result struct {
	Regime        Regime
	Confidence    float64
	ADX           float64
	Volatility    float64
	VolumeRatio   float64
	TrendStrength float64
	Bias          Bias
}

// Detector classifies market regimes from close prices and volumes
type Detector struct{}

// NewDetector creates a new regime detector
func NewDetector() *Detector {
	return &Detector{}
}

const epsilon = 1e-10

// Detect classifies the market regime over the supplied window. It needs at
// least 50 closes; smaller windows produce an insufficient-data result with
// zero confidence rather than an error.
//
// The trend-strength metric is ADX-like but deliberately uses plain means
// over 5-bar rolling extremes rather than Wilder smoothing.
func (d *Detector) Detect(prices, volumes []float64) Result {
	if len(prices) < 50 {
		return Result{Regime: InsufficientData, Bias: BiasNeutral}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
	}
	volatility := stdDev(returns) * math.Sqrt(288) // annualized for 5m bars

	// 5-bar rolling highs/lows of the close series
	highs := make([]float64, 0, len(prices)-5)
	lows := make([]float64, 0, len(prices)-5)
	for i := 5; i < len(prices); i++ {
		hi, lo := prices[i], prices[i]
		for j := i - 5; j <= i; j++ {
			if prices[j] > hi {
				hi = prices[j]
			}
			if prices[j] < lo {
				lo = prices[j]
			}
		}
		highs = append(highs, hi)
		lows = append(lows, lo)
	}

	arrLen := len(highs) - 1
	plusDM := make([]float64, arrLen)
	minusDM := make([]float64, arrLen)
	for i := 0; i < arrLen; i++ {
		plusDM[i] = math.Max(highs[i+1]-highs[i], 0)
		minusDM[i] = math.Max(-(lows[i+1] - lows[i]), 0)
	}

	priceTail := prices[len(prices)-(arrLen+1):]
	tr := make([]float64, arrLen)
	for i := 0; i < arrLen; i++ {
		tr[i] = math.Max(highs[i+1]-highs[i],
			math.Max(math.Abs(priceTail[i+1]-priceTail[i]), math.Abs(lows[i+1]-lows[i])))
	}

	plusDI := make([]float64, arrLen)
	minusDI := make([]float64, arrLen)
	dx := make([]float64, arrLen)
	for i := 0; i < arrLen; i++ {
		plusDI[i] = 100 * plusDM[i] / (tr[i] + epsilon)
		minusDI[i] = 100 * minusDM[i] / (tr[i] + epsilon)
		dx[i] = 100 * math.Abs(plusDI[i]-minusDI[i]) / (plusDI[i] + minusDI[i] + epsilon)
	}

	adxWindow := dx
	if len(dx) > 14 {
		adxWindow = dx[len(dx)-14:]
	}
	adx := mean(adxWindow)

	// Volume ratio against a 20-bar SMA; unavailable history yields 0, not 1
	volumeSMA := 0.0
	if len(volumes) >= 20 {
		volumeSMA = mean(volumes[len(volumes)-20:])
	}
	currentVolume := 0.0
	if len(volumes) > 0 {
		currentVolume = volumes[len(volumes)-1]
	}
	volumeRatio := 0.0
	if volumeSMA > 0 && currentVolume >= 0 {
		volumeRatio = currentVolume / volumeSMA
	}

	// Rolling 20-bar volatility of raw price differences
	rollingVols := make([]float64, 0, len(prices)-20)
	for i := 0; i < len(prices)-20; i++ {
		window := prices[i : i+20]
		diffs := make([]float64, len(window)-1)
		for j := 1; j < len(window); j++ {
			diffs[j-1] = window[j] - window[j-1]
		}
		rollingVols = append(rollingVols, stdDev(diffs))
	}

	var reg Regime
	var confidence float64
	switch {
	case adx > 25 && volatility < percentile(rollingVols, 70):
		reg = TrendingStrong
		confidence = math.Min(adx/50*100, 95)
	case adx > 15:
		reg = TrendingWeak
		confidence = math.Min(adx/30*100, 85)
	case volatility > percentile(rollingVols, 80):
		reg = Volatile
		confidence = math.Min(volatility*1000, 90)
	default:
		reg = Ranging
		confidence = 100 - adx*2
	}

	bias := BiasNeutral
	if arrLen > 0 {
		if plusDI[arrLen-1] > minusDI[arrLen-1] {
			bias = BiasBullish
		} else {
			bias = BiasBearish
		}
	}

	return Result{
		Regime:        reg,
		Confidence:    confidence,
		ADX:           adx,
		Volatility:    volatility,
		VolumeRatio:   volumeRatio,
		TrendStrength: adx,
		Bias:          bias,
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(values)))
}

// percentile computes the q-th percentile with linear interpolation between
// closest ranks
func percentile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	rank := q / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
