package engine

import "math"

// trendLabel classifies the overall slope of a close window
type trendLabel string

const (
	trendStrong   trendLabel = "strong_trend"
	trendModerate trendLabel = "moderate_trend"
	trendChoppy   trendLabel = "choppy"
	trendUnknown  trendLabel = "unknown"
)

// linearFit returns the least-squares slope over the series and the r
// squared of a line through the first price with that slope. Anchoring the
// fit at the first price rather than the intercept skews r squared low for
// series that start away from the trend line; the scoring is tuned around
// that behavior.
func linearFit(prices []float64) (slope, rSquared float64) {
	n := float64(len(prices))
	if n < 2 {
		return 0, 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, p := range prices {
		x := float64(i)
		sumX += x
		sumY += p
		sumXY += x * p
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, 0
	}
	slope = (n*sumXY - sumX*sumY) / denom

	meanY := sumY / n
	var ssRes, ssTot float64
	for i, p := range prices {
		predicted := slope*float64(i) + prices[0]
		ssRes += (p - predicted) * (p - predicted)
		ssTot += (p - meanY) * (p - meanY)
	}
	if ssTot == 0 {
		return slope, 0
	}
	return slope, 1 - ssRes/ssTot
}

// trendStrength scores trend quality 0-100 from slope magnitude weighted by
// fit quality.
func trendStrength(prices []float64) float64 {
	if len(prices) < 10 {
		return 0
	}

	slope, rSquared := linearFit(prices)
	strength := math.Min(math.Abs(slope)/prices[len(prices)-1]*10000, 50) * rSquared
	return math.Min(strength, 100)
}

// classifyTrend labels the window by its normalized regression slope
func classifyTrend(closes []float64) trendLabel {
	if len(closes) < 20 {
		return trendUnknown
	}

	slope, _ := linearFit(closes)
	slopePct := slope * float64(len(closes)) / closes[0]

	switch {
	case math.Abs(slopePct) > 0.02:
		return trendStrong
	case math.Abs(slopePct) < 0.005:
		return trendChoppy
	default:
		return trendModerate
	}
}

// marketVolatility is the standard deviation of bar-to-bar returns.
// Windows under 20 bars fall back to 2%.
func marketVolatility(closes []float64) float64 {
	if len(closes) < 20 {
		return 0.02
	}

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		returns = append(returns, (closes[i]-closes[i-1])/closes[i-1])
	}
	return stdOf(returns)
}

// priceActionQuality grades trend consistency 0-1 via the fit's r squared
func priceActionQuality(closes []float64) float64 {
	if len(closes) < 10 {
		return 0.5
	}

	_, rSquared := linearFit(closes)
	return math.Max(0, math.Min(1, rSquared))
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

func stdOf(values []float64) float64 {
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
