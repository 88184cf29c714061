// Package analysis provides the liquidity, market-structure, and
// volume-profile feature extractors consumed by the entry engine.
package analysis

// Bias represents a directional lean produced by an analyzer
type Bias string

const (
	StrongBullish Bias = "strong_bullish"
	Bullish       Bias = "bullish"
	Neutral       Bias = "neutral"
	Bearish       Bias = "bearish"
	StrongBearish Bias = "strong_bearish"

	// RangingBias is only produced by the structure analyzer; it carries no
	// directional weight when combined.
	RangingBias Bias = "ranging"
)

var biasStrength = map[Bias]int{
	StrongBullish: 2,
	Bullish:       1,
	Neutral:       0,
	Bearish:       -1,
	StrongBearish: -2,
}

// CombineBias merges two bias signals into one, saturating at the strong
// variants when both agree.
func CombineBias(a, b Bias) Bias {
	combined := biasStrength[a] + biasStrength[b]
	switch {
	case combined >= 3:
		return StrongBullish
	case combined >= 1:
		return Bullish
	case combined <= -3:
		return StrongBearish
	case combined <= -1:
		return Bearish
	default:
		return Neutral
	}
}

// IsBullish reports whether the bias leans long
func (b Bias) IsBullish() bool {
	return b == Bullish || b == StrongBullish
}

// IsBearish reports whether the bias leans short
func (b Bias) IsBearish() bool {
	return b == Bearish || b == StrongBearish
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
