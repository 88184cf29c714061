package analysis

// VolumeProfileResult holds accumulation/distribution and money-flow analysis
type VolumeProfileResult struct {
	Bias                     Bias
	Strength                 float64
	AccumulationDistribution float64
	MoneyFlowIndex           float64
}

// VolumeProfileAnalyzer reads buying/selling pressure from close-location
// value and a money flow index
type VolumeProfileAnalyzer struct{}

// NewVolumeProfileAnalyzer creates a new volume-profile analyzer
func NewVolumeProfileAnalyzer() *VolumeProfileAnalyzer {
	return &VolumeProfileAnalyzer{}
}

// Analyze computes the volume-profile bias. Fewer than 20 volume bars yields
// a neutral result with MFI at 50.
func (va *VolumeProfileAnalyzer) Analyze(closes, volumes, highs, lows []float64) VolumeProfileResult {
	result := VolumeProfileResult{Bias: Neutral, MoneyFlowIndex: 50}

	if len(volumes) < 20 {
		return result
	}

	// Close-location value weighted by volume, averaged over the last 10 bars
	var adValues []float64
	for i := 1; i < len(closes); i++ {
		if i < len(highs) && i < len(lows) && i < len(volumes) && highs[i] != lows[i] {
			clv := ((closes[i] - lows[i]) - (highs[i] - closes[i])) / (highs[i] - lows[i])
			adValues = append(adValues, clv*volumes[i])
		}
	}
	if len(adValues) > 0 {
		tail := adValues
		if len(adValues) > 10 {
			tail = adValues[len(adValues)-10:]
		}
		result.AccumulationDistribution = mean(tail)
	}

	if len(closes) >= 14 {
		result.MoneyFlowIndex = moneyFlowIndex(
			highs[len(highs)-14:], lows[len(lows)-14:],
			closes[len(closes)-14:], volumes[len(volumes)-14:])
	}

	ad := result.AccumulationDistribution
	mfi := result.MoneyFlowIndex
	switch {
	case ad > 0.3 && mfi > 60:
		result.Bias = StrongBullish
		result.Strength = 80
	case ad < -0.3 && mfi < 40:
		result.Bias = StrongBearish
		result.Strength = 80
	case ad > 0.1:
		result.Bias = Bullish
		result.Strength = 60
	case ad < -0.1:
		result.Bias = Bearish
		result.Strength = 60
	}

	return result
}

// moneyFlowIndex approximates MFI from typical-price direction. A window with
// no negative flow returns 100; the positive-flow branch is unguarded on
// purpose.
func moneyFlowIndex(highs, lows, closes, volumes []float64) float64 {
	if len(highs) < 2 {
		return 50
	}

	typical := make([]float64, len(highs))
	for i := range highs {
		typical[i] = (highs[i] + lows[i] + closes[i]) / 3
	}

	positiveFlow := 0.0
	negativeFlow := 0.0
	for i := 1; i < len(typical); i++ {
		if typical[i] > typical[i-1] {
			positiveFlow += volumes[i]
		} else if typical[i] < typical[i-1] {
			negativeFlow += volumes[i]
		}
	}

	if negativeFlow == 0 {
		return 100
	}

	moneyRatio := positiveFlow / negativeFlow
	mfi := 100 - (100 / (1 + moneyRatio))
	if mfi < 0 {
		return 0
	}
	if mfi > 100 {
		return 100
	}
	return mfi
}
