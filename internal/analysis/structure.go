package analysis

// Structure classifies the swing-point sequencing of the market
type Structure string

const (
	HigherHighsHigherLows Structure = "higher_highs_higher_lows"
	LowerHighsLowerLows   Structure = "lower_highs_lower_lows"
	RangingStructure      Structure = "ranging"
	InsufficientSwings    Structure = "insufficient_swings"
	InsufficientStructure Structure = "insufficient_data"
)

// Swing marks a local extreme in the price series
type Swing struct {
	Index int
	Price float64
}

// StructureResult holds the outcome of a market-structure analysis
type StructureResult struct {
	Structure    Structure
	Bias         Bias
	EnhancedBias Bias
	SwingHighs   []Swing
	SwingLows    []Swing
}

// StructureAnalyzer classifies higher-high/higher-low sequencing from swing
// points
type StructureAnalyzer struct{}

// NewStructureAnalyzer creates a new structure analyzer
func NewStructureAnalyzer() *StructureAnalyzer {
	return &StructureAnalyzer{}
}

// Analyze classifies the market structure from closes, with a momentum
// enhancement from the high/low series. Needs at least 30 closes.
func (sa *StructureAnalyzer) Analyze(closes, highs, lows []float64) StructureResult {
	if len(closes) < 30 {
		return StructureResult{Structure: InsufficientStructure, Bias: Neutral, EnhancedBias: Neutral}
	}

	var swingHighs, swingLows []Swing
	for i := 5; i < len(closes)-5; i++ {
		isHigh := true
		isLow := true
		for j := i - 5; j < i; j++ {
			if closes[i] <= closes[j] {
				isHigh = false
			}
			if closes[i] >= closes[j] {
				isLow = false
			}
		}
		for j := i + 1; j <= i+5; j++ {
			if closes[i] <= closes[j] {
				isHigh = false
			}
			if closes[i] >= closes[j] {
				isLow = false
			}
		}
		if isHigh {
			swingHighs = append(swingHighs, Swing{Index: i, Price: closes[i]})
		}
		if isLow {
			swingLows = append(swingLows, Swing{Index: i, Price: closes[i]})
		}
	}

	if len(swingHighs) > 3 {
		swingHighs = swingHighs[len(swingHighs)-3:]
	}
	if len(swingLows) > 3 {
		swingLows = swingLows[len(swingLows)-3:]
	}

	structure := classifyStructure(swingHighs, swingLows)

	var bias Bias
	switch structure {
	case HigherHighsHigherLows:
		bias = Bullish
	case LowerHighsLowerLows:
		bias = Bearish
	default:
		bias = RangingBias
	}

	result := StructureResult{
		Structure:  structure,
		Bias:       bias,
		SwingHighs: swingHighs,
		SwingLows:  swingLows,
	}

	if len(highs) >= 20 && len(lows) >= 20 {
		momentum := momentumBias(highs[len(highs)-20:], lows[len(lows)-20:])
		result.EnhancedBias = CombineBias(bias, momentum)
	} else {
		result.EnhancedBias = bias
	}

	return result
}

// classifyStructure compares the last two swing highs and lows
func classifyStructure(swingHighs, swingLows []Swing) Structure {
	if len(swingHighs) < 2 || len(swingLows) < 2 {
		return InsufficientSwings
	}

	higherHighs := swingHighs[len(swingHighs)-1].Price > swingHighs[len(swingHighs)-2].Price
	higherLows := swingLows[len(swingLows)-1].Price > swingLows[len(swingLows)-2].Price

	if higherHighs && higherLows {
		return HigherHighsHigherLows
	}
	if !higherHighs && !higherLows {
		return LowerHighsLowerLows
	}
	return RangingStructure
}

// momentumBias reads directional momentum from 10-bar rate of change on the
// high and low series
func momentumBias(highs, lows []float64) Bias {
	if len(highs) < 10 || len(lows) < 10 {
		return Neutral
	}

	highROC := (highs[len(highs)-1] - highs[len(highs)-10]) / highs[len(highs)-10]
	lowROC := (lows[len(lows)-1] - lows[len(lows)-10]) / lows[len(lows)-10]

	if highROC > 0.01 && lowROC > 0.005 {
		return Bullish
	}
	if highROC < -0.01 && lowROC < -0.005 {
		return Bearish
	}
	return Neutral
}
