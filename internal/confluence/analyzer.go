// Package confluence measures trend alignment across short, medium, and long
// lookback windows of the same series.
package confluence

import "smart-trading-engine/internal/indicators"

// Result holds the per-window trend reads and their alignment strength
type Result struct {
	ShortTermBias     indicators.Trend
	MediumTermBias    indicators.Trend
	LongTermBias      indicators.Trend
	AlignmentStrength float64
}

// Analyzer reads trend direction over 20, 50, and 100 bar windows
type Analyzer struct{}

// NewAnalyzer creates a new confluence analyzer
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze scores how well the three window trends agree. Fewer than 100
// closes yields a neutral result with zero strength.
func (a *Analyzer) Analyze(closes []float64) Result {
	result := Result{
		ShortTermBias:  indicators.TrendNeutral,
		MediumTermBias: indicators.TrendNeutral,
		LongTermBias:   indicators.TrendNeutral,
	}

	if len(closes) < 100 {
		return result
	}

	result.ShortTermBias = indicators.DetectTrend(closes[len(closes)-20:])
	result.MediumTermBias = indicators.DetectTrend(closes[len(closes)-50:])
	result.LongTermBias = indicators.DetectTrend(closes[len(closes)-100:])

	trends := []indicators.Trend{result.ShortTermBias, result.MediumTermBias, result.LongTermBias}
	result.AlignmentStrength = alignmentStrength(trends)

	return result
}

func alignmentStrength(trends []indicators.Trend) float64 {
	up := 0
	down := 0
	sideways := 0
	for _, t := range trends {
		switch t {
		case indicators.TrendUp:
			up++
		case indicators.TrendDown:
			down++
		case indicators.TrendSideways:
			sideways++
		}
	}

	switch {
	case up == len(trends) || down == len(trends):
		return 100
	case up == 2 || down == 2:
		return 75
	case sideways == len(trends):
		return 30
	default:
		return 50
	}
}
