package analysis

import (
	"math"
	"sort"
)

// dailyBars is 24 hours of 5-minute bars
const dailyBars = 288

// FVGType represents the type of Fair Value Gap
type FVGType string

const (
	BullishFVG FVGType = "bullish"
	BearishFVG FVGType = "bearish"
)

// FVG represents a Fair Value Gap: a 3-bar price dislocation that price tends
// to revisit
type FVG struct {
	Type    FVGType
	Top     float64
	Bottom  float64
	Index   int
	SizePct float64
}

// VolumeZone marks a price area that traded unusually high volume
type VolumeZone struct {
	Price       float64
	VolumeRatio float64
	Index       int
}

// LiquidityResult holds the outcome of a liquidity-zone analysis
type LiquidityResult struct {
	DailyHigh     float64
	DailyLow      float64
	FairValueGaps []FVG
	Bias          Bias
	EnhancedBias  Bias
	KeyLevel      float64
	DistanceToKey float64
	VolumeZones   []VolumeZone
	Insufficient  bool
}

// LiquidityAnalyzer detects liquidity zones: daily extremes, fair value gaps,
// and high-volume price areas
type LiquidityAnalyzer struct {
	minGapPercent float64
}

// NewLiquidityAnalyzer creates a new liquidity analyzer
func NewLiquidityAnalyzer() *LiquidityAnalyzer {
	return &LiquidityAnalyzer{minGapPercent: 0.1}
}

// Analyze detects liquidity zones over the window. It needs at least 100
// closes; smaller windows yield a neutral result.
func (la *LiquidityAnalyzer) Analyze(closes, highs, lows, volumes []float64) LiquidityResult {
	if len(closes) < 100 {
		return LiquidityResult{Bias: Neutral, EnhancedBias: Neutral, Insufficient: true}
	}

	window := closes
	if len(closes) > dailyBars {
		window = closes[len(closes)-dailyBars:]
	}
	dailyHigh := window[0]
	dailyLow := window[0]
	for _, p := range window {
		if p > dailyHigh {
			dailyHigh = p
		}
		if p < dailyLow {
			dailyLow = p
		}
	}

	fvgs := la.detectFairValueGaps(closes)

	currentPrice := closes[len(closes)-1]
	result := LiquidityResult{
		DailyHigh:     dailyHigh,
		DailyLow:      dailyLow,
		FairValueGaps: fvgs,
	}

	if currentPrice > (dailyHigh+dailyLow)/2 {
		result.Bias = Bullish
		result.KeyLevel = dailyLow
	} else {
		result.Bias = Bearish
		result.KeyLevel = dailyHigh
	}
	result.DistanceToKey = math.Abs(currentPrice-result.KeyLevel) / currentPrice * 100

	// Volume-weighted enhancement; requires volume history
	if len(volumes) >= 20 && len(highs) > 0 && len(lows) > 0 {
		result.VolumeZones = identifyVolumeZones(highs, lows, volumes)
		midPrice := (highs[len(highs)-1] + lows[len(lows)-1]) / 2
		volumeBias := volumeZoneBias(midPrice, result.VolumeZones)
		result.EnhancedBias = CombineBias(result.Bias, volumeBias)
	} else {
		result.EnhancedBias = result.Bias
	}

	return result
}

// detectFairValueGaps finds 3-bar dislocations larger than the minimum gap,
// keeping the 3 largest from the last 50 bars
func (la *LiquidityAnalyzer) detectFairValueGaps(prices []float64) []FVG {
	var fvgs []FVG

	for i := 2; i < len(prices)-1; i++ {
		if prices[i+1] > prices[i-1] {
			gapSize := (prices[i+1] - prices[i-1]) / prices[i] * 100
			if gapSize > la.minGapPercent {
				fvgs = append(fvgs, FVG{
					Type:    BullishFVG,
					Top:     prices[i+1],
					Bottom:  prices[i-1],
					Index:   i,
					SizePct: gapSize,
				})
			}
		} else if prices[i+1] < prices[i-1] {
			gapSize := (prices[i-1] - prices[i+1]) / prices[i] * 100
			if gapSize > la.minGapPercent {
				fvgs = append(fvgs, FVG{
					Type:    BearishFVG,
					Top:     prices[i-1],
					Bottom:  prices[i+1],
					Index:   i,
					SizePct: gapSize,
				})
			}
		}
	}

	recent := fvgs[:0]
	for _, fvg := range fvgs {
		if len(prices)-fvg.Index < 50 {
			recent = append(recent, fvg)
		}
	}
	sort.Slice(recent, func(i, j int) bool { return recent[i].SizePct > recent[j].SizePct })
	if len(recent) > 3 {
		recent = recent[:3]
	}
	return recent
}

func identifyVolumeZones(highs, lows, volumes []float64) []VolumeZone {
	if len(volumes) < 20 {
		return nil
	}

	avgVolume := mean(volumes)
	threshold := avgVolume * 1.5

	var zones []VolumeZone
	for i, volume := range volumes {
		if volume > threshold && i < len(highs) && i < len(lows) {
			zones = append(zones, VolumeZone{
				Price:       (highs[i] + lows[i]) / 2,
				VolumeRatio: volume / avgVolume,
				Index:       i,
			})
		}
	}

	if len(zones) > 10 {
		zones = zones[len(zones)-10:]
	}
	return zones
}

// volumeZoneBias leans toward the side with the heavier volume zones: zones
// below price act as support, zones above as resistance
func volumeZoneBias(currentPrice float64, zones []VolumeZone) Bias {
	if len(zones) == 0 {
		return Neutral
	}

	supportStrength := 0.0
	resistanceStrength := 0.0
	for _, z := range zones {
		if z.Price < currentPrice {
			supportStrength += z.VolumeRatio
		} else if z.Price > currentPrice {
			resistanceStrength += z.VolumeRatio
		}
	}

	if supportStrength > resistanceStrength*1.2 {
		return Bullish
	}
	if resistanceStrength > supportStrength*1.2 {
		return Bearish
	}
	return Neutral
}
