package engine

import (
	"fmt"
	"math"

	"smart-trading-engine/internal/analysis"
	"smart-trading-engine/internal/indicators"
	"smart-trading-engine/internal/market"
	"smart-trading-engine/internal/patterns"
	"smart-trading-engine/internal/risk"
	"smart-trading-engine/internal/session"
)

// ExitEngine runs a fixed-priority cascade of exit checks. Earlier stages
// are more urgent; the first stage that fires decides the exit, regardless
// of what later stages would say.
type ExitEngine struct {
	session   *session.Analyzer
	structure *analysis.StructureAnalyzer
	trailing  *risk.TrailingStopManager
}

// NewExitEngine wires an exit engine. The trailing stop manager is shared
// so that state survives across analysis passes.
func NewExitEngine(sess *session.Analyzer, trailing *risk.TrailingStopManager) *ExitEngine {
	return &ExitEngine{
		session:   sess,
		structure: analysis.NewStructureAnalyzer(),
		trailing:  trailing,
	}
}

// ShouldExit evaluates all exit stages for an open position against the
// current price and candle window. The optional entry signal tightens or
// loosens several stages based on the confidence the position was opened
// with.
func (e *ExitEngine) ShouldExit(position market.OpenPosition, currentPrice float64, candles []market.Candle, entry *EntrySignal) ExitSignal {
	if position.EntryPrice == 0 {
		return ExitSignal{Action: ActionHold, Reason: "invalid entry price", Urgency: UrgencyNone}
	}

	profitPct := position.ProfitPct(currentPrice)

	var highs, lows, opens, closes, volumes []float64
	if len(candles) >= 50 {
		highs = market.Highs(candles)
		lows = market.Lows(candles)
		opens = market.Opens(candles)
		closes = market.Closes(candles)
		volumes = market.Volumes(candles)
	} else {
		// Degraded mode: price-only checks still run
		closes = []float64{currentPrice}
		highs = closes
		lows = closes
		opens = closes
		volumes = closes
	}

	if sig, ok := e.checkEmergency(profitPct, closes, volumes, entry); ok {
		return sig
	}
	if sig, ok := e.checkPatternExits(highs, lows, opens, closes, volumes, position.Side, profitPct); ok {
		return sig
	}
	if sig, ok := e.checkVolatilityStops(closes, highs, lows, profitPct, entry); ok {
		return sig
	}
	if sig, ok := e.checkProfitTaking(profitPct, closes, volumes, position.Side, entry); ok {
		return sig
	}
	if sig, ok := e.checkStructureExits(closes, highs, lows, volumes, position.Side, profitPct); ok {
		return sig
	}
	if sig, ok := e.checkSessionExits(profitPct, volumes); ok {
		return sig
	}
	if sig, ok := e.checkMomentumExits(closes, volumes, position.Side, profitPct); ok {
		return sig
	}
	if sig, ok := e.checkSentimentExits(closes, volumes, position.Side, profitPct); ok {
		return sig
	}
	if update := e.trailing.Update(position, currentPrice, profitPct, closes); update.ShouldExit {
		return ExitSignal{
			Action:  ActionClose,
			Reason:  fmt.Sprintf("TRAILING STOP: %.2f%% profit secured", profitPct*100),
			Urgency: UrgencyLow,
		}
	}

	holdConfidence := e.holdConfidence(profitPct, closes, entry)

	return ExitSignal{
		Action:         ActionHold,
		Reason:         fmt.Sprintf("hold - P&L: %.2f%% | confidence: %.1f%%", profitPct*100, holdConfidence),
		Urgency:        UrgencyNone,
		HoldConfidence: holdConfidence,
		Suggestion:     holdSuggestion(holdConfidence),
	}
}

// checkEmergency covers the capital-protection stops: the hard 3% loss
// limit, flash crashes, panic volume, and fast cuts on low-confidence
// entries.
func (e *ExitEngine) checkEmergency(profitPct float64, closes, volumes []float64, entry *EntrySignal) (ExitSignal, bool) {
	if profitPct <= -0.03 {
		return ExitSignal{
			Action:  ActionClose,
			Reason:  fmt.Sprintf("EMERGENCY STOP: %.2f%% - capital protection", profitPct*100),
			Urgency: UrgencyCritical,
		}, true
	}

	if len(closes) >= 5 {
		maxRecent := closes[len(closes)-5]
		for _, c := range closes[len(closes)-5:] {
			if c > maxRecent {
				maxRecent = c
			}
		}
		recentDrop := (closes[len(closes)-1] - maxRecent) / maxRecent
		if recentDrop <= -0.02 {
			return ExitSignal{
				Action:  ActionClose,
				Reason:  fmt.Sprintf("FLASH CRASH: %.2f%% in 5 bars", recentDrop*100),
				Urgency: UrgencyCritical,
			}, true
		}
	}

	if len(volumes) >= 10 {
		avgVolume := meanOf(volumes[len(volumes)-10:])
		spike := 1.0
		if avgVolume > 0 {
			spike = volumes[len(volumes)-1] / avgVolume
		}
		if spike > 3.0 && profitPct < -0.01 {
			return ExitSignal{
				Action:  ActionClose,
				Reason:  fmt.Sprintf("PANIC SELLING: volume %.1fx + loss %.2f%%", spike, profitPct*100),
				Urgency: UrgencyCritical,
			}, true
		}
	}

	if entry != nil && entry.Confidence < 30 && profitPct <= -0.015 {
		return ExitSignal{
			Action:  ActionClose,
			Reason:  fmt.Sprintf("LOW CONFIDENCE EXIT: entry %.1f%% + loss %.2f%%", entry.Confidence, profitPct*100),
			Urgency: UrgencyHigh,
		}, true
	}

	return ExitSignal{}, false
}

// checkPatternExits exits into profit on reversal clusters, exhaustion,
// double tops or bottoms, and price-volume divergence.
func (e *ExitEngine) checkPatternExits(highs, lows, opens, closes, volumes []float64, side market.Side, profitPct float64) (ExitSignal, bool) {
	if len(closes) < 10 {
		return ExitSignal{}, false
	}

	n := len(closes)
	reversals := patterns.DetectReversalCandles(highs[n-10:], lows[n-10:], opens[n-10:], closes[n-10:])
	if len(reversals) >= 2 && profitPct > 0.003 {
		return ExitSignal{
			Action:  ActionClose,
			Reason:  fmt.Sprintf("REVERSAL PATTERNS: %d signals + profit %.2f%%", len(reversals), profitPct*100),
			Urgency: UrgencyMedium,
		}, true
	}

	exhaustion := patterns.DetectExhaustion(highs, lows, closes, volumes, side)
	if exhaustion.Exhausted && profitPct > 0.005 {
		return ExitSignal{
			Action:  ActionClose,
			Reason:  fmt.Sprintf("EXHAUSTION: %s + profit %.2f%%", exhaustion.Pattern, profitPct*100),
			Urgency: UrgencyMedium,
		}, true
	}

	if shouldExit, pattern := patterns.DetectDoubleTopBottomExit(highs, lows, side, profitPct); shouldExit {
		return ExitSignal{
			Action:  ActionClose,
			Reason:  fmt.Sprintf("%s: exit + profit %.2f%%", pattern, profitPct*100),
			Urgency: UrgencyLow,
		}, true
	}

	divergence := patterns.DetectDivergence(closes, volumes)
	if divergence.HasDivergence && profitPct > 0.008 {
		return ExitSignal{
			Action:  ActionClose,
			Reason:  fmt.Sprintf("DIVERGENCE: %s + profit %.2f%%", divergence.Type, profitPct*100),
			Urgency: UrgencyMedium,
		}, true
	}

	return ExitSignal{}, false
}

// checkVolatilityStops sets an ATR-scaled stop, adjusted by trend regime,
// entry confidence, and profit protection, never wider than 3%.
func (e *ExitEngine) checkVolatilityStops(closes, highs, lows []float64, profitPct float64, entry *EntrySignal) (ExitSignal, bool) {
	baseStop := -0.02
	if len(closes) >= 20 {
		atr := indicators.CalculateATR(highs, lows, closes, 14)
		volatilityPct := atr / closes[len(closes)-1] * 100

		switch {
		case volatilityPct > 3.0:
			baseStop = -0.025
		case volatilityPct > 2.0:
			baseStop = -0.02
		case volatilityPct < 0.5:
			baseStop = -0.015
		default:
			baseStop = -0.018
		}

		window := closes
		if len(closes) >= 50 {
			window = closes[len(closes)-50:]
		}
		switch classifyTrend(window) {
		case trendStrong:
			baseStop *= 1.2
		case trendChoppy:
			baseStop *= 0.8
		}
	}

	if entry != nil {
		confidenceMultiplier := 0.8 + entry.Confidence/100*0.4
		baseStop *= confidenceMultiplier
	}

	if profitPct > 0.01 {
		baseStop *= 1.3
	}

	finalStop := math.Max(baseStop, -0.03)

	if profitPct <= finalStop {
		return ExitSignal{
			Action:  ActionClose,
			Reason:  fmt.Sprintf("SMART STOP: %.2f%% (ATR-based %.2f%%)", profitPct*100, finalStop*100),
			Urgency: UrgencyHigh,
		}, true
	}

	return ExitSignal{}, false
}

// checkProfitTaking walks the five profit levels, scaled by entry
// confidence and volatility. Levels from Standard up defer to trend
// continuation strength before taking profit.
func (e *ExitEngine) checkProfitTaking(profitPct float64, closes, volumes []float64, side market.Side, entry *EntrySignal) (ExitSignal, bool) {
	entryConfidence := 50.0
	if entry != nil {
		entryConfidence = entry.Confidence
	}
	confidenceMultiplier := 0.7 + entryConfidence/100*0.6
	volatilityMultiplier := 0.8 + math.Min(marketVolatility(closes)*2, 0.4)

	baseLevels := []float64{0.003, 0.006, 0.012, 0.020, 0.035}
	levelNames := []string{"Quick Scalp", "Conservative", "Standard", "Aggressive", "Moon Shot"}
	levelConfidence := []float64{95, 85, 75, 65, 50}

	for i, base := range baseLevels {
		level := base * confidenceMultiplier * volatilityMultiplier
		if profitPct < level {
			continue
		}

		if i >= 2 {
			if continuationProbability(closes, volumes) > 70 {
				continue
			}
		}

		switch {
		case i == 0:
			return ExitSignal{
				Action:  ActionClose,
				Reason:  fmt.Sprintf("%s: %.2f%% (risk-free)", levelNames[i], profitPct*100),
				Urgency: UrgencyLow,
			}, true
		case i == 1:
			if marketWeakness(closes, volumes) {
				return ExitSignal{
					Action:  ActionClose,
					Reason:  fmt.Sprintf("%s: %.2f%% (weakness detected)", levelNames[i], profitPct*100),
					Urgency: UrgencyLow,
				}, true
			}
		default:
			strength := continuationStrength(closes, volumes, side)
			if strength < levelConfidence[i] {
				return ExitSignal{
					Action:  ActionClose,
					Reason:  fmt.Sprintf("%s: %.2f%% (market strength %.1f%%)", levelNames[i], profitPct*100, strength),
					Urgency: UrgencyLow,
				}, true
			}
		}
	}

	return ExitSignal{}, false
}

// checkStructureExits closes when the market structure flips against the
// position or a critical level breaks with some profit banked.
func (e *ExitEngine) checkStructureExits(closes, highs, lows, volumes []float64, side market.Side, profitPct float64) (ExitSignal, bool) {
	if len(closes) < 30 {
		return ExitSignal{}, false
	}

	structureResult := e.structure.Analyze(closes, highs, lows)
	keyLevels := criticalLevels(highs, lows)
	currentPrice := closes[len(closes)-1]

	broken := false
	breakReason := ""

	if side == market.SideLong {
		if structureResult.Structure == analysis.LowerHighsLowerLows {
			broken = true
			breakReason = "bearish structure confirmed"
		}
		if !broken {
			for _, level := range keyLevels {
				if level.Type == patterns.Support && currentPrice < level.Price*0.998 && profitPct > 0.002 {
					broken = true
					breakReason = fmt.Sprintf("support break at %.6f", level.Price)
					break
				}
			}
		}
	} else {
		if structureResult.Structure == analysis.HigherHighsHigherLows {
			broken = true
			breakReason = "bullish structure confirmed"
		}
		if !broken {
			for _, level := range keyLevels {
				if level.Type == patterns.Resistance && currentPrice > level.Price*1.002 && profitPct > 0.002 {
					broken = true
					breakReason = fmt.Sprintf("resistance break at %.6f", level.Price)
					break
				}
			}
		}
	}

	if broken {
		urgency := UrgencyLow
		if volumeConfirmation(volumes) {
			urgency = UrgencyMedium
		}
		return ExitSignal{
			Action:  ActionClose,
			Reason:  fmt.Sprintf("STRUCTURE BREAK: %s + profit %.2f%%", breakReason, profitPct*100),
			Urgency: urgency,
		}, true
	}

	return ExitSignal{}, false
}

// checkSessionExits protects profit into the weekend and locks small wins
// during dead sessions.
func (e *ExitEngine) checkSessionExits(profitPct float64, volumes []float64) (ExitSignal, bool) {
	weekend := e.session.WeekendApproaching()
	if weekend.Approaching {
		if profitPct > 0.001 {
			return ExitSignal{
				Action:  ActionClose,
				Reason:  fmt.Sprintf("WEEKEND APPROACH: secure %.2f%% profit", profitPct*100),
				Urgency: UrgencyMedium,
			}, true
		}
		if profitPct < -0.01 {
			return ExitSignal{
				Action:  ActionClose,
				Reason:  fmt.Sprintf("WEEKEND RISK: cut loss %.2f%%", profitPct*100),
				Urgency: UrgencyHigh,
			}, true
		}
	}

	adj := e.session.AdjustmentFactor()

	// asian_quiet and london_open are legacy session names retained for
	// exits driven by externally supplied session data.
	if adj.Session == session.OffSession || adj.Session == "asian_quiet" {
		if profitPct > 0.002 && profitPct < 0.008 {
			return ExitSignal{
				Action:  ActionClose,
				Reason:  fmt.Sprintf("QUIET SESSION: lock %.2f%% profit", profitPct*100),
				Urgency: UrgencyLow,
			}, true
		}
	}

	if adj.Session == "london_open" && len(volumes) >= 10 {
		avg := meanOf(volumes[len(volumes)-10:])
		spike := 1.0
		if avg > 0 {
			spike = volumes[len(volumes)-1] / avg
		}
		if spike > 2.0 && profitPct > 0.005 {
			return ExitSignal{
				Action:  ActionClose,
				Reason:  fmt.Sprintf("LONDON VOLATILITY: %.2f%% profit secured", profitPct*100),
				Urgency: UrgencyMedium,
			}, true
		}
	}

	return ExitSignal{}, false
}

// checkMomentumExits detects momentum rolling over: RSI divergence at
// extremes, or price pushing on while volume dries up.
func (e *ExitEngine) checkMomentumExits(closes, volumes []float64, side market.Side, profitPct float64) (ExitSignal, bool) {
	if len(closes) < 20 {
		return ExitSignal{}, false
	}

	rsi := indicators.CalculateRSI(closes, 14)
	rsiPrev := rsi
	if len(closes) > 14 {
		rsiPrev = indicators.CalculateRSI(closes[:len(closes)-1], 14)
	}

	priceMomentum := (closes[len(closes)-1] - closes[len(closes)-10]) / closes[len(closes)-10]

	volumeMomentum := 0.0
	if len(volumes) >= 10 {
		recentVol := meanOf(volumes[len(volumes)-5:])
		olderVol := meanOf(volumes[len(volumes)-10 : len(volumes)-5])
		if olderVol > 0 {
			volumeMomentum = (recentVol - olderVol) / olderVol
		}
	}

	exhausted := false
	reason := ""

	if side == market.SideLong {
		if rsi > 75 && rsi < rsiPrev && profitPct > 0.005 {
			exhausted = true
			reason = fmt.Sprintf("RSI divergence: %.1f", rsi)
		} else if priceMomentum > 0.01 && volumeMomentum < -0.2 && profitPct > 0.008 {
			exhausted = true
			reason = "volume divergence"
		}
	} else {
		if rsi < 25 && rsi > rsiPrev && profitPct > 0.005 {
			exhausted = true
			reason = fmt.Sprintf("RSI divergence: %.1f", rsi)
		} else if priceMomentum < -0.01 && volumeMomentum < -0.2 && profitPct > 0.008 {
			exhausted = true
			reason = "volume divergence"
		}
	}

	if exhausted {
		return ExitSignal{
			Action:  ActionClose,
			Reason:  fmt.Sprintf("MOMENTUM EXHAUSTION: %s + profit %.2f%%", reason, profitPct*100),
			Urgency: UrgencyMedium,
		}, true
	}

	return ExitSignal{}, false
}

// checkSentimentExits reads crowd extremes and volatility clustering, both
// of which favor banking profit before conditions turn.
func (e *ExitEngine) checkSentimentExits(closes, volumes []float64, side market.Side, profitPct float64) (ExitSignal, bool) {
	if len(closes) < 30 {
		return ExitSignal{}, false
	}

	sentiment := marketSentiment(closes, volumes)
	if sentiment == "extreme_fear" && side == market.SideShort && profitPct > 0.01 {
		return ExitSignal{
			Action:  ActionClose,
			Reason:  fmt.Sprintf("EXTREME FEAR: short exit + %.2f%%", profitPct*100),
			Urgency: UrgencyLow,
		}, true
	}
	if sentiment == "extreme_greed" && side == market.SideLong && profitPct > 0.01 {
		return ExitSignal{
			Action:  ActionClose,
			Reason:  fmt.Sprintf("EXTREME GREED: long exit + %.2f%%", profitPct*100),
			Urgency: UrgencyLow,
		}, true
	}

	if clustering, _ := volatilityClustering(closes); clustering && profitPct > 0.005 {
		return ExitSignal{
			Action:  ActionClose,
			Reason:  fmt.Sprintf("VOLATILITY CLUSTER: secure %.2f%% before chaos", profitPct*100),
			Urgency: UrgencyMedium,
		}, true
	}

	return ExitSignal{}, false
}

// holdConfidence grades how comfortable holding is, from profit cushion,
// trend regime, and the confidence the position was entered with.
func (e *ExitEngine) holdConfidence(profitPct float64, closes []float64, entry *EntrySignal) float64 {
	confidence := 50.0

	if profitPct > 0.01 {
		confidence += 20
	} else if profitPct > 0.005 {
		confidence += 10
	} else if profitPct < -0.01 {
		confidence -= 20
	}

	if len(closes) >= 20 {
		switch classifyTrend(closes) {
		case trendStrong:
			confidence += 15
		case trendChoppy:
			confidence -= 10
		}
	}

	if entry != nil {
		confidence += (entry.Confidence - 50) * 0.3
	}

	return math.Max(0, math.Min(100, confidence))
}

func holdSuggestion(confidence float64) HoldSuggestion {
	switch {
	case confidence > 80:
		return HoldStrong
	case confidence > 60:
		return HoldNormal
	case confidence > 40:
		return HoldWeak
	default:
		return HoldConsiderExit
	}
}

// criticalLevels finds pivot-based support/resistance levels, keeping the
// last 20. Needs at least 50 bars.
func criticalLevels(highs, lows []float64) []patterns.KeyLevel {
	if len(highs) < 50 {
		return nil
	}

	const window = 5
	var levels []patterns.KeyLevel

	for i := window; i < len(highs)-window; i++ {
		isHigh := true
		isLow := true
		for j := i - window; j <= i+window; j++ {
			if highs[i] < highs[j] {
				isHigh = false
			}
			if lows[i] > lows[j] {
				isLow = false
			}
		}
		if isHigh {
			levels = append(levels, patterns.KeyLevel{Price: highs[i], Type: patterns.Resistance})
		}
		if isLow {
			levels = append(levels, patterns.KeyLevel{Price: lows[i], Type: patterns.Support})
		}
	}

	if len(levels) > 20 {
		levels = levels[len(levels)-20:]
	}
	return levels
}

// volumeConfirmation reports whether recent volume runs 20% above average
func volumeConfirmation(volumes []float64) bool {
	if len(volumes) < 10 {
		return false
	}

	recentVol := meanOf(volumes[len(volumes)-5:])
	avgVol := meanOf(volumes)
	if len(volumes) >= 20 {
		avgVol = meanOf(volumes[len(volumes)-20:])
	}

	return recentVol > avgVol*1.2
}

// continuationProbability estimates (0-100) whether the current trend
// keeps going, from trend consistency and volume support.
func continuationProbability(closes, volumes []float64) float64 {
	if len(closes) < 20 {
		return 50
	}

	n := len(closes)
	recentTrend := (closes[n-1] - closes[n-10]) / closes[n-10]
	olderTrend := (closes[n-10] - closes[n-20]) / closes[n-20]

	denom := math.Max(math.Max(math.Abs(recentTrend), math.Abs(olderTrend)), 0.001)
	trendConsistency := 1 - math.Abs(recentTrend-olderTrend)/denom

	volumeSupport := 50.0
	if len(volumes) >= 20 {
		recentVol := meanOf(volumes[len(volumes)-10:])
		olderVol := meanOf(volumes[len(volumes)-20 : len(volumes)-10])
		if recentVol > olderVol {
			volumeSupport = 70
		}
	}

	return math.Min(trendConsistency*50+volumeSupport, 100)
}

// marketWeakness flags decelerating momentum confirmed by shrinking volume
func marketWeakness(closes, volumes []float64) bool {
	if len(closes) < 10 {
		return false
	}

	n := len(closes)
	recentMomentum := (closes[n-1] - closes[n-5]) / closes[n-5]
	olderMomentum := (closes[n-5] - closes[n-10]) / closes[n-10]

	momentumDeclining := recentMomentum < olderMomentum*0.8

	volumeDeclining := false
	if len(volumes) >= 10 {
		recentVol := meanOf(volumes[len(volumes)-5:])
		olderVol := meanOf(volumes[len(volumes)-10 : len(volumes)-5])
		volumeDeclining = recentVol < olderVol*0.9
	}

	return momentumDeclining && volumeDeclining
}

// continuationStrength scores (0-100) how likely the move continues in the
// position's favor.
func continuationStrength(closes, volumes []float64, side market.Side) float64 {
	if len(closes) < 20 {
		return 50
	}

	strength := 50.0

	momentum := (closes[len(closes)-1] - closes[len(closes)-10]) / closes[len(closes)-10]
	if side == market.SideLong && momentum > 0.01 {
		strength += 20
	} else if side == market.SideShort && momentum < -0.01 {
		strength += 20
	}

	if len(volumes) >= 20 {
		olderVol := meanOf(volumes[len(volumes)-20 : len(volumes)-10])
		if olderVol > 0 && meanOf(volumes[len(volumes)-10:])/olderVol > 1.1 {
			strength += 15
		}
	}

	strength += priceActionQuality(closes[len(closes)-20:]) * 15

	return math.Min(strength, 100)
}

// marketSentiment labels crowd extremes from price velocity, volume
// velocity, and volatility together.
func marketSentiment(closes, volumes []float64) string {
	if len(closes) < 30 {
		return "neutral"
	}

	n := len(closes)
	priceVelocity := (closes[n-1] - closes[n-10]) / closes[n-10]

	volumeVelocity := 0.0
	if len(volumes) >= 20 {
		recentVol := meanOf(volumes[len(volumes)-10:])
		olderVol := meanOf(volumes[len(volumes)-20 : len(volumes)-10])
		if olderVol > 0 {
			volumeVelocity = (recentVol - olderVol) / olderVol
		}
	}

	tail := closes[n-20:]
	volatility := stdOf(tail) / meanOf(tail)

	if priceVelocity > 0.02 && volumeVelocity > 0.3 && volatility > 0.03 {
		return "extreme_greed"
	}
	if priceVelocity < -0.02 && volumeVelocity > 0.3 && volatility > 0.03 {
		return "extreme_fear"
	}
	return "neutral"
}

// volatilityClustering compares recent return volatility against the prior
// window; a 1.5x jump marks a cluster.
func volatilityClustering(closes []float64) (bool, float64) {
	if len(closes) < 30 {
		return false, 0
	}

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		returns = append(returns, (closes[i]-closes[i-1])/closes[i-1])
	}

	recentVol := stdOf(returns[len(returns)-10:])
	historicalVol := stdOf(returns[len(returns)-30 : len(returns)-10])

	ratio := 1.0
	if historicalVol > 0 {
		ratio = recentVol / historicalVol
	}

	return ratio > 1.5, ratio
}
