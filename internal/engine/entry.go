package engine

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"smart-trading-engine/internal/analysis"
	"smart-trading-engine/internal/confluence"
	"smart-trading-engine/internal/indicators"
	"smart-trading-engine/internal/market"
	"smart-trading-engine/internal/patterns"
	"smart-trading-engine/internal/regime"
	"smart-trading-engine/internal/session"
	"smart-trading-engine/internal/sizing"
)

// Component weights: regime 25, patterns 20, liquidity 20, confluence 15,
// structure 10, volume 10. Session timing scales the total.
const (
	entryMinScore        = 8
	entryScoreDifference = 3
	maxTradeHistory      = 100
)

// EntryEngine scores entry opportunities by combining every analyzer into
// a weighted confluence score and a direction vote.
type EntryEngine struct {
	regime     *regime.Detector
	patterns   *patterns.Recognizer
	liquidity  *analysis.LiquidityAnalyzer
	confluence *confluence.Analyzer
	structure  *analysis.StructureAnalyzer
	volume     *analysis.VolumeProfileAnalyzer
	session    *session.Analyzer
	kelly      *sizing.KellyCalculator

	// balanceRef drives the engine-level risk caps; executable sizing
	// re-checks against the live balance.
	balanceRef float64

	// minConfidence gates the final action: directional signals under the
	// configured threshold are demoted to wait. Zero disables the gate.
	minConfidence float64

	mu      sync.Mutex
	history []market.TradeRecord
}

// NewEntryEngine wires an entry engine from its analyzers. The session
// analyzer and Kelly calculator are shared with the rest of the system.
func NewEntryEngine(sess *session.Analyzer, kelly *sizing.KellyCalculator) *EntryEngine {
	return &EntryEngine{
		regime:     regime.NewDetector(),
		patterns:   patterns.NewRecognizer(),
		liquidity:  analysis.NewLiquidityAnalyzer(),
		confluence: confluence.NewAnalyzer(),
		structure:  analysis.NewStructureAnalyzer(),
		volume:     analysis.NewVolumeProfileAnalyzer(),
		session:    sess,
		kelly:      kelly,
		balanceRef: 100,
	}
}

// Analyze runs the full entry analysis over a candle window. Fewer than
// 100 candles yields a wait signal with zero confidence.
func (e *EntryEngine) Analyze(candles []market.Candle) EntrySignal {
	if len(candles) < 100 {
		return EntrySignal{Action: ActionWait, Reason: "insufficient data for entry analysis"}
	}

	highs := market.Highs(candles)
	lows := market.Lows(candles)
	opens := market.Opens(candles)
	closes := market.Closes(candles)
	volumes := market.Volumes(candles)

	var snapshot AnalysisSnapshot
	var signals []string
	score := 0.0

	snapshot.Regime = e.regime.Detect(closes, volumes)
	score += scoreRegime(snapshot.Regime, closes)
	signals = append(signals, fmt.Sprintf("Regime: %s (%.1f%%)", snapshot.Regime.Regime, snapshot.Regime.Confidence))

	snapshot.Patterns = e.patterns.Detect(highs, lows, opens, closes, volumes)
	score += math.Min(snapshot.Patterns.Strength*0.2, 20)
	signals = append(signals, "Patterns: "+snapshot.Patterns.Primary)

	snapshot.Liquidity = e.liquidity.Analyze(closes, highs, lows, volumes)
	score += scoreLiquidity(snapshot.Liquidity)
	signals = append(signals, "Liquidity: "+string(snapshot.Liquidity.EnhancedBias))

	snapshot.Confluence = e.confluence.Analyze(closes)
	score += math.Min(snapshot.Confluence.AlignmentStrength*0.15, 15)
	signals = append(signals, fmt.Sprintf("Confluence: %.1f%%", snapshot.Confluence.AlignmentStrength))

	snapshot.Structure = e.structure.Analyze(closes, highs, lows)
	score += scoreStructure(snapshot.Structure)
	signals = append(signals, "Structure: "+string(snapshot.Structure.EnhancedBias))

	snapshot.Volume = e.volume.Analyze(closes, volumes, highs, lows)
	score += math.Min(snapshot.Volume.Strength*0.1, 10)
	signals = append(signals, "Volume: "+string(snapshot.Volume.Bias))

	snapshot.Session = e.session.AdjustmentFactor()
	finalScore := math.Min(score*sessionMultiplier(snapshot.Session, volumes), 100)

	direction := determineDirection(snapshot)

	kellyStats := e.kelly.UpdatePerformance(e.History())
	positionSizing := computeSizing(finalScore, kellyStats.KellyPercentage, snapshot, e.balanceRef)

	geniusScore, level := assessConfidence(finalScore, snapshot)
	riskReward := estimateRiskReward(snapshot)

	reason := fmt.Sprintf("Score: %.1f/100 | %s | Kelly: %.3f | Confidence: %s",
		finalScore, strings.Join(signals[:4], " | "), kellyStats.KellyPercentage, level)

	return e.applyConfidenceGate(EntrySignal{
		Action:          direction,
		Confidence:      finalScore,
		Reason:          reason,
		Signals:         signals,
		Snapshot:        snapshot,
		Sizing:          positionSizing,
		Kelly:           kellyStats,
		ConfidenceLevel: level,
		GeniusScore:     geniusScore,
		RiskReward:      riskReward,
	})
}

// SetMinConfidence sets the deployment-level confidence floor for taking
// directional signals.
func (e *EntryEngine) SetMinConfidence(threshold float64) {
	e.minConfidence = threshold
}

// applyConfidenceGate demotes directional signals below the configured
// confidence floor to wait, keeping the analysis intact in the response.
func (e *EntryEngine) applyConfidenceGate(signal EntrySignal) EntrySignal {
	if e.minConfidence <= 0 || signal.Action == ActionWait {
		return signal
	}
	if signal.Confidence >= e.minConfidence {
		return signal
	}
	signal.Action = ActionWait
	signal.Reason = fmt.Sprintf("%s | confidence %.1f below threshold %.1f",
		signal.Reason, signal.Confidence, e.minConfidence)
	return signal
}

// AddTrade records a closed trade for Kelly calibration, keeping the most
// recent 100.
func (e *EntryEngine) AddTrade(trade market.TradeRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, trade)
	if len(e.history) > maxTradeHistory {
		e.history = e.history[len(e.history)-maxTradeHistory:]
	}
}

// History returns a copy of the recorded trade history
func (e *EntryEngine) History() []market.TradeRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]market.TradeRecord, len(e.history))
	copy(out, e.history)
	return out
}

// scoreRegime weights the regime base score by its confidence, the
// regression trend strength, and volume confirmation.
func scoreRegime(r regime.Result, closes []float64) float64 {
	var base float64
	switch r.Regime {
	case regime.TrendingStrong:
		base = 25
	case regime.TrendingWeak:
		base = 18
	case regime.Volatile:
		base = 12
	case regime.Ranging:
		base = 8
	}

	confidenceMultiplier := r.Confidence / 100

	trendMultiplier := 1.0
	if len(closes) >= 50 {
		trendMultiplier = 1 + trendStrength(closes)/100
	}

	volumeConfirmation := math.Min(r.VolumeRatio, 2.5) / 2.5

	return base * confidenceMultiplier * trendMultiplier * volumeConfirmation
}

// scoreLiquidity starts at 10, adds for a directional enhanced bias and for
// proximity to the key level, capped at 20.
func scoreLiquidity(l analysis.LiquidityResult) float64 {
	score := 10.0

	switch l.EnhancedBias {
	case analysis.StrongBullish, analysis.StrongBearish:
		score += 10
	case analysis.Bullish, analysis.Bearish:
		score += 5
	}

	distance := l.DistanceToKey
	if l.Insufficient {
		distance = 999
	}
	if distance < 0.5 {
		score += 5
	} else if distance < 1.0 {
		score += 3
	}

	return math.Min(score, 20)
}

func scoreStructure(s analysis.StructureResult) float64 {
	switch s.EnhancedBias {
	case analysis.StrongBullish, analysis.StrongBearish:
		return 10
	case analysis.Bullish, analysis.Bearish:
		return 7
	default:
		return 3
	}
}

// sessionMultiplier folds recent volume into the session adjustment. The
// enhanced multiplier is capped at 1.5.
func sessionMultiplier(adj session.Adjustment, volumes []float64) float64 {
	if len(volumes) < 10 {
		return adj.Factor
	}

	currentVolume := meanOf(volumes[len(volumes)-10:])
	sessionAvg := currentVolume
	if len(volumes) >= 50 {
		sessionAvg = meanOf(volumes[len(volumes)-50:])
	}

	volumeMultiplier := 1.0
	if sessionAvg > 0 {
		volumeMultiplier = math.Min(currentVolume/sessionAvg, 2.0)
	}

	return math.Min(adj.Factor*volumeMultiplier, 1.5)
}

// determineDirection runs the weighted direction vote. Regime, patterns,
// and confluence carry weight 3; liquidity, volume, and structure weight 2.
// Strong confluence alignment multiplies both tallies by 1.5. Entry needs a
// tally of at least 8 and a margin over 3.
func determineDirection(s AnalysisSnapshot) Action {
	bullish := 0.0
	bearish := 0.0
	confidenceMultiplier := 1.0

	switch s.Regime.Bias {
	case regime.BiasBullish:
		bullish += 3
	case regime.BiasBearish:
		bearish += 3
	}

	if s.Patterns.BullishCount() > s.Patterns.BearishCount()+1 {
		bullish += 3
	} else if s.Patterns.BearishCount() > s.Patterns.BullishCount()+1 {
		bearish += 3
	}

	if s.Confluence.AlignmentStrength > 75 {
		confidenceMultiplier = 1.5
		switch s.Confluence.ShortTermBias {
		case indicators.TrendUp:
			bullish += 3
		case indicators.TrendDown:
			bearish += 3
		}
	}

	if s.Liquidity.EnhancedBias.IsBullish() {
		bullish += 2
	} else if s.Liquidity.EnhancedBias.IsBearish() {
		bearish += 2
	}

	if s.Volume.Bias.IsBullish() {
		bullish += 2
	} else if s.Volume.Bias.IsBearish() {
		bearish += 2
	}

	switch s.Structure.EnhancedBias {
	case analysis.Bullish:
		bullish += 2
	case analysis.Bearish:
		bearish += 2
	}

	bullish *= confidenceMultiplier
	bearish *= confidenceMultiplier

	if bullish >= entryMinScore && bullish > bearish+entryScoreDifference {
		return ActionLong
	}
	if bearish >= entryMinScore && bearish > bullish+entryScoreDifference {
		return ActionShort
	}
	return ActionWait
}

// computeSizing blends the Kelly percentage with the score and the average
// strength of confluence, patterns, and volume. The result is floored at
// 0.3% and capped by the balance tier.
func computeSizing(score, kellyPct float64, s AnalysisSnapshot, balance float64) PositionSizing {
	scoreMultiplier := score / 100

	alignment := s.Confluence.AlignmentStrength / 100
	patternStrength := s.Patterns.Strength / 100
	volumeStrength := s.Volume.Strength / 100

	geniusMultiplier := (alignment + patternStrength + volumeStrength) / 3
	geniusMultiplier = math.Max(0.5, math.Min(geniusMultiplier, 1.5))

	var maxRiskCap float64
	switch {
	case balance < 20:
		maxRiskCap = 0.03
	case balance < 100:
		maxRiskCap = 0.04
	case balance < 500:
		maxRiskCap = 0.03
	default:
		maxRiskCap = 0.025
	}

	finalSize := kellyPct * scoreMultiplier * geniusMultiplier
	finalSize = math.Max(finalSize, 0.003)
	finalSize = math.Min(finalSize, maxRiskCap)

	return PositionSizing{
		RiskPercentage:   finalSize,
		Leverage:         3.0,
		KellySuggested:   kellyPct,
		GeniusMultiplier: geniusMultiplier,
		ScoreMultiplier:  scoreMultiplier,
	}
}

// assessConfidence layers confluence, pattern, and volume bonuses on the
// final score and buckets the result.
func assessConfidence(finalScore float64, s AnalysisSnapshot) (float64, ConfidenceLevel) {
	confluenceBonus := s.Confluence.AlignmentStrength * 0.2
	patternBonus := math.Min(s.Patterns.Strength*0.15, 15)
	volumeBonus := math.Min(s.Volume.Strength*0.1, 10)

	geniusScore := math.Min(finalScore+confluenceBonus+patternBonus+volumeBonus, 100)

	var level ConfidenceLevel
	switch {
	case geniusScore >= 90:
		level = ConfidenceGenius
	case geniusScore >= 80:
		level = ConfidenceVeryHigh
	case geniusScore >= 70:
		level = ConfidenceHigh
	case geniusScore >= 60:
		level = ConfidenceMedium
	case geniusScore >= 45:
		level = ConfidenceLow
	default:
		level = ConfidenceVeryLow
	}

	return geniusScore, level
}

// estimateRiskReward estimates the achievable risk-reward ratio from
// confluence and pattern strength, capped at 2.5:1.
func estimateRiskReward(s AnalysisSnapshot) float64 {
	base := 1.0
	confluenceBonus := s.Confluence.AlignmentStrength / 100 * 0.5
	patternBonus := s.Patterns.Strength / 100 * 0.3
	return math.Min(base+confluenceBonus+patternBonus, 2.5)
}
