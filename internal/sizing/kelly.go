// Package sizing computes position size from the Kelly criterion with
// fractional safety scaling, balance-tier risk brackets, auto leverage, and
// portfolio heat limits.
package sizing

import (
	"math"

	"smart-trading-engine/internal/market"
)

// PerformanceStats summarizes trade history for Kelly sizing
type PerformanceStats struct {
	WinRate         float64
	AvgWin          float64
	AvgLoss         float64
	KellyPercentage float64
	TotalTrades     int
	WinningTrades   int
	LosingTrades    int
}

// PositionSize is the sizing recommendation for one trade
type PositionSize struct {
	RiskPercentage       float64
	RiskAmount           float64
	KellySuggested       float64
	ConfidenceMultiplier float64
	MaxLeverage          float64
}

// PortfolioHeat reports total exposure across open positions
type PortfolioHeat struct {
	TotalHeat        float64
	PositionCount    int
	MaxHeatReached   bool
	MaxHeatThreshold float64
}

// KellyCalculator sizes positions with a fractional Kelly criterion
type KellyCalculator struct {
	defaultWinRate float64
	defaultAvgWin  float64
	defaultAvgLoss float64

	fees FeeSchedule
	tier FeeTier
}

// NewKellyCalculator creates a calculator with the given fee schedule and
// account tier.
func NewKellyCalculator(fees FeeSchedule, tier FeeTier) *KellyCalculator {
	return &KellyCalculator{
		defaultWinRate: 0.6,
		defaultAvgWin:  0.015,
		defaultAvgLoss: 0.01,
		fees:           fees,
		tier:           tier,
	}
}

// KellyPercentage computes f* = (bp - q) / b where b is the win/loss odds
// ratio. Invalid inputs fall back to 1%. The result is capped at 25% and
// scaled to 40% of Kelly above the 5% threshold.
func (k *KellyCalculator) KellyPercentage(winRate, avgWin, avgLoss float64) float64 {
	if avgLoss <= 0 || winRate <= 0 || winRate >= 1 {
		return 0.01
	}

	p := winRate
	q := 1 - p
	b := avgWin / math.Abs(avgLoss)

	kelly := (b*p - q) / b

	if kelly < 0 {
		kelly = 0
	}
	if kelly > 0.25 {
		kelly = 0.25
	}

	// Fractional Kelly above 5% to protect small accounts
	if kelly > 0.05 {
		kelly *= 0.4
	}

	return kelly
}

// UpdatePerformance derives win rate and average win/loss from trade
// history. Fewer than 5 trades uses the conservative defaults.
func (k *KellyCalculator) UpdatePerformance(trades []market.TradeRecord) PerformanceStats {
	if len(trades) < 5 {
		return PerformanceStats{
			WinRate:         k.defaultWinRate,
			AvgWin:          k.defaultAvgWin,
			AvgLoss:         k.defaultAvgLoss,
			KellyPercentage: k.KellyPercentage(k.defaultWinRate, k.defaultAvgWin, k.defaultAvgLoss),
			TotalTrades:     len(trades),
		}
	}

	var wins, losses []float64
	for _, t := range trades {
		if t.ProfitPct > 0 {
			wins = append(wins, t.ProfitPct)
		} else if t.ProfitPct < 0 {
			losses = append(losses, math.Abs(t.ProfitPct))
		}
	}

	winRate := float64(len(wins)) / float64(len(trades))
	avgWin := k.defaultAvgWin
	if len(wins) > 0 {
		avgWin = meanOf(wins)
	}
	avgLoss := k.defaultAvgLoss
	if len(losses) > 0 {
		avgLoss = meanOf(losses)
	}

	return PerformanceStats{
		WinRate:         winRate,
		AvgWin:          avgWin,
		AvgLoss:         avgLoss,
		KellyPercentage: k.KellyPercentage(winRate, avgWin, avgLoss),
		TotalTrades:     len(trades),
		WinningTrades:   len(wins),
		LosingTrades:    len(losses),
	}
}

// CalculatePositionSize turns the Kelly percentage and confidence score
// (0-100) into a risk amount, clamped to the balance-tier risk bracket and
// reduced by a fee buffer.
func (k *KellyCalculator) CalculatePositionSize(symbol string, balance, kellyPct, confidenceScore, volatility float64) PositionSize {
	confidenceMultiplier := confidenceScore / 100
	adjustedKelly := kellyPct * confidenceMultiplier

	minRisk, maxRisk := riskBracket(balance)

	finalRiskPct := adjustedKelly
	if finalRiskPct < minRisk {
		finalRiskPct = minRisk
	}
	if finalRiskPct > maxRisk {
		finalRiskPct = maxRisk
	}

	// Reserve the round-trip fee out of the risk budget
	riskAmount := balance * finalRiskPct
	feeBuffer := balance * k.fees.Rate(k.tier)
	riskAmount = math.Max(riskAmount-feeBuffer, 0)

	leverageCap := k.AutoLeverage(symbol, balance, volatility)

	return PositionSize{
		RiskPercentage:       finalRiskPct,
		RiskAmount:           riskAmount,
		KellySuggested:       kellyPct,
		ConfidenceMultiplier: confidenceMultiplier,
		MaxLeverage:          math.Min(leverageCap, 1+confidenceMultiplier*2),
	}
}

// riskBracket returns the min/max risk percentage for a balance tier
func riskBracket(balance float64) (float64, float64) {
	switch {
	case balance < 20:
		return 0.005, 0.035
	case balance < 100:
		return 0.007, 0.045
	case balance < 500:
		return 0.005, 0.04
	default:
		return 0.005, 0.035
	}
}

// Heat sums open-position notional against the balance. Accounts under 100
// allow 10% heat, larger accounts 12%.
func (k *KellyCalculator) Heat(positions []market.OpenPosition, balance float64) PortfolioHeat {
	if len(positions) == 0 {
		return PortfolioHeat{}
	}

	totalRisk := 0.0
	for _, p := range positions {
		totalRisk += p.Notional()
	}

	maxHeat := 0.12
	if balance < 100 {
		maxHeat = 0.10
	}

	currentHeat := 0.0
	if balance > 0 {
		currentHeat = totalRisk / balance
	}

	return PortfolioHeat{
		TotalHeat:        currentHeat,
		PositionCount:    len(positions),
		MaxHeatReached:   currentHeat > maxHeat,
		MaxHeatThreshold: maxHeat,
	}
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
