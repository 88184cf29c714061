package sizing

import "math"

var (
	majorSymbols = map[string]bool{
		"BTCUSDT": true, "ETHUSDT": true, "BNBUSDT": true,
	}
	memeSymbols = map[string]bool{
		"DOGEUSDT": true, "SHIBUSDT": true, "PEPEUSDT": true,
	}
	altSymbols = map[string]bool{
		"ADAUSDT": true, "SOLUSDT": true, "MATICUSDT": true,
		"AVAXUSDT": true, "DOTUSDT": true, "LINKUSDT": true,
	}
)

// AutoLeverage picks a leverage from the balance tier, the symbol class,
// and current volatility, clamped to safety limits and rounded to one
// decimal. A volatility of zero means unknown and applies no adjustment.
func (k *KellyCalculator) AutoLeverage(symbol string, balance, volatility float64) float64 {
	var base float64
	switch {
	case balance < 20:
		base = 2.5
	case balance < 100:
		base = 3.5
	case balance < 500:
		base = 4.0
	default:
		base = 4.5
	}

	symbolAdjustment := 1.0
	switch {
	case majorSymbols[symbol]:
		symbolAdjustment = 1.2
	case memeSymbols[symbol]:
		symbolAdjustment = 0.7
	case altSymbols[symbol]:
		symbolAdjustment = 0.9
	}

	volatilityAdjustment := 1.0
	if volatility > 0 {
		switch {
		case volatility < 0.02:
			volatilityAdjustment = 1.3
		case volatility < 0.04:
			volatilityAdjustment = 1.0
		case volatility < 0.06:
			volatilityAdjustment = 0.8
		default:
			volatilityAdjustment = 0.6
		}
	}

	leverage := base * symbolAdjustment * volatilityAdjustment

	maxLeverage := 4.0
	if balance >= 100 {
		maxLeverage = 6.0
	}
	if leverage > maxLeverage {
		leverage = maxLeverage
	}
	if leverage < 1.5 {
		leverage = 1.5
	}

	return math.Round(leverage*10) / 10
}
