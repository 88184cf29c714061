package indicators

// Trend represents a simple trend direction classification
type Trend string

const (
	TrendUp       Trend = "uptrend"
	TrendDown     Trend = "downtrend"
	TrendSideways Trend = "sideways"
	TrendNeutral  Trend = "neutral"
)

// DetectTrend classifies the trend of a price window by comparing a 10-bar
// SMA against a 20-bar SMA with a 0.2% dead zone. Fewer than 10 prices is
// neutral.
func DetectTrend(prices []float64) Trend {
	if len(prices) < 10 {
		return TrendNeutral
	}

	shortMA := CalculateSMA(prices, 10)
	longMA := CalculateSMA(prices, 20)
	if len(prices) < 20 {
		longMA = CalculateSMA(prices, len(prices))
	}

	if shortMA > longMA*1.002 {
		return TrendUp
	}
	if shortMA < longMA*0.998 {
		return TrendDown
	}
	return TrendSideways
}
