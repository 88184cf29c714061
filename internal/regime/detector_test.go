package regime

import (
	"math"
	"testing"
)

func steadyUptrend(n int) ([]float64, []float64) {
	prices := make([]float64, n)
	volumes := make([]float64, n)
	for i := 0; i < n; i++ {
		prices[i] = 100 + float64(i)*0.5
		volumes[i] = 1000
	}
	return prices, volumes
}

func TestDetectInsufficientData(t *testing.T) {
	d := NewDetector()
	result := d.Detect([]float64{100, 101, 102}, []float64{1, 1, 1})
	if result.Regime != InsufficientData {
		t.Errorf("expected insufficient_data, got %s", result.Regime)
	}
	if result.Confidence != 0 {
		t.Errorf("expected zero confidence, got %f", result.Confidence)
	}
	if result.Bias != BiasNeutral {
		t.Errorf("expected neutral bias, got %s", result.Bias)
	}
}

func TestDetectSteadyUptrend(t *testing.T) {
	d := NewDetector()
	prices, volumes := steadyUptrend(100)
	result := d.Detect(prices, volumes)

	if result.Regime != TrendingStrong && result.Regime != TrendingWeak {
		t.Errorf("expected a trending regime for a monotone series, got %s", result.Regime)
	}
	if result.Bias != BiasBullish {
		t.Errorf("expected bullish bias, got %s", result.Bias)
	}
	if result.Confidence <= 0 || result.Confidence > 95 {
		t.Errorf("confidence out of range: %f", result.Confidence)
	}
	if result.TrendStrength != result.ADX {
		t.Errorf("trend strength should mirror ADX, got %f vs %f", result.TrendStrength, result.ADX)
	}
}

func TestDetectDowntrendBias(t *testing.T) {
	d := NewDetector()
	n := 100
	prices := make([]float64, n)
	volumes := make([]float64, n)
	for i := 0; i < n; i++ {
		prices[i] = 200 - float64(i)*0.5
		volumes[i] = 1000
	}
	result := d.Detect(prices, volumes)
	if result.Bias != BiasBearish {
		t.Errorf("expected bearish bias, got %s", result.Bias)
	}
}

func TestDetectVolumeRatio(t *testing.T) {
	d := NewDetector()
	prices, volumes := steadyUptrend(100)

	t.Run("spike over the 20-bar average", func(t *testing.T) {
		spiked := make([]float64, len(volumes))
		copy(spiked, volumes)
		spiked[len(spiked)-1] = 3000
		result := d.Detect(prices, spiked)
		// SMA includes the spike itself, so the ratio lands below 3x
		if result.VolumeRatio <= 1.5 || result.VolumeRatio >= 3.0 {
			t.Errorf("expected ratio between 1.5 and 3.0, got %f", result.VolumeRatio)
		}
	})

	t.Run("missing volume history yields zero ratio", func(t *testing.T) {
		result := d.Detect(prices, []float64{1000})
		if result.VolumeRatio != 0 {
			t.Errorf("expected 0, got %f", result.VolumeRatio)
		}
	})
}

func TestDetectRangingMarket(t *testing.T) {
	d := NewDetector()
	n := 120
	prices := make([]float64, n)
	volumes := make([]float64, n)
	for i := 0; i < n; i++ {
		// tight oscillation with no net direction
		prices[i] = 100 + 0.2*math.Sin(float64(i))
		volumes[i] = 1000
	}
	result := d.Detect(prices, volumes)
	if result.Regime == InsufficientData {
		t.Errorf("long oscillating series must classify, got %s", result.Regime)
	}
	if result.Bias == "" {
		t.Error("bias must always be set")
	}
}

func TestPercentile(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	if got := percentile(values, 50); got != 3 {
		t.Errorf("expected median 3, got %f", got)
	}
	if got := percentile(values, 0); got != 1 {
		t.Errorf("expected min 1, got %f", got)
	}
	if got := percentile(values, 100); got != 5 {
		t.Errorf("expected max 5, got %f", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Errorf("expected 0 for empty input, got %f", got)
	}
}
