// Package session scores trading timing quality from the UTC clock: global
// market session, day of week, and scheduled news windows.
package session

import "time"

// Quality labels for a session band
type Quality string

const (
	QualityExcellent Quality = "EXCELLENT"
	QualityGood      Quality = "GOOD"
	QualityModerate  Quality = "MODERATE"
	QualityPoor      Quality = "POOR"
)

// Session names
const (
	LondonNewYorkOverlap = "london_newyork_overlap"
	London               = "london"
	NewYork              = "newyork"
	Asian                = "asian"
	OffSession           = "off_session"
)

// Adjustment holds the session multiplier and its components
type Adjustment struct {
	Session         string
	Factor          float64
	VolatilityBoost float64
	TimingBoost     float64
	DayAdjustment   float64
	NewsImpact      float64
	Hour            int
	Weekday         time.Weekday
	Recommendation  string
}

// WeekendStatus reports whether the weekend close-out window is active
type WeekendStatus struct {
	Approaching    bool
	IsFriday       bool
	IsEvening      bool
	HoursToWeekend int
	Recommendation string
}

type newsWindow struct {
	hour int
	name string
}

// Analyzer scores timing quality from the wall clock. The clock is
// injectable for tests; a nil clock uses UTC now.
type Analyzer struct {
	now func() time.Time

	newsTimes []newsWindow
}

// NewAnalyzer creates a session analyzer on the real UTC clock
func NewAnalyzer() *Analyzer {
	return NewAnalyzerWithClock(nil)
}

// NewAnalyzerWithClock creates a session analyzer with a custom clock
func NewAnalyzerWithClock(now func() time.Time) *Analyzer {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Analyzer{
		now: now,
		newsTimes: []newsWindow{
			{12, "EU Economic Data"},
			{13, "US Market Open"},
			{17, "US Economic Data"},
			{21, "US Market Close"},
		},
	}
}

var dayAdjustments = map[time.Weekday]float64{
	time.Monday:    1.0,
	time.Tuesday:   1.1,
	time.Wednesday: 1.15,
	time.Thursday:  1.1,
	time.Friday:    0.8,
	time.Saturday:  0.3,
	time.Sunday:    0.5,
}

// AdjustmentFactor computes the combined session multiplier, clamped to
// [0.3, 1.8].
func (a *Analyzer) AdjustmentFactor() Adjustment {
	now := a.now().UTC()
	hour := now.Hour()
	weekday := now.Weekday()

	session, volatilityBoost, timingBoost := identifySession(hour)

	dayAdjustment, ok := dayAdjustments[weekday]
	if !ok {
		dayAdjustment = 1.0
	}

	newsImpact := a.newsImpact(hour)

	factor := volatilityBoost * timingBoost * dayAdjustment * newsImpact
	if factor < 0.3 {
		factor = 0.3
	}
	if factor > 1.8 {
		factor = 1.8
	}

	return Adjustment{
		Session:         session,
		Factor:          factor,
		VolatilityBoost: volatilityBoost,
		TimingBoost:     timingBoost,
		DayAdjustment:   dayAdjustment,
		NewsImpact:      newsImpact,
		Hour:            hour,
		Weekday:         weekday,
		Recommendation:  recommendation(factor),
	}
}

// identifySession maps a UTC hour to a session band. Bands overlap; the
// first match wins, so the London-NY overlap shadows the individual
// sessions.
func identifySession(hour int) (string, float64, float64) {
	switch {
	case hour >= 12 && hour <= 16:
		return LondonNewYorkOverlap, 1.4, 1.3
	case hour >= 7 && hour <= 16:
		return London, 1.2, 1.1
	case hour >= 12 && hour <= 21:
		return NewYork, 1.15, 1.05
	case hour >= 23 || hour <= 8:
		return Asian, 0.85, 0.9
	default:
		return OffSession, 0.6, 0.7
	}
}

// newsImpact discounts hours within one hour of a scheduled news release,
// and the market open/close hours 0 and 1.
func (a *Analyzer) newsImpact(hour int) float64 {
	for _, news := range a.newsTimes {
		diff := hour - news.hour
		if diff < 0 {
			diff = -diff
		}
		if diff <= 1 {
			return 0.7
		}
	}

	if hour == 0 || hour == 1 {
		return 0.8
	}
	return 1.0
}

func recommendation(factor float64) string {
	switch {
	case factor >= 1.3:
		return "EXCELLENT - Prime trading time"
	case factor >= 1.1:
		return "GOOD - Favorable conditions"
	case factor >= 0.9:
		return "NORMAL - Standard conditions"
	case factor >= 0.7:
		return "CAUTION - Reduced activity"
	default:
		return "AVOID - Poor conditions"
	}
}

// SessionQuality labels the current session band
func (a *Analyzer) SessionQuality() Quality {
	hour := a.now().UTC().Hour()
	session, _, _ := identifySession(hour)
	switch session {
	case LondonNewYorkOverlap:
		return QualityExcellent
	case London, NewYork:
		return QualityGood
	case Asian:
		return QualityModerate
	default:
		return QualityPoor
	}
}

// WeekendApproaching reports whether positions should be wound down ahead
// of the weekend: Friday at or after 20:00 UTC.
func (a *Analyzer) WeekendApproaching() WeekendStatus {
	now := a.now().UTC()

	isFriday := now.Weekday() == time.Friday
	isEvening := now.Hour() >= 20
	approaching := isFriday && isEvening

	status := WeekendStatus{
		Approaching:    approaching,
		IsFriday:       isFriday,
		IsEvening:      isEvening,
		Recommendation: "NORMAL",
	}
	if isFriday {
		status.HoursToWeekend = 24 - now.Hour()
	}
	if approaching {
		status.Recommendation = "CLOSE_POSITIONS"
	}
	return status
}
