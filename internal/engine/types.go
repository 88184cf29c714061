// Package engine holds the entry and exit decision engines. The entry
// engine aggregates the analyzer packages into a weighted score and a
// direction vote; the exit engine runs a fixed-priority cascade of exit
// checks over open positions.
package engine

import (
	"smart-trading-engine/internal/analysis"
	"smart-trading-engine/internal/confluence"
	"smart-trading-engine/internal/patterns"
	"smart-trading-engine/internal/regime"
	"smart-trading-engine/internal/session"
	"smart-trading-engine/internal/sizing"
)

// Action is the decision produced by an engine pass
type Action string

const (
	ActionLong  Action = "long"
	ActionShort Action = "short"
	ActionWait  Action = "wait"
	ActionClose Action = "close"
	ActionHold  Action = "hold"
)

// Urgency ranks how quickly an exit should be acted on
type Urgency string

const (
	UrgencyCritical Urgency = "CRITICAL"
	UrgencyHigh     Urgency = "HIGH"
	UrgencyMedium   Urgency = "MEDIUM"
	UrgencyLow      Urgency = "LOW"
	UrgencyNone     Urgency = "NONE"
)

// ConfidenceLevel buckets the assessed entry confidence
type ConfidenceLevel string

const (
	ConfidenceGenius   ConfidenceLevel = "GENIUS"
	ConfidenceVeryHigh ConfidenceLevel = "VERY_HIGH"
	ConfidenceHigh     ConfidenceLevel = "HIGH"
	ConfidenceMedium   ConfidenceLevel = "MEDIUM"
	ConfidenceLow      ConfidenceLevel = "LOW"
	ConfidenceVeryLow  ConfidenceLevel = "VERY_LOW"
)

// HoldSuggestion grades how firmly a position should be held
type HoldSuggestion string

const (
	HoldStrong       HoldSuggestion = "STRONG_HOLD"
	HoldNormal       HoldSuggestion = "HOLD"
	HoldWeak         HoldSuggestion = "WEAK_HOLD"
	HoldConsiderExit HoldSuggestion = "CONSIDER_EXIT"
)

// AnalysisSnapshot carries the typed result of every analyzer that fed an
// entry decision. Consumers pick the fields they need instead of digging
// through nested maps.
type AnalysisSnapshot struct {
	Regime     regime.Result
	Patterns   patterns.Result
	Liquidity  analysis.LiquidityResult
	Confluence confluence.Result
	Structure  analysis.StructureResult
	Volume     analysis.VolumeProfileResult
	Session    session.Adjustment
}

// PositionSizing is the engine-level sizing recommendation attached to an
// entry signal. The executable size still goes through the Kelly
// calculator at order time.
type PositionSizing struct {
	RiskPercentage   float64
	Leverage         float64
	KellySuggested   float64
	GeniusMultiplier float64
	ScoreMultiplier  float64
}

// EntrySignal is the full outcome of one entry analysis pass
type EntrySignal struct {
	Action          Action
	Confidence      float64
	Reason          string
	Signals         []string
	Snapshot        AnalysisSnapshot
	Sizing          PositionSizing
	Kelly           sizing.PerformanceStats
	ConfidenceLevel ConfidenceLevel
	GeniusScore     float64
	RiskReward      float64
}

// ExitSignal is the outcome of one exit analysis pass
type ExitSignal struct {
	Action         Action
	Reason         string
	Urgency        Urgency
	HoldConfidence float64
	Suggestion     HoldSuggestion
}
