package models

import (
	"time"
)

// -----------------------------------------------------------------------------

// MSide defines the direction of a simulated position
type MSide string

const (
	SideLong  MSide = "LONG"
	SideShort MSide = "SHORT"
)

// -----------------------------------------------------------------------------

// MPosition represents an open simulated exposure awaiting exit. At most one
// position exists per source at any instant; it is owned exclusively by that
// source's simulator.
type MPosition struct {
	Side       MSide     `json:"side"`
	EntryPrice float64   `json:"entryPrice"`
	EntryTime  time.Time `json:"entryTime"`
}

// -----------------------------------------------------------------------------

// MTrade is the immutable record created when a simulated position closes.
// PnL is rounded to 2 decimal places before the trade is published.
type MTrade struct {
	ID         string  `json:"id"`
	Timestamp  int64   `json:"timestamp"` // close time, unix milliseconds
	Pair       string  `json:"pair"`
	Side       MSide   `json:"side"`
	EntryPrice float64 `json:"entryPrice"`
	ExitPrice  float64 `json:"exitPrice"`
	PnL        float64 `json:"pnl"`
	Latency    string  `json:"latency"` // display label, e.g. "Live" or "1523ms"
}

// -----------------------------------------------------------------------------

// MIdea is a broadcast-only trade suggestion derived from recent candle
// momentum. Ideas are never executed, not even on paper.
type MIdea struct {
	ID         string  `json:"id"`
	Timestamp  int64   `json:"timestamp"` // unix milliseconds
	Pair       string  `json:"pair"`
	Side       MSide   `json:"side"`
	Rationale  string  `json:"rationale"`
	Confidence float64 `json:"confidence"`
	TPPct      float64 `json:"tpPct"`
	SLPct      float64 `json:"slPct"`
}
