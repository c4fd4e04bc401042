package candles

import (
	"sort"

	"feedrace/src/models"
)

// -----------------------------------------------------------------------------

// DefaultCapacity is the rolling window size: one hour of one-minute candles.
const DefaultCapacity = 60

// -----------------------------------------------------------------------------

// Window is one source's rolling candle history: a capped, time-ordered,
// deduplicated set of OHLC bars keyed by candle start time. Window performs
// no locking; the engine serializes access per source.
type Window struct {
	capacity int
	candles  []models.MCandle
}

// -----------------------------------------------------------------------------

// NewWindow creates an empty window. A non-positive capacity falls back to
// DefaultCapacity.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{capacity: capacity}
}

// -----------------------------------------------------------------------------

// Merge folds a batch of incoming candles into the window: last write wins per
// time bucket, the result is sorted ascending by time and truncated to the
// most recent capacity entries. Merging the same batch twice yields the same
// window. An empty batch is a no-op.
func (w *Window) Merge(incoming []models.MCandle) []models.MCandle {
	if len(incoming) == 0 {
		return w.candles
	}

	merged := make(map[int64]models.MCandle, len(w.candles)+len(incoming))
	for _, c := range w.candles {
		merged[c.Time] = c
	}
	for _, c := range incoming {
		merged[c.Time] = c
	}

	out := make([]models.MCandle, 0, len(merged))
	for _, c := range merged {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })

	if len(out) > w.capacity {
		out = out[len(out)-w.capacity:]
	}

	w.candles = out
	return w.candles
}

// -----------------------------------------------------------------------------

// Candles returns the current window, oldest first.
func (w *Window) Candles() []models.MCandle {
	return w.candles
}

// -----------------------------------------------------------------------------

// Len returns the number of candles currently held.
func (w *Window) Len() int {
	return len(w.candles)
}

// -----------------------------------------------------------------------------

// Latest returns the most recent candle, or false when the window is empty.
func (w *Window) Latest() (models.MCandle, bool) {
	if len(w.candles) == 0 {
		return models.MCandle{}, false
	}
	return w.candles[len(w.candles)-1], true
}

// -----------------------------------------------------------------------------

// Reset drops every candle. Called on token switch.
func (w *Window) Reset() {
	w.candles = nil
}
