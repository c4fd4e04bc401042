package models

import (
	"time"
)

// -----------------------------------------------------------------------------

// MCandle represents one OHLC aggregation bucket for a fixed time interval.
// Candles are uniquely keyed by Time (unix seconds) within one source's window.
type MCandle struct {
	Time  int64   `json:"time"` // candle start, unix seconds
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// -----------------------------------------------------------------------------

// MPriceUpdate represents one normalized price observation handed from a feed
// adapter to the engine. A single struct covers every source; candle-interval
// sources set CandleTime, polled sources set RoundTrip instead.
type MPriceUpdate struct {
	Source     string        // feed adapter name, e.g. "goldrush"
	Pair       string        // token symbol the update belongs to
	Price      float64       // must be > 0, validated by the engine
	ObservedAt time.Time     // moment the adapter received the payload
	CandleTime int64         // candle start (unix seconds), 0 if not candle-based
	RoundTrip  time.Duration // request round-trip for polled sources, 0 otherwise
	Generation uint64        // token-context epoch captured at subscribe time
}

// -----------------------------------------------------------------------------

// MPairQuote is one row of the process-wide price table, holding the last
// published price per source alongside the blended display price.
type MPairQuote struct {
	Price      float64 `json:"price"`
	FastPrice  float64 `json:"fastPrice"`
	SlowPrice  float64 `json:"slowPrice"`
	GeckoPrice float64 `json:"geckoPrice"`
}
