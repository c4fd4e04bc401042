package models

// -----------------------------------------------------------------------------

// MSourceSnapshot is one source's current state as replayed to a freshly
// connected viewer: the full candle window plus the closed-trade list,
// newest first.
type MSourceSnapshot struct {
	Name       string
	TickEvent  string
	TradeEvent string
	Price      float64
	Candles    []MCandle
	Trades     []MTrade
}

// -----------------------------------------------------------------------------

// MSnapshot is the whole replayable state for session sync.
type MSnapshot struct {
	Pair    string
	Pairs   map[string]MPairQuote
	Sources []MSourceSnapshot
	Ideas   []MIdea
}
