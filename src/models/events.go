package models

// -----------------------------------------------------------------------------

// MEvent is the envelope for every message sent to viewer sessions (and
// mirrored to the optional message-bus publisher).
type MEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// -----------------------------------------------------------------------------

// Viewer protocol event types. Tick/trade types are per-source and configured
// per data source; the constants below are the defaults for the three stock
// sources plus the source-independent events.
const (
	EventInit  = "INIT"
	EventReset = "RESET"
	EventIdea  = "IDEA"

	EventFastTick   = "FAST_TICK"
	EventFastTrade  = "FAST_TRADE"
	EventSlowTick   = "SLOW_TICK"
	EventSlowTrade  = "SLOW_TRADE"
	EventGeckoTick  = "GECKO_TICK"
	EventGeckoTrade = "GECKO_TRADE"
)

// -----------------------------------------------------------------------------

// MInitPayload is sent once to every newly connected session, before the
// per-source candle snapshots and trade replays.
type MInitPayload struct {
	Pairs  map[string]MPairQuote `json:"pairs"`
	Trades []MTrade              `json:"trades"`
	Ideas  []MIdea               `json:"ideas"`
}

// -----------------------------------------------------------------------------

// MTickPayload carries one price observation plus the full current candle
// window of the source that produced it.
type MTickPayload struct {
	Pair      string    `json:"pair"`
	Price     float64   `json:"price"`
	Timestamp int64     `json:"timestamp"` // unix milliseconds
	Latency   int64     `json:"latency"`   // milliseconds, clamped >= 0
	Candles   []MCandle `json:"candles"`
}

// -----------------------------------------------------------------------------

// MResetPayload announces that all per-source state was cleared for a token
// switch. Any tick that follows belongs to the new token.
type MResetPayload struct {
	Pair string `json:"pair"`
}
