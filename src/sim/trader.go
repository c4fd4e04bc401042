package sim

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"feedrace/src/models"
)

// -----------------------------------------------------------------------------

// Simulator defaults, tunable per source through config.
const (
	DefaultThreshold    = 0.000001 // momentum trigger, fraction of previous price
	DefaultPositionSize = 1e8      // scales price deltas into P&L dollars
	DefaultMaxHold      = 10 * time.Second
	MaxTrades           = 50 // most-recent-first trade list cap
)

// -----------------------------------------------------------------------------

// Trader is one source's paper-trading state machine. Two states: flat (no
// position) and in-position. A new price sample either opens a position on a
// momentum move past the threshold, closes the open position on an adverse
// tick-to-tick move or on the hold cap, or does nothing.
//
// A Trader is owned exclusively by one source; it never reads another
// source's price or position. That isolation is the whole point: each feed's
// P&L reflects only its own latency.
type Trader struct {
	pair         string
	threshold    float64
	positionSize float64
	maxHold      time.Duration
	latencyLabel string

	// now is injectable for deterministic hold-duration tests
	now func() time.Time

	position  *models.MPosition
	lastPrice float64
	hasLast   bool
	trades    []models.MTrade // newest first, len <= MaxTrades
	totalPnL  float64
}

// -----------------------------------------------------------------------------

// Opts tunes a Trader. Zero values fall back to the package defaults.
type Opts struct {
	Pair         string
	Threshold    float64
	PositionSize float64
	MaxHold      time.Duration
	LatencyLabel string
	Now          func() time.Time
}

// -----------------------------------------------------------------------------

// NewTrader creates a flat Trader.
func NewTrader(opts Opts) *Trader {
	if opts.Threshold == 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.PositionSize == 0 {
		opts.PositionSize = DefaultPositionSize
	}
	if opts.MaxHold == 0 {
		opts.MaxHold = DefaultMaxHold
	}
	if opts.LatencyLabel == "" {
		opts.LatencyLabel = "Live"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Trader{
		pair:         opts.Pair,
		threshold:    opts.Threshold,
		positionSize: opts.PositionSize,
		maxHold:      opts.MaxHold,
		latencyLabel: opts.LatencyLabel,
		now:          opts.Now,
	}
}

// -----------------------------------------------------------------------------

// Evaluate feeds one price sample through the state machine and returns the
// closed trade if this sample closed a position, nil otherwise.
//
// A non-positive price is an invalid sample: the whole evaluation is a no-op
// and lastPrice keeps its previous value. The very first valid sample (and
// the first after a reset) only records lastPrice; a position can never open
// without a previous price to compare against.
//
// Exit rule, uniform across sources: adverse tick-to-tick move past the
// threshold, or hold duration past maxHold, whichever comes first.
func (t *Trader) Evaluate(price float64) *models.MTrade {
	if price <= 0 {
		return nil
	}

	if !t.hasLast {
		t.lastPrice = price
		t.hasLast = true
		return nil
	}

	prev := t.lastPrice
	t.lastPrice = price

	priceChange := (price - prev) / prev

	if t.position != nil {
		pos := t.position
		holdTime := t.now().Sub(pos.EntryTime)

		shouldExit := (pos.Side == models.SideLong && priceChange < -t.threshold) ||
			(pos.Side == models.SideShort && priceChange > t.threshold) ||
			holdTime > t.maxHold

		if !shouldExit {
			return nil
		}
		return t.closePosition(price)
	}

	if priceChange > t.threshold {
		t.openPosition(models.SideLong, price)
	} else if priceChange < -t.threshold {
		t.openPosition(models.SideShort, price)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Position returns the open position, nil when flat.
func (t *Trader) Position() *models.MPosition {
	return t.position
}

// -----------------------------------------------------------------------------

// LastPrice returns the last accepted price and whether one has been seen.
func (t *Trader) LastPrice() (float64, bool) {
	return t.lastPrice, t.hasLast
}

// -----------------------------------------------------------------------------

// Trades returns the closed-trade list, newest first, capped at MaxTrades.
func (t *Trader) Trades() []models.MTrade {
	return t.trades
}

// -----------------------------------------------------------------------------

// TotalPnL returns the running P&L sum. It accumulates on every close and is
// never recomputed from the trade list, so it survives list eviction.
func (t *Trader) TotalPnL() float64 {
	return t.totalPnL
}

// -----------------------------------------------------------------------------

// SetPair updates the pair stamped on future trades. Called on token switch,
// always together with Reset.
func (t *Trader) SetPair(pair string) {
	t.pair = pair
}

// -----------------------------------------------------------------------------

// Reset returns the machine to flat: position cleared, lastPrice cleared,
// trade history and running P&L dropped.
func (t *Trader) Reset() {
	t.position = nil
	t.lastPrice = 0
	t.hasLast = false
	t.trades = nil
	t.totalPnL = 0
}

// -----------------------------------------------------------------------------

func (t *Trader) openPosition(side models.MSide, price float64) {
	t.position = &models.MPosition{
		Side:       side,
		EntryPrice: price,
		EntryTime:  t.now(),
	}
}

// -----------------------------------------------------------------------------

func (t *Trader) closePosition(exitPrice float64) *models.MTrade {
	pos := t.position

	var pnl float64
	if pos.Side == models.SideLong {
		pnl = (exitPrice - pos.EntryPrice) * t.positionSize
	} else {
		pnl = (pos.EntryPrice - exitPrice) * t.positionSize
	}
	pnl = roundCents(pnl)

	trade := models.MTrade{
		ID:         uuid.NewString(),
		Timestamp:  t.now().UnixMilli(),
		Pair:       t.pair,
		Side:       pos.Side,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		PnL:        pnl,
		Latency:    t.latencyLabel,
	}

	t.trades = append([]models.MTrade{trade}, t.trades...)
	if len(t.trades) > MaxTrades {
		t.trades = t.trades[:MaxTrades]
	}
	t.totalPnL += pnl
	t.position = nil

	return &trade
}

// -----------------------------------------------------------------------------

// roundCents rounds a P&L figure to 2 decimal places so trades of the same
// source stay comparable regardless of the token's price magnitude.
func roundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
