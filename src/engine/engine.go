package engine

import (
	"fmt"
	"sync"
	"time"

	"feedrace/src/candles"
	"feedrace/src/interfaces"
	"feedrace/src/logger"
	"feedrace/src/models"
	"feedrace/src/sim"
	"feedrace/src/utils"
)

// -----------------------------------------------------------------------------
// Core State Owner
// -----------------------------------------------------------------------------

// maxKeptIdeas bounds the idea history replayed to new viewers.
const maxKeptIdeas = 20

// Engine owns every piece of mutable state: the token context, the process-wide
// price table and the per-source candle windows and paper-trading simulators.
// Feed adapters deliver normalized updates concurrently (streaming push, poll
// timers); a single mutex serializes all mutation, which is plenty at
// one-minute-candle event rates. Adapters never hold the lock during I/O: they
// finish their network work first and only then call into the engine.
type Engine struct {
	Name   string
	Logger *logger.Logger

	sink      interfaces.IEventSink
	publisher interfaces.IPublisher // optional message-bus mirror

	mu         sync.Mutex
	token      models.MTokenContext
	generation uint64
	pairs      map[string]models.MPairQuote
	sources    map[string]*sourceState
	order      []string // sources in config order, for stable snapshots
	ideas      []models.MIdea

	feedsMu sync.RWMutex
	feeds   []interfaces.IFeed
}

// -----------------------------------------------------------------------------

// sourceState bundles one source's window, simulator and last published price
// (the circuit-breaker reference). Only touched under Engine.mu.
type sourceState struct {
	cfg    *models.MSourceConfig
	window *candles.Window
	trader *sim.Trader
	price  float64
}

// -----------------------------------------------------------------------------

// NewEngine creates the state owner for the configured sources, starting from
// the config's initial token context.
func NewEngine(cfg *models.MConfig, log *logger.Logger, sink interfaces.IEventSink) *Engine {
	e := &Engine{
		Name:       "Engine",
		Logger:     log,
		sink:       sink,
		token:      cfg.Token,
		generation: 1,
		pairs:      map[string]models.MPairQuote{cfg.Token.Symbol: {}},
		sources:    make(map[string]*sourceState),
	}

	for _, sc := range cfg.Sources {
		e.sources[sc.Name] = &sourceState{
			cfg:    sc,
			window: candles.NewWindow(candles.DefaultCapacity),
			trader: sim.NewTrader(sim.Opts{
				Pair:         cfg.Token.Symbol,
				Threshold:    sc.Threshold,
				PositionSize: sc.PositionSize,
				LatencyLabel: sc.LatencyLabel,
			}),
		}
		e.order = append(e.order, sc.Name)
	}

	return e
}

// -----------------------------------------------------------------------------

// SetPublisher attaches an optional message-bus mirror for broadcast events.
func (e *Engine) SetPublisher(p interfaces.IPublisher) {
	e.publisher = p
}

// SetSink attaches the broadcast sink. Called once during startup wiring,
// before any feed is started.
func (e *Engine) SetSink(sink interfaces.IEventSink) {
	e.sink = sink
}

// -----------------------------------------------------------------------------

// RegisterFeed hands the engine a feed adapter to restart on token switches
// and to include in status reports.
func (e *Engine) RegisterFeed(f interfaces.IFeed) {
	e.feedsMu.Lock()
	defer e.feedsMu.Unlock()
	e.feeds = append(e.feeds, f)
}

// -----------------------------------------------------------------------------

// Token returns the current token context and its generation. Adapters stamp
// the generation on every update so that stale in-flight data for a previous
// token is discarded after a switch.
func (e *Engine) Token() (models.MTokenContext, uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.token, e.generation
}

// -----------------------------------------------------------------------------
// Ingestion Path
// -----------------------------------------------------------------------------

// OnCandles is the single entry point for all normalized feed data: a batch of
// candles (one-element batches for live single-bar updates) plus the update
// metadata. It merges the window, refreshes the price table, broadcasts the
// source's tick event and runs the source's simulator, broadcasting a trade
// event if a position closed.
//
// Drops, in order: unknown source, stale generation, empty batch, non-positive
// price (silent), circuit-breaker trip (logged warning).
func (e *Engine) OnCandles(source string, batch []models.MCandle, update models.MPriceUpdate) {
	events := e.ingest(source, batch, update)
	for _, ev := range events {
		e.emit(ev)
	}
}

// -----------------------------------------------------------------------------

// ingest applies one update under the lock and returns the events to emit.
func (e *Engine) ingest(source string, batch []models.MCandle, update models.MPriceUpdate) []*models.MEvent {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.sources[source]
	if !ok {
		e.Logger.Error("%s : update from unknown source %q dropped", e.Name, source)
		return nil
	}

	if update.Generation != e.generation {
		e.Logger.Debug("%s : %s update for stale generation %d dropped (current %d)",
			e.Name, source, update.Generation, e.generation)
		return nil
	}

	if len(batch) == 0 {
		return nil
	}

	latest := batch[len(batch)-1]
	price := latest.Close
	if price <= 0 {
		// invalid sample: dropped without mutating any state
		return nil
	}

	// Volatility circuit breaker: a single-tick move beyond the bound is a
	// bad tick, not a market event.
	if st.cfg.CircuitBreakerPct > 0 && st.price > 0 {
		move := (price - st.price) / st.price
		if move < 0 {
			move = -move
		}
		if move > st.cfg.CircuitBreakerPct {
			e.Logger.Warning("%s : %s circuit breaker tripped: %.2f%% single-tick move (price %v, prev %v), tick dropped",
				e.Name, source, move*100, price, st.price)
			return nil
		}
	}

	window := st.window.Merge(batch)
	st.price = price

	pair := e.token.Symbol
	quote := e.pairs[pair]
	switch st.cfg.QuoteRole {
	case "fast":
		quote.Price = price
		quote.FastPrice = price
	case "slow":
		quote.SlowPrice = price
	case "gecko":
		quote.GeckoPrice = price
	default:
		quote.Price = price
	}
	e.pairs[pair] = quote

	latency := e.latencyFor(st.cfg, latest, update)

	events := make([]*models.MEvent, 0, 2)
	events = append(events, &models.MEvent{
		Type: st.cfg.TickEvent,
		Data: models.MTickPayload{
			Pair:      pair,
			Price:     price,
			Timestamp: update.ObservedAt.UnixMilli(),
			Latency:   latency,
			Candles:   window,
		},
	})

	if trade := st.trader.Evaluate(price); trade != nil {
		e.Logger.Info("%s : %s closed %s: entry %v exit %v pnl %.2f (total %.2f)",
			e.Name, source, trade.Side, trade.EntryPrice, trade.ExitPrice, trade.PnL, st.trader.TotalPnL())
		events = append(events, &models.MEvent{Type: st.cfg.TradeEvent, Data: *trade})
	}

	return events
}

// -----------------------------------------------------------------------------

// latencyFor computes the display latency in milliseconds. Candle sources
// measure arrival against the bar's nominal close (start + interval); polled
// sources report the pure request round-trip.
func (e *Engine) latencyFor(cfg *models.MSourceConfig, latest models.MCandle, update models.MPriceUpdate) int64 {
	if update.RoundTrip > 0 {
		return update.RoundTrip.Milliseconds()
	}

	candleTime := update.CandleTime
	if candleTime == 0 {
		candleTime = latest.Time
	}
	nominalClose := time.Unix(candleTime, 0).Add(time.Duration(cfg.Interval))
	return utils.ClampNonNegative(update.ObservedAt.Sub(nominalClose).Milliseconds())
}

// -----------------------------------------------------------------------------
// Token Switch
// -----------------------------------------------------------------------------

// SwitchToken atomically replaces the token context and resets every candle
// window and trading state, then broadcasts RESET and makes all feed adapters
// resubscribe against the new token. Any in-flight update for the old token
// carries the previous generation and is dropped on arrival.
func (e *Engine) SwitchToken(address, symbol string) error {
	if address == "" {
		return fmt.Errorf("token address is required")
	}
	if symbol == "" {
		symbol = "CUSTOM"
	}

	e.mu.Lock()
	e.Logger.Info("%s : switching token to %s (%s)", e.Name, symbol, address)

	e.token.Address = address
	e.token.Symbol = symbol
	e.generation++

	e.pairs = map[string]models.MPairQuote{symbol: {}}
	e.ideas = nil
	for _, st := range e.sources {
		st.window.Reset()
		st.trader.Reset()
		st.trader.SetPair(symbol)
		st.price = 0
	}
	e.mu.Unlock()

	// RESET reaches viewers before any tick of the new generation: adapters
	// only restart below, and old-generation ticks are dropped above.
	e.emit(&models.MEvent{Type: models.EventReset, Data: models.MResetPayload{Pair: symbol}})

	e.feedsMu.RLock()
	feeds := append([]interfaces.IFeed(nil), e.feeds...)
	e.feedsMu.RUnlock()

	for _, f := range feeds {
		go func(f interfaces.IFeed) {
			if err := f.Restart(); err != nil {
				e.Logger.Error("%s : feed %s restart failed: %v", e.Name, f.GetName(), err)
			}
		}(f)
	}

	return nil
}

// -----------------------------------------------------------------------------
// Session Sync
// -----------------------------------------------------------------------------

// Snapshot captures the replayable state for a newly connected viewer: the
// price table plus, per source, the current candle window and trade list
// (newest first, as stored).
func (e *Engine) Snapshot() *models.MSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := &models.MSnapshot{
		Pair:  e.token.Symbol,
		Pairs: make(map[string]models.MPairQuote, len(e.pairs)),
	}
	for k, v := range e.pairs {
		snap.Pairs[k] = v
	}

	for _, name := range e.order {
		st := e.sources[name]
		snap.Sources = append(snap.Sources, models.MSourceSnapshot{
			Name:       name,
			TickEvent:  st.cfg.TickEvent,
			TradeEvent: st.cfg.TradeEvent,
			Price:      st.price,
			Candles:    append([]models.MCandle(nil), st.window.Candles()...),
			Trades:     append([]models.MTrade(nil), st.trader.Trades()...),
		})
	}
	snap.Ideas = append([]models.MIdea(nil), e.ideas...)

	return snap
}

// -----------------------------------------------------------------------------

// CandlesFor returns a copy of one source's current window. The idea
// generator reads the slow source's window through this.
func (e *Engine) CandlesFor(source string) []models.MCandle {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.sources[source]
	if !ok {
		return nil
	}
	return append([]models.MCandle(nil), st.window.Candles()...)
}

// -----------------------------------------------------------------------------

// TotalPnL returns one source's running P&L sum, for diagnostics.
func (e *Engine) TotalPnL(source string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.sources[source]
	if !ok {
		return 0
	}
	return st.trader.TotalPnL()
}

// -----------------------------------------------------------------------------

// FeedStatuses reports the runtime status of every registered feed adapter.
func (e *Engine) FeedStatuses() []*models.MFeedStatus {
	e.feedsMu.RLock()
	defer e.feedsMu.RUnlock()

	statuses := make([]*models.MFeedStatus, 0, len(e.feeds))
	for _, f := range e.feeds {
		statuses = append(statuses, f.GetStatus())
	}
	return statuses
}

// -----------------------------------------------------------------------------

// Emit broadcasts an event to every viewer and mirrors it to the message-bus
// publisher when one is attached. Exposed for the idea generator; ideas are
// also retained for replay to new viewers.
func (e *Engine) Emit(event *models.MEvent) {
	if idea, ok := event.Data.(*models.MIdea); ok && event.Type == models.EventIdea {
		e.mu.Lock()
		e.ideas = append([]models.MIdea{*idea}, e.ideas...)
		if len(e.ideas) > maxKeptIdeas {
			e.ideas = e.ideas[:maxKeptIdeas]
		}
		e.mu.Unlock()
	}
	e.emit(event)
}

// -----------------------------------------------------------------------------

func (e *Engine) emit(event *models.MEvent) {
	if e.sink != nil {
		e.sink.Broadcast(event)
	}
	if e.publisher != nil {
		e.publisher.OnEvent(event)
	}
}
