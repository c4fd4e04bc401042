package ideas

import (
	"time"

	"github.com/google/uuid"

	"feedrace/src/logger"
	"feedrace/src/models"
)

// -----------------------------------------------------------------------------

const (
	// minMovePct is the minimum two-bar move required to call momentum.
	minMovePct = 0.0005

	defaultInterval = 45 * time.Second
	defaultTPPct    = 0.01
	defaultSLPct    = 0.005
	confidence      = 0.8
)

// -----------------------------------------------------------------------------

// Analyze inspects the tail of a candle window for short-term momentum: two
// consecutive bars in the same direction plus a close-over-close move beyond
// minMovePct. Returns nil when there is no signal.
func Analyze(pair string, candles []models.MCandle) *models.MIdea {
	if len(candles) < 2 {
		return nil
	}

	last := candles[len(candles)-1]
	prev := candles[len(candles)-2]
	if prev.Close <= 0 {
		return nil
	}

	change := (last.Close - prev.Close) / prev.Close

	var side models.MSide
	switch {
	case last.Close > last.Open && prev.Close > prev.Open && change > minMovePct:
		side = models.SideLong
	case last.Close < last.Open && prev.Close < prev.Open && change < -minMovePct:
		side = models.SideShort
	default:
		return nil
	}

	rationale := "Two consecutive green candles with rising close, momentum continuation expected"
	if side == models.SideShort {
		rationale = "Two consecutive red candles with falling close, momentum continuation expected"
	}

	return &models.MIdea{
		ID:         uuid.New().String(),
		Timestamp:  time.Now().UnixMilli(),
		Pair:       pair,
		Side:       side,
		Rationale:  rationale,
		Confidence: confidence,
		TPPct:      defaultTPPct,
		SLPct:      defaultSLPct,
	}
}

// -----------------------------------------------------------------------------

// CandleSource provides the candle window the generator reasons over plus
// the current token, so ideas always carry the active pair.
type CandleSource interface {
	CandlesFor(source string) []models.MCandle
	Token() (models.MTokenContext, uint64)
	Emit(event *models.MEvent)
}

// Generator periodically analyzes one source's window and publishes trade
// ideas as events. It keeps the last few so new viewers can be replayed.
type Generator struct {
	Name   string
	Logger *logger.Logger

	source   CandleSource
	feed     string
	interval time.Duration
}

// NewGenerator creates an idea generator reading the given feed's window
func NewGenerator(log *logger.Logger, source CandleSource, feed string, interval time.Duration) *Generator {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Generator{
		Name:     "idea-generator",
		Logger:   log,
		source:   source,
		feed:     feed,
		interval: interval,
	}
}

// Run analyzes on a fixed cadence until done is closed
func (g *Generator) Run(done <-chan struct{}) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			g.tick()
		}
	}
}

func (g *Generator) tick() {
	candles := g.source.CandlesFor(g.feed)
	token, _ := g.source.Token()

	idea := Analyze(token.Symbol, candles)
	if idea == nil {
		return
	}

	g.Logger.Info("[%s] %s idea for %s (confidence %.1f)", g.Name, idea.Side, idea.Pair, idea.Confidence)
	g.source.Emit(&models.MEvent{Type: models.EventIdea, Data: idea})
}
