package ideas

import (
	"testing"

	"feedrace/src/logger"
	"feedrace/src/models"
)

// -----------------------------------------------------------------------------

func candle(open, close float64) models.MCandle {
	high, low := open, close
	if close > open {
		high, low = close, open
	}
	return models.MCandle{Open: open, High: high, Low: low, Close: close}
}

func TestAnalyzeLongSignal(t *testing.T) {
	candles := []models.MCandle{
		candle(1.0000, 1.0001),
		candle(1.0001, 1.0005),
		candle(1.0005, 1.0015),
	}

	idea := Analyze("BONK/USD", candles)
	if idea == nil {
		t.Fatal("expected a long idea")
	}
	if idea.Side != models.SideLong {
		t.Errorf("expected LONG, got %s", idea.Side)
	}
	if idea.Pair != "BONK/USD" {
		t.Errorf("expected pair BONK/USD, got %s", idea.Pair)
	}
	if idea.Confidence != 0.8 {
		t.Errorf("expected confidence 0.8, got %f", idea.Confidence)
	}
	if idea.ID == "" || idea.Timestamp == 0 {
		t.Error("expected id and timestamp to be set")
	}
}

func TestAnalyzeShortSignal(t *testing.T) {
	candles := []models.MCandle{
		candle(1.0010, 1.0009),
		candle(1.0009, 1.0005),
		candle(1.0005, 0.9995),
	}

	idea := Analyze("BONK/USD", candles)
	if idea == nil {
		t.Fatal("expected a short idea")
	}
	if idea.Side != models.SideShort {
		t.Errorf("expected SHORT, got %s", idea.Side)
	}
}

func TestAnalyzeMixedColorsNoSignal(t *testing.T) {
	// net move is large enough but the previous bar is red
	candles := []models.MCandle{
		candle(1.0000, 1.0001),
		candle(1.0005, 1.0003),
		candle(1.0003, 1.0010),
	}

	if idea := Analyze("BONK/USD", candles); idea != nil {
		t.Errorf("expected no idea for mixed candle colors, got %+v", idea)
	}
}

func TestAnalyzeMoveTooSmall(t *testing.T) {
	// two green candles but the net move stays under the threshold
	candles := []models.MCandle{
		candle(1.00000, 1.00001),
		candle(1.00001, 1.00002),
		candle(1.00002, 1.00003),
	}

	if idea := Analyze("BONK/USD", candles); idea != nil {
		t.Errorf("expected no idea for a sub-threshold move, got %+v", idea)
	}
}

func TestAnalyzeTooFewCandles(t *testing.T) {
	candles := []models.MCandle{
		candle(1.0, 1.1),
	}

	if idea := Analyze("BONK/USD", candles); idea != nil {
		t.Error("expected no idea with fewer than 2 candles")
	}
}

func TestAnalyzeZeroPrevClose(t *testing.T) {
	candles := []models.MCandle{
		{Open: 0, Close: 0},
		candle(1.0, 1.1),
	}

	if idea := Analyze("BONK/USD", candles); idea != nil {
		t.Error("expected no idea when the previous close is zero")
	}
}

// -----------------------------------------------------------------------------

type fakeSource struct {
	candles []models.MCandle
	events  []*models.MEvent
}

func (f *fakeSource) CandlesFor(string) []models.MCandle { return f.candles }
func (f *fakeSource) Emit(ev *models.MEvent)             { f.events = append(f.events, ev) }
func (f *fakeSource) Token() (models.MTokenContext, uint64) {
	return models.MTokenContext{Symbol: "BONK/USD"}, 1
}

func TestGeneratorTickEmitsIdea(t *testing.T) {
	source := &fakeSource{candles: []models.MCandle{
		candle(1.0000, 1.0001),
		candle(1.0001, 1.0005),
		candle(1.0005, 1.0015),
	}}

	gen := NewGenerator(logger.NewNopLogger(), source, "codex", 0)
	gen.tick()

	if len(source.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(source.events))
	}
	if source.events[0].Type != models.EventIdea {
		t.Errorf("expected %s event, got %s", models.EventIdea, source.events[0].Type)
	}
	idea, ok := source.events[0].Data.(*models.MIdea)
	if !ok {
		t.Fatalf("expected *models.MIdea payload, got %T", source.events[0].Data)
	}
	if idea.Side != models.SideLong {
		t.Errorf("expected LONG idea, got %s", idea.Side)
	}
}

func TestGeneratorTickQuietOnNoSignal(t *testing.T) {
	source := &fakeSource{candles: []models.MCandle{
		candle(1.0, 1.0),
		candle(1.0, 1.0),
		candle(1.0, 1.0),
	}}

	gen := NewGenerator(logger.NewNopLogger(), source, "codex", 0)
	gen.tick()

	if len(source.events) != 0 {
		t.Errorf("expected no events, got %d", len(source.events))
	}
}
