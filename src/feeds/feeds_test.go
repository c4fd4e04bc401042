package feeds

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"feedrace/src/interfaces"
	"feedrace/src/logger"
	"feedrace/src/models"
)

// -----------------------------------------------------------------------------

func TestParseGoldRushMessageArray(t *testing.T) {
	message := []byte(`{
		"event": "ohlcv_update",
		"data": [
			{"timestamp": "2025-01-01T00:00:00Z", "open": 1.0, "high": 1.2, "low": 0.9, "close": 1.1},
			{"timestamp": "2025-01-01T00:01:00Z", "open": 1.1, "high": 1.3, "low": 1.0, "close": 1.2}
		]
	}`)

	candles, err := parseGoldRushMessage(message)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	if candles[0].Time != 1735689600 {
		t.Errorf("expected unix timestamp 1735689600, got %d", candles[0].Time)
	}
	if candles[1].Close != 1.2 {
		t.Errorf("expected close 1.2, got %f", candles[1].Close)
	}
}

func TestParseGoldRushMessageSingleObject(t *testing.T) {
	message := []byte(`{
		"event": "ohlcv_update",
		"data": {"timestamp": "2025-01-01T00:00:00Z", "open": 2.0, "high": 2.0, "low": 2.0, "close": 2.0}
	}`)

	candles, err := parseGoldRushMessage(message)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candles) != 1 {
		t.Fatalf("expected 1 candle, got %d", len(candles))
	}
	if candles[0].Close != 2.0 {
		t.Errorf("expected close 2.0, got %f", candles[0].Close)
	}
}

func TestParseGoldRushMessageQuoteRateFallback(t *testing.T) {
	message := []byte(`{
		"event": "ohlcv_update",
		"data": [{"timestamp": "2025-01-01T00:00:00Z", "open": 1.0, "high": 1.0, "low": 1.0, "quote_rate_usd": 0.5}]
	}`)

	candles, err := parseGoldRushMessage(message)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candles[0].Close != 0.5 {
		t.Errorf("expected quote_rate_usd fallback 0.5, got %f", candles[0].Close)
	}
}

func TestParseGoldRushMessageEmptyData(t *testing.T) {
	candles, err := parseGoldRushMessage([]byte(`{"event": "heartbeat"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candles != nil {
		t.Errorf("expected nil candles for dataless frame, got %v", candles)
	}
}

func TestParseGoldRushMessageBadTimestamp(t *testing.T) {
	message := []byte(`{
		"event": "ohlcv_update",
		"data": [{"timestamp": "not-a-time", "close": 1.0}]
	}`)

	if _, err := parseGoldRushMessage(message); err == nil {
		t.Error("expected error for invalid timestamp")
	}
}

// -----------------------------------------------------------------------------

func TestCodexBarsToCandles(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	resp := &codexBarsResponse{}
	resp.Data.GetBars.T = []int64{1700000000, 1700000060, 1700000120}
	resp.Data.GetBars.O = []*float64{f(1.0), f(1.1), nil}
	resp.Data.GetBars.H = []*float64{f(1.2), f(1.3), f(1.4)}
	resp.Data.GetBars.L = []*float64{f(0.9), f(1.0), f(1.1)}
	resp.Data.GetBars.C = []*float64{f(1.1), nil, f(1.3)}

	candles := codexBarsToCandles(resp)

	// the row with a nil close is dropped entirely
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	if candles[0].Time != 1700000000 {
		t.Errorf("expected unix timestamp 1700000000, got %d", candles[0].Time)
	}
	// a nil open falls back to the close price
	if candles[1].Open != 1.3 {
		t.Errorf("expected open fallback 1.3, got %f", candles[1].Open)
	}
}

// -----------------------------------------------------------------------------

func TestGeckoRowsToCandles(t *testing.T) {
	rows := [][]float64{
		{1700000120, 1.2, 1.4, 1.1, 1.3, 500},
		{1700000060, 1.1, 1.3, 1.0, 1.2, 400},
		{1700000000, 1.0}, // short row, skipped
	}

	candles := geckoRowsToCandles(rows)
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	// newest-first input comes out ascending
	if candles[0].Time != 1700000060 || candles[1].Time != 1700000120 {
		t.Errorf("expected ascending order, got %d then %d", candles[0].Time, candles[1].Time)
	}
	if candles[1].Close != 1.3 {
		t.Errorf("expected close 1.3, got %f", candles[1].Close)
	}
}

// -----------------------------------------------------------------------------

type stubDeps struct{}

func (stubDeps) OnCandles(string, []models.MCandle, models.MPriceUpdate) {}
func (stubDeps) Token() (models.MTokenContext, uint64) {
	return models.MTokenContext{Symbol: "BONK", Address: "addr", NetworkID: 1399811149}, 1
}

func TestRegistryHasBuiltinFeeds(t *testing.T) {
	for _, name := range []string{"goldrush", "codex", "gecko"} {
		if _, err := GetConstructor(name); err != nil {
			t.Errorf("expected %s to be registered: %v", name, err)
		}
	}
	if _, err := GetConstructor("unknown"); err == nil {
		t.Error("expected error for unknown feed")
	}
}

func TestFactoryCreateFeed(t *testing.T) {
	cfg := &models.MConfig{
		Sources: []*models.MSourceConfig{
			{Name: "codex", Kind: "graphql", Endpoint: "https://graph.example.com"},
		},
	}

	factory := NewFactory(cfg, logger.NewNopLogger(), interfaces.FeedDeps(stubDeps{}))

	feed, err := factory.CreateFeed("codex")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if feed.GetName() != "codex" {
		t.Errorf("expected feed name codex, got %s", feed.GetName())
	}

	if _, err := factory.CreateFeed("missing"); err == nil {
		t.Error("expected error for unconfigured source")
	}
}

// -----------------------------------------------------------------------------

// switchDeps is a FeedDeps fake whose token can be swapped mid-test, recording
// every delivered update.
type switchDeps struct {
	mu         sync.Mutex
	token      models.MTokenContext
	generation uint64
	updates    []models.MPriceUpdate
}

func (d *switchDeps) OnCandles(_ string, _ []models.MCandle, update models.MPriceUpdate) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updates = append(d.updates, update)
}

func (d *switchDeps) Token() (models.MTokenContext, uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.token, d.generation
}

func (d *switchDeps) switchTo(token models.MTokenContext, generation uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.token = token
	d.generation = generation
}

func (d *switchDeps) delivered() []models.MPriceUpdate {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.MPriceUpdate(nil), d.updates...)
}

// -----------------------------------------------------------------------------

func TestCodexPollStampsSubscribeTimeIdentity(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		fmt.Fprint(w, `{"data":{"getBars":{"t":[1700000000],"o":[1.0],"h":[1.2],"l":[0.9],"c":[1.1]}}}`)
	}))
	defer server.Close()

	deps := &switchDeps{
		token:      models.MTokenContext{Symbol: "BONK", Address: "oldaddr", NetworkID: 1399811149},
		generation: 1,
	}
	feed, err := NewCodex(&models.MSourceConfig{Name: "codex", Kind: "graphql", Endpoint: server.URL},
		logger.NewNopLogger(), deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := feed.(*Codex)
	sub := c.newSub()

	// The request goes out for the old token, then the token switches while
	// the response is still in flight.
	errCh := make(chan error, 1)
	go func() { errCh <- c.poll(sub) }()
	deps.switchTo(models.MTokenContext{Symbol: "NEW", Address: "newaddr", NetworkID: 1}, 2)
	close(release)

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("poll failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poll did not finish")
	}

	updates := deps.delivered()
	if len(updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(updates))
	}
	if updates[0].Generation != 1 || updates[0].Pair != "BONK" {
		t.Errorf("in-flight delivery must keep the subscribe-time identity, got generation %d pair %s",
			updates[0].Generation, updates[0].Pair)
	}
}

func TestGeckoPollStampsSubscribeTimeIdentity(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		fmt.Fprint(w, `{"data":{"attributes":{"ohlcv_list":[[1700000060,1.1,1.3,1.0,1.2,400]]}}}`)
	}))
	defer server.Close()

	deps := &switchDeps{
		token:      models.MTokenContext{Symbol: "BONK", Address: "oldaddr", NetworkID: 1399811149},
		generation: 1,
	}
	feed, err := NewGecko(&models.MSourceConfig{Name: "gecko", Kind: "rest", Endpoint: server.URL},
		logger.NewNopLogger(), deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g := feed.(*Gecko)
	sub := g.newSub()
	sub.pool = "pool1"

	errCh := make(chan error, 1)
	go func() { errCh <- g.poll(sub) }()
	deps.switchTo(models.MTokenContext{Symbol: "NEW", Address: "newaddr", NetworkID: 1}, 2)
	close(release)

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("poll failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poll did not finish")
	}

	updates := deps.delivered()
	if len(updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(updates))
	}
	if updates[0].Generation != 1 || updates[0].Pair != "BONK" {
		t.Errorf("in-flight delivery must keep the subscribe-time identity, got generation %d pair %s",
			updates[0].Generation, updates[0].Pair)
	}
}
