package feeds

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"feedrace/src/interfaces"
	"feedrace/src/logger"
	"feedrace/src/models"
	"feedrace/src/utils"
)

// -----------------------------------------------------------------------------

const (
	codexHTTPTimeout  = 5 * time.Second
	codexBackfillBars = 60
)

// -----------------------------------------------------------------------------

// Codex polls a GraphQL bars endpoint on a fixed interval. On start it
// backfills a full window of closed bars, then each poll delivers the latest
// (still open) bar. Latency on the backfill is the request round trip; on
// polls it is measured downstream from the bar start timestamp.
type Codex struct {
	Name   string
	Logger *logger.Logger
	Config *models.MSourceConfig

	deps   interfaces.FeedDeps
	apiKey string
	client *http.Client

	mu        sync.Mutex
	isRunning bool
	done      chan struct{}
	pair      string
}

// codexSub pins the token context and generation captured at subscribe time.
// Deliveries are stamped from the snapshot, never from live fields, so a
// response landing after a token switch still carries the old generation and
// the ingest guard discards it.
type codexSub struct {
	pair       string
	address    string
	networkID  int
	generation uint64
	done       chan struct{}
}

// -----------------------------------------------------------------------------

func init() {
	Register("codex", NewCodex)
}

// NewCodex creates the codex polling feed
func NewCodex(cfg *models.MSourceConfig, log *logger.Logger, deps interfaces.FeedDeps) (interfaces.IFeed, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("codex: endpoint is required")
	}

	apiKey := cfg.APIKey()
	if apiKey == "" {
		log.Warning("codex: %s is not set, requests will likely be rejected", cfg.APIKeyEnv)
	}

	return &Codex{
		Name:   cfg.Name,
		Logger: log,
		Config: cfg,
		deps:   deps,
		apiKey: apiKey,
		client: &http.Client{Timeout: codexHTTPTimeout},
	}, nil
}

// -----------------------------------------------------------------------------

// GetName returns the feed name
func (c *Codex) GetName() string {
	return c.Name
}

// newSub snapshots the current token context for one subscription
func (c *Codex) newSub() *codexSub {
	token, generation := c.deps.Token()
	return &codexSub{
		pair:       token.Symbol,
		address:    token.Address,
		networkID:  token.NetworkID,
		generation: generation,
		done:       make(chan struct{}),
	}
}

// Start backfills the candle window and launches the poll loop
func (c *Codex) Start() error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return fmt.Errorf("codex feed is already running")
	}

	sub := c.newSub()
	c.pair = sub.pair
	c.done = sub.done
	c.isRunning = true
	c.mu.Unlock()

	c.Logger.Info("Starting codex feed for %s (endpoint %s)", sub.pair, utils.MaskAPIKey(c.Config.Endpoint))

	if err := c.backfill(sub); err != nil {
		c.Logger.Warning("codex backfill failed: %v", err)
	}

	go c.pollLoop(sub)
	return nil
}

// Stop terminates the poll loop
func (c *Codex) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isRunning {
		return nil
	}

	c.Logger.Info("Stopping codex feed for %s", c.pair)
	close(c.done)
	c.done = nil
	c.isRunning = false
	return nil
}

// Restart resubscribes against the current token context
func (c *Codex) Restart() error {
	if err := c.Stop(); err != nil {
		return err
	}
	return c.Start()
}

// GetStatus reports runtime status for diagnostics
func (c *Codex) GetStatus() *models.MFeedStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	return &models.MFeedStatus{
		SourceName:    c.Name,
		Running:       c.isRunning,
		Kind:          c.Config.Kind,
		TransportType: "graphql",
		Endpoint:      utils.MaskAPIKey(c.Config.Endpoint),
		Pair:          c.pair,
	}
}

// -----------------------------------------------------------------------------

func (c *Codex) pollLoop(sub *codexSub) {
	interval := time.Duration(c.Config.PollInterval)
	if interval <= 0 {
		interval = 5 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-sub.done:
			return
		case <-ticker.C:
			if err := c.poll(sub); err != nil {
				c.Logger.Warning("codex poll failed: %v", err)
			}
		}
	}
}

// backfill fetches a window of recent closed bars in one request. The whole
// batch carries the request round trip as its latency.
func (c *Codex) backfill(sub *codexSub) error {
	now := time.Now()
	from := now.Add(-time.Duration(codexBackfillBars+1) * time.Minute)

	start := time.Now()
	bars, err := c.fetchBars(sub, from.Unix(), now.Unix())
	if err != nil {
		return err
	}
	roundTrip := time.Since(start)

	if len(bars) == 0 {
		return fmt.Errorf("no bars returned for %s", sub.pair)
	}

	latest := bars[len(bars)-1]
	c.deps.OnCandles(c.Name, bars, models.MPriceUpdate{
		Source:     c.Name,
		Pair:       sub.pair,
		Price:      latest.Close,
		ObservedAt: time.Now(),
		CandleTime: latest.Time,
		RoundTrip:  roundTrip,
		Generation: sub.generation,
	})

	c.Logger.Info("codex backfilled %d bars for %s in %s", len(bars), sub.pair, roundTrip)
	return nil
}

// poll fetches the tail of the series and delivers the latest bar. Round trip
// is deliberately left at zero so latency is judged against the bar start.
func (c *Codex) poll(sub *codexSub) error {
	now := time.Now()
	from := now.Add(-3 * time.Minute)

	bars, err := c.fetchBars(sub, from.Unix(), now.Unix())
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		return fmt.Errorf("no bars returned for %s", sub.pair)
	}

	latest := bars[len(bars)-1]
	c.deps.OnCandles(c.Name, bars, models.MPriceUpdate{
		Source:     c.Name,
		Pair:       sub.pair,
		Price:      latest.Close,
		ObservedAt: time.Now(),
		CandleTime: latest.Time,
		Generation: sub.generation,
	})
	return nil
}

// -----------------------------------------------------------------------------

const codexBarsQuery = `query GetBars($symbol: String!, $from: Int!, $to: Int!, $resolution: String!) {
  getBars(symbol: $symbol, from: $from, to: $to, resolution: $resolution) {
    t o h l c
  }
}`

type codexBarsResponse struct {
	Data struct {
		GetBars struct {
			T []int64    `json:"t"`
			O []*float64 `json:"o"`
			H []*float64 `json:"h"`
			L []*float64 `json:"l"`
			C []*float64 `json:"c"`
		} `json:"getBars"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// fetchBars runs the getBars query and converts the columnar response into
// candles. Rows with a missing close are skipped.
func (c *Codex) fetchBars(sub *codexSub, from, to int64) ([]models.MCandle, error) {
	resolution := c.Config.Resolution
	if resolution == "" {
		resolution = "1"
	}

	body, err := json.Marshal(map[string]any{
		"query": codexBarsQuery,
		"variables": map[string]any{
			"symbol":     fmt.Sprintf("%s:%d", sub.address, sub.networkID),
			"from":       from,
			"to":         to,
			"resolution": resolution,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.Config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var parsed codexBarsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %s", parsed.Errors[0].Message)
	}

	return codexBarsToCandles(&parsed), nil
}

func codexBarsToCandles(resp *codexBarsResponse) []models.MCandle {
	series := resp.Data.GetBars
	candles := make([]models.MCandle, 0, len(series.T))

	for i, t := range series.T {
		if i >= len(series.C) || series.C[i] == nil {
			continue
		}
		closePrice := *series.C[i]

		candle := models.MCandle{
			Time:  t,
			Open:  closePrice,
			High:  closePrice,
			Low:   closePrice,
			Close: closePrice,
		}
		if i < len(series.O) && series.O[i] != nil {
			candle.Open = *series.O[i]
		}
		if i < len(series.H) && series.H[i] != nil {
			candle.High = *series.H[i]
		}
		if i < len(series.L) && series.L[i] != nil {
			candle.Low = *series.L[i]
		}
		candles = append(candles, candle)
	}

	return candles
}
