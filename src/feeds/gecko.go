package feeds

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"feedrace/src/interfaces"
	"feedrace/src/logger"
	"feedrace/src/models"
	"feedrace/src/utils"
)

// -----------------------------------------------------------------------------

const geckoHTTPTimeout = 5 * time.Second

// geckoNetworks maps token network ids onto the aggregator's network slugs.
var geckoNetworks = map[int]string{
	1:          "eth",
	56:         "bsc",
	8453:       "base",
	1399811149: "solana",
}

// -----------------------------------------------------------------------------

// Gecko polls an on-chain DEX aggregator over plain REST. Unlike the other
// sources it has no direct token series: it first discovers the deepest pool
// for the token, then polls that pool's minute OHLCV. Every delivered batch
// carries the request round trip as its latency.
type Gecko struct {
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

// geckoSub pins the token context and generation captured at subscribe time,
// plus the pool discovered for that token. Deliveries are stamped from the
// snapshot so a response landing after a token switch still carries the old
// generation and the ingest guard discards it. pool is written only by the
// goroutine driving the subscription.
type geckoSub struct {
	pair       string
	address    string
	network    string
	generation uint64
	pool       string
	done       chan struct{}
}

// -----------------------------------------------------------------------------

func init() {
	Register("gecko", NewGecko)
}

// NewGecko creates the on-chain aggregator polling feed
func NewGecko(cfg *models.MSourceConfig, log *logger.Logger, deps interfaces.FeedDeps) (interfaces.IFeed, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("gecko: endpoint is required")
	}

	apiKey := cfg.APIKey()
	if apiKey == "" {
		log.Warning("gecko: %s is not set, running against public rate limits", cfg.APIKeyEnv)
	}

	return &Gecko{
		Name:   cfg.Name,
		Logger: log,
		Config: cfg,
		deps:   deps,
		apiKey: apiKey,
		client: &http.Client{Timeout: geckoHTTPTimeout},
	}, nil
}

// -----------------------------------------------------------------------------

// GetName returns the feed name
func (g *Gecko) GetName() string {
	return g.Name
}

// newSub snapshots the current token context for one subscription
func (g *Gecko) newSub() *geckoSub {
	token, generation := g.deps.Token()
	network := geckoNetworks[token.NetworkID]
	if network == "" {
		network = "solana"
	}
	return &geckoSub{
		pair:       token.Symbol,
		address:    token.Address,
		network:    network,
		generation: generation,
		done:       make(chan struct{}),
	}
}

// Start discovers the token's pool and launches the poll loop
func (g *Gecko) Start() error {
	g.mu.Lock()
	if g.isRunning {
		g.mu.Unlock()
		return fmt.Errorf("gecko feed is already running")
	}

	sub := g.newSub()
	g.pair = sub.pair
	g.done = sub.done
	g.isRunning = true
	g.mu.Unlock()

	g.Logger.Info("Starting gecko feed for %s on %s", sub.pair, sub.network)

	// Pool discovery failures are not fatal: the poll loop retries it.
	if err := g.discoverPool(sub); err != nil {
		g.Logger.Warning("gecko pool discovery failed: %v", err)
	}

	go g.pollLoop(sub)
	return nil
}

// Stop terminates the poll loop
func (g *Gecko) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.isRunning {
		return nil
	}

	g.Logger.Info("Stopping gecko feed for %s", g.pair)
	close(g.done)
	g.done = nil
	g.isRunning = false
	return nil
}

// Restart resubscribes against the current token context
func (g *Gecko) Restart() error {
	if err := g.Stop(); err != nil {
		return err
	}
	return g.Start()
}

// GetStatus reports runtime status for diagnostics
func (g *Gecko) GetStatus() *models.MFeedStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	return &models.MFeedStatus{
		SourceName:    g.Name,
		Running:       g.isRunning,
		Kind:          g.Config.Kind,
		TransportType: "rest",
		Endpoint:      utils.MaskAPIKey(g.Config.Endpoint),
		Pair:          g.pair,
	}
}

// -----------------------------------------------------------------------------

func (g *Gecko) pollLoop(sub *geckoSub) {
	interval := time.Duration(g.Config.PollInterval)
	if interval <= 0 {
		interval = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-sub.done:
			return
		case <-ticker.C:
			if sub.pool == "" {
				if err := g.discoverPool(sub); err != nil {
					g.Logger.Warning("gecko pool discovery failed: %v", err)
					continue
				}
			}
			if err := g.poll(sub); err != nil {
				g.Logger.Warning("gecko poll failed: %v", err)
			}
		}
	}
}

// -----------------------------------------------------------------------------

type geckoPoolsResponse struct {
	Data []struct {
		Attributes struct {
			Address string `json:"address"`
		} `json:"attributes"`
	} `json:"data"`
}

// discoverPool resolves the deepest pool trading the token. The aggregator
// returns pools ordered by liquidity, so the first entry wins.
func (g *Gecko) discoverPool(sub *geckoSub) error {
	url := fmt.Sprintf("%s/networks/%s/tokens/%s/pools", g.Config.Endpoint, sub.network, sub.address)

	var parsed geckoPoolsResponse
	if err := g.getJSON(url, &parsed); err != nil {
		return err
	}
	if len(parsed.Data) == 0 {
		return fmt.Errorf("no pools found for %s on %s", sub.address, sub.network)
	}

	sub.pool = parsed.Data[0].Attributes.Address
	g.Logger.Info("gecko resolved pool %s for %s", sub.pool, sub.pair)
	return nil
}

type geckoOHLCVResponse struct {
	Data struct {
		Attributes struct {
			// Rows are [timestamp, open, high, low, close, volume].
			OHLCVList [][]float64 `json:"ohlcv_list"`
		} `json:"attributes"`
	} `json:"data"`
}

// poll fetches minute OHLCV for the discovered pool and delivers the batch
func (g *Gecko) poll(sub *geckoSub) error {
	url := fmt.Sprintf("%s/networks/%s/pools/%s/ohlcv/minute", g.Config.Endpoint, sub.network, sub.pool)

	start := time.Now()
	var parsed geckoOHLCVResponse
	if err := g.getJSON(url, &parsed); err != nil {
		return err
	}
	roundTrip := time.Since(start)

	candles := geckoRowsToCandles(parsed.Data.Attributes.OHLCVList)
	if len(candles) == 0 {
		return fmt.Errorf("no candles returned for pool %s", sub.pool)
	}

	latest := candles[len(candles)-1]
	g.deps.OnCandles(g.Name, candles, models.MPriceUpdate{
		Source:     g.Name,
		Pair:       sub.pair,
		Price:      latest.Close,
		ObservedAt: time.Now(),
		CandleTime: latest.Time,
		RoundTrip:  roundTrip,
		Generation: sub.generation,
	})
	return nil
}

// -----------------------------------------------------------------------------

func (g *Gecko) getJSON(url string, out any) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if g.apiKey != "" {
		req.Header.Set("x-api-key", g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// geckoRowsToCandles converts OHLCV rows into ascending candles. The
// aggregator returns newest rows first; short rows are skipped.
func geckoRowsToCandles(rows [][]float64) []models.MCandle {
	candles := make([]models.MCandle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 5 {
			continue
		}
		candles = append(candles, models.MCandle{
			Time:  int64(row[0]),
			Open:  row[1],
			High:  row[2],
			Low:   row[3],
			Close: row[4],
		})
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time < candles[j].Time })
	return candles
}
