package feeds

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"feedrace/src/interfaces"
	"feedrace/src/logger"
	"feedrace/src/models"
	"feedrace/src/utils"
)

// -----------------------------------------------------------------------------
// STRUCT DEFINITION
// -----------------------------------------------------------------------------

// GoldRush implements interfaces.IFeed for the low-latency streaming OHLCV
// feed. It subscribes to per-token one-minute candles over a websocket and
// delivers each received batch to the engine.
type GoldRush struct {
	Name   string
	Logger *logger.Logger
	Config *models.MSourceConfig

	deps   interfaces.FeedDeps
	apiKey string

	mu           sync.RWMutex
	conn         *websocket.Conn
	isRunning    bool
	recvMsgChann chan []byte
	done         chan struct{}

	// Captured at subscribe time; stamped on every update so the engine can
	// discard in-flight data after a token switch.
	generation uint64
	pair       string
	address    string
}

// goldrushChains maps token network ids onto the stream's chain names.
var goldrushChains = map[int]string{
	1:          "eth-mainnet",
	56:         "bsc-mainnet",
	8453:       "base-mainnet",
	1399811149: "solana-mainnet",
}

// -----------------------------------------------------------------------------
// CONSTRUCTOR AND REGISTRATION
// -----------------------------------------------------------------------------

func init() {
	// Register the feed with the name "goldrush" for dynamic creation
	if err := Register("goldrush", NewGoldRush); err != nil {
		fmt.Printf("Error registering GoldRush feed: %v\n", err)
	}
}

// -----------------------------------------------------------------------------

// NewGoldRush creates a new GoldRush feed instance.
// Matches the interfaces.IFeedConstructor signature.
func NewGoldRush(cfg *models.MSourceConfig, log *logger.Logger, deps interfaces.FeedDeps) (interfaces.IFeed, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("goldrush endpoint cannot be empty")
	}

	apiKey := cfg.APIKey()
	if apiKey == "" {
		log.Warning("%s : env %s is empty, stream auth will likely fail", cfg.Name, cfg.APIKeyEnv)
	}

	return &GoldRush{
		Name:   cfg.Name,
		Logger: log,
		Config: cfg,
		deps:   deps,
		apiKey: apiKey,
	}, nil
}

// -----------------------------------------------------------------------------
// IFeed IMPLEMENTATION
// -----------------------------------------------------------------------------

// GetName returns the feed name
func (g *GoldRush) GetName() string {
	return g.Name
}

// -----------------------------------------------------------------------------

// Start dials the stream and subscribes to the current token's candles.
func (g *GoldRush) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.isRunning {
		return fmt.Errorf("goldrush feed is already running")
	}

	token, generation := g.deps.Token()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.Dial(g.Config.Endpoint, nil)
	if err != nil {
		g.Logger.Error("%s : failed to connect to %s: %v", g.Name, g.Config.Endpoint, err)
		return fmt.Errorf("failed to connect to %s: %w", g.Config.Endpoint, err)
	}

	// Recreate channels for new connection
	g.recvMsgChann = make(chan []byte, 1000)
	g.done = make(chan struct{})

	g.conn = conn
	g.isRunning = true
	g.generation = generation
	g.pair = token.Symbol
	g.address = token.Address

	g.Logger.Info("%s : stream connected to %s", g.Name, utils.MaskAPIKey(g.Config.Endpoint))

	if err := g.subscribeLocked(token); err != nil {
		g.teardownLocked()
		return err
	}

	go g.receiveLoop(g.done)
	go g.processLoop(g.done, g.recvMsgChann)

	return nil
}

// -----------------------------------------------------------------------------

// Stop closes the stream connection.
func (g *GoldRush) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.isRunning {
		return nil
	}
	g.teardownLocked()
	g.Logger.Info("%s : stream disconnected", g.Name)
	return nil
}

// -----------------------------------------------------------------------------

// Restart resubscribes against the current token context.
func (g *GoldRush) Restart() error {
	if err := g.Stop(); err != nil {
		return err
	}
	return g.Start()
}

// -----------------------------------------------------------------------------

// GetStatus reports runtime status for diagnostics
func (g *GoldRush) GetStatus() *models.MFeedStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return &models.MFeedStatus{
		SourceName:    g.Name,
		Running:       g.isRunning,
		Kind:          g.Config.Kind,
		TransportType: "websocket",
		Endpoint:      utils.MaskAPIKey(g.Config.Endpoint),
		Pair:          g.pair,
	}
}

// -----------------------------------------------------------------------------
// PRIVATE METHODS
// -----------------------------------------------------------------------------

// subscribeLocked sends the OHLCV subscription for the current token.
// Caller holds g.mu.
func (g *GoldRush) subscribeLocked(token models.MTokenContext) error {
	chain := goldrushChains[token.NetworkID]
	if chain == "" {
		chain = "solana-mainnet"
	}

	subMsg, err := json.Marshal(map[string]any{
		"method":  "subscribe",
		"api_key": g.apiKey,
		"params": map[string]any{
			"chain_name":      chain,
			"token_addresses": []string{token.Address},
			"interval":        "ONE_MINUTE",
			"timeframe":       "ONE_HOUR",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to serialize subscription message: %w", err)
	}

	if err := g.conn.WriteMessage(websocket.TextMessage, subMsg); err != nil {
		return fmt.Errorf("failed to send subscription message: %w", err)
	}

	g.Logger.Info("%s : subscribed to OHLCV for %s (%s)", g.Name, token.Symbol, token.Address)
	return nil
}

// -----------------------------------------------------------------------------

// receiveLoop reads frames off the wire into the message channel, attempting
// reconnects on read errors up to the configured limit.
func (g *GoldRush) receiveLoop(done chan struct{}) {
	reconnectAttempts := 0

	for {
		select {
		case <-done:
			return
		default:
		}

		g.mu.RLock()
		conn := g.conn
		g.mu.RUnlock()
		if conn == nil {
			return
		}

		messageType, message, err := conn.ReadMessage()
		if err != nil {
			// Check if we are shutting down
			select {
			case <-done:
				return
			default:
			}

			g.Logger.Error("%s : read message error: %v", g.Name, err)

			if reconnectAttempts < g.Config.ReconnectAttempts {
				reconnectAttempts++
				g.Logger.Info("%s : attempting to reconnect (attempt %d/%d)",
					g.Name, reconnectAttempts, g.Config.ReconnectAttempts)
				g.attemptReconnect()
				continue
			}
			return
		}

		if messageType == websocket.TextMessage {
			select {
			case g.recvMsgChann <- message:
			case <-done:
				return
			}
		}

		// Reset reconnect attempts on successful read
		reconnectAttempts = 0
	}
}

// -----------------------------------------------------------------------------

// processLoop parses queued frames and hands candle batches to the engine.
// Parsing and delivery happen here, never on the read goroutine, so a slow
// engine call cannot back up the socket.
func (g *GoldRush) processLoop(done chan struct{}, recv chan []byte) {
	for {
		select {
		case <-done:
			return
		case message, ok := <-recv:
			if !ok {
				return
			}

			batch, err := parseGoldRushMessage(message)
			if err != nil {
				g.Logger.Error("%s : failed to parse message: %v (raw: %s)", g.Name, err, string(message))
				continue
			}
			if len(batch) == 0 {
				continue // subscription ack or heartbeat
			}

			g.mu.RLock()
			if g.done != done {
				// Frames queued for a torn-down subscription; drop them
				// rather than stamping them with the next token's identity.
				g.mu.RUnlock()
				return
			}
			update := models.MPriceUpdate{
				Source:     g.Name,
				Pair:       g.pair,
				Price:      batch[len(batch)-1].Close,
				ObservedAt: time.Now(),
				CandleTime: batch[len(batch)-1].Time,
				Generation: g.generation,
			}
			g.mu.RUnlock()

			g.deps.OnCandles(g.Name, batch, update)
		}
	}
}

// -----------------------------------------------------------------------------

// attemptReconnect redials and resubscribes after a read error.
func (g *GoldRush) attemptReconnect() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.isRunning {
		return
	}

	if g.conn != nil {
		g.conn.Close()
		g.conn = nil
	}

	wait := time.Duration(g.Config.ReconnectWait)
	if wait == 0 {
		wait = time.Second
	}
	time.Sleep(wait)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.Dial(g.Config.Endpoint, nil)
	if err != nil {
		g.Logger.Error("%s : reconnection failed: %v", g.Name, err)
		return
	}

	g.conn = conn

	// Resubscribe against the current token; the generation moves with it.
	token, generation := g.deps.Token()
	g.generation = generation
	g.pair = token.Symbol
	g.address = token.Address
	if err := g.subscribeLocked(token); err != nil {
		g.Logger.Error("%s : resubscribe after reconnect failed: %v", g.Name, err)
		return
	}

	g.Logger.Info("%s : successfully reconnected to %s", g.Name, utils.MaskAPIKey(g.Config.Endpoint))
}

// -----------------------------------------------------------------------------

// teardownLocked closes the transport. Caller holds g.mu.
func (g *GoldRush) teardownLocked() {
	g.isRunning = false
	if g.done != nil {
		close(g.done)
		g.done = nil
	}
	if g.conn != nil {
		g.conn.Close()
		g.conn = nil
	}
}

// -----------------------------------------------------------------------------
// MESSAGE PARSING
// -----------------------------------------------------------------------------

// goldRushCandle mirrors one OHLCV entry as the stream delivers it.
type goldRushCandle struct {
	Timestamp    string  `json:"timestamp"`
	Open         float64 `json:"open"`
	High         float64 `json:"high"`
	Low          float64 `json:"low"`
	Close        float64 `json:"close"`
	QuoteRateUSD float64 `json:"quote_rate_usd"`
}

// -----------------------------------------------------------------------------

// parseGoldRushMessage normalizes a stream frame into candles. Frames carry
// either a single candle object or an array under "data"; acks and heartbeats
// have no data and yield an empty batch.
func parseGoldRushMessage(message []byte) ([]models.MCandle, error) {
	var envelope struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(message, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	if len(envelope.Data) == 0 {
		return nil, nil
	}

	var raw []goldRushCandle
	if err := json.Unmarshal(envelope.Data, &raw); err != nil {
		// single-object frames are delivered without the array wrapper
		var one goldRushCandle
		if err := json.Unmarshal(envelope.Data, &one); err != nil {
			return nil, fmt.Errorf("failed to unmarshal candle data: %w", err)
		}
		raw = []goldRushCandle{one}
	}

	candles := make([]models.MCandle, 0, len(raw))
	for _, c := range raw {
		ts, err := time.Parse(time.RFC3339, c.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("invalid candle timestamp %q: %w", c.Timestamp, err)
		}
		closePrice := c.Close
		if closePrice == 0 {
			closePrice = c.QuoteRateUSD
		}
		candles = append(candles, models.MCandle{
			Time:  ts.Unix(),
			Open:  c.Open,
			High:  c.High,
			Low:   c.Low,
			Close: closePrice,
		})
	}
	return candles, nil
}
