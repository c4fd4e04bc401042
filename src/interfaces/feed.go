package interfaces

import (
	"feedrace/src/logger"
	"feedrace/src/models"
)

// -----------------------------------------------------------------------------

// FeedConstructor defines the function signature for creating a new IFeed
// instance. Each feed package registers its constructor by source name.
type IFeedConstructor func(cfg *models.MSourceConfig, log *logger.Logger, deps FeedDeps) (IFeed, error)

// -----------------------------------------------------------------------------

// FeedDeps bundles what every feed adapter needs from the core: the engine
// entry points for normalized data and the current token context.
type FeedDeps interface {
	// OnCandles delivers a batch of candles from a streaming source.
	OnCandles(source string, candles []models.MCandle, update models.MPriceUpdate)

	// Token returns the current token context and its generation. Adapters
	// capture the generation when (re)subscribing and stamp it on every
	// update so stale in-flight data is discarded after a token switch.
	Token() (models.MTokenContext, uint64)
}

// -----------------------------------------------------------------------------

// IFeed defines the interface for one upstream market-data adapter. All
// transport concerns (reconnects, backoff, auth) live behind it; the core
// only ever sees normalized updates or silence.
type IFeed interface {
	// GetName returns the adapter name
	GetName() string

	// Start connects/subscribes against the current token context
	Start() error

	// Stop tears the transport down
	Stop() error

	// Restart resubscribes against the current token context. Called after
	// a token switch; equivalent to Stop followed by Start.
	Restart() error

	// GetStatus reports runtime status for diagnostics
	GetStatus() *models.MFeedStatus
}
