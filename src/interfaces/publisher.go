package interfaces

import "feedrace/src/models"

// -----------------------------------------------------------------------------

// IPublisher defines the interface for mirroring viewer events to an external
// message bus. The viewer WebSocket hub is the primary transport; a publisher
// is an optional secondary consumer of the same event stream.
type IPublisher interface {
	// OnEvent processes and publishes a broadcast event
	OnEvent(event *models.MEvent)

	// Connect establishes connection to the message broker
	Connect() error

	// Disconnect closes the connection to the message broker
	Disconnect() error

	// IsConnected returns the current connection status
	IsConnected() bool
}
