package publishers

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"feedrace/src/interfaces"
	"feedrace/src/logger"
	"feedrace/src/models"
)

// -----------------------------------------------------------------------------
// NATSPublisher mirrors every broadcast event onto a NATS core subject so
// out-of-process consumers (recorders, dashboards) see the same stream the
// websocket viewers do. Delivery is fire-and-forget: a lost event never
// blocks or fails the feed pipeline.
// -----------------------------------------------------------------------------

// NATSPublisher implements the interfaces.IPublisher interface
type NATSPublisher struct {
	name   string
	config *models.MNATSConfig
	logger *logger.Logger

	mu sync.RWMutex

	nc         *nats.Conn
	serializer interfaces.ISerializer

	connected bool
}

// -----------------------------------------------------------------------------

// NewNATSPublisher creates a new NATS publisher instance
func NewNATSPublisher(config *models.MNATSConfig, logger *logger.Logger, serializer interfaces.ISerializer) interfaces.IPublisher {
	return &NATSPublisher{
		name:       config.ClientID,
		config:     config,
		logger:     logger,
		serializer: serializer,
	}
}

// -----------------------------------------------------------------------------

// OnEvent serializes an event and publishes it to <prefix>.events.<type>.
func (np *NATSPublisher) OnEvent(event *models.MEvent) {
	subject := fmt.Sprintf("events.%s", strings.ToLower(event.Type))

	data, err := np.serializer.Marshal(event)
	if err != nil {
		np.logger.Error("%s : failed to serialize %s event for NATS: %v", np.name, event.Type, err)
		return
	}

	if err := np.publish(subject, data); err != nil {
		np.logger.Error("%s : failed to publish %s event to NATS subject %s: %v",
			np.name, event.Type, subject, err)
	}
}

// -----------------------------------------------------------------------------

// publish sends raw data to a NATS core subject (fire-and-forget)
func (np *NATSPublisher) publish(subject string, data []byte) error {
	if !np.IsConnected() {
		return fmt.Errorf("nats client not connected")
	}
	return np.nc.Publish(np.getSubject(subject), data)
}

// -----------------------------------------------------------------------------

// Connect establishes the connection to the NATS server
func (np *NATSPublisher) Connect() error {
	np.mu.Lock()
	defer np.mu.Unlock()

	if np.nc != nil && np.nc.IsConnected() {
		return nil
	}

	opts := []nats.Option{
		nats.Name(np.config.ClientID),
		nats.Timeout(time.Duration(np.config.ConnectTimeout)),
		nats.ReconnectWait(time.Duration(np.config.ReconnectWait)),
		nats.MaxReconnects(np.config.MaxReconnects),
		nats.FlusherTimeout(time.Duration(np.config.FlushTimeout)),

		// Connection Event Handlers
		nats.RetryOnFailedConnect(true),
		nats.ClosedHandler(func(nc *nats.Conn) {
			np.logger.Error("%s : NATS connection closed unexpectedly", np.name)
			np.setConnected(false)
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			np.logger.Warning("%s : NATS disconnected, attempting reconnect: %v", np.name, err)
			np.setConnected(false)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			np.logger.Info("%s : NATS successfully reconnected to %s", np.name, nc.ConnectedUrl())
			np.setConnected(true)
		}),
	}

	var err error
	np.nc, err = nats.Connect(np.config.Servers[0], opts...)
	if err != nil {
		return fmt.Errorf("nats connection failed: %w", err)
	}

	np.connected = true
	np.logger.Info("%s : successfully connected to NATS at %s", np.name, np.nc.ConnectedUrl())
	return nil
}

// -----------------------------------------------------------------------------

// Disconnect drains and closes the connection
func (np *NATSPublisher) Disconnect() error {
	np.mu.Lock()
	defer np.mu.Unlock()

	if np.nc == nil {
		return nil
	}

	if err := np.nc.Drain(); err != nil {
		np.logger.Warning("%s : NATS drain failed, closing anyway: %v", np.name, err)
		np.nc.Close()
	}
	np.nc = nil
	np.connected = false

	np.logger.Info("%s : disconnected from NATS", np.name)
	return nil
}

// -----------------------------------------------------------------------------

// IsConnected reports whether the publisher currently has a live connection
func (np *NATSPublisher) IsConnected() bool {
	np.mu.RLock()
	defer np.mu.RUnlock()
	return np.connected
}

func (np *NATSPublisher) setConnected(v bool) {
	np.mu.Lock()
	np.connected = v
	np.mu.Unlock()
}

// getSubject prefixes the subject when a prefix is configured
func (np *NATSPublisher) getSubject(subject string) string {
	if np.config.SubjectPrefix == "" {
		return subject
	}
	return fmt.Sprintf("%s.%s", np.config.SubjectPrefix, subject)
}
