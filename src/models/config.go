package models

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Duration is a time.Duration that unmarshals from YAML strings like "5s"
// or "1m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// -----------------------------------------------------------------------------

// MConfig is the root application configuration, loaded from YAML.
// Credentials are intentionally absent: they come from the environment only.
type MConfig struct {
	Name     string `yaml:"name"`
	LogLevel string `yaml:"log_level"`
	Port     int    `yaml:"port"`

	GRPCHost string `yaml:"grpc_host"`
	GRPCPort int    `yaml:"grpc_port"`

	// Token is the initial token context; it can be swapped at runtime
	// through the control API.
	Token MTokenContext `yaml:"token"`

	Sources []*MSourceConfig `yaml:"sources"`

	NATS MNATSConfig `yaml:"nats"`
}

// -----------------------------------------------------------------------------

// MSourceConfig describes one upstream market-data feed.
type MSourceConfig struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"` // "stream", "graphql" or "rest"
	Endpoint string `yaml:"endpoint"`

	// Interval is the nominal candle interval of the source. The latency
	// metric measures arrival against candle start plus this interval; a
	// source whose timestamps mark the still-open bar keeps it at zero.
	Interval     Duration `yaml:"interval"`
	PollInterval Duration `yaml:"poll_interval"`

	// Resolution is the upstream bar resolution parameter, e.g. "1" for
	// one-minute bars on GraphQL sources.
	Resolution string `yaml:"resolution"`

	// QuoteRole selects which column of the price table this source drives:
	// "fast" (also the headline price), "slow" or "gecko".
	QuoteRole string `yaml:"quote_role"`

	// Simulator tuning. Threshold is the momentum trigger as a fraction of
	// the previous price; PositionSize scales price deltas into P&L dollars.
	Threshold    float64 `yaml:"threshold"`
	PositionSize float64 `yaml:"position_size"`

	// CircuitBreakerPct rejects a tick implying a larger single-tick move
	// (fraction, e.g. 0.20). Zero disables the guard.
	CircuitBreakerPct float64 `yaml:"circuit_breaker_pct"`

	// LatencyLabel tags closed trades for display, e.g. "Live".
	LatencyLabel string `yaml:"latency_label"`

	// TickEvent/TradeEvent are the viewer protocol types this source emits,
	// e.g. FAST_TICK / FAST_TRADE.
	TickEvent  string `yaml:"tick_event"`
	TradeEvent string `yaml:"trade_event"`

	// APIKeyEnv names the environment variable holding the source credential.
	APIKeyEnv string `yaml:"api_key_env"`

	ReconnectAttempts int      `yaml:"reconnect_attempts"`
	ReconnectWait     Duration `yaml:"reconnect_wait"`
}

// APIKey resolves the source credential from the environment. Keys never
// live in the YAML file.
func (s *MSourceConfig) APIKey() string {
	if s.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(s.APIKeyEnv)
}

// -----------------------------------------------------------------------------

// MNATSConfig configures the optional message-bus mirror of broadcast events.
type MNATSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Servers        []string `yaml:"servers"`
	ClientID       string   `yaml:"client_id"`
	SubjectPrefix  string   `yaml:"subject_prefix"`
	Serializer     string   `yaml:"serializer"` // "json" (default) or "binary"
	ConnectTimeout Duration `yaml:"connect_timeout"`
	ReconnectWait  Duration `yaml:"reconnect_wait"`
	MaxReconnects  int      `yaml:"max_reconnects"`
	FlushTimeout   Duration `yaml:"flush_timeout"`
}
