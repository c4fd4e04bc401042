package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// -----------------------------------------------------------------------------

const validYAML = `
name: feedrace
log_level: debug
port: 4000
grpc_host: 127.0.0.1
grpc_port: 50051

token:
  symbol: BONK
  address: DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263
  network_id: 1399811149

sources:
  - name: goldrush
    kind: stream
    endpoint: wss://gr.example.com/v1
    quote_role: fast
    interval: 1m
    circuit_breaker_pct: 0.2
  - name: codex
    kind: graphql
    endpoint: https://graph.example.com
    quote_role: slow
    resolution: "1"

nats:
  enabled: false
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// -----------------------------------------------------------------------------

func TestNewConfigLoadsAndDefaults(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Name != "feedrace" || cfg.Port != 4000 {
		t.Errorf("unexpected root config: %+v", cfg.MConfig)
	}
	if cfg.Token.Symbol != "BONK" || cfg.Token.NetworkID != 1399811149 {
		t.Errorf("unexpected token context: %+v", cfg.Token)
	}

	goldrush := cfg.GetSourceByName("goldrush")
	if goldrush == nil {
		t.Fatal("expected goldrush source")
	}
	// simulator defaults kick in when the YAML stays silent
	if goldrush.Threshold != 0.000001 {
		t.Errorf("expected default threshold, got %g", goldrush.Threshold)
	}
	if goldrush.PositionSize != 100_000_000 {
		t.Errorf("expected default position size, got %g", goldrush.PositionSize)
	}
	if time.Duration(goldrush.Interval) != time.Minute {
		t.Errorf("expected 1m interval, got %s", time.Duration(goldrush.Interval))
	}
	if goldrush.ReconnectAttempts != 5 {
		t.Errorf("expected default reconnect attempts, got %d", goldrush.ReconnectAttempts)
	}

	codex := cfg.GetSourceByName("codex")
	if codex == nil {
		t.Fatal("expected codex source")
	}
	if time.Duration(codex.PollInterval) != 5*time.Second {
		t.Errorf("expected default poll interval, got %s", time.Duration(codex.PollInterval))
	}
}

func TestNewConfigMissingFile(t *testing.T) {
	if _, err := NewConfig("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(string) string
	}{
		{"missing name", func(s string) string { return replaceLine(s, "name: feedrace", "name: \"\"") }},
		{"bad port", func(s string) string { return replaceLine(s, "port: 4000", "port: 80") }},
		{"missing token address", func(s string) string {
			return replaceLine(s, "  address: DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263", "  address: \"\"")
		}},
		{"unknown kind", func(s string) string { return replaceLine(s, "    kind: graphql", "    kind: carrier-pigeon") }},
		{"unknown quote role", func(s string) string { return replaceLine(s, "    quote_role: slow", "    quote_role: medium") }},
		{"breaker out of range", func(s string) string {
			return replaceLine(s, "    circuit_breaker_pct: 0.2", "    circuit_breaker_pct: 1.5")
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewConfig(writeConfig(t, tc.mutate(validYAML))); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestValidateNATSRequiresServers(t *testing.T) {
	contents := replaceLine(validYAML, "  enabled: false", "  enabled: true")
	if _, err := NewConfig(writeConfig(t, contents)); err == nil {
		t.Error("expected error for enabled NATS without servers")
	}
}

func TestGetSourceByNameUnknown(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GetSourceByName("missing") != nil {
		t.Error("expected nil for unknown source")
	}
}

func TestSourceAPIKeyFromEnv(t *testing.T) {
	contents := replaceLine(validYAML, "    resolution: \"1\"", "    resolution: \"1\"\n    api_key_env: TEST_CODEX_KEY")
	cfg, err := NewConfig(writeConfig(t, contents))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Setenv("TEST_CODEX_KEY", "secret")
	if got := cfg.GetSourceByName("codex").APIKey(); got != "secret" {
		t.Errorf("expected secret, got %q", got)
	}
	if got := cfg.GetSourceByName("goldrush").APIKey(); got != "" {
		t.Errorf("expected empty key for source without api_key_env, got %q", got)
	}
}

func replaceLine(s, old, new string) string {
	return strings.Replace(s, old, new, 1)
}
