package models

// -----------------------------------------------------------------------------

// MTokenContext is the process-wide active token. It is replaced atomically on
// a token-switch request; the replacement resets every candle window and
// trading state and makes all feed adapters resubscribe.
type MTokenContext struct {
	Symbol    string `json:"symbol" yaml:"symbol"`
	Address   string `json:"address" yaml:"address"`
	NetworkID int    `json:"networkId" yaml:"network_id"`
}
