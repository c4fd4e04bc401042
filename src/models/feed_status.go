package models

// -----------------------------------------------------------------------------

// MFeedStatus represents the runtime status and technical metadata of a feed
// adapter. It aggregates information from the adapter and its transport.

type MFeedStatus struct {
	SourceName    string // the name of the feed adapter
	Running       bool   // whether the adapter's transport is live
	Kind          string // e.g. "stream", "graphql", "rest"
	TransportType string // e.g. "websocket", "http"
	Endpoint      string // adapter endpoint (without credentials)
	Pair          string // symbol the adapter is currently subscribed to
}
