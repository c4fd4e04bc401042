package interfaces

import "feedrace/src/models"

// -----------------------------------------------------------------------------

// IEventSink receives every event the engine emits. The session hub is the
// production implementation; tests substitute a recording sink.
type IEventSink interface {
	// Broadcast fans an event out to every connected viewer. It must never
	// block on a slow viewer and must never fail the caller.
	Broadcast(event *models.MEvent)
}
