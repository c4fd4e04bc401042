package hub

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"feedrace/src/interfaces"
	"feedrace/src/logger"
	"feedrace/src/models"
	"feedrace/src/serializers"
)

// -----------------------------------------------------------------------------

// Snapshotter provides the replayable state for session sync. The engine is
// the production implementation.
type Snapshotter interface {
	Snapshot() *models.MSnapshot
}

// -----------------------------------------------------------------------------

// Hub tracks connected viewer sessions, replays current state to each new
// viewer and fans live events out to all of them. Broadcast is fire-and-forget
// per session: a slow or mid-close session is skipped, never waited on.
type Hub struct {
	Name   string
	Logger *logger.Logger

	snapshotter Snapshotter
	serializer  interfaces.ISerializer
	upgrader    websocket.Upgrader

	mu       sync.RWMutex
	sessions map[*Session]struct{}
}

// -----------------------------------------------------------------------------

// NewHub creates an empty hub. Viewers are unauthenticated by design; the
// upgrader accepts any origin.
func NewHub(log *logger.Logger, snapshotter Snapshotter) *Hub {
	return &Hub{
		Name:        "SessionHub",
		Logger:      log,
		snapshotter: snapshotter,
		serializer:  serializers.NewJSONSerializer(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		sessions: make(map[*Session]struct{}),
	}
}

// -----------------------------------------------------------------------------

// HandleWS upgrades an HTTP request into a viewer session, replays the
// current state and keeps the session registered until its transport dies.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Error("%s : websocket upgrade failed: %v", h.Name, err)
		return
	}

	session := newSession(conn)

	go func() {
		session.writeLoop()
		h.unregister(session)
	}()

	go func() {
		session.readLoop()
		h.unregister(session)
		h.Logger.Info("%s : viewer disconnected (%d active)", h.Name, h.SessionCount())
	}()

	// Queue the session-sync sequence before the session becomes visible to
	// Broadcast; the writer drains in order, so INIT is always first on the
	// wire and no live event can jump ahead of the replay.
	h.replay(session)
	h.register(session)
	h.Logger.Info("%s : viewer connected from %s (%d active)", h.Name, r.RemoteAddr, h.SessionCount())
}

// -----------------------------------------------------------------------------

// replay sends the session-sync sequence: one INIT snapshot, then for each
// source with candle history one synthetic tick carrying the full window,
// then each source's trade list in stored order (newest first).
func (h *Hub) replay(session *Session) {
	snap := h.snapshotter.Snapshot()

	ideas := snap.Ideas
	if ideas == nil {
		ideas = []models.MIdea{}
	}
	h.sendEvent(session, &models.MEvent{
		Type: models.EventInit,
		Data: models.MInitPayload{
			Pairs:  snap.Pairs,
			Trades: []models.MTrade{},
			Ideas:  ideas,
		},
	})

	now := time.Now().UnixMilli()
	for _, src := range snap.Sources {
		if len(src.Candles) == 0 {
			continue
		}
		h.sendEvent(session, &models.MEvent{
			Type: src.TickEvent,
			Data: models.MTickPayload{
				Pair:      snap.Pair,
				Price:     src.Price,
				Timestamp: now,
				Latency:   0,
				Candles:   src.Candles,
			},
		})
	}

	for _, src := range snap.Sources {
		for _, trade := range src.Trades {
			h.sendEvent(session, &models.MEvent{Type: src.TradeEvent, Data: trade})
		}
	}
}

// -----------------------------------------------------------------------------

// Broadcast sends an event to every currently-open session. Sessions whose
// transport is mid-close or whose buffer is full are skipped silently.
func (h *Hub) Broadcast(event *models.MEvent) {
	data, err := h.serializer.Marshal(event)
	if err != nil {
		h.Logger.Error("%s : failed to serialize %s event: %v", h.Name, event.Type, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for session := range h.sessions {
		session.trySend(data)
	}
}

// -----------------------------------------------------------------------------

// SessionCount returns the number of active sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// -----------------------------------------------------------------------------

// Close tears down every session. Called on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for session := range h.sessions {
		session.close()
		delete(h.sessions, session)
	}
}

// -----------------------------------------------------------------------------

func (h *Hub) sendEvent(session *Session, event *models.MEvent) {
	data, err := h.serializer.Marshal(event)
	if err != nil {
		h.Logger.Error("%s : failed to serialize %s event: %v", h.Name, event.Type, err)
		return
	}
	session.trySend(data)
}

// -----------------------------------------------------------------------------

// register adds the session to the broadcast set unless its transport already
// died during replay.
func (h *Hub) register(session *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-session.done:
		return
	default:
	}
	h.sessions[session] = struct{}{}
}

// -----------------------------------------------------------------------------

// unregister drops the session from the broadcast set and closes it. The
// close happens under the hub lock so a concurrent register cannot re-add a
// dead session.
func (h *Hub) unregister(session *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, session)
	session.close()
}
