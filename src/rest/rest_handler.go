package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"feedrace/src/logger"
	"feedrace/src/models"
)

// -----------------------------------------------------------------------------

// Controller is the subset of the core the HTTP control surface needs.
type Controller interface {
	SwitchToken(address, symbol string) error
	FeedStatuses() []*models.MFeedStatus
}

// -----------------------------------------------------------------------------

// Handler serves the HTTP control surface: liveness, feed status and the
// token-switch endpoint.
type Handler struct {
	Name   string
	Logger *logger.Logger

	controller Controller
}

// NewHandler creates a new REST handler
func NewHandler(log *logger.Logger, controller Controller) *Handler {
	return &Handler{
		Name:       "rest",
		Logger:     log,
		controller: controller,
	}
}

// -----------------------------------------------------------------------------

// RegisterRoutes is called by main to attach the control routes
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/", h.handleLiveness).Methods(http.MethodGet)
	router.HandleFunc("/status", h.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/update-token", h.handleUpdateToken).Methods(http.MethodPost, http.MethodOptions)
	router.Use(corsMiddleware)
}

// -----------------------------------------------------------------------------

func (h *Handler) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.controller.FeedStatuses())
}

// -----------------------------------------------------------------------------

type updateTokenRequest struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
}

// handleUpdateToken switches every feed to a new token. The response is sent
// once the switch is accepted; feeds resubscribe in the background.
func (h *Handler) handleUpdateToken(w http.ResponseWriter, r *http.Request) {
	var req updateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	req.Address = strings.TrimSpace(req.Address)
	req.Symbol = strings.TrimSpace(req.Symbol)

	if req.Address == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "address is required"})
		return
	}

	if err := h.controller.SwitchToken(req.Address, req.Symbol); err != nil {
		h.Logger.Error("[%s] token switch to %s failed: %v", h.Name, req.Address, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	h.Logger.Info("[%s] switched token to %s (%s)", h.Name, req.Address, req.Symbol)
	label := req.Symbol
	if label == "" {
		label = req.Address
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Switched to %s", label),
	})
}

// -----------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// corsMiddleware lets the browser frontend call the control surface from a
// different origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
