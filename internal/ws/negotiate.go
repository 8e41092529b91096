package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NegotiateResponse carries the WebSocket URLs handed to a client.
type NegotiateResponse struct {
	WebsocketURLs map[string]string `json:"websocket_urls"`
}

// NegotiateHandler handles the /negotiate endpoint.
type NegotiateHandler struct {
	logger *zap.Logger
}

// NewNegotiateHandler creates a new NegotiateHandler.
func NewNegotiateHandler(logger *zap.Logger) *NegotiateHandler {
	return &NegotiateHandler{logger: logger}
}

// HandleNegotiate handles GET /negotiate.
// Accepts an API key via Authorization header and returns the WebSocket URL
// for the signal feed with a connection-scoped access token.
func (h *NegotiateHandler) HandleNegotiate(w http.ResponseWriter, r *http.Request) {
	var apiKey string
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Basic ") {
		apiKey = strings.TrimPrefix(authHeader, "Basic ")
	}

	if apiKey == "" {
		h.logger.Debug("negotiate request missing authorization")
		http.Error(w, `{"error":"missing authorization"}`, http.StatusUnauthorized)
		return
	}

	// Simple access token (apiKey:connectionID); this service does not issue
	// real credentials.
	connID := uuid.New().String()
	token := fmt.Sprintf("%s:%s", apiKey, connID)

	scheme := "ws"
	if r.TLS != nil {
		scheme = "wss"
	}

	response := NegotiateResponse{
		WebsocketURLs: map[string]string{
			"feed": fmt.Sprintf("%s://%s/ws/feed?access_token=%s", scheme, r.Host, token),
		},
	}

	h.logger.Debug("negotiate successful",
		zap.String("connID", connID),
		zap.String("apiKey", maskAPIKey(apiKey)),
	)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode negotiate response", zap.Error(err))
	}
}

// maskAPIKey masks all but the first 4 characters of an API key for logging.
func maskAPIKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return key[:4] + "****"
}
