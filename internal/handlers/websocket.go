package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"tripsync-backend/internal/models"
	"tripsync-backend/internal/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for MVP
	},
}

// WebSocketHandler serves the push channel: a long-lived,
// server-to-client stream of trip events. Clients never send payloads;
// the read side exists only to detect disconnect.
type WebSocketHandler struct {
	broker *services.Broker
	tokens *services.TokenService
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(broker *services.Broker, tokens *services.TokenService) *WebSocketHandler {
	return &WebSocketHandler{broker: broker, tokens: tokens}
}

// HandleWebSocket handles GET /ws?token=...
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, "token required", http.StatusUnauthorized)
		return
	}

	claims, err := h.tokens.Validate(token)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	sub := h.broker.Subscribe(claims.TripID)
	defer h.broker.Unsubscribe(sub)

	log.Info().Str("trip_id", claims.TripID).Str("member_id", claims.MemberID).Msg("Push channel opened")

	// Drain incoming frames; a read error is the disconnect signal.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug().Err(err).Str("member_id", claims.MemberID).Msg("Push channel read error")
				}
				return
			}
		}
	}()

	if err := conn.WriteJSON(models.Event{Type: models.EventConnected, Data: map[string]any{"tripId": claims.TripID}}); err != nil {
		return
	}

	for {
		select {
		case <-done:
			log.Info().Str("trip_id", claims.TripID).Str("member_id", claims.MemberID).Msg("Push channel closed")
			return
		case event, ok := <-sub.C:
			if !ok {
				// Evicted by the broker or server shutdown.
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				log.Debug().Err(err).Str("member_id", claims.MemberID).Msg("Push channel write failed")
				return
			}
		}
	}
}
