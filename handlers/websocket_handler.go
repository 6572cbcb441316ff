package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/Dosada05/streakmatch/realtime"
	"github.com/Dosada05/streakmatch/services"
	"github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	responder
	hub      *realtime.Hub
	matches  services.MatchService
	upgrader websocket.Upgrader
}

// NewWebSocketHandler accepts upgrades from allowedOrigins; "*" allows any origin.
func NewWebSocketHandler(hub *realtime.Hub, matches services.MatchService, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		responder: responder{logger: logger},
		hub:       hub,
		matches:   matches,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// ServeUser streams events addressed to the authenticated user.
func (h *WebSocketHandler) ServeUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	h.attach(w, r, services.UserRoom(userID))
}

// ServeMatch streams events of one match. Clients connect to /ws/matches/{matchID}.
func (h *WebSocketHandler) ServeMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := getUUIDFromURL(r, "matchID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	if _, err := h.matches.GetMatch(r.Context(), matchID); err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.attach(w, r, services.MatchRoom(matchID))
}

func (h *WebSocketHandler) attach(w http.ResponseWriter, r *http.Request, room string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Warn("websocket upgrade failed", slog.String("room", room), slog.Any("error", err))
		return
	}
	h.hub.Attach(conn, room)
	h.logger.Debug("websocket client attached", slog.String("room", room))
}
