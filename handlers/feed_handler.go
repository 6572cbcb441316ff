package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/streakmatch/services"
)

type FeedHandler struct {
	responder
	feed services.FeedService
}

func NewFeedHandler(feed services.FeedService, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{responder: responder{logger: logger}, feed: feed}
}

// GetFeed godoc
// @Summary Joinable matches for the caller
// @Tags feed
// @Produce json
// @Param mode query string false "strict (default), explore or lucky"
// @Param limit query int false "Maximum number of matches"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string "Unknown mode or bad limit"
// @Security BearerAuth
// @Router /feed [get]
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	mode, err := services.ParseFeedMode(r.URL.Query().Get("mode"))
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	limit, err := getIntQuery(r, "limit", 0)
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	matches, err := h.feed.GetFeed(r.Context(), userID, mode, limit)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, jsonResponse{"mode": mode, "matches": matches})
}
