package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/streakmatch/services"
)

type MeHandler struct {
	responder
	matches services.MatchService
	ledger  services.ScoreLedger
}

func NewMeHandler(ms services.MatchService, ledger services.ScoreLedger, logger *slog.Logger) *MeHandler {
	return &MeHandler{responder: responder{logger: logger}, matches: ms, ledger: ledger}
}

// ActiveMatch godoc
// @Summary The caller's active match
// @Tags me
// @Produce json
// @Success 200 {object} map[string]interface{} "match is null when there is none"
// @Security BearerAuth
// @Router /me/active-match [get]
func (h *MeHandler) ActiveMatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	match, err := h.matches.GetActiveMatch(r.Context(), userID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, jsonResponse{"match": match})
}

// Score godoc
// @Summary The caller's streak and record
// @Tags me
// @Produce json
// @Success 200 {object} models.UserProfile
// @Security BearerAuth
// @Router /me/score [get]
func (h *MeHandler) Score(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	profile, err := h.ledger.GetScore(r.Context(), userID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, profile)
}

// UpdateProfile godoc
// @Summary Set display name and postal code
// @Tags me
// @Description Streak counters are never changed through this endpoint.
// @Accept json
// @Produce json
// @Param input body services.ProfileInput true "Profile"
// @Success 200 {object} models.UserProfile
// @Failure 422 {object} map[string]interface{}
// @Security BearerAuth
// @Router /me/profile [put]
func (h *MeHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var input services.ProfileInput
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	profile, err := h.ledger.UpdateProfile(r.Context(), userID, input)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, profile)
}
