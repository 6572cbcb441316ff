package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Dosada05/streakmatch/middleware"
	"github.com/Dosada05/streakmatch/services"
)

const maxProofSize = 10 << 20

type MatchHandler struct {
	responder
	matches    services.MatchService
	matchmaker services.Matchmaker
	lifecycle  services.LifecycleService
	results    services.ResultService
}

func NewMatchHandler(
	ms services.MatchService,
	mm services.Matchmaker,
	ls services.LifecycleService,
	rs services.ResultService,
	logger *slog.Logger,
) *MatchHandler {
	return &MatchHandler{
		responder:  responder{logger: logger},
		matches:    ms,
		matchmaker: mm,
		lifecycle:  ls,
		results:    rs,
	}
}

// CreateMatch godoc
// @Summary Create a match
// @Tags matches
// @Description The host is seated immediately; the match requires the host's current streak from every joiner.
// @Accept json
// @Produce json
// @Param input body services.CreateMatchInput true "Match details"
// @Success 201 {object} map[string]interface{} "Created match"
// @Failure 400 {object} map[string]string "Malformed body"
// @Failure 401 {object} map[string]string "Not authenticated"
// @Failure 409 {object} map[string]string "Host or a teammate is already in an active match"
// @Failure 422 {object} map[string]interface{} "Validation errors"
// @Security BearerAuth
// @Router /matches [post]
func (h *MatchHandler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var input services.CreateMatchInput
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	if input.HostDisplayName == "" {
		input.HostDisplayName = middleware.GetDisplayNameFromContext(r.Context())
	}

	match, err := h.matches.CreateMatch(r.Context(), userID, input)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, jsonResponse{"match": match})
}

// GetMatch godoc
// @Summary Get a match
// @Tags matches
// @Produce json
// @Param matchID path string true "Match ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /matches/{matchID} [get]
func (h *MatchHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := getUUIDFromURL(r, "matchID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	match, err := h.matches.GetMatch(r.Context(), matchID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, jsonResponse{"match": match})
}

// EditMatch godoc
// @Summary Edit match details
// @Tags matches
// @Description Only the host, and only while nobody stands against the host.
// @Accept json
// @Produce json
// @Param matchID path string true "Match ID"
// @Param input body services.EditMatchInput true "Fields to change"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string "Not the host"
// @Failure 409 {object} map[string]string "Match can no longer be edited"
// @Security BearerAuth
// @Router /matches/{matchID} [patch]
func (h *MatchHandler) EditMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := getUUIDFromURL(r, "matchID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var input services.EditMatchInput
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	match, err := h.matches.EditMatch(r.Context(), userID, matchID, input)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, jsonResponse{"match": match})
}

// CanEdit godoc
// @Summary Whether the match can still be edited
// @Tags matches
// @Produce json
// @Param matchID path string true "Match ID"
// @Success 200 {object} map[string]bool
// @Security BearerAuth
// @Router /matches/{matchID}/can-edit [get]
func (h *MatchHandler) CanEdit(w http.ResponseWriter, r *http.Request) {
	matchID, err := getUUIDFromURL(r, "matchID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	ok, err := h.matches.CanEdit(r.Context(), matchID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, jsonResponse{"can_edit": ok})
}

type joinRequest struct {
	DisplayName string `json:"display_name"`
}

// Join godoc
// @Summary Join a match
// @Tags matches
// @Description Refusals (match taken, score mismatch, already in a match) come back as 200 with success=false.
// @Accept json
// @Produce json
// @Param matchID path string true "Match ID"
// @Param input body joinRequest false "Display name to show on the roster"
// @Success 200 {object} services.JoinResult
// @Security BearerAuth
// @Router /matches/{matchID}/join [post]
func (h *MatchHandler) Join(w http.ResponseWriter, r *http.Request) {
	matchID, err := getUUIDFromURL(r, "matchID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var input joinRequest
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &input); err != nil {
			h.badRequestResponse(w, r, err)
			return
		}
	}
	if input.DisplayName == "" {
		input.DisplayName = middleware.GetDisplayNameFromContext(r.Context())
	}

	result, err := h.matchmaker.Join(r.Context(), matchID, userID, input.DisplayName)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, result)
}

// Leave godoc
// @Summary Leave a match
// @Tags matches
// @Description Deletes, forfeits or simply departs depending on role, opponent and time to start.
// @Produce json
// @Param matchID path string true "Match ID"
// @Success 200 {object} services.LeaveResult
// @Failure 403 {object} map[string]string "Not a party to the match"
// @Failure 409 {object} map[string]string "Match already completed"
// @Security BearerAuth
// @Router /matches/{matchID}/leave [post]
func (h *MatchHandler) Leave(w http.ResponseWriter, r *http.Request) {
	matchID, err := getUUIDFromURL(r, "matchID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	result, err := h.lifecycle.Leave(r.Context(), matchID, userID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, result)
}

type submitResultRequest struct {
	ClaimedWon     *bool  `json:"claimed_won"`
	ProofReference string `json:"proof_reference"`
}

// SubmitResult godoc
// @Summary Report the result of a match
// @Tags matches
// @Accept json
// @Produce json
// @Param matchID path string true "Match ID"
// @Param input body submitResultRequest true "Claim and proof"
// @Success 200 {object} services.SubmitResultOutcome
// @Failure 409 {object} map[string]string "Outside the result window or no opponent"
// @Failure 422 {object} map[string]interface{} "Validation errors"
// @Security BearerAuth
// @Router /matches/{matchID}/result [post]
func (h *MatchHandler) SubmitResult(w http.ResponseWriter, r *http.Request) {
	matchID, err := getUUIDFromURL(r, "matchID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var input submitResultRequest
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	if input.ClaimedWon == nil {
		h.failedValidationResponse(w, r, map[string]string{"claimed_won": "must be provided"})
		return
	}

	out, err := h.results.SubmitResult(r.Context(), matchID, userID, *input.ClaimedWon, input.ProofReference)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, out)
}

// UploadProof godoc
// @Summary Upload a proof image
// @Tags matches
// @Description Returns the URL to pass as proof_reference when reporting the result.
// @Accept multipart/form-data
// @Produce json
// @Param matchID path string true "Match ID"
// @Param file formData file true "JPEG, PNG, WebP or HEIC image"
// @Success 201 {object} map[string]string
// @Failure 415 {object} map[string]string "Unsupported file type"
// @Failure 503 {object} map[string]string "Uploads not configured"
// @Security BearerAuth
// @Router /matches/{matchID}/proof [post]
func (h *MatchHandler) UploadProof(w http.ResponseWriter, r *http.Request) {
	matchID, err := getUUIDFromURL(r, "matchID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxProofSize)
	if err := r.ParseMultipartForm(maxProofSize); err != nil {
		h.badRequestResponse(w, r, fmt.Errorf("failed to parse multipart form: %w", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.badRequestResponse(w, r, fmt.Errorf("failed to get proof file from form: %w", err))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		h.badRequestResponse(w, r, errors.New("content-type header is required for the proof file"))
		return
	}

	url, err := h.results.UploadProof(r.Context(), matchID, userID, header.Filename, contentType, file)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, jsonResponse{"proof_reference": url})
}
