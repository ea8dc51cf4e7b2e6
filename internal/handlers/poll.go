package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"tripsync-backend/internal/services"
)

// PollHandler handles poll requests.
type PollHandler struct {
	pollService *services.PollService
}

// NewPollHandler creates a new poll handler.
func NewPollHandler(pollService *services.PollService) *PollHandler {
	return &PollHandler{pollService: pollService}
}

// CreatePollRequest is the body for POST /api/v1/trips/{trip_id}/polls.
// Question and options are optional: when absent the built-in template
// for the type is used.
type CreatePollRequest struct {
	Type        string   `json:"type"`
	Question    string   `json:"question,omitempty"`
	Options     []string `json:"options,omitempty"`
	DurationSec int      `json:"duration,omitempty"`
}

// CreatePoll handles POST /api/v1/trips/{trip_id}/polls
func (h *PollHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	claims, tripID := tripRequest(w, r)
	if claims == nil {
		return
	}

	var req CreatePollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	poll, err := h.pollService.CreatePoll(r.Context(), tripID, services.CreatePollInput{
		Type:        req.Type,
		Question:    req.Question,
		Options:     req.Options,
		DurationSec: req.DurationSec,
	})
	if err != nil {
		log.Error().Err(err).Str("trip_id", tripID).Str("type", req.Type).Msg("Failed to create poll")
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, poll)
}

// VotePollRequest is the body for poll votes. A single optionId and a
// list are both accepted; single-select polls use only the first.
type VotePollRequest struct {
	OptionID  string   `json:"optionId,omitempty"`
	OptionIDs []string `json:"optionIds,omitempty"`
}

// VotePoll handles POST /api/v1/trips/{trip_id}/polls/{poll_id}/votes
func (h *PollHandler) VotePoll(w http.ResponseWriter, r *http.Request) {
	claims, tripID := tripRequest(w, r)
	if claims == nil {
		return
	}
	pollID := chi.URLParam(r, "poll_id")

	var req VotePollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	optionIDs := req.OptionIDs
	if len(optionIDs) == 0 && req.OptionID != "" {
		optionIDs = []string{req.OptionID}
	}

	poll, err := h.pollService.VotePoll(r.Context(), tripID, pollID, optionIDs, claims.MemberID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, poll)
}

// ClosePoll handles POST /api/v1/trips/{trip_id}/polls/{poll_id}/close
func (h *PollHandler) ClosePoll(w http.ResponseWriter, r *http.Request) {
	claims, tripID := tripRequest(w, r)
	if claims == nil {
		return
	}
	pollID := chi.URLParam(r, "poll_id")

	poll, err := h.pollService.ClosePoll(r.Context(), tripID, pollID)
	if err != nil {
		log.Error().Err(err).Str("trip_id", tripID).Str("poll_id", pollID).Msg("Failed to close poll")
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, poll)
}
