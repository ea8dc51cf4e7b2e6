package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"tripsync-backend/internal/models"
	"tripsync-backend/internal/services"
)

// HotelHandler handles hotel shortlist and voting requests.
type HotelHandler struct {
	hotelService *services.HotelService
}

// NewHotelHandler creates a new hotel handler.
func NewHotelHandler(hotelService *services.HotelService) *HotelHandler {
	return &HotelHandler{hotelService: hotelService}
}

// ShortlistRequest is the body for PUT /api/v1/trips/{trip_id}/hotels.
type ShortlistRequest struct {
	Hotels []models.Hotel `json:"hotels"`
}

// ShortlistHotels handles PUT /api/v1/trips/{trip_id}/hotels
func (h *HotelHandler) ShortlistHotels(w http.ResponseWriter, r *http.Request) {
	claims, tripID := tripRequest(w, r)
	if claims == nil {
		return
	}

	var req ShortlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	trip, err := h.hotelService.ShortlistHotels(r.Context(), tripID, claims.MemberID, req.Hotels)
	if err != nil {
		log.Error().Err(err).Str("trip_id", tripID).Msg("Failed to shortlist hotels")
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, trip)
}

// VoteHotelRequest is the body for hotel votes.
type VoteHotelRequest struct {
	Vote    string `json:"vote"`
	Comment string `json:"comment,omitempty"`
}

// VoteHotel handles POST /api/v1/trips/{trip_id}/hotels/{hotel_id}/votes
func (h *HotelHandler) VoteHotel(w http.ResponseWriter, r *http.Request) {
	claims, tripID := tripRequest(w, r)
	if claims == nil {
		return
	}
	hotelID := chi.URLParam(r, "hotel_id")

	var req VoteHotelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	trip, err := h.hotelService.VoteHotel(r.Context(), tripID, hotelID, req.Vote, req.Comment, claims.MemberID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, trip)
}

// CloseVoting handles POST /api/v1/trips/{trip_id}/hotels/close-voting
func (h *HotelHandler) CloseVoting(w http.ResponseWriter, r *http.Request) {
	claims, tripID := tripRequest(w, r)
	if claims == nil {
		return
	}

	trip, err := h.hotelService.CloseHotelVoting(r.Context(), tripID)
	if err != nil {
		log.Error().Err(err).Str("trip_id", tripID).Msg("Failed to close hotel voting")
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, trip)
}
