package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"tripsync-backend/internal/middleware"
	"tripsync-backend/internal/models"
	"tripsync-backend/internal/services"
)

// TripHandler handles trip lifecycle, membership and chat requests.
type TripHandler struct {
	tripService *services.TripService
}

// NewTripHandler creates a new trip handler.
func NewTripHandler(tripService *services.TripService) *TripHandler {
	return &TripHandler{tripService: tripService}
}

// CreateTripRequest is the body for POST /api/v1/trips.
type CreateTripRequest struct {
	TripName            string `json:"tripName"`
	Destination         string `json:"destination"`
	Purpose             string `json:"purpose"`
	RequiredMembers     int    `json:"requiredMembers"`
	AdminName           string `json:"adminName"`
	LinkValidityMinutes int    `json:"linkValidityMinutes"`
}

// CreateTrip handles POST /api/v1/trips
func (h *TripHandler) CreateTrip(w http.ResponseWriter, r *http.Request) {
	var req CreateTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.tripService.CreateTrip(r.Context(), services.CreateTripInput{
		TripName:            req.TripName,
		Destination:         req.Destination,
		Purpose:             req.Purpose,
		RequiredMembers:     req.RequiredMembers,
		AdminName:           req.AdminName,
		LinkValidityMinutes: req.LinkValidityMinutes,
	})
	if err != nil {
		log.Error().Err(err).Str("trip_name", req.TripName).Msg("Failed to create trip")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"trip":   result.Trip,
		"member": result.Admin,
		"token":  result.Token,
	})
}

// GetTrip handles GET /api/v1/trips/{trip_id}
func (h *TripHandler) GetTrip(w http.ResponseWriter, r *http.Request) {
	claims, tripID := tripRequest(w, r)
	if claims == nil {
		return
	}

	trip, err := h.tripService.GetTrip(r.Context(), tripID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, trip)
}

// JoinTripRequest is the body for POST /api/v1/trips/{trip_id}/join.
type JoinTripRequest struct {
	GuestName   string `json:"guestName"`
	GuestMobile string `json:"guestMobile,omitempty"`
}

// JoinTrip handles POST /api/v1/trips/{trip_id}/join. Public: the trip
// id in the path doubles as the invitation token.
func (h *TripHandler) JoinTrip(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "trip_id")

	var req JoinTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.tripService.JoinTrip(r.Context(), token, req.GuestName, req.GuestMobile)
	if err != nil {
		log.Error().Err(err).Str("trip_id", token).Msg("Failed to join trip")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"trip":               result.Trip,
		"member":             result.Member,
		"token":              result.Token,
		"isDiscountUnlocked": result.IsDiscountUnlocked,
	})
}

// LeaveTrip handles POST /api/v1/trips/{trip_id}/leave
func (h *TripHandler) LeaveTrip(w http.ResponseWriter, r *http.Request) {
	claims, tripID := tripRequest(w, r)
	if claims == nil {
		return
	}

	trip, err := h.tripService.LeaveTrip(r.Context(), tripID, claims.MemberID)
	if err != nil {
		log.Error().Err(err).Str("trip_id", tripID).Str("member_id", claims.MemberID).Msg("Failed to leave trip")
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, trip)
}

// RemoveMember handles DELETE /api/v1/trips/{trip_id}/members/{member_id}
func (h *TripHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	claims, tripID := tripRequest(w, r)
	if claims == nil {
		return
	}
	memberID := chi.URLParam(r, "member_id")

	trip, err := h.tripService.RemoveMember(r.Context(), tripID, memberID, claims.MemberID)
	if err != nil {
		log.Error().Err(err).Str("trip_id", tripID).Str("member_id", memberID).Msg("Failed to remove member")
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, trip)
}

// ToggleLinkRequest is the body for PATCH /api/v1/trips/{trip_id}/link.
type ToggleLinkRequest struct {
	IsActive bool `json:"isActive"`
}

// ToggleLink handles PATCH /api/v1/trips/{trip_id}/link
func (h *TripHandler) ToggleLink(w http.ResponseWriter, r *http.Request) {
	claims, tripID := tripRequest(w, r)
	if claims == nil {
		return
	}

	var req ToggleLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	trip, err := h.tripService.ToggleLink(r.Context(), tripID, claims.MemberID, req.IsActive)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, trip)
}

// SendMessageRequest is the body for POST /api/v1/trips/{trip_id}/messages.
type SendMessageRequest struct {
	Message string `json:"message"`
}

// SendMessage handles POST /api/v1/trips/{trip_id}/messages
func (h *TripHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	claims, tripID := tripRequest(w, r)
	if claims == nil {
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	msg, err := h.tripService.SendChatMessage(r.Context(), tripID, claims.MemberID, req.Message)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

// GetMessages handles GET /api/v1/trips/{trip_id}/messages
func (h *TripHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	claims, tripID := tripRequest(w, r)
	if claims == nil {
		return
	}

	messages, err := h.tripService.GetChatMessages(r.Context(), tripID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// tripRequest extracts the caller's claims and the path trip id,
// rejecting a token minted for a different trip. A nil return means the
// response was already written.
func tripRequest(w http.ResponseWriter, r *http.Request) (*services.MemberClaims, string) {
	claims := middleware.GetClaims(r.Context())
	tripID := chi.URLParam(r, "trip_id")
	if claims == nil {
		respondError(w, "Authorization required", http.StatusUnauthorized)
		return nil, ""
	}
	if claims.TripID != tripID {
		respondError(w, models.ErrNotMember.Error(), http.StatusForbidden)
		return nil, ""
	}
	return claims, tripID
}
