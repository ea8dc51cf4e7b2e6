package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"tripsync-backend/internal/middleware"
	"tripsync-backend/internal/models"
	"tripsync-backend/internal/services"
)

// BookingHandler handles booking confirmation and share links.
type BookingHandler struct {
	bookingService *services.BookingService
}

// NewBookingHandler creates a new booking handler.
func NewBookingHandler(bookingService *services.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

// ConfirmBookingRequest is the body for POST /api/v1/bookings. TripID
// empty means a standalone booking for the caller alone.
type ConfirmBookingRequest struct {
	TripID   string         `json:"tripId,omitempty"`
	Hotel    *models.Hotel  `json:"hotel,omitempty"`
	CheckIn  string         `json:"checkIn,omitempty"`
	CheckOut string         `json:"checkOut,omitempty"`
	Guests   int            `json:"guests,omitempty"`
	Pricing  models.Pricing `json:"pricing"`
}

// ConfirmBooking handles POST /api/v1/bookings
func (h *BookingHandler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		respondError(w, "Authorization required", http.StatusUnauthorized)
		return
	}

	var req ConfirmBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	booking, err := h.bookingService.ConfirmBooking(r.Context(), req.TripID, claims.MemberID, services.BookingDetails{
		Hotel:    req.Hotel,
		CheckIn:  req.CheckIn,
		CheckOut: req.CheckOut,
		Guests:   req.Guests,
		Pricing:  req.Pricing,
	})
	if err != nil {
		log.Error().Err(err).Str("trip_id", req.TripID).Str("user_id", claims.MemberID).Msg("Failed to confirm booking")
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, booking)
}

// GetBooking handles GET /api/v1/bookings/{booking_id}
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		respondError(w, "Authorization required", http.StatusUnauthorized)
		return
	}
	bookingID := chi.URLParam(r, "booking_id")

	booking, err := h.bookingService.GetBooking(r.Context(), bookingID, claims.MemberID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, booking)
}

// ListBookings handles GET /api/v1/bookings
func (h *BookingHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		respondError(w, "Authorization required", http.StatusUnauthorized)
		return
	}

	bookings, err := h.bookingService.ListBookings(r.Context(), claims.MemberID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

// ShareRequest is the body for POST /api/v1/bookings/{booking_id}/share.
type ShareRequest struct {
	ExpiryDays  int    `json:"expiryDays"`
	Permissions string `json:"permissions,omitempty"`
	MaxUses     int    `json:"maxUses,omitempty"`
}

// CreateShareLink handles POST /api/v1/bookings/{booking_id}/share
func (h *BookingHandler) CreateShareLink(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		respondError(w, "Authorization required", http.StatusUnauthorized)
		return
	}
	bookingID := chi.URLParam(r, "booking_id")

	var req ShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	link, err := h.bookingService.CreateShareableLink(r.Context(), bookingID, claims.MemberID, req.ExpiryDays, req.Permissions, req.MaxUses)
	if err != nil {
		log.Error().Err(err).Str("booking_id", bookingID).Msg("Failed to create share link")
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, link)
}

// ResolveShareLink handles GET /api/v1/share/{link_id}. Public. An
// expired link answers 410 with a reduced preview body.
func (h *BookingHandler) ResolveShareLink(w http.ResponseWriter, r *http.Request) {
	linkID := chi.URLParam(r, "link_id")

	resolution, err := h.bookingService.ResolveShareableLink(r.Context(), linkID)
	if err != nil {
		if errors.Is(err, models.ErrExpired) && resolution != nil {
			respondJSON(w, http.StatusGone, map[string]any{
				"status":  "EXPIRED",
				"preview": resolution,
			})
			return
		}
		if errors.Is(err, models.ErrNotFound) {
			respondJSON(w, http.StatusNotFound, map[string]any{"status": "INVALID"})
			return
		}
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "OK",
		"redirect": resolution,
	})
}
