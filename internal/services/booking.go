package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"tripsync-backend/internal/models"
	"tripsync-backend/internal/repository"
)

const (
	linkIDLength = 10
	linkIDChars  = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// BookingService handles booking confirmation and shareable links.
type BookingService struct {
	trips    *repository.TripStore
	bookings *repository.BookingStore
	links    *repository.LinkStore
	broker   *Broker
}

// NewBookingService creates a new booking service.
func NewBookingService(trips *repository.TripStore, bookings *repository.BookingStore, links *repository.LinkStore, broker *Broker) *BookingService {
	return &BookingService{trips: trips, bookings: bookings, links: links, broker: broker}
}

// BookingDetails carries the confirmation request.
type BookingDetails struct {
	Hotel    *models.Hotel
	CheckIn  string
	CheckOut string
	Guests   int
	Pricing  models.Pricing
}

// ConfirmBooking confirms a booking. With a trip id it writes one
// Booking record per current trip member (so every member's booking
// list shows it), then patches the trip's summary; the sequence is not
// atomic, and a trip-patch failure after the records were written is
// surfaced rather than rolled back; the records stand. Without a trip
// id it writes a single record for the one user and skips all trip
// writes and broadcasts.
func (s *BookingService) ConfirmBooking(ctx context.Context, tripID, userID string, details BookingDetails) (*models.Booking, error) {
	if details.Pricing.Total <= 0 {
		return nil, fmt.Errorf("pricing total is required: %w", models.ErrInvalid)
	}
	if details.Guests < 1 {
		details.Guests = 1
	}
	details.Pricing.FillFromTotal()

	bookingID := uuid.New().String()
	now := time.Now()

	newRecord := func(memberID string) *models.Booking {
		return &models.Booking{
			BookingID:   bookingID,
			MemberID:    memberID,
			TripID:      tripID,
			Hotel:       details.Hotel,
			CheckIn:     details.CheckIn,
			CheckOut:    details.CheckOut,
			Guests:      details.Guests,
			Pricing:     details.Pricing,
			Status:      models.HotelBookingConfirmed,
			ConfirmedBy: userID,
			CreatedAt:   now,
		}
	}

	if tripID == "" {
		record := newRecord(userID)
		if err := s.bookings.Create(ctx, record); err != nil {
			return nil, err
		}
		log.Info().Str("booking_id", bookingID).Str("user_id", userID).Msg("Standalone booking confirmed")
		return record, nil
	}

	trip, err := s.trips.Get(ctx, tripID)
	if err != nil {
		return nil, err
	}
	confirmer := trip.FindMember(userID)
	if confirmer == nil {
		return nil, models.ErrNotMember
	}

	var own *models.Booking
	for _, member := range trip.Members {
		record := newRecord(member.ID)
		if err := s.bookings.Create(ctx, record); err != nil {
			return nil, fmt.Errorf("failed booking write for member %s: %w", member.ID, err)
		}
		if member.ID == userID {
			own = record
		}
	}

	summary := &models.BookingSummary{
		BookingID:   bookingID,
		Total:       details.Pricing.Total,
		ConfirmedBy: userID,
		ConfirmedAt: now,
	}
	if details.Hotel != nil {
		summary.HotelName = details.Hotel.Name
	}
	_, err = mutateTrip(ctx, s.trips, tripID, func(t *models.Trip) error {
		t.BookingConfirmation = summary
		t.HotelBookingStatus = models.HotelBookingConfirmed
		return nil
	})
	if err != nil {
		// Booking records already exist; the trip summary is stale until
		// the next successful patch. Accepted inconsistency window.
		log.Error().Err(err).Str("trip_id", tripID).Str("booking_id", bookingID).Msg("Trip summary patch failed after booking writes")
		return nil, fmt.Errorf("bookings written but trip summary patch failed: %w", err)
	}

	s.broker.Publish(tripID, models.Event{
		Type: models.EventBookingConfirmed,
		Data: map[string]any{
			"bookingId":   bookingID,
			"confirmedBy": userID,
			"summary":     summary,
		},
	})

	log.Info().Str("trip_id", tripID).Str("booking_id", bookingID).Int("members", len(trip.Members)).Msg("Trip booking confirmed")
	return own, nil
}

// GetBooking returns one member's booking record.
func (s *BookingService) GetBooking(ctx context.Context, bookingID, memberID string) (*models.Booking, error) {
	return s.bookings.Get(ctx, bookingID, memberID)
}

// ListBookings returns all bookings visible to a user.
func (s *BookingService) ListBookings(ctx context.Context, userID string) ([]models.Booking, error) {
	return s.bookings.ListByUser(ctx, userID)
}

// CreateShareableLink creates a share link for a booking the caller
// owns a record of.
func (s *BookingService) CreateShareableLink(ctx context.Context, bookingID, userID string, expiryDays int, permissions string, maxUses int) (*models.ShareableLink, error) {
	if expiryDays <= 0 {
		return nil, fmt.Errorf("expiryDays must be positive: %w", models.ErrInvalid)
	}

	// The lookup key is (bookingID, userID), so a caller without their
	// own record of this booking gets NotFound here.
	if _, err := s.bookings.Get(ctx, bookingID, userID); err != nil {
		return nil, err
	}

	link := &models.ShareableLink{
		ID:          generateLinkID(),
		BookingID:   bookingID,
		OwnerID:     userID,
		Permissions: permissions,
		ExpiresAt:   time.Now().AddDate(0, 0, expiryDays),
		MaxUses:     maxUses,
		IsActive:    true,
		CreatedAt:   time.Now(),
	}
	if err := s.links.Create(ctx, link); err != nil {
		return nil, err
	}

	log.Info().Str("link_id", link.ID).Str("booking_id", bookingID).Msg("Share link created")
	return link, nil
}

// LinkResolution is the payload returned by ResolveShareableLink. On an
// expired link Resolve still returns a reduced preview (BookingID only)
// alongside models.ErrExpired.
type LinkResolution struct {
	BookingID   string `json:"bookingId"`
	OwnerID     string `json:"ownerId,omitempty"`
	Permissions string `json:"permissions,omitempty"`
}

// ResolveShareableLink resolves a share link, counting the use. The
// use-count increment is revision-checked: two resolves racing for the
// last use reload on conflict, so at most MaxUses resolves ever
// succeed.
func (s *BookingService) ResolveShareableLink(ctx context.Context, linkID string) (*LinkResolution, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		link, err := s.links.Get(ctx, linkID)
		if err != nil {
			return nil, err
		}
		if !link.IsActive {
			return nil, fmt.Errorf("share link %s is inactive: %w", linkID, models.ErrNotFound)
		}
		if link.Expired(time.Now()) {
			return &LinkResolution{BookingID: link.BookingID}, fmt.Errorf("share link %s: %w", linkID, models.ErrExpired)
		}
		if link.Exhausted() {
			return nil, models.ErrMaxUsesReached
		}

		link.CurrentUses++
		if err := s.links.Update(ctx, link); err != nil {
			if errors.Is(err, models.ErrRevConflict) {
				continue
			}
			return nil, err
		}

		return &LinkResolution{
			BookingID:   link.BookingID,
			OwnerID:     link.OwnerID,
			Permissions: link.Permissions,
		}, nil
	}
	return nil, fmt.Errorf("share link %s: too many concurrent resolves: %w", linkID, models.ErrConflict)
}

// generateLinkID generates a short random link id.
func generateLinkID() string {
	id := make([]byte, linkIDLength)
	for i := range id {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(linkIDChars))))
		id[i] = linkIDChars[n.Int64()]
	}
	return string(id)
}
