package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"tripsync-backend/internal/models"
	"tripsync-backend/internal/repository"
)

// HotelService handles the hotel shortlist and its voting window.
type HotelService struct {
	trips          *repository.TripStore
	broker         *Broker
	sweeper        *Sweeper
	votingDuration time.Duration
}

// NewHotelService creates a new hotel service. sweeper may be nil in
// tests that drive closure manually.
func NewHotelService(trips *repository.TripStore, broker *Broker, sweeper *Sweeper, votingDuration time.Duration) *HotelService {
	return &HotelService{trips: trips, broker: broker, sweeper: sweeper, votingDuration: votingDuration}
}

func (s *HotelService) mutate(ctx context.Context, tripID string, fn func(*models.Trip) error) (*models.Trip, error) {
	return mutateTrip(ctx, s.trips, tripID, fn)
}

// ShortlistHotels replaces the trip's shortlist and opens a fresh
// voting window. Admin only. Any votes on a previous shortlist are
// discarded with it.
func (s *HotelService) ShortlistHotels(ctx context.Context, tripID, adminID string, hotels []models.Hotel) (*models.Trip, error) {
	if len(hotels) == 0 {
		return nil, fmt.Errorf("at least one hotel is required: %w", models.ErrInvalid)
	}

	var expiresAt time.Time
	trip, err := s.mutate(ctx, tripID, func(t *models.Trip) error {
		caller := t.FindMember(adminID)
		if caller == nil || !caller.IsAdmin {
			return fmt.Errorf("only the trip organizer can shortlist hotels: %w", models.ErrUnauthorized)
		}

		shortlist := make([]models.Hotel, len(hotels))
		copy(shortlist, hotels)
		for i := range shortlist {
			shortlist[i].Votes = make(map[string]models.HotelVote)
		}

		expiresAt = time.Now().Add(s.votingDuration)
		t.ShortlistedHotels = shortlist
		t.HotelVotingStatus = models.HotelVotingActive
		t.HotelVotingExpiresAt = &expiresAt
		t.SelectedHotel = nil
		t.HotelBookingStatus = ""
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.sweeper != nil {
		s.sweeper.ScheduleHotelVotingClose(tripID, expiresAt)
	}

	s.broker.Publish(tripID, models.Event{
		Type: models.EventHotelsShortlisted,
		Data: map[string]any{
			"hotels":               trip.ShortlistedHotels,
			"hotelVotingExpiresAt": expiresAt,
		},
	})

	log.Info().Str("trip_id", tripID).Int("hotels", len(hotels)).Msg("Hotels shortlisted")
	return trip, nil
}

// VoteHotel records a member's reaction to a shortlisted hotel. One
// entry per member, last write wins, no history. The broadcast carries
// the full hotel list rather than a diff.
func (s *HotelService) VoteHotel(ctx context.Context, tripID, hotelID, vote, comment, userID string) (*models.Trip, error) {
	if vote != models.HotelVoteLove && vote != models.HotelVoteDislike {
		return nil, fmt.Errorf("vote must be %q or %q: %w", models.HotelVoteLove, models.HotelVoteDislike, models.ErrInvalid)
	}

	trip, err := s.mutate(ctx, tripID, func(t *models.Trip) error {
		if t.FindMember(userID) == nil {
			return models.ErrNotMember
		}
		if t.HotelVotingStatus != models.HotelVotingActive {
			return fmt.Errorf("hotel voting is not open: %w", models.ErrConflict)
		}
		hotel := t.FindHotel(hotelID)
		if hotel == nil {
			return models.ErrHotelNotFound
		}
		if hotel.Votes == nil {
			hotel.Votes = make(map[string]models.HotelVote)
		}
		hotel.Votes[userID] = models.HotelVote{Vote: vote, Comment: comment}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broker.Publish(tripID, models.Event{
		Type: models.EventHotelVoteUpdated,
		Data: map[string]any{"hotels": trip.ShortlistedHotels},
	})
	return trip, nil
}

// CloseHotelVoting ends the voting window and selects the winning
// hotel: most love votes, ties to the earliest in shortlist order. The
// trip moves to a pending booking. Closing an already-closed round is a
// no-op success.
func (s *HotelService) CloseHotelVoting(ctx context.Context, tripID string) (*models.Trip, error) {
	skipped := false
	trip, err := s.mutate(ctx, tripID, func(t *models.Trip) error {
		if t.HotelVotingStatus == models.HotelVotingClosed {
			skipped = true
			return errSkipPersist
		}
		if t.HotelVotingStatus != models.HotelVotingActive {
			return fmt.Errorf("hotel voting was never opened: %w", models.ErrConflict)
		}

		t.HotelVotingStatus = models.HotelVotingClosed
		if winner := models.HotelWinner(t.ShortlistedHotels); winner != nil {
			selected := *winner
			t.SelectedHotel = &selected
			t.HotelBookingStatus = models.HotelBookingPending
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if skipped {
		return trip, nil
	}

	s.broker.Publish(tripID, models.Event{
		Type: models.EventHotelVotingClosed,
		Data: map[string]any{
			"selectedHotel":      trip.SelectedHotel,
			"hotelBookingStatus": trip.HotelBookingStatus,
			"hotels":             trip.ShortlistedHotels,
		},
	})

	log.Info().Str("trip_id", tripID).Msg("Hotel voting closed")
	return trip, nil
}
