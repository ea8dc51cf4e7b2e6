package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripsync-backend/internal/models"
)

func sampleHotels() []models.Hotel {
	return []models.Hotel{
		{ID: "h1", Name: "Sea Breeze Resort", PricePerNight: 120},
		{ID: "h2", Name: "Palm Grove Inn", PricePerNight: 95},
		{ID: "h3", Name: "Cliffside Retreat", PricePerNight: 180},
	}
}

func (e *env) shortlist(t *testing.T, tripID, adminID string) *models.Trip {
	t.Helper()
	trip, err := e.hotelSvc.ShortlistHotels(context.Background(), tripID, adminID, sampleHotels())
	require.NoError(t, err)
	return trip
}

func TestShortlistHotels_OpensVotingWindow(t *testing.T) {
	e := newEnv(t)
	created := e.createTrip(t, 2)
	sub := e.broker.Subscribe(created.Trip.ID)

	trip := e.shortlist(t, created.Trip.ID, created.Admin.ID)

	assert.Equal(t, models.HotelVotingActive, trip.HotelVotingStatus)
	require.NotNil(t, trip.HotelVotingExpiresAt)
	assert.Len(t, trip.ShortlistedHotels, 3)
	assert.Equal(t, []string{models.EventHotelsShortlisted}, drain(sub))
}

func TestShortlistHotels_AdminOnly(t *testing.T) {
	e := newEnv(t)
	created := e.createTrip(t, 3)
	member := e.join(t, created.Trip.ID, "Ravi", "")

	_, err := e.hotelSvc.ShortlistHotels(context.Background(), created.Trip.ID, member.Member.ID, sampleHotels())
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestVoteHotel_LastWriteWins(t *testing.T) {
	e := newEnv(t)
	created := e.createTrip(t, 2)
	e.shortlist(t, created.Trip.ID, created.Admin.ID)
	sub := e.broker.Subscribe(created.Trip.ID)

	_, err := e.hotelSvc.VoteHotel(context.Background(), created.Trip.ID, "h1", models.HotelVoteLove, "great pool", created.Admin.ID)
	require.NoError(t, err)

	trip, err := e.hotelSvc.VoteHotel(context.Background(), created.Trip.ID, "h1", models.HotelVoteDislike, "too pricey", created.Admin.ID)
	require.NoError(t, err)

	hotel := trip.FindHotel("h1")
	require.Len(t, hotel.Votes, 1)
	assert.Equal(t, models.HotelVoteDislike, hotel.Votes[created.Admin.ID].Vote)
	assert.Equal(t, "too pricey", hotel.Votes[created.Admin.ID].Comment)
	assert.Equal(t,
		[]string{models.EventHotelVoteUpdated, models.EventHotelVoteUpdated},
		drain(sub))
}

func TestVoteHotel_Failures(t *testing.T) {
	e := newEnv(t)
	created := e.createTrip(t, 2)

	// Voting before any shortlist exists.
	_, err := e.hotelSvc.VoteHotel(context.Background(), created.Trip.ID, "h1", models.HotelVoteLove, "", created.Admin.ID)
	assert.ErrorIs(t, err, models.ErrConflict)

	e.shortlist(t, created.Trip.ID, created.Admin.ID)

	_, err = e.hotelSvc.VoteHotel(context.Background(), created.Trip.ID, "h1", models.HotelVoteLove, "", "stranger")
	assert.ErrorIs(t, err, models.ErrNotMember)

	_, err = e.hotelSvc.VoteHotel(context.Background(), created.Trip.ID, "nope", models.HotelVoteLove, "", created.Admin.ID)
	assert.ErrorIs(t, err, models.ErrHotelNotFound)

	_, err = e.hotelSvc.VoteHotel(context.Background(), created.Trip.ID, "h1", "meh", "", created.Admin.ID)
	assert.ErrorIs(t, err, models.ErrInvalid)
}

func TestCloseHotelVoting_SelectsWinnerAndPendsBooking(t *testing.T) {
	e := newEnv(t)
	created := e.createTrip(t, 3)
	m1 := e.join(t, created.Trip.ID, "Ravi", "")
	m2 := e.join(t, created.Trip.ID, "Meera", "")
	e.shortlist(t, created.Trip.ID, created.Admin.ID)

	vote := func(memberID, hotelID, vote string) {
		_, err := e.hotelSvc.VoteHotel(context.Background(), created.Trip.ID, hotelID, vote, "", memberID)
		require.NoError(t, err)
	}
	vote(created.Admin.ID, "h2", models.HotelVoteLove)
	vote(m1.Member.ID, "h2", models.HotelVoteLove)
	vote(m2.Member.ID, "h3", models.HotelVoteLove)

	sub := e.broker.Subscribe(created.Trip.ID)
	trip, err := e.hotelSvc.CloseHotelVoting(context.Background(), created.Trip.ID)
	require.NoError(t, err)

	assert.Equal(t, models.HotelVotingClosed, trip.HotelVotingStatus)
	require.NotNil(t, trip.SelectedHotel)
	assert.Equal(t, "h2", trip.SelectedHotel.ID)
	assert.Equal(t, models.HotelBookingPending, trip.HotelBookingStatus)
	assert.Equal(t, []string{models.EventHotelVotingClosed}, drain(sub))
}

func TestCloseHotelVoting_Idempotent(t *testing.T) {
	e := newEnv(t)
	created := e.createTrip(t, 2)
	e.shortlist(t, created.Trip.ID, created.Admin.ID)

	_, err := e.hotelSvc.CloseHotelVoting(context.Background(), created.Trip.ID)
	require.NoError(t, err)

	sub := e.broker.Subscribe(created.Trip.ID)
	trip, err := e.hotelSvc.CloseHotelVoting(context.Background(), created.Trip.ID)
	require.NoError(t, err)
	assert.Equal(t, models.HotelVotingClosed, trip.HotelVotingStatus)
	assert.Empty(t, drain(sub))
}

func TestCloseHotelVoting_NeverOpened(t *testing.T) {
	e := newEnv(t)
	created := e.createTrip(t, 2)

	_, err := e.hotelSvc.CloseHotelVoting(context.Background(), created.Trip.ID)
	assert.ErrorIs(t, err, models.ErrConflict)
}
