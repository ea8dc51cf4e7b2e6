package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripsync-backend/internal/models"
	"tripsync-backend/internal/repository"
	"tripsync-backend/internal/services"
	"tripsync-backend/internal/storage"
)

func bookingDetails() services.BookingDetails {
	return services.BookingDetails{
		Hotel:    &models.Hotel{ID: "h2", Name: "Palm Grove Inn"},
		CheckIn:  "2026-09-12",
		CheckOut: "2026-09-14",
		Guests:   3,
		Pricing:  models.Pricing{Total: 900},
	}
}

func TestConfirmBooking_OneRecordPerMember(t *testing.T) {
	e := newEnv(t)
	created := e.createTrip(t, 3)
	m1 := e.join(t, created.Trip.ID, "Ravi", "")
	m2 := e.join(t, created.Trip.ID, "Meera", "")
	sub := e.broker.Subscribe(created.Trip.ID)

	booking, err := e.bookSvc.ConfirmBooking(context.Background(), created.Trip.ID, created.Admin.ID, bookingDetails())
	require.NoError(t, err)

	// One record per member, each independently retrievable.
	for _, memberID := range []string{created.Admin.ID, m1.Member.ID, m2.Member.ID} {
		record, err := e.bookSvc.GetBooking(context.Background(), booking.BookingID, memberID)
		require.NoError(t, err)
		assert.Equal(t, memberID, record.MemberID)
		assert.Equal(t, created.Admin.ID, record.ConfirmedBy)
	}

	// Fallback pricing ratios applied from the total.
	assert.InDelta(t, 765, booking.Pricing.BaseFare, 0.01)
	assert.InDelta(t, 108, booking.Pricing.Taxes, 0.01)
	assert.InDelta(t, 27, booking.Pricing.Fees, 0.01)

	// Trip summary patched.
	trip, err := e.tripSvc.GetTrip(context.Background(), created.Trip.ID)
	require.NoError(t, err)
	require.NotNil(t, trip.BookingConfirmation)
	assert.Equal(t, booking.BookingID, trip.BookingConfirmation.BookingID)
	assert.Equal(t, models.HotelBookingConfirmed, trip.HotelBookingStatus)

	assert.Equal(t, []string{models.EventBookingConfirmed}, drain(sub))
}

func TestConfirmBooking_ListBookingsPerMember(t *testing.T) {
	e := newEnv(t)
	created := e.createTrip(t, 2)
	member := e.join(t, created.Trip.ID, "Ravi", "")

	_, err := e.bookSvc.ConfirmBooking(context.Background(), created.Trip.ID, created.Admin.ID, bookingDetails())
	require.NoError(t, err)

	bookings, err := e.bookSvc.ListBookings(context.Background(), member.Member.ID)
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
}

func TestConfirmBooking_StandaloneSkipsTripWrites(t *testing.T) {
	e := newEnv(t)

	booking, err := e.bookSvc.ConfirmBooking(context.Background(), "", "guest-1", bookingDetails())
	require.NoError(t, err)

	assert.Equal(t, "guest-1", booking.MemberID)
	assert.Empty(t, booking.TripID)

	bookings, err := e.bookSvc.ListBookings(context.Background(), "guest-1")
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
}

func TestConfirmBooking_NotMember(t *testing.T) {
	e := newEnv(t)
	created := e.createTrip(t, 2)

	_, err := e.bookSvc.ConfirmBooking(context.Background(), created.Trip.ID, "stranger", bookingDetails())
	assert.ErrorIs(t, err, models.ErrNotMember)
}

func TestConfirmBooking_MissingTotal(t *testing.T) {
	e := newEnv(t)
	_, err := e.bookSvc.ConfirmBooking(context.Background(), "", "guest-1", services.BookingDetails{})
	assert.ErrorIs(t, err, models.ErrInvalid)
}

func newShareEnv(t *testing.T) (*env, *models.Booking) {
	e := newEnv(t)
	booking, err := e.bookSvc.ConfirmBooking(context.Background(), "", "owner-1", bookingDetails())
	require.NoError(t, err)
	return e, booking
}

func TestShareableLink_CreateAndResolve(t *testing.T) {
	e, booking := newShareEnv(t)

	link, err := e.bookSvc.CreateShareableLink(context.Background(), booking.BookingID, "owner-1", 7, "view", 2)
	require.NoError(t, err)
	assert.Len(t, link.ID, 10)
	assert.True(t, link.IsActive)

	resolution, err := e.bookSvc.ResolveShareableLink(context.Background(), link.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.BookingID, resolution.BookingID)
	assert.Equal(t, "view", resolution.Permissions)

	// Use counting.
	got, err := e.bookSvc.ResolveShareableLink(context.Background(), link.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)

	_, err = e.bookSvc.ResolveShareableLink(context.Background(), link.ID)
	assert.ErrorIs(t, err, models.ErrMaxUsesReached)
}

func TestShareableLink_OwnerMismatch(t *testing.T) {
	e, booking := newShareEnv(t)

	// No record of this booking under the other user's key.
	_, err := e.bookSvc.CreateShareableLink(context.Background(), booking.BookingID, "someone-else", 7, "view", 0)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestShareableLink_UnknownLinkIsInvalid(t *testing.T) {
	e := newEnv(t)
	_, err := e.bookSvc.ResolveShareableLink(context.Background(), "nope")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestShareableLink_ExpiredStillReturnsPreview(t *testing.T) {
	e, booking := newShareEnv(t)

	link, err := e.bookSvc.CreateShareableLink(context.Background(), booking.BookingID, "owner-1", 7, "view", 0)
	require.NoError(t, err)

	// Age the link directly in storage.
	links := repository.NewLinkStore(e.store)
	stored, err := links.Get(context.Background(), link.ID)
	require.NoError(t, err)
	stored.ExpiresAt = time.Now().Add(-time.Hour)
	require.NoError(t, links.Update(context.Background(), stored))

	resolution, err := e.bookSvc.ResolveShareableLink(context.Background(), link.ID)
	assert.ErrorIs(t, err, models.ErrExpired)
	require.NotNil(t, resolution, "expired resolve still returns a reduced preview")
	assert.Equal(t, booking.BookingID, resolution.BookingID)
	assert.Empty(t, resolution.Permissions, "preview payload is reduced")
}

func TestBookingStore_KeyLayout(t *testing.T) {
	store := storage.NewMemory()
	bookings := repository.NewBookingStore(store)

	booking := &models.Booking{BookingID: "b1", MemberID: "m1", Status: models.HotelBookingConfirmed}
	require.NoError(t, bookings.Create(context.Background(), booking))

	exists, err := store.Exists(context.Background(), storage.KindBooking, "b1_m1")
	require.NoError(t, err)
	assert.True(t, exists)

	// The per-user index answers list queries without a scan.
	var idx struct {
		Keys []string `json:"keys"`
	}
	require.NoError(t, store.Get(context.Background(), storage.KindIndex, "user:m1:bookings", &idx))
	assert.Equal(t, []string{"b1_m1"}, idx.Keys)
}

func TestShareableLink_RacingLastUse(t *testing.T) {
	mem := storage.NewMemory()
	hs := &hookStore{Store: mem}
	trips := repository.NewTripStore(hs)
	bookings := repository.NewBookingStore(hs)
	links := repository.NewLinkStore(hs)
	broker := services.NewBroker()
	t.Cleanup(broker.Close)
	svc := services.NewBookingService(trips, bookings, links, broker)

	booking, err := svc.ConfirmBooking(context.Background(), "", "owner-1", bookingDetails())
	require.NoError(t, err)
	link, err := svc.CreateShareableLink(context.Background(), booking.BookingID, "owner-1", 7, "view", 1)
	require.NoError(t, err)

	// A competing resolve takes the last use between this resolve's
	// read and its revision-checked write.
	fired := false
	hs.beforeCompareAndSet = func(kind, id string) {
		if kind != storage.KindLink || fired {
			return
		}
		fired = true
		var stale models.ShareableLink
		require.NoError(t, mem.Get(context.Background(), storage.KindLink, id, &stale))
		stale.CurrentUses++
		_, err := mem.CompareAndSet(context.Background(), storage.KindLink, id, &stale, stale.Rev, storage.LinkTTL(stale.ExpiresAt, time.Now()))
		require.NoError(t, err)
	}

	_, err = svc.ResolveShareableLink(context.Background(), link.ID)
	assert.ErrorIs(t, err, models.ErrMaxUsesReached)
	require.True(t, fired)

	stored, err := links.Get(context.Background(), link.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentUses, "exactly one use consumed")
}

func TestBookingIndex_ConcurrentCreateKeepsBothEntries(t *testing.T) {
	mem := storage.NewMemory()
	hs := &hookStore{Store: mem}
	bookings := repository.NewBookingStore(hs)
	ctx := context.Background()

	// A competing booking lands its index entry between this create's
	// read and write; the conflicting write must merge, not overwrite.
	fired := false
	hs.beforeCompareAndSet = func(kind, id string) {
		if kind != storage.KindIndex || fired {
			return
		}
		fired = true
		other := repository.NewBookingStore(mem)
		require.NoError(t, other.Create(ctx, &models.Booking{BookingID: "b2", MemberID: "m1"}))
	}

	require.NoError(t, bookings.Create(ctx, &models.Booking{BookingID: "b1", MemberID: "m1"}))
	require.True(t, fired)

	list, err := bookings.ListByUser(ctx, "m1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
