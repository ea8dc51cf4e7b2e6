package models

import "time"

// Pricing fallback ratios applied when the caller supplies a total but
// no breakdown. Business-rule defaults, not derived from anything.
const (
	BaseFareRatio = 0.85
	TaxRatio      = 0.12
	FeeRatio      = 0.03
)

// Booking is one member's view of a confirmed booking. A trip booking
// writes one record per trip member, keyed by bookingID_memberID, so
// every member sees it in their own booking list. Immutable once
// written.
type Booking struct {
	BookingID   string    `json:"bookingId"`
	MemberID    string    `json:"memberId"`
	TripID      string    `json:"tripId,omitempty"`
	Hotel       *Hotel    `json:"hotel,omitempty"`
	CheckIn     string    `json:"checkIn,omitempty"`
	CheckOut    string    `json:"checkOut,omitempty"`
	Guests      int       `json:"guests"`
	Pricing     Pricing   `json:"pricing"`
	Status      string    `json:"status"`
	ConfirmedBy string    `json:"confirmedBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Pricing is the fare breakdown snapshot stored with a booking.
type Pricing struct {
	BaseFare float64 `json:"baseFare"`
	Taxes    float64 `json:"taxes"`
	Fees     float64 `json:"fees"`
	Total    float64 `json:"total"`
}

// Key returns the storage id for this record.
func (b *Booking) Key() string {
	return b.BookingID + "_" + b.MemberID
}

// FillFromTotal populates a missing fare breakdown from the total using
// the fallback ratios. A breakdown supplied by the caller is kept as-is.
func (p *Pricing) FillFromTotal() {
	if p.BaseFare != 0 || p.Taxes != 0 || p.Fees != 0 {
		return
	}
	p.BaseFare = p.Total * BaseFareRatio
	p.Taxes = p.Total * TaxRatio
	p.Fees = p.Total * FeeRatio
}

// BookingSummary is the reduced booking snapshot patched onto the Trip
// for backward compatibility with clients that read it off the trip.
type BookingSummary struct {
	BookingID   string    `json:"bookingId"`
	HotelName   string    `json:"hotelName,omitempty"`
	Total       float64   `json:"total"`
	ConfirmedBy string    `json:"confirmedBy"`
	ConfirmedAt time.Time `json:"confirmedAt"`
}
