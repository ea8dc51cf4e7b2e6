package models

// Hotel vote values.
const (
	HotelVoteLove    = "love"
	HotelVoteDislike = "dislike"
)

// Hotel is a shortlisted hotel open for group voting. Votes is keyed by
// member id with last-write-wins semantics: re-voting overwrites the
// member's previous entry, no history is kept.
type Hotel struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	Location      string               `json:"location,omitempty"`
	PricePerNight float64              `json:"pricePerNight,omitempty"`
	Rating        float64              `json:"rating,omitempty"`
	Image         string               `json:"image,omitempty"`
	Amenities     []string             `json:"amenities,omitempty"`
	Votes         map[string]HotelVote `json:"votes,omitempty"`
}

// HotelVote is one member's reaction to a shortlisted hotel.
type HotelVote struct {
	Vote    string `json:"vote"`
	Comment string `json:"comment,omitempty"`
}

// LoveCount returns the number of "love" votes on the hotel.
func (h *Hotel) LoveCount() int {
	n := 0
	for _, v := range h.Votes {
		if v.Vote == HotelVoteLove {
			n++
		}
	}
	return n
}

// HotelWinner returns the hotel with the most love votes. Ties resolve
// to the earliest hotel in shortlist order. Returns nil for an empty
// shortlist.
func HotelWinner(hotels []Hotel) *Hotel {
	var winner *Hotel
	best := -1
	for i := range hotels {
		if n := hotels[i].LoveCount(); n > best {
			winner = &hotels[i]
			best = n
		}
	}
	return winner
}
