package models

import "time"

// Hotel voting / booking statuses on a trip.
const (
	HotelVotingInactive = ""
	HotelVotingActive   = "active"
	HotelVotingClosed   = "closed"

	HotelBookingPending   = "pending"
	HotelBookingConfirmed = "confirmed"
)

// AvatarPalette is the fixed set of member avatars. A joining member gets
// the avatar at index len(members) % len(AvatarPalette), so a full group
// cycles through the palette in join order.
var AvatarPalette = []string{"🦊", "🐼", "🦁", "🐨", "🐯", "🦉", "🐸", "🐙"}

// Trip is the root aggregate for one group-planning session.
// Rev is the optimistic-concurrency revision maintained by the storage
// layer; every persist goes through CompareAndSet against it.
type Trip struct {
	ID                   string          `json:"id"`
	TripName             string          `json:"tripName"`
	Destination          string          `json:"destination"`
	Purpose              string          `json:"purpose"`
	RequiredMembers      int             `json:"requiredMembers"`
	Members              []Member        `json:"members"`
	Polls                []Poll          `json:"polls"`
	ChatMessages         []ChatMessage   `json:"chatMessages"`
	ShortlistedHotels    []Hotel         `json:"shortlistedHotels"`
	LinkExpiresAt        time.Time       `json:"linkExpiresAt"`
	IsLinkActive         bool            `json:"isLinkActive"`
	HotelVotingStatus    string          `json:"hotelVotingStatus,omitempty"`
	HotelVotingExpiresAt *time.Time      `json:"hotelVotingExpiresAt,omitempty"`
	SelectedHotel        *Hotel          `json:"selectedHotel,omitempty"`
	HotelBookingStatus   string          `json:"hotelBookingStatus,omitempty"`
	BookingConfirmation  *BookingSummary `json:"bookingConfirmation,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`

	Rev int64 `json:"-"`
}

// SetRev records the storage revision observed on a read.
func (t *Trip) SetRev(rev int64) { t.Rev = rev }

// Member is a trip participant. Created on trip creation (admin) or join;
// never mutated afterwards except removal from the member list.
type Member struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Avatar   string    `json:"avatar"`
	IsAdmin  bool      `json:"isAdmin"`
	Mobile   string    `json:"mobile,omitempty"`
	JoinedAt time.Time `json:"joinedAt"`
}

// ChatMessage is one entry in the trip's append-only chat log. System
// messages (member left/removed) share the log with user messages.
type ChatMessage struct {
	ID              string    `json:"id"`
	SenderID        string    `json:"senderId"`
	SenderName      string    `json:"senderName"`
	SenderAvatar    string    `json:"senderAvatar,omitempty"`
	Message         string    `json:"message"`
	Timestamp       time.Time `json:"timestamp"`
	IsSystemMessage bool      `json:"isSystemMessage,omitempty"`
}

// DiscountUnlocked reports whether the group has reached the configured
// member quorum.
func (t *Trip) DiscountUnlocked() bool {
	return len(t.Members) >= t.RequiredMembers
}

// FindMember returns the member with the given id, or nil.
func (t *Trip) FindMember(memberID string) *Member {
	for i := range t.Members {
		if t.Members[i].ID == memberID {
			return &t.Members[i]
		}
	}
	return nil
}

// Admin returns the trip's admin member. Every trip has exactly one,
// created with the trip itself.
func (t *Trip) Admin() *Member {
	for i := range t.Members {
		if t.Members[i].IsAdmin {
			return &t.Members[i]
		}
	}
	return nil
}

// MemberByMobile returns the member with the given non-empty mobile
// number, or nil. Used for join idempotence.
func (t *Trip) MemberByMobile(mobile string) *Member {
	if mobile == "" {
		return nil
	}
	for i := range t.Members {
		if t.Members[i].Mobile == mobile {
			return &t.Members[i]
		}
	}
	return nil
}

// ActivePollOfType returns the active poll with the given type, or nil.
// At most one active poll per type is enforced at creation time.
func (t *Trip) ActivePollOfType(pollType string) *Poll {
	for i := range t.Polls {
		if t.Polls[i].Type == pollType && t.Polls[i].Status == PollStatusActive {
			return &t.Polls[i]
		}
	}
	return nil
}

// FindPoll returns the poll with the given id, or nil.
func (t *Trip) FindPoll(pollID string) *Poll {
	for i := range t.Polls {
		if t.Polls[i].ID == pollID {
			return &t.Polls[i]
		}
	}
	return nil
}

// FindHotel returns the shortlisted hotel with the given id, or nil.
func (t *Trip) FindHotel(hotelID string) *Hotel {
	for i := range t.ShortlistedHotels {
		if t.ShortlistedHotels[i].ID == hotelID {
			return &t.ShortlistedHotels[i]
		}
	}
	return nil
}
