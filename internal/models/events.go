package models

// Event types pushed to trip subscribers. Each event carries a type tag
// and a data payload shaped by the mutation that emitted it.
const (
	EventConnected         = "CONNECTED"
	EventMemberJoined      = "MEMBER_JOINED"
	EventAllMembersJoined  = "ALL_MEMBERS_JOINED"
	EventMemberRemoved     = "MEMBER_REMOVED"
	EventChatMessage       = "CHAT_MESSAGE"
	EventPollCreated       = "POLL_CREATED"
	EventPollUpdated       = "POLL_UPDATED"
	EventPollClosed        = "POLL_CLOSED"
	EventHotelsShortlisted = "HOTELS_SHORTLISTED"
	EventHotelVoteUpdated  = "HOTEL_VOTE_UPDATED"
	EventHotelVotingClosed = "HOTEL_VOTING_CLOSED"
	EventLinkStatusChanged = "LINK_STATUS_CHANGED"
	EventBookingConfirmed  = "BOOKING_CONFIRMED"
)

// Event is one message on the push channel.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}
