package models

import "time"

// Poll types and statuses.
const (
	PollTypeBudget    = "budget"
	PollTypeDates     = "dates"
	PollTypeAmenities = "amenities"

	PollStatusActive = "active"
	PollStatusClosed = "closed"
)

// Poll is a timed group vote inside a trip. Amenities polls are
// multi-select; budget and dates polls are single-select.
type Poll struct {
	ID        string       `json:"id"`
	Type      string       `json:"type"`
	Question  string       `json:"question"`
	Options   []PollOption `json:"options"`
	Status    string       `json:"status"`
	CreatedAt time.Time    `json:"createdAt"`
	Duration  int          `json:"duration"` // seconds
	ExpiresAt time.Time    `json:"expiresAt"`
}

// PollOption holds one choice and the ids of the members who picked it.
// Votes has set semantics: a member id appears at most once per option.
type PollOption struct {
	ID    string   `json:"id"`
	Text  string   `json:"text"`
	Votes []string `json:"votes"`
}

// MultiSelect reports whether a member may vote for several options at
// once.
func (p *Poll) MultiSelect() bool {
	return p.Type == PollTypeAmenities
}

// Expired reports whether the poll's deadline has passed. Expiry is
// always this explicit field check; it never relies on storage TTL.
func (p *Poll) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// ClearVotes removes the member's id from every option. Combined with a
// re-add this is the clear-then-set pattern that makes voting idempotent.
func (p *Poll) ClearVotes(memberID string) {
	for i := range p.Options {
		votes := p.Options[i].Votes[:0]
		for _, id := range p.Options[i].Votes {
			if id != memberID {
				votes = append(votes, id)
			}
		}
		p.Options[i].Votes = votes
	}
}

// FindOption returns the option with the given id, or nil.
func (p *Poll) FindOption(optionID string) *PollOption {
	for i := range p.Options {
		if p.Options[i].ID == optionID {
			return &p.Options[i]
		}
	}
	return nil
}

// Winner returns the option with the most votes. Ties resolve to the
// first such option in list order. Returns nil for a poll with no
// options.
func (p *Poll) Winner() *PollOption {
	var winner *PollOption
	for i := range p.Options {
		if winner == nil || len(p.Options[i].Votes) > len(winner.Votes) {
			winner = &p.Options[i]
		}
	}
	return winner
}
