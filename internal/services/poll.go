package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"tripsync-backend/internal/models"
	"tripsync-backend/internal/repository"
)

// PollService handles poll creation, voting and closure.
type PollService struct {
	trips           *repository.TripStore
	broker          *Broker
	sweeper         *Sweeper
	defaultDuration time.Duration
}

// NewPollService creates a new poll service. sweeper may be nil in
// tests that drive closure manually.
func NewPollService(trips *repository.TripStore, broker *Broker, sweeper *Sweeper, defaultDuration time.Duration) *PollService {
	return &PollService{trips: trips, broker: broker, sweeper: sweeper, defaultDuration: defaultDuration}
}

func (s *PollService) mutate(ctx context.Context, tripID string, fn func(*models.Trip) error) (*models.Trip, error) {
	return mutateTrip(ctx, s.trips, tripID, fn)
}

// CreatePollInput carries the poll-creation request. When Question is
// empty the built-in template for Type is expanded; DurationSec falls
// back to the configured default.
type CreatePollInput struct {
	Type        string
	Question    string
	Options     []string
	DurationSec int
}

// CreatePoll appends a new active poll to the trip. At most one active
// poll per type: creating over a live one returns Conflict, while a
// closed poll of the same type may be superseded.
func (s *PollService) CreatePoll(ctx context.Context, tripID string, in CreatePollInput) (*models.Poll, error) {
	if in.Type != models.PollTypeBudget && in.Type != models.PollTypeDates && in.Type != models.PollTypeAmenities {
		return nil, fmt.Errorf("unknown poll type %q: %w", in.Type, models.ErrInvalid)
	}

	question := in.Question
	optionTexts := in.Options
	if question == "" {
		question, optionTexts = pollTemplate(in.Type, time.Now())
	}
	if len(optionTexts) < 2 {
		return nil, fmt.Errorf("a poll needs at least two options: %w", models.ErrInvalid)
	}

	duration := s.defaultDuration
	if in.DurationSec > 0 {
		duration = time.Duration(in.DurationSec) * time.Second
	}

	var poll models.Poll
	_, err := s.mutate(ctx, tripID, func(t *models.Trip) error {
		if t.ActivePollOfType(in.Type) != nil {
			return fmt.Errorf("an active %s poll already exists: %w", in.Type, models.ErrConflict)
		}

		now := time.Now()
		options := make([]models.PollOption, len(optionTexts))
		for i, text := range optionTexts {
			options[i] = models.PollOption{
				ID:    uuid.New().String(),
				Text:  text,
				Votes: []string{},
			}
		}
		poll = models.Poll{
			ID:        uuid.New().String(),
			Type:      in.Type,
			Question:  question,
			Options:   options,
			Status:    models.PollStatusActive,
			CreatedAt: now,
			Duration:  int(duration.Seconds()),
			ExpiresAt: now.Add(duration),
		}
		t.Polls = append(t.Polls, poll)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.sweeper != nil {
		s.sweeper.SchedulePollClose(tripID, poll.ID, poll.ExpiresAt)
	}

	s.broker.Publish(tripID, models.Event{
		Type: models.EventPollCreated,
		Data: map[string]any{"poll": poll},
	})

	log.Info().Str("trip_id", tripID).Str("poll_id", poll.ID).Str("type", poll.Type).Msg("Poll created")
	return &poll, nil
}

// VotePoll records a member's vote. Non-amenities polls are
// single-select: a multi-id payload is coerced to its first element.
// Voting clears the member from every option before re-adding, so a
// re-cast replaces and never duplicates.
func (s *PollService) VotePoll(ctx context.Context, tripID, pollID string, optionIDs []string, userID string) (*models.Poll, error) {
	if len(optionIDs) == 0 {
		return nil, fmt.Errorf("at least one optionId is required: %w", models.ErrInvalid)
	}

	var voted models.Poll
	_, err := s.mutate(ctx, tripID, func(t *models.Trip) error {
		if t.FindMember(userID) == nil {
			return models.ErrNotMember
		}
		poll := t.FindPoll(pollID)
		if poll == nil {
			return fmt.Errorf("poll %s: %w", pollID, models.ErrNotFound)
		}
		if poll.Status != models.PollStatusActive {
			return fmt.Errorf("poll is closed: %w", models.ErrConflict)
		}

		selected := optionIDs
		if !poll.MultiSelect() {
			selected = optionIDs[:1]
		}
		for _, optionID := range selected {
			if poll.FindOption(optionID) == nil {
				return fmt.Errorf("option %s: %w", optionID, models.ErrNotFound)
			}
		}

		poll.ClearVotes(userID)
		for _, optionID := range selected {
			opt := poll.FindOption(optionID)
			opt.Votes = append(opt.Votes, userID)
		}
		voted = *poll
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broker.Publish(tripID, models.Event{
		Type: models.EventPollUpdated,
		Data: map[string]any{"poll": voted},
	})
	return &voted, nil
}

// ClosePoll closes a poll and announces the winner. Closing an
// already-closed poll is a no-op success, so a manual close racing the
// expiry sweep is harmless. Closing after the deadline still succeeds
// and counts the votes cast before it.
func (s *PollService) ClosePoll(ctx context.Context, tripID, pollID string) (*models.Poll, error) {
	var (
		closed  models.Poll
		skipped bool
	)
	_, err := s.mutate(ctx, tripID, func(t *models.Trip) error {
		poll := t.FindPoll(pollID)
		if poll == nil {
			return fmt.Errorf("poll %s: %w", pollID, models.ErrNotFound)
		}
		if poll.Status == models.PollStatusClosed {
			closed = *poll
			skipped = true
			return errSkipPersist
		}
		poll.Status = models.PollStatusClosed
		closed = *poll
		return nil
	})
	if err != nil {
		return nil, err
	}
	if skipped {
		return &closed, nil
	}

	var winner any
	if w := closed.Winner(); w != nil {
		winner = *w
	}
	s.broker.Publish(tripID, models.Event{
		Type: models.EventPollClosed,
		Data: map[string]any{"poll": closed, "winner": winner},
	})

	log.Info().Str("trip_id", tripID).Str("poll_id", pollID).Msg("Poll closed")
	return &closed, nil
}

// pollTemplate expands the built-in question and options for a poll
// type. Date options are computed relative to now so they always point
// at upcoming weekends.
func pollTemplate(pollType string, now time.Time) (string, []string) {
	switch pollType {
	case models.PollTypeBudget:
		return "What's our budget per person?", []string{
			"Under $500",
			"$500 – $1000",
			"$1000 – $2000",
			"No limit, treat ourselves",
		}
	case models.PollTypeDates:
		question := "Which dates work for everyone?"
		options := make([]string, 0, 3)
		for i := 0; i < 3; i++ {
			start := nextSaturday(now).AddDate(0, 0, 7*i)
			end := start.AddDate(0, 0, 1)
			options = append(options, start.Format("Jan 2")+" – "+end.Format("Jan 2"))
		}
		return question, options
	case models.PollTypeAmenities:
		return "Which amenities matter most? (pick any)", []string{
			"Pool",
			"Spa",
			"Gym",
			"Beach access",
			"Free breakfast",
		}
	}
	return "", nil
}

func nextSaturday(now time.Time) time.Time {
	days := (int(time.Saturday) - int(now.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return now.AddDate(0, 0, days)
}
