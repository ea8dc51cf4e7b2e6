package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"tripsync-backend/internal/models"
	"tripsync-backend/internal/repository"
)

// casRetries bounds the reload-and-retry loop around optimistic writes.
const casRetries = 3

// TripService handles trip lifecycle, membership and chat mutations.
// Every mutation is a load → validate → mutate → persist → broadcast
// cycle; persistence goes through a revision-checked write with a
// bounded retry on concurrent modification.
type TripService struct {
	trips           *repository.TripStore
	broker          *Broker
	tokens          *TokenService
	linkValidityMin int
}

// NewTripService creates a new trip service. linkValidityMin is the
// invitation-link lifetime used when a create request does not specify
// one.
func NewTripService(trips *repository.TripStore, broker *Broker, tokens *TokenService, linkValidityMin int) *TripService {
	return &TripService{trips: trips, broker: broker, tokens: tokens, linkValidityMin: linkValidityMin}
}

func (s *TripService) mutate(ctx context.Context, tripID string, fn func(*models.Trip) error) (*models.Trip, error) {
	return mutateTrip(ctx, s.trips, tripID, fn)
}

// mutateTrip runs fn against a freshly loaded trip and persists the
// result, retrying on revision conflicts. fn returning errSkipPersist
// commits nothing and returns the loaded trip unchanged.
func mutateTrip(ctx context.Context, trips *repository.TripStore, tripID string, fn func(*models.Trip) error) (*models.Trip, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		trip, err := trips.Get(ctx, tripID)
		if err != nil {
			return nil, err
		}
		if err := fn(trip); err != nil {
			if errors.Is(err, errSkipPersist) {
				return trip, nil
			}
			return nil, err
		}
		if err := trips.Update(ctx, trip); err != nil {
			if errors.Is(err, models.ErrRevConflict) {
				continue
			}
			return nil, err
		}
		return trip, nil
	}
	return nil, fmt.Errorf("trip %s: too many concurrent writers: %w", tripID, models.ErrConflict)
}

// errSkipPersist signals from a mutate closure that the operation is a
// no-op (e.g. closing an already-closed poll) and nothing should be
// written or broadcast.
var errSkipPersist = errors.New("skip persist")

// CreateTripInput carries the trip-creation request.
type CreateTripInput struct {
	TripName            string
	Destination         string
	Purpose             string
	RequiredMembers     int
	AdminName           string
	LinkValidityMinutes int
}

// CreateTripResult is the trip plus the admin's member token.
type CreateTripResult struct {
	Trip  *models.Trip
	Admin models.Member
	Token string
}

// CreateTrip creates a new trip with its admin member and an active
// invitation link. No broadcast: the trip has no subscribers yet.
func (s *TripService) CreateTrip(ctx context.Context, in CreateTripInput) (*CreateTripResult, error) {
	if in.TripName == "" || in.Destination == "" || in.AdminName == "" {
		return nil, fmt.Errorf("tripName, destination and adminName are required: %w", models.ErrInvalid)
	}
	if in.RequiredMembers < 1 {
		return nil, fmt.Errorf("requiredMembers must be at least 1: %w", models.ErrInvalid)
	}
	if in.LinkValidityMinutes <= 0 {
		in.LinkValidityMinutes = s.linkValidityMin
	}
	if in.LinkValidityMinutes <= 0 {
		return nil, fmt.Errorf("linkValidityMinutes must be positive: %w", models.ErrInvalid)
	}

	now := time.Now()
	admin := models.Member{
		ID:       uuid.New().String(),
		Name:     in.AdminName,
		Avatar:   models.AvatarPalette[0],
		IsAdmin:  true,
		JoinedAt: now,
	}
	trip := &models.Trip{
		ID:              uuid.New().String(),
		TripName:        in.TripName,
		Destination:     in.Destination,
		Purpose:         in.Purpose,
		RequiredMembers: in.RequiredMembers,
		Members:         []models.Member{admin},
		LinkExpiresAt:   now.Add(time.Duration(in.LinkValidityMinutes) * time.Minute),
		IsLinkActive:    true,
		CreatedAt:       now,
	}

	if err := s.trips.Create(ctx, trip); err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(trip.ID, admin.ID, true)
	if err != nil {
		return nil, err
	}

	log.Info().Str("trip_id", trip.ID).Str("admin_id", admin.ID).Msg("Trip created")
	return &CreateTripResult{Trip: trip, Admin: admin, Token: token}, nil
}

// GetTrip returns the authoritative trip state. Clients call this to
// reconcile gaps in the push channel.
func (s *TripService) GetTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	return s.trips.Get(ctx, tripID)
}

// JoinResult is the outcome of a successful join.
type JoinResult struct {
	Trip               *models.Trip
	Member             models.Member
	Token              string
	IsDiscountUnlocked bool
}

// JoinTrip adds a guest to the trip identified by the invitation token
// (the trip id doubles as the token). Emits MEMBER_JOINED always and
// ALL_MEMBERS_JOINED exactly on the join that reaches the quorum.
func (s *TripService) JoinTrip(ctx context.Context, token, guestName, guestMobile string) (*JoinResult, error) {
	if guestName == "" {
		return nil, fmt.Errorf("guestName is required: %w", models.ErrInvalid)
	}

	var member models.Member
	quorumReached := false

	trip, err := s.mutate(ctx, token, func(t *models.Trip) error {
		now := time.Now()
		if now.After(t.LinkExpiresAt) {
			return fmt.Errorf("invitation link: %w", models.ErrExpired)
		}
		if !t.IsLinkActive {
			return models.ErrLinkDisabled
		}
		if len(t.Members) >= t.RequiredMembers {
			return models.ErrGroupFull
		}
		if t.MemberByMobile(guestMobile) != nil {
			return models.ErrAlreadyJoined
		}

		member = models.Member{
			ID:       uuid.New().String(),
			Name:     guestName,
			Avatar:   models.AvatarPalette[len(t.Members)%len(models.AvatarPalette)],
			Mobile:   guestMobile,
			JoinedAt: now,
		}
		t.Members = append(t.Members, member)
		quorumReached = len(t.Members) == t.RequiredMembers
		return nil
	})
	if err != nil {
		return nil, err
	}

	memberToken, err := s.tokens.Issue(trip.ID, member.ID, false)
	if err != nil {
		return nil, err
	}

	s.broker.Publish(trip.ID, models.Event{
		Type: models.EventMemberJoined,
		Data: map[string]any{
			"member":             member,
			"members":            trip.Members,
			"isDiscountUnlocked": trip.DiscountUnlocked(),
		},
	})
	if quorumReached {
		s.broker.Publish(trip.ID, models.Event{
			Type: models.EventAllMembersJoined,
			Data: map[string]any{
				"members":            trip.Members,
				"isDiscountUnlocked": true,
			},
		})
	}

	log.Info().Str("trip_id", trip.ID).Str("member_id", member.ID).Bool("quorum", quorumReached).Msg("Member joined")
	return &JoinResult{
		Trip:               trip,
		Member:             member,
		Token:              memberToken,
		IsDiscountUnlocked: trip.DiscountUnlocked(),
	}, nil
}

// LeaveTrip removes a member at their own request. The admin can never
// leave.
func (s *TripService) LeaveTrip(ctx context.Context, tripID, memberID string) (*models.Trip, error) {
	return s.dropMember(ctx, tripID, memberID, "", " left the trip")
}

// RemoveMember removes a member at the admin's request. The admin can
// never be removed, themselves included.
func (s *TripService) RemoveMember(ctx context.Context, tripID, memberID, adminID string) (*models.Trip, error) {
	return s.dropMember(ctx, tripID, memberID, adminID, " was removed from the trip")
}

// dropMember implements leave and remove. Member-list mutation and
// system chat message are two sequential writes, not one transaction;
// a crash between them loses the chat line but never the removal.
func (s *TripService) dropMember(ctx context.Context, tripID, memberID, adminID, suffix string) (*models.Trip, error) {
	var removed models.Member

	trip, err := s.mutate(ctx, tripID, func(t *models.Trip) error {
		if adminID != "" {
			caller := t.FindMember(adminID)
			if caller == nil || !caller.IsAdmin {
				return fmt.Errorf("only the trip organizer can remove members: %w", models.ErrUnauthorized)
			}
		}
		target := t.FindMember(memberID)
		if target == nil {
			return fmt.Errorf("member %s: %w", memberID, models.ErrNotFound)
		}
		if target.IsAdmin {
			return models.ErrCannotRemoveAdmin
		}
		removed = *target

		members := t.Members[:0]
		for _, m := range t.Members {
			if m.ID != memberID {
				members = append(members, m)
			}
		}
		t.Members = members
		return nil
	})
	if err != nil {
		return nil, err
	}

	systemMsg := models.ChatMessage{
		ID:              uuid.New().String(),
		SenderID:        "system",
		SenderName:      "System",
		Message:         removed.Name + suffix,
		Timestamp:       time.Now(),
		IsSystemMessage: true,
	}
	trip, err = s.mutate(ctx, tripID, func(t *models.Trip) error {
		t.ChatMessages = append(t.ChatMessages, systemMsg)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broker.Publish(tripID, models.Event{
		Type: models.EventChatMessage,
		Data: map[string]any{"message": systemMsg},
	})
	s.broker.Publish(tripID, models.Event{
		Type: models.EventMemberRemoved,
		Data: map[string]any{
			"memberId":           removed.ID,
			"members":            trip.Members,
			"isDiscountUnlocked": trip.DiscountUnlocked(),
		},
	})

	log.Info().Str("trip_id", tripID).Str("member_id", memberID).Msg("Member removed")
	return trip, nil
}

// ToggleLink flips the invitation link's active flag. Admin only.
func (s *TripService) ToggleLink(ctx context.Context, tripID, adminID string, isActive bool) (*models.Trip, error) {
	trip, err := s.mutate(ctx, tripID, func(t *models.Trip) error {
		caller := t.FindMember(adminID)
		if caller == nil || !caller.IsAdmin {
			return fmt.Errorf("only the trip organizer can toggle the link: %w", models.ErrUnauthorized)
		}
		t.IsLinkActive = isActive
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broker.Publish(tripID, models.Event{
		Type: models.EventLinkStatusChanged,
		Data: map[string]any{"isLinkActive": isActive},
	})
	return trip, nil
}

// SendChatMessage appends a user message to the trip chat.
func (s *TripService) SendChatMessage(ctx context.Context, tripID, senderID, text string) (*models.ChatMessage, error) {
	if text == "" {
		return nil, fmt.Errorf("message is required: %w", models.ErrInvalid)
	}

	var msg models.ChatMessage
	_, err := s.mutate(ctx, tripID, func(t *models.Trip) error {
		sender := t.FindMember(senderID)
		if sender == nil {
			return models.ErrNotMember
		}
		msg = models.ChatMessage{
			ID:           uuid.New().String(),
			SenderID:     sender.ID,
			SenderName:   sender.Name,
			SenderAvatar: sender.Avatar,
			Message:      text,
			Timestamp:    time.Now(),
		}
		t.ChatMessages = append(t.ChatMessages, msg)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broker.Publish(tripID, models.Event{
		Type: models.EventChatMessage,
		Data: map[string]any{"message": msg},
	})
	return &msg, nil
}

// GetChatMessages returns the trip's full chat history, the
// authoritative source clients re-fetch to fill push-channel gaps.
func (s *TripService) GetChatMessages(ctx context.Context, tripID string) ([]models.ChatMessage, error) {
	trip, err := s.trips.Get(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.ChatMessages == nil {
		return []models.ChatMessage{}, nil
	}
	return trip.ChatMessages, nil
}
