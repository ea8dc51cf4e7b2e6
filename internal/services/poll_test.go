package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripsync-backend/internal/models"
	"tripsync-backend/internal/services"
)

func (e *env) createPoll(t *testing.T, tripID string, in services.CreatePollInput) *models.Poll {
	t.Helper()
	poll, err := e.pollSvc.CreatePoll(context.Background(), tripID, in)
	require.NoError(t, err)
	return poll
}

func TestCreatePoll_TemplateExpansion(t *testing.T) {
	e := newEnv(t)
	created := e.createTrip(t, 2)
	sub := e.broker.Subscribe(created.Trip.ID)

	poll := e.createPoll(t, created.Trip.ID, services.CreatePollInput{Type: models.PollTypeBudget})

	assert.Equal(t, models.PollStatusActive, poll.Status)
	assert.NotEmpty(t, poll.Question)
	assert.GreaterOrEqual(t, len(poll.Options), 2)
	assert.Equal(t, 300, poll.Duration)
	assert.WithinDuration(t, time.Now().Add(300*time.Second), poll.ExpiresAt, 2*time.Second)
	assert.Equal(t, []string{models.EventPollCreated}, drain(sub))
}

func TestCreatePoll_DatesTemplateIsRelativeToNow(t *testing.T) {
	e := newEnv(t)
	created := e.createTrip(t, 2)

	poll := e.createPoll(t, created.Trip.ID, services.CreatePollInput{Type: models.PollTypeDates})
	assert.Len(t, poll.Options, 3)
}

func TestCreatePoll_UnknownType(t *testing.T) {
	e := newEnv(t)
	created := e.createTrip(t, 2)

	_, err := e.pollSvc.CreatePoll(context.Background(), created.Trip.ID, services.CreatePollInput{Type: "vibes"})
	assert.ErrorIs(t, err, models.ErrInvalid)
}

func TestCreatePoll_DuplicateActiveTypeConflicts(t *testing.T) {
	e := newEnv(t)
	created := e.createTrip(t, 2)
	first := e.createPoll(t, created.Trip.ID, services.CreatePollInput{Type: models.PollTypeBudget})

	_, err := e.pollSvc.CreatePoll(context.Background(), created.Trip.ID, services.CreatePollInput{Type: models.PollTypeBudget})
	assert.ErrorIs(t, err, models.ErrConflict)

	// A closed poll of the same type can be superseded.
	_, err = e.pollSvc.ClosePoll(context.Background(), created.Trip.ID, first.ID)
	require.NoError(t, err)
	e.createPoll(t, created.Trip.ID, services.CreatePollInput{Type: models.PollTypeBudget})
}

func TestVotePoll_IdempotentRecast(t *testing.T) {
	e := newEnv(t)
	created := e.createTrip(t, 2)
	member := e.join(t, created.Trip.ID, "Ravi", "")
	poll := e.createPoll(t, created.Trip.ID, services.CreatePollInput{Type: models.PollTypeBudget})

	opt0, opt1 := poll.Options[0].ID, poll.Options[1].ID

	// Same vote twice leaves the sets unchanged.
	voted, err := e.pollSvc.VotePoll(context.Background(), created.Trip.ID, poll.ID, []string{opt0}, member.Member.ID)
	require.NoError(t, err)
	voted, err = e.pollSvc.VotePoll(context.Background(), created.Trip.ID, poll.ID, []string{opt0}, member.Member.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{member.Member.ID}, voted.Options[0].Votes)

	// A different vote replaces the prior one.
	voted, err = e.pollSvc.VotePoll(context.Background(), created.Trip.ID, poll.ID, []string{opt1}, member.Member.ID)
	require.NoError(t, err)
	assert.Empty(t, voted.Options[0].Votes)
	assert.Equal(t, []string{member.Member.ID}, voted.Options[1].Votes)
}

func TestVotePoll_SingleSelectCoercesMultiPayload(t *testing.T) {
	e := newEnv(t)
	created := e.createTrip(t, 2)
	poll := e.createPoll(t, created.Trip.ID, services.CreatePollInput{Type: models.PollTypeBudget})

	voted, err := e.pollSvc.VotePoll(context.Background(), created.Trip.ID, poll.ID,
		[]string{poll.Options[0].ID, poll.Options[1].ID}, created.Admin.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{created.Admin.ID}, voted.Options[0].Votes)
	assert.Empty(t, voted.Options[1].Votes)
}

func TestVotePoll_AmenitiesMultiSelect(t *testing.T) {
	e := newEnv(t)
	created := e.createTrip(t, 2)
	poll := e.createPoll(t, created.Trip.ID, services.CreatePollInput{Type: models.PollTypeAmenities})

	voted, err := e.pollSvc.VotePoll(context.Background(), created.Trip.ID, poll.ID,
		[]string{poll.Options[0].ID, poll.Options[2].ID}, created.Admin.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{created.Admin.ID}, voted.Options[0].Votes)
	assert.Empty(t, voted.Options[1].Votes)
	assert.Equal(t, []string{created.Admin.ID}, voted.Options[2].Votes)

	// Recasting with a different set replaces the whole selection.
	voted, err = e.pollSvc.VotePoll(context.Background(), created.Trip.ID, poll.ID,
		[]string{poll.Options[1].ID}, created.Admin.ID)
	require.NoError(t, err)
	assert.Empty(t, voted.Options[0].Votes)
	assert.Equal(t, []string{created.Admin.ID}, voted.Options[1].Votes)
	assert.Empty(t, voted.Options[2].Votes)
}

func TestVotePoll_NotMember(t *testing.T) {
	e := newEnv(t)
	created := e.createTrip(t, 2)
	poll := e.createPoll(t, created.Trip.ID, services.CreatePollInput{Type: models.PollTypeBudget})

	_, err := e.pollSvc.VotePoll(context.Background(), created.Trip.ID, poll.ID, []string{poll.Options[0].ID}, "stranger")
	assert.ErrorIs(t, err, models.ErrNotMember)
}

func TestClosePoll_WinnerAndRoundTrip(t *testing.T) {
	e := newEnv(t)
	created := e.createTrip(t, 3)
	m1 := e.join(t, created.Trip.ID, "Ravi", "")
	m2 := e.join(t, created.Trip.ID, "Meera", "")
	poll := e.createPoll(t, created.Trip.ID, services.CreatePollInput{Type: models.PollTypeBudget})

	vote := func(memberID, optionID string) {
		_, err := e.pollSvc.VotePoll(context.Background(), created.Trip.ID, poll.ID, []string{optionID}, memberID)
		require.NoError(t, err)
	}
	vote(created.Admin.ID, poll.Options[1].ID)
	vote(m1.Member.ID, poll.Options[1].ID)
	vote(m2.Member.ID, poll.Options[0].ID)

	sub := e.broker.Subscribe(created.Trip.ID)
	closed, err := e.pollSvc.ClosePoll(context.Background(), created.Trip.ID, poll.ID)
	require.NoError(t, err)

	assert.Equal(t, models.PollStatusClosed, closed.Status)
	winner := closed.Winner()
	require.NotNil(t, winner)
	assert.Equal(t, poll.Options[1].ID, winner.ID)
	assert.Equal(t, []string{models.EventPollClosed}, drain(sub))
}

func TestClosePoll_AfterExpiryStillSucceeds(t *testing.T) {
	e := newEnv(t)
	created := e.createTrip(t, 2)
	poll := e.createPoll(t, created.Trip.ID, services.CreatePollInput{
		Type:        models.PollTypeBudget,
		DurationSec: 1,
	})

	_, err := e.pollSvc.VotePoll(context.Background(), created.Trip.ID, poll.ID, []string{poll.Options[2].ID}, created.Admin.ID)
	require.NoError(t, err)

	// Push the deadline into the past without waiting.
	trip, err := e.trips.Get(context.Background(), created.Trip.ID)
	require.NoError(t, err)
	trip.FindPoll(poll.ID).ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, e.trips.Update(context.Background(), trip))

	closed, err := e.pollSvc.ClosePoll(context.Background(), created.Trip.ID, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PollStatusClosed, closed.Status)
	assert.Equal(t, poll.Options[2].ID, closed.Winner().ID)
}

func TestClosePoll_IdempotentNoSecondBroadcast(t *testing.T) {
	e := newEnv(t)
	created := e.createTrip(t, 2)
	poll := e.createPoll(t, created.Trip.ID, services.CreatePollInput{Type: models.PollTypeBudget})

	_, err := e.pollSvc.ClosePoll(context.Background(), created.Trip.ID, poll.ID)
	require.NoError(t, err)

	sub := e.broker.Subscribe(created.Trip.ID)
	closed, err := e.pollSvc.ClosePoll(context.Background(), created.Trip.ID, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PollStatusClosed, closed.Status)
	assert.Empty(t, drain(sub))
}
