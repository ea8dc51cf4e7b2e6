package services

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"tripsync-backend/internal/models"
)

// Sweeper force-closes polls and hotel voting rounds when their
// deadlines pass, independent of any connected client. Manual close
// calls remain valid; both paths are idempotent so whichever fires
// first wins and the other is a no-op.
//
// Deadlines live only in memory: after a restart, open rounds created
// before it are closed on the next manual trigger instead.
type Sweeper struct {
	mu      sync.Mutex
	heap    deadlineHeap
	wake    chan struct{}
	polls   *PollService
	hotels  *HotelService
	started bool
}

type deadline struct {
	at     time.Time
	tripID string
	pollID string // empty for a hotel-voting deadline
}

// NewSweeper creates an idle sweeper. Bind wires the services after
// construction (the services need the sweeper to schedule deadlines,
// the sweeper needs the services to fire them).
func NewSweeper() *Sweeper {
	return &Sweeper{wake: make(chan struct{}, 1)}
}

// Bind attaches the close operations the sweeper invokes.
func (s *Sweeper) Bind(polls *PollService, hotels *HotelService) {
	s.polls = polls
	s.hotels = hotels
}

// SchedulePollClose registers a poll deadline.
func (s *Sweeper) SchedulePollClose(tripID, pollID string, at time.Time) {
	s.push(deadline{at: at, tripID: tripID, pollID: pollID})
}

// ScheduleHotelVotingClose registers a hotel-voting deadline.
func (s *Sweeper) ScheduleHotelVotingClose(tripID string, at time.Time) {
	s.push(deadline{at: at, tripID: tripID})
}

func (s *Sweeper) push(d deadline) {
	s.mu.Lock()
	heap.Push(&s.heap, d)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run pops due deadlines on the given cadence until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-ticker.C:
		}
		s.fireDue(ctx, time.Now())
	}
}

// fireDue closes everything whose deadline is at or before now.
func (s *Sweeper) fireDue(ctx context.Context, now time.Time) {
	for {
		s.mu.Lock()
		if len(s.heap) == 0 || s.heap[0].at.After(now) {
			s.mu.Unlock()
			return
		}
		d := heap.Pop(&s.heap).(deadline)
		s.mu.Unlock()

		var err error
		if d.pollID != "" {
			_, err = s.polls.ClosePoll(ctx, d.tripID, d.pollID)
		} else {
			_, err = s.hotels.CloseHotelVoting(ctx, d.tripID)
		}
		// A trip aged out of storage or a round already closed manually
		// is the expected end state, not a failure.
		if err != nil && !errors.Is(err, models.ErrNotFound) && !errors.Is(err, models.ErrConflict) {
			log.Error().Err(err).Str("trip_id", d.tripID).Str("poll_id", d.pollID).Msg("Expiry close failed")
		}
	}
}

// deadlineHeap is a min-heap ordered by deadline time.
type deadlineHeap []deadline

func (h deadlineHeap) Len() int           { return len(h) }
func (h deadlineHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }
func (h deadlineHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *deadlineHeap) Push(x any)        { *h = append(*h, x.(deadline)) }
func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	d := old[n-1]
	*h = old[:n-1]
	return d
}
