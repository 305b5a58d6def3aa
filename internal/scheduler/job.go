package scheduler

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/sakaguchiii/bus-notification/internal/domain"
)

// JobState is the lifecycle state of a monitoring job.
type JobState int

const (
	StateArmed JobState = iota
	StateActive
	StateFinished
	StateCancelled
)

func (s JobState) String() string {
	switch s {
	case StateArmed:
		return "armed"
	case StateActive:
		return "active"
	case StateFinished:
		return "finished"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Job is one user's monitoring window for a route.
type Job struct {
	ID     uuid.UUID
	UserID int64
	Route  domain.Route
	Window domain.Window

	mu     sync.Mutex
	state  JobState
	cancel context.CancelFunc
	done   chan struct{}
}

func newJob(userID int64, route domain.Route, w domain.Window) *Job {
	return &Job{
		ID:     uuid.New(),
		UserID: userID,
		Route:  route,
		Window: w,
		state:  StateArmed,
		done:   make(chan struct{}),
	}
}

// State returns the current state.
func (j *Job) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Done is closed once the job can no longer deliver anything.
func (j *Job) Done() <-chan struct{} { return j.done }

func (j *Job) cancelled() bool { return j.State() == StateCancelled }

// activate moves an armed job to active and returns the polling context.
func (j *Job) activate(parent context.Context) (context.Context, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StateArmed {
		return nil, false
	}
	ctx, cancel := context.WithCancel(parent)
	j.cancel = cancel
	j.state = StateActive
	return ctx, true
}

// stop flags the job cancelled. An armed job is done immediately; an active
// job is done once its polling loop observes the cancellation.
func (j *Job) stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch j.state {
	case StateArmed:
		j.state = StateCancelled
		close(j.done)
	case StateActive:
		j.state = StateCancelled
		j.cancel()
	}
}

// exit is called once by the polling loop and returns the final state.
func (j *Job) exit(deadlineReached bool) JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state == StateActive {
		if deadlineReached {
			j.state = StateFinished
		} else {
			j.state = StateCancelled
		}
	}
	if j.cancel != nil {
		j.cancel()
	}
	close(j.done)
	return j.state
}
