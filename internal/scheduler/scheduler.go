// Package scheduler owns the per-user monitoring jobs: it arms them, promotes
// them to active at their activation time, and runs one polling loop per
// active job until its deadline or cancellation.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sakaguchiii/bus-notification/internal/domain"
	"github.com/sakaguchiii/bus-notification/internal/metrics"
)

// DefaultPollInterval is the fixed interval between scrapes of one job.
const DefaultPollInterval = 15 * time.Second

// Sender is a minimal interface the scheduler needs to push a text message.
// telegram.Sender implements this.
type Sender interface {
	SendMessage(chatID int64, text string) error
}

// Fetcher returns the approach page markup for a route.
type Fetcher interface {
	Fetch(ctx context.Context, boarding, alighting string) (string, error)
}

// ParseFunc extracts the rank-1 arrival from markup.
type ParseFunc func(markup string) (domain.ArrivalRecord, error)

// Deduper suppresses repeated readings per user.
type Deduper interface {
	ShouldDeliver(userID int64, rec domain.ArrivalRecord) bool
	Clear(userID int64)
}

// Recorder receives scheduler metrics. *metrics.Collector implements it.
type Recorder interface {
	RecordScrape(result string, d time.Duration)
	RecordDelivered()
	RecordSuppressed()
	RecordPush(kind string, err error)
	RecordRegistration(result string)
	SetJobs(state string, n int)
}

// Options tunes the scheduler. Zero values select defaults.
type Options struct {
	PollInterval  time.Duration
	CheckInterval time.Duration
	Lead          time.Duration
	Tail          time.Duration
	Now           func() time.Time
}

// Scheduler owns every live monitoring job, at most one per user.
type Scheduler struct {
	fetcher Fetcher
	parse   ParseFunc
	dedup   Deduper
	sender  Sender
	log     *zap.Logger
	rec     Recorder
	opts    Options

	mu   sync.Mutex
	jobs map[int64]*Job
	wg   sync.WaitGroup
}

// New creates a Scheduler. rec may be nil.
func New(fetcher Fetcher, parse ParseFunc, dedup Deduper, sender Sender, log *zap.Logger, rec Recorder, opts Options) *Scheduler {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = time.Second
	}
	if opts.Lead <= 0 {
		opts.Lead = domain.DefaultLead
	}
	if opts.Tail <= 0 {
		opts.Tail = domain.DefaultTail
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Scheduler{
		fetcher: fetcher,
		parse:   parse,
		dedup:   dedup,
		sender:  sender,
		log:     log,
		rec:     rec,
		opts:    opts,
		jobs:    make(map[int64]*Job),
	}
}

// Window returns the monitoring window for a departure.
func (s *Scheduler) Window(departure time.Time) domain.Window {
	return domain.NewWindow(departure, s.opts.Lead, s.opts.Tail)
}

// Register arms a job for userID, replacing any job the user already has.
// The previous job's loop has exited and the user's dedup entry is cleared
// before the new job becomes visible.
func (s *Scheduler) Register(ctx context.Context, userID int64, route domain.Route, departure time.Time) (*Job, error) {
	w := s.Window(departure)
	if now := s.opts.Now(); w.Passed(now) {
		s.rec.RecordRegistration("window_passed")
		return nil, fmt.Errorf("%w: activation %s is before %s",
			domain.ErrWindowAlreadyPassed, w.Activation.Format(time.RFC3339), now.Format(time.RFC3339))
	}

	if _, err := s.stopJob(ctx, userID); err != nil {
		s.rec.RecordRegistration("error")
		return nil, fmt.Errorf("replace job: %w", err)
	}
	s.dedup.Clear(userID)

	j := newJob(userID, route, w)
	s.mu.Lock()
	s.jobs[userID] = j
	s.mu.Unlock()
	s.updateGauges()
	s.rec.RecordRegistration("ok")

	s.log.Info("monitoring job armed",
		zap.Int64("userID", userID),
		zap.String("jobID", j.ID.String()),
		zap.String("boarding", route.Boarding),
		zap.String("alighting", route.Alighting),
		zap.Time("activation", w.Activation),
		zap.Time("deadline", w.Deadline),
	)
	return j, nil
}

// Cancel stops the user's job, if any, and waits for its loop to exit.
// It reports whether a job existed.
func (s *Scheduler) Cancel(ctx context.Context, userID int64) bool {
	stopped, err := s.stopJob(ctx, userID)
	if err != nil {
		s.log.Warn("cancel did not wait for loop exit", zap.Int64("userID", userID), zap.Error(err))
	}
	s.dedup.Clear(userID)
	if stopped {
		s.updateGauges()
		s.log.Info("monitoring job cancelled", zap.Int64("userID", userID))
	}
	return stopped
}

// Active returns the user's live job, if any.
func (s *Scheduler) Active(userID int64) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[userID]
	return j, ok
}

// stopJob detaches and stops the user's job, then waits until it is done.
func (s *Scheduler) stopJob(ctx context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	j, ok := s.jobs[userID]
	delete(s.jobs, userID)
	s.mu.Unlock()
	if !ok {
		return false, nil
	}

	j.stop()
	select {
	case <-j.Done():
		return true, nil
	case <-ctx.Done():
		return true, ctx.Err()
	}
}

// Run promotes armed jobs whose activation time has arrived until ctx is
// canceled, then stops every job and waits for the polling loops.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping")
			s.shutdown()
			return
		case <-ticker.C:
			s.activateDue(ctx)
		}
	}
}

func (s *Scheduler) activateDue(ctx context.Context) {
	now := s.opts.Now()

	s.mu.Lock()
	var due []*Job
	for _, j := range s.jobs {
		if j.State() == StateArmed && !now.Before(j.Window.Activation) {
			due = append(due, j)
		}
	}
	s.mu.Unlock()

	for _, j := range due {
		jctx, ok := j.activate(ctx)
		if !ok {
			continue
		}
		s.wg.Add(1)
		go s.poll(jctx, j)
	}
	if len(due) > 0 {
		s.updateGauges()
	}
}

func (s *Scheduler) shutdown() {
	s.mu.Lock()
	jobs := make([]*Job, 0, len(s.jobs))
	for id, j := range s.jobs {
		jobs = append(jobs, j)
		delete(s.jobs, id)
	}
	s.mu.Unlock()

	for _, j := range jobs {
		j.stop()
	}
	s.wg.Wait()
	s.updateGauges()
}

// poll runs one job's scrape loop. Ticks are strictly sequential.
func (s *Scheduler) poll(ctx context.Context, j *Job) {
	defer s.wg.Done()

	log := s.log.With(zap.Int64("userID", j.UserID), zap.String("jobID", j.ID.String()))
	log.Info("monitoring started", zap.Time("deadline", j.Window.Deadline))

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(max(j.Window.Deadline.Sub(s.opts.Now()), 0))
	defer deadline.Stop()

	reached := false
	for {
		if ctx.Err() != nil {
			break
		}
		if !s.opts.Now().Before(j.Window.Deadline) {
			reached = true
			break
		}
		s.tick(ctx, j, log)

		select {
		case <-ctx.Done():
		case <-deadline.C:
		case <-ticker.C:
		}
	}

	s.finish(j, reached, log)
}

func (s *Scheduler) tick(ctx context.Context, j *Job, log *zap.Logger) {
	start := time.Now()
	body, err := s.fetcher.Fetch(ctx, j.Route.Boarding, j.Route.Alighting)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		result := metrics.ScrapeFailed
		if errors.Is(err, domain.ErrUnresolvedStop) {
			result = metrics.ScrapeUnresolved
		}
		s.rec.RecordScrape(result, time.Since(start))
		log.Warn("approach fetch failed", zap.Error(err))
		return
	}

	rec, err := s.parse(body)
	if err != nil {
		s.rec.RecordScrape(metrics.ScrapeNoData, time.Since(start))
		log.Debug("no arrival data", zap.Error(err))
		return
	}
	s.rec.RecordScrape(metrics.ScrapeOK, time.Since(start))

	if j.cancelled() {
		return
	}
	if !s.dedup.ShouldDeliver(j.UserID, rec) {
		s.rec.RecordSuppressed()
		log.Debug("arrival unchanged")
		return
	}
	s.rec.RecordDelivered()
	log.Info("arrival changed", zap.String("arrival", rec.ArrivalTime), zap.String("passed", rec.LastPassedStop))
	s.push(j, metrics.PushArrival, arrivalText(rec), log)
}

// finish clears dedup state before the job is marked done, so a replacing
// registration never has its fresh entry wiped.
func (s *Scheduler) finish(j *Job, reached bool, log *zap.Logger) {
	s.dedup.Clear(j.UserID)

	s.mu.Lock()
	if cur, ok := s.jobs[j.UserID]; ok && cur == j {
		delete(s.jobs, j.UserID)
	}
	s.mu.Unlock()

	state := j.exit(reached)
	s.updateGauges()
	log.Info("monitoring ended", zap.Stringer("state", state))

	if state == StateFinished {
		s.push(j, metrics.PushCompletion, completionText(j), log)
	}
}

func (s *Scheduler) push(j *Job, kind string, text string, log *zap.Logger) {
	err := s.sender.SendMessage(j.UserID, text)
	s.rec.RecordPush(kind, err)
	if err != nil {
		log.Error("push failed", zap.String("kind", kind), zap.Error(fmt.Errorf("%w: %v", domain.ErrPushFailed, err)))
	}
}

func (s *Scheduler) updateGauges() {
	var armed, active int
	s.mu.Lock()
	for _, j := range s.jobs {
		switch j.State() {
		case StateArmed:
			armed++
		case StateActive:
			active++
		}
	}
	s.mu.Unlock()
	s.rec.SetJobs(StateArmed.String(), armed)
	s.rec.SetJobs(StateActive.String(), active)
}

type nopRecorder struct{}

func (nopRecorder) RecordScrape(string, time.Duration) {}
func (nopRecorder) RecordDelivered()                   {}
func (nopRecorder) RecordSuppressed()                  {}
func (nopRecorder) RecordPush(string, error)           {}
func (nopRecorder) RecordRegistration(string)          {}
func (nopRecorder) SetJobs(string, int)                {}
