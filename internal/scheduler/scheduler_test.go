package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sakaguchiii/bus-notification/internal/dedup"
	"github.com/sakaguchiii/bus-notification/internal/domain"
	"github.com/sakaguchiii/bus-notification/internal/metrics"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	fn    func(call int) (string, error)
}

func (f *fakeFetcher) Fetch(ctx context.Context, _, _ string) (string, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.fn(n)
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type sentMessage struct {
	chatID int64
	text   string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (s *fakeSender) SendMessage(chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{chatID: chatID, text: text})
	return s.err
}

func (s *fakeSender) count(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.sent {
		if strings.HasPrefix(m.text, prefix) {
			n++
		}
	}
	return n
}

func (s *fakeSender) completions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.sent {
		if strings.Contains(m.text, "監視を終了しました") {
			n++
		}
	}
	return n
}

// parseFields reads "time|location|stops" bodies used by the fake fetcher.
func parseFields(body string) (domain.ArrivalRecord, error) {
	parts := strings.Split(body, "|")
	if len(parts) != 3 {
		return domain.ArrivalRecord{}, domain.ErrNoArrivalData
	}
	return domain.NewArrivalRecord(parts[0], parts[1], parts[2]), nil
}

var route = domain.Route{Boarding: "乙部朝日", Alighting: "津駅前"}

type harness struct {
	sched   *Scheduler
	fetcher *fakeFetcher
	sender  *fakeSender
	dedup   *dedup.Cache
	stop    func()
}

func newHarness(t *testing.T, opts Options, fn func(call int) (string, error)) *harness {
	t.Helper()
	h := &harness{
		fetcher: &fakeFetcher{fn: fn},
		sender:  &fakeSender{},
		dedup:   dedup.New(100, 0),
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = 20 * time.Millisecond
	}
	if opts.CheckInterval == 0 {
		opts.CheckInterval = 5 * time.Millisecond
	}
	if opts.Lead == 0 {
		opts.Lead = 30 * time.Millisecond
	}
	if opts.Tail == 0 {
		opts.Tail = 150 * time.Millisecond
	}
	rec := metrics.NewCollector(prometheus.NewRegistry())
	h.sched = New(h.fetcher, parseFields, h.dedup, h.sender, zap.NewNop(), rec, opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.sched.Run(ctx)
		close(done)
	}()
	h.stop = func() {
		cancel()
		<-done
	}
	t.Cleanup(h.stop)
	return h
}

func constant(body string) func(int) (string, error) {
	return func(int) (string, error) { return body, nil }
}

func TestRegister_RejectsPassedWindow(t *testing.T) {
	h := newHarness(t, Options{}, constant("18:25|白塚口|3個前"))

	_, err := h.sched.Register(context.Background(), 1, route, time.Now().Add(10*time.Millisecond))
	require.ErrorIs(t, err, domain.ErrWindowAlreadyPassed)

	_, ok := h.sched.Active(1)
	assert.False(t, ok)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, h.fetcher.Calls())
}

func TestRegister_ProductionWindow(t *testing.T) {
	s := New(&fakeFetcher{}, parseFields, dedup.New(10, 0), &fakeSender{}, zap.NewNop(), nil, Options{})
	loc := time.FixedZone("JST", 9*3600)
	dep := time.Date(2025, time.March, 3, 18, 30, 0, 0, loc)

	w := s.Window(dep)
	assert.Equal(t, "18:23", domain.FormatClock(w.Activation))
	assert.Equal(t, "18:35", domain.FormatClock(w.Deadline))
}

func TestPoll_DeliversOnceAndFinishes(t *testing.T) {
	h := newHarness(t, Options{}, constant("18:25|白塚口|3個前"))

	j, err := h.sched.Register(context.Background(), 1, route, time.Now().Add(40*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, StateArmed, j.State())

	select {
	case <-j.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("job did not finish")
	}

	assert.Equal(t, StateFinished, j.State())
	assert.Greater(t, h.fetcher.Calls(), 1)
	assert.Equal(t, 1, h.sender.count(arrivalPrefix))
	require.Eventually(t, func() bool { return h.sender.completions() == 1 }, time.Second, 5*time.Millisecond)

	_, ok := h.sched.Active(1)
	assert.False(t, ok)
	_, ok = h.dedup.Last(1)
	assert.False(t, ok, "dedup entry must be cleared when the window ends")
}

func TestPoll_PushesOnlyOnChange(t *testing.T) {
	bodies := []string{
		"18:25|白塚口|3個前",
		"18:25|白塚口|3個前",
		"18:26|栗真中山町|2個前",
		"18:26|栗真中山町|2個前",
	}
	h := newHarness(t, Options{Tail: 10 * time.Second}, func(call int) (string, error) {
		if call > len(bodies) {
			return bodies[len(bodies)-1], nil
		}
		return bodies[call-1], nil
	})

	_, err := h.sched.Register(context.Background(), 1, route, time.Now().Add(40*time.Millisecond))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return h.fetcher.Calls() >= 6 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, h.sender.count(arrivalPrefix))
}

func TestPoll_FailuresDoNotAbortWindow(t *testing.T) {
	h := newHarness(t, Options{Tail: 10 * time.Second}, func(call int) (string, error) {
		switch call {
		case 1:
			return "", domain.ErrFetchFailed
		case 2:
			return "<html>no data</html>", nil
		default:
			return "18:25|白塚口|3個前", nil
		}
	})

	j, err := h.sched.Register(context.Background(), 1, route, time.Now().Add(40*time.Millisecond))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return h.sender.count(arrivalPrefix) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, StateActive, j.State())
}

func TestPoll_PushFailureStillFinishes(t *testing.T) {
	h := newHarness(t, Options{}, constant("18:25|白塚口|3個前"))
	h.sender.err = errors.New("telegram down")

	j, err := h.sched.Register(context.Background(), 1, route, time.Now().Add(40*time.Millisecond))
	require.NoError(t, err)

	select {
	case <-j.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("job did not finish")
	}
	assert.Equal(t, StateFinished, j.State())
}

func TestCancel_StopsActiveJobWithoutCompletion(t *testing.T) {
	h := newHarness(t, Options{Tail: 10 * time.Second}, constant("18:25|白塚口|3個前"))

	j, err := h.sched.Register(context.Background(), 1, route, time.Now().Add(40*time.Millisecond))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.sender.count(arrivalPrefix) == 1 }, 2*time.Second, 5*time.Millisecond)

	assert.True(t, h.sched.Cancel(context.Background(), 1))
	select {
	case <-j.Done():
	default:
		t.Fatal("cancel must wait for the loop to exit")
	}
	assert.Equal(t, StateCancelled, j.State())

	calls := h.fetcher.Calls()
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, calls, h.fetcher.Calls(), "no ticks after cancellation")
	assert.Zero(t, h.sender.completions())
	_, ok := h.dedup.Last(1)
	assert.False(t, ok)

	assert.False(t, h.sched.Cancel(context.Background(), 1))
}

func TestCancel_ArmedJob(t *testing.T) {
	h := newHarness(t, Options{Lead: time.Hour}, constant("18:25|白塚口|3個前"))

	j, err := h.sched.Register(context.Background(), 1, route, time.Now().Add(2*time.Hour))
	require.NoError(t, err)

	assert.True(t, h.sched.Cancel(context.Background(), 1))
	assert.Equal(t, StateCancelled, j.State())
	assert.Zero(t, h.fetcher.Calls())
}

func TestRegister_ReplacesExistingJob(t *testing.T) {
	h := newHarness(t, Options{Tail: 10 * time.Second}, constant("18:25|白塚口|3個前"))
	ctx := context.Background()

	first, err := h.sched.Register(ctx, 1, route, time.Now().Add(40*time.Millisecond))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.sender.count(arrivalPrefix) == 1 }, 2*time.Second, 5*time.Millisecond)

	second, err := h.sched.Register(ctx, 1, route, time.Now().Add(300*time.Millisecond))
	require.NoError(t, err)

	assert.Equal(t, StateCancelled, first.State())
	_, seen := h.dedup.Last(1)
	assert.False(t, seen, "dedup entry is cleared before the new job's first tick")

	cur, ok := h.sched.Active(1)
	require.True(t, ok)
	assert.Same(t, second, cur)

	// The same reading is delivered again in the new window.
	require.Eventually(t, func() bool { return h.sender.count(arrivalPrefix) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, StateActive, second.State())
}

func TestRun_ShutdownCancelsJobs(t *testing.T) {
	h := newHarness(t, Options{Tail: 10 * time.Second}, constant("18:25|白塚口|3個前"))

	j, err := h.sched.Register(context.Background(), 1, route, time.Now().Add(40*time.Millisecond))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return j.State() == StateActive }, 2*time.Second, 5*time.Millisecond)

	h.stop()
	assert.Equal(t, StateCancelled, j.State())
	assert.Zero(t, h.sender.completions())
}

func TestUsersAreIndependent(t *testing.T) {
	h := newHarness(t, Options{Tail: 10 * time.Second}, constant("18:25|白塚口|3個前"))
	ctx := context.Background()

	_, err := h.sched.Register(ctx, 1, route, time.Now().Add(40*time.Millisecond))
	require.NoError(t, err)
	_, err = h.sched.Register(ctx, 2, route, time.Now().Add(40*time.Millisecond))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return h.sender.count(arrivalPrefix) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, h.sched.Cancel(ctx, 1))
	_, ok := h.sched.Active(2)
	assert.True(t, ok)
}
