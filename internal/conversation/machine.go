package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sakaguchiii/bus-notification/internal/domain"
)

// Kind tells whether an input came from typed text or a button payload.
type Kind int

const (
	KindText Kind = iota
	KindPostback
)

// Input is one inbound event for a user.
type Input struct {
	UserID int64
	Kind   Kind
	Text   string // message text or postback payload
}

// Option is a labelled button carrying a "prefix:value" payload.
type Option struct {
	Label string
	Data  string
}

// Reply is the synchronous answer to an Input.
type Reply struct {
	Text    string
	Options []Option
}

// Resolver resolves typed stop names.
type Resolver interface {
	Resolve(input string) []string
	Contains(name string) bool
}

// Registrar arms and cancels monitoring jobs.
type Registrar interface {
	Register(ctx context.Context, userID int64, route domain.Route, departure time.Time) (domain.Window, error)
	Cancel(ctx context.Context, userID int64) bool
}

// Options configures the menus and the clock.
type Options struct {
	Favorites   []string
	TimePresets []domain.Clock
	Location    *time.Location
	Now         func() time.Time
}

// Machine is the conversation state machine. It is safe for concurrent use;
// events for the same user are serialised.
type Machine struct {
	resolver Resolver
	reg      Registrar
	log      *zap.Logger
	opts     Options
	sessions *sessionStore
}

// NewMachine creates a Machine.
func NewMachine(resolver Resolver, reg Registrar, log *zap.Logger, opts Options) *Machine {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Machine{
		resolver: resolver,
		reg:      reg,
		log:      log,
		opts:     opts,
		sessions: newSessionStore(),
	}
}

// State returns the user's current state.
func (m *Machine) State(userID int64) State {
	return m.sessions.get(userID)
}

// Handle applies one inbound event and returns the reply to show.
func (m *Machine) Handle(ctx context.Context, in Input) Reply {
	sess := m.sessions.lock(in.UserID)
	defer sess.mu.Unlock()

	from := sess.state
	reply, next := m.step(ctx, in, from)
	sess.state = next

	if from.Name() != next.Name() {
		m.log.Debug("conversation transition",
			zap.Int64("userID", in.UserID),
			zap.String("from", from.Name()),
			zap.String("to", next.Name()),
		)
	}
	return reply
}

func (m *Machine) step(ctx context.Context, in Input, st State) (Reply, State) {
	text := strings.TrimSpace(in.Text)

	switch parseCommand(text) {
	case cmdStart:
		m.reg.Cancel(ctx, in.UserID)
		return m.boardingMenu(boardingPrompt), AwaitingBoarding{}
	case cmdCancel:
		if m.reg.Cancel(ctx, in.UserID) {
			return Reply{Text: cancelledText}, Idle{}
		}
		return Reply{Text: nothingToCancel}, Idle{}
	case cmdHelp:
		return Reply{Text: helpText}, st
	}

	p, isPayload := parsePayload(text)

	switch s := st.(type) {
	case AwaitingBoarding:
		if isPayload && p.prefix == prefixBoarding {
			if p.value == valueSearch {
				return Reply{Text: boardingSearchText}, SearchingBoarding{}
			}
			if m.resolver.Contains(p.value) {
				return m.alightingMenu(p.value, boardingSelectedText(p.value)), AwaitingAlighting{Boarding: p.value}
			}
		}
		return m.boardingMenu(boardingPrompt), s

	case SearchingBoarding:
		if isPayload && p.prefix == prefixBoarding {
			if m.resolver.Contains(p.value) {
				return m.alightingMenu(p.value, boardingSelectedText(p.value)), AwaitingAlighting{Boarding: p.value}
			}
			return Reply{Text: boardingSearchText}, s
		}
		if isPayload {
			return Reply{Text: boardingSearchText}, s
		}
		name, reply, ok := m.search(text, prefixBoarding, "")
		if !ok {
			return reply, s
		}
		return m.alightingMenu(name, boardingSelectedText(name)), AwaitingAlighting{Boarding: name}

	case AwaitingAlighting:
		if isPayload && p.prefix == prefixAlighting {
			if p.value == valueSearch {
				return Reply{Text: alightSearchText}, SearchingAlighting{Boarding: s.Boarding}
			}
			if p.value == s.Boarding {
				return m.alightingMenu(s.Boarding, sameStopText), s
			}
			if m.resolver.Contains(p.value) {
				r := domain.Route{Boarding: s.Boarding, Alighting: p.value}
				return m.timeMenu(alightingSelectedText(p.value)), AwaitingTime{Route: r}
			}
		}
		return m.alightingMenu(s.Boarding, alightingPrompt), s

	case SearchingAlighting:
		if isPayload && p.prefix == prefixAlighting && m.resolver.Contains(p.value) {
			if p.value == s.Boarding {
				return Reply{Text: sameStopText}, s
			}
			r := domain.Route{Boarding: s.Boarding, Alighting: p.value}
			return m.timeMenu(alightingSelectedText(p.value)), AwaitingTime{Route: r}
		}
		if isPayload {
			return Reply{Text: alightSearchText}, s
		}
		name, reply, ok := m.search(text, prefixAlighting, s.Boarding)
		if !ok {
			return reply, s
		}
		r := domain.Route{Boarding: s.Boarding, Alighting: name}
		return m.timeMenu(alightingSelectedText(name)), AwaitingTime{Route: r}

	case AwaitingTime:
		if isPayload && p.prefix == prefixTime {
			if p.value == valueManual {
				return Reply{Text: manualTimeText}, ManualTimeInput{Route: s.Route}
			}
			if c, err := domain.ParseClock(p.value); err == nil {
				return m.confirm(ctx, in.UserID, s.Route, c), Idle{}
			}
		}
		if !isPayload {
			if c, err := domain.ParseClock(text); err == nil {
				return m.confirm(ctx, in.UserID, s.Route, c), Idle{}
			}
		}
		return m.timeMenu(timePrompt), s

	case ManualTimeInput:
		if isPayload && p.prefix == prefixTime && p.value != valueManual {
			text = p.value
		}
		c, err := domain.ParseClock(text)
		if err != nil {
			return Reply{Text: invalidTimeText}, s
		}
		return m.confirm(ctx, in.UserID, s.Route, c), Idle{}

	default:
		return Reply{Text: idleText}, Idle{}
	}
}

// search resolves typed input. It returns ok with the name when exactly one
// candidate exists, and otherwise the reply to show while staying put.
func (m *Machine) search(text, prefix, exclude string) (string, Reply, bool) {
	var found []string
	for _, c := range m.resolver.Resolve(text) {
		if c != exclude {
			found = append(found, c)
		}
	}
	switch len(found) {
	case 0:
		return "", Reply{Text: notFoundText}, false
	case 1:
		return found[0], Reply{}, true
	}
	opts := make([]Option, 0, len(found)+1)
	for _, c := range found {
		opts = append(opts, Option{Label: c, Data: encodePayload(prefix, c)})
	}
	return "", Reply{Text: candidatesText, Options: opts}, false
}

func (m *Machine) confirm(ctx context.Context, userID int64, r domain.Route, c domain.Clock) Reply {
	now := m.opts.Now().In(m.opts.Location)
	dep := domain.NextDeparture(now, c)

	w, err := m.reg.Register(ctx, userID, r, dep)
	switch {
	case errors.Is(err, domain.ErrWindowAlreadyPassed):
		m.log.Info("monitoring window already passed",
			zap.Int64("userID", userID), zap.Time("departure", dep))
		return Reply{Text: windowPassedText(c.String())}
	case err != nil:
		m.log.Error("register monitoring failed", zap.Int64("userID", userID), zap.Error(err))
		return Reply{Text: registerErrorText}
	}
	return Reply{Text: confirmText(r, w)}
}

func (m *Machine) boardingMenu(text string) Reply {
	return Reply{Text: text, Options: m.stopOptions(prefixBoarding, "")}
}

func (m *Machine) alightingMenu(boarding, text string) Reply {
	return Reply{Text: text, Options: m.stopOptions(prefixAlighting, boarding)}
}

func (m *Machine) stopOptions(prefix, exclude string) []Option {
	opts := make([]Option, 0, len(m.opts.Favorites)+1)
	for _, name := range m.opts.Favorites {
		if name == exclude || !m.resolver.Contains(name) {
			continue
		}
		opts = append(opts, Option{Label: name, Data: encodePayload(prefix, name)})
	}
	return append(opts, Option{Label: searchLabel, Data: encodePayload(prefix, valueSearch)})
}

func (m *Machine) timeMenu(text string) Reply {
	opts := make([]Option, 0, len(m.opts.TimePresets)+1)
	for _, c := range m.opts.TimePresets {
		opts = append(opts, Option{Label: c.String(), Data: encodePayload(prefixTime, c.String())})
	}
	opts = append(opts, Option{Label: manualLabel, Data: encodePayload(prefixTime, valueManual)})
	return Reply{Text: text, Options: opts}
}
