package domain

import "time"

const (
	// DefaultLead is how long before departure monitoring starts.
	DefaultLead = 7 * time.Minute
	// DefaultTail is how long after departure monitoring continues.
	DefaultTail = 5 * time.Minute
)

// Window is the monitoring interval around a departure.
type Window struct {
	Departure  time.Time
	Activation time.Time
	Deadline   time.Time
}

// NewWindow computes the window [departure-lead, departure+tail].
func NewWindow(departure time.Time, lead, tail time.Duration) Window {
	return Window{
		Departure:  departure,
		Activation: departure.Add(-lead),
		Deadline:   departure.Add(tail),
	}
}

// Passed reports whether activation is already behind now.
func (w Window) Passed(now time.Time) bool {
	return w.Activation.Before(now)
}
