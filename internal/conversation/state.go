// Package conversation drives the per-user dialogue that collects a route
// and departure time and hands the result to the monitoring scheduler.
package conversation

import "github.com/sakaguchiii/bus-notification/internal/domain"

// State is a user's conversation state. Each variant carries exactly the
// settings collected so far.
type State interface {
	Name() string
	isState()
}

// Idle waits for a command.
type Idle struct{}

// AwaitingBoarding shows the boarding stop menu.
type AwaitingBoarding struct{}

// SearchingBoarding expects a typed boarding stop name.
type SearchingBoarding struct{}

// AwaitingAlighting shows the alighting stop menu.
type AwaitingAlighting struct{ Boarding string }

// SearchingAlighting expects a typed alighting stop name.
type SearchingAlighting struct{ Boarding string }

// AwaitingTime shows the departure time menu.
type AwaitingTime struct{ Route domain.Route }

// ManualTimeInput expects a typed "HH:MM" departure time.
type ManualTimeInput struct{ Route domain.Route }

func (Idle) Name() string               { return "idle" }
func (AwaitingBoarding) Name() string   { return "awaiting_boarding" }
func (SearchingBoarding) Name() string  { return "searching_boarding" }
func (AwaitingAlighting) Name() string  { return "awaiting_alighting" }
func (SearchingAlighting) Name() string { return "searching_alighting" }
func (AwaitingTime) Name() string       { return "awaiting_time" }
func (ManualTimeInput) Name() string    { return "manual_time_input" }

func (Idle) isState()               {}
func (AwaitingBoarding) isState()   {}
func (SearchingBoarding) isState()  {}
func (AwaitingAlighting) isState()  {}
func (SearchingAlighting) isState() {}
func (AwaitingTime) isState()       {}
func (ManualTimeInput) isState()    {}
