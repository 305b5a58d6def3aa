package domain

import "errors"

var (
	// ErrUnresolvedStop means a stop name matched no directory entry.
	ErrUnresolvedStop = errors.New("unresolved stop")
	// ErrAmbiguousStop means a stop name matched more than one entry.
	ErrAmbiguousStop = errors.New("ambiguous stop")
	// ErrInvalidTimeFormat means free-text time input is not HH:MM.
	ErrInvalidTimeFormat = errors.New("invalid time format")
	// ErrFetchFailed covers any transport failure while scraping.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrNoArrivalData means the page reports no approaching vehicle.
	ErrNoArrivalData = errors.New("no arrival data")
	// ErrWindowAlreadyPassed means the monitoring start is already behind now.
	ErrWindowAlreadyPassed = errors.New("monitoring window already passed")
	// ErrPushFailed covers outbound notification delivery errors.
	ErrPushFailed = errors.New("push failed")
)
