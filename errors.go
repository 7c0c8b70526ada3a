// FILE: errors.go
// Package main – Closed set of error kinds for the decision and I/O paths.
//
// The engine never panics on a remote-I/O or protocol failure; callers switch
// on these sentinels (via errors.Is) rather than matching message strings.
package main

import "errors"

var (
	// ErrTransientBroker covers timeouts, 5xx, and rate limiting. The current
	// iteration is skipped; counters are left unchanged.
	ErrTransientBroker = errors.New("broker: transient I/O failure")

	// ErrDealRejected means the confirm endpoint returned a terminal,
	// non-ACCEPTED dealStatus.
	ErrDealRejected = errors.New("broker: deal rejected")

	// ErrDealConfirmTimeout means the confirm endpoint never resolved within
	// the max-attempts / interval budget.
	ErrDealConfirmTimeout = errors.New("broker: deal confirmation timed out")

	// ErrPositionNotFound is returned by a direct single-position lookup on a
	// 404, distinguishing "confirmed absent" from a transient list gap.
	ErrPositionNotFound = errors.New("broker: position not found")

	// ErrInvalidAdoption marks a platform position that cannot be adopted
	// because it is missing an entry level or stop level.
	ErrInvalidAdoption = errors.New("adopt: missing entry or stop level")

	// ErrAuthFailed marks a fatal session-creation failure at startup.
	ErrAuthFailed = errors.New("broker: authentication failed")

	// ErrReentryFailed marks a TP1 partial-close whose remainder re-entry did
	// not complete; the original position is left tp1Done with no retry.
	ErrReentryFailed = errors.New("position manager: re-entry failed after partial close")
)
