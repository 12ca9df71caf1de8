// Package booking implements the reservation engine: capacity
// accounting, the time-window policy and the reservation lifecycle
// state machine.  It is transport-agnostic; HTTP handlers and the
// dialogue engine consume it through the Manager.
package booking

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain taxonomy.  All of these are
// recoverable and are surfaced to the immediate caller: the dialogue
// engine turns them into re-promptable messages and the HTTP layer
// maps them to status codes with errors.Is.
var (
	// ErrCapacityExceeded: the requested party size no longer fits in
	// the slot's remaining capacity.
	ErrCapacityExceeded = errors.New("slot capacity exceeded")

	// ErrSlotClosed: the advance-notice cutoff for the slot has passed.
	ErrSlotClosed = errors.New("slot closed for booking")

	// ErrInvalidTransition: the reservation is not in a state that
	// allows the requested transition.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrNotFound: unknown reservation, court or slot reference.
	ErrNotFound = errors.New("not found")

	// ErrInvalidPartySize: party size outside the allowed [2,4] range.
	ErrInvalidPartySize = errors.New("party size must be between 2 and 4")

	// ErrUpstreamUnavailable: a messaging or payment gateway call
	// failed.  Swallowed after logging on notification dispatch, but
	// always surfaced on the payment-order-creation path.
	ErrUpstreamUnavailable = errors.New("upstream gateway unavailable")
)

// ErrAlreadyCheckedIn is a specialisation of ErrInvalidTransition for
// a second check-in attempt; errors.Is matches both sentinels.
var ErrAlreadyCheckedIn = fmt.Errorf("already checked in: %w", ErrInvalidTransition)
