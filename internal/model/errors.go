// Package model defines the domain entities of the seat-booking core
// together with the error taxonomy shared by the stores, the
// orchestrator and the HTTP handlers.  Sentinel values allow higher
// layers to distinguish failure scenarios with errors.Is without
// inspecting strings.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a referenced show, booking or lock does
// not exist.  Handlers translate this into HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrConflict signals an optimistic-concurrency clash on the show
// counter or a booking row.  Callers retry a bounded number of times
// before surfacing it.
var ErrConflict = errors.New("conflict")

// ErrInsufficientCapacity is returned when a reservation would book a
// seat that is already sold or would drive the availability counter
// negative.
var ErrInsufficientCapacity = errors.New("insufficient capacity")

// ErrExpired is returned when a hold or payment window has elapsed.
// The client must restart the flow.
var ErrExpired = errors.New("expired")

// ErrHoldExpired is returned by confirmation when the locks it relied
// on were no longer active at the moment of conversion.  Confirming
// without an active hold would silently steal the seat from whoever
// acquired it next.
var ErrHoldExpired = errors.New("hold expired before confirmation")

// ErrNotAuthorized is returned when the acting user lacks rights over
// the booking or show.  Never retried.
var ErrNotAuthorized = errors.New("not authorized")

// ErrAlreadyCancelled is returned when cancelling a booking that is
// already cancelled.  Callers treat it as a no-op with explanation
// since retried cancel calls are expected under network retries.
var ErrAlreadyCancelled = errors.New("booking already cancelled")

// ErrAlreadyTerminal is returned when an operation targets a booking
// that is no longer in a mutable state.
var ErrAlreadyTerminal = errors.New("booking already in a terminal state")

// ErrPaymentFailed is returned when the payment gateway declines the
// charge.  The booking stays pending until its payment deadline.
var ErrPaymentFailed = errors.New("payment failed")

// ErrShowInactive is returned when a hold or booking targets a show
// that has been deactivated.
var ErrShowInactive = errors.New("show inactive")

// SeatsUnavailableError reports which requested seats were not free at
// hold time so the client can re-select.  It is returned as a whole-
// request failure: no partial locks are created.
type SeatsUnavailableError struct {
	Seats []string
}

func (e *SeatsUnavailableError) Error() string {
	return fmt.Sprintf("seats unavailable: %s", strings.Join(e.Seats, ", "))
}

// Unavailable extracts the contended seat labels when err wraps a
// SeatsUnavailableError.  The second result reports whether it did.
func Unavailable(err error) ([]string, bool) {
	var su *SeatsUnavailableError
	if errors.As(err, &su) {
		return su.Seats, true
	}
	return nil, false
}
