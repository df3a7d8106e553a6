// Package store defines the persistence contracts of the seat-booking
// core: the show registry, the seat lock manager and the booking
// ledger.  Two implementations exist, one backed by MySQL for
// production and one in-memory for tests and database-less runs.  All
// seat mutation goes through these contracts so the availability
// invariant is checkable at a single boundary.
package store

import (
	"context"
	"time"

	"github.com/kinohaus/seat-booking/internal/model"
)

// ShowStore is the show registry.  It owns a show's seat inventory and
// is the only place the availability counter and booked-seat set are
// mutated.  ReserveSeats and ReleaseSeats keep the invariant
// AvailableSeats == TotalSeats - len(BookedSeats) after every call.
type ShowStore interface {
	// GetShow returns the show or model.ErrNotFound.
	GetShow(ctx context.Context, showID uint64) (*model.Show, error)

	// ReserveSeats adds the labels to the booked set and decrements the
	// availability counter, conditional on expectedVersion.  It returns
	// model.ErrConflict when another mutation won the race (caller
	// retries with a fresh read), model.ErrInsufficientCapacity when a
	// label is already booked or the counter would go negative.
	ReserveSeats(ctx context.Context, showID uint64, labels []string, expectedVersion uint64) (*model.Show, error)

	// ReleaseSeats removes the labels from the booked set and increments
	// the counter accordingly.  Labels not present are ignored so the
	// call is idempotent.  Conflicting writers are retried internally.
	ReleaseSeats(ctx context.Context, showID uint64, labels []string) (*model.Show, error)
}

// LockStore is the seat lock manager.  It grants short-lived exclusive
// holds keyed by (show, seat label).  Availability checks and lock
// creation are a single atomic step; this is the double-booking
// defense.
type LockStore interface {
	// Acquire creates locks for every requested label or none at all.
	// A seat is unavailable when it is booked or another holder has an
	// active lock on it.  First writer wins; losers receive a
	// *model.SeatsUnavailableError naming the contended labels.
	// Expired locks never block acquisition, and a holder re-requesting
	// seats it already holds refreshes its own locks with the new TTL.
	Acquire(ctx context.Context, showID uint64, labels []string, holderID uint64, ttl time.Duration) ([]model.SeatLock, error)

	// Release removes the holder's locks on the given labels.  Absent
	// or expired locks are not an error.  A nil labels slice releases
	// every lock the holder has on the show.
	Release(ctx context.Context, showID uint64, labels []string, holderID uint64) error

	// Extend pushes out the expiry of the holder's active locks on the
	// given labels, used while a payment flow is in progress.  It
	// returns model.ErrNotFound when the holder has no active lock on
	// one of the labels.
	Extend(ctx context.Context, showID uint64, labels []string, holderID uint64, ttl time.Duration) ([]model.SeatLock, error)

	// ActiveByHolder returns the holder's active locks on the show.
	ActiveByHolder(ctx context.Context, showID, holderID uint64) ([]model.SeatLock, error)

	// ActiveByShow returns all active locks on the show.
	ActiveByShow(ctx context.Context, showID uint64) ([]model.SeatLock, error)

	// PurgeExpired physically removes expired lock rows and returns how
	// many were removed.  Purging is a cleanup optimization only; the
	// expiry comparison at read time is the authoritative check.
	PurgeExpired(ctx context.Context) (int, error)
}

// BookingStore is the booking ledger.  It records bookings and
// enforces their state machine; it does not check seat locks, the
// orchestrator enforces that ordering.
type BookingStore interface {
	// Create persists a new booking and populates its ID.
	Create(ctx context.Context, b *model.Booking) error

	// GetByID returns the booking or model.ErrNotFound.
	GetByID(ctx context.Context, bookingID uint64) (*model.Booking, error)

	// ListByUser returns the user's bookings, newest first.
	ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error)

	// ConfirmPayment transitions a PENDING booking to CONFIRMED and
	// records the payment reference.  A booking past its payment
	// deadline is transitioned to EXPIRED instead and model.ErrExpired
	// is returned.  Non-pending bookings yield model.ErrAlreadyTerminal.
	ConfirmPayment(ctx context.Context, bookingID uint64, paymentRef string) (*model.Booking, error)

	// SetPaymentOutcome records the gateway outcome on a booking
	// without changing its lifecycle state.
	SetPaymentOutcome(ctx context.Context, bookingID uint64, paymentStatus, paymentRef string) error

	// Cancel transitions a PENDING or CONFIRMED booking to CANCELLED.
	// Cancelling twice yields model.ErrAlreadyCancelled; an EXPIRED
	// booking yields model.ErrAlreadyTerminal.
	Cancel(ctx context.Context, bookingID uint64) (*model.Booking, error)

	// ExpireDue transitions every PENDING booking whose payment
	// deadline is at or before now to EXPIRED and returns the affected
	// bookings.  Running it twice over the same bookings has no
	// additional effect.
	ExpireDue(ctx context.Context, now time.Time) ([]model.Booking, error)
}
