// Package booking contains the reservation orchestrator: the state
// machine that drives a booking attempt through hold, payment,
// confirmation and cancellation.  It is the only component that calls
// the show registry mutators, which keeps the availability invariant
// enforceable at a single choke point.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kinohaus/seat-booking/internal/model"
	"github.com/kinohaus/seat-booking/internal/payment"
	"github.com/kinohaus/seat-booking/internal/queue"
	"github.com/kinohaus/seat-booking/internal/store"
)

// Roles recognized at the orchestrator boundary.  The identity
// provider supplies them; the core only checks capabilities.
const (
	RoleCustomer = "CUSTOMER"
	RoleAdmin    = "ADMIN"
)

// Actor identifies the authenticated caller of an operation.
type Actor struct {
	ID   uint64
	Role string
}

// CanManage reports whether the actor may operate on a booking owned
// by ownerID.
func (a Actor) CanManage(ownerID uint64) bool {
	return a.ID == ownerID || a.Role == RoleAdmin
}

// EventPublisher forwards domain events to the external broadcaster.
// Publishing is best-effort; failures are logged, never surfaced.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}

// Config tunes the orchestrator.  Zero values fall back to defaults.
type Config struct {
	HoldTTL         time.Duration // lifetime of a seat hold
	PaymentWindow   time.Duration // deadline for paying a pending booking
	ConflictRetries int           // bounded retries on optimistic conflicts
	AvailabilityTTL time.Duration // Redis cache lifetime for availability
	ConflictBackoff time.Duration // base backoff between conflict retries
}

const (
	defaultHoldTTL         = 5 * time.Minute
	defaultPaymentWindow   = 10 * time.Minute
	defaultConflictRetries = 3
	defaultAvailabilityTTL = 10 * time.Second
	defaultConflictBackoff = 20 * time.Millisecond
)

func (c Config) withDefaults() Config {
	if c.HoldTTL <= 0 {
		c.HoldTTL = defaultHoldTTL
	}
	if c.PaymentWindow <= 0 {
		c.PaymentWindow = defaultPaymentWindow
	}
	if c.ConflictRetries <= 0 {
		c.ConflictRetries = defaultConflictRetries
	}
	if c.AvailabilityTTL <= 0 {
		c.AvailabilityTTL = defaultAvailabilityTTL
	}
	if c.ConflictBackoff <= 0 {
		c.ConflictBackoff = defaultConflictBackoff
	}
	return c
}

// Service is the reservation orchestrator.  The Redis client and the
// event publisher are optional; a nil value disables availability
// caching or event publishing respectively.
type Service struct {
	shows    store.ShowStore
	locks    store.LockStore
	bookings store.BookingStore
	gateway  payment.Gateway
	events   EventPublisher
	cache    *redis.Client
	cfg      Config
}

// NewService wires the orchestrator.  The three stores and the
// gateway must be non-nil.
func NewService(shows store.ShowStore, locks store.LockStore, bookings store.BookingStore, gw payment.Gateway, events EventPublisher, cache *redis.Client, cfg Config) *Service {
	if shows == nil || locks == nil || bookings == nil || gw == nil {
		panic("nil dependency passed to booking.NewService")
	}
	return &Service{
		shows:    shows,
		locks:    locks,
		bookings: bookings,
		gateway:  gw,
		events:   events,
		cache:    cache,
		cfg:      cfg.withDefaults(),
	}
}

// HoldResult is returned by HoldSeats.
type HoldResult struct {
	ShowID     uint64    `json:"show_id"`
	SeatLabels []string  `json:"seat_labels"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// dedupeLabels drops empty and repeated labels while keeping order.
func dedupeLabels(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

// HoldSeats acquires exclusive holds on the requested seats for the
// actor.  The acquisition is all-or-nothing: when any seat is booked
// or locked by someone else, no lock is created and the contended
// labels come back in a *model.SeatsUnavailableError.  The show's
// availability counter does not move; it changes only on confirm.
func (s *Service) HoldSeats(ctx context.Context, actor Actor, showID uint64, labels []string, ttl time.Duration) (*HoldResult, error) {
	labels = dedupeLabels(labels)
	if len(labels) == 0 {
		return nil, errors.New("no seat labels requested")
	}
	if ttl <= 0 {
		ttl = s.cfg.HoldTTL
	}
	show, err := s.shows.GetShow(ctx, showID)
	if err != nil {
		return nil, err
	}
	if !show.IsActive() {
		return nil, model.ErrShowInactive
	}
	locks, err := s.locks.Acquire(ctx, showID, labels, actor.ID, ttl)
	if err != nil {
		return nil, err
	}
	expires := locks[0].ExpiresAt
	s.publish(ctx, queue.Event{
		Kind:           queue.KindSeatsHeld,
		OccurredAt:     time.Now().UTC().Format(time.RFC3339),
		ShowID:         showID,
		UserID:         actor.ID,
		SeatLabels:     labels,
		AvailableSeats: show.AvailableSeats,
		ExpiresAt:      expires.Format(time.RFC3339),
	})
	return &HoldResult{ShowID: showID, SeatLabels: labels, ExpiresAt: expires}, nil
}

// ReleaseHold drops every hold the actor has on the show and reports
// how many seats were freed.  Releasing nothing is not an error.
func (s *Service) ReleaseHold(ctx context.Context, actor Actor, showID uint64) (int, error) {
	held, err := s.locks.ActiveByHolder(ctx, showID, actor.ID)
	if err != nil {
		return 0, err
	}
	if err := s.locks.Release(ctx, showID, nil, actor.ID); err != nil {
		return 0, err
	}
	return len(held), nil
}

// ConfirmBooking converts the actor's active holds on the show into a
// booking: it prices the held seats, creates a pending ledger entry,
// charges the gateway and completes the confirmation atomically with
// respect to the seat counter.  The holds must still be active at the
// moment of conversion; a hold that expired and was reassigned makes
// the confirmation fail with model.ErrHoldExpired instead of silently
// stealing the seat.
func (s *Service) ConfirmBooking(ctx context.Context, actor Actor, showID uint64) (*model.Booking, error) {
	show, err := s.shows.GetShow(ctx, showID)
	if err != nil {
		return nil, err
	}
	if !show.IsActive() {
		return nil, model.ErrShowInactive
	}
	holds, err := s.locks.ActiveByHolder(ctx, showID, actor.ID)
	if err != nil {
		return nil, err
	}
	if len(holds) == 0 {
		return nil, model.ErrExpired
	}
	labels := make([]string, 0, len(holds))
	for _, h := range holds {
		labels = append(labels, h.SeatLabel)
	}

	b := buildBooking(actor.ID, show, labels, s.cfg.PaymentWindow)
	if err := s.bookings.Create(ctx, b); err != nil {
		return nil, err
	}

	// Keep the holds alive through the payment window so nobody grabs
	// the seats while the gateway is charging.  A hold that slipped
	// away between the read above and here makes the whole attempt
	// fail; the just-created pending booking is cancelled rather than
	// left for the sweeper.
	if _, err := s.locks.Extend(ctx, showID, labels, actor.ID, s.cfg.PaymentWindow); err != nil {
		if _, cErr := s.bookings.Cancel(ctx, b.ID); cErr != nil {
			log.Printf("booking: cancel after lost hold for %s: %v", b.BookingNumber, cErr)
		}
		return nil, model.ErrHoldExpired
	}

	payRef, err := s.gateway.Charge(ctx, b.TotalCents, b.BookingNumber)
	if err != nil {
		if soErr := s.bookings.SetPaymentOutcome(ctx, b.ID, model.PaymentStatusFailed, ""); soErr != nil {
			log.Printf("booking: record payment failure for %s: %v", b.BookingNumber, soErr)
		}
		return nil, model.ErrPaymentFailed
	}

	// Re-validate at the conversion point: the locks this confirmation
	// relied on must still be ours.
	holds, err = s.locks.ActiveByHolder(ctx, showID, actor.ID)
	if err != nil {
		return nil, err
	}
	if !coversAll(holds, labels) {
		s.compensateCharge(ctx, b, payRef)
		return nil, model.ErrHoldExpired
	}

	confirmed, err := s.bookings.ConfirmPayment(ctx, b.ID, payRef)
	if err != nil {
		s.compensateCharge(ctx, b, payRef)
		return nil, err
	}

	updated, err := s.reserveWithRetry(ctx, showID, labels)
	if err != nil {
		// The ledger says confirmed but the seats could not be claimed;
		// roll the booking back and refund.
		if _, cErr := s.bookings.Cancel(ctx, b.ID); cErr != nil {
			log.Printf("booking: rollback cancel for %s: %v", b.BookingNumber, cErr)
		}
		s.compensateCharge(ctx, b, payRef)
		if errors.Is(err, model.ErrInsufficientCapacity) {
			return nil, model.ErrHoldExpired
		}
		return nil, err
	}

	if err := s.locks.Release(ctx, showID, labels, actor.ID); err != nil {
		log.Printf("booking: release holds for %s: %v", b.BookingNumber, err)
	}
	s.invalidateAvailability(ctx, showID)

	now := time.Now().UTC().Format(time.RFC3339)
	s.publish(ctx, queue.Event{
		Kind:           queue.KindBookingConfirmed,
		OccurredAt:     now,
		ShowID:         showID,
		UserID:         actor.ID,
		BookingID:      confirmed.ID,
		BookingNumber:  confirmed.BookingNumber,
		SeatLabels:     labels,
		TotalCents:     confirmed.TotalCents,
		AvailableSeats: updated.AvailableSeats,
	})
	s.publish(ctx, queue.Event{
		Kind:           queue.KindShowCapacityChanged,
		OccurredAt:     now,
		ShowID:         showID,
		AvailableSeats: updated.AvailableSeats,
	})
	return confirmed, nil
}

// coversAll reports whether the holds cover every label.
func coversAll(holds []model.SeatLock, labels []string) bool {
	held := make(map[string]struct{}, len(holds))
	for _, h := range holds {
		held[h.SeatLabel] = struct{}{}
	}
	for _, l := range labels {
		if _, ok := held[l]; !ok {
			return false
		}
	}
	return true
}

// reserveWithRetry runs the registry compare-and-swap with bounded
// retries on optimistic conflicts.  Each attempt re-reads the show so
// the version token is fresh.
func (s *Service) reserveWithRetry(ctx context.Context, showID uint64, labels []string) (*model.Show, error) {
	var lastErr error
	for attempt := 0; attempt < s.cfg.ConflictRetries; attempt++ {
		show, err := s.shows.GetShow(ctx, showID)
		if err != nil {
			return nil, err
		}
		updated, err := s.shows.ReserveSeats(ctx, showID, labels, show.Version)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, model.ErrConflict) {
			return nil, err
		}
		lastErr = err
		time.Sleep(time.Duration(attempt+1) * s.cfg.ConflictBackoff)
	}
	return nil, lastErr
}

// compensateCharge refunds a charge whose booking could not be
// completed and records the outcome.  Best effort on the gateway side.
func (s *Service) compensateCharge(ctx context.Context, b *model.Booking, payRef string) {
	if err := s.gateway.Refund(ctx, payRef, b.TotalCents); err != nil {
		log.Printf("booking: refund %s for %s failed: %v", payRef, b.BookingNumber, err)
	}
	if err := s.bookings.SetPaymentOutcome(ctx, b.ID, model.PaymentStatusRefunded, payRef); err != nil {
		log.Printf("booking: record refund for %s: %v", b.BookingNumber, err)
	}
}

// CancelBooking cancels a booking on behalf of its owner or an admin.
// Cancelling an already-cancelled booking returns the terminal record
// together with model.ErrAlreadyCancelled and has no further effect on
// the seat counter.  Seats return to the pool only when the cancelled
// booking had been confirmed.
func (s *Service) CancelBooking(ctx context.Context, actor Actor, bookingID uint64) (*model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(b.UserID) {
		return nil, model.ErrNotAuthorized
	}
	cancelled, err := s.bookings.Cancel(ctx, bookingID)
	if err != nil {
		return cancelled, err
	}

	labels := cancelled.SeatLabels()
	// A refunded payment status means the compare-and-swap moved the
	// booking out of CONFIRMED, so its seats are on the show and must
	// come back.  Pending cancellations only carry locks.
	if cancelled.PaymentStatus == model.PaymentStatusRefunded {
		updated, rErr := s.shows.ReleaseSeats(ctx, cancelled.ShowID, labels)
		if rErr != nil {
			log.Printf("booking: release seats for %s: %v", cancelled.BookingNumber, rErr)
		}
		if gErr := s.gateway.Refund(ctx, cancelled.PaymentRef, cancelled.TotalCents); gErr != nil {
			log.Printf("booking: refund for %s failed: %v", cancelled.BookingNumber, gErr)
		}
		s.invalidateAvailability(ctx, cancelled.ShowID)
		now := time.Now().UTC().Format(time.RFC3339)
		avail := uint32(0)
		if updated != nil {
			avail = updated.AvailableSeats
		}
		s.publish(ctx, queue.Event{
			Kind:           queue.KindBookingCancelled,
			OccurredAt:     now,
			ShowID:         cancelled.ShowID,
			UserID:         cancelled.UserID,
			BookingID:      cancelled.ID,
			BookingNumber:  cancelled.BookingNumber,
			SeatLabels:     labels,
			AvailableSeats: avail,
		})
		s.publish(ctx, queue.Event{
			Kind:           queue.KindShowCapacityChanged,
			OccurredAt:     now,
			ShowID:         cancelled.ShowID,
			AvailableSeats: avail,
		})
		return cancelled, nil
	}

	if err := s.locks.Release(ctx, cancelled.ShowID, labels, cancelled.UserID); err != nil {
		log.Printf("booking: release locks for %s: %v", cancelled.BookingNumber, err)
	}
	s.publish(ctx, queue.Event{
		Kind:          queue.KindBookingCancelled,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
		ShowID:        cancelled.ShowID,
		UserID:        cancelled.UserID,
		BookingID:     cancelled.ID,
		BookingNumber: cancelled.BookingNumber,
		SeatLabels:    labels,
	})
	return cancelled, nil
}

// GetBooking returns a booking to its owner or an admin.
func (s *Service) GetBooking(ctx context.Context, actor Actor, bookingID uint64) (*model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(b.UserID) {
		return nil, model.ErrNotAuthorized
	}
	return b, nil
}

// ListBookings returns the actor's bookings, newest first.
func (s *Service) ListBookings(ctx context.Context, actor Actor) ([]model.Booking, error) {
	return s.bookings.ListByUser(ctx, actor.ID)
}

// Availability is the public view of a show's seat inventory.
type Availability struct {
	ShowID         uint64    `json:"show_id"`
	StartsAt       time.Time `json:"starts_at"`
	EndsAt         time.Time `json:"ends_at"`
	TotalSeats     uint32    `json:"total_seats"`
	AvailableSeats uint32    `json:"available_seats"`
	BookedSeats    []string  `json:"booked_seats"`
	LockedSeats    []string  `json:"locked_seats"`
}

func availabilityKey(showID uint64) string {
	return "availability:" + strconv.FormatUint(showID, 10)
}

// GetShowAvailability returns the show's current counters plus the
// labels of booked and actively locked seats.  Results are cached in
// Redis for a short TTL and invalidated on confirm and cancel; a nil
// or unreachable Redis client silently disables the cache.
func (s *Service) GetShowAvailability(ctx context.Context, showID uint64) (*Availability, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, availabilityKey(showID)).Result(); err == nil {
			var av Availability
			if jErr := json.Unmarshal([]byte(cached), &av); jErr == nil {
				return &av, nil
			}
		}
	}
	show, err := s.shows.GetShow(ctx, showID)
	if err != nil {
		return nil, err
	}
	locks, err := s.locks.ActiveByShow(ctx, showID)
	if err != nil {
		return nil, err
	}
	locked := make([]string, 0, len(locks))
	for _, l := range locks {
		locked = append(locked, l.SeatLabel)
	}
	av := &Availability{
		ShowID:         show.ID,
		StartsAt:       show.StartsAt,
		EndsAt:         show.EndsAt,
		TotalSeats:     show.TotalSeats,
		AvailableSeats: show.AvailableSeats,
		BookedSeats:    show.BookedSeats,
		LockedSeats:    locked,
	}
	if s.cache != nil {
		if body, err := json.Marshal(av); err == nil {
			_ = s.cache.Set(ctx, availabilityKey(showID), body, s.cfg.AvailabilityTTL).Err()
		}
	}
	return av, nil
}

func (s *Service) invalidateAvailability(ctx context.Context, showID uint64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, availabilityKey(showID)).Err(); err != nil {
		log.Printf("booking: invalidate availability cache for show %d: %v", showID, err)
	}
}

func (s *Service) publish(ctx context.Context, ev queue.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		log.Printf("booking: publish %s event: %v", ev.Kind, err)
	}
}
