package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kinohaus/seat-booking/internal/model"
)

// Memory is an in-process implementation of all three store contracts
// guarded by a single mutex.  It backs the test suite and lets the
// server run without a database.  Semantics match the MySQL
// implementation: optimistic versioning on shows, first-writer-wins
// all-or-nothing lock acquisition, passive expiry of locks.
type Memory struct {
	mu       sync.Mutex
	shows    map[uint64]*model.Show
	locks    map[uint64]map[string]*model.SeatLock // showID -> seat label -> lock
	bookings map[uint64]*model.Booking
	nextLock uint64
	nextBook uint64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		shows:    make(map[uint64]*model.Show),
		locks:    make(map[uint64]map[string]*model.SeatLock),
		bookings: make(map[uint64]*model.Booking),
	}
}

// SeedShow inserts or replaces a show.  Used by tests and by dev mode
// in place of the external catalog service.
func (m *Memory) SeedShow(s *model.Show) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	cp.BookedSeats = append([]string(nil), s.BookedSeats...)
	if cp.Status == "" {
		cp.Status = model.ShowStatusActive
	}
	now := time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	m.shows[cp.ID] = &cp
}

func copyShow(s *model.Show) *model.Show {
	cp := *s
	cp.BookedSeats = append([]string(nil), s.BookedSeats...)
	return &cp
}

// GetShow implements ShowStore.
func (m *Memory) GetShow(ctx context.Context, showID uint64) (*model.Show, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shows[showID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return copyShow(s), nil
}

// ReserveSeats implements ShowStore.
func (m *Memory) ReserveSeats(ctx context.Context, showID uint64, labels []string, expectedVersion uint64) (*model.Show, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shows[showID]
	if !ok {
		return nil, model.ErrNotFound
	}
	if s.Version != expectedVersion {
		return nil, model.ErrConflict
	}
	if uint32(len(labels)) > s.AvailableSeats {
		return nil, model.ErrInsufficientCapacity
	}
	for _, l := range labels {
		if s.IsBooked(l) {
			return nil, model.ErrInsufficientCapacity
		}
	}
	s.BookedSeats = append(s.BookedSeats, labels...)
	sort.Strings(s.BookedSeats)
	s.AvailableSeats -= uint32(len(labels))
	s.Version++
	s.UpdatedAt = time.Now().UTC()
	return copyShow(s), nil
}

// ReleaseSeats implements ShowStore.
func (m *Memory) ReleaseSeats(ctx context.Context, showID uint64, labels []string) (*model.Show, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shows[showID]
	if !ok {
		return nil, model.ErrNotFound
	}
	drop := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		drop[l] = struct{}{}
	}
	kept := s.BookedSeats[:0]
	released := uint32(0)
	for _, b := range s.BookedSeats {
		if _, ok := drop[b]; ok {
			released++
			continue
		}
		kept = append(kept, b)
	}
	s.BookedSeats = kept
	s.AvailableSeats += released
	if s.AvailableSeats > s.TotalSeats {
		s.AvailableSeats = s.TotalSeats
	}
	s.Version++
	s.UpdatedAt = time.Now().UTC()
	return copyShow(s), nil
}

// Acquire implements LockStore.  The whole check-and-insert runs under
// the store mutex, making the batch atomic: either every requested
// seat gets a lock or none does.
func (m *Memory) Acquire(ctx context.Context, showID uint64, labels []string, holderID uint64, ttl time.Duration) ([]model.SeatLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	show, ok := m.shows[showID]
	if !ok {
		return nil, model.ErrNotFound
	}
	now := time.Now().UTC()
	byLabel := m.locks[showID]
	var contended []string
	for _, l := range labels {
		if show.IsBooked(l) {
			contended = append(contended, l)
			continue
		}
		if existing, ok := byLabel[l]; ok && existing.Active(now) && existing.HolderID != holderID {
			contended = append(contended, l)
		}
	}
	if len(contended) > 0 {
		return nil, &model.SeatsUnavailableError{Seats: contended}
	}
	if byLabel == nil {
		byLabel = make(map[string]*model.SeatLock)
		m.locks[showID] = byLabel
	}
	expires := now.Add(ttl)
	out := make([]model.SeatLock, 0, len(labels))
	for _, l := range labels {
		m.nextLock++
		token, err := newLockToken()
		if err != nil {
			return nil, err
		}
		lock := &model.SeatLock{
			ID:        m.nextLock,
			ShowID:    showID,
			SeatLabel: l,
			HolderID:  holderID,
			LockToken: token,
			ExpiresAt: expires,
			CreatedAt: now,
		}
		byLabel[l] = lock
		out = append(out, *lock)
	}
	return out, nil
}

// Release implements LockStore.
func (m *Memory) Release(ctx context.Context, showID uint64, labels []string, holderID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byLabel := m.locks[showID]
	if byLabel == nil {
		return nil
	}
	if labels == nil {
		for l, lock := range byLabel {
			if lock.HolderID == holderID {
				delete(byLabel, l)
			}
		}
		return nil
	}
	for _, l := range labels {
		if lock, ok := byLabel[l]; ok && lock.HolderID == holderID {
			delete(byLabel, l)
		}
	}
	return nil
}

// Extend implements LockStore.
func (m *Memory) Extend(ctx context.Context, showID uint64, labels []string, holderID uint64, ttl time.Duration) ([]model.SeatLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byLabel := m.locks[showID]
	now := time.Now().UTC()
	// Validate the whole batch before touching anything so a failed
	// extend leaves every lock as it was.
	for _, l := range labels {
		lock, ok := byLabel[l]
		if !ok || !lock.Active(now) || lock.HolderID != holderID {
			return nil, model.ErrNotFound
		}
	}
	out := make([]model.SeatLock, 0, len(labels))
	for _, l := range labels {
		lock := byLabel[l]
		lock.ExpiresAt = now.Add(ttl)
		out = append(out, *lock)
	}
	return out, nil
}

// ActiveByHolder implements LockStore.
func (m *Memory) ActiveByHolder(ctx context.Context, showID, holderID uint64) ([]model.SeatLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	var out []model.SeatLock
	for _, lock := range m.locks[showID] {
		if lock.HolderID == holderID && lock.Active(now) {
			out = append(out, *lock)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeatLabel < out[j].SeatLabel })
	return out, nil
}

// ActiveByShow implements LockStore.
func (m *Memory) ActiveByShow(ctx context.Context, showID uint64) ([]model.SeatLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	var out []model.SeatLock
	for _, lock := range m.locks[showID] {
		if lock.Active(now) {
			out = append(out, *lock)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeatLabel < out[j].SeatLabel })
	return out, nil
}

// PurgeExpired implements LockStore.
func (m *Memory) PurgeExpired(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	removed := 0
	for _, byLabel := range m.locks {
		for l, lock := range byLabel {
			if !lock.Active(now) {
				delete(byLabel, l)
				removed++
			}
		}
	}
	return removed, nil
}

func copyBooking(b *model.Booking) *model.Booking {
	cp := *b
	cp.Seats = append([]model.BookingSeat(nil), b.Seats...)
	return &cp
}

// Create implements BookingStore.
func (m *Memory) Create(ctx context.Context, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextBook++
	b.ID = m.nextBook
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	m.bookings[b.ID] = copyBooking(b)
	return nil
}

// GetByID implements BookingStore.
func (m *Memory) GetByID(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return copyBooking(b), nil
}

// ListByUser implements BookingStore.
func (m *Memory) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, b := range m.bookings {
		if b.UserID == userID {
			out = append(out, *copyBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// ConfirmPayment implements BookingStore.
func (m *Memory) ConfirmPayment(ctx context.Context, bookingID uint64, paymentRef string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok {
		return nil, model.ErrNotFound
	}
	if !b.CanTransition(model.BookingStatusConfirmed) {
		return copyBooking(b), model.ErrAlreadyTerminal
	}
	now := time.Now().UTC()
	if !now.Before(b.PaymentDeadline) {
		b.Status = model.BookingStatusExpired
		b.UpdatedAt = now
		return copyBooking(b), model.ErrExpired
	}
	b.Status = model.BookingStatusConfirmed
	b.PaymentStatus = model.PaymentStatusCompleted
	b.PaymentRef = paymentRef
	b.QRCode = "QR-" + b.BookingNumber
	b.UpdatedAt = now
	return copyBooking(b), nil
}

// SetPaymentOutcome implements BookingStore.
func (m *Memory) SetPaymentOutcome(ctx context.Context, bookingID uint64, paymentStatus, paymentRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok {
		return model.ErrNotFound
	}
	b.PaymentStatus = paymentStatus
	if paymentRef != "" {
		b.PaymentRef = paymentRef
	}
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// Cancel implements BookingStore.
func (m *Memory) Cancel(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok {
		return nil, model.ErrNotFound
	}
	if b.Terminal() {
		if b.Status == model.BookingStatusCancelled {
			return copyBooking(b), model.ErrAlreadyCancelled
		}
		return copyBooking(b), model.ErrAlreadyTerminal
	}
	if b.PaymentStatus == model.PaymentStatusCompleted {
		b.PaymentStatus = model.PaymentStatusRefunded
	}
	b.Status = model.BookingStatusCancelled
	b.UpdatedAt = time.Now().UTC()
	return copyBooking(b), nil
}

// ExpireDue implements BookingStore.
func (m *Memory) ExpireDue(ctx context.Context, now time.Time) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, b := range m.bookings {
		if b.Status == model.BookingStatusPending && !now.Before(b.PaymentDeadline) {
			b.Status = model.BookingStatusExpired
			b.UpdatedAt = now
			out = append(out, *copyBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
