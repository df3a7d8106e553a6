package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinohaus/seat-booking/internal/model"
	"github.com/kinohaus/seat-booking/internal/store"
)

func seedStore(t *testing.T, total uint32) *store.Memory {
	t.Helper()
	m := store.NewMemory()
	m.SeedShow(&model.Show{
		ID:                1,
		MovieRef:          "mv-100",
		TheaterRef:        "th-1",
		ScreenNumber:      3,
		StartsAt:          time.Now().UTC().Add(2 * time.Hour),
		EndsAt:            time.Now().UTC().Add(4 * time.Hour),
		TotalSeats:        total,
		AvailableSeats:    total,
		BasePriceCents:    1500,
		PremiumPriceCents: 2500,
		Status:            model.ShowStatusActive,
	})
	return m
}

func TestAcquire_NoDoubleLock(t *testing.T) {
	m := seedStore(t, 10)
	ctx := context.Background()

	const holders = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 1; i <= holders; i++ {
		wg.Add(1)
		go func(holder uint64) {
			defer wg.Done()
			if _, err := m.Acquire(ctx, 1, []string{"A1"}, holder, time.Minute); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(uint64(i))
	}
	wg.Wait()

	assert.Equal(t, 1, winners, "exactly one holder may lock a seat")

	locks, err := m.ActiveByShow(ctx, 1)
	require.NoError(t, err)
	require.Len(t, locks, 1)
	assert.Equal(t, "A1", locks[0].SeatLabel)
}

func TestAcquire_AllOrNothing(t *testing.T) {
	m := seedStore(t, 10)
	ctx := context.Background()

	_, err := m.Acquire(ctx, 1, []string{"A2"}, 1, time.Minute)
	require.NoError(t, err)

	_, err = m.Acquire(ctx, 1, []string{"A1", "A2"}, 2, time.Minute)
	seats, ok := model.Unavailable(err)
	require.True(t, ok, "expected SeatsUnavailableError, got %v", err)
	assert.Equal(t, []string{"A2"}, seats)

	// A1 must not have been locked as a side effect of the failed batch.
	_, err = m.Acquire(ctx, 1, []string{"A1"}, 3, time.Minute)
	assert.NoError(t, err)
}

func TestAcquire_ExpiredLockIsReassignable(t *testing.T) {
	m := seedStore(t, 10)
	ctx := context.Background()

	_, err := m.Acquire(ctx, 1, []string{"B1"}, 1, 20*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)

	locks, err := m.Acquire(ctx, 1, []string{"B1"}, 2, time.Minute)
	require.NoError(t, err, "expired hold must not block a new holder")
	assert.Equal(t, uint64(2), locks[0].HolderID)
}

func TestAcquire_BookedSeatUnavailable(t *testing.T) {
	m := seedStore(t, 10)
	ctx := context.Background()

	show, err := m.GetShow(ctx, 1)
	require.NoError(t, err)
	_, err = m.ReserveSeats(ctx, 1, []string{"C1"}, show.Version)
	require.NoError(t, err)

	_, err = m.Acquire(ctx, 1, []string{"C1"}, 5, time.Minute)
	seats, ok := model.Unavailable(err)
	require.True(t, ok)
	assert.Equal(t, []string{"C1"}, seats)
}

func TestReserveSeats_VersionConflict(t *testing.T) {
	m := seedStore(t, 10)
	ctx := context.Background()

	show, err := m.GetShow(ctx, 1)
	require.NoError(t, err)

	_, err = m.ReserveSeats(ctx, 1, []string{"A1"}, show.Version)
	require.NoError(t, err)

	// The stale version token must be rejected.
	_, err = m.ReserveSeats(ctx, 1, []string{"A2"}, show.Version)
	assert.ErrorIs(t, err, model.ErrConflict)
}

func TestReserveSeats_CounterConservation(t *testing.T) {
	m := seedStore(t, 10)
	ctx := context.Background()

	show, err := m.GetShow(ctx, 1)
	require.NoError(t, err)

	updated, err := m.ReserveSeats(ctx, 1, []string{"A1", "A2", "A3"}, show.Version)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), updated.AvailableSeats)
	assert.Equal(t, updated.TotalSeats, updated.AvailableSeats+uint32(len(updated.BookedSeats)))

	updated, err = m.ReleaseSeats(ctx, 1, []string{"A2"})
	require.NoError(t, err)
	assert.Equal(t, uint32(8), updated.AvailableSeats)
	assert.Equal(t, updated.TotalSeats, updated.AvailableSeats+uint32(len(updated.BookedSeats)))
	assert.False(t, updated.IsBooked("A2"))
}

func TestReserveSeats_InsufficientCapacity(t *testing.T) {
	m := seedStore(t, 2)
	ctx := context.Background()

	show, err := m.GetShow(ctx, 1)
	require.NoError(t, err)

	_, err = m.ReserveSeats(ctx, 1, []string{"A1", "A2", "A3"}, show.Version)
	assert.ErrorIs(t, err, model.ErrInsufficientCapacity)
}

func TestExtend_UnknownLock(t *testing.T) {
	m := seedStore(t, 10)
	ctx := context.Background()

	_, err := m.Extend(ctx, 1, []string{"Z9"}, 1, time.Minute)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestExtend_FailedBatchExtendsNothing(t *testing.T) {
	m := seedStore(t, 10)
	ctx := context.Background()

	_, err := m.Acquire(ctx, 1, []string{"A1"}, 1, time.Minute)
	require.NoError(t, err)
	before, err := m.ActiveByHolder(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, before, 1)

	// One unknown label fails the batch; the valid lock must keep its
	// original expiry.
	_, err = m.Extend(ctx, 1, []string{"A1", "Z9"}, 1, time.Hour)
	assert.ErrorIs(t, err, model.ErrNotFound)

	after, err := m.ActiveByHolder(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, before[0].ExpiresAt, after[0].ExpiresAt)
}

func TestAcquire_SameHolderRefreshes(t *testing.T) {
	m := seedStore(t, 10)
	ctx := context.Background()

	first, err := m.Acquire(ctx, 1, []string{"A1"}, 1, time.Minute)
	require.NoError(t, err)

	// A retried hold by the same holder succeeds and carries the new
	// TTL instead of reporting the seat as contended.
	second, err := m.Acquire(ctx, 1, []string{"A1"}, 1, time.Hour)
	require.NoError(t, err)
	assert.True(t, second[0].ExpiresAt.After(first[0].ExpiresAt))

	locks, err := m.ActiveByShow(ctx, 1)
	require.NoError(t, err)
	require.Len(t, locks, 1)
	assert.Equal(t, uint64(1), locks[0].HolderID)
}

func TestPurgeExpired(t *testing.T) {
	m := seedStore(t, 10)
	ctx := context.Background()

	_, err := m.Acquire(ctx, 1, []string{"A1", "A2"}, 1, 10*time.Millisecond)
	require.NoError(t, err)
	_, err = m.Acquire(ctx, 1, []string{"B1"}, 2, time.Minute)
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	removed, err := m.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	locks, err := m.ActiveByShow(ctx, 1)
	require.NoError(t, err)
	require.Len(t, locks, 1)
	assert.Equal(t, "B1", locks[0].SeatLabel)
}

func newPendingBooking(userID uint64, deadline time.Time) *model.Booking {
	return &model.Booking{
		BookingNumber: "BK-TEST",
		UserID:        userID,
		ShowID:        1,
		Seats: []model.BookingSeat{
			{SeatLabel: "A1", PriceCents: 1500},
			{SeatLabel: "A2", PriceCents: 1500},
		},
		SubtotalCents:   3000,
		FeeCents:        150,
		TaxCents:        540,
		TotalCents:      3690,
		PaymentStatus:   model.PaymentStatusPending,
		Status:          model.BookingStatusPending,
		PaymentDeadline: deadline,
	}
}

func TestConfirmPayment_SetsQRCode(t *testing.T) {
	m := seedStore(t, 10)
	ctx := context.Background()

	b := newPendingBooking(7, time.Now().UTC().Add(time.Minute))
	require.NoError(t, m.Create(ctx, b))

	confirmed, err := m.ConfirmPayment(ctx, b.ID, "pay_123")
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, confirmed.Status)
	assert.Equal(t, model.PaymentStatusCompleted, confirmed.PaymentStatus)
	assert.Equal(t, "QR-BK-TEST", confirmed.QRCode)
	assert.Equal(t, "pay_123", confirmed.PaymentRef)
}

func TestConfirmPayment_PastDeadline(t *testing.T) {
	m := seedStore(t, 10)
	ctx := context.Background()

	b := newPendingBooking(7, time.Now().UTC().Add(-time.Second))
	require.NoError(t, m.Create(ctx, b))

	expired, err := m.ConfirmPayment(ctx, b.ID, "pay_123")
	assert.ErrorIs(t, err, model.ErrExpired)
	assert.Equal(t, model.BookingStatusExpired, expired.Status)

	// A second attempt hits the terminal state, not the deadline path.
	_, err = m.ConfirmPayment(ctx, b.ID, "pay_456")
	assert.ErrorIs(t, err, model.ErrAlreadyTerminal)
}

func TestCancel_Idempotent(t *testing.T) {
	m := seedStore(t, 10)
	ctx := context.Background()

	b := newPendingBooking(7, time.Now().UTC().Add(time.Minute))
	require.NoError(t, m.Create(ctx, b))
	_, err := m.ConfirmPayment(ctx, b.ID, "pay_123")
	require.NoError(t, err)

	first, err := m.Cancel(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, first.Status)
	assert.Equal(t, model.PaymentStatusRefunded, first.PaymentStatus,
		"a paid booking flips to refunded exactly once")

	second, err := m.Cancel(ctx, b.ID)
	assert.ErrorIs(t, err, model.ErrAlreadyCancelled)
	assert.Equal(t, model.BookingStatusCancelled, second.Status)
}

func TestExpireDue(t *testing.T) {
	m := seedStore(t, 10)
	ctx := context.Background()

	due := newPendingBooking(7, time.Now().UTC().Add(-time.Second))
	require.NoError(t, m.Create(ctx, due))
	fresh := newPendingBooking(8, time.Now().UTC().Add(time.Hour))
	require.NoError(t, m.Create(ctx, fresh))

	expired, err := m.ExpireDue(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, due.ID, expired[0].ID)

	kept, err := m.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusPending, kept.Status)
}
