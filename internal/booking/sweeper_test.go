package booking_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinohaus/seat-booking/internal/model"
	"github.com/kinohaus/seat-booking/internal/store"
)

func TestSweepExpired(t *testing.T) {
	m := store.NewMemory()
	seedShow(m, 10)
	svc := newTestService(m, nil, nil)
	ctx := context.Background()

	// A pending booking whose payment window has elapsed, with the
	// locks it was created from still on the books.
	_, err := m.Acquire(ctx, 1, []string{"A1", "A2"}, user1.ID, time.Hour)
	require.NoError(t, err)
	stale := &model.Booking{
		BookingNumber: "BK-STALE",
		UserID:        user1.ID,
		ShowID:        1,
		Seats: []model.BookingSeat{
			{SeatLabel: "A1", PriceCents: 1500},
			{SeatLabel: "A2", PriceCents: 1500},
		},
		PaymentStatus:   model.PaymentStatusPending,
		Status:          model.BookingStatusPending,
		PaymentDeadline: time.Now().UTC().Add(-time.Minute),
	}
	require.NoError(t, m.Create(ctx, stale))

	expired, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	b, err := m.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusExpired, b.Status)

	// The reclaimed seats are holdable again.
	_, err = svc.HoldSeats(ctx, user2, 1, []string{"A1", "A2"}, 0)
	assert.NoError(t, err)

	// A second pass finds nothing to do.
	expired, err = svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, expired)
}

func TestSweepExpired_LeavesFreshBookingsAlone(t *testing.T) {
	m := store.NewMemory()
	seedShow(m, 10)
	svc := newTestService(m, nil, nil)
	ctx := context.Background()

	fresh := &model.Booking{
		BookingNumber:   "BK-FRESH",
		UserID:          user1.ID,
		ShowID:          1,
		Seats:           []model.BookingSeat{{SeatLabel: "B1", PriceCents: 1500}},
		PaymentStatus:   model.PaymentStatusPending,
		Status:          model.BookingStatusPending,
		PaymentDeadline: time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, m.Create(ctx, fresh))

	expired, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, expired)

	b, err := m.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusPending, b.Status)
}
