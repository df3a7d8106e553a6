package booking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kinohaus/seat-booking/internal/model"
)

func TestNewBookingNumber(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		n := newBookingNumber()
		assert.True(t, strings.HasPrefix(n, "BK-"))
		// A full UUID after the prefix, not a truncated one.
		assert.Len(t, n, len("BK-")+36)
		assert.False(t, seen[n], "booking numbers must be unique")
		seen[n] = true
	}
}

func TestBuildBooking_MoneyBreakdown(t *testing.T) {
	show := &model.Show{
		ID:                1,
		BasePriceCents:    1500,
		PremiumPriceCents: 2500,
	}
	b := buildBooking(7, show, []string{"A1", "P3"}, 0)

	assert.Equal(t, uint32(4000), b.SubtotalCents)
	assert.Equal(t, uint32(200), b.FeeCents)
	assert.Equal(t, uint32(720), b.TaxCents)
	assert.Equal(t, uint32(4920), b.TotalCents)
	assert.Equal(t, model.BookingStatusPending, b.Status)
	assert.Equal(t, []string{"A1", "P3"}, b.SeatLabels())
}
