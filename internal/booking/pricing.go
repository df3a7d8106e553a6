package booking

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kinohaus/seat-booking/internal/model"
)

// Fee and tax percentages applied to the seat subtotal.
const (
	convenienceFeePct = 5
	taxPct            = 18
)

// seatPriceCents resolves the price of a seat from the show's tiers.
// Rows prefixed "P" are the premium block; everything else is regular.
func seatPriceCents(show *model.Show, label string) uint32 {
	if strings.HasPrefix(label, "P") && show.PremiumPriceCents > 0 {
		return show.PremiumPriceCents
	}
	return show.BasePriceCents
}

// newBookingNumber mints the externally visible booking reference.
// The full UUID keeps it globally unique and URL-safe.
func newBookingNumber() string {
	return "BK-" + strings.ToUpper(uuid.NewString())
}

// buildBooking assembles a pending booking for the held seats with the
// monetary breakdown frozen in: per-seat prices, a convenience fee and
// tax on top of the subtotal.
func buildBooking(userID uint64, show *model.Show, labels []string, paymentWindow time.Duration) *model.Booking {
	seats := make([]model.BookingSeat, 0, len(labels))
	subtotal := uint32(0)
	for _, l := range labels {
		price := seatPriceCents(show, l)
		seats = append(seats, model.BookingSeat{SeatLabel: l, PriceCents: price})
		subtotal += price
	}
	fee := subtotal * convenienceFeePct / 100
	tax := subtotal * taxPct / 100
	return &model.Booking{
		BookingNumber:   newBookingNumber(),
		UserID:          userID,
		ShowID:          show.ID,
		Seats:           seats,
		SubtotalCents:   subtotal,
		FeeCents:        fee,
		TaxCents:        tax,
		TotalCents:      subtotal + fee + tax,
		PaymentStatus:   model.PaymentStatusPending,
		Status:          model.BookingStatusPending,
		PaymentDeadline: time.Now().UTC().Add(paymentWindow),
	}
}
