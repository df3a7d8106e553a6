// Package queue defines the domain events emitted by the reservation
// core and the RabbitMQ plumbing that carries them.  Delivery is
// best-effort: consumers may forward events to interested observers,
// but correctness never depends on them arriving.
package queue

// Event kinds emitted by the reservation orchestrator.
const (
	KindSeatsHeld           = "seats.held"
	KindBookingConfirmed    = "booking.confirmed"
	KindBookingCancelled    = "booking.cancelled"
	KindShowCapacityChanged = "show.capacity_changed"
)

// Event is the single payload published for every domain event.  It
// carries enough information for downstream consumers to log, notify
// or trigger analytics without querying the primary database.  Fields
// that do not apply to a given kind are zero.
type Event struct {
	Kind           string   `json:"kind"`
	OccurredAt     string   `json:"occurred_at"`
	ShowID         uint64   `json:"show_id"`
	UserID         uint64   `json:"user_id,omitempty"`
	BookingID      uint64   `json:"booking_id,omitempty"`
	BookingNumber  string   `json:"booking_number,omitempty"`
	SeatLabels     []string `json:"seats,omitempty"`
	TotalCents     uint32   `json:"total_cents,omitempty"`
	AvailableSeats uint32   `json:"available_seats"`
	ExpiresAt      string   `json:"expires_at,omitempty"`
}
