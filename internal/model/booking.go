package model

import "time"

// Booking statuses.  A booking starts out PENDING when locks are
// converted, becomes CONFIRMED on payment success, CANCELLED on user or
// admin cancellation, and EXPIRED when the payment window elapses.
// CONFIRMED may still transition to CANCELLED; CANCELLED and EXPIRED
// are terminal.
const (
	BookingStatusPending   = "PENDING"
	BookingStatusConfirmed = "CONFIRMED"
	BookingStatusCancelled = "CANCELLED"
	BookingStatusExpired   = "EXPIRED"
)

// Payment statuses recorded on a booking.  These mirror the outcome of
// the external gateway call and are informational: the booking status
// drives the state machine.
const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusFailed    = "FAILED"
	PaymentStatusRefunded  = "REFUNDED"
)

// BookingSeat is one purchased seat within a booking.  Seat labels are
// unique within a booking.
type BookingSeat struct {
	SeatLabel  string `json:"seat_label"`
	PriceCents uint32 `json:"price_cents"`
}

// Booking is an immutable record of a confirmed purchase of one or
// more seats for a show.  The monetary breakdown is frozen at creation
// time.
//
// Fields:
//  ID              – primary key identifier.
//  BookingNumber   – externally visible, globally unique, URL-safe
//                    reference.
//  UserID          – user who made the booking.
//  ShowID          – show being booked.
//  Seats           – seats purchased with their individual prices.
//  SubtotalCents   – sum of seat prices.
//  FeeCents        – convenience fee charged on top of the subtotal.
//  TaxCents        – tax charged on the subtotal.
//  TotalCents      – subtotal + fee + tax; the amount charged.
//  PaymentRef      – reference returned by the payment gateway.
//  PaymentStatus   – outcome of the gateway call.
//  Status          – booking lifecycle state.
//  QRCode          – code presented at the theater entrance; set on
//                    confirmation.
//  PaymentDeadline – instant after which a pending booking expires.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Booking struct {
	ID              uint64        `json:"id"`
	BookingNumber   string        `json:"booking_number"`
	UserID          uint64        `json:"user_id"`
	ShowID          uint64        `json:"show_id"`
	Seats           []BookingSeat `json:"seats"`
	SubtotalCents   uint32        `json:"subtotal_cents"`
	FeeCents        uint32        `json:"fee_cents"`
	TaxCents        uint32        `json:"tax_cents"`
	TotalCents      uint32        `json:"total_cents"`
	PaymentRef      string        `json:"payment_ref,omitempty"`
	PaymentStatus   string        `json:"payment_status"`
	Status          string        `json:"status"`
	QRCode          string        `json:"qr_code,omitempty"`
	PaymentDeadline time.Time     `json:"payment_deadline"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Terminal reports whether the booking can no longer change state.
func (b *Booking) Terminal() bool {
	return b.Status == BookingStatusCancelled || b.Status == BookingStatusExpired
}

// SeatLabels returns the labels of all seats in the booking, in order.
func (b *Booking) SeatLabels() []string {
	labels := make([]string, 0, len(b.Seats))
	for _, s := range b.Seats {
		labels = append(labels, s.SeatLabel)
	}
	return labels
}

// CanTransition reports whether a booking in the current status may
// move to the target status.  PENDING may become CONFIRMED, CANCELLED
// or EXPIRED; CONFIRMED may only become CANCELLED.
func (b *Booking) CanTransition(target string) bool {
	switch b.Status {
	case BookingStatusPending:
		return target == BookingStatusConfirmed ||
			target == BookingStatusCancelled ||
			target == BookingStatusExpired
	case BookingStatusConfirmed:
		return target == BookingStatusCancelled
	default:
		return false
	}
}
