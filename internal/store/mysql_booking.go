package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/kinohaus/seat-booking/internal/model"
)

const bookingColumns = `id, booking_number, user_id, show_id, status, payment_status,
       subtotal_cents, fee_cents, tax_cents, total_cents, payment_ref,
       qr_code, payment_deadline, created_at, updated_at`

func scanBooking(row rowScanner) (*model.Booking, error) {
	var b model.Booking
	var payRef, qr sql.NullString
	err := row.Scan(&b.ID, &b.BookingNumber, &b.UserID, &b.ShowID, &b.Status,
		&b.PaymentStatus, &b.SubtotalCents, &b.FeeCents, &b.TaxCents,
		&b.TotalCents, &payRef, &qr, &b.PaymentDeadline, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	b.PaymentRef = payRef.String
	b.QRCode = qr.String
	return &b, nil
}

func (s *MySQL) loadSeats(ctx context.Context, b *model.Booking) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seat_label, price_cents FROM booking_seats WHERE booking_id = ? ORDER BY id`,
		b.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var seat model.BookingSeat
		if err := rows.Scan(&seat.SeatLabel, &seat.PriceCents); err != nil {
			return err
		}
		b.Seats = append(b.Seats, seat)
	}
	return rows.Err()
}

// Create implements BookingStore.  The booking row and its seats are
// written in one transaction.
func (s *MySQL) Create(ctx context.Context, b *model.Booking) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (booking_number, user_id, show_id, status, payment_status,
		        subtotal_cents, fee_cents, tax_cents, total_cents, payment_deadline)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.BookingNumber, b.UserID, b.ShowID, b.Status, b.PaymentStatus,
		b.SubtotalCents, b.FeeCents, b.TaxCents, b.TotalCents, sqlTime(b.PaymentDeadline))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	if len(b.Seats) > 0 {
		query := `INSERT INTO booking_seats (booking_id, seat_label, price_cents) VALUES `
		args := make([]interface{}, 0, len(b.Seats)*3)
		for i, seat := range b.Seats {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?)"
			args = append(args, b.ID, seat.SeatLabel, seat.PriceCents)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

// GetByID implements BookingStore.
func (s *MySQL) GetByID(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	b, err := scanBooking(s.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, bookingID))
	if err != nil {
		return nil, err
	}
	if err := s.loadSeats(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// ListByUser implements BookingStore.
func (s *MySQL) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := s.loadSeats(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ConfirmPayment implements BookingStore.  The status transition is a
// conditional update so two racing confirmations cannot both succeed.
func (s *MySQL) ConfirmPayment(ctx context.Context, bookingID uint64, paymentRef string) (*model.Booking, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bookings
		    SET status = ?, payment_status = ?, payment_ref = ?,
		        qr_code = CONCAT('QR-', booking_number), updated_at = UTC_TIMESTAMP()
		  WHERE id = ? AND status = ? AND payment_deadline > UTC_TIMESTAMP()`,
		model.BookingStatusConfirmed, model.PaymentStatusCompleted, paymentRef,
		bookingID, model.BookingStatusPending)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 1 {
		return s.GetByID(ctx, bookingID)
	}
	// The conditional update missed: decide why from the current row.
	b, err := s.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.CanTransition(model.BookingStatusExpired) {
		// Still pending, so the deadline passed without payment; flip
		// to EXPIRED now.
		_, _ = s.db.ExecContext(ctx,
			`UPDATE bookings SET status = ?, updated_at = UTC_TIMESTAMP()
			  WHERE id = ? AND status = ?`,
			model.BookingStatusExpired, bookingID, model.BookingStatusPending)
		b.Status = model.BookingStatusExpired
		return b, model.ErrExpired
	}
	return b, model.ErrAlreadyTerminal
}

// SetPaymentOutcome implements BookingStore.
func (s *MySQL) SetPaymentOutcome(ctx context.Context, bookingID uint64, paymentStatus, paymentRef string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bookings
		    SET payment_status = ?, payment_ref = IF(? = '', payment_ref, ?),
		        updated_at = UTC_TIMESTAMP()
		  WHERE id = ?`,
		paymentStatus, paymentRef, paymentRef, bookingID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// Cancel implements BookingStore.  Only the writer that actually flips
// the status reports success, which keeps double cancellation from
// double-crediting the seat counter upstream.
func (s *MySQL) Cancel(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bookings
		    SET status = ?,
		        payment_status = IF(payment_status = ?, ?, payment_status),
		        updated_at = UTC_TIMESTAMP()
		  WHERE id = ? AND status IN (?, ?)`,
		model.BookingStatusCancelled,
		model.PaymentStatusCompleted, model.PaymentStatusRefunded,
		bookingID, model.BookingStatusPending, model.BookingStatusConfirmed)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	b, getErr := s.GetByID(ctx, bookingID)
	if getErr != nil {
		return nil, getErr
	}
	if n == 1 {
		return b, nil
	}
	// The conditional update only misses on terminal rows.
	if b.Status == model.BookingStatusCancelled {
		return b, model.ErrAlreadyCancelled
	}
	return b, model.ErrAlreadyTerminal
}

// ExpireDue implements BookingStore.
func (s *MySQL) ExpireDue(ctx context.Context, now time.Time) ([]model.Booking, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM bookings WHERE status = ? AND payment_deadline <= ?`,
		model.BookingStatusPending, sqlTime(now))
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	var out []model.Booking
	for _, id := range ids {
		// Conditional flip: a concurrent sweep or confirmation may have
		// raced us, in which case this row is skipped.
		res, err := s.db.ExecContext(ctx,
			`UPDATE bookings SET status = ?, updated_at = UTC_TIMESTAMP()
			  WHERE id = ? AND status = ?`,
			model.BookingStatusExpired, id, model.BookingStatusPending)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			continue
		}
		b, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, nil
}
