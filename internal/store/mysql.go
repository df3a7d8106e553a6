package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/kinohaus/seat-booking/internal/model"
)

// MySQL implements the store contracts on top of a MySQL database.
// Expected schema (all timestamps stored in UTC):
//
//	shows(id PK AUTO_INCREMENT, movie_ref, theater_ref, screen_number,
//	      starts_at, ends_at, total_seats, available_seats,
//	      booked_seats JSON, base_price_cents, premium_price_cents,
//	      status, version, created_at, updated_at)
//	seat_locks(id PK AUTO_INCREMENT, show_id, seat_label, holder_id,
//	      lock_token, expires_at, created_at,
//	      UNIQUE KEY uq_show_seat (show_id, seat_label))
//	bookings(id PK AUTO_INCREMENT, booking_number UNIQUE, user_id,
//	      show_id, status, payment_status, subtotal_cents, fee_cents,
//	      tax_cents, total_cents, payment_ref, qr_code,
//	      payment_deadline, created_at, updated_at)
//	booking_seats(id PK AUTO_INCREMENT, booking_id FK, seat_label,
//	      price_cents)
type MySQL struct {
	db *sql.DB
}

// NewMySQL returns a MySQL-backed store bound to the provided pool.
func NewMySQL(db *sql.DB) *MySQL { return &MySQL{db: db} }

// DB exposes the underlying pool for health checks.
func (s *MySQL) DB() *sql.DB { return s.db }

// sqlTime formats a timestamp for a DATETIME column.
func sqlTime(t time.Time) string { return t.UTC().Format("2006-01-02 15:04:05") }

const showColumns = `id, movie_ref, theater_ref, screen_number, starts_at, ends_at,
       total_seats, available_seats, booked_seats, base_price_cents,
       premium_price_cents, status, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanShow(row rowScanner) (*model.Show, error) {
	var sh model.Show
	var booked []byte
	err := row.Scan(&sh.ID, &sh.MovieRef, &sh.TheaterRef, &sh.ScreenNumber,
		&sh.StartsAt, &sh.EndsAt, &sh.TotalSeats, &sh.AvailableSeats,
		&booked, &sh.BasePriceCents, &sh.PremiumPriceCents, &sh.Status,
		&sh.Version, &sh.CreatedAt, &sh.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	if len(booked) > 0 {
		if err := json.Unmarshal(booked, &sh.BookedSeats); err != nil {
			return nil, err
		}
	}
	return &sh, nil
}

// GetShow implements ShowStore.
func (s *MySQL) GetShow(ctx context.Context, showID uint64) (*model.Show, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+showColumns+` FROM shows WHERE id = ?`, showID)
	return scanShow(row)
}

// ReserveSeats implements ShowStore.  The update is conditional on the
// version the caller observed; losing the race surfaces as
// model.ErrConflict so the orchestrator can re-read and retry.
func (s *MySQL) ReserveSeats(ctx context.Context, showID uint64, labels []string, expectedVersion uint64) (*model.Show, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	sh, err := scanShow(tx.QueryRowContext(ctx, `SELECT `+showColumns+` FROM shows WHERE id = ?`, showID))
	if err != nil {
		return nil, err
	}
	if sh.Version != expectedVersion {
		return nil, model.ErrConflict
	}
	if uint32(len(labels)) > sh.AvailableSeats {
		return nil, model.ErrInsufficientCapacity
	}
	for _, l := range labels {
		if sh.IsBooked(l) {
			return nil, model.ErrInsufficientCapacity
		}
	}
	sh.BookedSeats = append(sh.BookedSeats, labels...)
	sh.AvailableSeats -= uint32(len(labels))
	booked, err := json.Marshal(sh.BookedSeats)
	if err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE shows
		    SET booked_seats = ?, available_seats = ?, version = version + 1,
		        updated_at = UTC_TIMESTAMP()
		  WHERE id = ? AND version = ?`,
		booked, sh.AvailableSeats, showID, expectedVersion)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, model.ErrConflict
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	sh.Version++
	return sh, nil
}

// releaseRetries bounds the internal compare-and-swap loop of
// ReleaseSeats.
const releaseRetries = 5

// ReleaseSeats implements ShowStore.  Unlike ReserveSeats the caller
// carries no version, so the compare-and-swap loop runs here.
func (s *MySQL) ReleaseSeats(ctx context.Context, showID uint64, labels []string) (*model.Show, error) {
	drop := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		drop[l] = struct{}{}
	}
	var lastErr error
	for attempt := 0; attempt < releaseRetries; attempt++ {
		sh, err := s.GetShow(ctx, showID)
		if err != nil {
			return nil, err
		}
		kept := make([]string, 0, len(sh.BookedSeats))
		released := uint32(0)
		for _, b := range sh.BookedSeats {
			if _, ok := drop[b]; ok {
				released++
				continue
			}
			kept = append(kept, b)
		}
		avail := sh.AvailableSeats + released
		if avail > sh.TotalSeats {
			avail = sh.TotalSeats
		}
		booked, err := json.Marshal(kept)
		if err != nil {
			return nil, err
		}
		res, err := s.db.ExecContext(ctx,
			`UPDATE shows
			    SET booked_seats = ?, available_seats = ?, version = version + 1,
			        updated_at = UTC_TIMESTAMP()
			  WHERE id = ? AND version = ?`,
			booked, avail, showID, sh.Version)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 1 {
			sh.BookedSeats = kept
			sh.AvailableSeats = avail
			sh.Version++
			return sh, nil
		}
		lastErr = model.ErrConflict
		time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
	}
	return nil, lastErr
}
