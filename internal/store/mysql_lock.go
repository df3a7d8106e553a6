package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/kinohaus/seat-booking/internal/model"
)

// mysqlDuplicateEntry is the MySQL error code raised when an insert
// violates a unique index.
const mysqlDuplicateEntry = 1062

func isDuplicateEntry(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func labelArgs(showID uint64, labels []string) []interface{} {
	args := make([]interface{}, 0, len(labels)+1)
	args = append(args, showID)
	for _, l := range labels {
		args = append(args, l)
	}
	return args
}

// Acquire implements LockStore.  Availability check and lock creation
// happen in one transaction: expired rows for the requested seats are
// deleted first, then all locks are inserted in a single statement.
// The UNIQUE(show_id, seat_label) index makes the insert the atomic
// arbiter between concurrent acquirers; the loser's duplicate-key
// error is translated into SeatsUnavailable naming the contended
// seats.
func (s *MySQL) Acquire(ctx context.Context, showID uint64, labels []string, holderID uint64, ttl time.Duration) ([]model.SeatLock, error) {
	now := time.Now().UTC()
	expires := now.Add(ttl)

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
	var booked []string
	for _, l := range labels {
		if sh.IsBooked(l) {
			booked = append(booked, l)
		}
	}
	if len(booked) > 0 {
		return nil, &model.SeatsUnavailableError{Seats: booked}
	}

	// Clear rows that must not block the insert below: expired locks
	// from anyone, plus the holder's own rows so a retried hold
	// refreshes the existing locks instead of colliding with them.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM seat_locks
		  WHERE show_id = ? AND seat_label IN (`+placeholders(len(labels))+`)
		    AND (expires_at <= UTC_TIMESTAMP() OR holder_id = ?)`,
		append(labelArgs(showID, labels), holderID)...); err != nil {
		return nil, err
	}

	query := `INSERT INTO seat_locks (show_id, seat_label, holder_id, lock_token, expires_at, created_at) VALUES `
	args := make([]interface{}, 0, len(labels)*6)
	locks := make([]model.SeatLock, 0, len(labels))
	for i, l := range labels {
		token, err := newLockToken()
		if err != nil {
			return nil, err
		}
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?)"
		args = append(args, showID, l, holderID, token, sqlTime(expires), sqlTime(now))
		locks = append(locks, model.SeatLock{
			ShowID:    showID,
			SeatLabel: l,
			HolderID:  holderID,
			LockToken: token,
			ExpiresAt: expires,
			CreatedAt: now,
		})
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		if isDuplicateEntry(err) {
			return nil, s.contendedSeats(ctx, showID, labels, holderID)
		}
		return nil, err
	}
	firstID, err := res.LastInsertId()
	if err == nil {
		for i := range locks {
			locks[i].ID = uint64(firstID) + uint64(i)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return locks, nil
}

// contendedSeats reports which of the requested labels hold an active
// lock owned by someone else.  Used to name the losers' seats after a
// duplicate-key failure.
func (s *MySQL) contendedSeats(ctx context.Context, showID uint64, labels []string, holderID uint64) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seat_label FROM seat_locks
		  WHERE show_id = ? AND seat_label IN (`+placeholders(len(labels))+`)
		    AND holder_id <> ? AND expires_at > UTC_TIMESTAMP()`,
		append(labelArgs(showID, labels), holderID)...)
	if err != nil {
		return err
	}
	defer rows.Close()
	var contended []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return err
		}
		contended = append(contended, l)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(contended) == 0 {
		// Raced with a writer that already released; let the caller retry.
		return model.ErrConflict
	}
	return &model.SeatsUnavailableError{Seats: contended}
}

// Release implements LockStore.  Missing rows are fine; retried
// releases and releases after expiry are no-ops.
func (s *MySQL) Release(ctx context.Context, showID uint64, labels []string, holderID uint64) error {
	if labels == nil {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM seat_locks WHERE show_id = ? AND holder_id = ?`, showID, holderID)
		return err
	}
	if len(labels) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM seat_locks
		  WHERE show_id = ? AND seat_label IN (`+placeholders(len(labels))+`) AND holder_id = ?`,
		append(labelArgs(showID, labels), holderID)...)
	return err
}

// Extend implements LockStore.  All requested locks must still be
// active and owned by the holder, otherwise nothing is extended.
func (s *MySQL) Extend(ctx context.Context, showID uint64, labels []string, holderID uint64, ttl time.Duration) ([]model.SeatLock, error) {
	if len(labels) == 0 {
		return nil, nil
	}
	expires := time.Now().UTC().Add(ttl)
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
	res, err := tx.ExecContext(ctx,
		`UPDATE seat_locks SET expires_at = ?
		  WHERE show_id = ? AND seat_label IN (`+placeholders(len(labels))+`)
		    AND holder_id = ? AND expires_at > UTC_TIMESTAMP()`,
		append(append([]interface{}{sqlTime(expires)}, labelArgs(showID, labels)...), holderID)...)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n != int64(len(labels)) {
		return nil, model.ErrNotFound
	}
	locks, err := scanLocks(tx.QueryContext(ctx,
		`SELECT id, show_id, seat_label, holder_id, lock_token, expires_at, created_at
		   FROM seat_locks
		  WHERE show_id = ? AND seat_label IN (`+placeholders(len(labels))+`) AND holder_id = ?`,
		append(labelArgs(showID, labels), holderID)...))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return locks, nil
}

func scanLocks(rows *sql.Rows, err error) ([]model.SeatLock, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.SeatLock
	for rows.Next() {
		var l model.SeatLock
		if err := rows.Scan(&l.ID, &l.ShowID, &l.SeatLabel, &l.HolderID,
			&l.LockToken, &l.ExpiresAt, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ActiveByHolder implements LockStore.
func (s *MySQL) ActiveByHolder(ctx context.Context, showID, holderID uint64) ([]model.SeatLock, error) {
	return scanLocks(s.db.QueryContext(ctx,
		`SELECT id, show_id, seat_label, holder_id, lock_token, expires_at, created_at
		   FROM seat_locks
		  WHERE show_id = ? AND holder_id = ? AND expires_at > UTC_TIMESTAMP()
		  ORDER BY seat_label`,
		showID, holderID))
}

// ActiveByShow implements LockStore.
func (s *MySQL) ActiveByShow(ctx context.Context, showID uint64) ([]model.SeatLock, error) {
	return scanLocks(s.db.QueryContext(ctx,
		`SELECT id, show_id, seat_label, holder_id, lock_token, expires_at, created_at
		   FROM seat_locks
		  WHERE show_id = ? AND expires_at > UTC_TIMESTAMP()
		  ORDER BY seat_label`,
		showID))
}

// PurgeExpired implements LockStore.
func (s *MySQL) PurgeExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM seat_locks WHERE expires_at <= UTC_TIMESTAMP()`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
