package model

import "time"

// SeatLock represents one user's temporary exclusive claim on one seat
// of one show while a purchase is in progress.  At most one active lock
// may exist per (ShowID, SeatLabel) pair at any instant.  A lock is
// active while the current time is before ExpiresAt; expired locks are
// logically dead even before physical removal and must never block a
// new hold.
//
// Fields:
//  ID        – primary key identifier.
//  ShowID    – show to which the seat belongs.
//  SeatLabel – seat being held, e.g. "A1".
//  HolderID  – user who holds the seat.
//  LockToken – opaque token returned to the client for correlation.
//  ExpiresAt – when the lock stops being active.
//  CreatedAt – when the lock was created.
type SeatLock struct {
	ID        uint64    `json:"id"`
	ShowID    uint64    `json:"show_id"`
	SeatLabel string    `json:"seat_label"`
	HolderID  uint64    `json:"holder_id"`
	LockToken string    `json:"lock_token"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Active reports whether the lock still claims its seat at the given
// instant.
func (l *SeatLock) Active(now time.Time) bool { return now.Before(l.ExpiresAt) }
