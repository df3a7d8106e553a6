package booking

import (
	"context"
	"log"
	"time"
)

// SweepExpired performs one cleanup pass: pending bookings past their
// payment deadline become EXPIRED and their locks are released, then
// expired lock rows are purged.  The pass is idempotent and safe to
// run concurrently with requests and with other sweeps.  The passive
// expiry checks at read time remain the authoritative mechanism; this
// only reclaims storage and flips ledger rows eagerly.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	expired, err := s.bookings.ExpireDue(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	for _, b := range expired {
		if err := s.locks.Release(ctx, b.ShowID, b.SeatLabels(), b.UserID); err != nil {
			log.Printf("sweeper: release locks for %s: %v", b.BookingNumber, err)
		}
	}
	purged, err := s.locks.PurgeExpired(ctx)
	if err != nil {
		return len(expired), err
	}
	if len(expired) > 0 || purged > 0 {
		log.Printf("sweeper: expired %d bookings, purged %d locks", len(expired), purged)
	}
	return len(expired), nil
}

// RunSweeper runs SweepExpired on a ticker until the context is
// cancelled.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("sweeper: started (interval %s)", interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("sweeper: stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepExpired(ctx); err != nil {
				log.Printf("sweeper: pass failed: %v", err)
			}
		}
	}
}
