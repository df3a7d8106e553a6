package model

import "time"

// Show statuses.  A show is never deleted while bookings reference it;
// deactivation flips the status to INACTIVE instead.
const (
	ShowStatusActive   = "ACTIVE"
	ShowStatusInactive = "INACTIVE"
)

// Show represents one scheduled screening of a movie on a specific
// screen at a specific time.  It owns the seat inventory for that
// screening: the immutable capacity, the mutable availability counter
// and the set of seat labels already sold.
//
// Fields:
//  ID                – primary key identifier.
//  MovieRef          – catalog reference of the movie being screened.
//  TheaterRef        – catalog reference of the venue.
//  ScreenNumber      – screen within the venue.
//  StartsAt          – when the show begins.
//  EndsAt            – when the show ends (derived from movie runtime).
//  TotalSeats        – capacity of the screen; immutable after creation.
//  AvailableSeats    – seats still purchasable; always within
//                      [0, TotalSeats] and equal to
//                      TotalSeats - len(BookedSeats).
//  BookedSeats       – labels of seats covered by confirmed bookings.
//  BasePriceCents    – price for a regular seat in cents.
//  PremiumPriceCents – price for a premium seat in cents.
//  Status            – ACTIVE or INACTIVE (soft deactivation).
//  Version           – optimistic-lock token bumped on every seat
//                      mutation.
//  CreatedAt         – creation timestamp.
//  UpdatedAt         – last update timestamp.
type Show struct {
	ID                uint64    `json:"id"`
	MovieRef          string    `json:"movie_ref"`
	TheaterRef        string    `json:"theater_ref"`
	ScreenNumber      uint32    `json:"screen_number"`
	StartsAt          time.Time `json:"starts_at"`
	EndsAt            time.Time `json:"ends_at"`
	TotalSeats        uint32    `json:"total_seats"`
	AvailableSeats    uint32    `json:"available_seats"`
	BookedSeats       []string  `json:"booked_seats"`
	BasePriceCents    uint32    `json:"base_price_cents"`
	PremiumPriceCents uint32    `json:"premium_price_cents"`
	Status            string    `json:"status"`
	Version           uint64    `json:"version"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// IsActive reports whether the show can still accept holds and bookings.
func (s *Show) IsActive() bool { return s.Status == ShowStatusActive }

// IsBooked reports whether the given seat label is covered by a
// confirmed booking.
func (s *Show) IsBooked(label string) bool {
	for _, b := range s.BookedSeats {
		if b == label {
			return true
		}
	}
	return false
}
