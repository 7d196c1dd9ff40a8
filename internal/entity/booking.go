package entity

import (
	"time"
)

type BookingStatus string

const (
	// BookingStatusPending is part of the vocabulary only; decisions are final at creation.
	BookingStatusPending               BookingStatus = "pending"
	BookingStatusProvisionallyApproved BookingStatus = "provisionally_approved"
	BookingStatusRejected              BookingStatus = "rejected"
)

type Venue struct {
	Name        string `json:"name" db:"name" mapstructure:"name"`
	Description string `json:"description" db:"description" mapstructure:"description"`
}

type VenueBooking struct {
	ID            string        `json:"id" db:"id"`
	Venue         string        `json:"venue" db:"venue"`
	Date          Date          `json:"date" db:"date"`
	StartTime     ClockTime     `json:"startTime" db:"start_minute"`
	DurationHours float64       `json:"durationHours" db:"duration_hours"`
	Requester     string        `json:"requester" db:"requester"`
	Status        BookingStatus `json:"status" db:"status"`
	CreatedAt     time.Time     `json:"createdAt" db:"created_at"`
}

func (b *VenueBooking) IsApproved() bool {
	return b.Status == BookingStatusProvisionallyApproved
}

func (b *VenueBooking) Interval() Interval {
	return NewInterval(b.StartTime, b.DurationHours)
}

// Interval is a half-open span [Start, End) in minutes since midnight of the
// booking date. End may pass 1440 for bookings running over midnight.
type Interval struct {
	Start float64
	End   float64
}

func NewInterval(start ClockTime, durationHours float64) Interval {
	s := float64(start.Minutes())
	return Interval{Start: s, End: s + durationHours*60}
}

// Overlaps reports whether the two half-open intervals share any instant.
// Touching intervals do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start < other.End && other.Start < i.End
}
