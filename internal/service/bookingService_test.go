package service

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/ds124wfegd/civicportal/internal/entity"
	"github.com/ds124wfegd/civicportal/pkg/keylock"
	"github.com/ds124wfegd/civicportal/pkg/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func mustDate(t *testing.T, s string) entity.Date {
	t.Helper()
	d, err := entity.ParseDate(s)
	require.NoError(t, err)
	return d
}

func mustClock(t *testing.T, s string) entity.ClockTime {
	t.Helper()
	c, err := entity.ParseClockTime(s)
	require.NoError(t, err)
	return c
}

func book(t *testing.T, f *fixture, venue, date, start string, hours float64) *entity.VenueBooking {
	t.Helper()
	b, err := f.booking.RequestBooking(context.Background(), &BookingRequest{
		Venue:         venue,
		Date:          mustDate(t, date),
		StartTime:     mustClock(t, start),
		DurationHours: hours,
		Requester:     "choir",
	})
	require.NoError(t, err)
	return b
}

func TestRequestBooking_OverlapAndBoundary(t *testing.T) {
	f := newFixture(t)
	f.addVenue(t, "Hall")

	evening := book(t, f, "Hall", "2025-01-18", "18:00", 4)
	assert.Equal(t, entity.BookingStatusProvisionallyApproved, evening.Status)

	afternoon := book(t, f, "Hall", "2025-01-18", "14:00", 4)
	assert.Equal(t, entity.BookingStatusProvisionallyApproved, afternoon.Status, "ending exactly at 18:00 does not conflict")

	overlapping := book(t, f, "Hall", "2025-01-18", "17:00", 2)
	assert.Equal(t, entity.BookingStatusRejected, overlapping.Status)

	bookings, err := f.booking.ListBookings(context.Background(), "Hall", mustDate(t, "2025-01-18"))
	require.NoError(t, err)
	require.Len(t, bookings, 3)
	assert.Equal(t, entity.BookingStatusRejected, bookings[2].Status, "rejections are stored too")
}

func TestRequestBooking_RejectedBookingsHoldNothing(t *testing.T) {
	f := newFixture(t)
	f.addVenue(t, "Hall")

	book(t, f, "Hall", "2025-01-18", "10:00", 2)
	rejected := book(t, f, "Hall", "2025-01-18", "11:00", 3)
	require.Equal(t, entity.BookingStatusRejected, rejected.Status)

	// 12:00-14:00 only overlaps the rejected request
	assert.Equal(t, entity.BookingStatusProvisionallyApproved, book(t, f, "Hall", "2025-01-18", "12:00", 2).Status)
}

func TestRequestBooking_ScopedToVenueAndDate(t *testing.T) {
	f := newFixture(t)
	f.addVenue(t, "Hall")
	f.addVenue(t, "Studio")

	book(t, f, "Hall", "2025-01-18", "22:00", 4)

	assert.Equal(t, entity.BookingStatusProvisionallyApproved, book(t, f, "Studio", "2025-01-18", "22:00", 1).Status)
	assert.Equal(t, entity.BookingStatusProvisionallyApproved, book(t, f, "Hall", "2025-01-19", "00:30", 1).Status,
		"a booking running past midnight is only compared within its own date")
	assert.Equal(t, entity.BookingStatusRejected, book(t, f, "Hall", "2025-01-18", "23:30", 0.25).Status)
}

func TestRequestBooking_FractionalHours(t *testing.T) {
	f := newFixture(t)
	f.addVenue(t, "Hall")

	book(t, f, "Hall", "2025-01-18", "09:00", 1.5) // until 10:30
	assert.Equal(t, entity.BookingStatusRejected, book(t, f, "Hall", "2025-01-18", "10:29", 1).Status)
	assert.Equal(t, entity.BookingStatusProvisionallyApproved, book(t, f, "Hall", "2025-01-18", "10:30", 1).Status)
}

func TestRequestBooking_Validation(t *testing.T) {
	f := newFixture(t)
	f.addVenue(t, "Hall")

	tests := []struct {
		name  string
		venue string
		start entity.ClockTime
		hours float64
		want  error
	}{
		{"unknown venue", "Attic", 600, 1, entity.ErrInvalidVenue},
		{"unknown venue wins over bad duration", "Attic", 600, 0, entity.ErrInvalidVenue},
		{"zero duration", "Hall", 600, 0, entity.ErrInvalidInterval},
		{"negative duration", "Hall", 600, -1, entity.ErrInvalidInterval},
		{"NaN duration", "Hall", 600, math.NaN(), entity.ErrInvalidInterval},
		{"infinite duration", "Hall", 600, math.Inf(1), entity.ErrInvalidInterval},
		{"start past end of day", "Hall", 1440, 1, entity.ErrInvalidInterval},
		{"negative start", "Hall", -1, 1, entity.ErrInvalidInterval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.booking.RequestBooking(context.Background(), &BookingRequest{
				Venue:         tt.venue,
				Date:          mustDate(t, "2025-01-18"),
				StartTime:     tt.start,
				DurationHours: tt.hours,
				Requester:     "choir",
			})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	bookings, err := f.booking.ListBookings(context.Background(), "Hall", mustDate(t, "2025-01-18"))
	require.NoError(t, err)
	assert.Empty(t, bookings)
}

func TestRequestBooking_BusyWhenLockHeld(t *testing.T) {
	locker := keylock.NewLocalLocker(30 * time.Millisecond)
	f := newFixture(t, withLocker(locker))
	f.addVenue(t, "Hall")
	date := mustDate(t, "2025-01-18")

	unlock, err := locker.Lock(context.Background(), venueKey("Hall", date))
	require.NoError(t, err)
	defer unlock()

	_, err = f.booking.RequestBooking(context.Background(), &BookingRequest{
		Venue: "Hall", Date: date, StartTime: 600, DurationHours: 1, Requester: "choir",
	})
	assert.ErrorIs(t, err, entity.ErrBusy)

	// another date uses another key
	_, err = f.booking.RequestBooking(context.Background(), &BookingRequest{
		Venue: "Hall", Date: mustDate(t, "2025-01-19"), StartTime: 600, DurationHours: 1, Requester: "choir",
	})
	assert.NoError(t, err)
}

func TestRequestBooking_PublishesDecision(t *testing.T) {
	f := newFixture(t)
	f.addVenue(t, "Hall")

	b := book(t, f, "Hall", "2025-01-18", "18:00", 4)

	require.Len(t, f.queue.tasks, 1)
	task := f.queue.tasks[0]
	assert.Equal(t, queue.TaskTypeBookingDecided, task.Type)
	assert.Equal(t, b.ID, task.GetString("booking_id"))
	assert.Equal(t, "18:00", task.GetString("start_time"))
	assert.Equal(t, "provisionally_approved", task.GetString("status"))
}

func TestListBookings_UnknownVenue(t *testing.T) {
	f := newFixture(t)
	_, err := f.booking.ListBookings(context.Background(), "Attic", mustDate(t, "2025-01-18"))
	assert.ErrorIs(t, err, entity.ErrInvalidVenue)
}

func TestRequestBooking_ApprovedNeverOverlap(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		type req struct {
			start int
			hours float64
		}
		n := rapid.IntRange(1, 25).Draw(rt, "n")
		reqs := make([]req, n)
		for i := range reqs {
			reqs[i] = req{
				start: rapid.IntRange(0, 1439).Draw(rt, "start"),
				hours: float64(rapid.IntRange(1, 48).Draw(rt, "quarters")) / 4,
			}
		}

		f := newFixture(t)
		f.addVenue(t, "Hall")
		date := mustDate(t, "2025-01-18")

		var wg sync.WaitGroup
		errs := make(chan error, n)
		for _, r := range reqs {
			wg.Add(1)
			go func(r req) {
				defer wg.Done()
				_, err := f.booking.RequestBooking(context.Background(), &BookingRequest{
					Venue: "Hall", Date: date, StartTime: entity.ClockTime(r.start), DurationHours: r.hours, Requester: "x",
				})
				errs <- err
			}(r)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				rt.Fatalf("request booking: %v", err)
			}
		}

		bookings, err := f.booking.ListBookings(context.Background(), "Hall", date)
		if err != nil {
			rt.Fatalf("list: %v", err)
		}
		if len(bookings) != n {
			rt.Fatalf("stored %d bookings, want %d", len(bookings), n)
		}

		var approved []*entity.VenueBooking
		for i, b := range bookings {
			if b.IsApproved() {
				for _, a := range approved {
					if a.Interval().Overlaps(b.Interval()) {
						rt.Fatalf("approved bookings %s and %s overlap", a.ID, b.ID)
					}
				}
				approved = append(approved, b)
				continue
			}
			// a rejection must be explained by an earlier approval
			if firstConflict(bookings[:i], b.Interval()) == nil {
				rt.Fatalf("booking %s rejected without conflict", b.ID)
			}
		}
	})
}
