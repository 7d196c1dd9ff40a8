package repository

import (
	"context"
	"database/sql"

	"github.com/ds124wfegd/civicportal/internal/database"
	"github.com/ds124wfegd/civicportal/internal/entity"
)

type bookingRepository struct {
	db *sql.DB
}

func NewBookingRepository(db *sql.DB) database.BookingRepository {
	return &bookingRepository{db: db}
}

func (r *bookingRepository) AppendBooking(ctx context.Context, booking *entity.VenueBooking) error {
	query := `
		INSERT INTO venue_bookings (
			id, venue, booking_date, start_minute, duration_hours,
			requester, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		booking.ID,
		booking.Venue,
		booking.Date,
		booking.StartTime,
		booking.DurationHours,
		booking.Requester,
		booking.Status,
		booking.CreatedAt,
	)
	if err != nil {
		return storeErr("append booking", err)
	}
	return nil
}

func (r *bookingRepository) QueryByVenueAndDate(ctx context.Context, venue string, date entity.Date) ([]*entity.VenueBooking, error) {
	query := `
		SELECT id, venue, booking_date, start_minute, duration_hours, requester, status, created_at
		FROM venue_bookings
		WHERE venue = $1 AND booking_date = $2
		ORDER BY seq
	`

	rows, err := r.db.QueryContext(ctx, query, venue, date)
	if err != nil {
		return nil, storeErr("query bookings", err)
	}
	defer rows.Close()

	var bookings []*entity.VenueBooking
	for rows.Next() {
		var b entity.VenueBooking
		err := rows.Scan(
			&b.ID,
			&b.Venue,
			&b.Date,
			&b.StartTime,
			&b.DurationHours,
			&b.Requester,
			&b.Status,
			&b.CreatedAt,
		)
		if err != nil {
			return nil, storeErr("scan booking", err)
		}
		bookings = append(bookings, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate bookings", err)
	}

	return bookings, nil
}
