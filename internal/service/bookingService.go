package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ds124wfegd/civicportal/internal/database"
	"github.com/ds124wfegd/civicportal/internal/entity"
	"github.com/ds124wfegd/civicportal/pkg/keylock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const minutesPerDay = 24 * 60

type bookingService struct {
	catalog   CatalogService
	bookings  database.BookingRepository
	locker    keylock.Locker
	publisher *DecisionPublisher
	log       logrus.FieldLogger
	tracer    trace.Tracer
	now       func() time.Time
}

func NewBookingService(
	catalog CatalogService,
	bookings database.BookingRepository,
	locker keylock.Locker,
	publisher *DecisionPublisher,
	log logrus.FieldLogger,
	tracer trace.Tracer,
) BookingService {
	return &bookingService{
		catalog:   catalog,
		bookings:  bookings,
		locker:    locker,
		publisher: publisher,
		log:       log,
		tracer:    tracer,
		now:       time.Now,
	}
}

func (s *bookingService) RequestBooking(ctx context.Context, req *BookingRequest) (*entity.VenueBooking, error) {
	ctx, span := s.tracer.Start(ctx, "booking.request", trace.WithAttributes(
		attribute.String("venue", req.Venue),
		attribute.String("date", req.Date.String()),
		attribute.String("start_time", req.StartTime.String()),
		attribute.Float64("duration_hours", req.DurationHours),
	))
	defer span.End()

	if _, err := s.catalog.GetVenue(ctx, req.Venue); err != nil {
		return nil, spanError(span, err)
	}
	if err := validateInterval(req); err != nil {
		return nil, spanError(span, err)
	}

	booking, conflict, err := s.decide(ctx, req)
	if err != nil {
		return nil, spanError(span, err)
	}
	span.SetAttributes(attribute.String("booking.status", string(booking.Status)))

	entry := s.log.WithFields(logrus.Fields{
		"venue":      booking.Venue,
		"date":       booking.Date.String(),
		"booking_id": booking.ID,
		"start_time": booking.StartTime.String(),
		"status":     booking.Status,
	})
	if conflict != nil {
		entry = entry.WithField("conflicts_with", conflict.ID)
	}
	entry.Info("Booking decided")

	s.publisher.BookingDecided(ctx, booking)
	return booking, nil
}

// decide holds the venue/date lock across the read, the overlap check and
// the append. The returned conflict is the first approved booking hit.
func (s *bookingService) decide(ctx context.Context, req *BookingRequest) (*entity.VenueBooking, *entity.VenueBooking, error) {
	unlock, err := acquire(ctx, s.locker, venueKey(req.Venue, req.Date))
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	existing, err := s.bookings.QueryByVenueAndDate(ctx, req.Venue, req.Date)
	if err != nil {
		return nil, nil, fmt.Errorf("query bookings: %w", err)
	}

	candidate := entity.NewInterval(req.StartTime, req.DurationHours)
	conflict := firstConflict(existing, candidate)

	status := entity.BookingStatusProvisionallyApproved
	if conflict != nil {
		status = entity.BookingStatusRejected
	}

	booking := &entity.VenueBooking{
		ID:            uuid.NewString(),
		Venue:         req.Venue,
		Date:          req.Date,
		StartTime:     req.StartTime,
		DurationHours: req.DurationHours,
		Requester:     req.Requester,
		Status:        status,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.bookings.AppendBooking(ctx, booking); err != nil {
		return nil, nil, fmt.Errorf("append booking: %w", err)
	}
	return booking, conflict, nil
}

func (s *bookingService) ListBookings(ctx context.Context, venue string, date entity.Date) ([]*entity.VenueBooking, error) {
	if _, err := s.catalog.GetVenue(ctx, venue); err != nil {
		return nil, err
	}
	return s.bookings.QueryByVenueAndDate(ctx, venue, date)
}

// firstConflict ignores rejected bookings; only approved ones hold the slot.
func firstConflict(existing []*entity.VenueBooking, candidate entity.Interval) *entity.VenueBooking {
	for _, b := range existing {
		if b.IsApproved() && b.Interval().Overlaps(candidate) {
			return b
		}
	}
	return nil
}

func validateInterval(req *BookingRequest) error {
	d := req.DurationHours
	if !(d > 0) || math.IsInf(d, 0) {
		return fmt.Errorf("duration %v hours must be positive and finite: %w", d, entity.ErrInvalidInterval)
	}
	if m := req.StartTime.Minutes(); m < 0 || m >= minutesPerDay {
		return fmt.Errorf("start time %d minutes is outside the day: %w", m, entity.ErrInvalidInterval)
	}
	return nil
}
