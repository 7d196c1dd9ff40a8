package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ds124wfegd/civicportal/internal/entity"
	"github.com/ds124wfegd/civicportal/pkg/keylock"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AdmissionService decides registrations against resource capacity.
type AdmissionService interface {
	Register(ctx context.Context, req *RegisterRequest) (*entity.Registration, error)
	Cancel(ctx context.Context, registrationID string) (*CancelResult, error)
	// Promote returns the registrations it confirmed, including those
	// confirmed before an error.
	Promote(ctx context.Context, resourceID string) ([]*entity.Registration, error)
	ListRegistrations(ctx context.Context, resourceID string) ([]*entity.Registration, error)
	Capacity(ctx context.Context, resourceID string) (*entity.CapacitySnapshot, error)
}

// BookingService decides venue bookings by interval overlap.
type BookingService interface {
	RequestBooking(ctx context.Context, req *BookingRequest) (*entity.VenueBooking, error)
	ListBookings(ctx context.Context, venue string, date entity.Date) ([]*entity.VenueBooking, error)
}

type CatalogService interface {
	GetResource(ctx context.Context, id string) (*entity.Resource, error)
	ListResources(ctx context.Context) ([]*entity.Resource, error)
	GetVenue(ctx context.Context, name string) (*entity.Venue, error)
	ListVenues(ctx context.Context) ([]*entity.Venue, error)
	Seed(ctx context.Context, resources []entity.Resource, venues []entity.Venue) error
}

type RegisterRequest struct {
	ResourceID string
	PartySize  int
	Contact    entity.Contact
}

type BookingRequest struct {
	Venue         string
	Date          entity.Date
	StartTime     entity.ClockTime
	DurationHours float64
	Requester     string
}

type CancelResult struct {
	Registration *entity.Registration   `json:"registration"`
	Promoted     []*entity.Registration `json:"promoted"`
}

func resourceKey(resourceID string) string {
	return "resource:" + resourceID
}

func venueKey(venue string, date entity.Date) string {
	return "venue:" + venue + ":" + date.String()
}

// acquire maps lock timeouts and backend failures to ErrBusy. Caller
// cancellation is passed through untouched.
func acquire(ctx context.Context, locker keylock.Locker, key string) (func(), error) {
	unlock, err := locker.Lock(ctx, key)
	if err == nil {
		return unlock, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	return nil, fmt.Errorf("lock %s: %w: %w", key, entity.ErrBusy, err)
}

func spanError(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
