package database

import (
	"context"
	"time"

	"github.com/ds124wfegd/civicportal/internal/entity"
)

// RegistrationRepository owns registrations. Writes are only issued while
// the caller holds the resource key lock.
type RegistrationRepository interface {
	AppendRegistration(ctx context.Context, registration *entity.Registration) error
	// QueryByResource returns registrations in insertion order.
	QueryByResource(ctx context.Context, resourceID string) ([]*entity.Registration, error)
	RegistrationByID(ctx context.Context, id string) (*entity.Registration, error)
	UpdateRegistrationStatus(ctx context.Context, id string, status entity.RegistrationStatus, updatedAt time.Time) error
}

// BookingRepository owns venue bookings. Rows are never updated after insert.
type BookingRepository interface {
	AppendBooking(ctx context.Context, booking *entity.VenueBooking) error
	// QueryByVenueAndDate returns bookings in insertion order.
	QueryByVenueAndDate(ctx context.Context, venue string, date entity.Date) ([]*entity.VenueBooking, error)
}

type CatalogRepository interface {
	GetResource(ctx context.Context, id string) (*entity.Resource, error)
	ListResources(ctx context.Context) ([]*entity.Resource, error)
	UpsertResource(ctx context.Context, resource *entity.Resource) error

	GetVenue(ctx context.Context, name string) (*entity.Venue, error)
	ListVenues(ctx context.Context) ([]*entity.Venue, error)
	UpsertVenue(ctx context.Context, venue *entity.Venue) error
}

// Repositories groups one backend's implementations.
type Repositories struct {
	Registrations RegistrationRepository
	Bookings      BookingRepository
	Catalog       CatalogRepository
}
