// Package memory keeps registrations, bookings and the catalog in process memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ds124wfegd/civicportal/internal/database"
	"github.com/ds124wfegd/civicportal/internal/entity"
)

type bookingKey struct {
	venue string
	date  string
}

type Store struct {
	mu sync.RWMutex

	resources map[string]*entity.Resource
	venues    map[string]*entity.Venue

	registrations     map[string]*entity.Registration
	registrationOrder map[string][]string // resourceID -> ids in insertion order

	bookings map[bookingKey][]*entity.VenueBooking
}

func NewStore() *Store {
	return &Store{
		resources:         make(map[string]*entity.Resource),
		venues:            make(map[string]*entity.Venue),
		registrations:     make(map[string]*entity.Registration),
		registrationOrder: make(map[string][]string),
		bookings:          make(map[bookingKey][]*entity.VenueBooking),
	}
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() database.Repositories {
	return database.Repositories{
		Registrations: s,
		Bookings:      s,
		Catalog:       s,
	}
}

func (s *Store) AppendRegistration(ctx context.Context, registration *entity.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.registrations[registration.ID]; exists {
		return fmt.Errorf("registration %s already stored", registration.ID)
	}

	stored := *registration
	s.registrations[stored.ID] = &stored
	s.registrationOrder[stored.ResourceID] = append(s.registrationOrder[stored.ResourceID], stored.ID)
	return nil
}

func (s *Store) QueryByResource(ctx context.Context, resourceID string) ([]*entity.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.registrationOrder[resourceID]
	result := make([]*entity.Registration, 0, len(ids))
	for _, id := range ids {
		r := *s.registrations[id]
		result = append(result, &r)
	}
	return result, nil
}

func (s *Store) RegistrationByID(ctx context.Context, id string) (*entity.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.registrations[id]
	if !ok {
		return nil, entity.ErrInvalidRegistration
	}
	out := *r
	return &out, nil
}

func (s *Store) UpdateRegistrationStatus(ctx context.Context, id string, status entity.RegistrationStatus, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.registrations[id]
	if !ok {
		return entity.ErrInvalidRegistration
	}
	r.Status = status
	r.UpdatedAt = updatedAt
	return nil
}

func (s *Store) AppendBooking(ctx context.Context, booking *entity.VenueBooking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := bookingKey{venue: booking.Venue, date: booking.Date.String()}
	stored := *booking
	s.bookings[key] = append(s.bookings[key], &stored)
	return nil
}

func (s *Store) QueryByVenueAndDate(ctx context.Context, venue string, date entity.Date) ([]*entity.VenueBooking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.bookings[bookingKey{venue: venue, date: date.String()}]
	result := make([]*entity.VenueBooking, 0, len(stored))
	for _, b := range stored {
		out := *b
		result = append(result, &out)
	}
	return result, nil
}

func (s *Store) GetResource(ctx context.Context, id string) (*entity.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.resources[id]
	if !ok {
		return nil, entity.ErrInvalidResource
	}
	out := *r
	return &out, nil
}

func (s *Store) ListResources(ctx context.Context) ([]*entity.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*entity.Resource, 0, len(s.resources))
	for _, r := range s.resources {
		out := *r
		result = append(result, &out)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].ScheduledAt.Equal(result[j].ScheduledAt) {
			return result[i].ScheduledAt.Before(result[j].ScheduledAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (s *Store) UpsertResource(ctx context.Context, resource *entity.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *resource
	s.resources[stored.ID] = &stored
	return nil
}

func (s *Store) GetVenue(ctx context.Context, name string) (*entity.Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.venues[name]
	if !ok {
		return nil, entity.ErrInvalidVenue
	}
	out := *v
	return &out, nil
}

func (s *Store) ListVenues(ctx context.Context) ([]*entity.Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*entity.Venue, 0, len(s.venues))
	for _, v := range s.venues {
		out := *v
		result = append(result, &out)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *Store) UpsertVenue(ctx context.Context, venue *entity.Venue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *venue
	s.venues[stored.Name] = &stored
	return nil
}
