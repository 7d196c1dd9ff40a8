package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ds124wfegd/civicportal/internal/database"
	"github.com/ds124wfegd/civicportal/internal/entity"
	"github.com/ds124wfegd/civicportal/pkg/keylock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const DefaultMaxPartySize = 5

type AdmissionConfig struct {
	MaxPartySize int
	// AutoPromote fills freed seats from the waitlist when a confirmed
	// registration is cancelled.
	AutoPromote bool
}

type admissionService struct {
	catalog       CatalogService
	registrations database.RegistrationRepository
	ledger        *Ledger
	locker        keylock.Locker
	publisher     *DecisionPublisher
	cfg           AdmissionConfig
	log           logrus.FieldLogger
	tracer        trace.Tracer
	now           func() time.Time
}

func NewAdmissionService(
	catalog CatalogService,
	registrations database.RegistrationRepository,
	locker keylock.Locker,
	publisher *DecisionPublisher,
	cfg AdmissionConfig,
	log logrus.FieldLogger,
	tracer trace.Tracer,
) AdmissionService {
	if cfg.MaxPartySize <= 0 {
		cfg.MaxPartySize = DefaultMaxPartySize
	}
	return &admissionService{
		catalog:       catalog,
		registrations: registrations,
		ledger:        NewLedger(registrations, log),
		locker:        locker,
		publisher:     publisher,
		cfg:           cfg,
		log:           log,
		tracer:        tracer,
		now:           time.Now,
	}
}

func (s *admissionService) Register(ctx context.Context, req *RegisterRequest) (*entity.Registration, error) {
	ctx, span := s.tracer.Start(ctx, "admission.register", trace.WithAttributes(
		attribute.String("resource.id", req.ResourceID),
		attribute.Int("party.size", req.PartySize),
	))
	defer span.End()

	resource, err := s.openResource(ctx, req.ResourceID)
	if err != nil {
		return nil, spanError(span, err)
	}
	if err := s.validatePartySize(resource, req.PartySize); err != nil {
		return nil, spanError(span, err)
	}

	reg, err := s.decide(ctx, resource, req)
	if err != nil {
		return nil, spanError(span, err)
	}
	span.SetAttributes(attribute.String("registration.status", string(reg.Status)))

	s.log.WithFields(logrus.Fields{
		"resource_id":     reg.ResourceID,
		"registration_id": reg.ID,
		"party_size":      reg.PartySize,
		"status":          reg.Status,
	}).Info("Registration decided")

	s.publisher.RegistrationDecided(ctx, reg)
	return reg, nil
}

// decide runs the read-decide-append sequence under the resource lock.
func (s *admissionService) decide(ctx context.Context, resource *entity.Resource, req *RegisterRequest) (*entity.Registration, error) {
	unlock, err := acquire(ctx, s.locker, resourceKey(resource.ID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	used, err := s.ledger.ConfirmedUsage(ctx, resource.ID)
	if err != nil {
		return nil, fmt.Errorf("read confirmed usage: %w", err)
	}

	status := entity.RegistrationStatusWaitlisted
	if used+req.PartySize <= resource.Capacity {
		status = entity.RegistrationStatusConfirmed
	}

	now := s.now().UTC()
	reg := &entity.Registration{
		ID:         uuid.NewString(),
		ResourceID: resource.ID,
		PartySize:  req.PartySize,
		Contact:    req.Contact,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.registrations.AppendRegistration(ctx, reg); err != nil {
		return nil, fmt.Errorf("append registration: %w", err)
	}
	return reg, nil
}

func (s *admissionService) Cancel(ctx context.Context, registrationID string) (*CancelResult, error) {
	ctx, span := s.tracer.Start(ctx, "admission.cancel", trace.WithAttributes(
		attribute.String("registration.id", registrationID),
	))
	defer span.End()

	existing, err := s.registrations.RegistrationByID(ctx, registrationID)
	if err != nil {
		return nil, spanError(span, err)
	}

	result, err := s.cancelLocked(ctx, existing.ResourceID, registrationID)
	if err != nil {
		return nil, spanError(span, err)
	}

	s.log.WithFields(logrus.Fields{
		"resource_id":     result.Registration.ResourceID,
		"registration_id": registrationID,
		"promoted":        len(result.Promoted),
	}).Info("Registration cancelled")

	s.publisher.RegistrationCancelled(ctx, result.Registration)
	s.publisher.RegistrationsPromoted(ctx, result.Promoted)
	return result, nil
}

func (s *admissionService) cancelLocked(ctx context.Context, resourceID, registrationID string) (*CancelResult, error) {
	unlock, err := acquire(ctx, s.locker, resourceKey(resourceID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	// re-read under the lock; status may have moved since the lookup
	reg, err := s.registrations.RegistrationByID(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if reg.Status == entity.RegistrationStatusCancelled {
		return nil, fmt.Errorf("registration %s: %w", registrationID, entity.ErrAlreadyCancelled)
	}

	wasConfirmed := reg.IsConfirmed()
	now := s.now().UTC()
	if err := s.registrations.UpdateRegistrationStatus(ctx, reg.ID, entity.RegistrationStatusCancelled, now); err != nil {
		return nil, fmt.Errorf("cancel registration: %w", err)
	}
	reg.Status = entity.RegistrationStatusCancelled
	reg.UpdatedAt = now

	result := &CancelResult{Registration: reg, Promoted: []*entity.Registration{}}
	if !wasConfirmed || !s.cfg.AutoPromote {
		return result, nil
	}

	resource, err := s.catalog.GetResource(ctx, resourceID)
	if err == nil {
		var promoted []*entity.Registration
		promoted, err = s.promoteLocked(ctx, resource)
		// registrations confirmed before a failure stay confirmed
		result.Promoted = append(result.Promoted, promoted...)
	}
	if err != nil {
		// the cancellation is committed; the promotion sweep picks up the rest
		s.log.WithError(err).WithFields(logrus.Fields{
			"resource_id": resourceID,
			"promoted":    len(result.Promoted),
		}).Error("Promotion after cancel failed")
	}
	return result, nil
}

func (s *admissionService) Promote(ctx context.Context, resourceID string) ([]*entity.Registration, error) {
	ctx, span := s.tracer.Start(ctx, "admission.promote", trace.WithAttributes(
		attribute.String("resource.id", resourceID),
	))
	defer span.End()

	resource, err := s.catalog.GetResource(ctx, resourceID)
	if err != nil {
		return nil, spanError(span, err)
	}

	unlock, err := acquire(ctx, s.locker, resourceKey(resourceID))
	if err != nil {
		return nil, spanError(span, err)
	}
	promoted, err := s.promoteLocked(ctx, resource)
	unlock()

	span.SetAttributes(attribute.Int("promoted.count", len(promoted)))
	if len(promoted) > 0 {
		s.log.WithFields(logrus.Fields{
			"resource_id": resourceID,
			"promoted":    len(promoted),
		}).Info("Waitlist promoted")
		s.publisher.RegistrationsPromoted(ctx, promoted)
	}
	if err != nil {
		return promoted, spanError(span, err)
	}
	return promoted, nil
}

// promoteLocked confirms waitlisted registrations oldest first, skipping
// parties larger than the seats left. Caller holds the resource lock.
func (s *admissionService) promoteLocked(ctx context.Context, resource *entity.Resource) ([]*entity.Registration, error) {
	regs, err := s.registrations.QueryByResource(ctx, resource.ID)
	if err != nil {
		return nil, fmt.Errorf("query registrations: %w", err)
	}

	free := resource.Capacity - entity.ConfirmedSeats(regs)
	promoted := []*entity.Registration{}
	if free <= 0 {
		return promoted, nil
	}

	waitlist := make([]*entity.Registration, 0, len(regs))
	for _, r := range regs {
		if r.IsWaitlisted() {
			waitlist = append(waitlist, r)
		}
	}
	// stable: equal timestamps keep store order
	sort.SliceStable(waitlist, func(i, j int) bool {
		return waitlist[i].CreatedAt.Before(waitlist[j].CreatedAt)
	})

	now := s.now().UTC()
	for _, r := range waitlist {
		if free == 0 {
			break
		}
		if r.PartySize > free {
			continue
		}
		if err := s.registrations.UpdateRegistrationStatus(ctx, r.ID, entity.RegistrationStatusConfirmed, now); err != nil {
			return promoted, fmt.Errorf("promote registration %s: %w", r.ID, err)
		}
		r.Status = entity.RegistrationStatusConfirmed
		r.UpdatedAt = now
		free -= r.PartySize
		promoted = append(promoted, r)
	}
	return promoted, nil
}

func (s *admissionService) ListRegistrations(ctx context.Context, resourceID string) ([]*entity.Registration, error) {
	if _, err := s.catalog.GetResource(ctx, resourceID); err != nil {
		return nil, err
	}
	return s.registrations.QueryByResource(ctx, resourceID)
}

func (s *admissionService) Capacity(ctx context.Context, resourceID string) (*entity.CapacitySnapshot, error) {
	resource, err := s.catalog.GetResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	return s.ledger.Snapshot(ctx, resource)
}

func (s *admissionService) openResource(ctx context.Context, resourceID string) (*entity.Resource, error) {
	resource, err := s.catalog.GetResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if resource.Closed {
		return nil, fmt.Errorf("resource %s is closed for registration: %w", resourceID, entity.ErrInvalidResource)
	}
	return resource, nil
}

func (s *admissionService) validatePartySize(resource *entity.Resource, partySize int) error {
	if partySize < 1 || partySize > s.cfg.MaxPartySize {
		return fmt.Errorf("party size %d outside 1..%d: %w", partySize, s.cfg.MaxPartySize, entity.ErrInvalidPartySize)
	}
	if resource.IsCourse() && partySize != 1 {
		return fmt.Errorf("course registrations are individual, got party size %d: %w", partySize, entity.ErrInvalidPartySize)
	}
	return nil
}
