package service

import (
	"context"

	"github.com/ds124wfegd/civicportal/internal/database"
	"github.com/ds124wfegd/civicportal/internal/entity"
	"github.com/sirupsen/logrus"
)

// Ledger derives capacity usage from stored registrations on every call.
// It never caches counts.
type Ledger struct {
	registrations database.RegistrationRepository
	log           logrus.FieldLogger
}

func NewLedger(registrations database.RegistrationRepository, log logrus.FieldLogger) *Ledger {
	return &Ledger{registrations: registrations, log: log}
}

// ConfirmedUsage sums party sizes of confirmed registrations for the resource.
func (l *Ledger) ConfirmedUsage(ctx context.Context, resourceID string) (int, error) {
	regs, err := l.registrations.QueryByResource(ctx, resourceID)
	if err != nil {
		return 0, err
	}
	return entity.ConfirmedSeats(regs), nil
}

func (l *Ledger) RemainingCapacity(ctx context.Context, resource *entity.Resource) (int, error) {
	used, err := l.ConfirmedUsage(ctx, resource.ID)
	if err != nil {
		return 0, err
	}
	return l.remaining(resource, used), nil
}

func (l *Ledger) Snapshot(ctx context.Context, resource *entity.Resource) (*entity.CapacitySnapshot, error) {
	regs, err := l.registrations.QueryByResource(ctx, resource.ID)
	if err != nil {
		return nil, err
	}

	used := 0
	waitlisted := 0
	for _, r := range regs {
		switch {
		case r.IsConfirmed():
			used += r.PartySize
		case r.IsWaitlisted():
			waitlisted++
		}
	}

	return &entity.CapacitySnapshot{
		ResourceID:     resource.ID,
		Capacity:       resource.Capacity,
		ConfirmedUsage: used,
		Remaining:      l.remaining(resource, used),
		Waitlisted:     waitlisted,
	}, nil
}

// remaining floors at zero. Usage above capacity means the store was
// written outside the admission path.
func (l *Ledger) remaining(resource *entity.Resource, used int) int {
	left := resource.Capacity - used
	if left < 0 {
		l.log.WithFields(logrus.Fields{
			"resource_id":     resource.ID,
			"capacity":        resource.Capacity,
			"confirmed_usage": used,
		}).Error("Confirmed usage exceeds capacity")
		return 0
	}
	return left
}
