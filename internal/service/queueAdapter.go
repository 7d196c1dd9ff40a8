package service

import (
	"context"
	"time"

	"github.com/ds124wfegd/civicportal/internal/entity"
	"github.com/ds124wfegd/civicportal/pkg/queue"
	"github.com/sirupsen/logrus"
)

const publishTimeout = 2 * time.Second

// TaskPublisher is the write side of queue.Queue.
type TaskPublisher interface {
	Publish(ctx context.Context, task *queue.Task) error
}

// DecisionPublisher turns decisions into queue tasks. Publishing is best
// effort: failures are logged and never reach the caller. A nil
// *DecisionPublisher or a nil queue is a no-op.
type DecisionPublisher struct {
	queue TaskPublisher
	log   logrus.FieldLogger
}

func NewDecisionPublisher(q TaskPublisher, log logrus.FieldLogger) *DecisionPublisher {
	return &DecisionPublisher{queue: q, log: log}
}

func (p *DecisionPublisher) RegistrationDecided(ctx context.Context, reg *entity.Registration) {
	p.publish(ctx, queue.NewTask(queue.TaskTypeRegistrationDecided, registrationData(reg)))
}

func (p *DecisionPublisher) RegistrationCancelled(ctx context.Context, reg *entity.Registration) {
	p.publish(ctx, queue.NewTask(queue.TaskTypeRegistrationCancelled, registrationData(reg)))
}

func (p *DecisionPublisher) RegistrationsPromoted(ctx context.Context, regs []*entity.Registration) {
	for _, reg := range regs {
		p.publish(ctx, queue.NewTask(queue.TaskTypeRegistrationPromoted, registrationData(reg)))
	}
}

func (p *DecisionPublisher) BookingDecided(ctx context.Context, b *entity.VenueBooking) {
	p.publish(ctx, queue.NewTask(queue.TaskTypeBookingDecided, map[string]interface{}{
		"booking_id":     b.ID,
		"venue":          b.Venue,
		"date":           b.Date.String(),
		"start_time":     b.StartTime.String(),
		"duration_hours": b.DurationHours,
		"requester":      b.Requester,
		"status":         string(b.Status),
	}))
}

func (p *DecisionPublisher) publish(ctx context.Context, task *queue.Task) {
	if p == nil || p.queue == nil {
		return
	}

	// the request may already be finished; the notification should still go out
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := p.queue.Publish(ctx, task); err != nil {
		p.log.WithError(err).WithFields(logrus.Fields{
			"task_id":   task.ID,
			"task_type": task.Type,
		}).Warn("Failed to publish decision")
	}
}

func registrationData(reg *entity.Registration) map[string]interface{} {
	return map[string]interface{}{
		"registration_id": reg.ID,
		"resource_id":     reg.ResourceID,
		"party_size":      reg.PartySize,
		"status":          string(reg.Status),
		"contact_name":    reg.Contact.Name,
		"contact_email":   reg.Contact.Email,
		"contact_phone":   reg.Contact.Phone,
	}
}
