// Package notification turns decision messages into participant notices.
// Delivery is simulated: notices are only logged.
package notification

import (
	"context"
	"fmt"

	"github.com/ds124wfegd/civicportal/pkg/queue"
	"github.com/sirupsen/logrus"
)

type Notifier interface {
	Notify(ctx context.Context, task *queue.Task) error
}

// Notice is what a participant would receive.
type Notice struct {
	Recipient string
	Subject   string
	Body      string
}

type LogNotifier struct {
	log logrus.FieldLogger
}

func NewLogNotifier(log logrus.FieldLogger) *LogNotifier {
	return &LogNotifier{log: log.WithField("component", "notifier")}
}

func (n *LogNotifier) Notify(ctx context.Context, task *queue.Task) error {
	notice, err := Compose(task)
	if err != nil {
		return err
	}

	n.log.WithFields(logrus.Fields{
		"task_id":   task.ID,
		"task_type": task.Type,
		"recipient": notice.Recipient,
		"subject":   notice.Subject,
	}).Info(notice.Body)
	return nil
}

// Compose renders the notice for a decision. Unknown task types fail
// permanently so the queue does not retry them.
func Compose(task *queue.Task) (*Notice, error) {
	switch task.Type {
	case queue.TaskTypeRegistrationDecided:
		return &Notice{
			Recipient: recipient(task),
			Subject:   "Registration " + task.GetString("status"),
			Body: fmt.Sprintf("Your registration %s for %s (party of %d) is %s.",
				task.GetString("registration_id"), task.GetString("resource_id"),
				task.GetInt("party_size"), task.GetString("status")),
		}, nil
	case queue.TaskTypeRegistrationPromoted:
		return &Notice{
			Recipient: recipient(task),
			Subject:   "A seat opened up",
			Body: fmt.Sprintf("Your waitlisted registration %s for %s is now confirmed.",
				task.GetString("registration_id"), task.GetString("resource_id")),
		}, nil
	case queue.TaskTypeRegistrationCancelled:
		return &Notice{
			Recipient: recipient(task),
			Subject:   "Registration cancelled",
			Body: fmt.Sprintf("Registration %s for %s was cancelled.",
				task.GetString("registration_id"), task.GetString("resource_id")),
		}, nil
	case queue.TaskTypeBookingDecided:
		return &Notice{
			Recipient: task.GetString("requester"),
			Subject:   "Venue booking " + task.GetString("status"),
			Body: fmt.Sprintf("Booking %s of %s on %s at %s is %s.",
				task.GetString("booking_id"), task.GetString("venue"), task.GetString("date"),
				task.GetString("start_time"), task.GetString("status")),
		}, nil
	default:
		return nil, fmt.Errorf("unknown task type %q: %w", task.Type, queue.ErrPermanent)
	}
}

// recipient prefers email, then phone, then the contact name.
func recipient(task *queue.Task) string {
	for _, key := range []string{"contact_email", "contact_phone", "contact_name"} {
		if v := task.GetString(key); v != "" {
			return v
		}
	}
	return "unknown"
}
