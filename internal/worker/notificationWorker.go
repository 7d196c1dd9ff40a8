package worker

import (
	"context"
	"errors"

	"github.com/ds124wfegd/civicportal/internal/notification"
	"github.com/ds124wfegd/civicportal/pkg/queue"
	"github.com/sirupsen/logrus"
)

// NotificationWorker consumes decision messages and hands them to the notifier.
type NotificationWorker struct {
	queue    queue.Queue
	notifier notification.Notifier
	log      logrus.FieldLogger
}

func NewNotificationWorker(q queue.Queue, notifier notification.Notifier, log logrus.FieldLogger) *NotificationWorker {
	return &NotificationWorker{
		queue:    q,
		notifier: notifier,
		log:      log.WithField("worker", "notification"),
	}
}

// Start blocks until ctx is done or the queue transport fails.
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.log.Info("Notification worker started")

	err := w.queue.Subscribe(ctx, func(task *queue.Task) error {
		return w.notifier.Notify(ctx, task)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		w.log.WithError(err).Error("Notification worker stopped with error")
		return err
	}

	w.log.Info("Notification worker stopped")
	return nil
}
