package worker

import (
	"context"
	"time"

	"github.com/ds124wfegd/civicportal/internal/service"
	"github.com/sirupsen/logrus"
)

// PromotionWorker periodically fills free seats from the waitlist of every
// open resource. It heals promotions a cancel could not finish.
type PromotionWorker struct {
	catalogService   service.CatalogService
	admissionService service.AdmissionService
	interval         time.Duration
	log              logrus.FieldLogger
}

func NewPromotionWorker(
	catalogService service.CatalogService,
	admissionService service.AdmissionService,
	interval time.Duration,
	log logrus.FieldLogger,
) *PromotionWorker {
	return &PromotionWorker{
		catalogService:   catalogService,
		admissionService: admissionService,
		interval:         interval,
		log:              log.WithField("worker", "promotion"),
	}
}

func (w *PromotionWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.WithField("interval", w.interval.String()).Info("Promotion worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Promotion worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep returns the number of registrations promoted across all resources.
func (w *PromotionWorker) sweep(ctx context.Context) int {
	resources, err := w.catalogService.ListResources(ctx)
	if err != nil {
		w.log.WithError(err).Error("Failed to list resources")
		return 0
	}

	promoted := 0
	failed := 0
	for _, r := range resources {
		if ctx.Err() != nil {
			w.log.Info("Sweep interrupted by context cancellation")
			return promoted
		}
		if r.Closed {
			continue
		}

		regs, err := w.admissionService.Promote(ctx, r.ID)
		promoted += len(regs)
		if err != nil {
			w.log.WithError(err).WithField("resource_id", r.ID).Warn("Promotion failed")
			failed++
			continue
		}
	}

	entry := w.log.WithFields(logrus.Fields{"promoted": promoted, "failed": failed})
	if promoted > 0 || failed > 0 {
		entry.Info("Promotion sweep completed")
	} else {
		entry.Debug("Promotion sweep completed")
	}
	return promoted
}

