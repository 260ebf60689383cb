package services

import (
	"context"
	"time"

	"github.com/stwalsh4118/parcela/internal/events"
	"github.com/stwalsh4118/parcela/internal/logger"
	"github.com/stwalsh4118/parcela/internal/models"
)

// Invalidator drops derived map state after lots change.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// notifier publishes domain events. Lot changes invalidate this process's
// map before returning; the bus carries them to other replicas and may
// deliver late or not at all.
type notifier struct {
	bus  events.Bus
	maps Invalidator
	log  *logger.Logger
}

func (n notifier) publish(ctx context.Context, subject string, ev events.Event) error {
	if n.bus == nil {
		return nil
	}
	if err := n.bus.Publish(ctx, subject, ev); err != nil {
		n.log.Warn("Failed to publish event", map[string]interface{}{
			"subject": subject,
			"error":   err.Error(),
		})
		return err
	}
	return nil
}

func (n notifier) lotChanged(ctx context.Context, lotID string, status models.LotStatus, at time.Time) {
	if n.maps != nil {
		if err := n.maps.Invalidate(ctx); err != nil {
			n.log.Error("Failed to invalidate map sources", err, map[string]interface{}{"lot_id": lotID})
		}
	}
	_ = n.publish(ctx, events.SubjectLotStatusChanged, events.Event{
		LotID:      lotID,
		Status:     string(status),
		OccurredAt: at,
	})
}

func (n notifier) reservationChanged(ctx context.Context, subject string, r models.Reservation, at time.Time) {
	_ = n.publish(ctx, subject, events.Event{
		LotID:         r.LotID,
		ReservationID: r.ID,
		Status:        string(r.Status),
		OccurredAt:    at,
	})
}
