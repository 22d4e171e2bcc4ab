package worker

import (
	"context"
	"time"

	"shoepalace/internal/models"
	"shoepalace/internal/service"
	"shoepalace/internal/util"

	"go.uber.org/zap"
)

// Store is the outbox slice of the document store. *store.Store
// satisfies it.
type Store interface {
	FetchPendingEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	CreateNotification(ctx context.Context, n *models.Notification) error
	MarkEventSent(ctx context.Context, id int64) error
}

// Publisher forwards dispatched events to the broker.
type Publisher interface {
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
}

const dispatchBatchSize = 50

// OutboxDispatcher turns committed outbox events into user notifications
// and broker events. An event is marked sent only after both side
// effects succeed, so delivery is at-least-once: a crash mid-dispatch
// re-delivers on the next poll.
type OutboxDispatcher struct {
	store     Store
	publisher Publisher
	interval  time.Duration
	logger    *zap.Logger
}

// NewOutboxDispatcher creates a new outbox dispatcher
func NewOutboxDispatcher(store Store, publisher Publisher, interval time.Duration) *OutboxDispatcher {
	return &OutboxDispatcher{
		store:     store,
		publisher: publisher,
		interval:  interval,
		logger:    util.NamedLogger("outbox"),
	}
}

// Start polls the outbox until ctx is cancelled.
func (d *OutboxDispatcher) Start(ctx context.Context) error {
	d.logger.Info("Starting outbox dispatcher",
		zap.Duration("interval", d.interval))

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Outbox dispatcher stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := d.DispatchPending(ctx); err != nil {
				d.logger.Error("Outbox dispatch pass failed", zap.Error(err))
			}
		}
	}
}

// DispatchPending delivers one batch of pending events. Failures leave
// the event pending for the next pass.
func (d *OutboxDispatcher) DispatchPending(ctx context.Context) error {
	events, err := d.store.FetchPendingEvents(ctx, dispatchBatchSize)
	if err != nil {
		return err
	}

	for i := range events {
		event := &events[i]
		if err := d.dispatch(ctx, event); err != nil {
			util.OutboxDispatchFailedTotal.Inc()
			d.logger.Error("Failed to dispatch outbox event",
				zap.Int64("outbox_id", event.ID),
				zap.String("order_id", event.OrderID),
				zap.Error(err))
			continue
		}
		util.NotificationsDispatchedTotal.Inc()
	}
	return nil
}

func (d *OutboxDispatcher) dispatch(ctx context.Context, event *models.OutboxEvent) error {
	if err := d.store.CreateNotification(ctx, service.NotificationFromEvent(event)); err != nil {
		return err
	}

	statusEvent := &models.OrderStatusChangedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   event.EventID,
			EventType: models.EventTypeOrderStatusChanged,
			Timestamp: time.Now(),
		},
		OrderID: event.OrderID,
		UserID:  event.UserID,
		Status:  event.Status,
		Message: event.Message,
	}
	if err := d.publisher.PublishOrderStatusChanged(ctx, statusEvent); err != nil {
		return err
	}

	return d.store.MarkEventSent(ctx, event.ID)
}
