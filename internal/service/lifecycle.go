package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shoepalace/internal/auth"
	"shoepalace/internal/models"
	"shoepalace/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LifecycleStore is the order and notification slice of the document
// store. *store.Store satisfies it.
type LifecycleStore interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	SetOrderStatus(ctx context.Context, orderID, status string, event *models.OutboxEvent) error
	ListOrders(ctx context.Context) ([]models.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error)
	ListNotifications(ctx context.Context, userID string) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID string) error
	DeleteNotificationsByUser(ctx context.Context, userID string) error
}

// OrderLifecycle moves orders between statuses and serves order and
// notification queries. Status changes are admin-only; the notification
// is recorded as an outbox event in the same transaction and delivered
// at-least-once by the dispatcher.
type OrderLifecycle struct {
	store  LifecycleStore
	logger *zap.Logger
}

// NewOrderLifecycle creates a new order lifecycle manager
func NewOrderLifecycle(store LifecycleStore) *OrderLifecycle {
	return &OrderLifecycle{
		store:  store,
		logger: util.NamedLogger("lifecycle"),
	}
}

// SetStatus moves an order to newStatus. Any of the known statuses may be
// set at any time; administrators use this to correct mistakes, so
// completed and cancelled are not terminal. Setting the current status
// again succeeds and is harmless.
func (l *OrderLifecycle) SetStatus(ctx context.Context, actor auth.Identity, orderID, newStatus string) error {
	ctx, span := util.StartSpan(ctx, "OrderLifecycle.SetStatus")
	defer span.End()

	if !actor.IsAdmin() {
		return ErrUnauthorized
	}
	if !models.ValidOrderStatus(newStatus) {
		return &ValidationError{Reason: fmt.Sprintf("unknown order status %q", newStatus)}
	}

	order, err := l.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}

	var event *models.OutboxEvent
	if order.UserID != "" {
		event = &models.OutboxEvent{
			EventID: uuid.New().String(),
			OrderID: order.ID,
			UserID:  order.UserID,
			Status:  newStatus,
			Message: fmt.Sprintf("Your order %s status is now: %s.",
				models.OrderRef(order.ID), strings.ToUpper(newStatus)),
		}
	}

	if err := l.store.SetOrderStatus(ctx, orderID, newStatus, event); err != nil {
		return err
	}

	util.OrderStatusChangesTotal.WithLabelValues(newStatus).Inc()
	l.logger.Info("Order status updated",
		zap.String("order_id", orderID),
		zap.String("status", newStatus),
		zap.String("admin", actor.Email))
	return nil
}

// GetOrder returns an order to its owner or to an administrator.
func (l *OrderLifecycle) GetOrder(ctx context.Context, actor auth.Identity, orderID string) (*models.Order, error) {
	order, err := l.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}
	return order, nil
}

// ListOrders returns every order for the admin back office.
func (l *OrderLifecycle) ListOrders(ctx context.Context, actor auth.Identity) ([]models.Order, error) {
	if !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}
	return l.store.ListOrders(ctx)
}

// ListOwnOrders returns the acting user's orders.
func (l *OrderLifecycle) ListOwnOrders(ctx context.Context, actor auth.Identity) ([]models.Order, error) {
	return l.store.ListOrdersByUser(ctx, actor.UserID)
}

// ListNotifications returns the acting user's notifications.
func (l *OrderLifecycle) ListNotifications(ctx context.Context, actor auth.Identity) ([]models.Notification, error) {
	return l.store.ListNotifications(ctx, actor.UserID)
}

// MarkNotificationRead flags one of the acting user's notifications.
func (l *OrderLifecycle) MarkNotificationRead(ctx context.Context, actor auth.Identity, notificationID string) error {
	return l.store.MarkNotificationRead(ctx, actor.UserID, notificationID)
}

// ClearNotifications removes all of the acting user's notifications.
func (l *OrderLifecycle) ClearNotifications(ctx context.Context, actor auth.Identity) error {
	return l.store.DeleteNotificationsByUser(ctx, actor.UserID)
}

// NotificationFromEvent converts a dispatched outbox event into the
// notification row shown to the user.
func NotificationFromEvent(event *models.OutboxEvent) *models.Notification {
	return &models.Notification{
		ID:        uuid.New().String(),
		UserID:    event.UserID,
		OrderID:   event.OrderID,
		Message:   event.Message,
		Status:    event.Status,
		Read:      false,
		CreatedAt: time.Now(),
	}
}
