package store

import (
	"context"
	"database/sql"

	"shoepalace/internal/models"
)

// GetOrderByID retrieves an order with its line items
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := s.db.SelectContext(ctx, &order.Items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", id); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByIdempotencyKey retrieves an order with its line items by
// idempotency key, returning (nil, nil) when no order carries the key
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE idempotency_key = $1", key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.db.SelectContext(ctx, &order.Items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", order.ID); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders retrieves every order, newest first (admin view)
func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders ORDER BY created_at DESC")
	return orders, err
}

// ListOrdersByUser retrieves a user's orders, newest first
func (s *Store) ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return orders, err
}

// SetOrderStatus updates an order's status and, when event is non-nil,
// inserts the outbox event in the same transaction so the notification
// cannot be lost after a committed status change.
func (s *Store) SetOrderStatus(ctx context.Context, orderID, status string, event *models.OutboxEvent) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOrderNotFound
	}

	if event != nil {
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO outbox_events (event_id, order_id, user_id, status, message)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at`,
			event.EventID, event.OrderID, event.UserID, event.Status, event.Message,
		).Scan(&event.ID, &event.CreatedAt)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// FetchPendingEvents returns undelivered outbox events in insertion order
func (s *Store) FetchPendingEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	var events []models.OutboxEvent
	err := s.db.SelectContext(ctx, &events,
		"SELECT * FROM outbox_events WHERE sent_at IS NULL ORDER BY id LIMIT $1", limit)
	return events, err
}

// MarkEventSent records delivery of an outbox event
func (s *Store) MarkEventSent(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE outbox_events SET sent_at = NOW() WHERE id = $1", id)
	return err
}

// CreateNotification inserts a notification for a user
func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	return s.db.QueryRowxContext(ctx, `
		INSERT INTO notifications (id, user_id, order_id, message, status, read)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		n.ID, n.UserID, n.OrderID, n.Message, n.Status, n.Read,
	).Scan(&n.CreatedAt)
}

// ListNotifications retrieves a user's notifications, newest first
func (s *Store) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	var notifications []models.Notification
	err := s.db.SelectContext(ctx, &notifications,
		"SELECT * FROM notifications WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return notifications, err
}

// MarkNotificationRead flags one of the user's notifications as read
func (s *Store) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2",
		notificationID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// DeleteNotificationsByUser removes all of a user's notifications
func (s *Store) DeleteNotificationsByUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM notifications WHERE user_id = $1", userID)
	return err
}
