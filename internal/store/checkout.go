package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shoepalace/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrUnavailable is returned when the store cannot complete a checkout
// transaction even after retrying transient conflicts.
var ErrUnavailable = errors.New("document store unavailable")

// checkoutMaxAttempts bounds the retries of a conflicting transaction.
const checkoutMaxAttempts = 3

// Tx is the handle a checkout transaction runs against. All reads observe
// a consistent snapshot and all writes commit together or not at all.
type Tx interface {
	// GetProductForUpdate reads a product and locks its row for the
	// remainder of the transaction. Returns ErrProductNotFound if the
	// product no longer exists.
	GetProductForUpdate(ctx context.Context, productID string) (*models.Product, error)
	// SetProductStock stages a new stock value for a locked product row.
	SetProductStock(ctx context.Context, productID string, stock int) error
	// CreateOrder stages the order row and its frozen line items.
	CreateOrder(ctx context.Context, order *models.Order) error
}

// RunCheckout executes fn inside a database transaction. A non-nil error
// from fn aborts the transaction with no writes applied. Serialization
// conflicts between concurrent checkouts are retried with a fresh
// transaction, so fn must be safe to re-run; retry exhaustion and
// connectivity failures surface as ErrUnavailable.
func (s *Store) RunCheckout(ctx context.Context, fn func(tx Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < checkoutMaxAttempts; attempt++ {
		err := s.runCheckoutOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !retryableTxError(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (s *Store) runCheckoutOnce(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer tx.Rollback()

	if err := fn(&checkoutTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		if retryableTxError(err) {
			return err
		}
		// A dropped connection or timeout at commit time is transient for
		// the whole invocation, not a domain failure.
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// retryableTxError reports whether err is a transient conflict worth a
// fresh attempt (serialization failure or deadlock).
func retryableTxError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

type checkoutTx struct {
	tx *sqlx.Tx
}

func (c *checkoutTx) GetProductForUpdate(ctx context.Context, productID string) (*models.Product, error) {
	var product models.Product
	err := c.tx.GetContext(ctx, &product,
		"SELECT * FROM products WHERE id = $1 FOR UPDATE", productID)
	if err == sql.ErrNoRows {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *checkoutTx) SetProductStock(ctx context.Context, productID string, stock int) error {
	_, err := c.tx.ExecContext(ctx,
		"UPDATE products SET stock = $1, updated_at = NOW() WHERE id = $2",
		stock, productID)
	return err
}

func (c *checkoutTx) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (id, user_id, user_email, total, status, full_name, nic_number,
		                    address, phone, whatsapp, payment_method, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`

	err := c.tx.QueryRowxContext(ctx, query,
		order.ID, order.UserID, order.UserEmail, order.Total, order.Status,
		order.FullName, order.NICNumber, order.Address, order.Phone,
		order.Whatsapp, order.PaymentMethod, order.IdempotencyKey,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return err
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err := c.tx.QueryRowxContext(ctx, `
			INSERT INTO order_items (order_id, product_id, name, unit_price, quantity, size, color, image)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`,
			item.OrderID, item.ProductID, item.Name, item.UnitPrice,
			item.Quantity, item.Size, item.Color, item.Image,
		).Scan(&item.ID)
		if err != nil {
			return err
		}
	}
	return nil
}
