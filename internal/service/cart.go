package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"shoepalace/internal/auth"
	"shoepalace/internal/models"
	"shoepalace/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartStore holds per-user cart lines. *redisclient.Client satisfies it.
type CartStore interface {
	ListCartLines(ctx context.Context, userID string) ([]models.CartLine, error)
	GetCartLine(ctx context.Context, userID, lineID string) (*models.CartLine, error)
	PutCartLine(ctx context.Context, userID string, line *models.CartLine) error
	RemoveCartLine(ctx context.Context, userID, lineID string) error
	ClearCart(ctx context.Context, userID string) error
}

// Cart manages a user's cart lines. The cart is a projection over the
// catalog: each line copies name, price and image at add time for
// display, and checkout revalidates everything against live records.
type Cart struct {
	store    CartStore
	products CatalogStore
	logger   *zap.Logger
}

// NewCart creates a new cart service
func NewCart(store CartStore, products CatalogStore) *Cart {
	return &Cart{
		store:    store,
		products: products,
		logger:   util.NamedLogger("cart"),
	}
}

// AddLine puts a new line into the user's cart, snapshotting the
// product's current name, price and first image.
func (c *Cart) AddLine(ctx context.Context, actor auth.Identity, productID, size, color string, quantity int) (*models.CartLine, error) {
	if quantity < 1 {
		return nil, &ValidationError{Reason: "quantity must be at least 1"}
	}
	if strings.TrimSpace(size) == "" || strings.TrimSpace(color) == "" {
		return nil, &ValidationError{Reason: "a size and color must be chosen"}
	}

	product, err := c.products.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	line := &models.CartLine{
		ID:        uuid.New().String(),
		ProductID: product.ID,
		Name:      product.Name,
		Price:     product.Price,
		Size:      size,
		Color:     color,
		Quantity:  quantity,
		AddedAt:   time.Now(),
	}
	if len(product.Images) > 0 {
		line.Image = product.Images[0]
	}

	if err := c.store.PutCartLine(ctx, actor.UserID, line); err != nil {
		return nil, err
	}
	util.CartOperationsTotal.WithLabelValues("add").Inc()
	return line, nil
}

// UpdateQuantity changes the quantity of an existing line. Quantities
// below 1 are rejected; removal is a separate operation.
func (c *Cart) UpdateQuantity(ctx context.Context, actor auth.Identity, lineID string, quantity int) (*models.CartLine, error) {
	if quantity < 1 {
		return nil, &ValidationError{Reason: "quantity must be at least 1"}
	}

	line, err := c.store.GetCartLine(ctx, actor.UserID, lineID)
	if err != nil {
		return nil, err
	}
	line.Quantity = quantity

	if err := c.store.PutCartLine(ctx, actor.UserID, line); err != nil {
		return nil, err
	}
	util.CartOperationsTotal.WithLabelValues("update").Inc()
	return line, nil
}

// RemoveLine deletes one line from the user's cart.
func (c *Cart) RemoveLine(ctx context.Context, actor auth.Identity, lineID string) error {
	if err := c.store.RemoveCartLine(ctx, actor.UserID, lineID); err != nil {
		return err
	}
	util.CartOperationsTotal.WithLabelValues("remove").Inc()
	return nil
}

// Clear empties the user's cart.
func (c *Cart) Clear(ctx context.Context, actor auth.Identity) error {
	if err := c.store.ClearCart(ctx, actor.UserID); err != nil {
		return err
	}
	util.CartOperationsTotal.WithLabelValues("clear").Inc()
	return nil
}

// List returns the user's cart lines, oldest first.
func (c *Cart) List(ctx context.Context, actor auth.Identity) ([]models.CartLine, error) {
	lines, err := c.store.ListCartLines(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].AddedAt.Before(lines[j].AddedAt)
	})
	return lines, nil
}
