package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"shoepalace/internal/auth"
	"shoepalace/internal/models"
	"shoepalace/internal/store"
	"shoepalace/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CheckoutStore is the transactional slice of the document store the
// engine needs. *store.Store satisfies it; tests use an in-memory fake.
type CheckoutStore interface {
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	RunCheckout(ctx context.Context, fn func(tx store.Tx) error) error
}

// CartClearer clears a user's cart after a successful checkout. The call
// is best-effort and deliberately outside the order transaction.
type CartClearer interface {
	ClearCart(ctx context.Context, userID string) error
}

// OrderPlacedPublisher announces committed orders to the broker.
type OrderPlacedPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
}

// ShippingForm carries the delivery and payment details collected at
// checkout. All fields except Whatsapp are required.
type ShippingForm struct {
	FullName      string `json:"full_name" binding:"required"`
	NICNumber     string `json:"nic_number" binding:"required"`
	Address       string `json:"address" binding:"required"`
	Phone         string `json:"phone" binding:"required"`
	Whatsapp      string `json:"whatsapp"`
	PaymentMethod string `json:"payment_method" binding:"required"`
}

// CheckoutEngine atomically turns a cart snapshot into an order: stock
// sufficiency is validated and decremented and the order created in a
// single transaction, or nothing is written at all.
type CheckoutEngine struct {
	store     CheckoutStore
	carts     CartClearer
	publisher OrderPlacedPublisher
	logger    *zap.Logger
}

// NewCheckoutEngine creates a new checkout engine
func NewCheckoutEngine(store CheckoutStore, carts CartClearer, publisher OrderPlacedPublisher) *CheckoutEngine {
	return &CheckoutEngine{
		store:     store,
		carts:     carts,
		publisher: publisher,
		logger:    util.NamedLogger("checkout"),
	}
}

// PlaceOrder validates the cart snapshot and shipping form, then runs the
// checkout transaction. Unit prices are re-read from the product records
// inside the transaction, so the denormalized cart prices are display
// copies only. idempotencyKey may be empty; when a previous order carries
// the same key it is returned unchanged with no writes.
func (e *CheckoutEngine) PlaceOrder(ctx context.Context, actor auth.Identity, lines []models.CartLine, form ShippingForm, idempotencyKey string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutEngine.PlaceOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CheckoutLatency.Observe(time.Since(start).Seconds())
	}()

	if err := validateCheckout(actor, lines, form); err != nil {
		util.CheckoutFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	if idempotencyKey != "" {
		existing, err := e.store.GetOrderByIdempotencyKey(ctx, idempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			e.logger.Info("Duplicate checkout request",
				zap.String("idempotency_key", idempotencyKey),
				zap.String("order_id", existing.ID))
			return existing, nil
		}
	}

	orderID := uuid.New().String()
	var order *models.Order

	err := e.store.RunCheckout(ctx, func(tx store.Tx) error {
		placed, err := buildOrder(ctx, tx, orderID, actor, lines, form, idempotencyKey)
		if err != nil {
			return err
		}
		order = placed
		return tx.CreateOrder(ctx, order)
	})
	if err != nil {
		return nil, e.mapCheckoutError(err)
	}

	util.OrdersPlacedTotal.Inc()
	for _, item := range order.Items {
		util.StockDecrementedTotal.Add(float64(item.Quantity))
	}
	e.logger.Info("Order placed",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.String("total", order.Total.String()))

	// The cart is a display projection; a failed clear leaves stale
	// entries that any re-order revalidates against live stock.
	if err := e.carts.ClearCart(ctx, actor.UserID); err != nil {
		e.logger.Warn("Failed to clear cart after checkout",
			zap.String("user_id", actor.UserID),
			zap.Error(err))
	}

	if err := e.publisher.PublishOrderPlaced(ctx, placedEvent(order)); err != nil {
		e.logger.Error("Failed to publish OrderPlaced event",
			zap.String("order_id", order.ID),
			zap.Error(err))
	}

	return order, nil
}

// buildOrder runs the read-check-stage phase against the transaction
// handle. It is re-entered from scratch when the store retries a
// conflicting transaction.
func buildOrder(ctx context.Context, tx store.Tx, orderID string, actor auth.Identity, lines []models.CartLine, form ShippingForm, idempotencyKey string) (*models.Order, error) {
	// Lines for the same product are checked against their combined
	// quantity so a split-size order cannot slip past the stock check.
	requested := make(map[string]int, len(lines))
	productOrder := make([]string, 0, len(lines))
	for _, line := range lines {
		if _, seen := requested[line.ProductID]; !seen {
			productOrder = append(productOrder, line.ProductID)
		}
		requested[line.ProductID] += line.Quantity
	}

	products := make(map[string]*models.Product, len(productOrder))
	for _, productID := range productOrder {
		product, err := tx.GetProductForUpdate(ctx, productID)
		if errors.Is(err, store.ErrProductNotFound) {
			return nil, &ProductUnavailableError{ProductID: productID, Name: lineName(lines, productID)}
		}
		if err != nil {
			return nil, err
		}
		if product.Stock < requested[productID] {
			return nil, &InsufficientStockError{
				ProductID: product.ID,
				Name:      product.Name,
				Requested: requested[productID],
				Available: product.Stock,
			}
		}
		products[productID] = product
	}

	items := make([]models.OrderItem, 0, len(lines))
	total := decimal.Zero
	for _, line := range lines {
		product := products[line.ProductID]
		items = append(items, models.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  line.Quantity,
			Size:      line.Size,
			Color:     line.Color,
			Image:     line.Image,
		})
		total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	for _, productID := range productOrder {
		product := products[productID]
		if err := tx.SetProductStock(ctx, productID, product.Stock-requested[productID]); err != nil {
			return nil, err
		}
	}

	var key *string
	if idempotencyKey != "" {
		key = &idempotencyKey
	}

	return &models.Order{
		ID:             orderID,
		UserID:         actor.UserID,
		UserEmail:      actor.Email,
		Total:          total,
		Status:         models.OrderStatusPending,
		FullName:       form.FullName,
		NICNumber:      form.NICNumber,
		Address:        form.Address,
		Phone:          form.Phone,
		Whatsapp:       form.Whatsapp,
		PaymentMethod:  form.PaymentMethod,
		IdempotencyKey: key,
		Items:          items,
	}, nil
}

func (e *CheckoutEngine) mapCheckoutError(err error) error {
	switch {
	case errors.Is(err, store.ErrUnavailable):
		util.CheckoutFailedTotal.WithLabelValues("store_unavailable").Inc()
		return ErrStoreUnavailable
	default:
		var unavailable *ProductUnavailableError
		var insufficient *InsufficientStockError
		if errors.As(err, &unavailable) {
			util.CheckoutFailedTotal.WithLabelValues("product_unavailable").Inc()
		} else if errors.As(err, &insufficient) {
			util.CheckoutFailedTotal.WithLabelValues("insufficient_stock").Inc()
		} else {
			util.CheckoutFailedTotal.WithLabelValues("store_error").Inc()
		}
		return err
	}
}

func validateCheckout(actor auth.Identity, lines []models.CartLine, form ShippingForm) error {
	if actor.UserID == "" {
		return &ValidationError{Reason: "missing user identity"}
	}
	if len(lines) == 0 {
		return &ValidationError{Reason: "cart is empty"}
	}
	for _, line := range lines {
		if line.ProductID == "" {
			return &ValidationError{Reason: "cart line has no product reference"}
		}
		if line.Quantity < 1 {
			return &ValidationError{Reason: "cart line quantity must be at least 1"}
		}
		if strings.TrimSpace(line.Size) == "" || strings.TrimSpace(line.Color) == "" {
			return &ValidationError{Reason: "cart line is missing a chosen size or color"}
		}
	}
	if strings.TrimSpace(form.FullName) == "" {
		return &ValidationError{Reason: "full name is required"}
	}
	if strings.TrimSpace(form.NICNumber) == "" {
		return &ValidationError{Reason: "NIC number is required"}
	}
	if strings.TrimSpace(form.Address) == "" {
		return &ValidationError{Reason: "address is required"}
	}
	if strings.TrimSpace(form.Phone) == "" {
		return &ValidationError{Reason: "phone number is required"}
	}
	if !models.ValidPaymentMethod(form.PaymentMethod) {
		return &ValidationError{Reason: "unsupported payment method"}
	}
	return nil
}

func lineName(lines []models.CartLine, productID string) string {
	for _, line := range lines {
		if line.ProductID == productID {
			return line.Name
		}
	}
	return ""
}

func placedEvent(order *models.Order) *models.OrderPlacedEvent {
	items := make([]models.OrderLineData, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, models.OrderLineData{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Size:      item.Size,
			Color:     item.Color,
		})
	}
	return &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: time.Now(),
		},
		OrderID:   order.ID,
		UserID:    order.UserID,
		UserEmail: order.UserEmail,
		Total:     order.Total,
		Items:     items,
	}
}
