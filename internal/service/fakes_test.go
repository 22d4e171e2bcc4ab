package service

import (
	"context"
	"sync"
	"time"

	"shoepalace/internal/models"
	"shoepalace/internal/redisclient"
	"shoepalace/internal/store"
)

// fakeStore is an in-memory stand-in for *store.Store. RunCheckout holds
// the lock for the whole callback, mirroring the row locks the real
// transaction takes, so concurrent checkouts serialize the same way.
type fakeStore struct {
	mu            sync.Mutex
	products      map[string]*models.Product
	orders        map[string]*models.Order
	notifications map[string]*models.Notification
	outbox        []models.OutboxEvent
	nextOutboxID  int64

	checkoutErr error
}

func newFakeStore(products ...*models.Product) *fakeStore {
	f := &fakeStore{
		products:      make(map[string]*models.Product),
		orders:        make(map[string]*models.Order),
		notifications: make(map[string]*models.Notification),
	}
	for _, p := range products {
		cp := *p
		f.products[p.ID] = &cp
	}
	return f
}

type fakeTx struct {
	store       *fakeStore
	stagedStock map[string]int
	stagedOrder *models.Order
}

func (f *fakeStore) RunCheckout(ctx context.Context, fn func(tx store.Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.checkoutErr != nil {
		return f.checkoutErr
	}

	tx := &fakeTx{store: f, stagedStock: make(map[string]int)}
	if err := fn(tx); err != nil {
		return err
	}

	for id, stock := range tx.stagedStock {
		f.products[id].Stock = stock
	}
	if tx.stagedOrder != nil {
		cp := *tx.stagedOrder
		f.orders[cp.ID] = &cp
	}
	return nil
}

func (t *fakeTx) GetProductForUpdate(ctx context.Context, productID string) (*models.Product, error) {
	p, ok := t.store.products[productID]
	if !ok {
		return nil, store.ErrProductNotFound
	}
	cp := *p
	if staged, ok := t.stagedStock[productID]; ok {
		cp.Stock = staged
	}
	return &cp, nil
}

func (t *fakeTx) SetProductStock(ctx context.Context, productID string, stock int) error {
	t.stagedStock[productID] = stock
	return nil
}

func (t *fakeTx) CreateOrder(ctx context.Context, order *models.Order) error {
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	t.stagedOrder = order
	return nil
}

func (f *fakeStore) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, order := range f.orders {
		if order.IdempotencyKey != nil && *order.IdempotencyKey == key {
			cp := *order
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[id]
	if !ok {
		return nil, store.ErrOrderNotFound
	}
	cp := *order
	return &cp, nil
}

func (f *fakeStore) SetOrderStatus(ctx context.Context, orderID, status string, event *models.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return store.ErrOrderNotFound
	}
	order.Status = status
	order.UpdatedAt = time.Now()
	if event != nil {
		f.nextOutboxID++
		event.ID = f.nextOutboxID
		event.CreatedAt = time.Now()
		f.outbox = append(f.outbox, *event)
	}
	return nil
}

func (f *fakeStore) ListOrders(ctx context.Context) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Order, 0, len(f.orders))
	for _, order := range f.orders {
		out = append(out, *order)
	}
	return out, nil
}

func (f *fakeStore) ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, order := range f.orders {
		if order.UserID == userID {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (f *fakeStore) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Notification
	for _, n := range f.notifications {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notifications[notificationID]
	if !ok || n.UserID != userID {
		return store.ErrNotificationNotFound
	}
	n.Read = true
	return nil
}

func (f *fakeStore) DeleteNotificationsByUser(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, n := range f.notifications {
		if n.UserID == userID {
			delete(f.notifications, id)
		}
	}
	return nil
}

func (f *fakeStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Product, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeStore) ListProductsByCategory(ctx context.Context, category string) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Product
	for _, p := range f.products {
		if p.Category == category {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, store.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) CreateProduct(ctx context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	cp := *p
	f.products[p.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[p.ID]; !ok {
		return store.ErrProductNotFound
	}
	p.UpdatedAt = time.Now()
	cp := *p
	f.products[p.ID] = &cp
	return nil
}

func (f *fakeStore) stockOf(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].Stock
}

func (f *fakeStore) orderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

// fakeCarts is an in-memory stand-in for *redisclient.Client.
type fakeCarts struct {
	mu       sync.Mutex
	lines    map[string]map[string]models.CartLine
	cleared  []string
	clearErr error
}

func newFakeCarts() *fakeCarts {
	return &fakeCarts{lines: make(map[string]map[string]models.CartLine)}
}

func (f *fakeCarts) ListCartLines(ctx context.Context, userID string) ([]models.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.CartLine, 0, len(f.lines[userID]))
	for _, line := range f.lines[userID] {
		out = append(out, line)
	}
	return out, nil
}

func (f *fakeCarts) GetCartLine(ctx context.Context, userID, lineID string) (*models.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	line, ok := f.lines[userID][lineID]
	if !ok {
		return nil, redisclient.ErrCartLineNotFound
	}
	cp := line
	return &cp, nil
}

func (f *fakeCarts) PutCartLine(ctx context.Context, userID string, line *models.CartLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lines[userID] == nil {
		f.lines[userID] = make(map[string]models.CartLine)
	}
	f.lines[userID][line.ID] = *line
	return nil
}

func (f *fakeCarts) RemoveCartLine(ctx context.Context, userID, lineID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.lines[userID][lineID]; !ok {
		return redisclient.ErrCartLineNotFound
	}
	delete(f.lines[userID], lineID)
	return nil
}

func (f *fakeCarts) ClearCart(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearErr != nil {
		return f.clearErr
	}
	delete(f.lines, userID)
	f.cleared = append(f.cleared, userID)
	return nil
}

// fakePublisher records published events.
type fakePublisher struct {
	mu            sync.Mutex
	placed        []*models.OrderPlacedEvent
	statusChanged []*models.OrderStatusChangedEvent
	publishErr    error
}

func (f *fakePublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.placed = append(f.placed, event)
	return nil
}

func (f *fakePublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.statusChanged = append(f.statusChanged, event)
	return nil
}
