package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"shoepalace/internal/auth"
	"shoepalace/internal/models"
	"shoepalace/internal/store"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProduct(id, name string, price int64, stock int) *models.Product {
	return &models.Product{
		ID:       id,
		Name:     name,
		Price:    decimal.NewFromInt(price),
		Category: models.CategoryBespoke,
		Stock:    stock,
		Sizes:    pq.StringArray{"40", "41"},
		Colors:   pq.StringArray{"black"},
		Images:   pq.StringArray{"https://cdn.example.com/shoe.jpg"},
	}
}

func testLine(productID string, quantity int) models.CartLine {
	return models.CartLine{
		ID:        "line-" + productID,
		ProductID: productID,
		Name:      "some shoe",
		Price:     decimal.NewFromInt(1),
		Size:      "41",
		Color:     "black",
		Quantity:  quantity,
	}
}

func testForm() ShippingForm {
	return ShippingForm{
		FullName:      "Nimal Perera",
		NICNumber:     "911042754V",
		Address:       "12 Galle Road, Colombo",
		Phone:         "0771234567",
		PaymentMethod: models.PaymentCashOnDelivery,
	}
}

func customer() auth.Identity {
	return auth.Identity{UserID: "user-1", Email: "nimal@example.com", Role: auth.RoleCustomer}
}

func newTestEngine(fs *fakeStore) (*CheckoutEngine, *fakeCarts, *fakePublisher) {
	carts := newFakeCarts()
	pub := &fakePublisher{}
	return NewCheckoutEngine(fs, carts, pub), carts, pub
}

func TestPlaceOrderComputesTotalAndDecrementsStock(t *testing.T) {
	fs := newFakeStore(
		testProduct("p1", "Bespoke Oxford", 1000, 5),
		testProduct("p2", "Medical Walker", 2500, 3),
	)
	engine, carts, pub := newTestEngine(fs)

	lines := []models.CartLine{testLine("p1", 2), testLine("p2", 1)}
	order, err := engine.PlaceOrder(context.Background(), customer(), lines, testForm(), "")
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, "user-1", order.UserID)
	assert.True(t, order.Total.Equal(decimal.NewFromInt(4500)), "total was %s", order.Total)
	require.Len(t, order.Items, 2)
	assert.True(t, order.Items[0].UnitPrice.Equal(decimal.NewFromInt(1000)))

	assert.Equal(t, 3, fs.stockOf("p1"))
	assert.Equal(t, 2, fs.stockOf("p2"))
	assert.Equal(t, []string{"user-1"}, carts.cleared)
	require.Len(t, pub.placed, 1)
	assert.Equal(t, order.ID, pub.placed[0].OrderID)
}

func TestPlaceOrderUsesLivePriceNotCartSnapshot(t *testing.T) {
	fs := newFakeStore(testProduct("p1", "Bespoke Oxford", 1000, 5))
	engine, _, _ := newTestEngine(fs)

	line := testLine("p1", 1)
	line.Price = decimal.NewFromInt(1) // stale display copy

	order, err := engine.PlaceOrder(context.Background(), customer(), []models.CartLine{line}, testForm(), "")
	require.NoError(t, err)
	assert.True(t, order.Total.Equal(decimal.NewFromInt(1000)))
	assert.True(t, order.Items[0].UnitPrice.Equal(decimal.NewFromInt(1000)))
}

func TestPlaceOrderInsufficientStockWritesNothing(t *testing.T) {
	fs := newFakeStore(testProduct("p1", "Bespoke Oxford", 1000, 1))
	engine, carts, pub := newTestEngine(fs)

	_, err := engine.PlaceOrder(context.Background(), customer(), []models.CartLine{testLine("p1", 2)}, testForm(), "")

	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "p1", insufficient.ProductID)
	assert.Equal(t, 2, insufficient.Requested)
	assert.Equal(t, 1, insufficient.Available)

	assert.Equal(t, 1, fs.stockOf("p1"), "stock must not move on a failed checkout")
	assert.Equal(t, 0, fs.orderCount())
	assert.Empty(t, carts.cleared)
	assert.Empty(t, pub.placed)
}

func TestPlaceOrderProductRemovedMidSession(t *testing.T) {
	fs := newFakeStore(testProduct("p1", "Bespoke Oxford", 1000, 5))
	engine, _, _ := newTestEngine(fs)

	lines := []models.CartLine{testLine("p1", 1), testLine("gone", 1)}
	_, err := engine.PlaceOrder(context.Background(), customer(), lines, testForm(), "")

	var unavailable *ProductUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "gone", unavailable.ProductID)

	assert.Equal(t, 5, fs.stockOf("p1"))
	assert.Equal(t, 0, fs.orderCount())
}

func TestPlaceOrderAggregatesLinesOfSameProduct(t *testing.T) {
	fs := newFakeStore(testProduct("p1", "Bespoke Oxford", 1000, 3))
	engine, _, _ := newTestEngine(fs)

	// Two lines of the same shoe in different sizes. Combined they exceed
	// stock even though each line alone would fit.
	a := testLine("p1", 2)
	a.ID, a.Size = "line-a", "40"
	b := testLine("p1", 2)
	b.ID, b.Size = "line-b", "41"

	_, err := engine.PlaceOrder(context.Background(), customer(), []models.CartLine{a, b}, testForm(), "")

	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 4, insufficient.Requested)
	assert.Equal(t, 3, insufficient.Available)
	assert.Equal(t, 3, fs.stockOf("p1"))

	// With enough stock both lines go through as separate frozen items.
	fs2 := newFakeStore(testProduct("p1", "Bespoke Oxford", 1000, 4))
	engine2, _, _ := newTestEngine(fs2)
	order, err := engine2.PlaceOrder(context.Background(), customer(), []models.CartLine{a, b}, testForm(), "")
	require.NoError(t, err)
	assert.Len(t, order.Items, 2)
	assert.Equal(t, 0, fs2.stockOf("p1"))
}

func TestPlaceOrderValidation(t *testing.T) {
	fs := newFakeStore(testProduct("p1", "Bespoke Oxford", 1000, 5))
	engine, _, _ := newTestEngine(fs)
	ctx := context.Background()

	cases := []struct {
		name  string
		actor auth.Identity
		lines []models.CartLine
		mut   func(*ShippingForm)
	}{
		{"empty cart", customer(), nil, nil},
		{"anonymous caller", auth.Identity{}, []models.CartLine{testLine("p1", 1)}, nil},
		{"zero quantity", customer(), []models.CartLine{testLine("p1", 0)}, nil},
		{"no size chosen", customer(), []models.CartLine{{ID: "l", ProductID: "p1", Color: "black", Quantity: 1}}, nil},
		{"missing name", customer(), []models.CartLine{testLine("p1", 1)}, func(f *ShippingForm) { f.FullName = " " }},
		{"missing phone", customer(), []models.CartLine{testLine("p1", 1)}, func(f *ShippingForm) { f.Phone = "" }},
		{"bad payment method", customer(), []models.CartLine{testLine("p1", 1)}, func(f *ShippingForm) { f.PaymentMethod = "crypto" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			form := testForm()
			if tc.mut != nil {
				tc.mut(&form)
			}
			_, err := engine.PlaceOrder(ctx, tc.actor, tc.lines, form, "")
			var validation *ValidationError
			assert.ErrorAs(t, err, &validation)
			assert.Equal(t, 5, fs.stockOf("p1"))
			assert.Equal(t, 0, fs.orderCount())
		})
	}
}

func TestPlaceOrderLastUnitGoesToOneBuyer(t *testing.T) {
	fs := newFakeStore(testProduct("p1", "Bespoke Oxford", 1000, 1))
	engine, _, _ := newTestEngine(fs)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			actor := customer()
			actor.UserID = actor.UserID + string(rune('a'+n))
			_, err := engine.PlaceOrder(context.Background(), actor, []models.CartLine{testLine("p1", 1)}, testForm(), "")
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var wins, losses int
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		losses++
		var insufficient *InsufficientStockError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, 1, insufficient.Requested)
		assert.Equal(t, 0, insufficient.Available)
	}

	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)
	assert.Equal(t, 0, fs.stockOf("p1"))
	assert.Equal(t, 1, fs.orderCount())
}

func TestPlaceOrderNeverOversells(t *testing.T) {
	const stock = 5
	const buyers = 20

	fs := newFakeStore(testProduct("p1", "Bespoke Oxford", 1000, stock))
	engine, _, _ := newTestEngine(fs)

	var wg sync.WaitGroup
	results := make(chan error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			actor := customer()
			actor.UserID = actor.UserID + string(rune('a'+n))
			_, err := engine.PlaceOrder(context.Background(), actor, []models.CartLine{testLine("p1", 1)}, testForm(), "")
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var wins int
	for err := range results {
		if err == nil {
			wins++
		}
	}

	assert.Equal(t, stock, wins)
	assert.Equal(t, 0, fs.stockOf("p1"))
	assert.Equal(t, stock, fs.orderCount())
}

func TestPlaceOrderIdempotencyKey(t *testing.T) {
	fs := newFakeStore(testProduct("p1", "Bespoke Oxford", 1000, 5))
	engine, _, _ := newTestEngine(fs)
	ctx := context.Background()

	lines := []models.CartLine{testLine("p1", 1)}
	first, err := engine.PlaceOrder(ctx, customer(), lines, testForm(), "retry-abc")
	require.NoError(t, err)

	second, err := engine.PlaceOrder(ctx, customer(), lines, testForm(), "retry-abc")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, len(first.Items), len(second.Items), "replay carries the full line snapshot")
	assert.Equal(t, 1, fs.orderCount())
	assert.Equal(t, 4, fs.stockOf("p1"), "stock decremented once")
}

func TestPlaceOrderSucceedsWhenCartClearFails(t *testing.T) {
	fs := newFakeStore(testProduct("p1", "Bespoke Oxford", 1000, 5))
	carts := newFakeCarts()
	carts.clearErr = errors.New("redis down")
	pub := &fakePublisher{}
	engine := NewCheckoutEngine(fs, carts, pub)

	order, err := engine.PlaceOrder(context.Background(), customer(), []models.CartLine{testLine("p1", 1)}, testForm(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, 4, fs.stockOf("p1"))
}

func TestPlaceOrderSucceedsWhenPublishFails(t *testing.T) {
	fs := newFakeStore(testProduct("p1", "Bespoke Oxford", 1000, 5))
	carts := newFakeCarts()
	pub := &fakePublisher{publishErr: errors.New("broker down")}
	engine := NewCheckoutEngine(fs, carts, pub)

	order, err := engine.PlaceOrder(context.Background(), customer(), []models.CartLine{testLine("p1", 1)}, testForm(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
}

func TestPlaceOrderStoreUnavailable(t *testing.T) {
	fs := newFakeStore(testProduct("p1", "Bespoke Oxford", 1000, 5))
	fs.checkoutErr = store.ErrUnavailable
	engine, _, _ := newTestEngine(fs)

	_, err := engine.PlaceOrder(context.Background(), customer(), []models.CartLine{testLine("p1", 1)}, testForm(), "")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
