package models

import (
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Product categories
const (
	CategoryBespoke  = "bespoke"
	CategoryMedical  = "medical"
	CategoryUncommon = "uncommon"
)

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// Payment methods
const (
	PaymentCashOnDelivery = "cod"
	PaymentBankTransfer   = "bank"
)

// Product represents a shoe in the catalog. Stock is only ever decremented
// inside the checkout transaction; admins may restock or adjust it.
type Product struct {
	ID          string          `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Price       decimal.Decimal `db:"price" json:"price"`
	PriceLabel  string          `db:"price_label" json:"price_label"`
	Category    string          `db:"category" json:"category"`
	Description string          `db:"description" json:"description"`
	Tag         string          `db:"tag" json:"tag,omitempty"`
	Stock       int             `db:"stock" json:"stock"`
	Sizes       pq.StringArray  `db:"sizes" json:"sizes"`
	Colors      pq.StringArray  `db:"colors" json:"colors"`
	Images      pq.StringArray  `db:"images" json:"images"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// CartLine is one entry in a user's cart. Name, price and image are a
// display copy captured at add time; checkout re-reads the authoritative
// price from the product record.
type CartLine struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image,omitempty"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	Quantity  int             `json:"quantity"`
	AddedAt   time.Time       `json:"added_at"`
}

// Order represents a placed order. Items and total are frozen at creation;
// only Status changes afterwards.
type Order struct {
	ID             string          `db:"id" json:"id"`
	UserID         string          `db:"user_id" json:"user_id"`
	UserEmail      string          `db:"user_email" json:"user_email"`
	Total          decimal.Decimal `db:"total" json:"total"`
	Status         string          `db:"status" json:"status"`
	FullName       string          `db:"full_name" json:"full_name"`
	NICNumber      string          `db:"nic_number" json:"nic_number"`
	Address        string          `db:"address" json:"address"`
	Phone          string          `db:"phone" json:"phone"`
	Whatsapp       string          `db:"whatsapp" json:"whatsapp,omitempty"`
	PaymentMethod  string          `db:"payment_method" json:"payment_method"`
	IdempotencyKey *string         `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`

	Items []OrderItem `db:"-" json:"items,omitempty"`
}

// OrderItem is a frozen line snapshot inside an order, not a live
// product reference.
type OrderItem struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   string          `db:"order_id" json:"order_id"`
	ProductID string          `db:"product_id" json:"product_id"`
	Name      string          `db:"name" json:"name"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	Quantity  int             `db:"quantity" json:"quantity"`
	Size      string          `db:"size" json:"size"`
	Color     string          `db:"color" json:"color"`
	Image     string          `db:"image" json:"image,omitempty"`
}

// Notification is a message to a user about one of their orders.
type Notification struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	OrderID   string    `db:"order_id" json:"order_id"`
	Message   string    `db:"message" json:"message"`
	Status    string    `db:"status" json:"status"`
	Read      bool      `db:"read" json:"read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// OutboxEvent is written in the same transaction as an order status change
// and later dispatched into a Notification plus a broker event.
type OutboxEvent struct {
	ID        int64      `db:"id" json:"id"`
	EventID   string     `db:"event_id" json:"event_id"`
	OrderID   string     `db:"order_id" json:"order_id"`
	UserID    string     `db:"user_id" json:"user_id"`
	Status    string     `db:"status" json:"status"`
	Message   string     `db:"message" json:"message"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	SentAt    *time.Time `db:"sent_at" json:"sent_at,omitempty"`
}

// ValidOrderStatus reports whether s is one of the known order statuses.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// ValidCategory reports whether c is a known product category.
func ValidCategory(c string) bool {
	switch c {
	case CategoryBespoke, CategoryMedical, CategoryUncommon:
		return true
	}
	return false
}

// ValidPaymentMethod reports whether m is a supported payment method.
func ValidPaymentMethod(m string) bool {
	return m == PaymentCashOnDelivery || m == PaymentBankTransfer
}

// OrderRef returns the short order reference shown to customers,
// e.g. "#A1B2C3D4".
func OrderRef(orderID string) string {
	if orderID == "" {
		return "#UNKNOWN"
	}
	ref := orderID
	if len(ref) > 8 {
		ref = ref[:8]
	}
	return "#" + strings.ToUpper(ref)
}
