package service

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when the acting identity lacks the role an
// operation requires. Nothing is read or written before this check.
var ErrUnauthorized = errors.New("unauthorized")

// ErrStoreUnavailable is returned when the backing store could not commit
// even after its own retries. The whole operation may be retried by the
// caller; every other checkout error is terminal for that invocation.
var ErrStoreUnavailable = errors.New("store temporarily unavailable")

// ValidationError reports invalid input rejected before any store call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// ProductUnavailableError reports that a referenced product no longer
// exists in the catalog. Discovered inside the checkout transaction.
type ProductUnavailableError struct {
	ProductID string
	Name      string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %q (%s) is no longer available in the store", e.Name, e.ProductID)
}

// InsufficientStockError reports that a product's current stock cannot
// cover the requested quantity. Discovered inside the checkout
// transaction against the value read there, never a cached one.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("product %q (%s) is out of stock or does not have enough quantity: requested %d, available %d",
		e.Name, e.ProductID, e.Requested, e.Available)
}
