package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound covers both unknown resources and resources the caller is
// not allowed to see. The two cases are deliberately indistinguishable.
var ErrNotFound = errors.New("not found")

// ErrEmptyCart rejects a checkout with nothing in the cart.
var ErrEmptyCart = errors.New("cart is empty")

type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StockShortage describes one under-stocked checkout line.
type StockShortage struct {
	ProductID ProductID `json:"product_id"`
	Title     string    `json:"title"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// InsufficientStockError reports every under-stocked line of a failed
// checkout, not just the first one found.
type InsufficientStockError struct {
	Shortages []StockShortage
}

func (e InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %d product(s)", len(e.Shortages))
}

// InvalidTransitionError rejects a status change that is not the single
// allowed next hop for the order's current status.
type InvalidTransitionError struct {
	Current     OrderStatus
	Requested   OrderStatus
	AllowedNext OrderStatus
}

func (e InvalidTransitionError) Error() string {
	if e.AllowedNext == "" {
		return fmt.Sprintf("invalid transition from %q to %q: %q is terminal", e.Current, e.Requested, e.Current)
	}
	return fmt.Sprintf("invalid transition from %q to %q: only %q is allowed", e.Current, e.Requested, e.AllowedNext)
}

// TransientError marks a storage-level conflict (lock wait, serialization
// failure). The whole operation is safe to retry.
type TransientError struct {
	Err error
}

func (e TransientError) Error() string {
	return "transient storage conflict: " + e.Err.Error()
}

func (e TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err (or anything it wraps) is retryable.
func IsTransient(err error) bool {
	var te TransientError
	return errors.As(err, &te)
}
