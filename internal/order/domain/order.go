package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderID int64
type ProductID int64
type UserID int64

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusPickedUp   OrderStatus = "picked_up"
	OrderStatusInTransit  OrderStatus = "in_transit"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// deliveryChain is the forward-only path a courier may drive an order
// through. Each status has at most one next hop; delivered is terminal.
var deliveryChain = map[OrderStatus]OrderStatus{
	OrderStatusProcessing: OrderStatusPickedUp,
	OrderStatusPickedUp:   OrderStatusInTransit,
	OrderStatusInTransit:  OrderStatusDelivered,
}

// NextDeliveryStatus returns the single status a courier may move an
// order with the given status to, or "" when there is none.
func NextDeliveryStatus(cur OrderStatus) OrderStatus {
	return deliveryChain[cur]
}

// CanTransition reports whether a courier may move an order from cur to next.
func CanTransition(cur, next OrderStatus) bool {
	return next != "" && deliveryChain[cur] == next
}

// Cancellable reports whether an order may still be cancelled. Only
// orders that have not yet left the warehouse qualify.
func Cancellable(cur OrderStatus) bool {
	return cur == OrderStatusPending || cur == OrderStatusProcessing
}

func ValidStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusPickedUp,
		OrderStatusInTransit, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

type Order struct {
	ID              OrderID
	UserID          UserID
	TotalAmount     decimal.Decimal
	Status          OrderStatus
	DeliveryAddress string
	DeliveryID      *UserID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderLine is the priced snapshot of one cart line at commit time.
// UnitPrice is never re-derived from the live product.
type OrderLine struct {
	OrderID   OrderID
	ProductID ProductID
	Title     string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Subtotal returns UnitPrice × Quantity.
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
