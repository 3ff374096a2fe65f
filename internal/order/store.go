package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/olivierola/e-com-backend/internal/order/domain"
)

// CheckoutLine is one cart line joined with the product fields the
// coordinator prices and validates against. Implementations must return
// these rows with the product rows locked until the transaction ends.
type CheckoutLine struct {
	ProductID       domain.ProductID
	Title           string
	Quantity        int
	Price           decimal.Decimal
	DiscountPercent int
	Stock           int
}

// OrderFilter narrows the admin order listing. Zero values mean
// "no constraint".
type OrderFilter struct {
	Status domain.OrderStatus
	UserID domain.UserID
	From   time.Time
	To     time.Time
}

// OrderSummary is the list-view projection of an order.
type OrderSummary struct {
	ID          domain.OrderID
	UserID      domain.UserID
	TotalAmount decimal.Decimal
	Status      domain.OrderStatus
	ItemCount   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CheckoutTx is the coordinator's atomic unit. Either every mutation
// issued through it commits, or none do.
type CheckoutTx interface {
	CheckoutLines(ctx context.Context, userID domain.UserID) ([]CheckoutLine, error)
	InsertOrder(ctx context.Context, o *domain.Order) (domain.OrderID, error)
	InsertOrderLines(ctx context.Context, lines []domain.OrderLine) error
	// DecrementStock fails, never clamps, when stock would go negative.
	DecrementStock(ctx context.Context, productID domain.ProductID, qty int) error
	ClearCart(ctx context.Context, userID domain.UserID) error
	BindIdempotencyKey(ctx context.Context, key string, orderID domain.OrderID) error
}

// Store is the explicit storage handle the order services run against.
type Store interface {
	InCheckoutTx(ctx context.Context, fn func(tx CheckoutTx) error) error

	OrderByID(ctx context.Context, id domain.OrderID) (domain.Order, error)
	OrderLines(ctx context.Context, id domain.OrderID) ([]domain.OrderLine, error)
	ListUserOrders(ctx context.Context, userID domain.UserID, page, limit int) ([]OrderSummary, int, error)
	ListDeliveryOrders(ctx context.Context, deliveryID domain.UserID, statuses []domain.OrderStatus, page, limit int) ([]OrderSummary, int, error)
	ListAllOrders(ctx context.Context, filter OrderFilter, page, limit int) ([]OrderSummary, int, error)

	// UpdateOrderStatus is a compare-and-set: it moves the order from
	// "from" to "to" and reports false when the current status no longer
	// matches.
	UpdateOrderStatus(ctx context.Context, id domain.OrderID, from, to domain.OrderStatus) (bool, error)
	// AssignDelivery attaches a courier to a pending order and moves it
	// to processing; false when the order is no longer pending.
	AssignDelivery(ctx context.Context, id domain.OrderID, courier domain.UserID) (bool, error)

	OrderIDByIdempotencyKey(ctx context.Context, key string) (domain.OrderID, error)

	// ReadStock is the ledger's validation read; it never locks.
	ReadStock(ctx context.Context, productID domain.ProductID) (int, error)
}
