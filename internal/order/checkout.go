package order

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/olivierola/e-com-backend/internal/notify"
	"github.com/olivierola/e-com-backend/internal/order/domain"
	"github.com/olivierola/e-com-backend/pkg/contracts"
	"github.com/olivierola/e-com-backend/pkg/logging"
)

// Service implements the order core: the checkout coordinator, the
// delivery status machine and order reads. It runs entirely against the
// Store handle passed in; it never touches process-wide state.
type Service struct {
	store    Store
	notifier notify.Notifier
	service  string
}

func NewService(store Store, notifier notify.Notifier) *Service {
	if notifier == nil {
		notifier = &notify.LogNotifier{Service: "order-service"}
	}
	return &Service{store: store, notifier: notifier, service: "order-service"}
}

type CheckoutInput struct {
	DeliveryAddress string
	IdempotencyKey  string
}

type CheckoutResult struct {
	OrderID     domain.OrderID
	TotalAmount decimal.Decimal
	Status      domain.OrderStatus
	Replayed    bool
}

// Checkout converts the caller's cart into a durable order. The order
// insert, line inserts, stock decrements and cart clear are one
// indivisible unit; on any failure nothing survives.
func (s *Service) Checkout(ctx context.Context, principal domain.Principal, in CheckoutInput) (CheckoutResult, error) {
	if strings.TrimSpace(in.DeliveryAddress) == "" {
		return CheckoutResult{}, domain.ValidationError{Field: "deliveryAddress", Reason: "required"}
	}

	if in.IdempotencyKey != "" {
		if res, ok, err := s.replayCheckout(ctx, in.IdempotencyKey); err != nil {
			return CheckoutResult{}, err
		} else if ok {
			return res, nil
		}
	}

	var res CheckoutResult
	err := s.store.InCheckoutTx(ctx, func(tx CheckoutTx) error {
		lines, err := tx.CheckoutLines(ctx, principal.ID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return domain.ErrEmptyCart
		}

		var shortages []domain.StockShortage
		total := decimal.Zero
		orderLines := make([]domain.OrderLine, 0, len(lines))
		for _, ln := range lines {
			if ln.Quantity > ln.Stock {
				shortages = append(shortages, domain.StockShortage{
					ProductID: ln.ProductID,
					Title:     ln.Title,
					Requested: ln.Quantity,
					Available: ln.Stock,
				})
				continue
			}
			unit := domain.DiscountedUnitPrice(ln.Price, ln.DiscountPercent)
			total = total.Add(unit.Mul(decimal.NewFromInt(int64(ln.Quantity))))
			orderLines = append(orderLines, domain.OrderLine{
				ProductID: ln.ProductID,
				Title:     ln.Title,
				Quantity:  ln.Quantity,
				UnitPrice: unit,
			})
		}
		// Report every offending line at once, not just the first.
		if len(shortages) > 0 {
			return domain.InsufficientStockError{Shortages: shortages}
		}

		o := &domain.Order{
			UserID:          principal.ID,
			TotalAmount:     total,
			Status:          domain.OrderStatusPending,
			DeliveryAddress: in.DeliveryAddress,
		}
		orderID, err := tx.InsertOrder(ctx, o)
		if err != nil {
			return err
		}
		for i := range orderLines {
			orderLines[i].OrderID = orderID
		}
		if err := tx.InsertOrderLines(ctx, orderLines); err != nil {
			return err
		}
		for _, ln := range lines {
			if err := tx.DecrementStock(ctx, ln.ProductID, ln.Quantity); err != nil {
				return err
			}
		}
		if err := tx.ClearCart(ctx, principal.ID); err != nil {
			return err
		}
		if in.IdempotencyKey != "" {
			if err := tx.BindIdempotencyKey(ctx, in.IdempotencyKey, orderID); err != nil {
				return err
			}
		}

		res = CheckoutResult{OrderID: orderID, TotalAmount: total, Status: domain.OrderStatusPending}
		return nil
	})
	if err != nil {
		return CheckoutResult{}, err
	}

	s.emit(ctx, notify.NewEvent(contracts.EventOrderCreated, res.OrderID, principal.ID, map[string]any{
		"total_amount": res.TotalAmount.StringFixed(2),
	}))
	return res, nil
}

// replayCheckout resolves a previously used idempotency key to the
// order it created.
func (s *Service) replayCheckout(ctx context.Context, key string) (CheckoutResult, bool, error) {
	orderID, err := s.store.OrderIDByIdempotencyKey(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return CheckoutResult{}, false, nil
	}
	if err != nil {
		return CheckoutResult{}, false, err
	}
	o, err := s.store.OrderByID(ctx, orderID)
	if err != nil {
		return CheckoutResult{}, false, err
	}
	return CheckoutResult{OrderID: o.ID, TotalAmount: o.TotalAmount, Status: o.Status, Replayed: true}, true, nil
}

// emit sends a notification without ever failing the caller.
func (s *Service) emit(ctx context.Context, evt notify.Event) {
	if err := s.notifier.Notify(ctx, evt); err != nil {
		logging.Log(logging.Fields{
			Service: s.service,
			OrderID: int64(evt.OrderID),
			EventID: evt.EventID,
			Step:    evt.Type,
			Status:  "notify_failed",
			Message: err.Error(),
		})
	}
}
