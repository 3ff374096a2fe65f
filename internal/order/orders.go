package order

import (
	"context"

	"github.com/olivierola/e-com-backend/internal/order/domain"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

// Order returns an order and its priced lines. Owners see their own
// orders, admins see everything, couriers see their assignments;
// everyone else gets NotFound.
func (s *Service) Order(ctx context.Context, principal domain.Principal, id domain.OrderID) (domain.Order, []domain.OrderLine, error) {
	o, err := s.store.OrderByID(ctx, id)
	if err != nil {
		return domain.Order{}, nil, err
	}
	visible := o.UserID == principal.ID ||
		principal.IsAdmin() ||
		(principal.IsDelivery() && o.DeliveryID != nil && *o.DeliveryID == principal.ID)
	if !visible {
		return domain.Order{}, nil, domain.ErrNotFound
	}
	lines, err := s.store.OrderLines(ctx, id)
	if err != nil {
		return domain.Order{}, nil, err
	}
	return o, lines, nil
}

// ListUserOrders returns the caller's orders, newest first.
func (s *Service) ListUserOrders(ctx context.Context, principal domain.Principal, page, limit int) ([]OrderSummary, int, error) {
	page, limit = normalizePage(page, limit)
	return s.store.ListUserOrders(ctx, principal.ID, page, limit)
}

// ListAllOrders is the admin's view across every customer: newest
// first, optionally narrowed by status, customer or creation window.
func (s *Service) ListAllOrders(ctx context.Context, principal domain.Principal, filter OrderFilter, page, limit int) ([]OrderSummary, int, error) {
	if !principal.IsAdmin() {
		return nil, 0, domain.ErrNotFound
	}
	if filter.Status != "" && !domain.ValidStatus(filter.Status) {
		return nil, 0, domain.ValidationError{Field: "status", Reason: "unknown status"}
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.From.After(filter.To) {
		return nil, 0, domain.ValidationError{Field: "from", Reason: "must not be after to"}
	}
	page, limit = normalizePage(page, limit)
	return s.store.ListAllOrders(ctx, filter, page, limit)
}

// ReadStock exposes the inventory ledger's validation read.
func (s *Service) ReadStock(ctx context.Context, productID domain.ProductID) (int, error) {
	return s.store.ReadStock(ctx, productID)
}
