package order

import (
	"context"
	"errors"

	"github.com/olivierola/e-com-backend/internal/notify"
	"github.com/olivierola/e-com-backend/internal/order/domain"
	"github.com/olivierola/e-com-backend/pkg/contracts"
)

// deliveryOrder loads an order on behalf of a courier. Any mismatch,
// wrong role, unassigned order or a different courier, reads as absent
// so unrelated actors cannot probe for order existence.
func (s *Service) deliveryOrder(ctx context.Context, principal domain.Principal, id domain.OrderID) (domain.Order, error) {
	if !principal.IsDelivery() {
		return domain.Order{}, domain.ErrNotFound
	}
	o, err := s.store.OrderByID(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if o.DeliveryID == nil || *o.DeliveryID != principal.ID {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

// UpdateStatus advances an assigned order one hop along the delivery
// chain. Anything else fails with the current status and the single
// allowed next one.
func (s *Service) UpdateStatus(ctx context.Context, principal domain.Principal, id domain.OrderID, target domain.OrderStatus) (domain.OrderStatus, error) {
	if !domain.ValidStatus(target) {
		return "", domain.ValidationError{Field: "status", Reason: "unknown status"}
	}
	o, err := s.deliveryOrder(ctx, principal, id)
	if err != nil {
		return "", err
	}
	if !domain.CanTransition(o.Status, target) {
		return "", domain.InvalidTransitionError{
			Current:     o.Status,
			Requested:   target,
			AllowedNext: domain.NextDeliveryStatus(o.Status),
		}
	}
	ok, err := s.store.UpdateOrderStatus(ctx, id, o.Status, target)
	if err != nil {
		return "", err
	}
	if !ok {
		// Lost a race with a concurrent transition; the caller may retry
		// against the fresh status.
		return "", domain.TransientError{Err: errors.New("order status changed concurrently")}
	}

	s.emit(ctx, notify.NewEvent(contracts.EventOrderStatusChanged, id, o.UserID, map[string]any{
		"status": string(target),
	}))
	return target, nil
}

// CompleteDelivery marks an in-transit order delivered and emits a
// best-effort customer notification. A notify failure never rolls the
// transition back.
func (s *Service) CompleteDelivery(ctx context.Context, principal domain.Principal, id domain.OrderID) (domain.OrderStatus, error) {
	o, err := s.deliveryOrder(ctx, principal, id)
	if err != nil {
		return "", err
	}
	if o.Status != domain.OrderStatusInTransit {
		return "", domain.InvalidTransitionError{
			Current:     o.Status,
			Requested:   domain.OrderStatusDelivered,
			AllowedNext: domain.NextDeliveryStatus(o.Status),
		}
	}
	ok, err := s.store.UpdateOrderStatus(ctx, id, domain.OrderStatusInTransit, domain.OrderStatusDelivered)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.TransientError{Err: errors.New("order status changed concurrently")}
	}

	s.emit(ctx, notify.NewEvent(contracts.EventOrderDelivered, id, o.UserID, map[string]any{
		"status": string(domain.OrderStatusDelivered),
	}))
	return domain.OrderStatusDelivered, nil
}

// AssignDelivery attaches a courier to a pending order and moves it to
// processing. Admin only.
func (s *Service) AssignDelivery(ctx context.Context, principal domain.Principal, id domain.OrderID, courier domain.UserID) error {
	if !principal.IsAdmin() {
		return domain.ErrNotFound
	}
	o, err := s.store.OrderByID(ctx, id)
	if err != nil {
		return err
	}
	if o.Status != domain.OrderStatusPending {
		return domain.InvalidTransitionError{
			Current:     o.Status,
			Requested:   domain.OrderStatusProcessing,
			AllowedNext: domain.NextDeliveryStatus(o.Status),
		}
	}
	ok, err := s.store.AssignDelivery(ctx, id, courier)
	if err != nil {
		return err
	}
	if !ok {
		return domain.TransientError{Err: errors.New("order status changed concurrently")}
	}

	s.emit(ctx, notify.NewEvent(contracts.EventOrderAssigned, id, o.UserID, map[string]any{
		"delivery_id": int64(courier),
	}))
	return nil
}

// Cancel terminates an order that has not left the warehouse. Available
// to the order's owner and to admins, never to couriers.
func (s *Service) Cancel(ctx context.Context, principal domain.Principal, id domain.OrderID) error {
	o, err := s.store.OrderByID(ctx, id)
	if err != nil {
		return err
	}
	if !principal.IsAdmin() && o.UserID != principal.ID {
		return domain.ErrNotFound
	}
	if !domain.Cancellable(o.Status) {
		return domain.InvalidTransitionError{
			Current:     o.Status,
			Requested:   domain.OrderStatusCancelled,
			AllowedNext: domain.NextDeliveryStatus(o.Status),
		}
	}
	ok, err := s.store.UpdateOrderStatus(ctx, id, o.Status, domain.OrderStatusCancelled)
	if err != nil {
		return err
	}
	if !ok {
		return domain.TransientError{Err: errors.New("order status changed concurrently")}
	}

	s.emit(ctx, notify.NewEvent(contracts.EventOrderCancelled, id, o.UserID, nil))
	return nil
}

// ListDeliveryOrders returns the courier's worklist. Without an explicit
// status filter it shows the orders still moving through delivery.
func (s *Service) ListDeliveryOrders(ctx context.Context, principal domain.Principal, status domain.OrderStatus, page, limit int) ([]OrderSummary, int, error) {
	if !principal.IsDelivery() {
		return nil, 0, domain.ErrNotFound
	}
	statuses := []domain.OrderStatus{
		domain.OrderStatusProcessing,
		domain.OrderStatusPickedUp,
		domain.OrderStatusInTransit,
	}
	if status != "" {
		if !domain.ValidStatus(status) {
			return nil, 0, domain.ValidationError{Field: "status", Reason: "unknown status"}
		}
		statuses = []domain.OrderStatus{status}
	}
	page, limit = normalizePage(page, limit)
	return s.store.ListDeliveryOrders(ctx, principal.ID, statuses, page, limit)
}
