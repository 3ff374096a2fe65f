package order_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olivierola/e-com-backend/internal/order"
	"github.com/olivierola/e-com-backend/internal/order/domain"
	"github.com/olivierola/e-com-backend/internal/store/memory"
)

func courier(id int64) domain.Principal {
	return domain.Principal{ID: domain.UserID(id), Role: domain.RoleDelivery}
}

func admin(id int64) domain.Principal {
	return domain.Principal{ID: domain.UserID(id), Role: domain.RoleAdmin}
}

func seedOrder(store *memory.Store, userID domain.UserID, status domain.OrderStatus, courierID *domain.UserID) domain.OrderID {
	return store.SeedOrder(domain.Order{
		UserID:          userID,
		TotalAmount:     decimal.RequireFromString("18.00"),
		Status:          status,
		DeliveryAddress: "12 Main St",
		DeliveryID:      courierID,
	}, []domain.OrderLine{{ProductID: 1, Title: "mug", Quantity: 2, UnitPrice: decimal.RequireFromString("9.00")}})
}

func TestUpdateStatusSingleHop(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	notifier := &recordingNotifier{}
	svc := order.NewService(store, notifier)

	cid := domain.UserID(7)
	id := seedOrder(store, 1, domain.OrderStatusProcessing, &cid)

	got, err := svc.UpdateStatus(ctx, courier(7), id, domain.OrderStatusPickedUp)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPickedUp, got)

	got, err = svc.UpdateStatus(ctx, courier(7), id, domain.OrderStatusInTransit)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusInTransit, got)

	assert.Len(t, notifier.byType("order.status_changed"), 2)
}

func TestUpdateStatusRejectsSkippedHop(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := order.NewService(store, nil)

	cid := domain.UserID(7)
	id := seedOrder(store, 1, domain.OrderStatusProcessing, &cid)

	_, err := svc.UpdateStatus(ctx, courier(7), id, domain.OrderStatusDelivered)
	var terr domain.InvalidTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, domain.OrderStatusProcessing, terr.Current)
	assert.Equal(t, domain.OrderStatusDelivered, terr.Requested)
	assert.Equal(t, domain.OrderStatusPickedUp, terr.AllowedNext)

	// The failed update leaves the order where it was.
	o, err := store.OrderByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, o.Status)
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	store := memory.NewStore()
	svc := order.NewService(store, nil)

	cid := domain.UserID(7)
	id := seedOrder(store, 1, domain.OrderStatusProcessing, &cid)

	_, err := svc.UpdateStatus(context.Background(), courier(7), id, "shipped")
	var verr domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "status", verr.Field)
}

func TestUpdateStatusHidesForeignOrders(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := order.NewService(store, nil)

	cid := domain.UserID(7)
	assigned := seedOrder(store, 1, domain.OrderStatusProcessing, &cid)
	unassigned := seedOrder(store, 1, domain.OrderStatusPending, nil)

	// A different courier, the order's owner, and an unassigned order
	// all read as absent, never as forbidden.
	_, err := svc.UpdateStatus(ctx, courier(8), assigned, domain.OrderStatusPickedUp)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.UpdateStatus(ctx, customer(1), assigned, domain.OrderStatusPickedUp)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.UpdateStatus(ctx, courier(7), unassigned, domain.OrderStatusPickedUp)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCompleteDelivery(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	notifier := &recordingNotifier{}
	svc := order.NewService(store, notifier)

	cid := domain.UserID(7)
	id := seedOrder(store, 1, domain.OrderStatusInTransit, &cid)

	status, err := svc.CompleteDelivery(ctx, courier(7), id)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, status)

	delivered := notifier.byType("order.delivered")
	require.Len(t, delivered, 1)
	assert.Equal(t, domain.UserID(1), delivered[0].UserID)
}

func TestCompleteDeliveryRequiresInTransit(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := order.NewService(store, nil)

	cid := domain.UserID(7)
	id := seedOrder(store, 1, domain.OrderStatusPickedUp, &cid)

	_, err := svc.CompleteDelivery(ctx, courier(7), id)
	var terr domain.InvalidTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, domain.OrderStatusPickedUp, terr.Current)
	assert.Equal(t, domain.OrderStatusDelivered, terr.Requested)
}

func TestCompleteDeliverySurvivesNotifyFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := order.NewService(store, failingNotifier{})

	cid := domain.UserID(7)
	id := seedOrder(store, 1, domain.OrderStatusInTransit, &cid)

	status, err := svc.CompleteDelivery(ctx, courier(7), id)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, status)

	o, err := store.OrderByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, o.Status, "transition sticks even when notify fails")
}

func TestAssignDelivery(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	notifier := &recordingNotifier{}
	svc := order.NewService(store, notifier)

	id := seedOrder(store, 1, domain.OrderStatusPending, nil)

	require.NoError(t, svc.AssignDelivery(ctx, admin(99), id, 7))

	o, err := store.OrderByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, o.Status)
	require.NotNil(t, o.DeliveryID)
	assert.Equal(t, domain.UserID(7), *o.DeliveryID)
	assert.Len(t, notifier.byType("order.assigned"), 1)

	// Only pending orders take an assignment.
	err = svc.AssignDelivery(ctx, admin(99), id, 8)
	var terr domain.InvalidTransitionError
	require.ErrorAs(t, err, &terr)

	// Non-admins cannot even see the operation.
	other := seedOrder(store, 1, domain.OrderStatusPending, nil)
	assert.ErrorIs(t, svc.AssignDelivery(ctx, courier(7), other, 7), domain.ErrNotFound)
	assert.ErrorIs(t, svc.AssignDelivery(ctx, customer(1), other, 7), domain.ErrNotFound)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	notifier := &recordingNotifier{}
	svc := order.NewService(store, notifier)

	own := seedOrder(store, 1, domain.OrderStatusPending, nil)
	require.NoError(t, svc.Cancel(ctx, customer(1), own))
	o, err := store.OrderByID(ctx, own)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, o.Status)
	assert.Len(t, notifier.byType("order.cancelled"), 1)

	// Admins may cancel processing orders on a customer's behalf.
	cid := domain.UserID(7)
	processing := seedOrder(store, 2, domain.OrderStatusProcessing, &cid)
	require.NoError(t, svc.Cancel(ctx, admin(99), processing))

	// Once picked up the order is out of reach.
	picked := seedOrder(store, 2, domain.OrderStatusPickedUp, &cid)
	var terr domain.InvalidTransitionError
	require.ErrorAs(t, svc.Cancel(ctx, customer(2), picked), &terr)

	// Strangers read the order as absent.
	foreign := seedOrder(store, 3, domain.OrderStatusPending, nil)
	assert.ErrorIs(t, svc.Cancel(ctx, customer(4), foreign), domain.ErrNotFound)
}

func TestListDeliveryOrders(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := order.NewService(store, nil)

	cid := domain.UserID(7)
	other := domain.UserID(8)
	seedOrder(store, 1, domain.OrderStatusProcessing, &cid)
	seedOrder(store, 2, domain.OrderStatusInTransit, &cid)
	seedOrder(store, 3, domain.OrderStatusDelivered, &cid)
	seedOrder(store, 4, domain.OrderStatusProcessing, &other)

	// Default worklist: only orders still moving, only this courier's.
	summaries, total, err := svc.ListDeliveryOrders(ctx, courier(7), "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, summaries, 2)

	// Explicit filter reaches finished orders too.
	summaries, total, err = svc.ListDeliveryOrders(ctx, courier(7), domain.OrderStatusDelivered, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, summaries, 1)
	assert.Equal(t, domain.OrderStatusDelivered, summaries[0].Status)

	_, _, err = svc.ListDeliveryOrders(ctx, customer(1), "", 1, 10)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOrderVisibility(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := order.NewService(store, nil)

	cid := domain.UserID(7)
	id := seedOrder(store, 1, domain.OrderStatusProcessing, &cid)

	for _, p := range []domain.Principal{customer(1), courier(7), admin(99)} {
		o, lines, err := svc.Order(ctx, p, id)
		require.NoErrorf(t, err, "role %s", p.Role)
		assert.Equal(t, id, o.ID)
		assert.NotEmpty(t, lines)
	}

	for _, p := range []domain.Principal{customer(2), courier(8)} {
		_, _, err := svc.Order(ctx, p, id)
		assert.ErrorIsf(t, err, domain.ErrNotFound, "role %s id %d", p.Role, p.ID)
	}
}
