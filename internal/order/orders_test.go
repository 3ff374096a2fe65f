package order_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olivierola/e-com-backend/internal/order"
	"github.com/olivierola/e-com-backend/internal/order/domain"
	"github.com/olivierola/e-com-backend/internal/store/memory"
)

func TestListUserOrdersPagination(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := order.NewService(store, nil)

	for i := 0; i < 25; i++ {
		seedOrder(store, 1, domain.OrderStatusPending, nil)
	}
	seedOrder(store, 2, domain.OrderStatusPending, nil)

	summaries, total, err := svc.ListUserOrders(ctx, customer(1), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 25, total, "other users' orders are not counted")
	require.Len(t, summaries, 10)

	// Newest first, stable across pages.
	assert.Greater(t, int64(summaries[0].ID), int64(summaries[9].ID))

	summaries, _, err = svc.ListUserOrders(ctx, customer(1), 3, 10)
	require.NoError(t, err)
	assert.Len(t, summaries, 5)

	summaries, _, err = svc.ListUserOrders(ctx, customer(1), 4, 10)
	require.NoError(t, err)
	assert.Empty(t, summaries)

	// Out-of-range page and limit fall back to defaults.
	summaries, _, err = svc.ListUserOrders(ctx, customer(1), 0, 1000)
	require.NoError(t, err)
	assert.Len(t, summaries, 25)
}

func TestListAllOrders(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := order.NewService(store, nil)

	seedOrder(store, 1, domain.OrderStatusPending, nil)
	seedOrder(store, 1, domain.OrderStatusDelivered, nil)
	seedOrder(store, 2, domain.OrderStatusPending, nil)
	seedOrder(store, 3, domain.OrderStatusCancelled, nil)

	// Unfiltered: every customer's orders, newest first.
	summaries, total, err := svc.ListAllOrders(ctx, admin(99), order.OrderFilter{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, summaries, 4)
	assert.Greater(t, int64(summaries[0].ID), int64(summaries[3].ID))

	// Status filter surfaces the assignment backlog.
	summaries, total, err = svc.ListAllOrders(ctx, admin(99), order.OrderFilter{Status: domain.OrderStatusPending}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, s := range summaries {
		assert.Equal(t, domain.OrderStatusPending, s.Status)
	}

	// Customer filter.
	summaries, total, err = svc.ListAllOrders(ctx, admin(99), order.OrderFilter{UserID: 1}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, s := range summaries {
		assert.Equal(t, domain.UserID(1), s.UserID)
	}

	// Filters combine.
	_, total, err = svc.ListAllOrders(ctx, admin(99), order.OrderFilter{
		UserID: 1,
		Status: domain.OrderStatusDelivered,
	}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestListAllOrdersDateWindow(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := order.NewService(store, nil)

	seedOrder(store, 1, domain.OrderStatusPending, nil)
	now := time.Now().UTC()

	_, total, err := svc.ListAllOrders(ctx, admin(99), order.OrderFilter{
		From: now.Add(-time.Hour),
		To:   now.Add(time.Hour),
	}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, total, err = svc.ListAllOrders(ctx, admin(99), order.OrderFilter{From: now.Add(time.Hour)}, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)

	_, total, err = svc.ListAllOrders(ctx, admin(99), order.OrderFilter{To: now.Add(-time.Hour)}, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)

	var verr domain.ValidationError
	_, _, err = svc.ListAllOrders(ctx, admin(99), order.OrderFilter{
		From: now,
		To:   now.Add(-time.Hour),
	}, 1, 10)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "from", verr.Field)
}

func TestListAllOrdersAdminOnly(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := order.NewService(store, nil)

	seedOrder(store, 1, domain.OrderStatusPending, nil)

	_, _, err := svc.ListAllOrders(ctx, customer(1), order.OrderFilter{}, 1, 10)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, _, err = svc.ListAllOrders(ctx, courier(7), order.OrderFilter{}, 1, 10)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var verr domain.ValidationError
	_, _, err = svc.ListAllOrders(ctx, admin(99), order.OrderFilter{Status: "shipped"}, 1, 10)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "status", verr.Field)
}

func TestReadStock(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := order.NewService(store, nil)

	id := seedProduct(t, store, "mug", "5.00", 0, 7)

	stock, err := svc.ReadStock(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 7, stock)

	_, err = svc.ReadStock(ctx, id+100)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
