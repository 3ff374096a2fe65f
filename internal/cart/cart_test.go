package cart_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olivierola/e-com-backend/internal/cart"
	"github.com/olivierola/e-com-backend/internal/order/domain"
	"github.com/olivierola/e-com-backend/internal/store/memory"
)

func customer(id int64) domain.Principal {
	return domain.Principal{ID: domain.UserID(id), Role: domain.RoleCustomer}
}

func seedProduct(store *memory.Store, title, price string, discount, stock int) domain.ProductID {
	return store.SeedProduct(domain.Product{
		Title:           title,
		Price:           decimal.RequireFromString(price),
		DiscountPercent: discount,
		Stock:           stock,
	})
}

func TestAddMergesQuantities(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := cart.NewService(store)

	id := seedProduct(store, "mug", "5.00", 0, 10)

	qty, err := svc.Add(ctx, customer(1), id, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, qty)

	qty, err = svc.Add(ctx, customer(1), id, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, qty, "same product merges into one line")

	lines, err := store.CartLines(ctx, 1)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)
}

func TestAddValidatesStockAndInput(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := cart.NewService(store)

	id := seedProduct(store, "mug", "5.00", 0, 3)

	_, err := svc.Add(ctx, customer(1), id, 0)
	var verr domain.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = svc.Add(ctx, customer(1), id, 4)
	var serr domain.InsufficientStockError
	require.ErrorAs(t, err, &serr)
	require.Len(t, serr.Shortages, 1)
	assert.Equal(t, 4, serr.Shortages[0].Requested)
	assert.Equal(t, 3, serr.Shortages[0].Available)

	// The merged total is what gets checked, not the increment alone.
	_, err = svc.Add(ctx, customer(1), id, 2)
	require.NoError(t, err)
	_, err = svc.Add(ctx, customer(1), id, 2)
	require.ErrorAs(t, err, &serr)

	_, err = svc.Add(ctx, customer(1), 999, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSetQuantity(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := cart.NewService(store)

	id := seedProduct(store, "mug", "5.00", 0, 10)

	// The line must exist before it can be resized.
	err := svc.SetQuantity(ctx, customer(1), id, 3)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Absence wins over a bad quantity: asking for more than stock on a
	// product that is not in the cart is still NotFound.
	err = svc.SetQuantity(ctx, customer(1), id, 11)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Add(ctx, customer(1), id, 1)
	require.NoError(t, err)
	require.NoError(t, svc.SetQuantity(ctx, customer(1), id, 7))

	lines, err := store.CartLines(ctx, 1)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 7, lines[0].Quantity)

	var serr domain.InsufficientStockError
	require.ErrorAs(t, svc.SetQuantity(ctx, customer(1), id, 11), &serr)
	var verr domain.ValidationError
	require.ErrorAs(t, svc.SetQuantity(ctx, customer(1), id, 0), &verr)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := cart.NewService(store)

	id := seedProduct(store, "mug", "5.00", 0, 10)
	_, err := svc.Add(ctx, customer(1), id, 1)
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, customer(1), id))
	assert.ErrorIs(t, svc.Remove(ctx, customer(1), id), domain.ErrNotFound)
}

func TestContentsPricesWithDiscounts(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := cart.NewService(store)

	plain := seedProduct(store, "mug", "5.00", 0, 10)
	discounted := seedProduct(store, "kettle", "10.00", 20, 10)
	_, err := svc.Add(ctx, customer(1), plain, 2)
	require.NoError(t, err)
	_, err = svc.Add(ctx, customer(1), discounted, 1)
	require.NoError(t, err)

	view, err := svc.Contents(ctx, customer(1))
	require.NoError(t, err)
	require.Len(t, view.Items, 2)

	byID := map[domain.ProductID]cart.ViewItem{}
	for _, it := range view.Items {
		byID[it.ProductID] = it
	}
	assert.Equal(t, "5.00", byID[plain].DiscountedPrice.StringFixed(2))
	assert.Equal(t, "10.00", byID[plain].Subtotal.StringFixed(2))
	assert.Equal(t, "8.00", byID[discounted].DiscountedPrice.StringFixed(2))
	assert.Equal(t, "8.00", byID[discounted].Subtotal.StringFixed(2))

	assert.Equal(t, 2, view.Summary.TotalItems)
	assert.Equal(t, 3, view.Summary.TotalQuantity)
	assert.Equal(t, "18.00", view.Summary.TotalPrice.StringFixed(2))
}

func TestContentsEmptyCart(t *testing.T) {
	store := memory.NewStore()
	svc := cart.NewService(store)

	view, err := svc.Contents(context.Background(), customer(1))
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.Equal(t, "0.00", view.Summary.TotalPrice.StringFixed(2))
}
