package catalog_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olivierola/e-com-backend/internal/catalog"
	"github.com/olivierola/e-com-backend/internal/order/domain"
	"github.com/olivierola/e-com-backend/internal/store/memory"
)

func admin(id int64) domain.Principal {
	return domain.Principal{ID: domain.UserID(id), Role: domain.RoleAdmin}
}

func customer(id int64) domain.Principal {
	return domain.Principal{ID: domain.UserID(id), Role: domain.RoleCustomer}
}

// mapCache is an in-process Cache for tests.
type mapCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	gets    int
	hits    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string][]byte)}
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	data, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return data, ok
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
}

func (c *mapCache) Del(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func price(raw string) decimal.Decimal {
	return decimal.RequireFromString(raw)
}

func TestCreateProduct(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := catalog.NewService(store, nil)

	created, err := svc.CreateProduct(ctx, admin(1), catalog.CreateProductInput{
		Title:       "  kettle  ",
		Description: "stovetop",
		Price:       price("24.999"),
		Stock:       10,
		Images:      []string{"kettle.png"},
		Characteristics: []domain.Characteristic{
			{Name: "color", Value: "red"},
			{Name: "  ", Value: "dropped"},
			{Name: "material", Value: "steel"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "kettle", created.Title)
	assert.Equal(t, "25.00", created.Price.StringFixed(2), "price rounds to cents")
	require.Len(t, created.Characteristics, 2, "blank characteristics are dropped")

	got, err := svc.Product(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Title, got.Title)
	assert.Len(t, got.Characteristics, 2)
}

func TestCreateProductValidation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := catalog.NewService(store, nil)

	cases := []struct {
		name  string
		in    catalog.CreateProductInput
		field string
	}{
		{"blank title", catalog.CreateProductInput{Title: " ", Price: price("1")}, "title"},
		{"zero price", catalog.CreateProductInput{Title: "x", Price: price("0")}, "price"},
		{"negative stock", catalog.CreateProductInput{Title: "x", Price: price("1"), Stock: -1}, "stock"},
		{"discount over 100", catalog.CreateProductInput{Title: "x", Price: price("1"), DiscountPercent: 101}, "discount"},
		{"blank image", catalog.CreateProductInput{Title: "x", Price: price("1"), Images: []string{""}}, "images"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateProduct(ctx, admin(1), tc.in)
			var verr domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}

	_, err := svc.CreateProduct(ctx, customer(1), catalog.CreateProductInput{Title: "x", Price: price("1")})
	assert.ErrorIs(t, err, domain.ErrNotFound, "non-admins cannot create products")
}

func TestUpdateProductReplacesCharacteristicsWholesale(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := catalog.NewService(store, nil)

	created, err := svc.CreateProduct(ctx, admin(1), catalog.CreateProductInput{
		Title: "kettle",
		Price: price("25.00"),
		Characteristics: []domain.Characteristic{
			{Name: "color", Value: "red"},
			{Name: "material", Value: "steel"},
		},
	})
	require.NoError(t, err)

	chars := []domain.Characteristic{{Name: "volume", Value: "1.7l"}}
	require.NoError(t, svc.UpdateProduct(ctx, admin(1), created.ID, catalog.ProductPatch{
		Characteristics: &chars,
	}))

	got, err := svc.Product(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, got.Characteristics, 1, "old set is gone, not merged")
	assert.Equal(t, "volume", got.Characteristics[0].Name)
}

func TestUpdateProductKeepsOldSetOnFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := catalog.NewService(store, nil)

	created, err := svc.CreateProduct(ctx, admin(1), catalog.CreateProductInput{
		Title:           "kettle",
		Price:           price("25.00"),
		Characteristics: []domain.Characteristic{{Name: "color", Value: "red"}},
	})
	require.NoError(t, err)

	// Patching an unknown product fails inside the transaction; the
	// existing product and its characteristics stay put.
	title := "renamed"
	chars := []domain.Characteristic{{Name: "volume", Value: "1.7l"}}
	err = svc.UpdateProduct(ctx, admin(1), created.ID+100, catalog.ProductPatch{
		Title:           &title,
		Characteristics: &chars,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := svc.Product(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "kettle", got.Title)
	require.Len(t, got.Characteristics, 1)
	assert.Equal(t, "color", got.Characteristics[0].Name)
}

func TestSetDiscountBounds(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := catalog.NewService(store, nil)

	created, err := svc.CreateProduct(ctx, admin(1), catalog.CreateProductInput{Title: "kettle", Price: price("25.00")})
	require.NoError(t, err)

	require.NoError(t, svc.SetDiscount(ctx, admin(1), created.ID, 30))
	got, err := svc.Product(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, got.DiscountPercent)

	var verr domain.ValidationError
	require.ErrorAs(t, svc.SetDiscount(ctx, admin(1), created.ID, -1), &verr)
	require.ErrorAs(t, svc.SetDiscount(ctx, admin(1), created.ID, 101), &verr)
	assert.ErrorIs(t, svc.SetDiscount(ctx, admin(1), created.ID+100, 10), domain.ErrNotFound)
}

func TestListProducts(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := catalog.NewService(store, nil)

	cat, err := svc.CreateCategory(ctx, admin(1), "kitchen")
	require.NoError(t, err)

	_, err = svc.CreateProduct(ctx, admin(1), catalog.CreateProductInput{Title: "kettle", Price: price("25.00"), CategoryID: &cat.ID})
	require.NoError(t, err)
	_, err = svc.CreateProduct(ctx, admin(1), catalog.CreateProductInput{Title: "desk lamp", Price: price("40.00")})
	require.NoError(t, err)

	products, total, err := svc.ListProducts(ctx, nil, "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, products, 2)

	products, total, err = svc.ListProducts(ctx, &cat.ID, "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, products, 1)
	assert.Equal(t, "kettle", products[0].Title)

	products, total, err = svc.ListProducts(ctx, nil, "LAMP", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, products, 1)
	assert.Equal(t, "desk lamp", products[0].Title)
}

func TestCategories(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := catalog.NewService(store, nil)

	cat, err := svc.CreateCategory(ctx, admin(1), " kitchen ")
	require.NoError(t, err)
	assert.Equal(t, "kitchen", cat.Name)

	_, err = svc.CreateCategory(ctx, admin(1), "Kitchen")
	var verr domain.ValidationError
	require.ErrorAs(t, err, &verr, "duplicate names are rejected case-insensitively")

	created, err := svc.CreateProduct(ctx, admin(1), catalog.CreateProductInput{Title: "kettle", Price: price("25.00"), CategoryID: &cat.ID})
	require.NoError(t, err)

	// A category with products cannot be deleted.
	require.ErrorAs(t, svc.DeleteCategory(ctx, admin(1), cat.ID), &verr)

	require.NoError(t, svc.DeleteProduct(ctx, admin(1), created.ID))
	require.NoError(t, svc.DeleteCategory(ctx, admin(1), cat.ID))
	assert.ErrorIs(t, svc.DeleteCategory(ctx, admin(1), cat.ID), domain.ErrNotFound)
}

func TestProductCacheAside(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	cache := newMapCache()
	svc := catalog.NewService(store, cache)

	created, err := svc.CreateProduct(ctx, admin(1), catalog.CreateProductInput{Title: "kettle", Price: price("25.00")})
	require.NoError(t, err)

	// Cold read fills the cache, the next one hits it.
	_, err = svc.Product(ctx, created.ID)
	require.NoError(t, err)
	got, err := svc.Product(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "kettle", got.Title)
	assert.GreaterOrEqual(t, cache.hits, 1)

	// A write invalidates, so the next read sees the new title.
	title := "electric kettle"
	require.NoError(t, svc.UpdateProduct(ctx, admin(1), created.ID, catalog.ProductPatch{Title: &title}))
	got, err = svc.Product(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "electric kettle", got.Title)
}

func TestProductCachePoisonedEntry(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	cache := newMapCache()
	svc := catalog.NewService(store, cache)

	created, err := svc.CreateProduct(ctx, admin(1), catalog.CreateProductInput{Title: "kettle", Price: price("25.00")})
	require.NoError(t, err)

	// Corrupt the cached entry; the read must fall through to the store.
	_, err = svc.Product(ctx, created.ID)
	require.NoError(t, err)
	for key := range cache.entries {
		cache.entries[key] = []byte("{not json")
	}
	got, err := svc.Product(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "kettle", got.Title)
}
