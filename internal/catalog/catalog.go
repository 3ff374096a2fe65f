// Package catalog owns product administration and catalog reads.
// Product writes that touch the characteristic set are transactional:
// the characteristics are replaced wholesale inside the same unit as
// the product row update, so a mid-failure leaves the prior set intact.
package catalog

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/olivierola/e-com-backend/internal/order/domain"
)

// ProductPatch carries the optional fields of a product update. Nil
// means "leave unchanged".
type ProductPatch struct {
	Title           *string
	Description     *string
	Price           *decimal.Decimal
	Stock           *int
	CategoryID      *domain.CategoryID
	Images          *[]string
	Characteristics *[]domain.Characteristic
}

// Tx is the transactional slice of the store used by product writes.
type Tx interface {
	InsertProduct(ctx context.Context, p *domain.Product) (domain.ProductID, error)
	UpdateProduct(ctx context.Context, id domain.ProductID, patch ProductPatch) (bool, error)
	// ReplaceCharacteristics deletes the product's whole characteristic
	// set and inserts the new one.
	ReplaceCharacteristics(ctx context.Context, id domain.ProductID, chars []domain.Characteristic) error
}

type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error

	ProductByID(ctx context.Context, id domain.ProductID) (domain.Product, error)
	ListProducts(ctx context.Context, categoryID *domain.CategoryID, search string, page, limit int) ([]domain.Product, int, error)
	SetDiscount(ctx context.Context, id domain.ProductID, percent int) (bool, error)
	DeleteProduct(ctx context.Context, id domain.ProductID) (bool, error)

	InsertCategory(ctx context.Context, name string) (domain.CategoryID, error)
	DeleteCategory(ctx context.Context, id domain.CategoryID) (bool, error)
	CategoryProductCount(ctx context.Context, id domain.CategoryID) (int, error)
	CategoryNameExists(ctx context.Context, name string) (bool, error)
}

type Service struct {
	store Store
	cache *productCache
}

// NewService builds the catalog service. cache may be nil; reads then
// always hit the store.
func NewService(store Store, cache Cache) *Service {
	s := &Service{store: store}
	if cache != nil {
		s.cache = newProductCache(cache)
	}
	return s
}

type CreateProductInput struct {
	Title           string
	Description     string
	Price           decimal.Decimal
	Stock           int
	DiscountPercent int
	CategoryID      *domain.CategoryID
	Images          []string
	Characteristics []domain.Characteristic
}

func (in CreateProductInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return domain.ValidationError{Field: "title", Reason: "required"}
	}
	if in.Price.LessThanOrEqual(decimal.Zero) {
		return domain.ValidationError{Field: "price", Reason: "must be positive"}
	}
	if in.Stock < 0 {
		return domain.ValidationError{Field: "stock", Reason: "must not be negative"}
	}
	if in.DiscountPercent < 0 || in.DiscountPercent > 100 {
		return domain.ValidationError{Field: "discount", Reason: "must be between 0 and 100"}
	}
	return nil
}

// CreateProduct inserts a product and its characteristic set in one
// transaction.
func (s *Service) CreateProduct(ctx context.Context, principal domain.Principal, in CreateProductInput) (domain.Product, error) {
	if !principal.IsAdmin() {
		return domain.Product{}, domain.ErrNotFound
	}
	if err := in.validate(); err != nil {
		return domain.Product{}, err
	}
	// Validate the image list up front so a bad list never reaches storage.
	if _, err := domain.EncodeImages(in.Images); err != nil {
		return domain.Product{}, err
	}

	p := domain.Product{
		Title:           strings.TrimSpace(in.Title),
		Description:     in.Description,
		Price:           in.Price.Round(2),
		Stock:           in.Stock,
		DiscountPercent: in.DiscountPercent,
		CategoryID:      in.CategoryID,
		Images:          in.Images,
		Characteristics: cleanCharacteristics(in.Characteristics),
	}
	err := s.store.InTx(ctx, func(tx Tx) error {
		id, err := tx.InsertProduct(ctx, &p)
		if err != nil {
			return err
		}
		p.ID = id
		return tx.ReplaceCharacteristics(ctx, id, p.Characteristics)
	})
	if err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

// UpdateProduct applies a partial update; when the patch includes a
// characteristic set it is replaced wholesale in the same transaction.
func (s *Service) UpdateProduct(ctx context.Context, principal domain.Principal, id domain.ProductID, patch ProductPatch) error {
	if !principal.IsAdmin() {
		return domain.ErrNotFound
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return domain.ValidationError{Field: "title", Reason: "must not be blank"}
	}
	if patch.Price != nil && patch.Price.LessThanOrEqual(decimal.Zero) {
		return domain.ValidationError{Field: "price", Reason: "must be positive"}
	}
	if patch.Stock != nil && *patch.Stock < 0 {
		return domain.ValidationError{Field: "stock", Reason: "must not be negative"}
	}
	if patch.Images != nil {
		if _, err := domain.EncodeImages(*patch.Images); err != nil {
			return err
		}
	}
	if patch.Characteristics != nil {
		cleaned := cleanCharacteristics(*patch.Characteristics)
		patch.Characteristics = &cleaned
	}

	err := s.store.InTx(ctx, func(tx Tx) error {
		found, err := tx.UpdateProduct(ctx, id, patch)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrNotFound
		}
		if patch.Characteristics != nil {
			return tx.ReplaceCharacteristics(ctx, id, *patch.Characteristics)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// SetDiscount applies a 0–100 percentage discount to a product.
func (s *Service) SetDiscount(ctx context.Context, principal domain.Principal, id domain.ProductID, percent int) error {
	if !principal.IsAdmin() {
		return domain.ErrNotFound
	}
	if percent < 0 || percent > 100 {
		return domain.ValidationError{Field: "discount", Reason: "must be between 0 and 100"}
	}
	found, err := s.store.SetDiscount(ctx, id, percent)
	if err != nil {
		return err
	}
	if !found {
		return domain.ErrNotFound
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *Service) DeleteProduct(ctx context.Context, principal domain.Principal, id domain.ProductID) error {
	if !principal.IsAdmin() {
		return domain.ErrNotFound
	}
	found, err := s.store.DeleteProduct(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return domain.ErrNotFound
	}
	s.invalidate(ctx, id)
	return nil
}

// Product returns one product, through the cache when configured.
func (s *Service) Product(ctx context.Context, id domain.ProductID) (domain.Product, error) {
	if s.cache == nil {
		return s.store.ProductByID(ctx, id)
	}
	return s.cache.get(ctx, id, func() (domain.Product, error) {
		return s.store.ProductByID(ctx, id)
	})
}

func (s *Service) ListProducts(ctx context.Context, categoryID *domain.CategoryID, search string, page, limit int) ([]domain.Product, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return s.store.ListProducts(ctx, categoryID, strings.TrimSpace(search), page, limit)
}

func (s *Service) CreateCategory(ctx context.Context, principal domain.Principal, name string) (domain.Category, error) {
	if !principal.IsAdmin() {
		return domain.Category{}, domain.ErrNotFound
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Category{}, domain.ValidationError{Field: "name", Reason: "required"}
	}
	exists, err := s.store.CategoryNameExists(ctx, name)
	if err != nil {
		return domain.Category{}, err
	}
	if exists {
		return domain.Category{}, domain.ValidationError{Field: "name", Reason: "category already exists"}
	}
	id, err := s.store.InsertCategory(ctx, name)
	if err != nil {
		return domain.Category{}, err
	}
	return domain.Category{ID: id, Name: name}, nil
}

// DeleteCategory refuses to delete a category that still has products.
func (s *Service) DeleteCategory(ctx context.Context, principal domain.Principal, id domain.CategoryID) error {
	if !principal.IsAdmin() {
		return domain.ErrNotFound
	}
	count, err := s.store.CategoryProductCount(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return domain.ValidationError{Field: "category", Reason: "category still has products"}
	}
	found, err := s.store.DeleteCategory(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, id domain.ProductID) {
	if s.cache != nil {
		s.cache.invalidate(ctx, id)
	}
}

func cleanCharacteristics(chars []domain.Characteristic) []domain.Characteristic {
	out := make([]domain.Characteristic, 0, len(chars))
	for _, c := range chars {
		if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Value) == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}
