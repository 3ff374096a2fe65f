// Package cart manages the per-user cart snapshot: the ephemeral
// (user, product, quantity) pairs the checkout coordinator later
// commits. Cart rows carry no cross-entity invariant; stock checks here
// are advisory, the coordinator re-validates under lock.
package cart

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/olivierola/e-com-backend/internal/order/domain"
)

// ProductSnapshot is the live product view the cart validates against.
type ProductSnapshot struct {
	ID              domain.ProductID
	Title           string
	Price           decimal.Decimal
	DiscountPercent int
	Stock           int
	Images          []string
}

// Line is one cart row joined with its product.
type Line struct {
	ProductID       domain.ProductID
	Title           string
	Quantity        int
	Price           decimal.Decimal
	DiscountPercent int
	Stock           int
	Images          []string
}

type Store interface {
	ProductSnapshot(ctx context.Context, id domain.ProductID) (ProductSnapshot, error)
	CartQuantity(ctx context.Context, userID domain.UserID, productID domain.ProductID) (int, error)
	UpsertCartLine(ctx context.Context, userID domain.UserID, productID domain.ProductID, quantity int) error
	RemoveCartLine(ctx context.Context, userID domain.UserID, productID domain.ProductID) (bool, error)
	CartLines(ctx context.Context, userID domain.UserID) ([]Line, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Add puts quantity more units of a product into the cart, merging with
// any existing line. Returns the resulting line quantity.
func (s *Service) Add(ctx context.Context, principal domain.Principal, productID domain.ProductID, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, domain.ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	p, err := s.store.ProductSnapshot(ctx, productID)
	if err != nil {
		return 0, err
	}
	current, err := s.store.CartQuantity(ctx, principal.ID, productID)
	if err != nil {
		return 0, err
	}
	total := current + quantity
	if total > p.Stock {
		return 0, domain.InsufficientStockError{Shortages: []domain.StockShortage{{
			ProductID: p.ID,
			Title:     p.Title,
			Requested: total,
			Available: p.Stock,
		}}}
	}
	if err := s.store.UpsertCartLine(ctx, principal.ID, productID, total); err != nil {
		return 0, err
	}
	return total, nil
}

// SetQuantity replaces the quantity of an existing cart line.
func (s *Service) SetQuantity(ctx context.Context, principal domain.Principal, productID domain.ProductID, quantity int) error {
	if quantity <= 0 {
		return domain.ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	p, err := s.store.ProductSnapshot(ctx, productID)
	if err != nil {
		return err
	}
	// The line must exist before its stock is judged: resizing an
	// absent line is NotFound even when the quantity is also too big.
	current, err := s.store.CartQuantity(ctx, principal.ID, productID)
	if err != nil {
		return err
	}
	if current == 0 {
		return domain.ErrNotFound
	}
	if quantity > p.Stock {
		return domain.InsufficientStockError{Shortages: []domain.StockShortage{{
			ProductID: p.ID,
			Title:     p.Title,
			Requested: quantity,
			Available: p.Stock,
		}}}
	}
	return s.store.UpsertCartLine(ctx, principal.ID, productID, quantity)
}

// Remove deletes one line from the cart.
func (s *Service) Remove(ctx context.Context, principal domain.Principal, productID domain.ProductID) error {
	removed, err := s.store.RemoveCartLine(ctx, principal.ID, productID)
	if err != nil {
		return err
	}
	if !removed {
		return domain.ErrNotFound
	}
	return nil
}

// View is the priced cart listing.
type View struct {
	Items   []ViewItem
	Summary Summary
}

type ViewItem struct {
	ProductID       domain.ProductID
	Title           string
	Quantity        int
	Price           decimal.Decimal
	DiscountedPrice decimal.Decimal
	Subtotal        decimal.Decimal
	Stock           int
	Images          []string
}

type Summary struct {
	TotalItems    int
	TotalQuantity int
	TotalPrice    decimal.Decimal
}

// Contents returns the cart with per-line discounted prices and totals.
func (s *Service) Contents(ctx context.Context, principal domain.Principal) (View, error) {
	lines, err := s.store.CartLines(ctx, principal.ID)
	if err != nil {
		return View{}, err
	}
	view := View{Items: make([]ViewItem, 0, len(lines)), Summary: Summary{TotalPrice: decimal.Zero}}
	for _, ln := range lines {
		unit := domain.DiscountedUnitPrice(ln.Price, ln.DiscountPercent)
		subtotal := unit.Mul(decimal.NewFromInt(int64(ln.Quantity)))
		view.Items = append(view.Items, ViewItem{
			ProductID:       ln.ProductID,
			Title:           ln.Title,
			Quantity:        ln.Quantity,
			Price:           ln.Price,
			DiscountedPrice: unit,
			Subtotal:        subtotal,
			Stock:           ln.Stock,
			Images:          ln.Images,
		})
		view.Summary.TotalItems++
		view.Summary.TotalQuantity += ln.Quantity
		view.Summary.TotalPrice = view.Summary.TotalPrice.Add(subtotal)
	}
	return view, nil
}
