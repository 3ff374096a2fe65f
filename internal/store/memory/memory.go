// Package memory is an in-memory implementation of the storage
// interfaces. It backs the test suites and the bench default profile;
// transactions are serialized under one mutex, which trivially gives
// the per-product serializability the coordinator requires.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/olivierola/e-com-backend/internal/cart"
	"github.com/olivierola/e-com-backend/internal/catalog"
	"github.com/olivierola/e-com-backend/internal/order"
	"github.com/olivierola/e-com-backend/internal/order/domain"
)

type Store struct {
	mu sync.Mutex

	products   map[domain.ProductID]domain.Product
	categories map[domain.CategoryID]string
	carts      map[domain.UserID]map[domain.ProductID]int
	orders     map[domain.OrderID]domain.Order
	orderLines map[domain.OrderID][]domain.OrderLine
	idemKeys   map[string]domain.OrderID

	nextProductID  int64
	nextOrderID    int64
	nextCategoryID int64
}

func NewStore() *Store {
	return &Store{
		products:   make(map[domain.ProductID]domain.Product),
		categories: make(map[domain.CategoryID]string),
		carts:      make(map[domain.UserID]map[domain.ProductID]int),
		orders:     make(map[domain.OrderID]domain.Order),
		orderLines: make(map[domain.OrderID][]domain.OrderLine),
		idemKeys:   make(map[string]domain.OrderID),
	}
}

// SeedProduct inserts a product directly, for tests and bench seeding.
func (s *Store) SeedProduct(p domain.Product) domain.ProductID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		s.nextProductID++
		p.ID = domain.ProductID(s.nextProductID)
	} else if int64(p.ID) > s.nextProductID {
		s.nextProductID = int64(p.ID)
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	s.products[p.ID] = p
	return p.ID
}

// SeedOrder inserts an order and its lines directly, for tests.
func (s *Store) SeedOrder(o domain.Order, lines []domain.OrderLine) domain.OrderID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == 0 {
		s.nextOrderID++
		o.ID = domain.OrderID(s.nextOrderID)
	} else if int64(o.ID) > s.nextOrderID {
		s.nextOrderID = int64(o.ID)
	}
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	s.orders[o.ID] = o
	for i := range lines {
		lines[i].OrderID = o.ID
	}
	s.orderLines[o.ID] = lines
	return o.ID
}

// --- order.Store -----------------------------------------------------

// checkoutTx stages every mutation and applies the whole set at commit,
// so a failing callback leaves the store untouched.
type checkoutTx struct {
	s *Store

	order      *domain.Order
	orderID    domain.OrderID
	lines      []domain.OrderLine
	decrements map[domain.ProductID]int
	clearUser  *domain.UserID
	idemKey    string
}

func (s *Store) InCheckoutTx(ctx context.Context, fn func(tx order.CheckoutTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &checkoutTx{s: s, decrements: make(map[domain.ProductID]int)}
	if err := fn(tx); err != nil {
		return err
	}
	tx.apply()
	return nil
}

func (tx *checkoutTx) apply() {
	now := time.Now().UTC()
	if tx.order != nil {
		o := *tx.order
		o.ID = tx.orderID
		o.CreatedAt, o.UpdatedAt = now, now
		tx.s.orders[o.ID] = o
		tx.s.orderLines[o.ID] = tx.lines
	}
	for id, qty := range tx.decrements {
		p := tx.s.products[id]
		p.Stock -= qty
		p.UpdatedAt = now
		tx.s.products[id] = p
	}
	if tx.clearUser != nil {
		delete(tx.s.carts, *tx.clearUser)
	}
	if tx.idemKey != "" {
		tx.s.idemKeys[tx.idemKey] = tx.orderID
	}
}

func (tx *checkoutTx) CheckoutLines(_ context.Context, userID domain.UserID) ([]order.CheckoutLine, error) {
	lines := make([]order.CheckoutLine, 0, len(tx.s.carts[userID]))
	for productID, qty := range tx.s.carts[userID] {
		p, ok := tx.s.products[productID]
		if !ok {
			continue
		}
		lines = append(lines, order.CheckoutLine{
			ProductID:       productID,
			Title:           p.Title,
			Quantity:        qty,
			Price:           p.Price,
			DiscountPercent: p.DiscountPercent,
			Stock:           p.Stock,
		})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines, nil
}

func (tx *checkoutTx) InsertOrder(_ context.Context, o *domain.Order) (domain.OrderID, error) {
	tx.s.nextOrderID++
	tx.orderID = domain.OrderID(tx.s.nextOrderID)
	tx.order = o
	return tx.orderID, nil
}

func (tx *checkoutTx) InsertOrderLines(_ context.Context, lines []domain.OrderLine) error {
	tx.lines = append([]domain.OrderLine(nil), lines...)
	return nil
}

func (tx *checkoutTx) DecrementStock(_ context.Context, productID domain.ProductID, qty int) error {
	p, ok := tx.s.products[productID]
	if !ok {
		return domain.ErrNotFound
	}
	staged := tx.decrements[productID] + qty
	if p.Stock-staged < 0 {
		return domain.TransientError{Err: fmt.Errorf("stock underflow for product %d", productID)}
	}
	tx.decrements[productID] = staged
	return nil
}

func (tx *checkoutTx) ClearCart(_ context.Context, userID domain.UserID) error {
	tx.clearUser = &userID
	return nil
}

func (tx *checkoutTx) BindIdempotencyKey(_ context.Context, key string, orderID domain.OrderID) error {
	if existing, ok := tx.s.idemKeys[key]; ok && existing != orderID {
		return domain.TransientError{Err: fmt.Errorf("idempotency key already bound to order %d", existing)}
	}
	tx.idemKey = key
	return nil
}

func (s *Store) OrderByID(_ context.Context, id domain.OrderID) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (s *Store) OrderLines(_ context.Context, id domain.OrderID) ([]domain.OrderLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.OrderLine(nil), s.orderLines[id]...), nil
}

func (s *Store) ListUserOrders(_ context.Context, userID domain.UserID, page, limit int) ([]order.OrderSummary, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []order.OrderSummary
	for _, o := range s.orders {
		if o.UserID != userID {
			continue
		}
		all = append(all, s.summarize(o))
	}
	// Newest first.
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return paginate(all, page, limit)
}

func (s *Store) ListDeliveryOrders(_ context.Context, deliveryID domain.UserID, statuses []domain.OrderStatus, page, limit int) ([]order.OrderSummary, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[domain.OrderStatus]int, len(statuses))
	for i, st := range statuses {
		wanted[st] = i
	}
	var all []order.OrderSummary
	for _, o := range s.orders {
		if o.DeliveryID == nil || *o.DeliveryID != deliveryID {
			continue
		}
		if _, ok := wanted[o.Status]; !ok {
			continue
		}
		all = append(all, s.summarize(o))
	}
	// Status progression first, then oldest first.
	sort.Slice(all, func(i, j int) bool {
		if wanted[all[i].Status] != wanted[all[j].Status] {
			return wanted[all[i].Status] < wanted[all[j].Status]
		}
		return all[i].ID < all[j].ID
	})
	return paginate(all, page, limit)
}

func (s *Store) ListAllOrders(_ context.Context, filter order.OrderFilter, page, limit int) ([]order.OrderSummary, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []order.OrderSummary
	for _, o := range s.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.UserID != 0 && o.UserID != filter.UserID {
			continue
		}
		if !filter.From.IsZero() && o.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && o.CreatedAt.After(filter.To) {
			continue
		}
		all = append(all, s.summarize(o))
	}
	// Newest first.
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return paginate(all, page, limit)
}

func (s *Store) summarize(o domain.Order) order.OrderSummary {
	return order.OrderSummary{
		ID:          o.ID,
		UserID:      o.UserID,
		TotalAmount: o.TotalAmount,
		Status:      o.Status,
		ItemCount:   len(s.orderLines[o.ID]),
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

func paginate(all []order.OrderSummary, page, limit int) ([]order.OrderSummary, int, error) {
	total := len(all)
	start := (page - 1) * limit
	if start >= total {
		return []order.OrderSummary{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, id domain.OrderID, from, to domain.OrderStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	s.orders[id] = o
	return true, nil
}

func (s *Store) AssignDelivery(_ context.Context, id domain.OrderID, courier domain.UserID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if o.Status != domain.OrderStatusPending {
		return false, nil
	}
	o.Status = domain.OrderStatusProcessing
	o.DeliveryID = &courier
	o.UpdatedAt = time.Now().UTC()
	s.orders[id] = o
	return true, nil
}

func (s *Store) OrderIDByIdempotencyKey(_ context.Context, key string) (domain.OrderID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.idemKeys[key]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return id, nil
}

func (s *Store) ReadStock(_ context.Context, productID domain.ProductID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return p.Stock, nil
}

// --- cart.Store ------------------------------------------------------

func (s *Store) ProductSnapshot(_ context.Context, id domain.ProductID) (cart.ProductSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return cart.ProductSnapshot{}, domain.ErrNotFound
	}
	return cart.ProductSnapshot{
		ID:              p.ID,
		Title:           p.Title,
		Price:           p.Price,
		DiscountPercent: p.DiscountPercent,
		Stock:           p.Stock,
		Images:          p.Images,
	}, nil
}

func (s *Store) CartQuantity(_ context.Context, userID domain.UserID, productID domain.ProductID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.carts[userID][productID], nil
}

func (s *Store) UpsertCartLine(_ context.Context, userID domain.UserID, productID domain.ProductID, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.carts[userID] == nil {
		s.carts[userID] = make(map[domain.ProductID]int)
	}
	s.carts[userID][productID] = quantity
	return nil
}

func (s *Store) RemoveCartLine(_ context.Context, userID domain.UserID, productID domain.ProductID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.carts[userID][productID]; !ok {
		return false, nil
	}
	delete(s.carts[userID], productID)
	return true, nil
}

func (s *Store) CartLines(_ context.Context, userID domain.UserID) ([]cart.Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := make([]cart.Line, 0, len(s.carts[userID]))
	for productID, qty := range s.carts[userID] {
		p, ok := s.products[productID]
		if !ok {
			continue
		}
		lines = append(lines, cart.Line{
			ProductID:       productID,
			Title:           p.Title,
			Quantity:        qty,
			Price:           p.Price,
			DiscountPercent: p.DiscountPercent,
			Stock:           p.Stock,
			Images:          p.Images,
		})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines, nil
}

// --- catalog.Store ---------------------------------------------------

// catalogTx stages product writes the same way checkoutTx does, so a
// failed callback leaves the previous characteristic set intact.
type catalogTx struct {
	s       *Store
	staged  map[domain.ProductID]domain.Product
	created []domain.ProductID
}

func (s *Store) InTx(ctx context.Context, fn func(tx catalog.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &catalogTx{s: s, staged: make(map[domain.ProductID]domain.Product)}
	if err := fn(tx); err != nil {
		// Roll back reserved IDs so the sequence stays dense for tests.
		for range tx.created {
			tx.s.nextProductID--
		}
		return err
	}
	now := time.Now().UTC()
	for id, p := range tx.staged {
		p.UpdatedAt = now
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		tx.s.products[id] = p
	}
	return nil
}

func (tx *catalogTx) InsertProduct(_ context.Context, p *domain.Product) (domain.ProductID, error) {
	tx.s.nextProductID++
	id := domain.ProductID(tx.s.nextProductID)
	staged := *p
	staged.ID = id
	tx.staged[id] = staged
	tx.created = append(tx.created, id)
	return id, nil
}

func (tx *catalogTx) UpdateProduct(_ context.Context, id domain.ProductID, patch catalog.ProductPatch) (bool, error) {
	p, ok := tx.staged[id]
	if !ok {
		p, ok = tx.s.products[id]
		if !ok {
			return false, nil
		}
	}
	if patch.Title != nil {
		p.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		p.Price = patch.Price.Round(2)
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if patch.CategoryID != nil {
		cid := *patch.CategoryID
		p.CategoryID = &cid
	}
	if patch.Images != nil {
		p.Images = append([]string(nil), (*patch.Images)...)
	}
	tx.staged[id] = p
	return true, nil
}

func (tx *catalogTx) ReplaceCharacteristics(_ context.Context, id domain.ProductID, chars []domain.Characteristic) error {
	p, ok := tx.staged[id]
	if !ok {
		p, ok = tx.s.products[id]
		if !ok {
			return domain.ErrNotFound
		}
	}
	p.Characteristics = append([]domain.Characteristic(nil), chars...)
	tx.staged[id] = p
	return nil
}

func (s *Store) ProductByID(_ context.Context, id domain.ProductID) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListProducts(_ context.Context, categoryID *domain.CategoryID, search string, page, limit int) ([]domain.Product, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []domain.Product
	for _, p := range s.products {
		if categoryID != nil && (p.CategoryID == nil || *p.CategoryID != *categoryID) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(search)) {
			continue
		}
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	start := (page - 1) * limit
	if start >= total {
		return []domain.Product{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (s *Store) SetDiscount(_ context.Context, id domain.ProductID, percent int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return false, nil
	}
	p.DiscountPercent = percent
	p.UpdatedAt = time.Now().UTC()
	s.products[id] = p
	return true, nil
}

func (s *Store) DeleteProduct(_ context.Context, id domain.ProductID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return false, nil
	}
	delete(s.products, id)
	return true, nil
}

func (s *Store) InsertCategory(_ context.Context, name string) (domain.CategoryID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextCategoryID++
	id := domain.CategoryID(s.nextCategoryID)
	s.categories[id] = name
	return id, nil
}

func (s *Store) DeleteCategory(_ context.Context, id domain.CategoryID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return false, nil
	}
	delete(s.categories, id)
	return true, nil
}

func (s *Store) CategoryProductCount(_ context.Context, id domain.CategoryID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, p := range s.products {
		if p.CategoryID != nil && *p.CategoryID == id {
			count++
		}
	}
	return count, nil
}

func (s *Store) CategoryNameExists(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.categories {
		if strings.EqualFold(n, name) {
			return true, nil
		}
	}
	return false, nil
}
