// Package postgres implements the storage interfaces on pgx. The
// checkout transaction locks the joined product rows (FOR UPDATE) so
// the stock check and the decrement are serialized per product; lock
// waits are bounded by a per-transaction lock_timeout and surface as
// retryable transient errors.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/olivierola/e-com-backend/internal/cart"
	"github.com/olivierola/e-com-backend/internal/catalog"
	"github.com/olivierola/e-com-backend/internal/order"
	"github.com/olivierola/e-com-backend/internal/order/domain"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// mapErr translates storage-level conflicts into the domain taxonomy.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03": // serialization, deadlock, lock timeout
			return domain.TransientError{Err: err}
		}
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanDecimal(raw string) (decimal.Decimal, error) {
	return decimal.NewFromString(raw)
}

// --- order.Store -----------------------------------------------------

type checkoutTx struct {
	tx pgx.Tx
}

func (s *Store) InCheckoutTx(ctx context.Context, fn func(tx order.CheckoutTx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return mapErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Bound the wait on contended product rows; a stalled peer turns
	// into a retryable error instead of starving this commit.
	if _, err := tx.Exec(ctx, `SET LOCAL lock_timeout = '2s'`); err != nil {
		return mapErr(err)
	}
	if err := fn(&checkoutTx{tx: tx}); err != nil {
		return mapErr(err)
	}
	return mapErr(tx.Commit(ctx))
}

func (t *checkoutTx) CheckoutLines(ctx context.Context, userID domain.UserID) ([]order.CheckoutLine, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT ci.product_id, p.title, ci.quantity, p.price::text, p.discount, p.stock
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.product_id
		FOR UPDATE OF p`, int64(userID))
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []order.CheckoutLine
	for rows.Next() {
		var (
			ln       order.CheckoutLine
			priceRaw string
		)
		if err := rows.Scan(&ln.ProductID, &ln.Title, &ln.Quantity, &priceRaw, &ln.DiscountPercent, &ln.Stock); err != nil {
			return nil, err
		}
		if ln.Price, err = scanDecimal(priceRaw); err != nil {
			return nil, fmt.Errorf("product %d price: %w", ln.ProductID, err)
		}
		out = append(out, ln)
	}
	return out, mapErr(rows.Err())
}

func (t *checkoutTx) InsertOrder(ctx context.Context, o *domain.Order) (domain.OrderID, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders(user_id, total_amount, status, delivery_address)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		int64(o.UserID), o.TotalAmount.StringFixed(2), string(o.Status), o.DeliveryAddress,
	).Scan(&id)
	if err != nil {
		return 0, mapErr(err)
	}
	return domain.OrderID(id), nil
}

func (t *checkoutTx) InsertOrderLines(ctx context.Context, lines []domain.OrderLine) error {
	for _, ln := range lines {
		_, err := t.tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, title, quantity, price)
			VALUES ($1, $2, $3, $4, $5)`,
			int64(ln.OrderID), int64(ln.ProductID), ln.Title, ln.Quantity, ln.UnitPrice.StringFixed(2))
		if err != nil {
			return mapErr(err)
		}
	}
	return nil
}

func (t *checkoutTx) DecrementStock(ctx context.Context, productID domain.ProductID, qty int) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`, int64(productID), qty)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		// The row was locked at CheckoutLines, so this only fires if the
		// product vanished or stock moved underneath; fail the unit.
		return domain.TransientError{Err: fmt.Errorf("stock conflict on product %d", productID)}
	}
	return nil
}

func (t *checkoutTx) ClearCart(ctx context.Context, userID domain.UserID) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, int64(userID))
	return mapErr(err)
}

func (t *checkoutTx) BindIdempotencyKey(ctx context.Context, key string, orderID domain.OrderID) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO order_idempotency(idempotency_key, order_id)
		VALUES ($1, $2)`, key, int64(orderID))
	if isUniqueViolation(err) {
		// A concurrent request with the same key won; retrying the call
		// resolves to its order via the replay path.
		return domain.TransientError{Err: err}
	}
	return mapErr(err)
}

const orderColumns = `id, user_id, total_amount::text, status, delivery_address, delivery_id, created_at, updated_at`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o          domain.Order
		totalRaw   string
		deliveryID *int64
	)
	err := row.Scan(&o.ID, &o.UserID, &totalRaw, &o.Status, &o.DeliveryAddress, &deliveryID, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, mapErr(err)
	}
	if o.TotalAmount, err = scanDecimal(totalRaw); err != nil {
		return domain.Order{}, fmt.Errorf("order %d total: %w", o.ID, err)
	}
	if deliveryID != nil {
		uid := domain.UserID(*deliveryID)
		o.DeliveryID = &uid
	}
	return o, nil
}

func (s *Store) OrderByID(ctx context.Context, id domain.OrderID) (domain.Order, error) {
	return scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, int64(id)))
}

func (s *Store) OrderLines(ctx context.Context, id domain.OrderID) ([]domain.OrderLine, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT order_id, product_id, title, quantity, price::text
		FROM order_items WHERE order_id = $1 ORDER BY product_id`, int64(id))
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []domain.OrderLine
	for rows.Next() {
		var (
			ln       domain.OrderLine
			priceRaw string
		)
		if err := rows.Scan(&ln.OrderID, &ln.ProductID, &ln.Title, &ln.Quantity, &priceRaw); err != nil {
			return nil, err
		}
		if ln.UnitPrice, err = scanDecimal(priceRaw); err != nil {
			return nil, fmt.Errorf("order line price: %w", err)
		}
		out = append(out, ln)
	}
	return out, mapErr(rows.Err())
}

func (s *Store) ListUserOrders(ctx context.Context, userID domain.UserID, page, limit int) ([]order.OrderSummary, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = $1`, int64(userID)).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT o.id, o.user_id, o.total_amount::text, o.status, o.created_at, o.updated_at,
		       (SELECT COUNT(*) FROM order_items oi WHERE oi.order_id = o.id) AS item_count
		FROM orders o
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $2 OFFSET $3`, int64(userID), limit, (page-1)*limit)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	defer rows.Close()
	out, err := scanSummaries(rows)
	return out, total, err
}

func (s *Store) ListDeliveryOrders(ctx context.Context, deliveryID domain.UserID, statuses []domain.OrderStatus, page, limit int) ([]order.OrderSummary, int, error) {
	want := make([]string, 0, len(statuses))
	for _, st := range statuses {
		want = append(want, string(st))
	}
	var total int
	if err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM orders WHERE delivery_id = $1 AND status = ANY($2)`,
		int64(deliveryID), want).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT o.id, o.user_id, o.total_amount::text, o.status, o.created_at, o.updated_at,
		       (SELECT COUNT(*) FROM order_items oi WHERE oi.order_id = o.id) AS item_count
		FROM orders o
		WHERE o.delivery_id = $1 AND o.status = ANY($2)
		ORDER BY
		  CASE o.status
		    WHEN 'processing' THEN 1
		    WHEN 'picked_up' THEN 2
		    WHEN 'in_transit' THEN 3
		    ELSE 4
		  END,
		  o.created_at ASC
		LIMIT $3 OFFSET $4`, int64(deliveryID), want, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	defer rows.Close()
	out, err := scanSummaries(rows)
	return out, total, err
}

func (s *Store) ListAllOrders(ctx context.Context, filter order.OrderFilter, page, limit int) ([]order.OrderSummary, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Status != "" {
		where = append(where, "o.status = "+arg(string(filter.Status)))
	}
	if filter.UserID != 0 {
		where = append(where, "o.user_id = "+arg(int64(filter.UserID)))
	}
	if !filter.From.IsZero() {
		where = append(where, "o.created_at >= "+arg(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, "o.created_at <= "+arg(filter.To))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders o WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT o.id, o.user_id, o.total_amount::text, o.status, o.created_at, o.updated_at,
		       (SELECT COUNT(*) FROM order_items oi WHERE oi.order_id = o.id) AS item_count
		FROM orders o
		WHERE `+cond+`
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT `+arg(limit)+` OFFSET `+arg((page-1)*limit), args...)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	defer rows.Close()
	out, err := scanSummaries(rows)
	return out, total, err
}

func scanSummaries(rows pgx.Rows) ([]order.OrderSummary, error) {
	var out []order.OrderSummary
	for rows.Next() {
		var (
			sum      order.OrderSummary
			totalRaw string
		)
		if err := rows.Scan(&sum.ID, &sum.UserID, &totalRaw, &sum.Status, &sum.CreatedAt, &sum.UpdatedAt, &sum.ItemCount); err != nil {
			return nil, err
		}
		var err error
		if sum.TotalAmount, err = scanDecimal(totalRaw); err != nil {
			return nil, fmt.Errorf("order %d total: %w", sum.ID, err)
		}
		out = append(out, sum)
	}
	return out, mapErr(rows.Err())
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id domain.OrderID, from, to domain.OrderStatus) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`, int64(id), string(from), string(to))
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AssignDelivery(ctx context.Context, id domain.OrderID, courier domain.UserID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET status = $3, delivery_id = $2, updated_at = now()
		WHERE id = $1 AND status = $4`,
		int64(id), int64(courier), string(domain.OrderStatusProcessing), string(domain.OrderStatusPending))
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) OrderIDByIdempotencyKey(ctx context.Context, key string) (domain.OrderID, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `SELECT order_id FROM order_idempotency WHERE idempotency_key = $1`, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, mapErr(err)
	}
	return domain.OrderID(id), nil
}

func (s *Store) ReadStock(ctx context.Context, productID domain.ProductID) (int, error) {
	var stock int
	err := s.pool.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, int64(productID)).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	return stock, mapErr(err)
}

// --- cart.Store ------------------------------------------------------

func (s *Store) ProductSnapshot(ctx context.Context, id domain.ProductID) (cart.ProductSnapshot, error) {
	var (
		snap      cart.ProductSnapshot
		priceRaw  string
		imagesRaw string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, title, price::text, discount, stock, images
		FROM products WHERE id = $1`, int64(id)).
		Scan(&snap.ID, &snap.Title, &priceRaw, &snap.DiscountPercent, &snap.Stock, &imagesRaw)
	if errors.Is(err, pgx.ErrNoRows) {
		return cart.ProductSnapshot{}, domain.ErrNotFound
	}
	if err != nil {
		return cart.ProductSnapshot{}, mapErr(err)
	}
	if snap.Price, err = scanDecimal(priceRaw); err != nil {
		return cart.ProductSnapshot{}, fmt.Errorf("product %d price: %w", id, err)
	}
	snap.Images = domain.DecodeImages(imagesRaw)
	return snap, nil
}

func (s *Store) CartQuantity(ctx context.Context, userID domain.UserID, productID domain.ProductID) (int, error) {
	var qty int
	err := s.pool.QueryRow(ctx, `
		SELECT quantity FROM cart_items WHERE user_id = $1 AND product_id = $2`,
		int64(userID), int64(productID)).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return qty, mapErr(err)
}

func (s *Store) UpsertCartLine(ctx context.Context, userID domain.UserID, productID domain.ProductID, quantity int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cart_items(user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity`,
		int64(userID), int64(productID), quantity)
	return mapErr(err)
}

func (s *Store) RemoveCartLine(ctx context.Context, userID domain.UserID, productID domain.ProductID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`,
		int64(userID), int64(productID))
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) CartLines(ctx context.Context, userID domain.UserID) ([]cart.Line, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ci.product_id, p.title, ci.quantity, p.price::text, p.discount, p.stock, p.images
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.product_id`, int64(userID))
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []cart.Line
	for rows.Next() {
		var (
			ln        cart.Line
			priceRaw  string
			imagesRaw string
		)
		if err := rows.Scan(&ln.ProductID, &ln.Title, &ln.Quantity, &priceRaw, &ln.DiscountPercent, &ln.Stock, &imagesRaw); err != nil {
			return nil, err
		}
		if ln.Price, err = scanDecimal(priceRaw); err != nil {
			return nil, fmt.Errorf("product %d price: %w", ln.ProductID, err)
		}
		ln.Images = domain.DecodeImages(imagesRaw)
		out = append(out, ln)
	}
	return out, mapErr(rows.Err())
}

// --- catalog.Store ---------------------------------------------------

type catalogTx struct {
	tx pgx.Tx
}

func (s *Store) InTx(ctx context.Context, fn func(tx catalog.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&catalogTx{tx: tx}); err != nil {
		return mapErr(err)
	}
	return mapErr(tx.Commit(ctx))
}

func (t *catalogTx) InsertProduct(ctx context.Context, p *domain.Product) (domain.ProductID, error) {
	imagesJSON, err := domain.EncodeImages(p.Images)
	if err != nil {
		return 0, err
	}
	var categoryID *int64
	if p.CategoryID != nil {
		cid := int64(*p.CategoryID)
		categoryID = &cid
	}
	var id int64
	err = t.tx.QueryRow(ctx, `
		INSERT INTO products(title, description, price, stock, discount, category_id, images)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		p.Title, p.Description, p.Price.StringFixed(2), p.Stock, p.DiscountPercent, categoryID, imagesJSON,
	).Scan(&id)
	if err != nil {
		return 0, mapErr(err)
	}
	return domain.ProductID(id), nil
}

func (t *catalogTx) UpdateProduct(ctx context.Context, id domain.ProductID, patch catalog.ProductPatch) (bool, error) {
	sets := []string{"updated_at = now()"}
	args := []any{int64(id)}
	add := func(expr string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}
	if patch.Title != nil {
		add("title = $%d", strings.TrimSpace(*patch.Title))
	}
	if patch.Description != nil {
		add("description = $%d", *patch.Description)
	}
	if patch.Price != nil {
		add("price = $%d", patch.Price.StringFixed(2))
	}
	if patch.Stock != nil {
		add("stock = $%d", *patch.Stock)
	}
	if patch.CategoryID != nil {
		add("category_id = $%d", int64(*patch.CategoryID))
	}
	if patch.Images != nil {
		imagesJSON, err := domain.EncodeImages(*patch.Images)
		if err != nil {
			return false, err
		}
		add("images = $%d", imagesJSON)
	}
	tag, err := t.tx.Exec(ctx, `UPDATE products SET `+strings.Join(sets, ", ")+` WHERE id = $1`, args...)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *catalogTx) ReplaceCharacteristics(ctx context.Context, id domain.ProductID, chars []domain.Characteristic) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM product_characteristics WHERE product_id = $1`, int64(id)); err != nil {
		return mapErr(err)
	}
	for _, c := range chars {
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO product_characteristics(product_id, name, value)
			VALUES ($1, $2, $3)`, int64(id), c.Name, c.Value); err != nil {
			return mapErr(err)
		}
	}
	return nil
}

func (s *Store) ProductByID(ctx context.Context, id domain.ProductID) (domain.Product, error) {
	var (
		p          domain.Product
		priceRaw   string
		imagesRaw  string
		categoryID *int64
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, title, description, price::text, stock, discount, category_id, images, created_at, updated_at
		FROM products WHERE id = $1`, int64(id)).
		Scan(&p.ID, &p.Title, &p.Description, &priceRaw, &p.Stock, &p.DiscountPercent, &categoryID, &imagesRaw, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Product{}, mapErr(err)
	}
	if p.Price, err = scanDecimal(priceRaw); err != nil {
		return domain.Product{}, fmt.Errorf("product %d price: %w", id, err)
	}
	p.Images = domain.DecodeImages(imagesRaw)
	if categoryID != nil {
		cid := domain.CategoryID(*categoryID)
		p.CategoryID = &cid
	}

	rows, err := s.pool.Query(ctx, `
		SELECT name, value FROM product_characteristics WHERE product_id = $1 ORDER BY id`, int64(id))
	if err != nil {
		return domain.Product{}, mapErr(err)
	}
	defer rows.Close()
	for rows.Next() {
		var c domain.Characteristic
		if err := rows.Scan(&c.Name, &c.Value); err != nil {
			return domain.Product{}, err
		}
		p.Characteristics = append(p.Characteristics, c)
	}
	return p, mapErr(rows.Err())
}

func (s *Store) ListProducts(ctx context.Context, categoryID *domain.CategoryID, search string, page, limit int) ([]domain.Product, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	if categoryID != nil {
		args = append(args, int64(*categoryID))
		where = append(where, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if search != "" {
		args = append(args, "%"+search+"%")
		where = append(where, fmt.Sprintf("title ILIKE $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}

	args = append(args, limit, (page-1)*limit)
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, title, description, price::text, stock, discount, category_id, images, created_at, updated_at
		FROM products WHERE %s ORDER BY id LIMIT $%d OFFSET $%d`, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		var (
			p         domain.Product
			priceRaw  string
			imagesRaw string
			catID     *int64
		)
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &priceRaw, &p.Stock, &p.DiscountPercent, &catID, &imagesRaw, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		if p.Price, err = scanDecimal(priceRaw); err != nil {
			return nil, 0, fmt.Errorf("product %d price: %w", p.ID, err)
		}
		p.Images = domain.DecodeImages(imagesRaw)
		if catID != nil {
			cid := domain.CategoryID(*catID)
			p.CategoryID = &cid
		}
		out = append(out, p)
	}
	return out, total, mapErr(rows.Err())
}

func (s *Store) SetDiscount(ctx context.Context, id domain.ProductID, percent int) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE products SET discount = $2, updated_at = now() WHERE id = $1`, int64(id), percent)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id domain.ProductID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, int64(id))
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) InsertCategory(ctx context.Context, name string) (domain.CategoryID, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `INSERT INTO categories(name) VALUES ($1) RETURNING id`, name).Scan(&id)
	if isUniqueViolation(err) {
		return 0, domain.ValidationError{Field: "name", Reason: "category already exists"}
	}
	if err != nil {
		return 0, mapErr(err)
	}
	return domain.CategoryID(id), nil
}

func (s *Store) DeleteCategory(ctx context.Context, id domain.CategoryID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, int64(id))
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) CategoryProductCount(ctx context.Context, id domain.CategoryID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE category_id = $1`, int64(id)).Scan(&count)
	return count, mapErr(err)
}

func (s *Store) CategoryNameExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM categories WHERE lower(name) = lower($1))`, name).Scan(&exists)
	return exists, mapErr(err)
}
