// Package report serves the read-only administrative reports. Reports
// have no invariants to protect; they read committed state directly
// from the pool.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/olivierola/e-com-backend/internal/order/domain"
)

type Service struct {
	pool *pgxpool.Pool
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

type StockRow struct {
	ProductID domain.ProductID `json:"product_id"`
	Title     string           `json:"title"`
	Stock     int              `json:"stock"`
}

type StockReport struct {
	LowStock      []StockRow `json:"low_stock"`
	TotalProducts int        `json:"total_products"`
	TotalUnits    int        `json:"total_units"`
	OutOfStock    int        `json:"out_of_stock"`
}

// Stock lists products at or below threshold plus inventory totals.
func (s *Service) Stock(ctx context.Context, principal domain.Principal, threshold int) (StockReport, error) {
	if !principal.IsAdmin() {
		return StockReport{}, domain.ErrNotFound
	}
	if threshold < 0 {
		threshold = 0
	}

	var rep StockReport
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(stock), 0), COUNT(*) FILTER (WHERE stock = 0)
		FROM products`).Scan(&rep.TotalProducts, &rep.TotalUnits, &rep.OutOfStock)
	if err != nil {
		return StockReport{}, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, title, stock FROM products
		WHERE stock <= $1
		ORDER BY stock ASC, id ASC`, threshold)
	if err != nil {
		return StockReport{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var r StockRow
		if err := rows.Scan(&r.ProductID, &r.Title, &r.Stock); err != nil {
			return StockReport{}, err
		}
		rep.LowStock = append(rep.LowStock, r)
	}
	return rep, rows.Err()
}

type SalesPeriod struct {
	Period  string          `json:"period"`
	Revenue decimal.Decimal `json:"revenue"`
	Orders  int             `json:"orders"`
}

type TopProduct struct {
	ProductID domain.ProductID `json:"product_id"`
	Title     string           `json:"title"`
	Units     int              `json:"units"`
	Revenue   decimal.Decimal  `json:"revenue"`
}

type SalesReport struct {
	Periods      []SalesPeriod   `json:"periods"`
	TopProducts  []TopProduct    `json:"top_products"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalOrders  int             `json:"total_orders"`
}

// Sales aggregates revenue over delivered orders only, grouped by day
// or month.
func (s *Service) Sales(ctx context.Context, principal domain.Principal, from, to time.Time, groupBy string) (SalesReport, error) {
	if !principal.IsAdmin() {
		return SalesReport{}, domain.ErrNotFound
	}
	var bucket string
	switch groupBy {
	case "", "day":
		bucket = "YYYY-MM-DD"
	case "month":
		bucket = "YYYY-MM"
	default:
		return SalesReport{}, domain.ValidationError{Field: "groupBy", Reason: "must be day or month"}
	}
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, -1, 0)
	}
	if from.After(to) {
		return SalesReport{}, domain.ValidationError{Field: "from", Reason: "must not be after to"}
	}

	rep := SalesReport{TotalRevenue: decimal.Zero}

	rows, err := s.pool.Query(ctx, `
		SELECT to_char(o.created_at, $3) AS period,
		       COALESCE(SUM(o.total_amount), 0)::text,
		       COUNT(*)
		FROM orders o
		WHERE o.status = 'delivered' AND o.created_at BETWEEN $1 AND $2
		GROUP BY period
		ORDER BY period`, from, to, bucket)
	if err != nil {
		return SalesReport{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			p          SalesPeriod
			revenueRaw string
		)
		if err := rows.Scan(&p.Period, &revenueRaw, &p.Orders); err != nil {
			return SalesReport{}, err
		}
		if p.Revenue, err = decimal.NewFromString(revenueRaw); err != nil {
			return SalesReport{}, fmt.Errorf("sales revenue: %w", err)
		}
		rep.Periods = append(rep.Periods, p)
		rep.TotalRevenue = rep.TotalRevenue.Add(p.Revenue)
		rep.TotalOrders += p.Orders
	}
	if err := rows.Err(); err != nil {
		return SalesReport{}, err
	}

	top, err := s.topProducts(ctx, from, to)
	if err != nil {
		return SalesReport{}, err
	}
	rep.TopProducts = top
	return rep, nil
}

func (s *Service) topProducts(ctx context.Context, from, to time.Time) ([]TopProduct, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT oi.product_id, oi.title,
		       SUM(oi.quantity),
		       SUM(oi.price * oi.quantity)::text
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.status = 'delivered' AND o.created_at BETWEEN $1 AND $2
		GROUP BY oi.product_id, oi.title
		ORDER BY SUM(oi.price * oi.quantity) DESC
		LIMIT 10`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TopProduct
	for rows.Next() {
		var (
			t          TopProduct
			revenueRaw string
		)
		if err := rows.Scan(&t.ProductID, &t.Title, &t.Units, &revenueRaw); err != nil {
			return nil, err
		}
		if t.Revenue, err = decimal.NewFromString(revenueRaw); err != nil {
			return nil, errors.New("top product revenue: " + err.Error())
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
