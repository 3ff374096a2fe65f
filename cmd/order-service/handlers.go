package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/olivierola/e-com-backend/internal/cart"
	"github.com/olivierola/e-com-backend/internal/catalog"
	"github.com/olivierola/e-com-backend/internal/order"
	"github.com/olivierola/e-com-backend/internal/order/domain"
	"github.com/olivierola/e-com-backend/internal/report"
	"github.com/olivierola/e-com-backend/pkg/idempotency"
	"github.com/olivierola/e-com-backend/pkg/metrics"
)

type application struct {
	orders  *order.Service
	carts   *cart.Service
	catalog *catalog.Service
	reports *report.Service
	metrics *metrics.ServerMetrics
	pool    *pgxpool.Pool
}

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := app.pool.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "db_error"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	mux.Handle("GET /metrics", metrics.Handler())

	handle := func(pattern, name string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, instrument(app.metrics, name, app.authenticated(h)))
	}

	// Catalog (read side is public to any authenticated principal).
	handle("GET /products", "list_products", app.handleListProducts)
	handle("GET /products/{id}", "get_product", app.handleGetProduct)
	handle("GET /products/{id}/stock", "read_stock", app.handleReadStock)

	// Cart.
	handle("GET /cart", "get_cart", app.handleGetCart)
	handle("POST /cart/items", "add_to_cart", app.handleAddToCart)
	handle("PUT /cart/items/{id}", "update_cart_item", app.handleUpdateCartItem)
	handle("DELETE /cart/items/{id}", "remove_cart_item", app.handleRemoveCartItem)

	// Orders.
	handle("POST /orders", "create_order", app.handleCreateOrder)
	handle("GET /orders", "list_orders", app.handleListUserOrders)
	handle("GET /orders/{id}", "get_order", app.handleGetOrder)
	handle("POST /orders/{id}/cancel", "cancel_order", app.handleCancelOrder)

	// Delivery.
	handle("GET /delivery/orders", "delivery_orders", app.handleDeliveryOrders)
	handle("PUT /delivery/orders/{id}/status", "update_status", app.handleUpdateStatus)
	handle("POST /delivery/orders/{id}/complete", "complete_delivery", app.handleCompleteDelivery)

	// Administration.
	handle("POST /admin/products", "create_product", app.handleCreateProduct)
	handle("PUT /admin/products/{id}", "update_product", app.handleUpdateProduct)
	handle("PUT /admin/products/{id}/discount", "set_discount", app.handleSetDiscount)
	handle("DELETE /admin/products/{id}", "delete_product", app.handleDeleteProduct)
	handle("POST /admin/categories", "create_category", app.handleCreateCategory)
	handle("DELETE /admin/categories/{id}", "delete_category", app.handleDeleteCategory)
	handle("GET /admin/orders", "list_all_orders", app.handleListAllOrders)
	handle("PUT /admin/orders/{id}/delivery", "assign_delivery", app.handleAssignDelivery)
	handle("GET /admin/reports/stock", "stock_report", app.handleStockReport)
	handle("GET /admin/reports/sales", "sales_report", app.handleSalesReport)

	return mux
}

// authenticated rejects requests without a trusted principal. Handlers
// re-read the principal from the headers themselves, so no values ride
// on the request context.
func (app *application) authenticated(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := principal(r); !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "authentication required"})
			return
		}
		h(w, r)
	}
}

// --- catalog ---------------------------------------------------------

func (app *application) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var categoryID *domain.CategoryID
	if raw := q.Get("categoryId"); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			writeError(w, domain.ValidationError{Field: "categoryId", Reason: "must be a positive integer"})
			return
		}
		cid := domain.CategoryID(id)
		categoryID = &cid
	}
	page, limit := pageParams(r)
	products, total, err := app.catalog.ListProducts(r.Context(), categoryID, q.Get("search"), page, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"products": productViews(products),
		"pagination": map[string]any{
			"total":      total,
			"totalPages": totalPages(total, limit),
			"page":       page,
			"limit":      limit,
		},
	})
}

func (app *application) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, domain.ErrNotFound)
		return
	}
	p, err := app.catalog.Product(r.Context(), domain.ProductID(id))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": productView(p)})
}

func (app *application) handleReadStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, domain.ErrNotFound)
		return
	}
	stock, err := app.orders.ReadStock(r.Context(), domain.ProductID(id))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"productId": id, "stock": stock})
}

// --- cart ------------------------------------------------------------

func (app *application) handleGetCart(w http.ResponseWriter, r *http.Request) {
	p, _ := principal(r)
	view, err := app.carts.Contents(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(view.Items))
	for _, it := range view.Items {
		items = append(items, map[string]any{
			"productId":       it.ProductID,
			"title":           it.Title,
			"quantity":        it.Quantity,
			"price":           it.Price.StringFixed(2),
			"discountedPrice": it.DiscountedPrice.StringFixed(2),
			"subtotal":        it.Subtotal.StringFixed(2),
			"stock":           it.Stock,
			"images":          it.Images,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cartItems": items,
		"summary": map[string]any{
			"totalItems":    view.Summary.TotalItems,
			"totalQuantity": view.Summary.TotalQuantity,
			"totalPrice":    view.Summary.TotalPrice.StringFixed(2),
		},
	})
}

func (app *application) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	p, _ := principal(r)
	var req struct {
		ProductID int64 `json:"productId"`
		Quantity  int   `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ValidationError{Field: "body", Reason: "invalid json"})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	qty, err := app.carts.Add(r.Context(), p, domain.ProductID(req.ProductID), req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"productId": req.ProductID, "quantity": qty})
}

func (app *application) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	p, _ := principal(r)
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, domain.ErrNotFound)
		return
	}
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ValidationError{Field: "body", Reason: "invalid json"})
		return
	}
	if err := app.carts.SetQuantity(r.Context(), p, domain.ProductID(id), req.Quantity); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"productId": id, "quantity": req.Quantity})
}

func (app *application) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	p, _ := principal(r)
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, domain.ErrNotFound)
		return
	}
	if err := app.carts.Remove(r.Context(), p, domain.ProductID(id)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": id})
}

// --- orders ----------------------------------------------------------

func (app *application) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	p, _ := principal(r)
	var req struct {
		DeliveryAddress string `json:"deliveryAddress"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ValidationError{Field: "body", Reason: "invalid json"})
		return
	}
	res, err := app.orders.Checkout(r.Context(), p, order.CheckoutInput{
		DeliveryAddress: req.DeliveryAddress,
		IdempotencyKey:  idempotency.Key(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	code := http.StatusCreated
	if res.Replayed {
		code = http.StatusOK
	}
	writeJSON(w, code, map[string]any{
		"orderId":     res.OrderID,
		"totalAmount": res.TotalAmount.StringFixed(2),
		"status":      res.Status,
	})
}

func (app *application) handleListUserOrders(w http.ResponseWriter, r *http.Request) {
	p, _ := principal(r)
	page, limit := pageParams(r)
	summaries, total, err := app.orders.ListUserOrders(r.Context(), p, page, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders": summaryViews(summaries),
		"pagination": map[string]any{
			"total":      total,
			"totalPages": totalPages(total, limit),
			"page":       page,
			"limit":      limit,
		},
	})
}

func (app *application) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	p, _ := principal(r)
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, domain.ErrNotFound)
		return
	}
	o, lines, err := app.orders.Order(r.Context(), p, domain.OrderID(id))
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(lines))
	for _, ln := range lines {
		items = append(items, map[string]any{
			"productId": ln.ProductID,
			"title":     ln.Title,
			"quantity":  ln.Quantity,
			"price":     ln.UnitPrice.StringFixed(2),
			"subtotal":  ln.Subtotal().StringFixed(2),
		})
	}
	view := map[string]any{
		"id":              o.ID,
		"totalAmount":     o.TotalAmount.StringFixed(2),
		"status":          o.Status,
		"deliveryAddress": o.DeliveryAddress,
		"createdAt":       o.CreatedAt,
		"updatedAt":       o.UpdatedAt,
		"items":           items,
	}
	if o.DeliveryID != nil {
		view["deliveryId"] = *o.DeliveryID
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": view})
}

func (app *application) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	p, _ := principal(r)
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, domain.ErrNotFound)
		return
	}
	if err := app.orders.Cancel(r.Context(), p, domain.OrderID(id)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orderId": id, "status": domain.OrderStatusCancelled})
}

// --- delivery --------------------------------------------------------

func (app *application) handleDeliveryOrders(w http.ResponseWriter, r *http.Request) {
	p, _ := principal(r)
	page, limit := pageParams(r)
	status := domain.OrderStatus(r.URL.Query().Get("status"))
	summaries, total, err := app.orders.ListDeliveryOrders(r.Context(), p, status, page, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders": summaryViews(summaries),
		"pagination": map[string]any{
			"total":      total,
			"totalPages": totalPages(total, limit),
			"page":       page,
			"limit":      limit,
		},
	})
}

func (app *application) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	p, _ := principal(r)
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, domain.ErrNotFound)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ValidationError{Field: "body", Reason: "invalid json"})
		return
	}
	newStatus, err := app.orders.UpdateStatus(r.Context(), p, domain.OrderID(id), domain.OrderStatus(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orderId": id, "newStatus": newStatus})
}

func (app *application) handleCompleteDelivery(w http.ResponseWriter, r *http.Request) {
	p, _ := principal(r)
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, domain.ErrNotFound)
		return
	}
	status, err := app.orders.CompleteDelivery(r.Context(), p, domain.OrderID(id))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orderId": id, "status": status})
}

// --- admin -----------------------------------------------------------

type productPayload struct {
	Title           string                  `json:"title"`
	Description     string                  `json:"description"`
	Price           *string                 `json:"price"`
	Stock           *int                    `json:"stock"`
	Discount        *int                    `json:"discount"`
	CategoryID      *int64                  `json:"categoryId"`
	Images          *[]string               `json:"images"`
	Characteristics []domain.Characteristic `json:"characteristics"`
}

func (app *application) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	p, _ := principal(r)
	var req productPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ValidationError{Field: "body", Reason: "invalid json"})
		return
	}
	price := decimal.Zero
	if req.Price != nil {
		var err error
		if price, err = decimal.NewFromString(*req.Price); err != nil {
			writeError(w, domain.ValidationError{Field: "price", Reason: "must be a decimal"})
			return
		}
	}
	in := catalog.CreateProductInput{
		Title:           req.Title,
		Description:     req.Description,
		Price:           price,
		Characteristics: req.Characteristics,
	}
	if req.Stock != nil {
		in.Stock = *req.Stock
	}
	if req.Discount != nil {
		in.DiscountPercent = *req.Discount
	}
	if req.CategoryID != nil {
		cid := domain.CategoryID(*req.CategoryID)
		in.CategoryID = &cid
	}
	if req.Images != nil {
		in.Images = *req.Images
	}
	created, err := app.catalog.CreateProduct(r.Context(), p, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"product": productView(created)})
}

func (app *application) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	p, _ := principal(r)
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, domain.ErrNotFound)
		return
	}
	var req struct {
		Title           *string                  `json:"title"`
		Description     *string                  `json:"description"`
		Price           *string                  `json:"price"`
		Stock           *int                     `json:"stock"`
		CategoryID      *int64                   `json:"categoryId"`
		Images          *[]string                `json:"images"`
		Characteristics *[]domain.Characteristic `json:"characteristics"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ValidationError{Field: "body", Reason: "invalid json"})
		return
	}
	patch := catalog.ProductPatch{
		Title:           req.Title,
		Description:     req.Description,
		Stock:           req.Stock,
		Images:          req.Images,
		Characteristics: req.Characteristics,
	}
	if req.Price != nil {
		price, err := decimal.NewFromString(*req.Price)
		if err != nil {
			writeError(w, domain.ValidationError{Field: "price", Reason: "must be a decimal"})
			return
		}
		patch.Price = &price
	}
	if req.CategoryID != nil {
		cid := domain.CategoryID(*req.CategoryID)
		patch.CategoryID = &cid
	}
	if err := app.catalog.UpdateProduct(r.Context(), p, domain.ProductID(id), patch); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"productId": id})
}

func (app *application) handleSetDiscount(w http.ResponseWriter, r *http.Request) {
	p, _ := principal(r)
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, domain.ErrNotFound)
		return
	}
	var req struct {
		Discount int `json:"discount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ValidationError{Field: "body", Reason: "invalid json"})
		return
	}
	if err := app.catalog.SetDiscount(r.Context(), p, domain.ProductID(id), req.Discount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"productId": id, "discount": req.Discount})
}

func (app *application) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	p, _ := principal(r)
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, domain.ErrNotFound)
		return
	}
	if err := app.catalog.DeleteProduct(r.Context(), p, domain.ProductID(id)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (app *application) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	p, _ := principal(r)
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ValidationError{Field: "body", Reason: "invalid json"})
		return
	}
	c, err := app.catalog.CreateCategory(r.Context(), p, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"category": map[string]any{"id": c.ID, "name": c.Name}})
}

func (app *application) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	p, _ := principal(r)
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, domain.ErrNotFound)
		return
	}
	if err := app.catalog.DeleteCategory(r.Context(), p, domain.CategoryID(id)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (app *application) handleListAllOrders(w http.ResponseWriter, r *http.Request) {
	p, _ := principal(r)
	q := r.URL.Query()
	filter := order.OrderFilter{Status: domain.OrderStatus(q.Get("status"))}
	if raw := q.Get("userId"); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			writeError(w, domain.ValidationError{Field: "userId", Reason: "must be a positive integer"})
			return
		}
		filter.UserID = domain.UserID(id)
	}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, domain.ValidationError{Field: "from", Reason: "must be YYYY-MM-DD"})
			return
		}
		filter.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, domain.ValidationError{Field: "to", Reason: "must be YYYY-MM-DD"})
			return
		}
		filter.To = t
	}
	page, limit := pageParams(r)
	summaries, total, err := app.orders.ListAllOrders(r.Context(), p, filter, page, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders": summaryViews(summaries),
		"pagination": map[string]any{
			"total":      total,
			"totalPages": totalPages(total, limit),
			"page":       page,
			"limit":      limit,
		},
	})
}

func (app *application) handleAssignDelivery(w http.ResponseWriter, r *http.Request) {
	p, _ := principal(r)
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, domain.ErrNotFound)
		return
	}
	var req struct {
		DeliveryID int64 `json:"deliveryId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DeliveryID <= 0 {
		writeError(w, domain.ValidationError{Field: "deliveryId", Reason: "required"})
		return
	}
	if err := app.orders.AssignDelivery(r.Context(), p, domain.OrderID(id), domain.UserID(req.DeliveryID)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orderId": id, "deliveryId": req.DeliveryID, "status": domain.OrderStatusProcessing})
}

func (app *application) handleStockReport(w http.ResponseWriter, r *http.Request) {
	p, _ := principal(r)
	threshold := 10
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		if v, err := parseID(raw); err == nil {
			threshold = int(v)
		}
	}
	rep, err := app.reports.Stock(r.Context(), p, threshold)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (app *application) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	p, _ := principal(r)
	q := r.URL.Query()
	var from, to time.Time
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, domain.ValidationError{Field: "from", Reason: "must be YYYY-MM-DD"})
			return
		}
		from = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, domain.ValidationError{Field: "to", Reason: "must be YYYY-MM-DD"})
			return
		}
		to = t
	}
	rep, err := app.reports.Sales(r.Context(), p, from, to, q.Get("groupBy"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// --- view helpers ----------------------------------------------------

func productView(p domain.Product) map[string]any {
	view := map[string]any{
		"id":              p.ID,
		"title":           p.Title,
		"description":     p.Description,
		"price":           p.Price.StringFixed(2),
		"stock":           p.Stock,
		"discount":        p.DiscountPercent,
		"images":          p.Images,
		"characteristics": p.Characteristics,
	}
	if p.CategoryID != nil {
		view["categoryId"] = *p.CategoryID
	}
	return view
}

func productViews(products []domain.Product) []map[string]any {
	out := make([]map[string]any, 0, len(products))
	for _, p := range products {
		out = append(out, productView(p))
	}
	return out
}

func summaryViews(summaries []order.OrderSummary) []map[string]any {
	out := make([]map[string]any, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, map[string]any{
			"id":          s.ID,
			"userId":      s.UserID,
			"totalAmount": s.TotalAmount.StringFixed(2),
			"status":      s.Status,
			"itemCount":   s.ItemCount,
			"createdAt":   s.CreatedAt,
			"updatedAt":   s.UpdatedAt,
		})
	}
	return out
}
