package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/olivierola/e-com-backend/internal/order/domain"
	"github.com/olivierola/e-com-backend/pkg/metrics"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy onto HTTP. Conflict replies
// carry the corrective detail (shortages, current/allowed status).
func writeError(w http.ResponseWriter, err error) {
	var (
		validation domain.ValidationError
		stock      domain.InsufficientStockError
		transition domain.InvalidTransitionError
	)
	switch {
	case errors.Is(err, domain.ErrEmptyCart):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "cart is empty"})
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": validation.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
	case errors.As(err, &stock):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":                 "insufficient stock",
			"out_of_stock_products": stock.Shortages,
		})
	case errors.As(err, &transition):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":          transition.Error(),
			"current_status": transition.Current,
			"allowed_next":   transition.AllowedNext,
		})
	case domain.IsTransient(err):
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "temporary storage conflict, retry"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
	}
}

// principal pulls the trusted identity installed by the auth gateway.
func principal(r *http.Request) (domain.Principal, bool) {
	id, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	if err != nil || id <= 0 {
		return domain.Principal{}, false
	}
	role := domain.Role(r.Header.Get("X-User-Role"))
	switch role {
	case domain.RoleCustomer, domain.RoleDelivery, domain.RoleAdmin:
	default:
		return domain.Principal{}, false
	}
	return domain.Principal{ID: domain.UserID(id), Role: role}, true
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := parseID(r.PathValue(name))
	return id, err == nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

func totalPages(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records request counts and latency per handler.
func instrument(m *metrics.ServerMetrics, name string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		m.Requests.WithLabelValues(name, strconv.Itoa(rec.status)).Inc()
		m.LatencyMS.WithLabelValues(name).Observe(float64(time.Since(start).Milliseconds()))
	}
}
