package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// bench-runner drives checkout load against order-service. Each worker
// acts as its own customer: it adds a product to its cart and places an
// order, so concurrent workers contend on the same product rows.

type benchResult struct {
	Timestamp          string         `json:"timestamp"`
	BaseURL            string         `json:"base_url"`
	ProductID          int64          `json:"product_id"`
	Quantity           int            `json:"quantity"`
	Transactions       int            `json:"transactions"`
	Concurrency        int            `json:"concurrency"`
	SuccessfulRequests int            `json:"successful_requests"`
	ErrorRequests      int            `json:"error_requests"`
	DurationSeconds    float64        `json:"duration_seconds"`
	AvgLatencyMs       float64        `json:"avg_latency_ms"`
	MinLatencyMs       float64        `json:"min_latency_ms"`
	MaxLatencyMs       float64        `json:"max_latency_ms"`
	P50LatencyMs       float64        `json:"p50_latency_ms"`
	P90LatencyMs       float64        `json:"p90_latency_ms"`
	P95LatencyMs       float64        `json:"p95_latency_ms"`
	P99LatencyMs       float64        `json:"p99_latency_ms"`
	ThroughputRPS      float64        `json:"throughput_rps"`
	StatusCounts       map[string]int `json:"status_counts"`
	ErrorClasses       map[string]int `json:"error_classes"`
	FirstError         string         `json:"first_error"`
}

type tally struct {
	mu           sync.Mutex
	success      int
	errors       int
	total        time.Duration
	minLatency   time.Duration
	maxLatency   time.Duration
	latenciesMs  []float64
	statusCounts map[string]int
	errorClasses map[string]int
	firstError   string
}

func newTally() *tally {
	return &tally{
		statusCounts: make(map[string]int),
		errorClasses: make(map[string]int),
	}
}

func (t *tally) record(latency time.Duration, status int, class string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.statusCounts[strconv.Itoa(status)]++
	if class != "" {
		t.errorClasses[class]++
	}
	if err != nil {
		t.errors++
		if t.firstError == "" {
			t.firstError = err.Error()
		}
		return
	}
	t.success++
	t.total += latency
	if t.minLatency == 0 || latency < t.minLatency {
		t.minLatency = latency
	}
	if latency > t.maxLatency {
		t.maxLatency = latency
	}
	t.latenciesMs = append(t.latenciesMs, float64(latency.Milliseconds()))
}

func main() {
	baseURL := flag.String("base-url", getenv("ORDER_BASE_URL", "http://localhost:8080"), "order-service base URL")
	productID := flag.Int64("product-id", 1, "product every transaction buys")
	quantity := flag.Int("quantity", 1, "quantity per transaction")
	total := flag.Int("total", 1000, "total number of transactions")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	userBase := flag.Int64("user-base", 100000, "first synthetic customer id; worker i uses user-base+i")
	timeout := flag.Duration("timeout", 10*time.Second, "per-request timeout")
	output := flag.String("output", "", "optional output path for JSON result")
	flag.Parse()

	if *total <= 0 {
		fmt.Fprintln(os.Stderr, "total must be > 0")
		os.Exit(1)
	}
	if *concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "concurrency must be > 0")
		os.Exit(1)
	}

	tasks := make(chan struct{})
	var wg sync.WaitGroup
	t := newTally()
	client := &http.Client{}

	start := time.Now()
	for i := 0; i < *concurrency; i++ {
		userID := *userBase + int64(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range tasks {
				latency, status, class, err := runCheckout(client, *baseURL, userID, *productID, *quantity, *timeout)
				t.record(latency, status, class, err)
			}
		}()
	}

	for i := 0; i < *total; i++ {
		tasks <- struct{}{}
	}
	close(tasks)
	wg.Wait()

	duration := time.Since(start)
	avgLatency := 0.0
	minLatency := 0.0
	maxLatency := 0.0
	if t.success > 0 {
		avgLatency = float64(t.total.Milliseconds()) / float64(t.success)
		minLatency = float64(t.minLatency.Milliseconds())
		maxLatency = float64(t.maxLatency.Milliseconds())
	}
	p50, p90, p95, p99 := calcPercentiles(t.latenciesMs)

	result := benchResult{
		Timestamp:          time.Now().UTC().Format(time.RFC3339),
		BaseURL:            *baseURL,
		ProductID:          *productID,
		Quantity:           *quantity,
		Transactions:       *total,
		Concurrency:        *concurrency,
		SuccessfulRequests: t.success,
		ErrorRequests:      t.errors,
		DurationSeconds:    duration.Seconds(),
		AvgLatencyMs:       avgLatency,
		MinLatencyMs:       minLatency,
		MaxLatencyMs:       maxLatency,
		P50LatencyMs:       p50,
		P90LatencyMs:       p90,
		P95LatencyMs:       p95,
		P99LatencyMs:       p99,
		ThroughputRPS:      float64(t.success) / duration.Seconds(),
		StatusCounts:       t.statusCounts,
		ErrorClasses:       t.errorClasses,
		FirstError:         t.firstError,
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode result: %v\n", err)
		os.Exit(1)
	}

	if *output != "" {
		if err := writeResult(*output, result); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write output: %v\n", err)
			os.Exit(1)
		}
	}
}

// runCheckout performs one full transaction: add to cart, then place
// the order. The reported latency covers both calls.
func runCheckout(client *http.Client, baseURL string, userID, productID int64, quantity int, timeout time.Duration) (time.Duration, int, string, error) {
	start := time.Now()

	status, body, err := post(client, baseURL+"/cart/items", userID, timeout, "", map[string]any{
		"productId": productID,
		"quantity":  quantity,
	})
	if err != nil {
		return time.Since(start), status, classifyError(status, body), err
	}

	status, body, err = post(client, baseURL+"/orders", userID, timeout, uuid.NewString(), map[string]any{
		"deliveryAddress": fmt.Sprintf("bench lane %d", userID),
	})
	latency := time.Since(start)
	if err != nil {
		return latency, status, classifyError(status, body), err
	}
	return latency, status, "", nil
}

func post(client *http.Client, url string, userID int64, timeout time.Duration, idemKey string, payload any) (int, string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, "", err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", strconv.FormatInt(userID, 10))
	req.Header.Set("X-User-Role", "customer")
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	body := strings.TrimSpace(string(raw))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, body, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	return resp.StatusCode, body, nil
}

func classifyError(status int, body string) string {
	switch {
	case status == http.StatusConflict && strings.Contains(body, "out_of_stock_products"):
		return "out_of_stock"
	case status == http.StatusServiceUnavailable:
		return "transient"
	case status >= 500:
		return "http_5xx"
	case status >= 400:
		return "http_4xx"
	default:
		return "transport"
	}
}

func writeResult(path string, result benchResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func calcPercentiles(values []float64) (float64, float64, float64, float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}
	sort.Float64s(values)
	return percentile(values, 0.50), percentile(values, 0.90), percentile(values, 0.95), percentile(values, 0.99)
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
