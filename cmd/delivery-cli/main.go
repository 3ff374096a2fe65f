package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// delivery-cli is a terminal front end for couriers: it lists the
// orders assigned to a courier and advances them along the delivery
// chain against order-service.

type orderRow struct {
	ID          int64  `json:"id"`
	TotalAmount string `json:"totalAmount"`
	Status      string `json:"status"`
	ItemCount   int    `json:"itemCount"`
}

type model struct {
	client   *apiClient
	orders   []orderRow
	selected int
	status   string
	busy     bool
}

func initialModel(client *apiClient) model {
	return model{client: client, status: "Loading orders..."}
}

func (m model) Init() tea.Cmd {
	return fetchOrdersCmd(m.client)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up":
			if m.selected > 0 {
				m.selected--
			}
		case "down":
			if m.selected < len(m.orders)-1 {
				m.selected++
			}
		case "r":
			if m.busy {
				return m, nil
			}
			m.busy = true
			m.status = "Refreshing..."
			return m, fetchOrdersCmd(m.client)
		case "enter":
			if m.busy || len(m.orders) == 0 {
				return m, nil
			}
			row := m.orders[m.selected]
			m.busy = true
			m.status = fmt.Sprintf("Advancing order %d...", row.ID)
			return m, advanceCmd(m.client, row)
		}
	case ordersMsg:
		m.busy = false
		m.orders = msg.orders
		if m.selected >= len(m.orders) {
			m.selected = 0
		}
		if msg.err != nil {
			m.status = fmt.Sprintf("Load failed: %v", msg.err)
		} else {
			m.status = fmt.Sprintf("%d assigned orders", len(m.orders))
		}
	case advancedMsg:
		m.busy = false
		if msg.err != nil {
			m.status = fmt.Sprintf("Update failed: %v", msg.err)
			return m, nil
		}
		m.status = fmt.Sprintf("Order %d -> %s", msg.orderID, msg.newStatus)
		return m, fetchOrdersCmd(m.client)
	}
	return m, nil
}

func (m model) View() string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "delivery console (courier %d)\n\n", m.client.courierID)
	if len(m.orders) == 0 {
		fmt.Fprintln(b, "  no assigned orders")
	}
	for i, row := range m.orders {
		marker := " "
		if i == m.selected {
			marker = ">"
		}
		fmt.Fprintf(b, " %s #%d  %-10s  %s  (%d items)\n", marker, row.ID, row.Status, row.TotalAmount, row.ItemCount)
	}
	fmt.Fprintln(b, "")
	fmt.Fprintf(b, "Status: %s\n", m.status)
	fmt.Fprintln(b, "\nControls: up/down select, enter advance status, r refresh, q quit")
	return b.String()
}

type ordersMsg struct {
	orders []orderRow
	err    error
}

type advancedMsg struct {
	orderID   int64
	newStatus string
	err       error
}

func fetchOrdersCmd(client *apiClient) tea.Cmd {
	return func() tea.Msg {
		orders, err := client.assignedOrders()
		return ordersMsg{orders: orders, err: err}
	}
}

// advanceCmd moves the order one step along the delivery chain;
// in_transit finishes through /complete instead of the status endpoint.
func advanceCmd(client *apiClient, row orderRow) tea.Cmd {
	return func() tea.Msg {
		var next string
		switch row.Status {
		case "processing":
			next = "picked_up"
		case "picked_up":
			next = "in_transit"
		case "in_transit":
			status, err := client.completeDelivery(row.ID)
			return advancedMsg{orderID: row.ID, newStatus: status, err: err}
		default:
			return advancedMsg{orderID: row.ID, err: fmt.Errorf("order is %s, nothing to advance", row.Status)}
		}
		status, err := client.updateStatus(row.ID, next)
		return advancedMsg{orderID: row.ID, newStatus: status, err: err}
	}
}

type apiClient struct {
	baseURL   string
	courierID int64
	http      *http.Client
}

func (c *apiClient) do(method, path string, payload any) (map[string]any, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", strconv.FormatInt(c.courierID, 10))
	req.Header.Set("X-User-Role", "delivery")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		parsed = map[string]any{}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if msg, ok := parsed["error"].(string); ok && msg != "" {
			return nil, fmt.Errorf("%s", msg)
		}
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return parsed, nil
}

func (c *apiClient) assignedOrders() ([]orderRow, error) {
	parsed, err := c.do(http.MethodGet, "/delivery/orders?limit=100", nil)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(parsed["orders"])
	if err != nil {
		return nil, err
	}
	var orders []orderRow
	if err := json.Unmarshal(raw, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *apiClient) updateStatus(orderID int64, status string) (string, error) {
	parsed, err := c.do(http.MethodPut, fmt.Sprintf("/delivery/orders/%d/status", orderID), map[string]any{"status": status})
	if err != nil {
		return "", err
	}
	newStatus, _ := parsed["newStatus"].(string)
	return newStatus, nil
}

func (c *apiClient) completeDelivery(orderID int64) (string, error) {
	parsed, err := c.do(http.MethodPost, fmt.Sprintf("/delivery/orders/%d/complete", orderID), nil)
	if err != nil {
		return "", err
	}
	status, _ := parsed["status"].(string)
	return status, nil
}

func main() {
	baseURL := flag.String("base-url", getenv("ORDER_BASE_URL", "http://localhost:8080"), "order-service base URL")
	courierID := flag.Int64("courier", 0, "courier user id")
	flag.Parse()

	if *courierID <= 0 {
		fmt.Fprintln(os.Stderr, "courier id is required (-courier)")
		os.Exit(1)
	}

	client := &apiClient{
		baseURL:   strings.TrimRight(*baseURL, "/"),
		courierID: *courierID,
		http:      &http.Client{},
	}
	if _, err := tea.NewProgram(initialModel(client)).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "cli error: %v\n", err)
		os.Exit(1)
	}
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}
