package contracts

import "time"

type Event struct {
	EventID   string         `json:"event_id"`
	OrderID   int64          `json:"order_id"`
	UserID    int64          `json:"user_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
}

const (
	EventOrderCreated       = "order.created"
	EventOrderAssigned      = "order.assigned"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderDelivered     = "order.delivered"
	EventOrderCancelled     = "order.cancelled"
)

// TopicNotifications carries customer-facing notifications emitted by
// the delivery flow; the relay drains the outbox into it.
const TopicNotifications = "ecom.notifications"
