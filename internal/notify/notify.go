package notify

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/olivierola/e-com-backend/internal/order/domain"
	"github.com/olivierola/e-com-backend/pkg/contracts"
	"github.com/olivierola/e-com-backend/pkg/logging"
	"github.com/olivierola/e-com-backend/pkg/outbox"
)

// Event is a customer-facing notification. Delivery is best-effort:
// emitters must never fail a business operation on a notify error.
type Event struct {
	EventID string
	Type    string
	OrderID domain.OrderID
	UserID  domain.UserID
	Payload map[string]any
}

func NewEvent(eventType string, orderID domain.OrderID, userID domain.UserID, payload map[string]any) Event {
	return Event{
		EventID: uuid.NewString(),
		Type:    eventType,
		OrderID: orderID,
		UserID:  userID,
		Payload: payload,
	}
}

type Notifier interface {
	Notify(ctx context.Context, evt Event) error
}

// OutboxNotifier persists events into the outbox table; the relay
// publishes them to kafka asynchronously.
type OutboxNotifier struct {
	Pool  *pgxpool.Pool
	Topic string
}

func (n *OutboxNotifier) Notify(ctx context.Context, evt Event) error {
	return outbox.Insert(ctx, n.Pool, evt.EventID, n.Topic, orderKey(evt), contracts.Event{
		EventID:   evt.EventID,
		OrderID:   int64(evt.OrderID),
		UserID:    int64(evt.UserID),
		CreatedAt: time.Now().UTC(),
		Type:      evt.Type,
		Payload:   evt.Payload,
	})
}

// LogNotifier is the fallback when no outbox is configured.
type LogNotifier struct {
	Service string
}

func (n *LogNotifier) Notify(_ context.Context, evt Event) error {
	logging.Log(logging.Fields{
		Service: n.Service,
		OrderID: int64(evt.OrderID),
		UserID:  int64(evt.UserID),
		EventID: evt.EventID,
		Step:    evt.Type,
		Status:  "emitted",
	})
	return nil
}

// orderKey keys kafka messages by order so per-order events stay ordered.
func orderKey(evt Event) string {
	return strconv.FormatInt(int64(evt.OrderID), 10)
}
