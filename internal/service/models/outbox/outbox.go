package outbox

import (
	"encoding/json"
	"fmt"
	"time"
)

// Exchange and routing keys for the events the core emits after commit.
// Notification and map-broadcast delivery are external collaborators fed
// through RabbitMQ; the outbox guarantees they fire only for committed state.
const (
	ExchangeDeliveryEvents = "delivery.events"

	RoutingKeyCourierNotify = "courier.notify"
	RoutingKeyOrderStatus   = "order.status"
	RoutingKeyMapUpdate     = "map.update"
)

const defaultMaxRetries = 10

// OutboxMessage is an event queued for publication to RabbitMQ.
type OutboxMessage struct {
	ID           int64
	ExchangeName string
	RoutingKey   string
	Payload      []byte
	ContentType  string
	RetryCount   int
	MaxRetries   int
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	NextRetryAt  time.Time
}

// NewMessage builds a JSON outbox message ready for immediate publication.
func NewMessage(routingKey string, payload any, now time.Time) (OutboxMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("failed to marshal outbox payload: %w", err)
	}

	return OutboxMessage{
		ExchangeName: ExchangeDeliveryEvents,
		RoutingKey:   routingKey,
		Payload:      body,
		ContentType:  "application/json",
		MaxRetries:   defaultMaxRetries,
		CreatedAt:    now,
		UpdatedAt:    now,
		NextRetryAt:  now,
	}, nil
}

// CourierNotification is the payload for courier.notify events.
type CourierNotification struct {
	CourierID int64  `json:"courierId"`
	Title     string `json:"title"`
	Body      string `json:"body"`
}

// OrderStatusChanged is the payload for order.status events.
type OrderStatusChanged struct {
	OrderID    int64  `json:"orderId"`
	CustomerID int64  `json:"customerId"`
	Status     string `json:"status"`
}

// MapUpdate is the payload for map.update events. The broadcast sink pulls
// the fresh snapshot itself; the event only signals that state changed.
type MapUpdate struct {
	Reason  string `json:"reason"`
	OrderID int64  `json:"orderId,omitempty"`
}
