package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// CompletedEvent is published once a checkout reaches DONE.
type CompletedEvent struct {
	TapOrderID         string    `json:"tap_order_id"`
	RestaurantID       int       `json:"restaurant_id"`
	BranchNumber       int       `json:"branch_number"`
	TableNumber        string    `json:"table_number"`
	DishOrderIDs       []string  `json:"dish_order_ids"`
	TotalAmountCharged float64   `json:"total_amount_charged"`
	MSIMonths          int       `json:"msi_months,omitempty"`
	Owner              string    `json:"owner"`
	CompletedAt        time.Time `json:"completed_at"`
}

// RoutingKey is "checkout.completed.<restaurant>.<branch>".
func (e CompletedEvent) RoutingKey() string {
	return fmt.Sprintf("checkout.completed.%d.%d", e.RestaurantID, e.BranchNumber)
}

type Publisher interface {
	PublishCompleted(ctx context.Context, e CompletedEvent) error
}

// NopPublisher drops events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishCompleted(context.Context, CompletedEvent) error { return nil }

// AMQPPublisher publishes to a durable topic exchange with publisher confirms.
type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	acks     <-chan amqp.Confirmation
	exchange string

	mu sync.Mutex
}

func DialAMQP(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare %s: %w", exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}
	acks := ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	return &AMQPPublisher{conn: conn, ch: ch, acks: acks, exchange: exchange}, nil
}

func (p *AMQPPublisher) PublishCompleted(ctx context.Context, e CompletedEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	tag := p.ch.GetNextPublishSeqNo()
	if err := p.ch.PublishWithContext(ctx, p.exchange, e.RoutingKey(), false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Timestamp:    time.Now(),
		Body:         body,
	}); err != nil {
		return err
	}
	return awaitConfirm(ctx, p.acks, tag)
}

// awaitConfirm waits for the confirmation of tag. Confirmations for earlier tags
// belong to publishes that gave up waiting and are discarded.
func awaitConfirm(ctx context.Context, acks <-chan amqp.Confirmation, tag uint64) error {
	for {
		select {
		case conf, ok := <-acks:
			if !ok {
				return errors.New("amqp channel closed before confirm")
			}
			if conf.DeliveryTag < tag {
				continue
			}
			if conf.Ack {
				return nil
			}
			return errors.New("publish nacked by broker")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Ping reports whether the broker connection is alive.
func (p *AMQPPublisher) Ping() error {
	if p.conn == nil || p.conn.IsClosed() {
		return errors.New("amqp connection closed")
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
