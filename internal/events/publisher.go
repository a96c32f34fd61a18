package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"eatery/internal/models"
)

const Exchange = "orders"

// Event is the notification emitted after an order change has committed.
type Event struct {
	Type          string               `json:"type"`
	OrderID       string               `json:"orderId"`
	UserID        string               `json:"userId"`
	Status        models.OrderStatus   `json:"status"`
	PaymentStatus models.PaymentStatus `json:"paymentStatus"`
	OrderType     models.OrderType     `json:"orderType"`
	TotalAmount   float64              `json:"totalAmount"`
	OccurredAt    time.Time            `json:"occurredAt"`
}

func newEvent(kind string, order models.Order, at time.Time) Event {
	return Event{
		Type:          kind,
		OrderID:       order.ID.Hex(),
		UserID:        order.UserID.Hex(),
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		OrderType:     order.OrderType,
		TotalAmount:   order.TotalAmount,
		OccurredAt:    at.UTC(),
	}
}

func OrderCreated(order models.Order, at time.Time) Event {
	return newEvent("order.created", order, at)
}

func StatusChanged(order models.Order, at time.Time) Event {
	return newEvent("order.status."+string(order.Status), order, at)
}

func PaymentChanged(order models.Order, at time.Time) Event {
	return newEvent("order.payment."+string(order.PaymentStatus), order, at)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops events; used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes JSON events to a durable topic exchange, routed by event type.
// A channel closed by the broker is dropped and reopened on the next publish.
type AMQPPublisher struct {
	url    string
	logger *zap.Logger
	reopen func() (Channel, error)

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       Channel
	declared bool
}

func DialAMQP(url string, logger *zap.Logger) (*AMQPPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &AMQPPublisher{url: url, logger: logger.Named("amqp")}
	p.reopen = p.dial

	ch, err := p.dial()
	if err != nil {
		if p.conn != nil {
			_ = p.conn.Close()
		}
		return nil, err
	}
	p.ch = ch
	return p, nil
}

// NewChannelPublisher wraps an already opened channel. It has nothing to reopen with, so
// once that channel closes every publish fails.
func NewChannelPublisher(ch Channel) *AMQPPublisher {
	return &AMQPPublisher{ch: ch, logger: zap.NewNop()}
}

// dial opens a channel, redialing the connection first when it is gone. Called without p.mu
// from DialAMQP and with it held from Publish.
func (p *AMQPPublisher) dial() (Channel, error) {
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		p.conn = conn
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	go p.watch(ch, ch.NotifyClose(make(chan *amqp.Error, 1)))
	return ch, nil
}

// watch logs a broker-side close once and forgets the channel. A graceful Close closes the
// notification channel without a value and is not logged.
func (p *AMQPPublisher) watch(ch Channel, closed <-chan *amqp.Error) {
	reason, ok := <-closed
	if !ok {
		return
	}
	p.logger.Warn("amqp channel closed by broker", zap.Error(reason))

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == ch {
		p.ch = nil
		p.declared = false
	}
}

func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.publishLocked(ctx, event, body)
	if errors.Is(err, amqp.ErrClosed) && p.reopen != nil {
		p.ch = nil
		p.declared = false
		err = p.publishLocked(ctx, event, body)
	}
	return err
}

func (p *AMQPPublisher) publishLocked(ctx context.Context, event Event, body []byte) error {
	if p.ch == nil {
		if p.reopen == nil {
			return fmt.Errorf("failed to publish event: %w", amqp.ErrClosed)
		}
		ch, err := p.reopen()
		if err != nil {
			return err
		}
		p.logger.Info("amqp channel reopened")
		p.ch = ch
	}

	if !p.declared {
		if err := p.ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare exchange: %w", err)
		}
		p.declared = true
	}

	err := p.ch.PublishWithContext(ctx, Exchange, event.Type, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Timestamp:    event.OccurredAt,
		Type:         event.Type,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reopen = nil
	var firstErr error
	if p.ch != nil {
		firstErr = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
