package events

import (
	"context"
	"encoding/json"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// InvoiceEventQueue is the durable queue invoice events are published to.
const InvoiceEventQueue = "billing.invoice.events"

// AMQPPublisher publishes invoice events to RabbitMQ. Publish failures are
// logged and dropped; the mutation that produced the event has already
// committed and must not be affected.
type AMQPPublisher struct {
	ch  *amqp.Channel
	log *zap.Logger
	mu  sync.Mutex
}

// NewAMQPPublisher opens a channel and declares the durable event queue.
func NewAMQPPublisher(conn *amqp.Connection, log *zap.Logger) (*AMQPPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	_, err = ch.QueueDeclare(
		InvoiceEventQueue, // name
		true,              // durable
		false,             // autoDelete
		false,             // exclusive
		false,             // noWait
		nil,               // args
	)
	if err != nil {
		return nil, err
	}

	return &AMQPPublisher{ch: ch, log: log}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, event InvoiceEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		p.log.Error("failed to marshal invoice event",
			zap.String("type", event.Type),
			zap.String("invoice_id", event.InvoiceID),
			zap.Error(err))
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx,
		"",                // default exchange
		InvoiceEventQueue, // routing key
		false,             // mandatory
		false,             // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
	if err != nil {
		p.log.Warn("invoice event publish failed",
			zap.String("type", event.Type),
			zap.String("invoice_id", event.InvoiceID),
			zap.Error(err))
	}
}

// Close releases the underlying channel.
func (p *AMQPPublisher) Close() error {
	return p.ch.Close()
}
