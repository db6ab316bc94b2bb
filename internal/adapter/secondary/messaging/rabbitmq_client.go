package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/dukasoko/checkout-gateway/internal/core"
	"github.com/dukasoko/checkout-gateway/internal/logger"
	"github.com/dukasoko/checkout-gateway/internal/port/output"
)

const (
	ExchangeName  = "payments"
	QueueName     = "payment_results"
	RoutingKey    = "payment.finalized"
	PrefetchCount = 1 // Process one event at a time per worker
)

// RabbitMQClient is a secondary adapter that implements the PaymentEvents
// output port
type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	log     *logger.Logger
}

// NewRabbitMQClient creates a new RabbitMQ client (returns interface for ports)
func NewRabbitMQClient(amqpURL string, log *logger.Logger) (output.PaymentEvents, error) {
	return NewRabbitMQClientConcrete(amqpURL, log)
}

// NewRabbitMQClientConcrete creates a new RabbitMQ client (returns concrete type for workers)
func NewRabbitMQClientConcrete(amqpURL string, log *logger.Logger) (*RabbitMQClient, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	// Declare exchange
	err = channel.ExchangeDeclare(
		ExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	// Declare queue
	_, err = channel.QueueDeclare(
		QueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	// Bind queue to exchange
	err = channel.QueueBind(
		QueueName,
		RoutingKey,
		ExchangeName,
		false,
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	return &RabbitMQClient{
		conn:    conn,
		channel: channel,
		log:     log.With("component", "messaging"),
	}, nil
}

// PublishPaymentResult publishes a terminal payment result
func (c *RabbitMQClient) PublishPaymentResult(ctx context.Context, event output.PaymentResultEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = c.channel.PublishWithContext(
		ctx,
		ExchangeName,
		RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent, // Make message persistent
			Body:         body,
			Timestamp:    event.OccurredAt,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	c.log.Info("published payment result",
		"order_id", event.OrderID.String(),
		"state", string(event.State))
	return nil
}

// ConsumePaymentResults starts consuming payment-result events
func (c *RabbitMQClient) ConsumePaymentResults(handler func(output.PaymentResultEvent) error) error {
	// Set QoS to process one event at a time
	err := c.channel.Qos(
		PrefetchCount,
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := c.channel.Consume(
		QueueName,
		"",    // consumer tag
		false, // auto-ack (we'll manually ack after processing)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.log.Info("started consuming payment results")

	go func() {
		for msg := range msgs {
			var event output.PaymentResultEvent
			if err := json.Unmarshal(msg.Body, &event); err != nil {
				c.log.Error("failed to unmarshal event", logger.Err(err))
				msg.Nack(false, false) // Malformed, do not requeue
				continue
			}

			// Process the event
			if err := handler(event); err != nil {
				// Duplicate or stale events are acked so the queue drains;
				// transient failures requeue for retry
				if isTerminalError(err) {
					c.log.Warn("dropping duplicate or stale event",
						"order_id", event.OrderID.String(), logger.Err(err))
					msg.Ack(false)
				} else {
					c.log.Error("failed to process event, requeueing",
						"order_id", event.OrderID.String(), logger.Err(err))
					msg.Nack(false, true)
				}
				continue
			}

			// Successfully processed
			msg.Ack(false)
		}
	}()

	return nil
}

// Close closes the RabbitMQ connection
func (c *RabbitMQClient) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// isTerminalError checks if an error means the event can never be processed
// (duplicate delivery or order gone), as opposed to a transient failure
func isTerminalError(err error) bool {
	return errors.Is(err, core.ErrStatusConflict) || errors.Is(err, core.ErrOrderNotFound)
}
