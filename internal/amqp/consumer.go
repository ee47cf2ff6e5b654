package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
)

// TransactionHandler processes one committed-transaction event.
type TransactionHandler func(ctx context.Context, msg *TransactionCommittedEvent) error

type outcome int

const (
	ack outcome = iota
	requeue
	discard
)

func (o outcome) String() string {
	switch o {
	case ack:
		return "ack"
	case requeue:
		return "requeue"
	default:
		return "discard"
	}
}

// ConsumeTransactionCommitted delivers events from the queue to handler
// until ctx is done. Messages are acknowledged only after handler succeeds.
// Handler errors requeue the message, except validation errors, which can
// never succeed and are dropped.
func (c *Client) ConsumeTransactionCommitted(ctx context.Context, handler TransactionHandler) error {
	if err := c.ensureConnected(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()

	if err := channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}

	msgs, err := channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming transaction events", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}

			settle(ctx, delivery, delivery.MessageId, dispatch(ctx, delivery.Body, handler))
		}
	}
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// settle reports result to the broker and logs any failure to do so.
func settle(ctx context.Context, d acknowledger, id string, result outcome) {
	var err error
	switch result {
	case ack:
		err = d.Ack(false)
	case requeue:
		err = d.Nack(false, true)
	default:
		err = d.Nack(false, false)
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to settle message",
			"id", id,
			"outcome", result.String(),
			"error", err)
	}
}

func dispatch(ctx context.Context, body []byte, handler TransactionHandler) outcome {
	msg, err := TransactionCommittedEventFromJSON(body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to unmarshal message", "error", err)
		return discard
	}

	if err := handler(ctx, msg); err != nil {
		if errors.Is(err, core.ErrValidation) {
			slog.ErrorContext(ctx, "Dropping invalid transaction event",
				"id", msg.ID,
				"user_id", msg.UserID,
				"error", err)
			return discard
		}
		slog.ErrorContext(ctx, "Failed to handle message",
			"id", msg.ID,
			"user_id", msg.UserID,
			"error", err)
		return requeue
	}

	slog.DebugContext(ctx, "Processed transaction event", "id", msg.ID)
	return ack
}
