// Package amqp carries the record-sync queue between the API server
// and the backup worker.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key matches the queue name on a direct exchange.
	err = c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// PublishRecordSync enqueues a sync request for one gift record.
func (c *Client) PublishRecordSync(ctx context.Context, recordID string, version int64) error {
	body, err := wrap(TypeRecordSync, NewRecordSyncMessage(recordID, version))
	if err != nil {
		return err
	}
	if err := c.publish(ctx, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published record sync message",
		"record_id", recordID,
		"version", version,
		"queue", c.queueName)
	return nil
}

// PublishRecordDelete enqueues a backup-ledger delete for a record.
func (c *Client) PublishRecordDelete(ctx context.Context, recordID string) error {
	body, err := wrap(TypeRecordDelete, NewRecordDeleteMessage(recordID))
	if err != nil {
		return err
	}
	if err := c.publish(ctx, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published record delete message",
		"record_id", recordID,
		"queue", c.queueName)
	return nil
}

func (c *Client) publish(ctx context.Context, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.channel.PublishWithContext(
		ctx,
		c.exchangeName,
		c.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// ConsumeMessages processes queue messages with manual acks until the
// context is cancelled. Handler errors requeue the delivery; malformed
// messages are dropped.
func (c *Client) ConsumeMessages(
	ctx context.Context,
	onSync func(context.Context, *RecordSyncMessage) error,
	onDelete func(context.Context, *RecordDeleteMessage) error,
) error {
	msgs, err := c.channel.Consume(
		c.queueName,
		"",    // consumer
		false, // auto-ack off, we ack manually
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming record sync messages", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			c.dispatch(ctx, delivery, onSync, onDelete)
		}
	}
}

func (c *Client) dispatch(
	ctx context.Context,
	delivery amqp091.Delivery,
	onSync func(context.Context, *RecordSyncMessage) error,
	onDelete func(context.Context, *RecordDeleteMessage) error,
) {
	msgType, payload, err := unwrap(delivery.Body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to unwrap message", "error", err)
		delivery.Nack(false, false) // drop, will never parse
		return
	}

	switch msgType {
	case TypeRecordSync:
		var msg RecordSyncMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			slog.ErrorContext(ctx, "Failed to unmarshal sync message", "error", err)
			delivery.Nack(false, false)
			return
		}
		if err := onSync(ctx, &msg); err != nil {
			slog.ErrorContext(ctx, "Failed to handle sync message",
				"error", err, "record_id", msg.RecordID)
			delivery.Nack(false, true) // requeue
			return
		}
	case TypeRecordDelete:
		var msg RecordDeleteMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			slog.ErrorContext(ctx, "Failed to unmarshal delete message", "error", err)
			delivery.Nack(false, false)
			return
		}
		if err := onDelete(ctx, &msg); err != nil {
			slog.ErrorContext(ctx, "Failed to handle delete message",
				"error", err, "record_id", msg.RecordID)
			delivery.Nack(false, true)
			return
		}
	default:
		slog.WarnContext(ctx, "Unknown message type", "type", msgType)
		delivery.Nack(false, false)
		return
	}

	delivery.Ack(false)
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
