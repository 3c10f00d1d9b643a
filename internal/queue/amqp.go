package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streadway/amqp"
)

// AMQPDispatcher publishes print jobs to a durable RabbitMQ queue consumed by the print station.
type AMQPDispatcher struct {
	url   string
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPDispatcher(url, queueName string) (*AMQPDispatcher, error) {
	if queueName == "" {
		queueName = PrintTopic
	}
	d := &AMQPDispatcher{url: url, queue: queueName}
	if err := d.connect(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *AMQPDispatcher) connect() error {
	conn, err := amqp.Dial(d.url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open a channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		d.queue, // name
		true,    // durable
		false,   // delete when unused
		false,   // exclusive
		false,   // no-wait
		nil,     // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	d.conn = conn
	d.ch = ch
	return nil
}

// Dispatch publishes job. A closed connection is re-dialled once.
func (d *AMQPDispatcher) Dispatch(_ context.Context, job PrintJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil || d.conn.IsClosed() {
		if err := d.connect(); err != nil {
			return err
		}
	}

	return d.ch.Publish(
		"",
		d.queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    job.ID,
			Body:         body,
		},
	)
}

func (d *AMQPDispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ch != nil {
		d.ch.Close()
	}
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}

var _ Dispatcher = (*AMQPDispatcher)(nil)
