package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/jonathan/resume-coach/internal/types"
)

// AMQP publishes and consumes learning jobs on a durable RabbitMQ queue.
type AMQP struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
	log   *zap.Logger

	pubMu sync.Mutex
}

// DialAMQP connects and declares the durable queue.
func DialAMQP(url, queue string, log *zap.Logger) (*AMQP, error) {
	if queue == "" {
		queue = DefaultQueueName
	}
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	return &AMQP{conn: conn, ch: ch, queue: queue, log: log}, nil
}

// PublishLearningJob sends job as a persistent JSON message.
func (a *AMQP) PublishLearningJob(ctx context.Context, job types.LearningJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode learning job: %w", err)
	}

	a.pubMu.Lock()
	defer a.pubMu.Unlock()
	err = a.ch.Publish("", a.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.FeedbackID,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish learning job: %w", err)
	}
	return nil
}

// Consume feeds deliveries to handler until ctx is done or the channel
// closes. A failed job is requeued once, then dropped.
func (a *AMQP) Consume(ctx context.Context, handler Handler) error {
	if err := a.ch.Qos(4, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}
	deliveries, err := a.ch.Consume(a.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume %s: %w", a.queue, err)
	}
	a.log.Info("consuming learning jobs", zap.String("queue", a.queue))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("amqp delivery channel closed")
			}
			a.handle(ctx, d, handler)
		}
	}
}

func (a *AMQP) handle(ctx context.Context, d amqp.Delivery, handler Handler) {
	var job types.LearningJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		a.log.Warn("dropping malformed learning job", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	if err := handler(ctx, job); err != nil {
		a.log.Warn("learning job failed",
			zap.String("feedback_id", job.FeedbackID),
			zap.Bool("redelivered", d.Redelivered),
			zap.Error(err))
		_ = d.Nack(false, !d.Redelivered)
		return
	}
	_ = d.Ack(false)
}

// Close closes the channel and connection.
func (a *AMQP) Close() error {
	chErr := a.ch.Close()
	if err := a.conn.Close(); err != nil {
		return err
	}
	return chErr
}
