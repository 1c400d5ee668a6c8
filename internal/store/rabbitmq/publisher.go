// Package rabbitmq carries analysis job ids from the API to the worker
// over a durable queue with retry and dead-letter topology.
package rabbitmq

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// AnalysisJobMessage is the queue payload: only the job id travels; the
// worker loads everything else from the job row.
type AnalysisJobMessage struct {
	JobID string `json:"job_id"`
}

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := declareTopology(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

// declareTopology sets up the three queues an analysis job can land in.
// The worker declares the main queue with the same arguments; the two
// declarations must stay in sync.
func declareTopology(ch *amqp.Channel, queue string) error {
	retryQ := queue + ".retry"
	dlqQ := queue + ".dlq"

	// dead-lettered jobs park here for inspection
	if _, err := ch.QueueDeclare(dlqQ, true, false, false, false, nil); err != nil {
		return err
	}

	// retry queue: message TTL dead-letters back onto the main queue
	if _, err := ch.QueueDeclare(retryQ, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": queue,
	}); err != nil {
		return err
	}

	// main queue: rejected/nacked jobs dead-letter to the DLQ
	_, err := ch.QueueDeclare(queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlqQ,
	})
	return err
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func (p *Publisher) PublishJob(ctx context.Context, jobID string) error {
	body, err := json.Marshal(AnalysisJobMessage{JobID: jobID})
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(cctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}
