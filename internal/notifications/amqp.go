package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"shipyard/internal/export"
)

// Event is the JSON body published for finished jobs.
type Event struct {
	Type          string        `json:"type"`
	JobID         string        `json:"job_id"`
	Name          string        `json:"name"`
	Status        export.Status `json:"status"`
	Campaigns     int           `json:"campaigns"`
	Succeeded     int           `json:"succeeded"`
	Partial       int           `json:"partial"`
	Failed        int           `json:"failed"`
	TotalFiles    int           `json:"total_files"`
	TotalSize     int64         `json:"total_size"`
	Errors        []string      `json:"errors,omitempty"`
	Finalization  string        `json:"finalization_error,omitempty"`
	ArtifactPath  string        `json:"artifact_path,omitempty"`
	DeliveredURLs []string      `json:"delivered_urls,omitempty"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

// NewEvent builds the event for a job. kind is "completed" or "failed".
func NewEvent(job *export.Job, kind string, now time.Time) Event {
	return Event{
		Type:          "export.job." + kind,
		JobID:         job.ID,
		Name:          job.Name,
		Status:        job.Status,
		Campaigns:     job.Metadata.TotalCampaigns,
		Succeeded:     job.Metadata.SucceededCampaigns,
		Partial:       job.Metadata.PartialCampaigns,
		Failed:        job.Metadata.FailedCampaigns,
		TotalFiles:    job.Metadata.TotalFiles,
		TotalSize:     job.Metadata.TotalSize,
		Errors:        job.Errors,
		Finalization:  job.Metadata.FinalizationError,
		ArtifactPath:  job.Metadata.ArtifactPath,
		DeliveredURLs: job.Metadata.DeliveredURLs,
		OccurredAt:    now.UTC(),
	}
}

// Publisher sends a JSON body under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

type eventService struct {
	publisher  Publisher
	routingKey string
}

func (e *eventService) NotifyJobCompleted(ctx context.Context, job *export.Job) error {
	return e.publish(ctx, job, "completed")
}

func (e *eventService) NotifyJobFailed(ctx context.Context, job *export.Job) error {
	return e.publish(ctx, job, "failed")
}

func (e *eventService) publish(ctx context.Context, job *export.Job, kind string) error {
	body, err := json.Marshal(NewEvent(job, kind, time.Now()))
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	key := strings.Trim(e.routingKey, ".")
	if key == "" {
		key = "export.job"
	}
	return e.publisher.Publish(ctx, key+"."+kind, body)
}

func (e *eventService) Close() error {
	if closer, ok := e.publisher.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// AMQPPublisher publishes persistent messages to a durable topic exchange
// with publisher confirms. The connection is opened on first use and
// re-opened after it drops.
type AMQPPublisher struct {
	url      string
	exchange string

	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	confirms chan amqp.Confirmation
}

func NewAMQPPublisher(url, exchange string) *AMQPPublisher {
	if strings.TrimSpace(exchange) == "" {
		exchange = "shipyard.events"
	}
	return &AMQPPublisher{url: url, exchange: exchange}
}

func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureChannel(); err != nil {
		return err
	}
	err := p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		p.reset()
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	select {
	case confirm, ok := <-p.confirms:
		if !ok {
			p.reset()
			return errors.New("amqp channel closed before confirm")
		}
		if !confirm.Ack {
			return fmt.Errorf("broker rejected %s", routingKey)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *AMQPPublisher) ensureChannel() error {
	if p.conn != nil && !p.conn.IsClosed() && p.channel != nil && !p.channel.IsClosed() {
		return nil
	}
	p.reset()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("connect to amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return fmt.Errorf("enable confirms: %w", err)
	}
	p.conn = conn
	p.channel = ch
	p.confirms = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	return nil
}

func (p *AMQPPublisher) reset() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.channel, p.confirms = nil, nil, nil
}

// Close drops the broker connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}
