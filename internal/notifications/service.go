package notifications

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"shipyard/internal/config"
	"shipyard/internal/export"
	"shipyard/internal/logging"
	"shipyard/internal/mailer"
)

const userAgent = "Shipyard-Go/0.1.0"

// Service is the notification surface used by the workflow.
type Service interface {
	NotifyJobCompleted(ctx context.Context, job *export.Job) error
	NotifyJobFailed(ctx context.Context, job *export.Job) error
}

// Option customizes NewService.
type Option func(*builder)

type builder struct {
	sender    mailer.Sender
	publisher Publisher
}

// WithMailer overrides the sender used for email notifications.
func WithMailer(sender mailer.Sender) Option {
	return func(b *builder) { b.sender = sender }
}

// WithPublisher overrides the event publisher.
func WithPublisher(publisher Publisher) Option {
	return func(b *builder) { b.publisher = publisher }
}

// NewService builds a fan-out service over every configured backend. When
// nothing is configured a noop implementation is returned.
func NewService(cfg *config.Config, logger *slog.Logger, opts ...Option) Service {
	b := &builder{}
	for _, opt := range opts {
		opt(b)
	}
	logger = logging.NewComponentLogger(logger, "notifications")

	var backends []Service
	if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
		backends = append(backends, newNtfy(topic, cfg.Notifications.RequestTimeout))
	}
	if cfg.Notifications.Email {
		sender := b.sender
		if sender == nil {
			built, err := mailer.New(cfg.Email)
			if err != nil {
				logging.WarnWithContext(logger, "email notifications disabled", "notification_setup_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check the [email] section"),
					logging.String(logging.FieldImpact, "job emails will not be sent"),
				)
			}
			sender = built
		}
		if sender != nil {
			backends = append(backends, &emailService{from: cfg.Email.From, sender: sender})
		}
	}
	publisher := b.publisher
	if publisher == nil && strings.TrimSpace(cfg.Notifications.AMQPURL) != "" {
		publisher = NewAMQPPublisher(cfg.Notifications.AMQPURL, cfg.Notifications.AMQPExchange)
	}
	if publisher != nil {
		backends = append(backends, &eventService{publisher: publisher, routingKey: cfg.Notifications.AMQPRoutingKey})
	}

	switch len(backends) {
	case 0:
		return noopService{}
	case 1:
		return backends[0]
	default:
		return fanout(backends)
	}
}

// fanout notifies every backend; one failing backend does not stop the rest.
type fanout []Service

func (f fanout) NotifyJobCompleted(ctx context.Context, job *export.Job) error {
	var errs []error
	for _, svc := range f {
		errs = append(errs, svc.NotifyJobCompleted(ctx, job))
	}
	return errors.Join(errs...)
}

func (f fanout) NotifyJobFailed(ctx context.Context, job *export.Job) error {
	var errs []error
	for _, svc := range f {
		errs = append(errs, svc.NotifyJobFailed(ctx, job))
	}
	return errors.Join(errs...)
}

// Close releases backend connections.
func (f fanout) Close() error {
	var errs []error
	for _, svc := range f {
		if closer, ok := svc.(interface{ Close() error }); ok {
			errs = append(errs, closer.Close())
		}
	}
	return errors.Join(errs...)
}

type noopService struct{}

func (noopService) NotifyJobCompleted(context.Context, *export.Job) error { return nil }
func (noopService) NotifyJobFailed(context.Context, *export.Job) error    { return nil }
