package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/auth-core/internal/core/domain"
	"github.com/arklim/auth-core/internal/core/port"
	"github.com/arklim/auth-core/internal/infra/config"
)

// Event types carried on the security topic.
const (
	EventTypeLoginSucceeded     = "auth.login_succeeded"
	EventTypeAccountLocked      = "auth.account_locked"
	EventTypeTokenReuseDetected = "auth.token_reuse_detected"
	EventTypeSessionRevoked     = "auth.session_revoked"
	EventTypeResetRequested     = "auth.password_reset_requested"
	EventTypePasswordChanged    = "auth.password_changed"
)

const envelopeVersion = "1.0"

// envelope is the wire format shared by every published event.
type envelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  envelopeMetadata  `json:"metadata"`
}

type envelopeMetadata struct {
	Service     string `json:"service"`
	Environment string `json:"environment"`
	TraceID     string `json:"trace_id,omitempty"`
}

// Publisher sends security events through a sarama async producer. Delivery
// is best effort: errors surface in logs, never to the caller's flow.
type Publisher struct {
	producer    sarama.AsyncProducer
	topic       string
	service     string
	environment string
	logger      *zap.Logger
	done        chan struct{}
}

// NewPublisher connects to the brokers and starts the error drain goroutine.
func NewPublisher(cfg config.KafkaSettings, service, environment string, log *zap.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	if log == nil {
		log = zap.NewNop()
	}

	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.RequiredAcks = sarama.WaitForLocal
	saramaCfg.Producer.Compression = sarama.CompressionSnappy
	saramaCfg.Producer.Flush.Frequency = 500 * time.Millisecond
	saramaCfg.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	topicPrefix := cfg.TopicPrefix
	if topicPrefix == "" {
		topicPrefix = "auth"
	}

	p := &Publisher{
		producer:    producer,
		topic:       topicPrefix + ".security-events",
		service:     service,
		environment: environment,
		logger:      log,
		done:        make(chan struct{}),
	}

	go p.drainErrors()

	return p, nil
}

// Close flushes outstanding messages and stops the producer.
func (p *Publisher) Close() error {
	err := p.producer.Close()
	<-p.done
	return err
}

func (p *Publisher) drainErrors() {
	defer close(p.done)
	for msgErr := range p.producer.Errors() {
		p.logger.Error("kafka publish failed",
			zap.Error(msgErr.Err),
			zap.String("topic", msgErr.Msg.Topic),
		)
	}
}

// PublishLoginSucceeded publishes a login event keyed by user.
func (p *Publisher) PublishLoginSucceeded(ctx context.Context, event domain.LoginSucceededEvent) error {
	return p.send(ctx, event.EventID, EventTypeLoginSucceeded, event.UserID, event)
}

// PublishAccountLocked publishes a lockout event keyed by user.
func (p *Publisher) PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error {
	return p.send(ctx, event.EventID, EventTypeAccountLocked, event.UserID, event)
}

// PublishTokenReuseDetected publishes a reuse-detection event keyed by user.
func (p *Publisher) PublishTokenReuseDetected(ctx context.Context, event domain.TokenReuseDetectedEvent) error {
	return p.send(ctx, event.EventID, EventTypeTokenReuseDetected, event.UserID, event)
}

// PublishSessionRevoked publishes a revocation event keyed by user.
func (p *Publisher) PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error {
	return p.send(ctx, event.EventID, EventTypeSessionRevoked, event.UserID, event)
}

// PublishPasswordResetRequested publishes a reset-request event keyed by user.
func (p *Publisher) PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error {
	return p.send(ctx, event.EventID, EventTypeResetRequested, event.UserID, event)
}

// PublishPasswordChanged publishes a password-change event keyed by user.
func (p *Publisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	return p.send(ctx, event.EventID, EventTypePasswordChanged, event.UserID, event)
}

func (p *Publisher) send(ctx context.Context, eventID, eventType, userID string, payload any) error {
	env := envelope{
		EventID:   eventID,
		EventType: eventType,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Version:   envelopeVersion,
		Payload:   payload,
		Metadata: envelopeMetadata{
			Service:     p.service,
			Environment: p.environment,
		},
	}

	if span := trace.SpanContextFromContext(ctx); span.IsValid() {
		env.Metadata.TraceID = span.TraceID().String()
	}

	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(userID),
		Value: sarama.ByteEncoder(value),
	}

	select {
	case p.producer.Input() <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ port.EventPublisher = (*Publisher)(nil)

// NoopPublisher satisfies port.EventPublisher when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishLoginSucceeded(context.Context, domain.LoginSucceededEvent) error {
	return nil
}
func (NoopPublisher) PublishAccountLocked(context.Context, domain.AccountLockedEvent) error {
	return nil
}
func (NoopPublisher) PublishTokenReuseDetected(context.Context, domain.TokenReuseDetectedEvent) error {
	return nil
}
func (NoopPublisher) PublishSessionRevoked(context.Context, domain.SessionRevokedEvent) error {
	return nil
}
func (NoopPublisher) PublishPasswordResetRequested(context.Context, domain.PasswordResetRequestedEvent) error {
	return nil
}
func (NoopPublisher) PublishPasswordChanged(context.Context, domain.PasswordChangedEvent) error {
	return nil
}

var _ port.EventPublisher = NoopPublisher{}
