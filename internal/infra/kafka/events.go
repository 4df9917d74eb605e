package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/codarkat/rumai/internal/core/domain"
	"github.com/codarkat/rumai/internal/core/port"
	"github.com/codarkat/rumai/internal/infra/config"
)

const schemaVersion = "1.0"

// Topic names, relative to the configured prefix.
const (
	topicUserRegistered         = "user.registered"
	topicPasswordChanged        = "user.password.changed"
	topicPasswordResetRequested = "user.password.reset_requested"
	topicTokenRevoked           = "token.revoked"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishUserRegistered publishes auth.user.registered events.
func (p *EventPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	payload := struct {
		UserID       string    `json:"user_id"`
		Email        string    `json:"email"`
		Username     *string   `json:"username,omitempty"`
		RegisteredAt time.Time `json:"registered_at"`
	}{
		UserID:       event.UserID,
		Email:        event.Email,
		Username:     event.Username,
		RegisteredAt: event.RegisteredAt.UTC(),
	}

	return p.publish(ctx, event.EventID, topicUserRegistered, event.UserID, event.RegisteredAt, payload)
}

// PublishPasswordChanged publishes auth.user.password.changed events.
func (p *EventPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	payload := struct {
		UserID    string    `json:"user_id"`
		ChangedAt time.Time `json:"changed_at"`
		Source    string    `json:"source"`
	}{
		UserID:    event.UserID,
		ChangedAt: event.ChangedAt.UTC(),
		Source:    event.Source,
	}

	return p.publish(ctx, event.EventID, topicPasswordChanged, event.UserID, event.ChangedAt, payload)
}

// PublishPasswordResetRequested publishes auth.user.password.reset_requested events.
func (p *EventPublisher) PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error {
	payload := struct {
		UserID      string    `json:"user_id"`
		Email       string    `json:"email"`
		RequestedAt time.Time `json:"requested_at"`
		ExpiresAt   time.Time `json:"expires_at"`
	}{
		UserID:      event.UserID,
		Email:       event.Email,
		RequestedAt: event.RequestedAt.UTC(),
		ExpiresAt:   event.ExpiresAt.UTC(),
	}

	return p.publish(ctx, event.EventID, topicPasswordResetRequested, event.UserID, event.RequestedAt, payload)
}

// PublishTokenRevoked publishes auth.token.revoked events.
func (p *EventPublisher) PublishTokenRevoked(ctx context.Context, event domain.TokenRevokedEvent) error {
	payload := struct {
		TokenHash string    `json:"token_hash"`
		Subject   string    `json:"subject,omitempty"`
		Reason    string    `json:"reason"`
		RevokedAt time.Time `json:"revoked_at"`
	}{
		TokenHash: event.TokenHash,
		Subject:   event.Subject,
		Reason:    event.Reason,
		RevokedAt: event.RevokedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, topicTokenRevoked, "", event.RevokedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
