package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/codarkat/rumai/internal/core/domain"
	"github.com/codarkat/rumai/internal/core/port"
	"github.com/codarkat/rumai/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for
// development environments without a broker.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: log}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishUserRegistered logs auth.user.registered events.
func (p *StubPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	payload := map[string]any{
		"user_id":       event.UserID,
		"email":         logger.MaskEmail(event.Email),
		"registered_at": event.RegisteredAt,
	}
	p.logEvent(topicUserRegistered, event.UserID, event.RegisteredAt, payload)
	return nil
}

// PublishPasswordChanged logs auth.user.password.changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	payload := map[string]any{
		"user_id":    event.UserID,
		"changed_at": event.ChangedAt,
		"source":     event.Source,
	}
	p.logEvent(topicPasswordChanged, event.UserID, event.ChangedAt, payload)
	return nil
}

// PublishPasswordResetRequested logs auth.user.password.reset_requested events.
func (p *StubPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	payload := map[string]any{
		"user_id":      event.UserID,
		"email":        logger.MaskEmail(event.Email),
		"requested_at": event.RequestedAt,
		"expires_at":   event.ExpiresAt,
	}
	p.logEvent(topicPasswordResetRequested, event.UserID, event.RequestedAt, payload)
	return nil
}

// PublishTokenRevoked logs auth.token.revoked events.
func (p *StubPublisher) PublishTokenRevoked(_ context.Context, event domain.TokenRevokedEvent) error {
	payload := map[string]any{
		"token_hash": event.TokenHash,
		"subject":    event.Subject,
		"reason":     event.Reason,
		"revoked_at": event.RevokedAt,
	}
	p.logEvent(topicTokenRevoked, "", event.RevokedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
