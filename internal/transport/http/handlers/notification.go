package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"

	appLogger "github.com/codarkat/rumai/internal/infra/logger"
)

// NotificationDispatcher fans out credential delivery to downstream
// notifiers. The service itself never sends email; a separate notification
// consumer picks these up.
type NotificationDispatcher interface {
	SendEmailVerification(ctx context.Context, payload VerificationNotification) error
	SendPasswordReset(ctx context.Context, payload PasswordResetNotification) error
}

// VerificationNotification captures data needed to deliver a verification link.
type VerificationNotification struct {
	Email     string
	Token     string
	ExpiresAt time.Time
}

// PasswordResetNotification captures data needed to deliver reset credentials.
type PasswordResetNotification struct {
	Email     string
	Token     string
	ExpiresAt time.Time
}

type noopDispatcher struct{}

func (noopDispatcher) SendEmailVerification(context.Context, VerificationNotification) error {
	return nil
}

func (noopDispatcher) SendPasswordReset(context.Context, PasswordResetNotification) error {
	return nil
}

// LoggingNotificationDispatcher records credential dispatch events without
// delivering them. Tokens are masked; the real value only ever reaches the
// notification pipeline.
type LoggingNotificationDispatcher struct {
	logger *zap.Logger
}

// NewLoggingNotificationDispatcher constructs a dispatcher backed by
// structured logging.
func NewLoggingNotificationDispatcher(logger *zap.Logger) NotificationDispatcher {
	if logger == nil {
		return noopDispatcher{}
	}
	return &LoggingNotificationDispatcher{logger: logger}
}

func (d *LoggingNotificationDispatcher) SendEmailVerification(_ context.Context, payload VerificationNotification) error {
	d.logger.Info("dispatch email verification",
		zap.String("email", appLogger.MaskEmail(payload.Email)),
		zap.String("token", appLogger.MaskToken(payload.Token)),
		zap.Time("expires_at", payload.ExpiresAt),
	)
	return nil
}

func (d *LoggingNotificationDispatcher) SendPasswordReset(_ context.Context, payload PasswordResetNotification) error {
	d.logger.Info("dispatch password reset",
		zap.String("email", appLogger.MaskEmail(payload.Email)),
		zap.String("token", appLogger.MaskToken(payload.Token)),
		zap.Time("expires_at", payload.ExpiresAt),
	)
	return nil
}
