package port

import (
	"context"

	"github.com/codarkat/rumai/internal/core/domain"
)

// EventPublisher fans security events out to the platform event bus.
// Publishing is best effort: failures are logged by implementations and
// never fail the originating request.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
	PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error
	PublishTokenRevoked(ctx context.Context, event domain.TokenRevokedEvent) error
}
