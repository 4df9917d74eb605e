package domain

import "time"

// UserRegisteredEvent announces a newly created account.
type UserRegisteredEvent struct {
	EventID      string    `json:"event_id"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	Username     *string   `json:"username,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

// PasswordChangedEvent announces that a user credential was rotated.
type PasswordChangedEvent struct {
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	ChangedAt time.Time `json:"changed_at"`
	Source    string    `json:"source"`
}

// PasswordResetRequestedEvent announces a pending reset so a delivery
// service can mail the token out-of-band.
type PasswordResetRequestedEvent struct {
	EventID     string    `json:"event_id"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	RequestedAt time.Time `json:"requested_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// TokenRevokedEvent announces an explicit token revocation.
type TokenRevokedEvent struct {
	EventID   string    `json:"event_id"`
	TokenHash string    `json:"token_hash"`
	Subject   string    `json:"subject,omitempty"`
	Reason    string    `json:"reason"`
	RevokedAt time.Time `json:"revoked_at"`
}
