package domain

import "time"

// User mirrors the persisted representation in the users table.
type User struct {
	ID            string
	Email         string
	Username      *string
	FullName      *string
	PasswordHash  string
	IsActive      bool
	EmailVerified bool
	Age           *int
	Gender        *string
	LanguageLevel *string
	RegisteredAt  time.Time
	LastLogin     *time.Time
}

// UsernameOrEmpty returns the username when present.
func (u User) UsernameOrEmpty() string {
	if u.Username == nil {
		return ""
	}
	return *u.Username
}
