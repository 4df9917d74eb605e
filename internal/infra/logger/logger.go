package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestIDKey is the context key under which the request ID middleware
// stores the correlation identifier.
type RequestIDKey struct{}

// New builds the service logger. Production gets the JSON encoder; every
// other environment gets the colored console encoder.
func New(env string) (*zap.Logger, error) {
	if strings.EqualFold(strings.TrimSpace(env), "production") {
		return zap.NewProductionConfig().Build()
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return cfg.Build()
}

// MaskEmail hides the local part of an address except its first characters,
// keeping the domain for debugging: j.doe@example.com becomes j.d***@example.com.
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}

	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return "***"
	}

	keep := at
	if keep > 3 {
		keep = 3
	}
	return email[:keep] + "***" + email[at:]
}

// MaskToken keeps a short prefix of a token so log lines can be correlated
// without exposing the credential.
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "***"
	}
	return token[:8] + "***"
}

// MaskIP truncates addresses to a network prefix: two octets for IPv4,
// four groups for IPv6.
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}

	if octets := strings.Split(ip, "."); len(octets) == 4 {
		return octets[0] + "." + octets[1] + ".*.*"
	}
	if groups := strings.Split(ip, ":"); len(groups) >= 4 {
		return strings.Join(groups[:4], ":") + ":*:*:*:*"
	}
	return "***"
}
