package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	ErrTimeout         = errors.New("provider request timed out")
	ErrUnknownProvider = errors.New("unknown ai provider")
)

// ProviderError is a non-2xx or undecodable provider response.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		body = "empty response"
	}
	return fmt.Sprintf("%s API Error: %d - %s", e.Provider, e.StatusCode, body)
}

// ConfigurationError is returned when the credential for a provider is absent.
type ConfigurationError struct {
	Provider string
	EnvVar   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s is not set", e.EnvVar)
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "client.timeout exceeded")
}
