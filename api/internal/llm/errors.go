package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrConfiguration marks a provider that cannot be used because its
	// credential is missing.
	ErrConfiguration = errors.New("llm provider is not configured")

	ErrUpstreamTimeout = errors.New("llm provider timed out")
)

// UpstreamError is a non-success answer from the provider. Message is the
// provider's own error text; Detail is its raw error payload, if any.
type UpstreamError struct {
	Provider string
	Status   int
	Message  string
	Detail   json.RawMessage
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s upstream %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s upstream: %s", e.Provider, e.Message)
}

// MissingCredential builds the configuration error for an absent env var.
func MissingCredential(envVar string) error {
	return fmt.Errorf("%w: %s is not set", ErrConfiguration, envVar)
}

// IsTimeout reports whether err is a deadline expiry of the upstream call.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUpstreamTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Classify relabels a transport-level failure. Configuration, timeout and
// upstream errors pass through with a stable kind; anything else becomes an
// UpstreamError so the caller never sees a raw SDK error type.
func Classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConfiguration) {
		return err
	}
	if IsTimeout(err) {
		if errors.Is(err, ErrUpstreamTimeout) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue
	}
	return &UpstreamError{Provider: provider, Message: err.Error()}
}
