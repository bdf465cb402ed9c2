package dns

import (
	"errors"
	"fmt"
	"net/http"
)

// ConfigurationError reports an update request that cannot be processed
// because its configuration entry is incomplete or invalid.
type ConfigurationError struct {
	Index  int // position of the entry in the configuration
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("dns entry #%d: %s: %s", e.Index, e.Field, e.Reason)
}

// UnknownProviderError is returned when no provider is registered under the
// requested id.
type UnknownProviderError struct {
	Provider   string
	Registered []string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unsupported DNS provider: %q (registered: %v)", e.Provider, e.Registered)
}

// ProviderRequestFailed is returned when a provider API call fails at the
// transport level or answers with a non-2xx status. Body holds the raw
// response text and is never parsed.
type ProviderRequestFailed struct {
	Action     string
	StatusCode int // 0 when no response was received
	Body       string
	Err        error
}

func (e *ProviderRequestFailed) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s request failed: %v", e.Action, e.Err)
	}
	return fmt.Sprintf("%s request failed, status_code: %d, text: %s", e.Action, e.StatusCode, e.Body)
}

func (e *ProviderRequestFailed) Unwrap() error { return e.Err }

// Transient reports whether retrying the same request may succeed.
func (e *ProviderRequestFailed) Transient() bool {
	return e.StatusCode == 0 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// UnexpectedResponseError is returned when a successful provider response
// lacks a field the caller depends on.
type UnexpectedResponseError struct {
	Action string
	Key    string
	Err    error
}

func (e *UnexpectedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: unexpected response shape: %v", e.Action, e.Err)
	}
	return fmt.Sprintf("%s: unexpected response shape: missing or invalid %q", e.Action, e.Key)
}

func (e *UnexpectedResponseError) Unwrap() error { return e.Err }

// IsConfigurationError reports whether err is, or wraps, a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
