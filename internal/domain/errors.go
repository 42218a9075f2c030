package domain

import (
	"errors"
	"fmt"
)

// ErrMissingCredential marks a required credential that was never configured.
var ErrMissingCredential = errors.New("missing credential")

// ConfigError is a fatal configuration problem discovered at first use.
// It is never retried.
type ConfigError struct {
	Service Service
	Setting string
	Err     error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Service, e.Setting, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// TransportError is a failure to reach a service or read its response.
type TransportError struct {
	Service Service
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport: %v", e.Service, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline or client timeout.
func (e *TransportError) Timeout() bool {
	var t interface{ Timeout() bool }
	if errors.As(e.Err, &t) && t.Timeout() {
		return true
	}
	return false
}
