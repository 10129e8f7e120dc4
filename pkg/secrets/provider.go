package secrets

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no provider holds a secret.
var ErrNotFound = errors.New("secret not found")

// Provider retrieves secrets from one source.
type Provider interface {
	// GetSecret returns the value of name, or an error wrapping ErrNotFound.
	GetSecret(ctx context.Context, name string) (string, error)

	// Name returns the provider name ("env", "file").
	Name() string

	// Supports reports whether the provider may hold name.
	Supports(name string) bool
}
