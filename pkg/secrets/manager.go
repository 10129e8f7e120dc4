package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"mercator-hq/prognos/pkg/config"
)

// secretRef matches ${secret:name}.
var secretRef = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

// Manager resolves secrets from an ordered list of providers.
type Manager struct {
	providers []Provider
	cache     *Cache
	logger    *slog.Logger
}

// NewManager creates a manager that tries providers in order.
func NewManager(providers []Provider, cache *Cache, logger *slog.Logger) *Manager {
	if cache == nil {
		cache = NewCache(0, 0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		providers: providers,
		cache:     cache,
		logger:    logger.With("component", "secrets"),
	}
}

// NewManagerFromConfig builds a manager with the file provider (when a
// directory is configured) ahead of the env provider. env is the environment
// to read; nil means the process environment.
func NewManagerFromConfig(cfg config.SecretsConfig, env map[string]string, logger *slog.Logger) (*Manager, error) {
	var providers []Provider
	if cfg.Dir != "" {
		fp, err := NewFileProvider(cfg.Dir)
		if err != nil {
			return nil, err
		}
		providers = append(providers, fp)
	}
	providers = append(providers, NewEnvProvider(cfg.EnvPrefix, env))
	return NewManager(providers, NewCache(cfg.CacheTTL, 0), logger), nil
}

// GetSecret returns the value of name from the first provider that has it.
func (m *Manager) GetSecret(ctx context.Context, name string) (string, error) {
	if value, ok := m.cache.Get(name); ok {
		return value, nil
	}

	var errs []error
	for _, p := range m.providers {
		if !p.Supports(name) {
			continue
		}
		value, err := p.GetSecret(ctx, name)
		if err != nil {
			m.logger.DebugContext(ctx, "secret provider failed",
				"provider", p.Name(),
				"secret", redactName(name),
				"error", err,
			)
			errs = append(errs, err)
			continue
		}
		m.cache.Set(name, value)
		return value, nil
	}

	if len(errs) == 0 {
		return "", fmt.Errorf("%w: %q (no provider supports it)", ErrNotFound, name)
	}
	return "", fmt.Errorf("failed to get secret %q: %w", name, errors.Join(errs...))
}

// Resolve replaces every ${secret:name} in input. References that cannot
// be resolved are left in place and reported in the returned error.
func (m *Manager) Resolve(ctx context.Context, input string) (string, error) {
	var errs []error
	output := secretRef.ReplaceAllStringFunc(input, func(match string) string {
		name := secretRef.FindStringSubmatch(match)[1]
		value, err := m.GetSecret(ctx, name)
		if err != nil {
			errs = append(errs, err)
			return match
		}
		return value
	})
	return output, errors.Join(errs...)
}

// ResolveConfig resolves references in the credential fields of cfg in
// place. Errors name the field, never the value.
func (m *Manager) ResolveConfig(ctx context.Context, cfg *config.Config) error {
	fields := []struct {
		name  string
		value *string
	}{
		{"cloud.api_key", &cfg.Cloud.APIKey},
		{"store.postgres.dsn", &cfg.Store.Postgres.DSN},
		{"store.azure.connection_string", &cfg.Store.Azure.ConnectionString},
	}

	var errs []error
	for _, f := range fields {
		if !HasReference(*f.value) {
			continue
		}
		resolved, err := m.Resolve(ctx, *f.value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.name, err))
			continue
		}
		*f.value = resolved
	}
	return errors.Join(errs...)
}

// HasReference reports whether s contains a ${secret:name} reference.
func HasReference(s string) bool {
	return secretRef.MatchString(s)
}

// redactName keeps the first and last two characters of a secret name.
func redactName(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}
