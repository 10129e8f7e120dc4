package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// DefaultEnvPrefix namespaces secrets in the environment.
const DefaultEnvPrefix = "PROGNOS_SECRET_"

// EnvProvider loads secrets from environment variables. The secret
// "runtime-api-key" is read from PREFIX + "RUNTIME_API_KEY".
type EnvProvider struct {
	prefix string
	lookup func(string) (string, bool)
}

// NewEnvProvider creates a provider reading env, or the process environment
// when env is nil.
func NewEnvProvider(prefix string, env map[string]string) *EnvProvider {
	p := &EnvProvider{prefix: prefix, lookup: os.LookupEnv}
	if env != nil {
		p.lookup = func(key string) (string, bool) {
			v, ok := env[key]
			return v, ok
		}
	}
	return p
}

// GetSecret implements Provider.
func (p *EnvProvider) GetSecret(ctx context.Context, name string) (string, error) {
	key := p.envVar(name)
	value, ok := p.lookup(key)
	if !ok || value == "" {
		return "", fmt.Errorf("%w in environment: %s", ErrNotFound, key)
	}
	return value, nil
}

// Name implements Provider.
func (p *EnvProvider) Name() string {
	return "env"
}

// Supports implements Provider. Any name can be set in the environment.
func (p *EnvProvider) Supports(name string) bool {
	return true
}

func (p *EnvProvider) envVar(name string) string {
	return p.prefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}
