package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"mercator-hq/prognos/pkg/cli"
	"mercator-hq/prognos/pkg/config"
	"mercator-hq/prognos/pkg/prediction"
	"mercator-hq/prognos/pkg/predictionfactory"
	"mercator-hq/prognos/pkg/secrets"
	"mercator-hq/prognos/pkg/telemetry/logging"
	"mercator-hq/prognos/pkg/telemetry/tracing"
)

// environment returns the process environment layered over --env-file.
func environment() (map[string]string, error) {
	env := make(map[string]string)
	if envFile != "" {
		fileEnv, err := config.ReadEnvFile(envFile)
		if err != nil {
			return nil, cli.NewConfigError("env-file", err.Error())
		}
		maps.Copy(env, fileEnv)
	}
	maps.Copy(env, config.Environ())
	return env, nil
}

// loadConfig loads --config with environment overrides, or the environment
// alone when no file is given.
func loadConfig() (*config.Config, map[string]string, error) {
	env, err := environment()
	if err != nil {
		return nil, nil, err
	}

	var cfg *config.Config
	if cfgFile == "" {
		cfg, err = config.FromEnv(env)
	} else {
		cfg, err = config.LoadConfigWithEnv(cfgFile, env)
	}
	if err != nil {
		return nil, nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	return cfg, env, nil
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging, os.Stderr))
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	return logger.Slog(), nil
}

// resolveSecrets replaces ${secret:name} references in the credential fields
// of cfg. config show and config validate leave references unresolved.
func resolveSecrets(ctx context.Context, cfg *config.Config, env map[string]string, logger *slog.Logger) error {
	m, err := secrets.NewManagerFromConfig(cfg.Secrets, env, logger)
	if err != nil {
		return cli.NewConfigError("secrets.dir", err.Error())
	}
	if err := m.ResolveConfig(ctx, cfg); err != nil {
		return cli.NewConfigError("secrets", err.Error())
	}
	return nil
}

// startTracing installs the configured tracer. The returned function flushes
// pending spans.
func startTracing(cfg *config.Config, logger *slog.Logger) (func(), error) {
	tracing.Version = Version
	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.tracing", err.Error())
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(ctx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}, nil
}

// withBackend builds the configured backend, runs fn and closes the backend.
func withBackend(cmd *cobra.Command, fn func(context.Context, prediction.Backend) error) error {
	cfg, env, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx := logging.WithRequestID(cmd.Context(), uuid.NewString())
	if err := resolveSecrets(ctx, cfg, env, logger); err != nil {
		return err
	}

	stopTracing, err := startTracing(cfg, logger)
	if err != nil {
		return err
	}
	defer stopTracing()

	backend, err := predictionfactory.NewBackendFromConfig(ctx, cfg, predictionfactory.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn("failed to close backend", "error", err)
		}
	}()

	return fn(ctx, backend)
}

// render writes result as JSON, or table as text or CSV.
func render(cmd *cobra.Command, result any, table cli.Table) error {
	format, err := cli.ParseOutputFormat(outputFormat)
	if err != nil {
		return err
	}
	if format == cli.FormatJSON {
		return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), result)
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), table)
}

// jsonObject decodes a JSON object flag. A value starting with "@" names a
// file to read instead.
func jsonObject(flag, value string) (map[string]any, error) {
	if value == "" {
		return map[string]any{}, nil
	}

	data := []byte(value)
	if path, ok := strings.CutPrefix(value, "@"); ok {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", flag, err)
		}
		data = b
	}

	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("--%s must be a JSON object: %w", flag, err)
	}
	if obj == nil {
		obj = map[string]any{}
	}
	return obj, nil
}

func fieldTable() cli.Table {
	return cli.Table{Headers: []string{"FIELD", "VALUE"}}
}

func appendMeta(t *cli.Table, m prediction.Meta) {
	t.Append("prediction_id", m.PredictionID)
	t.Append("patient_id", m.PatientID)
	t.Append("model_type", m.ModelType)
	t.Append("confidence", m.Confidence)
	t.Append("validation_status", m.ValidationStatus)
}

func appendFactors(t *cli.Table, prefix string, factors []prediction.Factor) {
	for _, f := range factors {
		t.Append(prefix+"."+f.Name, f.Weight)
	}
}
