// Package config provides configuration management for prognos.
//
// This package handles loading, validating, and watching configuration from
// YAML files with environment variable overrides. It provides a type-safe
// configuration system with validation and sensible defaults.
//
// # Configuration Loading
//
// Configuration can be loaded in three ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("prognos.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("prognos.yaml")
//
//  3. From environment-style pairs alone, for example a .env file:
//     env, err := config.ReadEnvFile(".env")
//     cfg, err := config.FromEnv(env)
//
// # Environment Variables
//
// Environment variables use the PROGNOS_ prefix. For example:
//
//   - PROGNOS_SERVICE_TYPE overrides service.service_type
//   - PROGNOS_PRIVACY_LEVEL overrides service.privacy_level
//   - PROGNOS_MOCK_RISK_DISTRIBUTION overrides service.mock_risk_distribution
//   - PROGNOS_LOG_LEVEL overrides telemetry.logging.level
//   - PROGNOS_MODEL_ENDPOINT_RELAPSE_RISK sets service.model_endpoints.relapse_risk
//
// Environment variables always take precedence over file-based configuration.
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Hot Reload
//
// Watcher observes the configuration file with fsnotify and hands every
// successfully reloaded Config to a callback. Invalid edits are logged and
// ignored.
package config
