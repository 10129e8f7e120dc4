package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mercator-hq/prognos/pkg/config"
	"mercator-hq/prognos/pkg/predictionfactory"
	"mercator-hq/prognos/pkg/telemetry/logging"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration file and environment overrides, validate every
field and check that the backend options can be derived from it.

Examples:
  prognos config validate --config prognos.yaml
  PROGNOS_SERVICE_TYPE=cloud prognos config validate --env-file .env`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration after defaults and environment overrides.
Secrets (API key, Postgres DSN, Azure connection string) are redacted.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd, configShowCmd)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := predictionfactory.OptionsFromConfig(cfg); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "✓ Configuration valid")
	fmt.Fprintf(w, "  Backend:       %s\n", cfg.Service.ServiceType)
	fmt.Fprintf(w, "  Privacy level: %s\n", cfg.Service.PrivacyLevel)
	fmt.Fprintf(w, "  Store:         %s\n", storeSummary(cfg))
	fmt.Fprintf(w, "  Endpoints:     %d\n", len(cfg.Service.ModelEndpoints))
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	redacted := *cfg
	redacted.Cloud.APIKey = logging.RedactAPIKey(cfg.Cloud.APIKey)
	redacted.Store.Postgres.DSN = logging.RedactAPIKey(cfg.Store.Postgres.DSN)
	redacted.Store.Azure.ConnectionString = logging.RedactAPIKey(cfg.Store.Azure.ConnectionString)

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(&redacted); err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	return enc.Close()
}

func storeSummary(cfg *config.Config) string {
	if cfg.Service.PredictionsStoreName == "" {
		return "memory (not persisted)"
	}
	return fmt.Sprintf("%s (%s)", cfg.Store.Backend, cfg.Service.PredictionsStoreName)
}
