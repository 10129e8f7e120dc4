package main

import (
	"context"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/prognos/pkg/prediction"
)

var modelInfoType string

var modelInfoCmd = &cobra.Command{
	Use:   "model-info",
	Short: "Describe the model serving a model type",
	Long: `Describe the model serving a model type: version, features, performance
metrics and lifecycle status.

Model types: ` + strings.Join(prediction.ModelTypes, ", ") + `

Example:
  prognos model-info --model suicide_risk -o json`,
	Args: cobra.NoArgs,
	RunE: runModelInfo,
}

func init() {
	rootCmd.AddCommand(modelInfoCmd)
	modelInfoCmd.Flags().StringVar(&modelInfoType, "model", "", "model type (required)")
}

func runModelInfo(cmd *cobra.Command, args []string) error {
	return withBackend(cmd, func(ctx context.Context, b prediction.Backend) error {
		desc, err := b.GetModelInfo(ctx, modelInfoType)
		if err != nil {
			return err
		}

		t := fieldTable()
		t.Append("model_type", desc.ModelType)
		t.Append("version", desc.Version)
		t.Append("status", desc.Status)
		if !desc.LastUpdated.IsZero() {
			t.Append("last_updated", desc.LastUpdated.Format(time.DateOnly))
		}
		t.Append("features", strings.Join(desc.Features, ","))
		for _, name := range slices.Sorted(maps.Keys(desc.PerformanceMetrics)) {
			t.Append("metric."+name, desc.PerformanceMetrics[name])
		}
		return render(cmd, desc, t)
	})
}
