package main

import (
	"context"

	"github.com/spf13/cobra"

	"mercator-hq/prognos/pkg/cli"
	"mercator-hq/prognos/pkg/prediction"
)

var importanceFlags struct {
	patientID    string
	modelType    string
	predictionID string
}

var importanceCmd = &cobra.Command{
	Use:   "importance",
	Short: "Explain a stored prediction",
	Long: `Show the feature importance behind a previous prediction.

The prediction must be reachable by the configured backend: with the mock
backend that means a durable store (service.predictions_store_name with a
sqlite, postgres or azblob store); the cloud backend falls back to asking the
model endpoint.

Examples:
  prognos importance --patient p-104 --model relapse_risk --prediction 3f0c...
  prognos importance --patient p-104 --model relapse_risk --prediction 3f0c... -o csv`,
	Args: cobra.NoArgs,
	RunE: runImportance,
}

func init() {
	rootCmd.AddCommand(importanceCmd)

	importanceCmd.Flags().StringVar(&importanceFlags.patientID, "patient", "", "patient identifier (required)")
	importanceCmd.Flags().StringVar(&importanceFlags.modelType, "model", "", "model type of the prediction (required)")
	importanceCmd.Flags().StringVar(&importanceFlags.predictionID, "prediction", "", "prediction identifier (required)")
}

func runImportance(cmd *cobra.Command, args []string) error {
	return withBackend(cmd, func(ctx context.Context, b prediction.Backend) error {
		fi, err := b.GetFeatureImportance(ctx, importanceFlags.patientID, importanceFlags.modelType, importanceFlags.predictionID)
		if err != nil {
			return err
		}

		t := cli.Table{Headers: []string{"FEATURE", "IMPORTANCE"}}
		for _, fw := range fi.Visualization.Features {
			t.Append(fw.Feature, fw.Importance)
		}
		return render(cmd, fi, t)
	})
}
