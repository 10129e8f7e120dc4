package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/prognos/pkg/prediction"
)

var integrateFlags struct {
	patientID    string
	profileID    string
	predictionID string
}

var integrateCmd = &cobra.Command{
	Use:   "integrate",
	Short: "Forward a prediction to a digital twin profile",
	Long: `Integrate a stored prediction into a patient's digital twin profile.

The mock backend completes the integration immediately. The cloud backend
invokes service.digital_twin_function_name asynchronously and reports the
integration as pending.

Example:
  prognos integrate --patient p-104 --profile twin-7 --prediction 3f0c...`,
	Args: cobra.NoArgs,
	RunE: runIntegrate,
}

func init() {
	rootCmd.AddCommand(integrateCmd)

	integrateCmd.Flags().StringVar(&integrateFlags.patientID, "patient", "", "patient identifier (required)")
	integrateCmd.Flags().StringVar(&integrateFlags.profileID, "profile", "", "digital twin profile identifier (required)")
	integrateCmd.Flags().StringVar(&integrateFlags.predictionID, "prediction", "", "prediction identifier (required)")
}

func runIntegrate(cmd *cobra.Command, args []string) error {
	return withBackend(cmd, func(ctx context.Context, b prediction.Backend) error {
		res, err := b.IntegrateWithDigitalTwin(ctx, integrateFlags.patientID, integrateFlags.profileID, integrateFlags.predictionID)
		if err != nil {
			return err
		}

		t := fieldTable()
		t.Append("prediction_id", res.PredictionID)
		t.Append("profile_id", res.ProfileID)
		t.Append("status", res.Status)
		t.Append("timestamp", res.Timestamp.Format(time.RFC3339))
		for _, f := range res.UpdatedProfileFactors {
			t.Append("updated", f)
		}
		return render(cmd, res, t)
	})
}
