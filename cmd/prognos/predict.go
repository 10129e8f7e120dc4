package main

import (
	"context"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"mercator-hq/prognos/pkg/prediction"
)

var predictFlags struct {
	patientID string
	data      string

	riskType      string
	timeFrameDays int

	treatmentType string
	details       string
	horizon       string

	outcomeType string
	days        int
	weeks       int
	months      int
	plan        string
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Run a prediction",
	Long: `Run a risk, treatment response or outcome prediction for one patient.

Clinical data is passed as a JSON object (or @file). It is screened for
protected health information at the configured privacy level before any
model sees it.

Examples:
  # Relapse risk over the default 90 days
  prognos predict risk --patient p-104 --risk-type relapse \
    --data '{"phq9_score": 14, "prior_episodes": 2}'

  # Treatment response
  prognos predict treatment --patient p-104 --treatment-type medication \
    --details '{"drug_class": "ssri"}' --horizon medium_term

  # Functional outcome in six months, as JSON
  prognos predict outcome --patient p-104 --outcome-type functional --months 6 -o json`,
}

var predictRiskCmd = &cobra.Command{
	Use:   "risk",
	Short: "Predict relapse, suicide or hospitalization risk",
	Args:  cobra.NoArgs,
	RunE:  runPredictRisk,
}

var predictTreatmentCmd = &cobra.Command{
	Use:   "treatment",
	Short: "Predict response to a treatment",
	Args:  cobra.NoArgs,
	RunE:  runPredictTreatment,
}

var predictOutcomeCmd = &cobra.Command{
	Use:   "outcome",
	Short: "Predict a clinical outcome",
	Args:  cobra.NoArgs,
	RunE:  runPredictOutcome,
}

func init() {
	rootCmd.AddCommand(predictCmd)
	predictCmd.AddCommand(predictRiskCmd, predictTreatmentCmd, predictOutcomeCmd)

	predictCmd.PersistentFlags().StringVar(&predictFlags.patientID, "patient", "", "patient identifier (required)")
	predictCmd.PersistentFlags().StringVar(&predictFlags.data, "data", "", "clinical data as a JSON object or @file")

	predictRiskCmd.Flags().StringVar(&predictFlags.riskType, "risk-type", prediction.RiskRelapse, "relapse, suicide or hospitalization")
	predictRiskCmd.Flags().IntVar(&predictFlags.timeFrameDays, "time-frame", 0, "prediction window in days (default 90)")

	predictTreatmentCmd.Flags().StringVar(&predictFlags.treatmentType, "treatment-type", "", "treatment type (required)")
	predictTreatmentCmd.Flags().StringVar(&predictFlags.details, "details", "", "treatment details as a JSON object or @file")
	predictTreatmentCmd.Flags().StringVar(&predictFlags.horizon, "horizon", "", "short_term, medium_term or long_term")

	predictOutcomeCmd.Flags().StringVar(&predictFlags.outcomeType, "outcome-type", "", "symptom, functional, quality_of_life or comprehensive")
	predictOutcomeCmd.Flags().IntVar(&predictFlags.days, "days", 0, "outcome timeframe days")
	predictOutcomeCmd.Flags().IntVar(&predictFlags.weeks, "weeks", 0, "outcome timeframe weeks")
	predictOutcomeCmd.Flags().IntVar(&predictFlags.months, "months", 0, "outcome timeframe months")
	predictOutcomeCmd.Flags().StringVar(&predictFlags.plan, "plan", "", "treatment plan as a JSON object or @file")
}

func runPredictRisk(cmd *cobra.Command, args []string) error {
	data, err := jsonObject("data", predictFlags.data)
	if err != nil {
		return err
	}
	req := &prediction.RiskRequest{
		PatientID:     predictFlags.patientID,
		RiskType:      predictFlags.riskType,
		ClinicalData:  data,
		TimeFrameDays: predictFlags.timeFrameDays,
	}

	return withBackend(cmd, func(ctx context.Context, b prediction.Backend) error {
		pred, err := b.PredictRisk(ctx, req)
		if err != nil {
			return err
		}

		t := fieldTable()
		appendMeta(&t, pred.Meta)
		t.Append("risk_type", pred.RiskType)
		t.Append("risk_level", pred.RiskLevel)
		t.Append("risk_score", pred.RiskScore)
		t.Append("time_frame_days", pred.TimeFrameDays)
		appendFactors(&t, "factor", pred.ContributingFactors)
		return render(cmd, pred, t)
	})
}

func runPredictTreatment(cmd *cobra.Command, args []string) error {
	data, err := jsonObject("data", predictFlags.data)
	if err != nil {
		return err
	}
	details, err := jsonObject("details", predictFlags.details)
	if err != nil {
		return err
	}
	req := &prediction.TreatmentRequest{
		PatientID:        predictFlags.patientID,
		TreatmentType:    predictFlags.treatmentType,
		TreatmentDetails: details,
		ClinicalData:     data,
		Horizon:          predictFlags.horizon,
	}

	return withBackend(cmd, func(ctx context.Context, b prediction.Backend) error {
		pred, err := b.PredictTreatmentResponse(ctx, req)
		if err != nil {
			return err
		}

		t := fieldTable()
		appendMeta(&t, pred.Meta)
		t.Append("treatment_type", pred.TreatmentType)
		t.Append("response_level", pred.ResponseLevel)
		t.Append("response_score", pred.ResponseScore)
		t.Append("prediction_horizon", pred.PredictionHorizon)
		for _, adj := range pred.SuggestedAdjustments {
			t.Append("adjustment", adj)
		}
		return render(cmd, pred, t)
	})
}

func runPredictOutcome(cmd *cobra.Command, args []string) error {
	data, err := jsonObject("data", predictFlags.data)
	if err != nil {
		return err
	}
	plan, err := jsonObject("plan", predictFlags.plan)
	if err != nil {
		return err
	}
	req := &prediction.OutcomeRequest{
		PatientID: predictFlags.patientID,
		Timeframe: prediction.Timeframe{
			Days:   predictFlags.days,
			Weeks:  predictFlags.weeks,
			Months: predictFlags.months,
		},
		ClinicalData:  data,
		TreatmentPlan: plan,
		OutcomeType:   predictFlags.outcomeType,
	}

	return withBackend(cmd, func(ctx context.Context, b prediction.Backend) error {
		pred, err := b.PredictOutcome(ctx, req)
		if err != nil {
			return err
		}

		t := fieldTable()
		appendMeta(&t, pred.Meta)
		t.Append("outcome_type", pred.OutcomeType)
		t.Append("timeframe_days", pred.Timeframe.TotalDays())
		for _, name := range slices.Sorted(maps.Keys(pred.OutcomeMetrics)) {
			t.Append("metric."+name, pred.OutcomeMetrics[name])
		}
		appendFactors(&t, "factor", pred.InfluencingFactors)
		return render(cmd, pred, t)
	})
}
