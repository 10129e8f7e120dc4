package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mercator-hq/prognos/pkg/cli"
	"mercator-hq/prognos/pkg/prediction"
)

var simulateFlags struct {
	count       int
	concurrency int
	riskType    string
	prefix      string
	quiet       bool
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run risk predictions for synthetic patients",
	Long: `Run risk predictions for a batch of synthetic patient identifiers and
report how the predicted levels are distributed.

With the mock backend this checks a configured service.mock_risk_distribution;
against the cloud backend it is a small load test.

Examples:
  PROGNOS_MOCK_RISK_DISTRIBUTION=5,20,50,20,5 prognos simulate --count 1000
  prognos simulate --config prognos.yaml --count 200 --concurrency 8 -o json`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().IntVar(&simulateFlags.count, "count", 100, "number of predictions")
	simulateCmd.Flags().IntVar(&simulateFlags.concurrency, "concurrency", 4, "concurrent predictions")
	simulateCmd.Flags().StringVar(&simulateFlags.riskType, "risk-type", prediction.RiskRelapse, "relapse, suicide or hospitalization")
	simulateCmd.Flags().StringVar(&simulateFlags.prefix, "prefix", "sim", "patient identifier prefix")
	simulateCmd.Flags().BoolVarP(&simulateFlags.quiet, "quiet", "q", false, "no progress bar")
}

// LevelCount is one row of a simulation summary.
type LevelCount struct {
	Level   string  `json:"level"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// SimulationSummary is the result of simulate.
type SimulationSummary struct {
	Backend  string        `json:"backend"`
	Total    int           `json:"total"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration_ns"`
	Levels   []LevelCount  `json:"levels"`
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if simulateFlags.count <= 0 {
		return fmt.Errorf("--count must be positive")
	}

	return withBackend(cmd, func(ctx context.Context, b prediction.Backend) error {
		var progress cli.ProgressReporter = nopProgress{}
		if !simulateFlags.quiet {
			progress = cli.NewProgressReporter(cmd.ErrOrStderr(), "predictions")
		}

		summary, err := simulate(ctx, b, progress)
		if err != nil {
			return err
		}

		t := cli.Table{Headers: []string{"LEVEL", "COUNT", "PERCENT"}}
		for _, lc := range summary.Levels {
			t.Append(lc.Level, lc.Count, fmt.Sprintf("%.1f%%", lc.Percent))
		}
		if summary.Failed > 0 {
			t.Append("failed", summary.Failed, "")
		}
		return render(cmd, summary, t)
	})
}

// simulate runs simulateFlags.count risk predictions against b with bounded
// concurrency. Prediction faults are counted; ErrNotInitialized and context
// cancellation abort the run.
func simulate(ctx context.Context, b prediction.Backend, progress cli.ProgressReporter) (*SimulationSummary, error) {
	var (
		mu     sync.Mutex
		counts = make(map[string]int)
		failed int
	)

	start := time.Now()
	progress.Start(int64(simulateFlags.count))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(simulateFlags.concurrency, 1))
	for i := range simulateFlags.count {
		g.Go(func() error {
			pred, err := b.PredictRisk(gctx, &prediction.RiskRequest{
				PatientID:    fmt.Sprintf("%s-%06d", simulateFlags.prefix, i),
				RiskType:     simulateFlags.riskType,
				ClinicalData: map[string]any{},
			})
			if err != nil {
				if !prediction.IsFault(err) || gctx.Err() != nil {
					return err
				}
				mu.Lock()
				failed++
				mu.Unlock()
				progress.Error(err)
				return nil
			}

			mu.Lock()
			counts[pred.RiskLevel]++
			mu.Unlock()
			progress.Increment()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	progress.Finish()

	summary := &SimulationSummary{
		Backend:  b.Name(),
		Total:    simulateFlags.count,
		Failed:   failed,
		Duration: time.Since(start),
	}
	for _, level := range []string{
		prediction.LevelVeryLow,
		prediction.LevelLow,
		prediction.LevelModerate,
		prediction.LevelHigh,
		prediction.LevelVeryHigh,
	} {
		summary.Levels = append(summary.Levels, LevelCount{
			Level:   level,
			Count:   counts[level],
			Percent: float64(counts[level]) / float64(simulateFlags.count) * 100,
		})
	}
	return summary, nil
}

type nopProgress struct{}

func (nopProgress) Start(int64) {}
func (nopProgress) Increment()  {}
func (nopProgress) Finish()     {}
func (nopProgress) Error(error) {}
