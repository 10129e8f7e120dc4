/*
Package cli provides command-line interface utilities for prognos.

The cli package includes output formatters, progress reporting, exit codes and
signal handling used by the prognos command.

Output Formatting:

Commands render results as text, JSON or CSV. Text and CSV output work on a
Table; JSON output marshals the typed result directly:

	format, err := cli.ParseOutputFormat(flagValue)
	if err != nil {
		return err
	}
	var table cli.Table
	table.Append("risk_level", pred.RiskLevel)
	return cli.NewFormatter(format).FormatTo(os.Stdout, table)

Progress Reporting:

	progress := cli.NewProgressReporter(os.Stderr, "predictions")
	progress.Start(int64(n))
	for range n {
		// Do work
		progress.Increment()
	}
	progress.Finish()

Exit Codes:

ExitCode maps prediction faults (privacy rejection, unknown resource,
unreachable runtime) to distinct process exit codes.

Signal Handling:

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()
*/
package cli
