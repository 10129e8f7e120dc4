// Package logging provides structured logging with PHI redaction.
//
// # Overview
//
// The logging package wraps Go's standard log/slog package to provide:
//   - Structured logging with JSON and text formats
//   - Automatic PHI and credential redaction
//   - Context-aware logging with request and prediction identifiers
//   - Configurable log levels (debug, info, warn, error)
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:     "info",
//	    Format:    "json",
//	    RedactPHI: true,
//	})
//
//	logger.Info("prediction stored",
//	    "prediction_id", id,
//	    "api_key", key, // redacted
//	)
//
//	// Components that take a *slog.Logger get the redacting handler too
//	bus := events.NewBus(logger.Slog(), 0)
//
// # Redaction
//
// When RedactPHI is enabled every record passes through RedactingHandler:
//
//   - SSN: 123-45-6789 becomes [REDACTED:SSN]
//   - Email: jane@example.com becomes [REDACTED:EMAIL]
//   - Phone: (555) 123-4567 becomes [REDACTED:PHONE]
//   - Fields keyed ssn, dob, first_name, address and the like become ***
//   - Fields whose key contains token, secret or api_key become ***
//
// # Context fields
//
// Records logged with a context carry the identifiers stored in it, and the
// trace and span ids of the active span:
//
//	ctx = logging.WithBackend(ctx, "cloud")
//	logger.Slog().WarnContext(ctx, "runtime request failed, will retry")
//	// {"msg":"...","backend":"cloud","trace_id":"4bf9...","span_id":"00f0..."}
package logging
