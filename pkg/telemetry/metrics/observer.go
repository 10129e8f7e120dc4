package metrics

import (
	"context"
	"time"

	"mercator-hq/prognos/pkg/events"
)

// Observer returns an events.Observer that feeds the collector. Register it
// under events.All to count every event a backend publishes.
//
// It reads these payload keys when present: "prediction_type", "model_type",
// "kind", "operation" and "duration_ms".
func (c *Collector) Observer() events.Observer {
	return &eventObserver{c: c}
}

type eventObserver struct {
	c *Collector
}

func (o *eventObserver) Notify(_ context.Context, e events.Event) error {
	o.c.RecordEvent(e.Source, string(e.Type))

	switch e.Type {
	case events.Prediction:
		o.c.RecordPrediction(e.Source, str(e.Payload["prediction_type"]), str(e.Payload["model_type"]))
	case events.Error:
		o.c.RecordError(e.Source, str(e.Payload["kind"]))
	}

	if op := str(e.Payload["operation"]); op != "" {
		if d, ok := durationMS(e.Payload["duration_ms"]); ok {
			o.c.ObserveDuration(e.Source, op, d)
		}
	}
	return nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func durationMS(v any) (time.Duration, bool) {
	switch ms := v.(type) {
	case int64:
		return time.Duration(ms) * time.Millisecond, true
	case int:
		return time.Duration(ms) * time.Millisecond, true
	case float64:
		return time.Duration(ms * float64(time.Millisecond)), true
	default:
		return 0, false
	}
}
