package prediction

import (
	"maps"
	"time"
)

// DefaultEndpointKey is the ModelEndpoints entry used for model types without
// an endpoint of their own.
const DefaultEndpointKey = "default"

// Options configures a backend. Fields that a backend does not use are
// ignored.
type Options struct {
	// PrivacyLevel selects the PHI detector tier: "standard", "enhanced" or
	// "maximum". Empty means "standard".
	PrivacyLevel string

	// Scanner overrides the PHI guard built from PrivacyLevel.
	Scanner PHIScanner

	// Region is the cloud region of the model runtime (cloud only)
	Region string

	// PredictionsStoreName enables persistence of raw results (cloud only)
	PredictionsStoreName string

	// DigitalTwinFunctionName is the remote integration function (cloud only)
	DigitalTwinFunctionName string

	// ModelEndpoints maps model types to endpoint names (cloud only)
	ModelEndpoints map[string]string

	// MockDelay delays every mock prediction
	MockDelay time.Duration

	// RiskDistribution maps the five risk levels to percentages summing to
	// 100. When set, the mock backend draws keyword-less risk levels from it.
	RiskDistribution map[string]float64

	// Seed seeds the mock random source. 0 seeds from the clock.
	Seed int64

	// ObserverTimeout bounds each observer notification
	ObserverTimeout time.Duration
}

// Clone returns a deep copy of o.
func (o Options) Clone() Options {
	o.ModelEndpoints = maps.Clone(o.ModelEndpoints)
	o.RiskDistribution = maps.Clone(o.RiskDistribution)
	return o
}

// Endpoint resolves the endpoint name for modelType, falling back to the
// "default" entry.
func (o Options) Endpoint(modelType string) (string, bool) {
	if name, ok := o.ModelEndpoints[modelType]; ok && name != "" {
		return name, true
	}
	if name, ok := o.ModelEndpoints[DefaultEndpointKey]; ok && name != "" {
		return name, true
	}
	return "", false
}
