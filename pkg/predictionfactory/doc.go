// Package predictionfactory builds initialized prediction backends from
// explicit options, a loaded configuration, or environment variables.
//
// # Environment
//
// NewBackendFromEnv reads the same PROGNOS_* variables as config.ApplyEnv,
// notably:
//
//	PROGNOS_SERVICE_TYPE                 mock | cloud
//	PROGNOS_PRIVACY_LEVEL                standard | enhanced | maximum
//	PROGNOS_REGION                       runtime region (cloud)
//	PROGNOS_MODEL_ENDPOINT_<MODEL_TYPE>  endpoint per model type; _DEFAULT for the fallback
//	PROGNOS_MOCK_RISK_DISTRIBUTION       five weights, e.g. "5,20,50,20,5"
//
// Every backend gets a logging observer on "*" unless WithoutDefaultObserver
// is given. Manager keeps several named backends and closes them together.
package predictionfactory
