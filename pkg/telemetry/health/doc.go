// Package health provides liveness, readiness and version endpoints for a
// hosted prognos backend.
//
// prognos watch serves the endpoints next to the Prometheus metrics
// endpoint:
//
//   - /health: liveness, 200 while the process runs
//   - /ready: readiness, 200 when every registered check passes, 503 otherwise
//   - /version: build information
//
// Readiness checks are plain functions:
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("store", health.StoreCheck(st))
//	health.Register(mux, checker, cfg.Telemetry.Health, health.VersionInfo{Version: version})
//
// Checks run concurrently and each is bounded by the checker's timeout.
package health
