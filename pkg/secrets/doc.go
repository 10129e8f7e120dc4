// Package secrets resolves ${secret:name} references in configuration.
//
// Credentials such as the cloud runtime API key or the Postgres DSN can be
// written as references instead of literal values:
//
//	cloud:
//	  api_key: ${secret:runtime-api-key}
//	store:
//	  postgres:
//	    dsn: postgres://prognos:${secret:pg-password}@db:5432/prognos
//
// A Manager tries its providers in order. The file provider reads one file
// per secret from a directory (Kubernetes-style mounts) and refuses files
// readable by group or others. The env provider maps "runtime-api-key" to
// PROGNOS_SECRET_RUNTIME_API_KEY.
//
// Resolved values are cached for a short TTL and are never logged.
package secrets
