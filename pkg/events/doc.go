// Package events implements the observer bus that prediction backends use to
// announce initialization, predictions, integrations, errors and
// configuration changes.
//
// Every backend owns its own Bus. There is no process-wide registry.
package events
