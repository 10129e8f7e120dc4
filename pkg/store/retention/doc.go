// Package retention prunes stored predictions older than a configured number
// of days, on demand through Pruner or on a cron schedule through Scheduler.
package retention
