package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/prognos/pkg/store"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// RetentionDays is the number of days to keep stored predictions.
	// 0 means keep predictions forever (no pruning).
	RetentionDays int

	// PruneSchedule is a cron expression for scheduling pruning.
	// Example: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string
}

// Pruner deletes stored predictions older than the retention period.
type Pruner struct {
	store    store.Store
	config   Config
	logger   *slog.Logger
	now      func() time.Time
	onPruned func(int64)
}

// NewPruner creates a pruner for s. onPruned, if non-nil, is called with the
// number of records removed by each successful run.
func NewPruner(s store.Store, config Config, logger *slog.Logger, onPruned func(int64)) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		store:    s,
		config:   config,
		logger:   logger.With("component", "store.retention"),
		now:      time.Now,
		onPruned: onPruned,
	}
}

// Prune deletes records created before now minus RetentionDays and returns
// how many were removed. It does nothing when RetentionDays is 0.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if p.config.RetentionDays <= 0 {
		return 0, nil
	}

	cutoff := p.now().AddDate(0, 0, -p.config.RetentionDays)
	p.logger.Debug("pruning by age",
		"cutoff_time", cutoff,
		"retention_days", p.config.RetentionDays,
	)

	deleted, err := p.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return deleted, fmt.Errorf("prune by age failed: %w", err)
	}

	if p.onPruned != nil {
		p.onPruned(deleted)
	}
	if deleted > 0 {
		p.logger.Info("prediction pruning completed",
			"deleted_count", deleted,
			"retention_days", p.config.RetentionDays,
		)
	}
	return deleted, nil
}
