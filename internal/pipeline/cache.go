package pipeline

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/qmlabs-dsdi/coa-processor/internal/common"
	"github.com/qmlabs-dsdi/coa-processor/internal/repository"
	"github.com/qmlabs-dsdi/coa-processor/internal/source"
)

// CheckCache reports whether a batch is cached for the pair and, when a
// source is supplied, whether the cached fingerprints still match what the
// source would list today.
func (o *Orchestrator) CheckCache(ctx context.Context, src source.Adapter, compoundID, templateID uuid.UUID) (*CacheCheck, error) {
	entry, err := o.cache.Get(ctx, o.db, compoundID, templateID)
	if errors.Is(err, common.ErrNotFound) {
		return &CacheCheck{}, nil
	}
	if err != nil {
		return nil, err
	}

	check := &CacheCheck{Cached: true, Entry: entry}
	if src != nil {
		_, fps, err := src.ListDocuments(ctx)
		if err != nil {
			// Cache existence is still a useful answer when the source is
			// unreachable; staleness is simply unknown.
			o.logger.Warn("pipeline.staleness_check_failed", "error", err)
			return check, nil
		}
		check.CurrentSource = fps
		check.Stale = !fps.Equal(entry.Fingerprints)
	}
	return check, nil
}

// ClearCache drops the cached batch for the pair and returns how many
// entries were removed.
func (o *Orchestrator) ClearCache(ctx context.Context, compoundID, templateID uuid.UUID) (int64, error) {
	n, err := o.cache.Delete(ctx, o.db, compoundID, templateID)
	if err != nil {
		return 0, err
	}
	o.logger.Info("pipeline.cache_cleared",
		"compound_id", compoundID, "template_id", templateID, "deleted", n)
	return n, nil
}

const recentCacheEntries = 10

// CacheStatus summarizes the whole cache table.
func (o *Orchestrator) CacheStatus(ctx context.Context) (*repository.CacheStats, error) {
	return o.cache.Stats(ctx, o.db, recentCacheEntries)
}
