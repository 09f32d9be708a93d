package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/qmlabs-dsdi/coa-processor/internal/common"
)

type CacheRepository interface {
	Get(ctx context.Context, q Queryer, compoundID, templateID uuid.UUID) (*CacheEntry, error)
	Upsert(ctx context.Context, q Queryer, entry *CacheEntry) error
	Delete(ctx context.Context, q Queryer, compoundID, templateID uuid.UUID) (int64, error)
	Stats(ctx context.Context, q Queryer, recentLimit int) (*CacheStats, error)
}

type cacheRepo struct {
	logger *slog.Logger
}

func NewCacheRepository(logger *slog.Logger) CacheRepository {
	return &cacheRepo{logger: logger}
}

// Get returns the cache entry for the pair, or ErrNotFound.
func (r *cacheRepo) Get(ctx context.Context, q Queryer, compoundID, templateID uuid.UUID) (*CacheEntry, error) {
	entry := &CacheEntry{}
	var rawBatch []byte
	err := q.QueryRow(ctx, `
		SELECT id, compound_id, template_id, batch_data, fingerprints, processed_files,
		       total_files, created_at, updated_at
		FROM batch_data_cache
		WHERE compound_id = $1 AND template_id = $2`,
		compoundID, templateID,
	).Scan(&entry.ID, &entry.CompoundID, &entry.TemplateID, &rawBatch,
		&entry.Fingerprints, &entry.ProcessedFiles, &entry.TotalFiles,
		&entry.CreatedAt, &entry.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to get cache entry",
			"compound_id", compoundID, "template_id", templateID, "error", err)
		return nil, err
	}

	if err := json.Unmarshal(rawBatch, &entry.BatchData); err != nil {
		r.logger.Error("failed to decode cached batch data",
			"compound_id", compoundID, "template_id", templateID, "error", err)
		return nil, common.WrapError(err, "decoding cached batch data")
	}
	return entry, nil
}

// Upsert writes a cache entry in one statement; the (compound, template)
// unique constraint keeps at most one row per pair.
func (r *cacheRepo) Upsert(ctx context.Context, q Queryer, entry *CacheEntry) error {
	rawBatch, err := json.Marshal(entry.BatchData)
	if err != nil {
		return common.WrapError(err, "encoding batch data")
	}

	err = q.QueryRow(ctx, `
		INSERT INTO batch_data_cache
			(compound_id, template_id, batch_data, fingerprints, processed_files, total_files)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (compound_id, template_id) DO UPDATE SET
			batch_data      = EXCLUDED.batch_data,
			fingerprints    = EXCLUDED.fingerprints,
			processed_files = EXCLUDED.processed_files,
			total_files     = EXCLUDED.total_files,
			updated_at      = now()
		RETURNING id, created_at, updated_at`,
		entry.CompoundID, entry.TemplateID, rawBatch,
		entry.Fingerprints, entry.ProcessedFiles, entry.TotalFiles,
	).Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to upsert cache entry",
			"compound_id", entry.CompoundID, "template_id", entry.TemplateID, "error", err)
		return err
	}
	return nil
}

// Delete removes the entry for the pair and returns how many rows went away.
func (r *cacheRepo) Delete(ctx context.Context, q Queryer, compoundID, templateID uuid.UUID) (int64, error) {
	tag, err := q.Exec(ctx, `
		DELETE FROM batch_data_cache
		WHERE compound_id = $1 AND template_id = $2`,
		compoundID, templateID)
	if err != nil {
		r.logger.Error("failed to delete cache entry",
			"compound_id", compoundID, "template_id", templateID, "error", err)
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *cacheRepo) Stats(ctx context.Context, q Queryer, recentLimit int) (*CacheStats, error) {
	stats := &CacheStats{}
	err := q.QueryRow(ctx, `
		SELECT count(*), coalesce(sum(total_files), 0) FROM batch_data_cache`,
	).Scan(&stats.TotalEntries, &stats.TotalBatches)
	if err != nil {
		r.logger.Error("failed to read cache stats", "error", err)
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT id, compound_id, template_id, batch_data, fingerprints, processed_files,
		       total_files, created_at, updated_at
		FROM batch_data_cache
		ORDER BY updated_at DESC
		LIMIT $1`, recentLimit)
	if err != nil {
		r.logger.Error("failed to list recent cache entries", "error", err)
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var entry CacheEntry
		var rawBatch []byte
		if err := rows.Scan(&entry.ID, &entry.CompoundID, &entry.TemplateID, &rawBatch,
			&entry.Fingerprints, &entry.ProcessedFiles, &entry.TotalFiles,
			&entry.CreatedAt, &entry.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(rawBatch, &entry.BatchData); err != nil {
			return nil, common.WrapError(err, "decoding cached batch data")
		}
		stats.Recent = append(stats.Recent, entry)
	}
	return stats, rows.Err()
}
