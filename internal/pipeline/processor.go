// Package pipeline orchestrates batch certificate processing: list documents
// from a source, extract text and fields per document inside its own
// transaction, and maintain the durable batch result cache.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/qmlabs-dsdi/coa-processor/constants"
	"github.com/qmlabs-dsdi/coa-processor/internal/common"
	"github.com/qmlabs-dsdi/coa-processor/internal/llm"
	"github.com/qmlabs-dsdi/coa-processor/internal/repository"
	"github.com/qmlabs-dsdi/coa-processor/internal/source"
)

// TextExtractor turns raw PDF bytes into plain text.
type TextExtractor interface {
	Extract(data []byte, filename string) (string, error)
}

// FailedFile records one per-document failure inside an otherwise
// successful batch.
type FailedFile struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// BatchResult is the outcome of one batch run.
type BatchResult struct {
	ProcessedFiles []string          `json:"processed_files"`
	SkippedFiles   []string          `json:"skipped_files,omitempty"`
	FailedFiles    []FailedFile      `json:"failed_files,omitempty"`
	TotalFiles     int               `json:"total_files"`
	BatchData      []llm.BatchRecord `json:"batch_data"`
	FromCache      bool              `json:"from_cache"`
	Message        string            `json:"message"`
}

// CacheCheck reports whether a cached batch exists and whether it still
// matches the source content.
type CacheCheck struct {
	Cached        bool                   `json:"cached"`
	Stale         bool                   `json:"stale"`
	Entry         *repository.CacheEntry `json:"entry,omitempty"`
	CurrentSource source.FingerprintSet  `json:"-"`
}

// Orchestrator wires the source, extractors and persistence into the batch
// flow. One instance serves all requests; per-request state stays on the
// stack.
type Orchestrator struct {
	text   TextExtractor
	fields llm.FieldExtractor
	tx     repository.TxRunner
	db     repository.Queryer
	docs   repository.DocumentRepository
	fieldR repository.FieldRepository
	cache  repository.CacheRepository
	cfg    common.ProcessingConfig
	logger *slog.Logger
}

func NewOrchestrator(
	text TextExtractor,
	fields llm.FieldExtractor,
	tx repository.TxRunner,
	db repository.Queryer,
	docs repository.DocumentRepository,
	fieldR repository.FieldRepository,
	cache repository.CacheRepository,
	cfg common.ProcessingConfig,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		text:   text,
		fields: fields,
		tx:     tx,
		db:     db,
		docs:   docs,
		fieldR: fieldR,
		cache:  cache,
		cfg:    cfg,
		logger: logger,
	}
}

const (
	basicFieldConfidence  = 0.95
	resultFieldConfidence = 0.90
)

// Process runs a batch against the given source. Unless force is set and
// when caching is enabled, a cache entry whose fingerprints match the
// source's current listing is returned as-is with zero extraction work.
func (o *Orchestrator) Process(ctx context.Context, src source.Adapter, compoundID, templateID uuid.UUID, force bool) (*BatchResult, error) {
	handles, fps, err := src.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	if len(handles) == 0 {
		return nil, common.NewAppError("SOURCE_UNAVAILABLE", "no PDF documents found", common.ErrSourceUnavailable)
	}

	if o.cfg.CacheEnabled && !force {
		entry, err := o.cache.Get(ctx, o.db, compoundID, templateID)
		if err == nil && fps.Equal(entry.Fingerprints) {
			o.logger.Info("pipeline.cache_hit",
				"compound_id", compoundID, "template_id", templateID,
				"batches", len(entry.BatchData))
			return &BatchResult{
				ProcessedFiles: entry.ProcessedFiles,
				TotalFiles:     entry.TotalFiles,
				BatchData:      entry.BatchData,
				FromCache:      true,
				Message:        fmt.Sprintf("returning %d cached batches", len(entry.BatchData)),
			}, nil
		}
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			// A broken cache read never blocks a batch run.
			o.logger.Warn("pipeline.cache_read_failed", "error", err)
		}
	}

	result := &BatchResult{TotalFiles: len(handles)}
	for _, h := range handles {
		if err := ctx.Err(); err != nil {
			result.Message = fmt.Sprintf("cancelled after %d of %d documents", len(result.ProcessedFiles), len(handles))
			o.logger.Warn("pipeline.cancelled", "processed", len(result.ProcessedFiles))
			return result, err
		}

		rec, skipped, err := o.processDocument(ctx, src, h, compoundID, templateID)
		switch {
		case skipped:
			result.SkippedFiles = append(result.SkippedFiles, h.Name)
		case err != nil:
			o.logger.Error("pipeline.document_failed", "filename", h.Name, "error", err)
			result.FailedFiles = append(result.FailedFiles, FailedFile{Filename: h.Name, Error: err.Error()})
		default:
			result.ProcessedFiles = append(result.ProcessedFiles, h.Name)
			result.BatchData = append(result.BatchData, rec)
		}
	}

	if o.cfg.CacheEnabled && len(result.BatchData) > 0 {
		entry := &repository.CacheEntry{
			CompoundID:     compoundID,
			TemplateID:     templateID,
			BatchData:      result.BatchData,
			Fingerprints:   fps,
			ProcessedFiles: result.ProcessedFiles,
			TotalFiles:     result.TotalFiles,
		}
		if err := o.cache.Upsert(ctx, o.db, entry); err != nil {
			// The batch already succeeded; a failed cache write only costs
			// the next run a re-extraction.
			o.logger.Warn("pipeline.cache_write_failed", "error", err)
		}
	}

	result.Message = fmt.Sprintf("processed %d of %d documents (%d skipped, %d failed)",
		len(result.ProcessedFiles), result.TotalFiles,
		len(result.SkippedFiles), len(result.FailedFiles))
	o.logger.Info("pipeline.batch_done",
		"compound_id", compoundID, "template_id", templateID,
		"processed", len(result.ProcessedFiles), "failed", len(result.FailedFiles),
		"skipped", len(result.SkippedFiles))
	return result, nil
}

// processDocument handles one document. All writes happen in one
// transaction; on any failure the transaction rolls back and a second,
// independent transaction records the failed status so the audit row
// survives.
func (o *Orchestrator) processDocument(ctx context.Context, src source.Adapter, h source.Handle, compoundID, templateID uuid.UUID) (llm.BatchRecord, bool, error) {
	exists, err := o.docs.ExistsByCompoundAndFilename(ctx, o.db, compoundID, h.Name)
	if err != nil {
		return llm.BatchRecord{}, false, err
	}
	if exists {
		o.logger.Debug("pipeline.duplicate_skipped", "filename", h.Name)
		return llm.BatchRecord{}, true, nil
	}

	data, _, err := src.Fetch(ctx, h)
	if err != nil {
		o.recordFailure(ctx, compoundID, templateID, h.Name, err)
		return llm.BatchRecord{}, false, err
	}

	var rec llm.BatchRecord
	var docID uuid.UUID
	txErr := o.tx.RunInTx(ctx, func(q repository.Queryer) error {
		doc, err := o.docs.CreateProcessing(ctx, q, compoundID, &templateID, h.Name)
		if err != nil {
			return err
		}
		docID = doc.ID

		text, err := o.text.Extract(data, h.Name)
		if err != nil {
			return err
		}

		rec, err = o.fields.Extract(ctx, text, h.Name)
		if err != nil {
			return err
		}
		rec = llm.Validate(rec)

		// An all-sentinel record persists no fields but still completes: an
		// unreadable model response flags its document with TBDs instead of
		// dropping it from the batch.
		if fields := buildFields(doc.ID, rec); len(fields) > 0 {
			if err := o.fieldR.InsertFields(ctx, q, fields); err != nil {
				return err
			}
		}
		return o.docs.MarkCompleted(ctx, q, doc.ID)
	})
	if txErr != nil {
		o.recordFailure(ctx, compoundID, templateID, h.Name, txErr)
		return llm.BatchRecord{}, false, txErr
	}

	o.logger.Info("pipeline.document_completed", "filename", h.Name, "document_id", docID)
	return rec, false, nil
}

// recordFailure writes the failed document row outside the (rolled back)
// processing transaction. Best effort: losing the audit row is preferable to
// failing the batch twice.
func (o *Orchestrator) recordFailure(ctx context.Context, compoundID, templateID uuid.UUID, filename string, cause error) {
	err := o.tx.RunInTx(ctx, func(q repository.Queryer) error {
		doc, err := o.docs.CreateProcessing(ctx, q, compoundID, &templateID, filename)
		if err != nil {
			return err
		}
		return o.docs.MarkFailed(ctx, q, doc.ID, cause.Error())
	})
	if err != nil {
		o.logger.Error("pipeline.failure_record_failed", "filename", filename, "error", err)
	}
}

// buildFields flattens a validated record into persistable fields. Sentinel
// and empty values carry no information and are not stored.
func buildFields(docID uuid.UUID, rec llm.BatchRecord) []repository.ExtractedField {
	var fields []repository.ExtractedField
	add := func(name, value string, confidence float32) {
		if value == "" || value == constants.SentinelTBD {
			return
		}
		fields = append(fields, repository.ExtractedField{
			DocumentID:   docID,
			FieldName:    name,
			FieldValue:   value,
			Confidence:   confidence,
			OriginalText: value,
		})
	}

	add("batch_number", rec.BatchNumber, basicFieldConfidence)
	add("manufacture_date", rec.ManufactureDate, basicFieldConfidence)
	add("manufacturer", rec.Manufacturer, basicFieldConfidence)
	for name, value := range rec.TestResults {
		add(name, value, resultFieldConfidence)
	}
	return fields
}
