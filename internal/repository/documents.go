package repository

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/qmlabs-dsdi/coa-processor/constants"
)

// maxErrorMessageLen matches the error_message column width.
const maxErrorMessageLen = 500

type DocumentRepository interface {
	CreatePending(ctx context.Context, q Queryer, compoundID uuid.UUID, templateID *uuid.UUID, filename string) (*Document, error)
	CreateProcessing(ctx context.Context, q Queryer, compoundID uuid.UUID, templateID *uuid.UUID, filename string) (*Document, error)
	ExistsByCompoundAndFilename(ctx context.Context, q Queryer, compoundID uuid.UUID, filename string) (bool, error)
	MarkCompleted(ctx context.Context, q Queryer, id uuid.UUID) error
	MarkFailed(ctx context.Context, q Queryer, id uuid.UUID, errMsg string) error
	GetByID(ctx context.Context, q Queryer, id uuid.UUID) (*Document, error)
	ListByCompound(ctx context.Context, q Queryer, compoundID uuid.UUID, status constants.DocStatus) ([]Document, error)
}

type documentRepo struct {
	logger *slog.Logger
}

func NewDocumentRepository(logger *slog.Logger) DocumentRepository {
	return &documentRepo{logger: logger}
}

// CreatePending records an uploaded document awaiting its batch run.
func (r *documentRepo) CreatePending(ctx context.Context, q Queryer, compoundID uuid.UUID, templateID *uuid.UUID, filename string) (*Document, error) {
	return r.create(ctx, q, compoundID, templateID, filename, constants.StatusPending)
}

func (r *documentRepo) CreateProcessing(ctx context.Context, q Queryer, compoundID uuid.UUID, templateID *uuid.UUID, filename string) (*Document, error) {
	return r.create(ctx, q, compoundID, templateID, filename, constants.StatusProcessing)
}

func (r *documentRepo) create(ctx context.Context, q Queryer, compoundID uuid.UUID, templateID *uuid.UUID, filename string, status constants.DocStatus) (*Document, error) {
	doc := &Document{
		CompoundID: compoundID,
		TemplateID: templateID,
		Filename:   filename,
		Status:     status,
	}
	err := q.QueryRow(ctx, `
		INSERT INTO coa_documents (compound_id, template_id, filename, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, uploaded_at`,
		compoundID, templateID, filename, status.String(),
	).Scan(&doc.ID, &doc.UploadedAt)
	if err != nil {
		r.logger.Error("failed to create document", "compound_id", compoundID, "filename", filename, "error", err)
		return nil, err
	}
	return doc, nil
}

func (r *documentRepo) ExistsByCompoundAndFilename(ctx context.Context, q Queryer, compoundID uuid.UUID, filename string) (bool, error) {
	// Any prior row counts, failed attempts included, so retries do not
	// accumulate a new row per attempt.
	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM coa_documents
			WHERE compound_id = $1 AND filename = $2
		)`,
		compoundID, filename,
	).Scan(&exists)
	if err != nil {
		r.logger.Error("failed to check document existence", "compound_id", compoundID, "filename", filename, "error", err)
		return false, err
	}
	return exists, nil
}

func (r *documentRepo) MarkCompleted(ctx context.Context, q Queryer, id uuid.UUID) error {
	_, err := q.Exec(ctx, `
		UPDATE coa_documents
		SET status = $2, processed_at = now(), error_message = NULL
		WHERE id = $1`,
		id, constants.StatusCompleted.String())
	if err != nil {
		r.logger.Error("failed to mark document completed", "document_id", id, "error", err)
	}
	return err
}

func (r *documentRepo) MarkFailed(ctx context.Context, q Queryer, id uuid.UUID, errMsg string) error {
	errMsg = truncateErrorMessage(errMsg)
	_, err := q.Exec(ctx, `
		UPDATE coa_documents
		SET status = $2, processed_at = now(), error_message = $3
		WHERE id = $1`,
		id, constants.StatusFailed.String(), errMsg)
	if err != nil {
		r.logger.Error("failed to mark document failed", "document_id", id, "error", err)
	}
	return err
}

func (r *documentRepo) GetByID(ctx context.Context, q Queryer, id uuid.UUID) (*Document, error) {
	return scanDocument(q.QueryRow(ctx, `
		SELECT id, compound_id, template_id, filename, status, error_message, uploaded_at, processed_at
		FROM coa_documents WHERE id = $1`, id))
}

func (r *documentRepo) ListByCompound(ctx context.Context, q Queryer, compoundID uuid.UUID, status constants.DocStatus) ([]Document, error) {
	rows, err := q.Query(ctx, `
		SELECT id, compound_id, template_id, filename, status, error_message, uploaded_at, processed_at
		FROM coa_documents
		WHERE compound_id = $1 AND status = $2
		ORDER BY filename`,
		compoundID, status.String())
	if err != nil {
		r.logger.Error("failed to list documents", "compound_id", compoundID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var (
		doc       Document
		rawStatus string
		errMsg    *string
	)
	if err := row.Scan(&doc.ID, &doc.CompoundID, &doc.TemplateID, &doc.Filename,
		&rawStatus, &errMsg, &doc.UploadedAt, &doc.ProcessedAt); err != nil {
		return nil, err
	}
	status, err := constants.ParseDocStatus(rawStatus)
	if err != nil {
		return nil, err
	}
	doc.Status = status
	if errMsg != nil {
		doc.ErrorMessage = *errMsg
	}
	return &doc, nil
}

// truncateErrorMessage bounds a message to the error_message column width
// without splitting a multi-byte rune; Postgres rejects invalid UTF-8.
func truncateErrorMessage(msg string) string {
	if len(msg) <= maxErrorMessageLen {
		return msg
	}
	cut := maxErrorMessageLen
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}
