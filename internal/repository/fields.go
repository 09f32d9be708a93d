package repository

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type FieldRepository interface {
	InsertFields(ctx context.Context, q Queryer, fields []ExtractedField) error
	ListByDocument(ctx context.Context, q Queryer, documentID uuid.UUID) ([]ExtractedField, error)
}

type fieldRepo struct {
	logger *slog.Logger
}

func NewFieldRepository(logger *slog.Logger) FieldRepository {
	return &fieldRepo{logger: logger}
}

func (r *fieldRepo) InsertFields(ctx context.Context, q Queryer, fields []ExtractedField) error {
	for _, f := range fields {
		_, err := q.Exec(ctx, `
			INSERT INTO extracted_fields (document_id, field_name, field_value, confidence, original_text)
			VALUES ($1, $2, $3, $4, $5)`,
			f.DocumentID, f.FieldName, f.FieldValue, f.Confidence, f.OriginalText)
		if err != nil {
			r.logger.Error("failed to insert extracted field",
				"document_id", f.DocumentID, "field_name", f.FieldName, "error", err)
			return err
		}
	}
	return nil
}

func (r *fieldRepo) ListByDocument(ctx context.Context, q Queryer, documentID uuid.UUID) ([]ExtractedField, error) {
	rows, err := q.Query(ctx, `
		SELECT document_id, field_name, field_value, confidence, original_text
		FROM extracted_fields
		WHERE document_id = $1
		ORDER BY field_name`, documentID)
	if err != nil {
		r.logger.Error("failed to list extracted fields", "document_id", documentID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var fields []ExtractedField
	for rows.Next() {
		var f ExtractedField
		var value, original *string
		if err := rows.Scan(&f.DocumentID, &f.FieldName, &value, &f.Confidence, &original); err != nil {
			return nil, err
		}
		if value != nil {
			f.FieldValue = *value
		}
		if original != nil {
			f.OriginalText = *original
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}
