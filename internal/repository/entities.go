package repository

import (
	"time"

	"github.com/google/uuid"

	"github.com/qmlabs-dsdi/coa-processor/constants"
	"github.com/qmlabs-dsdi/coa-processor/internal/llm"
)

// Compound is a drug substance whose certificates this system processes.
type Compound struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Template names an analysis layout; cache entries are keyed per
// (compound, template) pair.
type Template struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Document is one ingested certificate PDF.
type Document struct {
	ID           uuid.UUID           `json:"id"`
	CompoundID   uuid.UUID           `json:"compound_id"`
	TemplateID   *uuid.UUID          `json:"template_id,omitempty"`
	Filename     string              `json:"filename"`
	Status       constants.DocStatus `json:"status"`
	ErrorMessage string              `json:"error_message,omitempty"`
	UploadedAt   time.Time           `json:"uploaded_at"`
	ProcessedAt  *time.Time          `json:"processed_at,omitempty"`
}

// ExtractedField is one persisted field value for a document.
type ExtractedField struct {
	DocumentID   uuid.UUID `json:"document_id"`
	FieldName    string    `json:"field_name"`
	FieldValue   string    `json:"field_value"`
	Confidence   float32   `json:"confidence"`
	OriginalText string    `json:"original_text"`
}

// CacheEntry is the durable batch result for one (compound, template) pair.
type CacheEntry struct {
	ID             uuid.UUID         `json:"id"`
	CompoundID     uuid.UUID         `json:"compound_id"`
	TemplateID     uuid.UUID         `json:"template_id"`
	BatchData      []llm.BatchRecord `json:"batch_data"`
	Fingerprints   []string          `json:"fingerprints"`
	ProcessedFiles []string          `json:"processed_files"`
	TotalFiles     int               `json:"total_files"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// CacheStats summarizes the whole cache table.
type CacheStats struct {
	TotalEntries int          `json:"total_entries"`
	TotalBatches int          `json:"total_batches"`
	Recent       []CacheEntry `json:"recent"`
}
