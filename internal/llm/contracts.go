package llm

import (
	"context"

	"github.com/qmlabs-dsdi/coa-processor/constants"
)

// BatchRecord is the structured extraction result for one COA document.
// Each document's extraction stands alone; records are never merged.
type BatchRecord struct {
	Filename        string            `json:"filename"`
	BatchNumber     string            `json:"batch_number"`
	ManufactureDate string            `json:"manufacture_date"`
	Manufacturer    string            `json:"manufacturer"`
	TestResults     map[string]string `json:"test_results"`
}

// FieldExtractor is the interface the pipeline depends on.
//
// Implementations absorb model-call and response-parse failures: they return
// the empty record (every schema parameter set to TBD) instead of an error, so
// one unreadable model response never makes a document vanish from the batch.
type FieldExtractor interface {
	Extract(ctx context.Context, text, filename string) (BatchRecord, error)
}

// NewEmptyRecord returns a record with every schema parameter set to TBD.
// This is the sink state for model failures and the baseline every parse
// backfills into.
func NewEmptyRecord(filename string) BatchRecord {
	results := make(map[string]string, len(constants.TestParameters))
	for _, p := range constants.TestParameters {
		results[p] = constants.SentinelTBD
	}
	return BatchRecord{
		Filename:    filename,
		TestResults: results,
	}
}
