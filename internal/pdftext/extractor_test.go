package pdftext

import (
	"errors"
	"testing"

	"github.com/qmlabs-dsdi/coa-processor/internal/common"
)

func TestExtract_RejectsGarbageBytes(t *testing.T) {
	e := NewExtractor(0, nil)
	_, err := e.Extract([]byte("this is not a pdf"), "junk.pdf")
	if err == nil {
		t.Fatal("expected error for non-PDF bytes")
	}
	var xerr *common.ExtractionError
	if !errors.As(err, &xerr) {
		t.Fatalf("expected *common.ExtractionError, got %T: %v", err, err)
	}
	if xerr.Filename != "junk.pdf" {
		t.Errorf("error filename = %q", xerr.Filename)
	}
}

func TestExtract_RejectsEmptyInput(t *testing.T) {
	e := NewExtractor(0, nil)
	if _, err := e.Extract(nil, "empty.pdf"); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestExtract_TruncatedHeader(t *testing.T) {
	// A bare header with no xref table must fail as malformed, not succeed
	// with empty text.
	e := NewExtractor(0, nil)
	var xerr *common.ExtractionError
	if _, err := e.Extract([]byte("%PDF-1.4\n"), "trunc.pdf"); !errors.As(err, &xerr) {
		t.Fatalf("expected *common.ExtractionError, got %v", err)
	}
}
