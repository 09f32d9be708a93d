// Package pdftext extracts plain text from COA PDFs, page-bounded.
package pdftext

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/qmlabs-dsdi/coa-processor/internal/common"
)

// DefaultPageLimit bounds how many pages are read per document. COA reports
// front-load the analytical tables, so later pages add cost, not signal.
const DefaultPageLimit = 10

type Extractor struct {
	pageLimit int
	logger    *slog.Logger
}

func NewExtractor(pageLimit int, logger *slog.Logger) *Extractor {
	if pageLimit <= 0 {
		pageLimit = DefaultPageLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{pageLimit: pageLimit, logger: logger}
}

// Extract returns page text for an in-memory PDF. Sources hand over raw
// bytes, so there is no file-path variant.
func (e *Extractor) Extract(data []byte, filename string) (string, error) {
	return e.extract(bytes.NewReader(data), int64(len(data)), filename)
}

func (e *Extractor) extract(ra readerAt, size int64, filename string) (text string, err error) {
	start := time.Now()

	// The pdf reader panics on some malformed files instead of returning an
	// error; fold those into the same failure mode.
	defer func() {
		if r := recover(); r != nil {
			err = &common.ExtractionError{Filename: filename, Reason: fmt.Sprintf("malformed pdf: %v", r)}
		}
	}()

	r, err := pdf.NewReader(ra, size)
	if err != nil {
		return "", &common.ExtractionError{Filename: filename, Reason: "parse pdf", Cause: err}
	}

	pages := r.NumPage()
	if pages > e.pageLimit {
		pages = e.pageLimit
	}

	var b strings.Builder
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, perr := page.GetPlainText(nil)
		if perr != nil {
			e.logger.Warn("pdftext.page_error", "file", filename, "page", i, "error", perr)
			continue
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- Page %d ---\n%s", i, pageText)
	}

	out := b.String()
	if strings.TrimSpace(out) == "" {
		// No extractable text is indistinguishable from a broken scan for
		// downstream extraction; callers must not treat it as valid-but-empty.
		return "", &common.ExtractionError{Filename: filename, Reason: "no text content found in PDF"}
	}

	e.logger.Debug("pdftext.extract.ok",
		"file", filename,
		"pages", pages,
		"chars", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

type readerAt interface {
	ReadAt(p []byte, off int64) (n int, err error)
}
