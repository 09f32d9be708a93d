package constants

import "strings"

// PDFExtension is the only document type this pipeline ingests.
const PDFExtension = "pdf"

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsPDFExt reports whether ext (with or without a leading dot) names a PDF.
func IsPDFExt(ext string) bool {
	return NormalizeExt(ext) == PDFExtension
}
