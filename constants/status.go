package constants

import "fmt"

// DocStatus is the canonical processing state for rows in coa_documents.
type DocStatus string

// Stable values (store these exact strings in DB).
const (
	StatusPending    DocStatus = "pending"    // row created, extraction not started
	StatusProcessing DocStatus = "processing" // extraction in progress
	StatusCompleted  DocStatus = "completed"  // terminal success, fields persisted
	StatusFailed     DocStatus = "failed"     // terminal failure, error recorded
)

func (s DocStatus) String() string { return string(s) }

// Valid reports whether s is one of the four closed states.
func (s DocStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// ParseDocStatus maps a persisted string back to its status. The mapping is
// total over the closed set; anything else is a corruption error, never a
// silently-accepted free-form value.
func ParseDocStatus(v string) (DocStatus, error) {
	s := DocStatus(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown document status %q", v)
	}
	return s, nil
}
