// Package source provides document source adapters. A source lists the
// documents available for a batch run and fetches their raw bytes; the
// pipeline is indifferent to whether they came from a local directory or a
// remote vault.
package source

import (
	"context"
	"time"
)

// Handle identifies one document within a source. ID is the source-native
// identifier (file path, vault document id); Name is the filename the rest
// of the system keys on.
type Handle struct {
	ID   string
	Name string
}

// Metadata describes a fetched document.
type Metadata struct {
	Size     int64
	Modified time.Time
	Version  string
}

// Adapter is the contract a document source implements.
type Adapter interface {
	// ListDocuments returns the documents currently available plus the
	// fingerprint set describing this listing. The fingerprint set is what
	// the cache layer compares to decide staleness.
	ListDocuments(ctx context.Context) ([]Handle, FingerprintSet, error)

	// Fetch returns the raw bytes of one document.
	Fetch(ctx context.Context, h Handle) ([]byte, Metadata, error)
}

// FingerprintSet is a set of opaque fingerprint strings, kept sorted so that
// two listings of the same content compare equal regardless of enumeration
// order.
type FingerprintSet []string

// Equal reports whether two fingerprint sets describe the same content.
// Both sides are assumed sorted, which every constructor in this package
// guarantees.
func (s FingerprintSet) Equal(other FingerprintSet) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}
