package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/qmlabs-dsdi/coa-processor/constants"
	"github.com/qmlabs-dsdi/coa-processor/internal/common"
)

// LocalAdapter serves PDFs from a directory on disk.
type LocalAdapter struct {
	dir    string
	logger *slog.Logger
}

func NewLocalAdapter(dir string, logger *slog.Logger) *LocalAdapter {
	return &LocalAdapter{dir: dir, logger: logger}
}

// ListDocuments globs *.pdf under the configured directory. A missing
// directory is a source-level failure; an empty directory is a valid empty
// listing, the caller decides what that means.
func (a *LocalAdapter) ListDocuments(ctx context.Context) ([]Handle, FingerprintSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	info, err := os.Stat(a.dir)
	if err != nil || !info.IsDir() {
		a.logger.Warn("source.local.missing_dir", "dir", a.dir)
		return nil, nil, common.NewAppError("SOURCE_UNAVAILABLE",
			fmt.Sprintf("pdf directory %s does not exist", a.dir), common.ErrSourceUnavailable)
	}

	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, nil, common.WrapError(err, "reading pdf directory")
	}

	var handles []Handle
	var fps FingerprintSet
	for _, e := range entries {
		if e.IsDir() || !constants.IsPDFExt(filepath.Ext(e.Name())) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		handles = append(handles, Handle{
			ID:   filepath.Join(a.dir, e.Name()),
			Name: e.Name(),
		})
		fps = append(fps, fmt.Sprintf("%s:%d:%d", e.Name(), fi.Size(), fi.ModTime().Unix()))
	}

	sort.Slice(handles, func(i, j int) bool { return handles[i].Name < handles[j].Name })
	sort.Strings(fps)

	a.logger.Debug("source.local.listed", "dir", a.dir, "count", len(handles))
	return handles, fps, nil
}

func (a *LocalAdapter) Fetch(ctx context.Context, h Handle) ([]byte, Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, Metadata{}, err
	}

	fi, err := os.Stat(h.ID)
	if err != nil {
		return nil, Metadata{}, common.WrapError(err, "stat pdf file")
	}
	data, err := os.ReadFile(h.ID)
	if err != nil {
		return nil, Metadata{}, common.WrapError(err, "reading pdf file")
	}
	return data, Metadata{Size: fi.Size(), Modified: fi.ModTime()}, nil
}
