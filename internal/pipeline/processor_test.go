package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/qmlabs-dsdi/coa-processor/constants"
	"github.com/qmlabs-dsdi/coa-processor/internal/common"
	"github.com/qmlabs-dsdi/coa-processor/internal/llm"
	"github.com/qmlabs-dsdi/coa-processor/internal/repository"
	"github.com/qmlabs-dsdi/coa-processor/internal/source"
)

// --- fakes -----------------------------------------------------------------

type fakeSource struct {
	handles  []source.Handle
	fps      source.FingerprintSet
	data     map[string][]byte
	fetchErr map[string]error
}

func (f *fakeSource) ListDocuments(ctx context.Context) ([]source.Handle, source.FingerprintSet, error) {
	return f.handles, f.fps, nil
}

func (f *fakeSource) Fetch(ctx context.Context, h source.Handle) ([]byte, source.Metadata, error) {
	if err := f.fetchErr[h.Name]; err != nil {
		return nil, source.Metadata{}, err
	}
	return f.data[h.Name], source.Metadata{}, nil
}

type fakeText struct {
	errFor map[string]error
}

func (f *fakeText) Extract(data []byte, filename string) (string, error) {
	if err := f.errFor[filename]; err != nil {
		return "", err
	}
	return "certificate text for " + filename, nil
}

type fakeFields struct {
	calls   int
	onCall  func()
	byName  map[string]llm.BatchRecord
	failAll bool
}

func (f *fakeFields) Extract(ctx context.Context, text, filename string) (llm.BatchRecord, error) {
	f.calls++
	if f.onCall != nil {
		f.onCall()
	}
	if f.failAll {
		return llm.BatchRecord{}, fmt.Errorf("extractor unavailable")
	}
	if rec, ok := f.byName[filename]; ok {
		return rec, nil
	}
	rec := llm.NewEmptyRecord(filename)
	rec.BatchNumber = "BN-" + filename
	rec.TestResults["IR"] = "Conforms to reference standard"
	return rec, nil
}

type fakeTx struct{}

func (fakeTx) RunInTx(ctx context.Context, fn func(q repository.Queryer) error) error {
	return fn(nil)
}

type fakeDocs struct {
	existing  map[string]bool // filenames with any prior row for the compound
	created   []string
	completed []string
	failed    map[string]string
}

func (f *fakeDocs) CreatePending(ctx context.Context, q repository.Queryer, compoundID uuid.UUID, templateID *uuid.UUID, filename string) (*repository.Document, error) {
	f.created = append(f.created, filename)
	return &repository.Document{ID: uuid.New(), CompoundID: compoundID, Filename: filename, Status: constants.StatusPending}, nil
}

func (f *fakeDocs) CreateProcessing(ctx context.Context, q repository.Queryer, compoundID uuid.UUID, templateID *uuid.UUID, filename string) (*repository.Document, error) {
	f.created = append(f.created, filename)
	return &repository.Document{ID: uuid.New(), CompoundID: compoundID, Filename: filename, Status: constants.StatusProcessing}, nil
}

func (f *fakeDocs) ExistsByCompoundAndFilename(ctx context.Context, q repository.Queryer, compoundID uuid.UUID, filename string) (bool, error) {
	return f.existing[filename], nil
}

func (f *fakeDocs) MarkCompleted(ctx context.Context, q repository.Queryer, id uuid.UUID) error {
	f.completed = append(f.completed, id.String())
	return nil
}

func (f *fakeDocs) MarkFailed(ctx context.Context, q repository.Queryer, id uuid.UUID, errMsg string) error {
	if f.failed == nil {
		f.failed = map[string]string{}
	}
	f.failed[id.String()] = errMsg
	return nil
}

func (f *fakeDocs) GetByID(ctx context.Context, q repository.Queryer, id uuid.UUID) (*repository.Document, error) {
	return nil, common.ErrNotFound
}

func (f *fakeDocs) ListByCompound(ctx context.Context, q repository.Queryer, compoundID uuid.UUID, status constants.DocStatus) ([]repository.Document, error) {
	return nil, nil
}

type fakeFieldRepo struct {
	inserted []repository.ExtractedField
}

func (f *fakeFieldRepo) InsertFields(ctx context.Context, q repository.Queryer, fields []repository.ExtractedField) error {
	f.inserted = append(f.inserted, fields...)
	return nil
}

func (f *fakeFieldRepo) ListByDocument(ctx context.Context, q repository.Queryer, documentID uuid.UUID) ([]repository.ExtractedField, error) {
	return nil, nil
}

type fakeCache struct {
	entries map[string]*repository.CacheEntry
	upserts int
}

func cacheKey(c, t uuid.UUID) string { return c.String() + "/" + t.String() }

func (f *fakeCache) Get(ctx context.Context, q repository.Queryer, compoundID, templateID uuid.UUID) (*repository.CacheEntry, error) {
	if e, ok := f.entries[cacheKey(compoundID, templateID)]; ok {
		return e, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeCache) Upsert(ctx context.Context, q repository.Queryer, entry *repository.CacheEntry) error {
	if f.entries == nil {
		f.entries = map[string]*repository.CacheEntry{}
	}
	f.upserts++
	f.entries[cacheKey(entry.CompoundID, entry.TemplateID)] = entry
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, q repository.Queryer, compoundID, templateID uuid.UUID) (int64, error) {
	if _, ok := f.entries[cacheKey(compoundID, templateID)]; ok {
		delete(f.entries, cacheKey(compoundID, templateID))
		return 1, nil
	}
	return 0, nil
}

func (f *fakeCache) Stats(ctx context.Context, q repository.Queryer, recentLimit int) (*repository.CacheStats, error) {
	stats := &repository.CacheStats{TotalEntries: len(f.entries)}
	for _, e := range f.entries {
		stats.TotalBatches += e.TotalFiles
		stats.Recent = append(stats.Recent, *e)
	}
	return stats, nil
}

// --- harness ---------------------------------------------------------------

type harness struct {
	orch   *Orchestrator
	src    *fakeSource
	text   *fakeText
	fields *fakeFields
	docs   *fakeDocs
	fieldR *fakeFieldRepo
	cache  *fakeCache
}

func newHarness(filenames ...string) *harness {
	src := &fakeSource{data: map[string][]byte{}, fetchErr: map[string]error{}}
	for _, name := range filenames {
		src.handles = append(src.handles, source.Handle{ID: name, Name: name})
		src.fps = append(src.fps, name+":100:1")
		src.data[name] = []byte("%PDF " + name)
	}

	h := &harness{
		src:    src,
		text:   &fakeText{errFor: map[string]error{}},
		fields: &fakeFields{byName: map[string]llm.BatchRecord{}},
		docs:   &fakeDocs{existing: map[string]bool{}},
		fieldR: &fakeFieldRepo{},
		cache:  &fakeCache{entries: map[string]*repository.CacheEntry{}},
	}
	h.orch = NewOrchestrator(
		h.text, h.fields, fakeTx{}, nil, h.docs, h.fieldR, h.cache,
		common.ProcessingConfig{PageLimit: 10, MaxTextChars: 8000, CacheEnabled: true},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return h
}

var (
	compoundA = uuid.New()
	templateA = uuid.New()
	compoundB = uuid.New()
)

// --- tests -----------------------------------------------------------------

func TestProcess_Success(t *testing.T) {
	h := newHarness("a.pdf", "b.pdf")

	res, err := h.orch.Process(context.Background(), h.src, compoundA, templateA, false)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.FromCache {
		t.Fatal("fresh run reported as cached")
	}
	if len(res.ProcessedFiles) != 2 || len(res.FailedFiles) != 0 {
		t.Fatalf("result = %+v", res)
	}
	if len(res.BatchData) != 2 {
		t.Fatalf("batch data = %d records", len(res.BatchData))
	}
	if h.cache.upserts != 1 {
		t.Fatalf("cache upserts = %d, want 1", h.cache.upserts)
	}
	entry := h.cache.entries[cacheKey(compoundA, templateA)]
	if entry == nil || !source.FingerprintSet(entry.Fingerprints).Equal(h.src.fps) {
		t.Fatalf("cache fingerprints = %v, want %v", entry.Fingerprints, h.src.fps)
	}
	if len(h.docs.completed) != 2 {
		t.Fatalf("completed docs = %d", len(h.docs.completed))
	}
}

func TestProcess_SentinelFieldsNotPersisted(t *testing.T) {
	h := newHarness("a.pdf")
	rec := llm.NewEmptyRecord("a.pdf") // everything TBD
	rec.BatchNumber = "BN-1"
	rec.TestResults["IR"] = "Conforms to reference standard"
	h.fields.byName["a.pdf"] = rec

	if _, err := h.orch.Process(context.Background(), h.src, compoundA, templateA, false); err != nil {
		t.Fatal(err)
	}
	// Exactly batch_number and IR survive; TBD parameters are dropped.
	if len(h.fieldR.inserted) != 2 {
		t.Fatalf("inserted %d fields, want 2: %+v", len(h.fieldR.inserted), h.fieldR.inserted)
	}
	for _, f := range h.fieldR.inserted {
		if f.FieldValue == constants.SentinelTBD {
			t.Fatalf("sentinel value persisted: %+v", f)
		}
	}
}

func TestProcess_AllTBDRecordStillCompletes(t *testing.T) {
	h := newHarness("a.pdf")
	// The field extractor absorbs model failures into an all-TBD record with
	// a nil error; the document must complete with that record in the batch,
	// not vanish as a failure.
	h.fields.byName["a.pdf"] = llm.NewEmptyRecord("a.pdf")

	res, err := h.orch.Process(context.Background(), h.src, compoundA, templateA, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.FailedFiles) != 0 {
		t.Fatalf("document failed instead of producing an all-TBD record: %+v", res.FailedFiles)
	}
	if len(res.ProcessedFiles) != 1 || len(res.BatchData) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if res.BatchData[0].TestResults["IR"] != constants.SentinelTBD {
		t.Fatalf("record = %+v", res.BatchData[0])
	}
	if len(h.docs.completed) != 1 || len(h.docs.failed) != 0 {
		t.Fatalf("completed=%d failed=%d", len(h.docs.completed), len(h.docs.failed))
	}
	// Sentinels carry no information; nothing is persisted for them.
	if len(h.fieldR.inserted) != 0 {
		t.Fatalf("inserted fields = %+v", h.fieldR.inserted)
	}
}

func TestProcess_FieldsCarryOriginalText(t *testing.T) {
	h := newHarness("a.pdf")
	rec := llm.NewEmptyRecord("a.pdf")
	rec.BatchNumber = "BN-1"
	rec.TestResults["IR"] = constants.ConformsFull
	h.fields.byName["a.pdf"] = rec

	if _, err := h.orch.Process(context.Background(), h.src, compoundA, templateA, false); err != nil {
		t.Fatal(err)
	}
	if len(h.fieldR.inserted) == 0 {
		t.Fatal("no fields persisted")
	}
	for _, f := range h.fieldR.inserted {
		if f.OriginalText != f.FieldValue {
			t.Fatalf("original_text = %q for value %q", f.OriginalText, f.FieldValue)
		}
	}
}

func TestProcess_CacheHitSkipsExtraction(t *testing.T) {
	h := newHarness("a.pdf")
	h.cache.entries[cacheKey(compoundA, templateA)] = &repository.CacheEntry{
		CompoundID:     compoundA,
		TemplateID:     templateA,
		BatchData:      []llm.BatchRecord{{Filename: "a.pdf", BatchNumber: "BN-cached"}},
		Fingerprints:   h.src.fps,
		ProcessedFiles: []string{"a.pdf"},
		TotalFiles:     1,
	}

	res, err := h.orch.Process(context.Background(), h.src, compoundA, templateA, false)
	if err != nil {
		t.Fatal(err)
	}
	if !res.FromCache {
		t.Fatal("expected cache hit")
	}
	if res.BatchData[0].BatchNumber != "BN-cached" {
		t.Fatalf("batch data = %+v", res.BatchData)
	}
	if h.fields.calls != 0 {
		t.Fatalf("field extractor called %d times on a cache hit", h.fields.calls)
	}
}

func TestProcess_FingerprintChangeReprocesses(t *testing.T) {
	h := newHarness("a.pdf")
	h.cache.entries[cacheKey(compoundA, templateA)] = &repository.CacheEntry{
		CompoundID:   compoundA,
		TemplateID:   templateA,
		BatchData:    []llm.BatchRecord{{Filename: "a.pdf", BatchNumber: "BN-old"}},
		Fingerprints: []string{"a.pdf:100:0"}, // older mtime
		TotalFiles:   1,
	}

	res, err := h.orch.Process(context.Background(), h.src, compoundA, templateA, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.FromCache {
		t.Fatal("stale cache still served")
	}
	if h.fields.calls != 1 {
		t.Fatalf("field extractor calls = %d", h.fields.calls)
	}
	entry := h.cache.entries[cacheKey(compoundA, templateA)]
	if !source.FingerprintSet(entry.Fingerprints).Equal(h.src.fps) {
		t.Fatal("cache not refreshed with new fingerprints")
	}
}

func TestProcess_ForceBypassesCache(t *testing.T) {
	h := newHarness("a.pdf")
	h.cache.entries[cacheKey(compoundA, templateA)] = &repository.CacheEntry{
		CompoundID:   compoundA,
		TemplateID:   templateA,
		Fingerprints: h.src.fps,
		TotalFiles:   1,
	}

	res, err := h.orch.Process(context.Background(), h.src, compoundA, templateA, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.FromCache || h.fields.calls != 1 {
		t.Fatalf("force did not re-extract: from_cache=%v calls=%d", res.FromCache, h.fields.calls)
	}
}

func TestProcess_PartialFailure(t *testing.T) {
	h := newHarness("a.pdf", "b.pdf", "c.pdf")
	h.text.errFor["b.pdf"] = &common.ExtractionError{Filename: "b.pdf", Reason: "no text content found in PDF"}

	res, err := h.orch.Process(context.Background(), h.src, compoundA, templateA, false)
	if err != nil {
		t.Fatalf("a partial failure must not fail the batch: %v", err)
	}
	if len(res.ProcessedFiles) != 2 || len(res.FailedFiles) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if res.FailedFiles[0].Filename != "b.pdf" {
		t.Fatalf("failed = %+v", res.FailedFiles)
	}
	if !strings.Contains(res.FailedFiles[0].Error, "no text content") {
		t.Fatalf("failure reason lost: %q", res.FailedFiles[0].Error)
	}
	// The failed document still got an audit row with a failed status.
	if len(h.docs.failed) != 1 {
		t.Fatalf("failed status rows = %d", len(h.docs.failed))
	}
	// And the cache holds only the two successes.
	entry := h.cache.entries[cacheKey(compoundA, templateA)]
	if len(entry.BatchData) != 2 || entry.TotalFiles != 3 {
		t.Fatalf("cache entry = %+v", entry)
	}
}

func TestProcess_ZeroSuccessKeepsCache(t *testing.T) {
	h := newHarness("a.pdf")
	prior := &repository.CacheEntry{
		CompoundID:   compoundA,
		TemplateID:   templateA,
		BatchData:    []llm.BatchRecord{{Filename: "old.pdf", BatchNumber: "BN-prior"}},
		Fingerprints: []string{"old.pdf:1:1"},
		TotalFiles:   1,
	}
	h.cache.entries[cacheKey(compoundA, templateA)] = prior
	h.fields.failAll = true

	res, err := h.orch.Process(context.Background(), h.src, compoundA, templateA, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.ProcessedFiles) != 0 || len(res.FailedFiles) != 1 {
		t.Fatalf("result = %+v", res)
	}
	// A run that produced nothing must not clobber the prior good entry.
	got := h.cache.entries[cacheKey(compoundA, templateA)]
	if got != prior || h.cache.upserts != 0 {
		t.Fatalf("prior cache entry was overwritten (upserts=%d)", h.cache.upserts)
	}
}

func TestProcess_DuplicateSkipped(t *testing.T) {
	h := newHarness("a.pdf", "b.pdf")
	// Any prior row for the pair skips, including a failed one; a retry does
	// not pile up a second document row per attempt.
	h.docs.existing["a.pdf"] = true

	res, err := h.orch.Process(context.Background(), h.src, compoundA, templateA, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.SkippedFiles) != 1 || res.SkippedFiles[0] != "a.pdf" {
		t.Fatalf("skipped = %v", res.SkippedFiles)
	}
	if len(res.ProcessedFiles) != 1 || res.ProcessedFiles[0] != "b.pdf" {
		t.Fatalf("processed = %v", res.ProcessedFiles)
	}
	if len(res.FailedFiles) != 0 {
		t.Fatalf("a skip is not a failure: %+v", res.FailedFiles)
	}
}

func TestProcess_EmptySourceUnavailable(t *testing.T) {
	h := newHarness() // no documents

	_, err := h.orch.Process(context.Background(), h.src, compoundA, templateA, false)
	if !errors.Is(err, common.ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
}

func TestProcess_CacheKeyIsolation(t *testing.T) {
	h := newHarness("a.pdf")
	h.cache.entries[cacheKey(compoundB, templateA)] = &repository.CacheEntry{
		CompoundID:   compoundB,
		TemplateID:   templateA,
		Fingerprints: h.src.fps,
		BatchData:    []llm.BatchRecord{{BatchNumber: "BN-other-compound"}},
		TotalFiles:   1,
	}

	res, err := h.orch.Process(context.Background(), h.src, compoundA, templateA, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.FromCache {
		t.Fatal("another pair's cache entry served this pair")
	}
}

func TestProcess_Idempotent(t *testing.T) {
	h := newHarness("a.pdf", "b.pdf")

	first, err := h.orch.Process(context.Background(), h.src, compoundA, templateA, false)
	if err != nil {
		t.Fatal(err)
	}
	second, err := h.orch.Process(context.Background(), h.src, compoundA, templateA, false)
	if err != nil {
		t.Fatal(err)
	}
	if !second.FromCache {
		t.Fatal("unchanged source must be served from cache")
	}
	if len(second.BatchData) != len(first.BatchData) {
		t.Fatalf("cached batch differs: %d vs %d", len(second.BatchData), len(first.BatchData))
	}
	if h.fields.calls != 2 {
		t.Fatalf("field extractor calls = %d, want 2 (first run only)", h.fields.calls)
	}
}

func TestProcess_CancelledBetweenDocuments(t *testing.T) {
	h := newHarness("a.pdf", "b.pdf", "c.pdf")
	ctx, cancel := context.WithCancel(context.Background())
	h.fields.onCall = cancel // cancel as soon as the first document is in flight

	res, err := h.orch.Process(ctx, h.src, compoundA, templateA, false)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	// The in-flight document committed; the rest were never started.
	if len(res.ProcessedFiles) != 1 {
		t.Fatalf("processed = %v", res.ProcessedFiles)
	}
	if h.fields.calls != 1 {
		t.Fatalf("field extractor calls = %d", h.fields.calls)
	}
}

func TestCheckCache_Staleness(t *testing.T) {
	h := newHarness("a.pdf")
	h.cache.entries[cacheKey(compoundA, templateA)] = &repository.CacheEntry{
		CompoundID:   compoundA,
		TemplateID:   templateA,
		Fingerprints: []string{"a.pdf:100:0"},
	}

	check, err := h.orch.CheckCache(context.Background(), h.src, compoundA, templateA)
	if err != nil {
		t.Fatal(err)
	}
	if !check.Cached || !check.Stale {
		t.Fatalf("check = %+v, want cached and stale", check)
	}

	// Uncached pair.
	check, err = h.orch.CheckCache(context.Background(), h.src, compoundB, templateA)
	if err != nil {
		t.Fatal(err)
	}
	if check.Cached {
		t.Fatalf("check = %+v, want uncached", check)
	}
}

func TestClearCache(t *testing.T) {
	h := newHarness("a.pdf")
	h.cache.entries[cacheKey(compoundA, templateA)] = &repository.CacheEntry{
		CompoundID: compoundA, TemplateID: templateA,
	}

	n, err := h.orch.ClearCache(context.Background(), compoundA, templateA)
	if err != nil || n != 1 {
		t.Fatalf("ClearCache = %d, %v", n, err)
	}
	n, err = h.orch.ClearCache(context.Background(), compoundA, templateA)
	if err != nil || n != 0 {
		t.Fatalf("second ClearCache = %d, %v", n, err)
	}
}
