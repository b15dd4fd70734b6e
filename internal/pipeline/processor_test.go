package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicedigest/constants"
	"invoicedigest/internal/convert"
	"invoicedigest/internal/extract"
	"invoicedigest/internal/ingest"
	"invoicedigest/internal/output"
	"invoicedigest/internal/repository"
	"invoicedigest/internal/resilience"
	"invoicedigest/internal/schema"
)

type memDocs struct {
	mu     sync.Mutex
	byHash map[string]*repository.DocumentRecord
}

func newMemDocs() *memDocs {
	return &memDocs{byHash: map[string]*repository.DocumentRecord{}}
}

func (m *memDocs) UpsertByHash(ctx context.Context, p repository.UpsertDocumentParams) (*repository.DocumentRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.byHash[p.HashHex]; ok {
		rec.SourcePath = p.SourcePath
		rec.RelPath = p.RelPath
		return rec, true, nil
	}
	rec := &repository.DocumentRecord{
		ID:          uuid.New(),
		SourcePath:  p.SourcePath,
		RelPath:     p.RelPath,
		FileExt:     p.FileExt,
		HashHex:     p.HashHex,
		SizeBytes:   p.SizeBytes,
		FirstSeenAt: time.Now().UTC(),
	}
	m.byHash[p.HashHex] = rec
	return rec, false, nil
}

func (m *memDocs) GetByID(ctx context.Context, id uuid.UUID) (*repository.DocumentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.byHash {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, errors.New("not found")
}

type memJobs struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*repository.JobRecord
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: map[uuid.UUID]*repository.JobRecord{}}
}

func (m *memJobs) Start(ctx context.Context, documentID uuid.UUID, format constants.Format, modelName string) (*repository.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := &repository.JobRecord{
		ID:         uuid.New(),
		DocumentID: documentID,
		Status:     constants.JobStatusRunning,
		Format:     format,
		ModelName:  modelName,
		StartedAt:  time.Now().UTC(),
	}
	m.jobs[rec.ID] = rec
	return rec, nil
}

func (m *memJobs) FinishSuccess(ctx context.Context, jobID uuid.UUID, extracted json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.jobs[jobID]
	if !ok {
		return errors.New("job not found")
	}
	now := time.Now().UTC()
	rec.Status = constants.JobStatusSucceeded
	rec.FinishedAt = &now
	rec.ExtractedJSON = extracted
	return nil
}

func (m *memJobs) FinishFailure(ctx context.Context, jobID uuid.UUID, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.jobs[jobID]
	if !ok {
		return errors.New("job not found")
	}
	now := time.Now().UTC()
	rec.Status = constants.JobStatusFailed
	rec.FinishedAt = &now
	rec.ErrorMessage = errorMessage
	return nil
}

func (m *memJobs) LatestSucceeded(ctx context.Context, documentID uuid.UUID) (*repository.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *repository.JobRecord
	for _, rec := range m.jobs {
		if rec.DocumentID != documentID || rec.Status != constants.JobStatusSucceeded {
			continue
		}
		if latest == nil || rec.StartedAt.After(latest.StartedAt) {
			latest = rec
		}
	}
	return latest, nil
}

func (m *memJobs) ListSucceeded(ctx context.Context) ([]repository.JobWithDocument, error) {
	return nil, nil
}

func (m *memJobs) statuses() map[constants.JobStatus]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[constants.JobStatus]int{}
	for _, rec := range m.jobs {
		out[rec.Status]++
	}
	return out
}

// fakeExtractor answers per filename hint; unmatched documents fail.
type fakeExtractor struct {
	mu      sync.Mutex
	answers map[string]json.RawMessage
	calls   int
}

func (f *fakeExtractor) ExtractFields(ctx context.Context, req extract.ExtractRequest) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if answer, ok := f.answers[req.FilenameHint]; ok {
		return answer, nil
	}
	return nil, errors.New("model refused")
}

func writeDoc(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

type fixture struct {
	inputDir  string
	outputDir string
	docs      *memDocs
	jobs      *memJobs
	extractor *fakeExtractor
	writer    *output.Writer
}

func newFixture(t *testing.T, force bool) (*Processor, *fixture) {
	t.Helper()
	fx := &fixture{
		inputDir:  t.TempDir(),
		outputDir: t.TempDir(),
		docs:      newMemDocs(),
		jobs:      newMemJobs(),
		extractor: &fakeExtractor{answers: map[string]json.RawMessage{}},
	}

	writer, err := output.NewWriter(fx.outputDir, nil)
	require.NoError(t, err)
	fx.writer = writer

	cfg := resilience.DefaultConfig()
	cfg.RetryMaxAttempts = 1
	cfg.BreakerEnabled = false

	proc := NewProcessor(
		nil,
		ingest.NewEnumerator(nil, true),
		convert.NewConverter(nil),
		fx.extractor,
		resilience.NewExecutor(cfg, nil),
		fx.docs,
		fx.jobs,
		writer,
		schema.DefaultInvoiceSchema(),
		"gpt-4o",
		force,
	)
	return proc, fx
}

func TestRunProcessesAllDocuments(t *testing.T) {
	proc, fx := newFixture(t, false)
	writeDoc(t, fx.inputDir, "inv-001.txt", "INVOICE INV-001 total 10")
	writeDoc(t, fx.inputDir, "2024/inv-002.txt", "INVOICE INV-002 total 20")
	fx.extractor.answers["inv-001.txt"] = json.RawMessage(`{"invoice_number":"INV-001","total_amount_due":10}`)
	fx.extractor.answers["inv-002.txt"] = json.RawMessage(`{"invoice_number":"INV-002","total_amount_due":20}`)

	summary, err := proc.Run(context.Background(), fx.inputDir)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Enumerated)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 0, summary.Skipped)

	assert.True(t, fx.writer.Exists("inv-001.txt"))
	assert.True(t, fx.writer.Exists(filepath.Join("2024", "inv-002.txt")))

	data, err := os.ReadFile(filepath.Join(fx.outputDir, "inv-001.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "INV-001")

	assert.Equal(t, map[constants.JobStatus]int{constants.JobStatusSucceeded: 2}, fx.jobs.statuses())
}

func TestRunContinuesPastFailingDocument(t *testing.T) {
	proc, fx := newFixture(t, false)
	writeDoc(t, fx.inputDir, "good.txt", "INVOICE good")
	writeDoc(t, fx.inputDir, "bad.txt", "INVOICE bad")
	fx.extractor.answers["good.txt"] = json.RawMessage(`{"invoice_number":"G-1","total_amount_due":1}`)

	summary, err := proc.Run(context.Background(), fx.inputDir)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Enumerated)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)

	assert.True(t, fx.writer.Exists("good.txt"))
	assert.False(t, fx.writer.Exists("bad.txt"))

	statuses := fx.jobs.statuses()
	assert.Equal(t, 1, statuses[constants.JobStatusSucceeded])
	assert.Equal(t, 1, statuses[constants.JobStatusFailed])
}

func TestRunSkipsAlreadyDigested(t *testing.T) {
	proc, fx := newFixture(t, false)
	writeDoc(t, fx.inputDir, "inv-001.txt", "INVOICE INV-001")
	fx.extractor.answers["inv-001.txt"] = json.RawMessage(`{"invoice_number":"INV-001","total_amount_due":10}`)

	first, err := proc.Run(context.Background(), fx.inputDir)
	require.NoError(t, err)
	require.Equal(t, 1, first.Succeeded)
	require.Equal(t, 1, fx.extractor.calls)

	second, err := proc.Run(context.Background(), fx.inputDir)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Skipped)
	assert.Equal(t, 0, second.Succeeded)
	assert.Equal(t, 1, fx.extractor.calls, "no provider call on dedup hit")
}

func TestRunRematerializesMissingOutput(t *testing.T) {
	proc, fx := newFixture(t, false)
	writeDoc(t, fx.inputDir, "inv-001.txt", "INVOICE INV-001")
	fx.extractor.answers["inv-001.txt"] = json.RawMessage(`{"invoice_number":"INV-001","total_amount_due":10}`)

	_, err := proc.Run(context.Background(), fx.inputDir)
	require.NoError(t, err)

	target := filepath.Join(fx.outputDir, "inv-001.json")
	require.NoError(t, os.Remove(target))

	summary, err := proc.Run(context.Background(), fx.inputDir)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.FileExists(t, target)
	assert.Equal(t, 1, fx.extractor.calls)
}

func TestRunForceReextracts(t *testing.T) {
	proc, fx := newFixture(t, true)
	writeDoc(t, fx.inputDir, "inv-001.txt", "INVOICE INV-001")
	fx.extractor.answers["inv-001.txt"] = json.RawMessage(`{"invoice_number":"INV-001","total_amount_due":10}`)

	_, err := proc.Run(context.Background(), fx.inputDir)
	require.NoError(t, err)
	summary, err := proc.Run(context.Background(), fx.inputDir)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, 2, fx.extractor.calls)
}

func TestRunEmptyDirectory(t *testing.T) {
	proc, fx := newFixture(t, false)
	summary, err := proc.Run(context.Background(), fx.inputDir)
	require.NoError(t, err)
	assert.Equal(t, RunSummary{}, summary)
}

func TestRunMissingDirectory(t *testing.T) {
	proc, _ := newFixture(t, false)
	_, err := proc.Run(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestRunCanceledContext(t *testing.T) {
	proc, fx := newFixture(t, false)
	writeDoc(t, fx.inputDir, "inv-001.txt", "INVOICE INV-001")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := proc.Run(ctx, fx.inputDir)
	assert.ErrorIs(t, err, context.Canceled)
}
