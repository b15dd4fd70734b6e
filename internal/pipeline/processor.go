// Package pipeline coordinates one digestion run: enumerate, convert,
// extract, validate, write, record.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"invoicedigest/constants"
	"invoicedigest/internal/convert"
	"invoicedigest/internal/extract"
	"invoicedigest/internal/ingest"
	"invoicedigest/internal/output"
	"invoicedigest/internal/repository"
	"invoicedigest/internal/resilience"
	"invoicedigest/internal/schema"
)

// RunSummary aggregates one pipeline run.
type RunSummary struct {
	Enumerated int
	Skipped    int
	Succeeded  int
	Failed     int
}

// Processor runs the linear digestion pipeline, one document at a time.
// A failing document is recorded, logged, and skipped; the run continues.
type Processor struct {
	logger     *slog.Logger
	enumerator *ingest.Enumerator
	converter  *convert.Converter
	extractor  extract.FieldExtractor
	executor   *resilience.Executor
	docsRepo   repository.DocumentRepository
	jobsRepo   repository.JobRepository
	writer     *output.Writer
	schema     *schema.Definition
	modelName  string
	force      bool
}

func NewProcessor(
	logger *slog.Logger,
	enumerator *ingest.Enumerator,
	converter *convert.Converter,
	extractor extract.FieldExtractor,
	executor *resilience.Executor,
	docsRepo repository.DocumentRepository,
	jobsRepo repository.JobRepository,
	writer *output.Writer,
	def *schema.Definition,
	modelName string,
	force bool,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		logger:     logger,
		enumerator: enumerator,
		converter:  converter,
		extractor:  extractor,
		executor:   executor,
		docsRepo:   docsRepo,
		jobsRepo:   jobsRepo,
		writer:     writer,
		schema:     def,
		modelName:  modelName,
		force:      force,
	}
}

// Run processes every document under inputDir. It fails fast only when the
// input directory itself cannot be enumerated; per-document failures are
// contained and counted.
func (p *Processor) Run(ctx context.Context, inputDir string) (RunSummary, error) {
	var summary RunSummary

	docs, _, err := p.enumerator.EnumerateDirectory(inputDir)
	if err != nil {
		return summary, err
	}
	summary.Enumerated = len(docs)

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if doc.Err != "" {
			p.logger.Error("pipeline.enumerate_failed", "path", doc.Path, "error", doc.Err)
			summary.Failed++
			continue
		}
		switch outcome := p.processOne(ctx, doc); outcome {
		case outcomeSkipped:
			summary.Skipped++
		case outcomeSucceeded:
			summary.Succeeded++
		default:
			summary.Failed++
		}
	}

	p.logger.Info("pipeline.run_complete",
		"enumerated", summary.Enumerated,
		"skipped", summary.Skipped,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)
	return summary, nil
}

type outcome int

const (
	outcomeFailed outcome = iota
	outcomeSkipped
	outcomeSucceeded
)

func (p *Processor) processOne(ctx context.Context, doc ingest.Document) outcome {
	rec, dedup, err := p.docsRepo.UpsertByHash(ctx, repository.UpsertDocumentParams{
		SourcePath: doc.Path,
		RelPath:    doc.RelPath,
		FileExt:    doc.Ext,
		HashHex:    doc.HashHex,
		SizeBytes:  doc.Size,
	})
	if err != nil {
		p.logger.Error("pipeline.store_failed", "path", doc.Path, "error", err)
		return outcomeFailed
	}

	if dedup && !p.force {
		if done := p.reuseEarlierRun(ctx, rec.ID, doc); done {
			return outcomeSkipped
		}
	}

	jobID, err := p.runExtraction(ctx, rec.ID, doc)
	if err != nil {
		p.logger.Error("pipeline.document_failed",
			"path", doc.Path, "job_id", jobID, "error", err)
		return outcomeFailed
	}
	return outcomeSucceeded
}

// reuseEarlierRun skips a document whose content was already digested,
// rematerializing its output file from the stored JSON if it went missing.
func (p *Processor) reuseEarlierRun(ctx context.Context, documentID uuid.UUID, doc ingest.Document) bool {
	latest, err := p.jobsRepo.LatestSucceeded(ctx, documentID)
	if err != nil || latest == nil || len(latest.ExtractedJSON) == 0 {
		return false
	}
	if !p.writer.Exists(doc.RelPath) {
		if _, err := p.writer.Write(doc.RelPath, latest.ExtractedJSON); err != nil {
			p.logger.Warn("pipeline.rematerialize_failed", "path", doc.Path, "error", err)
			return false
		}
		p.logger.Info("pipeline.rematerialized", "path", doc.Path, "job_id", latest.ID)
	}
	p.logger.Debug("pipeline.skipped_dedup", "path", doc.Path, "job_id", latest.ID)
	return true
}

// runExtraction drives one document through convert, extract, write,
// recording the job outcome in the run store.
func (p *Processor) runExtraction(ctx context.Context, documentID uuid.UUID, doc ingest.Document) (uuid.UUID, error) {
	format := constants.MapExtToFormat(doc.Ext)
	if format == "" {
		return uuid.Nil, fmt.Errorf("unsupported format: %s", doc.Ext)
	}

	job, err := p.jobsRepo.Start(ctx, documentID, format, p.modelName)
	if err != nil {
		return uuid.Nil, fmt.Errorf("start job: %w", err)
	}

	result, err := p.extractOne(ctx, doc)
	if err != nil {
		if ferr := p.jobsRepo.FinishFailure(ctx, job.ID, err.Error()); ferr != nil {
			p.logger.Warn("pipeline.job_update_failed", "job_id", job.ID, "error", ferr)
		}
		return job.ID, err
	}

	target, err := p.writer.Write(doc.RelPath, result)
	if err != nil {
		if ferr := p.jobsRepo.FinishFailure(ctx, job.ID, err.Error()); ferr != nil {
			p.logger.Warn("pipeline.job_update_failed", "job_id", job.ID, "error", ferr)
		}
		return job.ID, err
	}

	if err := p.jobsRepo.FinishSuccess(ctx, job.ID, result); err != nil {
		return job.ID, fmt.Errorf("record job success: %w", err)
	}

	fields := extract.ParseInvoiceFields(result)
	p.logger.Info("pipeline.document_done",
		"path", doc.Path,
		"output", target,
		"job_id", job.ID,
		"invoice_number", fields.InvoiceNumber,
		"total_amount_due", fields.TotalAmountDue,
		"currency", fields.Currency,
	)
	return job.ID, nil
}

func (p *Processor) extractOne(ctx context.Context, doc ingest.Document) (json.RawMessage, error) {
	input, err := p.converter.Prepare(doc.Path, doc.Ext)
	if err != nil {
		return nil, fmt.Errorf("prepare document: %w", err)
	}

	req := extract.ExtractRequest{
		Text:         input.Text,
		ImagePNG:     input.ImagePNG,
		FilenameHint: filepath.Base(doc.Path),
		Schema:       p.schema,
	}

	var result json.RawMessage
	err = p.executor.Execute(ctx, "provider.extract", func(ctx context.Context) error {
		out, err := p.extractor.ExtractFields(ctx, req)
		if err != nil {
			return err
		}
		result = out
		return nil
	}, extract.ClassifyError)
	if err != nil {
		return nil, fmt.Errorf("extract fields: %w", err)
	}
	return result, nil
}
