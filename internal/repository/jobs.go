package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"invoicedigest/constants"
)

// JobRecord is one row in extract_jobs.
type JobRecord struct {
	ID            uuid.UUID
	DocumentID    uuid.UUID
	Status        constants.JobStatus
	Format        constants.Format
	ModelName     string
	StartedAt     time.Time
	FinishedAt    *time.Time
	ErrorMessage  string
	ExtractedJSON json.RawMessage
}

// JobWithDocument joins a succeeded job with its document for exports.
type JobWithDocument struct {
	Job      JobRecord
	Document DocumentRecord
}

// JobRepository persists the extraction job lifecycle.
type JobRepository interface {
	Start(ctx context.Context, documentID uuid.UUID, format constants.Format, modelName string) (*JobRecord, error)
	FinishSuccess(ctx context.Context, jobID uuid.UUID, extracted json.RawMessage) error
	FinishFailure(ctx context.Context, jobID uuid.UUID, errorMessage string) error
	LatestSucceeded(ctx context.Context, documentID uuid.UUID) (*JobRecord, error)
	ListSucceeded(ctx context.Context) ([]JobWithDocument, error)
}

type jobRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewJobRepository(db *sql.DB, logger *slog.Logger) JobRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &jobRepository{db: db, logger: logger}
}

func (r *jobRepository) Start(ctx context.Context, documentID uuid.UUID, format constants.Format, modelName string) (*JobRecord, error) {
	rec := &JobRecord{
		ID:         uuid.New(),
		DocumentID: documentID,
		Status:     constants.JobStatusRunning,
		Format:     format,
		ModelName:  modelName,
		StartedAt:  time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO extract_jobs (id, document_id, status, format, model_name, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.DocumentID.String(), string(rec.Status), string(rec.Format), rec.ModelName, rec.StartedAt)
	if err != nil {
		r.logger.Error("store.job_insert_failed", "document_id", documentID, "error", err)
		return nil, err
	}
	return rec, nil
}

func (r *jobRepository) FinishSuccess(ctx context.Context, jobID uuid.UUID, extracted json.RawMessage) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE extract_jobs SET status = ?, finished_at = ?, extracted_json = ?, error_message = NULL
		 WHERE id = ?`,
		string(constants.JobStatusSucceeded), time.Now().UTC(), string(extracted), jobID.String())
	return err
}

func (r *jobRepository) FinishFailure(ctx context.Context, jobID uuid.UUID, errorMessage string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE extract_jobs SET status = ?, finished_at = ?, error_message = ?
		 WHERE id = ?`,
		string(constants.JobStatusFailed), time.Now().UTC(), errorMessage, jobID.String())
	return err
}

// LatestSucceeded returns the most recent succeeded job for a document, or
// nil when the document has never been extracted successfully.
func (r *jobRepository) LatestSucceeded(ctx context.Context, documentID uuid.UUID) (*JobRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, document_id, status, format, model_name, started_at, finished_at, error_message, extracted_json
		 FROM extract_jobs
		 WHERE document_id = ? AND status = ?
		 ORDER BY started_at DESC LIMIT 1`,
		documentID.String(), string(constants.JobStatusSucceeded))

	rec, err := scanJob(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListSucceeded returns the latest succeeded job per document, joined with
// the document row, ordered by relative path.
func (r *jobRepository) ListSucceeded(ctx context.Context) ([]JobWithDocument, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT j.id, j.document_id, j.status, j.format, j.model_name, j.started_at, j.finished_at, j.error_message, j.extracted_json,
		        d.id, d.source_path, d.rel_path, d.file_ext, d.content_hash, d.size_bytes, d.first_seen_at
		 FROM extract_jobs j
		 JOIN documents d ON d.id = j.document_id
		 WHERE j.status = ?
		   AND j.started_at = (
		       SELECT MAX(j2.started_at) FROM extract_jobs j2
		        WHERE j2.document_id = j.document_id AND j2.status = ?
		   )
		 ORDER BY d.rel_path`,
		string(constants.JobStatusSucceeded), string(constants.JobStatusSucceeded))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Warn("store.rows_close_failed", "error", err)
		}
	}()

	var out []JobWithDocument
	for rows.Next() {
		var (
			job        JobRecord
			doc        DocumentRecord
			jobID      string
			jobDocID   string
			status     string
			format     string
			modelName  sql.NullString
			finishedAt sql.NullTime
			errMsg     sql.NullString
			extracted  sql.NullString
			docID      string
		)
		if err := rows.Scan(
			&jobID, &jobDocID, &status, &format, &modelName, &job.StartedAt, &finishedAt, &errMsg, &extracted,
			&docID, &doc.SourcePath, &doc.RelPath, &doc.FileExt, &doc.HashHex, &doc.SizeBytes, &doc.FirstSeenAt,
		); err != nil {
			return nil, err
		}
		if job.ID, err = uuid.Parse(jobID); err != nil {
			return nil, err
		}
		if job.DocumentID, err = uuid.Parse(jobDocID); err != nil {
			return nil, err
		}
		if doc.ID, err = uuid.Parse(docID); err != nil {
			return nil, err
		}
		job.Status = constants.JobStatus(status)
		job.Format = constants.Format(format)
		job.ModelName = modelName.String
		if finishedAt.Valid {
			t := finishedAt.Time
			job.FinishedAt = &t
		}
		job.ErrorMessage = errMsg.String
		if extracted.Valid {
			job.ExtractedJSON = json.RawMessage(extracted.String)
		}
		out = append(out, JobWithDocument{Job: job, Document: doc})
	}
	return out, rows.Err()
}

func scanJob(scan func(dest ...any) error) (*JobRecord, error) {
	var (
		rec        JobRecord
		id         string
		docID      string
		status     string
		format     string
		modelName  sql.NullString
		finishedAt sql.NullTime
		errMsg     sql.NullString
		extracted  sql.NullString
	)
	if err := scan(&id, &docID, &status, &format, &modelName, &rec.StartedAt, &finishedAt, &errMsg, &extracted); err != nil {
		return nil, err
	}
	var err error
	if rec.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if rec.DocumentID, err = uuid.Parse(docID); err != nil {
		return nil, err
	}
	rec.Status = constants.JobStatus(status)
	rec.Format = constants.Format(format)
	rec.ModelName = modelName.String
	if finishedAt.Valid {
		t := finishedAt.Time
		rec.FinishedAt = &t
	}
	rec.ErrorMessage = errMsg.String
	if extracted.Valid {
		rec.ExtractedJSON = json.RawMessage(extracted.String)
	}
	return &rec, nil
}
