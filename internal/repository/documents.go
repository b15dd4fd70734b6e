package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DocumentRecord is one row in documents.
type DocumentRecord struct {
	ID          uuid.UUID
	SourcePath  string
	RelPath     string
	FileExt     string
	HashHex     string
	SizeBytes   int64
	FirstSeenAt time.Time
}

// UpsertDocumentParams carries the enumerated facts for one file.
type UpsertDocumentParams struct {
	SourcePath string
	RelPath    string
	FileExt    string
	HashHex    string
	SizeBytes  int64
}

// DocumentRepository persists enumerated documents, deduplicated by content hash.
type DocumentRepository interface {
	UpsertByHash(ctx context.Context, p UpsertDocumentParams) (*DocumentRecord, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*DocumentRecord, error)
}

type documentRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewDocumentRepository(db *sql.DB, logger *slog.Logger) DocumentRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &documentRepository{db: db, logger: logger}
}

// UpsertByHash returns the existing row for a known content hash (dedup=true,
// with the source path refreshed in case the file moved), or inserts a new one.
func (r *documentRepository) UpsertByHash(ctx context.Context, p UpsertDocumentParams) (*DocumentRecord, bool, error) {
	existing, err := r.getByHash(ctx, p.HashHex)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}
	if existing != nil {
		if existing.SourcePath != p.SourcePath || existing.RelPath != p.RelPath {
			_, err := r.db.ExecContext(ctx,
				`UPDATE documents SET source_path = ?, rel_path = ? WHERE id = ?`,
				p.SourcePath, p.RelPath, existing.ID.String())
			if err != nil {
				return nil, false, err
			}
			existing.SourcePath = p.SourcePath
			existing.RelPath = p.RelPath
		}
		return existing, true, nil
	}

	rec := &DocumentRecord{
		ID:          uuid.New(),
		SourcePath:  p.SourcePath,
		RelPath:     p.RelPath,
		FileExt:     p.FileExt,
		HashHex:     p.HashHex,
		SizeBytes:   p.SizeBytes,
		FirstSeenAt: time.Now().UTC(),
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO documents (id, source_path, rel_path, file_ext, content_hash, size_bytes, first_seen_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.SourcePath, rec.RelPath, rec.FileExt, rec.HashHex, rec.SizeBytes, rec.FirstSeenAt)
	if err != nil {
		r.logger.Error("store.document_insert_failed", "path", p.SourcePath, "error", err)
		return nil, false, err
	}
	return rec, false, nil
}

func (r *documentRepository) GetByID(ctx context.Context, id uuid.UUID) (*DocumentRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, source_path, rel_path, file_ext, content_hash, size_bytes, first_seen_at
		 FROM documents WHERE id = ?`, id.String())
	return scanDocument(row)
}

func (r *documentRepository) getByHash(ctx context.Context, hashHex string) (*DocumentRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, source_path, rel_path, file_ext, content_hash, size_bytes, first_seen_at
		 FROM documents WHERE content_hash = ?`, hashHex)
	rec, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return rec, err
}

func scanDocument(row *sql.Row) (*DocumentRecord, error) {
	var rec DocumentRecord
	var id string
	if err := row.Scan(&id, &rec.SourcePath, &rec.RelPath, &rec.FileExt, &rec.HashHex, &rec.SizeBytes, &rec.FirstSeenAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	rec.ID = parsed
	return &rec, nil
}
