package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"invoicedigest/constants"
	"invoicedigest/internal/common"
)

// Enumerator walks a directory and yields hashed documents.
type Enumerator struct {
	logger      *slog.Logger
	allowedExts map[string]struct{} // lowercased sans '.'; nil -> default set
	skipHidden  bool
}

func NewEnumerator(logger *slog.Logger, skipHidden bool) *Enumerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enumerator{logger: logger, skipHidden: skipHidden}
}

// EnumerateDirectory walks root, filters by allowed extensions, skips hidden
// entries if requested, and hashes each matched file. The returned slice is a
// point-in-time snapshot; an empty directory yields an empty slice, a missing
// directory is an error before any document is produced.
func (e *Enumerator) EnumerateDirectory(root string) ([]Document, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, common.NewIOError("input directory is required", nil)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, DirStats{}, common.NewIOError("resolve input directory", err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return nil, DirStats{}, common.NewIOError(fmt.Sprintf("input directory %s", root), err)
	}
	if !st.IsDir() {
		return nil, DirStats{}, common.NewIOError(fmt.Sprintf("%s is not a directory", root), nil)
	}

	var docs []Document
	var stats DirStats

	walkErr := filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			docs = append(docs, Document{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil // continue walking
		}
		if e.skipHidden && isHidden(path) && path != abs {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := constants.NormalizeExt(filepath.Ext(path))
		if !e.allowed(ext) {
			return nil
		}
		stats.Matched++

		doc, err := e.hashOne(abs, path, ext)
		if err != nil {
			e.logger.Warn("ingest.hash_failed", "path", path, "error", err)
			docs = append(docs, Document{Path: path, RelPath: mustRel(abs, path), Ext: ext, Err: err.Error()})
			stats.Failed++
			return nil
		}
		docs = append(docs, doc)
		stats.Hashed++
		return nil
	})
	if walkErr != nil {
		return docs, stats, common.NewIOError("walk input directory", walkErr)
	}

	e.logger.Info("ingest.enumerated",
		"root", abs,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"hashed", stats.Hashed,
		"failed", stats.Failed,
	)
	return docs, stats, nil
}

func (e *Enumerator) hashOne(root, path, ext string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("open: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			e.logger.Warn("ingest.close_failed", "path", path, "error", err)
		}
	}()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return Document{}, fmt.Errorf("hash: %w", err)
	}

	return Document{
		Path:    path,
		RelPath: mustRel(root, path),
		Ext:     ext,
		HashHex: hex.EncodeToString(h.Sum(nil)),
		Size:    n,
	}, nil
}

func (e *Enumerator) allowed(ext string) bool {
	if e.allowedExts != nil {
		_, ok := e.allowedExts[ext]
		return ok
	}
	_, ok := constants.AllowedExtensions[ext]
	return ok
}

func mustRel(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.Base(path)
	}
	return rel
}

func isHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}
