// Package output writes extraction results as JSON files, one per document.
package output

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"invoicedigest/internal/common"
)

// Writer writes one JSON file per document under a fixed output root.
type Writer struct {
	root   string
	logger *slog.Logger
}

// NewWriter ensures the output root exists and returns a writer for it.
func NewWriter(root string, logger *slog.Logger) (*Writer, error) {
	if strings.TrimSpace(root) == "" {
		return nil, common.NewIOError("output directory is required", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, common.NewIOError(fmt.Sprintf("create output directory %s", root), err)
	}
	return &Writer{root: root, logger: logger}, nil
}

// PathFor maps an input-relative document path to its output file path:
// the same relative location with the extension replaced by .json.
func (w *Writer) PathFor(relPath string) string {
	ext := filepath.Ext(relPath)
	return filepath.Join(w.root, strings.TrimSuffix(relPath, ext)+".json")
}

// Write serializes the result to PathFor(relPath), creating parent
// directories and overwriting any previous file. The write goes through a
// temp file and rename so a failure never leaves a partial result behind.
func (w *Writer) Write(relPath string, result json.RawMessage) (string, error) {
	target := w.PathFor(relPath)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", common.NewIOError(fmt.Sprintf("create output subdirectory for %s", relPath), err)
	}

	pretty, err := indentJSON(result)
	if err != nil {
		return "", common.NewIOError(fmt.Sprintf("encode result for %s", relPath), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".digest-*.json")
	if err != nil {
		return "", common.NewIOError(fmt.Sprintf("create temp file for %s", relPath), err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(pretty); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", common.NewIOError(fmt.Sprintf("write result for %s", relPath), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", common.NewIOError(fmt.Sprintf("close result for %s", relPath), err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return "", common.NewIOError(fmt.Sprintf("finalize result for %s", relPath), err)
	}

	w.logger.Debug("output.written", "path", target, "bytes", len(pretty))
	return target, nil
}

// Exists reports whether the output file for relPath is already present.
func (w *Writer) Exists(relPath string) bool {
	st, err := os.Stat(w.PathFor(relPath))
	return err == nil && !st.IsDir()
}

func indentJSON(raw json.RawMessage) ([]byte, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
