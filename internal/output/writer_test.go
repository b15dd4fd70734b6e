package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathFor(t *testing.T) {
	root := t.TempDir()
	w, err := NewWriter(root, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "inv-001.json"), w.PathFor("inv-001.pdf"))
	assert.Equal(t,
		filepath.Join(root, "2024", "march", "inv-002.json"),
		w.PathFor(filepath.Join("2024", "march", "inv-002.PNG")))
}

func TestWriteCreatesNestedFile(t *testing.T) {
	root := t.TempDir()
	w, err := NewWriter(root, nil)
	require.NoError(t, err)

	result := json.RawMessage(`{"invoice_number":"INV-001","total_amount_due":10}`)
	target, err := w.Write(filepath.Join("2024", "inv-001.pdf"), result)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "2024", "inv-001.json"), target)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\"invoice_number\": \"INV-001\"")

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "INV-001", m["invoice_number"])
}

func TestWriteOverwrites(t *testing.T) {
	w, err := NewWriter(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = w.Write("inv.pdf", json.RawMessage(`{"total_amount_due":1}`))
	require.NoError(t, err)
	target, err := w.Write("inv.pdf", json.RawMessage(`{"total_amount_due":2}`))
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "2")
	assert.NotContains(t, string(data), `"total_amount_due": 1`)
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	w, err := NewWriter(root, nil)
	require.NoError(t, err)

	_, err = w.Write("inv.pdf", json.RawMessage(`{"a":1}`))
	require.NoError(t, err)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "inv.json", entries[0].Name())
}

func TestWriteRejectsInvalidJSON(t *testing.T) {
	w, err := NewWriter(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = w.Write("inv.pdf", json.RawMessage("not json"))
	assert.Error(t, err)
}

func TestExists(t *testing.T) {
	w, err := NewWriter(t.TempDir(), nil)
	require.NoError(t, err)

	assert.False(t, w.Exists("inv.pdf"))
	_, err = w.Write("inv.pdf", json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	assert.True(t, w.Exists("inv.pdf"))
}

func TestNewWriterBlankRoot(t *testing.T) {
	_, err := NewWriter("   ", nil)
	assert.Error(t, err)
}
