package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicedigest/internal/common"
	"invoicedigest/internal/extract"
	"invoicedigest/internal/schema"
)

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Config{APIKey: "sk-test"}, nil)
	assert.Equal(t, "gpt-4o", c.cfg.Model)
	assert.Positive(t, c.cfg.Timeout)
}

func TestExtractFieldsRejectsImageOnly(t *testing.T) {
	c := NewClient(Config{APIKey: "sk-test"}, nil)

	_, err := c.ExtractFields(context.Background(), extract.ExtractRequest{
		ImagePNG:     []byte{0x89, 'P', 'N', 'G'},
		FilenameHint: "scan.png",
		Schema:       schema.DefaultInvoiceSchema(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrExtraction)
	assert.Contains(t, err.Error(), "text-only")
}

func TestWrapErrorCarriesExtractionKind(t *testing.T) {
	c := NewClient(Config{APIKey: "sk-test"}, nil)

	cause := errors.New("connection refused")
	err := c.wrapError(cause, 0)
	assert.ErrorIs(t, err, common.ErrExtraction)
	assert.ErrorIs(t, err, cause)
}
