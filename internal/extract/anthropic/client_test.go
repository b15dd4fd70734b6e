package anthropic

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"invoicedigest/internal/common"
)

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Config{APIKey: "sk-test"}, nil)
	assert.NotEmpty(t, c.cfg.Model)
	assert.EqualValues(t, 4096, c.cfg.MaxTokens)
	assert.Positive(t, c.cfg.Timeout)
}

func TestWrapErrorCarriesExtractionKind(t *testing.T) {
	c := NewClient(Config{APIKey: "sk-test"}, nil)

	cause := errors.New("connection refused")
	err := c.wrapError(cause, 0)
	assert.ErrorIs(t, err, common.ErrExtraction)
	assert.ErrorIs(t, err, cause)
}
