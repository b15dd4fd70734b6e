// Package extract defines the provider-agnostic extraction contract. The
// pipeline depends on FieldExtractor only; concrete providers live in
// subpackages and can be swapped or mocked.
package extract

import (
	"context"
	"encoding/json"

	"invoicedigest/internal/schema"
)

// ExtractRequest carries one prepared document and the active schema.
type ExtractRequest struct {
	Text         string // document text, may be empty when an image is attached
	ImagePNG     []byte // normalized PNG payload for vision-capable providers
	FilenameHint string
	Schema       *schema.Definition
}

// FieldExtractor is the interface the pipeline depends on. The returned
// document is JSON already validated against req.Schema.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (json.RawMessage, error)
}
