package extract

import (
	"encoding/json"
	"log/slog"

	"invoicedigest/internal/common"
	"invoicedigest/internal/schema"
)

// Finalize turns a raw model answer into a schema-conforming JSON document.
// It validates strictly first; on failure it applies the lenient sanitizer
// (drop null/empty optionals and unknown keys) and validates again. All
// providers share this path so their answers are held to the same contract.
func Finalize(def *schema.Definition, content string, logger *slog.Logger) (json.RawMessage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	raw := []byte(schema.StripFences(content))

	if err := def.Validate(raw); err == nil {
		return raw, nil
	}

	cleaned, dropped, sErr := def.Sanitize(raw)
	if sErr != nil {
		return nil, common.NewExtractionError("sanitize response", sErr)
	}
	if vErr := def.Validate(cleaned); vErr != nil {
		return nil, common.NewExtractionError("schema validation failed", vErr)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.extract.lenient_sanitize_applied", "dropped", dropped)
	}
	return cleaned, nil
}
