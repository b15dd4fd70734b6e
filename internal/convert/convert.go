// Package convert turns input documents into something a model can read:
// plain text when a usable text layer exists, a normalized PNG otherwise.
package convert

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"invoicedigest/constants"
	"invoicedigest/internal/common"
)

// Input is the prepared model input for one document. Exactly one of Text and
// ImagePNG is the primary payload; Text may accompany an image as a hint.
type Input struct {
	Format   constants.Format
	Text     string
	ImagePNG []byte
}

// HasImage reports whether this input carries a vision payload.
func (in Input) HasImage() bool { return len(in.ImagePNG) > 0 }

// Converter prepares documents for extraction.
type Converter struct {
	logger *slog.Logger
}

func NewConverter(logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{logger: logger}
}

// Prepare reads the document at path and produces model input for it.
// PDFs prefer the embedded text layer; scanned PDFs and images become PNG.
func (c *Converter) Prepare(path, ext string) (Input, error) {
	format := constants.MapExtToFormat(ext)
	switch format {
	case constants.TEXT:
		data, err := os.ReadFile(path)
		if err != nil {
			return Input{}, common.NewIOError("read text document", err)
		}
		return Input{Format: format, Text: string(data)}, nil

	case constants.PDF:
		text, err := pdfText(path)
		if err != nil {
			c.logger.Warn("convert.pdf_text_failed", "path", path, "error", err)
		}
		if len(strings.TrimSpace(text)) >= constants.MinTextChars {
			return Input{Format: format, Text: text}, nil
		}
		c.logger.Info("convert.pdf_rasterize", "path", path, "text_chars", len(strings.TrimSpace(text)))
		png, err := pdfToPNG(path)
		if err != nil {
			return Input{}, common.NewIOError("rasterize pdf", err)
		}
		if err := checkVisionSize(len(png)); err != nil {
			return Input{}, err
		}
		return Input{Format: format, Text: text, ImagePNG: png}, nil

	case constants.IMAGE:
		data, err := os.ReadFile(path)
		if err != nil {
			return Input{}, common.NewIOError("read image document", err)
		}
		png, err := toPNG(data)
		if err != nil {
			return Input{}, common.NewIOError("normalize image", err)
		}
		if err := checkVisionSize(len(png)); err != nil {
			return Input{}, err
		}
		return Input{Format: format, ImagePNG: png}, nil

	default:
		return Input{}, common.NewIOError(fmt.Sprintf("unsupported extension %q", ext), nil)
	}
}

func checkVisionSize(n int) error {
	if n > constants.MaxVisionMB*1024*1024 {
		return common.NewIOError(fmt.Sprintf("image payload %d bytes exceeds %d MB cap", n, constants.MaxVisionMB), nil)
	}
	return nil
}
