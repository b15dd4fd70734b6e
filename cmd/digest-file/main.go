// Command digest-file extracts structured fields from a single invoice
// document and prints the JSON to stdout. No run store is involved.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"invoicedigest/constants"
	"invoicedigest/internal/common"
	"invoicedigest/internal/convert"
	"invoicedigest/internal/extract"
	anthropicx "invoicedigest/internal/extract/anthropic"
	geminix "invoicedigest/internal/extract/gemini"
	openaix "invoicedigest/internal/extract/openai"
	"invoicedigest/internal/schema"
)

func main() {
	_ = godotenv.Load()

	fs := ff.NewFlagSet("digest-file")
	var (
		provider   = fs.StringLong("provider", common.ProviderOpenAI, "Extraction provider: 'openai', 'anthropic' or 'gemini'")
		model      = fs.StringLong("model", "", "Provider model name")
		schemaPath = fs.StringLong("schema", "", "Extraction schema file, JSON or YAML (default: built-in invoice schema)")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("DIGEST"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	args := fs.GetArgs()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: digest-file [flags] <document>")
		os.Exit(1)
	}
	path := args[0]

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	if err := run(context.Background(), logger, *provider, *model, *schemaPath, path); err != nil {
		logger.Error("digest.failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, provider, model, schemaPath, path string) error {
	ext := constants.NormalizeExt(filepath.Ext(path))
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		return fmt.Errorf("unsupported file type: %s", path)
	}

	def, err := schema.Load(schemaPath)
	if err != nil {
		return err
	}

	input, err := convert.NewConverter(logger).Prepare(path, ext)
	if err != nil {
		return err
	}

	extractor, cleanup, err := newExtractor(ctx, provider, model, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := extractor.ExtractFields(ctx, extract.ExtractRequest{
		Text:         input.Text,
		ImagePNG:     input.ImagePNG,
		FilenameHint: filepath.Base(path),
		Schema:       def,
	})
	if err != nil {
		return err
	}

	fmt.Println(string(result))
	return nil
}

func newExtractor(ctx context.Context, provider, model string, logger *slog.Logger) (extract.FieldExtractor, func(), error) {
	noop := func() {}
	switch provider {
	case common.ProviderOpenAI:
		return openaix.NewClient(openaix.Config{Model: model}, logger), noop, nil
	case common.ProviderAnthropic:
		return anthropicx.NewClient(anthropicx.Config{Model: model}, logger), noop, nil
	case common.ProviderGemini:
		client, err := geminix.NewClient(ctx, geminix.Config{Model: model}, logger)
		if err != nil {
			return nil, noop, err
		}
		return client, func() { _ = client.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown provider %q", provider)
	}
}
