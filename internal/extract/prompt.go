package extract

import (
	"strings"
	"unicode/utf8"
)

// maxPromptChars bounds how much document text goes into the user prompt.
// Invoices rarely need more than a few thousand characters of text.
const maxPromptChars = 12000

// BuildSystemPrompt composes the system message: extraction role, output
// discipline, and the formatting rules the schema cannot express.
func BuildSystemPrompt(req ExtractRequest) string {
	title := "document"
	if req.Schema != nil && req.Schema.Title != "" {
		title = req.Schema.Title
	}

	parts := []string{
		"You are an expert in extracting information from documents.",
		"Your task is to extract the information specified in the JSON Schema from the provided " + title + " document.",
		"Return only the requested information as JSON matching the schema, without any additional text or explanation.",
		"Use ISO-8601 dates (YYYY-MM-DD); infer ambiguous date formats from the issuing company's country.",
		"Never output null. If a field is not present in the document, omit it.",
		"Do not use markdown code blocks.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the filename hint and the document text. When an
// image is attached the text (if any) is included as a secondary hint only.
func BuildUserPrompt(req ExtractRequest, imageAttached bool) string {
	var b strings.Builder
	if name := strings.TrimSpace(req.FilenameHint); name != "" {
		b.WriteString("Filename: ")
		b.WriteString(name)
		b.WriteString("\n")
	}

	text := strings.TrimSpace(req.Text)
	if imageAttached {
		b.WriteString("\nThe document is attached as an image. Read all text in it.\n")
		if text != "" {
			b.WriteString("Partial text layer for reference:\n")
			b.WriteString(truncate(text, maxPromptChars/4))
			b.WriteString("\n")
		}
		return b.String()
	}

	b.WriteString("\nDocument text:\n")
	b.WriteString(truncate(text, maxPromptChars))
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// back off to a rune boundary so the cut never emits invalid UTF-8
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "\n…(truncated)"
}
