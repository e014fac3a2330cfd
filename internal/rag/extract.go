package rag

import (
	"bytes"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ExtractText returns the plain text of a document for backends that chunk
// and embed locally. PDFs are parsed page by page; other formats must be
// valid UTF-8 text.
func ExtractText(name string, data []byte) (string, error) {
	if strings.EqualFold(path.Ext(name), ".pdf") {
		return extractPDF(data)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("rag: %s is not a PDF or UTF-8 text document", name)
	}
	return string(data), nil
}

// extractPDF concatenates the plain text of every non-empty page.
func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("rag: open pdf: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("rag: pdf page %d: %w", i, err)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String()), nil
}
