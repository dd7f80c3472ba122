package ingest

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dslipak/pdf"
)

// ExtractText pulls plain text out of an uploaded document payload.
// PDF pages are extracted individually so the page count can be recorded
// on the document; txt and markdown pass through as-is with a page count
// of 1.
func ExtractText(data []byte, filename string) (string, int, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return extractPDF(data)
	case ".txt", ".md", ".markdown":
		return string(data), 1, nil
	default:
		return "", 0, fmt.Errorf("unsupported file type: %s", filepath.Ext(filename))
	}
}

func extractPDF(data []byte) (string, int, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("failed to open pdf: %w", err)
	}

	pages := reader.NumPage()
	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", 0, fmt.Errorf("failed to extract page %d: %w", i, err)
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	return sb.String(), pages, nil
}
