package parser

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
	"github.com/poiesic/docqa/core"
)

// extractPDF reads the plain text of every page. The pdf reader panics on some
// malformed inputs, so panics are converted to core.ErrCorruptDocument.
func extractPDF(data []byte) (segments []core.Segment, err error) {
	defer func() {
		if r := recover(); r != nil {
			segments = nil
			err = fmt.Errorf("%w: %v", core.ErrCorruptDocument, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrCorruptDocument, err)
	}

	pages := make([]string, reader.NumPage())
	for i := range pages {
		page := reader.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %w", core.ErrCorruptDocument, i+1, err)
		}
		pages[i] = text
	}
	return pageSegments(pages), nil
}
