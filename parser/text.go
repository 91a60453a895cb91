package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/docqa/core"
)

// pageBreak separates pages in plain-text input, as emitted by pdftotext and most
// print-to-text tools.
const pageBreak = "\f"

func extractText(data []byte) ([]core.Segment, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: text is not valid UTF-8", core.ErrCorruptDocument)
	}
	text := strings.TrimPrefix(string(data), "\ufeff")
	return pageSegments(strings.Split(text, pageBreak)), nil
}
