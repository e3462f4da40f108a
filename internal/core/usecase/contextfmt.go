package usecase

import (
	"fmt"
	"strings"

	"github.com/cosyhq/regcheck/internal/core/domain"
)

const contextSeparator = "\n---\n"

// FormatContext concatenates documents into an attributed prompt block,
// in input order, within a character budget. The last block is truncated to
// the remaining budget; the result may exceed maxChars by at most the final
// block's header length.
func FormatContext(docs []domain.Document, maxChars int) string {
	if len(docs) == 0 || maxChars <= 0 {
		return ""
	}

	var b strings.Builder
	for i, doc := range docs {
		header := fmt.Sprintf("[Doc %d] source=%s title=%s\n", i+1, doc.Metadata.Source, doc.Metadata.Title)

		sep := ""
		if b.Len() > 0 {
			sep = contextSeparator
		}

		remaining := maxChars - b.Len() - len(sep)
		if remaining <= 0 {
			break
		}

		content := doc.Content
		if len(header)+len(content) > remaining {
			budget := remaining - len(header)
			if budget <= 0 {
				break
			}
			b.WriteString(sep)
			b.WriteString(header)
			b.WriteString(content[:budget])
			break
		}

		b.WriteString(sep)
		b.WriteString(header)
		b.WriteString(content)
	}
	return b.String()
}
