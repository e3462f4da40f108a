package usecase

import (
	"strings"
	"testing"

	"github.com/cosyhq/regcheck/internal/core/domain"
)

func TestFormatContextEmptyInput(t *testing.T) {
	if got := FormatContext(nil, 1000); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
	if got := FormatContext(makeDocs("a", 2), 0); got != "" {
		t.Fatalf("expected empty string on zero budget, got %q", got)
	}
}

func TestFormatContextAttributesEveryDocument(t *testing.T) {
	docs := []domain.Document{
		makeDoc("reg-eu.pdf", 4, "No medicinal claims on cosmetics."),
		makeDoc("labeling-guide.pdf", 12, "Sun protection factor must be substantiated."),
	}

	out := FormatContext(docs, 4000)
	if !strings.Contains(out, "[Doc 1] source=reg-eu.pdf") {
		t.Fatalf("missing first header: %q", out)
	}
	if !strings.Contains(out, "[Doc 2] source=labeling-guide.pdf") {
		t.Fatalf("missing second header: %q", out)
	}
	if !strings.Contains(out, contextSeparator) {
		t.Fatalf("missing separator between docs: %q", out)
	}
}

func TestFormatContextTruncatesToBudget(t *testing.T) {
	docs := []domain.Document{
		makeDoc("a.pdf", 1, strings.Repeat("x", 300)),
		makeDoc("b.pdf", 2, strings.Repeat("y", 300)),
	}

	header := "[Doc 1] source=a.pdf title=a.pdf\n"
	out := FormatContext(docs, 120)
	if len(out) > 120+len(header) {
		t.Fatalf("output %d chars exceeds budget slack", len(out))
	}
	if !strings.HasPrefix(out, header) {
		t.Fatalf("truncated output should still carry the header: %q", out)
	}
	if strings.Contains(out, "y") {
		t.Fatalf("second doc should not fit the budget: %q", out)
	}
}
