package extractor

import (
	"errors"
	"strings"
	"testing"

	"github.com/ledongthuc/pdf"

	"github.com/propgen/ragcore/internal/fault"
)

func span(s string, size, x, w float64) pdf.Text {
	return pdf.Text{S: s, FontSize: size, X: x, W: w}
}

func TestHeadingLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		size float64
		body float64
		want int
	}{
		{"body text", 10, 10, 0},
		{"slightly larger is still body", 11, 10, 0},
		{"subsection", 12, 10, 3},
		{"section", 14, 10, 2},
		{"title", 18, 10, 1},
		{"no body size known", 18, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := headingLevel(tt.size, tt.body); got != tt.want {
				t.Errorf("headingLevel(%v, %v) = %d, want %d", tt.size, tt.body, got, tt.want)
			}
		})
	}
}

func TestBodyFontSize_WeightedByChars(t *testing.T) {
	t.Parallel()

	// A short big title must not outvote the running text.
	pages := [][]line{{
		{size: 24, spans: []pdf.Text{span("Title", 24, 0, 60)}},
		{size: 10, spans: []pdf.Text{span("a long paragraph of ordinary body text", 10, 0, 200)}},
	}}
	if got := bodyFontSize(pages); got != 10 {
		t.Errorf("bodyFontSize = %v, want 10", got)
	}
}

func TestLineText_JoinsSpansWithGapSpacing(t *testing.T) {
	t.Parallel()

	l := line{spans: []pdf.Text{
		span("Pay", 10, 0, 18),
		span("ment", 10, 18.5, 24), // abutting, same word
		span("Terms", 10, 50, 30),  // wide gap, new word
	}}
	if got := l.text(); got != "Payment Terms" {
		t.Errorf("text() = %q, want %q", got, "Payment Terms")
	}
}

func TestRenderPage_PromotesOversizedLines(t *testing.T) {
	t.Parallel()

	lines := []line{
		{size: 18, spans: []pdf.Text{span("Project Scope", 18, 0, 100)}},
		{size: 10, spans: []pdf.Text{span("The work covers discovery and design.", 10, 0, 200)}},
		{size: 14, spans: []pdf.Text{span("Timeline", 14, 0, 60)}},
		{size: 10, spans: []pdf.Text{span("Six weeks end to end.", 10, 0, 140)}},
	}
	got := renderPage(lines, 10)
	want := "# Project Scope\n\nThe work covers discovery and design.\n\n## Timeline\n\nSix weeks end to end."
	if got != want {
		t.Errorf("renderPage = %q, want %q", got, want)
	}
}

func TestRenderPage_LongLargeLineStaysBody(t *testing.T) {
	t.Parallel()

	quote := "A very long pull quote set in large type that runs on well past any plausible heading length"
	lines := []line{
		{size: 16, spans: []pdf.Text{span(quote, 16, 0, 600)}},
	}
	got := renderPage(lines, 10)
	if strings.HasPrefix(got, "#") {
		t.Errorf("long oversized line promoted to heading: %q", got)
	}
}

func TestPDFToMarkdown_NotAPDF(t *testing.T) {
	t.Parallel()

	_, err := PDFToMarkdown([]byte("this is not a pdf"))
	if err == nil {
		t.Fatal("expected an error for non-PDF input")
	}
	if fault.KindOf(err) != fault.KindInput {
		t.Errorf("expected KindInput, got %v", fault.KindOf(err))
	}
}

func TestPDFToMarkdown_Empty(t *testing.T) {
	t.Parallel()

	_, err := PDFToMarkdown(nil)
	if err == nil {
		t.Fatal("expected an error for empty input")
	}
	if errors.Is(err, fault.ErrExtractionEmpty) {
		return // acceptable: empty body reported as empty extraction
	}
	if fault.KindOf(err) != fault.KindInput {
		t.Errorf("expected KindInput for unreadable input, got %v", fault.KindOf(err))
	}
}
