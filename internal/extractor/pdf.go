// Package extractor converts uploaded document bytes into markdown text.
//
// Extraction is styled: font sizes are read per text span, the dominant
// size is taken as the body size, and lines set notably larger are promoted
// to markdown headings so downstream section splitting has real structure
// to work with.
package extractor

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/propgen/ragcore/internal/fault"
)

const (
	// yTolerance is the vertical distance within which two spans are
	// considered part of the same line.
	yTolerance = 2.0
	// headingRatio is the minimum font size relative to the body size
	// for a line to qualify as a heading.
	headingRatio = 1.15
	// maxHeadingWords rejects long large-print lines (pull quotes,
	// cover blurbs) as headings.
	maxHeadingWords = 12
)

// line is one visual line of a page, grouped from the raw text spans.
type line struct {
	y     float64
	size  float64
	spans []pdf.Text
}

// PDFToMarkdown extracts the text of every page and renders it as markdown:
// body lines verbatim, oversized short lines promoted to #/##/### headings
// by how far their font size exceeds the document's body size. Returns
// fault.ErrExtractionEmpty when the document carries no extractable text
// (scanned images, empty file).
func PDFToMarkdown(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fault.Wrap(fault.KindInput, err, "extractor: open pdf")
	}

	var docLines [][]line
	var plainPages []string
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		lines := pageLines(page)
		if len(lines) == 0 {
			// Some generators emit content streams the span reader cannot
			// follow; fall back to plain text for the page.
			text, err := page.GetPlainText(nil)
			if err != nil {
				return "", fault.Wrap(fault.KindInput, err, "extractor: page %d", i)
			}
			if strings.TrimSpace(text) != "" {
				plainPages = append(plainPages, strings.TrimSpace(text))
			}
			continue
		}
		docLines = append(docLines, lines)
	}

	body := bodyFontSize(docLines)

	var pages []string
	for _, lines := range docLines {
		if rendered := renderPage(lines, body); rendered != "" {
			pages = append(pages, rendered)
		}
	}
	pages = append(pages, plainPages...)

	markdown := strings.Join(pages, "\n\n")
	if strings.TrimSpace(markdown) == "" {
		return "", fmt.Errorf("extractor: %w", fault.ErrExtractionEmpty)
	}
	return markdown, nil
}

// pageLines groups the page's text spans into visual lines. Spans arrive in
// content-stream order; a span within yTolerance of the current line joins
// it, anything else starts a new line.
func pageLines(p pdf.Page) []line {
	content := p.Content()
	var lines []line
	for _, t := range content.Text {
		if t.S == "" {
			continue
		}
		if n := len(lines); n > 0 && math.Abs(lines[n-1].y-t.Y) < yTolerance {
			cur := &lines[n-1]
			cur.spans = append(cur.spans, t)
			if t.FontSize > cur.size {
				cur.size = t.FontSize
			}
			continue
		}
		lines = append(lines, line{y: t.Y, size: t.FontSize, spans: []pdf.Text{t}})
	}
	return lines
}

// text assembles the line's spans left to right, inserting a space where
// the horizontal gap between spans is wider than intra-word spacing.
func (l line) text() string {
	spans := make([]pdf.Text, len(l.spans))
	copy(spans, l.spans)
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].X < spans[j].X })

	var b strings.Builder
	for i, s := range spans {
		if i > 0 {
			prev := spans[i-1]
			if s.X-(prev.X+prev.W) > prev.FontSize*0.2 {
				b.WriteByte(' ')
			}
		}
		b.WriteString(s.S)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// bodyFontSize returns the document's dominant font size, weighted by
// character count so a large cover page cannot outvote the running text.
func bodyFontSize(pages [][]line) float64 {
	counts := make(map[float64]int)
	for _, lines := range pages {
		for _, l := range lines {
			for _, s := range l.spans {
				size := math.Round(s.FontSize*2) / 2
				counts[size] += len(s.S)
			}
		}
	}
	var body float64
	var best int
	for size, n := range counts {
		if n > best || (n == best && size < body) {
			body, best = size, n
		}
	}
	return body
}

// headingLevel maps a line's font size to a markdown heading level, or 0
// for body text.
func headingLevel(size, body float64) int {
	if body <= 0 || size < body*headingRatio {
		return 0
	}
	switch {
	case size >= body*1.6:
		return 1
	case size >= body*1.3:
		return 2
	default:
		return 3
	}
}

// renderPage renders the page's lines as markdown, promoting short
// oversized lines to headings.
func renderPage(lines []line, body float64) string {
	var out []string
	for _, l := range lines {
		text := l.text()
		if text == "" {
			continue
		}
		level := headingLevel(l.size, body)
		if level > 0 && len(strings.Fields(text)) <= maxHeadingWords {
			out = append(out, "", strings.Repeat("#", level)+" "+text, "")
			continue
		}
		out = append(out, text)
	}
	joined := strings.Join(out, "\n")
	// Collapse the blank-line runs the heading spacing can produce.
	for strings.Contains(joined, "\n\n\n") {
		joined = strings.ReplaceAll(joined, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(joined)
}
