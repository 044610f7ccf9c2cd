// Package chunker splits markdown documents into retrieval-sized chunks.
//
// Splitting is heading-aware: each markdown heading starts a new section,
// and sections whose body carries too few words are discarded as noise
// (stray titles, page furniture). When a document has no usable headings
// the whole text is re-split into fixed-size word windows so no document
// is silently dropped.
package chunker

import (
	"regexp"
	"strings"

	"github.com/propgen/ragcore/internal/fault"
)

// Document is one extracted markdown document queued for chunking.
type Document struct {
	// Filename is the original upload name, carried into chunk metadata.
	Filename string
	// Markdown is the extracted text.
	Markdown string
}

// Chunk is one retrieval unit produced from a document.
type Chunk struct {
	// Text is the chunk body, heading line included when present.
	Text string
	// Source is the filename of the document the chunk came from.
	Source string
}

// Options control the split behaviour.
type Options struct {
	// MinSectionWords discards heading sections whose body has fewer
	// words than this. Zero means the default of 10.
	MinSectionWords int
	// FallbackSize is the word-window size used when a document yields
	// no heading sections. Zero means the default of 300.
	FallbackSize int
}

const (
	defaultMinSectionWords = 10
	defaultFallbackSize    = 300
)

// headingRe matches a markdown ATX heading line.
var headingRe = regexp.MustCompile(`(?m)^#+ .+$`)

// Split chunks every document and returns the chunks in document order.
// Returns fault.ErrNoChunks when no document produced any usable chunk.
func Split(docs []Document, opts Options) ([]Chunk, error) {
	minWords := opts.MinSectionWords
	if minWords <= 0 {
		minWords = defaultMinSectionWords
	}
	window := opts.FallbackSize
	if window <= 0 {
		window = defaultFallbackSize
	}

	var chunks []Chunk
	for _, doc := range docs {
		for _, text := range splitOne(doc.Markdown, minWords, window) {
			chunks = append(chunks, Chunk{Text: text, Source: doc.Filename})
		}
	}
	if len(chunks) == 0 {
		return nil, fault.ErrNoChunks
	}
	return chunks, nil
}

// splitOne chunks a single markdown text. The word-window fallback applies
// only to documents without any heading; a document whose headings all carry
// trivial bodies produces nothing.
func splitOne(markdown string, minWords, window int) []string {
	if headingRe.MatchString(markdown) {
		return headingSections(markdown, minWords)
	}
	return wordWindows(markdown, window)
}

// headingSections splits at markdown headings and keeps sections whose
// body (text after the heading line) has at least minWords words.
func headingSections(markdown string, minWords int) []string {
	locs := headingRe.FindAllStringIndex(markdown, -1)
	if len(locs) == 0 {
		return nil
	}

	var out []string
	for i, loc := range locs {
		end := len(markdown)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		section := strings.TrimSpace(markdown[loc[0]:end])
		if section == "" {
			continue
		}
		// Body is everything after the heading line.
		body := ""
		if nl := strings.IndexByte(section, '\n'); nl >= 0 {
			body = section[nl+1:]
		}
		if len(strings.Fields(body)) < minWords {
			continue
		}
		out = append(out, section)
	}
	return out
}

// wordWindows splits text into consecutive windows of at most n words.
func wordWindows(text string, n int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var out []string
	for start := 0; start < len(words); start += n {
		end := start + n
		if end > len(words) {
			end = len(words)
		}
		out = append(out, strings.Join(words[start:end], " "))
	}
	return out
}
