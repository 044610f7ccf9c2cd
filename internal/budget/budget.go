// Package budget provides token budget estimation and transcript trimming.
// Because ragcore supports multiple LLM backends with different tokenizers,
// this package uses a conservative character-based heuristic:
// 1 token ≈ 4 characters (English prose). This deliberately under-estimates
// token counts to leave headroom for model-specific overhead.
package budget

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English; using 3 would be
	// more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxTranscriptTokens is the default token budget for the
	// conversation transcript injected into the system prompt. Small enough
	// that transcript plus retrieved chunks fit within 8k-context models
	// while leaving room for the output.
	DefaultMaxTranscriptTokens = 1500
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateLines returns the estimated total token count for transcript lines,
// including a small per-line overhead for the role prefix framing.
func EstimateLines(lines []string) int {
	total := 0
	for _, line := range lines {
		// Each turn carries a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(line)
	}
	return total
}

// TrimLines removes the oldest transcript lines until the total estimated
// token count fits within maxTokens. Lines are ordered oldest-first, so
// trimming drops the front and keeps the most recent turns.
//
// If even a single line exceeds the budget, that line alone is returned:
// callers always get at least the latest turn.
func TrimLines(lines []string, maxTokens int) []string {
	if len(lines) <= 1 {
		return lines
	}

	// History is typically ≤20 turns; linear scan from the front
	// (dropping oldest) is clear and correct.
	for len(lines) > 1 {
		if EstimateLines(lines) <= maxTokens {
			break
		}
		lines = lines[1:]
	}
	return lines
}
