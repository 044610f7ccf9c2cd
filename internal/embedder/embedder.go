// Package embedder converts text into dense vector embeddings. The primary
// backend is Google Gemini via the genai SDK, which distinguishes document
// and query embeddings by task type. Ollama and OpenAI backends are provided
// for local/dev use over plain HTTP; their models are symmetric and ignore
// the task type.
package embedder

import "context"

// TaskType selects the embedding task. Asymmetric models (Gemini) produce
// different vectors for documents and queries.
type TaskType string

const (
	// TaskDocument embeds text for storage in a vector index.
	TaskDocument TaskType = "RETRIEVAL_DOCUMENT"
	// TaskQuery embeds a search query against stored documents.
	TaskQuery TaskType = "RETRIEVAL_QUERY"
)

// Result carries the embeddings for a batch of texts. Vectors is parallel
// to the input slice: slot i always holds the vector for text i. Degraded
// lists the indices whose embedding failed and was replaced with a zero
// vector; such slots still occupy their position so chunk ids stay aligned
// with their source text.
type Result struct {
	Vectors  [][]float32
	Degraded []int
}

// Embedder converts batches of texts into vectors.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string, task TaskType) (*Result, error)
	// Dimensions reports the vector length this embedder produces.
	// Vector store collections are sized from this.
	Dimensions() int
}
