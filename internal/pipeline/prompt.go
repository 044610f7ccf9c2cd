package pipeline

import "strings"

// Placeholders the system prompt must carry so retrieval context and
// conversation history can be substituted in.
const (
	contextPlaceholder = "{context}"
	historyPlaceholder = "{conversation_history}"
)

// defaultSystemPrompt is the system prompt used when the caller supplies
// none. It carries both placeholders of its own.
const defaultSystemPrompt = `You are a helpful AI assistant engaging in a conversation with the user.

Previous Conversation History:
{conversation_history}

Document Context:
{context}

Answer using the document context above. Keep the tone of an experienced
freelancer replying to a client — direct and concise, no fluff.`

// normalizeSystemPrompt returns a system prompt that is guaranteed to carry
// both placeholders. A custom prompt that omits the context placeholder gets
// a context block appended; one that omits the history placeholder gets a
// history block prepended. An empty custom prompt selects the default.
func normalizeSystemPrompt(custom string) string {
	prompt := custom
	if prompt == "" {
		prompt = defaultSystemPrompt
	}
	if !strings.Contains(prompt, contextPlaceholder) {
		prompt += "\n\nDocument Context:\n" + contextPlaceholder
	}
	if !strings.Contains(prompt, historyPlaceholder) {
		prompt = "Previous Conversation History:\n" + historyPlaceholder + "\n\n" + prompt
	}
	return prompt
}

// renderSystemPrompt substitutes the history transcript and document context
// into the prompt. The result never carries a literal placeholder token.
func renderSystemPrompt(prompt, transcript, docsContent string) string {
	rendered := strings.ReplaceAll(prompt, historyPlaceholder, transcript)
	return strings.ReplaceAll(rendered, contextPlaceholder, docsContent)
}
