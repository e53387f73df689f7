package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
// These constants define the contract between prompt consumers and providers.
const (
	// PromptRAGSystem is the fixed system instruction for answering queries.
	// This prompt has no format placeholders.
	PromptRAGSystem = "rag_system"

	// PromptRAGUser wraps the retrieved context and the question.
	// The template expects two %s placeholders: context, then query.
	PromptRAGUser = "rag_user"
)

// Built-in prompt texts, used when no PromptStore is configured or a stored
// template is unusable.
const (
	DefaultRAGSystemPrompt = `You are a helpful assistant that answers questions based on the provided context from documents.
Answer using only the given context.
Always cite your sources by mentioning the document names when possible.
If the context doesn't contain relevant information, say so clearly.`

	DefaultRAGUserPrompt = `Context from documents:
%s

Question: %s`
)
