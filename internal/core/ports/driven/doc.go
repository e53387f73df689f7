// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - DocumentStore: Document and chunk persistence
//   - TextExtractor: Turns uploads into plain text
//   - ExtractorRegistry: Selects the appropriate extractor
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService: Generates vector embeddings. Without it, embedding and queries fail
//     with domain.ErrEmbeddingUnavailable.
//   - LLMService: Chat completion. Without it, queries fail with domain.ErrLLMUnavailable.
//   - StatusPublisher: Receives embedding status transitions for push delivery.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or extractor package
package driven
