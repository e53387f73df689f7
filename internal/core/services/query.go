package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
	"github.com/custodia-labs/ragline/internal/core/ports/driving"
	"github.com/custodia-labs/ragline/internal/logger"
	"github.com/custodia-labs/ragline/internal/ranking"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

const (
	// excerptRunes is the length of a source excerpt.
	excerptRunes = 200

	// contextPreviewRunes is the length of the context echoed in results.
	contextPreviewRunes = 500
)

// QueryService answers questions from the embedded chunks of stored documents.
type QueryService struct {
	store    driven.DocumentStore
	embedder driven.EmbeddingService
	llm      driven.LLMService
	prompts  driven.PromptStore
	settings domain.RAGSettings
}

// NewQueryService creates a new query service.
// The embedder and llm may be nil; queries then fail with
// domain.ErrEmbeddingUnavailable or domain.ErrLLMUnavailable.
func NewQueryService(
	store driven.DocumentStore,
	embedder driven.EmbeddingService,
	llm driven.LLMService,
	settings domain.RAGSettings,
) *QueryService {
	return &QueryService{
		store:    store,
		embedder: embedder,
		llm:      llm,
		settings: settings,
	}
}

// SetPromptStore sets the source of the system and user prompts.
func (s *QueryService) SetPromptStore(prompts driven.PromptStore) {
	s.prompts = prompts
}

// Answer retrieves the best chunks for the query and asks the LLM.
func (s *QueryService) Answer(ctx context.Context, req domain.QueryRequest) (*domain.QueryResult, error) {
	result := &domain.QueryResult{Query: req.Query, Sources: []domain.Source{}}

	answer, ranked, contextText, err := s.answer(ctx, req)
	if err != nil {
		s.logFailure(req, err)
		result.Answer = fallbackAnswer(err)
		return result, err
	}

	result.Answer = answer
	result.Context = preview(contextText, contextPreviewRunes)
	for _, r := range ranked {
		result.Sources = append(result.Sources, domain.Source{
			DocumentName:    r.DocumentName,
			DocumentType:    r.DocumentType,
			SimilarityScore: r.Score,
			Excerpt:         excerpt(r.Chunk.Content),
		})
	}
	return result, nil
}

func (s *QueryService) answer(
	ctx context.Context,
	req domain.QueryRequest,
) (string, []domain.RankedChunk, string, error) {
	topK, err := s.validate(req)
	if err != nil {
		return "", nil, "", err
	}
	if s.embedder == nil {
		return "", nil, "", domain.ErrEmbeddingUnavailable
	}
	if s.llm == nil {
		return "", nil, "", domain.ErrLLMUnavailable
	}

	logger.Section("Query")
	logger.Debug("query=%q topK=%d documents=%d", req.Query, topK, len(req.DocumentIDs))

	// Unknown ids are dropped. Only an empty remainder is an error.
	docs, err := s.store.GetDocuments(ctx, req.DocumentIDs)
	if err != nil {
		return "", nil, "", err
	}
	if len(docs) == 0 {
		return "", nil, "", &domain.NoCandidatesError{DocumentIDs: req.DocumentIDs}
	}

	ids := make([]string, len(docs))
	byID := make(map[string]*domain.Document, len(docs))
	for i := range docs {
		ids[i] = docs[i].ID
		byID[docs[i].ID] = &docs[i]
	}

	chunks, err := s.store.GetChunksForDocuments(ctx, ids)
	if err != nil {
		return "", nil, "", err
	}

	candidates := make([]ranking.Candidate, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			continue
		}
		doc := byID[c.DocumentID]
		candidates = append(candidates, ranking.Candidate{
			Chunk:        c,
			DocumentName: doc.Name,
			DocumentType: doc.MediaType,
		})
	}
	if len(candidates) == 0 {
		return "", nil, "", &domain.NoCandidatesError{DocumentIDs: ids}
	}
	logger.Debug("ranking %d chunks from %d documents", len(candidates), len(docs))

	queryVec, err := s.embedder.Embed(ctx, req.Query)
	if err != nil {
		return "", nil, "", err
	}

	ranked := ranking.AboveThreshold(ranking.Rank(queryVec, candidates, topK), s.settings.SimilarityThreshold)
	if len(ranked) == 0 {
		return "", nil, "", &domain.NoCandidatesError{DocumentIDs: ids}
	}

	contextText := buildContext(ranked)
	answer, err := s.llm.Complete(ctx, driven.CompletionRequest{
		SystemPrompt: s.prompt(driven.PromptRAGSystem, driven.DefaultRAGSystemPrompt, 0),
		UserPrompt:   fmt.Sprintf(s.prompt(driven.PromptRAGUser, driven.DefaultRAGUserPrompt, 2), contextText, req.Query),
		MaxTokens:    s.settings.MaxTokens,
		Temperature:  s.settings.Temperature,
	})
	if err != nil {
		return "", nil, "", err
	}

	logger.Get().Info().Str("model", s.llm.ModelName()).Int("sources", len(ranked)).Msg("query answered")
	return answer, ranked, contextText, nil
}

// validate checks the request and returns the effective topK.
func (s *QueryService) validate(req domain.QueryRequest) (int, error) {
	if strings.TrimSpace(req.Query) == "" {
		return 0, domain.NewValidationError("query", "is required")
	}
	if req.TopK < 0 {
		return 0, domain.NewValidationError("topK", "must be >= 0, got %d", req.TopK)
	}
	if len(req.DocumentIDs) == 0 {
		return 0, domain.NewValidationError("documentIds", "at least one document is required")
	}

	topK := req.TopK
	if topK == 0 {
		topK = s.settings.TopK
	}
	if topK <= 0 {
		topK = domain.DefaultRAGSettings().TopK
	}
	return topK, nil
}

// prompt loads a template, falling back to the built-in text when the
// store is missing or a template meant for formatting does not have
// exactly verbs %s placeholders.
func (s *QueryService) prompt(name, fallback string, verbs int) string {
	if s.prompts == nil {
		return fallback
	}
	text, err := s.prompts.Load(name)
	if err != nil || strings.TrimSpace(text) == "" {
		return fallback
	}
	if verbs > 0 && (strings.Count(text, "%s") != verbs || strings.Count(text, "%") != verbs) {
		logger.Warn("prompt %q ignored: expected %d %%s placeholders", name, verbs)
		return fallback
	}
	return text
}

// logFailure records the raw cause for operators. Callers only see the
// message from domain.UserMessage.
func (s *QueryService) logFailure(req domain.QueryRequest, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) || errors.Is(err, domain.ErrNoCandidates) {
		logger.Debug("query rejected: %v", err)
		return
	}
	logger.Get().Error().Str("query", req.Query).Err(err).Msg("query failed")
}

// fallbackAnswer is the answer returned in place of a failed query.
// Provider and store failures share one message.
func fallbackAnswer(err error) string {
	if errors.Is(err, domain.ErrProvider) || errors.Is(err, domain.ErrStore) {
		return domain.MsgTechnicalDifficulties
	}
	return domain.UserMessage(err)
}

// buildContext joins ranked chunks as "[name] content" blocks.
func buildContext(ranked []domain.RankedChunk) string {
	parts := make([]string, len(ranked))
	for i, r := range ranked {
		parts[i] = "[" + r.DocumentName + "] " + r.Chunk.Content
	}
	return strings.Join(parts, "\n\n")
}

// excerpt returns the first excerptRunes runes followed by "...".
func excerpt(content string) string {
	runes := []rune(content)
	if len(runes) > excerptRunes {
		runes = runes[:excerptRunes]
	}
	return string(runes) + "..."
}

// preview shortens s to n runes, marking truncation with "...".
func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
