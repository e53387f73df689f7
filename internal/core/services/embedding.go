package services

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/ragline/internal/chunker"
	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
	"github.com/custodia-labs/ragline/internal/core/ports/driving"
	"github.com/custodia-labs/ragline/internal/logger"
)

// Ensure EmbeddingPipeline implements the interface.
var _ driving.EmbeddingPipeline = (*EmbeddingPipeline)(nil)

// finaliseTimeout bounds the status write made after a run was cancelled.
const finaliseTimeout = 10 * time.Second

// EmbeddingPipeline chunks documents and stores their embeddings.
//
// Each run owns its document through the store's claim, so two runs never
// embed the same document at once. Every run ends in completed or failed.
type EmbeddingPipeline struct {
	store     driven.DocumentStore
	embedder  driven.EmbeddingService
	publisher driven.StatusPublisher
	settings  domain.PipelineSettings
	limiter   *rate.Limiter
}

// NewEmbeddingPipeline creates a new embedding pipeline.
// The embedder may be nil, in which case every run fails with
// domain.ErrEmbeddingUnavailable.
func NewEmbeddingPipeline(
	store driven.DocumentStore,
	embedder driven.EmbeddingService,
	settings domain.PipelineSettings,
) *EmbeddingPipeline {
	p := &EmbeddingPipeline{
		store:    store,
		embedder: embedder,
		settings: settings,
	}
	if p.settings.Concurrency < 1 {
		p.settings.Concurrency = 1
	}
	if settings.RequestsPerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(settings.RequestsPerSecond), p.settings.Concurrency)
	}
	return p
}

// SetStatusPublisher sets the receiver of status transitions.
func (p *EmbeddingPipeline) SetStatusPublisher(publisher driven.StatusPublisher) {
	p.publisher = publisher
}

// EmbedDocument claims a document, embeds its chunks and stores them.
func (p *EmbeddingPipeline) EmbedDocument(ctx context.Context, req domain.EmbedRequest) (*domain.EmbedResult, error) {
	req = p.withDefaults(req)
	if req.DocumentID == "" {
		return nil, domain.NewValidationError("documentId", "is required")
	}
	if err := chunker.Validate(req.ChunkSize, req.Overlap); err != nil {
		return nil, err
	}
	if p.embedder == nil {
		return nil, &domain.EmbeddingError{DocumentID: req.DocumentID, ChunkIndex: -1, Err: domain.ErrEmbeddingUnavailable}
	}

	doc, err := p.store.ClaimForEmbedding(ctx, req.DocumentID)
	if err != nil {
		return nil, &domain.EmbeddingError{DocumentID: req.DocumentID, ChunkIndex: -1, Err: err}
	}
	p.publish(doc.ID, domain.EmbeddingProcessing, 0, "")

	logger.Section("Embedding")
	logger.Debug("embedding %s (%q) chunkSize=%d overlap=%d", doc.ID, doc.Name, req.ChunkSize, req.Overlap)

	content := req.Content
	if content == "" {
		content = doc.Content
	}

	chunks, err := chunker.New(chunker.WithChunkSize(req.ChunkSize), chunker.WithOverlap(req.Overlap)).
		Chunks(doc.ID, content)
	if err != nil {
		return nil, p.fail(ctx, doc.ID, -1, err)
	}
	logger.Debug("split %s into %d chunks", doc.ID, len(chunks))

	if idx, err := p.embedChunks(ctx, chunks); err != nil {
		return nil, p.fail(ctx, doc.ID, idx, err)
	}

	if err := p.store.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return nil, p.fail(ctx, doc.ID, -1, err)
	}
	if err := p.store.UpdateEmbeddingStatus(ctx, doc.ID, domain.EmbeddingCompleted, len(chunks), ""); err != nil {
		return nil, p.fail(ctx, doc.ID, -1, err)
	}
	p.publish(doc.ID, domain.EmbeddingCompleted, len(chunks), "")

	logger.Get().Info().Str("document", doc.ID).Int("chunks", len(chunks)).Msg("document embedded")
	return &domain.EmbedResult{DocumentID: doc.ID, ChunkCount: len(chunks)}, nil
}

// EmbedAllPending embeds every pending document in turn.
func (p *EmbeddingPipeline) EmbedAllPending(ctx context.Context, chunkSize, overlap int) (*domain.EmbedReport, error) {
	return p.embedStatus(ctx, domain.EmbeddingPending, chunkSize, overlap)
}

// RetryFailed embeds every failed document in turn.
func (p *EmbeddingPipeline) RetryFailed(ctx context.Context, chunkSize, overlap int) (*domain.EmbedReport, error) {
	return p.embedStatus(ctx, domain.EmbeddingFailed, chunkSize, overlap)
}

// ReembedAll resets every document to pending, dropping its chunks, and
// embeds them again. Documents already being embedded are left to the run
// that owns them.
func (p *EmbeddingPipeline) ReembedAll(ctx context.Context, chunkSize, overlap int) (*domain.EmbedReport, error) {
	if err := p.validateBatch(chunkSize, overlap); err != nil {
		return nil, err
	}
	if err := p.store.ResetAllEmbeddings(ctx); err != nil {
		return nil, err
	}
	logger.Info("cleared embeddings, re-embedding every document")
	return p.EmbedAllPending(ctx, chunkSize, overlap)
}

// embedStatus runs EmbedDocument for each document in the given status.
// Cancellation stops the loop and returns the partial report.
func (p *EmbeddingPipeline) embedStatus(
	ctx context.Context,
	status domain.EmbeddingStatus,
	chunkSize, overlap int,
) (*domain.EmbedReport, error) {
	if err := p.validateBatch(chunkSize, overlap); err != nil {
		return nil, err
	}

	docs, err := p.store.ListDocuments(ctx, status)
	if err != nil {
		return nil, err
	}

	logger.Section("Batch embedding")
	logger.Debug("%d %s documents", len(docs), status)

	report := &domain.EmbedReport{Outcomes: []domain.EmbedOutcome{}}
	for i := range docs {
		doc := docs[i]
		if i > 0 {
			if err := sleep(ctx, p.settings.DocumentDelay); err != nil {
				return report, err
			}
		} else if err := ctx.Err(); err != nil {
			return report, err
		}

		outcome := domain.EmbedOutcome{DocumentID: doc.ID, DocumentName: doc.Name}
		res, err := p.EmbedDocument(ctx, domain.EmbedRequest{
			DocumentID: doc.ID,
			ChunkSize:  chunkSize,
			Overlap:    overlap,
		})
		if err != nil {
			outcome.Error = domain.UserMessage(err)
		} else {
			outcome.Success = true
			outcome.ChunkCount = res.ChunkCount
		}
		report.Add(outcome)

		if ctx.Err() != nil {
			return report, ctx.Err()
		}
	}

	logger.Info("batch embedding finished: %d succeeded, %d failed", report.Succeeded, report.Failed)
	return report, nil
}

// embedChunks fills in the embedding of every chunk. On failure it returns
// the index of the chunk that failed.
func (p *EmbeddingPipeline) embedChunks(ctx context.Context, chunks []domain.Chunk) (int, error) {
	if p.settings.Concurrency > 1 && len(chunks) > 1 {
		return p.embedConcurrent(ctx, chunks)
	}

	for i := range chunks {
		if i > 0 {
			if err := sleep(ctx, p.settings.ChunkDelay); err != nil {
				return i, err
			}
		}
		vec, err := p.embedOne(ctx, chunks[i].Content)
		if err != nil {
			return i, err
		}
		chunks[i].Embedding = vec
	}
	return -1, nil
}

// chunkFailure carries the failing index out of the worker pool.
type chunkFailure struct {
	index int
	err   error
}

func (f *chunkFailure) Error() string { return f.err.Error() }
func (f *chunkFailure) Unwrap() error { return f.err }

// embedConcurrent embeds chunks with a bounded worker pool. Results are
// written by index so the stored order does not depend on completion order.
func (p *EmbeddingPipeline) embedConcurrent(ctx context.Context, chunks []domain.Chunk) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.settings.Concurrency)

	vectors := make([][]float32, len(chunks))
	for i := range chunks {
		g.Go(func() error {
			vec, err := p.embedOne(gctx, chunks[i].Content)
			if err != nil {
				return &chunkFailure{index: i, err: err}
			}
			vectors[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var cf *chunkFailure
		if errors.As(err, &cf) {
			// A sibling's cancellation is not the cause.
			if ctx.Err() != nil {
				return cf.index, ctx.Err()
			}
			return cf.index, cf.err
		}
		return -1, err
	}

	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}
	return -1, nil
}

// embedOne makes one rate limited provider call.
func (p *EmbeddingPipeline) embedOne(ctx context.Context, text string) ([]float32, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
	}
	vec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, &domain.ProviderError{Provider: p.embedder.ModelName(), Message: "empty embedding returned"}
	}
	return vec, nil
}

// fail marks the document failed, drops any chunks it holds and wraps the
// cause. A failed document never keeps chunks, so it cannot answer queries
// even when the chunk write committed before the status write failed. The
// store writes use a context detached from ctx so cancellation cannot leave
// the document in processing.
func (p *EmbeddingPipeline) fail(ctx context.Context, documentID string, chunkIndex int, cause error) error {
	logger.Get().Error().Str("document", documentID).Int("chunk", chunkIndex).Err(cause).Msg("embedding failed")

	msg := domain.UserMessage(cause)
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finaliseTimeout)
	defer cancel()
	if err := p.store.ReplaceChunks(fctx, documentID, nil); err != nil && !errors.Is(err, domain.ErrNotFound) {
		logger.Error("drop chunks of %s: %v", documentID, err)
	}
	if err := p.store.UpdateEmbeddingStatus(fctx, documentID, domain.EmbeddingFailed, 0, msg); err != nil {
		logger.Error("mark %s failed: %v", documentID, err)
	}
	p.publish(documentID, domain.EmbeddingFailed, 0, msg)

	return &domain.EmbeddingError{DocumentID: documentID, ChunkIndex: chunkIndex, Err: cause}
}

func (p *EmbeddingPipeline) publish(documentID string, status domain.EmbeddingStatus, chunkCount int, errMsg string) {
	if p.publisher == nil {
		return
	}
	p.publisher.Publish(domain.StatusEvent{
		DocumentID: documentID,
		Status:     status,
		ChunkCount: chunkCount,
		Error:      errMsg,
		At:         time.Now(),
	})
}

// withDefaults fills zero chunk parameters from the pipeline settings.
// A zero overlap is kept only when the chunk size was given.
func (p *EmbeddingPipeline) withDefaults(req domain.EmbedRequest) domain.EmbedRequest {
	if req.ChunkSize == 0 && p.settings.ChunkSize > 0 {
		req.ChunkSize = p.settings.ChunkSize
		if req.Overlap == 0 {
			req.Overlap = p.settings.Overlap
		}
	}
	return req.WithDefaults()
}

func (p *EmbeddingPipeline) validateBatch(chunkSize, overlap int) error {
	req := p.withDefaults(domain.EmbedRequest{ChunkSize: chunkSize, Overlap: overlap})
	return chunker.Validate(req.ChunkSize, req.Overlap)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
