package pipeline

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/SnehaChouksey/Acadlyst/ai/gemini"
	"github.com/SnehaChouksey/Acadlyst/errors"
	"github.com/SnehaChouksey/Acadlyst/ingest"
	"github.com/SnehaChouksey/Acadlyst/queue"
	"github.com/SnehaChouksey/Acadlyst/vector"
)

// RAG indexing tuning. Smaller chunks than the summarize pipeline so
// retrieval hits stay focused.
const (
	ragChunkSize   = 1000
	ragOverlap     = 150
	ragUpsertBatch = 20
)

// RAGIndexHandler chunks a document, embeds each chunk, and upserts the
// vectors so the chat endpoint can retrieve them. Completion is the
// signal; the job carries no result document.
type RAGIndexHandler struct {
	resolver *ingest.Resolver
	embedder gemini.Embedder
	store    *vector.Store
	logger   *zap.SugaredLogger
}

// NewRAGIndexHandler creates the rag-index job handler
func NewRAGIndexHandler(resolver *ingest.Resolver, embedder gemini.Embedder, store *vector.Store, logger *zap.SugaredLogger) *RAGIndexHandler {
	return &RAGIndexHandler{
		resolver: resolver,
		embedder: embedder,
		store:    store,
		logger:   logger.Named("rag-index"),
	}
}

// Name implements queue.JobHandler
func (h *RAGIndexHandler) Name() string { return HandlerRAGIndex }

// Execute implements queue.JobHandler. Chunks already upserted before a
// failure stay in the index: a later retry of the same document simply
// adds fresh rows.
func (h *RAGIndexHandler) Execute(ctx context.Context, job *queue.Job) (json.RawMessage, error) {
	payload, err := decodePayload(job)
	if err != nil {
		return nil, err
	}
	if payload.DocumentURL == "" {
		return nil, errors.Wrap(errors.ErrInvalidRequest, "no document provided for indexing")
	}

	sourceText, err := h.resolver.Resolve(ctx, payload.Text, payload.DocumentURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve source text")
	}

	chunks := ingest.Chunks(sourceText, ragChunkSize, ragOverlap)
	h.logger.Infow("Indexing document",
		"job_id", job.ID,
		"filename", payload.Filename,
		"chars", len(sourceText),
		"chunks", len(chunks),
	)

	batch := make([]vector.ChunkRecord, 0, ragUpsertBatch)
	for i, chunk := range chunks {
		embedding, err := h.embedder.Embed(ctx, chunk)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to embed chunk %d of %d", i+1, len(chunks))
		}

		batch = append(batch, vector.ChunkRecord{
			Content:   chunk,
			Source:    payload.Filename,
			Position:  i + 1,
			Embedding: embedding,
		})

		if len(batch) == ragUpsertBatch {
			if err := h.store.UpsertBatch(ctx, batch); err != nil {
				return nil, errors.Wrap(err, "failed to store chunk embeddings")
			}
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := h.store.UpsertBatch(ctx, batch); err != nil {
			return nil, errors.Wrap(err, "failed to store chunk embeddings")
		}
	}

	h.logger.Infow("Document indexed", "job_id", job.ID, "chunks", len(chunks))
	return nil, nil
}
