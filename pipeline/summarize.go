package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/SnehaChouksey/Acadlyst/ai/extract"
	"github.com/SnehaChouksey/Acadlyst/ai/gemini"
	"github.com/SnehaChouksey/Acadlyst/errors"
	"github.com/SnehaChouksey/Acadlyst/ingest"
	"github.com/SnehaChouksey/Acadlyst/queue"
)

// TextGenerator issues one LLM text-generation call.
// Satisfied by *gemini.Client; faked in tests.
type TextGenerator interface {
	Generate(ctx context.Context, req gemini.GenerateRequest) (string, error)
}

// Summarize pipeline tuning. A document below the threshold is summarized
// in one call; larger documents are chunked, summarized per chunk, and
// aggregated.
const (
	summarizeThreshold = 10000
	summarizeChunkSize = 3000
	summarizeOverlap   = 500
	maxSummarizeChunks = 10

	// Per-chunk LLM call ceiling; a timeout degrades that chunk to a
	// placeholder instead of failing the job.
	chunkCallTimeout = 40 * time.Second

	// Pause after every third chunk to stay under provider rate limits
	chunkPauseEvery    = 3
	chunkPauseDuration = 2 * time.Second
)

// SummarizeHandler produces a summary with key points from any resolved
// document.
type SummarizeHandler struct {
	resolver *ingest.Resolver
	llm      TextGenerator
	logger   *zap.SugaredLogger

	// sleep is swappable so tests skip the rate-limit pauses
	sleep func(time.Duration)
}

// NewSummarizeHandler creates the summarize job handler
func NewSummarizeHandler(resolver *ingest.Resolver, llm TextGenerator, logger *zap.SugaredLogger) *SummarizeHandler {
	return &SummarizeHandler{
		resolver: resolver,
		llm:      llm,
		logger:   logger.Named("summarize"),
		sleep:    time.Sleep,
	}
}

// Name implements queue.JobHandler
func (h *SummarizeHandler) Name() string { return HandlerSummarize }

// Execute implements queue.JobHandler
func (h *SummarizeHandler) Execute(ctx context.Context, job *queue.Job) (json.RawMessage, error) {
	payload, err := decodePayload(job)
	if err != nil {
		return nil, err
	}

	sourceText, err := h.resolver.Resolve(ctx, payload.Text, payload.DocumentURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve source text")
	}

	// Rune count, so the threshold agrees with the rune-windowed chunker
	textLength := utf8.RuneCountInString(sourceText)
	h.logger.Infow("Summarizing document",
		"job_id", job.ID,
		"filename", payload.Filename,
		"chars", textLength,
	)

	var result SummaryResult
	if textLength < summarizeThreshold {
		result, err = h.summarizeDirect(ctx, sourceText)
		if err != nil {
			return nil, err
		}
	} else {
		result = h.summarizeChunked(ctx, sourceText)
	}

	result.FileName = payload.Filename
	result.TextLength = textLength

	return json.Marshal(result)
}

// summarizeDirect issues a single call for documents under the threshold.
// An unparseable reply degrades to the raw reply text; no reply at all
// fails the job.
func (h *SummarizeHandler) summarizeDirect(ctx context.Context, text string) (SummaryResult, error) {
	reply, err := h.llm.Generate(ctx, gemini.GenerateRequest{
		SystemPrompt: summarizerSystemPrompt,
		UserPrompt:   directSummaryPrompt(text),
	})
	if err != nil {
		return SummaryResult{}, errors.Wrap(err, "summary generation failed")
	}

	jsonString := extract.JSON(reply)

	var result SummaryResult
	if err := json.Unmarshal([]byte(jsonString), &result); err != nil {
		h.logger.Warnw("Summary JSON parse failed, using fallback", "error", err)
		return SummaryResult{
			Summary:   jsonString,
			KeyPoints: []string{"Summary generated (parse fallback)"},
		}, nil
	}
	return result, nil
}

// summarizeChunked splits the document, summarizes up to maxSummarizeChunks
// chunks independently, then aggregates the section summaries into the
// final document. Individual chunk failures degrade to placeholders.
func (h *SummarizeHandler) summarizeChunked(ctx context.Context, text string) SummaryResult {
	chunks := ingest.Chunks(text, summarizeChunkSize, summarizeOverlap)
	h.logger.Infow("Chunked summarization", "chunks", len(chunks), "cap", maxSummarizeChunks)

	limit := len(chunks)
	if limit > maxSummarizeChunks {
		limit = maxSummarizeChunks
	}

	chunkSummaries := make([]string, 0, limit)
	for i := 0; i < limit; i++ {
		summary, err := h.summarizeChunk(ctx, chunks[i])
		if err != nil {
			h.logger.Warnw("Chunk summarization failed", "chunk", i+1, "error", err)
			chunkSummaries = append(chunkSummaries, fmt.Sprintf("[Error summarizing chunk %d]", i+1))
		} else {
			chunkSummaries = append(chunkSummaries, summary)
		}

		if (i+1)%chunkPauseEvery == 0 && i+1 < limit {
			h.sleep(chunkPauseDuration)
		}
	}

	allSummaries := strings.Join(chunkSummaries, "\n\n")

	result, err := h.aggregate(ctx, allSummaries)
	if err != nil {
		h.logger.Warnw("Aggregation failed, using section summaries directly", "error", err)
		return fallbackFromSections(allSummaries, chunkSummaries)
	}
	return result
}

func (h *SummarizeHandler) summarizeChunk(ctx context.Context, chunk string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, chunkCallTimeout)
	defer cancel()

	return h.llm.Generate(callCtx, gemini.GenerateRequest{
		SystemPrompt: chunkSystemPrompt,
		UserPrompt:   chunk,
	})
}

func (h *SummarizeHandler) aggregate(ctx context.Context, sectionSummaries string) (SummaryResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, chunkCallTimeout)
	defer cancel()

	reply, err := h.llm.Generate(callCtx, gemini.GenerateRequest{
		SystemPrompt: summarizerSystemPrompt,
		UserPrompt:   aggregateSummaryPrompt(sectionSummaries),
	})
	if err != nil {
		return SummaryResult{}, err
	}

	var result SummaryResult
	if err := json.Unmarshal([]byte(extract.JSON(reply)), &result); err != nil {
		return SummaryResult{}, errors.Wrap(err, "failed to parse aggregated summary")
	}
	return result, nil
}

// fallbackFromSections builds a degraded-but-valid result when the final
// aggregation call fails: the joined section summaries stand in for the
// overall summary, the first few sections for the key points.
func fallbackFromSections(allSummaries string, chunkSummaries []string) SummaryResult {
	summary := allSummaries
	if len(summary) > 1000 {
		summary = summary[:1000]
	}

	keyPoints := chunkSummaries
	if len(keyPoints) > 5 {
		keyPoints = keyPoints[:5]
	}

	return SummaryResult{
		Summary:   summary,
		KeyPoints: keyPoints,
	}
}
