package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SnehaChouksey/Acadlyst/ai/gemini"
	"github.com/SnehaChouksey/Acadlyst/errors"
	"github.com/SnehaChouksey/Acadlyst/ingest"
	"github.com/SnehaChouksey/Acadlyst/queue"
)

// fakeLLM scripts Generate replies in call order. A reply beginning with
// "ERROR:" is returned as an error instead.
type fakeLLM struct {
	replies  []string
	requests []gemini.GenerateRequest
}

func (f *fakeLLM) Generate(_ context.Context, req gemini.GenerateRequest) (string, error) {
	f.requests = append(f.requests, req)
	if len(f.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	if rest, ok := strings.CutPrefix(reply, "ERROR:"); ok {
		return "", errors.New(rest)
	}
	return reply, nil
}

// repeat returns n copies of reply, for scripting per-chunk calls.
func repeat(reply string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = reply
	}
	return out
}

func textJob(t *testing.T, handlerName, text, filename string) *queue.Job {
	t.Helper()
	payload, err := json.Marshal(Payload{Text: text, Filename: filename, UserID: "u1"})
	require.NoError(t, err)
	job, err := queue.NewJob(handlerName, "text", "u1", payload)
	require.NoError(t, err)
	return job
}

func newSummarizeHandler(llm *fakeLLM) *SummarizeHandler {
	resolver := ingest.NewResolver(nil, nil, "", zap.NewNop().Sugar())
	h := NewSummarizeHandler(resolver, llm, zap.NewNop().Sugar())
	h.sleep = func(time.Duration) {}
	return h
}

func TestSummarizeDirect(t *testing.T) {
	llm := &fakeLLM{replies: []string{
		`{"summary": "Photosynthesis converts light to chemical energy.", "key_points": ["light reactions", "Calvin cycle"]}`,
	}}
	h := newSummarizeHandler(llm)

	raw, err := h.Execute(context.Background(), textJob(t, HandlerSummarize, "short text about photosynthesis", "bio.pdf"))
	require.NoError(t, err)

	var result SummaryResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, "Photosynthesis converts light to chemical energy.", result.Summary)
	assert.Equal(t, []string{"light reactions", "Calvin cycle"}, result.KeyPoints)
	assert.Equal(t, "bio.pdf", result.FileName)
	assert.Equal(t, len("short text about photosynthesis"), result.TextLength)

	require.Len(t, llm.requests, 1)
	assert.Contains(t, llm.requests[0].UserPrompt, "photosynthesis")
}

func TestSummarizeMultibyteTextStaysDirect(t *testing.T) {
	// 6000 runes but 12000 bytes: length is measured in runes, so this
	// stays under the chunking threshold
	text := strings.Repeat("é", 6000)
	require.GreaterOrEqual(t, len(text), summarizeThreshold)

	llm := &fakeLLM{replies: []string{
		`{"summary": "accents everywhere", "key_points": ["diacritics"]}`,
	}}
	h := newSummarizeHandler(llm)

	raw, err := h.Execute(context.Background(), textJob(t, HandlerSummarize, text, "accents.txt"))
	require.NoError(t, err)

	var result SummaryResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, "accents everywhere", result.Summary)
	assert.Equal(t, 6000, result.TextLength)

	// One direct call, no per-chunk prompts
	require.Len(t, llm.requests, 1)
	assert.Equal(t, summarizerSystemPrompt, llm.requests[0].SystemPrompt)
}

func TestSummarizeDirectParseFallback(t *testing.T) {
	llm := &fakeLLM{replies: []string{"The document is mostly about turtles."}}
	h := newSummarizeHandler(llm)

	raw, err := h.Execute(context.Background(), textJob(t, HandlerSummarize, "some text", "t.pdf"))
	require.NoError(t, err)

	var result SummaryResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, "The document is mostly about turtles.", result.Summary)
	assert.Equal(t, []string{"Summary generated (parse fallback)"}, result.KeyPoints)
}

func TestSummarizeDirectLLMFailureFailsJob(t *testing.T) {
	llm := &fakeLLM{replies: []string{"ERROR:model unavailable"}}
	h := newSummarizeHandler(llm)

	_, err := h.Execute(context.Background(), textJob(t, HandlerSummarize, "some text", "t.pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "summary generation failed")
}

func TestSummarizeChunkedLargeDocument(t *testing.T) {
	// 50k chars splits into 20 chunks at 3000/500; only 10 are summarized
	text := strings.Repeat("all work and no play makes a dull student ", 1200)
	require.Greater(t, len(text), 50000)

	replies := repeat("This section repeats a proverb.", maxSummarizeChunks)
	replies = append(replies, `{"summary": "The document repeats one proverb throughout.", "key_points": ["repetition"]}`)
	llm := &fakeLLM{replies: replies}
	h := newSummarizeHandler(llm)

	raw, err := h.Execute(context.Background(), textJob(t, HandlerSummarize, text, "big.pdf"))
	require.NoError(t, err)

	var result SummaryResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, "The document repeats one proverb throughout.", result.Summary)
	assert.Equal(t, len(text), result.TextLength)

	// 10 chunk calls plus one aggregation call
	require.Len(t, llm.requests, maxSummarizeChunks+1)
	for _, req := range llm.requests[:maxSummarizeChunks] {
		assert.Equal(t, chunkSystemPrompt, req.SystemPrompt)
	}
	assert.Contains(t, llm.requests[maxSummarizeChunks].UserPrompt, "This section repeats a proverb.")
}

func TestSummarizeChunkedChunkFailurePlaceholder(t *testing.T) {
	text := strings.Repeat("x", summarizeThreshold+1000) // 5 chunks at 3000/500
	llm := &fakeLLM{replies: []string{
		"First section summary.",
		"ERROR:rate limited",
		"Third section summary.",
		"Fourth section summary.",
		"Fifth section summary.",
		`{"summary": "ok", "key_points": ["a"]}`,
	}}
	h := newSummarizeHandler(llm)

	raw, err := h.Execute(context.Background(), textJob(t, HandlerSummarize, text, "p.pdf"))
	require.NoError(t, err)

	var result SummaryResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, "ok", result.Summary)

	// The aggregation prompt carries the placeholder for the failed chunk
	last := llm.requests[len(llm.requests)-1]
	assert.Contains(t, last.UserPrompt, "[Error summarizing chunk 2]")
	assert.Contains(t, last.UserPrompt, "First section summary.")
}

func TestSummarizeChunkedAggregationFallback(t *testing.T) {
	text := strings.Repeat("y", summarizeThreshold+1000)
	chunks := ingest.Chunks(text, summarizeChunkSize, summarizeOverlap)
	n := min(len(chunks), maxSummarizeChunks)

	replies := make([]string, 0, n+1)
	for i := 0; i < n; i++ {
		replies = append(replies, strings.Repeat("section ", 20))
	}
	replies = append(replies, "ERROR:aggregation failed")
	llm := &fakeLLM{replies: replies}
	h := newSummarizeHandler(llm)

	raw, err := h.Execute(context.Background(), textJob(t, HandlerSummarize, text, "a.pdf"))
	require.NoError(t, err)

	var result SummaryResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.NotEmpty(t, result.Summary)
	assert.LessOrEqual(t, len(result.Summary), 1000)
	assert.LessOrEqual(t, len(result.KeyPoints), 5)
	assert.NotEmpty(t, result.KeyPoints)
}

func TestSummarizePayloadValidation(t *testing.T) {
	h := newSummarizeHandler(&fakeLLM{})

	payload, err := json.Marshal(Payload{UserID: "u1"}) // neither text nor document
	require.NoError(t, err)
	job, err := queue.NewJob(HandlerSummarize, "text", "u1", payload)
	require.NoError(t, err)

	_, err = h.Execute(context.Background(), job)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}
