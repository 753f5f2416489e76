package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SnehaChouksey/Acadlyst/ai/gemini"
	"github.com/SnehaChouksey/Acadlyst/config"
	"github.com/SnehaChouksey/Acadlyst/credit"
	"github.com/SnehaChouksey/Acadlyst/errors"
	"github.com/SnehaChouksey/Acadlyst/ingest"
	acadtest "github.com/SnehaChouksey/Acadlyst/internal/testing"
	"github.com/SnehaChouksey/Acadlyst/pipeline"
	"github.com/SnehaChouksey/Acadlyst/queue"
	"github.com/SnehaChouksey/Acadlyst/vector"
)

type stubGenerator struct {
	reply    string
	err      error
	requests []gemini.GenerateRequest
}

func (g *stubGenerator) Generate(_ context.Context, req gemini.GenerateRequest) (string, error) {
	g.requests = append(g.requests, req)
	return g.reply, g.err
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.New("empty text")
	}
	vec := make([]float32, 768)
	vec[0] = 1.0
	return vec, nil
}

type stubTranscripts struct {
	transcript string
	err        error
}

func (s stubTranscripts) Fetch(_ context.Context, _ string) (string, error) {
	return s.transcript, s.err
}

type fixture struct {
	server *Server
	ts     *httptest.Server
	queue  *queue.Queue
	ledger *credit.Ledger
	gen    *stubGenerator
}

func newFixture(t *testing.T, opts ...func(*fixture)) *fixture {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{
			UploadsDir: t.TempDir(),
		},
		Credits: config.CreditsConfig{
			Summarizer:  2,
			Quiz:        2,
			Chat:        1,
			ChatMessage: 20,
		},
	}

	conn := acadtest.CreateTestDB(t)
	f := &fixture{
		queue:  queue.NewQueue(conn),
		ledger: credit.NewLedger(conn, cfg.Credits, zap.NewNop().Sugar()),
		gen:    &stubGenerator{reply: "stub answer"},
	}

	deps := Deps{
		Queue:       f.queue,
		Ledger:      f.ledger,
		Transcripts: stubTranscripts{transcript: "a transcript"},
		LLM:         f.gen,
		Embedder:    stubEmbedder{},
		Vectors:     vector.NewStore(conn, zap.NewNop().Sugar()),
	}

	f.server = New(cfg, deps, zap.NewNop().Sugar())
	for _, opt := range opts {
		opt(f)
	}
	f.ts = httptest.NewServer(f.server.routes())
	t.Cleanup(f.ts.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, userID string, body string) *http.Response {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req, err := http.NewRequest(method, f.ts.URL+path, reader)
	require.NoError(t, err)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestDispatchTextCreatesJob(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/summarize/text", "u1", `{"text": "summarize this please"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	jobID, _ := body["jobId"].(string)
	require.NotEmpty(t, jobID)
	assert.Equal(t, "pasted-text", body["filename"])

	job, err := f.queue.GetJob(jobID)
	require.NoError(t, err)
	assert.Equal(t, queue.JobStatusWaiting, job.Status)
	assert.Equal(t, pipeline.HandlerSummarize, job.HandlerName)
	assert.Equal(t, "u1", job.UserID)

	// One credit consumed
	balance, err := f.ledger.Stats("u1")
	require.NoError(t, err)
	assert.Equal(t, 1, balance.SummarizerCredits)
	assert.Equal(t, 1, balance.TotalSummaries)
}

func TestDispatchRequiresUser(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/summarize/text", "", `{"text": "hello"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDispatchRejectsEmptyText(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/quiz/text", "u1", `{"text": "   "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDispatchQuotaExhaustion(t *testing.T) {
	f := newFixture(t)

	// Free plan carries 2 summarizer credits
	for i := 0; i < 2; i++ {
		resp := f.do(t, http.MethodPost, "/api/summarize/text", "u1", `{"text": "doc"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp := f.do(t, http.MethodPost, "/api/summarize/text", "u1", `{"text": "doc"}`)
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)

	// The refused request created no job
	jobs, err := f.queue.ListJobsByUser("u1", 10)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestDispatchYouTubeNoCaptions(t *testing.T) {
	f := newFixture(t, func(f *fixture) {
		f.server.transcripts = stubTranscripts{err: errors.Wrap(ingest.ErrNoCaptions, "video abc")}
	})

	resp := f.do(t, http.MethodPost, "/api/summarize/youtube", "u1",
		`{"url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Transcript failure costs nothing
	balance, err := f.ledger.Stats("u1")
	require.NoError(t, err)
	assert.Equal(t, 2, balance.SummarizerCredits)
}

func TestDispatchYouTube(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/quiz/youtube", "u1",
		`{"url": "https://youtu.be/dQw4w9WgXcQ"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "youtube-dQw4w9WgXcQ", body["filename"])

	jobs, err := f.queue.ListJobsByUser("u1", 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	var payload pipeline.Payload
	require.NoError(t, json.Unmarshal(jobs[0].Payload, &payload))
	assert.Equal(t, "a transcript", payload.Text)
}

func TestDispatchPDFSpoolsUpload(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("pdf", "lecture.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 fake"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, f.ts.URL+"/api/upload/pdf", &buf)
	require.NoError(t, err)
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "lecture.pdf", body["filename"])

	// The job references the spooled copy, not the original name
	jobs, err := f.queue.ListJobsByUser("u1", 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, pipeline.HandlerRAGIndex, jobs[0].HandlerName)

	var payload pipeline.Payload
	require.NoError(t, json.Unmarshal(jobs[0].Payload, &payload))
	assert.NotEqual(t, "lecture.pdf", payload.DocumentURL)
	assert.Equal(t, "lecture.pdf", payload.Filename)

	spooled, err := os.ReadFile(filepath.Join(f.server.cfg.Server.UploadsDir, payload.DocumentURL))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(spooled))

	// Chat-family (indexing) credit consumed
	balance, err := f.ledger.Stats("u1")
	require.NoError(t, err)
	assert.Equal(t, 0, balance.ChatCredits)
	assert.Equal(t, 1, balance.TotalChats)
}

func TestJobStatusPolling(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/summarize/text", "u1", `{"text": "doc"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	jobID := decodeBody(t, resp)["jobId"].(string)

	// Waiting
	resp = f.do(t, http.MethodGet, "/api/jobs/"+jobID, "u1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "waiting", body["status"])
	assert.NotContains(t, body, "summary")

	// Completed: result fields merge beside the status
	_, err := f.queue.Dequeue()
	require.NoError(t, err)
	result, _ := json.Marshal(pipeline.SummaryResult{Summary: "done", KeyPoints: []string{"a"}, TextLength: 3})
	require.NoError(t, f.queue.CompleteJob(jobID, result))

	resp = f.do(t, http.MethodGet, "/api/jobs/"+jobID, "u1", "")
	body = decodeBody(t, resp)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, "done", body["summary"])
}

func TestJobStatusFailed(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/quiz/text", "u1", `{"text": "doc"}`)
	jobID := decodeBody(t, resp)["jobId"].(string)

	_, err := f.queue.Dequeue()
	require.NoError(t, err)
	require.NoError(t, f.queue.FailJob(jobID, errors.New("model exploded")))

	resp = f.do(t, http.MethodGet, "/api/jobs/"+jobID, "u1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "failed", body["status"])
	assert.Contains(t, body["error"], "model exploded")
}

func TestJobStatusUnknownID(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/jobs/no-such-job", "u1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListJobs(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/api/summarize/text", "u1", `{"text": "one"}`)
	f.do(t, http.MethodPost, "/api/quiz/text", "u1", `{"text": "two"}`)
	f.do(t, http.MethodPost, "/api/summarize/text", "u2", `{"text": "theirs"}`)

	resp := f.do(t, http.MethodGet, "/api/jobs", "u1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, float64(2), body["count"])

	queueStats := body["queue"].(map[string]interface{})
	assert.Equal(t, float64(3), queueStats["waiting"])
}

func TestChatAnswersFromIndex(t *testing.T) {
	f := newFixture(t)

	// Index one chunk so retrieval has something to return
	vec := make([]float32, 768)
	vec[0] = 1.0
	require.NoError(t, f.server.vectors.UpsertBatch(context.Background(), []vector.ChunkRecord{
		{Content: "photosynthesis converts light", Source: "bio.pdf", Position: 1, Embedding: vec},
	}))
	f.gen.reply = "It converts light."

	resp := f.do(t, http.MethodGet, "/api/chat?message=what+is+photosynthesis", "u1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "It converts light.", body["answer"])
	sources := body["sources"].([]interface{})
	require.Len(t, sources, 1)

	// The retrieved chunk grounds the prompt
	require.Len(t, f.gen.requests, 1)
	assert.Contains(t, f.gen.requests[0].UserPrompt, "photosynthesis converts light")
	assert.Contains(t, f.gen.requests[0].UserPrompt, "Question: what is photosynthesis")

	// One chat-message credit consumed
	balance, err := f.ledger.Stats("u1")
	require.NoError(t, err)
	assert.Equal(t, 19, balance.ChatMessageCredits)
}

func TestChatRequiresMessage(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/chat", "u1", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUserStats(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/api/summarize/text", "u1", `{"text": "doc"}`)

	resp := f.do(t, http.MethodGet, "/api/user/stats", "u1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, float64(1), body["summarizer_credits"])
	assert.Equal(t, float64(2), body["quiz_credits"])
	assert.Equal(t, float64(1), body["total_summaries"])
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
