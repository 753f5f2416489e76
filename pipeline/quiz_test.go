package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SnehaChouksey/Acadlyst/ingest"
)

const quizReply = `{"questions": [
	{"id": 1, "question": "What is ATP?", "options": {"A": "A molecule", "B": "A cell", "C": "An organ", "D": "A tissue"}, "correct_answer": "A", "explanation": "ATP carries energy."},
	{"id": 2, "question": "Where is ATP made?", "options": {"A": "Nucleus", "B": "Mitochondria", "C": "Membrane", "D": "Ribosome"}, "correct_answer": "B", "explanation": "Mitochondria produce ATP."}
]}`

func newQuizHandler(llm *fakeLLM) *QuizHandler {
	resolver := ingest.NewResolver(nil, nil, "", zap.NewNop().Sugar())
	return NewQuizHandler(resolver, llm, "gemini-2.5-flash", 0.5, zap.NewNop().Sugar())
}

func TestQuizDirect(t *testing.T) {
	llm := &fakeLLM{replies: []string{quizReply}}
	h := newQuizHandler(llm)

	raw, err := h.Execute(context.Background(), textJob(t, HandlerQuiz, "notes about cellular respiration", "bio.pdf"))
	require.NoError(t, err)

	var result QuizResult
	require.NoError(t, json.Unmarshal(raw, &result))
	require.Len(t, result.Questions, 2)
	assert.Equal(t, 2, result.TotalQuestions)
	assert.Equal(t, "bio.pdf", result.FileName)
	assert.Equal(t, "What is ATP?", result.Questions[0].Question)
	assert.Equal(t, "B", result.Questions[1].CorrectAnswer)

	require.Len(t, llm.requests, 1)
	assert.Equal(t, quizSystemPrompt, llm.requests[0].SystemPrompt)
	require.NotNil(t, llm.requests[0].Model)
	assert.Equal(t, "gemini-2.5-flash", *llm.requests[0].Model)
	require.NotNil(t, llm.requests[0].Temperature)
	assert.Equal(t, 0.5, *llm.requests[0].Temperature)
}

func TestQuizMultibyteTextStaysDirect(t *testing.T) {
	// 8000 runes but 16000 bytes: length is measured in runes, so this
	// stays on the direct path
	text := strings.Repeat("é", 8000)
	require.GreaterOrEqual(t, len(text), quizThreshold)

	llm := &fakeLLM{replies: []string{quizReply}}
	h := newQuizHandler(llm)

	raw, err := h.Execute(context.Background(), textJob(t, HandlerQuiz, text, "accents.txt"))
	require.NoError(t, err)

	var result QuizResult
	require.NoError(t, json.Unmarshal(raw, &result))
	require.Len(t, result.Questions, 2)

	// One direct call, no section separator in the prompt
	require.Len(t, llm.requests, 1)
	assert.NotContains(t, llm.requests[0].UserPrompt, "[NEW SECTION]")
}

func TestQuizDefaultFileName(t *testing.T) {
	llm := &fakeLLM{replies: []string{quizReply}}
	h := newQuizHandler(llm)

	raw, err := h.Execute(context.Background(), textJob(t, HandlerQuiz, "some notes", ""))
	require.NoError(t, err)

	var result QuizResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, "study-notes", result.FileName)
}

func TestQuizDirectParseFallback(t *testing.T) {
	llm := &fakeLLM{replies: []string{"Here are some questions for you!"}}
	h := newQuizHandler(llm)

	raw, err := h.Execute(context.Background(), textJob(t, HandlerQuiz, "some notes", "n.pdf"))
	require.NoError(t, err)

	var result QuizResult
	require.NoError(t, json.Unmarshal(raw, &result))
	require.Len(t, result.Questions, 1)
	assert.Equal(t, 1, result.TotalQuestions)
	q := result.Questions[0]
	assert.Equal(t, "Could not parse quiz questions. Please try again.", q.Question)
	assert.Equal(t, QuizOptions{A: "A", B: "B", C: "C", D: "D"}, q.Options)
	assert.Equal(t, "A", q.CorrectAnswer)
	assert.True(t, strings.HasPrefix(q.Explanation, "Error in parsing: "))
}

func TestQuizDirectLLMFailureFailsJob(t *testing.T) {
	llm := &fakeLLM{replies: []string{"ERROR:model unavailable"}}
	h := newQuizHandler(llm)

	_, err := h.Execute(context.Background(), textJob(t, HandlerQuiz, "some notes", "n.pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quiz generation failed")
}

func TestQuizLargeDocumentUsesTopSections(t *testing.T) {
	text := strings.Repeat("mitochondria are the powerhouse of the cell ", 600)
	require.Greater(t, len(text), quizThreshold)

	llm := &fakeLLM{replies: []string{quizReply}}
	h := newQuizHandler(llm)

	raw, err := h.Execute(context.Background(), textJob(t, HandlerQuiz, text, "big.pdf"))
	require.NoError(t, err)

	var result QuizResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, 2, result.TotalQuestions)

	// One call, fed the leading sections joined with the section marker
	require.Len(t, llm.requests, 1)
	prompt := llm.requests[0].UserPrompt
	assert.Equal(t, quizTopSections-1, strings.Count(prompt, "[NEW SECTION]"))
	assert.Less(t, len(prompt), len(text))
}

func TestQuizLargeDocumentDegradesOnFailure(t *testing.T) {
	text := strings.Repeat("z", quizThreshold+1)

	llm := &fakeLLM{replies: []string{"ERROR:model unavailable"}}
	h := newQuizHandler(llm)

	raw, err := h.Execute(context.Background(), textJob(t, HandlerQuiz, text, "big.pdf"))
	require.NoError(t, err)

	var result QuizResult
	require.NoError(t, json.Unmarshal(raw, &result))
	require.Len(t, result.Questions, 1)
	q := result.Questions[0]
	assert.Equal(t, "Quiz generation failed for large document. Try with a smaller input.", q.Question)
	assert.True(t, strings.HasPrefix(q.Explanation, "Error: "))
}
