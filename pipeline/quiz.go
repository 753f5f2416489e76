package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/SnehaChouksey/Acadlyst/ai/extract"
	"github.com/SnehaChouksey/Acadlyst/ai/gemini"
	"github.com/SnehaChouksey/Acadlyst/errors"
	"github.com/SnehaChouksey/Acadlyst/ingest"
	"github.com/SnehaChouksey/Acadlyst/queue"
)

// Quiz pipeline tuning. Small documents feed the model whole; larger ones
// are chunked and only the leading sections are used, since a quiz does
// not need full coverage the way a summary does.
const (
	quizThreshold   = 15000
	quizChunkSize   = 7000
	quizOverlap     = 700
	quizTopSections = 3

	quizSectionSeparator = "\n\n[NEW SECTION]\n\n"

	defaultQuizFileName = "study-notes"
)

// QuizHandler produces a multiple-choice quiz from any resolved document.
type QuizHandler struct {
	resolver    *ingest.Resolver
	llm         TextGenerator
	model       string
	temperature float64
	logger      *zap.SugaredLogger
}

// NewQuizHandler creates the quiz job handler. model and temperature
// override the client defaults per call; quizzes run on a lighter model
// than summaries.
func NewQuizHandler(resolver *ingest.Resolver, llm TextGenerator, model string, temperature float64, logger *zap.SugaredLogger) *QuizHandler {
	return &QuizHandler{
		resolver:    resolver,
		llm:         llm,
		model:       model,
		temperature: temperature,
		logger:      logger.Named("quiz"),
	}
}

// Name implements queue.JobHandler
func (h *QuizHandler) Name() string { return HandlerQuiz }

// Execute implements queue.JobHandler
func (h *QuizHandler) Execute(ctx context.Context, job *queue.Job) (json.RawMessage, error) {
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
	h.logger.Infow("Generating quiz",
		"job_id", job.ID,
		"filename", payload.Filename,
		"chars", textLength,
	)

	var questions []Question
	if textLength < quizThreshold {
		questions, err = h.quizDirect(ctx, sourceText)
		if err != nil {
			return nil, err
		}
	} else {
		questions = h.quizFromSections(ctx, sourceText)
	}

	result := QuizResult{
		Questions:      questions,
		FileName:       payload.Filename,
		TotalQuestions: len(questions),
	}
	if result.FileName == "" {
		result.FileName = defaultQuizFileName
	}

	return json.Marshal(result)
}

// quizDirect generates a quiz from the whole document in one call. An
// unparseable reply degrades to a single placeholder question; no reply
// at all fails the job.
func (h *QuizHandler) quizDirect(ctx context.Context, text string) ([]Question, error) {
	reply, err := h.generate(ctx, directQuizPrompt(text))
	if err != nil {
		return nil, errors.Wrap(err, "quiz generation failed")
	}

	questions, err := parseQuestions(reply)
	if err != nil {
		h.logger.Warnw("Quiz JSON parse failed, using placeholder question", "error", err)
		return []Question{{
			ID:            1,
			Question:      "Could not parse quiz questions. Please try again.",
			Options:       QuizOptions{A: "A", B: "B", C: "C", D: "D"},
			CorrectAnswer: "A",
			Explanation:   "Error in parsing: " + err.Error(),
		}}, nil
	}
	return questions, nil
}

// quizFromSections generates a quiz from the leading sections of a large
// document. Any failure here degrades to a single placeholder question so
// the user gets a result rather than a dead job on an input the model may
// simply be choking on.
func (h *QuizHandler) quizFromSections(ctx context.Context, text string) []Question {
	chunks := ingest.Chunks(text, quizChunkSize, quizOverlap)
	h.logger.Infow("Quiz from key sections", "chunks", len(chunks), "used", quizTopSections)

	top := chunks
	if len(top) > quizTopSections {
		top = top[:quizTopSections]
	}
	sections := strings.Join(top, quizSectionSeparator)

	questions, err := h.sectionQuiz(ctx, sections)
	if err != nil {
		h.logger.Warnw("Large-document quiz failed, using placeholder question", "error", err)
		return []Question{{
			ID:            1,
			Question:      "Quiz generation failed for large document. Try with a smaller input.",
			Options:       QuizOptions{A: "A", B: "B", C: "C", D: "D"},
			CorrectAnswer: "A",
			Explanation:   "Error: " + err.Error(),
		}}
	}
	return questions
}

func (h *QuizHandler) sectionQuiz(ctx context.Context, sections string) ([]Question, error) {
	reply, err := h.generate(ctx, sectionQuizPrompt(sections))
	if err != nil {
		return nil, err
	}
	return parseQuestions(reply)
}

func (h *QuizHandler) generate(ctx context.Context, prompt string) (string, error) {
	req := gemini.GenerateRequest{
		SystemPrompt: quizSystemPrompt,
		UserPrompt:   prompt,
	}
	if h.model != "" {
		model := h.model
		req.Model = &model
	}
	if h.temperature > 0 {
		temp := h.temperature
		req.Temperature = &temp
	}
	return h.llm.Generate(ctx, req)
}

func parseQuestions(reply string) ([]Question, error) {
	jsonString := extract.JSON(reply)

	var parsed struct {
		Questions []Question `json:"questions"`
	}
	if err := json.Unmarshal([]byte(jsonString), &parsed); err != nil {
		return nil, err
	}
	return parsed.Questions, nil
}
