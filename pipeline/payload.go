// Package pipeline implements the job handlers behind Acadlyst's three
// processing families: document summarization, quiz generation, and
// retrieval indexing.
package pipeline

import (
	"encoding/json"
	"strings"

	"github.com/SnehaChouksey/Acadlyst/errors"
	"github.com/SnehaChouksey/Acadlyst/queue"
)

// Handler names routed through the job queue
const (
	HandlerSummarize = "summarize"
	HandlerQuiz      = "quiz-generate"
	HandlerRAGIndex  = "rag-index"
)

// Payload is the job payload shared by all three pipelines.
//
// Exactly one of Text or DocumentURL must be set. YouTube inputs arrive as
// Text: the dispatcher fetches the transcript synchronously before the job
// is ever enqueued.
type Payload struct {
	Text        string `json:"text,omitempty"`
	DocumentURL string `json:"document_url,omitempty"` // http(s) URL or spooled upload path
	Filename    string `json:"filename,omitempty"`
	UserID      string `json:"user_id,omitempty"`
}

// Validate checks the exactly-one-of input constraint
func (p Payload) Validate() error {
	hasText := strings.TrimSpace(p.Text) != ""
	hasDoc := p.DocumentURL != ""

	switch {
	case hasText && hasDoc:
		return errors.Wrap(errors.ErrInvalidRequest, "payload must not carry both text and a document")
	case !hasText && !hasDoc:
		return errors.Wrap(errors.ErrInvalidRequest, "payload carries neither text nor a document")
	default:
		return nil
	}
}

// decodePayload unmarshals and validates a job's payload
func decodePayload(job *queue.Job) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return Payload{}, errors.Wrapf(err, "invalid payload for job %s", job.ID)
	}
	if err := p.Validate(); err != nil {
		return Payload{}, err
	}
	return p, nil
}

// SummaryResult is the document produced by the summarize pipeline
type SummaryResult struct {
	Summary    string   `json:"summary"`
	KeyPoints  []string `json:"key_points"`
	FileName   string   `json:"fileName,omitempty"`
	TextLength int      `json:"textLength"`
}

// QuizOptions holds the four multiple-choice options of one question
type QuizOptions struct {
	A string `json:"A"`
	B string `json:"B"`
	C string `json:"C"`
	D string `json:"D"`
}

// Question is one multiple-choice quiz question
type Question struct {
	ID            int         `json:"id"`
	Question      string      `json:"question"`
	Options       QuizOptions `json:"options"`
	CorrectAnswer string      `json:"correct_answer"`
	Explanation   string      `json:"explanation"`
}

// QuizResult is the document produced by the quiz pipeline
type QuizResult struct {
	Questions      []Question `json:"questions"`
	FileName       string     `json:"fileName"`
	TotalQuestions int        `json:"totalQuestions"`
}
