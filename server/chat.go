package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/SnehaChouksey/Acadlyst/ai/gemini"
	"github.com/SnehaChouksey/Acadlyst/credit"
	"github.com/SnehaChouksey/Acadlyst/errors"
	"github.com/SnehaChouksey/Acadlyst/observe"
	"github.com/SnehaChouksey/Acadlyst/vector"
)

const (
	chatSystemPrompt = "Answer strictly using the given context below. If not in context, say 'I don't know'."
	chatTopK         = 3
	chatTemperature  = 0.2
)

// chatResponse is the grounded answer plus the chunks it drew on
type chatResponse struct {
	Answer  string                 `json:"answer"`
	Sources []*vector.SearchResult `json:"sources"`
}

// handleChat serves GET /api/chat?message=: embeds the question, retrieves
// the nearest indexed chunks, and answers strictly from them. Runs
// synchronously; retrieval and one generation call fit comfortably in a
// request lifetime.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	message := strings.TrimSpace(r.URL.Query().Get("message"))
	if message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	if err := s.ledger.Deduct(userID, credit.FeatureChatMessage); err != nil {
		if errors.Is(err, errors.ErrInsufficientCredits) {
			observe.CreditDenied(string(credit.FeatureChatMessage))
		}
		handleError(w, s.logger, err, "credit deduction failed")
		return
	}

	queryEmbedding, err := s.embedder.Embed(r.Context(), message)
	if err != nil {
		handleError(w, s.logger, err, "failed to embed question")
		return
	}

	results, err := s.vectors.Search(r.Context(), queryEmbedding, chatTopK)
	if err != nil {
		handleError(w, s.logger, err, "retrieval failed")
		return
	}

	contexts := make([]string, len(results))
	for i, res := range results {
		contexts[i] = res.Content
	}

	temp := chatTemperature
	answer, err := s.llm.Generate(r.Context(), gemini.GenerateRequest{
		SystemPrompt: chatSystemPrompt,
		UserPrompt:   fmt.Sprintf("Context:\n%s\n\nQuestion: %s", strings.Join(contexts, "\n\n"), message),
		Temperature:  &temp,
	})
	if err != nil {
		handleError(w, s.logger, err, "answer generation failed")
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Answer: answer, Sources: results})
}
