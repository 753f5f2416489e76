// Package server exposes Acadlyst's HTTP API: job dispatch endpoints,
// the status-polling contract, RAG chat, user stats, and operational
// endpoints.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/SnehaChouksey/Acadlyst/ai/gemini"
	"github.com/SnehaChouksey/Acadlyst/config"
	"github.com/SnehaChouksey/Acadlyst/credit"
	"github.com/SnehaChouksey/Acadlyst/errors"
	"github.com/SnehaChouksey/Acadlyst/ingest"
	"github.com/SnehaChouksey/Acadlyst/observe"
	"github.com/SnehaChouksey/Acadlyst/queue"
	"github.com/SnehaChouksey/Acadlyst/vector"
)

// textGenerator is the slice of the LLM client the chat endpoint needs
type textGenerator interface {
	Generate(ctx context.Context, req gemini.GenerateRequest) (string, error)
}

// Server is the Acadlyst HTTP API server
type Server struct {
	cfg         *config.Config
	queue       *queue.Queue
	ledger      *credit.Ledger
	transcripts ingest.TranscriptFetcher
	llm         textGenerator
	embedder    gemini.Embedder
	vectors     *vector.Store
	logger      *zap.SugaredLogger

	httpServer *http.Server
}

// Deps carries the wired components the server serves
type Deps struct {
	Queue       *queue.Queue
	Ledger      *credit.Ledger
	Transcripts ingest.TranscriptFetcher
	LLM         textGenerator
	Embedder    gemini.Embedder
	Vectors     *vector.Store
}

// New creates the API server
func New(cfg *config.Config, deps Deps, logger *zap.SugaredLogger) *Server {
	s := &Server{
		cfg:         cfg,
		queue:       deps.Queue,
		ledger:      deps.Ledger,
		transcripts: deps.Transcripts,
		llm:         deps.LLM,
		embedder:    deps.Embedder,
		vectors:     deps.Vectors,
		logger:      logger.Named("server"),
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.routes(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/summarize/pdf", s.handleSummarizePDF)
	mux.HandleFunc("/api/summarize/text", s.handleSummarizeText)
	mux.HandleFunc("/api/summarize/youtube", s.handleSummarizeYouTube)
	mux.HandleFunc("/api/quiz/pdf", s.handleQuizPDF)
	mux.HandleFunc("/api/quiz/text", s.handleQuizText)
	mux.HandleFunc("/api/quiz/youtube", s.handleQuizYouTube)
	mux.HandleFunc("/api/upload/pdf", s.handleUploadPDF)

	mux.HandleFunc("/api/jobs", s.handleListJobs)
	mux.HandleFunc("/api/jobs/", s.handleJobStatus)

	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/user/stats", s.handleUserStats)

	mux.Handle("/metrics", observe.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)

	return s.withCORS(mux)
}

// withCORS applies the configured allowed origins. An empty list means
// same-origin only.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.cfg.Server.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Start begins serving. Blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.logger.Infow("HTTP server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http server failed")
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Infow("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
