package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/SnehaChouksey/Acadlyst/credit"
	"github.com/SnehaChouksey/Acadlyst/errors"
	"github.com/SnehaChouksey/Acadlyst/ingest"
	"github.com/SnehaChouksey/Acadlyst/observe"
	"github.com/SnehaChouksey/Acadlyst/pipeline"
	"github.com/SnehaChouksey/Acadlyst/queue"
)

// maxUploadBytes caps multipart PDF uploads
const maxUploadBytes = 25 << 20 // 25 MiB

// textRequest is the body of the text dispatch endpoints
type textRequest struct {
	Text string `json:"text"`
}

// youtubeRequest is the body of the YouTube dispatch endpoints
type youtubeRequest struct {
	URL string `json:"url"`
}

// dispatchResponse acknowledges an accepted job
type dispatchResponse struct {
	JobID    string `json:"jobId"`
	Filename string `json:"filename"`
}

func (s *Server) handleSummarizePDF(w http.ResponseWriter, r *http.Request) {
	s.handlePDFDispatch(w, r, credit.FeatureSummarizer, pipeline.HandlerSummarize)
}

func (s *Server) handleQuizPDF(w http.ResponseWriter, r *http.Request) {
	s.handlePDFDispatch(w, r, credit.FeatureQuiz, pipeline.HandlerQuiz)
}

func (s *Server) handleUploadPDF(w http.ResponseWriter, r *http.Request) {
	s.handlePDFDispatch(w, r, credit.FeatureChat, pipeline.HandlerRAGIndex)
}

func (s *Server) handleSummarizeText(w http.ResponseWriter, r *http.Request) {
	s.handleTextDispatch(w, r, credit.FeatureSummarizer, pipeline.HandlerSummarize)
}

func (s *Server) handleQuizText(w http.ResponseWriter, r *http.Request) {
	s.handleTextDispatch(w, r, credit.FeatureQuiz, pipeline.HandlerQuiz)
}

func (s *Server) handleSummarizeYouTube(w http.ResponseWriter, r *http.Request) {
	s.handleYouTubeDispatch(w, r, credit.FeatureSummarizer, pipeline.HandlerSummarize)
}

func (s *Server) handleQuizYouTube(w http.ResponseWriter, r *http.Request) {
	s.handleYouTubeDispatch(w, r, credit.FeatureQuiz, pipeline.HandlerQuiz)
}

// handlePDFDispatch spools the uploaded PDF and enqueues a job referencing
// it. The worker reads and extracts the spooled file.
func (s *Server) handlePDFDispatch(w http.ResponseWriter, r *http.Request, feature credit.Feature, handlerName string) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	// Refuse before spooling the upload; Deduct in dispatch stays
	// authoritative.
	remaining, err := s.ledger.Check(userID, feature)
	if err != nil {
		handleError(w, s.logger, err, "credit check failed")
		return
	}
	if remaining <= 0 {
		observe.CreditDenied(string(feature))
		writeError(w, http.StatusPaymentRequired, "insufficient credits")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("pdf")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Missing pdf file field: %v", err))
		return
	}
	defer file.Close()

	storedName, err := s.spoolUpload(file, header.Filename)
	if err != nil {
		handleError(w, s.logger, err, "failed to store upload")
		return
	}

	s.dispatch(w, userID, feature, handlerName, "pdf", pipeline.Payload{
		DocumentURL: storedName,
		Filename:    header.Filename,
		UserID:      userID,
	})
}

func (s *Server) handleTextDispatch(w http.ResponseWriter, r *http.Request, feature credit.Feature, handlerName string) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req textRequest
	if readJSON(w, r, &req) != nil {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "Missing text")
		return
	}

	s.dispatch(w, userID, feature, handlerName, "text", pipeline.Payload{
		Text:     req.Text,
		Filename: "pasted-text",
		UserID:   userID,
	})
}

// handleYouTubeDispatch fetches the transcript synchronously before any
// credit is touched; a video without captions costs the user nothing.
func (s *Server) handleYouTubeDispatch(w http.ResponseWriter, r *http.Request, feature credit.Feature, handlerName string) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req youtubeRequest
	if readJSON(w, r, &req) != nil {
		return
	}

	videoID, err := ingest.ExtractVideoID(req.URL)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	transcript, err := s.transcripts.Fetch(r.Context(), videoID)
	if err != nil {
		if errors.Is(err, ingest.ErrNoCaptions) {
			writeError(w, http.StatusBadRequest, "No captions available for this video")
			return
		}
		handleError(w, s.logger, err, "failed to fetch transcript")
		return
	}

	s.dispatch(w, userID, feature, handlerName, "youtube", pipeline.Payload{
		Text:     transcript,
		Filename: "youtube-" + videoID,
		UserID:   userID,
	})
}

// dispatch deducts one credit and enqueues the job. Deduction happens
// before enqueue; an enqueue failure after deduction loses the credit.
func (s *Server) dispatch(w http.ResponseWriter, userID string, feature credit.Feature, handlerName, source string, payload pipeline.Payload) {
	if err := payload.Validate(); err != nil {
		handleError(w, s.logger, err, "invalid payload")
		return
	}

	if err := s.ledger.Deduct(userID, feature); err != nil {
		if errors.Is(err, errors.ErrInsufficientCredits) {
			observe.CreditDenied(string(feature))
		}
		handleError(w, s.logger, err, "credit deduction failed")
		return
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		handleError(w, s.logger, err, "failed to encode payload")
		return
	}

	job, err := queue.NewJob(handlerName, source, userID, raw)
	if err != nil {
		handleError(w, s.logger, err, "failed to create job")
		return
	}

	if err := s.queue.Enqueue(job); err != nil {
		handleError(w, s.logger, err, "failed to enqueue job")
		return
	}
	observe.JobSubmitted(handlerName)

	s.logger.Infow("Job dispatched",
		"job_id", job.ID,
		"handler", handlerName,
		"source", source,
		"user_id", userID,
	)

	writeJSON(w, http.StatusOK, dispatchResponse{JobID: job.ID, Filename: payload.Filename})
}

// spoolUpload writes the uploaded file under the uploads directory and
// returns its stored name, which the worker resolves relative to the
// same directory.
func (s *Server) spoolUpload(file io.Reader, originalName string) (string, error) {
	if err := os.MkdirAll(s.cfg.Server.UploadsDir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create uploads directory")
	}

	ext := filepath.Ext(originalName)
	if ext == "" {
		ext = ".pdf"
	}
	storedName := uuid.NewString() + ext

	dst, err := os.Create(filepath.Join(s.cfg.Server.UploadsDir, storedName))
	if err != nil {
		return "", errors.Wrap(err, "failed to create spool file")
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(file, maxUploadBytes)); err != nil {
		return "", errors.Wrap(err, "failed to write spool file")
	}
	return storedName, nil
}
