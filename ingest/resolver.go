package ingest

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SnehaChouksey/Acadlyst/errors"
	"github.com/SnehaChouksey/Acadlyst/internal/httpclient"
)

// MaxDocumentBytes caps how much of a remote or uploaded document is read.
const MaxDocumentBytes = 50 << 20 // 50 MiB

// Resolver normalizes job inputs into a single plain-text string.
//
// Inline text passes through untouched (YouTube transcripts arrive this way,
// pre-fetched by the dispatcher). A document reference is either an http(s)
// URL fetched through the SSRF-safe client, or the path of a previously
// spooled upload relative to uploadsDir.
type Resolver struct {
	client     *httpclient.SaferClient
	pdf        PDFExtractor
	uploadsDir string
	logger     *zap.SugaredLogger
}

// NewResolver creates a document source resolver
func NewResolver(client *httpclient.SaferClient, pdf PDFExtractor, uploadsDir string, logger *zap.SugaredLogger) *Resolver {
	if client == nil {
		client = httpclient.New(60 * time.Second)
	}
	return &Resolver{
		client:     client,
		pdf:        pdf,
		uploadsDir: uploadsDir,
		logger:     logger.Named("ingest"),
	}
}

// Resolve turns exactly one of (text, documentRef) into plain text.
func (r *Resolver) Resolve(ctx context.Context, text, documentRef string) (string, error) {
	hasText := strings.TrimSpace(text) != ""
	hasDoc := documentRef != ""

	switch {
	case hasText && hasDoc:
		return "", errors.Wrap(errors.ErrInvalidRequest, "provide either text or a document, not both")
	case hasText:
		return text, nil
	case hasDoc:
		return r.resolveDocument(ctx, documentRef)
	default:
		return "", errors.Wrap(errors.ErrInvalidRequest, "no input text or document provided")
	}
}

func (r *Resolver) resolveDocument(ctx context.Context, ref string) (string, error) {
	var data []byte
	var err error

	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		data, err = r.fetchRemote(ctx, ref)
	} else {
		data, err = r.readUpload(ref)
	}
	if err != nil {
		return "", err
	}

	text, err := r.pdf.Extract(ctx, data)
	if err != nil {
		return "", errors.Wrapf(err, "failed to extract text from %s", ref)
	}

	r.logger.Debugw("Resolved document",
		"ref", ref,
		"bytes", len(data),
		"chars", len(text),
	)
	return text, nil
}

func (r *Resolver) fetchRemote(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build request for %s", url)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch document %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("document fetch returned status %d for %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDocumentBytes))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read document body from %s", url)
	}
	return data, nil
}

// readUpload reads a spooled upload. The path is confined to uploadsDir so
// a crafted payload cannot read arbitrary files.
func (r *Resolver) readUpload(name string) ([]byte, error) {
	cleaned := filepath.Clean(name)
	if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "invalid upload path %q", name)
	}

	data, err := os.ReadFile(filepath.Join(r.uploadsDir, cleaned))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read upload %s", name)
	}
	return data, nil
}
