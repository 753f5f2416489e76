// Package gemini is the client for Google's generative language API, used
// for summary/quiz generation, chat answers, and text embeddings.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/SnehaChouksey/Acadlyst/errors"
	"github.com/SnehaChouksey/Acadlyst/internal/httpclient"
)

const (
	// DefaultBaseURL is the production API endpoint
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	// DefaultModel is the fallback model when none is specified.
	// Should match the default in config/defaults.go for consistency.
	DefaultModel = "gemini-2.0-flash"
	// DefaultEmbeddingModel is the fallback embedding model
	DefaultEmbeddingModel = "text-embedding-004"
)

// Config holds AI client configuration
type Config struct {
	APIKey            string
	BaseURL           string             // override for tests and local gateways
	Model             string
	EmbeddingModel    string
	Temperature       *float64           // nil = use default (0.4)
	MaxTokens         *int               // nil = use default (4096)
	MaxCallsPerMinute int                // 0 = unpaced
	Timeout           time.Duration      // per-call HTTP timeout, 0 = 120s
	Logger            *zap.SugaredLogger // nil = nop logger
}

// Client calls the generative language API with retry and pacing
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *httpclient.SaferClient
	limiter    *rate.Limiter
	config     Config
	logger     *zap.SugaredLogger
}

// NewClient creates a Gemini client with Acadlyst defaults
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.EmbeddingModel == "" {
		config.EmbeddingModel = DefaultEmbeddingModel
	}
	if config.Temperature == nil {
		defaultTemp := 0.4
		config.Temperature = &defaultTemp
	}
	if config.MaxTokens == nil {
		defaultTokens := 4096
		config.MaxTokens = &defaultTokens
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	// Pace calls across the whole process so chunk loops respect provider
	// rate limits. Unset means no pacing.
	var limiter *rate.Limiter
	if config.MaxCallsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(config.MaxCallsPerMinute)/60.0), 1)
	}

	return &Client{
		apiKey:     config.APIKey,
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpclient.New(timeout),
		limiter:    limiter,
		config:     config,
		logger:     logger.Named("gemini"),
	}
}

// IsConfigured returns true if the client has an API key
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// GenerateRequest is a high-level text generation request
type GenerateRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  *float64 // override default temperature
	MaxTokens    *int     // override default max tokens
	Model        *string  // override default model
}

// Wire types for the generateContent endpoint

type generateContentRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// Generate sends a text generation request and returns the model's reply.
// Transient network failures are retried up to three times with linear
// backoff.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("Gemini API key not configured")
	}

	temperature := *c.config.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := *c.config.MaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	model := c.config.Model
	if req.Model != nil {
		model = *req.Model
	}

	body := generateContentRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: req.UserPrompt}}},
		},
		GenerationConfig: &generationConfig{
			Temperature:     temperature,
			MaxOutputTokens: maxTokens,
		},
	}
	if req.SystemPrompt != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: req.SystemPrompt}}}
	}

	c.logger.Debugw("Generate request",
		"model", model,
		"temperature", temperature,
		"max_tokens", maxTokens,
		"prompt_chars", len(req.UserPrompt),
	)

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, model)

	maxRetries := 3
	var resp generateContentResponse
	var err error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * time.Second
			c.logger.Debugw("Retrying Gemini request",
				"attempt", attempt, "max_retries", maxRetries-1, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		err = c.post(ctx, url, body, &resp)
		if err == nil {
			if attempt > 0 {
				c.logger.Infow("Request succeeded after retries", "attempts", attempt+1, "model", model)
			}
			break
		}

		c.logger.Warnw("Gemini API error",
			"attempt", attempt+1, "max_retries", maxRetries,
			"error", err, "model", model)

		if c.isRetryableError(err) {
			continue
		}
		return "", errors.Wrap(err, "Gemini API error")
	}
	if err != nil {
		return "", errors.Wrapf(err, "Gemini API error after %d retries", maxRetries)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no response candidates from Gemini")
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := strings.TrimSpace(sb.String())

	c.logger.Debugw("Generate response",
		"content_length", len(text),
		"prompt_tokens", resp.UsageMetadata.PromptTokenCount,
		"completion_tokens", resp.UsageMetadata.CandidatesTokenCount,
	)

	return text, nil
}

// post issues one paced, authenticated API call and decodes the response
func (c *Client) post(ctx context.Context, url string, reqBody, respBody interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "rate limit wait interrupted")
		}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode != http.StatusOK {
		return errors.Newf("API request failed with status %d: %s", resp.StatusCode, string(data))
	}

	if err := json.Unmarshal(data, respBody); err != nil {
		return errors.Wrap(err, "failed to unmarshal response")
	}
	return nil
}

// isRetryableError checks if an error is worth retrying (network-related)
func (c *Client) isRetryableError(err error) bool {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return true
	}

	if opErr, ok := err.(*net.OpError); ok {
		if errno, ok := opErr.Err.(syscall.Errno); ok {
			switch errno {
			case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ETIMEDOUT:
				return true
			}
		}
	}

	errStr := strings.ToLower(err.Error())
	networkErrors := []string{
		"connection reset by peer",
		"connection refused",
		"timeout",
		"temporary failure",
		"network is unreachable",
		"i/o timeout",
		"status 429",
		"status 503",
	}
	for _, netErr := range networkErrors {
		if strings.Contains(errStr, netErr) {
			return true
		}
	}

	return false
}

// SetHTTPClient overrides the HTTP client. Only for tests; production code
// should keep the default SSRF-safer client.
func (c *Client) SetHTTPClient(client *httpclient.SaferClient) {
	c.httpClient = client
}
