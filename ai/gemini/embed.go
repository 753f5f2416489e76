package gemini

import (
	"context"
	"fmt"

	"github.com/SnehaChouksey/Acadlyst/errors"
)

// Embedder computes a vector embedding for a piece of text.
// Abstracted so the indexing and chat paths can be tested without the API.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type embedContentRequest struct {
	Model   string  `json:"model"`
	Content content `json:"content"`
}

type embedContentResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// Embed computes the embedding vector for text using the configured
// embedding model.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.apiKey == "" {
		return nil, errors.New("Gemini API key not configured")
	}
	if text == "" {
		return nil, errors.New("cannot embed empty text")
	}

	model := c.config.EmbeddingModel
	url := fmt.Sprintf("%s/v1beta/models/%s:embedContent", c.baseURL, model)

	req := embedContentRequest{
		Model:   "models/" + model,
		Content: content{Parts: []part{{Text: text}}},
	}

	var resp embedContentResponse
	if err := c.post(ctx, url, req, &resp); err != nil {
		return nil, errors.Wrap(err, "embedding request failed")
	}

	if len(resp.Embedding.Values) == 0 {
		return nil, errors.New("empty embedding in response")
	}

	return resp.Embedding.Values, nil
}
