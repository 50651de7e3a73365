package embedders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/NEMYSESx/sift/internal/config"
)

// Embedder maps a batch of texts to fixed-length float vectors. Implemented
// by the Ollama client below; the pipeline calls it once per index and once
// per retrieve.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// OllamaEmbedder calls the Ollama /api/embed endpoint. The handle is built
// once at startup and reused read-only by every request.
type OllamaEmbedder struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewOllamaEmbedder(cfg config.EmbeddingConfig) *OllamaEmbedder {
	return &OllamaEmbedder{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed sends the whole batch in a single call.
func (e *OllamaEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	jsonData, err := json.Marshal(embedRequest{Model: e.model, Input: inputs})
	if err != nil {
		return nil, fmt.Errorf("error marshaling embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending embed request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading embed response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var response embedResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("error unmarshaling embed response: %w", err)
	}

	if len(response.Embeddings) != len(inputs) {
		return nil, fmt.Errorf("embed response has %d vectors for %d inputs", len(response.Embeddings), len(inputs))
	}
	for i, vec := range response.Embeddings {
		if len(vec) == 0 {
			return nil, fmt.Errorf("empty embedding returned for input %d", i)
		}
	}

	return response.Embeddings, nil
}
