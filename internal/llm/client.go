// Package llm talks to a remote Ollama-compatible generation server.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/NEMYSESx/sift/internal/config"
)

// Client sends prompts to the generation endpoint. Requests are rate
// limited so a burst of analyze calls cannot pile onto a single-GPU model
// server. Built once at startup, reused for all requests.
type Client struct {
	url     string
	model   string
	client  *http.Client
	limiter *rate.Limiter
}

func NewClient(cfg config.LLMConfig) *Client {
	return &Client{
		url:   cfg.URL,
		model: cfg.Model,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitRPS),
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate returns the model's text for the prompt. By the surrounding
// layer's convention a transport failure produces a sentinel "[LLM ERROR]"
// string rather than an error: analysis is a best-effort addition to the
// response and must not fail the request.
func (c *Client) Generate(ctx context.Context, prompt string) string {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Sprintf("[LLM ERROR] Failed to contact LLM server: %v", err)
	}

	jsonData, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return fmt.Sprintf("[LLM ERROR] Failed to contact LLM server: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Sprintf("[LLM ERROR] Failed to contact LLM server: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Sprintf("[LLM ERROR] Failed to contact LLM server: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Sprintf("[LLM ERROR] Failed to contact LLM server: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("[LLM ERROR] Failed to contact LLM server: status %d: %s", resp.StatusCode, string(body))
	}

	var response generateResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return fmt.Sprintf("[LLM ERROR] Failed to contact LLM server: %v", err)
	}

	return strings.TrimSpace(response.Response)
}
