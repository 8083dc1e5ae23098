package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bhasha/internal/config"
	"bhasha/internal/services"
)

const defaultHTTPTimeout = 60 * time.Second

// HTTPClient talks to an OpenAI-compatible chat completion endpoint and
// streams the raw response body back to the caller.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewHTTPClient builds a client from the assistant config section. Returns
// nil when the assistant is disabled, which makes the service fall back to
// the stub.
func NewHTTPClient(cfg *config.Config) *HTTPClient {
	if cfg == nil || !cfg.Assistant.Enabled {
		return nil
	}
	timeout := defaultHTTPTimeout
	if cfg.Assistant.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.Assistant.TimeoutSeconds) * time.Second
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(cfg.Assistant.BaseURL, "/"),
		apiKey:     cfg.Assistant.APIKey,
		model:      cfg.Assistant.Model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// Respond posts the conversation and returns the streaming body.
func (c *HTTPClient) Respond(ctx context.Context, languageCode string, messages []Message) (io.ReadCloser, error) {
	system := Message{
		Role: "system",
		Content: fmt.Sprintf(
			"You are a helpful language practice partner. Respond in the language with code %q unless asked otherwise.",
			languageCode),
	}
	payload, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: append([]Message{system}, messages...),
		Stream:   true,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrInvalidInput, "assistant", "encode request", "", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, services.Wrap(services.ErrTransferFailure, "assistant", "build request", "", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransferFailure, "assistant", "request", "", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		_ = resp.Body.Close()
		return nil, services.Wrap(services.ErrTransferFailure, "assistant", "request",
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	return resp.Body, nil
}
