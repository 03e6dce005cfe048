package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultRemoteDimension matches text-embedding-3-small and the common
// OpenAI-compatible local servers.
const DefaultRemoteDimension = 1536

// RemoteConfig configures the remote embedding backend. Any server
// speaking the OpenAI-compatible /v1/embeddings format works (OpenAI,
// Ollama, OpenRouter, custom).
type RemoteConfig struct {
	Endpoint  string
	Model     string
	APIKey    string
	Dimension int
	Timeout   time.Duration
}

// Remote is the highest-quality candidate: an HTTP embedding provider.
type Remote struct {
	config     RemoteConfig
	httpClient *http.Client
}

// NewRemote creates a remote backend. Endpoint and model are required;
// the API key may be empty for local servers such as Ollama.
func NewRemote(cfg RemoteConfig) (*Remote, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("remote backend: endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("remote backend: model is required")
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultRemoteDimension
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Remote{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

func (r *Remote) Name() string {
	return NameRemote
}

func (r *Remote) Dimension() int {
	return r.config.Dimension
}

// Generate calls the embeddings endpoint for one text. Rate limiting
// and server-side errors are wrapped with ErrTransient so the generator
// retries once before falling through the chain.
func (r *Remote) Generate(ctx context.Context, text string) ([]float32, error) {
	reqBody := map[string]interface{}{
		"input": []string{text},
		"model": r.config.Model,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if r.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.config.APIKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: api call: %v", ErrTransient, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: api error %d: %s", ErrTransient, resp.StatusCode, string(bodyBytes))
		}
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(apiResp.Data) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	return apiResp.Data[0].Embedding, nil
}
