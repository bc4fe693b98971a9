package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ollamaProvider implements provider using the Ollama chat API. Structured
// completions pass the schema through the format field.
type ollamaProvider struct {
	endpoint string
	http     *http.Client
}

func newOllamaProvider(cfg Config) *ollamaProvider {
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	return &ollamaProvider{endpoint: endpoint, http: newHTTPClient()}
}

// ollamaRequest is the JSON body sent to POST /api/chat.
type ollamaRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   map[string]any `json:"format,omitempty"`
	Options  ollamaOptions  `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// ollamaResponse is the JSON body returned by POST /api/chat (non-streaming).
type ollamaResponse struct {
	Model   string  `json:"model"`
	Message Message `json:"message"`
}

func (p *ollamaProvider) name() string { return string(ProviderOllama) }

func (p *ollamaProvider) complete(ctx context.Context, call providerCall) (*CompletionResponse, error) {
	body := ollamaRequest{
		Model:    call.Model,
		Messages: call.Messages,
		Stream:   false,
		Options: ollamaOptions{
			Temperature: call.Temperature,
			NumPredict:  call.MaxTokens,
		},
	}
	if call.Schema != nil {
		body.Format = call.Schema.Schema
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d: %s", httpResp.StatusCode, truncate(string(respBody), 512))
	}

	var resp ollamaResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if strings.TrimSpace(resp.Message.Content) == "" {
		return nil, fmt.Errorf("%w: empty content", ErrEmptyResponse)
	}
	return &CompletionResponse{Content: resp.Message.Content, Model: resp.Model}, nil
}

func (p *ollamaProvider) available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
