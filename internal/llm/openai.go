package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// openAIProvider talks to the chat completions API. Structured completions
// use response_format json_schema.
type openAIProvider struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

func newOpenAIProvider(cfg Config) *openAIProvider {
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = "https://api.openai.com"
	}
	return &openAIProvider{
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		http:     newHTTPClient(),
	}
}

// newHTTPClient bounds connection setup; request duration is bounded by ctx.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: 5 * time.Second,
			}).DialContext,
		},
	}
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []Message             `json:"messages"`
	Temperature    *float64              `json:"temperature,omitempty"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *openAIJSONSchema `json:"json_schema,omitempty"`
}

type openAIJSONSchema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
			Refusal *string `json:"refusal"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *openAIProvider) name() string { return string(ProviderOpenAI) }

func (p *openAIProvider) complete(ctx context.Context, call providerCall) (*CompletionResponse, error) {
	temp := call.Temperature
	body := openAIRequest{
		Model:       call.Model,
		Messages:    call.Messages,
		Temperature: &temp,
		MaxTokens:   call.MaxTokens,
	}
	if call.Schema != nil {
		body.ResponseFormat = &openAIResponseFormat{
			Type: "json_schema",
			JSONSchema: &openAIJSONSchema{
				Name:   call.Schema.Name,
				Schema: call.Schema.Schema,
				Strict: call.Schema.Strict,
			},
		}
	}

	var resp openAIResponse
	if err := p.post(ctx, "/v1/chat/completions", body, &resp); err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrEmptyResponse)
	}
	msg := resp.Choices[0].Message
	if msg.Content == nil || strings.TrimSpace(*msg.Content) == "" {
		if msg.Refusal != nil && *msg.Refusal != "" {
			return nil, fmt.Errorf("%w: model refused: %s", ErrEmptyResponse, *msg.Refusal)
		}
		return nil, fmt.Errorf("%w: empty content", ErrEmptyResponse)
	}
	return &CompletionResponse{Content: *msg.Content, Model: resp.Model}, nil
}

func (p *openAIProvider) post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpResp, err := p.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("openai returned status %d: %s", httpResp.StatusCode, truncate(string(respBody), 512))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (p *openAIProvider) available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/v1/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	resp, err := p.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
