package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicProvider uses the Messages API. The API has no schema-constrained
// mode here, so the schema is appended to the system prompt and the reply is
// parsed by the caller like any other JSON text.
type anthropicProvider struct {
	client anthropic.Client
	apiKey string
}

func newAnthropicProvider(cfg Config) *anthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	return &anthropicProvider{
		client: anthropic.NewClient(opts...),
		apiKey: cfg.APIKey,
	}
}

func (p *anthropicProvider) name() string { return string(ProviderAnthropic) }

func (p *anthropicProvider) complete(ctx context.Context, call providerCall) (*CompletionResponse, error) {
	var system []string
	var messages []anthropic.MessageParam
	for _, m := range call.Messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if call.Schema != nil {
		schema, err := json.Marshal(call.Schema.Schema)
		if err != nil {
			return nil, fmt.Errorf("marshaling schema: %w", err)
		}
		system = append(system, "Respond with a single JSON object and nothing else. "+
			"It must satisfy this JSON Schema:\n"+string(schema))
	}

	maxTokens := call.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(call.Model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic API error: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(out.String()) == "" {
		return nil, fmt.Errorf("%w: no text blocks", ErrEmptyResponse)
	}
	return &CompletionResponse{Content: out.String(), Model: string(resp.Model)}, nil
}

func (p *anthropicProvider) available(context.Context) bool {
	return p.apiKey != ""
}
