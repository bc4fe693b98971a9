package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn sent to the model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ResponseSchema constrains a completion to JSON matching Schema.
type ResponseSchema struct {
	Name   string
	Schema map[string]any
	Strict bool
}

// CompletionRequest holds the parameters for one completion call. A non-nil
// Schema turns it into a structured completion whose Content is JSON text.
type CompletionRequest struct {
	Task        TaskType
	Model       string // empty uses the task model
	Messages    []Message
	Schema      *ResponseSchema
	Temperature *float64 // nil uses task default
	MaxTokens   *int     // nil uses task default
}

// CompletionResponse holds the first choice of a completion call.
type CompletionResponse struct {
	Content   string
	Model     string
	LatencyMs int64
}

// Client provides access to a language model. Implementations are safe for
// concurrent use; one client is shared by every request.
type Client interface {
	// Complete sends the messages and returns the first choice.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Available checks whether the provider is reachable and configured.
	Available(ctx context.Context) bool
}

// Chat is a convenience for a system + user message pair.
func Chat(system, user string) []Message {
	msgs := make([]Message, 0, 2)
	if system != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: system})
	}
	return append(msgs, Message{Role: RoleUser, Content: user})
}

// providerCall is a fully resolved request handed to a provider.
type providerCall struct {
	Model       string
	Messages    []Message
	Schema      *ResponseSchema
	Temperature float64
	MaxTokens   int
}

// provider performs a single attempt against one backend.
type provider interface {
	name() string
	complete(ctx context.Context, call providerCall) (*CompletionResponse, error)
	available(ctx context.Context) bool
}

// NewClient builds the client for cfg.Provider wrapped in the shared
// timeout, retry and observability policy.
func NewClient(cfg Config, observer Observer) (Client, error) {
	var p provider
	switch cfg.Provider {
	case ProviderOpenAI, "":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: openai api key is not set", ErrNotConfigured)
		}
		p = newOpenAIProvider(cfg)
	case ProviderOllama:
		p = newOllamaProvider(cfg)
	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: anthropic api key is not set", ErrNotConfigured)
		}
		p = newAnthropicProvider(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrNotConfigured, cfg.Provider)
	}
	return newPolicyClient(cfg, p, observer), nil
}

// policyClient applies per-task parameters, per-attempt timeouts, bounded
// retries and call reporting around a provider.
type policyClient struct {
	cfg      Config
	provider provider
	observer Observer
}

func newPolicyClient(cfg Config, p provider, observer Observer) *policyClient {
	if observer == nil {
		observer = NoopObserver{}
	}
	return &policyClient{cfg: cfg, provider: p, observer: observer}
}

func (c *policyClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	taskCfg := c.cfg.Tasks[req.Task]
	call := providerCall{
		Model:       c.cfg.TaskModel(req.Task),
		Messages:    req.Messages,
		Schema:      req.Schema,
		Temperature: taskCfg.Temperature,
		MaxTokens:   taskCfg.MaxTokens,
	}
	if req.Model != "" {
		call.Model = req.Model
	}
	if req.Temperature != nil {
		call.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		call.MaxTokens = *req.MaxTokens
	}

	timeout := time.Duration(c.cfg.TaskTimeout(req.Task)) * time.Millisecond

	var lastErr error
	timedOut := false
	attempts := 1 + c.cfg.MaxRetries

	for i := 0; i < attempts; i++ {
		attemptCtx, cancel := withOptionalTimeout(ctx, timeout)
		resp, err := c.provider.complete(attemptCtx, call)
		timedOut = errors.Is(attemptCtx.Err(), context.DeadlineExceeded)
		cancel()

		if err == nil {
			latency := time.Since(start).Milliseconds()
			c.report(req.Task, call.Model, latency, nil)
			resp.LatencyMs = latency
			if resp.Model == "" {
				resp.Model = call.Model
			}
			return resp, nil
		}
		lastErr = err

		// The caller gave up; no point in another attempt.
		if ctx.Err() != nil {
			break
		}
	}

	var err error
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		err = ctx.Err()
	case ctx.Err() != nil || timedOut:
		err = ErrTimeout
	case isConnectionError(lastErr):
		err = fmt.Errorf("%w: %s", ErrUnavailable, c.provider.name())
	case errors.Is(lastErr, ErrEmptyResponse), errors.Is(lastErr, ErrNotConfigured):
		err = lastErr
	default:
		err = fmt.Errorf("%w: %v", ErrRetryExhausted, lastErr)
	}
	c.report(req.Task, call.Model, time.Since(start).Milliseconds(), err)
	return nil, err
}

func (c *policyClient) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.provider.available(ctx)
}

func (c *policyClient) report(task TaskType, model string, latencyMs int64, err error) {
	c.observer.OnCallComplete(LLMCallEvent{
		Task:      task,
		Provider:  c.provider.name(),
		Model:     model,
		LatencyMs: latencyMs,
		Success:   err == nil,
		ErrorCode: errorCode(err),
	})
}

// withOptionalTimeout applies d when positive; zero leaves ctx unbounded.
func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var netErr *net.OpError
	return errors.As(err, &netErr)
}

func errorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "TIMEOUT"
	case errors.Is(err, ErrUnavailable):
		return "UNAVAILABLE"
	case errors.Is(err, ErrEmptyResponse):
		return "EMPTY_RESPONSE"
	case errors.Is(err, ErrInvalidOutput):
		return "INVALID_OUTPUT"
	case errors.Is(err, ErrNotConfigured):
		return "NOT_CONFIGURED"
	case errors.Is(err, context.Canceled):
		return "CANCELED"
	default:
		return "UNKNOWN"
	}
}

// unconfiguredClient stands in when NewClient fails so commands that never
// call the model keep working.
type unconfiguredClient struct {
	reason error
}

// NewUnconfigured returns a Client that fails every call with reason.
func NewUnconfigured(reason error) Client {
	if reason == nil {
		reason = ErrNotConfigured
	}
	return unconfiguredClient{reason: reason}
}

func (c unconfiguredClient) Complete(context.Context, CompletionRequest) (*CompletionResponse, error) {
	return nil, c.reason
}

func (c unconfiguredClient) Available(context.Context) bool { return false }
