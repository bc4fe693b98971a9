package llm

// TaskType identifies the kind of LLM task being performed.
type TaskType string

const (
	TaskSmartGoal TaskType = "smart_goal"
	TaskPlan      TaskType = "plan"
)

// Provider names a model backend.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderOllama    Provider = "ollama"
	ProviderAnthropic Provider = "anthropic"
)

// TaskConfig holds per-task LLM parameters.
type TaskConfig struct {
	Model       string // overrides global if set
	Temperature float64
	MaxTokens   int
	TimeoutMs   int // overrides global if > 0
}

// Config holds all configuration for the LLM subsystem.
type Config struct {
	Provider   Provider
	Endpoint   string
	APIKey     string
	Model      string
	LogCalls   bool
	TimeoutMs  int
	MaxRetries int
	Tasks      map[TaskType]TaskConfig
}

// DefaultConfig returns the OpenAI defaults: a small model for the SMART goal
// and a structured-output model for the plan. No internal retry.
func DefaultConfig() Config {
	return DefaultConfigFor(ProviderOpenAI)
}

// DefaultConfigFor returns defaults suited to the given provider.
func DefaultConfigFor(p Provider) Config {
	cfg := Config{
		Provider:   p,
		TimeoutMs:  60000,
		MaxRetries: 0,
		Tasks: map[TaskType]TaskConfig{
			TaskSmartGoal: {Temperature: 0.7, MaxTokens: 512, TimeoutMs: 30000},
			TaskPlan:      {Temperature: 0.3, MaxTokens: 8192, TimeoutMs: 120000},
		},
	}
	switch p {
	case ProviderOllama:
		cfg.Endpoint = "http://localhost:11434"
		cfg.Model = "llama3.2"
	case ProviderAnthropic:
		cfg.Model = "claude-sonnet-4-20250514"
	default:
		cfg.Endpoint = "https://api.openai.com"
		cfg.Model = "gpt-4o-mini"
		cfg.setTaskModel(TaskSmartGoal, "gpt-4o-mini")
		cfg.setTaskModel(TaskPlan, "gpt-4o-2024-08-06")
	}
	return cfg
}

// TaskTimeout returns the effective timeout for a given task type.
// Uses the task-specific timeout if set, otherwise the global timeout.
func (c Config) TaskTimeout(task TaskType) int {
	if tc, ok := c.Tasks[task]; ok && tc.TimeoutMs > 0 {
		return tc.TimeoutMs
	}
	return c.TimeoutMs
}

// TaskModel returns the model used for a task.
func (c Config) TaskModel(task TaskType) string {
	if tc, ok := c.Tasks[task]; ok && tc.Model != "" {
		return tc.Model
	}
	return c.Model
}

func (c *Config) setTaskModel(task TaskType, model string) {
	tc := c.Tasks[task]
	tc.Model = model
	c.Tasks[task] = tc
}
