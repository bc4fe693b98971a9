package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig_ModelsPerTask(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.TaskModel(TaskSmartGoal))
	assert.Equal(t, "gpt-4o-2024-08-06", cfg.TaskModel(TaskPlan))
	assert.Equal(t, 0, cfg.MaxRetries)
}

func TestDefaultConfigFor_OllamaUsesGlobalModel(t *testing.T) {
	cfg := DefaultConfigFor(ProviderOllama)
	assert.Equal(t, "http://localhost:11434", cfg.Endpoint)
	assert.Equal(t, "llama3.2", cfg.TaskModel(TaskSmartGoal))
	assert.Equal(t, "llama3.2", cfg.TaskModel(TaskPlan))
}

func TestConfig_TaskTimeoutFallsBackToGlobal(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 30000, cfg.TaskTimeout(TaskSmartGoal))

	cfg.TimeoutMs = 9000
	assert.Equal(t, 9000, cfg.TaskTimeout(TaskType("other")))

	cfg.Tasks[TaskPlan] = TaskConfig{}
	assert.Equal(t, 9000, cfg.TaskTimeout(TaskPlan))
}

func TestConfig_TaskModelFallsBackToGlobal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model = "gpt-4.1"
	assert.Equal(t, "gpt-4.1", cfg.TaskModel(TaskType("other")))
}
