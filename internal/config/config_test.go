package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alexanderramin/smartplan/internal/db"
	"github.com/alexanderramin/smartplan/internal/llm"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "SMARTPLAN_LLM_PROVIDER", "SMARTPLAN_LLM_API_KEY"} {
		t.Setenv(k, "")
	}
}

func load(t *testing.T, home string) *Config {
	t.Helper()
	v := New(home)
	require.NoError(t, ReadFile(v, ""))
	cfg, err := FromViper(v)
	require.NoError(t, err)
	return cfg
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	cfg := load(t, home)

	assert.Equal(t, llm.ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.TaskModel(llm.TaskSmartGoal))
	assert.Equal(t, "gpt-4o-2024-08-06", cfg.LLM.TaskModel(llm.TaskPlan))
	assert.Equal(t, 120000, cfg.LLM.TaskTimeout(llm.TaskPlan))
	assert.Equal(t, 0, cfg.LLM.MaxRetries)
	assert.Equal(t, db.DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, filepath.Join(home, ".smartplan", "smartplan.db"), cfg.Store.DSN)
	assert.Equal(t, filepath.Join(home, ".smartplan", "local"), cfg.Local.Dir)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 24*time.Hour, cfg.Server.TokenTTL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.File)
}

func TestConfigFile(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	dir := filepath.Join(home, ".smartplan")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	yaml := `
llm:
  provider: ollama
  tasks:
    plan:
      temperature: 0.1
      timeout_ms: 300000
store:
  driver: postgres
  dsn: postgres://localhost/smartplan?sslmode=disable
server:
  allowed_origins: [https://a.example, https://b.example]
log:
  format: json
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg := load(t, home)
	assert.Equal(t, llm.ProviderOllama, cfg.LLM.Provider)
	assert.Equal(t, "http://localhost:11434", cfg.LLM.Endpoint)
	assert.Equal(t, "llama3.2", cfg.LLM.TaskModel(llm.TaskPlan))
	assert.Equal(t, 0.1, cfg.LLM.Tasks[llm.TaskPlan].Temperature)
	assert.Equal(t, 300000, cfg.LLM.TaskTimeout(llm.TaskPlan))
	assert.Equal(t, db.DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), cfg.File)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SMARTPLAN_LLM_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("SMARTPLAN_LLM_TASKS_PLAN_MODEL", "claude-opus")
	t.Setenv("SMARTPLAN_SERVER_ALLOWED_ORIGINS", "https://x.example, https://y.example")
	t.Setenv("SMARTPLAN_LLM_MAX_RETRIES", "2")

	cfg := load(t, t.TempDir())
	assert.Equal(t, llm.ProviderAnthropic, cfg.LLM.Provider)
	assert.Equal(t, "sk-ant", cfg.LLM.APIKey)
	assert.Equal(t, "claude-opus", cfg.LLM.TaskModel(llm.TaskPlan))
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.LLM.TaskModel(llm.TaskSmartGoal))
	assert.Equal(t, []string{"https://x.example", "https://y.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 2, cfg.LLM.MaxRetries)
}

func TestExplicitKeyWinsOverVendorVariable(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "vendor")
	t.Setenv("SMARTPLAN_LLM_API_KEY", "explicit")
	assert.Equal(t, "explicit", load(t, t.TempDir()).LLM.APIKey)
}

func TestFlagsOverrideEverything(t *testing.T) {
	clearEnv(t)
	t.Setenv("SMARTPLAN_LLM_PROVIDER", "anthropic")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--provider", "ollama", "--addr", ":9999", "--log-json"}))

	v := New(t.TempDir())
	require.NoError(t, BindFlags(v, fs))
	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, llm.ProviderOllama, cfg.LLM.Provider)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level, "unset flags keep defaults")
}

func TestInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("SMARTPLAN_LLM_PROVIDER", "mystery")
	_, err := FromViper(New(t.TempDir()))
	assert.ErrorContains(t, err, "unknown llm provider")

	t.Setenv("SMARTPLAN_LLM_PROVIDER", "openai")
	t.Setenv("SMARTPLAN_STORE_DRIVER", "mysql")
	_, err = FromViper(New(t.TempDir()))
	assert.ErrorContains(t, err, "unknown store driver")
}

func TestReadFile_ExplicitMissingFile(t *testing.T) {
	v := New(t.TempDir())
	assert.Error(t, ReadFile(v, filepath.Join(t.TempDir(), "nope.yaml")))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = NewLogger(LogConfig{Level: "loud"}, &buf)
	assert.Error(t, err)
	_, err = NewLogger(LogConfig{Level: "info", Format: "xml"}, &buf)
	assert.Error(t, err)
}
