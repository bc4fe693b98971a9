// Package config loads smartplan settings from defaults, an optional YAML
// file, SMARTPLAN_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alexanderramin/smartplan/internal/db"
	"github.com/alexanderramin/smartplan/internal/llm"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "SMARTPLAN"

type StoreConfig struct {
	Driver    db.Driver
	DSN       string
	CacheSize int
}

type LocalConfig struct {
	Dir string
}

type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	AuthSecret     string
	TokenTTL       time.Duration
}

type LogConfig struct {
	Level    string
	Format   string // text or json
	LLMCalls bool
}

// Config is the complete application configuration.
type Config struct {
	LLM    llm.Config
	Store  StoreConfig
	Local  LocalConfig
	Server ServerConfig
	Log    LogConfig

	// File is the config file that was read, empty when none was found.
	File string
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"provider":  "llm.provider",
	"model":     "llm.model",
	"endpoint":  "llm.endpoint",
	"db":        "store.dsn",
	"db-driver": "store.driver",
	"local-dir": "local.dir",
	"addr":      "server.addr",
	"log-level": "log.level",
	"log-json":  "log.json",
	"log-calls": "log.llm_calls",
}

var tasks = []llm.TaskType{llm.TaskSmartGoal, llm.TaskPlan}

// New returns a viper instance with defaults and environment binding set up.
func New(home string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	base := llm.DefaultConfig()
	v.SetDefault("llm.provider", string(base.Provider))
	v.SetDefault("llm.endpoint", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.timeout_ms", base.TimeoutMs)
	v.SetDefault("llm.max_retries", base.MaxRetries)
	for _, task := range tasks {
		tc := base.Tasks[task]
		prefix := "llm.tasks." + string(task) + "."
		v.SetDefault(prefix+"model", "")
		v.SetDefault(prefix+"temperature", tc.Temperature)
		v.SetDefault(prefix+"max_tokens", tc.MaxTokens)
		v.SetDefault(prefix+"timeout_ms", tc.TimeoutMs)
	}

	dataDir := filepath.Join(home, ".smartplan")
	v.SetDefault("store.driver", string(db.DriverSQLite))
	v.SetDefault("store.dsn", filepath.Join(dataDir, "smartplan.db"))
	v.SetDefault("store.cache_size", 256)
	v.SetDefault("local.dir", filepath.Join(dataDir, "local"))
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.auth_secret", "")
	v.SetDefault("server.token_ttl", "24h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.json", false)
	v.SetDefault("log.llm_calls", false)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dataDir)
	v.AddConfigPath(".")
	return v
}

// BindFlags connects any known flags present in fs to their config keys.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	if fs == nil {
		return nil
	}
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag --%s: %w", name, err)
		}
	}
	return nil
}

// RegisterFlags adds the global configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("provider", "", "LLM provider (openai, ollama, anthropic)")
	fs.String("model", "", "default LLM model")
	fs.String("endpoint", "", "LLM API base URL")
	fs.String("db", "", "document store DSN or SQLite path")
	fs.String("db-driver", "", "document store driver (sqlite, postgres)")
	fs.String("local-dir", "", "directory for the local last-goal cache")
	fs.String("addr", "", "HTTP listen address")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.Bool("log-json", false, "write logs as JSON")
	fs.Bool("log-calls", false, "log every LLM call")
}

// ReadFile reads file, or searches the default locations when file is empty.
// A missing file in the default locations is not an error.
func ReadFile(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", file, err)
		}
		return nil
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

// Load builds a Config from the default sources. file may be empty.
func Load(file string, fs *pflag.FlagSet) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("finding home directory: %w", err)
	}
	v := New(home)
	if err := BindFlags(v, fs); err != nil {
		return nil, err
	}
	if err := ReadFile(v, file); err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper decodes the settings held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	provider := llm.Provider(strings.ToLower(v.GetString("llm.provider")))
	switch provider {
	case llm.ProviderOpenAI, llm.ProviderOllama, llm.ProviderAnthropic:
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}

	lc := llm.DefaultConfigFor(provider)
	if s := v.GetString("llm.endpoint"); s != "" {
		lc.Endpoint = s
	}
	if s := v.GetString("llm.model"); s != "" {
		lc.Model = s
	}
	lc.APIKey = v.GetString("llm.api_key")
	if lc.APIKey == "" {
		lc.APIKey = providerKeyFromEnv(provider)
	}
	lc.TimeoutMs = v.GetInt("llm.timeout_ms")
	lc.MaxRetries = v.GetInt("llm.max_retries")
	if lc.MaxRetries < 0 {
		return nil, fmt.Errorf("llm.max_retries must not be negative")
	}
	for _, task := range tasks {
		prefix := "llm.tasks." + string(task) + "."
		tc := lc.Tasks[task]
		if s := v.GetString(prefix + "model"); s != "" {
			tc.Model = s
		}
		tc.Temperature = v.GetFloat64(prefix + "temperature")
		tc.MaxTokens = v.GetInt(prefix + "max_tokens")
		tc.TimeoutMs = v.GetInt(prefix + "timeout_ms")
		lc.Tasks[task] = tc
	}

	driver := db.Driver(strings.ToLower(v.GetString("store.driver")))
	if driver != db.DriverSQLite && driver != db.DriverPostgres {
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}

	ttl, err := time.ParseDuration(v.GetString("server.token_ttl"))
	if err != nil {
		return nil, fmt.Errorf("server.token_ttl: %w", err)
	}

	format := strings.ToLower(v.GetString("log.format"))
	if v.GetBool("log.json") {
		format = "json"
	}
	logCalls := v.GetBool("log.llm_calls")
	lc.LogCalls = logCalls

	return &Config{
		LLM: lc,
		Store: StoreConfig{
			Driver:    driver,
			DSN:       v.GetString("store.dsn"),
			CacheSize: v.GetInt("store.cache_size"),
		},
		Local: LocalConfig{Dir: v.GetString("local.dir")},
		Server: ServerConfig{
			Addr:           v.GetString("server.addr"),
			AllowedOrigins: splitList(v.GetStringSlice("server.allowed_origins")),
			AuthSecret:     v.GetString("server.auth_secret"),
			TokenTTL:       ttl,
		},
		Log: LogConfig{
			Level:    v.GetString("log.level"),
			Format:   format,
			LLMCalls: logCalls,
		},
		File: v.ConfigFileUsed(),
	}, nil
}

// providerKeyFromEnv reads the vendor's conventional API key variable.
func providerKeyFromEnv(p llm.Provider) string {
	switch p {
	case llm.ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case llm.ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	default:
		return ""
	}
}

// splitList accepts both YAML lists and comma-separated environment values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
