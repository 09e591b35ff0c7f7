// Package config loads qg.yaml, .env and environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/NCDesigner/QG-Estrat-gico/internal/llm"
)

// Config is the whole qg configuration
type Config struct {
	LLM     LLMConfig     `yaml:"llm"`
	Storage StorageConfig `yaml:"storage"`
	Council CouncilConfig `yaml:"council"`
	Server  ServerConfig  `yaml:"server"`
	User    UserConfig    `yaml:"user"`
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the Gemini client
type LLMConfig struct {
	APIKey            string        `yaml:"api_key,omitempty"`
	Model             string        `yaml:"model"`
	EmbeddingModel    string        `yaml:"embedding_model"`
	Temperature       float32       `yaml:"temperature"`
	MaxAttempts       int           `yaml:"max_attempts"`
	InitialDelay      time.Duration `yaml:"initial_delay"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
}

// StorageConfig selects the persistence backend
type StorageConfig struct {
	Backend string `yaml:"backend"` // sqlite, pebble or memory
	Path    string `yaml:"path,omitempty"`
}

// CouncilConfig tunes the orchestrator
type CouncilConfig struct {
	Level  string `yaml:"level"`
	Pacing bool   `yaml:"pacing"`
}

// ServerConfig configures `qg serve`
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// UserConfig describes who the advisors talk to
type UserConfig struct {
	Name          string   `yaml:"name"`
	GreetingNames []string `yaml:"greeting_names"`
}

// LoggingConfig configures zap
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	lc := llm.DefaultConfig()
	return &Config{
		LLM: LLMConfig{
			Model:          lc.Model,
			EmbeddingModel: "gemini-embedding-001",
			Temperature:    lc.Temperature,
			MaxAttempts:    lc.MaxAttempts,
			InitialDelay:   lc.InitialDelay,
		},
		Storage: StorageConfig{Backend: "sqlite"},
		Council: CouncilConfig{Level: string(llm.LevelDireto), Pacing: true},
		Server:  ServerConfig{Listen: "127.0.0.1:8787"},
		User: UserConfig{
			Name:          lc.UserName,
			GreetingNames: lc.GreetingNames,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path over the defaults, then applies .env and environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// .env never overrides variables already set in the environment
	_ = godotenv.Load(".env")
	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML. The API key is left out.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	out := *c
	out.LLM.APIKey = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if m := os.Getenv("QG_MODEL"); m != "" {
		c.LLM.Model = m
	}
	if rpm := os.Getenv("QG_RPM"); rpm != "" {
		if n, err := strconv.Atoi(rpm); err == nil {
			c.LLM.RequestsPerMinute = n
		}
	}
	if p := os.Getenv("QG_DB"); p != "" {
		c.Storage.Path = p
	}
	if b := os.Getenv("QG_BACKEND"); b != "" {
		c.Storage.Backend = strings.ToLower(b)
	}
	if l := os.Getenv("QG_LISTEN"); l != "" {
		c.Server.Listen = l
	}
}

// ValidBackends lists the storage backends qg can open
var ValidBackends = []string{"sqlite", "pebble", "memory"}

// Validate checks settings every command depends on
func (c *Config) Validate() error {
	ok := false
	for _, b := range ValidBackends {
		if c.Storage.Backend == b {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("invalid storage backend: %s (valid: %v)", c.Storage.Backend, ValidBackends)
	}
	if _, err := llm.ParseLevel(c.Council.Level); err != nil {
		return err
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2, got %.2f", c.LLM.Temperature)
	}
	if c.LLM.RequestsPerMinute < 0 {
		return fmt.Errorf("llm.requests_per_minute cannot be negative")
	}
	return nil
}

// RequireAPIKey fails unless a Gemini key is configured. Only commands that
// generate replies call it.
func (c *Config) RequireAPIKey() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("Gemini API key not configured (set GEMINI_API_KEY or API_KEY, or llm.api_key in qg.yaml)")
	}
	return nil
}

// ClientConfig is the llm.Client view of the configuration
func (c *Config) ClientConfig() llm.Config {
	return llm.Config{
		Model:             c.LLM.Model,
		Temperature:       c.LLM.Temperature,
		MaxAttempts:       c.LLM.MaxAttempts,
		InitialDelay:      c.LLM.InitialDelay,
		RequestsPerMinute: c.LLM.RequestsPerMinute,
		UserName:          c.User.Name,
		GreetingNames:     c.User.GreetingNames,
	}
}

// Level is the configured default intensity
func (c *Config) Level() llm.Level {
	l, err := llm.ParseLevel(c.Council.Level)
	if err != nil {
		return llm.LevelDireto
	}
	return l
}

// DefaultPath finds qg.yaml: ./qg.yaml when present, else the user config dir
func DefaultPath() string {
	if _, err := os.Stat("qg.yaml"); err == nil {
		return "qg.yaml"
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "qg.yaml"
	}
	return filepath.Join(dir, "qg", "qg.yaml")
}
