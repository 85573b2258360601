// Copyright (c) Microsoft. All rights reserved.

// Package config loads process configuration for agentloop hosts.
//
// Values are layered: built-in defaults, then an optional YAML file named by
// AGENT_CONFIG, then environment variables. A .env file in the working
// directory is loaded into the environment first and never overrides
// variables that are already set.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	al "github.com/microsoft/agentloop/agentloop"
	"github.com/microsoft/agentloop/openai"
)

// ErrInvalidConfig is returned when configuration cannot be loaded or fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Provider selects the chat backend.
type Provider string

const (
	ProviderAzure     Provider = "azure"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Defaults.
const (
	DefaultDeployment = "gpt-4.1"
	DefaultAddr       = ":8080"
)

// DefaultInstructions is the system prompt of the market assistant samples.
const DefaultInstructions = `You are an assistant specialized in the Brazilian and international financial markets.

Help investors with information about stocks, exchange rates and market indices.
Use the available tools for prices, rates and summaries instead of guessing.
State that the data is illustrative and not real time, and add the disclaimer:
"This information is for educational purposes only and is not investment advice."
Be objective and direct.`

// Config is the validated process configuration.
type Config struct {
	Provider     Provider `yaml:"provider"`
	Instructions string   `yaml:"instructions"`

	MaxRounds      int           `yaml:"max_rounds"`
	MaxConcurrency int           `yaml:"max_concurrency"`
	ToolTimeout    time.Duration `yaml:"tool_timeout"`

	// HistoryDB is the SQLite file for persisted sessions. Empty keeps
	// history in memory.
	HistoryDB string `yaml:"history_db"`

	// Addr is the listen address of HTTP hosts.
	Addr string `yaml:"addr"`

	Azure     AzureConfig     `yaml:"azure"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
}

// AzureConfig addresses an Azure OpenAI deployment. An empty APIKey selects
// Microsoft Entra ID authentication.
type AzureConfig struct {
	Endpoint   string `yaml:"endpoint"`
	Deployment string `yaml:"deployment"`
	APIVersion string `yaml:"api_version"`
	APIKey     string `yaml:"-"`
}

// OpenAIConfig configures the OpenAI-compatible backend.
type OpenAIConfig struct {
	APIKey  string `yaml:"-"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// AnthropicConfig configures the Anthropic backend.
type AnthropicConfig struct {
	APIKey    string `yaml:"-"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Instructions: DefaultInstructions,
		MaxRounds:    al.DefaultMaxRounds,
		Addr:         DefaultAddr,
		Azure: AzureConfig{
			Deployment: DefaultDeployment,
			APIVersion: openai.DefaultAzureAPIVersion,
		},
	}
}

// Load reads .env, the AGENT_CONFIG file and the environment, then validates
// the result. Extra dotenv files may be named; missing ones are skipped.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: load %s: %w", ErrInvalidConfig, f, err)
		}
	}

	cfg := Default()
	if path := os.Getenv("AGENT_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrInvalidConfig, path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%w: parse %s: %w", ErrInvalidConfig, path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Azure.Endpoint, "AZURE_OPENAI_ENDPOINT")
	setString(&c.Azure.Deployment, "AZURE_AI_MODEL_DEPLOYMENT_NAME")
	setString(&c.Azure.APIVersion, "OPENAI_API_VERSION")
	setString(&c.Azure.APIKey, "AZURE_OPENAI_API_KEY")
	setString(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.OpenAI.Model, "OPENAI_MODEL")
	setString(&c.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&c.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	setString(&c.Anthropic.Model, "ANTHROPIC_MODEL")
	setString(&c.Instructions, "AGENT_INSTRUCTIONS")
	setString(&c.HistoryDB, "AGENT_HISTORY_DB")

	if v := os.Getenv("AGENT_PROVIDER"); v != "" {
		c.Provider = Provider(v)
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Addr = ":" + v
	}

	var err error
	if c.MaxRounds, err = intEnv("AGENT_MAX_ROUNDS", c.MaxRounds); err != nil {
		return err
	}
	if c.MaxConcurrency, err = intEnv("AGENT_MAX_CONCURRENCY", c.MaxConcurrency); err != nil {
		return err
	}
	if c.Anthropic.MaxTokens, err = intEnv("ANTHROPIC_MAX_TOKENS", c.Anthropic.MaxTokens); err != nil {
		return err
	}
	if v := os.Getenv("AGENT_TOOL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: AGENT_TOOL_TIMEOUT: %w", ErrInvalidConfig, err)
		}
		c.ToolTimeout = d
	}

	if c.Provider == "" {
		c.Provider = c.inferProvider()
	}
	return nil
}

// inferProvider picks a backend from whichever credentials are present.
func (c *Config) inferProvider() Provider {
	switch {
	case c.Azure.Endpoint != "":
		return ProviderAzure
	case c.OpenAI.APIKey == "" && c.Anthropic.APIKey != "":
		return ProviderAnthropic
	default:
		return ProviderOpenAI
	}
}

// Validate reports the first problem that would keep a host from starting.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderAzure:
		if c.Azure.Endpoint == "" {
			return fmt.Errorf("%w: AZURE_OPENAI_ENDPOINT is required for provider %q", ErrInvalidConfig, c.Provider)
		}
		if c.Azure.Deployment == "" {
			return fmt.Errorf("%w: AZURE_AI_MODEL_DEPLOYMENT_NAME is required for provider %q", ErrInvalidConfig, c.Provider)
		}
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY is required for provider %q", ErrInvalidConfig, c.Provider)
		}
	case ProviderAnthropic:
		if c.Anthropic.APIKey == "" {
			return fmt.Errorf("%w: ANTHROPIC_API_KEY is required for provider %q", ErrInvalidConfig, c.Provider)
		}
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, c.Provider)
	}
	if c.MaxRounds < 0 {
		return fmt.Errorf("%w: max rounds must not be negative, got %d", ErrInvalidConfig, c.MaxRounds)
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("%w: max concurrency must not be negative, got %d", ErrInvalidConfig, c.MaxConcurrency)
	}
	if c.ToolTimeout < 0 {
		return fmt.Errorf("%w: tool timeout must not be negative, got %s", ErrInvalidConfig, c.ToolTimeout)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
	}
	return n, nil
}
