package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Logging    LoggingConfig    `toml:"logging"`
	LLM        LLMConfig        `toml:"llm"`
	Gemini     GeminiConfig     `toml:"gemini"`
	Claude     ClaudeConfig     `toml:"claude"`
	Local      LocalConfig      `toml:"local"`
	Chunking   ChunkingConfig   `toml:"chunking"`
	Generation GenerationConfig `toml:"generation"`
	Validation ValidationConfig `toml:"validation"`
	Output     OutputConfig     `toml:"output"`
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Output []string `toml:"output"` // "stdout", "file"
}

// LLMConfig selects which provider backs chat and embedding calls when the
// model string itself does not decide it.
type LLMConfig struct {
	DefaultProvider   string `toml:"default_provider" validate:"oneof=claude gemini local"`
	EmbedProvider     string `toml:"embed_provider" validate:"omitempty,oneof=gemini local"` // Claude exposes no embedding API
	RequestsPerMinute int    `toml:"requests_per_minute" validate:"gte=0"`                   // 0 = unthrottled
}

type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	EmbedModel  string  `toml:"embed_model"`
	Temperature float32 `toml:"temperature"`
}

type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float32 `toml:"temperature"`
}

// LocalConfig points at an OpenAI-compatible server on localhost
// (llama-server, Ollama). Non-localhost URLs are rejected at dial time.
type LocalConfig struct {
	ChatURL    string `toml:"chat_url"`
	EmbedURL   string `toml:"embed_url"`
	ChatModel  string `toml:"chat_model"`
	EmbedModel string `toml:"embed_model"`
}

type ChunkingConfig struct {
	SentencesPerChunk int `toml:"sentences_per_chunk" validate:"gt=0"`
	Overlap           int `toml:"overlap" validate:"gte=0"`
}

type GenerationConfig struct {
	Model       string  `toml:"model"`
	Difficulty  string  `toml:"difficulty" validate:"oneof=easy medium hard"`
	Temperature float32 `toml:"temperature" validate:"gte=0"`
	MaxPairs    int     `toml:"max_pairs" validate:"gt=0"`
}

type ValidationConfig struct {
	OverlapThreshold    float64  `toml:"overlap_threshold" validate:"gte=0,lte=1"`
	MinAnswerChars      int      `toml:"min_answer_chars" validate:"gte=0"`
	SimilarityThreshold float64  `toml:"similarity_threshold" validate:"gte=0,lte=1"`
	JudgeModel          string   `toml:"judge_model"` // empty = generation model
	Layers              []string `toml:"layers"`      // empty = lexical, length, semantic, judge
}

type OutputConfig struct {
	Path string `toml:"path"`
}

// DefaultConfig returns configuration with sensible defaults.
// Thresholds mirror the pipeline defaults: lexical overlap 0.5,
// answer floor 40 chars, embedding similarity 0.75.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		LLM: LLMConfig{
			DefaultProvider:   "gemini",
			RequestsPerMinute: 0,
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-flash",
			EmbedModel:  "gemini-embedding-001",
			Temperature: 0.7,
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-20250514",
			MaxTokens:   4096,
			Temperature: 0.7,
		},
		Local: LocalConfig{
			ChatURL:  "http://127.0.0.1:8087",
			EmbedURL: "http://127.0.0.1:8086",
		},
		Chunking: ChunkingConfig{
			SentencesPerChunk: 6,
			Overlap:           2,
		},
		Generation: GenerationConfig{
			Difficulty:  "medium",
			Temperature: 0.7,
			MaxPairs:    10,
		},
		Validation: ValidationConfig{
			OverlapThreshold:    0.5,
			MinAnswerChars:      40,
			SimilarityThreshold: 0.75,
		},
		Output: OutputConfig{
			Path: "datasets/rag_dataset.csv",
		},
	}
}

// LoadFromFiles loads configuration in precedence order:
// defaults -> file1 -> file2 -> ... -> environment variables.
// Later files override earlier ones. CLI overrides are applied by
// the caller on top of the returned config.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := DefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides.
// RAGSMITH_* variables take precedence over file values; the provider
// API key variables also accept the vendors' conventional names.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("RAGSMITH_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("RAGSMITH_DEFAULT_PROVIDER"); v != "" {
		config.LLM.DefaultProvider = v
	}
	if v := os.Getenv("RAGSMITH_REQUESTS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.LLM.RequestsPerMinute = n
		}
	}
	if v := firstEnv("RAGSMITH_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"); v != "" {
		config.Gemini.APIKey = v
	}
	if v := firstEnv("RAGSMITH_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"); v != "" {
		config.Claude.APIKey = v
	}
	if v := os.Getenv("RAGSMITH_OUTPUT_PATH"); v != "" {
		config.Output.Path = v
	}
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// Validate checks structural constraints plus the cross-field chunking
// invariant: overlap must be strictly smaller than the window, otherwise
// the sliding window never advances.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Chunking.Overlap >= c.Chunking.SentencesPerChunk {
		return fmt.Errorf("invalid configuration: chunking overlap (%d) must be less than sentences_per_chunk (%d)",
			c.Chunking.Overlap, c.Chunking.SentencesPerChunk)
	}

	for _, layer := range c.Validation.Layers {
		switch strings.ToLower(layer) {
		case "lexical", "length", "semantic", "judge":
		default:
			return fmt.Errorf("invalid configuration: unknown validation layer %q", layer)
		}
	}

	return nil
}

// EffectiveEmbedProvider resolves which provider serves embedding calls.
func (c *Config) EffectiveEmbedProvider() string {
	if c.LLM.EmbedProvider != "" {
		return c.LLM.EmbedProvider
	}
	if c.LLM.DefaultProvider == "local" {
		return "local"
	}
	return "gemini"
}
