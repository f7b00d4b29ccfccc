// Package config provides configuration loading for askd.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (SERVER_PORT, AI_OPENAI_API_KEY, ...)
//  2. YAML config file (optional, see Load)
//  3. Hardcoded defaults
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete askd configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Directory DirectoryConfig `koanf:"directory"`
	Datastore DatastoreConfig `koanf:"datastore"`
	AI        AIConfig        `koanf:"ai"`
	Speech    SpeechConfig    `koanf:"speech"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Admin     AdminConfig     `koanf:"admin"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	APIPrefix       string        `koanf:"api_prefix"`
	AllowedOrigin   string        `koanf:"allowed_origin"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// DirectoryConfig holds tenant-directory persistence configuration.
// An empty DatabaseURL selects the in-memory store (development only).
type DirectoryConfig struct {
	DatabaseURL string `koanf:"database_url"`
}

// DatastoreConfig holds the system-default document store used when tenant
// resolution fails. The fallback is disabled unless AllowDefault is set;
// serving another tenant's data silently is never acceptable.
type DatastoreConfig struct {
	DefaultEndpoint   string `koanf:"default_endpoint"`
	DefaultCredential string `koanf:"default_credential"`
	AllowDefault      bool   `koanf:"allow_default"`
}

// AIConfig holds embedding and completion provider configuration.
type AIConfig struct {
	OpenAIKey       string  `koanf:"openai_api_key"`
	BaseURL         string  `koanf:"base_url"`
	EmbeddingModel  string  `koanf:"embedding_model"`
	CompletionModel string  `koanf:"completion_model"`
	MaxTokens       int     `koanf:"max_tokens"`
	Temperature     float64 `koanf:"temperature"`
	AnswerSuffix    string  `koanf:"answer_suffix"`
}

// SpeechConfig holds speech-synthesis provider configuration.
// APIKey falls back to AI.OpenAIKey when empty.
type SpeechConfig struct {
	Provider     string  `koanf:"provider"`
	APIKey       string  `koanf:"api_key"`
	BaseURL      string  `koanf:"base_url"`
	Model        string  `koanf:"model"`
	Voice        string  `koanf:"voice"`
	Language     string  `koanf:"language"`
	Gender       string  `koanf:"gender"`
	SpeakingRate float64 `koanf:"speaking_rate"`
}

// RateLimitConfig holds sliding-window rate limiting configuration.
// Audio requests are costlier and get the lower ceiling.
type RateLimitConfig struct {
	Window        time.Duration `koanf:"window"`
	TextCeiling   int           `koanf:"text_ceiling"`
	AudioCeiling  int           `koanf:"audio_ceiling"`
	Backend       string        `koanf:"backend"` // memory or redis
	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db"`
}

// AdminConfig holds the admin override credential.
type AdminConfig struct {
	APIKey string `koanf:"api_key"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.AI.OpenAIKey == "" {
		return errors.New("ai.openai_api_key is required")
	}
	if c.AI.MaxTokens <= 0 {
		return errors.New("ai.max_tokens must be positive")
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("ai.temperature out of range: %g", c.AI.Temperature)
	}
	if c.RateLimit.Window <= 0 {
		return errors.New("ratelimit.window must be positive")
	}
	if c.RateLimit.TextCeiling <= 0 || c.RateLimit.AudioCeiling <= 0 {
		return errors.New("rate ceilings must be positive")
	}
	if c.RateLimit.Backend != "memory" && c.RateLimit.Backend != "redis" {
		return fmt.Errorf("invalid ratelimit backend %q (expected memory or redis)", c.RateLimit.Backend)
	}
	if c.RateLimit.Backend == "redis" && c.RateLimit.RedisAddr == "" {
		return errors.New("ratelimit.redis_addr required for redis backend")
	}
	if c.Datastore.AllowDefault && c.Datastore.DefaultEndpoint == "" {
		return errors.New("datastore.default_endpoint required when allow_default is set")
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Server.APIPrefix == "" {
		cfg.Server.APIPrefix = "/api"
	}
	if cfg.Server.AllowedOrigin == "" {
		cfg.Server.AllowedOrigin = "*"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.Environment == "" {
		cfg.Server.Environment = "development"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	if cfg.AI.BaseURL == "" {
		cfg.AI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.AI.EmbeddingModel == "" {
		cfg.AI.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.AI.CompletionModel == "" {
		cfg.AI.CompletionModel = "gpt-3.5-turbo-1106"
	}
	if cfg.AI.MaxTokens == 0 {
		cfg.AI.MaxTokens = 150
	}
	if cfg.AI.Temperature == 0 {
		cfg.AI.Temperature = 0.3
	}
	if cfg.AI.AnswerSuffix == "" {
		cfg.AI.AnswerSuffix = "Do you have any other questions?"
	}

	if cfg.Speech.Provider == "" {
		cfg.Speech.Provider = "openai"
	}
	if cfg.Speech.APIKey == "" {
		cfg.Speech.APIKey = cfg.AI.OpenAIKey
	}
	if cfg.Speech.BaseURL == "" {
		cfg.Speech.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Speech.Model == "" {
		cfg.Speech.Model = "tts-1"
	}
	if cfg.Speech.Voice == "" {
		cfg.Speech.Voice = "coral"
	}
	if cfg.Speech.Language == "" {
		cfg.Speech.Language = "en-US"
	}
	if cfg.Speech.SpeakingRate == 0 {
		cfg.Speech.SpeakingRate = 1.0
	}

	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.RateLimit.TextCeiling == 0 {
		cfg.RateLimit.TextCeiling = 100
	}
	if cfg.RateLimit.AudioCeiling == 0 {
		cfg.RateLimit.AudioCeiling = 50
	}
	if cfg.RateLimit.Backend == "" {
		cfg.RateLimit.Backend = "memory"
	}
}
