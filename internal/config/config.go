package config

import (
	"os"
	"strconv"
	"time"

	"tabchat/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig `validate:"required"`
	AI        AIConfig     `validate:"required"`
	Session   SessionConfig
	Upload    UploadConfig
	Export    ExportConfig
	Profiling ProfilingConfig
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string `validate:"required"`
	GinMode string
}

// AIConfig holds AI/LLM related settings
type AIConfig struct {
	OpenAIKey   string `validate:"required"`
	OpenAIModel string `validate:"required"`
	BaseURL     string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// SessionConfig holds session lifecycle settings
type SessionConfig struct {
	Timeout       time.Duration
	SweepInterval time.Duration
	MaxSessions   int
}

// UploadConfig holds file upload limits
type UploadConfig struct {
	MaxBytes int64
}

// ExportConfig holds export pipeline settings
type ExportConfig struct {
	ArtifactsDir  string
	Retention     time.Duration
	PurgeInterval time.Duration
	SlidesURL     string
	PDFURL        string
	ChartURL      string
	RenderTimeout time.Duration
}

// ProfilingConfig holds performance profiling settings
type ProfilingConfig struct {
	Port    string
	Enabled bool
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{}

	aiConfig, err := loadAIConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AI configuration")
	}
	config.AI = *aiConfig

	config.Server = *loadServerConfig()
	config.Session = *loadSessionConfig()
	config.Upload = *loadUploadConfig()
	config.Export = *loadExportConfig()
	config.Profiling = *loadProfilingConfig()

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadAIConfig() (*AIConfig, error) {
	openaiKey := os.Getenv("OPENAI_API_KEY")
	if openaiKey == "" {
		return nil, errors.ConfigInvalid("OPENAI_API_KEY is required")
	}

	model := os.Getenv("LLM_MODEL")
	if model == "" {
		model = "gpt-4o-mini" // default
	}

	return &AIConfig{
		OpenAIKey:   openaiKey,
		OpenAIModel: model,
		BaseURL:     getEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		MaxTokens:   getEnvIntOrDefault("MAX_TOKENS", 1000),
		Temperature: getEnvFloatOrDefault("TEMPERATURE", 0.3),
		Timeout:     getEnvDurationOrDefault("LLM_TIMEOUT", 30*time.Second),
	}, nil
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "debug"),
	}
}

func loadSessionConfig() *SessionConfig {
	return &SessionConfig{
		Timeout:       getEnvDurationOrDefault("SESSION_TIMEOUT", 30*time.Minute),
		SweepInterval: getEnvDurationOrDefault("SESSION_SWEEP_INTERVAL", time.Minute),
		MaxSessions:   getEnvIntOrDefault("MAX_SESSIONS", 100),
	}
}

func loadUploadConfig() *UploadConfig {
	return &UploadConfig{
		MaxBytes: int64(getEnvIntOrDefault("UPLOAD_MAX_BYTES", 10*1024*1024)),
	}
}

func loadExportConfig() *ExportConfig {
	return &ExportConfig{
		ArtifactsDir:  getEnvOrDefault("ARTIFACTS_DIR", "./artifacts"),
		Retention:     getEnvDurationOrDefault("ARTIFACT_RETENTION", 24*time.Hour),
		PurgeInterval: getEnvDurationOrDefault("ARTIFACT_PURGE_INTERVAL", time.Hour),
		SlidesURL:     getEnvOrDefault("SLIDES_RENDERER_URL", ""),
		PDFURL:        getEnvOrDefault("PDF_RENDERER_URL", ""),
		ChartURL:      getEnvOrDefault("CHART_RENDERER_URL", ""),
		RenderTimeout: getEnvDurationOrDefault("RENDER_TIMEOUT", 2*time.Minute),
	}
}

func loadProfilingConfig() *ProfilingConfig {
	return &ProfilingConfig{
		Port:    getEnvOrDefault("PPROF_PORT", "6060"),
		Enabled: getEnvBoolOrDefault("PPROF_ENABLED", false),
	}
}

func validateConfig(config *Config) error {
	if config.AI.OpenAIKey == "" {
		return errors.ConfigInvalid("OpenAI API key is required")
	}
	if config.Server.Port == "" {
		return errors.ConfigInvalid("server port is required")
	}
	if config.Session.MaxSessions <= 0 {
		return errors.ConfigInvalid("MAX_SESSIONS must be positive")
	}
	if config.Upload.MaxBytes <= 0 {
		return errors.ConfigInvalid("UPLOAD_MAX_BYTES must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
