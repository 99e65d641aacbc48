package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Registry  RegistryConfig  `yaml:"registry" mapstructure:"registry"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
	Mistral   MistralConfig   `yaml:"mistral" mapstructure:"mistral"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	Generate  GenerateConfig  `yaml:"generate" mapstructure:"generate"`
	Knowledge KnowledgeConfig `yaml:"knowledge" mapstructure:"knowledge"`
	Notify    NotifyConfig    `yaml:"notify" mapstructure:"notify"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// RegistryConfig selects the task registry backend.
type RegistryConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// AnthropicConfig holds the primary text-generation provider settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// OpenAIConfig holds the secondary (failover) provider settings.
type OpenAIConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// MistralConfig holds the vision OCR settings.
type MistralConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// FetchConfig configures the evidence URL fetcher.
type FetchConfig struct {
	MaxConcurrency int      `yaml:"max_concurrency" mapstructure:"max_concurrency"`
	TimeoutSecs    int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxBodyChars   int      `yaml:"max_body_chars" mapstructure:"max_body_chars"`
	UserAgent      string   `yaml:"user_agent" mapstructure:"user_agent"`
	Tier1Domains   []string `yaml:"tier1_domains" mapstructure:"tier1_domains"`
	Tier2Domains   []string `yaml:"tier2_domains" mapstructure:"tier2_domains"`
}

// ExtractConfig configures the file text extraction ladder.
type ExtractConfig struct {
	PdfToTextPath  string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	PdfToPpmPath   string `yaml:"pdftoppm_path" mapstructure:"pdftoppm_path"`
	OCRCharMinimum int    `yaml:"ocr_char_minimum" mapstructure:"ocr_char_minimum"`
}

// GenerateConfig configures document generation behavior.
type GenerateConfig struct {
	CallTimeoutSecs int     `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	Temperature     float64 `yaml:"temperature" mapstructure:"temperature"`
}

// KnowledgeConfig configures the knowledge corpus loader.
type KnowledgeConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// NotifyConfig configures completion notifiers. All fields optional;
// a notifier is enabled only when its settings are present.
type NotifyConfig struct {
	WebhookURL       string `yaml:"webhook_url" mapstructure:"webhook_url"`
	NotionToken      string `yaml:"notion_token" mapstructure:"notion_token"`
	NotionDatabaseID string `yaml:"notion_database_id" mapstructure:"notion_database_id"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PETITION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("registry.driver", "memory")
	v.SetDefault("registry.sqlite_path", "petition.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 20000)
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.max_tokens", 16384)
	v.SetDefault("mistral.model", "pixtral-large-latest")
	v.SetDefault("fetch.max_concurrency", 10)
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_body_chars", 10000)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; PetitionResearchBot/1.0)")
	v.SetDefault("extract.pdftotext_path", "pdftotext")
	v.SetDefault("extract.pdftoppm_path", "pdftoppm")
	v.SetDefault("extract.ocr_char_minimum", 40)
	v.SetDefault("generate.call_timeout_secs", 300)
	v.SetDefault("generate.temperature", 0.3)
	v.SetDefault("knowledge.dir", "knowledge")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that required settings are present for the given run
// mode ("generate" or "serve").
func (c *Config) Validate(mode string) error {
	var missing []string

	check := func(name, value string) {
		if value == "" {
			missing = append(missing, name+" is required")
		}
	}

	switch mode {
	case "generate", "serve":
		check("anthropic.key", c.Anthropic.Key)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if mode == "serve" && c.Server.Port <= 0 {
		missing = append(missing, "server.port must be > 0")
	}

	switch c.Registry.Driver {
	case "memory", "":
	case "sqlite":
		check("registry.sqlite_path", c.Registry.SQLitePath)
	case "postgres":
		check("registry.database_url", c.Registry.DatabaseURL)
	default:
		missing = append(missing, "registry.driver must be memory, sqlite, or postgres")
	}

	if c.Fetch.MaxConcurrency < 1 || c.Fetch.MaxConcurrency > 50 {
		missing = append(missing, "fetch.max_concurrency must be between 1 and 50")
	}
	if c.Generate.Temperature < 0 || c.Generate.Temperature > 1 {
		missing = append(missing, "generate.temperature must be between 0 and 1")
	}

	if len(missing) > 0 {
		return eris.Errorf("config: %s", strings.Join(missing, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
