// Package config loads application configuration from config.yaml and
// the RFP_* environment, and owns global logger setup.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// maxNumberedKeys bounds the RFP_GENAI_KEY_N scan.
const maxNumberedKeys = 9

// Config holds the full application configuration.
type Config struct {
	GenAI    GenAIConfig    `yaml:"genai" mapstructure:"genai"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Catalog  CatalogConfig  `yaml:"catalog" mapstructure:"catalog"`
	Pricing  PricingConfig  `yaml:"pricing" mapstructure:"pricing"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Reader   ReaderConfig   `yaml:"reader" mapstructure:"reader"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// GenAIConfig holds generation model settings and credentials.
type GenAIConfig struct {
	Model             string  `yaml:"model" mapstructure:"model"`
	Key               string  `yaml:"key" mapstructure:"key"`
	Keys              string  `yaml:"keys" mapstructure:"keys"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// ResolveKeys gathers API credentials in priority order: numbered
// RFP_GENAI_KEY_1..9 environment variables, then the comma-separated
// keys setting, then the single key setting.
func (c GenAIConfig) ResolveKeys() []string {
	var keys []string
	for i := 1; i <= maxNumberedKeys; i++ {
		if k := strings.TrimSpace(os.Getenv(fmt.Sprintf("RFP_GENAI_KEY_%d", i))); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) > 0 {
		return keys
	}
	if c.Keys != "" {
		for _, k := range strings.Split(c.Keys, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
		return keys
	}
	if c.Key != "" {
		return []string{c.Key}
	}
	return nil
}

// CacheConfig configures the generation response cache.
type CacheConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// CatalogConfig configures the SKU catalog store.
type CatalogConfig struct {
	DBPath string `yaml:"db_path" mapstructure:"db_path"`
}

// PricingConfig points at the commercial rules file.
type PricingConfig struct {
	RulesPath string `yaml:"rules_path" mapstructure:"rules_path"`
}

// PipelineConfig configures orchestration behavior.
type PipelineConfig struct {
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size"`
}

// ReaderConfig configures document text extraction.
type ReaderConfig struct {
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
}

// OutputConfig configures where run artifacts are written.
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the HTTP API server.
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
	v.SetEnvPrefix("RFP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Every key gets one so AutomaticEnv can see it; viper only
	// resolves RFP_* variables for keys it already knows about.
	v.SetDefault("genai.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("genai.key", "")
	v.SetDefault("genai.keys", "")
	v.SetDefault("genai.requests_per_second", 0)
	v.SetDefault("cache.path", "rfp_cache.db")
	v.SetDefault("catalog.db_path", "catalog.db")
	v.SetDefault("pricing.rules_path", "")
	v.SetDefault("pipeline.batch_size", 10)
	v.SetDefault("reader.pdftotext_path", "pdftotext")
	v.SetDefault("output.dir", "output")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
