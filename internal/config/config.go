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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Collect   CollectConfig   `yaml:"collect" mapstructure:"collect"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Enrich    EnrichConfig    `yaml:"enrich" mapstructure:"enrich"`
	Geocode   GeocodeConfig   `yaml:"geocode" mapstructure:"geocode"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Schedule  ScheduleConfig  `yaml:"schedule" mapstructure:"schedule"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SearchConfig holds the contractor search API settings.
type SearchConfig struct {
	URL         string  `yaml:"url" mapstructure:"url"`
	Token       string  `yaml:"token" mapstructure:"token"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// CollectConfig configures one full collection run.
type CollectConfig struct {
	PageSize    int     `yaml:"page_size" mapstructure:"page_size"`
	Total       int     `yaml:"total" mapstructure:"total"`
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"`
	Latitude    float64 `yaml:"latitude" mapstructure:"latitude"`
	Longitude   float64 `yaml:"longitude" mapstructure:"longitude"`
	Distance    float64 `yaml:"distance_miles" mapstructure:"distance_miles"`
	UseGeo      bool    `yaml:"use_geo" mapstructure:"use_geo"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// EnrichConfig tunes the enrichment sweeps.
type EnrichConfig struct {
	MaxTokens         int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	InsightTemp       float64 `yaml:"insight_temperature" mapstructure:"insight_temperature"`
	EvaluateTemp      float64 `yaml:"evaluate_temperature" mapstructure:"evaluate_temperature"`
	RegenerateTemp    float64 `yaml:"regenerate_temperature" mapstructure:"regenerate_temperature"`
	LowScoreThreshold int     `yaml:"low_score_threshold" mapstructure:"low_score_threshold"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// GeocodeConfig configures the geocoding sweep.
type GeocodeConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ServerConfig configures the query API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// ScheduleConfig configures the recurring collection trigger.
type ScheduleConfig struct {
	Cron       string `yaml:"cron" mapstructure:"cron"`
	RunEnrich  bool   `yaml:"run_enrich" mapstructure:"run_enrich"`
	RunGeocode bool   `yaml:"run_geocode" mapstructure:"run_geocode"`
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
	v.SetEnvPrefix("CONTRACTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "contractors.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("search.user_agent", "Mozilla/5.0 (compatible; DataCollector/1.0)")
	v.SetDefault("search.timeout_secs", 15)
	v.SetDefault("search.rate_limit", 5)
	v.SetDefault("collect.page_size", 10)
	v.SetDefault("collect.total", 20)
	v.SetDefault("collect.concurrency", 4)
	v.SetDefault("collect.latitude", 40.7217861)
	v.SetDefault("collect.longitude", -74.0094471)
	v.SetDefault("collect.distance_miles", 25)
	v.SetDefault("collect.use_geo", true)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("enrich.max_tokens", 400)
	v.SetDefault("enrich.insight_temperature", 0.7)
	v.SetDefault("enrich.evaluate_temperature", 0.3)
	v.SetDefault("enrich.regenerate_temperature", 0.9)
	v.SetDefault("enrich.low_score_threshold", 2)
	v.SetDefault("enrich.timeout_secs", 60)
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "contractor-insights/1.0")
	v.SetDefault("geocode.rate_limit", 1)
	v.SetDefault("geocode.timeout_secs", 10)
	v.SetDefault("server.port", 8080)
	v.SetDefault("schedule.cron", "0 2 * * 1")
	v.SetDefault("schedule.run_enrich", true)
	v.SetDefault("schedule.run_geocode", true)
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

// Validate checks that the configuration is usable for the named command
// group. Read-only commands do not need API credentials.
func (c *Config) Validate(scope string) error {
	switch scope {
	case "collect":
		if c.Search.URL == "" {
			return eris.New("config: search.url is required (CONTRACTOR_SEARCH_URL)")
		}
	case "enrich":
		if c.Anthropic.Key == "" {
			return eris.New("config: anthropic.key is required (CONTRACTOR_ANTHROPIC_KEY)")
		}
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
