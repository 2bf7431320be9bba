// internal/config/config.go
package config

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type OpenAIConfig struct {
	APIKey          string `mapstructure:"api_key"`
	Model           string `mapstructure:"model"`
	ExtractionModel string `mapstructure:"extraction_model"`
	BaseURL         string `mapstructure:"base_url"`
}

type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// PlacesConfig is the Google Places Text Search client used by Maps tracking
type PlacesConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type PerplexityConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type InngestConfig struct {
	EventKey   string `mapstructure:"event_key"`
	SigningKey string `mapstructure:"signing_key"`
	DailyCron  string `mapstructure:"daily_cron"`
	MapsCron   string `mapstructure:"maps_cron"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	AdminRole string `mapstructure:"admin_role"`
}

// ErrMissingJWTSecret is returned when the HTTP API would verify tokens against an empty key
var ErrMissingJWTSecret = eris.New("config: auth.jwt_secret (TRACKER_AUTH_JWT_SECRET) is required to serve the API")

// Validate checks the settings the API server cannot start without
func (a AuthConfig) Validate() error {
	if strings.TrimSpace(a.JWTSecret) == "" {
		return ErrMissingJWTSecret
	}
	return nil
}

// RunnerConfig holds the global concurrency ceiling and per-provider requests per minute
type RunnerConfig struct {
	Capacity int            `mapstructure:"capacity"`
	RPM      map[string]int `mapstructure:"rpm"`
}

// AlertsConfig routes batch failure alerts. Empty disables them.
type AlertsConfig struct {
	SlackWebhookURL string `mapstructure:"slack_webhook_url"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Config struct {
	Port         string           `mapstructure:"port"`
	Environment  string           `mapstructure:"environment"`
	DatabaseURL  string           `mapstructure:"database_url"`
	TrackingPath string           `mapstructure:"tracking_path"`
	Database     DatabaseConfig   `mapstructure:"database"`
	OpenAI       OpenAIConfig     `mapstructure:"openai"`
	Anthropic    AnthropicConfig  `mapstructure:"anthropic"`
	Gemini       GeminiConfig     `mapstructure:"gemini"`
	Perplexity   PerplexityConfig `mapstructure:"perplexity"`
	Places       PlacesConfig     `mapstructure:"places"`
	Inngest      InngestConfig    `mapstructure:"inngest"`
	Auth         AuthConfig       `mapstructure:"auth"`
	Runner       RunnerConfig     `mapstructure:"runner"`
	Alerts       AlertsConfig     `mapstructure:"alerts"`
	Log          LogConfig        `mapstructure:"log"`
}

// DatabaseConfig is the Postgres connection configuration
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Name            string `mapstructure:"name"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// DSN renders the lib/pq keyword connection string
func (d DatabaseConfig) DSN() string {
	return "host=" + d.Host +
		" port=" + strconv.Itoa(d.Port) +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Name +
		" sslmode=" + d.SSLMode
}

// Load reads configuration from the environment (prefix TRACKER_) and an optional tracker.yaml
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("tracker")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	// DATABASE_URL wins over the discrete fields when it parses
	if cfg.DatabaseURL != "" {
		db, err := parseDatabaseURL(cfg.DatabaseURL, cfg.Database)
		if err != nil {
			return nil, err
		}
		cfg.Database = db
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8000")
	v.SetDefault("environment", "development")
	v.SetDefault("tracking_path", "config/tracking.yaml")
	v.SetDefault("database_url", "")

	// registered so AutomaticEnv resolves them during Unmarshal
	for _, key := range []string{
		"database.password",
		"openai.api_key",
		"anthropic.api_key",
		"gemini.api_key",
		"perplexity.api_key",
		"inngest.event_key",
		"inngest.signing_key",
		"auth.jwt_secret",
		"alerts.slack_webhook_url",
		"places.api_key",
	} {
		v.SetDefault(key, "")
	}

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "tracker")
	v.SetDefault("database.sslmode", "require")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 25)
	v.SetDefault("database.conn_max_lifetime", 300)

	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.extraction_model", "gpt-4.1")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("perplexity.model", "sonar")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")

	v.SetDefault("places.base_url", "https://places.googleapis.com/v1")

	v.SetDefault("inngest.daily_cron", "0 6 * * *")
	v.SetDefault("inngest.maps_cron", "0 7 * * *")
	v.SetDefault("auth.admin_role", "admin")

	v.SetDefault("runner.capacity", 7)
	v.SetDefault("runner.rpm", map[string]int{
		"chatgpt":    50,
		"gemini":     1,
		"perplexity": 50,
		"claude":     50,
	})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

func parseDatabaseURL(dbURL string, base DatabaseConfig) (DatabaseConfig, error) {
	parsedURL, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, eris.Wrap(err, "config: invalid database_url")
	}

	cfg := base
	cfg.Host = parsedURL.Hostname()
	cfg.Port = 5432
	cfg.User = parsedURL.User.Username()
	cfg.Name = strings.TrimPrefix(parsedURL.Path, "/")

	if password, ok := parsedURL.User.Password(); ok {
		cfg.Password = password
	}

	if parsedURL.Port() != "" {
		if port, err := strconv.Atoi(parsedURL.Port()); err == nil {
			cfg.Port = port
		}
	}

	if mode := parsedURL.Query().Get("sslmode"); mode != "" {
		cfg.SSLMode = mode
	}

	return cfg, nil
}

// InitLogger initializes the global zap logger
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
