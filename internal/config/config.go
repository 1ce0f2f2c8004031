package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. It is built once at
// process entry and passed into component constructors; engine code never
// reads the environment directly.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	RapidAPI RapidAPIConfig `yaml:"rapidapi" mapstructure:"rapidapi"`
	Realtor  ProviderConfig `yaml:"realtor" mapstructure:"realtor"`
	Redfin   ProviderConfig `yaml:"redfin" mapstructure:"redfin"`
	Geo      GeoConfig      `yaml:"geo" mapstructure:"geo"`
	Alert    AlertConfig    `yaml:"alert" mapstructure:"alert"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend. DatabaseURL wins when set;
// otherwise a Postgres DSN is composed from the individual parts.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Host        string `yaml:"host" mapstructure:"host"`
	Port        int    `yaml:"port" mapstructure:"port"`
	Name        string `yaml:"name" mapstructure:"name"`
	User        string `yaml:"user" mapstructure:"user"`
	Password    string `yaml:"password" mapstructure:"password"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// DSN resolves the Postgres connection string. A missing or incomplete
// database description is an error here so callers can fail before any
// load activity rather than mid-run.
func (s StoreConfig) DSN() (string, error) {
	if s.DatabaseURL != "" {
		return s.DatabaseURL, nil
	}
	if s.Name == "" || s.User == "" {
		return "", eris.New("config: no database configured (set store.database_url or store.name + store.user)")
	}
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		url.QueryEscape(s.User), url.QueryEscape(s.Password), s.Host, s.Port, s.Name)
	return dsn, nil
}

// RapidAPIConfig holds the shared RapidAPI credential used by both
// listing providers.
type RapidAPIConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// Validate reports a missing credential. Called before any network
// activity is attempted.
func (r RapidAPIConfig) Validate() error {
	if r.Key == "" {
		return eris.New("config: missing RapidAPI key (set RENTAL_RAPIDAPI_KEY)")
	}
	return nil
}

// ProviderConfig holds per-provider API endpoint settings.
type ProviderConfig struct {
	Host        string `yaml:"host" mapstructure:"host"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	PageSize    int    `yaml:"page_size" mapstructure:"page_size"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// GeoConfig configures the geography reference data.
type GeoConfig struct {
	// PartitionsFile optionally overrides the built-in ZIP/region maps
	// with a YAML reference file.
	PartitionsFile string `yaml:"partitions_file" mapstructure:"partitions_file"`
}

// AlertConfig configures webhook alerting on ingest failures.
type AlertConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
}

// ServerConfig configures the status API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config file, and environment.
func Load() (*Config, error) {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RENTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.host", "localhost")
	v.SetDefault("store.port", 5432)
	v.SetDefault("store.sqlite_path", "rental_ingest.db")
	v.SetDefault("realtor.host", "realtor16.p.rapidapi.com")
	v.SetDefault("realtor.base_url", "https://realtor16.p.rapidapi.com")
	v.SetDefault("realtor.page_size", 200)
	v.SetDefault("realtor.timeout_secs", 20)
	v.SetDefault("redfin.host", "redfin-com-data.p.rapidapi.com")
	v.SetDefault("redfin.base_url", "https://redfin-com-data.p.rapidapi.com")
	v.SetDefault("redfin.timeout_secs", 30)
	v.SetDefault("alert.failure_rate_threshold", 0.5)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Registered with empty defaults so AutomaticEnv sees them even when
	// no config file mentions the section.
	v.SetDefault("rapidapi.key", "")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.name", "")
	v.SetDefault("store.user", "")
	v.SetDefault("store.password", "")
	v.SetDefault("alert.webhook_url", "")
	v.SetDefault("geo.partitions_file", "")

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
