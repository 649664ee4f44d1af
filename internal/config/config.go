package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"news-webhook-relay/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Logging     logging.Config    `mapstructure:"logging"`
	Source      SourceConfig      `mapstructure:"source"`
	Delivery    DeliveryConfig    `mapstructure:"delivery"`
	Translation TranslationConfig `mapstructure:"translation"`
	State       StateConfig       `mapstructure:"state"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Export      ExportConfig      `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// SourceConfig parameterises the dashboard source adapter.
type SourceConfig struct {
	URL               string        `mapstructure:"url"`
	PayloadURL        string        `mapstructure:"payload_url"`
	MaxItems          int           `mapstructure:"max_items"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	PlaceholderValues []string      `mapstructure:"placeholder_values"`
}

// DeliveryConfig routes formatted messages to webhook sinks.
type DeliveryConfig struct {
	SinkURLs       []string      `mapstructure:"sink_urls"`
	MessageLimit   int           `mapstructure:"message_limit"`
	SendDelay      time.Duration `mapstructure:"send_delay"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Tag            string        `mapstructure:"tag"`
	SourceLink     string        `mapstructure:"source_link"`
	ChartBaseURL   string        `mapstructure:"chart_base_url"`
}

// TranslationConfig 描述批量翻译参数。
type TranslationConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	APIURL             string        `mapstructure:"api_url"`
	APIKeys            []string      `mapstructure:"api_keys"`
	TargetLanguage     string        `mapstructure:"target_language"`
	BatchSize          int           `mapstructure:"batch_size"`
	BatchDelay         time.Duration `mapstructure:"batch_delay"`
	RetryPerCredential int           `mapstructure:"retry_per_credential"`
	Cooldown           time.Duration `mapstructure:"cooldown"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
}

// StateConfig locates the processed-set file.
type StateConfig struct {
	Path string `mapstructure:"path"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity for the optional archive.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs watch-mode cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NEWSWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "newswatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("source.max_items", 30)
	v.SetDefault("source.request_timeout", "30s")
	v.SetDefault("source.placeholder_values", []string{"00", "-"})

	v.SetDefault("delivery.message_limit", 1990)
	v.SetDefault("delivery.send_delay", "1s")
	v.SetDefault("delivery.request_timeout", "15s")

	v.SetDefault("translation.enabled", false)
	v.SetDefault("translation.target_language", "en")
	v.SetDefault("translation.batch_size", 10)
	v.SetDefault("translation.batch_delay", "2s")
	v.SetDefault("translation.retry_per_credential", 3)
	v.SetDefault("translation.cooldown", "1h")
	v.SetDefault("translation.request_timeout", "30s")

	v.SetDefault("state.path", "data/processed.json")

	v.SetDefault("scheduler.interval", "5m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x6e657773))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Source.URL == "" {
		return fmt.Errorf("source.url 必须配置")
	}
	if len(c.Delivery.SinkURLs) == 0 {
		return fmt.Errorf("delivery.sink_urls 必须至少配置一个")
	}
	if c.Source.MaxItems <= 0 {
		return fmt.Errorf("source.max_items must be greater than zero")
	}
	if c.Delivery.MessageLimit <= 0 {
		return fmt.Errorf("delivery.message_limit must be greater than zero")
	}
	if c.State.Path == "" {
		return fmt.Errorf("state.path must be set")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Translation.Enabled {
		if len(c.Translation.APIKeys) == 0 {
			return fmt.Errorf("translation.api_keys 必须至少配置一个")
		}
		if c.Translation.APIURL == "" {
			return fmt.Errorf("translation.api_url 必须配置")
		}
		if c.Translation.BatchSize <= 0 {
			return fmt.Errorf("translation.batch_size must be greater than zero")
		}
	}
	return nil
}
