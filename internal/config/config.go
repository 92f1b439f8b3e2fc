package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"

	"github.com/rewired-gh/elecwatch/internal/models"
	"github.com/rewired-gh/elecwatch/internal/storage"
)

// EnvPrefix is prepended to every environment override, e.g.
// ELECWATCH_STORAGE_BACKEND.
const EnvPrefix = "ELECWATCH"

// DefaultFileName is looked up in the working directory when no config file
// is given.
const DefaultFileName = "elecwatch.yaml"

// Config represents the complete application configuration
type Config struct {
	Units    UnitsConfig    `mapstructure:"units"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	PushPlus PushPlusConfig `mapstructure:"pushplus"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// UnitsConfig says where the unit list comes from and where its public view
// goes.
type UnitsConfig struct {
	Env        string `mapstructure:"env"`
	File       string `mapstructure:"file"`
	PublicFile string `mapstructure:"public_file"`
}

// FetchConfig holds balance page fetch settings
type FetchConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	Delay     time.Duration `mapstructure:"delay"`
	Pattern   string        `mapstructure:"pattern"`
	UserAgent string        `mapstructure:"user_agent"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	Backend   string          `mapstructure:"backend"`
	FilePath  string          `mapstructure:"file_path"`
	DBPath    string          `mapstructure:"db_path"`
	Timezone  string          `mapstructure:"timezone"`
	Retention RetentionConfig `mapstructure:"retention"`
}

// RetentionConfig bounds per-unit history
type RetentionConfig struct {
	Policy     string        `mapstructure:"policy"`
	MaxEntries int           `mapstructure:"max_entries"`
	MaxAge     time.Duration `mapstructure:"max_age"`
}

// AlertsConfig holds the default thresholds for units that do not set their own
type AlertsConfig struct {
	ThresholdKWh   float64 `mapstructure:"threshold_kwh"`
	ThresholdHours float64 `mapstructure:"threshold_hours"`
}

// PushPlusConfig holds PushPlus notification configuration
type PushPlusConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken   string        `mapstructure:"bot_token"`
	ChatID     string        `mapstructure:"chat_id"`
	Enabled    bool          `mapstructure:"enabled"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// MQTTConfig holds MQTT state publishing configuration
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	QoS         int    `mapstructure:"qos"`
}

// ScheduleConfig holds the watch mode schedule
type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables. An empty
// path looks for DefaultFileName in the working directory and falls back to
// defaults when it is absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(DefaultFileName, ".yaml"))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Units
	v.SetDefault("units.env", "USERS_CONFIG")
	v.SetDefault("units.file", "users.json")
	v.SetDefault("units.public_file", "public_config.json")

	// Fetch
	v.SetDefault("fetch.timeout", "15s")
	v.SetDefault("fetch.delay", "1s")
	v.SetDefault("fetch.pattern", "")
	v.SetDefault("fetch.user_agent", "")

	// Storage
	v.SetDefault("storage.backend", "json")
	v.SetDefault("storage.file_path", "data.json")
	v.SetDefault("storage.db_path", "data.db")
	v.SetDefault("storage.timezone", "Asia/Shanghai")
	v.SetDefault("storage.retention.policy", string(storage.PolicyCount))
	v.SetDefault("storage.retention.max_entries", storage.DefaultMaxEntries)
	v.SetDefault("storage.retention.max_age", storage.DefaultMaxAge.String())

	// Alerts
	v.SetDefault("alerts.threshold_kwh", models.DefaultAlertThresholdKWh)
	v.SetDefault("alerts.threshold_hours", models.DefaultAlertThresholdHours)

	// Notifications
	v.SetDefault("pushplus.enabled", true)
	v.SetDefault("pushplus.endpoint", "https://www.pushplus.plus/send")
	v.SetDefault("pushplus.timeout", "5s")
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay", "1s")

	// MQTT
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "elecwatch")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic_prefix", "elecwatch")
	v.SetDefault("mqtt.qos", 0)

	// Schedule
	v.SetDefault("schedule.cron", "@every 30m")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Units config
	if c.Units.Env == "" && c.Units.File == "" {
		return fmt.Errorf("units.env or units.file is required")
	}

	// Validate Fetch config
	if c.Fetch.Timeout < time.Second {
		return fmt.Errorf("fetch.timeout must be at least 1 second")
	}
	if c.Fetch.Delay < 0 {
		return fmt.Errorf("fetch.delay must not be negative")
	}

	// Validate Storage config
	switch c.Storage.Backend {
	case "json":
		if c.Storage.FilePath == "" {
			return fmt.Errorf("storage.file_path is required")
		}
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("storage.db_path is required")
		}
	default:
		return fmt.Errorf("storage.backend must be one of: json, sqlite")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if err := c.Retention().Validate(); err != nil {
		return fmt.Errorf("storage.retention: %w", err)
	}

	// Validate PushPlus config
	if c.PushPlus.Enabled && c.PushPlus.Endpoint == "" {
		return fmt.Errorf("pushplus.endpoint is required when pushplus is enabled")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate MQTT config
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}

	if c.Schedule.Cron == "" {
		return fmt.Errorf("schedule.cron is required")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// Location returns the zone readings are stamped in.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Storage.Timezone)
	if err != nil {
		return nil, fmt.Errorf("storage.timezone: %w", err)
	}
	return loc, nil
}

// Retention returns the history retention policy.
func (c *Config) Retention() storage.Retention {
	return storage.Retention{
		Policy:     storage.Policy(c.Storage.Retention.Policy),
		MaxEntries: c.Storage.Retention.MaxEntries,
		MaxAge:     c.Storage.Retention.MaxAge,
	}
}

// Thresholds returns the default alert thresholds.
func (c *Config) Thresholds() models.Thresholds {
	return models.Thresholds{
		BalanceKWh: c.Alerts.ThresholdKWh,
		Hours:      c.Alerts.ThresholdHours,
	}
}
