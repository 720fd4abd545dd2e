// Package config provides configuration management using viper.
// It supports loading from YAML files, a .env file and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

// Configuration errors.
var (
	ErrMissingConfig         = errors.New("missing required configuration")
	ErrUnknownStorageDriver  = errors.New("unknown storage driver")
	ErrInvalidStorageSetting = errors.New("invalid storage configuration")
)

// Config holds all application configuration.
type Config struct {
	Bot      BotConfig      `mapstructure:"bot"`
	Channel  ChannelConfig  `mapstructure:"channel"`
	Admin    AdminConfig    `mapstructure:"admin"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	WebApp   WebAppConfig   `mapstructure:"webapp"`
	Log      LogConfig      `mapstructure:"log"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token       string        `mapstructure:"token"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

// ChannelConfig identifies the channel giveaways are announced in.
// The ID is either a numeric chat id (-100...) or a public @username.
type ChannelConfig struct {
	ID string `mapstructure:"id"`
}

// AdminConfig holds the privileged user allowed to end giveaways early.
type AdminConfig struct {
	ID int64 `mapstructure:"id"`
}

// HTTPConfig holds the creation API settings.
type HTTPConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	StaticDir   string   `mapstructure:"static_dir"`
}

// StorageConfig selects where giveaway snapshots are written.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

// WebAppConfig controls Telegram Mini App authentication of the creation API.
type WebAppConfig struct {
	RequireInitData bool          `mapstructure:"require_init_data"`
	InitDataTTL     time.Duration `mapstructure:"init_data_ttl"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from a .env file, config.yaml and environment variables,
// then validates it. It looks for config.yaml in configPath, "." and "./config".
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase,
	// e.g. BOT_TOKEN, CHANNEL_ID, ADMIN_ID, STORAGE_DRIVER.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults are only picked up from the environment when bound.
	for _, key := range []string{"bot.token", "channel.id", "admin.id", "http.addr", "redis.password", "database.password"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	if err := v.BindEnv("port", "PORT"); err != nil {
		return nil, fmt.Errorf("failed to bind PORT: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - env vars can provide all config
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":3000"
		if port := v.GetString("port"); port != "" {
			cfg.HTTP.Addr = ":" + port
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.poll_timeout", "10s")

	v.SetDefault("http.cors_origins", []string{"*"})
	v.SetDefault("http.static_dir", "public")

	v.SetDefault("storage.driver", StorageFile)
	v.SetDefault("storage.path", "giveaways.json")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "giveaway")
	v.SetDefault("database.name", "giveaway")
	v.SetDefault("database.pool_size", 4)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key", "giveaways:snapshot")

	v.SetDefault("webapp.require_init_data", false)
	v.SetDefault("webapp.init_data_ttl", "24h")

	v.SetDefault("log.level", "info")
}

// Validate reports missing secrets and inconsistent settings so the bot
// fails at startup instead of on first use.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Bot.Token) == "" {
		missing = append(missing, "BOT_TOKEN")
	}
	if strings.TrimSpace(c.Channel.ID) == "" {
		missing = append(missing, "CHANNEL_ID")
	}
	if c.Admin.ID == 0 {
		missing = append(missing, "ADMIN_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}

	switch c.Storage.Driver {
	case StorageFile:
		if c.Storage.Path == "" {
			return fmt.Errorf("%w: storage.path is empty", ErrInvalidStorageSetting)
		}
	case StoragePostgres:
		if c.Database.Host == "" || c.Database.Name == "" {
			return fmt.Errorf("%w: database host and name are required", ErrInvalidStorageSetting)
		}
	case StorageRedis:
		if c.Redis.Addr == "" || c.Redis.Key == "" {
			return fmt.Errorf("%w: redis addr and key are required", ErrInvalidStorageSetting)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStorageDriver, c.Storage.Driver)
	}

	return nil
}

// IsAdmin checks if a user ID is the configured admin.
func (c *Config) IsAdmin(userID int64) bool {
	return c.Admin.ID != 0 && c.Admin.ID == userID
}

// ChannelRecipient returns the channel id in the form the Bot API accepts.
func (c *Config) ChannelRecipient() string {
	id := strings.TrimSpace(c.Channel.ID)
	if id == "" || id[0] == '-' || id[0] == '@' || (id[0] >= '0' && id[0] <= '9') {
		return id
	}
	return "@" + id
}