package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type DBConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type StreamsConfig struct {
	MaxAge        time.Duration `mapstructure:"max_age"`
	EvictSchedule string        `mapstructure:"evict_schedule"`
}

type EventsConfig struct {
	RateLimit  int           `mapstructure:"rate_limit"`
	RateWindow time.Duration `mapstructure:"rate_window"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type Config struct {
	Mode              string        `mapstructure:"mode"`
	Port              int           `mapstructure:"port"`
	Secret            string        `mapstructure:"secret"`
	JWTSecret         string        `mapstructure:"jwt_secret"`
	FrontendURL       string        `mapstructure:"frontend_url"`
	ReadLimit         int64         `mapstructure:"read_limit"`
	PingPeriod        time.Duration `mapstructure:"ping_period"`
	SendBuffer        int           `mapstructure:"send_buffer"`
	DirectoryCacheTTL time.Duration `mapstructure:"directory_cache_ttl"`
	DB                DBConfig      `mapstructure:"db"`
	Streams           StreamsConfig `mapstructure:"streams"`
	Events            EventsConfig  `mapstructure:"events"`
	Log               LogConfig     `mapstructure:"log"`
}

func Load() (*Config, error) {
	// .env never overrides variables already set in the environment
	_ = godotenv.Load()

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile reads fileName on top of the defaults. A missing file is not an error.
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)

	setDefaults(v)

	v.SetEnvPrefix("MULTIVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range map[string]string{
		"jwt_secret":   "JWT_SECRET",
		"port":         "PORT",
		"frontend_url": "FRONTEND_URL",
	} {
		if err := v.BindEnv(key, "MULTIVIEW_"+env, env); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", fileName, err)
		}
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | DB: %s\n", cfg.Mode, cfg.Port, cfg.DB.Driver)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("secret", "multiview-dev-session")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("frontend_url", "")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("directory_cache_ttl", "1m")
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "multiview.db")
	v.SetDefault("streams.max_age", "30m")
	v.SetDefault("streams.evict_schedule", "@every 5m")
	v.SetDefault("events.rate_limit", 50)
	v.SetDefault("events.rate_window", "1s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Mode == "release" && c.JWTSecret == "" {
		return errors.New("jwt_secret is required in release mode")
	}
	if c.ReadLimit <= 0 {
		return errors.New("read_limit must be positive")
	}
	if c.SendBuffer <= 0 {
		return errors.New("send_buffer must be positive")
	}
	if c.DirectoryCacheTTL <= 0 {
		return errors.New("directory_cache_ttl must be positive")
	}
	if c.Streams.MaxAge <= 0 {
		return errors.New("streams.max_age must be positive")
	}
	if c.Events.RateLimit < 0 {
		return errors.New("events.rate_limit must not be negative")
	}
	return nil
}
