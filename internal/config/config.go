// Package config loads client and relay settings from a YAML file and the
// environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/omochice/counsel-chat/internal/log"
)

type Config struct {
	Chat      ChatConfig
	Transport TransportConfig
	History   HistoryConfig
	Relay     RelayConfig
	Log       log.Config
}

type ChatConfig struct {
	BaseURL string `mapstructure:"base_url"`
	WSPath  string `mapstructure:"ws_path"`
}

type TransportConfig struct {
	Driver         string
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RetryOnFailure bool          `mapstructure:"retry_on_failure"`
	MaxRetries     uint64        `mapstructure:"max_retries"`
	RetryInterval  time.Duration `mapstructure:"retry_interval"`
}

type HistoryConfig struct {
	Limit   int
	Timeout time.Duration
}

type RelayConfig struct {
	Address string
}

// Drivers accepted in transport.driver.
const (
	DriverNhooyr = "nhooyr"
	DriverGobwas = "gobwas"
)

// Load reads config.yaml from configPath (then "." and "./config"), applies
// defaults and environment overrides. A missing file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return decode(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("chat.base_url", "http://localhost:8080")
	v.SetDefault("chat.ws_path", "/ws-native")
	v.SetDefault("transport.driver", DriverNhooyr)
	v.SetDefault("transport.connect_timeout", "15s")
	v.SetDefault("transport.read_timeout", "60s")
	v.SetDefault("transport.write_timeout", "15s")
	v.SetDefault("transport.retry_on_failure", true)
	v.SetDefault("transport.max_retries", 2)
	v.SetDefault("transport.retry_interval", "250ms")
	v.SetDefault("history.limit", 50)
	v.SetDefault("history.timeout", "30s")
	v.SetDefault("relay.address", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.BindEnv("chat.base_url", "CHAT_BASE_URL")
	v.BindEnv("transport.driver", "CHAT_TRANSPORT_DRIVER")
	v.BindEnv("relay.address", "RELAY_ADDRESS")
	v.BindEnv("log.level", "LOG_LEVEL")
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Transport.ConnectTimeout = parseDuration(v, "transport.connect_timeout", 15*time.Second)
	cfg.Transport.ReadTimeout = parseDuration(v, "transport.read_timeout", 60*time.Second)
	cfg.Transport.WriteTimeout = parseDuration(v, "transport.write_timeout", 15*time.Second)
	cfg.Transport.RetryInterval = parseDuration(v, "transport.retry_interval", 250*time.Millisecond)
	cfg.History.Timeout = parseDuration(v, "history.timeout", 30*time.Second)

	switch cfg.Transport.Driver {
	case DriverNhooyr, DriverGobwas:
	default:
		return nil, fmt.Errorf("unknown transport driver %q", cfg.Transport.Driver)
	}

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return defaultVal
	}
	return d
}
