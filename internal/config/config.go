package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration for the watch command, loaded from flags,
// env, or config file.
type Config struct {
	API             string
	PollInterval    time.Duration
	ReconnectPolicy string
	ReconnectDelay  time.Duration
	ReconnectMax    time.Duration
	NotifyCooldown  time.Duration
	NotifyDelay     time.Duration
	HTTPTimeout     time.Duration
	Journal         string
	PGDSN           string
	LogLevel        string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CONSOLE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("poll-interval", 30*time.Second)
	v.SetDefault("reconnect-policy", "fixed")
	v.SetDefault("reconnect-delay", 5*time.Second)
	v.SetDefault("reconnect-max", 60*time.Second)
	v.SetDefault("notify-cooldown", 10*time.Second)
	v.SetDefault("notify-delay", 2*time.Second)
	v.SetDefault("http-timeout", 15*time.Second)
	v.SetDefault("journal", "./data/transitions.jsonl")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if err := readConfigFile(v, cfgFile); err != nil {
		return Config{}, err
	}

	cfg := Config{
		API:             v.GetString("api"),
		PollInterval:    v.GetDuration("poll-interval"),
		ReconnectPolicy: v.GetString("reconnect-policy"),
		ReconnectDelay:  v.GetDuration("reconnect-delay"),
		ReconnectMax:    v.GetDuration("reconnect-max"),
		NotifyCooldown:  v.GetDuration("notify-cooldown"),
		NotifyDelay:     v.GetDuration("notify-delay"),
		HTTPTimeout:     v.GetDuration("http-timeout"),
		Journal:         v.GetString("journal"),
		PGDSN:           v.GetString("pg-dsn"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
}

// readConfigFile loads an explicit config file, or falls back to an
// optional ./config.* discovered by viper.
func readConfigFile(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}
