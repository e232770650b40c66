package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ActionConfig holds configuration for the one-shot pool commands
// (pools, approve, reject, retry).
type ActionConfig struct {
	API         string
	HTTPTimeout time.Duration
	LogLevel    string
}

// LoadAction merges config file, environment variables, and flags into
// ActionConfig.
func LoadAction(cfgFile string, flags *pflag.FlagSet) (ActionConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("CONSOLE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("http-timeout", 15*time.Second)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return ActionConfig{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if err := readConfigFile(v, cfgFile); err != nil {
		return ActionConfig{}, err
	}

	cfg := ActionConfig{
		API:         v.GetString("api"),
		HTTPTimeout: v.GetDuration("http-timeout"),
		LogLevel:    v.GetString("log-level"),
	}

	return cfg, nil
}
