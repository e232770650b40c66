package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// VerifyConfig holds configuration for the verify command.
type VerifyConfig struct {
	API         string
	RPCURL      string
	HTTPTimeout time.Duration
	LogLevel    string
}

// LoadVerify merges config file, environment variables, and flags into
// VerifyConfig.
func LoadVerify(cfgFile string, flags *pflag.FlagSet) (VerifyConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("CONSOLE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("http-timeout", 15*time.Second)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return VerifyConfig{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if err := readConfigFile(v, cfgFile); err != nil {
		return VerifyConfig{}, err
	}

	cfg := VerifyConfig{
		API:         v.GetString("api"),
		RPCURL:      v.GetString("rpc"),
		HTTPTimeout: v.GetDuration("http-timeout"),
		LogLevel:    v.GetString("log-level"),
	}

	return cfg, nil
}
