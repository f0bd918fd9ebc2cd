// Package config loads the agent configuration from file, environment and
// defaults, in that order of increasing precedence for the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/seedframe-io/seedframe/internal/chain"
	"github.com/seedframe-io/seedframe/internal/origin"
	"github.com/seedframe-io/seedframe/internal/rpc"
)

type HostSettings struct {
	Addr string `mapstructure:"addr"`
}

type ChainSettings struct {
	RPCURL             string `mapstructure:"rpc_url"`
	SubmitRetries      uint   `mapstructure:"submit_retries"`
	ConfirmPollMillis  uint   `mapstructure:"confirm_poll_millis"`
	ConfirmWaitSeconds uint   `mapstructure:"confirm_wait_seconds"`
}

type Config struct {
	TrustedOrigins []string `mapstructure:"trusted_origins"`
	User           string   `mapstructure:"user"`
	Debug          bool     `mapstructure:"debug"`

	// AllowSoftwareAuthenticator enables the encrypted-file fallback on
	// hosts without a platform authenticator.
	AllowSoftwareAuthenticator bool `mapstructure:"allow_software_authenticator"`

	Host          HostSettings     `mapstructure:"host"`
	Chain         ChainSettings    `mapstructure:"chain"`
	Capabilities  rpc.Capabilities `mapstructure:"capabilities"`
	DefaultAssets []chain.Mint     `mapstructure:"default_assets"`
}

// ConfirmPollInterval converts the configured poll cadence.
func (c ChainSettings) ConfirmPollInterval() time.Duration {
	return time.Duration(c.ConfirmPollMillis) * time.Millisecond
}

// ConfirmWait converts the configured confirmation ceiling.
func (c ChainSettings) ConfirmWait() time.Duration {
	return time.Duration(c.ConfirmWaitSeconds) * time.Second
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("seedframe")
	v.SetConfigType("yaml")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "seedframe"))
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("SEEDFRAME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("user", "seedframe user")
	v.SetDefault("debug", false)
	v.SetDefault("allow_software_authenticator", true)
	v.SetDefault("host.addr", "127.0.0.1:9700")
	v.SetDefault("chain.rpc_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("chain.submit_retries", 3)
	v.SetDefault("chain.confirm_poll_millis", 2000)
	v.SetDefault("chain.confirm_wait_seconds", 60)
	v.SetDefault("capabilities.chain_ids", []string{"solana:mainnet"})
	v.SetDefault("capabilities.features", []string{
		"signAndSendTransaction", "sessionKeys", "callBatching",
	})
	v.SetDefault("capabilities.max_permission_ttl_seconds", 86400)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, cfg.validate()
}

func (c *Config) validate() error {
	if len(c.TrustedOrigins) == 0 {
		return errors.New("config: trusted_origins must list at least one origin")
	}
	normalized := make([]string, 0, len(c.TrustedOrigins))
	for _, o := range c.TrustedOrigins {
		n := origin.Normalize(o)
		if n == "" {
			return fmt.Errorf("config: invalid trusted origin %q", o)
		}
		normalized = append(normalized, n)
	}
	c.TrustedOrigins = normalized

	if c.Chain.RPCURL == "" {
		return errors.New("config: chain.rpc_url is required")
	}
	return nil
}
