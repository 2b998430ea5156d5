// Copyright 2024-2026 Aiku AI

package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable that overrides the config
// file, e.g. RELAY_SLACK_TOKEN.
const EnvPrefix = "RELAY_"

// DefaultConfigPath is read when no path is given on the command line.
const DefaultConfigPath = "config.json"

// IRCConfig describes the IRC side of the relay.
type IRCConfig struct {
	// Server is a host:port address.
	Server   string `json:"server" yaml:"server" env:"SERVER"`
	Nickname string `json:"nickname" yaml:"nickname" env:"NICKNAME"`
	// Channel is the bridged channel, including the leading '#'.
	Channel string `json:"channel" yaml:"channel" env:"CHANNEL"`
	// Channels are joined at startup in addition to Channel but never
	// relayed.
	Channels []string `json:"channels,omitempty" yaml:"channels,omitempty" env:"CHANNELS" envSeparator:","`
	// Greeting is sent to Channel once after joining. Empty disables it.
	Greeting string `json:"greeting,omitempty" yaml:"greeting,omitempty" env:"GREETING"`
	RealName string `json:"real_name,omitempty" yaml:"real_name,omitempty" env:"REAL_NAME"`
}

// SlackConfig describes the Slack side of the relay.
type SlackConfig struct {
	Token string `json:"token" yaml:"token" env:"TOKEN"`
	// Channel is the bridged channel name (without '#') or ID.
	Channel string `json:"channel" yaml:"channel" env:"CHANNEL"`
	// APIURL overrides the Web API root.
	APIURL string `json:"api_url,omitempty" yaml:"api_url,omitempty" env:"API_URL"`
}

// Config is the relay configuration.
type Config struct {
	IRC   IRCConfig   `json:"irc" yaml:"irc" envPrefix:"IRC_"`
	Slack SlackConfig `json:"slack" yaml:"slack" envPrefix:"SLACK_"`
	// AdminAPIAddr enables the status API when set, e.g. "127.0.0.1:29320".
	AdminAPIAddr string `json:"admin_api_addr,omitempty" yaml:"admin_api_addr,omitempty" env:"ADMIN_API_ADDR"`
	LogLevel     string `json:"log_level,omitempty" yaml:"log_level,omitempty" env:"LOG_LEVEL"`
}

// LoadConfig reads the config file at path and applies environment
// overrides. Only a missing DefaultConfigPath is tolerated, as long as the
// environment provides every required field; a path given explicitly must
// exist.
func LoadConfig(path string) (*Config, error) {
	return loadConfig(path, nil)
}

func loadConfig(path string, environ map[string]string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && path == DefaultConfigPath:
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err = decodeConfig(path, data, cfg); err != nil {
			return nil, err
		}
	}
	if err = env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix, Environment: environ}); err != nil {
		return nil, fmt.Errorf("apply environment: %w", err)
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeConfig(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	return nil
}

// Validate reports every missing required field at once.
func (c *Config) Validate() error {
	var errs []error
	required := []struct {
		key, value string
	}{
		{"irc.server", c.IRC.Server},
		{"irc.nickname", c.IRC.Nickname},
		{"irc.channel", c.IRC.Channel},
		{"slack.token", c.Slack.Token},
		{"slack.channel", c.Slack.Channel},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, fmt.Errorf("missing required config field %s", r.key))
		}
	}
	if c.IRC.Channel != "" && !strings.HasPrefix(c.IRC.Channel, "#") {
		errs = append(errs, fmt.Errorf("irc.channel %q must start with '#'", c.IRC.Channel))
	}
	return errors.Join(errs...)
}

// ExtraChannels returns the configured extra IRC channels without the
// bridged one and without duplicates.
func (c *Config) ExtraChannels() []string {
	seen := map[string]bool{c.IRC.Channel: true}
	var out []string
	for _, ch := range c.IRC.Channels {
		ch = strings.TrimSpace(ch)
		if ch == "" || seen[ch] {
			continue
		}
		seen[ch] = true
		out = append(out, ch)
	}
	return out
}

// JoinRooms is every IRC channel joined at startup, bridged channel first.
func (c *Config) JoinRooms() []string {
	return append([]string{c.IRC.Channel}, c.ExtraChannels()...)
}
