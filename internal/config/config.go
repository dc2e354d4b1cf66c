// Package config provides YAML-based configuration loading for Switchboard.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// envPrefix is the prefix for every environment override.
const envPrefix = "SWITCHBOARD_"

// Config is the top-level Switchboard configuration, loaded from switchboard.yaml.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Desks     []DeskConfig    `yaml:"desks"`
	Digest    DigestConfig    `yaml:"digest"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

// DatabaseConfig holds connection settings shared by every desk. Each desk
// selects its own database (or SQLite file) on this server.
type DatabaseConfig struct {
	Driver   string `yaml:"driver" env:"DRIVER"` // "mysql" or "sqlite"
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	Dir      string `yaml:"dir" env:"DIR"` // directory for SQLite files
}

// DeskConfig defines one operator desk: a chat workspace with its owner,
// its broadcast group and its own line queue.
type DeskConfig struct {
	Reference string        `yaml:"reference"`
	Owner     string        `yaml:"owner"`
	Group     string        `yaml:"group"`
	Database  string        `yaml:"database"`
	Platform  string        `yaml:"platform"` // "discord" or "slack"
	Discord   DiscordConfig `yaml:"discord"`
	Slack     SlackConfig   `yaml:"slack"`
}

// DiscordConfig holds Discord bot credentials.
type DiscordConfig struct {
	BotToken string `yaml:"bot_token" env:"DISCORD_BOT_TOKEN"`
}

// SlackConfig holds Slack Socket Mode credentials.
type SlackConfig struct {
	AppToken string `yaml:"app_token" env:"SLACK_APP_TOKEN"`
	BotToken string `yaml:"bot_token" env:"SLACK_BOT_TOKEN"`
}

// DigestConfig schedules the periodic queue summary sent to administrators.
type DigestConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
}

// DashboardConfig controls the read-only HTTP dashboard.
type DashboardConfig struct {
	Port  int    `yaml:"port" env:"DASHBOARD_PORT"`
	Token string `yaml:"token" env:"DASHBOARD_TOKEN"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes, applies environment overrides and returns a
// validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Desk returns the desk with the given reference.
func (c *Config) Desk(reference string) (*DeskConfig, error) {
	for i := range c.Desks {
		if c.Desks[i].Reference == reference {
			return &c.Desks[i], nil
		}
	}
	return nil, fmt.Errorf("config: unknown desk %q", reference)
}

// EnvPrefix returns the environment prefix used for a desk's credentials,
// e.g. SWITCHBOARD_LG206187_.
func (d DeskConfig) EnvPrefix() string {
	ref := strings.ToUpper(strings.NewReplacer("-", "_", " ", "_").Replace(d.Reference))
	return envPrefix + ref + "_"
}

// applyEnv overlays SWITCHBOARD_DB_* on the database section,
// SWITCHBOARD_DASHBOARD_* on the dashboard and SWITCHBOARD_<REF>_* on each
// desk's credentials. Unset variables leave the YAML values alone.
func (c *Config) applyEnv() error {
	if err := env.ParseWithOptions(&c.Database, env.Options{Prefix: envPrefix + "DB_"}); err != nil {
		return fmt.Errorf("config: env database: %w", err)
	}
	if err := env.ParseWithOptions(&c.Dashboard, env.Options{Prefix: envPrefix}); err != nil {
		return fmt.Errorf("config: env dashboard: %w", err)
	}
	for i := range c.Desks {
		prefix := c.Desks[i].EnvPrefix()
		if err := env.ParseWithOptions(&c.Desks[i].Discord, env.Options{Prefix: prefix}); err != nil {
			return fmt.Errorf("config: env desk %q: %w", c.Desks[i].Reference, err)
		}
		if err := env.ParseWithOptions(&c.Desks[i].Slack, env.Options{Prefix: prefix}); err != nil {
			return fmt.Errorf("config: env desk %q: %w", c.Desks[i].Reference, err)
		}
	}
	return nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Database.Dir == "" {
		c.Database.Dir = "."
	}
	for i := range c.Desks {
		d := &c.Desks[i]
		if d.Database == "" && d.Reference != "" {
			d.Database = "switchboard_" + strings.ToLower(d.Reference)
		}
		if d.Platform == "" {
			d.Platform = "discord"
		}
	}
	if c.Digest.Cron == "" {
		c.Digest.Cron = "0 9 * * *"
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (mysql, sqlite)", c.Database.Driver))
	}
	if len(c.Desks) == 0 {
		errs = append(errs, "at least one desk is required")
	}
	seen := make(map[string]bool)
	for i, d := range c.Desks {
		if d.Reference == "" {
			errs = append(errs, fmt.Sprintf("desks[%d].reference is required", i))
		} else if seen[d.Reference] {
			errs = append(errs, fmt.Sprintf("desks[%d].reference %q is duplicated", i, d.Reference))
		}
		seen[d.Reference] = true
		if d.Owner == "" {
			errs = append(errs, fmt.Sprintf("desks[%d].owner is required", i))
		}
		if d.Group == "" {
			errs = append(errs, fmt.Sprintf("desks[%d].group is required", i))
		}
		switch d.Platform {
		case "discord", "slack":
		default:
			errs = append(errs, fmt.Sprintf("desks[%d].platform %q is not supported (discord, slack)", i, d.Platform))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
