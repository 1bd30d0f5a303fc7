// Package config provides configuration loading and validation for
// embedders of the source registry.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nats-io/nats.go"

	"github.com/c360/sourceregistry/errors"
	"github.com/c360/sourceregistry/source"
)

// Config represents the complete registry configuration
type Config struct {
	Version  string         `json:"version"`
	Registry RegistryConfig `json:"registry"`
	NATS     NATSConfig     `json:"nats,omitempty"`
}

// RegistryConfig configures the visibility policy. Rules bind capability
// tags to environment dimensions, letting embedders extend the default
// tag vocabulary without touching the policy code.
type RegistryConfig struct {
	Rules []RuleConfig `json:"rules"`
}

// RuleConfig binds one capability tag to one environment requirement
type RuleConfig struct {
	Tag      string `json:"tag"`
	Requires string `json:"requires"` // "local-network" or "internet"
}

// NATSConfig configures the optional NATS event bridge
type NATSConfig struct {
	Enabled       bool   `json:"enabled"`
	URL           string `json:"url,omitempty"`
	SubjectPrefix string `json:"subject_prefix,omitempty"`
}

// Default returns a configuration with the standard connectivity rules
// and the NATS bridge disabled.
func Default() *Config {
	return &Config{
		Version: "1.0.0",
		Registry: RegistryConfig{
			Rules: []RuleConfig{
				{Tag: source.TagRequiresLocalNetwork, Requires: string(source.RequireLocalNetwork)},
				{Tag: source.TagRequiresInternet, Requires: string(source.RequireInternet)},
			},
		},
		NATS: NATSConfig{
			Enabled:       false,
			URL:           nats.DefaultURL,
			SubjectPrefix: "sourceregistry",
		},
	}
}

// Load reads a configuration file, fills defaults and validates it
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "Config", "Load", "config file read")
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load", "config file parse")
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "Config", "Load", "config validation")
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Version == "" {
		c.Version = "1.0.0"
	}
	if len(c.Registry.Rules) == 0 {
		c.Registry.Rules = Default().Registry.Rules
	}
	if c.NATS.URL == "" {
		c.NATS.URL = nats.DefaultURL
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "sourceregistry"
	}
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if c.Version == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "version check")
	}

	seen := make(map[string]struct{}, len(c.Registry.Rules))
	for i, rule := range c.Registry.Rules {
		if rule.Tag == "" {
			return errors.WrapInvalid(
				fmt.Errorf("%w: rule %d has an empty tag", errors.ErrInvalidConfig, i),
				"Config", "Validate", "rule tag check")
		}
		if _, dup := seen[rule.Tag]; dup {
			return errors.WrapInvalid(
				fmt.Errorf("%w: duplicate rule for tag %q", errors.ErrInvalidConfig, rule.Tag),
				"Config", "Validate", "duplicate rule check")
		}
		seen[rule.Tag] = struct{}{}

		switch source.Requirement(rule.Requires) {
		case source.RequireLocalNetwork, source.RequireInternet:
		default:
			return errors.WrapInvalid(
				fmt.Errorf("%w: rule %q has unknown requirement %q",
					errors.ErrInvalidConfig, rule.Tag, rule.Requires),
				"Config", "Validate", "requirement check")
		}
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: nats.url required when the bridge is enabled", errors.ErrMissingConfig),
			"Config", "Validate", "nats url check")
	}

	return nil
}

// Policy builds the connectivity policy described by the configuration
func (c *Config) Policy() (*source.ConnectivityPolicy, error) {
	rules := make([]source.Rule, 0, len(c.Registry.Rules))
	for _, rule := range c.Registry.Rules {
		rules = append(rules, source.Rule{
			Tag:      rule.Tag,
			Requires: source.Requirement(rule.Requires),
		})
	}

	policy, err := source.NewConnectivityPolicy(rules...)
	if err != nil {
		return nil, errors.Wrap(err, "Config", "Policy", "policy construction")
	}
	return policy, nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	data, err := json.Marshal(c)
	if err != nil {
		return &Config{}
	}

	clone := &Config{}
	if err := json.Unmarshal(data, clone); err != nil {
		return &Config{}
	}
	return clone
}
