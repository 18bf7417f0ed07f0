package envconfig

import (
	"fmt"
	"time"
)

// Config holds CLI configuration for envpool.
type Config struct {
	// Suite selects which declared suite to bring up. Empty means every
	// declared environment.
	Suite string

	// Listen is the optional address the remote lifecycle API serves on.
	// Empty disables the API.
	Listen string

	// AuthKey protects the remote lifecycle API when Listen is set.
	AuthKey string

	// StopTimeout bounds teardown at shutdown.
	StopTimeout time.Duration

	// Environments and Suites come from the config file only.
	Environments []EnvironmentDecl
	Suites       []SuiteDecl
}

// EnvironmentDecl declares one exec-driven environment.
type EnvironmentDecl struct {
	ID     string   `toml:"id"`
	Dir    string   `toml:"dir"`
	Start  string   `toml:"start"`
	Stop   string   `toml:"stop"`
	Reload string   `toml:"reload"`
	Watch  []string `toml:"watch"`
}

// SuiteDecl declares a composite environment over declared members.
type SuiteDecl struct {
	ID      string   `toml:"id"`
	Members []string `toml:"members"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		StopTimeout: 30 * time.Second,
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if len(c.Environments) == 0 {
		return fmt.Errorf("at least one environment must be declared")
	}
	if c.StopTimeout <= 0 {
		return fmt.Errorf("stop timeout must be positive")
	}

	seen := map[string]bool{}
	for i := range c.Environments {
		decl := &c.Environments[i]
		if decl.ID == "" {
			return fmt.Errorf("environment %d: id is required", i)
		}
		if seen[decl.ID] {
			return fmt.Errorf("environment %q declared twice", decl.ID)
		}
		seen[decl.ID] = true
		if decl.Dir == "" {
			decl.Dir = "."
		}
	}

	for _, suite := range c.Suites {
		if suite.ID == "" {
			return fmt.Errorf("suite with empty id")
		}
		if seen[suite.ID] {
			return fmt.Errorf("suite %q collides with another declaration", suite.ID)
		}
		seen[suite.ID] = true
		if len(suite.Members) == 0 {
			return fmt.Errorf("suite %q has no members", suite.ID)
		}
		for _, m := range suite.Members {
			if !declaredEnvironment(c.Environments, m) {
				return fmt.Errorf("suite %q references undeclared environment %q", suite.ID, m)
			}
		}
	}

	if c.Suite != "" && !declaredSuite(c.Suites, c.Suite) {
		return fmt.Errorf("selected suite %q is not declared", c.Suite)
	}

	return nil
}

func declaredEnvironment(decls []EnvironmentDecl, id string) bool {
	for _, d := range decls {
		if d.ID == id {
			return true
		}
	}
	return false
}

func declaredSuite(decls []SuiteDecl, id string) bool {
	for _, d := range decls {
		if d.ID == id {
			return true
		}
	}
	return false
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}
