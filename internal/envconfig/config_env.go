package envconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (ENVPOOL_*).
// It respects flags that have been explicitly set (changed map).
// Returns an error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("suite", os.Getenv("ENVPOOL_SUITE"), &cfg.Suite)
	s.setString("listen", os.Getenv("ENVPOOL_LISTEN"), &cfg.Listen)
	s.setString("auth-key", os.Getenv("ENVPOOL_AUTH_KEY"), &cfg.AuthKey)

	return s.setDuration("stop-timeout", os.Getenv("ENVPOOL_STOP_TIMEOUT"), &cfg.StopTimeout)
}
