package envconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	DefaultSuite string `toml:"default_suite"`
	Listen       string `toml:"listen"`
	AuthKey      string `toml:"auth_key"`
	StopTimeout  string `toml:"stop_timeout"`

	Environments []EnvironmentDecl `toml:"environment"`
	Suites       []SuiteDecl       `toml:"suite"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.envpool/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".envpool", "config.toml")
	}
	return ""
}

// FileExists reports whether the path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
// Environment and suite declarations come from the file only.
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("suite", fc.DefaultSuite, &cfg.Suite)
	s.setString("listen", fc.Listen, &cfg.Listen)
	s.setString("auth-key", fc.AuthKey, &cfg.AuthKey)

	if err := s.setDuration("stop-timeout", fc.StopTimeout, &cfg.StopTimeout); err != nil {
		return err
	}

	cfg.Environments = append([]EnvironmentDecl(nil), fc.Environments...)
	cfg.Suites = append([]SuiteDecl(nil), fc.Suites...)
	return nil
}
