package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Home              string       `toml:"home"`
	Listen            string       `toml:"listen"`
	DefaultHost       string       `toml:"default_host"`
	ShutdownTimeout   string       `toml:"shutdown_timeout"`
	ReadHeaderTimeout string       `toml:"read_header_timeout"`
	BackgroundDelay   string       `toml:"background_delay"`
	ReloadDebounce    string       `toml:"reload_debounce"`
	StartStopWorkers  int          `toml:"start_stop_workers"`
	LogLevel          string       `toml:"log_level"`
	LogFormat         string       `toml:"log_format"`
	MetricsListen     string       `toml:"metrics_listen"`
	Tracing           *bool        `toml:"tracing"`
	Hosts             []HostConfig `toml:"hosts"`
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
// Returns ~/.dispatch/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".dispatch", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map). The host
// topology has no flags and is taken from the file when present.
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("home", fc.Home, &cfg.Home)
	s.setString("listen", fc.Listen, &cfg.Listen)
	s.setString("default-host", fc.DefaultHost, &cfg.DefaultHost)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("log-format", fc.LogFormat, &cfg.LogFormat)
	s.setString("metrics-listen", fc.MetricsListen, &cfg.MetricsListen)

	if err := s.setDuration("shutdown-timeout", fc.ShutdownTimeout, &cfg.ShutdownTimeout); err != nil {
		return err
	}
	if err := s.setDuration("read-header-timeout", fc.ReadHeaderTimeout, &cfg.ReadHeaderTimeout); err != nil {
		return err
	}
	if err := s.setDuration("background-delay", fc.BackgroundDelay, &cfg.BackgroundDelay); err != nil {
		return err
	}
	if err := s.setDuration("reload-debounce", fc.ReloadDebounce, &cfg.ReloadDebounce); err != nil {
		return err
	}

	s.setInt("start-stop-workers", fc.StartStopWorkers, &cfg.StartStopWorkers)
	s.setBool("tracing", fc.Tracing, &cfg.Tracing)

	if len(fc.Hosts) > 0 {
		cfg.Hosts = fc.Hosts
	}
	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
