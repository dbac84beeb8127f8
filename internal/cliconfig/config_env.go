package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (DISPATCH_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("home", os.Getenv("DISPATCH_HOME"), &cfg.Home)
	s.setString("listen", os.Getenv("DISPATCH_LISTEN"), &cfg.Listen)
	s.setString("default-host", os.Getenv("DISPATCH_DEFAULT_HOST"), &cfg.DefaultHost)
	s.setString("log-level", os.Getenv("DISPATCH_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("log-format", os.Getenv("DISPATCH_LOG_FORMAT"), &cfg.LogFormat)
	s.setString("metrics-listen", os.Getenv("DISPATCH_METRICS_LISTEN"), &cfg.MetricsListen)

	if err := s.setDuration("shutdown-timeout", os.Getenv("DISPATCH_SHUTDOWN_TIMEOUT"), &cfg.ShutdownTimeout); err != nil {
		return err
	}
	if err := s.setDuration("read-header-timeout", os.Getenv("DISPATCH_READ_HEADER_TIMEOUT"), &cfg.ReadHeaderTimeout); err != nil {
		return err
	}
	if err := s.setDuration("background-delay", os.Getenv("DISPATCH_BACKGROUND_DELAY"), &cfg.BackgroundDelay); err != nil {
		return err
	}
	if err := s.setDuration("reload-debounce", os.Getenv("DISPATCH_RELOAD_DEBOUNCE"), &cfg.ReloadDebounce); err != nil {
		return err
	}

	if err := s.setIntFromString("start-stop-workers", os.Getenv("DISPATCH_START_STOP_WORKERS"), &cfg.StartStopWorkers); err != nil {
		return err
	}

	s.setBoolFromString("tracing", os.Getenv("DISPATCH_TRACING"), &cfg.Tracing)

	return nil
}
