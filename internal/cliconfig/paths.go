package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
)

// ResolvePaths makes every context docbase absolute and checks that it is a
// directory. Relative docbases are resolved against cfg.Home, which
// defaults to the working directory.
func ResolvePaths(cfg *Config) error {
	if cfg.Home == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve home: %w", err)
		}
		cfg.Home = wd
	}

	for i := range cfg.Hosts {
		h := &cfg.Hosts[i]
		for j := range h.Contexts {
			ctx := &h.Contexts[j]
			if ctx.Docbase == "" {
				continue
			}
			if !filepath.IsAbs(ctx.Docbase) {
				ctx.Docbase = filepath.Join(cfg.Home, ctx.Docbase)
			}
			info, err := os.Stat(ctx.Docbase)
			if err != nil {
				return fmt.Errorf("host %s: context %q: docbase: %w", h.Name, ctx.Path, err)
			}
			if !info.IsDir() {
				return fmt.Errorf("host %s: context %q: docbase %s is not a directory", h.Name, ctx.Path, ctx.Docbase)
			}
		}
	}
	return nil
}
