package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths holds the filesystem locations habitd uses.
type Paths struct {
	// BaseDir is the habitd home directory (default ~/.habitd).
	BaseDir string
}

// DefaultPaths returns the standard path layout, honoring HABITD_HOME.
func DefaultPaths() *Paths {
	if base := os.Getenv("HABITD_HOME"); base != "" {
		return &Paths{BaseDir: base}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return &Paths{BaseDir: ".habitd"}
	}
	return &Paths{BaseDir: filepath.Join(home, ".habitd")}
}

// ConfigFile returns the config file path.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.BaseDir, "config.yaml")
}

// DatabaseFile returns the state database path.
func (p *Paths) DatabaseFile() string {
	return filepath.Join(p.BaseDir, "state.db")
}

// SocketFile returns the daemon unix socket path.
func (p *Paths) SocketFile() string {
	return filepath.Join(p.BaseDir, "habitd.sock")
}

// EnsureDirectories creates the base directory if missing.
func (p *Paths) EnsureDirectories() error {
	if err := os.MkdirAll(p.BaseDir, 0o700); err != nil {
		return fmt.Errorf("failed to create %s: %w", p.BaseDir, err)
	}
	return nil
}
