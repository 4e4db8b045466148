// Package utils contains utility types for logging and filesystem path
// management used throughout ServerStriker.
package utils

import (
	"os"
	"path/filepath"
)

// Paths resolves and manages filesystem locations used by ServerStriker.
type Paths struct {
	RootPath string `json:"root_path"`
}

// NewPaths constructs Paths rooted at the specified directory.
func NewPaths(rootPath string) *Paths {
	return &Paths{RootPath: rootPath}
}

// DefaultPaths returns Paths rooted at the conventional system location,
// falling back to a directory next to the running executable when the
// system root is not writable (non-root development runs).
func DefaultPaths() *Paths {
	root := "/etc/serverstriker"
	if err := os.MkdirAll(root, 0o755); err == nil {
		return NewPaths(root)
	}
	exe, err := os.Executable()
	if err != nil {
		return NewPaths(filepath.Join(os.TempDir(), "serverstriker"))
	}
	if resolved, rerr := filepath.EvalSymlinks(exe); rerr == nil && resolved != "" {
		exe = resolved
	}
	return NewPaths(filepath.Join(filepath.Dir(exe), "serverstriker"))
}

// ConfigFile returns the path to the agent configuration file.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.RootPath, "sst_config.json")
}

// LogsDir returns the logs directory for ServerStriker.
func (p *Paths) LogsDir() string {
	if p.RootPath == "/etc/serverstriker" {
		return "/var/log"
	}
	return filepath.Join(p.RootPath, "logs")
}

// LogFile returns the main ServerStriker log file path.
func (p *Paths) LogFile() string {
	return filepath.Join(p.LogsDir(), "serverstriker.log")
}

// CheckRoot verifies that the root and logs directories exist, creating
// them when missing.
func (p *Paths) CheckRoot() error {
	if err := os.MkdirAll(p.RootPath, 0o755); err != nil {
		return err
	}
	return os.MkdirAll(p.LogsDir(), 0o755)
}
