package config

import (
	"os"
	"path/filepath"
	"sync"
)

const envHome = "SNIPPET_UI_HOME"

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the snippet-ui home directory, resolved once per process:
// $SNIPPET_UI_HOME, then <home> when the binary sits in <home>/bin, then
// ~/.snippet-ui.
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = resolveHome()
	})
	return homeDir
}

// GetLogsDir returns <home>/logs.
func GetLogsDir() string {
	return filepath.Join(GetHome(), "logs")
}

// GetReportsDir returns <home>/reports, the parent of per-run flow reports.
func GetReportsDir() string {
	return filepath.Join(GetHome(), "reports")
}

func resolveHome() string {
	if env := os.Getenv(envHome); env != "" {
		return env
	}

	if execPath, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
			execPath = resolved
		}
		if binDir := filepath.Dir(execPath); filepath.Base(binDir) == "bin" {
			return filepath.Dir(binDir)
		}
	}

	if user, err := os.UserHomeDir(); err == nil {
		return filepath.Join(user, ".snippet-ui")
	}
	return ".snippet-ui"
}

// ResetHome drops the cached home directory.
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}
