package logging

import (
	"os"
	"path/filepath"
)

// resolveLogPath finds a writable location for the requested log file.
//
// Tiers, each verified by creating and removing a marker file:
//  1. the requested directory, created if missing
//  2. a logs directory under the user's home
//  3. the directory holding the binary
//  4. the current working directory
//
// Returns ok=false when every tier is unwritable; the caller is expected
// to disable file output rather than fail.
func resolveLogPath(requested, app string) (string, bool) {
	dir := filepath.Dir(requested)
	if err := os.MkdirAll(dir, 0o755); err == nil {
		if dirWritable(dir, app) {
			return requested, true
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		homeLogs := filepath.Join(home, "logs")
		if err := os.MkdirAll(homeLogs, 0o755); err == nil && dirWritable(homeLogs, app) {
			return filepath.Join(homeLogs, app+".log"), true
		}
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		if dirWritable(exeDir, app) {
			return filepath.Join(exeDir, app+".log"), true
		}
	}

	if cwd, err := os.Getwd(); err == nil {
		if dirWritable(cwd, app) {
			return filepath.Join(cwd, app+".log"), true
		}
	}

	return "", false
}

// ResolveLogFile reports where file logging for the named app would land,
// without opening the sink. An empty requested path means the default
// location. ok is false when no tier of the fallback chain is writable.
func ResolveLogFile(requested, app string) (path string, ok bool) {
	if app == "" {
		app = AppName()
	}
	if requested == "" {
		requested = defaultLogFile(app)
	}
	return resolveLogPath(requested, app)
}

// dirWritable probes dir by touching and removing a marker file.
func dirWritable(dir, app string) bool {
	marker := filepath.Join(dir, "."+app+"_write_test")
	f, err := os.Create(marker)
	if err != nil {
		return false
	}
	f.Close()
	return os.Remove(marker) == nil
}
