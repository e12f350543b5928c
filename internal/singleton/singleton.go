// Package singleton keeps at most one radiod instance playing at a time.
//
// Two mechanisms back each other up: a PID file with liveness
// verification (the lock), and best-effort process enumeration by
// command-line match (the check the Python generation of this tool
// used). Already-running is a deliberate no-op, not an error.
package singleton

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// Enumerator returns the PIDs of processes whose command line matches name.
type Enumerator func(ctx context.Context, name string) ([]int32, error)

// Guard owns the PID file for one named application.
type Guard struct {
	AppName   string
	PIDFile   string
	Enumerate Enumerator
	logger    *slog.Logger

	acquired bool
}

// New creates a Guard with the default PID file location under the
// system temp directory and the gopsutil-backed enumerator.
func New(appName string, logger *slog.Logger) *Guard {
	return &Guard{
		AppName:   appName,
		PIDFile:   filepath.Join(os.TempDir(), appName+".pid"),
		Enumerate: enumerateByCmdline,
		logger:    logger,
	}
}

// AlreadyRunning reports whether another instance is running, by
// process enumeration. Enumeration failure is logged as a warning and
// treated as "not already running" so the daemon still starts.
func (g *Guard) AlreadyRunning(ctx context.Context) bool {
	pids, err := g.Enumerate(ctx, g.AppName)
	if err != nil {
		g.logger.Warn("Could not check for running instances", "error", err)
		return false
	}

	self := int32(os.Getpid())
	var others []int32
	for _, pid := range pids {
		if pid != self {
			others = append(others, pid)
		}
	}

	if len(others) > 0 {
		g.logger.Info("Another instance already running", "pids", others)
		return true
	}
	return false
}

// Acquire takes the PID file lock. Returns false when a live instance
// already holds it; stale files left by dead processes are reclaimed.
func (g *Guard) Acquire(ctx context.Context) (bool, error) {
	for range 2 {
		f, err := os.OpenFile(g.PIDFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			g.acquired = true
			return true, nil
		}
		if !os.IsExist(err) {
			return false, err
		}

		holder, readErr := readPID(g.PIDFile)
		if readErr == nil && holder != int32(os.Getpid()) {
			alive, existsErr := process.PidExistsWithContext(ctx, holder)
			if existsErr == nil && alive {
				g.logger.Info("PID file held by live process", "pid", holder, "pid_file", g.PIDFile)
				return false, nil
			}
		}

		// Stale or unreadable PID file; reclaim and retry once.
		g.logger.Warn("Removing stale PID file", "pid_file", g.PIDFile)
		if rmErr := os.Remove(g.PIDFile); rmErr != nil && !os.IsNotExist(rmErr) {
			return false, rmErr
		}
	}
	return false, fmt.Errorf("could not acquire PID file %s", g.PIDFile)
}

// Release removes the PID file if this guard acquired it.
func (g *Guard) Release() {
	if !g.acquired {
		return
	}
	if err := os.Remove(g.PIDFile); err != nil && !os.IsNotExist(err) {
		g.logger.Warn("Failed to remove PID file", "pid_file", g.PIDFile, "error", err)
	}
	g.acquired = false
}

// readPID parses the PID stored in a PID file.
func readPID(path string) (int32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(pid), nil
}

// enumerateByCmdline lists PIDs whose command line mentions name.
// The match is textual, same heuristic as pgrep -f.
func enumerateByCmdline(ctx context.Context, name string) ([]int32, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	var pids []int32
	for _, p := range procs {
		cmdline, err := p.CmdlineWithContext(ctx)
		if err != nil {
			continue // process may have exited, or access denied
		}
		if strings.Contains(cmdline, name) {
			pids = append(pids, p.Pid)
		}
	}
	return pids, nil
}
