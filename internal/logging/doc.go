// Package logging provides a name-keyed logger registry with automatic
// output routing and a writable log-directory fallback chain.
//
// # Overview
//
// The logging system uses Go's slog package with three possible sinks:
//   - stdout when a terminal, pipe, or file is connected (text or json)
//   - the systemd journal when journald is listening
//   - a log file, resolved through a fallback chain of writable directories
//
// # Usage
//
// Set up the application logger once at startup:
//
//	logger := logging.Setup(logging.Config{
//		Level: "info",
//	})
//
// The application name is detected from the invoking binary and can be
// overridden with Config.AppName. Retrieve a configured logger elsewhere:
//
//	logger := logging.GetLogger("radiod")
//
// Add contextual attributes:
//
//	logger := logging.GetLogger("radiod").With("player", "mpg123")
//	logger.Info("Player started")  // Includes player in all logs
//
// # Log file resolution
//
// File output defaults to <install-root>/logs/<app>.log. When that
// directory cannot be written, the helper falls back in order to
// $HOME/logs, the binary's own directory, and the working directory,
// each verified by touching a marker file. If every tier fails, file
// output is disabled and the logger runs console-only; Setup never
// fails because of an unwritable disk.
//
// # Re-initialization
//
// Calling Setup again for the same application name closes and replaces
// the previous sinks, so a second call never produces duplicate lines.
// Configure adjusts level and file layout in place; changing which sinks
// are active requires another Setup call.
//
// # Viewing Logs
//
// When running as a systemd service or on a system with journald:
//
//	journalctl -t radiod              # All radiod logs
//	journalctl -t radiod -f           # Follow live
//	journalctl -t radiod -p err       # Errors only
package logging
