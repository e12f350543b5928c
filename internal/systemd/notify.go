// Package systemd integrates with the service manager when the daemon
// runs as a systemd unit. Outside systemd every call is a no-op.
package systemd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier reports daemon readiness and status over the sd_notify socket.
type Notifier struct {
	logger *slog.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{logger: logger}
}

// Ready signals READY=1 once startup is complete.
func (n *Notifier) Ready() {
	n.send("READY=1")
}

// Status updates the unit's status line shown by systemctl.
func (n *Notifier) Status(status string) {
	n.send("STATUS=" + status)
}

// Stopping signals STOPPING=1 at the start of shutdown.
func (n *Notifier) Stopping() {
	n.send("STOPPING=1")
}

func (n *Notifier) send(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		n.logger.Warn("systemd notify failed", "state", state, "error", err)
		return
	}
	if sent {
		n.logger.Debug("systemd notified", "state", state)
	}
}

// WatchdogInterval returns the keepalive interval when the unit has
// WatchdogSec configured, or zero when no watchdog is active.
func WatchdogInterval() (time.Duration, error) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return 0, fmt.Errorf("failed to read watchdog settings: %w", err)
	}
	if interval == 0 {
		return 0, nil
	}
	// Pet at half the configured timeout.
	return interval / 2, nil
}

// StartWatchdog pets the systemd watchdog until stop is closed. Returns
// false when no watchdog is configured for the unit.
func (n *Notifier) StartWatchdog(stop <-chan struct{}) bool {
	interval, err := WatchdogInterval()
	if err != nil {
		n.logger.Warn("Watchdog disabled", "error", err)
		return false
	}
	if interval == 0 {
		return false
	}

	n.logger.Info("systemd watchdog active", "interval", interval)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				n.send("WATCHDOG=1")
			}
		}
	}()
	return true
}
