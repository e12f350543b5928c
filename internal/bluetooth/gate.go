// Package bluetooth gates playback on a connected Bluetooth audio sink.
package bluetooth

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/smazurov/radiod/internal/events"
)

// DefaultInterval is how long the gate waits between probes.
const DefaultInterval = 30 * time.Second

// probeTimeout bounds a single bluetoothctl invocation.
const probeTimeout = 10 * time.Second

// Prober reports the currently connected Bluetooth audio devices.
type Prober interface {
	ConnectedDevices(ctx context.Context) ([]string, error)
}

// CtlProber probes via the bluetoothctl command line tool.
type CtlProber struct{}

// ConnectedDevices runs `bluetoothctl devices Connected` and returns one
// entry per connected device line.
func (CtlProber) ConnectedDevices(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "bluetoothctl", "devices", "Connected").Output()
	if err != nil {
		return nil, err
	}

	var devices []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			devices = append(devices, line)
		}
	}
	return devices, nil
}

// Gate blocks until at least one Bluetooth audio sink is connected.
type Gate struct {
	Prober   Prober
	Interval time.Duration
	Bus      *events.Bus // optional
	logger   *slog.Logger
}

// NewGate creates a gate with the real bluetoothctl prober.
func NewGate(logger *slog.Logger, bus *events.Bus) *Gate {
	return &Gate{
		Prober:   CtlProber{},
		Interval: DefaultInterval,
		Bus:      bus,
		logger:   logger,
	}
}

// Wait polls until a sink is connected or ctx is cancelled. Probe errors
// are warnings: the gate retries after the fixed interval, forever. The
// only non-nil return is ctx.Err().
func (g *Gate) Wait(ctx context.Context) error {
	g.logger.Info("Checking for connected Bluetooth devices")

	for attempt := 1; ; attempt++ {
		devices, err := g.Prober.ConnectedDevices(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			g.logger.Warn("Failed to check Bluetooth devices", "error", err)
			g.publish(events.SinkWaitEvent{Attempt: attempt})
		case len(devices) > 0:
			g.logger.Info("Connected Bluetooth devices found", "devices", strings.Join(devices, ", "))
			g.publish(events.SinkWaitEvent{Connected: true, Attempt: attempt, Devices: devices})
			return nil
		default:
			g.logger.Info("No Bluetooth devices connected, waiting before next check", "interval", g.Interval)
			g.publish(events.SinkWaitEvent{Attempt: attempt})
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(g.Interval):
		}
	}
}

func (g *Gate) publish(ev events.SinkWaitEvent) {
	if g.Bus != nil {
		g.Bus.Publish(ev)
	}
}
