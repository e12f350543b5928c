// Package runner wires the playback pipeline together: singleton guard,
// Bluetooth sink gate, player selection, and process supervision.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/smazurov/radiod/internal/bluetooth"
	"github.com/smazurov/radiod/internal/config"
	"github.com/smazurov/radiod/internal/events"
	"github.com/smazurov/radiod/internal/logging"
	"github.com/smazurov/radiod/internal/metrics"
	"github.com/smazurov/radiod/internal/player"
	"github.com/smazurov/radiod/internal/process"
	"github.com/smazurov/radiod/internal/singleton"
	"github.com/smazurov/radiod/internal/systemd"
)

// Options carries the runtime settings the daemon was started with.
type Options struct {
	// Config is the TOML config file path, empty for defaults.
	Config string
	// RequireSink gates playback on a connected Bluetooth audio sink.
	RequireSink bool
	// SinkInterval is the wait between sink probes.
	SinkInterval time.Duration
	// MetricsListen enables the Prometheus endpoint when non-empty,
	// e.g. "127.0.0.1:9184".
	MetricsListen string
	// StreamURL overrides the built-in stream, used by tests.
	StreamURL string
}

// Runner executes one play session from preconditions to player exit.
type Runner struct {
	opts   Options
	logger *slog.Logger
	bus    *events.Bus

	// Swappable for tests.
	Guard    *singleton.Guard
	Gate     *bluetooth.Gate
	Selector *player.Selector
	Notifier *systemd.Notifier
}

// New creates a Runner with production collaborators.
func New(opts Options, logger *slog.Logger) *Runner {
	if opts.StreamURL == "" {
		opts.StreamURL = player.StreamURL
	}

	bus := events.New()
	gate := bluetooth.NewGate(logger, bus)
	if opts.SinkInterval > 0 {
		gate.Interval = opts.SinkInterval
	}

	return &Runner{
		opts:     opts,
		logger:   logger,
		bus:      bus,
		Guard:    singleton.New(logging.AppName(), logger),
		Gate:     gate,
		Selector: player.NewSelector(logger),
		Notifier: systemd.NewNotifier(logger),
	}
}

// Run plays the stream until the player exits or ctx is cancelled.
// The returned value is the process exit code: 0 for a clean exit,
// shutdown by signal, or an instance already running; 1 for failures.
func (r *Runner) Run(ctx context.Context) int {
	if r.Guard.AlreadyRunning(ctx) {
		r.logger.Info("Radio player already running, exiting")
		return 0
	}

	acquired, err := r.Guard.Acquire(ctx)
	if err != nil {
		r.logger.Error("Failed to acquire instance lock", "error", err)
		return 1
	}
	if !acquired {
		r.logger.Info("Radio player already running, exiting")
		return 0
	}
	defer r.Guard.Release()

	if r.opts.RequireSink {
		r.Notifier.Status("waiting for Bluetooth audio sink")
		if err := r.Gate.Wait(ctx); err != nil {
			// Only a cancelled context gets here; treat it as shutdown.
			r.logger.Info("Shutdown while waiting for audio sink")
			return 0
		}
	}

	candidates, err := config.LoadPlayers(r.opts.Config)
	if err != nil {
		r.logger.Error("Invalid player configuration", "error", err)
		return 1
	}

	selection, err := r.Selector.Select(candidates, r.opts.StreamURL)
	if err != nil {
		if errors.Is(err, player.ErrNoPlayer) {
			r.logger.Error("No suitable audio player found. " + player.InstallHint)
		} else {
			r.logger.Error("Player selection failed", "error", err)
		}
		return 1
	}

	var srv *metrics.Server
	if r.opts.MetricsListen != "" {
		recorder := metrics.NewRecorder(r.bus)
		defer recorder.Close()
		srv = metrics.NewServer(r.opts.MetricsListen, recorder, r.logger)
		srv.Start()
		defer srv.Stop()
	}

	proc := process.NewPlayer("radio", selection.Command, r.logger)
	proc.SetBus(r.bus)
	proc.SetOutputLogger(logging.GetLogger(selection.Candidate.Name))

	watcher := r.startConfigWatcher(proc)
	if watcher != nil {
		defer func() { _ = watcher.Stop() }()
	}

	// Propagate caller cancellation into the supervisor so a shutdown
	// during playback follows the same graceful path as a signal.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			proc.Shutdown()
		case <-stop:
		}
	}()

	r.logger.Info("Starting playback", "stream", r.opts.StreamURL, "player", selection.Candidate.Name)
	r.Notifier.Ready()
	r.Notifier.Status("playing " + r.opts.StreamURL + " via " + selection.Candidate.Name)
	r.Notifier.StartWatchdog(stop)

	// Keep the unit status in step with the player lifecycle.
	unsub := r.bus.Subscribe(func(e events.PlayerStateEvent) {
		r.Notifier.Status("player " + string(e.State))
	})
	defer unsub()

	code, reason := proc.RunWithRestart()

	r.Notifier.Stopping()
	return exitStatus(code, reason)
}

// startConfigWatcher hot-reloads the player candidate list. A change
// that alters the resolved command restarts the player; anything else
// is ignored. Returns nil when no config file is in use.
func (r *Runner) startConfigWatcher(proc *process.Player) *config.Watcher[[]player.Candidate] {
	if r.opts.Config == "" {
		return nil
	}

	watcher := config.NewWatcher(r.opts.Config, config.LoadPlayers, func(candidates []player.Candidate) {
		selection, err := r.Selector.Select(candidates, r.opts.StreamURL)
		if err != nil {
			r.logger.Warn("Reloaded config selects no available player, keeping current", "error", err)
			return
		}
		if selection.Command == proc.Command() {
			r.logger.Debug("Player selection unchanged after reload")
			return
		}
		proc.RequestRestart(selection.Command)
	}, r.logger)

	if err := watcher.Start(); err != nil {
		r.logger.Warn("Config watcher unavailable", "error", err)
		return nil
	}
	return watcher
}

// exitStatus maps a supervision outcome to the daemon's exit code.
// Shutdown by signal is a clean exit regardless of how the child died.
func exitStatus(code int, reason process.Reason) int {
	if reason == process.ReasonShutdown {
		return 0
	}
	if code == 0 {
		return 0
	}
	return 1
}
