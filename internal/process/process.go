package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/radiod/internal/events"
)

// Reason explains why Run returned.
type Reason int

// Run outcomes.
const (
	ReasonExit     Reason = iota // child exited on its own
	ReasonShutdown               // signal or Shutdown() stopped it
	ReasonRestart                // restart was requested
)

// killExitCode is reported when the grace window expires and the child
// is force-killed (128 + SIGKILL).
const killExitCode = 137

// Player supervises one external audio player subprocess. The handle is
// exclusively owned: the supervisor starts the child in its own process
// group, reaps it, and is the only thing allowed to signal it.
type Player struct {
	id              string
	command         string
	commandMu       sync.RWMutex
	cmd             *exec.Cmd
	logger          *slog.Logger
	outputLogger    *slog.Logger // logger for child output (nil = use logger)
	bus             *events.Bus  // optional lifecycle event publishing
	ctx             context.Context
	cancel          context.CancelFunc
	restartChan     chan string // receives new command for restart
	stderrTail      *lineTail
	gracefulTimeout time.Duration // SIGTERM grace window before SIGKILL
	killTimeout     time.Duration // timeout after SIGKILL before giving up
}

// NewPlayer creates a supervisor for the given player command.
func NewPlayer(id, command string, logger *slog.Logger) *Player {
	ctx, cancel := context.WithCancel(context.Background())
	return &Player{
		id:              id,
		command:         command,
		logger:          logger,
		ctx:             ctx,
		cancel:          cancel,
		restartChan:     make(chan string, 1),
		stderrTail:      newLineTail(20),
		gracefulTimeout: 5 * time.Second,
		killTimeout:     5 * time.Second,
	}
}

// SetOutputLogger routes the child's stdout/stderr lines to a separate
// logger (e.g. app="mpg123") instead of the supervisor's own.
func (p *Player) SetOutputLogger(logger *slog.Logger) {
	p.outputLogger = logger
}

// SetBus enables lifecycle event publishing.
func (p *Player) SetBus(bus *events.Bus) {
	p.bus = bus
}

// Command returns the current command string.
func (p *Player) Command() string {
	p.commandMu.RLock()
	defer p.commandMu.RUnlock()
	return p.command
}

// RequestRestart requests a restart with a new command.
// Non-blocking: if a restart is already pending, this is a no-op.
func (p *Player) RequestRestart(newCommand string) {
	select {
	case p.restartChan <- newCommand:
		p.logger.Info("Restart requested")
	default:
		p.logger.Warn("Restart already pending, ignoring")
	}
}

// Shutdown triggers a graceful shutdown of the player.
func (p *Player) Shutdown() {
	p.cancel()
}

// runningPlayer holds channels for monitoring a running subprocess.
type runningPlayer struct {
	processDone <-chan error
	outputDone  chan struct{} // receives twice, once per output stream
}

// start parses the command, starts the subprocess in its own process
// group, and returns channels for monitoring.
func (p *Player) start(command string) (*runningPlayer, error) {
	args, err := parseCommand(command)
	if err != nil {
		p.logger.Error("Failed to parse command", "error", err)
		return nil, err
	}
	if len(args) == 0 {
		p.logger.Error("Empty command")
		return nil, fmt.Errorf("empty command")
	}

	p.stderrTail.Reset()

	p.cmd = exec.Command(args[0], args[1:]...)
	p.cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		p.logger.Error("Failed to create stdout pipe", "error", err)
		return nil, err
	}
	stderr, err := p.cmd.StderrPipe()
	if err != nil {
		p.logger.Error("Failed to create stderr pipe", "error", err)
		return nil, err
	}

	if err := p.cmd.Start(); err != nil {
		p.logger.Error("Failed to start player", "error", err, "command", command)
		p.publish(events.PlayerStateEvent{State: events.PlayerFailed, Command: command, ExitCode: 1})
		return nil, err
	}

	p.logger.Info("Player started", "id", p.id, "pid", p.cmd.Process.Pid, "command", command)
	p.publish(events.PlayerStateEvent{State: events.PlayerRunning, PID: p.cmd.Process.Pid, Command: command})

	outputDone := make(chan struct{}, 2)
	go func() {
		p.streamOutput(stdout, "stdout", false)
		outputDone <- struct{}{}
	}()
	go func() {
		p.streamOutput(stderr, "stderr", true)
		outputDone <- struct{}{}
	}()

	processDone := make(chan error, 1)
	go func() {
		processDone <- p.cmd.Wait()
	}()

	return &runningPlayer{processDone: processDone, outputDone: outputDone}, nil
}

// waitOutputDone waits for both output streams to complete.
func (p *Player) waitOutputDone(outputDone <-chan struct{}) {
	<-outputDone
	<-outputDone
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// handleExit extracts the exit code and logs the captured stderr tail
// when the player failed.
func (p *Player) handleExit(processErr error) int {
	exitCode := exitCodeFromError(processErr)
	if exitCode == 0 {
		p.logger.Info("Player finished normally")
		p.publish(events.PlayerStateEvent{State: events.PlayerStopped, Command: p.Command()})
		return 0
	}

	p.logger.Error("Player exited with code "+fmt.Sprint(exitCode), "exit_code", exitCode)
	if tail := p.stderrTail.String(); tail != "" {
		p.logger.Error("Player error: " + tail)
	}
	p.publish(events.PlayerStateEvent{State: events.PlayerFailed, ExitCode: exitCode, Command: p.Command()})
	return exitCode
}

// Run starts the player and blocks until it exits, a shutdown signal
// arrives, or Shutdown is called. Returns the child's exit code and the
// reason the run ended; signal-driven shutdown is not a failure.
func (p *Player) Run() (int, Reason) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	return p.runOnce(sigChan)
}

// RunWithRestart runs the player and honors restart requests, looping
// until shutdown or until the child exits on its own.
func (p *Player) RunWithRestart() (int, Reason) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	for {
		exitCode, reason := p.runOnce(sigChan)

		switch reason {
		case ReasonShutdown:
			p.logger.Info("Shutdown complete", "exit_code", exitCode)
			return exitCode, reason
		case ReasonRestart:
			p.logger.Info("Restarting player")
			continue
		default:
			return exitCode, reason
		}
	}
}

// runOnce runs the player once and returns the exit code and reason.
func (p *Player) runOnce(sigChan <-chan os.Signal) (int, Reason) {
	p.commandMu.RLock()
	command := p.command
	p.commandMu.RUnlock()

	p.publish(events.PlayerStateEvent{State: events.PlayerStarting, Command: command})

	rp, err := p.start(command)
	if err != nil {
		return 1, ReasonExit
	}

	select {
	case <-p.ctx.Done():
		p.logger.Info("Shutdown requested, terminating player")
		p.terminate()
		code := p.waitForExit(rp.processDone, p.gracefulTimeout)
		p.waitOutputDone(rp.outputDone)
		p.publish(events.PlayerStateEvent{State: events.PlayerStopped, ExitCode: code, Command: command})
		return code, ReasonShutdown

	case sig := <-sigChan:
		p.logger.Info("Received shutdown signal", "signal", sig.String())
		p.terminate()
		code := p.waitForExit(rp.processDone, p.gracefulTimeout)
		p.waitOutputDone(rp.outputDone)
		p.publish(events.PlayerStateEvent{State: events.PlayerStopped, ExitCode: code, Command: command})
		return code, ReasonShutdown

	case newCmd := <-p.restartChan:
		p.logger.Info("Received restart request")
		p.terminate()
		code := p.waitForExit(rp.processDone, p.gracefulTimeout)
		p.waitOutputDone(rp.outputDone)
		p.commandMu.Lock()
		p.command = newCmd
		p.commandMu.Unlock()
		return code, ReasonRestart

	case processErr := <-rp.processDone:
		// Drain output first so the stderr tail is complete before the
		// exit is reported.
		p.waitOutputDone(rp.outputDone)
		return p.handleExit(processErr), ReasonExit
	}
}

// terminate sends SIGTERM to the child without waiting.
func (p *Player) terminate() {
	if p.cmd == nil || p.cmd.Process == nil {
		return
	}
	p.logger.Info("Terminating audio player", "pid", p.cmd.Process.Pid)
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		p.logger.Warn("Failed to send SIGTERM", "error", err)
	}
}

// waitForExit waits for the child to exit within the grace window,
// force-killing if it does not.
func (p *Player) waitForExit(processDone <-chan error, timeout time.Duration) int {
	select {
	case err := <-processDone:
		return exitCodeFromError(err)
	case <-time.After(timeout):
		p.logger.Warn("Player didn't terminate gracefully, killing", "timeout", timeout)
		if p.cmd.Process != nil {
			if err := p.cmd.Process.Kill(); err != nil {
				// "os: process already finished" is OK - child exited between timeout and kill
				if !errors.Is(err, os.ErrProcessDone) {
					p.logger.Error("Failed to kill player", "error", err)
				}
			}
		}
		// Secondary timeout so an unreapable child can't hang shutdown
		select {
		case <-processDone:
		case <-time.After(p.killTimeout):
			p.logger.Error("Player did not exit after kill signal")
		}
		return killExitCode
	}
}

// streamOutput forwards child output lines to the output logger.
// stderr lines are also kept in the tail for exit diagnostics.
func (p *Player) streamOutput(reader io.Reader, source string, keepTail bool) {
	scanner := bufio.NewScanner(reader)

	logger := p.outputLogger
	if logger == nil {
		logger = p.logger
	}

	for scanner.Scan() {
		line := scanner.Text()
		if keepTail {
			p.stderrTail.Add(line)
		}
		logger.Info(line, "source", source)
	}

	if err := scanner.Err(); err != nil {
		p.logger.Warn("Error reading player output", "source", source, "error", err)
	}
}

func (p *Player) publish(ev events.PlayerStateEvent) {
	if p.bus != nil {
		p.bus.Publish(ev)
	}
}

// parseCommand parses a command string into arguments.
// Handles quoted strings and basic escaping.
func parseCommand(command string) ([]string, error) {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := rune(0)

	command = strings.TrimSpace(command)
	runes := []rune(command)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"' || r == '\'':
			switch {
			case !inQuote:
				inQuote = true
				quoteChar = r
			case r == quoteChar:
				inQuote = false
				quoteChar = 0
			default:
				current.WriteRune(r)
			}
		case r == ' ' && !inQuote:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		case r == '\\' && i+1 < len(runes):
			i++ // Skip the backslash
			current.WriteRune(runes[i])
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 {
		args = append(args, current.String())
	}

	if inQuote {
		return nil, fmt.Errorf("unclosed quote in command")
	}

	return args, nil
}
