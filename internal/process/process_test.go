package process

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/radiod/internal/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestPlayer creates a Player with short timeouts for testing.
func newTestPlayer(command string) *Player {
	p := NewPlayer("test", command, testLogger())
	p.gracefulTimeout = 100 * time.Millisecond
	p.killTimeout = 100 * time.Millisecond
	return p
}

type runResult struct {
	exitCode int
	reason   Reason
}

// runAsync runs the player's Run method in a goroutine.
func runAsync(p *Player) <-chan runResult {
	done := make(chan runResult, 1)
	go func() {
		code, reason := p.Run()
		done <- runResult{code, reason}
	}()
	return done
}

// waitForResult waits for a run result with timeout, fails test on timeout.
func waitForResult(t *testing.T, done <-chan runResult, timeout time.Duration) runResult {
	t.Helper()
	select {
	case res := <-done:
		return res
	case <-time.After(timeout):
		t.Fatal("timeout waiting for player to exit")
		return runResult{}
	}
}

func TestGracefulShutdown(t *testing.T) {
	// Child that handles SIGTERM
	p := newTestPlayer(`sh -c "trap 'exit 0' INT TERM; while :; do sleep 0.1; done"`)
	p.gracefulTimeout = 500 * time.Millisecond

	done := runAsync(p)
	time.Sleep(100 * time.Millisecond)
	p.Shutdown()

	res := waitForResult(t, done, time.Second)
	if res.exitCode != 0 {
		t.Errorf("exit code = %d, want 0", res.exitCode)
	}
	if res.reason != ReasonShutdown {
		t.Errorf("reason = %v, want ReasonShutdown", res.reason)
	}
}

func TestForceKillOnTimeout(t *testing.T) {
	// Child that ignores SIGTERM
	p := newTestPlayer(`sh -c "trap '' INT TERM; sleep 10"`)
	p.gracefulTimeout = 50 * time.Millisecond
	p.killTimeout = 50 * time.Millisecond

	done := runAsync(p)
	time.Sleep(50 * time.Millisecond)
	p.Shutdown()

	// Child was killed, expect 137 (128 + 9 for SIGKILL)
	res := waitForResult(t, done, 500*time.Millisecond)
	if res.exitCode != killExitCode {
		t.Errorf("exit code = %d, want %d", res.exitCode, killExitCode)
	}
}

func TestCleanExit(t *testing.T) {
	p := newTestPlayer("true")

	res := waitForResult(t, runAsync(p), 500*time.Millisecond)
	if res.exitCode != 0 {
		t.Errorf("exit code = %d, want 0", res.exitCode)
	}
	if res.reason != ReasonExit {
		t.Errorf("reason = %v, want ReasonExit", res.reason)
	}

	// Shutdown after the child has already exited must not panic.
	p.Shutdown()
}

func TestFailedExitCapturesStderr(t *testing.T) {
	p := newTestPlayer(`sh -c "echo stream unavailable >&2; exit 3"`)

	res := waitForResult(t, runAsync(p), time.Second)
	if res.exitCode != 3 {
		t.Errorf("exit code = %d, want 3", res.exitCode)
	}
	if got := p.stderrTail.String(); !strings.Contains(got, "stream unavailable") {
		t.Errorf("stderr tail = %q, want it to contain the player's error output", got)
	}
}

func TestLaunchFailure(t *testing.T) {
	p := newTestPlayer("/nonexistent/player http://stream")

	res := waitForResult(t, runAsync(p), 500*time.Millisecond)
	if res.exitCode != 1 {
		t.Errorf("exit code = %d, want 1", res.exitCode)
	}
	if res.reason != ReasonExit {
		t.Errorf("reason = %v, want ReasonExit", res.reason)
	}
}

func TestRequestRestart(t *testing.T) {
	p := newTestPlayer(`sh -c "trap 'exit 0' TERM; sleep 10"`)
	p.gracefulTimeout = 500 * time.Millisecond

	done := make(chan runResult, 1)
	go func() {
		code, reason := p.RunWithRestart()
		done <- runResult{code, reason}
	}()

	time.Sleep(100 * time.Millisecond)
	p.RequestRestart("true")

	// After the restart the new command runs and exits cleanly.
	res := waitForResult(t, done, 2*time.Second)
	if res.exitCode != 0 {
		t.Errorf("exit code = %d, want 0", res.exitCode)
	}
	if got := p.Command(); got != "true" {
		t.Errorf("Command() = %q, want %q after restart", got, "true")
	}
}

func TestPublishesLifecycleEvents(t *testing.T) {
	bus := events.New()
	states := make(chan events.PlayerState, 8)
	unsub := bus.Subscribe(func(e events.PlayerStateEvent) {
		states <- e.State
	})
	defer unsub()

	p := newTestPlayer("true")
	p.SetBus(bus)

	waitForResult(t, runAsync(p), time.Second)

	var seen []events.PlayerState
	timeout := time.After(time.Second)
	for len(seen) < 3 {
		select {
		case s := <-states:
			seen = append(seen, s)
		case <-timeout:
			t.Fatalf("saw states %v, want starting/running/stopped", seen)
		}
	}
	if seen[0] != events.PlayerStarting || seen[1] != events.PlayerRunning || seen[2] != events.PlayerStopped {
		t.Errorf("state order = %v", seen)
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    []string
		wantErr bool
	}{
		{"simple", "mpg123 http://example.com/radio.mp3", []string{"mpg123", "http://example.com/radio.mp3"}, false},
		{"flags", "ffplay -nodisp -autoexit url", []string{"ffplay", "-nodisp", "-autoexit", "url"}, false},
		{"quoted", `player "a b" c`, []string{"player", "a b", "c"}, false},
		{"escaped", `player a\ b`, []string{"player", "a b"}, false},
		{"unclosed quote", `player "a b`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCommand(tt.command)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("arg[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestLineTail(t *testing.T) {
	tail := newLineTail(3)
	if got := tail.String(); got != "" {
		t.Errorf("empty tail = %q", got)
	}

	for _, line := range []string{"one", "two", "three", "four"} {
		tail.Add(line)
	}
	if got := tail.String(); got != "two\nthree\nfour" {
		t.Errorf("tail = %q, want last three lines", got)
	}

	tail.Reset()
	if got := tail.String(); got != "" {
		t.Errorf("tail after reset = %q", got)
	}
}
