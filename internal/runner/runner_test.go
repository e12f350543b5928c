package runner

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smazurov/radiod/internal/process"
	"github.com/smazurov/radiod/internal/singleton"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRunner builds a Runner with an isolated guard so parallel tests
// and the host system never share PID files.
func newTestRunner(t *testing.T, opts Options) *Runner {
	t.Helper()
	logger := testLogger()
	r := New(opts, logger)
	r.Guard = singleton.New("radiod-test-"+t.Name(), logger)
	r.Guard.PIDFile = filepath.Join(t.TempDir(), "test.pid")
	r.Guard.Enumerate = func(context.Context, string) ([]int32, error) {
		return nil, nil
	}
	return r
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunCleanExit(t *testing.T) {
	// "true" ignores its arguments, so "true <url>" exits 0 immediately.
	cfg := writeConfig(t, `
[[player.candidates]]
name = "true"
`)
	r := newTestRunner(t, Options{Config: cfg, StreamURL: "https://example.com/stream.mp3"})

	if code := r.Run(context.Background()); code != 0 {
		t.Errorf("Run = %d, want 0 for clean player exit", code)
	}
}

func TestRunNoPlayerAvailable(t *testing.T) {
	cfg := writeConfig(t, `
[[player.candidates]]
name = "no-such-player-binary-zq"
`)
	r := newTestRunner(t, Options{Config: cfg})

	if code := r.Run(context.Background()); code != 1 {
		t.Errorf("Run = %d, want 1 when no player resolves", code)
	}
}

func TestRunAlreadyRunningIsCleanNoOp(t *testing.T) {
	r := newTestRunner(t, Options{})
	r.Guard.Enumerate = func(context.Context, string) ([]int32, error) {
		return []int32{int32(os.Getpid()) + 1}, nil
	}

	if code := r.Run(context.Background()); code != 0 {
		t.Errorf("Run = %d, want 0 when another instance is running", code)
	}
}

type neverConnected struct{}

func (neverConnected) ConnectedDevices(context.Context) ([]string, error) {
	return nil, nil
}

func TestRunShutdownDuringSinkWait(t *testing.T) {
	r := newTestRunner(t, Options{RequireSink: true})
	r.Gate.Prober = neverConnected{}
	r.Gate.Interval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	done := make(chan int, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case code := <-done:
		if code != 0 {
			t.Errorf("Run = %d, want 0 for shutdown during sink wait", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRunReleasesPIDFile(t *testing.T) {
	cfg := writeConfig(t, `
[[player.candidates]]
name = "true"
`)
	r := newTestRunner(t, Options{Config: cfg, StreamURL: "u"})

	if code := r.Run(context.Background()); code != 0 {
		t.Fatalf("Run = %d, want 0", code)
	}
	if _, err := os.Stat(r.Guard.PIDFile); !os.IsNotExist(err) {
		t.Errorf("PID file still present after Run: %v", err)
	}
}

func TestExitStatus(t *testing.T) {
	tests := []struct {
		name   string
		code   int
		reason process.Reason
		want   int
	}{
		{"clean exit", 0, process.ReasonExit, 0},
		{"player failure", 2, process.ReasonExit, 1},
		{"signal shutdown", 0, process.ReasonShutdown, 0},
		{"force-killed on shutdown", 137, process.ReasonShutdown, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitStatus(tt.code, tt.reason); got != tt.want {
				t.Errorf("exitStatus(%d, %v) = %d, want %d", tt.code, tt.reason, got, tt.want)
			}
		})
	}
}
