package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// resetRegistry clears global logger state between tests.
func resetRegistry() {
	mutex.Lock()
	registry = make(map[string]*registration)
	mutex.Unlock()
}

func TestSetupResolvesRequestedPath(t *testing.T) {
	resetRegistry()
	dir := t.TempDir()
	logFile := filepath.Join(dir, "logs", "myapp.log")

	logger := Setup(Config{AppName: "myapp", LogFile: logFile})
	logger.Info("hello from test")

	if got := ResolvedLogFile("myapp"); got != logFile {
		t.Fatalf("ResolvedLogFile() = %q, want %q", got, logFile)
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "hello from test") {
		t.Errorf("log file missing message, got:\n%s", data)
	}
	if !strings.Contains(string(data), " - myapp - INFO - ") {
		t.Errorf("log file missing layout fields, got:\n%s", data)
	}
}

func TestSetupFallsBackToHome(t *testing.T) {
	resetRegistry()
	home := t.TempDir()
	t.Setenv("HOME", home)

	// Requested directory cannot be created: its parent is a regular file.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	requested := filepath.Join(blocker, "logs", "fallback.log")

	Setup(Config{AppName: "fallback", LogFile: requested})

	want := filepath.Join(home, "logs", "fallback.log")
	if got := ResolvedLogFile("fallback"); got != want {
		t.Fatalf("ResolvedLogFile() = %q, want home fallback %q", got, want)
	}
}

func TestSetupIdempotentReinitialization(t *testing.T) {
	resetRegistry()
	logFile := filepath.Join(t.TempDir(), "twice.log")

	Setup(Config{AppName: "twice", LogFile: logFile})
	Setup(Config{AppName: "twice", LogFile: logFile})

	GetLogger("twice").Info("only once please")

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if n := strings.Count(string(data), "only once please"); n != 1 {
		t.Errorf("message logged %d times, want 1:\n%s", n, data)
	}
}

func TestSetupConsoleOnlyWhenFileDisabled(t *testing.T) {
	resetRegistry()

	logger := Setup(Config{AppName: "consoleonly", DisableFile: true})
	if logger == nil {
		t.Fatal("Setup returned nil logger")
	}
	if got := ResolvedLogFile("consoleonly"); got != "" {
		t.Errorf("ResolvedLogFile() = %q, want empty", got)
	}
}

func TestSetupAllSinksDisabledStaysSilent(t *testing.T) {
	resetRegistry()
	if IsJournalAvailable() {
		t.Skip("journal socket present, a sink would remain active")
	}

	logger := Setup(Config{AppName: "muted", DisableConsole: true, DisableFile: true})
	if logger == nil {
		t.Fatal("Setup returned nil logger")
	}
	if logger.Handler().Enabled(context.Background(), slog.LevelError) {
		t.Error("logger has an active sink with console and file disabled")
	}
}

func TestConfigureLevel(t *testing.T) {
	resetRegistry()

	logger := Setup(Config{
		AppName:     "leveled",
		Level:       "info",
		DisableFile: true,
	})

	h := logger.Handler()
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug enabled before Configure")
	}

	if err := Configure("leveled", "debug", ""); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug not enabled after Configure")
	}
}

func TestConfigureUnknownLogger(t *testing.T) {
	resetRegistry()

	err := Configure("nobody", "debug", "")
	if err == nil {
		t.Fatal("expected error for unconfigured logger")
	}
	var unknownErr *UnknownLoggerError
	if !errors.As(err, &unknownErr) {
		t.Errorf("got %T, want *UnknownLoggerError", err)
	}
}

func TestGetLoggerCreatesConsoleOnly(t *testing.T) {
	resetRegistry()

	a := GetLogger("adhoc")
	b := GetLogger("adhoc")
	if a != b {
		t.Error("GetLogger returned different loggers for same name")
	}
}

func TestAppNameDetection(t *testing.T) {
	origArgs := os.Args
	defer func() { os.Args = origArgs }()

	tests := []struct {
		argv0 string
		want  string
	}{
		{"/usr/local/bin/radiod", "radiod"},
		{"./radiod.exe", "radiod"},
		{"radiod", "radiod"},
		{"", "app"},
	}
	for _, tt := range tests {
		os.Args = []string{tt.argv0}
		if got := AppName(); got != tt.want {
			t.Errorf("AppName() with argv0=%q = %q, want %q", tt.argv0, got, tt.want)
		}
	}
}

func TestFileHandlerLayout(t *testing.T) {
	var buf bytes.Buffer
	levelVar := &slog.LevelVar{}
	logger := slog.New(newFileHandler(&buf, "layoutapp", "", levelVar)).With("app", "layoutapp")

	logger.Info("tuning in", "station", "wamu")

	line := buf.String()
	if !strings.Contains(line, " - layoutapp - INFO - tuning in station=wamu") {
		t.Errorf("unexpected line: %q", line)
	}
	if strings.Contains(line, "app=layoutapp") {
		t.Errorf("app attribute should be folded into layout, got: %q", line)
	}
}

func TestFileHandlerCustomLayout(t *testing.T) {
	var buf bytes.Buffer
	levelVar := &slog.LevelVar{}
	h := newFileHandler(&buf, "custom", "{level}|{message}", levelVar)

	slog.New(h).Warn("low disk")

	if got := strings.TrimSpace(buf.String()); got != "WARN|low disk" {
		t.Errorf("got %q, want %q", got, "WARN|low disk")
	}
}

func TestResolveLogFileDoesNotOpenSink(t *testing.T) {
	dir := t.TempDir()
	requested := filepath.Join(dir, "probe.log")

	got, ok := ResolveLogFile(requested, "probe")
	if !ok {
		t.Fatal("ResolveLogFile failed for writable directory")
	}
	if got != requested {
		t.Errorf("ResolveLogFile() = %q, want %q", got, requested)
	}
	// Probing must not create the log file itself.
	if _, err := os.Stat(requested); !os.IsNotExist(err) {
		t.Errorf("probe created the log file: %v", err)
	}
}

func TestResolveLogPathPrefersRequested(t *testing.T) {
	dir := t.TempDir()
	requested := filepath.Join(dir, "sub", "app.log")

	got, ok := resolveLogPath(requested, "app")
	if !ok {
		t.Fatal("resolveLogPath failed for writable directory")
	}
	if got != requested {
		t.Errorf("resolveLogPath() = %q, want %q", got, requested)
	}
	// The marker file must not survive the probe.
	if _, err := os.Stat(filepath.Join(dir, "sub", ".app_write_test")); !os.IsNotExist(err) {
		t.Error("marker file left behind")
	}
}
