package singleton

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGuard(t *testing.T, enum Enumerator) *Guard {
	t.Helper()
	return &Guard{
		AppName:   "radiod-test",
		PIDFile:   filepath.Join(t.TempDir(), "radiod-test.pid"),
		Enumerate: enum,
		logger:    testLogger(),
	}
}

func fixedEnumerator(pids ...int32) Enumerator {
	return func(_ context.Context, _ string) ([]int32, error) {
		return pids, nil
	}
}

func TestAlreadyRunningDetectsOtherPID(t *testing.T) {
	g := newTestGuard(t, fixedEnumerator(int32(os.Getpid()), 99999))
	if !g.AlreadyRunning(context.Background()) {
		t.Error("expected already-running with a foreign PID present")
	}
}

func TestAlreadyRunningIgnoresOwnPID(t *testing.T) {
	g := newTestGuard(t, fixedEnumerator(int32(os.Getpid())))
	if g.AlreadyRunning(context.Background()) {
		t.Error("own PID alone must not count as already running")
	}
}

func TestAlreadyRunningNoMatches(t *testing.T) {
	g := newTestGuard(t, fixedEnumerator())
	if g.AlreadyRunning(context.Background()) {
		t.Error("no matches must not count as already running")
	}
}

func TestAlreadyRunningEnumerationFailure(t *testing.T) {
	g := newTestGuard(t, func(_ context.Context, _ string) ([]int32, error) {
		return nil, errors.New("proc unavailable")
	})
	// Failure to enumerate is treated as "not already running".
	if g.AlreadyRunning(context.Background()) {
		t.Error("enumeration failure must not block startup")
	}
}

func TestAcquireAndRelease(t *testing.T) {
	g := newTestGuard(t, fixedEnumerator())

	ok, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !ok {
		t.Fatal("Acquire returned false on a free PID file")
	}

	data, err := os.ReadFile(g.PIDFile)
	if err != nil {
		t.Fatalf("reading PID file: %v", err)
	}
	if len(data) == 0 {
		t.Error("PID file is empty")
	}

	g.Release()
	if _, err := os.Stat(g.PIDFile); !os.IsNotExist(err) {
		t.Error("PID file survived Release")
	}
}

func TestAcquireReclaimsStalePIDFile(t *testing.T) {
	g := newTestGuard(t, fixedEnumerator())

	// A PID that cannot be alive: pid_max on Linux caps at 2^22.
	if err := os.WriteFile(g.PIDFile, []byte("99999999\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ok, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !ok {
		t.Fatal("Acquire should reclaim a stale PID file")
	}
}

func TestAcquireRefusesLiveHolder(t *testing.T) {
	g := newTestGuard(t, fixedEnumerator())

	// The parent test process is definitely alive.
	other := os.Getppid()
	if err := os.WriteFile(g.PIDFile, []byte(strconv.Itoa(other)+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ok, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if ok {
		t.Error("Acquire must refuse a PID file held by a live process")
	}
}
