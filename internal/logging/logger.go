package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Config controls how a named logger is set up.
// The zero value enables console and file output at info level.
type Config struct {
	AppName        string // logger name; detected from the invoking binary when empty
	LogFile        string // explicit log file; defaults to <install-root>/logs/<app>.log
	Level          string // debug, info, warn, error
	Format         string // console format: text or json
	Layout         string // file line layout, see DefaultLayout
	DisableConsole bool
	DisableFile    bool
}

// registration tracks the live sinks for one named logger so that a
// repeated Setup can tear them down instead of stacking duplicates.
type registration struct {
	logger   *slog.Logger
	levelVar *slog.LevelVar
	fileH    *fileHandler
	file     *os.File
	path     string // resolved log file, empty when file output is disabled
}

var (
	mutex    sync.RWMutex
	registry = make(map[string]*registration)
)

// Setup configures and returns the logger for cfg.AppName.
//
// Output goes to stdout (text or json), to the systemd journal when one is
// listening, and to a log file resolved through a fallback chain of writable
// directories. If no directory in the chain is writable, file output is
// silently disabled and the logger still works. Calling Setup again for the
// same name replaces the previous sinks, so re-initialization never produces
// duplicate log lines.
func Setup(cfg Config) *slog.Logger {
	name := cfg.AppName
	if name == "" {
		name = AppName()
	}

	levelVar := &slog.LevelVar{}
	if parsed := parseLevel(cfg.Level); parsed != nil {
		levelVar.Set(*parsed)
	}

	var handlers []slog.Handler

	if !cfg.DisableConsole && isStdoutAvailable() {
		opts := &slog.HandlerOptions{Level: levelVar}
		if cfg.Format == "json" {
			handlers = append(handlers, slog.NewJSONHandler(os.Stdout, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stdout, opts))
		}
	}

	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(name, levelVar))
	}

	var fileH *fileHandler
	var logFile *os.File
	var resolved string
	if !cfg.DisableFile {
		requested := cfg.LogFile
		if requested == "" {
			requested = defaultLogFile(name)
		}
		if path, ok := resolveLogPath(requested, name); ok {
			f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err == nil {
				logFile = f
				resolved = path
				fileH = newFileHandler(f, name, cfg.Layout, levelVar)
				handlers = append(handlers, fileH)
			}
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		// No sink came up. Stdout only comes back if the caller did not
		// turn the console off; otherwise the logger stays valid but silent.
		if cfg.DisableConsole {
			handler = slog.DiscardHandler
		} else {
			handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: levelVar})
		}
	case 1:
		handler = handlers[0]
	default:
		handler = NewMultiHandler(handlers...)
	}

	logger := slog.New(handler).With("app", name)

	mutex.Lock()
	if prev, exists := registry[name]; exists && prev.file != nil {
		prev.file.Close()
	}
	registry[name] = &registration{
		logger:   logger,
		levelVar: levelVar,
		fileH:    fileH,
		file:     logFile,
		path:     resolved,
	}
	mutex.Unlock()

	slog.SetDefault(logger)

	if resolved != "" {
		logger.Info("Logging initialized", "log_file", resolved)
	} else {
		logger.Info("Logging initialized (console only)")
	}

	return logger
}

// GetLogger returns the logger registered under name, creating a
// console-only logger at info level if Setup has not run for it.
// An empty name uses the detected application name.
func GetLogger(name string) *slog.Logger {
	if name == "" {
		name = AppName()
	}

	mutex.RLock()
	if reg, exists := registry[name]; exists {
		mutex.RUnlock()
		return reg.logger
	}
	mutex.RUnlock()

	mutex.Lock()
	defer mutex.Unlock()
	if reg, exists := registry[name]; exists {
		return reg.logger
	}

	levelVar := &slog.LevelVar{}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: levelVar})).With("app", name)
	registry[name] = &registration{logger: logger, levelVar: levelVar}
	return logger
}

// Configure updates the level and file layout of an already-configured
// logger in place. Enabling or disabling sinks is not supported here;
// call Setup again for that.
func Configure(name, level, layout string) error {
	mutex.RLock()
	reg, exists := registry[name]
	mutex.RUnlock()
	if !exists {
		return &UnknownLoggerError{Name: name}
	}

	if parsed := parseLevel(level); parsed != nil {
		reg.levelVar.Set(*parsed)
	}
	if layout != "" && reg.fileH != nil {
		reg.fileH.SetLayout(layout)
	}
	return nil
}

// ResolvedLogFile returns the log file path the named logger writes to,
// or empty when file output is disabled.
func ResolvedLogFile(name string) string {
	mutex.RLock()
	defer mutex.RUnlock()
	if reg, exists := registry[name]; exists {
		return reg.path
	}
	return ""
}

// UnknownLoggerError reports a Configure call for a name Setup never saw.
type UnknownLoggerError struct {
	Name string
}

func (e *UnknownLoggerError) Error() string {
	return "logging: no logger configured for " + e.Name
}

// AppName derives the application name from the invoking binary,
// with the extension stripped. Falls back to "app".
func AppName() string {
	if len(os.Args) == 0 || os.Args[0] == "" {
		return "app"
	}
	base := filepath.Base(os.Args[0])
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." {
		return "app"
	}
	return base
}

// defaultLogFile is <install-root>/logs/<app>.log, where the install root
// is the directory holding the binary. Relative to the working directory
// when the executable path cannot be determined.
func defaultLogFile(app string) string {
	if exe, err := os.Executable(); err == nil {
		return filepath.Join(filepath.Dir(exe), "logs", app+".log")
	}
	return filepath.Join("logs", app+".log")
}

// isStdoutAvailable checks if stdout is connected to a terminal, pipe, socket, or file.
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return (mode&os.ModeCharDevice) != 0 || (mode&os.ModeNamedPipe) != 0 || (mode&os.ModeSocket) != 0 || mode.IsRegular()
}

// parseLevel converts string level to slog.Level.
func parseLevel(level string) *slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		l := slog.LevelDebug
		return &l
	case "info":
		l := slog.LevelInfo
		return &l
	case "warn", "warning":
		l := slog.LevelWarn
		return &l
	case "error":
		l := slog.LevelError
		return &l
	default:
		return nil
	}
}
