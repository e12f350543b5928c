package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultLayout is the line layout used by the file sink.
// Recognized tokens: {time}, {app}, {level}, {message}.
const DefaultLayout = "{time} - {app} - {level} - {message}"

const fileTimeFormat = "2006-01-02 15:04:05,000"

// fileSink serializes writes and holds the mutable layout, shared by all
// handlers derived from one fileHandler via WithAttrs/WithGroup.
type fileSink struct {
	mu     sync.Mutex
	w      io.Writer
	layout string
}

// fileHandler is a slog.Handler that writes classic flat log lines to a file.
type fileHandler struct {
	sink   *fileSink
	app    string
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

func newFileHandler(w io.Writer, app, layout string, level slog.Leveler) *fileHandler {
	if layout == "" {
		layout = DefaultLayout
	}
	return &fileHandler{
		sink:  &fileSink{w: w, layout: layout},
		app:   app,
		level: level,
	}
}

// SetLayout swaps the line layout. Safe to call while logging.
func (h *fileHandler) SetLayout(layout string) {
	h.sink.mu.Lock()
	h.sink.layout = layout
	h.sink.mu.Unlock()
}

// Enabled implements slog.Handler.
func (h *fileHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *fileHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]string)
	for _, a := range h.attrs {
		flattenAttr(attrs, h.groups, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		flattenAttr(attrs, h.groups, a)
		return true
	})

	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()

	line := strings.NewReplacer(
		"{time}", r.Time.Format(fileTimeFormat),
		"{app}", h.app,
		"{level}", r.Level.String(),
		"{message}", r.Message,
	).Replace(h.sink.layout)

	var sb strings.Builder
	sb.WriteString(line)
	if len(attrs) > 0 {
		keys := make([]string, 0, len(attrs))
		for k := range attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(" ")
			sb.WriteString(k)
			sb.WriteString("=")
			sb.WriteString(attrs[k])
		}
	}
	sb.WriteString("\n")

	_, err := io.WriteString(h.sink.w, sb.String())
	return err
}

// flattenAttr extracts a slog.Attr into a flat map with dot-notation keys
// for groups. The app attribute is dropped: it is already in the layout.
func flattenAttr(attrs map[string]string, groups []string, a slog.Attr) {
	if a.Key == "app" || a.Equal(slog.Attr{}) {
		return
	}

	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}

	switch a.Value.Kind() {
	case slog.KindGroup:
		for _, ga := range a.Value.Group() {
			flattenAttr(attrs, append(groups, a.Key), ga)
		}
	case slog.KindTime:
		attrs[key] = a.Value.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		attrs[key] = a.Value.Duration().String()
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			attrs[key] = err.Error()
		} else {
			attrs[key] = fmt.Sprint(a.Value.Any())
		}
	default:
		attrs[key] = a.Value.String()
	}
}

// WithAttrs implements slog.Handler.
func (h *fileHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	copy(newAttrs[len(h.attrs):], attrs)

	return &fileHandler{
		sink:   h.sink,
		app:    h.app,
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

// WithGroup implements slog.Handler.
func (h *fileHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	newGroups := make([]string, len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups[len(h.groups)] = name

	return &fileHandler{
		sink:   h.sink,
		app:    h.app,
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
