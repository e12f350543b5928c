// Package metrics exposes playback health as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smazurov/radiod/internal/events"
)

// Recorder owns the metric registry and keeps it updated from bus events.
type Recorder struct {
	registry *prometheus.Registry

	playerState  *prometheus.GaugeVec
	playerExits  *prometheus.CounterVec
	playerStarts prometheus.Counter
	sinkProbes   prometheus.Counter

	unsubscribe []func()
}

// NewRecorder creates a Recorder subscribed to the given bus.
func NewRecorder(bus *events.Bus) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		playerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "radiod_player_state",
			Help: "Current player lifecycle state (1 for the active state).",
		}, []string{"state"}),
		playerExits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radiod_player_exits_total",
			Help: "Player process exits by exit code.",
		}, []string{"code"}),
		playerStarts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "radiod_player_starts_total",
			Help: "Player process launches.",
		}),
		sinkProbes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "radiod_sink_probes_total",
			Help: "Bluetooth sink probes while waiting for an audio sink.",
		}),
	}

	r.registry.MustRegister(r.playerState, r.playerExits, r.playerStarts, r.sinkProbes)

	r.unsubscribe = append(r.unsubscribe,
		bus.Subscribe(r.onPlayerState),
		bus.Subscribe(r.onSinkWait),
	)
	return r
}

func (r *Recorder) onPlayerState(e events.PlayerStateEvent) {
	for _, s := range []events.PlayerState{
		events.PlayerStarting, events.PlayerRunning, events.PlayerStopped, events.PlayerFailed,
	} {
		v := 0.0
		if s == e.State {
			v = 1.0
		}
		r.playerState.WithLabelValues(string(s)).Set(v)
	}

	switch e.State {
	case events.PlayerRunning:
		r.playerStarts.Inc()
	case events.PlayerStopped, events.PlayerFailed:
		r.playerExits.WithLabelValues(strconv.Itoa(e.ExitCode)).Inc()
	}
}

func (r *Recorder) onSinkWait(_ events.SinkWaitEvent) {
	r.sinkProbes.Inc()
}

// Handler serves the registry in Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Close detaches the recorder from the bus.
func (r *Recorder) Close() {
	for _, unsub := range r.unsubscribe {
		unsub()
	}
}

// Server serves the metrics endpoint when a listen address is configured.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer creates a metrics HTTP server for the recorder.
func NewServer(listen string, recorder *Recorder, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())
	return &Server{
		srv:    &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		logger: logger,
	}
}

// Start serves in the background. Errors other than a clean close are logged.
func (s *Server) Start() {
	s.logger.Info("Metrics listener started", "addr", s.srv.Addr)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("Metrics listener failed", "error", err)
		}
	}()
}

// Stop shuts the listener down.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}
