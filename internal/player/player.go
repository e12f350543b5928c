// Package player selects which external audio player binary handles the
// stream and builds its command line.
package player

import (
	"errors"
	"log/slog"
	"os/exec"
	"strings"
)

// StreamURL is the stream this daemon exists to play. There is no input
// for an alternate URL.
const StreamURL = "https://wamu.cdnstream1.com/wamu.mp3"

// InstallHint is logged when no candidate resolves.
const InstallHint = "Please install one of: mpg123, ffplay, mpv, mplayer, or vlc"

// ErrNoPlayer is returned when no candidate binary resolves on PATH.
var ErrNoPlayer = errors.New("no suitable audio player found")

// Candidate is one external playback command: a binary name plus its
// fixed invocation flags. Candidates are tried in list order.
type Candidate struct {
	Name string   `toml:"name"`
	Args []string `toml:"args"`
}

// DefaultCandidates returns the built-in preference order. The list can
// be reordered or extended through the [player] section of the config
// file; ordering is configuration, not code.
func DefaultCandidates() []Candidate {
	return []Candidate{
		{Name: "mpg123"},
		{Name: "ffplay", Args: []string{"-nodisp", "-autoexit"}},
	}
}

// Selection is a resolved player ready to launch.
type Selection struct {
	Candidate Candidate
	Command   string
}

// Availability reports whether one candidate's binary resolves on PATH.
type Availability struct {
	Candidate Candidate
	Path      string
	Err       error
}

// Selector picks the first available candidate. LookPath is swappable
// for tests; it defaults to exec.LookPath.
type Selector struct {
	LookPath func(file string) (string, error)
	logger   *slog.Logger
}

// NewSelector creates a Selector probing the real PATH.
func NewSelector(logger *slog.Logger) *Selector {
	return &Selector{
		LookPath: exec.LookPath,
		logger:   logger,
	}
}

// Select returns the first candidate whose binary resolves, with the
// stream URL appended as the final argument. Returns ErrNoPlayer when
// every candidate fails resolution.
func (s *Selector) Select(candidates []Candidate, streamURL string) (*Selection, error) {
	for _, c := range candidates {
		if _, err := s.LookPath(c.Name); err != nil {
			s.logger.Debug("Player not available", "player", c.Name, "error", err)
			continue
		}
		s.logger.Info("Found audio player", "player", c.Name)
		return &Selection{
			Candidate: c,
			Command:   BuildCommand(c, streamURL),
		}, nil
	}
	return nil, ErrNoPlayer
}

// Probe reports availability for every candidate, in list order.
// Used by the doctor command.
func (s *Selector) Probe(candidates []Candidate) []Availability {
	results := make([]Availability, 0, len(candidates))
	for _, c := range candidates {
		path, err := s.LookPath(c.Name)
		results = append(results, Availability{Candidate: c, Path: path, Err: err})
	}
	return results
}

// BuildCommand joins a candidate's invocation with the stream URL as the
// last argument.
func BuildCommand(c Candidate, streamURL string) string {
	parts := make([]string, 0, len(c.Args)+2)
	parts = append(parts, c.Name)
	parts = append(parts, c.Args...)
	parts = append(parts, streamURL)
	return strings.Join(parts, " ")
}
