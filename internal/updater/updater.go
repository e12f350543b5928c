// Package updater applies in-place binary updates from GitHub releases.
package updater

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/smazurov/radiod/internal/logging"
	"github.com/smazurov/radiod/internal/version"
)

// Options configures the update service.
type Options struct {
	// Repository is the GitHub slug, e.g. "smazurov/radiod".
	Repository string
	// Prerelease allows updating to prerelease versions.
	Prerelease bool
}

// UpdateInfo describes the result of an update check.
type UpdateInfo struct {
	CurrentVersion  string
	LatestVersion   string
	ReleaseNotes    string
	ReleaseURL      string
	PublishedAt     time.Time
	UpdateAvailable bool
}

// Service checks for and applies updates to the running binary.
type Service struct {
	repository selfupdate.Repository
	updater    *selfupdate.Updater

	enabled        bool
	disabledReason string

	latestRelease *selfupdate.Release

	logger *slog.Logger
}

// New creates an update service. A service whose binary location is not
// writable is returned disabled rather than failing, so callers can
// still report why updates are unavailable.
func New(opts Options) (*Service, error) {
	logger := logging.GetLogger("updater")

	canWrite, reason := checkWritePermission()
	if !canWrite {
		logger.Warn("Update service disabled", "reason", reason)
		return &Service{enabled: false, disabledReason: reason, logger: logger}, nil
	}

	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub source: %w", err)
	}

	updater, err := selfupdate.NewUpdater(selfupdate.Config{
		Source:     source,
		Prerelease: opts.Prerelease,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create updater: %w", err)
	}

	return &Service{
		repository: selfupdate.ParseSlug(opts.Repository),
		updater:    updater,
		enabled:    true,
		logger:     logger,
	}, nil
}

func checkWritePermission() (bool, string) {
	exe, err := os.Executable()
	if err != nil {
		return false, fmt.Sprintf("failed to get executable path: %v", err)
	}

	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return false, fmt.Sprintf("failed to resolve symlinks: %v", err)
	}

	dir := filepath.Dir(exe)
	tmp := filepath.Join(dir, ".radiod.update.test")
	f, err := os.Create(tmp)
	if err != nil {
		return false, fmt.Sprintf("no write permission to %s: %v", dir, err)
	}
	f.Close()
	os.Remove(tmp)
	return true, ""
}

// IsEnabled reports whether the service can apply updates.
func (s *Service) IsEnabled() bool {
	return s.enabled
}

// DisabledReason returns why updates are unavailable, or empty.
func (s *Service) DisabledReason() string {
	return s.disabledReason
}

// Check queries GitHub for the latest release and compares it against
// the running version without downloading anything.
func (s *Service) Check(ctx context.Context) (*UpdateInfo, error) {
	if !s.enabled {
		return nil, fmt.Errorf("updates disabled: %s", s.disabledReason)
	}

	current := version.Version

	release, found, err := s.updater.DetectLatest(ctx, s.repository)
	if err != nil {
		return nil, fmt.Errorf("failed to check for updates: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("repository has no releases")
	}

	// A dev build is always considered outdated.
	isNewer := current == "dev" || release.GreaterThan(current)
	info := &UpdateInfo{
		CurrentVersion:  current,
		LatestVersion:   release.Version(),
		UpdateAvailable: isNewer,
	}
	if isNewer {
		info.ReleaseNotes = release.ReleaseNotes
		info.ReleaseURL = release.URL
		info.PublishedAt = release.PublishedAt
		s.latestRelease = release
	}
	return info, nil
}

// Apply downloads the latest release and replaces the running binary.
// Check is run first when no release has been detected yet.
func (s *Service) Apply(ctx context.Context) error {
	if !s.enabled {
		return fmt.Errorf("updates disabled: %s", s.disabledReason)
	}

	if s.latestRelease == nil {
		info, err := s.Check(ctx)
		if err != nil {
			return err
		}
		if !info.UpdateAvailable {
			return fmt.Errorf("no update available, already on %s", info.CurrentVersion)
		}
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	if err := s.updater.UpdateTo(ctx, s.latestRelease, exe); err != nil {
		return fmt.Errorf("failed to apply update: %w", err)
	}

	s.logger.Info("Update applied", "version", s.latestRelease.Version())
	return nil
}
