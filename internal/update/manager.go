// Package update checks a GitHub release feed for newer application
// versions and applies them in place: download, extract, validate, back
// up the install dir, copy over, write the version file. A failed apply
// restores the backup.
package update

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/AshyBoy91/jetsonazure/internal/ports"
)

const (
	defaultAPIBaseURL    = "https://api.github.com"
	defaultCheckInterval = time.Hour
	defaultHTTPTimeout   = 2 * time.Minute
	defaultVersionFile   = "version.txt"
	defaultBackupDirName = "backups"
)

// Config describes where releases come from and where the application
// lives on disk.
type Config struct {
	Repo          string        `yaml:"repo"`
	Token         string        `yaml:"token"`
	InstallDir    string        `yaml:"install_dir"`
	VersionFile   string        `yaml:"version_file"`
	BackupDir     string        `yaml:"backup_dir"`
	AutoUpdate    bool          `yaml:"auto_update"`
	CheckInterval time.Duration `yaml:"check_interval"`
	RequiredFiles []string      `yaml:"required_files"`
	APIBaseURL    string        `yaml:"api_base_url"`
	HTTPTimeout   time.Duration `yaml:"http_timeout"`
}

func (c *Config) ApplyDefaults() {
	if c.InstallDir == "" {
		c.InstallDir = "."
	}
	if c.VersionFile == "" {
		c.VersionFile = filepath.Join(c.InstallDir, defaultVersionFile)
	}
	if c.BackupDir == "" {
		c.BackupDir = filepath.Join(c.InstallDir, defaultBackupDirName)
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = defaultCheckInterval
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = defaultAPIBaseURL
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = defaultHTTPTimeout
	}
}

// ReleaseInfo is the subset of the GitHub release object the manager
// consumes.
type ReleaseInfo struct {
	TagName     string `json:"tag_name"`
	Body        string `json:"body"`
	PublishedAt string `json:"published_at"`
	ZipballURL  string `json:"zipball_url"`
}

// ApplyResult reports the outcome of one apply attempt.
type ApplyResult struct {
	Status          string `json:"status"`
	Message         string `json:"message"`
	NewVersion      string `json:"new_version,omitempty"`
	RestartRequired bool   `json:"restart_required,omitempty"`
}

// CheckResult reports the outcome of one update check.
type CheckResult struct {
	UpdateAvailable bool         `json:"update_available"`
	CurrentVersion  string       `json:"current_version"`
	LatestVersion   string       `json:"latest_version,omitempty"`
	ReleaseNotes    string       `json:"release_notes,omitempty"`
	PublishedAt     string       `json:"published_at,omitempty"`
	DownloadURL     string       `json:"download_url,omitempty"`
	Message         string       `json:"message,omitempty"`
	Applied         *ApplyResult `json:"apply,omitempty"`
}

// FirmwarePayload is the body of an update_firmware method request.
type FirmwarePayload struct {
	UpdateURL string `json:"update_url"`
	Version   string `json:"version"`
	Force     bool   `json:"force"`
}

// FirmwareResult is the response to an update_firmware request.
type FirmwareResult struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	CurrentVersion string `json:"current_version"`
	TargetVersion  string `json:"target_version,omitempty"`
}

// Status is a point-in-time snapshot of the manager.
type Status struct {
	CurrentVersion    string `json:"current_version"`
	AutoUpdateEnabled bool   `json:"auto_update_enabled"`
	UpdateInProgress  bool   `json:"update_in_progress"`
	Repo              string `json:"github_repo"`
	LastCheck         string `json:"last_check,omitempty"`
}

type Manager struct {
	cfg    Config
	obs    ports.Observability
	client *http.Client

	mu         sync.Mutex
	version    string
	autoUpdate bool
	inProgress bool
	lastCheck  time.Time
}

func NewManager(cfg Config, obs ports.Observability) *Manager {
	cfg.ApplyDefaults()
	m := &Manager{
		cfg:        cfg,
		obs:        obs,
		client:     &http.Client{Timeout: cfg.HTTPTimeout},
		autoUpdate: cfg.AutoUpdate,
	}
	m.version = m.readCurrentVersion()
	return m
}

func (m *Manager) CurrentVersion() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

func (m *Manager) SetAutoUpdate(enabled bool) {
	m.mu.Lock()
	m.autoUpdate = enabled
	m.mu.Unlock()
	m.logInfo("auto-update toggled", ports.Field{Key: "enabled", Value: enabled})
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Status{
		CurrentVersion:    m.version,
		AutoUpdateEnabled: m.autoUpdate,
		UpdateInProgress:  m.inProgress,
		Repo:              m.cfg.Repo,
	}
	if !m.lastCheck.IsZero() {
		s.LastCheck = m.lastCheck.UTC().Format(time.RFC3339)
	}
	return s
}

// CheckForUpdates queries the release feed and, when auto-update is
// enabled and a newer tag exists, applies it. An apply failure is
// reported inside the result so the availability information survives.
func (m *Manager) CheckForUpdates(ctx context.Context) (CheckResult, error) {
	if m.cfg.Repo == "" {
		return CheckResult{}, fmt.Errorf("update repository not configured")
	}

	m.mu.Lock()
	if m.inProgress {
		m.mu.Unlock()
		return CheckResult{CurrentVersion: m.version, Message: "update in progress"}, nil
	}
	m.lastCheck = time.Now()
	current := m.version
	auto := m.autoUpdate
	m.mu.Unlock()

	rel, err := m.fetchLatestRelease(ctx)
	if err != nil {
		return CheckResult{}, fmt.Errorf("fetch release info: %w", err)
	}

	if rel.TagName == "" || rel.TagName == current {
		return CheckResult{
			UpdateAvailable: false,
			CurrentVersion:  current,
			Message:         "application is up to date",
		}, nil
	}

	m.logInfo("update available",
		ports.Field{Key: "current", Value: current},
		ports.Field{Key: "latest", Value: rel.TagName})

	res := CheckResult{
		UpdateAvailable: true,
		CurrentVersion:  current,
		LatestVersion:   rel.TagName,
		ReleaseNotes:    rel.Body,
		PublishedAt:     rel.PublishedAt,
		DownloadURL:     rel.ZipballURL,
	}

	if auto {
		applied, err := m.applyFromURL(ctx, rel.ZipballURL, rel.TagName)
		if err != nil {
			m.logError("auto-update failed", err)
			res.Applied = &ApplyResult{Status: "error", Message: err.Error()}
		} else {
			res.Applied = &applied
		}
	}
	return res, nil
}

// HandleFirmwareUpdate serves the update_firmware direct method.
func (m *Manager) HandleFirmwareUpdate(ctx context.Context, payload FirmwarePayload) (FirmwareResult, error) {
	if payload.UpdateURL == "" {
		return FirmwareResult{}, fmt.Errorf("no update URL provided")
	}

	current := m.CurrentVersion()
	if !payload.Force && payload.Version != "" && payload.Version == current {
		return FirmwareResult{
			Status:         "skipped",
			Message:        "already at requested version",
			CurrentVersion: current,
		}, nil
	}

	version := payload.Version
	if version == "" {
		version = "unknown"
	}
	m.logInfo("manual update requested",
		ports.Field{Key: "url", Value: payload.UpdateURL},
		ports.Field{Key: "version", Value: version})

	applied, err := m.applyFromURL(ctx, payload.UpdateURL, version)
	if err != nil {
		return FirmwareResult{}, err
	}
	return FirmwareResult{
		Status:         applied.Status,
		Message:        applied.Message,
		CurrentVersion: m.CurrentVersion(),
		TargetVersion:  version,
	}, nil
}

// RunCheckLoop checks on the configured interval until ctx is cancelled.
func (m *Manager) RunCheckLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.CheckForUpdates(ctx); err != nil {
				m.logError("update check failed", err)
			}
		}
	}
}

func (m *Manager) fetchLatestRelease(ctx context.Context) (ReleaseInfo, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", strings.TrimRight(m.cfg.APIBaseURL, "/"), m.cfg.Repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ReleaseInfo{}, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if m.cfg.Token != "" {
		req.Header.Set("Authorization", "token "+m.cfg.Token)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return ReleaseInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ReleaseInfo{}, fmt.Errorf("release API returned %d", resp.StatusCode)
	}

	var rel ReleaseInfo
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return ReleaseInfo{}, fmt.Errorf("decode release info: %w", err)
	}
	return rel, nil
}

// applyFromURL runs the full update sequence for one zipball.
func (m *Manager) applyFromURL(ctx context.Context, url, version string) (ApplyResult, error) {
	m.mu.Lock()
	if m.inProgress {
		m.mu.Unlock()
		return ApplyResult{}, fmt.Errorf("update already in progress")
	}
	m.inProgress = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.inProgress = false
		m.mu.Unlock()
	}()

	if url == "" {
		return ApplyResult{}, fmt.Errorf("no download URL found")
	}

	tmp, err := os.MkdirTemp("", "edge-update-*")
	if err != nil {
		return ApplyResult{}, err
	}
	defer os.RemoveAll(tmp)

	zipPath := filepath.Join(tmp, "update.zip")
	if err := m.download(ctx, url, zipPath); err != nil {
		return ApplyResult{}, fmt.Errorf("download update: %w", err)
	}

	extractDir := filepath.Join(tmp, "extracted")
	contentRoot, err := extractZip(zipPath, extractDir)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("extract update: %w", err)
	}
	if err := m.validateContent(contentRoot); err != nil {
		return ApplyResult{}, err
	}

	backupPath, err := m.createBackup()
	if err != nil {
		return ApplyResult{}, fmt.Errorf("create backup: %w", err)
	}

	if err := m.applyContent(contentRoot); err != nil {
		m.logError("apply failed, restoring backup", err)
		if rerr := m.restoreBackup(backupPath); rerr != nil {
			return ApplyResult{}, fmt.Errorf("apply failed (%v) and restore failed: %w", err, rerr)
		}
		return ApplyResult{}, fmt.Errorf("apply update: %w", err)
	}

	if err := m.writeVersion(version); err != nil {
		return ApplyResult{}, fmt.Errorf("write version file: %w", err)
	}

	m.logInfo("update applied", ports.Field{Key: "version", Value: version})
	return ApplyResult{
		Status:          "success",
		Message:         "update completed successfully",
		NewVersion:      version,
		RestartRequired: true,
	}, nil
}

func (m *Manager) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if m.cfg.Token != "" {
		req.Header.Set("Authorization", "token "+m.cfg.Token)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return err
	}
	return f.Sync()
}

func (m *Manager) validateContent(root string) error {
	for _, name := range m.cfg.RequiredFiles {
		if _, err := os.Stat(filepath.Join(root, name)); err != nil {
			return fmt.Errorf("required file missing from update: %s", name)
		}
	}
	return nil
}

func (m *Manager) createBackup() (string, error) {
	if err := os.MkdirAll(m.cfg.BackupDir, 0o755); err != nil {
		return "", err
	}
	backupPath := filepath.Join(m.cfg.BackupDir, "backup_"+time.Now().Format("20060102_150405"))
	if err := copyTree(m.cfg.InstallDir, backupPath, m.skipDuringCopy); err != nil {
		return "", err
	}
	m.logInfo("backup created", ports.Field{Key: "path", Value: backupPath})
	return backupPath, nil
}

func (m *Manager) applyContent(root string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if m.skipDuringCopy(e.Name()) {
			continue
		}
		src := filepath.Join(root, e.Name())
		dst := filepath.Join(m.cfg.InstallDir, e.Name())
		if e.IsDir() {
			if err := os.RemoveAll(dst); err != nil {
				return err
			}
			if err := copyTree(src, dst, m.skipDuringCopy); err != nil {
				return err
			}
		} else if err := copyFile(src, dst); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) restoreBackup(backupPath string) error {
	entries, err := os.ReadDir(backupPath)
	if err != nil {
		return err
	}
	for _, e := range entries {
		src := filepath.Join(backupPath, e.Name())
		dst := filepath.Join(m.cfg.InstallDir, e.Name())
		if err := os.RemoveAll(dst); err != nil {
			return err
		}
		if e.IsDir() {
			if err := copyTree(src, dst, nil); err != nil {
				return err
			}
		} else if err := copyFile(src, dst); err != nil {
			return err
		}
	}
	m.logInfo("backup restored", ports.Field{Key: "path", Value: backupPath})
	return nil
}

// skipDuringCopy keeps backups, VCS state, and logs out of backups and
// applied trees.
func (m *Manager) skipDuringCopy(name string) bool {
	switch name {
	case defaultBackupDirName, ".git", ".env":
		return true
	}
	return strings.HasSuffix(name, ".log")
}

func (m *Manager) readCurrentVersion() string {
	if b, err := os.ReadFile(m.cfg.VersionFile); err == nil {
		if v := strings.TrimSpace(string(b)); v != "" {
			return v
		}
	}
	// fall back to the checked-out revision when running from a clone
	cmd := exec.Command("git", "rev-parse", "--short", "HEAD")
	cmd.Dir = m.cfg.InstallDir
	if out, err := cmd.Output(); err == nil {
		if v := strings.TrimSpace(string(out)); v != "" {
			return v
		}
	}
	return "unknown"
}

func (m *Manager) writeVersion(version string) error {
	if err := os.WriteFile(m.cfg.VersionFile, []byte(version), 0o644); err != nil {
		return err
	}
	m.mu.Lock()
	m.version = version
	m.mu.Unlock()
	return nil
}

func (m *Manager) logInfo(msg string, fields ...ports.Field) {
	if m.obs != nil {
		m.obs.LogInfo(msg, fields...)
	}
}

func (m *Manager) logError(msg string, err error, fields ...ports.Field) {
	if m.obs != nil {
		m.obs.LogError(msg, err, fields...)
	}
}

// extractZip unpacks src into dest and returns the content root. Release
// zipballs wrap everything in a single top-level directory; when that is
// the case the inner directory is the root.
func extractZip(src, dest string) (string, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return "", err
	}
	defer r.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", err
	}

	for _, f := range r.File {
		target := filepath.Join(dest, filepath.Clean(f.Name))
		if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
			return "", fmt.Errorf("archive entry escapes destination: %s", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return "", err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return "", err
		}
		if err := writeZipEntry(f, target); err != nil {
			return "", err
		}
	}

	entries, err := os.ReadDir(dest)
	if err != nil {
		return "", err
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dest, entries[0].Name()), nil
	}
	return dest, nil
}

func writeZipEntry(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, rc)
	return err
}

func copyTree(src, dst string, skip func(string) bool) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	for _, e := range entries {
		if skip != nil && skip(e.Name()) {
			continue
		}
		s := filepath.Join(src, e.Name())
		d := filepath.Join(dst, e.Name())
		if e.IsDir() {
			if err := copyTree(s, d, skip); err != nil {
				return err
			}
		} else if err := copyFile(s, d); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
