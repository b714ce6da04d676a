package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// App contains installation-wide identity settings.
type App struct {
	Name     string `toml:"name"`
	BaseURL  string `toml:"base_url"`
	Language string `toml:"language"`
}

// Paths contains storage directory configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	AudioDir  string `toml:"audio_dir"`
	ImagesDir string `toml:"images_dir"`
	LogDir    string `toml:"log_dir"`
}

// Upload contains limits applied to incoming audio files.
type Upload struct {
	MaxFileSize       int64    `toml:"max_file_size"`
	AllowedTypes      []string `toml:"allowed_types"`
	AllowedExtensions []string `toml:"allowed_extensions"`
}

// Feed contains defaults for new feeds and RSS output limits.
type Feed struct {
	DefaultLanguage   string `toml:"default_language"`
	DefaultExplicit   bool   `toml:"default_explicit"`
	MaxEpisodesInFeed int    `toml:"max_episodes_in_feed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Notifications contains ntfy push settings. An empty topic disables pushes.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// RolePermissions is one row of the role capability table.
type RolePermissions struct {
	Level             int  `toml:"level"`
	CanUpload         bool `toml:"can_upload"`
	CanEdit           bool `toml:"can_edit"`
	CanDelete         bool `toml:"can_delete"`
	CanInvite         bool `toml:"can_invite"`
	CanManageSettings bool `toml:"can_manage_settings"`
	CanDeleteFeed     bool `toml:"can_delete_feed"`
}

// Config encapsulates all configuration values for LauschR.
//
// Configuration sections by subsystem:
//   - App: display name, public base URL, UI language
//   - Paths: data, audio, image, and log directories
//   - Upload: size and type limits for episode audio
//   - Feed: defaults for new feeds and RSS item limits
//   - Logging: log format and level
//   - Notifications: ntfy topic for publish and registration events
//   - Permissions: role capability table keyed by role name
type Config struct {
	App           App                        `toml:"app"`
	Paths         Paths                      `toml:"paths"`
	Upload        Upload                     `toml:"upload"`
	Feed          Feed                       `toml:"feed"`
	Logging       Logging                    `toml:"logging"`
	Notifications Notifications              `toml:"notifications"`
	Permissions   map[string]RolePermissions `toml:"permissions"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		// Roles present in the file replace the default row wholesale;
		// missing roles are restored by normalize.
		cfg.Permissions = nil
		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("lauschr.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the storage directories the services write into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.FeedsDir(), c.IndexDir(), c.Paths.AudioDir, c.Paths.ImagesDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FeedsDir returns the directory holding one JSON document per feed.
func (c *Config) FeedsDir() string {
	return filepath.Join(c.Paths.DataDir, "feeds")
}

// IndexDir returns the directory holding the SQLite indexes.
func (c *Config) IndexDir() string {
	return filepath.Join(c.Paths.DataDir, "index")
}

// SlugIndexPath returns the SQLite database used for slug reservations.
func (c *Config) SlugIndexPath() string {
	return filepath.Join(c.IndexDir(), "slugs.db")
}

// FeedAudioDir returns the directory holding audio files for a single feed.
func (c *Config) FeedAudioDir(feedID string) string {
	return filepath.Join(c.Paths.AudioDir, feedID)
}

// AudioURL returns the public URL for an audio file belonging to a feed.
func (c *Config) AudioURL(feedID, fileName string) string {
	return c.App.BaseURL + "/audio/" + feedID + "/" + fileName
}

// AllowsExtension reports whether ext (with or without a leading dot) is accepted for uploads.
func (c *Config) AllowsExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	for _, allowed := range c.Upload.AllowedExtensions {
		if allowed == ext {
			return true
		}
	}
	return false
}

// AllowsType reports whether a sniffed MIME type is accepted for uploads.
func (c *Config) AllowsType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	for _, allowed := range c.Upload.AllowedTypes {
		if allowed == mimeType {
			return true
		}
	}
	return false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
