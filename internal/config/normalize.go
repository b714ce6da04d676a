package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeApp()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeUpload()
	c.normalizeFeed()
	c.normalizeLogging()
	c.normalizeNotifications()
	c.normalizePermissions()
	return nil
}

func (c *Config) normalizeApp() {
	c.App.Name = strings.TrimSpace(c.App.Name)
	if c.App.Name == "" {
		c.App.Name = defaultAppName
	}
	c.App.BaseURL = strings.TrimSpace(c.App.BaseURL)
	if value, ok := os.LookupEnv("LAUSCHR_BASE_URL"); ok && strings.TrimSpace(value) != "" {
		c.App.BaseURL = strings.TrimSpace(value)
	}
	if c.App.BaseURL == "" {
		c.App.BaseURL = defaultBaseURL
	}
	c.App.BaseURL = strings.TrimRight(c.App.BaseURL, "/")
	c.App.Language = strings.ToLower(strings.TrimSpace(c.App.Language))
	if c.App.Language == "" {
		c.App.Language = defaultLanguage
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if value, ok := os.LookupEnv("LAUSCHR_DATA_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.DataDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.AudioDir) == "" {
		c.Paths.AudioDir = filepath.Join(c.Paths.DataDir, "audio")
	}
	if c.Paths.AudioDir, err = expandPath(c.Paths.AudioDir); err != nil {
		return fmt.Errorf("paths.audio_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ImagesDir) == "" {
		c.Paths.ImagesDir = filepath.Join(c.Paths.DataDir, "images")
	}
	if c.Paths.ImagesDir, err = expandPath(c.Paths.ImagesDir); err != nil {
		return fmt.Errorf("paths.images_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeUpload() {
	if c.Upload.MaxFileSize <= 0 {
		c.Upload.MaxFileSize = defaultMaxFileSize
	}
	c.Upload.AllowedTypes = normalizeList(c.Upload.AllowedTypes, "")
	if len(c.Upload.AllowedTypes) == 0 {
		c.Upload.AllowedTypes = defaultAllowedTypes()
	}
	c.Upload.AllowedExtensions = normalizeList(c.Upload.AllowedExtensions, ".")
	if len(c.Upload.AllowedExtensions) == 0 {
		c.Upload.AllowedExtensions = defaultAllowedExtensions()
	}
}

func (c *Config) normalizeFeed() {
	c.Feed.DefaultLanguage = strings.ToLower(strings.TrimSpace(c.Feed.DefaultLanguage))
	if c.Feed.DefaultLanguage == "" {
		c.Feed.DefaultLanguage = c.App.Language
	}
	if c.Feed.MaxEpisodesInFeed <= 0 {
		c.Feed.MaxEpisodesInFeed = defaultMaxEpisodesInFeed
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if value, ok := os.LookupEnv("LAUSCHR_NTFY_TOPIC"); ok {
		c.Notifications.NtfyTopic = strings.TrimSpace(value)
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
}

func (c *Config) normalizePermissions() {
	normalized := make(map[string]RolePermissions, len(c.Permissions))
	for role, perms := range c.Permissions {
		normalized[strings.ToLower(strings.TrimSpace(role))] = perms
	}
	for role, perms := range DefaultPermissions() {
		if _, ok := normalized[role]; !ok {
			normalized[role] = perms
		}
	}
	c.Permissions = normalized
}

func normalizeList(values []string, trimPrefix string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		normalized := strings.ToLower(strings.TrimSpace(value))
		if trimPrefix != "" {
			normalized = strings.TrimPrefix(normalized, trimPrefix)
		}
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}
