package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateApp(); err != nil {
		return err
	}
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateFeed(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validatePermissions(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateApp() error {
	parsed, err := url.Parse(c.App.BaseURL)
	if err != nil {
		return fmt.Errorf("app.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("app.base_url must be an http or https URL, got %q", c.App.BaseURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("app.base_url must include a host, got %q", c.App.BaseURL)
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateUpload() error {
	if c.Upload.MaxFileSize <= 0 {
		return errors.New("upload.max_file_size must be positive")
	}
	if len(c.Upload.AllowedTypes) == 0 {
		return errors.New("upload.allowed_types must include at least one MIME type")
	}
	for _, mimeType := range c.Upload.AllowedTypes {
		if !strings.Contains(mimeType, "/") {
			return fmt.Errorf("upload.allowed_types: %q is not a MIME type", mimeType)
		}
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		return errors.New("upload.allowed_extensions must include at least one extension")
	}
	return nil
}

func (c *Config) validateFeed() error {
	if c.Feed.MaxEpisodesInFeed <= 0 {
		return errors.New("feed.max_episodes_in_feed must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	parsed, err := url.Parse(topic)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic must be a full http(s) URL, got %q", topic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
}

func (c *Config) validatePermissions() error {
	for role, perms := range c.Permissions {
		if !slices.Contains(KnownRoles, role) {
			return fmt.Errorf("permissions.%s: unknown role (expected one of %s)", role, strings.Join(KnownRoles, ", "))
		}
		if perms.Level <= 0 {
			return fmt.Errorf("permissions.%s.level must be positive", role)
		}
	}
	owner := c.Permissions[RoleOwner]
	for _, role := range KnownRoles[1:] {
		if c.Permissions[role].Level >= owner.Level {
			return fmt.Errorf("permissions.%s.level must be lower than permissions.owner.level", role)
		}
	}
	return nil
}
