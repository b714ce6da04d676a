package testsupport

import (
	"path/filepath"
	"testing"

	"lauschr/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.App.BaseURL = "https://podcasts.example.org"
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.AudioDir = filepath.Join(base, "data", "audio")
	cfgVal.Paths.ImagesDir = filepath.Join(base, "data", "images")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithBaseURL overrides the public base URL on the test config.
func WithBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.App.BaseURL = url
	}
}

// WithMaxFileSize overrides the upload size limit on the test config.
func WithMaxFileSize(size int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upload.MaxFileSize = size
	}
}

// WithMaxEpisodes overrides the RSS item limit on the test config.
func WithMaxEpisodes(limit int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Feed.MaxEpisodesInFeed = limit
	}
}

// WithEnsuredDirectories creates the configured directories.
func WithEnsuredDirectories() ConfigOption {
	return func(b *configBuilder) {
		if err := b.cfg.EnsureDirectories(); err != nil {
			b.t.Fatalf("ensure directories: %v", err)
		}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
