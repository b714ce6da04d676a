package config

const (
	defaultConfigPath        = "~/.config/lauschr/config.toml"
	defaultAppName           = "LauschR"
	defaultBaseURL           = "http://localhost:8080"
	defaultLanguage          = "de"
	defaultDataDir           = "~/.local/share/lauschr"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultMaxFileSize       = 200 * 1024 * 1024
	defaultMaxEpisodesInFeed = 100
	defaultNtfyTimeout       = 10
)

// Role names used as keys of the permission table.
const (
	RoleOwner       = "owner"
	RoleEditor      = "editor"
	RoleContributor = "contributor"
	RoleViewer      = "viewer"
)

// KnownRoles lists the permission table rows in descending privilege order.
var KnownRoles = []string{RoleOwner, RoleEditor, RoleContributor, RoleViewer}

func defaultAllowedTypes() []string {
	return []string{"audio/mpeg", "audio/mp4", "audio/x-m4a", "audio/aac", "video/mp4"}
}

func defaultAllowedExtensions() []string {
	return []string{"mp3", "m4a", "mp4", "aac"}
}

// DefaultPermissions returns the built-in role capability table.
func DefaultPermissions() map[string]RolePermissions {
	return map[string]RolePermissions{
		RoleOwner: {
			Level:             100,
			CanUpload:         true,
			CanEdit:           true,
			CanDelete:         true,
			CanInvite:         true,
			CanManageSettings: true,
			CanDeleteFeed:     true,
		},
		RoleEditor: {
			Level:     50,
			CanUpload: true,
			CanEdit:   true,
			CanDelete: true,
		},
		RoleContributor: {
			Level:     30,
			CanUpload: true,
		},
		RoleViewer: {
			Level: 10,
		},
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		App: App{
			Name:     defaultAppName,
			BaseURL:  defaultBaseURL,
			Language: defaultLanguage,
		},
		Paths: Paths{
			DataDir: defaultDataDir,
		},
		Upload: Upload{
			MaxFileSize:       defaultMaxFileSize,
			AllowedTypes:      defaultAllowedTypes(),
			AllowedExtensions: defaultAllowedExtensions(),
		},
		Feed: Feed{
			DefaultLanguage:   defaultLanguage,
			MaxEpisodesInFeed: defaultMaxEpisodesInFeed,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
		Permissions: DefaultPermissions(),
	}
}
