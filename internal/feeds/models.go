package feeds

import (
	"lauschr/internal/permission"
)

// Episode status values. Only published episodes appear in RSS output.
const (
	StatusPublished = "published"
	StatusDraft     = "draft"
	StatusArchived  = "archived"
)

// Statuses lists the accepted episode status values.
var Statuses = []string{StatusPublished, StatusDraft, StatusArchived}

// Settings holds per-feed visibility flags.
type Settings struct {
	IsPublic    bool `json:"is_public"`
	RequireAuth bool `json:"require_auth"`
}

// Feed is the persisted feed document.
type Feed struct {
	ID            string            `json:"id"`
	Slug          string            `json:"slug"`
	OwnerID       string            `json:"owner_id"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Author        string            `json:"author"`
	Email         string            `json:"email"`
	Language      string            `json:"language"`
	Explicit      bool              `json:"explicit"`
	Image         string            `json:"image"`
	Website       string            `json:"website"`
	Category      string            `json:"category"`
	Collaborators map[string]string `json:"collaborators"`
	Episodes      []Episode         `json:"episodes"`
	Settings      Settings          `json:"settings"`
	CreatedAt     string            `json:"created_at"`
	UpdatedAt     string            `json:"updated_at"`
}

var _ permission.Membership = Feed{}

// Owner returns the owning user's ID.
func (f Feed) Owner() string {
	return f.OwnerID
}

// CollaboratorRole returns the stored role of userID, if any.
func (f Feed) CollaboratorRole(userID string) (string, bool) {
	role, ok := f.Collaborators[userID]
	return role, ok
}

// Episode is one entry of a feed's episode list.
type Episode struct {
	ID          string `json:"id"`
	GUID        string `json:"guid"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Author      string `json:"author"`
	Duration    int    `json:"duration"`
	Explicit    bool   `json:"explicit"`
	PublishDate string `json:"publish_date"`
	AudioFile   string `json:"audio_file"`
	AudioURL    string `json:"audio_url"`
	FileSize    int64  `json:"file_size"`
	MimeType    string `json:"mime_type"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	CreatedBy   string `json:"created_by"`
}

// Published reports whether the episode is visible in RSS output. Records
// written without a status count as published.
func (e Episode) Published() bool {
	return e.Status == StatusPublished || e.Status == ""
}

// Collaborator is a read model of one collaborators entry.
type Collaborator struct {
	UserID string          `json:"user_id"`
	Role   permission.Role `json:"role"`
}

// Stats summarises a feed.
type Stats struct {
	EpisodeCount      int    `json:"episode_count"`
	PublishedCount    int    `json:"published_count"`
	CollaboratorCount int    `json:"collaborator_count"`
	TotalDuration     int    `json:"total_duration"`
	TotalBytes        int64  `json:"total_bytes"`
	LastEpisode       string `json:"last_episode,omitempty"`
}

// FeedEpisode pairs an episode with the feed it belongs to.
type FeedEpisode struct {
	FeedID    string  `json:"feed_id"`
	FeedTitle string  `json:"feed_title"`
	FeedSlug  string  `json:"feed_slug"`
	Episode   Episode `json:"episode"`
}

// FeedInput carries the fields accepted when creating a feed. Nil pointers
// take configured defaults.
type FeedInput struct {
	Title       string
	Description string
	Author      string
	Email       string
	Language    string
	Explicit    *bool
	Image       string
	Website     string
	Category    string
	IsPublic    *bool
	RequireAuth *bool
}

// FeedPatch lists the updatable feed fields. Nil fields are left unchanged.
type FeedPatch struct {
	Title       *string
	Description *string
	Author      *string
	Email       *string
	Language    *string
	Explicit    *bool
	Image       *string
	Website     *string
	Category    *string
	IsPublic    *bool
	RequireAuth *bool
}

// EpisodeInput carries the metadata of a new episode.
type EpisodeInput struct {
	Title       string
	Description string
	Author      string
	Duration    int
	Explicit    bool
	PublishDate string
	Status      string
	CreatedBy   string
}

// EpisodePatch lists the updatable episode fields. Nil fields are left
// unchanged.
type EpisodePatch struct {
	Title       *string
	Description *string
	Author      *string
	Duration    *int
	Explicit    *bool
	PublishDate *string
	Status      *string
}

// Upload describes a received file waiting in a temporary location.
// Err carries a transport failure reported by the receiving layer.
type Upload struct {
	TempPath string
	Name     string
	Size     int64
	Err      error
}
