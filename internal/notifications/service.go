package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lauschr/internal/config"
)

const userAgent = "LauschR/1.0"

// Event names a notification type.
type Event string

const (
	EventFeedCreated          Event = "feed_created"
	EventEpisodePublished     Event = "episode_published"
	EventCollaboratorAdded    Event = "collaborator_added"
	EventOwnershipTransferred Event = "ownership_transferred"
	EventRegistrationPending  Event = "registration_pending"
	EventTest                 Event = "test"
)

// Payload carries the values an event message is built from.
type Payload map[string]string

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService returns an ntfy-backed service, or a no-op when no topic is
// configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		appName:  cfg.App.Name,
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	appName  string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	get := func(key string) string { return strings.TrimSpace(payload[key]) }
	title := func(suffix string) string { return n.appName + " - " + suffix }

	switch event {
	case EventFeedCreated:
		return message{
			title: title("New Feed"),
			body:  fmt.Sprintf("Feed created: %s\n%s", get("feedTitle"), get("rssURL")),
			tags:  []string{"lauschr", "feed", "created"},
		}, true
	case EventEpisodePublished:
		body := fmt.Sprintf("New episode in %s: %s", get("feedTitle"), get("episodeTitle"))
		if duration := get("duration"); duration != "" && duration != "0:00" {
			body += " (" + duration + ")"
		}
		return message{
			title: title("Episode Published"),
			body:  body,
			tags:  []string{"lauschr", "episode", "published"},
		}, true
	case EventCollaboratorAdded:
		return message{
			title: title("Team Update"),
			body:  fmt.Sprintf("%s joined %s as %s", get("userID"), get("feedTitle"), get("role")),
			tags:  []string{"lauschr", "collaborator", "added"},
		}, true
	case EventOwnershipTransferred:
		return message{
			title: title("Ownership Transferred"),
			body:  fmt.Sprintf("%s now belongs to %s", get("feedTitle"), get("ownerID")),
			tags:  []string{"lauschr", "feed", "owner"},
		}, true
	case EventRegistrationPending:
		return message{
			title:    title("Approval Needed"),
			body:     fmt.Sprintf("New account waiting for approval: %s <%s>", get("name"), get("email")),
			tags:     []string{"lauschr", "user", "pending"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    title("Test"),
			body:     "Notification system test",
			tags:     []string{"lauschr", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
