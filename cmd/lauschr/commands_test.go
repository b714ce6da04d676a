package main

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lauschr/internal/apperr"
	"lauschr/internal/config"
	"lauschr/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.cfg.App.BaseURL)

	target := filepath.Join(t.TempDir(), "lauschr.toml")
	out, _, err = runCLI(t, env, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, env, "config", "init", "--path", target); err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	}
}

func TestFeedEpisodeAndRSSFlow(t *testing.T) {
	env := setupCLITestEnv(t)
	owner := addUser(t, env, "anna@example.org")

	var feed idRecord
	runJSON(t, env, &feed, "--as", owner, "feed", "create", "--title", "Mein Café", "--author", "Anna")
	if feed.Slug != "mein-cafe" {
		t.Fatalf("slug = %q, want mein-cafe", feed.Slug)
	}

	source := testsupport.WriteAudio(t, t.TempDir(), "Folge 1.mp3", 2048)
	var episode struct {
		ID        string `json:"id"`
		AudioFile string `json:"audio_file"`
	}
	runJSON(t, env, &episode, "--as", owner, "episode", "add", feed.Slug, source,
		"--title", "Erste Folge", "--duration", "1:05")
	if _, err := os.Stat(source); err != nil {
		t.Fatalf("source audio should be kept without --move: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.cfg.FeedAudioDir(feed.ID), episode.AudioFile)); err != nil {
		t.Fatalf("stored audio missing: %v", err)
	}

	out, _, err := runCLI(t, env, "episode", "list", feed.ID)
	if err != nil {
		t.Fatalf("episode list: %v", err)
	}
	requireContains(t, out, "Erste Folge")
	requireContains(t, out, "1:05")

	out, _, err = runCLI(t, env, "rss", "generate", feed.Slug)
	if err != nil {
		t.Fatalf("rss generate: %v", err)
	}
	requireContains(t, out, "<title>Mein Café</title>")
	requireContains(t, out, env.cfg.AudioURL(feed.ID, episode.AudioFile))

	out, _, err = runCLI(t, env, "rss", "validate", feed.Slug)
	if err != nil {
		t.Fatalf("rss validate: %v", err)
	}
	requireContains(t, out, "feed is valid")

	if _, _, err := runCLI(t, env, "--as", owner, "feed", "delete", feed.ID); err != nil {
		t.Fatalf("feed delete: %v", err)
	}
	if _, err := os.Stat(env.cfg.FeedAudioDir(feed.ID)); !os.IsNotExist(err) {
		t.Fatalf("audio dir should be removed, stat err = %v", err)
	}
	out, _, err = runCLI(t, env, "feed", "list")
	if err != nil {
		t.Fatalf("feed list: %v", err)
	}
	requireContains(t, out, "No feeds")
}

func TestPermissionsEnforcedForActingUser(t *testing.T) {
	env := setupCLITestEnv(t)
	owner := addUser(t, env, "owner@example.org")
	viewer := addUser(t, env, "viewer@example.org")

	var feed idRecord
	runJSON(t, env, &feed, "--as", owner, "feed", "create", "--title", "Team Podcast")

	if _, _, err := runCLI(t, env, "--as", owner, "collab", "add", feed.ID, viewer, "--role", "viewer"); err != nil {
		t.Fatalf("collab add: %v", err)
	}

	source := testsupport.WriteAudio(t, t.TempDir(), "ep.mp3", 1024)
	_, _, err := runCLI(t, env, "--as", viewer, "episode", "add", feed.ID, source, "--title", "Nope")
	if !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if code := exitCode(err); code != 3 {
		t.Fatalf("exit code = %d, want 3", code)
	}

	out, _, err := runCLI(t, env, "perm", "show", feed.ID, "--user", viewer)
	if err != nil {
		t.Fatalf("perm show: %v", err)
	}
	requireContains(t, out, "viewer")
	requireContains(t, out, "can_upload")

	// A collaborator may leave without invite rights.
	if _, _, err := runCLI(t, env, "--as", viewer, "collab", "remove", feed.ID, viewer); err != nil {
		t.Fatalf("collab remove self: %v", err)
	}
	if _, _, err := runCLI(t, env, "--as", viewer, "feed", "update", feed.ID, "--title", "Hijack"); !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Fatalf("expected permission denied after leaving, got %v", err)
	}
}

func TestEpisodeUploadRejected(t *testing.T) {
	env := setupCLITestEnv(t)
	owner := addUser(t, env, "owner@example.org")
	var feed idRecord
	runJSON(t, env, &feed, "--as", owner, "feed", "create", "--title", "Uploads")

	source := testsupport.WriteAudio(t, t.TempDir(), "ep.ogg", 1024)
	_, _, err := runCLI(t, env, "episode", "add", feed.ID, source, "--title", "Falsch")
	var uploadErr *apperr.UploadError
	if !errors.As(err, &uploadErr) || uploadErr.Reason != apperr.UploadExtension {
		t.Fatalf("expected extension rejection, got %v", err)
	}
	if code := exitCode(err); code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
	entries, err := os.ReadDir(env.cfg.Paths.AudioDir)
	if err != nil {
		t.Fatalf("read audio dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".upload-") {
			t.Fatalf("staged copy %s left behind", entry.Name())
		}
	}
}

func TestRSSValidateFile(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(t.TempDir(), "broken.xml")
	if err := os.WriteFile(path, []byte(`<rss version="2.0"><channel></channel></rss>`), 0o644); err != nil {
		t.Fatalf("write rss: %v", err)
	}

	out, _, err := runCLI(t, env, "rss", "validate", "--file", path)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	requireContains(t, out, "[ERROR] Missing channel title")
	requireContains(t, out, "[WARN] Feed has no episodes")
}

func TestUserAdministrationRequiresAdmin(t *testing.T) {
	env := setupCLITestEnv(t)
	admin := addUser(t, env, "admin@example.org", "--admin")
	member := addUser(t, env, "member@example.org")

	if _, _, err := runCLI(t, env, "user", "add", "--email", "ohne@example.org", "--name", "Ohne"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error without password hash, got %v", err)
	}

	var pending idRecord
	runJSON(t, env, &pending, "--as", admin, "user", "add", "--email", "neu@example.org", "--name", "Neu", "--password-hash", testPasswordHash)

	if _, _, err := runCLI(t, env, "--as", member, "user", "approve", pending.ID); !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	out, _, err := runCLI(t, env, "--as", admin, "user", "approve", pending.ID)
	if err != nil {
		t.Fatalf("user approve: %v", err)
	}
	requireContains(t, out, "active")
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.Validation("cli", "op", "bad"), 2},
		{apperr.NewUploadError(apperr.UploadTooLarge, "big"), 2},
		{apperr.Wrap(apperr.ErrPermissionDenied, "cli", "op", "no", nil), 3},
		{apperr.NotFound("cli", "op", "gone"), 4},
		{apperr.Wrap(apperr.ErrStorageUnavailable, "cli", "op", "disk", nil), 5},
		{errors.New("boom"), 1},
	}
	for _, tc := range cases {
		if got := exitCode(tc.err); got != tc.want {
			t.Fatalf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestPendingRegistrationNotifies(t *testing.T) {
	bodies := make(chan string, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies <- string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	env := setupCLITestEnv(t, func(cfg *config.Config) {
		cfg.Notifications.NtfyTopic = server.URL
	})

	if _, _, err := runCLI(t, env, "user", "add", "--email", "neu@example.org", "--name", "Neu", "--password-hash", testPasswordHash); err != nil {
		t.Fatalf("user add: %v", err)
	}
	select {
	case body := <-bodies:
		requireContains(t, body, "neu@example.org")
	default:
		t.Fatal("expected a registration notification")
	}

	// Active accounts need no approval.
	addUser(t, env, "fertig@example.org")
	if len(bodies) != 0 {
		t.Fatalf("unexpected notification for active account: %q", <-bodies)
	}
}
