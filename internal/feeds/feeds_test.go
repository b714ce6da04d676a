package feeds_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"lauschr/internal/apperr"
	"lauschr/internal/config"
	"lauschr/internal/docstore"
	"lauschr/internal/feeds"
	"lauschr/internal/permission"
	"lauschr/internal/testsupport"
)

type harness struct {
	cfg   *config.Config
	store *docstore.Store
	svc   *feeds.Service
}

// steppingClock returns a clock that advances one second per call.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	current := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	index := testsupport.MustOpenIndex(t, cfg)
	svc, err := feeds.New(cfg, store, index, nil, feeds.WithClock(steppingClock()))
	if err != nil {
		t.Fatalf("feeds.New failed: %v", err)
	}
	return harness{cfg: cfg, store: store, svc: svc}
}

func (h harness) createFeed(t *testing.T, title, owner string) feeds.Feed {
	t.Helper()
	feed, err := h.svc.Create(context.Background(), feeds.FeedInput{Title: title, Author: "Redaktion"}, owner)
	if err != nil {
		t.Fatalf("Create(%q) failed: %v", title, err)
	}
	return feed
}

func (h harness) docBytes(t *testing.T, feedID string) []byte {
	t.Helper()
	path, err := h.store.Path("feeds/" + feedID)
	if err != nil {
		t.Fatalf("Path failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	return data
}

func TestCreateAssignsUniqueSlugs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.createFeed(t, "Mein Café", "user_1")
	second := h.createFeed(t, "Mein Café", "user_2")

	if first.Slug != "mein-cafe" {
		t.Fatalf("first slug = %q, want mein-cafe", first.Slug)
	}
	if second.Slug != "mein-cafe-1" {
		t.Fatalf("second slug = %q, want mein-cafe-1", second.Slug)
	}
	if !strings.HasPrefix(first.ID, "feed_") || len(first.ID) != len("feed_")+24 {
		t.Fatalf("unexpected feed id %q", first.ID)
	}
	if first.Language != h.cfg.Feed.DefaultLanguage {
		t.Fatalf("language = %q, want default %q", first.Language, h.cfg.Feed.DefaultLanguage)
	}
	if !first.Settings.IsPublic || first.Settings.RequireAuth {
		t.Fatalf("unexpected default settings %+v", first.Settings)
	}
	if info, err := os.Stat(h.cfg.FeedAudioDir(first.ID)); err != nil || !info.IsDir() {
		t.Fatalf("audio directory missing: %v", err)
	}

	got, err := h.svc.GetBySlug(ctx, "mein-cafe-1")
	if err != nil {
		t.Fatalf("GetBySlug failed: %v", err)
	}
	if got.ID != second.ID {
		t.Fatalf("GetBySlug returned %s, want %s", got.ID, second.ID)
	}
	if _, err := h.svc.GetBySlug(ctx, "unknown"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("GetBySlug(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestCreateValidatesInput(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name  string
		input feeds.FeedInput
		owner string
	}{
		{"missing title", feeds.FeedInput{Title: "   "}, "user_1"},
		{"missing owner", feeds.FeedInput{Title: "Show"}, ""},
		{"bad email", feeds.FeedInput{Title: "Show", Email: "not-an-email"}, "user_1"},
		{"bad website", feeds.FeedInput{Title: "Show", Website: "ftp://example.org"}, "user_1"},
		{"unknown category", feeds.FeedInput{Title: "Show", Category: "Cooking"}, "user_1"},
		{"unknown language", feeds.FeedInput{Title: "Show", Language: "klingonisch!"}, "user_1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.Create(context.Background(), tt.input, tt.owner)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("Create error = %v, want ErrValidation", err)
			}
		})
	}
	all, err := h.svc.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected no feeds after rejected creates, got %d", len(all))
	}
}

func TestCreateCanonicalizesCategoryAndSanitizesDescription(t *testing.T) {
	h := newHarness(t)
	feed, err := h.svc.Create(context.Background(), feeds.FeedInput{
		Title:       "  Physik am Abend  ",
		Description: `<b>Wissen</b><script>alert(1)</script>`,
		Category:    "science>physics",
		Language:    "Deutsch",
	}, "user_1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if feed.Title != "Physik am Abend" {
		t.Fatalf("title not trimmed: %q", feed.Title)
	}
	if feed.Category != "Science > Physics" {
		t.Fatalf("category = %q", feed.Category)
	}
	if feed.Description != "<b>Wissen</b>" {
		t.Fatalf("description = %q", feed.Description)
	}
	if feed.Language != "de" {
		t.Fatalf("language = %q, want de", feed.Language)
	}
}

func TestUpdateRetitleMovesSlug(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	feed := h.createFeed(t, "Alter Name", "user_1")

	title := "Neuer Name"
	explicit := true
	updated, err := h.svc.Update(ctx, feed.ID, feeds.FeedPatch{Title: &title, Explicit: &explicit})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Slug != "neuer-name" || !updated.Explicit {
		t.Fatalf("unexpected update result: slug=%q explicit=%v", updated.Slug, updated.Explicit)
	}
	if updated.UpdatedAt <= feed.UpdatedAt {
		t.Fatalf("updated_at not bumped: %s <= %s", updated.UpdatedAt, feed.UpdatedAt)
	}
	if _, err := h.svc.GetBySlug(ctx, "alter-name"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("old slug still resolves: %v", err)
	}
	other := h.createFeed(t, "Alter Name", "user_2")
	if other.Slug != "alter-name" {
		t.Fatalf("released slug not reused, got %q", other.Slug)
	}

	empty := ""
	if _, err := h.svc.Update(ctx, feed.ID, feeds.FeedPatch{Title: &empty}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("empty title error = %v, want ErrValidation", err)
	}
	if _, err := h.svc.Update(ctx, "feed_missing", feeds.FeedPatch{Title: &title}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing feed error = %v, want ErrNotFound", err)
	}
}

func TestCollaboratorLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	feed := h.createFeed(t, "Team", "owner")

	if _, err := h.svc.AddCollaborator(ctx, feed.ID, "owner", permission.RoleEditor); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("owner as collaborator error = %v, want ErrValidation", err)
	}
	if _, err := h.svc.AddCollaborator(ctx, feed.ID, "alice", permission.RoleOwner); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("owner role error = %v, want ErrValidation", err)
	}
	updated, err := h.svc.AddCollaborator(ctx, feed.ID, "alice", permission.RoleEditor)
	if err != nil {
		t.Fatalf("AddCollaborator failed: %v", err)
	}
	if updated.Collaborators["alice"] != "editor" {
		t.Fatalf("collaborators = %v", updated.Collaborators)
	}
	if _, err := h.svc.AddCollaborator(ctx, feed.ID, "bob", permission.RoleViewer); err != nil {
		t.Fatalf("AddCollaborator(bob) failed: %v", err)
	}

	if _, err := h.svc.UpdateCollaboratorRole(ctx, feed.ID, "carol", permission.RoleViewer); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("update absent role error = %v, want ErrNotFound", err)
	}
	if _, err := h.svc.UpdateCollaboratorRole(ctx, feed.ID, "bob", permission.RoleContributor); err != nil {
		t.Fatalf("UpdateCollaboratorRole failed: %v", err)
	}

	list, err := h.svc.Collaborators(ctx, feed.ID)
	if err != nil {
		t.Fatalf("Collaborators failed: %v", err)
	}
	if len(list) != 2 || list[0].UserID != "alice" || list[1].Role != permission.RoleContributor {
		t.Fatalf("unexpected collaborator list %+v", list)
	}

	before := h.docBytes(t, feed.ID)
	if _, err := h.svc.RemoveCollaborator(ctx, feed.ID, "nobody"); err != nil {
		t.Fatalf("RemoveCollaborator(absent) failed: %v", err)
	}
	if after := h.docBytes(t, feed.ID); string(after) != string(before) {
		t.Fatalf("document changed by no-op removal")
	}

	removed, err := h.svc.RemoveCollaborator(ctx, feed.ID, "alice")
	if err != nil {
		t.Fatalf("RemoveCollaborator failed: %v", err)
	}
	if _, ok := removed.Collaborators["alice"]; ok {
		t.Fatalf("alice still present: %v", removed.Collaborators)
	}
}

func TestTransferOwnership(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	feed := h.createFeed(t, "Übergabe", "anna")
	if _, err := h.svc.AddCollaborator(ctx, feed.ID, "ben", permission.RoleContributor); err != nil {
		t.Fatalf("AddCollaborator failed: %v", err)
	}

	if _, err := h.svc.TransferOwnership(ctx, feed.ID, "ben", "mallory"); !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Fatalf("transfer by non-owner error = %v, want ErrPermissionDenied", err)
	}
	moved, err := h.svc.TransferOwnership(ctx, feed.ID, "ben", "anna")
	if err != nil {
		t.Fatalf("TransferOwnership failed: %v", err)
	}
	if moved.OwnerID != "ben" {
		t.Fatalf("owner = %q, want ben", moved.OwnerID)
	}
	if _, ok := moved.Collaborators["ben"]; ok {
		t.Fatalf("new owner still listed as collaborator")
	}
	if moved.Collaborators["anna"] != "editor" {
		t.Fatalf("previous owner role = %q, want editor", moved.Collaborators["anna"])
	}
}

func TestListOrderingAndFilters(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.createFeed(t, "Erster", "u1")
	b := h.createFeed(t, "Zweiter", "u2")
	c := h.createFeed(t, "Dritter", "u1")
	if _, err := h.svc.AddCollaborator(ctx, b.ID, "u1", permission.RoleViewer); err != nil {
		t.Fatalf("AddCollaborator failed: %v", err)
	}

	all, err := h.svc.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if got := ids(all); strings.Join(got, ",") != strings.Join([]string{c.ID, b.ID, a.ID}, ",") {
		t.Fatalf("List order = %v", got)
	}

	owned, _ := h.svc.ListByOwner(ctx, "u1")
	if len(owned) != 2 {
		t.Fatalf("ListByOwner = %v", ids(owned))
	}
	shared, _ := h.svc.ListByCollaborator(ctx, "u1")
	if len(shared) != 1 || shared[0].ID != b.ID {
		t.Fatalf("ListByCollaborator = %v", ids(shared))
	}
	accessible, _ := h.svc.ListAccessible(ctx, "u1")
	if len(accessible) != 3 {
		t.Fatalf("ListAccessible = %v", ids(accessible))
	}
	none, _ := h.svc.ListAccessible(ctx, "stranger")
	if len(none) != 0 {
		t.Fatalf("stranger sees %v", ids(none))
	}
}

func ids(list []feeds.Feed) []string {
	out := make([]string, 0, len(list))
	for _, f := range list {
		out = append(out, f.ID)
	}
	return out
}

func TestDeleteRemovesAudioDocumentAndSlug(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	feed := h.createFeed(t, "Mein Café", "u1")
	upload := testsupport.WriteAudio(t, t.TempDir(), "folge.mp3", 2048)
	if _, err := h.svc.CreateEpisode(ctx, feed.ID, feeds.EpisodeInput{Title: "Folge 1"}, feeds.Upload{TempPath: upload, Name: "folge.mp3"}); err != nil {
		t.Fatalf("CreateEpisode failed: %v", err)
	}

	if err := h.svc.Delete(ctx, feed.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := os.Stat(h.cfg.FeedAudioDir(feed.ID)); !os.IsNotExist(err) {
		t.Fatalf("audio directory still present: %v", err)
	}
	if _, err := h.svc.Get(ctx, feed.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("Get after delete error = %v, want ErrNotFound", err)
	}
	if err := h.svc.Delete(ctx, feed.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("second Delete error = %v, want ErrNotFound", err)
	}
	again := h.createFeed(t, "Mein Café", "u2")
	if again.Slug != "mein-cafe" {
		t.Fatalf("slug not released, got %q", again.Slug)
	}
}

func TestAuthorizeAndCapabilities(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	feed := h.createFeed(t, "Rechte", "owner")
	if _, err := h.svc.AddCollaborator(ctx, feed.ID, "viewer", permission.RoleViewer); err != nil {
		t.Fatalf("AddCollaborator failed: %v", err)
	}

	if _, err := h.svc.Authorize(ctx, feed.ID, "owner", permission.ActionDeleteFeed); err != nil {
		t.Fatalf("owner Authorize failed: %v", err)
	}
	if _, err := h.svc.Authorize(ctx, feed.ID, "viewer", permission.ActionUpload); !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Fatalf("viewer upload error = %v, want ErrPermissionDenied", err)
	}
	caps, err := h.svc.Capabilities(ctx, feed.ID, "stranger")
	if err != nil {
		t.Fatalf("Capabilities failed: %v", err)
	}
	if caps.Role != permission.RoleNone || caps.CanEdit || caps.CanUpload {
		t.Fatalf("stranger capabilities = %+v", caps)
	}
}

func TestURLs(t *testing.T) {
	h := newHarness(t, testsupport.WithBaseURL("https://cast.example.org"))
	feed := h.createFeed(t, "Mein Café", "u1")
	if got := h.svc.PublicURL(feed); got != "https://cast.example.org/feed/mein-cafe" {
		t.Fatalf("PublicURL = %q", got)
	}
	if got := h.svc.RSSURL(feed); got != "https://cast.example.org/feed/mein-cafe/rss.xml" {
		t.Fatalf("RSSURL = %q", got)
	}
}

func TestReindexRepairsDuplicateSlugs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	original := h.createFeed(t, "Doppelt", "u1")

	clone := original
	clone.ID = "feed_000000000000000000000001"
	clone.CreatedAt = "2030-01-01T00:00:00Z"
	if err := h.store.Write("feeds/"+clone.ID, clone); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	repaired, err := h.svc.Reindex(ctx)
	if err != nil {
		t.Fatalf("Reindex failed: %v", err)
	}
	if repaired != 1 {
		t.Fatalf("Reindex repaired %d feeds, want 1", repaired)
	}
	fixed, err := h.svc.Get(ctx, clone.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fixed.Slug != "doppelt-1" {
		t.Fatalf("clone slug = %q, want doppelt-1", fixed.Slug)
	}
	byOriginal, err := h.svc.GetBySlug(ctx, "doppelt")
	if err != nil || byOriginal.ID != original.ID {
		t.Fatalf("original slug resolves to %q, %v", byOriginal.ID, err)
	}
}

func TestRequiredDependencies(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := feeds.New(cfg, nil, nil, nil); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("New without store error = %v, want ErrValidation", err)
	}
}
