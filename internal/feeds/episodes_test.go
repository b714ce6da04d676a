package feeds_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"lauschr/internal/apperr"
	"lauschr/internal/feeds"
	"lauschr/internal/testsupport"
)

var storedNamePattern = regexp.MustCompile(`^intro-folge-\d{8}-\d{6}(-\d+)?\.mp3$`)

func (h harness) addEpisode(t *testing.T, feedID, title, publishDate string) feeds.Episode {
	t.Helper()
	path := testsupport.WriteAudio(t, t.TempDir(), "Intro Folge.mp3", 4096)
	ep, err := h.svc.CreateEpisode(context.Background(), feedID,
		feeds.EpisodeInput{Title: title, PublishDate: publishDate, Duration: 125},
		feeds.Upload{TempPath: path, Name: "Intro Folge.mp3", Size: 4096},
	)
	if err != nil {
		t.Fatalf("CreateEpisode(%q) failed: %v", title, err)
	}
	return ep
}

func TestCreateEpisodeStoresAudioAndPrepends(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	feed := h.createFeed(t, "Podcast", "u1")

	first := h.addEpisode(t, feed.ID, "Eins", "2024-01-01")
	tmp := testsupport.WriteAudio(t, t.TempDir(), "Intro Folge.mp3", 8192)
	second, err := h.svc.CreateEpisode(ctx, feed.ID, feeds.EpisodeInput{
		Title:       "Zwei",
		Description: `<p>Notizen <a href="https://example.org" onclick="x()">Link</a></p>`,
		Author:      "Gast",
		CreatedBy:   "u1",
	}, feeds.Upload{TempPath: tmp, Name: "Intro Folge.mp3"})
	if err != nil {
		t.Fatalf("CreateEpisode failed: %v", err)
	}

	if first.Author != "Redaktion" {
		t.Fatalf("author default = %q, want feed author", first.Author)
	}
	if second.Author != "Gast" || second.CreatedBy != "u1" {
		t.Fatalf("unexpected second episode %+v", second)
	}
	if second.GUID != second.ID || second.Status != feeds.StatusPublished {
		t.Fatalf("unexpected guid/status %q %q", second.GUID, second.Status)
	}
	if first.PublishDate != "2024-01-01T00:00:00Z" {
		t.Fatalf("publish date = %q", first.PublishDate)
	}
	if second.FileSize != 8192 || second.MimeType != "audio/mpeg" {
		t.Fatalf("file metadata = %d %q", second.FileSize, second.MimeType)
	}
	if !storedNamePattern.MatchString(second.AudioFile) {
		t.Fatalf("stored name %q does not match pattern", second.AudioFile)
	}
	wantURL := h.cfg.App.BaseURL + "/audio/" + feed.ID + "/" + second.AudioFile
	if second.AudioURL != wantURL {
		t.Fatalf("audio url = %q, want %q", second.AudioURL, wantURL)
	}
	if _, err := os.Stat(filepath.Join(h.cfg.FeedAudioDir(feed.ID), second.AudioFile)); err != nil {
		t.Fatalf("stored audio missing: %v", err)
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Fatalf("temp upload still present: %v", err)
	}
	if second.Description != `<p>Notizen <a href="https://example.org" rel="nofollow">Link</a></p>` {
		t.Fatalf("description not sanitized: %q", second.Description)
	}

	stored, err := h.svc.Get(ctx, feed.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(stored.Episodes) != 2 || stored.Episodes[0].ID != second.ID {
		t.Fatalf("episode not inserted at head: %+v", stored.Episodes)
	}
}

func TestCreateEpisodeRejectsUploads(t *testing.T) {
	h := newHarness(t, testsupport.WithMaxFileSize(64*1024))
	feed := h.createFeed(t, "Uploads", "u1")
	dir := t.TempDir()

	textFile := filepath.Join(dir, "notes.mp3")
	if err := os.WriteFile(textFile, []byte("just some text, not audio at all"), 0o644); err != nil {
		t.Fatalf("write text file: %v", err)
	}
	tests := []struct {
		name   string
		upload feeds.Upload
		reason apperr.UploadReason
	}{
		{"transport", feeds.Upload{Err: errors.New("partial upload")}, apperr.UploadTransport},
		{"no file", feeds.Upload{}, apperr.UploadNoFile},
		{"missing temp", feeds.Upload{TempPath: filepath.Join(dir, "gone.mp3"), Name: "gone.mp3"}, apperr.UploadNoFile},
		{"too large", feeds.Upload{TempPath: testsupport.WriteAudio(t, dir, "big.mp3", 128*1024), Name: "big.mp3"}, apperr.UploadTooLarge},
		{"extension", feeds.Upload{TempPath: testsupport.WriteAudio(t, dir, "clip.wav", 1024), Name: "clip.wav"}, apperr.UploadExtension},
		{"mime type", feeds.Upload{TempPath: textFile, Name: "notes.mp3"}, apperr.UploadMIMEType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.CreateEpisode(context.Background(), feed.ID, feeds.EpisodeInput{Title: "X"}, tt.upload)
			if !errors.Is(err, apperr.ErrUpload) {
				t.Fatalf("error = %v, want ErrUpload", err)
			}
			var uploadErr *apperr.UploadError
			if !errors.As(err, &uploadErr) || uploadErr.Reason != tt.reason {
				t.Fatalf("reason = %v, want %s", err, tt.reason)
			}
			if tt.upload.TempPath != "" {
				if _, statErr := os.Stat(tt.upload.TempPath); statErr != nil && tt.reason != apperr.UploadNoFile {
					t.Fatalf("rejected upload was moved or removed: %v", statErr)
				}
			}
		})
	}

	entries, err := os.ReadDir(h.cfg.FeedAudioDir(feed.ID))
	if err != nil {
		t.Fatalf("read audio dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("rejected uploads left files behind: %d", len(entries))
	}
}

func TestCreateEpisodeValidatesBeforeUpload(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	feed := h.createFeed(t, "Checks", "u1")
	path := testsupport.WriteAudio(t, t.TempDir(), "a.mp3", 1024)
	upload := feeds.Upload{TempPath: path, Name: "a.mp3"}

	if _, err := h.svc.CreateEpisode(ctx, "feed_missing", feeds.EpisodeInput{Title: "X"}, upload); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing feed error = %v, want ErrNotFound", err)
	}
	if _, err := h.svc.CreateEpisode(ctx, feed.ID, feeds.EpisodeInput{}, upload); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("missing title error = %v, want ErrValidation", err)
	}
	if _, err := h.svc.CreateEpisode(ctx, feed.ID, feeds.EpisodeInput{Title: "X", Status: "secret"}, upload); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("bad status error = %v, want ErrValidation", err)
	}
	if _, err := h.svc.CreateEpisode(ctx, feed.ID, feeds.EpisodeInput{Title: "X", PublishDate: "next tuesday"}, upload); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("bad publish date error = %v, want ErrValidation", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("upload touched by rejected request: %v", err)
	}
}

func TestListEpisodesSortsByPublishDate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	feed := h.createFeed(t, "Sortiert", "u1")
	h.addEpisode(t, feed.ID, "Mitte", "2024-02-01T10:00:00Z")
	h.addEpisode(t, feed.ID, "Alt", "2023-12-24")
	h.addEpisode(t, feed.ID, "Neu", "2024-03-01 08:30")

	list, err := h.svc.ListEpisodes(ctx, feed.ID)
	if err != nil {
		t.Fatalf("ListEpisodes failed: %v", err)
	}
	var titles []string
	for _, ep := range list {
		titles = append(titles, ep.Title)
	}
	if fmt.Sprint(titles) != "[Neu Mitte Alt]" {
		t.Fatalf("order = %v", titles)
	}
}

func TestLatestEpisodesAcrossFeeds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.createFeed(t, "A", "u1")
	b := h.createFeed(t, "B", "u1")
	h.addEpisode(t, a.ID, "a1", "2024-01-01")
	h.addEpisode(t, b.ID, "b1", "2024-01-03")
	h.addEpisode(t, a.ID, "a2", "2024-01-05")

	latest, err := h.svc.LatestEpisodes(ctx, []string{a.ID, b.ID, "feed_missing"}, 2)
	if err != nil {
		t.Fatalf("LatestEpisodes failed: %v", err)
	}
	if len(latest) != 2 || latest[0].Episode.Title != "a2" || latest[1].Episode.Title != "b1" {
		t.Fatalf("unexpected latest %+v", latest)
	}
	if latest[1].FeedID != b.ID || latest[1].FeedTitle != "B" {
		t.Fatalf("feed reference missing: %+v", latest[1])
	}
}

func TestUpdateEpisode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	feed := h.createFeed(t, "Bearbeiten", "u1")
	ep := h.addEpisode(t, feed.ID, "Roh", "2024-01-01")

	title := "  Fertig  "
	status := "Draft"
	date := "2024-05-06T07:08:09+02:00"
	duration := 3725
	updated, err := h.svc.UpdateEpisode(ctx, feed.ID, ep.ID, feeds.EpisodePatch{
		Title: &title, Status: &status, PublishDate: &date, Duration: &duration,
	})
	if err != nil {
		t.Fatalf("UpdateEpisode failed: %v", err)
	}
	if updated.Title != "Fertig" || updated.Status != feeds.StatusDraft {
		t.Fatalf("unexpected update %+v", updated)
	}
	if updated.PublishDate != "2024-05-06T05:08:09Z" {
		t.Fatalf("publish date = %q", updated.PublishDate)
	}
	if updated.AudioFile != ep.AudioFile || updated.GUID != ep.GUID {
		t.Fatalf("non-whitelisted fields changed")
	}

	bad := "unknown"
	if _, err := h.svc.UpdateEpisode(ctx, feed.ID, ep.ID, feeds.EpisodePatch{Status: &bad}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("bad status error = %v, want ErrValidation", err)
	}
	if _, err := h.svc.UpdateEpisode(ctx, feed.ID, "ep_missing", feeds.EpisodePatch{Title: &title}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing episode error = %v, want ErrNotFound", err)
	}
}

func TestDeleteEpisodeRemovesFileThenRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	feed := h.createFeed(t, "Löschen", "u1")
	keep := h.addEpisode(t, feed.ID, "Bleibt", "2024-01-01")
	drop := h.addEpisode(t, feed.ID, "Geht", "2024-01-02")

	if err := h.svc.DeleteEpisode(ctx, feed.ID, drop.ID); err != nil {
		t.Fatalf("DeleteEpisode failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(h.cfg.FeedAudioDir(feed.ID), drop.AudioFile)); !os.IsNotExist(err) {
		t.Fatalf("audio file still present: %v", err)
	}
	if _, err := h.svc.GetEpisode(ctx, feed.ID, drop.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("GetEpisode after delete error = %v, want ErrNotFound", err)
	}
	if _, err := h.svc.GetEpisode(ctx, feed.ID, keep.ID); err != nil {
		t.Fatalf("remaining episode lost: %v", err)
	}
	if err := h.svc.DeleteEpisode(ctx, feed.ID, drop.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestReplaceAudioSwapsFiles(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	feed := h.createFeed(t, "Tausch", "u1")
	ep := h.addEpisode(t, feed.ID, "Folge", "2024-01-01")
	oldPath := filepath.Join(h.cfg.FeedAudioDir(feed.ID), ep.AudioFile)

	bad := feeds.Upload{TempPath: testsupport.WriteAudio(t, t.TempDir(), "x.ogg", 512), Name: "x.ogg"}
	if _, err := h.svc.ReplaceAudio(ctx, feed.ID, ep.ID, bad); !errors.Is(err, apperr.ErrUpload) {
		t.Fatalf("bad replacement error = %v, want ErrUpload", err)
	}
	if _, err := os.Stat(oldPath); err != nil {
		t.Fatalf("old audio removed by rejected replacement: %v", err)
	}

	m4a := testsupport.WriteM4A(t, t.TempDir(), "neu.m4a", 4096)
	replaced, err := h.svc.ReplaceAudio(ctx, feed.ID, ep.ID, feeds.Upload{TempPath: m4a, Name: "neu.m4a"})
	if err != nil {
		t.Fatalf("ReplaceAudio failed: %v", err)
	}
	if replaced.MimeType != "audio/x-m4a" || replaced.AudioFile == ep.AudioFile {
		t.Fatalf("unexpected replacement %+v", replaced)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatalf("old audio still present: %v", err)
	}
	if _, err := os.Stat(filepath.Join(h.cfg.FeedAudioDir(feed.ID), replaced.AudioFile)); err != nil {
		t.Fatalf("new audio missing: %v", err)
	}
}

func TestReorderEpisodes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	feed := h.createFeed(t, "Reihenfolge", "u1")
	e1 := h.addEpisode(t, feed.ID, "1", "2024-01-01")
	e2 := h.addEpisode(t, feed.ID, "2", "2024-01-02")
	e3 := h.addEpisode(t, feed.ID, "3", "2024-01-03")
	// stored order is e3, e2, e1

	updated, err := h.svc.ReorderEpisodes(ctx, feed.ID, []string{e1.ID, "ep_unknown", e1.ID})
	if err != nil {
		t.Fatalf("ReorderEpisodes failed: %v", err)
	}
	var got []string
	for _, ep := range updated.Episodes {
		got = append(got, ep.ID)
	}
	want := []string{e1.ID, e3.ID, e2.ID}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestStats(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	feed := h.createFeed(t, "Zahlen", "u1")
	h.addEpisode(t, feed.ID, "1", "2024-01-01")
	last := h.addEpisode(t, feed.ID, "2", "2024-01-02")
	status := feeds.StatusDraft
	if _, err := h.svc.UpdateEpisode(ctx, feed.ID, last.ID, feeds.EpisodePatch{Status: &status}); err != nil {
		t.Fatalf("UpdateEpisode failed: %v", err)
	}

	stats, err := h.svc.Stats(ctx, feed.ID)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.EpisodeCount != 2 || stats.PublishedCount != 1 || stats.TotalDuration != 250 || stats.TotalBytes != 8192 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.LastEpisode != last.CreatedAt {
		t.Fatalf("last episode = %q, want %q", stats.LastEpisode, last.CreatedAt)
	}
}

func TestDurations(t *testing.T) {
	formatCases := map[int]string{0: "0:00", 59: "0:59", 125: "2:05", 3600: "1:00:00", 3725: "1:02:05", -5: "0:00"}
	for in, want := range formatCases {
		if got := feeds.FormatDuration(in); got != want {
			t.Errorf("FormatDuration(%d) = %q, want %q", in, got, want)
		}
	}

	parseCases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"", 0, true},
		{"45", 45, true},
		{"2:05", 125, true},
		{"1:02:05", 3725, true},
		{" 10:00 ", 600, true},
		{"1:2:3:4", 0, false},
		{"a:10", 0, false},
		{"-1", 0, false},
	}
	for _, tt := range parseCases {
		got, err := feeds.ParseDuration(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseDuration(%q) = %d, %v", tt.in, got, err)
		}
	}
}

func TestDetectAudioType(t *testing.T) {
	tests := []struct {
		name string
		head []byte
		want string
	}{
		{"id3", []byte("ID3\x04\x00rest"), "audio/mpeg"},
		{"mpeg frame", []byte{0xFF, 0xFB, 0x90, 0x00}, "audio/mpeg"},
		{"adts", []byte{0xFF, 0xF1, 0x50, 0x80}, "audio/aac"},
		{"m4a", []byte("\x00\x00\x00\x20ftypM4A \x00\x00\x00\x00"), "audio/x-m4a"},
		{"mp4", []byte("\x00\x00\x00\x20ftypisom\x00\x00\x02\x00"), "video/mp4"},
		{"text", []byte("hello world"), "text/plain"},
	}
	for _, tt := range tests {
		if got := feeds.DetectAudioType(tt.head); got != tt.want {
			t.Errorf("%s: DetectAudioType = %q, want %q", tt.name, got, tt.want)
		}
	}
}
