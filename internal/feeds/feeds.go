package feeds

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"os"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"lauschr/internal/apperr"
	"lauschr/internal/docstore"
	"lauschr/internal/itunes"
	"lauschr/internal/language"
	"lauschr/internal/logging"
	"lauschr/internal/permission"
	"lauschr/internal/slugindex"
	"lauschr/internal/textutil"
)

// Create stores a new empty feed owned by ownerID, reserves its slug and
// creates its audio directory.
func (s *Service) Create(ctx context.Context, input FeedInput, ownerID string) (Feed, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return Feed{}, apperr.Validation(component, "create feed", "owner id is required")
	}
	fields, err := cleanFeedFields(feedFields{
		title:       &input.Title,
		description: &input.Description,
		author:      &input.Author,
		email:       &input.Email,
		language:    &input.Language,
		image:       &input.Image,
		website:     &input.Website,
		category:    &input.Category,
	}, "create feed")
	if err != nil {
		return Feed{}, err
	}

	now := s.timestamp()
	feed := Feed{
		ID:            s.newID(feedIDPrefix),
		OwnerID:       ownerID,
		Title:         *fields.title,
		Description:   *fields.description,
		Author:        *fields.author,
		Email:         *fields.email,
		Language:      *fields.language,
		Explicit:      boolOr(input.Explicit, s.cfg.Feed.DefaultExplicit),
		Image:         *fields.image,
		Website:       *fields.website,
		Category:      *fields.category,
		Collaborators: map[string]string{},
		Episodes:      []Episode{},
		Settings: Settings{
			IsPublic:    boolOr(input.IsPublic, true),
			RequireAuth: boolOr(input.RequireAuth, false),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if feed.Language == "" {
		feed.Language = s.cfg.Feed.DefaultLanguage
	}

	slug, err := s.slugs.Reserve(ctx, textutil.SlugOr(feed.Title, slugFallback), feed.ID)
	if err != nil {
		return Feed{}, err
	}
	feed.Slug = slug

	audioDir := s.cfg.FeedAudioDir(feed.ID)
	if err := os.MkdirAll(audioDir, 0o755); err != nil {
		s.releaseSlug(ctx, feed.ID)
		return Feed{}, apperr.Wrap(apperr.ErrStorageUnavailable, component, "create feed", "create audio directory", err)
	}
	if err := s.store.Write(docName(feed.ID), feed); err != nil {
		s.releaseSlug(ctx, feed.ID)
		_ = os.Remove(audioDir)
		return Feed{}, err
	}

	s.log(ctx).Info("feed created",
		logging.FeedID(feed.ID),
		logging.String("slug", feed.Slug),
		logging.String("owner_id", feed.OwnerID),
	)
	return feed, nil
}

// Get loads a feed by ID.
func (s *Service) Get(ctx context.Context, id string) (Feed, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Feed{}, apperr.NotFound(component, "get feed", "empty feed id")
	}
	if err := ctx.Err(); err != nil {
		return Feed{}, err
	}
	feed, err := docstore.Read(s.store, docName(id), Feed{})
	if err != nil {
		return Feed{}, err
	}
	if feed.ID == "" {
		return Feed{}, apperr.NotFound(component, "get feed", id)
	}
	return normalizeFeed(feed), nil
}

// GetBySlug resolves a public slug to its feed.
func (s *Service) GetBySlug(ctx context.Context, slug string) (Feed, error) {
	slug = strings.TrimSpace(slug)
	feedID, ok, err := s.slugs.Lookup(ctx, slug)
	if err != nil {
		return Feed{}, err
	}
	if !ok {
		return Feed{}, apperr.NotFound(component, "get feed by slug", slug)
	}
	feed, err := s.Get(ctx, feedID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Feed{}, apperr.NotFound(component, "get feed by slug", slug)
		}
		return Feed{}, err
	}
	// A stale index row must not resolve to a feed that moved on.
	if feed.Slug != slug {
		return Feed{}, apperr.NotFound(component, "get feed by slug", slug)
	}
	return feed, nil
}

// List returns every feed, newest created first.
func (s *Service) List(ctx context.Context) ([]Feed, error) {
	ids, err := s.store.List(feedsDir)
	if err != nil {
		return nil, err
	}
	feeds, err := s.loadFeeds(ctx, ids)
	if err != nil {
		return nil, err
	}
	sortByCreatedDesc(feeds)
	return feeds, nil
}

// ListByOwner returns the feeds owned by userID.
func (s *Service) ListByOwner(ctx context.Context, userID string) ([]Feed, error) {
	return s.filter(ctx, func(f Feed) bool { return f.OwnerID == userID })
}

// ListByCollaborator returns the feeds where userID holds a collaborator role.
func (s *Service) ListByCollaborator(ctx context.Context, userID string) ([]Feed, error) {
	return s.filter(ctx, func(f Feed) bool {
		_, ok := f.Collaborators[userID]
		return ok
	})
}

// ListAccessible returns the feeds userID owns or collaborates on.
func (s *Service) ListAccessible(ctx context.Context, userID string) ([]Feed, error) {
	return s.filter(ctx, func(f Feed) bool {
		if f.OwnerID == userID {
			return true
		}
		_, ok := f.Collaborators[userID]
		return ok
	})
}

func (s *Service) filter(ctx context.Context, keep func(Feed) bool) ([]Feed, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Feed, 0, len(all))
	for _, feed := range all {
		if keep(feed) {
			out = append(out, feed)
		}
	}
	return out, nil
}

// loadFeeds reads the given documents concurrently. Documents removed between
// listing and reading are skipped.
func (s *Service) loadFeeds(ctx context.Context, ids []string) ([]Feed, error) {
	loaded := make([]Feed, len(ids))
	present := make([]bool, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			feed, err := s.Get(gctx, id)
			if errors.Is(err, apperr.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			loaded[i] = feed
			present[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make([]Feed, 0, len(ids))
	for i, feed := range loaded {
		if present[i] {
			out = append(out, feed)
		}
	}
	return out, nil
}

func sortByCreatedDesc(feeds []Feed) {
	slices.SortStableFunc(feeds, func(a, b Feed) int {
		if c := strings.Compare(b.CreatedAt, a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// Update applies the non-nil fields of patch. A changed title moves the feed
// to a freshly reserved slug.
func (s *Service) Update(ctx context.Context, id string, patch FeedPatch) (Feed, error) {
	fields, err := cleanFeedFields(feedFields{
		title:       patch.Title,
		description: patch.Description,
		author:      patch.Author,
		email:       patch.Email,
		language:    patch.Language,
		image:       patch.Image,
		website:     patch.Website,
		category:    patch.Category,
	}, "update feed")
	if err != nil {
		return Feed{}, err
	}

	var previousSlug string
	var reserved bool
	updated, err := docstore.UpdateExisting(s.store, docName(id), func(feed Feed) (Feed, error) {
		feed = normalizeFeed(feed)
		previousSlug = feed.Slug
		retitled := fields.title != nil && *fields.title != feed.Title

		assign(&feed.Title, fields.title)
		assign(&feed.Description, fields.description)
		assign(&feed.Author, fields.author)
		assign(&feed.Email, fields.email)
		assign(&feed.Language, fields.language)
		assign(&feed.Image, fields.image)
		assign(&feed.Website, fields.website)
		assign(&feed.Category, fields.category)
		assign(&feed.Explicit, patch.Explicit)
		assign(&feed.Settings.IsPublic, patch.IsPublic)
		assign(&feed.Settings.RequireAuth, patch.RequireAuth)
		if feed.Language == "" {
			feed.Language = s.cfg.Feed.DefaultLanguage
		}

		if retitled || feed.Slug == "" {
			slug, err := s.slugs.Reserve(ctx, textutil.SlugOr(feed.Title, slugFallback), feed.ID)
			if err != nil {
				return feed, err
			}
			reserved = slug != previousSlug
			feed.Slug = slug
		}
		feed.UpdatedAt = s.timestamp()
		return feed, nil
	})
	if err != nil {
		if reserved && previousSlug != "" {
			s.restoreSlug(ctx, id, previousSlug)
		}
		return Feed{}, err
	}

	attrs := []logging.Attr{logging.FeedID(updated.ID)}
	if reserved {
		attrs = append(attrs, logging.String("previous_slug", previousSlug), logging.String("slug", updated.Slug))
	}
	s.log(ctx).Info("feed updated", logging.Args(attrs...)...)
	return normalizeFeed(updated), nil
}

// Delete removes the feed's audio directory, then its document, then its slug
// reservation. A failed directory removal aborts before the document is
// touched.
func (s *Service) Delete(ctx context.Context, id string) error {
	feed, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	logger := s.log(ctx).With(logging.FeedID(feed.ID))

	audioDir := s.cfg.FeedAudioDir(feed.ID)
	if err := os.RemoveAll(audioDir); err != nil {
		logging.ErrorWithContext(logger, "feed audio removal failed", "feed_audio_remove_failed",
			logging.String("audio_dir", audioDir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the audio directory and retry"),
			logging.String(logging.FieldImpact, "feed was not deleted"),
		)
		return apperr.Wrap(apperr.ErrStorageUnavailable, component, "delete feed", "remove audio directory", err)
	}
	logger.Debug("feed audio removed", logging.String("audio_dir", audioDir))

	if err := s.store.Delete(docName(feed.ID)); err != nil {
		return err
	}
	s.releaseSlug(ctx, feed.ID)
	logger.Info("feed deleted", logging.String("slug", feed.Slug), logging.Int("episodes", len(feed.Episodes)))
	return nil
}

// Stats summarises a feed's episodes and collaborators.
func (s *Service) Stats(ctx context.Context, id string) (Stats, error) {
	feed, err := s.Get(ctx, id)
	if err != nil {
		return Stats{}, err
	}
	return StatsOf(feed), nil
}

// StatsOf computes Stats for an already loaded feed. LastEpisode is the
// creation time of the head of the stored episode list.
func StatsOf(feed Feed) Stats {
	stats := Stats{
		EpisodeCount:      len(feed.Episodes),
		CollaboratorCount: len(feed.Collaborators),
	}
	for _, ep := range feed.Episodes {
		stats.TotalDuration += ep.Duration
		stats.TotalBytes += ep.FileSize
		if ep.Published() {
			stats.PublishedCount++
		}
	}
	if len(feed.Episodes) > 0 {
		stats.LastEpisode = feed.Episodes[0].CreatedAt
	}
	return stats
}

// PublicURL returns the public page URL of a feed.
func (s *Service) PublicURL(feed Feed) string {
	return s.cfg.App.BaseURL + "/feed/" + feedPathKey(feed)
}

// RSSURL returns the URL podcatchers subscribe to.
func (s *Service) RSSURL(feed Feed) string {
	return s.PublicURL(feed) + "/rss.xml"
}

func feedPathKey(feed Feed) string {
	if feed.Slug != "" {
		return feed.Slug
	}
	return feed.ID
}

// Authorize loads the feed and checks that userID may perform action on it.
func (s *Service) Authorize(ctx context.Context, feedID, userID string, action permission.Action) (Feed, error) {
	feed, err := s.Get(ctx, feedID)
	if err != nil {
		return Feed{}, err
	}
	if !s.perms.Can(action, feed, userID) {
		return Feed{}, apperr.Wrap(apperr.ErrPermissionDenied, component, "authorize",
			fmt.Sprintf("user %s lacks %s on feed %s", userID, action, feed.ID), nil)
	}
	return feed, nil
}

// Capabilities returns the role and capability flags of userID on a feed.
func (s *Service) Capabilities(ctx context.Context, feedID, userID string) (permission.Capabilities, error) {
	feed, err := s.Get(ctx, feedID)
	if err != nil {
		return permission.Capabilities{}, err
	}
	return s.perms.Capabilities(feed, userID), nil
}

// Reindex rebuilds the slug index from the feed documents. Feeds whose slug
// is missing or already claimed by an older feed receive a fresh slug, which
// is written back to their document. It returns the number of feeds that
// were re-slugged.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	feeds, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	slices.Reverse(feeds)

	claimed := make(map[string]bool, len(feeds))
	entries := make([]slugindex.Entry, 0, len(feeds))
	var conflicts []Feed
	for _, feed := range feeds {
		if feed.Slug == "" || claimed[feed.Slug] {
			conflicts = append(conflicts, feed)
			continue
		}
		claimed[feed.Slug] = true
		entries = append(entries, slugindex.Entry{FeedID: feed.ID, Slug: feed.Slug})
	}
	if err := s.slugs.Rebuild(ctx, entries); err != nil {
		return 0, err
	}

	for _, feed := range conflicts {
		slug, err := s.slugs.Reserve(ctx, textutil.SlugOr(feed.Title, slugFallback), feed.ID)
		if err != nil {
			return 0, err
		}
		_, err = docstore.UpdateExisting(s.store, docName(feed.ID), func(current Feed) (Feed, error) {
			current.Slug = slug
			current.UpdatedAt = s.timestamp()
			return current, nil
		})
		if err != nil {
			return 0, err
		}
		logging.WarnWithContext(s.log(ctx), "feed slug reassigned", "feed_slug_reassigned",
			logging.FeedID(feed.ID),
			logging.String("previous_slug", feed.Slug),
			logging.String("slug", slug),
			logging.String(logging.FieldErrorHint, "old public links for this feed no longer resolve"),
			logging.String(logging.FieldImpact, "feed URL changed"),
		)
	}
	s.log(ctx).Info("slug index rebuilt", logging.Int("feeds", len(feeds)), logging.Int("reassigned", len(conflicts)))
	return len(conflicts), nil
}

func (s *Service) releaseSlug(ctx context.Context, feedID string) {
	if err := s.slugs.Release(ctx, feedID); err != nil {
		logging.WarnWithContext(s.log(ctx), "slug release failed", "slug_release_failed",
			logging.FeedID(feedID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run lauschr feed reindex"),
			logging.String(logging.FieldImpact, "slug stays reserved until the index is rebuilt"),
		)
	}
}

// restoreSlug moves the reservation back after an update that reserved a new
// slug failed to persist.
func (s *Service) restoreSlug(ctx context.Context, feedID, slug string) {
	got, err := s.slugs.Reserve(ctx, slug, feedID)
	if err == nil && got == slug {
		return
	}
	attrs := []logging.Attr{
		logging.FeedID(feedID),
		logging.String("slug", slug),
		logging.String(logging.FieldErrorHint, "run lauschr feed reindex"),
		logging.String(logging.FieldImpact, "public URL may not resolve"),
	}
	if err != nil {
		attrs = append(attrs, logging.Error(err))
	}
	logging.WarnWithContext(s.log(ctx), "slug restore failed", "slug_restore_failed", attrs...)
}

type feedFields struct {
	title       *string
	description *string
	author      *string
	email       *string
	language    *string
	image       *string
	website     *string
	category    *string
}

// cleanFeedFields trims and validates the string fields that are set.
func cleanFeedFields(in feedFields, operation string) (feedFields, error) {
	out := feedFields{
		title:       trimmed(in.title),
		description: trimmed(in.description),
		author:      trimmed(in.author),
		email:       trimmed(in.email),
		language:    trimmed(in.language),
		image:       trimmed(in.image),
		website:     trimmed(in.website),
		category:    trimmed(in.category),
	}
	if out.title != nil && *out.title == "" {
		return out, apperr.Validation(component, operation, "title is required")
	}
	if out.description != nil {
		clean := textutil.SanitizeHTML(*out.description)
		out.description = &clean
	}
	if out.language != nil && *out.language != "" {
		code, ok := language.Normalize(*out.language)
		if !ok {
			return out, apperr.Validation(component, operation, fmt.Sprintf("unknown language %q", *out.language))
		}
		out.language = &code
	}
	if out.email != nil && *out.email != "" {
		addr, err := mail.ParseAddress(*out.email)
		if err != nil || addr.Address != *out.email {
			return out, apperr.Validation(component, operation, fmt.Sprintf("invalid email %q", *out.email))
		}
	}
	if out.website != nil && *out.website != "" {
		if err := validateHTTPURL(*out.website); err != nil {
			return out, apperr.Validation(component, operation, fmt.Sprintf("invalid website %q: %v", *out.website, err))
		}
	}
	if out.category != nil && *out.category != "" {
		canonical, ok := itunes.Canonical(*out.category)
		if !ok {
			return out, apperr.Validation(component, operation, fmt.Sprintf("unknown category %q", *out.category))
		}
		out.category = &canonical
	}
	return out, nil
}

func validateHTTPURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("scheme must be http or https")
	}
	if parsed.Host == "" {
		return errors.New("host is missing")
	}
	return nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	return &v
}

func assign[T any](dst *T, value *T) {
	if value != nil {
		*dst = *value
	}
}

func boolOr(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}
