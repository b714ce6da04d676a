package feeds

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"lauschr/internal/apperr"
	"lauschr/internal/docstore"
	"lauschr/internal/logging"
	"lauschr/internal/textutil"
)

// publishDateLayouts are the accepted publish_date input formats, tried in
// order. Values without a zone are read as UTC.
var publishDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// CreateEpisode validates the upload, moves it into the feed's audio directory
// and inserts the new episode at the head of the episode list. The feed must
// exist before the upload is examined.
func (s *Service) CreateEpisode(ctx context.Context, feedID string, input EpisodeInput, upload Upload) (Episode, error) {
	const op = "create episode"
	if _, err := s.Get(ctx, feedID); err != nil {
		return Episode{}, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return Episode{}, apperr.Validation(component, op, "title is required")
	}
	if input.Duration < 0 {
		return Episode{}, apperr.Validation(component, op, "duration must not be negative")
	}
	status, err := normalizeStatus(input.Status, op)
	if err != nil {
		return Episode{}, err
	}
	publishDate, err := s.normalizePublishDate(input.PublishDate, op)
	if err != nil {
		return Episode{}, err
	}

	checked, err := s.checkUpload(upload)
	if err != nil {
		s.logRejectedUpload(ctx, feedID, err)
		return Episode{}, err
	}
	stored, err := s.storeUpload(ctx, feedID, checked)
	if err != nil {
		s.logRejectedUpload(ctx, feedID, err)
		return Episode{}, err
	}

	now := s.timestamp()
	episode := Episode{
		ID:          s.newID(episodeIDPrefix),
		Title:       title,
		Description: textutil.SanitizeHTML(strings.TrimSpace(input.Description)),
		Author:      strings.TrimSpace(input.Author),
		Duration:    input.Duration,
		Explicit:    input.Explicit,
		PublishDate: publishDate,
		AudioFile:   stored.FileName,
		AudioURL:    stored.URL,
		FileSize:    stored.Size,
		MimeType:    stored.MimeType,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
		CreatedBy:   strings.TrimSpace(input.CreatedBy),
	}
	episode.GUID = episode.ID

	_, err = docstore.UpdateExisting(s.store, docName(feedID), func(feed Feed) (Feed, error) {
		feed = normalizeFeed(feed)
		if episode.Author == "" {
			episode.Author = feed.Author
		}
		feed.Episodes = append([]Episode{episode}, feed.Episodes...)
		feed.UpdatedAt = now
		return feed, nil
	})
	if err != nil {
		if rmErr := s.removeAudio(feedID, stored.FileName); rmErr != nil {
			logging.WarnWithContext(s.log(ctx), "orphaned audio not removed", "audio_orphaned",
				logging.FeedID(feedID),
				logging.String("audio_file", stored.FileName),
				logging.Error(rmErr),
				logging.String(logging.FieldErrorHint, "remove the file from the feed audio directory"),
				logging.String(logging.FieldImpact, "disk space is used by an unreferenced file"),
			)
		}
		return Episode{}, err
	}

	s.log(ctx).Info("episode created",
		logging.FeedID(feedID),
		logging.EpisodeID(episode.ID),
		logging.String("audio_file", episode.AudioFile),
		logging.String("status", episode.Status),
	)
	return episode, nil
}

// GetEpisode returns one episode of a feed.
func (s *Service) GetEpisode(ctx context.Context, feedID, episodeID string) (Episode, error) {
	feed, err := s.Get(ctx, feedID)
	if err != nil {
		return Episode{}, err
	}
	idx := indexOfEpisode(feed.Episodes, episodeID)
	if idx < 0 {
		return Episode{}, apperr.NotFound(component, "get episode", fmt.Sprintf("episode %s in feed %s", episodeID, feedID))
	}
	return feed.Episodes[idx], nil
}

// ListEpisodes returns a feed's episodes, most recent publish date first.
func (s *Service) ListEpisodes(ctx context.Context, feedID string) ([]Episode, error) {
	feed, err := s.Get(ctx, feedID)
	if err != nil {
		return nil, err
	}
	return SortedEpisodes(feed.Episodes), nil
}

// SortedEpisodes returns a copy of episodes ordered by publish date,
// descending. Episodes with equal dates keep their stored order.
func SortedEpisodes(episodes []Episode) []Episode {
	out := slices.Clone(episodes)
	if out == nil {
		out = []Episode{}
	}
	slices.SortStableFunc(out, func(a, b Episode) int {
		return strings.Compare(b.PublishDate, a.PublishDate)
	})
	return out
}

// LatestEpisodes merges the episodes of the given feeds and returns the limit
// most recent by publish date. Missing feeds are skipped; limit <= 0 means no
// limit.
func (s *Service) LatestEpisodes(ctx context.Context, feedIDs []string, limit int) ([]FeedEpisode, error) {
	feeds, err := s.loadFeeds(ctx, feedIDs)
	if err != nil {
		return nil, err
	}
	var all []FeedEpisode
	for _, feed := range feeds {
		for _, ep := range feed.Episodes {
			all = append(all, FeedEpisode{FeedID: feed.ID, FeedTitle: feed.Title, FeedSlug: feed.Slug, Episode: ep})
		}
	}
	slices.SortStableFunc(all, func(a, b FeedEpisode) int {
		return strings.Compare(b.Episode.PublishDate, a.Episode.PublishDate)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	if all == nil {
		all = []FeedEpisode{}
	}
	return all, nil
}

// UpdateEpisode applies the non-nil fields of patch to one episode.
func (s *Service) UpdateEpisode(ctx context.Context, feedID, episodeID string, patch EpisodePatch) (Episode, error) {
	const op = "update episode"
	title := trimmed(patch.Title)
	if title != nil && *title == "" {
		return Episode{}, apperr.Validation(component, op, "title is required")
	}
	description := trimmed(patch.Description)
	if description != nil {
		clean := textutil.SanitizeHTML(*description)
		description = &clean
	}
	if patch.Duration != nil && *patch.Duration < 0 {
		return Episode{}, apperr.Validation(component, op, "duration must not be negative")
	}
	var status *string
	if patch.Status != nil {
		value, err := normalizeStatus(*patch.Status, op)
		if err != nil {
			return Episode{}, err
		}
		status = &value
	}
	var publishDate *string
	if patch.PublishDate != nil {
		value, err := s.normalizePublishDate(*patch.PublishDate, op)
		if err != nil {
			return Episode{}, err
		}
		publishDate = &value
	}

	var result Episode
	_, err := docstore.UpdateExisting(s.store, docName(feedID), func(feed Feed) (Feed, error) {
		feed = normalizeFeed(feed)
		idx := indexOfEpisode(feed.Episodes, episodeID)
		if idx < 0 {
			return feed, apperr.NotFound(component, op, fmt.Sprintf("episode %s in feed %s", episodeID, feedID))
		}
		ep := &feed.Episodes[idx]
		assign(&ep.Title, title)
		assign(&ep.Description, description)
		assign(&ep.Author, trimmed(patch.Author))
		assign(&ep.Duration, patch.Duration)
		assign(&ep.Explicit, patch.Explicit)
		assign(&ep.PublishDate, publishDate)
		assign(&ep.Status, status)
		now := s.timestamp()
		ep.UpdatedAt = now
		feed.UpdatedAt = now
		result = *ep
		return feed, nil
	})
	if err != nil {
		return Episode{}, err
	}
	s.log(ctx).Info("episode updated",
		logging.FeedID(feedID),
		logging.EpisodeID(episodeID),
	)
	return result, nil
}

// DeleteEpisode removes the episode's audio file, then its record. A failed
// file removal aborts before the record is touched.
func (s *Service) DeleteEpisode(ctx context.Context, feedID, episodeID string) error {
	episode, err := s.GetEpisode(ctx, feedID, episodeID)
	if err != nil {
		return err
	}
	logger := s.log(ctx).With(
		logging.FeedID(feedID),
		logging.EpisodeID(episodeID),
	)
	if err := s.removeAudio(feedID, episode.AudioFile); err != nil {
		logging.ErrorWithContext(logger, "episode audio removal failed", "episode_audio_remove_failed",
			logging.String("audio_file", episode.AudioFile),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the feed audio directory and retry"),
			logging.String(logging.FieldImpact, "episode was not deleted"),
		)
		return apperr.Wrap(apperr.ErrStorageUnavailable, component, "delete episode", "remove audio file", err)
	}

	_, err = docstore.UpdateExisting(s.store, docName(feedID), func(feed Feed) (Feed, error) {
		idx := indexOfEpisode(feed.Episodes, episodeID)
		if idx < 0 {
			return feed, docstore.ErrSkipWrite
		}
		feed.Episodes = slices.Delete(feed.Episodes, idx, idx+1)
		feed.UpdatedAt = s.timestamp()
		return feed, nil
	})
	if err != nil {
		return err
	}
	logger.Info("episode deleted", logging.String("audio_file", episode.AudioFile))
	return nil
}

// ReplaceAudio swaps an episode's audio for a new upload. The new file is
// validated and stored first; the old file is removed only after the record
// points at the new one.
func (s *Service) ReplaceAudio(ctx context.Context, feedID, episodeID string, upload Upload) (Episode, error) {
	const op = "replace audio"
	if _, err := s.GetEpisode(ctx, feedID, episodeID); err != nil {
		return Episode{}, err
	}
	checked, err := s.checkUpload(upload)
	if err != nil {
		s.logRejectedUpload(ctx, feedID, err)
		return Episode{}, err
	}
	stored, err := s.storeUpload(ctx, feedID, checked)
	if err != nil {
		s.logRejectedUpload(ctx, feedID, err)
		return Episode{}, err
	}

	var previousFile string
	var result Episode
	_, err = docstore.UpdateExisting(s.store, docName(feedID), func(feed Feed) (Feed, error) {
		idx := indexOfEpisode(feed.Episodes, episodeID)
		if idx < 0 {
			return feed, apperr.NotFound(component, op, fmt.Sprintf("episode %s in feed %s", episodeID, feedID))
		}
		ep := &feed.Episodes[idx]
		previousFile = ep.AudioFile
		ep.AudioFile = stored.FileName
		ep.AudioURL = stored.URL
		ep.FileSize = stored.Size
		ep.MimeType = stored.MimeType
		now := s.timestamp()
		ep.UpdatedAt = now
		feed.UpdatedAt = now
		result = *ep
		return feed, nil
	})
	if err != nil {
		_ = s.removeAudio(feedID, stored.FileName)
		return Episode{}, err
	}

	logger := s.log(ctx).With(
		logging.FeedID(feedID),
		logging.EpisodeID(episodeID),
	)
	if previousFile != "" && previousFile != stored.FileName {
		if err := s.removeAudio(feedID, previousFile); err != nil {
			logging.WarnWithContext(logger, "previous audio not removed", "audio_orphaned",
				logging.String("audio_file", previousFile),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the file from the feed audio directory"),
				logging.String(logging.FieldImpact, "disk space is used by an unreferenced file"),
			)
		}
	}
	logger.Info("episode audio replaced",
		logging.String("previous_audio_file", previousFile),
		logging.String("audio_file", stored.FileName),
	)
	return result, nil
}

// ReorderEpisodes moves the listed episodes to the front in the given order.
// Episodes not listed follow in their previous relative order; unknown and
// repeated IDs are ignored.
func (s *Service) ReorderEpisodes(ctx context.Context, feedID string, episodeIDs []string) (Feed, error) {
	updated, err := docstore.UpdateExisting(s.store, docName(feedID), func(feed Feed) (Feed, error) {
		feed = normalizeFeed(feed)
		feed.Episodes = reorder(feed.Episodes, episodeIDs)
		feed.UpdatedAt = s.timestamp()
		return feed, nil
	})
	if err != nil {
		return Feed{}, err
	}
	s.log(ctx).Info("episodes reordered",
		logging.FeedID(feedID),
		logging.Int("listed", len(episodeIDs)),
	)
	return normalizeFeed(updated), nil
}

func reorder(episodes []Episode, ids []string) []Episode {
	byID := make(map[string]int, len(episodes))
	for i, ep := range episodes {
		byID[ep.ID] = i
	}
	used := make([]bool, len(episodes))
	out := make([]Episode, 0, len(episodes))
	for _, id := range ids {
		idx, ok := byID[id]
		if !ok || used[idx] {
			continue
		}
		used[idx] = true
		out = append(out, episodes[idx])
	}
	for i, ep := range episodes {
		if !used[i] {
			out = append(out, ep)
		}
	}
	return out
}

func indexOfEpisode(episodes []Episode, episodeID string) int {
	return slices.IndexFunc(episodes, func(ep Episode) bool { return ep.ID == episodeID })
}

func normalizeStatus(value, operation string) (string, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return StatusPublished, nil
	}
	if !slices.Contains(Statuses, value) {
		return "", apperr.Validation(component, operation,
			fmt.Sprintf("invalid status %q, expected one of %s", value, strings.Join(Statuses, ", ")))
	}
	return value, nil
}

// normalizePublishDate parses value in one of the accepted layouts and
// returns it as RFC 3339 UTC so string order matches time order. Empty input
// means now.
func (s *Service) normalizePublishDate(value, operation string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return s.timestamp(), nil
	}
	for _, layout := range publishDateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC().Format(time.RFC3339), nil
		}
	}
	return "", apperr.Validation(component, operation, fmt.Sprintf("invalid publish date %q", value))
}

func (s *Service) logRejectedUpload(ctx context.Context, feedID string, err error) {
	logging.WarnWithContext(s.log(ctx), "upload rejected", "upload_rejected",
		logging.FeedID(feedID),
		logging.Error(err),
		logging.ErrorKind(err),
		logging.String(logging.FieldErrorHint, "fix the file and upload again"),
		logging.String(logging.FieldImpact, "episode audio was not stored"),
	)
}
