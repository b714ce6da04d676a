package rss

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/xml"
	"log/slog"
	"strings"
	"time"

	"lauschr/internal/apperr"
	"lauschr/internal/config"
	"lauschr/internal/feeds"
	"lauschr/internal/itunes"
	"lauschr/internal/logging"
)

const (
	component = "rss"

	// ContentType is the media type feeds are served with.
	ContentType = "application/rss+xml"

	defaultFeedTitle    = "Untitled Feed"
	defaultEpisodeTitle = "Untitled"
	defaultEnclosure    = "audio/mpeg"
	defaultLanguage     = "de"
)

// Generator renders feeds using the installation's base URL and limits.
type Generator struct {
	baseURL     string
	name        string
	language    string
	maxEpisodes int
	logger      *slog.Logger
	now         func() time.Time
}

// Option customizes a Generator.
type Option func(*Generator)

// WithClock overrides the clock used for lastBuildDate.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGenerator builds a Generator from configuration.
func NewGenerator(cfg *config.Config, logger *slog.Logger, opts ...Option) *Generator {
	g := &Generator{
		baseURL:     strings.TrimRight(cfg.App.BaseURL, "/"),
		name:        cfg.App.Name,
		language:    cfg.Feed.DefaultLanguage,
		maxEpisodes: cfg.Feed.MaxEpisodesInFeed,
		logger:      logging.NewComponentLogger(logger, component),
		now:         time.Now,
	}
	if g.language == "" {
		g.language = defaultLanguage
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate renders feed as an RSS document. Items are the published
// episodes among the newest max_episodes_in_feed by publish date.
func (g *Generator) Generate(feed feeds.Feed) ([]byte, error) {
	doc := document{
		Version:   "2.0",
		ITunesNS:  namespaceITunes,
		ContentNS: namespaceContent,
		AtomNS:    namespaceAtom,
		Channel:   g.channel(feed),
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, apperr.Wrap(apperr.ErrValidation, component, "generate", feed.ID, err)
	}
	if err := enc.Close(); err != nil {
		return nil, apperr.Wrap(apperr.ErrValidation, component, "generate", feed.ID, err)
	}
	buf.WriteByte('\n')

	g.logger.Debug("feed rendered",
		logging.FeedID(feed.ID),
		logging.Int("items", len(doc.Channel.Items)),
		logging.Int(logging.FieldBytes, buf.Len()),
	)
	return buf.Bytes(), nil
}

func (g *Generator) channel(feed feeds.Feed) channel {
	title := orDefault(feed.Title, defaultFeedTitle)
	link := g.feedURL(feed)
	ch := channel{
		Title:          text(title),
		Description:    text(feed.Description),
		Language:       text(orDefault(feed.Language, g.language)),
		Link:           text(link),
		LastBuildDate:  text(g.now().UTC().Format(time.RFC1123Z)),
		Generator:      text(orDefault(g.name, "LauschR")),
		AtomLink:       atomLink{Href: link + "/rss.xml", Rel: "self", Type: ContentType},
		ITunesAuthor:   text(feed.Author),
		ITunesSummary:  text(feed.Description),
		ITunesExplicit: yesNo(feed.Explicit),
	}
	if feed.Author != "" || feed.Email != "" {
		ch.ITunesOwner = &owner{Name: text(feed.Author), Email: text(feed.Email)}
	}
	if feed.Image != "" {
		imageURL := g.resolveURL(feed.Image)
		ch.Image = &image{URL: text(imageURL), Title: text(title), Link: text(link)}
		ch.ITunesImage = &hrefImage{Href: imageURL}
	}
	if feed.Category != "" {
		top, sub := itunes.Split(feed.Category)
		ch.ITunesCategory = &category{Text: top}
		if sub != "" {
			ch.ITunesCategory.Sub = &category{Text: sub}
		}
	}

	episodes := feeds.SortedEpisodes(feed.Episodes)
	if g.maxEpisodes > 0 && len(episodes) > g.maxEpisodes {
		episodes = episodes[:g.maxEpisodes]
	}
	for _, ep := range episodes {
		if !ep.Published() {
			continue
		}
		ch.Items = append(ch.Items, g.item(ep, feed))
	}
	return ch
}

func (g *Generator) item(ep feeds.Episode, feed feeds.Feed) item {
	it := item{
		Title:          text(orDefault(ep.Title, defaultEpisodeTitle)),
		Description:    text(ep.Description),
		GUID:           text(guidFor(ep)),
		PubDate:        text(pubDate(ep)),
		ITunesAuthor:   text(orDefault(ep.Author, feed.Author)),
		ITunesExplicit: yesNo(ep.Explicit),
		ITunesSummary:  text(ep.Description),
	}
	if ep.Duration > 0 {
		it.ITunesDuration = text(feeds.FormatDuration(ep.Duration))
	}
	if ep.AudioURL != "" {
		it.Enclosure = &enclosure{
			URL:    g.resolveURL(ep.AudioURL),
			Length: ep.FileSize,
			Type:   orDefault(ep.MimeType, defaultEnclosure),
		}
	}
	return it
}

func (g *Generator) feedURL(feed feeds.Feed) string {
	key := feed.Slug
	if key == "" {
		key = feed.ID
	}
	return g.baseURL + "/feed/" + key
}

// resolveURL passes absolute http(s) URLs through and anchors everything
// else at the base URL.
func (g *Generator) resolveURL(ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return g.baseURL + "/" + strings.TrimLeft(ref, "/")
}

// guidFor returns the stored GUID, then the episode ID, then a hash of the
// audio URL and publish date so the value is stable across renders.
func guidFor(ep feeds.Episode) string {
	if ep.GUID != "" {
		return ep.GUID
	}
	if ep.ID != "" {
		return ep.ID
	}
	sum := sha1.Sum([]byte(ep.AudioURL + ep.PublishDate))
	return hex.EncodeToString(sum[:])
}

// pubDate formats the publish date (or creation time) as RFC 1123 with a
// numeric zone. Unparseable values produce no pubDate element.
func pubDate(ep feeds.Episode) string {
	for _, value := range []string{ep.PublishDate, ep.CreatedAt} {
		if value == "" {
			continue
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if parsed, err := time.Parse(layout, value); err == nil {
				return parsed.Format(time.RFC1123Z)
			}
		}
		return ""
	}
	return ""
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// Categories returns the iTunes category catalogue feeds may use.
func Categories() []itunes.Category {
	return itunes.Categories()
}
