package feeds

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"lauschr/internal/apperr"
	"lauschr/internal/config"
	"lauschr/internal/docstore"
	"lauschr/internal/logging"
	"lauschr/internal/permission"
	"lauschr/internal/slugindex"
)

const (
	component       = "feeds"
	feedsDir        = "feeds"
	feedIDPrefix    = "feed_"
	episodeIDPrefix = "ep_"
	idHexLength     = 24
	slugFallback    = "feed"
	loadConcurrency = 8
)

// Service implements feed and episode operations on top of the document store.
type Service struct {
	cfg    *config.Config
	store  *docstore.Store
	slugs  *slugindex.Index
	perms  *permission.Resolver
	logger *slog.Logger
	now    func() time.Time
	newID  func(prefix string) string
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the clock used for timestamps and audio file names.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithResolver replaces the permission resolver built from cfg.
func WithResolver(resolver *permission.Resolver) Option {
	return func(s *Service) {
		if resolver != nil {
			s.perms = resolver
		}
	}
}

// New constructs a Service. cfg, store and slugs are required.
func New(cfg *config.Config, store *docstore.Store, slugs *slugindex.Index, logger *slog.Logger, opts ...Option) (*Service, error) {
	if cfg == nil || store == nil || slugs == nil {
		return nil, apperr.Validation(component, "new service", "config, store and slug index are required")
	}
	s := &Service{
		cfg:    cfg,
		store:  store,
		slugs:  slugs,
		perms:  permission.NewResolverFromConfig(cfg),
		logger: logging.NewComponentLogger(logger, component),
		now:    time.Now,
		newID:  newID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Resolver returns the permission resolver used by Authorize and Capabilities.
func (s *Service) Resolver() *permission.Resolver {
	return s.perms
}

func (s *Service) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	return logging.WithContext(ctx, s.logger)
}

func docName(feedID string) string {
	return feedsDir + "/" + feedID
}

func newID(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + raw[:idHexLength]
}

// normalizeFeed replaces nil collections decoded from older documents.
func normalizeFeed(feed Feed) Feed {
	if feed.Collaborators == nil {
		feed.Collaborators = map[string]string{}
	}
	if feed.Episodes == nil {
		feed.Episodes = []Episode{}
	}
	return feed
}
