package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"lauschr/internal/config"
	"lauschr/internal/docstore"
	"lauschr/internal/feeds"
	"lauschr/internal/logging"
	"lauschr/internal/notifications"
	"lauschr/internal/rss"
	"lauschr/internal/slugindex"
	"lauschr/internal/users"
)

type commandContext struct {
	configFlag *string
	asFlag     *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

// services bundles everything a command needs for one invocation.
type services struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *docstore.Store
	slugs  *slugindex.Index
	feeds  *feeds.Service
	users  *users.Service
	rss    *rss.Generator
	notify notifications.Service
}

func newCommandContext(configFlag, asFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		asFlag:     asFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) actingUser() string {
	if c.asFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.asFlag)
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// withServices opens the stores for one command and closes them afterwards.
func (c *commandContext) withServices(cmd *cobra.Command, fn func(context.Context, *services) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	store, err := docstore.Open(cfg.Paths.DataDir, logger)
	if err != nil {
		return err
	}
	slugs, err := slugindex.Open(cfg.SlugIndexPath())
	if err != nil {
		return err
	}
	defer slugs.Close()

	feedService, err := feeds.New(cfg, store, slugs, logger)
	if err != nil {
		return err
	}
	svc := &services{
		cfg:    cfg,
		logger: logger,
		store:  store,
		slugs:  slugs,
		feeds:  feedService,
		users:  users.New(cfg, store, logger),
		rss:    rss.NewGenerator(cfg, logger),
		notify: notifications.NewService(cfg),
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logging.WithRequestID(ctx, uuid.NewString()[:8])
	if user := c.actingUser(); user != "" {
		ctx = logging.WithUserID(ctx, user)
	}
	return fn(ctx, svc)
}

// publish pushes an event and downgrades delivery failures to warnings.
func (s *services) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := s.notify.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
			logging.String(logging.FieldImpact, "the change was saved but nobody was notified"),
		)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
