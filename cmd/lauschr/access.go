package main

import (
	"context"
	"errors"
	"strings"

	"lauschr/internal/apperr"
	"lauschr/internal/feeds"
	"lauschr/internal/permission"
)

// lookupFeed resolves a feed by ID or by slug.
func lookupFeed(ctx context.Context, svc *services, ref string) (feeds.Feed, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return feeds.Feed{}, apperr.Validation("cli", "lookup feed", "feed reference is empty")
	}
	feed, err := svc.feeds.Get(ctx, ref)
	if err == nil {
		return feed, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return feeds.Feed{}, err
	}
	return svc.feeds.GetBySlug(ctx, ref)
}

// authorizeFeed resolves ref and, when a user is acting, checks action
// against that user's role on the feed.
func (c *commandContext) authorizeFeed(ctx context.Context, svc *services, ref string, action permission.Action) (feeds.Feed, error) {
	feed, err := lookupFeed(ctx, svc, ref)
	if err != nil {
		return feeds.Feed{}, err
	}
	user := c.actingUser()
	if user == "" {
		return feed, nil
	}
	return svc.feeds.Authorize(ctx, feed.ID, user, action)
}

// authorizeView allows any member of the feed, or anyone when the feed is public.
func (c *commandContext) authorizeView(ctx context.Context, svc *services, ref string) (feeds.Feed, error) {
	feed, err := lookupFeed(ctx, svc, ref)
	if err != nil {
		return feeds.Feed{}, err
	}
	user := c.actingUser()
	if user == "" || feed.Settings.IsPublic {
		return feed, nil
	}
	if svc.feeds.Resolver().Capabilities(feed, user).Role == permission.RoleNone {
		return feeds.Feed{}, apperr.Wrap(apperr.ErrPermissionDenied, "cli", "view feed",
			"user "+user+" is not a member of feed "+feed.ID, nil)
	}
	return feed, nil
}
