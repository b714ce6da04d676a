package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"lauschr/internal/apperr"
	"lauschr/internal/feeds"
	"lauschr/internal/language"
	"lauschr/internal/notifications"
	"lauschr/internal/permission"
)

func newFeedCommand(ctx *commandContext) *cobra.Command {
	feedCmd := &cobra.Command{
		Use:   "feed",
		Short: "Create and manage podcast feeds",
	}

	feedCmd.AddCommand(newFeedCreateCommand(ctx))
	feedCmd.AddCommand(newFeedListCommand(ctx))
	feedCmd.AddCommand(newFeedShowCommand(ctx))
	feedCmd.AddCommand(newFeedUpdateCommand(ctx))
	feedCmd.AddCommand(newFeedDeleteCommand(ctx))
	feedCmd.AddCommand(newFeedStatsCommand(ctx))
	feedCmd.AddCommand(newFeedReindexCommand(ctx))

	return feedCmd
}

// feedFlags binds the editable feed fields shared by create and update.
type feedFlags struct {
	title       string
	description string
	author      string
	email       string
	language    string
	explicit    bool
	image       string
	website     string
	category    string
	public      bool
	requireAuth bool
}

func (f *feedFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.title, "title", "", "Feed title")
	flags.StringVar(&f.description, "description", "", "Feed description (limited HTML)")
	flags.StringVar(&f.author, "author", "", "Author shown in podcast apps")
	flags.StringVar(&f.email, "email", "", "Owner contact email")
	flags.StringVar(&f.language, "language", "", "Language code, e.g. de")
	flags.BoolVar(&f.explicit, "explicit", false, "Mark the feed as explicit")
	flags.StringVar(&f.image, "image", "", "Cover image URL or path")
	flags.StringVar(&f.website, "website", "", "Website URL")
	flags.StringVar(&f.category, "category", "", "iTunes category, e.g. \"Education > Courses\"")
	flags.BoolVar(&f.public, "public", true, "List the feed publicly")
	flags.BoolVar(&f.requireAuth, "require-auth", false, "Require authentication to fetch the feed")
}

func (f *feedFlags) input(cmd *cobra.Command) feeds.FeedInput {
	input := feeds.FeedInput{
		Title:       f.title,
		Description: f.description,
		Author:      f.author,
		Email:       f.email,
		Language:    f.language,
		Image:       f.image,
		Website:     f.website,
		Category:    f.category,
	}
	flags := cmd.Flags()
	if flags.Changed("explicit") {
		input.Explicit = &f.explicit
	}
	if flags.Changed("public") {
		input.IsPublic = &f.public
	}
	if flags.Changed("require-auth") {
		input.RequireAuth = &f.requireAuth
	}
	return input
}

func (f *feedFlags) patch(cmd *cobra.Command) feeds.FeedPatch {
	flags := cmd.Flags()
	str := func(name string, value *string) *string {
		if flags.Changed(name) {
			return value
		}
		return nil
	}
	flag := func(name string, value *bool) *bool {
		if flags.Changed(name) {
			return value
		}
		return nil
	}
	return feeds.FeedPatch{
		Title:       str("title", &f.title),
		Description: str("description", &f.description),
		Author:      str("author", &f.author),
		Email:       str("email", &f.email),
		Language:    str("language", &f.language),
		Explicit:    flag("explicit", &f.explicit),
		Image:       str("image", &f.image),
		Website:     str("website", &f.website),
		Category:    str("category", &f.category),
		IsPublic:    flag("public", &f.public),
		RequireAuth: flag("require-auth", &f.requireAuth),
	}
}

func newFeedCreateCommand(ctx *commandContext) *cobra.Command {
	var flags feedFlags
	var owner string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			ownerID := strings.TrimSpace(owner)
			if ownerID == "" {
				ownerID = ctx.actingUser()
			}
			if ownerID == "" {
				return apperr.Validation("cli", "create feed", "an owner is required (--owner or --as)")
			}
			if acting := ctx.actingUser(); acting != "" && acting != ownerID {
				return apperr.Wrap(apperr.ErrPermissionDenied, "cli", "create feed",
					"cannot create a feed on behalf of another user", nil)
			}
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				feed, err := svc.feeds.Create(c, flags.input(cmd), ownerID)
				if err != nil {
					return err
				}
				svc.publish(c, notifications.EventFeedCreated, notifications.Payload{
					"feedTitle": feed.Title,
					"rssURL":    svc.feeds.RSSURL(feed),
				})
				if ctx.jsonOutput() {
					return writeJSON(cmd, feed)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Created feed %s (%s)\n", feed.ID, feed.Slug)
				fmt.Fprintf(out, "RSS: %s\n", svc.feeds.RSSURL(feed))
				return nil
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&owner, "owner", "", "Owner user ID (defaults to --as)")
	return cmd
}

func newFeedListCommand(ctx *commandContext) *cobra.Command {
	var owner string
	var collaborator string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List feeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				var (
					list []feeds.Feed
					err  error
				)
				switch {
				case owner != "":
					list, err = svc.feeds.ListByOwner(c, owner)
				case collaborator != "":
					list, err = svc.feeds.ListByCollaborator(c, collaborator)
				case ctx.actingUser() != "":
					list, err = svc.feeds.ListAccessible(c, ctx.actingUser())
				default:
					list, err = svc.feeds.List(c)
				}
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, list)
				}
				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No feeds")
					return nil
				}
				rows := make([][]string, 0, len(list))
				for _, feed := range list {
					rows = append(rows, []string{
						feed.ID,
						feed.Slug,
						feed.Title,
						feed.OwnerID,
						strconv.Itoa(len(feed.Episodes)),
						yesNo(feed.Settings.IsPublic),
					})
				}
				fmt.Fprintln(out, renderTable([]tableColumn{
					{Header: "ID"},
					{Header: "Slug"},
					{Header: "Title"},
					{Header: "Owner"},
					{Header: "Episodes", Align: alignRight},
					{Header: "Public"},
				}, rows))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Only feeds owned by this user")
	cmd.Flags().StringVar(&collaborator, "collaborator", "", "Only feeds this user collaborates on")
	return cmd
}

func newFeedShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <feed>",
		Short: "Show a feed by ID or slug",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				feed, err := ctx.authorizeView(c, svc, args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, feed)
				}
				stats := feeds.StatsOf(feed)
				out := cmd.OutOrStdout()
				for _, line := range renderHeading(feed.Title, shouldColorize(out)) {
					fmt.Fprintln(out, line)
				}
				renderFields(out, [][2]string{
					{"ID", feed.ID},
					{"Slug", feed.Slug},
					{"Owner", feed.OwnerID},
					{"Author", feed.Author},
					{"Email", feed.Email},
					{"Language", fmt.Sprintf("%s (%s)", feed.Language, language.DisplayName(feed.Language))},
					{"Category", feed.Category},
					{"Explicit", yesNo(feed.Explicit)},
					{"Public", yesNo(feed.Settings.IsPublic)},
					{"Website", feed.Website},
					{"Page", svc.feeds.PublicURL(feed)},
					{"RSS", svc.feeds.RSSURL(feed)},
					{"Episodes", fmt.Sprintf("%d (%d published)", stats.EpisodeCount, stats.PublishedCount)},
					{"Runtime", feeds.FormatDuration(stats.TotalDuration)},
					{"Audio", humanize.IBytes(uint64(stats.TotalBytes))},
					{"Created", feed.CreatedAt},
				})
				return nil
			})
		},
	}
}

func newFeedUpdateCommand(ctx *commandContext) *cobra.Command {
	var flags feedFlags

	cmd := &cobra.Command{
		Use:   "update <feed>",
		Short: "Update feed metadata and settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				patch := flags.patch(cmd)
				action := permission.ActionEdit
				if patch.IsPublic != nil || patch.RequireAuth != nil {
					action = permission.ActionManageSettings
				}
				feed, err := ctx.authorizeFeed(c, svc, args[0], action)
				if err != nil {
					return err
				}
				feed, err = svc.feeds.Update(c, feed.ID, patch)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, feed)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated feed %s (%s)\n", feed.ID, feed.Slug)
				return nil
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func newFeedDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <feed>",
		Short: "Delete a feed, its episodes, and its audio files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				feed, err := ctx.authorizeFeed(c, svc, args[0], permission.ActionDeleteFeed)
				if err != nil {
					return err
				}
				if err := svc.feeds.Delete(c, feed.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted feed %s\n", feed.ID)
				return nil
			})
		},
	}
}

func newFeedStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <feed>",
		Short: "Show episode counts and totals for a feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				feed, err := ctx.authorizeView(c, svc, args[0])
				if err != nil {
					return err
				}
				stats := feeds.StatsOf(feed)
				if ctx.jsonOutput() {
					return writeJSON(cmd, stats)
				}
				renderFields(cmd.OutOrStdout(), [][2]string{
					{"Episodes", strconv.Itoa(stats.EpisodeCount)},
					{"Published", strconv.Itoa(stats.PublishedCount)},
					{"Team", strconv.Itoa(stats.CollaboratorCount)},
					{"Runtime", feeds.FormatDuration(stats.TotalDuration)},
					{"Audio", humanize.IBytes(uint64(stats.TotalBytes))},
					{"Last episode", stats.LastEpisode},
				})
				return nil
			})
		},
	}
}

func newFeedReindexCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the slug index from the feed documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ctx.actingUser() != "" {
				return apperr.Wrap(apperr.ErrPermissionDenied, "cli", "reindex",
					"reindex runs as the operator; drop --as", nil)
			}
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				changed, err := svc.feeds.Reindex(c)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]int{"reslugged": changed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Slug index rebuilt; %d feed(s) received a new slug\n", changed)
				return nil
			})
		},
	}
}
