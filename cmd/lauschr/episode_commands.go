package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"lauschr/internal/feeds"
	"lauschr/internal/notifications"
	"lauschr/internal/permission"
)

func newEpisodeCommand(ctx *commandContext) *cobra.Command {
	episodeCmd := &cobra.Command{
		Use:     "episode",
		Aliases: []string{"ep"},
		Short:   "Publish and manage episodes",
	}

	episodeCmd.AddCommand(newEpisodeAddCommand(ctx))
	episodeCmd.AddCommand(newEpisodeListCommand(ctx))
	episodeCmd.AddCommand(newEpisodeLatestCommand(ctx))
	episodeCmd.AddCommand(newEpisodeUpdateCommand(ctx))
	episodeCmd.AddCommand(newEpisodeDeleteCommand(ctx))
	episodeCmd.AddCommand(newEpisodeReplaceCommand(ctx))
	episodeCmd.AddCommand(newEpisodeReorderCommand(ctx))

	return episodeCmd
}

type episodeFlags struct {
	title       string
	description string
	author      string
	duration    string
	explicit    bool
	publishDate string
	status      string
}

func (f *episodeFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.title, "title", "", "Episode title")
	flags.StringVar(&f.description, "description", "", "Show notes (limited HTML)")
	flags.StringVar(&f.author, "author", "", "Episode author (defaults to the feed author)")
	flags.StringVar(&f.duration, "duration", "", "Duration as seconds, M:SS or H:MM:SS")
	flags.BoolVar(&f.explicit, "explicit", false, "Mark the episode as explicit")
	flags.StringVar(&f.publishDate, "publish-date", "", "Publish date, e.g. 2024-05-01 or 2024-05-01T08:00")
	flags.StringVar(&f.status, "status", "", "published, draft or archived")
}

func (f *episodeFlags) patch(cmd *cobra.Command) (feeds.EpisodePatch, error) {
	flags := cmd.Flags()
	str := func(name string, value *string) *string {
		if flags.Changed(name) {
			return value
		}
		return nil
	}
	patch := feeds.EpisodePatch{
		Title:       str("title", &f.title),
		Description: str("description", &f.description),
		Author:      str("author", &f.author),
		PublishDate: str("publish-date", &f.publishDate),
		Status:      str("status", &f.status),
	}
	if flags.Changed("explicit") {
		patch.Explicit = &f.explicit
	}
	if flags.Changed("duration") {
		seconds, err := feeds.ParseDuration(f.duration)
		if err != nil {
			return feeds.EpisodePatch{}, err
		}
		patch.Duration = &seconds
	}
	return patch, nil
}

func newEpisodeAddCommand(ctx *commandContext) *cobra.Command {
	var flags episodeFlags
	var move bool

	cmd := &cobra.Command{
		Use:   "add <feed> <audio-file>",
		Short: "Upload an audio file as a new episode",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			seconds, err := feeds.ParseDuration(flags.duration)
			if err != nil {
				return err
			}
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				feed, err := ctx.authorizeFeed(c, svc, args[0], permission.ActionUpload)
				if err != nil {
					return err
				}
				upload, cleanup := stageUpload(svc.cfg, args[1], move)
				defer cleanup()

				episode, err := svc.feeds.CreateEpisode(c, feed.ID, feeds.EpisodeInput{
					Title:       flags.title,
					Description: flags.description,
					Author:      flags.author,
					Duration:    seconds,
					Explicit:    flags.explicit,
					PublishDate: flags.publishDate,
					Status:      flags.status,
					CreatedBy:   ctx.actingUser(),
				}, upload)
				if err != nil {
					return err
				}
				if episode.Published() {
					svc.publish(c, notifications.EventEpisodePublished, notifications.Payload{
						"feedTitle":    feed.Title,
						"episodeTitle": episode.Title,
						"duration":     feeds.FormatDuration(episode.Duration),
					})
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, episode)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added episode %s (%s, %s)\n",
					episode.ID, episode.AudioFile, humanize.IBytes(uint64(episode.FileSize)))
				return nil
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&move, "move", false, "Move the audio file instead of copying it")
	return cmd
}

func episodeRows(episodes []feeds.Episode) [][]string {
	rows := make([][]string, 0, len(episodes))
	for _, ep := range episodes {
		rows = append(rows, []string{
			ep.ID,
			ep.Title,
			ep.Status,
			ep.PublishDate,
			feeds.FormatDuration(ep.Duration),
			humanize.IBytes(uint64(ep.FileSize)),
		})
	}
	return rows
}

var episodeColumns = []tableColumn{
	{Header: "ID"},
	{Header: "Title"},
	{Header: "Status"},
	{Header: "Published"},
	{Header: "Length", Align: alignRight},
	{Header: "Size", Align: alignRight},
}

func newEpisodeListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list <feed>",
		Short: "List the episodes of a feed, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				feed, err := ctx.authorizeView(c, svc, args[0])
				if err != nil {
					return err
				}
				episodes, err := svc.feeds.ListEpisodes(c, feed.ID)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, episodes)
				}
				out := cmd.OutOrStdout()
				if len(episodes) == 0 {
					fmt.Fprintln(out, "No episodes")
					return nil
				}
				fmt.Fprintln(out, renderTable(episodeColumns, episodeRows(episodes)))
				return nil
			})
		},
	}
}

func newEpisodeLatestCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Show the newest episodes across accessible feeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				var (
					list []feeds.Feed
					err  error
				)
				if user := ctx.actingUser(); user != "" {
					list, err = svc.feeds.ListAccessible(c, user)
				} else {
					list, err = svc.feeds.List(c)
				}
				if err != nil {
					return err
				}
				ids := make([]string, 0, len(list))
				for _, feed := range list {
					ids = append(ids, feed.ID)
				}
				latest, err := svc.feeds.LatestEpisodes(c, ids, limit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, latest)
				}
				rows := make([][]string, 0, len(latest))
				for _, entry := range latest {
					rows = append(rows, []string{entry.FeedSlug, entry.Episode.Title, entry.Episode.PublishDate})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]tableColumn{
					{Header: "Feed"}, {Header: "Episode"}, {Header: "Published"},
				}, rows))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of episodes")
	return cmd
}

func newEpisodeUpdateCommand(ctx *commandContext) *cobra.Command {
	var flags episodeFlags

	cmd := &cobra.Command{
		Use:   "update <feed> <episode-id>",
		Short: "Update episode metadata",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := flags.patch(cmd)
			if err != nil {
				return err
			}
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				feed, err := ctx.authorizeFeed(c, svc, args[0], permission.ActionEdit)
				if err != nil {
					return err
				}
				episode, err := svc.feeds.UpdateEpisode(c, feed.ID, args[1], patch)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, episode)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated episode %s\n", episode.ID)
				return nil
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func newEpisodeDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <feed> <episode-id>",
		Short: "Delete an episode and its audio file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				feed, err := ctx.authorizeFeed(c, svc, args[0], permission.ActionDelete)
				if err != nil {
					return err
				}
				if err := svc.feeds.DeleteEpisode(c, feed.ID, args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted episode %s\n", args[1])
				return nil
			})
		},
	}
}

func newEpisodeReplaceCommand(ctx *commandContext) *cobra.Command {
	var move bool

	cmd := &cobra.Command{
		Use:   "replace <feed> <episode-id> <audio-file>",
		Short: "Replace the audio file of an episode",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				feed, err := ctx.authorizeFeed(c, svc, args[0], permission.ActionUpload)
				if err != nil {
					return err
				}
				upload, cleanup := stageUpload(svc.cfg, args[2], move)
				defer cleanup()

				episode, err := svc.feeds.ReplaceAudio(c, feed.ID, args[1], upload)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, episode)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Replaced audio of %s with %s\n", episode.ID, episode.AudioFile)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&move, "move", false, "Move the audio file instead of copying it")
	return cmd
}

func newEpisodeReorderCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <feed> <episode-id>...",
		Short: "Set the stored order of episodes",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				feed, err := ctx.authorizeFeed(c, svc, args[0], permission.ActionEdit)
				if err != nil {
					return err
				}
				feed, err = svc.feeds.ReorderEpisodes(c, feed.ID, args[1:])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, feed.Episodes)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(episodeColumns, episodeRows(feed.Episodes)))
				return nil
			})
		},
	}
}
