package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"lauschr/internal/itunes"
	"lauschr/internal/rss"
)

func newRSSCommand(ctx *commandContext) *cobra.Command {
	rssCmd := &cobra.Command{
		Use:   "rss",
		Short: "Render and check RSS output",
	}

	rssCmd.AddCommand(newRSSGenerateCommand(ctx))
	rssCmd.AddCommand(newRSSValidateCommand(ctx))
	rssCmd.AddCommand(newRSSCategoriesCommand(ctx))

	return rssCmd
}

func newRSSGenerateCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "generate <feed>",
		Short: "Render the RSS document of a feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				feed, err := ctx.authorizeView(c, svc, args[0])
				if err != nil {
					return err
				}
				data, err := svc.rss.Generate(feed)
				if err != nil {
					return err
				}
				target := strings.TrimSpace(output)
				if target == "" || target == "-" {
					_, err := cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(target, data, 0o644); err != nil {
					return fmt.Errorf("write rss: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s to %s\n", humanize.Bytes(uint64(len(data))), target)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}

func newRSSValidateCommand(ctx *commandContext) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate [feed]",
		Short: "Check a feed's RSS output, or an RSS file, for problems",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(file) != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read rss: %w", err)
				}
				return reportValidation(cmd, ctx, rss.Validate(data))
			}
			if len(args) == 0 {
				return fmt.Errorf("a feed or --file is required")
			}
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				feed, err := ctx.authorizeView(c, svc, args[0])
				if err != nil {
					return err
				}
				data, err := svc.rss.Generate(feed)
				if err != nil {
					return err
				}
				return reportValidation(cmd, ctx, rss.Validate(data))
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Validate this RSS file instead of a stored feed")
	return cmd
}

func reportValidation(cmd *cobra.Command, ctx *commandContext, report rss.Report) error {
	if ctx.jsonOutput() {
		if err := writeJSON(cmd, report); err != nil {
			return err
		}
		return report.Err()
	}
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, msg := range report.Errors {
		fmt.Fprintln(out, renderFinding(findingError, msg, colorize))
	}
	for _, msg := range report.Warnings {
		fmt.Fprintln(out, renderFinding(findingWarn, msg, colorize))
	}
	if report.Valid() {
		fmt.Fprintln(out, renderFinding(findingOK, "feed is valid", colorize))
	}
	return report.Err()
}

func newRSSCategoriesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "categories",
		Short:       "List the iTunes categories accepted for feeds",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if ctx.jsonOutput() {
				return writeJSON(cmd, rss.Categories())
			}
			out := cmd.OutOrStdout()
			for _, value := range itunes.Flatten() {
				fmt.Fprintln(out, value)
			}
			return nil
		},
	}
}
