package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"lauschr/internal/permission"
)

func newPermCommand(ctx *commandContext) *cobra.Command {
	permCmd := &cobra.Command{
		Use:   "perm",
		Short: "Inspect feed permissions",
	}
	permCmd.AddCommand(newPermShowCommand(ctx))
	return permCmd
}

func newPermShowCommand(ctx *commandContext) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "show <feed>",
		Short: "Show the role and capabilities of a user on a feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subject := strings.TrimSpace(userID)
			if subject == "" {
				subject = ctx.actingUser()
			}
			if subject == "" {
				return fmt.Errorf("a user is required (--user or --as)")
			}
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				feed, err := lookupFeed(c, svc, args[0])
				if err != nil {
					return err
				}
				caps, err := svc.feeds.Capabilities(c, feed.ID, subject)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, caps)
				}
				role := string(caps.Role)
				if caps.Role == permission.RoleNone {
					role = "none"
				}
				allowed := map[permission.Action]bool{
					permission.ActionUpload:         caps.CanUpload,
					permission.ActionEdit:           caps.CanEdit,
					permission.ActionDelete:         caps.CanDelete,
					permission.ActionInvite:         caps.CanInvite,
					permission.ActionManageSettings: caps.CanManageSettings,
					permission.ActionDeleteFeed:     caps.CanDeleteFeed,
				}
				rows := make([][]string, 0, len(permission.Actions))
				for _, action := range permission.Actions {
					rows = append(rows, []string{string(action), yesNo(allowed[action])})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s on %s: %s\n", subject, feed.Slug, role)
				fmt.Fprintln(out, renderTable([]tableColumn{{Header: "Capability"}, {Header: "Allowed"}}, rows))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User to inspect (defaults to --as)")
	return cmd
}
