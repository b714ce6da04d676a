package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"lauschr/internal/feeds"
	"lauschr/internal/notifications"
	"lauschr/internal/permission"
)

func newCollabCommand(ctx *commandContext) *cobra.Command {
	collabCmd := &cobra.Command{
		Use:   "collab",
		Short: "Manage feed collaborators",
	}

	collabCmd.AddCommand(newCollabListCommand(ctx))
	collabCmd.AddCommand(newCollabAddCommand(ctx))
	collabCmd.AddCommand(newCollabRoleCommand(ctx))
	collabCmd.AddCommand(newCollabRemoveCommand(ctx))
	collabCmd.AddCommand(newCollabTransferCommand(ctx))

	return collabCmd
}

// checkUserExists rejects collaborator changes naming unknown accounts.
func checkUserExists(ctx context.Context, svc *services, userID string) error {
	_, err := svc.users.Get(ctx, userID)
	return err
}

func newCollabListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list <feed>",
		Short: "List the owner and collaborators of a feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				feed, err := ctx.authorizeView(c, svc, args[0])
				if err != nil {
					return err
				}
				collaborators, err := svc.feeds.Collaborators(c, feed.ID)
				if err != nil {
					return err
				}
				members := append([]feeds.Collaborator{{UserID: feed.OwnerID, Role: permission.RoleOwner}}, collaborators...)
				if ctx.jsonOutput() {
					return writeJSON(cmd, members)
				}
				rows := make([][]string, 0, len(members))
				for _, member := range members {
					rows = append(rows, []string{member.UserID, string(member.Role)})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]tableColumn{{Header: "User"}, {Header: "Role"}}, rows))
				return nil
			})
		},
	}
}

func newCollabAddCommand(ctx *commandContext) *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "add <feed> <user-id>",
		Short: "Invite a user to a feed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				feed, err := ctx.authorizeFeed(c, svc, args[0], permission.ActionInvite)
				if err != nil {
					return err
				}
				if err := checkUserExists(c, svc, args[1]); err != nil {
					return err
				}
				if _, err := svc.feeds.AddCollaborator(c, feed.ID, args[1], permission.ParseRole(role)); err != nil {
					return err
				}
				svc.publish(c, notifications.EventCollaboratorAdded, notifications.Payload{
					"userID":    args[1],
					"feedTitle": feed.Title,
					"role":      role,
				})
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s of %s\n", args[1], role, feed.Slug)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&role, "role", string(permission.RoleContributor), "editor, contributor or viewer")
	return cmd
}

func newCollabRoleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "role <feed> <user-id> <role>",
		Short: "Change the role of a collaborator",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				feed, err := ctx.authorizeFeed(c, svc, args[0], permission.ActionInvite)
				if err != nil {
					return err
				}
				if _, err := svc.feeds.UpdateCollaboratorRole(c, feed.ID, args[1], permission.ParseRole(args[2])); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s of %s\n", args[1], args[2], feed.Slug)
				return nil
			})
		},
	}
}

func newCollabRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <feed> <user-id>",
		Short: "Remove a collaborator from a feed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				feed, err := lookupFeed(c, svc, args[0])
				if err != nil {
					return err
				}
				// Collaborators may always leave a feed themselves.
				if acting := ctx.actingUser(); acting != "" && acting != args[1] {
					if _, err := svc.feeds.Authorize(c, feed.ID, acting, permission.ActionInvite); err != nil {
						return err
					}
				}
				if _, err := svc.feeds.RemoveCollaborator(c, feed.ID, args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", args[1], feed.Slug)
				return nil
			})
		},
	}
}

func newCollabTransferCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <feed> <new-owner-id>",
		Short: "Hand a feed over to another user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				feed, err := lookupFeed(c, svc, args[0])
				if err != nil {
					return err
				}
				current := ctx.actingUser()
				if current == "" {
					current = feed.OwnerID
				}
				if err := checkUserExists(c, svc, args[1]); err != nil {
					return err
				}
				feed, err = svc.feeds.TransferOwnership(c, feed.ID, args[1], current)
				if err != nil {
					return err
				}
				svc.publish(c, notifications.EventOwnershipTransferred, notifications.Payload{
					"feedTitle": feed.Title,
					"ownerID":   feed.OwnerID,
				})
				fmt.Fprintf(cmd.OutOrStdout(), "%s now owns %s; %s stays on as editor\n", feed.OwnerID, feed.Slug, current)
				return nil
			})
		},
	}
}
