package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"lauschr/internal/apperr"
	"lauschr/internal/notifications"
	"lauschr/internal/users"
)

func newUserCommand(ctx *commandContext) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	userCmd.AddCommand(newUserAddCommand(ctx))
	userCmd.AddCommand(newUserListCommand(ctx))
	userCmd.AddCommand(newUserDecisionCommand(ctx, "approve", "Activate a pending account"))
	userCmd.AddCommand(newUserDecisionCommand(ctx, "reject", "Reject a pending account"))
	userCmd.AddCommand(newUserDeleteCommand(ctx))

	return userCmd
}

// requireAdmin rejects account administration by non-admin acting users.
func (c *commandContext) requireAdmin(ctx context.Context, svc *services) error {
	acting := c.actingUser()
	if acting == "" {
		return nil
	}
	user, err := svc.users.Get(ctx, acting)
	if err != nil {
		return err
	}
	if user.Role != users.RoleAdmin || user.Status != users.StatusActive {
		return apperr.Wrap(apperr.ErrPermissionDenied, "cli", "manage users",
			"user "+acting+" is not an active administrator", nil)
	}
	return nil
}

func newUserAddCommand(ctx *commandContext) *cobra.Command {
	var input users.CreateUserInput
	var approve bool
	var admin bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				if err := ctx.requireAdmin(c, svc); err != nil {
					return err
				}
				if approve {
					input.Status = users.StatusActive
				}
				if admin {
					input.Role = users.RoleAdmin
				}
				user, err := svc.users.Create(c, input)
				if err != nil {
					return err
				}
				if user.Status == users.StatusPending {
					svc.publish(c, notifications.EventRegistrationPending, notifications.Payload{
						"name":  user.Name,
						"email": user.Email,
					})
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, user)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created user %s <%s> (%s)\n", user.ID, user.Email, user.Status)
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&input.Email, "email", "", "Email address")
	flags.StringVar(&input.Name, "name", "", "Display name")
	flags.StringVar(&input.PasswordHash, "password-hash", "", "Precomputed password hash (required)")
	flags.StringVar(&input.Language, "language", "", "Preferred language")
	flags.BoolVar(&approve, "approve", false, "Activate the account immediately")
	flags.BoolVar(&admin, "admin", false, "Grant installation admin rights")
	return cmd
}

func newUserListCommand(ctx *commandContext) *cobra.Command {
	var query string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List or search accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				var (
					list []users.User
					err  error
				)
				if query != "" {
					list, err = svc.users.Search(c, query, limit)
				} else {
					list, err = svc.users.List(c)
				}
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, list)
				}
				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No users")
					return nil
				}
				rows := make([][]string, 0, len(list))
				for _, user := range list {
					rows = append(rows, []string{user.ID, user.Email, user.Name, user.Status, user.Role})
				}
				fmt.Fprintln(out, renderTable([]tableColumn{
					{Header: "ID"}, {Header: "Email"}, {Header: "Name"}, {Header: "Status"}, {Header: "Role"},
				}, rows))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&query, "search", "s", "", "Match name or email")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum search results")
	return cmd
}

func newUserDecisionCommand(ctx *commandContext, verb, short string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <user-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				if err := ctx.requireAdmin(c, svc); err != nil {
					return err
				}
				decide := svc.users.Approve
				if verb == "reject" {
					decide = svc.users.Reject
				}
				user, err := decide(c, args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, user)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "User %s is now %s\n", user.ID, user.Status)
				return nil
			})
		},
	}
}

func newUserDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				if err := ctx.requireAdmin(c, svc); err != nil {
					return err
				}
				owned, err := svc.feeds.ListByOwner(c, args[0])
				if err != nil {
					return err
				}
				if len(owned) > 0 {
					return apperr.Validation("cli", "delete user",
						fmt.Sprintf("user owns %d feed(s); transfer or delete them first", len(owned)))
				}
				if err := svc.users.Delete(c, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %s\n", args[0])
				return nil
			})
		},
	}
}
