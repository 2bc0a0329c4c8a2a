package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"pdfrealm/internal/bootstrap/logging"
	domain "pdfrealm/internal/domain/notes"
	"pdfrealm/internal/errs"
	"pdfrealm/internal/infrastructure/membership"
)

var membersCmd = &cobra.Command{
	Use:   "members",
	Short: "Manage room, call and thread membership",
}

var membersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Grant a user a role in a collaboration context",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		kind, contextID, userID, err := memberFlags(cmd)
		if err != nil {
			return err
		}
		role, _ := cmd.Flags().GetString("role")

		if err := deps.Directory.AddMember(ctx, kind, contextID, userID, role); err != nil {
			return errs.Wrap(err, "add member")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s of %s/%s\n", userID, role, kind, contextID); err != nil {
			return errs.Wrap(err, "write members output")
		}
		return nil
	}),
}

var membersRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Revoke a user's membership in a collaboration context",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		kind, contextID, userID, err := memberFlags(cmd)
		if err != nil {
			return err
		}
		if err := deps.Directory.RemoveMember(ctx, kind, contextID, userID); err != nil {
			return errs.Wrap(err, "remove member")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s removed from %s/%s\n", userID, kind, contextID); err != nil {
			return errs.Wrap(err, "write members output")
		}
		return nil
	}),
}

func memberFlags(cmd *cobra.Command) (domain.Kind, string, string, error) {
	rawKind, _ := cmd.Flags().GetString("kind")
	contextID, _ := cmd.Flags().GetString("context")
	userID, _ := cmd.Flags().GetString("user")

	kind, err := domain.ParseKind(rawKind)
	if err != nil {
		return "", "", "", err
	}
	return kind, contextID, userID, nil
}

func init() {
	rootCmd.AddCommand(membersCmd)
	membersCmd.AddCommand(membersAddCmd, membersRemoveCmd)

	for _, c := range []*cobra.Command{membersAddCmd, membersRemoveCmd} {
		c.Flags().String("kind", "", "Context kind (video|voice|chat)")
		c.Flags().String("context", "", "Room, call or thread id")
		c.Flags().String("user", "", "User id")
		_ = c.MarkFlagRequired("kind")
		_ = c.MarkFlagRequired("context")
		_ = c.MarkFlagRequired("user")
	}
	membersAddCmd.Flags().String("role", membership.RoleMember, "Role (owner|member)")
}
