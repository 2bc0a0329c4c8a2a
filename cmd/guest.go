package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	domain "pdfrealm/internal/domain/notes"
	"pdfrealm/internal/errs"
)

var guestCmd = &cobra.Command{
	Use:   "guest",
	Short: "Guest invite helpers",
}

var guestTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a signed guest invite token",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		rawKind, _ := cmd.Flags().GetString("kind")
		contextID, _ := cmd.Flags().GetString("context")
		guestID, _ := cmd.Flags().GetString("guest-id")
		name, _ := cmd.Flags().GetString("name")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		kind, err := domain.ParseKind(rawKind)
		if err != nil {
			return err
		}
		token, err := deps.Guests.Issue(kind, contextID, guestID, name, ttl)
		if err != nil {
			return errs.Wrap(err, "issue guest token")
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), token); err != nil {
			return errs.Wrap(err, "write guest output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(guestCmd)
	guestCmd.AddCommand(guestTokenCmd)
	guestTokenCmd.Flags().String("kind", "", "Context kind (video|voice|chat)")
	guestTokenCmd.Flags().String("context", "", "Room, call or thread id")
	guestTokenCmd.Flags().String("guest-id", "", "Stable guest id")
	guestTokenCmd.Flags().String("name", "", "Display name")
	guestTokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	_ = guestTokenCmd.MarkFlagRequired("kind")
	_ = guestTokenCmd.MarkFlagRequired("context")
	_ = guestTokenCmd.MarkFlagRequired("guest-id")
}
