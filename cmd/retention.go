package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pdfrealm/internal/bootstrap/logging"
	"pdfrealm/internal/errs"
)

var retentionCmd = &cobra.Command{
	Use:   "retention",
	Short: "Session retention commands",
}

var retentionSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete sessions older than notes.retention_days",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logging.WithAttrs(ctx, slog.String("command", cmd.CommandPath()))

		loop, _ := cmd.Flags().GetBool("loop")
		if loop {
			return deps.Sweeper.Run(ctx)
		}

		result, err := deps.Sweeper.SweepOnce(ctx)
		if err != nil {
			return errs.Wrap(err, "sweep expired sessions")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "retention sweep deleted=%d failed=%d\n", result.Deleted, result.Failed); err != nil {
			return errs.Wrap(err, "write retention output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(retentionCmd)
	retentionCmd.AddCommand(retentionSweepCmd)
	retentionSweepCmd.Flags().Bool("loop", false, "Keep sweeping on notes.retention_interval until interrupted")
}
