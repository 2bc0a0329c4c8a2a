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

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Notes job runner commands",
}

var workerRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Process queued notes jobs",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logging.WithAttrs(ctx, slog.String("command", cmd.CommandPath()))

		once, _ := cmd.Flags().GetBool("once")
		if !once {
			return deps.Runner.Run(ctx)
		}

		processed, err := deps.Runner.Tick(ctx)
		if err != nil {
			return errs.Wrap(err, "run one job")
		}
		message := "no queued job"
		if processed {
			message = "processed one job"
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), message); err != nil {
			return errs.Wrap(err, "write worker output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.AddCommand(workerRunCmd)
	workerRunCmd.Flags().Bool("once", false, "Claim and process at most one queued job, then exit")
}
