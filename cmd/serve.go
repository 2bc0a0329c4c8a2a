package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pdfrealm/internal/bootstrap/logging"
	"pdfrealm/internal/errs"
	"pdfrealm/internal/transport/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the Secure AI HTTP API with the job runner and retention sweeper",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logging.WithAttrs(ctx, slog.String("command", cmd.CommandPath()))

		withWorker, _ := cmd.Flags().GetBool("worker")
		withRetention, _ := cmd.Flags().GetBool("retention")

		cfg := deps.App.Config.HTTP
		server := httpapi.NewServer(cfg, deps.API.Handler())
		baseCtx := context.WithoutCancel(ctx)
		server.BaseContext = func(net.Listener) context.Context { return baseCtx }

		group, groupCtx := errgroup.WithContext(ctx)
		group.Go(func() error {
			logging.Info(groupCtx, "http server listening", slog.String("addr", server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errs.Wrap(err, "listen and serve")
			}
			return nil
		})
		group.Go(func() error {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
			defer cancel()
			logging.Info(ctx, "http server shutting down")
			if err := server.Shutdown(shutdownCtx); err != nil {
				return errs.Wrap(err, "shutdown http server")
			}
			return nil
		})
		if withWorker {
			group.Go(func() error {
				return deps.Runner.Run(groupCtx)
			})
		}
		if withRetention {
			group.Go(func() error {
				return deps.Sweeper.Run(groupCtx)
			})
		}

		if err := group.Wait(); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), "server stopped"); err != nil {
			return errs.Wrap(err, "write serve output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("worker", true, "Run the notes job runner in-process")
	serveCmd.Flags().Bool("retention", true, "Run the retention sweeper in-process")
}
