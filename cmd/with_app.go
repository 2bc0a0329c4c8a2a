package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"pdfrealm/internal/bootstrap"
	"pdfrealm/internal/bootstrap/logging"
	"pdfrealm/internal/errs"
	"pdfrealm/internal/infrastructure/membership"
	"pdfrealm/internal/transport/httpapi"
	"pdfrealm/internal/usecase/notes"
)

// appDeps is everything a command may need from the container.
type appDeps struct {
	App       *bootstrap.App
	Notes     *notes.Service
	Runner    *notes.JobRunner
	Sweeper   *notes.Sweeper
	API       *httpapi.API
	Directory *membership.Directory
	Guests    *membership.GuestTokens
}

func withApp(run func(cmd *cobra.Command, deps appDeps) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := logging.WithAttrs(
			cmd.Context(),
			slog.String("command", cmd.CommandPath()),
			slog.String("config_file", cfgFile),
		)

		var deps appDeps
		fxApp := fx.New(
			bootstrap.Module,
			fx.NopLogger,
			fx.Provide(func() context.Context { return ctx }),
			fx.Provide(
				fx.Annotate(
					func() string { return cfgFile },
					fx.ResultTags(`name:"configFile"`),
				),
			),
			fx.Populate(
				&deps.App,
				&deps.Notes,
				&deps.Runner,
				&deps.Sweeper,
				&deps.API,
				&deps.Directory,
				&deps.Guests,
			),
		)

		startCtx, cancelStart := context.WithTimeout(ctx, 10*time.Second)
		defer cancelStart()
		if err := fxApp.Start(startCtx); err != nil {
			logging.Error(ctx, "bootstrap application failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "start fx application")
		}

		defer func() {
			stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelStop()
			if err := fxApp.Stop(stopCtx); err != nil {
				logging.Error(ctx, "fx application stop failed", slog.Any("err", errs.Loggable(err)))
			}
		}()

		// Swap in the configured logger now that config is known.
		logCfg := deps.App.Config.Log
		cmdCtx := logging.WithLogger(cmd.Context(), logging.NewLogger(cmd.ErrOrStderr(), logCfg.Format, logCfg.Level))
		cmdCtx = logging.WithAttrs(cmdCtx, slog.String("app", "pdfrealm-notes"))
		cmd.SetContext(cmdCtx)

		if err := run(cmd, deps); err != nil {
			return errs.Wrap(err, "run command")
		}
		return nil
	}
}
