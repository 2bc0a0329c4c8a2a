package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"pdfrealm/internal/bootstrap/config"
	"pdfrealm/internal/bootstrap/database"
	"pdfrealm/internal/bootstrap/logging"
	cacheinfra "pdfrealm/internal/infrastructure/cache"
	"pdfrealm/internal/infrastructure/events"
	"pdfrealm/internal/infrastructure/media"
	"pdfrealm/internal/infrastructure/membership"
	gormrepo "pdfrealm/internal/infrastructure/persistence/gormdb/repository"
	gormuow "pdfrealm/internal/infrastructure/persistence/gormdb/uow"
	"pdfrealm/internal/infrastructure/report"
	"pdfrealm/internal/infrastructure/summarize"
	"pdfrealm/internal/infrastructure/transcribe"
	"pdfrealm/internal/infrastructure/vault"
	"pdfrealm/internal/ports"
	"pdfrealm/internal/transport/httpapi"
	"pdfrealm/internal/usecase/notes"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			gormrepo.NewNotesRepository,
			fx.As(new(ports.NotesRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			gormuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewGormCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(provideDirectory),
	fx.Provide(provideGuestTokens),
	fx.Provide(provideVault),
	fx.Provide(provideEvents),
	fx.Provide(providePipeline),
	fx.Provide(provideService),
	fx.Provide(provideJobRunner),
	fx.Provide(provideSweeper),
	fx.Provide(provideAPI),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideDirectory(db *gorm.DB, cache ports.Cache, cfg config.Config) (*membership.Directory, ports.MembershipDirectory) {
	d := membership.NewDirectory(db, cache, cfg.Cache.MembershipTTL)
	return d, d
}

func provideGuestTokens(cfg config.Config) (*membership.GuestTokens, ports.GuestVerifier) {
	t := membership.NewGuestTokens(cfg.Guest)
	return t, t
}

func provideVault(ctx context.Context, cfg config.Config) (ports.Vault, error) {
	router, err := vault.New(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	return router, nil
}

func provideEvents(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (ports.JobEventPublisher, error) {
	publisher, closeFn, err := events.New(ctx, cfg.Events)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return closeFn()
		},
	})
	return publisher, nil
}

type pipelineResult struct {
	fx.Out

	Stitcher    ports.Stitcher
	Transcriber ports.Transcriber
	Summarizer  ports.Summarizer
	Renderer    ports.ReportRenderer
}

func providePipeline(ctx context.Context, cfg config.Config) (pipelineResult, error) {
	summarizer, err := summarize.New(ctx, cfg)
	if err != nil {
		return pipelineResult{}, err
	}
	return pipelineResult{
		Stitcher:    media.NewStitcher(cfg.Media),
		Transcriber: transcribe.New(ctx, cfg.Transcribe, cfg.OpenAI),
		Summarizer:  summarizer,
		Renderer:    report.NewRenderer(),
	}, nil
}

func provideService(
	repo ports.NotesRepository,
	uow ports.UnitOfWork,
	members ports.MembershipDirectory,
	store ports.Vault,
	cfg config.Config,
) *notes.Service {
	return notes.NewService(repo, uow, members, store, notes.Options{
		WorkDir:                cfg.Notes.WorkDir,
		MaxChunkBytes:          cfg.Notes.MaxChunkBytes,
		MaxChatTranscriptBytes: cfg.Notes.MaxChatTranscriptBytes,
	})
}

type runnerParams struct {
	fx.In

	Config      config.Config
	Repo        ports.NotesRepository
	UOW         ports.UnitOfWork
	Vault       ports.Vault
	Stitcher    ports.Stitcher
	Transcriber ports.Transcriber
	Summarizer  ports.Summarizer
	Renderer    ports.ReportRenderer
	Events      ports.JobEventPublisher
}

func provideJobRunner(p runnerParams) *notes.JobRunner {
	return notes.NewJobRunner(notes.RunnerDeps{
		Repo:        p.Repo,
		UOW:         p.UOW,
		Vault:       p.Vault,
		Stitcher:    p.Stitcher,
		Transcriber: p.Transcriber,
		Summarizer:  p.Summarizer,
		Renderer:    p.Renderer,
		Events:      p.Events,
	}, notes.RunnerOptions{
		WorkDir:           p.Config.Notes.WorkDir,
		VaultFolder:       p.Config.Notes.VaultFolder,
		Language:          p.Config.Transcribe.Language,
		IncludeTranscript: p.Config.Notes.IncludeTranscript,
		MaxJobErrorChars:  p.Config.Notes.MaxJobErrorChars,
		PollInterval:      p.Config.Notes.PollInterval,
		PollInitialDelay:  p.Config.Notes.PollInitialDelay,
	})
}

func provideSweeper(service *notes.Service, cfg config.Config) *notes.Sweeper {
	return notes.NewSweeper(service, notes.RetentionOptions{
		Days:         cfg.Notes.RetentionDays,
		Interval:     cfg.Notes.RetentionInterval,
		InitialDelay: cfg.Notes.RetentionInitialDelay,
		Batch:        cfg.Notes.RetentionBatch,
	})
}

func provideAPI(service *notes.Service, guests ports.GuestVerifier, app *App, cfg config.Config) *httpapi.API {
	return httpapi.NewAPI(service, guests, app.Ping, httpapi.Options{
		AllowedOrigins:         cfg.HTTP.AllowedOrigins,
		MaxChunkBytes:          cfg.Notes.MaxChunkBytes,
		MaxChatTranscriptBytes: cfg.Notes.MaxChatTranscriptBytes,
		JobPollInterval:        cfg.Notes.PollInterval,
		StreamPingInterval:     cfg.HTTP.StreamPingInterval,
		StreamMaxLifetime:      cfg.HTTP.StreamMaxLifetime,
	})
}
