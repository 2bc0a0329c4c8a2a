package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pdfrealm/internal/bootstrap/config"
	"pdfrealm/internal/bootstrap/database"
	"pdfrealm/internal/bootstrap/logging"
	"pdfrealm/internal/errs"
	"pdfrealm/internal/infrastructure/persistence/gormdb/model"
	"pdfrealm/internal/infrastructure/persistence/schema"
)

type App struct {
	Config config.Config
	DB     *gorm.DB
}

func New(ctx context.Context, configFile string) (*App, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	logging.Info(logCtx, "loading application config", slog.String("config_file", configFile))

	cfg, err := config.Load(logCtx, configFile)
	if err != nil {
		return nil, errs.Wrap(err, "load config")
	}

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, errs.Wrap(err, "open database")
	}

	logging.Info(logCtx, "application bootstrap completed", slog.String("database_driver", cfg.Database.Driver))

	return &App{
		Config: cfg,
		DB:     db,
	}, nil
}

// InitSchema migrates every notes table and stamps the schema version.
func (a *App) InitSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	logging.Info(logCtx, "start schema migration")

	tables := append(model.All(), &schema.SchemaMeta{})
	if err := a.DB.WithContext(ctx).AutoMigrate(tables...); err != nil {
		return errs.Wrap(err, "auto migrate schema")
	}

	meta := schema.SchemaMeta{Key: schema.VersionKey, Value: schema.Version}
	if err := a.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&meta).Error; err != nil {
		return errs.Wrap(err, "stamp schema version")
	}

	logging.Info(logCtx, "schema migration completed", slog.String("schema_version", schema.Version))
	return nil
}

// SchemaVersion returns the stamped version, or "" before init-db ran.
func (a *App) SchemaVersion(ctx context.Context) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}

	var meta schema.SchemaMeta
	err := a.DB.WithContext(ctx).Where("key = ?", schema.VersionKey).Limit(1).Find(&meta).Error
	if err != nil {
		return "", errs.Wrap(err, "read schema version")
	}
	return meta.Value, nil
}

// Ping backs the /health endpoint.
func (a *App) Ping(ctx context.Context) error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return errs.Wrap(err, "get sql db")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return errs.Wrap(err, "ping database")
	}
	return nil
}

func (a *App) Close(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	sqlDB, err := a.DB.DB()
	if err != nil {
		return errs.Wrap(err, "get sql db")
	}

	if err := sqlDB.Close(); err != nil {
		return errs.Wrap(err, "close sql db")
	}

	logging.Info(logging.WithAttrs(ctx, slog.String("component", "bootstrap.app")), "database connection closed")
	return nil
}
