package runtime

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/updraft-io/updraft/internal/app"
	"github.com/updraft-io/updraft/internal/app/httpapi"
	"github.com/updraft-io/updraft/internal/app/objectstore"
	"github.com/updraft-io/updraft/internal/app/storage/postgres"
	"github.com/updraft-io/updraft/internal/app/system"
	"github.com/updraft-io/updraft/internal/config"
	"github.com/updraft-io/updraft/internal/platform/database"
	"github.com/updraft-io/updraft/internal/platform/migrations"
	"github.com/updraft-io/updraft/pkg/logger"
)

// Application owns process-level resources: configuration, the database
// handle, the object store and the managed services.
type Application struct {
	Config  *config.Config
	Log     *logger.Logger
	DB      *sql.DB
	App     *app.Application
	manager *system.Manager
}

// NewApplication loads configuration and wires the full service graph.
func NewApplication(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := migrations.Apply(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	store := postgres.New(db)
	objects, err := objectstore.NewFilesystem(cfg.Storage.Root, cfg.Storage.BaseURL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init object store: %w", err)
	}

	application := app.New(app.Stores{
		Accounts:    store,
		AccessKeys:  store,
		Apps:        store,
		Deployments: store,
		Packages:    store,
		Blobs:       store,
	}, objects, log)

	manager := system.NewManager()
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	if err := manager.Register(httpapi.NewServer(addr, db, log)); err != nil {
		db.Close()
		return nil, err
	}

	return &Application{
		Config:  cfg,
		Log:     log,
		DB:      db,
		App:     application,
		manager: manager,
	}, nil
}

// Run starts the managed services.
func (a *Application) Run(ctx context.Context) error {
	a.Log.Info("starting services")
	return a.manager.Start(ctx)
}

// Shutdown stops services and releases the database handle.
func (a *Application) Shutdown(ctx context.Context) error {
	a.Log.Info("shutting down")
	err := a.manager.Stop(ctx)
	if closeErr := a.DB.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
