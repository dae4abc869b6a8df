package common

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agrovault/trialbase/modules"
	"github.com/agrovault/trialbase/pkg/application"
	"github.com/agrovault/trialbase/pkg/configuration"
	"github.com/agrovault/trialbase/pkg/eventbus"
)

// NewApplicationWithDefaults builds the application the way the server
// and CLI tools both need it: configuration singleton, pgx pool, event
// bus and all given modules loaded. The caller owns the pool.
func NewApplicationWithDefaults(mods ...application.Module) (application.Application, *pgxpool.Pool, error) {
	conf := configuration.Use()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		EventBus: eventbus.NewEventPublisher(conf.Logger()),
		Logger:   conf.Logger(),
	})
	if err := modules.Load(app, mods...); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to load modules: %w", err)
	}
	return app, pool, nil
}
