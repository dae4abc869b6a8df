package application

import (
	"context"
	"fmt"
	"reflect"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/agrovault/trialbase/pkg/eventbus"
)

// Module is a unit of the platform that registers its services,
// controllers and database schema against the application.
type Module interface {
	Name() string
	Register(app Application) error
}

// Controller handles a group of HTTP routes. Key must be unique across
// the application; registering a controller with a duplicate key
// replaces the previous one.
type Controller interface {
	Key() string
	Register(r *mux.Router)
}

// SeedFunc populates reference data. Seeders run after migrations and
// must be safe to re-run.
type SeedFunc func(ctx context.Context, app Application) error

// Application is the central dependency registry. Modules register
// what they provide, the server and CLI pull what they need.
type Application interface {
	DB() *pgxpool.Pool
	EventPublisher() eventbus.EventBus
	Logger() *logrus.Logger
	Controllers() []Controller
	Middleware() []mux.MiddlewareFunc
	Migrations() MigrationManager

	RegisterControllers(controllers ...Controller)
	RegisterServices(services ...interface{})
	RegisterMiddleware(middleware ...mux.MiddlewareFunc)
	RegisterSeedFuncs(seedFuncs ...SeedFunc)

	Service(service interface{}) interface{}
	Seed(ctx context.Context) error
}

type ApplicationOptions struct {
	Pool     *pgxpool.Pool
	EventBus eventbus.EventBus
	Logger   *logrus.Logger
}

func New(opts *ApplicationOptions) Application {
	if opts.Pool == nil {
		panic("application: pool is required")
	}
	if opts.EventBus == nil {
		panic("application: event bus is required")
	}
	if opts.Logger == nil {
		panic("application: logger is required")
	}
	return &application{
		pool:           opts.Pool,
		eventPublisher: opts.EventBus,
		logger:         opts.Logger,
		services:       make(map[reflect.Type]interface{}),
		controllers:    make(map[string]Controller),
		migrations:     NewMigrationManager(opts.Pool, opts.Logger),
	}
}

type application struct {
	pool           *pgxpool.Pool
	eventPublisher eventbus.EventBus
	logger         *logrus.Logger
	services       map[reflect.Type]interface{}
	controllers    map[string]Controller
	middleware     []mux.MiddlewareFunc
	seedFuncs      []SeedFunc
	migrations     MigrationManager
}

func (app *application) DB() *pgxpool.Pool {
	return app.pool
}

func (app *application) EventPublisher() eventbus.EventBus {
	return app.eventPublisher
}

func (app *application) Logger() *logrus.Logger {
	return app.logger
}

func (app *application) Controllers() []Controller {
	controllers := make([]Controller, 0, len(app.controllers))
	for _, c := range app.controllers {
		controllers = append(controllers, c)
	}
	return controllers
}

func (app *application) Middleware() []mux.MiddlewareFunc {
	return app.middleware
}

func (app *application) Migrations() MigrationManager {
	return app.migrations
}

func (app *application) RegisterControllers(controllers ...Controller) {
	for _, c := range controllers {
		app.controllers[c.Key()] = c
	}
}

// RegisterServices registers services by their concrete type. Services
// are registered as pointers and looked up by the pointed-to type.
func (app *application) RegisterServices(services ...interface{}) {
	for _, service := range services {
		serviceType := reflect.TypeOf(service).Elem()
		app.services[serviceType] = service
	}
}

func (app *application) RegisterMiddleware(middleware ...mux.MiddlewareFunc) {
	app.middleware = append(app.middleware, middleware...)
}

func (app *application) RegisterSeedFuncs(seedFuncs ...SeedFunc) {
	app.seedFuncs = append(app.seedFuncs, seedFuncs...)
}

// Service returns the registered service matching the type of the
// given value. It panics when no such service was registered, which
// points at a module wiring bug rather than a runtime condition.
func (app *application) Service(service interface{}) interface{} {
	svc, ok := app.services[reflect.TypeOf(service)]
	if !ok {
		panic(fmt.Sprintf("service %s not found", reflect.TypeOf(service).String()))
	}
	return svc
}

func (app *application) Seed(ctx context.Context) error {
	for _, seedFunc := range app.seedFuncs {
		if err := seedFunc(ctx, app); err != nil {
			return err
		}
	}
	return nil
}
