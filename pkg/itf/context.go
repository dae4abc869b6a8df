package itf

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agrovault/trialbase/pkg/application"
	"github.com/agrovault/trialbase/pkg/composables"
)

// TestContext is a fluent builder for integration test environments.
// Build creates a fresh database named after the test, loads the given
// modules, runs migrations and opens a transaction that is rolled back
// on cleanup.
type TestContext struct {
	ctx     context.Context
	pool    *pgxpool.Pool
	tx      pgx.Tx
	app     application.Application
	modules []application.Module
	dbName  string
}

func NewTestContext() *TestContext {
	return &TestContext{
		ctx:     context.Background(),
		modules: []application.Module{},
	}
}

// WithModules adds modules to the test context.
func (tc *TestContext) WithModules(modules ...application.Module) *TestContext {
	tc.modules = append(tc.modules, modules...)
	return tc
}

// WithDBName sets a custom database name. The first caller wins.
func (tc *TestContext) WithDBName(tb testing.TB, name string) *TestContext {
	tb.Helper()
	if tc.dbName == "" {
		tc.dbName = name
	}
	return tc
}

// Build creates the test environment with all dependencies.
func (tc *TestContext) Build(tb testing.TB) *TestEnvironment {
	tb.Helper()

	if tc.dbName == "" {
		tc.dbName = tb.Name()
	}

	CreateDB(tc.dbName)
	tc.pool = NewPool(DbOpts(tc.dbName))

	app, err := SetupApplication(tc.pool, tc.modules...)
	if err != nil {
		tb.Fatal(err)
	}
	tc.app = app

	tx, err := tc.pool.Begin(tc.ctx)
	if err != nil {
		tb.Fatal(err)
	}
	tc.tx = tx

	tc.ctx = tc.buildContext()

	tb.Cleanup(func() {
		if err := tx.Rollback(tc.ctx); err != nil && err != pgx.ErrTxClosed {
			tb.Logf("Warning: failed to rollback transaction: %v", err)
		}
		tc.pool.Close()
	})

	return &TestEnvironment{
		Ctx:  tc.ctx,
		Pool: tc.pool,
		Tx:   tc.tx,
		App:  tc.app,
	}
}

func (tc *TestContext) buildContext() context.Context {
	ctx := tc.ctx
	ctx = composables.WithPool(ctx, tc.pool)
	ctx = composables.WithTx(ctx, tc.tx)
	ctx = composables.WithParams(ctx, DefaultParams())
	return ctx
}

// TestEnvironment contains all test dependencies.
type TestEnvironment struct {
	Ctx  context.Context
	Pool *pgxpool.Pool
	Tx   pgx.Tx
	App  application.Application
}

// Service retrieves a service from the application.
func (te *TestEnvironment) Service(service interface{}) interface{} {
	return te.App.Service(service)
}

// GetService is a generic helper that retrieves and casts a service.
func GetService[T any](te *TestEnvironment) *T {
	var zero T
	service := te.App.Service(zero)
	if service == nil {
		return nil
	}
	return service.(*T)
}

// AssertNoError fails the test if err is not nil.
func (te *TestEnvironment) AssertNoError(tb testing.TB, err error) {
	tb.Helper()
	if err != nil {
		tb.Fatal(err)
	}
}

// WithTx returns a new context carrying the test transaction.
func (te *TestEnvironment) WithTx(ctx context.Context) context.Context {
	return composables.WithTx(ctx, te.Tx)
}
