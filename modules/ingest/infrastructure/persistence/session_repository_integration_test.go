package persistence_test

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agrovault/trialbase/modules"
	"github.com/agrovault/trialbase/modules/ingest/domain/aggregates/session"
	"github.com/agrovault/trialbase/modules/ingest/domain/validation"
	"github.com/agrovault/trialbase/modules/ingest/infrastructure/persistence"
	"github.com/agrovault/trialbase/pkg/configuration"
	"github.com/agrovault/trialbase/pkg/itf"
)

func canDialPostgres(tb testing.TB) bool {
	tb.Helper()

	cfg := configuration.Use()
	host := strings.TrimSpace(cfg.Database.Host)
	if host == "" {
		host = "localhost"
	}
	port := strings.TrimSpace(cfg.Database.Port)
	if port == "" {
		port = "5432"
	}
	addr := net.JoinHostPort(host, port)

	dialer := &net.Dialer{Timeout: 250 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func setupSessionEnv(t *testing.T) *itf.TestEnvironment {
	t.Helper()
	if !canDialPostgres(t) {
		t.Skip("postgres is not reachable; skipping repository integration test")
	}
	return itf.NewTestContext().WithModules(modules.BuiltInModules...).Build(t)
}

func TestUploadSessionRepository_Lifecycle(t *testing.T) {
	env := setupSessionEnv(t)
	sessions := persistence.NewUploadSessionRepository()

	created, err := sessions.Create(env.Ctx, session.New("owner-lifecycle", validation.DatasetYields))
	require.NoError(t, err)
	require.Equal(t, session.StageStart, created.Stage())
	require.False(t, created.HasFile())

	date := time.Date(2014, 7, 1, 0, 0, 0, 0, time.UTC)
	staged, err := created.WithFile(session.File{
		Filename: "yields.csv",
		Path:     "static/uploads/yields.csv",
		SHA256:   strings.Repeat("ab", 32),
		Size:     2048,
		Mime:     "text/csv; charset=utf-8",
		RowCount: 12,
		Headers:  []string{"site", "species", "yield", "citation_doi"},
	}).WithStage(session.StageFileValidated)
	require.NoError(t, err)
	staged = staged.WithDefaults(session.Defaults{
		Site:        "Rothamsted",
		AccessLevel: 2,
		Date:        &date,
		Rounding:    3,
	}).WithCitations([]int64{3, 9})

	_, err = sessions.Update(env.Ctx, staged)
	require.NoError(t, err)

	got, err := sessions.GetByID(env.Ctx, created.ID())
	require.NoError(t, err)
	require.Equal(t, session.StageFileValidated, got.Stage())
	require.NotNil(t, got.File())
	require.Equal(t, "yields.csv", got.File().Filename)
	require.Equal(t, 12, got.File().RowCount)
	require.Equal(t, []string{"site", "species", "yield", "citation_doi"}, got.File().Headers)
	require.Equal(t, "Rothamsted", got.Defaults().Site)
	require.Equal(t, 2, got.Defaults().AccessLevel)
	require.Equal(t, 3, got.Defaults().Rounding)
	require.NotNil(t, got.Defaults().Date)
	require.True(t, got.Defaults().Date.Equal(date))
	require.Equal(t, []int64{3, 9}, got.Citations())

	count, err := sessions.Count(env.Ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	require.NoError(t, sessions.Delete(env.Ctx, created.ID()))
	_, err = sessions.GetByID(env.Ctx, created.ID())
	require.ErrorIs(t, err, session.ErrNotFound)
}

func TestUploadSessionRepository_GetActiveByOwner(t *testing.T) {
	env := setupSessionEnv(t)
	sessions := persistence.NewUploadSessionRepository()

	_, err := sessions.GetActiveByOwner(env.Ctx, "owner-active")
	require.ErrorIs(t, err, session.ErrNoActiveSession)

	first, err := sessions.Create(env.Ctx, session.New("owner-active", validation.DatasetYields))
	require.NoError(t, err)

	// Walk the finished run through its stages so the partial unique
	// index frees the owner for a new one.
	finished := first
	for _, stage := range []session.Stage{
		session.StageFileValidated,
		session.StageDefaultsChosen,
		session.StageConfirmed,
		session.StageInserted,
	} {
		finished, err = finished.WithStage(stage)
		require.NoError(t, err)
	}
	_, err = sessions.Update(env.Ctx, finished)
	require.NoError(t, err)

	second, err := sessions.Create(env.Ctx, session.New("owner-active", validation.DatasetTraits))
	require.NoError(t, err)

	active, err := sessions.GetActiveByOwner(env.Ctx, "owner-active")
	require.NoError(t, err)
	require.Equal(t, second.ID(), active.ID())
	require.Equal(t, validation.DatasetTraits, active.Dataset())
}

func TestUploadSessionRepository_OneActiveRunPerOwner(t *testing.T) {
	env := setupSessionEnv(t)
	sessions := persistence.NewUploadSessionRepository()

	_, err := sessions.Create(env.Ctx, session.New("owner-dup", validation.DatasetYields))
	require.NoError(t, err)

	_, err = sessions.Create(env.Ctx, session.New("owner-dup", validation.DatasetYields))
	require.ErrorIs(t, err, session.ErrAlreadyExists)
}
