//go:build integration

package services

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/agrovault/trialbase/modules/catalog/domain/entities/citation"
	"github.com/agrovault/trialbase/modules/catalog/domain/entities/site"
	"github.com/agrovault/trialbase/modules/catalog/domain/entities/species"
	"github.com/agrovault/trialbase/modules/catalog/domain/resolve"
	catalogpersistence "github.com/agrovault/trialbase/modules/catalog/infrastructure/persistence"
	"github.com/agrovault/trialbase/modules/ingest/domain/aggregates/session"
	"github.com/agrovault/trialbase/modules/ingest/domain/validation"
	ingestpersistence "github.com/agrovault/trialbase/modules/ingest/infrastructure/persistence"
	"github.com/agrovault/trialbase/pkg/composables"
	"github.com/agrovault/trialbase/pkg/outbox"
)

const integrationSchemaSQL = `
CREATE TABLE sites (
    id         BIGSERIAL PRIMARY KEY,
    name       TEXT        NOT NULL,
    city       TEXT        NULL,
    state      TEXT        NULL,
    country    TEXT        NULL,
    latitude   NUMERIC(9, 6) NULL,
    longitude  NUMERIC(9, 6) NULL,
    notes      TEXT        NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX sites_name_unique_idx ON sites (lower(name));

CREATE TABLE species (
    id              BIGSERIAL PRIMARY KEY,
    scientific_name TEXT        NOT NULL,
    genus           TEXT        NULL,
    common_name     TEXT        NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX species_scientific_name_unique_idx ON species (lower(scientific_name));

CREATE TABLE citations (
    id         BIGSERIAL PRIMARY KEY,
    author     TEXT        NOT NULL,
    year       INT         NOT NULL,
    title      TEXT        NOT NULL,
    journal    TEXT        NULL,
    doi        TEXT        NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT citations_year_check CHECK (year >= 1800)
);
CREATE UNIQUE INDEX citations_label_unique_idx ON citations (lower(author), year, lower(title));
CREATE UNIQUE INDEX citations_doi_unique_idx ON citations (lower(doi)) WHERE doi IS NOT NULL;

CREATE TABLE cultivars (
    id         BIGSERIAL PRIMARY KEY,
    species_id BIGINT      NOT NULL REFERENCES species (id) ON DELETE CASCADE,
    name       TEXT        NOT NULL,
    ecotype    TEXT        NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX cultivars_species_name_unique_idx ON cultivars (species_id, lower(name));

CREATE TABLE treatments (
    id         BIGSERIAL PRIMARY KEY,
    name       TEXT        NOT NULL,
    definition TEXT        NULL,
    control    BOOLEAN     NOT NULL DEFAULT false,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX treatments_name_unique_idx ON treatments (lower(name));

CREATE TABLE upload_sessions (
    id          UUID PRIMARY KEY,
    owner_key   TEXT        NOT NULL,
    dataset     VARCHAR(16) NOT NULL,
    stage       VARCHAR(32) NOT NULL,
    file_name   TEXT,
    file_path   TEXT,
    file_sha256 VARCHAR(64),
    file_size   BIGINT,
    file_mime   VARCHAR(255),
    row_count   INT,
    headers     TEXT[],
    defaults    JSONB       NOT NULL DEFAULT '{}'::jsonb,
    citations   BIGINT[],
    last_error  TEXT,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT upload_sessions_dataset_check CHECK (dataset IN ('yields', 'traits')),
    CONSTRAINT upload_sessions_stage_check CHECK (
        stage IN ('start', 'file_validated', 'defaults_chosen', 'confirmed', 'inserted', 'failed')
    )
);

CREATE TABLE observations (
    id           BIGSERIAL PRIMARY KEY,
    session_id   UUID        NOT NULL REFERENCES upload_sessions (id),
    kind         VARCHAR(16) NOT NULL,
    trait        VARCHAR(255) NOT NULL,
    value        NUMERIC(16, 6) NOT NULL,
    n            INT,
    std_err      NUMERIC(16, 6),
    site_id      BIGINT      NOT NULL REFERENCES sites (id),
    species_id   BIGINT      NOT NULL REFERENCES species (id),
    citation_id  BIGINT      NOT NULL REFERENCES citations (id),
    cultivar_id  BIGINT      REFERENCES cultivars (id),
    treatment_id BIGINT      REFERENCES treatments (id),
    date         DATE,
    access_level INT         NOT NULL,
    notes        TEXT,
    checked      BOOLEAN     NOT NULL DEFAULT false,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT observations_kind_check CHECK (kind IN ('yield', 'trait')),
    CONSTRAINT observations_access_level_check CHECK (access_level BETWEEN 1 AND 4),
    CONSTRAINT observations_n_check CHECK (n IS NULL OR n >= 1)
);

CREATE TABLE upload_outbox (
    id           UUID        NOT NULL DEFAULT gen_random_uuid(),
    topic        TEXT        NOT NULL,
    payload      JSONB       NOT NULL,
    event_id     UUID        NOT NULL,
    sequence     BIGSERIAL   NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    published_at TIMESTAMPTZ NULL,
    attempts     INT         NOT NULL DEFAULT 0,
    available_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    locked_at    TIMESTAMPTZ NULL,
    last_error   TEXT        NULL,
    CONSTRAINT upload_outbox_pkey PRIMARY KEY (id),
    CONSTRAINT upload_outbox_event_id_key UNIQUE (event_id),
    CONSTRAINT upload_outbox_attempts_nonnegative CHECK (attempts >= 0)
);
`

func setupIntegrationPool(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("INGEST_TEST_DSN")
	if dsn == "" {
		t.Skip("INGEST_TEST_DSN is not set")
	}

	schema := "ingest_it_" + uuid.NewString()[:8]

	admin, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := admin.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS pgcrypto;`); err != nil {
		admin.Close()
		t.Fatalf("create extension: %v", err)
	}
	if _, err := admin.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", schema)); err != nil {
		admin.Close()
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), fmt.Sprintf("DROP SCHEMA %s CASCADE", schema))
		admin.Close()
	})

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect to schema: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, integrationSchemaSQL); err != nil {
		t.Fatalf("create tables: %v", err)
	}
	return pool
}

func integrationCommitService(t *testing.T) *CommitService {
	t.Helper()
	dict, err := validation.LoadDictionary()
	if err != nil {
		t.Fatalf("load dictionary: %v", err)
	}
	return NewCommitService(CommitServiceConfig{
		Observations: ingestpersistence.NewObservationRepository(),
		Sites:        catalogpersistence.NewSiteRepository(),
		Species:      catalogpersistence.NewSpeciesRepository(),
		Citations:    catalogpersistence.NewCitationRepository(),
		Cultivars:    catalogpersistence.NewCultivarRepository(),
		Treatments:   catalogpersistence.NewTreatmentRepository(),
		Outbox:       outbox.NewPublisher(),
		OutboxTable:  pgx.Identifier{"upload_outbox"},
		Dictionary:   dict,
	})
}

func resolvedCell(column string, kind resolve.Kind, raw string, id int64) validation.Cell {
	res := resolve.Unique(kind, raw, id, raw)
	return validation.Cell{
		Column:  column,
		Raw:     raw,
		Kind:    validation.CellCatalogRef,
		Ref:     &res,
		Verdict: validation.OK(),
	}
}

func pendingCell(column string, kind resolve.Kind, raw string) validation.Cell {
	res := resolve.NotFound(kind, raw)
	return validation.Cell{
		Column:  column,
		Raw:     raw,
		Kind:    validation.CellCatalogRef,
		Ref:     &res,
		Verdict: validation.Warn("no match"),
	}
}

func numericCell(column, raw string) validation.Cell {
	n := decimal.RequireFromString(raw)
	return validation.Cell{
		Column:  column,
		Raw:     raw,
		Kind:    validation.CellNumeric,
		Number:  &n,
		Verdict: validation.OK(),
	}
}

func TestCommitService_Integration_InsertsAndEnqueues(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool := setupIntegrationPool(t, ctx)
	ctx = composables.WithPool(ctx, pool)

	sites := catalogpersistence.NewSiteRepository()
	speciesRepo := catalogpersistence.NewSpeciesRepository()
	citations := catalogpersistence.NewCitationRepository()
	sessions := ingestpersistence.NewUploadSessionRepository()
	observations := ingestpersistence.NewObservationRepository()

	rothamsted, err := sites.Create(ctx, site.New("Rothamsted"))
	if err != nil {
		t.Fatalf("seed site: %v", err)
	}
	maize, err := speciesRepo.Create(ctx, species.New("Zea mays"))
	if err != nil {
		t.Fatalf("seed species: %v", err)
	}
	smith, err := citations.Create(ctx, citation.New("Smith", 2001, "Long-term yields"))
	if err != nil {
		t.Fatalf("seed citation: %v", err)
	}

	sess := session.New("owner-1", validation.DatasetYields)
	if _, err := sessions.Create(ctx, sess); err != nil {
		t.Fatalf("create session: %v", err)
	}

	rows := []validation.Row{
		{
			Line: 2,
			Cells: map[string]validation.Cell{
				"site":                    resolvedCell("site", resolve.KindSite, "Rothamsted", rothamsted.ID()),
				"species":                 resolvedCell("species", resolve.KindSpecies, "Zea mays", maize.ID()),
				validation.CitationColumn: resolvedCell(validation.CitationColumn, resolve.KindCitation, "10.1000/j.fcr.001", smith.ID()),
				"yield":                   numericCell("yield", "8.5"),
			},
		},
		{
			Line: 3,
			Cells: map[string]validation.Cell{
				"site":                    pendingCell("site", resolve.KindSite, "Atlantis Research Station"),
				"species":                 resolvedCell("species", resolve.KindSpecies, "Zea mays", maize.ID()),
				validation.CitationColumn: resolvedCell(validation.CitationColumn, resolve.KindCitation, "10.1000/j.fcr.001", smith.ID()),
				"yield":                   numericCell("yield", "6.2"),
			},
		},
	}

	svc := integrationCommitService(t)
	result, err := svc.Commit(ctx, sess, rows)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if result.Observations != 2 {
		t.Fatalf("expected 2 observations, got %d", result.Observations)
	}

	var createdSite bool
	for _, rec := range result.Created {
		if rec.Kind == resolve.KindSite && rec.Name == "Atlantis Research Station" {
			createdSite = true
		}
	}
	if !createdSite {
		t.Fatalf("expected a created site record, got %+v", result.Created)
	}

	count, err := observations.CountBySession(ctx, sess.ID())
	if err != nil {
		t.Fatalf("count observations: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 stored observations, got %d", count)
	}

	var outboxCount int
	var topic string
	if err := pool.QueryRow(ctx, `SELECT COUNT(*), MIN(topic) FROM upload_outbox`).Scan(&outboxCount, &topic); err != nil {
		t.Fatalf("query outbox: %v", err)
	}
	if outboxCount != 1 {
		t.Fatalf("expected 1 outbox message, got %d", outboxCount)
	}
	if topic != CommittedTopic {
		t.Fatalf("expected topic %q, got %q", CommittedTopic, topic)
	}
}

func TestCommitService_Integration_RollsBackOnFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool := setupIntegrationPool(t, ctx)
	ctx = composables.WithPool(ctx, pool)

	sites := catalogpersistence.NewSiteRepository()
	speciesRepo := catalogpersistence.NewSpeciesRepository()
	citations := catalogpersistence.NewCitationRepository()
	sessions := ingestpersistence.NewUploadSessionRepository()
	observations := ingestpersistence.NewObservationRepository()

	rothamsted, err := sites.Create(ctx, site.New("Rothamsted"))
	if err != nil {
		t.Fatalf("seed site: %v", err)
	}
	maize, err := speciesRepo.Create(ctx, species.New("Zea mays"))
	if err != nil {
		t.Fatalf("seed species: %v", err)
	}
	smith, err := citations.Create(ctx, citation.New("Smith", 2001, "Long-term yields"))
	if err != nil {
		t.Fatalf("seed citation: %v", err)
	}

	sess := session.New("owner-2", validation.DatasetYields)
	if _, err := sessions.Create(ctx, sess); err != nil {
		t.Fatalf("create session: %v", err)
	}

	baseCells := func(value string) map[string]validation.Cell {
		return map[string]validation.Cell{
			"site":                    resolvedCell("site", resolve.KindSite, "Rothamsted", rothamsted.ID()),
			"species":                 resolvedCell("species", resolve.KindSpecies, "Zea mays", maize.ID()),
			validation.CitationColumn: resolvedCell(validation.CitationColumn, resolve.KindCitation, "10.1000/j.fcr.001", smith.ID()),
			"yield":                   numericCell("yield", value),
		}
	}

	// The last value overflows NUMERIC(16, 6) at insert time, after the
	// first row has already been written inside the transaction.
	rows := []validation.Row{
		{Line: 2, Cells: baseCells("8.5")},
		{Line: 3, Cells: baseCells("99999999999999")},
	}

	svc := integrationCommitService(t)
	if _, err := svc.Commit(ctx, sess, rows); err == nil {
		t.Fatal("expected commit to fail on numeric overflow")
	}

	count, err := observations.CountBySession(ctx, sess.ID())
	if err != nil {
		t.Fatalf("count observations: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rollback to leave no observations, got %d", count)
	}

	var outboxCount int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM upload_outbox`).Scan(&outboxCount); err != nil {
		t.Fatalf("query outbox: %v", err)
	}
	if outboxCount != 0 {
		t.Fatalf("expected rollback to leave no outbox messages, got %d", outboxCount)
	}
}
