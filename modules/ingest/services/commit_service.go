package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/agrovault/trialbase/modules/catalog/domain/entities/citation"
	"github.com/agrovault/trialbase/modules/catalog/domain/entities/cultivar"
	"github.com/agrovault/trialbase/modules/catalog/domain/entities/site"
	"github.com/agrovault/trialbase/modules/catalog/domain/entities/species"
	"github.com/agrovault/trialbase/modules/catalog/domain/entities/treatment"
	"github.com/agrovault/trialbase/modules/catalog/domain/resolve"
	"github.com/agrovault/trialbase/modules/ingest/domain/aggregates/session"
	"github.com/agrovault/trialbase/modules/ingest/domain/entities/observation"
	"github.com/agrovault/trialbase/modules/ingest/domain/validation"
	"github.com/agrovault/trialbase/pkg/composables"
	"github.com/agrovault/trialbase/pkg/outbox"
)

// CommittedTopic is the outbox topic enqueued alongside every commit.
const CommittedTopic = "upload.committed"

// CommitPlan previews what committing the current rows would do: how
// many observations get inserted and which catalog entities must be
// created first.
type CommitPlan struct {
	SessionID    uuid.UUID              `json:"session_id"`
	Dataset      validation.DatasetKind `json:"dataset"`
	Observations int                    `json:"observations"`
	Creates      []PlannedCreate        `json:"creates,omitempty"`
}

// PlannedCreate is one catalog entity the commit will create, with the
// file lines that reference it.
type PlannedCreate struct {
	Kind resolve.Kind `json:"kind"`
	Name string       `json:"name"`
	Rows []int        `json:"rows"`
}

// CreatedRecord is one catalog entity the commit did create.
type CreatedRecord struct {
	Kind resolve.Kind `json:"kind"`
	ID   int64        `json:"id"`
	Name string       `json:"name"`
}

// CommitResult is the outcome of a successful commit. It doubles as the
// outbox payload for CommittedTopic.
type CommitResult struct {
	SessionID    uuid.UUID              `json:"session_id"`
	Dataset      validation.DatasetKind `json:"dataset"`
	Observations int                    `json:"observations"`
	Created      []CreatedRecord        `json:"created,omitempty"`
}

type CommitServiceConfig struct {
	Observations observation.Repository
	Sites        site.Repository
	Species      species.Repository
	Citations    citation.Repository
	Cultivars    cultivar.Repository
	Treatments   treatment.Repository
	Outbox       outbox.Publisher
	OutboxTable  pgx.Identifier
	Dictionary   *validation.Dictionary
}

// CommitService turns fully resolved rows into observations. The whole
// commit runs in one transaction: catalog creations, the observation
// batch and the outbox message all land or none do.
type CommitService struct {
	observations observation.Repository
	sites        site.Repository
	species      species.Repository
	citations    citation.Repository
	cultivars    cultivar.Repository
	treatments   treatment.Repository
	outbox       outbox.Publisher
	outboxTable  pgx.Identifier
	dict         *validation.Dictionary
}

func NewCommitService(cfg CommitServiceConfig) *CommitService {
	return &CommitService{
		observations: cfg.Observations,
		sites:        cfg.Sites,
		species:      cfg.Species,
		citations:    cfg.Citations,
		cultivars:    cfg.Cultivars,
		treatments:   cfg.Treatments,
		outbox:       cfg.Outbox,
		outboxTable:  cfg.OutboxTable,
		dict:         cfg.Dictionary,
	}
}

func (s *CommitService) Commit(ctx context.Context, sess *session.Session, rows []validation.Row) (*CommitResult, error) {
	result := &CommitResult{SessionID: sess.ID(), Dataset: sess.Dataset()}

	err := composables.InTx(ctx, func(txCtx context.Context) error {
		refs := newRefCache()
		batch := make([]*observation.Observation, 0, len(rows))
		for _, row := range rows {
			obs, err := s.buildObservation(txCtx, sess, row, refs)
			if err != nil {
				return errors.Wrapf(err, "row %d", row.Line)
			}
			batch = append(batch, obs)
		}
		if len(batch) == 0 {
			return errors.New("no rows to insert")
		}

		created, err := s.observations.CreateMany(txCtx, batch)
		if err != nil {
			return err
		}
		result.Observations = len(created)
		result.Created = refs.created

		payload, err := json.Marshal(result)
		if err != nil {
			return errors.Wrap(err, "failed to encode commit event")
		}
		tx, err := composables.UseTx(txCtx)
		if err != nil {
			return err
		}
		_, err = s.outbox.Enqueue(txCtx, tx, s.outboxTable, outbox.Message{
			Topic:   CommittedTopic,
			EventID: uuid.New(),
			Payload: payload,
		})
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "commit aborted, no observations were inserted")
	}
	return result, nil
}

func (s *CommitService) buildObservation(ctx context.Context, sess *session.Session, row validation.Row, refs *refCache) (*observation.Observation, error) {
	siteID, ok, err := s.refID(ctx, row, "site", resolve.KindSite, 0, refs)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("site is missing")
	}
	speciesID, ok, err := s.refID(ctx, row, "species", resolve.KindSpecies, 0, refs)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("species is missing")
	}
	citationID, err := s.citationID(ctx, row, refs)
	if err != nil {
		return nil, err
	}
	kind, trait, value, err := s.measurement(sess.Dataset(), row)
	if err != nil {
		return nil, err
	}

	var opts []observation.Option
	if cultivarID, ok, err := s.refID(ctx, row, "cultivar", resolve.KindCultivar, speciesID, refs); err != nil {
		return nil, err
	} else if ok {
		opts = append(opts, observation.WithCultivarID(cultivarID))
	}
	if treatmentID, ok, err := s.refID(ctx, row, "treatment", resolve.KindTreatment, 0, refs); err != nil {
		return nil, err
	} else if ok {
		opts = append(opts, observation.WithTreatmentID(treatmentID))
	}
	if cell, ok := row.Cell("n"); ok && cell.Number != nil {
		opts = append(opts, observation.WithN(int(cell.Number.IntPart())))
	}
	if cell, ok := row.Cell("SE"); ok && cell.Number != nil {
		opts = append(opts, observation.WithStdErr(*cell.Number))
	}
	if cell, ok := row.Cell("date"); ok && cell.Date != nil {
		opts = append(opts, observation.WithDate(*cell.Date))
	}
	if cell, ok := row.Cell("notes"); ok && !cell.Empty() {
		opts = append(opts, observation.WithNotes(strings.TrimSpace(cell.Raw)))
	}

	level := session.DefaultAccessLevel
	if cell, ok := row.Cell("access_level"); ok && cell.Number != nil {
		level = int(cell.Number.IntPart())
	}

	return observation.New(sess.ID(), kind, trait, value, siteID, speciesID, citationID, level, opts...), nil
}

// refID returns the catalog identity behind a reference cell, creating
// the entity when the cell resolved to nothing. The bool reports whether
// the row references the column at all. Scope carries the species for
// cultivar creation and is zero otherwise.
func (s *CommitService) refID(ctx context.Context, row validation.Row, column string, kind resolve.Kind, scope int64, refs *refCache) (int64, bool, error) {
	cell, ok := row.Cell(column)
	if !ok || cell.Empty() {
		return 0, false, nil
	}
	if cell.Resolved() {
		return cell.Ref.Match.ID, true, nil
	}
	name := strings.TrimSpace(cell.Raw)
	if id, cached := refs.lookup(kind, scope, name); cached {
		return id, true, nil
	}

	id, err := s.createRef(ctx, kind, name, scope)
	if err != nil {
		return 0, false, errors.Wrapf(err, "failed to create %s %q", kind, name)
	}
	refs.add(kind, scope, name, id, name)
	return id, true, nil
}

func (s *CommitService) createRef(ctx context.Context, kind resolve.Kind, name string, scope int64) (int64, error) {
	switch kind {
	case resolve.KindSite:
		created, err := s.sites.GetOrCreate(ctx, site.New(name))
		if err != nil {
			return 0, err
		}
		return created.ID(), nil
	case resolve.KindSpecies:
		created, err := s.species.GetOrCreate(ctx, species.New(name))
		if err != nil {
			return 0, err
		}
		return created.ID(), nil
	case resolve.KindCultivar:
		created, err := s.cultivars.GetOrCreate(ctx, cultivar.New(scope, name))
		if err != nil {
			return 0, err
		}
		return created.ID(), nil
	case resolve.KindTreatment:
		created, err := s.treatments.GetOrCreate(ctx, treatment.New(name))
		if err != nil {
			return 0, err
		}
		return created.ID(), nil
	}
	return 0, errors.Errorf("cannot create %s entries", kind)
}

// citationID is the citation counterpart of refID. A citation can only
// be created from the author/year/title triple; a DOI alone identifies
// an existing record but cannot seed a new one.
func (s *CommitService) citationID(ctx context.Context, row validation.Row, refs *refCache) (int64, error) {
	cell, ok := row.Cell(validation.CitationColumn)
	if !ok || cell.Empty() {
		return 0, errors.New("citation is missing")
	}
	if cell.Resolved() {
		return cell.Ref.Match.ID, nil
	}
	key := strings.TrimSpace(cell.Raw)
	if id, cached := refs.lookup(resolve.KindCitation, 0, key); cached {
		return id, nil
	}

	draft, ok := draftCitation(row)
	if !ok {
		return 0, errors.Errorf("citation %q cannot be created without author, year and title", cell.Raw)
	}
	var opts []citation.Option
	if draft.doi != "" {
		opts = append(opts, citation.WithDOI(draft.doi))
	}
	created, err := s.citations.GetOrCreate(ctx, citation.New(draft.author, draft.year, draft.title, opts...))
	if err != nil {
		return 0, errors.Wrapf(err, "failed to create citation %q", cell.Raw)
	}
	refs.add(resolve.KindCitation, 0, key, created.ID(), created.Label())
	return created.ID(), nil
}

func (s *CommitService) measurement(dataset validation.DatasetKind, row validation.Row) (observation.Kind, string, decimal.Decimal, error) {
	switch dataset {
	case validation.DatasetYields:
		cell, ok := row.Cell("yield")
		if !ok || cell.Number == nil {
			return "", "", decimal.Decimal{}, errors.New("yield value is missing")
		}
		return observation.KindYield, "yield", *cell.Number, nil
	case validation.DatasetTraits:
		traitCell, ok := row.Cell("trait")
		if !ok || traitCell.Empty() {
			return "", "", decimal.Decimal{}, errors.New("trait name is missing")
		}
		meanCell, ok := row.Cell("mean")
		if !ok || meanCell.Number == nil {
			return "", "", decimal.Decimal{}, errors.New("mean value is missing")
		}
		name := strings.TrimSpace(traitCell.Raw)
		if variable, known := s.dict.Lookup(name); known {
			name = variable.Name
		}
		return observation.KindTrait, name, *meanCell.Number, nil
	}
	return "", "", decimal.Decimal{}, errors.Errorf("unknown dataset kind %q", dataset)
}

// refCache deduplicates catalog creations within one commit: many rows
// naming the same new entity share a single GetOrCreate.
type refCache struct {
	ids     map[string]int64
	created []CreatedRecord
}

func newRefCache() *refCache {
	return &refCache{ids: map[string]int64{}}
}

func refCacheKey(kind resolve.Kind, scope int64, name string) string {
	return fmt.Sprintf("%s/%d/%s", kind, scope, strings.ToLower(strings.TrimSpace(name)))
}

func (c *refCache) lookup(kind resolve.Kind, scope int64, name string) (int64, bool) {
	id, ok := c.ids[refCacheKey(kind, scope, name)]
	return id, ok
}

func (c *refCache) add(kind resolve.Kind, scope int64, name string, id int64, label string) {
	c.ids[refCacheKey(kind, scope, name)] = id
	c.created = append(c.created, CreatedRecord{Kind: kind, ID: id, Name: label})
}

type citationDraft struct {
	author string
	year   int
	title  string
	doi    string
}

// draftCitation gathers the creation fields a row carries for its
// citation. ok is false when the triple is incomplete.
func draftCitation(row validation.Row) (citationDraft, bool) {
	draft := citationDraft{}
	if cell, ok := row.Cell("citation_author"); ok {
		draft.author = strings.TrimSpace(cell.Raw)
	}
	if cell, ok := row.Cell("citation_title"); ok {
		draft.title = strings.TrimSpace(cell.Raw)
	}
	if cell, ok := row.Cell("citation_year"); ok && cell.Number != nil {
		draft.year = int(cell.Number.IntPart())
	}
	if cell, ok := row.Cell("citation_doi"); ok {
		draft.doi = strings.TrimSpace(cell.Raw)
	}
	if draft.author == "" || draft.title == "" || draft.year == 0 {
		return citationDraft{}, false
	}
	return draft, true
}

var planColumns = []struct {
	column string
	kind   resolve.Kind
}{
	{"site", resolve.KindSite},
	{"species", resolve.KindSpecies},
	{"cultivar", resolve.KindCultivar},
	{"treatment", resolve.KindTreatment},
	{validation.CitationColumn, resolve.KindCitation},
}

// buildPlan lists the pending catalog creations for the given rows.
// Citations that resolved to nothing and cannot be created from the row
// are recorded as errors: the commit has no way to satisfy them.
func buildPlan(sess *session.Session, rows []validation.Row, summary *validation.Summary) *CommitPlan {
	plan := &CommitPlan{SessionID: sess.ID(), Dataset: sess.Dataset(), Observations: len(rows)}
	pending := map[string]*PlannedCreate{}
	order := make([]string, 0)

	for _, row := range rows {
		for _, pc := range planColumns {
			cell, ok := row.Cell(pc.column)
			if !ok || cell.Empty() || cell.Ref == nil || cell.Ref.Status != resolve.StatusNotFound {
				continue
			}
			name := strings.TrimSpace(cell.Raw)
			if pc.kind == resolve.KindCitation {
				if _, ok := draftCitation(row); !ok {
					summary.Add(validation.KindValue, validation.LevelError, validation.Issue{
						Row:     row.Line,
						Column:  validation.CitationColumn,
						Message: fmt.Sprintf("citation %q is not in the catalog and the row carries no author, year and title to create it", name),
					})
					continue
				}
			}
			key := refCacheKey(pc.kind, 0, name)
			entry, seen := pending[key]
			if !seen {
				entry = &PlannedCreate{Kind: pc.kind, Name: name}
				pending[key] = entry
				order = append(order, key)
			}
			entry.Rows = append(entry.Rows, row.Line)
		}
	}

	for _, key := range order {
		plan.Creates = append(plan.Creates, *pending[key])
	}
	return plan
}
