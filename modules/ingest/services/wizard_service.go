package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/agrovault/trialbase/modules/catalog/domain/resolve"
	"github.com/agrovault/trialbase/modules/ingest/domain/aggregates/session"
	"github.com/agrovault/trialbase/modules/ingest/domain/merge"
	"github.com/agrovault/trialbase/modules/ingest/domain/validation"
	"github.com/agrovault/trialbase/modules/ingest/infrastructure/storage"
	"github.com/agrovault/trialbase/pkg/eventbus"
)

var (
	ErrUnknownDataset = errors.New("unknown dataset kind")
	// ErrNotCommittable reports that re-derivation found errors or
	// unfilled required fields, so no rows can be inserted.
	ErrNotCommittable = errors.New("upload is not ready to commit")
)

// Committer performs the transactional insert for a fully derived and
// clean set of rows.
type Committer interface {
	Commit(ctx context.Context, sess *session.Session, rows []validation.Row) (*CommitResult, error)
}

// StepResult is the wizard view after a step: the persisted session plus
// everything re-derived from the stored file. Summary, Rows, Gaps and
// Plan are nil while no file is attached.
type StepResult struct {
	Session *session.Session
	Summary *validation.Summary
	Rows    []validation.Row
	Gaps    []merge.Gap
	Plan    *CommitPlan
}

type WizardServiceConfig struct {
	Sessions     session.Repository
	Lookup       resolve.Lookup
	Committer    Committer
	Files        storage.FileStore
	Dictionary   *validation.Dictionary
	HeaderPolicy validation.HeaderPolicy
	DateFormats  []string
	Publisher    eventbus.EventBus
}

// WizardService drives the upload wizard. Every step loads the session,
// checks the stage graph, re-derives the view from the stored file and
// persists the outcome. Nothing about a run lives in memory between
// requests.
type WizardService struct {
	sessions  session.Repository
	lookup    resolve.Lookup
	committer Committer
	files     storage.FileStore
	dict      *validation.Dictionary
	policy    validation.HeaderPolicy
	formats   []string
	publisher eventbus.EventBus
}

func NewWizardService(cfg WizardServiceConfig) *WizardService {
	return &WizardService{
		sessions:  cfg.Sessions,
		lookup:    cfg.Lookup,
		committer: cfg.Committer,
		files:     cfg.Files,
		dict:      cfg.Dictionary,
		policy:    cfg.HeaderPolicy,
		formats:   cfg.DateFormats,
		publisher: cfg.Publisher,
	}
}

// Begin opens the wizard for an owner. An owner holds at most one live
// run: an existing one is rewound to the start, dropping its stored
// file but keeping defaults and linked citations.
func (s *WizardService) Begin(ctx context.Context, ownerKey string, dataset validation.DatasetKind) (*session.Session, error) {
	if !dataset.IsValid() {
		return nil, errors.Wrapf(ErrUnknownDataset, "%q", dataset)
	}

	current, err := s.sessions.GetActiveByOwner(ctx, ownerKey)
	if errors.Is(err, session.ErrNoActiveSession) {
		created, err := s.sessions.Create(ctx, session.New(ownerKey, dataset))
		if err != nil {
			return nil, err
		}
		s.publisher.Publish("upload.started", created)
		return created, nil
	}
	if err != nil {
		return nil, err
	}

	if file := current.File(); file != nil {
		_ = s.files.Remove(ctx, file.Path)
	}
	rewound, err := current.ClearFile().WithStage(session.StageStart)
	if err != nil {
		return nil, err
	}
	updated, err := s.sessions.Update(ctx, rewound.WithDataset(dataset))
	if err != nil {
		return nil, err
	}
	s.publisher.Publish("upload.restarted", updated)
	return updated, nil
}

// SubmitFile attaches an uploaded file to the session. A file that fails
// at the parse or header level never becomes part of the session: the
// wizard stays where it was and the report explains what to fix. Data
// level findings do not block this step.
func (s *WizardService) SubmitFile(ctx context.Context, id uuid.UUID, filename string, content []byte) (*StepResult, error) {
	current, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Stage().CanTransitionTo(session.StageFileValidated) {
		return nil, errors.Wrapf(session.ErrInvalidTransition, "cannot accept a file in stage %q", current.Stage())
	}

	summary := validation.NewSummary()
	mime, ok := checkMime(content, summary)
	if !ok {
		return &StepResult{Session: current, Summary: summary}, nil
	}

	der, err := s.derive(ctx, current, content)
	if err != nil {
		return nil, err
	}
	if der.summary.Fatal {
		return &StepResult{Session: current, Summary: der.summary}, nil
	}

	next := current
	if conflictsWithLinked(next.Citations(), der.rows) {
		next = next.WithCitations(nil)
		der.summary.Add(validation.KindValue, validation.LevelWarning, validation.Issue{
			Column:  validation.CitationColumn,
			Message: "previously linked citations no longer match the uploaded file and were unlinked",
		})
	}

	path, err := s.files.Save(ctx, filename, content)
	if err != nil {
		return nil, err
	}
	if old := next.File(); old != nil {
		_ = s.files.Remove(ctx, old.Path)
	}
	digest := sha256.Sum256(content)
	next = next.WithFile(session.File{
		Filename: filename,
		Path:     path,
		SHA256:   hex.EncodeToString(digest[:]),
		Size:     int64(len(content)),
		Mime:     mime,
		RowCount: len(der.table.Rows),
		Headers:  der.table.Headers,
	})
	next, err = next.WithStage(session.StageFileValidated)
	if err != nil {
		return nil, err
	}
	updated, err := s.sessions.Update(ctx, next)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish("upload.file_validated", updated)
	return der.result(updated), nil
}

// ChooseDefaults stores the global defaults and re-derives the view with
// them applied. Defaults never fail validation themselves; their effect
// shows up in the returned report.
func (s *WizardService) ChooseDefaults(ctx context.Context, id uuid.UUID, defaults session.Defaults) (*StepResult, error) {
	current, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := current.WithDefaults(normalizeDefaults(defaults)).WithStage(session.StageDefaultsChosen)
	if err != nil {
		return nil, err
	}
	updated, err := s.sessions.Update(ctx, next)
	if err != nil {
		return nil, err
	}

	der, err := s.deriveFromStored(ctx, updated)
	if err != nil {
		return s.fail(ctx, updated, err)
	}
	s.publisher.Publish("upload.defaults_chosen", updated)
	return der.result(updated), nil
}

// Preview re-derives the rows with defaults merged and catalog
// references resolved. A clean result moves the session to Confirmed
// and pins the citations the rows resolved to; otherwise the session
// stays put and the report carries what blocks confirmation. A session
// already confirmed is demoted when the catalog drifted underneath it.
func (s *WizardService) Preview(ctx context.Context, id uuid.UUID) (*StepResult, error) {
	current, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Stage().CanTransitionTo(session.StageConfirmed) {
		return nil, errors.Wrapf(session.ErrInvalidTransition, "cannot confirm in stage %q", current.Stage())
	}

	der, err := s.deriveFromStored(ctx, current)
	if err != nil {
		return s.fail(ctx, current, err)
	}
	if der.summary.Fatal {
		return s.fail(ctx, current, errors.New("the stored file no longer passes validation"))
	}

	if der.blocked() {
		demoted := current
		if current.Stage() == session.StageConfirmed {
			fallback, err := current.WithStage(session.StageDefaultsChosen)
			if err != nil {
				return nil, err
			}
			demoted, err = s.sessions.Update(ctx, fallback)
			if err != nil {
				return nil, err
			}
		}
		return der.result(demoted), nil
	}

	advanced := current.Stage() != session.StageConfirmed
	next := current
	if advanced {
		next, err = current.WithStage(session.StageConfirmed)
		if err != nil {
			return nil, err
		}
	}
	updated, err := s.sessions.Update(ctx, next.WithCitations(citationIDs(der.rows)))
	if err != nil {
		return nil, err
	}
	if advanced {
		s.publisher.Publish("upload.confirmed", updated)
	}
	return der.result(updated), nil
}

// Commit inserts the confirmed rows. Only a session standing exactly in
// Confirmed may commit; a second submit after success is rejected here
// before any work happens. The rows are re-derived from the stored file
// and must still be clean, so a catalog change between confirmation and
// commit demotes instead of inserting drifted data.
func (s *WizardService) Commit(ctx context.Context, id uuid.UUID) (*session.Session, *CommitResult, error) {
	current, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if current.Stage() != session.StageConfirmed {
		return nil, nil, errors.Wrapf(session.ErrInvalidTransition,
			"commit requires a confirmed session, current stage is %q", current.Stage())
	}

	der, err := s.deriveFromStored(ctx, current)
	if err != nil {
		_, ferr := s.fail(ctx, current, err)
		return nil, nil, ferr
	}
	if der.summary.Fatal || der.blocked() {
		demoted, derr := current.WithStage(session.StageDefaultsChosen)
		if derr != nil {
			return nil, nil, derr
		}
		updated, uerr := s.sessions.Update(ctx, demoted)
		if uerr != nil {
			return nil, nil, uerr
		}
		return updated, nil, errors.Wrapf(ErrNotCommittable,
			"%d errors and %d unfilled required fields", der.summary.TotalErrorCount(), len(der.gaps))
	}

	result, err := s.committer.Commit(ctx, current, der.rows)
	if err != nil {
		_, ferr := s.fail(ctx, current, err)
		return nil, nil, ferr
	}

	next, err := current.WithStage(session.StageInserted)
	if err != nil {
		return nil, nil, err
	}
	updated, err := s.sessions.Update(ctx, next)
	if err != nil {
		return nil, nil, err
	}
	s.publisher.Publish(CommittedTopic, updated)
	return updated, result, nil
}

// Resume returns the owner's live run with its current view, so a
// client can pick up the wizard where it stopped.
func (s *WizardService) Resume(ctx context.Context, ownerKey string) (*StepResult, error) {
	current, err := s.sessions.GetActiveByOwner(ctx, ownerKey)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, current)
}

func (s *WizardService) Get(ctx context.Context, id uuid.UUID) (*StepResult, error) {
	current, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, current)
}

func (s *WizardService) Count(ctx context.Context) (int64, error) {
	return s.sessions.Count(ctx)
}

func (s *WizardService) view(ctx context.Context, sess *session.Session) (*StepResult, error) {
	if !sess.HasFile() {
		return &StepResult{Session: sess}, nil
	}
	der, err := s.deriveFromStored(ctx, sess)
	if err != nil {
		return nil, err
	}
	return der.result(sess), nil
}

// fail parks the session in Failed with the cause recorded, keeping the
// run retryable. The cause is returned so callers propagate it.
func (s *WizardService) fail(ctx context.Context, sess *session.Session, cause error) (*StepResult, error) {
	failed, err := s.sessions.Update(ctx, sess.WithFailure(cause.Error()))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to record failure %q", cause.Error())
	}
	s.publisher.Publish("upload.failed", failed)
	return nil, cause
}

// derivation is one full replay of a file: parse, header and row
// validation, defaults merge and catalog resolution.
type derivation struct {
	table   *validation.Table
	rows    []validation.Row
	summary *validation.Summary
	gaps    []merge.Gap
	plan    *CommitPlan
}

func (d *derivation) blocked() bool {
	return d.summary.HasErrors() || len(d.gaps) > 0
}

func (d *derivation) result(sess *session.Session) *StepResult {
	return &StepResult{Session: sess, Summary: d.summary, Rows: d.rows, Gaps: d.gaps, Plan: d.plan}
}

func (s *WizardService) deriveFromStored(ctx context.Context, sess *session.Session) (*derivation, error) {
	file := sess.File()
	if file == nil {
		return nil, session.ErrNoFile
	}
	content, err := s.files.Read(ctx, file.Path)
	if err != nil {
		return nil, err
	}
	return s.derive(ctx, sess, content)
}

func (s *WizardService) derive(ctx context.Context, sess *session.Session, content []byte) (*derivation, error) {
	summary := validation.NewSummary()
	table := validation.Parse(content, summary)
	if table == nil {
		return &derivation{summary: summary}, nil
	}

	schema, err := validation.SchemaFor(sess.Dataset(), s.dict, s.policy, s.formats...)
	if err != nil {
		return nil, err
	}
	validation.ValidateHeaders(schema, table.Headers, summary)
	if summary.Fatal {
		return &derivation{table: table, summary: summary}, nil
	}
	if len(table.Rows) == 0 {
		summary.Add(validation.KindIO, validation.LevelError, validation.Issue{Message: "file has no data rows"})
		summary.Fatal = true
		return &derivation{table: table, summary: summary}, nil
	}

	rows, err := validation.ValidateRows(ctx, schema, table, s.lookup, summary)
	if err != nil {
		return nil, err
	}
	merged, gaps := merge.Apply(rows, sess.Defaults())

	// Defaults may have filled or replaced reference cells, so the
	// resolution findings are rebuilt from the merged rows.
	second := validation.NewSummary()
	if err := validation.ResolveRefs(ctx, schema, merged, s.lookup, second); err != nil {
		return nil, err
	}
	summary.ReplaceResolutionIssues(second)

	plan := buildPlan(sess, merged, summary)
	return &derivation{table: table, rows: merged, summary: summary, gaps: gaps, plan: plan}, nil
}

// checkMime rejects anything that is not a plain-text upload before CSV
// parsing sees it. Empty files fall through to the parser, which reports
// them precisely.
func checkMime(content []byte, summary *validation.Summary) (string, bool) {
	if len(content) == 0 {
		return "", true
	}
	detected := mimetype.Detect(content)
	for m := detected; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return detected.String(), true
		}
	}
	summary.Add(validation.KindIO, validation.LevelError, validation.Issue{
		Message: fmt.Sprintf("unsupported file type %s, expected a CSV text file", detected),
	})
	summary.Fatal = true
	return "", false
}

func normalizeDefaults(d session.Defaults) session.Defaults {
	if d.AccessLevel == 0 {
		d.AccessLevel = session.DefaultAccessLevel
	}
	if d.Rounding < 0 {
		d.Rounding = session.DefaultRounding
	}
	return d
}

// citationIDs collects the distinct resolved citation identities in row
// order.
func citationIDs(rows []validation.Row) []int64 {
	seen := map[int64]struct{}{}
	ids := make([]int64, 0)
	for _, row := range rows {
		cell, ok := row.Cell(validation.CitationColumn)
		if !ok || !cell.Resolved() {
			continue
		}
		id := cell.Ref.Match.ID
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// conflictsWithLinked reports whether a newly uploaded file cites
// differently than the citations already linked to the session.
func conflictsWithLinked(linked []int64, rows []validation.Row) bool {
	if len(linked) == 0 {
		return false
	}
	current := map[int64]struct{}{}
	for _, id := range citationIDs(rows) {
		current[id] = struct{}{}
	}
	for _, id := range linked {
		if _, ok := current[id]; !ok {
			return true
		}
	}
	return false
}
