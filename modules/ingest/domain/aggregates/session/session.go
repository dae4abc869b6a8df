package session

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/agrovault/trialbase/modules/ingest/domain/validation"
)

var (
	ErrNotFound          = errors.New("upload session not found")
	ErrNoActiveSession   = errors.New("no active upload session")
	ErrAlreadyExists     = errors.New("an active upload session already exists")
	ErrInvalidTransition = errors.New("invalid stage transition")
	ErrNoFile            = errors.New("upload session has no stored file")
)

// Stage is the persisted wizard position. Progression is strictly
// forward; any stage may fall back to an earlier one (a re-upload or a
// change of defaults restarts the downstream work), and Failed keeps
// the session alive so the run can be retried. Only Inserted is final.
type Stage string

const (
	StageStart          Stage = "start"
	StageFileValidated  Stage = "file_validated"
	StageDefaultsChosen Stage = "defaults_chosen"
	StageConfirmed      Stage = "confirmed"
	StageInserted       Stage = "inserted"
	StageFailed         Stage = "failed"
)

var stageTransitions = map[Stage][]Stage{
	StageStart:          {StageStart, StageFileValidated, StageFailed},
	StageFileValidated:  {StageStart, StageFileValidated, StageDefaultsChosen, StageFailed},
	StageDefaultsChosen: {StageStart, StageFileValidated, StageDefaultsChosen, StageConfirmed, StageFailed},
	StageConfirmed:      {StageStart, StageFileValidated, StageDefaultsChosen, StageConfirmed, StageInserted, StageFailed},
	StageInserted:       {StageStart, StageFailed},
	StageFailed:         {StageStart, StageFileValidated, StageDefaultsChosen, StageConfirmed, StageFailed},
}

func (s Stage) IsValid() bool {
	_, ok := stageTransitions[s]
	return ok
}

// Terminal reports whether the session finished for good. Failed is not
// terminal: the session survives for retry.
func (s Stage) Terminal() bool {
	return s == StageInserted
}

func (s Stage) CanTransitionTo(to Stage) bool {
	for _, allowed := range stageTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// File is the metadata of the uploaded file currently attached to a
// session. The content itself lives on disk under Path.
type File struct {
	Filename string
	Path     string
	SHA256   string
	Size     int64
	Mime     string
	RowCount int
	Headers  []string
}

type Repository interface {
	Count(ctx context.Context) (int64, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)
	// GetActiveByOwner returns the owner's single non-terminal session,
	// or ErrNoActiveSession.
	GetActiveByOwner(ctx context.Context, ownerKey string) (*Session, error)
	Create(ctx context.Context, data *Session) (*Session, error)
	Update(ctx context.Context, data *Session) (*Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Session is the interim state of one upload wizard run. Mutators
// return fresh copies; callers persist the copy they want to keep.
type Session struct {
	id        uuid.UUID
	ownerKey  string
	dataset   validation.DatasetKind
	stage     Stage
	file      *File
	defaults  Defaults
	citations []int64
	lastError string
	createdAt time.Time
	updatedAt time.Time
}

func New(ownerKey string, dataset validation.DatasetKind) *Session {
	now := time.Now()
	return &Session{
		id:       uuid.New(),
		ownerKey: ownerKey,
		dataset:  dataset,
		stage:    StageStart,
		defaults: Defaults{
			AccessLevel: DefaultAccessLevel,
			Rounding:    DefaultRounding,
		},
		createdAt: now,
		updatedAt: now,
	}
}

func Hydrate(
	id uuid.UUID,
	ownerKey string,
	dataset validation.DatasetKind,
	stage Stage,
	file *File,
	defaults Defaults,
	citations []int64,
	lastError string,
	createdAt, updatedAt time.Time,
) *Session {
	return &Session{
		id:        id,
		ownerKey:  ownerKey,
		dataset:   dataset,
		stage:     stage,
		file:      file,
		defaults:  defaults,
		citations: citations,
		lastError: lastError,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

func (s *Session) OwnerKey() string {
	return s.ownerKey
}

func (s *Session) Dataset() validation.DatasetKind {
	return s.dataset
}

func (s *Session) Stage() Stage {
	return s.stage
}

func (s *Session) File() *File {
	if s.file == nil {
		return nil
	}
	f := *s.file
	f.Headers = append([]string(nil), s.file.Headers...)
	return &f
}

func (s *Session) HasFile() bool {
	return s.file != nil
}

func (s *Session) Defaults() Defaults {
	return s.defaults
}

func (s *Session) Citations() []int64 {
	return append([]int64(nil), s.citations...)
}

func (s *Session) LastError() string {
	return s.lastError
}

func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

func (s *Session) UpdatedAt() time.Time {
	return s.updatedAt
}

// WithStage moves the session along the stage graph. Moving anywhere
// but Failed wipes the recorded failure.
func (s *Session) WithStage(to Stage) (*Session, error) {
	if !s.stage.CanTransitionTo(to) {
		return nil, errors.Wrapf(ErrInvalidTransition, "%s to %s", s.stage, to)
	}
	out := *s
	out.stage = to
	if to != StageFailed {
		out.lastError = ""
	}
	out.updatedAt = time.Now()
	return &out, nil
}

// WithFailure parks the session in Failed and records why. The session
// keeps its file, defaults and citations so the run can be retried.
func (s *Session) WithFailure(reason string) *Session {
	out := *s
	out.stage = StageFailed
	out.lastError = reason
	out.updatedAt = time.Now()
	return &out
}

func (s *Session) WithFile(file File) *Session {
	out := *s
	file.Headers = append([]string(nil), file.Headers...)
	out.file = &file
	out.updatedAt = time.Now()
	return &out
}

// WithDataset re-targets the wizard run. Only meaningful alongside a
// return to Start, where the stored file is dropped anyway.
func (s *Session) WithDataset(dataset validation.DatasetKind) *Session {
	out := *s
	out.dataset = dataset
	out.updatedAt = time.Now()
	return &out
}

func (s *Session) WithDefaults(defaults Defaults) *Session {
	out := *s
	out.defaults = defaults
	out.updatedAt = time.Now()
	return &out
}

func (s *Session) WithCitations(ids []int64) *Session {
	out := *s
	out.citations = append([]int64(nil), ids...)
	out.updatedAt = time.Now()
	return &out
}

// ClearFile drops the file-specific state while keeping cross-run data:
// defaults and linked citations survive into the next upload.
func (s *Session) ClearFile() *Session {
	out := *s
	out.file = nil
	out.lastError = ""
	out.updatedAt = time.Now()
	return &out
}
