package application

import (
	"bytes"
	"context"
	"embed"
	"io"
	"io/fs"
	"path"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

// MigrationManager applies the schema files registered by modules.
// Each module embeds its schema under infrastructure/persistence/schema
// and registers the filesystem during module registration. File names
// carry a numeric version prefix so ordering is stable across modules.
type MigrationManager interface {
	RegisterSchema(fsys *embed.FS)
	Run() error
	Rollback() error
}

func NewMigrationManager(pool *pgxpool.Pool, logger *logrus.Logger) MigrationManager {
	return &migrationManager{pool: pool, logger: logger}
}

type migrationManager struct {
	pool    *pgxpool.Pool
	logger  *logrus.Logger
	schemas []*embed.FS
}

func (m *migrationManager) RegisterSchema(fsys *embed.FS) {
	m.schemas = append(m.schemas, fsys)
}

func (m *migrationManager) Run() error {
	return m.withProvider(func(ctx context.Context, p *goose.Provider) error {
		results, err := p.Up(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to apply migrations")
		}
		for _, r := range results {
			m.logger.WithFields(logrus.Fields{
				"migration": r.Source.Path,
				"duration":  r.Duration.String(),
			}).Info("applied migration")
		}
		return nil
	})
}

func (m *migrationManager) Rollback() error {
	return m.withProvider(func(ctx context.Context, p *goose.Provider) error {
		results, err := p.DownTo(ctx, 0)
		if err != nil {
			return errors.Wrap(err, "failed to roll back migrations")
		}
		for _, r := range results {
			m.logger.WithFields(logrus.Fields{
				"migration": r.Source.Path,
				"duration":  r.Duration.String(),
			}).Info("rolled back migration")
		}
		return nil
	})
}

func (m *migrationManager) withProvider(fn func(ctx context.Context, p *goose.Provider) error) error {
	merged, err := mergeSchemaFS(m.schemas)
	if err != nil {
		return err
	}
	if len(merged) == 0 {
		return nil
	}
	db := stdlib.OpenDBFromPool(m.pool)
	defer func() {
		if cerr := db.Close(); cerr != nil {
			m.logger.WithError(cerr).Warn("failed to close migration connection")
		}
	}()
	provider, err := goose.NewProvider(goose.DialectPostgres, db, merged)
	if err != nil {
		return errors.Wrap(err, "failed to create migration provider")
	}
	return fn(context.Background(), provider)
}

// mergeSchemaFS flattens the .sql files of every registered filesystem
// into one virtual directory so a single provider sees all modules.
func mergeSchemaFS(schemas []*embed.FS) (schemaFS, error) {
	merged := schemaFS{}
	for _, fsys := range schemas {
		err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || path.Ext(p) != ".sql" {
				return nil
			}
			name := path.Base(p)
			if _, ok := merged[name]; ok {
				return errors.Errorf("duplicate schema file %q", name)
			}
			data, err := fs.ReadFile(fsys, p)
			if err != nil {
				return errors.Wrapf(err, "failed to read schema file %q", p)
			}
			merged[name] = data
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return merged, nil
}

// schemaFS is a flat read-only fs.FS keyed by base file name.
type schemaFS map[string][]byte

func (s schemaFS) Open(name string) (fs.File, error) {
	if name == "." {
		return &schemaDir{names: s.sortedNames(), fsys: s}, nil
	}
	data, ok := s[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return &schemaFile{info: schemaFileInfo{name: name, size: int64(len(data))}, r: bytes.NewReader(data)}, nil
}

func (s schemaFS) ReadDir(name string) ([]fs.DirEntry, error) {
	if name != "." {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}
	entries := make([]fs.DirEntry, 0, len(s))
	for _, n := range s.sortedNames() {
		entries = append(entries, schemaFileInfo{name: n, size: int64(len(s[n]))})
	}
	return entries, nil
}

func (s schemaFS) ReadFile(name string) ([]byte, error) {
	data, ok := s[name]
	if !ok {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

func (s schemaFS) sortedNames() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type schemaFile struct {
	info schemaFileInfo
	r    *bytes.Reader
}

func (f *schemaFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *schemaFile) Read(p []byte) (int, error) { return f.r.Read(p) }
func (f *schemaFile) Close() error               { return nil }

type schemaDir struct {
	names []string
	fsys  schemaFS
	pos   int
}

func (d *schemaDir) Stat() (fs.FileInfo, error) {
	return schemaFileInfo{name: ".", dir: true}, nil
}

func (d *schemaDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: ".", Err: errors.New("is a directory")}
}

func (d *schemaDir) Close() error { return nil }

func (d *schemaDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if d.pos >= len(d.names) {
		if n <= 0 {
			return nil, nil
		}
		return nil, io.EOF
	}
	end := len(d.names)
	if n > 0 && d.pos+n < end {
		end = d.pos + n
	}
	entries := make([]fs.DirEntry, 0, end-d.pos)
	for _, name := range d.names[d.pos:end] {
		entries = append(entries, schemaFileInfo{name: name, size: int64(len(d.fsys[name]))})
	}
	d.pos = end
	return entries, nil
}

type schemaFileInfo struct {
	name string
	size int64
	dir  bool
}

func (i schemaFileInfo) Name() string { return i.name }
func (i schemaFileInfo) Size() int64  { return i.size }
func (i schemaFileInfo) Mode() fs.FileMode {
	if i.dir {
		return fs.ModeDir | 0o555
	}
	return 0o444
}
func (i schemaFileInfo) ModTime() time.Time         { return time.Time{} }
func (i schemaFileInfo) IsDir() bool                { return i.dir }
func (i schemaFileInfo) Sys() any                   { return nil }
func (i schemaFileInfo) Type() fs.FileMode          { return i.Mode().Type() }
func (i schemaFileInfo) Info() (fs.FileInfo, error) { return i, nil }

var (
	_ fs.ReadDirFS  = schemaFS{}
	_ fs.ReadFileFS = schemaFS{}
	_ fs.DirEntry   = schemaFileInfo{}
	_ fs.FileInfo   = schemaFileInfo{}
)
