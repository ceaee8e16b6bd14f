package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"sort"
	"strings"

	pids "github.com/goliatone/go-pids"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	DefaultSourceLabel = "go-pids"

	rootPath = "data/sql/migrations"
)

// Tables lists the tables created by the core schema, parents first.
var Tables = []string{
	"pid_service_backends",
	"pid_data_profiles",
	"pid_identifier_configs",
	"pid_reconcile_cursors",
	"pid_reconcile_results",
}

// Source is one dialect's migration tree. Versions holds the migration
// prefixes (e.g. "00001_pids_core_schema") in apply order.
type Source struct {
	Dialect  string
	Path     string
	FS       fs.FS
	Versions []string
}

type Registration struct {
	SourceLabel string
	Dialects    []string
	Sources     []Source
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

func WithSourceLabel(label string) Option {
	return func(r *Registration) {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			r.SourceLabel = trimmed
		}
	}
}

// WithDialects limits registration to the named dialects. Driver aliases
// such as sqlite3 or postgresql are accepted; unknown names are ignored.
func WithDialects(dialects ...string) Option {
	return func(r *Registration) {
		next := make([]string, 0, len(dialects))
		for _, dialect := range dialects {
			if normalized := NormalizeDialect(dialect); normalized != "" {
				next = append(next, normalized)
			}
		}
		if len(next) > 0 {
			r.Dialects = dedupe(next)
		}
	}
}

func WithSources(sources ...Source) Option {
	return func(r *Registration) {
		next := make([]Source, 0, len(sources))
		for _, source := range sources {
			dialect := NormalizeDialect(source.Dialect)
			if dialect == "" || source.FS == nil {
				continue
			}
			source.Dialect = dialect
			next = append(next, source)
		}
		if len(next) > 0 {
			r.Sources = next
		}
	}
}

// NormalizeDialect maps driver and dialect names to DialectPostgres or
// DialectSQLite. It returns "" for anything else.
func NormalizeDialect(dialect string) string {
	switch strings.TrimSpace(strings.ToLower(dialect)) {
	case DialectPostgres, "pg", "postgresql":
		return DialectPostgres
	case DialectSQLite, "sqlite3":
		return DialectSQLite
	}
	return ""
}

// Sources returns the postgres and sqlite trees of root, which defaults to
// the embedded migrations. Every up migration must have a down pair.
func Sources(root ...fs.FS) ([]Source, error) {
	fsys := pids.GetMigrationsFS()
	if len(root) > 0 && root[0] != nil {
		fsys = root[0]
	}

	base, basePath, err := migrationsRoot(fsys)
	if err != nil {
		return nil, err
	}
	sqliteFS, err := fs.Sub(base, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite tree: %w", err)
	}

	sources := []Source{
		{Dialect: DialectPostgres, Path: basePath, FS: base},
		{Dialect: DialectSQLite, Path: joinPath(basePath, "sqlite"), FS: sqliteFS},
	}
	for i := range sources {
		versions, err := pairedVersions(sources[i].FS)
		if err != nil {
			return nil, fmt.Errorf("migrations: %s tree %q: %w", sources[i].Dialect, sources[i].Path, err)
		}
		sources[i].Versions = versions
	}
	return sources, nil
}

// Register hands each selected dialect tree to registerFn.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel: DefaultSourceLabel,
		Dialects:    []string{DialectPostgres, DialectSQLite},
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}

	sources, err := Sources()
	if err != nil {
		return reg, err
	}
	reg.Sources = sources

	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}

	registered := 0
	for _, source := range reg.Sources {
		if !slices.Contains(reg.Dialects, source.Dialect) {
			continue
		}
		if err := registerFn(ctx, source.Dialect, reg.SourceLabel, source.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s (%s): %w", source.Dialect, source.Path, err)
		}
		registered++
	}
	if registered == 0 {
		return reg, fmt.Errorf("migrations: no source matches dialects %v", reg.Dialects)
	}
	return reg, nil
}

func pairedVersions(fsys fs.FS) ([]string, error) {
	ups, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return nil, err
	}
	if len(ups) == 0 {
		return nil, fmt.Errorf("no *.up.sql files")
	}
	versions := make([]string, 0, len(ups))
	for _, up := range ups {
		version := strings.TrimSuffix(up, ".up.sql")
		if _, err := fs.Stat(fsys, version+".down.sql"); err != nil {
			return nil, fmt.Errorf("%s has no down migration", up)
		}
		versions = append(versions, version)
	}
	sort.Strings(versions)
	return versions, nil
}

func migrationsRoot(fsys fs.FS) (fs.FS, string, error) {
	sub, err := fs.Sub(fsys, rootPath)
	if err == nil {
		if _, statErr := fs.Stat(sub, "."); statErr == nil {
			return sub, rootPath, nil
		}
	}
	if matches, _ := fs.Glob(fsys, "*.sql"); len(matches) > 0 {
		return fsys, ".", nil
	}
	return nil, "", fmt.Errorf("migrations: %s not found", rootPath)
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func joinPath(base string, suffix string) string {
	if base == "." {
		return suffix
	}
	return strings.TrimSuffix(base, "/") + "/" + suffix
}
