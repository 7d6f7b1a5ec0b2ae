package bigquery

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Migrations returns the SQL migrations shipped with the binary.
func Migrations() fs.FS {
	sub, _ := fs.Sub(embeddedMigrations, "migrations")
	return sub
}

// Migration is a single versioned SQL file, e.g. 0001_create_transactions.sql.
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

var migrationFilePattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// ParseMigrationFilename splits a migration filename into version and name.
func ParseMigrationFilename(filename string) (int, string, bool) {
	m := migrationFilePattern.FindStringSubmatch(filename)
	if m == nil {
		return 0, "", false
	}
	version, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return version, m[2], true
}

// ReadMigrations reads every migration in fsys sorted by version, with the
// {{PROJECT_ID}} and {{DATASET_ID}} placeholders replaced. Checksums are taken
// over the file content before replacement so they do not depend on the
// target dataset.
func ReadMigrations(fsys fs.FS, project, dataset string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("ReadMigrations: reading directory: %w", err)
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		version, name, ok := ParseMigrationFilename(e.Name())
		if !ok {
			continue
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("ReadMigrations: %s and %s share version %d", prev, e.Name(), version)
		}
		seen[version] = e.Name()

		content, err := fs.ReadFile(fsys, path.Clean(e.Name()))
		if err != nil {
			return nil, fmt.Errorf("ReadMigrations: reading %s: %w", e.Name(), err)
		}
		sql := strings.ReplaceAll(string(content), "{{PROJECT_ID}}", project)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", dataset)

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     name,
			Filename: e.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Pending returns the migrations not yet applied, in version order. A changed
// checksum on an applied migration is an error.
func Pending(all []Migration, applied []AppliedMigration) ([]Migration, error) {
	byVersion := make(map[int]AppliedMigration, len(applied))
	for _, a := range applied {
		byVersion[a.Version] = a
	}

	var pending []Migration
	for _, m := range all {
		a, ok := byVersion[m.Version]
		if !ok {
			pending = append(pending, m)
			continue
		}
		if a.Checksum != "" && a.Checksum != m.Checksum {
			return nil, fmt.Errorf("Pending: migration %04d_%s was modified after it was applied", m.Version, m.Name)
		}
	}
	return pending, nil
}

// Migrator applies migrations to one dataset and records them in
// schema_migrations.
type Migrator struct {
	client    *bigquery.Client
	project   string
	dataset   string
	appliedBy string
	log       zerolog.Logger
}

func NewMigrator(client *bigquery.Client, project, dataset, appliedBy string, log zerolog.Logger) *Migrator {
	if dataset == "" {
		dataset = DefaultDataset
	}
	return &Migrator{client: client, project: project, dataset: dataset, appliedBy: appliedBy, log: log}
}

// Run applies the pending migrations from fsys and returns how many ran.
func (m *Migrator) Run(ctx context.Context, fsys fs.FS) (int, error) {
	if err := m.ensureSchemaMigrationsTable(ctx); err != nil {
		return 0, fmt.Errorf("Run: ensuring schema_migrations table: %w", err)
	}

	all, err := ReadMigrations(fsys, m.project, m.dataset)
	if err != nil {
		return 0, fmt.Errorf("Run: %w", err)
	}
	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return 0, fmt.Errorf("Run: %w", err)
	}
	pending, err := Pending(all, applied)
	if err != nil {
		return 0, fmt.Errorf("Run: %w", err)
	}

	m.log.Info().Int("found", len(all)).Int("applied", len(applied)).Int("pending", len(pending)).Msg("Migrations loaded")

	for i, mig := range pending {
		log := m.log.With().Int("version", mig.Version).Str("name", mig.Name).Logger()
		log.Info().Msg("Applying migration")

		if err := m.exec(ctx, mig.SQL, nil); err != nil {
			return i, fmt.Errorf("Run: executing %s: %w", mig.Filename, err)
		}
		if err := m.record(ctx, mig); err != nil {
			return i, fmt.Errorf("Run: recording %s: %w", mig.Filename, err)
		}
		log.Info().Msg("Migration applied")
	}
	return len(pending), nil
}

func (m *Migrator) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", m.project, m.dataset, name)
}

func (m *Migrator) ensureSchemaMigrationsTable(ctx context.Context) error {
	return m.exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, m.table("schema_migrations")), nil)
}

func (m *Migrator) appliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	q := m.client.Query(fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM %s
		ORDER BY version ASC
	`, m.table("schema_migrations")))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64
			Name      string
			AppliedAt time.Time
			Checksum  bigquery.NullString
			AppliedBy bigquery.NullString
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating applied migrations: %w", err)
		}
		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}
	return applied, nil
}

func (m *Migrator) record(ctx context.Context, mig Migration) error {
	return m.exec(ctx, fmt.Sprintf(`
		INSERT INTO %s
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, m.table("schema_migrations")), []bigquery.QueryParameter{
		{Name: "version", Value: mig.Version},
		{Name: "name", Value: mig.Name},
		{Name: "checksum", Value: mig.Checksum},
		{Name: "applied_by", Value: m.appliedBy},
	})
}

func (m *Migrator) exec(ctx context.Context, sql string, params []bigquery.QueryParameter) error {
	q := m.client.Query(sql)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
