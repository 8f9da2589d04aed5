package main

import (
	"context"
	"crypto/sha256"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/budget-bot/internal/config"
	"github.com/dvloznov/budget-bot/internal/logger"
	"github.com/dvloznov/budget-bot/migrations"
)

// Migration is one numbered SQL file with placeholders already substituted.
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

var migrationFile = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

type migrator struct {
	client    *bigquery.Client
	project   string
	dataset   string
	appliedBy string
	dryRun    bool
	log       zerolog.Logger
}

func main() {
	getenv := os.Getenv
	fset := flag.NewFlagSet("migrate", flag.ExitOnError)
	project := fset.String("project", getenv("GCP_PROJECT"), "GCP project ID (or set GCP_PROJECT env)")
	dataset := fset.String("dataset", envOr(getenv, "BQ_DATASET", config.DefaultDataset), "BigQuery dataset ID (or set BQ_DATASET env)")
	appliedBy := fset.String("applied-by", "migrate-cli", "Name recorded in schema_migrations.applied_by")
	dir := fset.String("migrations", "", "Read migrations from this directory instead of the embedded set")
	dryRun := fset.Bool("dry-run", false, "List pending migrations without running them")
	level := fset.String("log-level", envOr(getenv, "LOG_LEVEL", "info"), "Log level")
	_ = fset.Parse(os.Args[1:])

	log := logger.New(*level).With().Str("component", "migrate").Logger()

	if *project == "" {
		log.Fatal().Msg("-project flag or GCP_PROJECT is required")
	}

	var source fs.FS = migrations.BigQuery
	root := "bigquery"
	if *dir != "" {
		source = os.DirFS(*dir)
		root = "."
	}
	sub, err := fs.Sub(source, root)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open migrations")
	}

	pending, err := parseMigrations(sub, *project, *dataset, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read migrations")
	}
	log.Info().Int("count", len(pending)).Msg("found migration files")

	ctx := context.Background()
	client, err := bigquery.NewClient(ctx, *project)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create BigQuery client")
	}
	defer client.Close()

	m := &migrator{
		client:    client,
		project:   *project,
		dataset:   *dataset,
		appliedBy: *appliedBy,
		dryRun:    *dryRun,
		log:       log,
	}

	n, err := m.run(ctx, pending)
	if err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	if n == 0 {
		log.Info().Msg("no new migrations to apply")
		return
	}
	log.Info().Int("applied", n).Bool("dry_run", *dryRun).Msg("migrations done")
}

func envOr(getenv func(string) string, key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

// parseMigrations reads NNNN_name.sql files from the root of fsys, sorted by
// version. The checksum covers the file before placeholder substitution.
func parseMigrations(fsys fs.FS, project, dataset string, log zerolog.Logger) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("parseMigrations: reading directory: %w", err)
	}

	seen := make(map[int]string)
	var out []Migration
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		matches := migrationFile.FindStringSubmatch(e.Name())
		if matches == nil {
			log.Warn().Str("file", e.Name()).Msg("skipping file with invalid name")
			continue
		}
		version, _ := strconv.Atoi(matches[1])
		if prev, ok := seen[version]; ok {
			return nil, fmt.Errorf("parseMigrations: version %04d used by %s and %s", version, prev, e.Name())
		}
		seen[version] = e.Name()

		content, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("parseMigrations: reading %s: %w", e.Name(), err)
		}

		sql := strings.ReplaceAll(string(content), "{{PROJECT_ID}}", project)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", dataset)

		out = append(out, Migration{
			Version:  version,
			Name:     matches[2],
			Filename: e.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// pendingMigrations drops applied versions and warns when an applied file
// changed since it ran.
func pendingMigrations(all []Migration, applied []AppliedMigration, log zerolog.Logger) []Migration {
	done := make(map[int]AppliedMigration, len(applied))
	for _, a := range applied {
		done[a.Version] = a
	}

	var pending []Migration
	for _, m := range all {
		a, ok := done[m.Version]
		if !ok {
			pending = append(pending, m)
			continue
		}
		if a.Checksum != "" && a.Checksum != m.Checksum {
			log.Warn().Str("migration", m.Filename).Msg("applied migration was modified since it ran")
		}
	}
	return pending
}

func (m *migrator) table() string {
	return fmt.Sprintf("`%s.%s.schema_migrations`", m.project, m.dataset)
}

func (m *migrator) run(ctx context.Context, all []Migration) (int, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}
	m.log.Info().Int("count", len(applied)).Msg("found applied migrations")

	count := 0
	for _, mig := range pendingMigrations(all, applied, m.log) {
		l := m.log.With().Str("migration", mig.Filename).Logger()
		if m.dryRun {
			l.Info().Msg("pending")
			count++
			continue
		}

		l.Info().Msg("running")
		if err := m.exec(ctx, m.client.Query(mig.SQL)); err != nil {
			return count, fmt.Errorf("run: executing %s: %w", mig.Filename, err)
		}
		if err := m.record(ctx, mig); err != nil {
			return count, fmt.Errorf("run: recording %s: %w", mig.Filename, err)
		}
		l.Info().Msg("applied")
		count++
	}
	return count, nil
}

// applied lists schema_migrations rows. A missing table means nothing ran yet;
// migration 0001 creates it.
func (m *migrator) applied(ctx context.Context) ([]AppliedMigration, error) {
	q := m.client.Query(fmt.Sprintf(
		"SELECT version, name, applied_at, checksum, applied_by FROM %s ORDER BY version", m.table()))
	it, err := q.Read(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "Not found") {
			return nil, nil
		}
		return nil, fmt.Errorf("applied: reading schema_migrations: %w", err)
	}

	var out []AppliedMigration
	for {
		var row struct {
			Version   int64               `bigquery:"version"`
			Name      string              `bigquery:"name"`
			AppliedAt time.Time           `bigquery:"applied_at"`
			Checksum  bigquery.NullString `bigquery:"checksum"`
			AppliedBy bigquery.NullString `bigquery:"applied_by"`
		}
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("applied: iterating rows: %w", err)
		}
		out = append(out, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}
	return out, nil
}

func (m *migrator) record(ctx context.Context, mig Migration) error {
	q := m.client.Query(fmt.Sprintf(`INSERT INTO %s (version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)`, m.table()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: mig.Version},
		{Name: "name", Value: mig.Name},
		{Name: "checksum", Value: mig.Checksum},
		{Name: "applied_by", Value: m.appliedBy},
	}
	return m.exec(ctx, q)
}

func (m *migrator) exec(ctx context.Context, q *bigquery.Query) error {
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
