// Package duckdb is the DuckDB backend of the frequency database. One Store
// implements every capability interface of internal/store.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-freq/internal/store"
)

var (
	_ store.CaseStore    = (*Store)(nil)
	_ store.VariantStore = (*Store)(nil)
	_ store.SVStore      = (*Store)(nil)
	_ store.ProfileStore = (*Store)(nil)
	_ store.Admin        = (*Store)(nil)
)

// Store manages a DuckDB connection holding the frequency database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file, empty for an in-memory database.
func (s *Store) Path() string {
	return s.path
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS variants (
		id VARCHAR PRIMARY KEY,
		chrom VARCHAR NOT NULL,
		pos BIGINT NOT NULL,
		end_ BIGINT NOT NULL,
		ref VARCHAR NOT NULL,
		alt VARCHAR NOT NULL,
		observations BIGINT NOT NULL,
		homozygote BIGINT NOT NULL,
		hemizygote BIGINT NOT NULL,
		families VARCHAR NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS clusters (
		id VARCHAR PRIMARY KEY,
		chrom VARCHAR NOT NULL,
		end_chrom VARCHAR NOT NULL,
		sv_type VARCHAR NOT NULL,
		pos_sum BIGINT NOT NULL,
		end_sum BIGINT NOT NULL,
		observations BIGINT NOT NULL,
		pos_left BIGINT NOT NULL,
		pos_right BIGINT NOT NULL,
		end_left BIGINT NOT NULL,
		end_right BIGINT NOT NULL,
		length BIGINT NOT NULL,
		families VARCHAR NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS identities (
		cluster_id VARCHAR NOT NULL,
		variant_id VARCHAR NOT NULL,
		case_id VARCHAR NOT NULL,
		pos BIGINT NOT NULL,
		end_ BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS cases (
		case_id VARCHAR PRIMARY KEY,
		vcf_path VARCHAR NOT NULL,
		vcf_sv_path VARCHAR NOT NULL,
		nr_variants BIGINT NOT NULL,
		nr_sv_variants BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS individuals (
		case_id VARCHAR NOT NULL,
		ind_id VARCHAR NOT NULL,
		sex INTEGER NOT NULL,
		ind_index INTEGER NOT NULL,
		profile VARCHAR NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS profile_variants (
		id VARCHAR NOT NULL,
		chrom VARCHAR NOT NULL,
		pos BIGINT NOT NULL,
		ref VARCHAR NOT NULL,
		alt VARCHAR NOT NULL,
		maf DOUBLE NOT NULL
	)`,
}

var tables = []string{"variants", "clusters", "identities", "cases", "individuals", "profile_variants"}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_variants_range ON variants (chrom, pos, end_)`,
	`CREATE INDEX IF NOT EXISTS idx_clusters_key ON clusters (chrom, end_chrom, sv_type)`,
	`CREATE INDEX IF NOT EXISTS idx_identities_variant ON identities (variant_id)`,
	`CREATE INDEX IF NOT EXISTS idx_identities_cluster ON identities (cluster_id)`,
	`CREATE INDEX IF NOT EXISTS idx_identities_case ON identities (case_id)`,
}

// ensureSchema creates tables and indexes if they don't exist.
func (s *Store) ensureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return s.EnsureIndexes(ctx)
}

// EnsureIndexes creates the indexes needed by range and identity queries.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	for _, stmt := range indexes {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// Wipe drops every record and recreates the empty schema.
func (s *Store) Wipe(ctx context.Context) error {
	for _, t := range tables {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+t); err != nil {
			return fmt.Errorf("drop %s: %w", t, err)
		}
	}
	return s.ensureSchema(ctx)
}

// withTx runs fn inside a transaction, committing on success.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// encodeList stores family lists and profiles as comma-joined text. Case ids
// with a comma are refused at load time; genotype strings never hold one.
func encodeList(values []string) string {
	return strings.Join(values, ",")
}

func decodeList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
