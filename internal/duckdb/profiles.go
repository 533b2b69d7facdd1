package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sort"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-freq/internal/genome"
	"github.com/inodb/vibe-freq/internal/model"
)

// SetProfile stores the genotype profile of one individual.
func (s *Store) SetProfile(ctx context.Context, caseID, indID string, p model.Profile) error {
	_, err := s.db.ExecContext(ctx, `UPDATE individuals SET profile = ? WHERE case_id = ? AND ind_id = ?`,
		encodeList(p), caseID, indID)
	if err != nil {
		return fmt.Errorf("set profile: %w", err)
	}
	return nil
}

// ReplaceProfileVariants replaces the profile panel with pvs. On error the
// previous panel is kept.
func (s *Store) ReplaceProfileVariants(ctx context.Context, pvs []model.ProfileVariant) error {
	return s.replaceRows(ctx, "profile_variants", len(pvs), func(i int) []driver.Value {
		pv := pvs[i]
		return []driver.Value{pv.ID, pv.Chrom, pv.Pos, pv.Ref, pv.Alt, pv.MAF}
	})
}

// replaceRows appends n rows into a staging copy of table, then swaps its
// contents into table in one transaction.
func (s *Store) replaceRows(ctx context.Context, table string, n int, row func(i int) []driver.Value) error {
	staging := table + "_staging"
	if _, err := s.db.ExecContext(ctx, `CREATE OR REPLACE TABLE `+staging+` AS SELECT * FROM `+table+` LIMIT 0`); err != nil {
		return fmt.Errorf("create %s: %w", staging, err)
	}
	defer s.db.ExecContext(context.WithoutCancel(ctx), `DROP TABLE IF EXISTS `+staging)

	if err := s.appendRows(ctx, staging, n, row); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO `+table+` SELECT * FROM `+staging); err != nil {
			return fmt.Errorf("fill %s: %w", table, err)
		}
		return nil
	})
}

// ProfileVariants returns the profile panel in chromosome table order, then position.
func (s *Store) ProfileVariants(ctx context.Context) ([]model.ProfileVariant, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, chrom, pos, ref, alt, maf FROM profile_variants`)
	if err != nil {
		return nil, fmt.Errorf("query profile variants: %w", err)
	}
	defer rows.Close()

	var pvs []model.ProfileVariant
	for rows.Next() {
		var pv model.ProfileVariant
		if err := rows.Scan(&pv.ID, &pv.Chrom, &pv.Pos, &pv.Ref, &pv.Alt, &pv.MAF); err != nil {
			return nil, fmt.Errorf("scan profile variant: %w", err)
		}
		pvs = append(pvs, pv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortProfileVariants(pvs)
	return pvs, nil
}

// sortProfileVariants orders the panel by canonical chromosome order, then
// position. Unknown contigs sort after known ones.
func sortProfileVariants(pvs []model.ProfileVariant) {
	sort.SliceStable(pvs, func(i, j int) bool {
		if pvs[i].Chrom != pvs[j].Chrom {
			return genome.ChromLess(pvs[i].Chrom, pvs[j].Chrom)
		}
		return pvs[i].Pos < pvs[j].Pos
	})
}

// appendRows batch-inserts n rows into table using the Appender API.
func (s *Store) appendRows(ctx context.Context, table string, n int, row func(i int) []driver.Value) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", table)
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for i := range n {
		if err := appender.AppendRow(row(i)...); err != nil {
			return fmt.Errorf("append %s row: %w", table, err)
		}
	}

	return appender.Flush()
}
