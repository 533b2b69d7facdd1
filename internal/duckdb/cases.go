package duckdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/inodb/vibe-freq/internal/model"
)

// AddCase stores a new case and its individuals. An existing case id is a
// *model.CaseError.
func (s *Store) AddCase(ctx context.Context, c model.Case) error {
	existing, err := s.GetCase(ctx, c.CaseID)
	if err != nil {
		return err
	}
	if existing != nil {
		return &model.CaseError{CaseID: c.CaseID, Message: "case already exists"}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO cases (case_id, vcf_path, vcf_sv_path, nr_variants, nr_sv_variants)
			VALUES (?, ?, ?, ?, ?)`,
			c.CaseID, c.VCFPath, c.VCFSVPath, c.NrVariants, c.NrSVVariants); err != nil {
			return fmt.Errorf("insert case: %w", err)
		}
		for _, ind := range c.Individuals {
			if _, err := tx.ExecContext(ctx, `INSERT INTO individuals (case_id, ind_id, sex, ind_index, profile)
				VALUES (?, ?, ?, ?, ?)`,
				c.CaseID, ind.IndID, int(ind.Sex), ind.IndIndex, encodeList(ind.Profile)); err != nil {
				return fmt.Errorf("insert individual %s: %w", ind.IndID, err)
			}
		}
		return nil
	})
}

// UpdateCase rewrites the file paths and counts of an existing case.
// Individuals are left unchanged.
func (s *Store) UpdateCase(ctx context.Context, c model.Case) error {
	res, err := s.db.ExecContext(ctx, `UPDATE cases SET vcf_path = ?, vcf_sv_path = ?, nr_variants = ?, nr_sv_variants = ?
		WHERE case_id = ?`,
		c.VCFPath, c.VCFSVPath, c.NrVariants, c.NrSVVariants, c.CaseID)
	if err != nil {
		return fmt.Errorf("update case: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &model.CaseError{CaseID: c.CaseID, Message: "case not found"}
	}
	return nil
}

// GetCase returns the case with its individuals, or nil if absent.
func (s *Store) GetCase(ctx context.Context, caseID string) (*model.Case, error) {
	cases, err := s.queryCases(ctx, `WHERE case_id = ?`, caseID)
	if err != nil || len(cases) == 0 {
		return nil, err
	}
	return &cases[0], nil
}

// DeleteCase removes the case record and its individuals. Variant and
// cluster contributions must be removed by the caller first.
func (s *Store) DeleteCase(ctx context.Context, caseID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM individuals WHERE case_id = ?`, caseID); err != nil {
			return fmt.Errorf("delete individuals: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM cases WHERE case_id = ?`, caseID)
		if err != nil {
			return fmt.Errorf("delete case: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return &model.CaseError{CaseID: caseID, Message: "case not found"}
		}
		return nil
	})
}

// Cases returns all cases ordered by id.
func (s *Store) Cases(ctx context.Context) ([]model.Case, error) {
	return s.queryCases(ctx, "")
}

// CaseCounts returns the number of cases with a small variant file and with
// an SV file.
func (s *Store) CaseCounts(ctx context.Context) (snv, sv int64, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT
		count(*) FILTER (WHERE vcf_path <> ''),
		count(*) FILTER (WHERE vcf_sv_path <> '')
		FROM cases`).Scan(&snv, &sv)
	if err != nil {
		return 0, 0, fmt.Errorf("count cases: %w", err)
	}
	return snv, sv, nil
}

func (s *Store) queryCases(ctx context.Context, where string, args ...any) ([]model.Case, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT case_id, vcf_path, vcf_sv_path, nr_variants, nr_sv_variants
		FROM cases `+where+` ORDER BY case_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}

	var cases []model.Case
	for rows.Next() {
		var c model.Case
		if err := rows.Scan(&c.CaseID, &c.VCFPath, &c.VCFSVPath, &c.NrVariants, &c.NrSVVariants); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan case: %w", err)
		}
		cases = append(cases, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}

	for i := range cases {
		inds, err := s.individuals(ctx, cases[i].CaseID)
		if err != nil {
			return nil, err
		}
		cases[i].Individuals = inds
	}
	return cases, nil
}

func (s *Store) individuals(ctx context.Context, caseID string) ([]model.Individual, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ind_id, sex, ind_index, profile FROM individuals
		WHERE case_id = ? ORDER BY ind_index, ind_id`, caseID)
	if err != nil {
		return nil, fmt.Errorf("query individuals: %w", err)
	}
	defer rows.Close()

	var inds []model.Individual
	for rows.Next() {
		var ind model.Individual
		var sex int
		var profile string
		if err := rows.Scan(&ind.IndID, &sex, &ind.IndIndex, &profile); err != nil {
			return nil, fmt.Errorf("scan individual: %w", err)
		}
		ind.Sex = model.Sex(sex)
		if p := decodeList(profile); p != nil {
			ind.Profile = model.Profile(p)
		}
		inds = append(inds, ind)
	}
	return inds, rows.Err()
}
