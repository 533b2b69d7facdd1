package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/inodb/vibe-freq/internal/model"
)

const variantColumns = `id, chrom, pos, end_, ref, alt, observations, homozygote, hemizygote, families`

// AddVariants records one observation per variant for caseID in a single
// transaction. Counters are incremented in place; the family list is
// prepended and truncated to model.MaxFamilies. Callers must not add the same
// (variant, case) twice.
func (s *Store) AddVariants(ctx context.Context, vs []model.Variant, caseID string) error {
	if len(vs) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for i := range vs {
			if err := addVariant(ctx, tx, &vs[i], caseID); err != nil {
				return fmt.Errorf("add variant %s: %w", vs[i].ID, err)
			}
		}
		return nil
	})
}

func addVariant(ctx context.Context, tx *sql.Tx, v *model.Variant, caseID string) error {
	var families string
	err := tx.QueryRowContext(ctx, `SELECT families FROM variants WHERE id = ?`, v.ID).Scan(&families)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = tx.ExecContext(ctx, `INSERT INTO variants (`+variantColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?, ?)`,
			v.ID, v.Chrom, v.Start, v.End, v.Ref, v.Alt,
			int64(v.Homozygote), int64(v.Hemizygote), caseID)
		return err
	}
	if err != nil {
		return err
	}

	updated := model.PrependFamily(decodeList(families), caseID)
	_, err = tx.ExecContext(ctx, `UPDATE variants SET
		observations = observations + 1,
		homozygote = homozygote + ?,
		hemizygote = hemizygote + ?,
		families = ?
		WHERE id = ?`,
		int64(v.Homozygote), int64(v.Hemizygote), encodeList(updated), v.ID)
	return err
}

// RemoveVariants reverses AddVariants for caseID. Homozygote and hemizygote
// counters are decremented by the amounts in each variant, which must be the
// ones contributed by the case. A record reaching zero observations is deleted.
func (s *Store) RemoveVariants(ctx context.Context, vs []model.Variant, caseID string) error {
	if len(vs) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for i := range vs {
			if err := removeVariant(ctx, tx, &vs[i], caseID); err != nil {
				return fmt.Errorf("remove variant %s: %w", vs[i].ID, err)
			}
		}
		return nil
	})
}

func removeVariant(ctx context.Context, tx *sql.Tx, v *model.Variant, caseID string) error {
	var observations int64
	var families string
	err := tx.QueryRowContext(ctx, `SELECT observations, families FROM variants WHERE id = ?`, v.ID).
		Scan(&observations, &families)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	if observations <= 1 {
		_, err = tx.ExecContext(ctx, `DELETE FROM variants WHERE id = ?`, v.ID)
		return err
	}

	updated := model.RemoveFamily(decodeList(families), caseID)
	_, err = tx.ExecContext(ctx, `UPDATE variants SET
		observations = observations - 1,
		homozygote = greatest(homozygote - ?, 0),
		hemizygote = greatest(hemizygote - ?, 0),
		families = ?
		WHERE id = ?`,
		int64(v.Homozygote), int64(v.Hemizygote), encodeList(updated), v.ID)
	return err
}

// GetVariant returns the variant with the given id, or nil if absent.
func (s *Store) GetVariant(ctx context.Context, id string) (*model.Variant, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+variantColumns+` FROM variants WHERE id = ?`, id)
	v, err := scanVariant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get variant: %w", err)
	}
	return &v, nil
}

// VariantsInRange returns variants on chrom whose span [pos, end) overlaps
// the half-open query interval [start, end), ordered by position.
func (s *Store) VariantsInRange(ctx context.Context, chrom string, start, end int64) ([]model.Variant, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+variantColumns+` FROM variants
		WHERE chrom = ? AND pos < ? AND end_ > ?
		ORDER BY pos, id`, chrom, end, start)
	if err != nil {
		return nil, fmt.Errorf("query variant range: %w", err)
	}
	defer rows.Close()

	var result []model.Variant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variants: %w", err)
	}
	return result, nil
}

// VariantChromosomes returns the distinct chromosomes holding variants.
func (s *Store) VariantChromosomes(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, `SELECT DISTINCT chrom FROM variants`)
}

// ForEachVariant calls fn for every variant on chrom in position order.
func (s *Store) ForEachVariant(ctx context.Context, chrom string, fn func(model.Variant) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT `+variantColumns+` FROM variants
		WHERE chrom = ? ORDER BY pos, id`, chrom)
	if err != nil {
		return fmt.Errorf("query variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return fmt.Errorf("scan variant: %w", err)
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return rows.Err()
}

func scanVariant(row rowScanner) (model.Variant, error) {
	var v model.Variant
	var families string
	err := row.Scan(&v.ID, &v.Chrom, &v.Start, &v.End, &v.Ref, &v.Alt,
		&v.Observations, &v.Homozygote, &v.Hemizygote, &families)
	v.Families = decodeList(families)
	return v, err
}

func (s *Store) distinct(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query distinct: %w", err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}
