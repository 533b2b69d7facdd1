package duckdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/inodb/vibe-freq/internal/model"
	"github.com/inodb/vibe-freq/internal/store"
)

const clusterColumns = `id, chrom, end_chrom, sv_type, pos_sum, end_sum, observations,
	pos_left, pos_right, end_left, end_right, length, families`

// MatchClusters returns clusters of key whose start interval contains pos and
// whose end interval contains end, ordered by pos_left.
func (s *Store) MatchClusters(ctx context.Context, key store.ClusterKey, pos, end int64) ([]model.Cluster, error) {
	return s.queryClusters(ctx, `SELECT `+clusterColumns+` FROM clusters
		WHERE chrom = ? AND end_chrom = ? AND sv_type = ?
		AND pos_left <= ? AND pos_right >= ?
		AND end_left <= ? AND end_right >= ?
		ORDER BY pos_left, id`,
		key.Chrom, key.EndChrom, key.SVType, pos, pos, end, end)
}

// ObservationCluster returns the cluster of key holding an identity row that
// matches the case, variant id and coordinates of ident, or nil.
func (s *Store) ObservationCluster(ctx context.Context, key store.ClusterKey, ident model.Identity) (*model.Cluster, error) {
	clusters, err := s.queryClusters(ctx, `SELECT `+clusterColumns+` FROM clusters
		WHERE chrom = ? AND end_chrom = ? AND sv_type = ?
		AND id IN (SELECT cluster_id FROM identities
			WHERE case_id = ? AND variant_id = ? AND pos = ? AND end_ = ?)
		ORDER BY pos_left, id`,
		key.Chrom, key.EndChrom, key.SVType, ident.CaseID, ident.VariantID, ident.Pos, ident.End)
	if err != nil || len(clusters) == 0 {
		return nil, err
	}
	return &clusters[0], nil
}

// ClustersInRange returns clusters of key whose start interval overlaps [start, end].
func (s *Store) ClustersInRange(ctx context.Context, key store.ClusterKey, start, end int64) ([]model.Cluster, error) {
	return s.queryClusters(ctx, `SELECT `+clusterColumns+` FROM clusters
		WHERE chrom = ? AND end_chrom = ? AND sv_type = ?
		AND pos_left <= ? AND pos_right >= ?
		ORDER BY pos_left, id`,
		key.Chrom, key.EndChrom, key.SVType, end, start)
}

// GetCluster returns the cluster with the given id, or nil if absent.
func (s *Store) GetCluster(ctx context.Context, id string) (*model.Cluster, error) {
	clusters, err := s.queryClusters(ctx, `SELECT `+clusterColumns+` FROM clusters WHERE id = ?`, id)
	if err != nil || len(clusters) == 0 {
		return nil, err
	}
	return &clusters[0], nil
}

// SaveObservation inserts (created) or updates the cluster and records ident.
func (s *Store) SaveObservation(ctx context.Context, c *model.Cluster, created bool, ident model.Identity) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if created {
			_, err = tx.ExecContext(ctx, `INSERT INTO clusters (`+clusterColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				c.ID, c.Chrom, c.EndChrom, c.SVType, c.PosSum, c.EndSum, int64(c.Observations),
				c.PosLeft, c.PosRight, c.EndLeft, c.EndRight, c.Length, encodeList(c.Families))
		} else {
			err = updateCluster(ctx, tx, c)
		}
		if err != nil {
			return fmt.Errorf("write cluster %s: %w", c.ID, err)
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO identities (cluster_id, variant_id, case_id, pos, end_)
			VALUES (?, ?, ?, ?, ?)`,
			ident.ClusterID, ident.VariantID, ident.CaseID, ident.Pos, ident.End); err != nil {
			return fmt.Errorf("write identity: %w", err)
		}
		return nil
	})
}

// RemoveObservation persists c after a case was removed from it. A cluster
// without observations is deleted together with all its identities.
func (s *Store) RemoveObservation(ctx context.Context, c *model.Cluster, caseID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if c.Observations == 0 {
			if _, err := tx.ExecContext(ctx, `DELETE FROM identities WHERE cluster_id = ?`, c.ID); err != nil {
				return fmt.Errorf("delete identities: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM clusters WHERE id = ?`, c.ID); err != nil {
				return fmt.Errorf("delete cluster %s: %w", c.ID, err)
			}
			return nil
		}

		if err := updateCluster(ctx, tx, c); err != nil {
			return fmt.Errorf("write cluster %s: %w", c.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM identities WHERE cluster_id = ? AND case_id = ?`, c.ID, caseID); err != nil {
			return fmt.Errorf("delete identity: %w", err)
		}
		return nil
	})
}

func updateCluster(ctx context.Context, tx *sql.Tx, c *model.Cluster) error {
	_, err := tx.ExecContext(ctx, `UPDATE clusters SET
		pos_sum = ?, end_sum = ?, observations = ?,
		pos_left = ?, pos_right = ?, end_left = ?, end_right = ?,
		length = ?, families = ?
		WHERE id = ?`,
		c.PosSum, c.EndSum, int64(c.Observations),
		c.PosLeft, c.PosRight, c.EndLeft, c.EndRight,
		c.Length, encodeList(c.Families), c.ID)
	return err
}

// HasIdentity reports whether caseID has an identity row in the cluster.
func (s *Store) HasIdentity(ctx context.Context, clusterID, caseID string) (bool, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM identities WHERE cluster_id = ? AND case_id = ?`,
		clusterID, caseID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query identity: %w", err)
	}
	return n > 0, nil
}

// IdentitiesByVariantID returns identity rows carrying the raw VCF ID.
func (s *Store) IdentitiesByVariantID(ctx context.Context, variantID string) ([]model.Identity, error) {
	return s.queryIdentities(ctx, `SELECT cluster_id, variant_id, case_id, pos, end_ FROM identities
		WHERE variant_id = ? ORDER BY case_id, cluster_id`, variantID)
}

// ClusterIdentities returns identity rows of a cluster.
func (s *Store) ClusterIdentities(ctx context.Context, clusterID string) ([]model.Identity, error) {
	return s.queryIdentities(ctx, `SELECT cluster_id, variant_id, case_id, pos, end_ FROM identities
		WHERE cluster_id = ? ORDER BY case_id`, clusterID)
}

// ClusterChromosomes returns the distinct start chromosomes holding clusters.
func (s *Store) ClusterChromosomes(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, `SELECT DISTINCT chrom FROM clusters`)
}

// ForEachCluster calls fn for every cluster starting on chrom, ordered by pos_left.
func (s *Store) ForEachCluster(ctx context.Context, chrom string, fn func(model.Cluster) error) error {
	clusters, err := s.queryClusters(ctx, `SELECT `+clusterColumns+` FROM clusters
		WHERE chrom = ? ORDER BY pos_left, id`, chrom)
	if err != nil {
		return err
	}
	for _, c := range clusters {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) queryClusters(ctx context.Context, query string, args ...any) ([]model.Cluster, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query clusters: %w", err)
	}
	defer rows.Close()

	var clusters []model.Cluster
	for rows.Next() {
		var c model.Cluster
		var families string
		if err := rows.Scan(&c.ID, &c.Chrom, &c.EndChrom, &c.SVType, &c.PosSum, &c.EndSum, &c.Observations,
			&c.PosLeft, &c.PosRight, &c.EndLeft, &c.EndRight, &c.Length, &families); err != nil {
			return nil, fmt.Errorf("scan cluster: %w", err)
		}
		c.Families = decodeList(families)
		clusters = append(clusters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clusters: %w", err)
	}
	return clusters, nil
}

func (s *Store) queryIdentities(ctx context.Context, query string, args ...any) ([]model.Identity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	var result []model.Identity
	for rows.Next() {
		var id model.Identity
		if err := rows.Scan(&id.ClusterID, &id.VariantID, &id.CaseID, &id.Pos, &id.End); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		result = append(result, id)
	}
	return result, rows.Err()
}
