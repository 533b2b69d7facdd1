// Package store defines the capability interfaces of the frequency database
// backend. Callers depend on the narrow interface they need; a single backend
// (internal/duckdb) implements all of them.
package store

import (
	"context"

	"github.com/inodb/vibe-freq/internal/model"
)

// CaseStore persists cases and their individuals.
type CaseStore interface {
	AddCase(ctx context.Context, c model.Case) error
	UpdateCase(ctx context.Context, c model.Case) error
	GetCase(ctx context.Context, caseID string) (*model.Case, error)
	DeleteCase(ctx context.Context, caseID string) error
	Cases(ctx context.Context) ([]model.Case, error)
	CaseCounts(ctx context.Context) (snv, sv int64, err error)
}

// VariantStore is the exact-match frequency counter for small variants.
type VariantStore interface {
	AddVariants(ctx context.Context, vs []model.Variant, caseID string) error
	RemoveVariants(ctx context.Context, vs []model.Variant, caseID string) error
	GetVariant(ctx context.Context, id string) (*model.Variant, error)
	VariantsInRange(ctx context.Context, chrom string, start, end int64) ([]model.Variant, error)
	VariantChromosomes(ctx context.Context) ([]string, error)
	ForEachVariant(ctx context.Context, chrom string, fn func(model.Variant) error) error
}

// ClusterKey is the exact part of a structural variant cluster's identity.
type ClusterKey struct {
	Chrom    string
	EndChrom string
	SVType   string
}

// SVStore persists structural variant clusters and their identities.
type SVStore interface {
	// MatchClusters returns clusters of key whose start interval contains pos
	// and end interval contains end, ordered by pos_left.
	MatchClusters(ctx context.Context, key ClusterKey, pos, end int64) ([]model.Cluster, error)
	// ObservationCluster returns the cluster of key holding an identity row with
	// the case, variant id, pos and end of ident, or nil when there is none.
	ObservationCluster(ctx context.Context, key ClusterKey, ident model.Identity) (*model.Cluster, error)
	// SaveObservation writes the updated cluster and its new identity row in one transaction.
	SaveObservation(ctx context.Context, c *model.Cluster, created bool, ident model.Identity) error
	// RemoveObservation writes the updated cluster, or deletes it when it has
	// no observations left, and drops the identity rows of caseID.
	RemoveObservation(ctx context.Context, c *model.Cluster, caseID string) error
	HasIdentity(ctx context.Context, clusterID, caseID string) (bool, error)
	IdentitiesByVariantID(ctx context.Context, variantID string) ([]model.Identity, error)
	ClustersInRange(ctx context.Context, key ClusterKey, start, end int64) ([]model.Cluster, error)
	ClusterChromosomes(ctx context.Context) ([]string, error)
	ForEachCluster(ctx context.Context, chrom string, fn func(model.Cluster) error) error
}

// ProfileStore persists the profile panel and per-individual profiles.
type ProfileStore interface {
	ReplaceProfileVariants(ctx context.Context, pvs []model.ProfileVariant) error
	ProfileVariants(ctx context.Context) ([]model.ProfileVariant, error)
	SetProfile(ctx context.Context, caseID, indID string, p model.Profile) error
}

// Admin covers maintenance of the whole database.
type Admin interface {
	Wipe(ctx context.Context) error
	EnsureIndexes(ctx context.Context) error
}
