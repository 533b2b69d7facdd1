// Package profile fingerprints samples over a fixed panel of common SNVs and
// compares fingerprints to detect resubmitted samples.
package profile

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/inodb/vibe-freq/internal/genome"
	"github.com/inodb/vibe-freq/internal/model"
	"github.com/inodb/vibe-freq/internal/store"
	"github.com/inodb/vibe-freq/internal/vcf"
)

// DefaultMinMAF is the minor allele frequency a panel site needs by default.
const DefaultMinMAF = 0.05

// Store is what the matcher reads and writes.
type Store interface {
	store.ProfileStore
	Cases(ctx context.Context) ([]model.Case, error)
}

// Matcher loads the panel, builds profiles and searches stored profiles.
type Matcher struct {
	store  Store
	logger *zap.Logger
}

// NewMatcher creates a matcher over s.
func NewMatcher(s Store) *Matcher {
	return &Matcher{store: s, logger: zap.NewNop()}
}

// SetLogger sets the logger for progress messages.
func (m *Matcher) SetLogger(l *zap.Logger) {
	m.logger = l
}

// LoadPanel replaces the stored panel with the biallelic SNVs of p whose
// minor allele frequency, taken from INFO AF, is at least minMAF.
func (m *Matcher) LoadPanel(ctx context.Context, p vcf.VariantParser, minMAF float64) (int, error) {
	var pvs []model.ProfileVariant
	for {
		v, err := p.Next()
		if err != nil {
			return 0, fmt.Errorf("read panel: %w", err)
		}
		if v == nil {
			break
		}
		if !v.IsSNV() {
			continue
		}
		af, ok := v.InfoFloat("AF")
		if !ok {
			continue
		}
		maf := min(af, 1-af)
		if maf < minMAF {
			continue
		}
		chrom := genome.StripChr(v.Chrom)
		pvs = append(pvs, model.ProfileVariant{
			ID:    model.FormatVariantID(chrom, v.Pos, v.Ref, v.Alt),
			Chrom: chrom,
			Pos:   v.Pos,
			Ref:   v.Ref,
			Alt:   v.Alt,
			MAF:   maf,
		})
	}

	if err := m.store.ReplaceProfileVariants(ctx, pvs); err != nil {
		return 0, err
	}
	m.logger.Info("profile panel loaded", zap.Int("sites", len(pvs)), zap.Float64("min_maf", minMAF))
	return len(pvs), nil
}

// Panel returns the stored panel.
func (m *Matcher) Panel(ctx context.Context) (*Panel, error) {
	pvs, err := m.store.ProfileVariants(ctx)
	if err != nil {
		return nil, err
	}
	return NewPanel(pvs), nil
}

// Match is a stored profile similar to a candidate.
type Match struct {
	CaseID     string
	IndID      string
	Candidate  string // candidate individual
	Similarity float64
}

// CheckDuplicates scans stored profiles in case order and returns the first
// one whose similarity to any candidate is at least threshold, or nil.
func (m *Matcher) CheckDuplicates(ctx context.Context, candidates map[string]model.Profile, threshold float64) (*Match, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(candidates))
	for name := range candidates {
		names = append(names, name)
	}
	sort.Strings(names)

	cases, err := m.store.Cases(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range cases {
		for _, ind := range c.Individuals {
			if len(ind.Profile) == 0 {
				continue
			}
			for _, name := range names {
				sim := Similarity(ind.Profile, candidates[name])
				if sim >= threshold {
					return &Match{CaseID: c.CaseID, IndID: ind.IndID, Candidate: name, Similarity: sim}, nil
				}
			}
		}
	}
	return nil, nil
}

// UpdateProfiles rebuilds and stores the profiles of every case that has a
// small variant VCF. It returns the number of cases updated.
func (m *Matcher) UpdateProfiles(ctx context.Context) (int, error) {
	panel, err := m.Panel(ctx)
	if err != nil {
		return 0, err
	}
	cases, err := m.store.Cases(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, c := range cases {
		if !c.HasSNV() {
			continue
		}
		profiles, err := panel.BuildFile(c.VCFPath, c.Individuals)
		if err != nil {
			return updated, fmt.Errorf("profile case %s: %w", c.CaseID, err)
		}
		for _, ind := range c.Individuals {
			if err := m.store.SetProfile(ctx, c.CaseID, ind.IndID, profiles[ind.IndID]); err != nil {
				return updated, err
			}
		}
		updated++
		m.logger.Debug("profiles updated", zap.String("case", c.CaseID), zap.Int("individuals", len(c.Individuals)))
	}
	return updated, nil
}
