package profile

import (
	"context"

	"github.com/montanaflynn/stats"

	"github.com/inodb/vibe-freq/internal/model"
)

// Similarity returns the fraction of positions where a and b carry the same
// genotype. Profiles of different or zero length have similarity 0.
func Similarity(a, b model.Profile) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	same := 0
	for i := range a {
		if a[i] == b[i] {
			same++
		}
	}
	return float64(same) / float64(len(a))
}

// Summary describes the pairwise similarity of all stored profiles.
type Summary struct {
	Profiles       int
	Pairs          int
	Mean           float64
	StdDev         float64
	Max            float64
	AboveThreshold int
}

// Stats computes the pairwise similarity distribution of stored profiles.
func (m *Matcher) Stats(ctx context.Context, threshold float64) (Summary, error) {
	cases, err := m.store.Cases(ctx)
	if err != nil {
		return Summary{}, err
	}
	var profiles []model.Profile
	for _, c := range cases {
		for _, ind := range c.Individuals {
			if len(ind.Profile) > 0 {
				profiles = append(profiles, ind.Profile)
			}
		}
	}
	return summarize(profiles, threshold)
}

func summarize(profiles []model.Profile, threshold float64) (Summary, error) {
	s := Summary{Profiles: len(profiles)}

	var sims stats.Float64Data
	for i := 0; i < len(profiles); i++ {
		for j := i + 1; j < len(profiles); j++ {
			sim := Similarity(profiles[i], profiles[j])
			if sim >= threshold {
				s.AboveThreshold++
			}
			sims = append(sims, sim)
		}
	}
	s.Pairs = sims.Len()
	if s.Pairs == 0 {
		return s, nil
	}

	var err error
	if s.Mean, err = sims.Mean(); err != nil {
		return s, err
	}
	if s.StdDev, err = sims.StandardDeviation(); err != nil {
		return s, err
	}
	if s.Max, err = sims.Max(); err != nil {
		return s, err
	}
	return s, nil
}
