package profile

import (
	"sort"

	"github.com/inodb/vibe-freq/internal/genome"
	"github.com/inodb/vibe-freq/internal/model"
	"github.com/inodb/vibe-freq/internal/vcf"
)

// Panel is the ordered list of fingerprint sites.
type Panel struct {
	sites []model.ProfileVariant
	index map[string]int // variant id -> position in sites
}

// NewPanel indexes pvs, keeping their order.
func NewPanel(pvs []model.ProfileVariant) *Panel {
	p := &Panel{sites: pvs, index: make(map[string]int, len(pvs))}
	for i, pv := range pvs {
		p.index[model.FormatVariantID(pv.Chrom, pv.Pos, pv.Ref, pv.Alt)] = i
	}
	return p
}

// Len returns the number of sites.
func (p *Panel) Len() int {
	return len(p.sites)
}

// Sites returns the panel sites in order.
func (p *Panel) Sites() []model.ProfileVariant {
	return p.sites
}

// Empty returns the all homozygous reference profile.
func (p *Panel) Empty() model.Profile {
	prof := make(model.Profile, len(p.sites))
	for i, s := range p.sites {
		prof[i] = s.Ref + s.Ref
	}
	return prof
}

// BuildFile opens path and builds profiles with Build.
func (p *Panel) BuildFile(path string, inds []model.Individual) (map[string]model.Profile, error) {
	parser, err := vcf.NewParser(path)
	if err != nil {
		return nil, err
	}
	defer parser.Close()
	return p.Build(parser, inds)
}

// Build reads all records of r and returns the profile of each individual,
// keyed by individual id. Sites not called in the input stay homozygous
// reference.
func (p *Panel) Build(r vcf.VariantParser, inds []model.Individual) (map[string]model.Profile, error) {
	profiles := make(map[string]model.Profile, len(inds))
	for _, ind := range inds {
		profiles[ind.IndID] = p.Empty()
	}
	if len(p.sites) == 0 {
		return profiles, nil
	}

	for {
		v, err := r.Next()
		if err != nil {
			return nil, err
		}
		if v == nil {
			break
		}
		chrom := genome.StripChr(v.Chrom)
		for _, split := range vcf.SplitMultiAllelic(v) {
			i, ok := p.index[model.FormatVariantID(chrom, split.Pos, split.Ref, split.Alt)]
			if !ok {
				continue
			}
			for _, ind := range inds {
				if gt, ok := genotypeString(split, ind.IndIndex); ok {
					profiles[ind.IndID][i] = gt
				}
			}
		}
	}
	return profiles, nil
}

// genotypeString renders the call of sample as two bases, reference allele
// first. Haploid calls are doubled.
func genotypeString(v *vcf.Variant, sample int) (string, bool) {
	g := v.Genotype(sample)
	if g.Type == vcf.GenotypeUnknown {
		return "", false
	}

	var alleles []int
	for _, a := range g.Alleles {
		if a >= 0 {
			alleles = append(alleles, a)
		}
	}
	sort.Ints(alleles)
	if len(alleles) == 1 {
		alleles = append(alleles, alleles[0])
	}

	base := func(a int) string {
		if a == 0 {
			return v.Ref
		}
		return v.Alt
	}
	return base(alleles[0]) + base(alleles[1]), true
}
