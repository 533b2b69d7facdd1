package variant

import (
	"github.com/inodb/vibe-freq/internal/genome"
	"github.com/inodb/vibe-freq/internal/model"
	"github.com/inodb/vibe-freq/internal/vcf"
)

// ClassifyOptions controls which genotype calls count for a case.
type ClassifyOptions struct {
	GQThreshold     float64
	IgnoreGQIfUnset bool // count individuals whose quality is missing
	QualAsGQ        bool // use the record QUAL instead of per-sample GQ
	Build           genome.Build
}

// Call is what one case contributes to a variant.
type Call struct {
	Observed   bool
	Homozygote bool
	Hemizygote bool
}

// Classify decides whether the case's individuals carry v. chrom and pos are
// the normalized locus of v, used for the PAR check.
func Classify(v *vcf.Variant, chrom string, pos int64, inds []model.Individual, opts ClassifyOptions) Call {
	var call Call
	sexChrom := chrom == "X" || chrom == "Y"

	for _, ind := range inds {
		g := v.Genotype(ind.IndIndex)

		quality, hasQuality := g.GQ, g.HasGQ
		if opts.QualAsGQ {
			quality, hasQuality = v.Qual, v.HasQual
		}
		if !hasQuality {
			if !opts.IgnoreGQIfUnset {
				continue
			}
		} else if quality < opts.GQThreshold {
			continue
		}

		if !g.IsVariant() {
			continue
		}
		call.Observed = true
		if g.Type == vcf.GenotypeHomAlt {
			call.Homozygote = true
		}
		if sexChrom && ind.Sex == model.SexMale && !genome.IsPAR(opts.Build, chrom, pos) {
			call.Hemizygote = true
		}
	}

	return call
}
