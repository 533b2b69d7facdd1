package variant

import (
	"github.com/inodb/vibe-freq/internal/model"
	"github.com/inodb/vibe-freq/internal/vcf"
)

// Options bundles normalization and classification settings.
type Options struct {
	Normalize NormalizeOptions
	Classify  ClassifyOptions
}

// SV is a normalized structural variant observation.
type SV struct {
	Coordinates
	ID string // raw VCF ID column
}

// Builder converts VCF records of one case into database inputs.
type Builder struct {
	opts        Options
	individuals []model.Individual
}

// NewBuilder creates a builder for the given case individuals.
func NewBuilder(inds []model.Individual, opts Options) *Builder {
	return &Builder{opts: opts, individuals: inds}
}

// Variant builds the contribution of the case to a small variant record.
// It returns false when no qualifying individual carries the variant.
func (b *Builder) Variant(v *vcf.Variant) (model.Variant, bool) {
	c := Normalize(v, b.opts.Normalize)
	call := Classify(v, c.Chrom, c.Pos, b.individuals, b.opts.Classify)
	if !call.Observed {
		return model.Variant{}, false
	}

	rec := model.Variant{
		ID:           model.FormatVariantID(c.Chrom, c.Pos, v.Ref, v.Alt),
		Chrom:        c.Chrom,
		Start:        c.Pos,
		End:          c.End,
		Ref:          v.Ref,
		Alt:          v.Alt,
		Observations: 1,
	}
	if call.Homozygote {
		rec.Homozygote = 1
	}
	if call.Hemizygote {
		rec.Hemizygote = 1
	}
	return rec, true
}

// SV builds a structural variant observation. SV callers do not emit reliable
// per-sample quality, so presence of the record is enough.
func (b *Builder) SV(v *vcf.Variant) SV {
	return SV{Coordinates: Normalize(v, b.opts.Normalize), ID: v.ID}
}

// Key returns the normalized identity of v without classifying genotypes.
func (b *Builder) Key(v *vcf.Variant) string {
	c := Normalize(v, b.opts.Normalize)
	return model.FormatVariantID(c.Chrom, c.Pos, v.Ref, v.Alt)
}
