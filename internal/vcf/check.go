package vcf

import (
	"github.com/inodb/vibe-freq/internal/model"
)

// Summary describes a VCF that passed Check.
type Summary struct {
	SampleNames  []string
	NrVariants   int64 // records without SVTYPE, after multi-allelic split
	NrSVVariants int64 // records with SVTYPE
}

// CheckFile opens path and validates it with Check.
func CheckFile(path string) (Summary, error) {
	p, err := NewParser(path)
	if err != nil {
		return Summary{}, err
	}
	defer p.Close()
	return Check(p)
}

// Check reads the whole input and verifies it is sorted by chromosome and
// position and has no duplicated site (same position and alleles). Chromosomes
// may come in any order but must be contiguous.
func Check(p *Parser) (Summary, error) {
	s := Summary{SampleNames: p.SampleNames()}

	seenChroms := make(map[string]bool)
	var prevChrom string
	var prevPos int64
	sitesAtPos := make(map[string]bool)

	for {
		v, err := p.Next()
		if err != nil {
			return s, err
		}
		if v == nil {
			break
		}

		if v.Chrom != prevChrom {
			if seenChroms[v.Chrom] {
				return s, &model.VcfError{Path: p.Path(), Line: p.LineNumber(), Message: "variants not sorted: chromosome " + v.Chrom + " is not contiguous"}
			}
			seenChroms[v.Chrom] = true
			prevChrom = v.Chrom
			prevPos = 0
		}
		if v.Pos < prevPos {
			return s, &model.VcfError{Path: p.Path(), Line: p.LineNumber(), Message: "variants not sorted by position"}
		}
		if v.Pos != prevPos {
			clear(sitesAtPos)
			prevPos = v.Pos
		}

		for _, split := range SplitMultiAllelic(v) {
			key := split.Ref + ">" + split.Alt
			if sitesAtPos[key] {
				return s, &model.VcfError{Path: p.Path(), Line: p.LineNumber(), Message: "duplicate variant " + model.FormatVariantID(split.Chrom, split.Pos, split.Ref, split.Alt)}
			}
			sitesAtPos[key] = true

			if _, ok := split.Info["SVTYPE"]; ok {
				s.NrSVVariants++
			} else {
				s.NrVariants++
			}
		}
	}

	return s, nil
}
