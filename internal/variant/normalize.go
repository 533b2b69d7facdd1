// Package variant turns raw VCF records into canonical database inputs:
// coordinate normalization and per-case genotype classification.
package variant

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/inodb/vibe-freq/internal/genome"
	"github.com/inodb/vibe-freq/internal/vcf"
)

// InfiniteLength stands in for the length of a translocation. It is a plain
// integer so it can be stored and compared like any other length.
const InfiniteLength int64 = 100_000_000_000

// SVTypeBND is the breakend SV type.
const SVTypeBND = "BND"

// Coordinates is the canonical span of a variant.
type Coordinates struct {
	Chrom    string
	EndChrom string
	Pos      int64
	End      int64
	SVType   string // empty for small variants
	SVLength int64
}

// IsSV reports whether the record carried an SVTYPE.
func (c Coordinates) IsSV() bool { return c.SVType != "" }

// NormalizeOptions controls chromosome naming during normalization.
type NormalizeOptions struct {
	KeepChrPrefix bool
}

// bndMate matches the mate locus of a breakend ALT, e.g. N[chr2:321682[ or ]13:123456]T.
var bndMate = regexp.MustCompile(`[\[\]]([^\[\]:]+):(\d+)[\[\]]`)

func normalizeChrom(chrom string, keep bool) string {
	if keep {
		return chrom
	}
	return genome.StripChr(chrom)
}

// Normalize computes the canonical coordinates of v.
func Normalize(v *vcf.Variant, opts NormalizeOptions) Coordinates {
	c := Coordinates{
		Chrom: normalizeChrom(v.Chrom, opts.KeepChrPrefix),
		Pos:   v.Pos,
	}
	c.EndChrom = c.Chrom

	if end, ok := v.InfoInt("END"); ok {
		c.End = end
	} else if v.IsSymbolic() {
		c.End = v.Pos
	} else {
		c.End = v.Pos + int64(len(v.Ref)) - 1
	}

	c.SVType, _ = v.InfoString("SVTYPE")

	if svlen, ok := v.InfoInt("SVLEN"); ok {
		c.SVLength = abs(svlen)
	} else {
		c.SVLength = c.End - c.Pos
	}

	if c.SVType == SVTypeBND {
		if m := bndMate.FindStringSubmatch(v.Alt); m != nil {
			c.EndChrom = normalizeChrom(m[1], opts.KeepChrPrefix)
			c.End, _ = strconv.ParseInt(m[2], 10, 64)
		} else if chr2, ok := v.InfoString("CHR2"); ok {
			c.EndChrom = normalizeChrom(chr2, opts.KeepChrPrefix)
		}
		c.SVLength = InfiniteLength
	}

	if c.SVLength == 0 && !strings.HasPrefix(v.Alt, "<INS") {
		c.SVLength = int64(len(v.Alt))
	}

	if c.Pos == c.End && c.SVLength > 0 && c.SVLength < InfiniteLength {
		c.End = c.Pos + c.SVLength
	}

	if genome.IsGreater(c.Chrom, c.Pos, c.EndChrom, c.End) {
		c.Chrom, c.EndChrom = c.EndChrom, c.Chrom
		c.Pos, c.End = c.End, c.Pos
	}

	return c
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
