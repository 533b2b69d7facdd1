// Package genome holds genome build constants: pseudo-autosomal regions and
// the canonical chromosome order.
package genome

import (
	"fmt"
	"strings"
)

// Build identifies a reference genome assembly.
type Build string

const (
	GRCh37 Build = "GRCh37"
	GRCh38 Build = "GRCh38"
)

// ParseBuild accepts GRCh37/GRCh38 and their common aliases.
func ParseBuild(s string) (Build, error) {
	switch strings.ToLower(s) {
	case "grch37", "hg19", "37":
		return GRCh37, nil
	case "grch38", "hg38", "38":
		return GRCh38, nil
	}
	return "", fmt.Errorf("unknown genome build %q (use GRCh37 or GRCh38)", s)
}

// Interval is a closed 1-based range.
type Interval struct {
	Start, End int64
}

// Contains reports whether pos lies in [Start, End].
func (iv Interval) Contains(pos int64) bool {
	return pos >= iv.Start && pos <= iv.End
}

var parRegions = map[Build]map[string][]Interval{
	GRCh37: {
		"X": {{60001, 2699520}, {154931044, 155260560}},
		"Y": {{10001, 2649520}, {59034050, 59363566}},
	},
	GRCh38: {
		"X": {{10001, 2781479}, {155701383, 156030895}},
		"Y": {{10001, 2781479}, {56887903, 57217415}},
	},
}

// IsPAR reports whether pos on chrom falls in a pseudo-autosomal region of the build.
// chrom is expected without a "chr" prefix.
func IsPAR(build Build, chrom string, pos int64) bool {
	for _, iv := range parRegions[build][chrom] {
		if iv.Contains(pos) {
			return true
		}
	}
	return false
}
