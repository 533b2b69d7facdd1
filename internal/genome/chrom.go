package genome

import (
	"sort"
	"strings"
)

// Chromosomes lists the ordered contigs known to the database.
var Chromosomes = []string{
	"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12",
	"13", "14", "15", "16", "17", "18", "19", "20", "21", "22", "X", "Y", "MT",
}

var chromRank = func() map[string]int {
	m := make(map[string]int, len(Chromosomes))
	for i, c := range Chromosomes {
		m[c] = i
	}
	return m
}()

// ChromRank returns the position of chrom in the canonical order.
func ChromRank(chrom string) (int, bool) {
	r, ok := chromRank[chrom]
	return r, ok
}

// StripChr removes a leading chr/CHR/Chr prefix.
func StripChr(chrom string) string {
	if len(chrom) > 3 && strings.EqualFold(chrom[:3], "chr") {
		return chrom[3:]
	}
	return chrom
}

// IsGreater reports whether locus (chromA, posA) is ordered strictly after
// (chromB, posB). Unknown contigs are incomparable: IsGreater returns false
// in both directions.
func IsGreater(chromA string, posA int64, chromB string, posB int64) bool {
	ra, okA := chromRank[chromA]
	rb, okB := chromRank[chromB]
	if !okA || !okB {
		return false
	}
	if ra != rb {
		return ra > rb
	}
	return posA > posB
}

// ChromLess orders chromosome names: canonical contigs in Chromosomes order,
// then unknown contigs lexically.
func ChromLess(a, b string) bool {
	ra, okA := chromRank[a]
	rb, okB := chromRank[b]
	switch {
	case okA && okB:
		return ra < rb
	case okA != okB:
		return okA
	}
	return a < b
}

// SortChromosomes sorts chroms in place with ChromLess.
func SortChromosomes(chroms []string) {
	sort.Slice(chroms, func(i, j int) bool { return ChromLess(chroms[i], chroms[j]) })
}
