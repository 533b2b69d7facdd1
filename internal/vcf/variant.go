// Package vcf provides VCF file parsing functionality.
package vcf

import (
	"strconv"
	"strings"
)

// Variant represents a single genomic variant from a VCF file.
type Variant struct {
	Chrom   string                 // Chromosome name (e.g., "12", "chr12")
	Pos     int64                  // 1-based genomic position
	ID      string                 // Variant identifier (e.g., rs ID)
	Ref     string                 // Reference allele
	Alt     string                 // Alternate allele (single allele after splitting)
	Qual    float64                // Quality score
	HasQual bool                   // false when QUAL is "."
	Filter  string                 // Filter status (PASS or filter name)
	Info    map[string]interface{} // INFO field key-value pairs
	RawInfo string                 // INFO column as read
	Format  []string               // FORMAT keys, e.g. GT:GQ:DP
	Samples [][]string             // per-sample FORMAT values

	rawSamples string // FORMAT and sample columns as read
}

// IsSNV returns true if the variant is a single nucleotide variant.
func (v *Variant) IsSNV() bool {
	return len(v.Ref) == 1 && len(v.Alt) == 1
}

// IsSymbolic returns true if the alternate allele is a symbolic allele or breakend.
func (v *Variant) IsSymbolic() bool {
	return strings.HasPrefix(v.Alt, "<") || strings.ContainsAny(v.Alt, "[]")
}

// NormalizeChrom returns the chromosome name without "chr" prefix.
func (v *Variant) NormalizeChrom() string {
	if len(v.Chrom) > 3 && strings.EqualFold(v.Chrom[:3], "chr") {
		return v.Chrom[3:]
	}
	return v.Chrom
}

// InfoString returns the string value of an INFO key.
func (v *Variant) InfoString(key string) (string, bool) {
	val, ok := v.Info[key]
	if !ok {
		return "", false
	}
	s, ok := val.(string)
	return s, ok
}

// InfoInt returns the integer value of an INFO key. For Number=A keys
// carrying several comma-separated values the first one is used.
func (v *Variant) InfoInt(key string) (int64, bool) {
	s, ok := v.InfoString(key)
	if !ok {
		return 0, false
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// InfoFloat returns the float value of an INFO key.
func (v *Variant) InfoFloat(key string) (float64, bool) {
	s, ok := v.InfoString(key)
	if !ok {
		return 0, false
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// SampleColumns returns the FORMAT and sample columns joined with tabs. For
// parsed records this is the input text, which keeps the original GT values
// of multi-allelic records after SplitMultiAllelic.
func (v *Variant) SampleColumns() string {
	if v.rawSamples != "" {
		return v.rawSamples
	}
	if len(v.Format) == 0 {
		return ""
	}
	cols := make([]string, 0, len(v.Samples)+1)
	cols = append(cols, strings.Join(v.Format, ":"))
	for _, s := range v.Samples {
		cols = append(cols, strings.Join(s, ":"))
	}
	return strings.Join(cols, "\t")
}
