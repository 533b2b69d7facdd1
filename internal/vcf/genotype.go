package vcf

import (
	"strconv"
	"strings"
)

// GenotypeType classifies a sample's genotype call.
type GenotypeType int

const (
	GenotypeUnknown GenotypeType = iota
	GenotypeHomRef
	GenotypeHet
	GenotypeHomAlt
)

func (g GenotypeType) String() string {
	switch g {
	case GenotypeHomRef:
		return "HOMOZYGOUS_REFERENCE"
	case GenotypeHet:
		return "HETEROZYGOUS"
	case GenotypeHomAlt:
		return "HOMOZYGOUS_ALTERNATE"
	}
	return "UNCALLED"
}

// Genotype is the parsed call of one sample.
type Genotype struct {
	GT      string       // raw GT value, e.g. "0/1"
	Type    GenotypeType // classified call
	Alleles []int        // allele indexes, -1 for missing
	GQ      float64      // genotype quality
	HasGQ   bool         // false when GQ is absent or "."
}

// formatIndex returns the index of key in the FORMAT column, or -1.
func (v *Variant) formatIndex(key string) int {
	for i, k := range v.Format {
		if k == key {
			return i
		}
	}
	return -1
}

// SampleValue returns the FORMAT value of key for the given sample.
func (v *Variant) SampleValue(sample int, key string) (string, bool) {
	if sample < 0 || sample >= len(v.Samples) {
		return "", false
	}
	idx := v.formatIndex(key)
	if idx < 0 || idx >= len(v.Samples[sample]) {
		return "", false
	}
	return v.Samples[sample][idx], true
}

// Genotype parses GT and GQ for the sample at the given column index.
func (v *Variant) Genotype(sample int) Genotype {
	var g Genotype
	if gt, ok := v.SampleValue(sample, "GT"); ok {
		g.GT = gt
		g.Alleles = parseAlleles(gt)
		g.Type = classifyAlleles(g.Alleles)
	}
	if gq, ok := v.SampleValue(sample, "GQ"); ok && gq != "." {
		if f, err := strconv.ParseFloat(gq, 64); err == nil {
			g.GQ = f
			g.HasGQ = true
		}
	}
	return g
}

// parseAlleles splits a GT value on '/' or '|'.
func parseAlleles(gt string) []int {
	parts := strings.FieldsFunc(gt, func(r rune) bool { return r == '/' || r == '|' })
	alleles := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			n = -1
		}
		alleles[i] = n
	}
	return alleles
}

func classifyAlleles(alleles []int) GenotypeType {
	var called, alt int
	first := -1
	sameAlt := true
	for _, a := range alleles {
		if a < 0 {
			continue
		}
		called++
		if a > 0 {
			alt++
			if first < 0 {
				first = a
			} else if a != first {
				sameAlt = false
			}
		}
	}
	switch {
	case called == 0:
		return GenotypeUnknown
	case alt == 0:
		return GenotypeHomRef
	case alt == called && sameAlt:
		return GenotypeHomAlt
	}
	return GenotypeHet
}

// IsVariant reports whether the call carries an alternate allele.
func (g Genotype) IsVariant() bool {
	return g.Type == GenotypeHet || g.Type == GenotypeHomAlt
}
