// Package annotate looks up database frequencies for the records of an input VCF.
package annotate

// Annotation is the database state of one (split) input allele.
type Annotation struct {
	VariantID    string // small variant id, or cluster id for SVs
	Found        bool
	IsSV         bool
	Observations uint64
	Homozygote   uint64
	Hemizygote   uint64
	Frequency    float64
	HasFrequency bool // false when the number of cases is unknown
}

// setFrequency fills Frequency from Observations and the number of cases.
func (a *Annotation) setFrequency(cases int64) {
	if cases <= 0 {
		return
	}
	a.Frequency = float64(a.Observations) / float64(cases)
	a.HasFrequency = true
}
