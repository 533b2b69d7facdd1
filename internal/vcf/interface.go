// Package vcf streams VCF records and checks input files before loading.
package vcf

// VariantParser is a stream of VCF records.
type VariantParser interface {
	// Next reads the next record.
	// Returns nil, nil when there are no more records.
	Next() (*Variant, error)

	// SampleNames returns the sample columns of the #CHROM line.
	SampleNames() []string

	// LineNumber returns the line of the last record read.
	LineNumber() int

	// Close closes the parser and releases resources.
	Close() error
}
