// Package model defines the records persisted by the frequency database.
package model

import "strconv"

// MaxFamilies bounds the provenance list kept on variants and clusters.
const MaxFamilies = 50

// Variant is the aggregated record for a small variant, keyed by chrom_pos_ref_alt.
type Variant struct {
	ID           string   // chrom_pos_ref_alt
	Chrom        string   // normalized chromosome
	Start        int64    // 1-based position
	End          int64    // normalized end
	Ref          string   // reference allele
	Alt          string   // alternate allele
	Observations uint64   // number of cases carrying the variant
	Homozygote   uint64   // cases with a homozygous-alt call
	Hemizygote   uint64   // cases with a hemizygous call
	Families     []string // most recent case ids first
}

// FormatVariantID builds the canonical identity of a small variant.
func FormatVariantID(chrom string, pos int64, ref, alt string) string {
	return chrom + "_" + strconv.FormatInt(pos, 10) + "_" + ref + "_" + alt
}

// Cluster groups structural variant observations around a mean start and end.
type Cluster struct {
	ID           string
	Chrom        string
	EndChrom     string
	SVType       string
	PosSum       int64
	EndSum       int64
	Observations uint64
	PosLeft      int64
	PosRight     int64
	EndLeft      int64
	EndRight     int64
	Length       int64
	Families     []string
}

// PosMean returns pos_sum / observations, or 0 for an empty cluster.
func (c *Cluster) PosMean() int64 {
	if c.Observations == 0 {
		return 0
	}
	return c.PosSum / int64(c.Observations)
}

// EndMean returns end_sum / observations, or 0 for an empty cluster.
func (c *Cluster) EndMean() int64 {
	if c.Observations == 0 {
		return 0
	}
	return c.EndSum / int64(c.Observations)
}

// Identity links a raw VCF ID column value and a case to the cluster it landed
// in. Pos and End are the coordinates the case added to the cluster sums.
type Identity struct {
	ClusterID string
	VariantID string // raw ID column
	CaseID    string
	Pos       int64
	End       int64
}

// Sex follows the PED encoding.
type Sex int

const (
	SexUnknown Sex = 0
	SexMale    Sex = 1
	SexFemale  Sex = 2
)

// String returns the PED code of the sex.
func (s Sex) String() string {
	return strconv.Itoa(int(s))
}

// Individual is a sample of a case with its column in the VCF.
type Individual struct {
	IndID    string
	Sex      Sex
	IndIndex int     // index of the sample column in the VCF
	Profile  Profile // nil until computed
}

// Case is a sequencing cohort whose variants are loaded into the database.
type Case struct {
	CaseID       string
	VCFPath      string // small variant VCF, empty if none
	VCFSVPath    string // structural variant VCF, empty if none
	NrVariants   int64
	NrSVVariants int64
	Individuals  []Individual
}

// HasSNV reports whether the case contributed a small variant file.
func (c *Case) HasSNV() bool { return c.VCFPath != "" }

// HasSV reports whether the case contributed a structural variant file.
func (c *Case) HasSV() bool { return c.VCFSVPath != "" }

// ProfileVariant is one site of the fixed genotype fingerprint panel.
type ProfileVariant struct {
	ID    string
	Chrom string
	Pos   int64
	Ref   string
	Alt   string
	MAF   float64
}

// Profile is an ordered list of 2-character genotype strings over the panel.
type Profile []string
