package output

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/vibe-freq/internal/genome"
	"github.com/inodb/vibe-freq/internal/model"
)

// VariantSource is the small variant side of the database.
type VariantSource interface {
	VariantChromosomes(ctx context.Context) ([]string, error)
	ForEachVariant(ctx context.Context, chrom string, fn func(model.Variant) error) error
}

// ClusterSource is the structural variant side of the database.
type ClusterSource interface {
	ClusterChromosomes(ctx context.Context) ([]string, error)
	ForEachCluster(ctx context.Context, chrom string, fn func(model.Cluster) error) error
}

var svInfoHeaders = []string{
	`##INFO=<ID=SVTYPE,Number=1,Type=String,Description="Type of structural variant">`,
	`##INFO=<ID=END,Number=1,Type=Integer,Description="End position of the variant">`,
	`##INFO=<ID=SVLEN,Number=1,Type=Integer,Description="Length of the cluster">`,
}

// ExportWriter writes database records as sites-only VCF.
type ExportWriter struct {
	w        *bufio.Writer
	snvCases int64
	svCases  int64
}

// NewExportWriter creates an export writer.
func NewExportWriter(w io.Writer) *ExportWriter {
	return &ExportWriter{w: bufio.NewWriter(w)}
}

// SetCaseCounts sets the Frq denominators. Zero leaves Frq out.
func (ew *ExportWriter) SetCaseCounts(snv, sv int64) {
	ew.snvCases = snv
	ew.svCases = sv
}

// WriteHeader writes the VCF header for an export of the given kind.
func (ew *ExportWriter) WriteHeader(build genome.Build, sv bool) error {
	lines := []string{
		"##fileformat=VCFv4.2",
		"##source=vibe-freq",
		"##reference=" + string(build),
	}
	lines = append(lines, infoHeaders...)
	if sv {
		lines = append(lines, svInfoHeaders...)
	}
	lines = append(lines, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO")

	for _, l := range lines {
		if _, err := ew.w.WriteString(l + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// WriteVariant writes one small variant record.
func (ew *ExportWriter) WriteVariant(v model.Variant) error {
	info := []string{InfoObs + "=" + strconv.FormatUint(v.Observations, 10)}
	if v.Homozygote > 0 {
		info = append(info, InfoHom+"="+strconv.FormatUint(v.Homozygote, 10))
	}
	if v.Hemizygote > 0 {
		info = append(info, InfoHem+"="+strconv.FormatUint(v.Hemizygote, 10))
	}
	if ew.snvCases > 0 {
		info = append(info, fmt.Sprintf("%s=%.5f", InfoFrq, float64(v.Observations)/float64(ew.snvCases)))
	}
	return ew.writeLine(v.Chrom, v.Start, v.Ref, v.Alt, info)
}

// WriteCluster writes one SV cluster at the middle of its start interval.
func (ew *ExportWriter) WriteCluster(c model.Cluster) error {
	info := []string{InfoObs + "=" + strconv.FormatUint(c.Observations, 10)}
	if ew.svCases > 0 {
		info = append(info, fmt.Sprintf("%s=%.5f", InfoFrq, float64(c.Observations)/float64(ew.svCases)))
	}
	info = append(info,
		"SVTYPE="+c.SVType,
		"END="+strconv.FormatInt((c.EndLeft+c.EndRight)/2, 10),
		"SVLEN="+strconv.FormatInt(c.Length, 10),
	)
	return ew.writeLine(c.Chrom, (c.PosLeft+c.PosRight)/2, "N", "<"+c.SVType+">", info)
}

func (ew *ExportWriter) writeLine(chrom string, pos int64, ref, alt string, info []string) error {
	var lb strings.Builder
	lb.Grow(128)
	lb.WriteString(chrom)
	lb.WriteByte('\t')
	lb.WriteString(strconv.FormatInt(pos, 10))
	lb.WriteString("\t.\t")
	lb.WriteString(ref)
	lb.WriteByte('\t')
	lb.WriteString(alt)
	lb.WriteString("\t.\t.\t")
	lb.WriteString(strings.Join(info, ";"))
	lb.WriteByte('\n')
	_, err := ew.w.WriteString(lb.String())
	return err
}

// Flush flushes the underlying writer.
func (ew *ExportWriter) Flush() error {
	return ew.w.Flush()
}

// ExportVariants writes every small variant, chromosome by chromosome in
// genome order. It returns the number of records written.
func ExportVariants(ctx context.Context, src VariantSource, ew *ExportWriter) (int, error) {
	chroms, err := src.VariantChromosomes(ctx)
	if err != nil {
		return 0, err
	}
	genome.SortChromosomes(chroms)

	n := 0
	for _, chrom := range chroms {
		if err := src.ForEachVariant(ctx, chrom, func(v model.Variant) error {
			n++
			return ew.WriteVariant(v)
		}); err != nil {
			return n, err
		}
	}
	return n, ew.Flush()
}

// ExportClusters writes every SV cluster, chromosome by chromosome in genome
// order. It returns the number of records written.
func ExportClusters(ctx context.Context, src ClusterSource, ew *ExportWriter) (int, error) {
	chroms, err := src.ClusterChromosomes(ctx)
	if err != nil {
		return 0, err
	}
	genome.SortChromosomes(chroms)

	n := 0
	for _, chrom := range chroms {
		if err := src.ForEachCluster(ctx, chrom, func(c model.Cluster) error {
			n++
			return ew.WriteCluster(c)
		}); err != nil {
			return n, err
		}
	}
	return n, ew.Flush()
}
