// Package output writes frequency annotations and database exports as VCF.
package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/vibe-freq/internal/annotate"
	"github.com/inodb/vibe-freq/internal/vcf"
)

// Frequency INFO keys.
const (
	InfoObs = "Obs"
	InfoHom = "Hom"
	InfoHem = "Hem"
	InfoFrq = "Frq"
)

var freqKeys = []string{InfoObs, InfoHom, InfoHem, InfoFrq}

// infoHeaders are the INFO definitions of the frequency keys, in freqKeys order.
var infoHeaders = []string{
	`##INFO=<ID=Obs,Number=A,Type=Integer,Description="The number of observations for the variant">`,
	`##INFO=<ID=Hom,Number=A,Type=Integer,Description="The number of observed homozygotes">`,
	`##INFO=<ID=Hem,Number=A,Type=Integer,Description="The number of observed hemizygotes">`,
	`##INFO=<ID=Frq,Number=A,Type=Float,Description="Observed frequency of the variant">`,
}

// VCFWriter writes input records with frequency INFO fields.
// Split alleles are buffered and written as one line when the record changes.
type VCFWriter struct {
	w           *bufio.Writer
	headerLines []string // original VCF header lines (## and #CHROM)

	// Buffered state for the current record.
	hasVariant  bool
	currentVars []*vcf.Variant         // one per alt allele
	annotations []*annotate.Annotation // parallel to currentVars
}

// NewVCFWriter creates a new VCF output writer.
func NewVCFWriter(w io.Writer, headerLines []string) *VCFWriter {
	return &VCFWriter{
		w:           bufio.NewWriter(w),
		headerLines: headerLines,
	}
}

// WriteHeader writes the original header lines with the frequency INFO
// definitions inserted before #CHROM. Existing definitions of these keys
// are replaced.
func (vw *VCFWriter) WriteHeader() error {
	for _, line := range vw.headerLines {
		if isFreqHeader(line) {
			continue
		}
		if strings.HasPrefix(line, "#CHROM") {
			for _, h := range infoHeaders {
				if _, err := vw.w.WriteString(h + "\n"); err != nil {
					return err
				}
			}
		}
		if _, err := vw.w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}

func isFreqHeader(line string) bool {
	for _, k := range freqKeys {
		if strings.HasPrefix(line, "##INFO=<ID="+k+",") {
			return true
		}
	}
	return false
}

// Write buffers the annotation of one split allele. When a new record is
// encountered (different chrom/pos/ref), the previous line is written.
func (vw *VCFWriter) Write(v *vcf.Variant, ann *annotate.Annotation) error {
	if vw.hasVariant {
		cur := vw.currentVars[0]
		if cur.Chrom != v.Chrom || cur.Pos != v.Pos || cur.Ref != v.Ref {
			if err := vw.flushVariant(); err != nil {
				return err
			}
		}
	}

	vw.hasVariant = true
	vw.currentVars = append(vw.currentVars, v)
	vw.annotations = append(vw.annotations, ann)
	return nil
}

// Flush writes any buffered record and flushes the underlying writer.
func (vw *VCFWriter) Flush() error {
	if vw.hasVariant {
		if err := vw.flushVariant(); err != nil {
			return err
		}
	}
	return vw.w.Flush()
}

// flushVariant writes the buffered record. Records with no allele in the
// database keep their INFO unchanged.
func (vw *VCFWriter) flushVariant() error {
	if len(vw.currentVars) == 0 {
		return nil
	}
	v := vw.currentVars[0]

	alts := make([]string, len(vw.currentVars))
	for i, cv := range vw.currentVars {
		alts[i] = cv.Alt
	}

	info := v.RawInfo
	if info == "" {
		info = "."
	}
	if freq := formatFreq(vw.annotations); freq != "" {
		info = joinInfo(stripInfo(info, freqKeys), freq)
	}

	var lb strings.Builder
	lb.Grow(256)

	lb.WriteString(v.Chrom)
	lb.WriteByte('\t')
	lb.WriteString(strconv.FormatInt(v.Pos, 10))
	lb.WriteByte('\t')
	lb.WriteString(v.ID)
	lb.WriteByte('\t')
	lb.WriteString(v.Ref)
	lb.WriteByte('\t')
	lb.WriteString(strings.Join(alts, ","))
	lb.WriteByte('\t')
	if v.HasQual {
		lb.WriteString(strconv.FormatFloat(v.Qual, 'g', -1, 64))
	} else {
		lb.WriteByte('.')
	}
	lb.WriteByte('\t')
	lb.WriteString(v.Filter)
	lb.WriteByte('\t')
	lb.WriteString(info)

	if cols := v.SampleColumns(); cols != "" {
		lb.WriteByte('\t')
		lb.WriteString(cols)
	}

	lb.WriteByte('\n')
	if _, err := vw.w.WriteString(lb.String()); err != nil {
		return err
	}

	vw.hasVariant = false
	vw.currentVars = nil
	vw.annotations = nil
	return nil
}

// formatFreq renders the frequency fields of one record, one value per alt.
// It returns "" when no allele was found.
func formatFreq(anns []*annotate.Annotation) string {
	found := false
	var obs, hom, hem, frq []string
	var anyHom, anyHem, anyFrq bool
	for _, a := range anns {
		if a == nil {
			a = &annotate.Annotation{}
		}
		found = found || a.Found
		anyHom = anyHom || a.Homozygote > 0
		anyHem = anyHem || a.Hemizygote > 0
		anyFrq = anyFrq || a.HasFrequency

		obs = append(obs, strconv.FormatUint(a.Observations, 10))
		hom = append(hom, strconv.FormatUint(a.Homozygote, 10))
		hem = append(hem, strconv.FormatUint(a.Hemizygote, 10))
		frq = append(frq, fmt.Sprintf("%.5f", a.Frequency))
	}
	if !found {
		return ""
	}

	fields := []string{InfoObs + "=" + strings.Join(obs, ",")}
	if anyHom {
		fields = append(fields, InfoHom+"="+strings.Join(hom, ","))
	}
	if anyHem {
		fields = append(fields, InfoHem+"="+strings.Join(hem, ","))
	}
	if anyFrq {
		fields = append(fields, InfoFrq+"="+strings.Join(frq, ","))
	}
	return strings.Join(fields, ";")
}

// stripInfo removes the given keys from a raw INFO string.
func stripInfo(rawInfo string, keys []string) string {
	if rawInfo == "" || rawInfo == "." {
		return "."
	}

	var b strings.Builder
	for rest := rawInfo; rest != ""; {
		semi := strings.IndexByte(rest, ';')
		var field string
		if semi >= 0 {
			field = rest[:semi]
			rest = rest[semi+1:]
		} else {
			field = rest
			rest = ""
		}
		key, _, _ := strings.Cut(field, "=")
		if hasKey(keys, key) {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(';')
		}
		b.WriteString(field)
	}

	if b.Len() == 0 {
		return "."
	}
	return b.String()
}

func hasKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

func joinInfo(info, extra string) string {
	if info == "." || info == "" {
		return extra
	}
	return info + ";" + extra
}
