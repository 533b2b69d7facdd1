package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/inodb/vibe-freq/internal/annotate"
	"github.com/inodb/vibe-freq/internal/vcf"
)

func dataLines(out string) []string {
	var lines []string
	for _, l := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if !strings.HasPrefix(l, "#") {
			lines = append(lines, l)
		}
	}
	return lines
}

func TestVCFWriter_Header(t *testing.T) {
	headers := []string{
		"##fileformat=VCFv4.2",
		"##reference=GRCh37",
		"##INFO=<ID=Obs,Number=1,Type=Integer,Description=\"old\">",
		"##INFO=<ID=DP,Number=1,Type=Integer,Description=\"Total Depth\">",
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO",
	}

	var buf bytes.Buffer
	w := NewVCFWriter(&buf, headers)
	if err := w.WriteHeader(); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if lines[0] != "##fileformat=VCFv4.2" {
		t.Errorf("first line = %q, want ##fileformat=VCFv4.2", lines[0])
	}

	obsIdx, chromIdx, obsCount := -1, -1, 0
	for i, line := range lines {
		if strings.HasPrefix(line, "##INFO=<ID=Obs,") {
			obsIdx = i
			obsCount++
		}
		if strings.HasPrefix(line, "#CHROM") {
			chromIdx = i
		}
	}
	if obsCount != 1 {
		t.Fatalf("expected one Obs INFO line, got %d", obsCount)
	}
	if strings.Contains(lines[obsIdx], "old") {
		t.Errorf("old Obs definition kept: %s", lines[obsIdx])
	}
	if obsIdx >= chromIdx {
		t.Errorf("Obs INFO line (idx %d) should appear before #CHROM line (idx %d)", obsIdx, chromIdx)
	}
	if len(lines) != len(headers)+len(infoHeaders)-1 {
		t.Errorf("got %d header lines, want %d", len(lines), len(headers)+len(infoHeaders)-1)
	}
}

func TestVCFWriter_SingleAllele(t *testing.T) {
	var buf bytes.Buffer
	w := NewVCFWriter(&buf, nil)

	v := &vcf.Variant{
		Chrom:   "1",
		Pos:     880086,
		ID:      "rs1",
		Ref:     "T",
		Alt:     "C",
		Qual:    50,
		HasQual: true,
		Filter:  "PASS",
		RawInfo: "DP=10;Obs=99",
	}
	ann := &annotate.Annotation{
		Found:        true,
		Observations: 3,
		Homozygote:   1,
		Frequency:    0.3,
		HasFrequency: true,
	}

	if err := w.Write(v, ann); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	got := dataLines(buf.String())
	want := "1\t880086\trs1\tT\tC\t50\tPASS\tDP=10;Obs=3;Hom=1;Frq=0.30000"
	if len(got) != 1 || got[0] != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestVCFWriter_NotFoundUnchanged(t *testing.T) {
	var buf bytes.Buffer
	w := NewVCFWriter(&buf, nil)

	v := &vcf.Variant{Chrom: "2", Pos: 100, ID: ".", Ref: "A", Alt: "G", Filter: "PASS", RawInfo: "."}
	if err := w.Write(v, &annotate.Annotation{}); err != nil {
		t.Fatal(err)
	}
	if err := w.Write(&vcf.Variant{Chrom: "2", Pos: 200, ID: ".", Ref: "A", Alt: "G", Filter: "PASS", RawInfo: "."}, nil); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	got := dataLines(buf.String())
	if len(got) != 2 {
		t.Fatalf("expected 2 data lines, got %d", len(got))
	}
	if got[0] != "2\t100\t.\tA\tG\t.\tPASS\t." {
		t.Errorf("unexpected line %q", got[0])
	}
}

func TestVCFWriter_MultiAllelic(t *testing.T) {
	input := "##fileformat=VCFv4.2\n" +
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\ts1\n" +
		"X\t5000\t.\tA\tC,G\t.\tPASS\tDP=5\tGT\t1/2\n"
	p, err := vcf.NewParserFromReader(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	v, err := p.Next()
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	w := NewVCFWriter(&buf, p.Header())
	if err := w.WriteHeader(); err != nil {
		t.Fatal(err)
	}
	anns := []*annotate.Annotation{
		{Found: true, Observations: 2, Hemizygote: 1},
		{Found: false},
	}
	for i, split := range vcf.SplitMultiAllelic(v) {
		if err := w.Write(split, anns[i]); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	got := dataLines(buf.String())
	want := "X\t5000\t.\tA\tC,G\t.\tPASS\tDP=5;Obs=2,0;Hem=1,0\tGT\t1/2"
	if len(got) != 1 || got[0] != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStripInfo(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{".", "."},
		{"", "."},
		{"DP=1", "DP=1"},
		{"Obs=1;Frq=0.1", "."},
		{"DP=1;Obs=1;DB;Hom=2", "DP=1;DB"},
		{"Observed=1", "Observed=1"},
	}
	for _, tt := range tests {
		if got := stripInfo(tt.in, freqKeys); got != tt.want {
			t.Errorf("stripInfo(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
