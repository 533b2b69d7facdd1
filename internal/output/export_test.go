package output

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-freq/internal/genome"
	"github.com/inodb/vibe-freq/internal/model"
)

type memSource struct {
	variants map[string][]model.Variant
	clusters map[string][]model.Cluster
}

func (m *memSource) VariantChromosomes(context.Context) ([]string, error) {
	var out []string
	for c := range m.variants {
		out = append(out, c)
	}
	return out, nil
}

func (m *memSource) ForEachVariant(_ context.Context, chrom string, fn func(model.Variant) error) error {
	for _, v := range m.variants[chrom] {
		if err := fn(v); err != nil {
			return err
		}
	}
	return nil
}

func (m *memSource) ClusterChromosomes(context.Context) ([]string, error) {
	var out []string
	for c := range m.clusters {
		out = append(out, c)
	}
	return out, nil
}

func (m *memSource) ForEachCluster(_ context.Context, chrom string, fn func(model.Cluster) error) error {
	for _, c := range m.clusters[chrom] {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

func TestExportVariants(t *testing.T) {
	src := &memSource{variants: map[string][]model.Variant{
		"X":  {{Chrom: "X", Start: 500, Ref: "C", Alt: "T", Observations: 1, Homozygote: 1, Hemizygote: 1}},
		"10": {{Chrom: "10", Start: 20, Ref: "G", Alt: "A", Observations: 2}},
		"2":  {{Chrom: "2", Start: 30, Ref: "A", Alt: "C", Observations: 4}},
	}}

	var buf bytes.Buffer
	ew := NewExportWriter(&buf)
	ew.SetCaseCounts(4, 0)
	require.NoError(t, ew.WriteHeader(genome.GRCh38, false))
	n, err := ExportVariants(context.Background(), src, ew)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	out := buf.String()
	assert.Contains(t, out, "##reference=GRCh38\n")
	assert.NotContains(t, out, "ID=SVTYPE")
	assert.Equal(t, []string{
		"2\t30\t.\tA\tC\t.\t.\tObs=4;Frq=1.00000",
		"10\t20\t.\tG\tA\t.\t.\tObs=2;Frq=0.50000",
		"X\t500\t.\tC\tT\t.\t.\tObs=1;Hom=1;Hem=1;Frq=0.25000",
	}, dataLines(out))
}

func TestExportClusters(t *testing.T) {
	src := &memSource{clusters: map[string][]model.Cluster{
		"1": {{
			Chrom: "1", EndChrom: "1", SVType: "DEL", Observations: 2,
			PosLeft: 9500, PosRight: 10500, EndLeft: 14500, EndRight: 15500, Length: 5000,
		}},
	}}

	var buf bytes.Buffer
	ew := NewExportWriter(&buf)
	require.NoError(t, ew.WriteHeader(genome.GRCh37, true))
	n, err := ExportClusters(context.Background(), src, ew)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	out := buf.String()
	assert.True(t, strings.Contains(out, "##INFO=<ID=SVLEN,"))
	assert.Equal(t, []string{
		"1\t10000\t.\tN\t<DEL>\t.\t.\tObs=2;SVTYPE=DEL;END=15000;SVLEN=5000",
	}, dataLines(out))
}
