package profile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-freq/internal/duckdb"
	"github.com/inodb/vibe-freq/internal/model"
	"github.com/inodb/vibe-freq/internal/vcf"
)

// vcfText joins lines, turning runs of spaces in data lines into tabs.
func vcfText(lines ...string) string {
	var b strings.Builder
	for _, l := range lines {
		if !strings.HasPrefix(l, "##") {
			l = strings.Join(strings.Fields(l), "\t")
		}
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}

var panelVCF = vcfText(
	"##fileformat=VCFv4.2",
	"#CHROM POS ID REF ALT QUAL FILTER INFO",
	"1 100 rs1 A G . PASS AF=0.3",
	"1 200 rs2 C T . PASS AF=0.96",
	"1 300 rs3 G A . PASS AF=0.5",
	"1 400 rs4 GT G . PASS AF=0.5",
	"chr2 500 rs5 T C . PASS AF=0.8",
	"1 600 rs6 A C . PASS .",
)

var sampleVCF = vcfText(
	"##fileformat=VCFv4.2",
	"#CHROM POS ID REF ALT QUAL FILTER INFO FORMAT ind1 ind2",
	"1 100 . A G 50 PASS . GT:GQ 0/1:60 1/1:60",
	"1 300 . G A 50 PASS . GT 0/0 ./.",
	"chr2 500 . T C,G 50 PASS . GT 1/2 0/2",
)

var individuals = []model.Individual{
	{IndID: "ind1", IndIndex: 0},
	{IndID: "ind2", IndIndex: 1},
}

func newMatcher(t *testing.T) (*Matcher, *duckdb.Store) {
	t.Helper()
	s, err := duckdb.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewMatcher(s), s
}

func parserFor(t *testing.T, text string) *vcf.Parser {
	t.Helper()
	p, err := vcf.NewParserFromReader(strings.NewReader(text))
	require.NoError(t, err)
	return p
}

func loadPanel(t *testing.T, m *Matcher) *Panel {
	t.Helper()
	ctx := context.Background()
	n, err := m.LoadPanel(ctx, parserFor(t, panelVCF), DefaultMinMAF)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	panel, err := m.Panel(ctx)
	require.NoError(t, err)
	return panel
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b model.Profile
		want float64
	}{
		{"identical", model.Profile{"AA", "CC"}, model.Profile{"AA", "CC"}, 1.0},
		{"half", model.Profile{"AA", "CC"}, model.Profile{"GG", "CC"}, 0.5},
		{"none", model.Profile{"AA"}, model.Profile{"AG"}, 0},
		{"empty", nil, nil, 0},
		{"length mismatch", model.Profile{"AA"}, model.Profile{"AA", "CC"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Similarity(tt.a, tt.b))
		})
	}
}

func TestLoadPanel(t *testing.T) {
	m, _ := newMatcher(t)
	panel := loadPanel(t, m)

	sites := panel.Sites()
	require.Len(t, sites, 3)
	assert.Equal(t, "1_100_A_G", sites[0].ID)
	assert.Equal(t, "1_300_G_A", sites[1].ID)
	assert.Equal(t, "2_500_T_C", sites[2].ID)
	assert.InDelta(t, 0.3, sites[0].MAF, 1e-9)
	assert.InDelta(t, 0.2, sites[2].MAF, 1e-9)
	assert.Equal(t, model.Profile{"AA", "GG", "TT"}, panel.Empty())
}

func TestLoadPanel_Replaces(t *testing.T) {
	m, _ := newMatcher(t)
	loadPanel(t, m)

	n, err := m.LoadPanel(context.Background(), parserFor(t, panelVCF), 0.4)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	panel, err := m.Panel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, panel.Len())
}

func TestBuild(t *testing.T) {
	m, _ := newMatcher(t)
	panel := loadPanel(t, m)

	profiles, err := panel.Build(parserFor(t, sampleVCF), individuals)
	require.NoError(t, err)
	assert.Equal(t, model.Profile{"AG", "GG", "TC"}, profiles["ind1"])
	assert.Equal(t, model.Profile{"GG", "GG", "TT"}, profiles["ind2"])
}

func TestBuild_EmptyPanel(t *testing.T) {
	profiles, err := NewPanel(nil).Build(parserFor(t, sampleVCF), individuals)
	require.NoError(t, err)
	assert.Empty(t, profiles["ind1"])
}

func TestCheckDuplicates(t *testing.T) {
	m, s := newMatcher(t)
	ctx := context.Background()

	require.NoError(t, s.AddCase(ctx, model.Case{CaseID: "caseA", Individuals: []model.Individual{
		{IndID: "ind1", Profile: model.Profile{"AG", "GG", "TC"}},
		{IndID: "ind2", IndIndex: 1, Profile: model.Profile{"GG", "GG", "TT"}},
	}}))

	match, err := m.CheckDuplicates(ctx, map[string]model.Profile{"new1": {"AG", "GG", "TC"}}, 0.95)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, Match{CaseID: "caseA", IndID: "ind1", Candidate: "new1", Similarity: 1}, *match)

	match, err = m.CheckDuplicates(ctx, map[string]model.Profile{"new1": {"AG", "GG", "TT"}}, 0.95)
	require.NoError(t, err)
	assert.Nil(t, match)

	match, err = m.CheckDuplicates(ctx, nil, 0.95)
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestUpdateProfiles(t *testing.T) {
	m, s := newMatcher(t)
	ctx := context.Background()
	loadPanel(t, m)

	path := filepath.Join(t.TempDir(), "sample.vcf")
	require.NoError(t, os.WriteFile(path, []byte(sampleVCF), 0o644))

	require.NoError(t, s.AddCase(ctx, model.Case{CaseID: "caseA", VCFPath: path, Individuals: individuals}))
	require.NoError(t, s.AddCase(ctx, model.Case{CaseID: "caseSV", VCFSVPath: "/missing/sv.vcf",
		Individuals: []model.Individual{{IndID: "sv1"}}}))

	n, err := m.UpdateProfiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	c, err := s.GetCase(ctx, "caseA")
	require.NoError(t, err)
	require.Len(t, c.Individuals, 2)
	assert.Equal(t, model.Profile{"AG", "GG", "TC"}, c.Individuals[0].Profile)
	assert.Equal(t, model.Profile{"GG", "GG", "TT"}, c.Individuals[1].Profile)
}

func TestStats(t *testing.T) {
	m, s := newMatcher(t)
	ctx := context.Background()

	require.NoError(t, s.AddCase(ctx, model.Case{CaseID: "caseA", Individuals: []model.Individual{
		{IndID: "ind1", Profile: model.Profile{"AG", "GG", "TC"}},
		{IndID: "ind2", IndIndex: 1, Profile: model.Profile{"GG", "GG", "TT"}},
	}}))
	require.NoError(t, s.AddCase(ctx, model.Case{CaseID: "caseB", Individuals: []model.Individual{
		{IndID: "ind3", Profile: model.Profile{"AG", "GG", "TC"}},
		{IndID: "ind4", IndIndex: 1},
	}}))

	sum, err := m.Stats(ctx, 0.9)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Profiles)
	assert.Equal(t, 3, sum.Pairs)
	assert.Equal(t, 1, sum.AboveThreshold)
	assert.InDelta(t, 5.0/9.0, sum.Mean, 1e-9)
	assert.InDelta(t, 1.0, sum.Max, 1e-9)
	assert.Greater(t, sum.StdDev, 0.0)
}

func TestStats_TooFewProfiles(t *testing.T) {
	m, _ := newMatcher(t)
	sum, err := m.Stats(context.Background(), 0.9)
	require.NoError(t, err)
	assert.Equal(t, Summary{}, sum)
}
