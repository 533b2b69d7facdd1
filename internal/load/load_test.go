package load

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-freq/internal/duckdb"
	"github.com/inodb/vibe-freq/internal/genome"
	"github.com/inodb/vibe-freq/internal/model"
	"github.com/inodb/vibe-freq/internal/profile"
	"github.com/inodb/vibe-freq/internal/store"
	"github.com/inodb/vibe-freq/internal/variant"
	"github.com/inodb/vibe-freq/internal/vcf"
)

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

var snvVCF = vcfText(
	"##fileformat=VCFv4.2",
	"#CHROM POS ID REF ALT QUAL FILTER INFO FORMAT mother father child",
	"1 880086 . T C 100 PASS . GT:GQ 0/1:60 0/0:60 0/1:60",
	"1 900000 . G A 100 PASS . GT:GQ 0/0:60 0/0:60 0/0:60",
	"1 950000 . A C,G 100 PASS . GT:GQ 1/2:60 0/0:60 0/1:60",
	"X 5000000 . C T 100 PASS . GT:GQ 0/0:60 1:60 0/0:60",
)

var svVCF = vcfText(
	"##fileformat=VCFv4.2",
	"#CHROM POS ID REF ALT QUAL FILTER INFO FORMAT mother father child",
	"1 10000 sv1 N <DEL> . PASS SVTYPE=DEL;END=15000;SVLEN=-5000 GT 0/1 0/0 0/1",
	"1 50000 sv2 N <DUP> . PASS SVTYPE=DUP;END=52000;SVLEN=2000 GT 0/1 0/0 0/0",
)

var unsortedVCF = vcfText(
	"##fileformat=VCFv4.2",
	"#CHROM POS ID REF ALT QUAL FILTER INFO FORMAT mother father child",
	"1 900 . T C 100 PASS . GT 0/1 0/0 0/1",
	"1 800 . G A 100 PASS . GT 0/1 0/0 0/1",
)

const familyPED = "fam1 mother 0 0 2 1\nfam1 father 0 0 1 1\nfam1 child father mother 1 2\n"

var testOptions = Options{
	Variant: variant.Options{
		Classify: variant.ClassifyOptions{GQThreshold: 20, Build: genome.GRCh37},
	},
	MaxWindow:     2000,
	CheckProfiles: true,
	HardThreshold: 0.95,
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func openStore(t *testing.T) *duckdb.Store {
	t.Helper()
	s, err := duckdb.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type fixture struct {
	snv, sv, unsorted, ped string
}

func newFixture(t *testing.T) fixture {
	dir := t.TempDir()
	return fixture{
		snv:      writeFile(t, dir, "case.vcf", snvVCF),
		sv:       writeFile(t, dir, "case.sv.vcf", svVCF),
		unsorted: writeFile(t, dir, "unsorted.vcf", unsortedVCF),
		ped:      writeFile(t, dir, "case.ped", familyPED),
	}
}

func TestLoad_SmallVariants(t *testing.T) {
	s := openStore(t)
	f := newFixture(t)
	ctx := context.Background()
	l := NewLoader(s, testOptions)

	c, err := l.Load(ctx, Request{VCFPath: f.snv, PedPath: f.ped})
	require.NoError(t, err)
	assert.Equal(t, "fam1", c.CaseID)
	assert.Equal(t, int64(4), c.NrVariants)
	assert.Equal(t, int64(0), c.NrSVVariants)

	stored, err := s.GetCase(ctx, "fam1")
	require.NoError(t, err)
	require.Len(t, stored.Individuals, 3)
	assert.Equal(t, model.SexFemale, stored.Individuals[0].Sex)
	assert.Equal(t, int64(4), stored.NrVariants)

	v, err := s.GetVariant(ctx, "1_880086_T_C")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, uint64(1), v.Observations)
	assert.Equal(t, uint64(0), v.Homozygote)
	assert.Equal(t, []string{"fam1"}, v.Families)

	none, err := s.GetVariant(ctx, "1_900000_G_A")
	require.NoError(t, err)
	assert.Nil(t, none)

	for _, id := range []string{"1_950000_A_C", "1_950000_A_G"} {
		v, err := s.GetVariant(ctx, id)
		require.NoError(t, err)
		assert.NotNil(t, v, id)
	}

	x, err := s.GetVariant(ctx, "X_5000000_C_T")
	require.NoError(t, err)
	require.NotNil(t, x)
	assert.Equal(t, uint64(1), x.Homozygote)
	assert.Equal(t, uint64(1), x.Hemizygote)
}

func TestLoad_StructuralVariants(t *testing.T) {
	s := openStore(t)
	f := newFixture(t)
	ctx := context.Background()

	c, err := NewLoader(s, testOptions).Load(ctx, Request{VCFPath: f.snv, SVPath: f.sv, PedPath: f.ped})
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.NrSVVariants)

	clusters, err := s.MatchClusters(ctx, store.ClusterKey{Chrom: "1", EndChrom: "1", SVType: "DEL"}, 10000, 15000)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, int64(9500), clusters[0].PosLeft)
	assert.Equal(t, []string{"fam1"}, clusters[0].Families)

	idents, err := s.IdentitiesByVariantID(ctx, "sv2")
	require.NoError(t, err)
	require.Len(t, idents, 1)
	assert.Equal(t, "fam1", idents[0].CaseID)
}

func TestLoad_TwoCasesThenDelete(t *testing.T) {
	s := openStore(t)
	f := newFixture(t)
	ctx := context.Background()
	opts := testOptions
	opts.CheckProfiles = false
	l := NewLoader(s, opts)

	_, err := l.Load(ctx, Request{VCFPath: f.snv, SVPath: f.sv, PedPath: f.ped})
	require.NoError(t, err)
	_, err = l.Load(ctx, Request{CaseID: "solo", VCFPath: f.snv, SVPath: f.sv})
	require.NoError(t, err)

	v, err := s.GetVariant(ctx, "1_880086_T_C")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v.Observations)
	assert.Equal(t, []string{"solo", "fam1"}, v.Families)

	require.NoError(t, l.Delete(ctx, "solo"))

	v, err = s.GetVariant(ctx, "1_880086_T_C")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v.Observations)
	assert.Equal(t, []string{"fam1"}, v.Families)

	clusters, err := s.MatchClusters(ctx, store.ClusterKey{Chrom: "1", EndChrom: "1", SVType: "DEL"}, 10000, 15000)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, uint64(1), clusters[0].Observations)
	assert.Equal(t, int64(10000), clusters[0].PosSum)

	require.NoError(t, l.Delete(ctx, "fam1"))
	v, err = s.GetVariant(ctx, "1_880086_T_C")
	require.NoError(t, err)
	assert.Nil(t, v)
	clusters, err = s.MatchClusters(ctx, store.ClusterKey{Chrom: "1", EndChrom: "1", SVType: "DEL"}, 10000, 15000)
	require.NoError(t, err)
	assert.Empty(t, clusters)

	cases, err := s.Cases(ctx)
	require.NoError(t, err)
	assert.Empty(t, cases)
}

var overlappingSVVCF = vcfText(
	"##fileformat=VCFv4.2",
	"#CHROM POS ID REF ALT QUAL FILTER INFO FORMAT s1",
	"1 1000 x1 N <DEL> . PASS SVTYPE=DEL;END=11000;SVLEN=-10000 GT 0/1",
	"1 5000000 x2 N <DEL> . PASS SVTYPE=DEL;END=5010000;SVLEN=-10000 GT 0/1",
	"1 5000500 x3 N <DEL> . PASS SVTYPE=DEL;END=5010500;SVLEN=-10000 GT 0/1",
)

var sharedSVVCF = vcfText(
	"##fileformat=VCFv4.2",
	"#CHROM POS ID REF ALT QUAL FILTER INFO FORMAT s1",
	"1 1000 y1 N <DEL> . PASS SVTYPE=DEL;END=11000;SVLEN=-10000 GT 0/1",
)

func TestDelete_OverlappingSVsOfOneCase(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	dir := t.TempDir()
	l := NewLoader(s, testOptions)
	key := store.ClusterKey{Chrom: "1", EndChrom: "1", SVType: "DEL"}

	x, err := l.Load(ctx, Request{CaseID: "caseX", SVPath: writeFile(t, dir, "x.sv.vcf", overlappingSVVCF)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), x.NrSVVariants)
	_, err = l.Load(ctx, Request{CaseID: "caseY", SVPath: writeFile(t, dir, "y.sv.vcf", sharedSVVCF)})
	require.NoError(t, err)

	own, err := s.MatchClusters(ctx, key, 5000500, 5010500)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, uint64(1), own[0].Observations, "second overlapping call of caseX is not counted")

	require.NoError(t, l.Delete(ctx, "caseX"))

	shared, err := s.MatchClusters(ctx, key, 1000, 11000)
	require.NoError(t, err)
	require.Len(t, shared, 1)
	c := shared[0]
	assert.Equal(t, uint64(1), c.Observations)
	assert.Equal(t, int64(1000), c.PosSum)
	assert.Equal(t, int64(11000), c.EndSum)
	assert.Equal(t, []string{"caseY"}, c.Families)
	assert.Equal(t, int64(0), c.PosLeft)
	assert.Equal(t, int64(2000), c.PosRight)
	assert.Equal(t, int64(10000), c.EndLeft)
	assert.Equal(t, int64(12000), c.EndRight)

	idents, err := s.ClusterIdentities(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.Identity{{ClusterID: c.ID, VariantID: "y1", CaseID: "caseY", Pos: 1000, End: 11000}}, idents)

	own, err = s.MatchClusters(ctx, key, 5000000, 5010000)
	require.NoError(t, err)
	assert.Empty(t, own)
	for _, id := range []string{"x1", "x2", "x3"} {
		idents, err := s.IdentitiesByVariantID(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, idents, id)
	}
}

func TestLoad_ValidationFailsFast(t *testing.T) {
	s := openStore(t)
	f := newFixture(t)
	ctx := context.Background()
	l := NewLoader(s, testOptions)

	txt := writeFile(t, t.TempDir(), "case.txt", snvVCF)
	badPed := writeFile(t, t.TempDir(), "bad.ped", "fam1 stranger 0 0 1 1\n")
	twoFams := writeFile(t, t.TempDir(), "two.ped", "fam1 a 0 0 1 1\nfam2 b 0 0 1 1\n")

	tests := []struct {
		name  string
		req   Request
		check func(t *testing.T, err error)
	}{
		{"missing file", Request{CaseID: "c", VCFPath: "/no/such/file.vcf"}, func(t *testing.T, err error) {
			var e *model.IOError
			assert.ErrorAs(t, err, &e)
		}},
		{"wrong extension", Request{CaseID: "c", VCFPath: txt}, func(t *testing.T, err error) {
			var e *model.IOError
			require.ErrorAs(t, err, &e)
			assert.Contains(t, e.Message, "extension")
		}},
		{"no files", Request{CaseID: "c"}, func(t *testing.T, err error) {
			var e *model.CaseError
			assert.ErrorAs(t, err, &e)
		}},
		{"no case id", Request{VCFPath: f.snv}, func(t *testing.T, err error) {
			var e *model.CaseError
			assert.ErrorAs(t, err, &e)
		}},
		{"individual not in vcf", Request{VCFPath: f.snv, PedPath: badPed}, func(t *testing.T, err error) {
			var e *model.CaseError
			require.ErrorAs(t, err, &e)
			assert.Contains(t, e.Message, "stranger")
		}},
		{"two families", Request{VCFPath: f.snv, PedPath: twoFams}, func(t *testing.T, err error) {
			var e *model.CaseError
			assert.ErrorAs(t, err, &e)
		}},
		{"comma in case id", Request{CaseID: "a,b", VCFPath: f.snv}, func(t *testing.T, err error) {
			var e *model.CaseError
			require.ErrorAs(t, err, &e)
			assert.Contains(t, e.Message, "comma")
		}},
		{"unsorted", Request{CaseID: "c", VCFPath: f.unsorted}, func(t *testing.T, err error) {
			var e *model.VcfError
			assert.ErrorAs(t, err, &e)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Load(ctx, tt.req)
			require.Error(t, err)
			tt.check(t, err)

			cases, err := s.Cases(ctx)
			require.NoError(t, err)
			assert.Empty(t, cases)
			chroms, err := s.VariantChromosomes(ctx)
			require.NoError(t, err)
			assert.Empty(t, chroms)
		})
	}
}

func TestLoad_DuplicateCase(t *testing.T) {
	s := openStore(t)
	f := newFixture(t)
	ctx := context.Background()
	l := NewLoader(s, testOptions)

	_, err := l.Load(ctx, Request{VCFPath: f.snv, PedPath: f.ped})
	require.NoError(t, err)
	_, err = l.Load(ctx, Request{VCFPath: f.snv, PedPath: f.ped})
	var e *model.CaseError
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "fam1", e.CaseID)

	v, err := s.GetVariant(ctx, "1_880086_T_C")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v.Observations)
}

// failingStore fails AddVariants after the first call and SaveObservation
// after saveLimit SVs (default 1).
type failingStore struct {
	*duckdb.Store
	adds, saves int
	saveLimit   int
}

var errBoom = errors.New("boom")

func (f *failingStore) AddVariants(ctx context.Context, vs []model.Variant, caseID string) error {
	f.adds++
	if f.adds > 1 {
		return errBoom
	}
	return f.Store.AddVariants(ctx, vs, caseID)
}

func (f *failingStore) SaveObservation(ctx context.Context, c *model.Cluster, created bool, ident model.Identity) error {
	f.saves++
	if f.saves > max(f.saveLimit, 1) {
		return errBoom
	}
	return f.Store.SaveObservation(ctx, c, created, ident)
}

func TestLoad_RollbackOnWriteFailure(t *testing.T) {
	s := openStore(t)
	f := newFixture(t)
	ctx := context.Background()
	opts := testOptions
	opts.BatchSize = 1
	l := NewLoader(&failingStore{Store: s}, opts)

	_, err := l.Load(ctx, Request{VCFPath: f.snv, PedPath: f.ped})
	require.ErrorIs(t, err, errBoom)

	v, err := s.GetVariant(ctx, "1_880086_T_C")
	require.NoError(t, err)
	assert.Nil(t, v)
	c, err := s.GetCase(ctx, "fam1")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestLoad_RollbackWithOverlappingSVs(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	dir := t.TempDir()
	key := store.ClusterKey{Chrom: "1", EndChrom: "1", SVType: "DEL"}

	_, err := NewLoader(s, testOptions).Load(ctx, Request{CaseID: "caseY", SVPath: writeFile(t, dir, "y.sv.vcf", sharedSVVCF)})
	require.NoError(t, err)

	// x1 joins caseY's cluster, x3 overlaps x2 and is not counted, x4 fails.
	failing := overlappingSVVCF + "1\t9000000\tx4\tN\t<DEL>\t.\tPASS\tSVTYPE=DEL;END=9010000;SVLEN=-10000\tGT\t0/1\n"
	l := NewLoader(&failingStore{Store: s, saveLimit: 2}, testOptions)
	_, err = l.Load(ctx, Request{CaseID: "caseX", SVPath: writeFile(t, dir, "x.sv.vcf", failing)})
	require.ErrorIs(t, err, errBoom)

	shared, err := s.MatchClusters(ctx, key, 1000, 11000)
	require.NoError(t, err)
	require.Len(t, shared, 1)
	assert.Equal(t, uint64(1), shared[0].Observations)
	assert.Equal(t, int64(1000), shared[0].PosSum)
	assert.Equal(t, int64(11000), shared[0].EndSum)
	assert.Equal(t, []string{"caseY"}, shared[0].Families)

	for _, pos := range []int64{5000000, 9000000} {
		left, err := s.MatchClusters(ctx, key, pos, pos+10000)
		require.NoError(t, err)
		assert.Empty(t, left, pos)
	}
	c, err := s.GetCase(ctx, "caseX")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestUpdate(t *testing.T) {
	s := openStore(t)
	f := newFixture(t)
	ctx := context.Background()
	l := NewLoader(s, testOptions)

	_, err := l.Load(ctx, Request{VCFPath: f.snv, PedPath: f.ped})
	require.NoError(t, err)

	_, err = l.Update(ctx, Request{CaseID: "fam1", VCFPath: f.snv})
	var ce *model.CaseError
	require.ErrorAs(t, err, &ce)

	c, err := l.Update(ctx, Request{CaseID: "fam1", SVPath: f.sv})
	require.NoError(t, err)
	assert.Equal(t, f.sv, c.VCFSVPath)
	assert.Equal(t, int64(4), c.NrVariants)
	assert.Equal(t, int64(2), c.NrSVVariants)
	assert.Len(t, c.Individuals, 3)

	_, err = l.Update(ctx, Request{CaseID: "fam1", SVPath: f.sv})
	require.ErrorAs(t, err, &ce)

	_, err = l.Update(ctx, Request{CaseID: "nobody", SVPath: f.sv})
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "case not found", ce.Message)
}

func TestUpdate_RollbackOnWriteFailure(t *testing.T) {
	s := openStore(t)
	f := newFixture(t)
	ctx := context.Background()

	_, err := NewLoader(s, testOptions).Load(ctx, Request{VCFPath: f.snv, PedPath: f.ped})
	require.NoError(t, err)

	l := NewLoader(&failingStore{Store: s}, testOptions)
	_, err = l.Update(ctx, Request{CaseID: "fam1", SVPath: f.sv})
	require.ErrorIs(t, err, errBoom)

	clusters, err := s.MatchClusters(ctx, store.ClusterKey{Chrom: "1", EndChrom: "1", SVType: "DEL"}, 10000, 15000)
	require.NoError(t, err)
	assert.Empty(t, clusters)

	c, err := s.GetCase(ctx, "fam1")
	require.NoError(t, err)
	assert.Empty(t, c.VCFSVPath)
	assert.Equal(t, int64(0), c.NrSVVariants)
}

func TestDelete_Unknown(t *testing.T) {
	s := openStore(t)
	err := NewLoader(s, testOptions).Delete(context.Background(), "nobody")
	var ce *model.CaseError
	assert.ErrorAs(t, err, &ce)
}

func TestLoad_ProfileDuplicate(t *testing.T) {
	s := openStore(t)
	f := newFixture(t)
	ctx := context.Background()

	panel := vcfText(
		"##fileformat=VCFv4.2",
		"#CHROM POS ID REF ALT QUAL FILTER INFO",
		"1 880086 rs1 T C . PASS AF=0.4",
		"1 950000 rs2 A C . PASS AF=0.3",
	)
	p, err := vcf.NewParserFromReader(strings.NewReader(panel))
	require.NoError(t, err)
	_, err = profile.NewMatcher(s).LoadPanel(ctx, p, profile.DefaultMinMAF)
	require.NoError(t, err)

	l := NewLoader(s, testOptions)
	_, err = l.Load(ctx, Request{VCFPath: f.snv, PedPath: f.ped})
	require.NoError(t, err)

	stored, err := s.GetCase(ctx, "fam1")
	require.NoError(t, err)
	assert.Equal(t, model.Profile{"TC", "AC"}, stored.Individuals[0].Profile)

	_, err = l.Load(ctx, Request{CaseID: "again", VCFPath: f.snv})
	var pe *model.ProfileError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "fam1", pe.MatchCase)
	assert.Equal(t, 1.0, pe.Similarity)

	again, err := s.GetCase(ctx, "again")
	require.NoError(t, err)
	assert.Nil(t, again)
}
