package ped

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-freq/internal/model"
)

func TestParse(t *testing.T) {
	in := `#family	ind	father	mother	sex	pheno
fam1	proband	father	mother	1	2
fam1	mother	0	0	2	1
fam1	father	0	0	1	1
`
	fam, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, "fam1", fam.ID)
	require.Len(t, fam.Members, 3)
	assert.Equal(t, "proband", fam.Members[0].IndID)
	assert.Equal(t, model.SexMale, fam.Members[0].Sex)
	assert.Equal(t, "father", fam.Members[0].FatherID)
	assert.Equal(t, model.SexFemale, fam.Members[1].Sex)
}

func TestParse_MultipleFamilies(t *testing.T) {
	in := "fam1 a 0 0 1 1\nfam2 b 0 0 2 1\n"
	_, err := Parse(strings.NewReader(in))
	require.Error(t, err)
	var ce *model.CaseError
	assert.ErrorAs(t, err, &ce)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse(strings.NewReader("fam1 a 0 0\n"))
	assert.ErrorContains(t, err, "expected 6 columns")

	_, err = Parse(strings.NewReader("# only a comment\n"))
	var ce *model.CaseError
	assert.ErrorAs(t, err, &ce)
}

func TestParse_UnknownSex(t *testing.T) {
	fam, err := Parse(strings.NewReader("fam1 a 0 0 other 1\n"))
	require.NoError(t, err)
	assert.Equal(t, model.SexUnknown, fam.Members[0].Sex)
}
