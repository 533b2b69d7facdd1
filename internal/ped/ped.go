// Package ped reads PED family files.
package ped

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/inodb/vibe-freq/internal/model"
)

// Member is one row of a PED file.
type Member struct {
	FamilyID  string
	IndID     string
	FatherID  string
	MotherID  string
	Sex       model.Sex
	Phenotype string
}

// Family is the single family described by a PED file.
type Family struct {
	ID      string
	Members []Member
}

// ParseFile reads the PED file at path.
func ParseFile(path string) (*Family, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ped file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a whitespace-separated PED stream. Lines starting with '#' are
// skipped. A file describing more than one family is a *model.CaseError.
func Parse(r io.Reader) (*Family, error) {
	var fam *Family
	scanner := bufio.NewScanner(r)
	lineNumber := 0

	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 6 {
			return nil, fmt.Errorf("ped line %d: expected 6 columns, found %d", lineNumber, len(fields))
		}

		sex, err := strconv.Atoi(fields[4])
		if err != nil || sex < 0 || sex > 2 {
			sex = int(model.SexUnknown)
		}

		m := Member{
			FamilyID:  fields[0],
			IndID:     fields[1],
			FatherID:  fields[2],
			MotherID:  fields[3],
			Sex:       model.Sex(sex),
			Phenotype: fields[5],
		}

		if fam == nil {
			fam = &Family{ID: m.FamilyID}
		} else if fam.ID != m.FamilyID {
			return nil, &model.CaseError{
				CaseID:  fam.ID,
				Message: fmt.Sprintf("only one family per ped file is allowed, found %s and %s", fam.ID, m.FamilyID),
			}
		}
		fam.Members = append(fam.Members, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ped file: %w", err)
	}
	if fam == nil {
		return nil, &model.CaseError{Message: "ped file has no individuals"}
	}

	return fam, nil
}
