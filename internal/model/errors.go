package model

import "fmt"

// CaseError reports a problem with case identity or family metadata.
type CaseError struct {
	CaseID  string
	Message string
}

func (e *CaseError) Error() string {
	if e.CaseID == "" {
		return fmt.Sprintf("case error: %s", e.Message)
	}
	return fmt.Sprintf("case error (%s): %s", e.CaseID, e.Message)
}

// VcfError reports an input VCF that cannot be loaded.
type VcfError struct {
	Path    string
	Line    int
	Message string
}

func (e *VcfError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("vcf error in %s at line %d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("vcf error in %s: %s", e.Path, e.Message)
}

// ProfileError reports that a sample matches an already stored sample.
type ProfileError struct {
	IndID      string
	MatchCase  string
	MatchInd   string
	Similarity float64
}

func (e *ProfileError) Error() string {
	return fmt.Sprintf("profile error: individual %s matches %s in case %s (similarity %.3f)",
		e.IndID, e.MatchInd, e.MatchCase, e.Similarity)
}

// IOError reports a missing or unusable input file.
type IOError struct {
	Path    string
	Message string
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io error: %s: %s", e.Path, e.Message)
}
