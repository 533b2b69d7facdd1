package model

// PrependFamily puts caseID first and keeps at most MaxFamilies entries.
func PrependFamily(families []string, caseID string) []string {
	out := make([]string, 0, min(len(families)+1, MaxFamilies))
	out = append(out, caseID)
	for _, f := range families {
		if len(out) == MaxFamilies {
			break
		}
		out = append(out, f)
	}
	return out
}

// RemoveFamily drops every occurrence of caseID.
func RemoveFamily(families []string, caseID string) []string {
	out := make([]string, 0, len(families))
	for _, f := range families {
		if f != caseID {
			out = append(out, f)
		}
	}
	return out
}

// HasFamily reports whether caseID is in the list.
func HasFamily(families []string, caseID string) bool {
	for _, f := range families {
		if f == caseID {
			return true
		}
	}
	return false
}
