package incident

// Filter returns the incidents matching the crime type, year, and inclusive
// month window. The result is a new slice preserving input order; the input
// is never mutated. A window where monthFrom > monthTo simply matches
// nothing.
func Filter(records []Incident, crimeType string, year, monthFrom, monthTo int) []Incident {
	out := make([]Incident, 0, len(records))
	for _, rec := range records {
		if rec.CrimeType != crimeType {
			continue
		}
		if rec.Year != year {
			continue
		}
		if rec.Month < monthFrom || rec.Month > monthTo {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// CountByStatus tallies incidents per status bucket.
func CountByStatus(records []Incident) map[Status]int {
	counts := make(map[Status]int, len(CanonicalOrder))
	for _, rec := range records {
		counts[rec.Status]++
	}
	return counts
}
