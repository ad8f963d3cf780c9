package incident

import (
	"fmt"
	"strconv"
	"strings"
)

// RawRecord mirrors one row of a police.uk street-level crime extract.
// Coordinates and outcome text are nullable in the source data.
type RawRecord struct {
	Month       string
	Longitude   *float64
	Latitude    *float64
	CrimeType   string
	OutcomeText *string
}

// Incident is the canonical in-memory shape used by filtering and rendering.
type Incident struct {
	Year        int     `json:"year"`
	Month       int     `json:"month"`
	Longitude   float64 `json:"longitude"`
	Latitude    float64 `json:"latitude"`
	CrimeType   string  `json:"crime_type"`
	OutcomeText *string `json:"outcome,omitempty"`
	Status      Status  `json:"status"`
}

// FormatError reports a field whose raw value could not be parsed.
type FormatError struct {
	Field string
	Value string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed %s value %q", e.Field, e.Value)
}

// ParseMonth splits a "YYYY-MM" month string into year and month.
func ParseMonth(raw string) (int, int, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), "-", 2)
	if len(parts) != 2 {
		return 0, 0, &FormatError{Field: "month", Value: raw}
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, &FormatError{Field: "month", Value: raw}
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, &FormatError{Field: "month", Value: raw}
	}
	return year, month, nil
}

// Normalize converts a raw row into an Incident. The second return is false
// when the row lacks a coordinate and should be dropped; a FormatError is
// returned for an unparseable month.
func Normalize(raw RawRecord) (Incident, bool, error) {
	if raw.Longitude == nil || raw.Latitude == nil {
		return Incident{}, false, nil
	}
	year, month, err := ParseMonth(raw.Month)
	if err != nil {
		return Incident{}, false, err
	}
	outcome := raw.OutcomeText
	if outcome != nil && strings.TrimSpace(*outcome) == "" {
		outcome = nil
	}
	return Incident{
		Year:        year,
		Month:       month,
		Longitude:   *raw.Longitude,
		Latitude:    *raw.Latitude,
		CrimeType:   strings.TrimSpace(raw.CrimeType),
		OutcomeText: outcome,
		Status:      Classify(outcome),
	}, true, nil
}
