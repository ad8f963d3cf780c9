// Package ingest decodes police.uk street-level crime CSV extracts into
// normalized incidents.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"crimemap/incident"
)

// Expected column headers. Extract files carry more columns (Crime ID,
// Reported by, LSOA code, ...) which are ignored.
const (
	colMonth     = "Month"
	colLongitude = "Longitude"
	colLatitude  = "Latitude"
	colCrimeType = "Crime type"
	colOutcome   = "Last outcome category"
)

// Summary reports what happened to the rows of one extract file.
type Summary struct {
	Rows      int `json:"rows"`
	Kept      int `json:"kept"`
	Dropped   int `json:"dropped"`
	Malformed int `json:"malformed"`
}

// ReadFile decodes and normalizes a whole extract file.
func ReadFile(path string) ([]incident.Incident, Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("open extract: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read decodes CSV rows from r, normalizing each into an incident. Rows
// without coordinates are dropped and counted; rows with an unparseable
// month are counted as malformed and skipped. A missing required header is
// an error.
func Read(r io.Reader) ([]incident.Incident, Summary, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, Summary{}, fmt.Errorf("read header: %w", err)
	}
	cols, err := mapColumns(header)
	if err != nil {
		return nil, Summary{}, err
	}

	var (
		incidents []incident.Incident
		summary   Summary
	)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, summary, fmt.Errorf("read row: %w", err)
		}
		summary.Rows++

		raw, err := rawFromRow(row, cols)
		if err != nil {
			summary.Malformed++
			continue
		}
		inc, ok, err := incident.Normalize(raw)
		if err != nil {
			summary.Malformed++
			continue
		}
		if !ok {
			summary.Dropped++
			continue
		}
		summary.Kept++
		incidents = append(incidents, inc)
	}
	return incidents, summary, nil
}

type columnIndex struct {
	month     int
	longitude int
	latitude  int
	crimeType int
	outcome   int
}

func mapColumns(header []string) (columnIndex, error) {
	idx := columnIndex{month: -1, longitude: -1, latitude: -1, crimeType: -1, outcome: -1}
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case colMonth:
			idx.month = i
		case colLongitude:
			idx.longitude = i
		case colLatitude:
			idx.latitude = i
		case colCrimeType:
			idx.crimeType = i
		case colOutcome:
			idx.outcome = i
		}
	}
	for name, pos := range map[string]int{
		colMonth:     idx.month,
		colLongitude: idx.longitude,
		colLatitude:  idx.latitude,
		colCrimeType: idx.crimeType,
		colOutcome:   idx.outcome,
	} {
		if pos < 0 {
			return idx, fmt.Errorf("missing column %q", name)
		}
	}
	return idx, nil
}

func rawFromRow(row []string, cols columnIndex) (incident.RawRecord, error) {
	raw := incident.RawRecord{
		Month:     field(row, cols.month),
		CrimeType: field(row, cols.crimeType),
	}
	lng, err := parseCoordinate(field(row, cols.longitude))
	if err != nil {
		return raw, err
	}
	lat, err := parseCoordinate(field(row, cols.latitude))
	if err != nil {
		return raw, err
	}
	raw.Longitude = lng
	raw.Latitude = lat
	if outcome := field(row, cols.outcome); strings.TrimSpace(outcome) != "" {
		trimmed := strings.TrimSpace(outcome)
		raw.OutcomeText = &trimmed
	}
	return raw, nil
}

func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// parseCoordinate treats an empty cell as absent rather than malformed.
func parseCoordinate(raw string) (*float64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return nil, fmt.Errorf("bad coordinate %q: %w", raw, err)
	}
	return &v, nil
}
