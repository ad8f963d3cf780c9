package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"crimemap/incident"
)

const sampleExtract = `Crime ID,Month,Reported by,Falls within,Longitude,Latitude,Location,LSOA code,LSOA name,Crime type,Last outcome category,Context
abc123,2020-03,Metropolitan Police,Metropolitan Police,-0.12,51.50,On or near Park Road,E01000001,Westminster 001A,Bicycle theft,Under investigation,
def456,2020-03,Metropolitan Police,Metropolitan Police,,,On or near High Street,E01000002,Westminster 001B,Bicycle theft,Under investigation,
ghi789,2020-XX,Metropolitan Police,Metropolitan Police,-0.13,51.51,On or near Station Approach,E01000003,Westminster 001C,Burglary,Unable to prosecute suspect,
jkl012,2020-04,Metropolitan Police,Metropolitan Police,-0.14,51.52,On or near Supermarket,E01000004,Westminster 001D,Burglary,,
`

func TestReadNormalizesRows(t *testing.T) {
	incidents, summary, err := Read(strings.NewReader(sampleExtract))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if summary.Rows != 4 || summary.Kept != 2 || summary.Dropped != 1 || summary.Malformed != 1 {
		t.Fatalf("summary = %+v, want rows=4 kept=2 dropped=1 malformed=1", summary)
	}
	if len(incidents) != 2 {
		t.Fatalf("got %d incidents, want 2", len(incidents))
	}
	first := incidents[0]
	if first.CrimeType != "Bicycle theft" || first.Year != 2020 || first.Month != 3 {
		t.Errorf("first incident = %+v", first)
	}
	if first.Status != incident.StatusOngoing {
		t.Errorf("first status = %s, want Ongoing", first.Status)
	}
	second := incidents[1]
	if second.OutcomeText != nil {
		t.Errorf("empty outcome cell kept as %q", *second.OutcomeText)
	}
	if second.Status != incident.StatusUnavailable {
		t.Errorf("second status = %s, want Unavailable", second.Status)
	}
}

func TestReadMissingColumn(t *testing.T) {
	headerOnly := "Crime ID,Month,Longitude,Latitude,Crime type\n"
	if _, _, err := Read(strings.NewReader(headerOnly)); err == nil {
		t.Fatal("want error for missing outcome column")
	} else if !strings.Contains(err.Error(), "Last outcome category") {
		t.Errorf("error %q does not name the missing column", err)
	}
}

func TestReadEmptyInput(t *testing.T) {
	if _, _, err := Read(strings.NewReader("")); err == nil {
		t.Fatal("want error for empty input")
	}
}

func TestReadBadCoordinateCountedMalformed(t *testing.T) {
	data := "Month,Longitude,Latitude,Crime type,Last outcome category\n" +
		"2020-03,not-a-number,51.50,Burglary,Under investigation\n"
	incidents, summary, err := Read(strings.NewReader(data))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(incidents) != 0 || summary.Malformed != 1 {
		t.Fatalf("summary = %+v, want malformed=1 and no incidents", summary)
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "2020-03-metropolitan-street.csv")
	if err := os.WriteFile(path, []byte(sampleExtract), 0o644); err != nil {
		t.Fatal(err)
	}
	incidents, summary, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(incidents) != 2 || summary.Kept != 2 {
		t.Fatalf("got %d incidents, summary %+v", len(incidents), summary)
	}

	if _, _, err := ReadFile(filepath.Join(dir, "missing.csv")); err == nil {
		t.Fatal("want error for missing file")
	}
}
