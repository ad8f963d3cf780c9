package incident

import (
	"errors"
	"testing"
)

func floatptr(f float64) *float64 { return &f }

func TestParseMonth(t *testing.T) {
	tests := []struct {
		raw       string
		wantYear  int
		wantMonth int
		wantErr   bool
	}{
		{"2020-07", 2020, 7, false},
		{"2019-12", 2019, 12, false},
		{" 2021-01 ", 2021, 1, false},
		{"2020", 0, 0, true},
		{"2020-13", 0, 0, true},
		{"2020-00", 0, 0, true},
		{"07-2020", 0, 0, true},
		{"", 0, 0, true},
		{"twenty-07", 0, 0, true},
	}
	for _, tc := range tests {
		year, month, err := ParseMonth(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseMonth(%q): want error, got %d-%d", tc.raw, year, month)
				continue
			}
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Errorf("ParseMonth(%q): error %v is not a FormatError", tc.raw, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMonth(%q): unexpected error %v", tc.raw, err)
			continue
		}
		if year != tc.wantYear || month != tc.wantMonth {
			t.Errorf("ParseMonth(%q) = %d, %d, want %d, %d", tc.raw, year, month, tc.wantYear, tc.wantMonth)
		}
	}
}

func TestNormalize(t *testing.T) {
	rec, ok, err := Normalize(RawRecord{
		Month:       "2020-03",
		Longitude:   floatptr(-0.12),
		Latitude:    floatptr(51.5),
		CrimeType:   "Bicycle theft",
		OutcomeText: strptr("Under investigation"),
	})
	if err != nil || !ok {
		t.Fatalf("Normalize: ok=%v err=%v", ok, err)
	}
	if rec.Year != 2020 || rec.Month != 3 {
		t.Errorf("Normalize month = %d-%d, want 2020-3", rec.Year, rec.Month)
	}
	if rec.Status != StatusOngoing {
		t.Errorf("Normalize status = %s, want %s", rec.Status, StatusOngoing)
	}
	if rec.Longitude != -0.12 || rec.Latitude != 51.5 {
		t.Errorf("Normalize coords = %v, %v", rec.Longitude, rec.Latitude)
	}
}

func TestNormalizeDropsMissingCoordinates(t *testing.T) {
	raws := []RawRecord{
		{Month: "2020-03", Latitude: floatptr(51.5), CrimeType: "Burglary"},
		{Month: "2020-03", Longitude: floatptr(-0.12), CrimeType: "Burglary"},
		{Month: "2020-03", CrimeType: "Burglary"},
	}
	for i, raw := range raws {
		if _, ok, err := Normalize(raw); ok || err != nil {
			t.Errorf("record %d: want dropped without error, got ok=%v err=%v", i, ok, err)
		}
	}
}

func TestNormalizeMalformedMonth(t *testing.T) {
	_, ok, err := Normalize(RawRecord{
		Month:     "March 2020",
		Longitude: floatptr(-0.12),
		Latitude:  floatptr(51.5),
		CrimeType: "Burglary",
	})
	if ok || err == nil {
		t.Fatalf("want FormatError, got ok=%v err=%v", ok, err)
	}
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("error %v is not a FormatError", err)
	}
	if fe.Field != "month" {
		t.Errorf("FormatError field = %q, want month", fe.Field)
	}
}

func TestNormalizeBlankOutcomeBecomesNil(t *testing.T) {
	rec, ok, err := Normalize(RawRecord{
		Month:       "2020-03",
		Longitude:   floatptr(-0.12),
		Latitude:    floatptr(51.5),
		CrimeType:   "Burglary",
		OutcomeText: strptr("   "),
	})
	if err != nil || !ok {
		t.Fatalf("Normalize: ok=%v err=%v", ok, err)
	}
	if rec.OutcomeText != nil {
		t.Errorf("blank outcome kept as %q", *rec.OutcomeText)
	}
	if rec.Status != StatusUnavailable {
		t.Errorf("status = %s, want %s", rec.Status, StatusUnavailable)
	}
}
