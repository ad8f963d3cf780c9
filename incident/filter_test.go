package incident

import (
	"reflect"
	"testing"
)

func fixtureIncidents() []Incident {
	mk := func(year, month int, crimeType string, status Status) Incident {
		return Incident{Year: year, Month: month, CrimeType: crimeType, Status: status, Longitude: -0.1, Latitude: 51.5}
	}
	return []Incident{
		mk(2020, 1, "Bicycle theft", StatusOngoing),
		mk(2020, 3, "Burglary", StatusClosed),
		mk(2020, 5, "Bicycle theft", StatusClosed),
		mk(2019, 5, "Bicycle theft", StatusConcluded),
		mk(2020, 12, "Bicycle theft", StatusUnavailable),
	}
}

func TestFilterMatchesWindow(t *testing.T) {
	got := Filter(fixtureIncidents(), "Bicycle theft", 2020, 1, 6)
	if len(got) != 2 {
		t.Fatalf("got %d incidents, want 2", len(got))
	}
	if got[0].Month != 1 || got[1].Month != 5 {
		t.Errorf("order not preserved: months %d, %d", got[0].Month, got[1].Month)
	}
}

func TestFilterInclusiveBounds(t *testing.T) {
	records := fixtureIncidents()
	got := Filter(records, "Bicycle theft", 2020, 5, 12)
	if len(got) != 2 {
		t.Fatalf("got %d incidents, want 2 (months 5 and 12 inclusive)", len(got))
	}
	if got := Filter(records, "Bicycle theft", 2020, 5, 5); len(got) != 1 {
		t.Errorf("single-month window: got %d, want 1", len(got))
	}
}

func TestFilterInvertedWindowIsEmpty(t *testing.T) {
	got := Filter(fixtureIncidents(), "Bicycle theft", 2020, 9, 3)
	if len(got) != 0 {
		t.Fatalf("inverted window: got %d incidents, want 0", len(got))
	}
	if got == nil {
		t.Fatal("inverted window should return an empty slice, not nil")
	}
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	records := fixtureIncidents()
	before := append([]Incident(nil), records...)
	out := Filter(records, "Burglary", 2020, 1, 12)
	if !reflect.DeepEqual(records, before) {
		t.Fatal("input slice was mutated")
	}
	if len(out) != 1 {
		t.Fatalf("got %d, want 1", len(out))
	}
	out[0].CrimeType = "changed"
	if records[1].CrimeType != "Burglary" {
		t.Fatal("result shares backing array with input")
	}
}

func TestFilterIdempotent(t *testing.T) {
	records := fixtureIncidents()
	once := Filter(records, "Bicycle theft", 2020, 1, 12)
	twice := Filter(once, "Bicycle theft", 2020, 1, 12)
	if !reflect.DeepEqual(once, twice) {
		t.Fatal("filtering an already-filtered slice changed the result")
	}
}

func TestCountByStatus(t *testing.T) {
	counts := CountByStatus(fixtureIncidents())
	want := map[Status]int{
		StatusOngoing:     1,
		StatusClosed:      2,
		StatusConcluded:   1,
		StatusUnavailable: 1,
	}
	if !reflect.DeepEqual(counts, want) {
		t.Fatalf("CountByStatus = %v, want %v", counts, want)
	}
}
