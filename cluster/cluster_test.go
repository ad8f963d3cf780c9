package cluster

import (
	"math"
	"testing"

	"crimemap/incident"
)

func at(lat, lon float64, status incident.Status) incident.Incident {
	return incident.Incident{Latitude: lat, Longitude: lon, CrimeType: "Burglary", Status: status}
}

func TestHaversineMeters(t *testing.T) {
	// Charing Cross to St Paul's is roughly 2.3km.
	d := haversineMeters(51.5074, -0.1278, 51.5138, -0.0984)
	if d < 2100 || d > 2500 {
		t.Fatalf("distance = %.0f m, want roughly 2300", d)
	}
	if d := haversineMeters(51.5, -0.1, 51.5, -0.1); d != 0 {
		t.Fatalf("zero distance = %f", d)
	}
}

func TestGroupMergesNearbyIncidents(t *testing.T) {
	incidents := []incident.Incident{
		at(51.5000, -0.1000, incident.StatusOngoing),
		at(51.5001, -0.1001, incident.StatusClosed), // ~13m away
		at(51.6000, -0.1000, incident.StatusClosed), // ~11km away
	}
	clusters := Group(incidents, 300)
	if len(clusters) != 2 {
		t.Fatalf("got %d clusters, want 2", len(clusters))
	}
	first := clusters[0]
	if first.Count != 2 {
		t.Fatalf("first cluster count = %d, want 2", first.Count)
	}
	if first.StatusCount[incident.StatusOngoing] != 1 || first.StatusCount[incident.StatusClosed] != 1 {
		t.Errorf("first cluster status counts = %v", first.StatusCount)
	}
	wantLat := (51.5000 + 51.5001) / 2
	if math.Abs(first.Latitude-wantLat) > 1e-9 {
		t.Errorf("centroid lat = %f, want %f", first.Latitude, wantLat)
	}
	if clusters[1].Count != 1 {
		t.Errorf("second cluster count = %d, want 1", clusters[1].Count)
	}
}

func TestGroupEmptyInput(t *testing.T) {
	if got := Group(nil, 300); got != nil {
		t.Fatalf("Group(nil) = %v, want nil", got)
	}
}

func TestGroupZeroRadiusKeepsSingletons(t *testing.T) {
	incidents := []incident.Incident{
		at(51.5000, -0.1000, incident.StatusOngoing),
		at(51.5001, -0.1001, incident.StatusClosed),
	}
	clusters := Group(incidents, 0)
	if len(clusters) != 2 {
		t.Fatalf("got %d clusters, want 2", len(clusters))
	}
}
