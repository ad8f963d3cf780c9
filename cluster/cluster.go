// Package cluster groups nearby incidents for the map's cluster layer.
package cluster

import (
	"math"

	"crimemap/incident"
)

const earthRadiusMeters = 6371000

func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const degToRad = math.Pi / 180
	lat1 *= degToRad
	lon1 *= degToRad
	lat2 *= degToRad
	lon2 *= degToRad
	dlat := lat2 - lat1
	dlon := lon2 - lon1
	a := math.Sin(dlat/2)*math.Sin(dlat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// Cluster is a group of incidents anchored at the centroid of its members.
type Cluster struct {
	Latitude    float64                 `json:"latitude"`
	Longitude   float64                 `json:"longitude"`
	Count       int                     `json:"count"`
	StatusCount map[incident.Status]int `json:"status_count"`
}

// Group clusters incidents by proximity: each incident joins the nearest
// existing cluster whose anchor lies within radiusMeters, otherwise it seeds
// a new one. Anchors are recomputed as member centroids. Deterministic for a
// given input order.
func Group(incidents []incident.Incident, radiusMeters float64) []Cluster {
	if len(incidents) == 0 {
		return nil
	}
	type working struct {
		members []incident.Incident
		lat     float64
		lon     float64
	}
	var clusters []working
	for _, inc := range incidents {
		bestIdx := -1
		bestDistance := math.MaxFloat64
		for i := range clusters {
			d := haversineMeters(inc.Latitude, inc.Longitude, clusters[i].lat, clusters[i].lon)
			if d > radiusMeters {
				continue
			}
			if d < bestDistance {
				bestDistance = d
				bestIdx = i
			}
		}
		if bestIdx == -1 {
			clusters = append(clusters, working{members: []incident.Incident{inc}, lat: inc.Latitude, lon: inc.Longitude})
			continue
		}
		c := &clusters[bestIdx]
		c.members = append(c.members, inc)
		c.lat = centroid(c.members, true)
		c.lon = centroid(c.members, false)
	}

	out := make([]Cluster, 0, len(clusters))
	for _, c := range clusters {
		out = append(out, Cluster{
			Latitude:    c.lat,
			Longitude:   c.lon,
			Count:       len(c.members),
			StatusCount: incident.CountByStatus(c.members),
		})
	}
	return out
}

func centroid(members []incident.Incident, useLat bool) float64 {
	var sum float64
	for _, m := range members {
		if useLat {
			sum += m.Latitude
		} else {
			sum += m.Longitude
		}
	}
	return sum / float64(len(members))
}
