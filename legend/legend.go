// Package legend assigns map colors and labels to incident status buckets.
package legend

import (
	"sort"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"crimemap/incident"
)

// Palette is the fixed color cycle used for the map legend. Entries are
// assigned in array order to statuses sorted by ascending count.
var Palette = []string{"#e41a1c", "#377eb8", "#4daf4a", "#984ea3"}

// Entry pairs a status with its resolved color and display label.
type Entry struct {
	Status incident.Status `json:"status"`
	Color  string          `json:"color"`
	Label  string          `json:"label"`
	Count  int             `json:"count"`
}

var labelPrinter = message.NewPrinter(language.BritishEnglish)

// Assign builds the legend for the given status counts. Statuses with a zero
// count are omitted; entries are ordered by ascending count, ties broken by
// the canonical category order. Colors come from Palette, truncated to the
// number of statuses present.
func Assign(statusCounts map[incident.Status]int) []Entry {
	entries := make([]Entry, 0, len(statusCounts))
	for _, status := range incident.CanonicalOrder {
		count, ok := statusCounts[status]
		if !ok || count == 0 {
			continue
		}
		entries = append(entries, Entry{Status: status, Count: count})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Count < entries[j].Count
	})
	for i := range entries {
		entries[i].Color = Palette[i%len(Palette)]
		entries[i].Label = labelPrinter.Sprintf("%s (n=%d)", string(entries[i].Status), entries[i].Count)
	}
	return entries
}

// ColorFor resolves the color assigned to a status by Assign, falling back
// to the last palette entry for statuses missing from the legend.
func ColorFor(entries []Entry, status incident.Status) string {
	for _, e := range entries {
		if e.Status == status {
			return e.Color
		}
	}
	return Palette[len(Palette)-1]
}
