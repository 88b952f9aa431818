// Package pattern groups classified, action-labeled occurrences by
// (entity, action, time window) and scores how consistently each pair
// happens in its dominant window.
package pattern

import (
	"sort"
	"time"

	"github.com/runger/habitd/internal/window"
)

// Occurrence is one manual action placed in time: the output of the
// classify/extract/parse stages, the input to aggregation.
type Occurrence struct {
	EntityID string
	Action   string
	At       time.Time
}

// Candidate is an (entity, action) pair that passed the minimum-occurrence
// and consistency thresholds, with its dominant time window.
type Candidate struct {
	EntityID    string
	Action      string
	Window      string // dominant window label, "HH:MM"
	WindowCount int    // occurrences inside the dominant window
	Total       int    // all occurrences of this (entity, action)
	Consistency float64
	Hours       []int // observed hours, in input order
	Last        time.Time
}

type group struct {
	entityID string
	action   string
	windows  map[string]int
	hours    []int
	total    int
	last     time.Time
}

// Aggregate buckets occurrences onto the time grid, groups them by
// (entity, action), and returns the pairs whose dominant-window share meets
// the thresholds, ordered by consistency then total descending with
// (entityID, action) as the deterministic tiebreak.
//
// Groups only ever contain at least one occurrence, so the consistency
// ratio is always well defined.
func Aggregate(occs []Occurrence, widthMinutes, minOccurrences int, threshold float64) []Candidate {
	groups := make(map[[2]string]*group)
	var order [][2]string

	for _, occ := range occs {
		key := [2]string{occ.EntityID, occ.Action}
		g, ok := groups[key]
		if !ok {
			g = &group{
				entityID: occ.EntityID,
				action:   occ.Action,
				windows:  make(map[string]int),
			}
			groups[key] = g
			order = append(order, key)
		}
		g.windows[window.Label(occ.At, widthMinutes)]++
		g.hours = append(g.hours, occ.At.Hour())
		g.total++
		if occ.At.After(g.last) {
			g.last = occ.At
		}
	}

	candidates := make([]Candidate, 0, len(order))
	for _, key := range order {
		g := groups[key]
		if g.total < minOccurrences {
			continue
		}
		label, count := dominantWindow(g.windows)
		consistency := float64(count) / float64(g.total)
		if consistency < threshold {
			continue
		}
		candidates = append(candidates, Candidate{
			EntityID:    g.entityID,
			Action:      g.action,
			Window:      label,
			WindowCount: count,
			Total:       g.total,
			Consistency: consistency,
			Hours:       g.hours,
			Last:        g.last,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Consistency != b.Consistency {
			return a.Consistency > b.Consistency
		}
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		if a.EntityID != b.EntityID {
			return a.EntityID < b.EntityID
		}
		return a.Action < b.Action
	})

	return candidates
}

// dominantWindow picks the window with the most occurrences. Ties break
// toward the earliest label ("HH:MM" sorts lexicographically) so repeated
// runs over identical data always agree.
func dominantWindow(windows map[string]int) (string, int) {
	best := ""
	bestCount := -1
	for label, count := range windows {
		if count > bestCount || (count == bestCount && label < best) {
			best, bestCount = label, count
		}
	}
	return best, bestCount
}
