package utils

import (
	"sort"
	"time"
)

// Locatable is anything with optional coordinates and a stable ordering key
type Locatable interface {
	Coordinates() (Location, bool)
	// SortKey breaks distance ties: earlier scheduled, then earlier created, then lower id.
	SortKey() (scheduled time.Time, created time.Time, id uint)
}

// Match is a candidate within the search radius
type Match[T Locatable] struct {
	Candidate  T
	DistanceKm float64
}

// FindNearby returns the candidates within radiusKm of origin, nearest first.
// Candidates without coordinates are skipped. The input slice is not modified.
func FindNearby[T Locatable](origin Location, radiusKm float64, candidates []T) []Match[T] {
	matches := make([]Match[T], 0, len(candidates))
	if radiusKm < 0 {
		return matches
	}

	for _, c := range candidates {
		loc, ok := c.Coordinates()
		if !ok || !IsLocationValid(loc.Latitude, loc.Longitude) {
			continue
		}
		d := origin.Distance(loc)
		if d <= radiusKm {
			matches = append(matches, Match[T]{Candidate: c, DistanceKm: d})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		as, ac, aid := a.Candidate.SortKey()
		bs, bc, bid := b.Candidate.SortKey()
		if !as.Equal(bs) {
			return as.Before(bs)
		}
		if !ac.Equal(bc) {
			return ac.Before(bc)
		}
		return aid < bid
	})

	return matches
}
