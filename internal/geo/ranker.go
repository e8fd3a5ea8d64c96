// Package geo ranks candidate locations by great-circle distance from a reference point.
package geo

import (
	"math"
	"sort"

	"github.com/golang/geo/s2"

	"github.com/padelbud/platform/internal/domain"
)

// EarthRadiusMeters is the mean Earth radius used to turn angles into meters.
const EarthRadiusMeters = 6371008.8

// Unreachable is the distance assigned to candidates without a usable location.
const Unreachable = math.MaxFloat64

// Candidate is an identity with an optional location.
type Candidate struct {
	ID       string
	Location *domain.Point
}

// Ranked is a candidate with its distance from the reference point.
type Ranked struct {
	ID       string
	Distance float64
}

// Distance returns the great-circle distance in meters between two points.
// Either point being nil yields Unreachable.
func Distance(a, b *domain.Point) float64 {
	if a == nil || b == nil {
		return Unreachable
	}
	from := s2.LatLngFromDegrees(a.Latitude, a.Longitude)
	to := s2.LatLngFromDegrees(b.Latitude, b.Longitude)
	return from.Distance(to).Radians() * EarthRadiusMeters
}

// Rank orders candidates closest first. Candidates with no location sort to
// the back instead of being dropped; ties keep input order.
func Rank(reference *domain.Point, candidates []Candidate) []Ranked {
	out := make([]Ranked, len(candidates))
	for i, c := range candidates {
		out[i] = Ranked{ID: c.ID, Distance: Distance(reference, c.Location)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out
}

// Closest returns the ids of at most n closest candidates.
func Closest(reference *domain.Point, candidates []Candidate, n int) []string {
	ranked := Rank(reference, candidates)
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.ID
	}
	return ids
}
