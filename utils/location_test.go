package utils

import (
	"math"
	"testing"
	"time"
)

func TestHaversineDistance(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Location
		want, tol float64
	}{
		{"same point", Location{12.9716, 77.5946}, Location{12.9716, 77.5946}, 0, 1e-9},
		{"equator to pole", Location{0, 0}, Location{90, 0}, 10007.543, 0.01},
		{"one degree of longitude at equator", Location{0, 0}, Location{0, 1}, 111.195, 0.01},
		{"bangalore to chennai", Location{12.9716, 77.5946}, Location{13.0827, 80.2707}, 290.2, 1},
		{"antipodal", Location{0, 0}, Location{0, 180}, math.Pi * EarthRadiusKm, 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.Distance(tt.b)
			if math.Abs(got-tt.want) > tt.tol {
				t.Errorf("Distance() = %.4f, want %.4f ± %.4f", got, tt.want, tt.tol)
			}
			if back := tt.b.Distance(tt.a); math.Abs(back-got) > 1e-9 {
				t.Errorf("distance is not symmetric: %.6f vs %.6f", got, back)
			}
		})
	}
}

func TestCalculateETA(t *testing.T) {
	from := Location{0, 0}
	to := Location{0, 1}

	if got := CalculateETA(from, to, 30); got != 223*time.Minute {
		t.Errorf("CalculateETA() = %v, want 3h43m", got)
	}
	if got := CalculateETA(from, from, 30); got != 0 {
		t.Errorf("CalculateETA() for same point = %v, want 0", got)
	}
	if got := CalculateETA(from, to, 0); got != 0 {
		t.Errorf("CalculateETA() with zero speed = %v, want 0", got)
	}
}

func TestIsLocationValid(t *testing.T) {
	tests := []struct {
		lat, lng float64
		want     bool
	}{
		{0, 0, true},
		{90, 180, true},
		{-90, -180, true},
		{90.1, 0, false},
		{0, -180.5, false},
		{math.NaN(), 0, false},
	}
	for _, tt := range tests {
		if got := IsLocationValid(tt.lat, tt.lng); got != tt.want {
			t.Errorf("IsLocationValid(%v, %v) = %v, want %v", tt.lat, tt.lng, got, tt.want)
		}
	}
}

func TestLocationFrom(t *testing.T) {
	lat, lng := 1.5, 2.5
	if _, ok := LocationFrom(&lat, nil); ok {
		t.Error("expected a missing longitude to yield no location")
	}
	loc, ok := LocationFrom(&lat, &lng)
	if !ok || loc.Latitude != lat || loc.Longitude != lng {
		t.Errorf("LocationFrom() = %+v, %v", loc, ok)
	}
}

func TestIsLocationRecent(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	recent := now.Add(-time.Minute)
	old := now.Add(-time.Hour)

	if !IsLocationRecent(&recent, 5*time.Minute, now) {
		t.Error("expected a one minute old fix to be recent")
	}
	if IsLocationRecent(&old, 5*time.Minute, now) {
		t.Error("expected an hour old fix to be stale")
	}
	if IsLocationRecent(nil, time.Hour, now) {
		t.Error("expected a missing fix to be stale")
	}
}
