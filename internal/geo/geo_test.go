package geo

import (
	"math"
	"testing"
)

var (
	jfk = Coordinate{Lat: 40.6413, Lon: -73.7781}
	lax = Coordinate{Lat: 33.9416, Lon: -118.4085}
	ord = Coordinate{Lat: 41.9742, Lon: -87.9073}
)

func TestHaversineKm(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Coordinate
		wantKm   float64
		tolerance float64
	}{
		{"same point", jfk, jfk, 0, 0.001},
		{"jfk to lax", jfk, lax, 3974, 50},
		{"jfk to ord", jfk, ord, 1188, 30},
		{"equator degree", Coordinate{0, 0}, Coordinate{0, 1}, 111.2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.a, tt.b)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Fatalf("HaversineKm(%v, %v) = %.1f, want %.1f ± %.1f", tt.a, tt.b, got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestHaversineSymmetric(t *testing.T) {
	ab := HaversineKm(jfk, lax)
	ba := HaversineKm(lax, jfk)
	if math.Abs(ab-ba) > 1e-9 {
		t.Fatalf("haversine not symmetric: %.9f vs %.9f", ab, ba)
	}
}

func TestDistanceToSegmentClamping(t *testing.T) {
	a := Coordinate{Lat: 40, Lon: -100}
	b := Coordinate{Lat: 40, Lon: -90}

	// Point beyond the start: projection < 0, distance equals distance to a
	before := Coordinate{Lat: 40, Lon: -105}
	got := DistanceToSegmentKm(before, a, b)
	want := HaversineKm(before, a)
	if math.Abs(got-want) > 0.5 {
		t.Fatalf("pre-start clamp: got %.2f, want %.2f", got, want)
	}

	// Point beyond the end: projection > 1, distance equals distance to b
	after := Coordinate{Lat: 40, Lon: -85}
	got = DistanceToSegmentKm(after, a, b)
	want = HaversineKm(after, b)
	if math.Abs(got-want) > 0.5 {
		t.Fatalf("post-end clamp: got %.2f, want %.2f", got, want)
	}
}

func TestDistanceToSegmentInterior(t *testing.T) {
	a := Coordinate{Lat: 40, Lon: -100}
	b := Coordinate{Lat: 40, Lon: -90}

	// Point directly above the midpoint: closest point is the interior,
	// so the distance must be well below the distance to either endpoint.
	p := Coordinate{Lat: 42, Lon: -95}
	got := DistanceToSegmentKm(p, a, b)
	toA := HaversineKm(p, a)
	toB := HaversineKm(p, b)
	if got >= toA || got >= toB {
		t.Fatalf("interior distance %.2f not smaller than endpoint distances %.2f / %.2f", got, toA, toB)
	}
	// Roughly two degrees of latitude
	if math.Abs(got-222) > 10 {
		t.Fatalf("interior distance %.2f, want ~222", got)
	}
}

func TestDistanceToSegmentDegenerate(t *testing.T) {
	p := Coordinate{Lat: 41, Lon: -100}
	a := Coordinate{Lat: 40, Lon: -100}

	got := DistanceToSegmentKm(p, a, a)
	want := HaversineKm(p, a)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("degenerate segment: got %.4f, want %.4f", got, want)
	}
}

func TestDistanceToSegmentOnSegment(t *testing.T) {
	a := Coordinate{Lat: 40, Lon: -100}
	b := Coordinate{Lat: 40, Lon: -90}
	mid := Interpolate(a, b, 0.5)

	if got := DistanceToSegmentKm(mid, a, b); got > 0.5 {
		t.Fatalf("point on segment should be ~0 km away, got %.3f", got)
	}
}

func TestInterpolateEndpoints(t *testing.T) {
	if got := Interpolate(jfk, lax, 0); got != jfk {
		t.Fatalf("t=0 should yield start, got %v", got)
	}
	if got := Interpolate(jfk, lax, 1); got != lax {
		t.Fatalf("t=1 should yield end, got %v", got)
	}
}

func TestInitialBearing(t *testing.T) {
	// Due east along the equator
	got := InitialBearing(Coordinate{0, 0}, Coordinate{0, 10})
	if math.Abs(got-90) > 0.1 {
		t.Fatalf("eastbound bearing = %.2f, want 90", got)
	}

	// Due north
	got = InitialBearing(Coordinate{0, 0}, Coordinate{10, 0})
	if math.Abs(got-0) > 0.1 && math.Abs(got-360) > 0.1 {
		t.Fatalf("northbound bearing = %.2f, want 0", got)
	}
}

func TestBoundsPadding(t *testing.T) {
	box := Bounds([]Coordinate{jfk, lax}, 200)

	if box.LatMin >= lax.Lat {
		t.Fatalf("LatMin %.2f not below southernmost point %.2f", box.LatMin, lax.Lat)
	}
	if box.LatMax <= jfk.Lat {
		t.Fatalf("LatMax %.2f not above northernmost point %.2f", box.LatMax, jfk.Lat)
	}
	if box.LonMin >= lax.Lon {
		t.Fatalf("LonMin %.2f not west of %.2f", box.LonMin, lax.Lon)
	}
	if box.LonMax <= jfk.Lon {
		t.Fatalf("LonMax %.2f not east of %.2f", box.LonMax, jfk.Lon)
	}

	// ~200km of latitude is ~1.8 degrees
	if pad := lax.Lat - box.LatMin; pad < 1.5 || pad > 2.2 {
		t.Fatalf("latitude padding %.2f degrees, want ~1.8", pad)
	}
}

func TestBoundsEmpty(t *testing.T) {
	box := Bounds(nil, 100)
	if box != (BoundingBox{}) {
		t.Fatalf("empty input should produce zero box, got %+v", box)
	}
}
