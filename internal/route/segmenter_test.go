package route

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/skybrief/turbcast/internal/geo"
	"github.com/skybrief/turbcast/pkg/logger"
)

var (
	lhr = geo.Coordinate{Lat: 51.4706, Lon: -0.4619}
	jfk = geo.Coordinate{Lat: 40.6398, Lon: -73.7789}
)

func testConfig() Config {
	return Config{
		SegmentCount:         6,
		GroundspeedKmh:       800,
		MinDuration:          30 * time.Minute,
		CruiseAltitudeFt:     35000,
		TransitionAltitudeFt: 24000,
	}
}

func TestPlanContiguity(t *testing.T) {
	s := NewSegmenter(testConfig(), logger.NewNop())

	plan, err := s.Plan(lhr, jfk, time.Time{})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	if len(plan.Waypoints) != 7 {
		t.Fatalf("got %d waypoints, want 7", len(plan.Waypoints))
	}
	if len(plan.Segments) != 6 {
		t.Fatalf("got %d segments, want 6", len(plan.Segments))
	}

	if plan.Waypoints[0] != lhr || plan.Waypoints[6] != jfk {
		t.Error("polyline must start and end at the route endpoints")
	}

	for i, seg := range plan.Segments {
		if seg.Index != i {
			t.Errorf("segment %d has index %d", i, seg.Index)
		}
		if want := fmt.Sprintf("leg %d", i+1); seg.Label != want {
			t.Errorf("segment %d label = %q, want %q", i, seg.Label, want)
		}
		if seg.From != plan.Waypoints[i] || seg.To != plan.Waypoints[i+1] {
			t.Errorf("segment %d endpoints do not match the polyline", i)
		}
		if i > 0 && plan.Segments[i-1].To != seg.From {
			t.Errorf("gap between segment %d and %d", i-1, i)
		}
	}
}

func TestPlanAltitudeProfile(t *testing.T) {
	s := NewSegmenter(testConfig(), logger.NewNop())

	plan, err := s.Plan(lhr, jfk, time.Time{})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	if plan.Segments[0].AltitudeFt != 24000 {
		t.Errorf("first segment altitude = %d, want transition 24000", plan.Segments[0].AltitudeFt)
	}
	if plan.Segments[5].AltitudeFt != 24000 {
		t.Errorf("last segment altitude = %d, want transition 24000", plan.Segments[5].AltitudeFt)
	}
	for i := 1; i <= 4; i++ {
		if plan.Segments[i].AltitudeFt != 35000 {
			t.Errorf("segment %d altitude = %d, want cruise 35000", i, plan.Segments[i].AltitudeFt)
		}
	}
}

func TestPlanDeterministic(t *testing.T) {
	s := NewSegmenter(testConfig(), logger.NewNop())
	departure := time.Date(2026, 8, 29, 8, 35, 0, 0, time.UTC)

	a, err := s.Plan(lhr, jfk, departure)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	b, err := s.Plan(lhr, jfk, departure)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	if a.TotalDistanceKm != b.TotalDistanceKm || a.TotalDuration != b.TotalDuration {
		t.Fatal("identical inputs must produce identical plans")
	}
	for i := range a.Segments {
		if a.Segments[i] != b.Segments[i] {
			t.Fatalf("segment %d differs between runs", i)
		}
	}
}

func TestPlanDuration(t *testing.T) {
	s := NewSegmenter(testConfig(), logger.NewNop())

	plan, err := s.Plan(lhr, jfk, time.Time{})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	// LHR-JFK is roughly 5550 km; at 800 km/h that is about 7 hours
	hours := plan.TotalDuration.Hours()
	if hours < 6.5 || hours > 7.5 {
		t.Errorf("total duration = %.2f h, want about 7 h", hours)
	}

	var sum time.Duration
	for _, seg := range plan.Segments {
		sum += seg.Duration
	}
	if diff := (plan.TotalDuration - sum).Abs(); diff > time.Second {
		t.Errorf("segment durations sum to %v, total is %v", sum, plan.TotalDuration)
	}

	last := plan.Segments[len(plan.Segments)-1]
	if end := last.StartOffset + last.Duration; (plan.TotalDuration - end).Abs() > time.Second {
		t.Errorf("last segment ends at %v, total is %v", end, plan.TotalDuration)
	}
}

func TestPlanMinDurationFloor(t *testing.T) {
	s := NewSegmenter(testConfig(), logger.NewNop())

	// Two airports ~60 km apart: raw estimate is well under 30 minutes
	a := geo.Coordinate{Lat: 51.47, Lon: -0.46}
	b := geo.Coordinate{Lat: 51.88, Lon: -0.37}

	plan, err := s.Plan(a, b, time.Time{})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if plan.TotalDuration != 30*time.Minute {
		t.Errorf("total duration = %v, want the 30m floor", plan.TotalDuration)
	}
}

func TestPlanSingleSegment(t *testing.T) {
	cfg := testConfig()
	cfg.SegmentCount = 1
	s := NewSegmenter(cfg, logger.NewNop())

	plan, err := s.Plan(lhr, jfk, time.Time{})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(plan.Segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(plan.Segments))
	}
	if plan.Segments[0].AltitudeFt != 35000 {
		t.Errorf("single segment altitude = %d, want cruise", plan.Segments[0].AltitudeFt)
	}
}

func TestPlanZeroDistance(t *testing.T) {
	s := NewSegmenter(testConfig(), logger.NewNop())

	plan, err := s.Plan(lhr, lhr, time.Time{})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if plan.TotalDuration != 30*time.Minute {
		t.Errorf("zero-distance duration = %v, want the floor", plan.TotalDuration)
	}
	var sum time.Duration
	for _, seg := range plan.Segments {
		sum += seg.Duration
	}
	if diff := (plan.TotalDuration - sum).Abs(); diff > time.Second {
		t.Errorf("even split should cover the whole duration, sum = %v", sum)
	}
}

func TestPlanCourse(t *testing.T) {
	s := NewSegmenter(testConfig(), logger.NewNop())

	// Due-east route on the equator: every leg's true course is 90
	a := geo.Coordinate{Lat: 0, Lon: 0}
	b := geo.Coordinate{Lat: 0, Lon: 10}

	plan, err := s.Plan(a, b, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	for i, seg := range plan.Segments {
		if math.Abs(seg.CourseTrueDeg-90) > 0.5 {
			t.Errorf("segment %d true course = %.2f, want 90", i, seg.CourseTrueDeg)
		}
	}
}
