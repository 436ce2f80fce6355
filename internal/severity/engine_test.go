package severity

import (
	"math"
	"testing"
	"time"

	"github.com/skybrief/turbcast/internal/geo"
	"github.com/skybrief/turbcast/internal/pireps"
	"github.com/skybrief/turbcast/internal/route"
	"github.com/skybrief/turbcast/pkg/logger"
)

func seg(index int, fromLat, toLat float64) route.Segment {
	return route.Segment{
		Index:      index,
		From:       geo.Coordinate{Lat: fromLat, Lon: 0},
		To:         geo.Coordinate{Lat: toLat, Lon: 0},
		AltitudeFt: 35000,
	}
}

func obs(id string, lat float64, intensity pireps.Intensity, altFt int, at time.Time) pireps.Observation {
	return pireps.Observation{
		ID:         id,
		Location:   geo.Coordinate{Lat: lat, Lon: 0.2},
		Intensity:  intensity,
		AltitudeFt: altFt,
		ObservedAt: at,
	}
}

func TestAssignNearestSegment(t *testing.T) {
	e := NewEngine(logger.NewNop())
	segments := []route.Segment{seg(0, 40, 42), seg(1, 42, 44), seg(2, 44, 46)}

	now := time.Now()
	observations := []pireps.Observation{
		obs("a", 41, pireps.Light, 35000, now),
		obs("b", 43, pireps.Moderate, 35000, now),
		obs("c", 45.9, pireps.Severe, 35000, now),
	}

	buckets := e.Assign(segments, observations)
	if len(buckets[0]) != 1 || buckets[0][0].ID != "a" {
		t.Errorf("segment 0 bucket = %+v, want [a]", buckets[0])
	}
	if len(buckets[1]) != 1 || buckets[1][0].ID != "b" {
		t.Errorf("segment 1 bucket = %+v, want [b]", buckets[1])
	}
	if len(buckets[2]) != 1 || buckets[2][0].ID != "c" {
		t.Errorf("segment 2 bucket = %+v, want [c]", buckets[2])
	}
}

func TestScoreSegmentEmpty(t *testing.T) {
	e := NewEngine(logger.NewNop())

	score := e.ScoreSegment(seg(0, 40, 42), nil)
	if score.Severity != pireps.Smooth || score.Probability != 0 {
		t.Errorf("empty segment score = %+v, want smooth/0", score)
	}
	if score.AltitudeFt != 35000 {
		t.Errorf("altitude = %d, want the segment's modeled 35000", score.AltitudeFt)
	}
}

func TestScoreSegmentProbability(t *testing.T) {
	e := NewEngine(logger.NewNop())
	now := time.Now()

	tests := []struct {
		name      string
		intensity pireps.Intensity
		count     int
		want      float64
	}{
		{"one light", pireps.Light, 1, 0.4},
		{"three light caps", pireps.Light, 3, 0.5},
		{"one moderate", pireps.Moderate, 1, 0.6},
		{"five moderate caps", pireps.Moderate, 5, 0.7},
		{"one severe", pireps.Severe, 1, 0.75},
		{"ten severe caps", pireps.Severe, 10, 0.9},
	}

	for _, tt := range tests {
		var observations []pireps.Observation
		for i := 0; i < tt.count; i++ {
			observations = append(observations, obs("x", 41, tt.intensity, 35000, now))
		}
		score := e.ScoreSegment(seg(0, 40, 42), observations)
		if math.Abs(score.Probability-tt.want) > 1e-9 {
			t.Errorf("%s: probability = %v, want %v", tt.name, score.Probability, tt.want)
		}
	}
}

func TestScoreSegmentMaxIntensityWins(t *testing.T) {
	e := NewEngine(logger.NewNop())
	now := time.Now()

	observations := []pireps.Observation{
		obs("a", 41, pireps.Light, 35000, now),
		obs("b", 41, pireps.Light, 35000, now),
		obs("c", 41, pireps.Moderate, 35000, now),
	}

	score := e.ScoreSegment(seg(0, 40, 42), observations)
	if score.Severity != pireps.Moderate {
		t.Errorf("severity = %v, want moderate", score.Severity)
	}
	// Only the single moderate report counts toward the probability
	if math.Abs(score.Probability-0.6) > 1e-9 {
		t.Errorf("probability = %v, want 0.6", score.Probability)
	}
	if score.ReportCount != 3 {
		t.Errorf("report count = %d, want 3", score.ReportCount)
	}
}

func TestScoreSegmentAltitude(t *testing.T) {
	e := NewEngine(logger.NewNop())
	now := time.Now()

	// High-altitude reports round to the nearest 100 ft
	score := e.ScoreSegment(seg(0, 40, 42), []pireps.Observation{
		obs("a", 41, pireps.Moderate, 36040, now),
	})
	if score.AltitudeFt != 36000 {
		t.Errorf("altitude = %d, want 36000", score.AltitudeFt)
	}
	score = e.ScoreSegment(seg(0, 40, 42), []pireps.Observation{
		obs("a", 41, pireps.Moderate, 36050, now),
	})
	if score.AltitudeFt != 36100 {
		t.Errorf("altitude = %d, want 36100", score.AltitudeFt)
	}

	// Low-altitude report falls back to the segment's modeled altitude
	score = e.ScoreSegment(seg(0, 40, 42), []pireps.Observation{
		obs("a", 41, pireps.Moderate, 12000, now),
	})
	if score.AltitudeFt != 35000 {
		t.Errorf("altitude = %d, want segment's 35000", score.AltitudeFt)
	}

	// The most recent report at the max intensity is the altitude witness
	score = e.ScoreSegment(seg(0, 40, 42), []pireps.Observation{
		obs("old", 41, pireps.Moderate, 31000, now.Add(-time.Hour)),
		obs("new", 41, pireps.Moderate, 33000, now),
		obs("light", 41, pireps.Light, 39000, now.Add(time.Hour)),
	})
	if score.AltitudeFt != 33000 {
		t.Errorf("altitude = %d, want the newest moderate report's 33000", score.AltitudeFt)
	}
}

func TestOverall(t *testing.T) {
	scores := []Score{
		{Severity: pireps.Light, Probability: 0.4},
		{Severity: pireps.Moderate, Probability: 0.6},
		{Severity: pireps.Moderate, Probability: 0.7},
		{Severity: pireps.Smooth},
	}

	worst, prob, index := Overall(scores)
	if worst != pireps.Moderate {
		t.Errorf("overall severity = %v, want moderate", worst)
	}
	// First occurrence of the maximum wins, even when a later segment has
	// a higher probability at the same severity
	if index != 1 || prob != 0.6 {
		t.Errorf("index/prob = %d/%v, want 1/0.6", index, prob)
	}
}

func TestOverallEmpty(t *testing.T) {
	worst, prob, index := Overall(nil)
	if worst != pireps.Smooth || prob != 0 || index != -1 {
		t.Errorf("empty overall = %v/%v/%d, want smooth/0/-1", worst, prob, index)
	}
}

func TestScoreAll(t *testing.T) {
	e := NewEngine(logger.NewNop())
	now := time.Now()
	segments := []route.Segment{seg(0, 40, 42), seg(1, 42, 44)}

	scores := e.ScoreAll(segments, []pireps.Observation{
		obs("a", 41, pireps.Severe, 36000, now),
		obs("b", 43, pireps.Light, 35000, now),
	})

	if len(scores) != 2 {
		t.Fatalf("got %d scores, want 2", len(scores))
	}
	if scores[0].Severity != pireps.Severe || scores[1].Severity != pireps.Light {
		t.Errorf("scores = %+v", scores)
	}
}
