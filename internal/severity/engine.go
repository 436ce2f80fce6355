package severity

import (
	"math"

	"github.com/skybrief/turbcast/internal/geo"
	"github.com/skybrief/turbcast/internal/pireps"
	"github.com/skybrief/turbcast/internal/route"
	"github.com/skybrief/turbcast/pkg/logger"
)

// minReportAltitudeFt is the floor below which a report's altitude is
// considered unrepresentative of en-route conditions and the segment's
// modeled altitude is used instead.
const minReportAltitudeFt = 25000

// Score is the synthesized turbulence estimate for one segment
type Score struct {
	Severity    pireps.Intensity `json:"severity"`
	Probability float64          `json:"probability"`
	AltitudeFt  int              `json:"altitude_ft"`
	ReportCount int              `json:"report_count"`
	EvidenceIDs []string         `json:"evidence_ids,omitempty"`
}

// Engine turns nearby pilot reports into per-segment severity scores
type Engine struct {
	logger *logger.Logger
}

// NewEngine creates a severity engine
func NewEngine(log *logger.Logger) *Engine {
	return &Engine{logger: log.Named("severity")}
}

// Assign distributes observations to their nearest segment. Every
// observation lands on exactly one segment; ties on distance go to the
// earlier segment so assignment is deterministic.
func (e *Engine) Assign(segments []route.Segment, observations []pireps.Observation) [][]pireps.Observation {
	buckets := make([][]pireps.Observation, len(segments))
	if len(segments) == 0 {
		return buckets
	}

	for _, obs := range observations {
		best := 0
		bestDist := math.MaxFloat64
		for i, seg := range segments {
			if d := geo.DistanceToSegmentKm(obs.Location, seg.From, seg.To); d < bestDist {
				best = i
				bestDist = d
			}
		}
		buckets[best] = append(buckets[best], obs)
	}
	return buckets
}

// ScoreSegment synthesizes one segment's score from its assigned reports.
// The severity is the strongest reported intensity; the probability grows
// with how many reports agree on it.
func (e *Engine) ScoreSegment(seg route.Segment, observations []pireps.Observation) Score {
	score := Score{
		Severity:    pireps.Smooth,
		Probability: 0,
		AltitudeFt:  seg.AltitudeFt,
		ReportCount: len(observations),
	}
	if len(observations) == 0 {
		return score
	}

	for _, obs := range observations {
		if obs.Intensity > score.Severity {
			score.Severity = obs.Intensity
		}
		score.EvidenceIDs = append(score.EvidenceIDs, obs.ID)
	}

	// Count only the reports at the synthesized severity and pick the most
	// recent of them as the altitude witness.
	var witness *pireps.Observation
	count := 0
	for i := range observations {
		obs := &observations[i]
		if obs.Intensity != score.Severity {
			continue
		}
		count++
		if witness == nil || obs.ObservedAt.After(witness.ObservedAt) {
			witness = obs
		}
	}

	score.Probability = probability(score.Severity, count)

	if witness.AltitudeFt >= minReportAltitudeFt {
		score.AltitudeFt = (witness.AltitudeFt + 50) / 100 * 100
	}

	return score
}

// ScoreAll assigns observations and scores every segment
func (e *Engine) ScoreAll(segments []route.Segment, observations []pireps.Observation) []Score {
	buckets := e.Assign(segments, observations)
	scores := make([]Score, len(segments))
	for i := range segments {
		scores[i] = e.ScoreSegment(segments[i], buckets[i])
	}

	e.logger.Debug("Scored segments",
		logger.Int("segments", len(segments)),
		logger.Int("observations", len(observations)))

	return scores
}

// probability maps a severity and its supporting report count to a
// confidence estimate. More agreeing reports raise it, capped well below
// certainty since pilot reports are sparse point samples.
func probability(severity pireps.Intensity, count int) float64 {
	n := float64(count)
	switch severity {
	case pireps.Severe:
		return math.Min(0.7+0.05*n, 0.9)
	case pireps.Moderate:
		return math.Min(0.5+0.1*n, 0.7)
	case pireps.Light:
		return math.Min(0.3+0.1*n, 0.5)
	default:
		return 0
	}
}

// Overall reduces per-segment scores to the route-level worst case. The
// first segment reaching the maximum severity wins, so the returned index
// is the earliest point of the worst conditions. Empty input is smooth.
func Overall(scores []Score) (pireps.Intensity, float64, int) {
	worst := pireps.Smooth
	prob := 0.0
	index := -1
	for i, s := range scores {
		if s.Severity > worst || index == -1 {
			worst = s.Severity
			prob = s.Probability
			index = i
		}
	}
	return worst, prob, index
}
