package screening

import (
	"github.com/lumenclass/selcoach/internal/sel"
)

// Risk tiers derived from a student's average rating.
type Tier string

const (
	TierPriority Tier = "priority"
	TierMonitor  Tier = "monitor"
	TierOnTrack  Tier = "on_track"
)

// Tier thresholds: averages below priorityBelow are priority, below
// monitorBelow are monitor. Both bounds are inclusive on the lower side of
// the next tier: exactly 2.0 is monitor, exactly 2.5 is on_track.
const (
	priorityBelow = 2.0
	monitorBelow  = 2.5
)

// TierFor classifies an average rating. Pure; recomputed on demand.
func TierFor(average float64) Tier {
	switch {
	case average < priorityBelow:
		return TierPriority
	case average < monitorBelow:
		return TierMonitor
	default:
		return TierOnTrack
	}
}

// StudentResult is the derived classification for one record.
type StudentResult struct {
	StudentID string  `json:"student_id"`
	Ratings   []int   `json:"ratings"`
	Average   float64 `json:"average"`
	Tier      Tier    `json:"tier"`
}

// Results is the class-level aggregation of a completed session.
type Results struct {
	Grade         string             `json:"grade"`
	Students      []StudentResult    `json:"students"`
	Priority      []string           `json:"priority"`
	Monitor       []string           `json:"monitor"`
	OnTrack       []string           `json:"on_track"`
	ClassAverages map[string]float64 `json:"class_averages"`
	FocusArea     string             `json:"focus_area"`
}

// ComputeResults aggregates a completed session: per-student tiers, class
// per-competency averages, and the weakest competency as the class focus
// area. Valid only in the complete state.
func (s *Session) ComputeResults() (*Results, error) {
	if s.State() != StateComplete {
		return nil, &ValidationError{Reason: "results require a completed session"}
	}

	res := &Results{
		Grade:         s.grade,
		ClassAverages: make(map[string]float64, sel.NumCompetencies),
	}

	sums := make([]int, sel.NumCompetencies)
	for _, id := range s.order {
		rec := s.records[id]
		avg := rec.Average()
		sr := StudentResult{
			StudentID: rec.StudentID,
			Ratings:   rec.Ratings,
			Average:   avg,
			Tier:      TierFor(avg),
		}
		res.Students = append(res.Students, sr)
		switch sr.Tier {
		case TierPriority:
			res.Priority = append(res.Priority, rec.StudentID)
		case TierMonitor:
			res.Monitor = append(res.Monitor, rec.StudentID)
		default:
			res.OnTrack = append(res.OnTrack, rec.StudentID)
		}
		for i, v := range rec.Ratings {
			sums[i] += v
		}
	}

	// Class focus area: minimum class average, ties resolved to the first
	// competency in canonical order.
	n := float64(len(s.order))
	minAvg := 0.0
	for i, name := range sel.Competencies {
		avg := float64(sums[i]) / n
		res.ClassAverages[name] = avg
		if i == 0 || avg < minAvg {
			minAvg = avg
			res.FocusArea = name
		}
	}
	return res, nil
}
