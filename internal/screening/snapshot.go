package screening

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Snapshot is the flat persisted form of a session. ScreeningData and
// Interventions round-trip losslessly; Results are derivable and are not
// trusted on reload.
type Snapshot struct {
	Date          time.Time         `json:"date"`
	Grade         string            `json:"grade"`
	NumStudents   int               `json:"num_students"`
	ScreeningData map[string][]int  `json:"screening_data"`
	Results       *Results          `json:"results,omitempty"`
	Interventions map[string]string `json:"interventions"`
}

// Snapshot captures the session's persistable state. Results are included
// when the session is complete.
func (s *Session) Snapshot(now time.Time) Snapshot {
	data := make(map[string][]int, len(s.records))
	for id, rec := range s.records {
		ratings := make([]int, len(rec.Ratings))
		copy(ratings, rec.Ratings)
		data[id] = ratings
	}
	snap := Snapshot{
		Date:          now,
		Grade:         s.grade,
		NumStudents:   s.targetCount,
		ScreeningData: data,
		Interventions: s.Interventions(),
	}
	if res, err := s.ComputeResults(); err == nil {
		snap.Results = res
	}
	return snap
}

// Restore rebuilds a session from a snapshot.
//
// A restored session is considered complete iff any records are present.
// This heuristic does not verify that all expected students were rated;
// strengthening it would change observable reload behavior for archived
// screenings, so it stays as-is.
func Restore(snap Snapshot) *Session {
	s := NewSession()
	s.grade = snap.Grade
	s.targetCount = snap.NumStudents
	for _, id := range sortedStudentIDs(snap.ScreeningData) {
		ratings := make([]int, len(snap.ScreeningData[id]))
		copy(ratings, snap.ScreeningData[id])
		s.records[id] = Record{StudentID: id, Ratings: ratings}
		s.order = append(s.order, id)
	}
	for id, text := range snap.Interventions {
		s.interventions[id] = text
	}
	if len(s.records) > 0 {
		s.complete = true
		s.currentIndex = s.targetCount
	}
	return s
}

// sortedStudentIDs orders map keys deterministically, sorting default
// "Student N" names numerically and anything else lexically.
func sortedStudentIDs(data map[string][]int) []string {
	ids := make([]string, 0, len(data))
	for id := range data {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ni, iok := studentNumber(ids[i])
		nj, jok := studentNumber(ids[j])
		if iok && jok {
			return ni < nj
		}
		if iok != jok {
			return iok
		}
		return ids[i] < ids[j]
	})
	return ids
}

func studentNumber(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, "Student ")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}
