// Package screening implements the SEL screener: a per-class rating session
// that turns Likert ratings into risk tiers and a class-wide focus area.
// The engine is pure and synchronous; it performs no I/O.
package screening

import (
	"fmt"

	"github.com/lumenclass/selcoach/internal/sel"
)

// Rating bounds for each competency dimension.
const (
	RatingMin = 1
	RatingMax = 4
)

// Session lifecycle states.
type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateComplete   State = "complete"
)

// ValidationError reports malformed screening input or an invalid
// transition. The session is left untouched when one is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "screening: " + e.Reason }

// Record holds one student's ratings, positionally aligned with
// sel.Competencies.
type Record struct {
	StudentID string `json:"student_id"`
	Ratings   []int  `json:"ratings"`
}

// Average returns the arithmetic mean of the ratings.
func (r Record) Average() float64 {
	sum := 0
	for _, v := range r.Ratings {
		sum += v
	}
	return float64(sum) / float64(len(r.Ratings))
}

// Session is a screening pass over one class. Owned by a single user
// context; methods are not safe for concurrent use.
type Session struct {
	grade         string
	targetCount   int
	currentIndex  int
	complete      bool
	records       map[string]Record
	order         []string // insertion order of student IDs
	interventions map[string]string
}

// NewSession returns a session in the not_started state.
func NewSession() *Session {
	return &Session{
		records:       make(map[string]Record),
		interventions: make(map[string]string),
	}
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	switch {
	case s.targetCount == 0:
		return StateNotStarted
	case s.complete:
		return StateComplete
	default:
		return StateInProgress
	}
}

// Grade returns the session's grade level.
func (s *Session) Grade() string { return s.grade }

// TargetCount returns the number of students to be rated.
func (s *Session) TargetCount() int { return s.targetCount }

// CurrentIndex returns the zero-based position of the student being rated.
func (s *Session) CurrentIndex() int { return s.currentIndex }

// Start begins a fresh screening pass, discarding any prior state. Valid
// from any state: starting over always wins.
func (s *Session) Start(grade string, count int) error {
	if !sel.ValidGrade(grade) {
		return &ValidationError{Reason: fmt.Sprintf("unknown grade level %q", grade)}
	}
	if count < 1 {
		return &ValidationError{Reason: "student count must be at least 1"}
	}
	s.grade = grade
	s.targetCount = count
	s.currentIndex = 0
	s.complete = false
	s.records = make(map[string]Record)
	s.order = nil
	s.interventions = make(map[string]string)
	return nil
}

// SubmitAndAdvance validates and stores ratings for the student at the
// current index, then advances. Submitting at the last index finalizes the
// session instead of advancing past the range. An empty studentID defaults
// to "Student N". Re-submitting an existing student overwrites the record,
// which is how navigating back and re-rating works.
func (s *Session) SubmitAndAdvance(studentID string, ratings []int) error {
	if s.State() == StateNotStarted {
		return &ValidationError{Reason: "session not started"}
	}
	if s.complete {
		return &ValidationError{Reason: "session already complete"}
	}
	if len(ratings) != sel.NumCompetencies {
		return &ValidationError{Reason: fmt.Sprintf("expected %d ratings, got %d", sel.NumCompetencies, len(ratings))}
	}
	for i, v := range ratings {
		if v < RatingMin || v > RatingMax {
			return &ValidationError{Reason: fmt.Sprintf("rating %d for %s out of range [%d,%d]", v, sel.Competencies[i], RatingMin, RatingMax)}
		}
	}
	if studentID == "" {
		studentID = fmt.Sprintf("Student %d", s.currentIndex+1)
	}

	held := make([]int, len(ratings))
	copy(held, ratings)
	if _, exists := s.records[studentID]; !exists {
		s.order = append(s.order, studentID)
	}
	s.records[studentID] = Record{StudentID: studentID, Ratings: held}

	if s.currentIndex == s.targetCount-1 {
		s.complete = true
		s.currentIndex = s.targetCount
	} else {
		s.currentIndex++
	}
	return nil
}

// GoPrevious steps back one student for re-rating. Rejected at index zero
// or once the session is complete.
func (s *Session) GoPrevious() error {
	if s.State() != StateInProgress {
		return &ValidationError{Reason: "no open session to navigate"}
	}
	if s.currentIndex == 0 {
		return &ValidationError{Reason: "already at the first student"}
	}
	s.currentIndex--
	return nil
}

// Reset discards all records, interventions, and progress in one step,
// returning to not_started.
func (s *Session) Reset() {
	s.grade = ""
	s.targetCount = 0
	s.currentIndex = 0
	s.complete = false
	s.records = make(map[string]Record)
	s.order = nil
	s.interventions = make(map[string]string)
}

// RecordFor returns the stored record for a student, if any.
func (s *Session) RecordFor(studentID string) (Record, bool) {
	r, ok := s.records[studentID]
	return r, ok
}

// Students returns the rated student IDs in submission order.
func (s *Session) Students() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// SetIntervention stores generated intervention text for a student. Cleared
// together with records on reset.
func (s *Session) SetIntervention(studentID, text string) {
	s.interventions[studentID] = text
}

// Interventions returns a copy of the stored interventions.
func (s *Session) Interventions() map[string]string {
	out := make(map[string]string, len(s.interventions))
	for k, v := range s.interventions {
		out[k] = v
	}
	return out
}
