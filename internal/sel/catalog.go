// Package sel holds the fixed CASEL-derived catalog: competency axes and
// their skills, grade levels, and subjects. Everything here is static data
// shared by the screening engine and the prompt builders.
package sel

// NumCompetencies is the number of canonical competency axes.
const NumCompetencies = 5

// Competencies lists the five CASEL competencies in canonical order. The
// order is load-bearing: screening ratings are positional and class focus
// tie-breaks resolve to the first match.
var Competencies = []string{
	"Self-Awareness",
	"Self-Management",
	"Social Awareness",
	"Relationship Skills",
	"Responsible Decision-Making",
}

// Skills maps each competency to its focused skills.
var Skills = map[string][]string{
	"Self-Awareness":              {"Identifying Emotions", "Self-Perception", "Recognizing Strengths", "Self-Confidence", "Self-Efficacy"},
	"Self-Management":             {"Impulse Control", "Stress Management", "Self-Discipline", "Self-Motivation", "Goal-Setting", "Organizational Skills"},
	"Social Awareness":            {"Perspective-Taking", "Empathy", "Appreciating Diversity", "Respect for Others"},
	"Relationship Skills":         {"Communication", "Social Engagement", "Building Relationships", "Teamwork", "Conflict Resolution"},
	"Responsible Decision-Making": {"Identifying Problems", "Analyzing Situations", "Solving Problems", "Evaluating", "Reflecting", "Ethical Responsibility"},
}

// GradeLevels in school order.
var GradeLevels = []string{
	"Kindergarten", "1st Grade", "2nd Grade", "3rd Grade", "4th Grade",
	"5th Grade", "6th Grade", "7th Grade", "8th Grade", "9th Grade",
	"10th Grade", "11th Grade", "12th Grade",
}

// Subjects supported by the lesson builder.
var Subjects = []string{
	"Science", "History", "English Language Arts", "Mathematics", "Art", "Music",
}

// CheckInTones for morning check-in question generation.
var CheckInTones = []string{"Calm", "Energetic", "Reflective", "Fun", "Serious"}

// ValidCompetency reports whether name is one of the canonical competencies.
func ValidCompetency(name string) bool {
	for _, c := range Competencies {
		if c == name {
			return true
		}
	}
	return false
}

// ValidGrade reports whether grade is a known grade level.
func ValidGrade(grade string) bool {
	for _, g := range GradeLevels {
		if g == grade {
			return true
		}
	}
	return false
}
