package prompt

import (
	"fmt"
	"strings"

	"github.com/lumenclass/selcoach/internal/sel"
)

// Intervention recommends a targeted support plan for one screened student.
// ratings are positional against sel.Competencies; tier is the student's
// screening tier label and classFocus the class-wide focus competency.
func Intervention(gradeLevel, studentID string, ratings []int, tier, classFocus string) string {
	var profile strings.Builder
	for i, comp := range sel.Competencies {
		if i < len(ratings) {
			fmt.Fprintf(&profile, "- %s: %d/4\n", comp, ratings[i])
		}
	}
	return fmt.Sprintf(`A universal SEL screening has been completed for a %s class. One student needs a targeted intervention recommendation.

**Student:** %s
**Screening Tier:** %s
**Ratings (1 = rarely observed, 4 = consistently observed):**
%s
**Class-Wide Focus Area:** %s

**Task:**
Recommend ONE targeted, tier-appropriate intervention for this student. Follow the mandatory four-part format from the system prompt, ground the recommendation in the student's lowest-rated competencies, and keep the suggested steps feasible for a classroom teacher without specialist support.
`, gradeLevel, studentID, tier, profile.String(), classFocus)
}
