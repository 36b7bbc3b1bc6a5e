// Package prompt builds every model-facing prompt in the system. All
// builders are pure string assembly: no I/O, no clock, no randomness, so
// outputs are reproducible for a given input.
package prompt

import (
	"fmt"
	"strings"
)

// System is the standing instruction prepended to every primary coaching
// prompt. The four-part answer format is contractual: downstream export and
// parent-email builders assume responses follow it.
const System = `You are an expert SEL (Social-Emotional Learning) consultant supporting K-12 educators. Your guidance is practical, evidence-based, and grounded in research from CASEL, ASCA, and peer-reviewed educational psychology journals.

Core Directives:
- All primary recommendations MUST follow this exact four-part Markdown format:
  **Overview:** Brief definition or contextual framing (1-2 sentences).
  **Evidence Summary:** What research demonstrates, including study types and key findings (2-4 sentences). Explicitly reference evidence types (e.g., "A meta-analysis of over 200 school-based programs...", "Consistent with developmental research...", "Validated through RCTs...").
  **Implementation Example:** A concrete classroom application with 3-5 actionable steps.
  **Measurement/Outcome:** Observable indicators of success and progress tracking methods (2-3 measurable criteria).
- Link strategies to specific CASEL competencies.
- Maintain a professional, compassionate, data-driven tone.
- Prioritize meta-analyses and systematic reviews over single studies.`

// Analysis asks for one high-impact integration strategy for an existing
// lesson plan. standard, competency, and skill are optional refinements.
func Analysis(lessonPlan, standard, competency, skill string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `An educator has submitted this lesson plan for SEL integration analysis:

**Lesson Plan:**
---
%s
---

**Task:**
1. Analyze the lesson to identify the strongest opportunity for SEL integration.
2. Provide ONE comprehensive, high-impact SEL strategy recommendation.
3. Follow the mandatory four-part format from the system prompt.
`, lessonPlan)
	if competency != "" && skill != "" {
		fmt.Fprintf(&b, "\nThe user has requested specific focus on the CASEL competency of **%s**, emphasizing the skill of **%s**. Prioritize this focus in your analysis.\n", competency, skill)
	}
	if s := strings.TrimSpace(standard); s != "" {
		fmt.Fprintf(&b, "\nAll suggestions must align with this educational standard: '%s'.\n", s)
	}
	return b.String()
}

// Creation requests a complete SEL-integrated lesson plan.
func Creation(gradeLevel, subject, topic, competency, skill string) string {
	focus := "Balanced approach across CASEL competencies"
	if competency != "" && skill != "" {
		focus = fmt.Sprintf("The lesson's primary SEL focus must be **%s**, specifically developing **%s**.", competency, skill)
	}
	return fmt.Sprintf(`Create a complete, SEL-integrated lesson plan with these specifications:
- **Grade Level:** %s
- **Subject:** %s
- **Topic:** %s
- **SEL Focus:** %s

**Requirements:**
1. Start with a "Pedagogical Rationale" (2-3 sentences) explaining the evidence behind your primary SEL activity.
2. Generate a complete lesson plan in Markdown with:
   - Learning Objectives (Content + SEL, observable behaviors)
   - Key Vocabulary (Content + SEL terms)
   - Materials list
   - Lesson Sequence (Hook -> I Do -> We Do -> You Do -> Assessment -> Closing)
   - Detailed SEL Alignment section

Follow an "I Do, We Do, You Do" instructional model.
`, gradeLevel, subject, topic, focus)
}

// Strategy asks for one immediately actionable strategy for a classroom
// situation described in the teacher's own words.
func Strategy(situation string) string {
	return fmt.Sprintf(`A teacher needs an immediate, evidence-based strategy for this situation:

**Situation:** "%s"

**Task:**
Provide ONE quick, actionable strategy using this format:
- **Strategy Name:** (e.g., "Mindful Minute")
- **Evidence Rationale:** (1-2 sentences on research basis)
- **Actionable Steps:** (2-3 immediate steps)
- **Expected Outcome:** (1 sentence on observable results)
`, situation)
}

// StudentMaterials derives student-facing artifacts from a generated lesson
// plan. It does not carry the System preamble: the instructional-designer
// framing replaces the consultant one.
func StudentMaterials(lessonPlan string) string {
	return fmt.Sprintf(`You are an instructional designer. Based on this lesson plan, create student-facing materials in Markdown format:

**Lesson Plan:**
---
%s
---

**Generate:**
### Exit Ticket
(2-3 reflective questions)

### Think-Pair-Share Prompts
(2-3 discussion questions)

### Journal Starters
(2-3 reflective prompts)

### Practice Worksheet
(Simple printable worksheet/graphic organizer)
`, lessonPlan)
}

// Differentiation derives scaffold, extension, and ELL support from a
// generated lesson plan.
func Differentiation(lessonPlan string) string {
	return fmt.Sprintf(`You are an expert in instructional differentiation. Based on this lesson, provide evidence-based strategies in Markdown:

**Lesson Plan:**
---
%s
---

**Structure:**
### Scaffold Support (Struggling Learners)
### Extension Activities (Advanced Learners)
### ELL Support
`, lessonPlan)
}

// Scenario generates a second-person student scenario exercising a
// competency skill.
func Scenario(competency, skill, gradeLevel string) string {
	return fmt.Sprintf(`Generate a brief, relatable school scenario for a %s student requiring use of the SEL competency **%s** (skill: **%s**).

Present in second person ('You are...'), ending with a question. Keep it to one paragraph.
`, gradeLevel, competency, skill)
}

// SocraticFeedback asks for one reflective follow-up question given the
// scenario and the conversation so far. history is the preformatted
// transcript block (see memory.Buffer.FormatForPrompt).
func SocraticFeedback(scenario, history string) string {
	return fmt.Sprintf(`You are a supportive SEL coach using a Socratic approach.

**Scenario:** %s

**Conversation History:**
%s

Ask ONE reflective question to deepen the student's thinking. Do not give advice. Keep it brief.
`, scenario, history)
}

// Training builds a professional development module on one competency.
func Training(competency string) string {
	return fmt.Sprintf(`Create a professional development module on **%s** grounded in CASEL and evidence-based practices.

**Structure:**
## Understanding %s
(Definition and importance, citing CASEL)

## Evidence-Based Classroom Strategies
For 2-3 key skills, provide:
### Skill: [Name]
* **The Strategy:** (Practical approach)
* **Evidence Base:** (Research summary)
* **Implementation Example:** (Step-by-step)
`, competency, competency)
}

// TrainingScenario produces a practice scenario for a teacher working
// through a training module.
func TrainingScenario(competency string) string {
	return fmt.Sprintf(`Create a brief, challenging classroom scenario to help a teacher practice **%s**.

End with an open-ended question. Generate ONLY the scenario and question.
`, competency)
}

// TrainingFeedback reviews a teacher's response to a training scenario.
func TrainingFeedback(competency, scenario, teacherResponse string) string {
	return fmt.Sprintf(`You are a supportive SEL coach. The teacher is practicing **%s**.

**Scenario:** %s
**Teacher's Response:** %s

Provide constructive feedback: affirm a positive aspect, then ask one reflective question.
`, competency, scenario, teacherResponse)
}

// CheckIn generates morning check-in questions for a class.
func CheckIn(gradeLevel, tone string) string {
	return fmt.Sprintf(`Generate 3-4 creative, age-appropriate morning check-in questions for a **%s** class with a **%s** tone.

Format as a numbered list.
`, gradeLevel, tone)
}

// ParentEmail drafts a strengths-based note home from a generated lesson
// plan.
func ParentEmail(lessonPlan string) string {
	return fmt.Sprintf(`Draft a professional, strengths-based email to parents based on this lesson plan:

**Lesson Plan:**
---
%s
---

**Structure:**
1. Subject Line (clear, informative)
2. What We're Learning (main SEL skill)
3. How We Practiced (brief activity description)
4. Connection at Home (simple conversation starter)
`, lessonPlan)
}

// WithEvidence appends a retrieved-evidence block to a built prompt.
// evidence comes from the strategy library; an empty string leaves the
// prompt untouched so retrieval stays optional.
func WithEvidence(prompt, evidence string) string {
	if evidence == "" {
		return prompt
	}
	return prompt + fmt.Sprintf(`
**Retrieved Evidence:**
The following strategy excerpts were retrieved from the evidence library. Prefer them when they apply; ignore any that do not fit the situation.
---
%s
---
`, evidence)
}
