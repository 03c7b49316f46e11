package consolidation

import (
	"fmt"
	"strings"

	"github.com/metacoglab/dreammem-go/pkg/storage"
)

const promptTemplate = `You are reviewing your own memory to extract lessons. Read the
following and distill what you have learned.

## 1. Corrections from the user (highest priority)
%s

## 2. Insights from the previous consolidation
%s

## 3. Saved memories
%s

---

## Output instructions
Integrate the above and produce insights in the three categories below,
1-3 items each. Carry forward previous insights that still hold, update
or merge them with new experience, and drop the ones no longer needed.

### A. Behavior patterns to correct
Repeated mistakes or improvement points, from user corrections or your
own review. State concretely what to change and how.

### B. Good tendencies to reinforce
What worked well and approaches worth continuing.

### C. New understanding
Deeper or structural insights that emerge from combining multiple
experiences.

Format as a numbered list. Example:
A1. [concrete correction]
A2. [concrete correction]
B1. [tendency to reinforce]
C1. [new understanding]
`

// systemPrompt frames the reasoning call for every consolidation cycle.
const systemPrompt = "You are an AI that organizes its own memory and extracts lessons from it."

// PromptInput holds the material a consolidation prompt is built from.
type PromptInput struct {
	// Feedback is the unconsumed user feedback, oldest first.
	Feedback []*storage.FeedbackItem

	// CarryForward holds the insights produced by the previous cycle.
	CarryForward []*storage.Record

	// Memories is the rest of the drained snapshot.
	Memories []*storage.Record
}

// BuildPrompt renders the consolidation prompt. User feedback comes
// first so the backend weighs it above everything else.
func BuildPrompt(in PromptInput) string {
	feedbackText := "(no corrections from the user)"
	if len(in.Feedback) > 0 {
		lines := make([]string, len(in.Feedback))
		for i, fb := range in.Feedback {
			lines[i] = "- " + fb.Content
		}
		feedbackText = strings.Join(lines, "\n")
	}

	previousText := "(no previous insights)"
	if len(in.CarryForward) > 0 {
		lines := make([]string, len(in.CarryForward))
		for i, record := range in.CarryForward {
			lines[i] = "- " + record.Content
		}
		previousText = strings.Join(lines, "\n")
	}

	memoriesText := "(no saved memories)"
	if len(in.Memories) > 0 {
		lines := make([]string, len(in.Memories))
		for i, record := range in.Memories {
			lines[i] = fmt.Sprintf("- [%s] %s", record.Category, record.Content)
		}
		memoriesText = strings.Join(lines, "\n")
	}

	return fmt.Sprintf(promptTemplate, feedbackText, previousText, memoriesText)
}
