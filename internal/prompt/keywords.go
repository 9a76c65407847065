package prompt

import "strings"

var healthKeywords = []string{
	"ecg",
	"electrocardiogram",
	"heart rate",
	"blood pressure",
	"severity",
	"symptoms",
	"rhythm",
	"urgency",
}

var exerciseKeywords = []string{
	"exercise", "workout", "pose", "move", "dance", "jump", "squat", "push", "sit",
	"bicycle", "idle", "pain", "stiffness", "tension", "back", "chest", "legs", "arms",
	"core", "abs", "warmup", "stretch", "strength", "cardio", "flexibility", "mobility",
	"recovery", "relief", "therapy", "rehabilitation",
}

var prescriptionKeywords = []string{
	"prescription", "medicine", "medication", "drug", "tablet", "pill", "dose", "pharmacy",
}

// IsHealthQuery reports whether text mentions stored vitals, in which case
// the record dump goes into the prompt.
func IsHealthQuery(text string) bool {
	return containsAny(text, healthKeywords)
}

// IsExerciseRequest reports whether text asks for a movement clip.
func IsExerciseRequest(text string) bool {
	return containsAny(text, exerciseKeywords)
}

func IsPrescriptionQuery(text string) bool {
	return containsAny(text, prescriptionKeywords)
}

func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
