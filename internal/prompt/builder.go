// Package prompt builds the text sent to the generation service and
// post-processes its replies. Everything here is a pure function of its
// inputs.
package prompt

import (
	"fmt"
	"strings"

	"github.com/jwalitptl/medbot-api/internal/model"
)

// DefaultMaxWords bounds generated replies when no limit is configured.
const DefaultMaxWords = 150

// NoMatchMessage is returned instead of a generated reply when no catalog
// entry fits an exercise request.
const NoMatchMessage = "I couldn't find a matching exercise for that request. " +
	"Try asking for a specific type of workout like 'show me a chest exercise' or 'I want to do jumping jacks'."

const medicalFraming = "You are a helpful medical AI assistant. Provide accurate, concise health information " +
	"and always remind users to consult healthcare professionals for medical advice."

// Structured asks for a short answer that ends with the matched clip id in
// quotes, so ExtractQuoted can recover it from the reply.
func Structured(input string, entry model.CatalogEntry) string {
	return fmt.Sprintf(`You are a fitness assistant. Given the user's input and the matched animation from the database, respond in two sentences or less. End with the animation file name in quotes.

User: %s
Matched animation description: %s
Animation file: "%s"

Response:`, input, entry.Description, entry.ID)
}

// Default frames question for the medical assistant with a word limit.
func Default(question string, maxWords int) string {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	return fmt.Sprintf("%s\n\nPlease provide a concise response in under %d words. Be direct and to the point.\n\nUser question: %s",
		medicalFraming, maxWords, question)
}

// HealthContext prepends the record dump to the default prompt. With no
// records it is identical to Default.
func HealthContext(records []model.HealthRecord, question string, maxWords int) string {
	return WithRecords(Default(question, maxWords), records)
}

// WithRecords prepends the record dump to p. With no records p is returned
// unchanged.
func WithRecords(p string, records []model.HealthRecord) string {
	if len(records) == 0 {
		return p
	}
	return "Patient ECG Data:\n" + FormatRecords(records) + "\n\n" + p
}

// WithPrescription appends a prescription summary block to p.
func WithPrescription(p string, summary string) string {
	if summary == "" {
		return p
	}
	return "Prescription Data:\n" + summary + "\n\n" + p
}

// MedicalContext is the long-form context served to dashboard clients: the
// full record dump, recent analyses, statistics and latest recommendations.
func MedicalContext(query string, records []model.HealthRecord, prescription *model.PrescriptionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Medical Context for Query: %q\n\n", query)
	b.WriteString("PATIENT DATA:\n")
	b.WriteString(FormatRecords(records))
	b.WriteString("\n\n")

	if IsPrescriptionQuery(query) {
		if summary := PrescriptionSummary(prescription); summary != "" {
			b.WriteString("PRESCRIPTION DATA:\n" + summary + "\n\n")
		}
	}

	b.WriteString("RECENT ANALYSES:\n")
	b.WriteString(FormatRecentAnalyses(records, 3))
	b.WriteString("\n\nSTATISTICS:\n")
	b.WriteString(FormatStatistics(Analytics(records)))
	b.WriteString("\n\nLATEST RECOMMENDATIONS:\n")
	b.WriteString(latestRecommendations(records))
	b.WriteString("\n\nPlease provide medical advice based on this patient's ECG and prescription data and history. " +
		"Consider the severity levels, urgency, medicines, and trends in the data when formulating your response.")
	return b.String()
}

func latestRecommendations(records []model.HealthRecord) string {
	if len(records) == 0 {
		return "No recent recommendations available."
	}
	latest := records[0]
	lines := make([]string, 0, len(latest.Recommendations.Items)+1)
	lines = append(lines, fmt.Sprintf("Latest Recommendations (%s):", recordDate(latest)))
	for _, rec := range latest.Recommendations.Items {
		lines = append(lines, "- "+rec)
	}
	return strings.Join(lines, "\n")
}
