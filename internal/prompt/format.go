package prompt

import (
	"fmt"
	"strings"

	"github.com/jwalitptl/medbot-api/internal/model"
)

const recordSeparator = "\n---\n"

// FormatRecord renders one record as "Label: value" lines.
func FormatRecord(r model.HealthRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Patient Record - %s\n", r.FileName)
	fmt.Fprintf(&b, "Date: %s\n", recordDate(r))
	b.WriteString(HeartRateLine(r) + "\n")
	fmt.Fprintf(&b, "%s: %s\n", or(r.BloodPressure.Label, "Blood Pressure"), r.BloodPressure.Value)
	fmt.Fprintf(&b, "%s: %s (%s)\n", or(r.Severity.Label, "Severity"), r.Severity.Value, r.Severity.Level)
	fmt.Fprintf(&b, "%s: %s (%.1f%% confidence)\n", or(r.Rhythm.Label, "Rhythm"), r.Rhythm.Value, r.Rhythm.Confidence*100)
	fmt.Fprintf(&b, "%s: %s (%s)\n", or(r.Urgency.Label, "Urgency"), r.Urgency.Value, r.Urgency.Level)
	fmt.Fprintf(&b, "%s: %s\n", or(r.Symptoms.Label, "Symptoms"), strings.Join(r.Symptoms.Items, ", "))
	fmt.Fprintf(&b, "%s: %s\n", or(r.MedicalAdvice.Label, "Medical Advice"), r.MedicalAdvice.Value)
	fmt.Fprintf(&b, "%s: %s", or(r.Recommendations.Label, "Recommendations"), strings.Join(r.Recommendations.Items, "; "))
	return b.String()
}

// HeartRateLine is the heart-rate line of FormatRecord, e.g. "Heart Rate: 72 bpm".
func HeartRateLine(r model.HealthRecord) string {
	return strings.TrimSpace(fmt.Sprintf("%s: %s %s", or(r.HeartRate.Label, "Heart Rate"), r.HeartRate.Value, r.HeartRate.Unit))
}

// FormatRecords renders records in the given order separated by "---".
func FormatRecords(records []model.HealthRecord) string {
	parts := make([]string, len(records))
	for i, r := range records {
		parts[i] = FormatRecord(r)
	}
	return strings.Join(parts, recordSeparator)
}

// FormatRecentAnalyses renders a short summary of the first n records.
func FormatRecentAnalyses(records []model.HealthRecord, n int) string {
	if n < len(records) {
		records = records[:n]
	}
	parts := make([]string, len(records))
	for i, r := range records {
		parts[i] = fmt.Sprintf("Recent Analysis (%s):\n- Heart Rate: %s %s\n- Rhythm: %s\n- Severity: %s\n- Urgency: %s",
			recordDate(r), r.HeartRate.Value, r.HeartRate.Unit, r.Rhythm.Value, r.Severity.Value, r.Urgency.Value)
	}
	return strings.Join(parts, "\n")
}

// PrescriptionSummary renders the latest OCR result. Empty when p is nil.
func PrescriptionSummary(p *model.PrescriptionResult) string {
	if p == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("Latest Prescription Analysis:\n")
	if info := p.StructuredInfo; info != nil {
		if info.PatientName != "" {
			fmt.Fprintf(&b, "Patient: %s\n", info.PatientName)
		}
		if info.Date != "" {
			fmt.Fprintf(&b, "Date: %s\n", info.Date)
		}
		if len(info.Medicines) > 0 {
			fmt.Fprintf(&b, "Medicines Detected: %d\n", len(info.Medicines))
		}
		if len(info.Instructions) > 0 {
			fmt.Fprintf(&b, "Instructions: %d found\n", len(info.Instructions))
		}
	}

	if len(p.RecognizedMedicines) > 0 {
		b.WriteString("\nRecognized Medicines:")
		for _, med := range p.RecognizedMedicines {
			fmt.Fprintf(&b, "\n- %s: %s (For: %s)", med.Name, med.Description, strings.Join(med.Disease, ", "))
		}
	} else {
		b.WriteString("\nNo medicines matched in database.")
	}

	if p.OCRText != "" && p.OCRText != "No text detected" {
		text := []rune(p.OCRText)
		if len(text) > 200 {
			text = text[:200]
		}
		fmt.Fprintf(&b, "\n\nOCR Text: %s...", string(text))
	}
	return b.String()
}

func recordDate(r model.HealthRecord) string {
	if t := r.RecordedAt(); !t.IsZero() {
		return t.Format("2006-01-02")
	}
	return r.Timestamp
}

func or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
