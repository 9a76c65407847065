package model

import (
	"time"
)

// Level grades severity and urgency assessments.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Rank orders levels from low (1) to critical (4). Unknown levels rank as low.
func (l Level) Rank() int {
	switch l {
	case LevelMedium:
		return 2
	case LevelHigh:
		return 3
	case LevelCritical:
		return 4
	default:
		return 1
	}
}

// HealthRecord is a single ECG analysis snapshot. The JSON shape matches
// what the analyzer scripts print, so results can be stored as received.
type HealthRecord struct {
	FileName        string        `json:"fileName" validate:"required"`
	Timestamp       string        `json:"timestamp" validate:"omitempty,iso8601"`
	HeartRate       HeartRate     `json:"heartRate"`
	BloodPressure   BloodPressure `json:"bloodPressure"`
	Severity        Assessment    `json:"severity"`
	Rhythm          Rhythm        `json:"rhythm"`
	Urgency         Assessment    `json:"urgency"`
	Symptoms        LabeledList   `json:"symptoms"`
	Recommendations LabeledList   `json:"recommendations"`
	MedicalAdvice   LabeledText   `json:"medicalAdvice"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// RecordedAt parses Timestamp. Analyzer output is ISO-8601, with or without
// a zone offset; the zero time is returned when nothing matches.
func (r HealthRecord) RecordedAt() time.Time {
	t, _ := parseTimestamp(r.Timestamp)
	return t
}

// ValidTimestamp reports whether s is in one of the ISO-8601 layouts
// RecordedAt understands. It backs the iso8601 validation tag.
func ValidTimestamp(s string) bool {
	_, ok := parseTimestamp(s)
	return ok
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

type HeartRate struct {
	Label string `json:"label"`
	Value string `json:"data"`
	Unit  string `json:"unit"`
}

type BloodPressure struct {
	Label     string `json:"label"`
	Value     string `json:"data"`
	Systolic  *int   `json:"systolic,omitempty"`
	Diastolic *int   `json:"diastolic,omitempty"`
}

// Assessment is used for both severity and urgency.
type Assessment struct {
	Label string `json:"label"`
	Value string `json:"data"`
	Level Level  `json:"level" validate:"omitempty,oneof=low medium high critical"`
}

type Rhythm struct {
	Label      string  `json:"label"`
	Value      string  `json:"data"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

type LabeledList struct {
	Label string   `json:"label"`
	Items []string `json:"data"`
}

type LabeledText struct {
	Label string `json:"label"`
	Value string `json:"data"`
}

// RecordAnalytics summarises the stored record window.
type RecordAnalytics struct {
	TotalRecords         int            `json:"totalRecords"`
	AverageHeartRate     int            `json:"averageHeartRate"`
	SeverityDistribution map[Level]int  `json:"severityDistribution"`
	UrgencyDistribution  map[Level]int  `json:"urgencyDistribution"`
	RecentData           []HealthRecord `json:"recentData"`
}

// TrendSummary compares the newest and oldest records of the window.
type TrendSummary struct {
	HeartRateTrend     string `json:"heartRateTrend"`
	SeverityTrend      string `json:"severityTrend"`
	AverageHeartRate   int    `json:"averageHeartRate"`
	MostCommonSeverity Level  `json:"mostCommonSeverity"`
	MostCommonUrgency  Level  `json:"mostCommonUrgency"`
}

// RecordContext is the formatted record dump served to chat clients.
type RecordContext struct {
	Data         string        `json:"data"`
	TotalRecords int           `json:"totalRecords"`
	LatestRecord *HealthRecord `json:"latestRecord"`
}

// Clone returns a deep copy of r.
func (r HealthRecord) Clone() HealthRecord {
	out := r
	if r.BloodPressure.Systolic != nil {
		v := *r.BloodPressure.Systolic
		out.BloodPressure.Systolic = &v
	}
	if r.BloodPressure.Diastolic != nil {
		v := *r.BloodPressure.Diastolic
		out.BloodPressure.Diastolic = &v
	}
	out.Symptoms.Items = cloneStrings(r.Symptoms.Items)
	out.Recommendations.Items = cloneStrings(r.Recommendations.Items)
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
