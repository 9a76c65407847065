package prompt

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/jwalitptl/medbot-api/internal/model"
)

const recentWindow = 5

// Analytics summarises records, which are expected newest first.
func Analytics(records []model.HealthRecord) model.RecordAnalytics {
	a := model.RecordAnalytics{
		TotalRecords:         len(records),
		SeverityDistribution: map[model.Level]int{},
		UrgencyDistribution:  map[model.Level]int{},
		RecentData:           []model.HealthRecord{},
	}
	if len(records) == 0 {
		return a
	}

	a.AverageHeartRate = averageHeartRate(records)
	for _, r := range records {
		a.SeverityDistribution[r.Severity.Level]++
		a.UrgencyDistribution[r.Urgency.Level]++
	}

	n := recentWindow
	if n > len(records) {
		n = len(records)
	}
	a.RecentData = append(a.RecentData, records[:n]...)
	return a
}

// Trend compares the oldest and newest record of a newest-first window. ok
// is false with fewer than two records.
func Trend(records []model.HealthRecord) (model.TrendSummary, bool) {
	if len(records) < 2 {
		return model.TrendSummary{}, false
	}

	oldest, newest := records[len(records)-1], records[0]
	severities := make([]model.Level, len(records))
	urgencies := make([]model.Level, len(records))
	for i, r := range records {
		severities[i] = r.Severity.Level
		urgencies[i] = r.Urgency.Level
	}

	return model.TrendSummary{
		HeartRateTrend:     heartRateTrend(parseHeartRate(oldest.HeartRate.Value), parseHeartRate(newest.HeartRate.Value)),
		SeverityTrend:      severityTrend(oldest.Severity.Level, newest.Severity.Level),
		AverageHeartRate:   averageHeartRate(records),
		MostCommonSeverity: mostCommon(severities),
		MostCommonUrgency:  mostCommon(urgencies),
	}, true
}

// FormatStatistics renders Analytics as a bulleted block.
func FormatStatistics(a model.RecordAnalytics) string {
	return fmt.Sprintf("Overall Statistics:\n- Total Records: %d\n- Average Heart Rate: %d BPM\n- Severity Distribution: %s\n- Urgency Distribution: %s",
		a.TotalRecords, a.AverageHeartRate, formatDistribution(a.SeverityDistribution), formatDistribution(a.UrgencyDistribution))
}

func FormatTrend(t model.TrendSummary) string {
	return fmt.Sprintf("TREND ANALYSIS:\n- Heart Rate Trend: %s\n- Severity Trend: %s\n- Average Heart Rate: %d BPM\n- Most Common Severity: %s\n- Most Common Urgency: %s",
		t.HeartRateTrend, t.SeverityTrend, t.AverageHeartRate, t.MostCommonSeverity, t.MostCommonUrgency)
}

func averageHeartRate(records []model.HealthRecord) int {
	var sum float64
	var n int
	for _, r := range records {
		v, err := strconv.ParseFloat(strings.TrimSpace(r.HeartRate.Value), 64)
		if err != nil {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return int(math.Round(sum / float64(n)))
}

func parseHeartRate(v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0
	}
	return f
}

func heartRateTrend(first, last float64) string {
	change := last - first
	switch {
	case change == 0:
		return "Stable (0% change)"
	case first == 0:
		if change > 0 {
			return "Increasing"
		}
		return "Decreasing"
	case change > 0:
		return fmt.Sprintf("Increasing (+%.1f%%)", change/first*100)
	default:
		return fmt.Sprintf("Decreasing (%.1f%%)", change/first*100)
	}
}

func severityTrend(from, to model.Level) string {
	first, last := from.Rank(), to.Rank()
	switch {
	case last > first:
		return "Worsening"
	case last < first:
		return "Improving"
	default:
		return "Stable"
	}
}

// mostCommon returns the most frequent level; on a tie the level that
// reached the top count first wins.
func mostCommon(levels []model.Level) model.Level {
	if len(levels) == 0 {
		return ""
	}
	counts := map[model.Level]int{}
	best := levels[0]
	for _, l := range levels {
		counts[l]++
		if counts[l] > counts[best] {
			best = l
		}
	}
	return best
}

func formatDistribution(d map[model.Level]int) string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, string(k))
	}
	sort.Slice(keys, func(i, j int) bool {
		return model.Level(keys[i]).Rank() < model.Level(keys[j]).Rank() ||
			(model.Level(keys[i]).Rank() == model.Level(keys[j]).Rank() && keys[i] < keys[j])
	})

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %d", k, d[model.Level(k)])
	}
	return strings.Join(parts, ", ")
}
