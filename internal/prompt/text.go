package prompt

import (
	"regexp"
	"strings"
	"sync"
)

// Ellipsis marks a truncated reply.
const Ellipsis = "..."

// WordCount counts whitespace-delimited words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Truncate keeps the first max words of text. Text within the limit is
// returned unchanged; otherwise the kept words are joined by single spaces
// and Ellipsis is appended to the last one. A non-positive max disables
// truncation.
func Truncate(text string, max int) string {
	if max <= 0 {
		return text
	}
	words := strings.Fields(text)
	if len(words) <= max {
		return text
	}
	return strings.Join(words[:max], " ") + Ellipsis
}

var (
	quotedMu sync.Mutex
	quotedRe = map[string]*regexp.Regexp{}
)

// ExtractQuoted returns the first double-quoted token in text that ends
// with suffix, e.g. "squat.fbx".
func ExtractQuoted(text, suffix string) (string, bool) {
	m := quotedPattern(suffix).FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func quotedPattern(suffix string) *regexp.Regexp {
	quotedMu.Lock()
	defer quotedMu.Unlock()

	re, ok := quotedRe[suffix]
	if !ok {
		re = regexp.MustCompile(`"([^"]+` + regexp.QuoteMeta(suffix) + `)"`)
		quotedRe[suffix] = re
	}
	return re
}
