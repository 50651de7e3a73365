package preprocess

import (
	"sort"
	"strings"
)

// maxDetectedKeywords caps the distinct keyword list carried in Metadata.
const maxDetectedKeywords = 10

// Metadata is a quick, derived characterization of a log, useful for
// prompts or a UI. It is computed in one pass, independently of extraction.
type Metadata struct {
	TotalLines        int      `json:"total_lines"`
	ErrorLineCount    int      `json:"error_line_count"`
	ContainsTraceback bool     `json:"contains_traceback"`
	DetectedKeywords  []string `json:"detected_keywords"`
}

// Summarize scans the log once and counts error-keyword lines, collects the
// matched keywords (uppercased, deduplicated, sorted, capped), and flags
// stack traces. The traceback flag fires on the literal substring
// "traceback" as well as the starter patterns; the substring check is
// deliberately redundant and catches traces the pattern list misses.
// Empty input yields the zero summary. Summarize never fails.
func Summarize(text string) Metadata {
	meta := Metadata{DetectedKeywords: []string{}}
	if text == "" {
		return meta
	}

	lines := splitLines(text)
	meta.TotalLines = len(lines)

	detected := make(map[string]struct{})
	for _, line := range lines {
		if kw := errorKeywordRe.FindString(line); kw != "" {
			meta.ErrorLineCount++
			detected[strings.ToUpper(kw)] = struct{}{}
		}
		if strings.Contains(strings.ToLower(line), "traceback") || stackStarterRe.MatchString(line) {
			meta.ContainsTraceback = true
		}
	}

	for kw := range detected {
		meta.DetectedKeywords = append(meta.DetectedKeywords, kw)
	}
	sort.Strings(meta.DetectedKeywords)
	if len(meta.DetectedKeywords) > maxDetectedKeywords {
		meta.DetectedKeywords = meta.DetectedKeywords[:maxDetectedKeywords]
	}

	return meta
}
