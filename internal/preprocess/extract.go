package preprocess

import (
	"sort"
	"strings"
)

const (
	// DefaultFallbackLines is the size of the tail window returned when no
	// pattern matches anything.
	DefaultFallbackLines = 500
	// DefaultContextLines is how many surrounding lines are kept around a
	// keyword match.
	DefaultContextLines = 2
	// DefaultMaxChars bounds the reduced text; oversized results are
	// re-derived through the tail-window fallback.
	DefaultMaxChars = 200_000

	// stackGrowthCap bounds how many lines after a stack trace starter are
	// collected. There is no reliable end-of-trace marker across ecosystems,
	// so the cap is the only terminator; this may over- or under-collect.
	stackGrowthCap = 200

	blockSeparator = "\n\n---\n\n"
)

type ExtractConfig struct {
	FallbackLines int
	ContextLines  int
	MaxChars      int
}

func DefaultExtractConfig() ExtractConfig {
	return ExtractConfig{
		FallbackLines: DefaultFallbackLines,
		ContextLines:  DefaultContextLines,
		MaxChars:      DefaultMaxChars,
	}
}

// ExtractRelevant reduces a raw CI log to the segments that most likely
// explain a failure: lines matching error keywords (with surrounding
// context) and stack trace regions. Matched line indices are merged into
// contiguous blocks joined by a separator. When nothing matches, or the
// joined blocks exceed cfg.MaxChars, the last cfg.FallbackLines lines are
// returned instead — the function always produces some output and never
// fails, whatever the input bytes decode to.
func ExtractRelevant(text string, cfg ExtractConfig) string {
	if text == "" {
		return ""
	}

	lines := splitLines(text)

	matched := markRelevantIndices(lines, cfg.ContextLines)

	if len(matched) == 0 {
		return tailWindow(lines, cfg.FallbackLines)
	}

	blocks := buildBlocks(matched, lines)
	combined := strings.Join(blocks, blockSeparator)

	// Truncating mid-block could cut a stack frame in half, so an oversized
	// result falls back to the tail window instead.
	if len(combined) > cfg.MaxChars {
		return tailWindow(lines, cfg.FallbackLines)
	}

	return combined
}

// markRelevantIndices is the single sequential scan over the log: keyword
// matches mark a context window around the line, stack trace starters mark
// the line plus up to stackGrowthCap following lines. The returned set is
// deduplicated but unordered.
func markRelevantIndices(lines []string, contextLines int) map[int]struct{} {
	n := len(lines)
	matched := make(map[int]struct{})

	for i, line := range lines {
		if errorKeywordRe.MatchString(line) {
			lo := max(0, i-contextLines)
			hi := min(n, i+contextLines+1)
			for j := lo; j < hi; j++ {
				matched[j] = struct{}{}
			}
		}
	}

	for i, line := range lines {
		if stackStarterRe.MatchString(line) {
			hi := min(n, i+stackGrowthCap)
			for j := i; j < hi; j++ {
				matched[j] = struct{}{}
			}
		}
	}

	return matched
}

// buildBlocks sorts the matched indices and merges truly contiguous ones
// (difference <= 1) into maximal blocks, each rendered as its joined line
// range. Blocks come out ordered by start index and non-overlapping.
func buildBlocks(matched map[int]struct{}, lines []string) []string {
	idx := make([]int, 0, len(matched))
	for i := range matched {
		idx = append(idx, i)
	}
	sort.Ints(idx)

	var blocks []string
	blockStart := idx[0]
	blockEnd := idx[0]

	for _, i := range idx[1:] {
		if i <= blockEnd+1 {
			blockEnd = i
			continue
		}
		blocks = append(blocks, strings.Join(lines[blockStart:blockEnd+1], "\n"))
		blockStart = i
		blockEnd = i
	}
	blocks = append(blocks, strings.Join(lines[blockStart:blockEnd+1], "\n"))

	return blocks
}

func tailWindow(lines []string, maxLines int) string {
	start := max(0, len(lines)-maxLines)
	return strings.Join(lines[start:], "\n")
}

// splitLines splits on newlines without producing a phantom empty final
// line for newline-terminated input, and tolerates CRLF endings.
func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
