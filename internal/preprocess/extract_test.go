package preprocess

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractRelevantEmptyInput(t *testing.T) {
	assert.Equal(t, "", ExtractRelevant("", DefaultExtractConfig()))
}

func TestExtractRelevantFallbackReturnsTail(t *testing.T) {
	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, fmt.Sprintf("plain line %d", i))
	}
	text := strings.Join(lines, "\n")

	cfg := DefaultExtractConfig()
	cfg.FallbackLines = 5

	got := ExtractRelevant(text, cfg)
	assert.Equal(t, strings.Join(lines[15:], "\n"), got)
}

func TestExtractRelevantFallbackShortInput(t *testing.T) {
	text := "one\ntwo\nthree"

	cfg := DefaultExtractConfig()
	cfg.FallbackLines = 10

	// Fewer lines than the window: everything comes back.
	assert.Equal(t, text, ExtractRelevant(text, cfg))
}

func TestBuildBlocksMergesContiguousIndices(t *testing.T) {
	lines := make([]string, 12)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i)
	}
	matched := map[int]struct{}{3: {}, 4: {}, 5: {}, 9: {}, 10: {}}

	blocks := buildBlocks(matched, lines)

	require.Len(t, blocks, 2)
	assert.Equal(t, "line 3\nline 4\nline 5", blocks[0])
	assert.Equal(t, "line 9\nline 10", blocks[1])
}

func TestExtractRelevantBlockSeparator(t *testing.T) {
	var lines []string
	for i := 0; i < 40; i++ {
		lines = append(lines, fmt.Sprintf("ok step %d", i))
	}
	lines[5] = "ERROR: unit tests"
	lines[30] = "FATAL: disk full"

	got := ExtractRelevant(strings.Join(lines, "\n"), DefaultExtractConfig())

	parts := strings.Split(got, blockSeparator)
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0], "ERROR: unit tests")
	assert.Contains(t, parts[0], "ok step 3")
	assert.Contains(t, parts[0], "ok step 7")
	assert.Contains(t, parts[1], "FATAL: disk full")
}

func TestExtractRelevantSizeGuardFallsBack(t *testing.T) {
	var lines []string
	for i := 0; i < 50; i++ {
		lines = append(lines, fmt.Sprintf("ERROR number %d with some padding text", i))
	}
	text := strings.Join(lines, "\n")

	cfg := DefaultExtractConfig()
	cfg.MaxChars = 100
	cfg.FallbackLines = 3

	// Oversized evidence must yield exactly the tail window, never a
	// truncated block.
	assert.Equal(t, strings.Join(lines[47:], "\n"), ExtractRelevant(text, cfg))
}

func TestExtractRelevantStackTraceGrowth(t *testing.T) {
	lines := []string{
		"INFO start",
		"Traceback (most recent call last):",
		`  File "x.py", line 1, in <module>`,
		"    raise ValueError",
		"ValueError",
		"INFO done",
	}

	got := ExtractRelevant(strings.Join(lines, "\n"), DefaultExtractConfig())

	// Starter marks everything up to the growth cap, so the whole tail of
	// this short log is a single block.
	assert.Contains(t, got, "Traceback (most recent call last):")
	assert.Contains(t, got, "ValueError")
	assert.Contains(t, got, "INFO done")
	assert.NotContains(t, got, blockSeparator)
}

func TestExtractRelevantEndToEndScenario(t *testing.T) {
	lines := []string{
		"INFO start",
		"ERROR: build failed",
		"Traceback (most recent call last):",
		`  File "x.py", line 1`,
		"INFO done",
	}
	text := strings.Join(lines, "\n")

	got := ExtractRelevant(text, DefaultExtractConfig())
	assert.Contains(t, got, "ERROR: build failed")
	assert.Contains(t, got, "Traceback (most recent call last):")
	assert.Contains(t, got, `File "x.py", line 1`)

	meta := Summarize(text)
	assert.True(t, meta.ContainsTraceback)
}

func TestExtractRelevantBinaryGarbage(t *testing.T) {
	// Undecodable bytes come in as replacement runes; extraction must not
	// panic and must still produce the fallback.
	garbage := strings.Repeat("�\x00�\n", 10)
	got := ExtractRelevant(garbage, DefaultExtractConfig())
	assert.NotEmpty(t, got)
}

func TestSplitLinesDropsTrailingNewlineAndCR(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitLines("a\r\nb\n"))
}
