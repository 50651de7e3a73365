package llm

import (
	"strings"
	"testing"

	"github.com/NEMYSESx/sift/internal/preprocess"
	"github.com/NEMYSESx/sift/internal/vectorstore"
	"github.com/stretchr/testify/assert"
)

func TestBuildAnalysisPromptNumbersChunks(t *testing.T) {
	records := []vectorstore.RetrievedRecord{
		{ID: int64(0), Score: 0.9, Chunk: "ERROR: tests failed"},
		{ID: int64(1), Score: 0.5, Chunk: ""}, // payload-less hit is skipped
		{ID: int64(2), Score: 0.4, Chunk: "exit code 1"},
	}

	prompt := BuildAnalysisPrompt(records, preprocess.SystemInfo{})

	assert.Contains(t, prompt, "[CHUNK 1]\nERROR: tests failed")
	assert.Contains(t, prompt, "[CHUNK 2]\nexit code 1")
	assert.NotContains(t, prompt, "[CHUNK 3]")
	assert.NotContains(t, prompt, "System Information")
	assert.Contains(t, prompt, "TASK:")
}

func TestBuildAnalysisPromptSystemInfoSection(t *testing.T) {
	info := preprocess.SystemInfo{
		Platform: "GitHub Actions",
		OS:       "Ubuntu 22.04.3",
	}

	prompt := BuildAnalysisPrompt(nil, info)

	assert.Contains(t, prompt, "--- System Information ---")
	assert.Contains(t, prompt, "Platform: GitHub Actions")
	assert.Contains(t, prompt, "Operating System: Ubuntu 22.04.3")
	assert.NotContains(t, prompt, "Git Version:")
	assert.Contains(t, prompt, "No log snippets were retrieved.")
}

func TestBuildAnalysisPromptChunkOrderPreserved(t *testing.T) {
	records := []vectorstore.RetrievedRecord{
		{Chunk: "first by score"},
		{Chunk: "second by score"},
	}
	prompt := BuildAnalysisPrompt(records, preprocess.SystemInfo{})
	assert.Less(t,
		strings.Index(prompt, "first by score"),
		strings.Index(prompt, "second by score"))
}
