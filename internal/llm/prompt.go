package llm

import (
	"fmt"
	"strings"

	"github.com/NEMYSESx/sift/internal/preprocess"
	"github.com/NEMYSESx/sift/internal/vectorstore"
)

// BuildAnalysisPrompt assembles the debugging prompt from the retrieved
// evidence chunks and any detected environment facts. Chunks without a
// payload are skipped.
func BuildAnalysisPrompt(records []vectorstore.RetrievedRecord, info preprocess.SystemInfo) string {
	var b strings.Builder

	b.WriteString("You are an expert CI/CD debugging assistant.\n\n")
	b.WriteString("Below are extracted log snippets from a failed CI/CD pipeline.\n")

	if !info.IsEmpty() {
		b.WriteString("\n--- System Information ---\n")
		writeInfoLine(&b, "Platform", info.Platform)
		writeInfoLine(&b, "Operating System", info.OS)
		writeInfoLine(&b, "Programming Language", info.Language)
		writeInfoLine(&b, "Repository", info.Repository)
		writeInfoLine(&b, "Git Version", info.GitVersion)
	}

	b.WriteString("\nLOG CONTEXT:\n")
	n := 0
	for _, record := range records {
		if record.Chunk == "" {
			continue
		}
		n++
		fmt.Fprintf(&b, "[CHUNK %d]\n%s\n", n, record.Chunk)
	}
	if n == 0 {
		b.WriteString("No log snippets were retrieved.\n")
	}

	b.WriteString("\nTASK:\n")
	b.WriteString("1. Explain the root cause clearly.\n")
	b.WriteString("2. List 2-3 likely causes.\n")
	b.WriteString("3. Suggest concrete fixes (commands, config, or code).\n")
	b.WriteString("4. Mention assumptions if any.\n")

	return b.String()
}

func writeInfoLine(b *strings.Builder, label, value string) {
	if value != "" {
		fmt.Fprintf(b, "%s: %s\n", label, value)
	}
}
