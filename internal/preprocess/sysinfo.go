package preprocess

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	osGroupRe        = regexp.MustCompile(`##\[group\]Operating System\s*\n(.*?)\s*\n([\d.]+)`)
	cpythonSetupRe   = regexp.MustCompile(`Successfully set up CPython \((.*?)\)`)
	pythonVersionRe  = regexp.MustCompile(`python-version:\s*([\d.]+)`)
	repositorySlugRe = regexp.MustCompile(`repository:\s*([\w/-]+)`)
	gitVersionRe     = regexp.MustCompile(`git version ([\d.]+)`)
)

// SystemInfo carries environment facts scraped from the raw log, such as the
// CI platform and runtime versions. Fields are empty when undetected.
type SystemInfo struct {
	Platform   string `json:"platform,omitempty"`
	OS         string `json:"operating_system,omitempty"`
	Language   string `json:"language,omitempty"`
	Repository string `json:"repository,omitempty"`
	GitVersion string `json:"git_version,omitempty"`
}

// ExtractSystemInfo pulls platform and toolchain details out of a raw CI
// log. Detection is pattern based and currently biased towards GitHub
// Actions logs; unknown formats simply produce an empty SystemInfo.
func ExtractSystemInfo(text string) SystemInfo {
	var info SystemInfo

	if strings.Contains(text, "##[group]") || strings.Contains(text, "actions/checkout") {
		info.Platform = "GitHub Actions"
	}

	if m := osGroupRe.FindStringSubmatch(text); m != nil {
		info.OS = fmt.Sprintf("%s %s", strings.TrimSpace(m[1]), strings.TrimSpace(m[2]))
	}

	if m := cpythonSetupRe.FindStringSubmatch(text); m != nil {
		info.Language = fmt.Sprintf("Python (%s)", strings.TrimSpace(m[1]))
	} else if m := pythonVersionRe.FindStringSubmatch(text); m != nil {
		info.Language = fmt.Sprintf("Python (%s)", strings.TrimSpace(m[1]))
	}

	if m := repositorySlugRe.FindStringSubmatch(text); m != nil {
		info.Repository = strings.TrimSpace(m[1])
	}

	if m := gitVersionRe.FindStringSubmatch(text); m != nil {
		info.GitVersion = strings.TrimSpace(m[1])
	}

	return info
}

// IsEmpty reports whether nothing was detected.
func (s SystemInfo) IsEmpty() bool {
	return s == SystemInfo{}
}
