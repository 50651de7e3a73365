package preprocess

import "regexp"

// Patterns that commonly indicate errors or failures in CI logs.
var errorKeywordRe = regexp.MustCompile(
	`(?i)\b(ERROR|FAILED|FAIL|EXCEPTION|TRACEBACK|Stacktrace|panic|segfault|exit code|fatal)\b`,
)

// Common stack trace starters for Python, Java, Node and Go.
var stackStarterRe = regexp.MustCompile(
	`(?i)Traceback \(most recent call last\):` +
		`|Exception in thread` +
		`|\bat [\w.$]+\(.*\)` +
		`|File ".*", line \d+` +
		`|panic: `,
)
