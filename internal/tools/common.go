package tools

import "regexp"

const maxOutputBytes = 10_000

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

func truncate(b []byte) string {
	if len(b) > maxOutputBytes {
		return string(b[:maxOutputBytes]) + "\n... (truncated)"
	}
	return string(b)
}

func stripTags(s string) string {
	return htmlTagRe.ReplaceAllString(s, "")
}
