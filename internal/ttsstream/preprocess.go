package ttsstream

import (
	"regexp"
	"strings"
)

// abbreviation expansions applied before synthesis so the voice reads them
// naturally. Matching is case-sensitive and word-bounded.
var abbreviations = []struct {
	pattern *regexp.Regexp
	spoken  string
}{
	{regexp.MustCompile(`\bUI\b`), "user interface"},
	{regexp.MustCompile(`\bAPI\b`), "A P I"},
	{regexp.MustCompile(`\bCEO\b`), "C E O"},
	{regexp.MustCompile(`\bCTO\b`), "C T O"},
	{regexp.MustCompile(`\bVC\b`), "venture capital"},
	{regexp.MustCompile(`\bSaaS\b`), "Software as a Service"},
	{regexp.MustCompile(`\bAI\b`), "artificial intelligence"},
	{regexp.MustCompile(`\bML\b`), "machine learning"},
}

var (
	dotRuns      = regexp.MustCompile(`\.{2,}`)
	bangRuns     = regexp.MustCompile(`!{2,}`)
	questionRuns = regexp.MustCompile(`\?{2,}`)
)

// preprocess prepares a flush segment for synthesis: abbreviations are
// expanded, punctuation runs are collapsed (three or more dots become an
// ellipsis, two become a period, repeated !/? become one), and a period is
// appended when the segment ends without sentence punctuation.
func preprocess(text string) string {
	out := text
	for _, a := range abbreviations {
		out = a.pattern.ReplaceAllString(out, a.spoken)
	}

	out = dotRuns.ReplaceAllStringFunc(out, func(run string) string {
		if len(run) >= 3 {
			return "..."
		}
		return "."
	})
	out = bangRuns.ReplaceAllString(out, "!")
	out = questionRuns.ReplaceAllString(out, "?")

	out = strings.TrimSpace(out)
	if out != "" && !endsWithTerminator(out) {
		out += "."
	}
	return out
}

// endsWithTerminator reports whether s ends with sentence punctuation.
func endsWithTerminator(s string) bool {
	if s == "" {
		return false
	}
	switch s[len(s)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}

// atFlushBoundary reports whether the buffered text should be flushed: it
// ends at a sentence terminator (ignoring trailing whitespace) or has grown
// to the length cap.
func atFlushBoundary(buf string) bool {
	trimmed := strings.TrimRight(buf, " \t\r\n")
	if endsWithTerminator(trimmed) {
		return true
	}
	return len(buf) >= maxBufferedChars
}
