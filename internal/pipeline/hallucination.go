package pipeline

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// minMeaningfulRunes is the shortest transcript treated as real speech.
const minMeaningfulRunes = 4

// Known artifacts that engines produce from near-silent audio.
var hallucinationPatterns = []*regexp.Regexp{
	// nothing but markers such as [BLANK_AUDIO] or (music), alone or in a run
	regexp.MustCompile(`^(\s*(\[[^\]]*\]|\([^)]*\)))+\s*$`),
	// stock phrases, anchored at the start
	regexp.MustCompile(`(?i)^thanks? (you )?for watching\b`),
	regexp.MustCompile(`(?i)^please subscribe\b`),
	regexp.MustCompile(`(?i)^subtitles by\b`),
	regexp.MustCompile(`(?i)^the end\b`),
	regexp.MustCompile(`(?i)^copyright\b`),
	// a lone "you", possibly repeated
	regexp.MustCompile(`(?i)^(you[.!,]?\s*)+$`),
	regexp.MustCompile(`^\.+$`),
}

// IsHallucination reports whether a finished transcript is an artifact of
// silence rather than speech.
func IsHallucination(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}

	if utf8.RuneCountInString(trimmed) < minMeaningfulRunes {
		return true
	}

	for _, re := range hallucinationPatterns {
		if re.MatchString(trimmed) {
			return true
		}
	}

	return false
}
