// Package rules holds the deterministic text rules applied to a transcript
// before any AI rewrite.
package rules

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Built-in rule ids.
const (
	RemoveFillers    = "remove-fillers"
	SmartPunctuation = "smart-punctuation"
	FixGrammar       = "fix-grammar"
	Custom           = "custom"
)

// Rule is a pure text transform.
type Rule interface {
	Apply(text string) string
}

// Func adapts a plain function to Rule.
type Func func(string) string

func (f Func) Apply(text string) string { return f(text) }

// Info describes a rule for listings.
type Info struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	// LLM marks rules that run as the cycle's AI step, not here.
	LLM bool `json:"llm"`
}

// Catalog lists the rules every Set knows about.
var Catalog = []Info{
	{ID: RemoveFillers, Name: "Remove Filler Words", Description: "Drops um, uh, like, you know and similar fillers."},
	{ID: SmartPunctuation, Name: "Smart Punctuation", Description: "Capitalises sentences and adds a closing period."},
	{ID: FixGrammar, Name: "Fix Grammar", Description: "Rewrites the text with an LLM grammar pass.", LLM: true},
	{ID: Custom, Name: "Custom Substitutions", Description: "Substitutions loaded from the rules file."},
}

// Set resolves rule ids to rules and applies them in the caller's order.
type Set struct {
	rules  map[string]Rule
	logger *slog.Logger
}

// NewSet returns the built-in rules. A nil custom engine leaves the custom
// rule as a no-op.
func NewSet(custom *Engine, logger *slog.Logger) *Set {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Set{
		rules: map[string]Rule{
			RemoveFillers:    Func(StripFillers),
			SmartPunctuation: Func(Punctuate),
		},
		logger: logger,
	}
	if custom != nil {
		s.rules[Custom] = custom
	}

	return s
}

// Apply runs each listed rule on the previous rule's output. Unknown ids and
// LLM-backed ids are skipped.
func (s *Set) Apply(text string, ids []string) string {
	for _, id := range ids {
		rule, ok := s.rules[id]
		if !ok {
			if id != FixGrammar {
				s.logger.Debug("Unknown rule", "id", id)
			}
			continue
		}
		text = rule.Apply(text)
	}

	return text
}

// fillerRe lists longer alternatives first so "uhm" wins over "uh". Word
// boundaries are checked by hand since \b only knows ASCII letters.
var (
	fillerRe     = regexp.MustCompile(`(?i)(uhm|um|uh|er|ah|like|you know|I mean|so|basically|actually|literally|right)`)
	multiSpaceRe = regexp.MustCompile(`\s{2,}`)
	sentenceRe   = regexp.MustCompile(`([.!?]\s+)([\p{L}\p{N}_])`)
)

// StripFillers removes filler words and tidies the remaining whitespace.
func StripFillers(text string) string {
	var sb strings.Builder
	last := 0
	for _, loc := range fillerRe.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		if start < last || !isWordAt(text, start, end) {
			continue
		}

		sb.WriteString(text[last:start])
		last = end + len(text[end:]) - len(strings.TrimLeftFunc(text[end:], unicode.IsSpace))
	}
	sb.WriteString(text[last:])

	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(sb.String(), " "))
}

// isWordAt reports whether text[start:end] is a whole word: neither
// neighbouring rune is a letter, digit or underscore.
func isWordAt(text string, start, end int) bool {
	if before, _ := utf8.DecodeLastRuneInString(text[:start]); start > 0 && isWordRune(before) {
		return false
	}
	if after, _ := utf8.DecodeRuneInString(text[end:]); end < len(text) && isWordRune(after) {
		return false
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// Punctuate ends the text with a period unless it already ends a sentence and
// capitalises the start of every sentence.
func Punctuate(text string) string {
	out := strings.TrimRightFunc(text, unicode.IsSpace)
	if out == "" {
		return out
	}

	if !strings.HasSuffix(out, ".") && !strings.HasSuffix(out, "!") && !strings.HasSuffix(out, "?") {
		out += "."
	}

	out = sentenceRe.ReplaceAllStringFunc(out, func(m string) string {
		r, size := utf8.DecodeLastRuneInString(m)
		return m[:len(m)-size] + string(unicode.ToUpper(r))
	})

	first, size := utf8.DecodeRuneInString(out)
	return string(unicode.ToUpper(first)) + out[size:]
}
