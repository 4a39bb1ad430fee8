package rules

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// DefaultPassLimit bounds how many times the substitution list is re-applied
// while it keeps changing the text.
const DefaultPassLimit = 30

// ErrBadRule is wrapped by every parse failure.
var ErrBadRule = errors.New("invalid substitution rule")

type substitution interface {
	replace(text string) (string, bool)
}

// Engine applies user substitutions until the text stops changing.
//
// A rules file holds one substitution per line:
//
//	pull request => PR
//	s/\bdeep\s*gram\b/Deepgram/g
//
// Literal rules match case-insensitively. Regex rules are case-insensitive
// by default and accept the flags i, g, m and s. Blank lines and lines
// starting with # are ignored.
type Engine struct {
	subs      []substitution
	passLimit int
}

// LoadFile reads a rules file. An empty path or a missing file yields an
// engine with no substitutions.
func LoadFile(path string, passLimit int) (*Engine, error) {
	if strings.TrimSpace(path) == "" {
		return newEngine(nil, passLimit), nil
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return newEngine(nil, passLimit), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open rules file: %w", err)
	}
	defer f.Close()

	e, err := Parse(f, passLimit)
	if err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}

	return e, nil
}

// Parse compiles substitutions from r.
func Parse(r io.Reader, passLimit int) (*Engine, error) {
	var subs []substitution

	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		sub, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		subs = append(subs, sub)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}

	return newEngine(subs, passLimit), nil
}

func newEngine(subs []substitution, passLimit int) *Engine {
	if passLimit <= 0 {
		passLimit = DefaultPassLimit
	}
	return &Engine{subs: subs, passLimit: passLimit}
}

// Len returns the number of substitutions loaded.
func (e *Engine) Len() int {
	return len(e.subs)
}

// Apply implements Rule.
func (e *Engine) Apply(text string) string {
	for range e.passLimit {
		changed := false
		for _, sub := range e.subs {
			if next, ok := sub.replace(text); ok {
				text = next
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	return text
}

func parseLine(line string) (substitution, error) {
	if isRegexRule(line) {
		return parseRegex(line)
	}
	if from, to, ok := strings.Cut(line, "=>"); ok {
		return parseLiteral(strings.TrimSpace(from), strings.TrimSpace(to))
	}

	return nil, fmt.Errorf("%w: expected 'from => to' or 's/pattern/replacement/flags'", ErrBadRule)
}

type literal struct {
	re *regexp.Regexp
	to string
}

func parseLiteral(from, to string) (substitution, error) {
	if from == "" {
		return nil, fmt.Errorf("%w: empty source text", ErrBadRule)
	}

	return literal{re: regexp.MustCompile("(?i)" + regexp.QuoteMeta(from)), to: to}, nil
}

func (l literal) replace(text string) (string, bool) {
	out := l.re.ReplaceAllLiteralString(text, l.to)
	return out, out != text
}

type pattern struct {
	re     *regexp.Regexp
	to     string
	global bool
}

func isRegexRule(line string) bool {
	return len(line) > 2 && line[0] == 's' && isDelimiter(line[1])
}

func isDelimiter(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return false
	case b == ' ', b == '\t', b == '\\':
		return false
	}
	return true
}

func parseRegex(line string) (substitution, error) {
	delim := line[1]

	expr, rest, err := splitDelimited(line[2:], delim)
	if err != nil {
		return nil, err
	}
	to, rest, err := splitDelimited(rest, delim)
	if err != nil {
		return nil, err
	}

	p := pattern{to: to}
	flags := "i"
	for _, f := range strings.TrimSpace(rest) {
		switch f {
		case 'g':
			p.global = true
		case 'i':
		case 'm', 's':
			flags += string(f)
		default:
			return nil, fmt.Errorf("%w: unknown flag %q", ErrBadRule, f)
		}
	}

	re, err := regexp.Compile("(?" + flags + ")" + expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadRule, err)
	}
	p.re = re

	return p, nil
}

// splitDelimited returns the text up to the first unescaped delim and the
// remainder after it. Escapes are kept for the regexp compiler.
func splitDelimited(s string, delim byte) (string, string, error) {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case delim:
			return s[:i], s[i+1:], nil
		}
	}

	return "", "", fmt.Errorf("%w: missing closing %q", ErrBadRule, delim)
}

func (p pattern) replace(text string) (string, bool) {
	var out string
	if p.global {
		out = p.re.ReplaceAllString(text, p.to)
	} else {
		loc := p.re.FindStringSubmatchIndex(text)
		if loc == nil {
			return text, false
		}
		expanded := p.re.ExpandString(nil, p.to, text, loc)
		out = text[:loc[0]] + string(expanded) + text[loc[1]:]
	}

	return out, out != text
}
