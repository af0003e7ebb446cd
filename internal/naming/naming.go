// Package naming derives sequences of output filenames from a base name.
package naming

import (
	"strconv"
	"unicode"
	"unicode/utf8"
)

// Kind identifies which suffix rule a base name matched.
type Kind int

const (
	Plain      Kind = iota // No counter; "-N" is appended
	Alphabetic             // Trailing single letter counts A, B, C...
	Numeric                // Trailing digits count up
)

func (k Kind) String() string {
	switch k {
	case Alphabetic:
		return "alphabetic"
	case Numeric:
		return "numeric"
	default:
		return "plain"
	}
}

// Pattern is the classified form of a base name.
//
// Only the fields relevant to Kind are set: Start for Numeric, Letter for
// Alphabetic. Prefix is the text before the counter (the whole base for Plain).
type Pattern struct {
	Kind   Kind
	Prefix string
	Start  int
	Letter byte
}

// Classify matches the trailing characters of base against the suffix rules,
// in priority order: single trailing letter, trailing digits, plain.
func Classify(base string) Pattern {
	if p, ok := classifyLetter(base); ok {
		return p
	}
	if p, ok := classifyDigits(base); ok {
		return p
	}
	return Pattern{Kind: Plain, Prefix: base}
}

// classifyLetter matches a single ASCII letter that is either the whole
// string or preceded by a non-letter ("Scan-A", "B", but not "Scan").
func classifyLetter(base string) (Pattern, bool) {
	if base == "" {
		return Pattern{}, false
	}
	last := base[len(base)-1]
	if !isASCIILetter(last) {
		return Pattern{}, false
	}
	prefix := base[:len(base)-1]
	if prefix != "" {
		prev, _ := utf8.DecodeLastRuneInString(prefix)
		if unicode.IsLetter(prev) {
			return Pattern{}, false
		}
	}
	return Pattern{Kind: Alphabetic, Prefix: prefix, Letter: last}, true
}

func classifyDigits(base string) (Pattern, bool) {
	i := len(base)
	for i > 0 && base[i-1] >= '0' && base[i-1] <= '9' {
		i--
	}
	if i == len(base) {
		return Pattern{}, false
	}
	start, err := strconv.Atoi(base[i:])
	if err != nil {
		// Digit run too long for an int.
		return Pattern{}, false
	}
	return Pattern{Kind: Numeric, Prefix: base[:i], Start: start}, true
}

// Render returns the name of item i (0-based).
func (p Pattern) Render(i int) string {
	switch p.Kind {
	case Alphabetic:
		return p.renderLetter(i)
	case Numeric:
		return p.Prefix + strconv.Itoa(p.Start+i)
	default:
		return p.Prefix + "-" + strconv.Itoa(i+1)
	}
}

// renderLetter advances the letter within its case. Past 'Z'/'z' it keeps
// the original letter and appends how far past the end the item falls.
func (p Pattern) renderLetter(i int) string {
	first := byte('A')
	if p.Letter >= 'a' {
		first = 'a'
	}
	offset := int(p.Letter-first) + i
	if offset < 26 {
		return p.Prefix + string(rune(int(first)+offset))
	}
	return p.Prefix + string(p.Letter) + strconv.Itoa(offset-25)
}

// Sequence returns n names derived from base.
func Sequence(base string, n int) []string {
	if n <= 0 {
		return nil
	}
	p := Classify(base)
	names := make([]string, n)
	for i := range names {
		names[i] = p.Render(i)
	}
	return names
}

func isASCIILetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}
