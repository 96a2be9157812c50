package groq

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	// DefaultConfidence is used when the reply has no usable CONFIDENCE line.
	DefaultConfidence = 5
	// DefaultReasoning is used when the reply has no REASONING label at all.
	DefaultReasoning = "Unable to parse response"
)

// Field is a value extracted from a model reply. Found is false when the
// label was absent or did not have the expected shape.
type Field[T any] struct {
	Value T
	Found bool
}

// Or returns the value when found and fallback otherwise.
func (f Field[T]) Or(fallback T) T {
	if f.Found {
		return f.Value
	}
	return fallback
}

// ws matches the same whitespace class as a JavaScript \s.
const ws = `[\t\n\v\f\r \x{00a0}\x{1680}\x{2000}-\x{200a}\x{2028}\x{2029}\x{202f}\x{205f}\x{3000}\x{feff}]`

var (
	// Leftmost match wins. Whitespace after the label may span lines; the
	// value itself never does.
	confidencePattern = regexp.MustCompile(`CONFIDENCE:` + ws + `*([0-9]+)`)
	reasoningPattern  = regexp.MustCompile(`REASONING:` + ws + `*([^\n\r\x{2028}\x{2029}]+)`)
)

// ExtractConfidence returns the first digit run following "CONFIDENCE:". No
// range check is applied. Runs too large for an int count as not found.
func ExtractConfidence(text string) Field[int] {
	m := confidencePattern.FindStringSubmatch(text)
	if m == nil {
		return Field[int]{}
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return Field[int]{}
	}
	return Field[int]{Value: n, Found: true}
}

// ExtractReasoning returns the rest of the line after the first
// "REASONING:", trimmed. A label followed only by blanks yields an empty,
// found value.
func ExtractReasoning(text string) Field[string] {
	m := reasoningPattern.FindStringSubmatch(text)
	if m == nil {
		return Field[string]{}
	}
	return Field[string]{Value: strings.TrimSpace(m[1]), Found: true}
}

// ParseVerification extracts both fields independently and applies the
// defaults for whichever is missing.
func ParseVerification(text string) Verdict {
	return Verdict{
		Confidence: ExtractConfidence(text).Or(DefaultConfidence),
		Reasoning:  ExtractReasoning(text).Or(DefaultReasoning),
	}
}
