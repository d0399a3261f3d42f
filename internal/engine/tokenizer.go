package engine

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tokenizer names accepted in Options.Tokenizer.
const (
	// TokenizerUnicode splits on anything that is not a letter or a digit.
	TokenizerUnicode = "unicode"

	// TokenizerCode additionally splits camelCase, PascalCase and snake_case
	// identifiers.
	TokenizerCode = "code"
)

// codeTokenRegex matches alphanumeric sequences (including underscores for initial split).
var codeTokenRegex = regexp.MustCompile(`[\pL\pN_]+`)

// tokenSpan is a raw token with its byte offsets in the source text.
type tokenSpan struct {
	Term  string
	Start int
	End   int
}

// Tokenize lowercases and splits text according to opts, then drops stop words
// and tokens shorter than opts.MinTokenLength.
// Both backends run the same rules so artifacts agree on vocabulary.
func Tokenize(text string, opts Options) []string {
	stop := BuildStopWordMap(opts.StopWords)

	raw := splitSpans(text, opts.Tokenizer)
	tokens := make([]string, 0, len(raw))
	for _, span := range raw {
		if term, ok := keepTerm(span.Term, stop, opts.MinTokenLength); ok {
			tokens = append(tokens, term)
		}
	}
	return tokens
}

// keepTerm lowercases term and reports whether it survives filtering.
func keepTerm(term string, stop map[string]struct{}, minLen int) (string, bool) {
	lower := strings.ToLower(term)
	if utf8.RuneCountInString(lower) < minLen {
		return "", false
	}
	if _, isStop := stop[lower]; isStop {
		return "", false
	}
	return lower, true
}

// splitSpans splits text into raw, case-preserving tokens.
func splitSpans(text string, tokenizer string) []tokenSpan {
	if tokenizer == TokenizerCode {
		return codeSpans(text)
	}
	return unicodeSpans(text)
}

func unicodeSpans(text string) []tokenSpan {
	var spans []tokenSpan
	start := -1
	for i, r := range text {
		isWord := unicode.IsLetter(r) || unicode.IsNumber(r)
		switch {
		case isWord && start < 0:
			start = i
		case !isWord && start >= 0:
			spans = append(spans, tokenSpan{Term: text[start:i], Start: start, End: i})
			start = -1
		}
	}
	if start >= 0 {
		spans = append(spans, tokenSpan{Term: text[start:], Start: start, End: len(text)})
	}
	return spans
}

func codeSpans(text string) []tokenSpan {
	var spans []tokenSpan
	for _, loc := range codeTokenRegex.FindAllStringIndex(text, -1) {
		word := text[loc[0]:loc[1]]
		offset := 0
		for _, part := range SplitCodeToken(word) {
			idx := strings.Index(word[offset:], part)
			if idx < 0 {
				continue
			}
			start := loc[0] + offset + idx
			spans = append(spans, tokenSpan{Term: part, Start: start, End: start + len(part)})
			offset += idx + len(part)
		}
	}
	return spans
}

// TokenizeCode splits text with code-aware rules.
// It handles camelCase, PascalCase and snake_case. Tokens keep their case.
func TokenizeCode(text string) []string {
	var tokens []string

	// Split on whitespace and punctuation first
	words := codeTokenRegex.FindAllString(text, -1)

	for _, word := range words {
		tokens = append(tokens, SplitCodeToken(word)...)
	}

	return tokens
}

// SplitCodeToken splits camelCase and snake_case identifiers.
func SplitCodeToken(token string) []string {
	var result []string

	// Handle snake_case first
	if strings.Contains(token, "_") {
		parts := strings.Split(token, "_")
		for _, part := range parts {
			if part != "" {
				// Recursively handle camelCase in each part
				result = append(result, SplitCamelCase(part)...)
			}
		}
		return result
	}

	return SplitCamelCase(token)
}

// SplitCamelCase splits camelCase and PascalCase identifiers.
// Examples:
//   - "getUserById" -> ["get", "User", "By", "Id"]
//   - "HTTPHandler" -> ["HTTP", "Handler"]
//   - "parseHTTPRequest" -> ["parse", "HTTP", "Request"]
func SplitCamelCase(s string) []string {
	if s == "" {
		return []string{}
	}

	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevIsLower := unicode.IsLower(runes[i-1])
			nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])

			// Split if previous is lowercase OR next is lowercase (handles acronyms)
			if prevIsLower || nextIsLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}

	if current.Len() > 0 {
		result = append(result, current.String())
	}

	return result
}

// BuildStopWordMap converts a slice of stop words to a map for efficient lookup.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}
