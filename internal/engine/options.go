package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Options tunes tokenization. It is decoded from the opaque engine_options
// map of an index configuration.
type Options struct {
	// Tokenizer is "unicode" (default) or "code".
	Tokenizer string `json:"tokenizer"`

	// StopWords are dropped after lowercasing.
	StopWords []string `json:"stop_words"`

	// MinTokenLength drops shorter tokens (default: 1).
	MinTokenLength int `json:"min_token_length"`
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		Tokenizer:      TokenizerUnicode,
		StopWords:      []string{},
		MinTokenLength: 1,
	}
}

// ParseOptions decodes raw engine options. Unknown keys are rejected.
func ParseOptions(raw map[string]any) (Options, error) {
	opts := DefaultOptions()

	for key, val := range raw {
		switch key {
		case "tokenizer":
			s, ok := val.(string)
			if !ok {
				return Options{}, fmt.Errorf("engine option tokenizer must be a string, got %T", val)
			}
			opts.Tokenizer = strings.ToLower(s)
		case "stop_words":
			words, err := toStrings(val)
			if err != nil {
				return Options{}, fmt.Errorf("engine option stop_words: %w", err)
			}
			opts.StopWords = words
		case "min_token_length":
			n, err := toInt(val)
			if err != nil {
				return Options{}, fmt.Errorf("engine option min_token_length: %w", err)
			}
			opts.MinTokenLength = n
		default:
			return Options{}, fmt.Errorf("unknown engine option %q", key)
		}
	}

	return opts.normalize()
}

// normalize validates opts and puts them in canonical form so that the
// exported configuration segment does not depend on input order.
func (o Options) normalize() (Options, error) {
	if o.Tokenizer == "" {
		o.Tokenizer = TokenizerUnicode
	}
	if o.Tokenizer != TokenizerUnicode && o.Tokenizer != TokenizerCode {
		return Options{}, fmt.Errorf("tokenizer must be %q or %q, got %q", TokenizerUnicode, TokenizerCode, o.Tokenizer)
	}
	if o.MinTokenLength < 1 {
		o.MinTokenLength = 1
	}

	seen := make(map[string]struct{}, len(o.StopWords))
	words := make([]string, 0, len(o.StopWords))
	for _, w := range o.StopWords {
		lw := strings.ToLower(strings.TrimSpace(w))
		if lw == "" {
			continue
		}
		if _, dup := seen[lw]; dup {
			continue
		}
		seen[lw] = struct{}{}
		words = append(words, lw)
	}
	sort.Strings(words)
	o.StopWords = words

	return o, nil
}

// configSegment renders the "cfg" segment.
func configSegment(backend string, opts Options) (string, error) {
	data, err := json.Marshal(struct {
		Backend string  `json:"backend"`
		Options Options `json:"options"`
	}{backend, opts})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func toStrings(val any) ([]string, error) {
	switch v := val.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected strings, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list of strings, got %T", val)
	}
}

func toInt(val any) (int, error) {
	switch v := val.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("expected an integer, got %v", v)
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("expected an integer, got %T", val)
	}
}
