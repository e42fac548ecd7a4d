package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/reckon/internal/common"
)

// ParseError keeps the raw model text when no tier could decode it.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v", common.ErrUnparsableResponse, e.Err)
}

func (e *ParseError) Unwrap() error { return common.ErrUnparsableResponse }

// Tier reports which decoding step succeeded.
type Tier int

const (
	TierDirect Tier = iota + 1
	TierFenced
	TierEmbedded
)

// DecodeLoose parses model output that may be wrapped in prose or code fences.
// Tiers run in order: the whole trimmed text, the text with fence markers
// removed, then the first embedded JSON object.
func DecodeLoose(raw string) (any, Tier, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, 0, &ParseError{Raw: raw, Err: errors.New("empty response")}
	}

	v, err := decode(text)
	if err == nil {
		return v, TierDirect, nil
	}
	lastErr := err

	if unfenced, ok := stripFences(text); ok {
		if v, err = decode(unfenced); err == nil {
			return v, TierFenced, nil
		}
		lastErr = err
	}

	for _, candidate := range embeddedObjects(text) {
		if v, err = decode(candidate); err == nil {
			return v, TierEmbedded, nil
		}
		lastErr = err
	}
	return nil, 0, &ParseError{Raw: raw, Err: lastErr}
}

func decode(s string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// stripFences returns the body of the first ``` block, or the text with
// stray fence markers removed when no complete block exists.
func stripFences(s string) (string, bool) {
	const fence = "```"
	open := strings.Index(s, fence)
	if open < 0 {
		return "", false
	}
	rest := s[open+len(fence):]
	// skip the info string ("json", "JSON", ...)
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsAny(rest[:nl], "{[") {
		rest = rest[nl+1:]
	} else {
		rest = strings.TrimPrefix(strings.TrimPrefix(rest, "json"), "JSON")
	}
	if end := strings.Index(rest, fence); end >= 0 {
		return strings.TrimSpace(rest[:end]), true
	}
	return strings.TrimSpace(strings.ReplaceAll(rest, fence, "")), true
}

// embeddedObjects returns candidate object spans: the balanced object
// starting at the first '{' (string aware), then the first '{' to last '}' span.
func embeddedObjects(s string) []string {
	first := strings.IndexByte(s, '{')
	last := strings.LastIndexByte(s, '}')
	if first < 0 || last <= first {
		return nil
	}
	var out []string
	if end := balancedEnd(s, first); end > 0 {
		out = append(out, s[first:end])
	}
	if span := s[first : last+1]; len(out) == 0 || out[0] != span {
		out = append(out, span)
	}
	return out
}

// balancedEnd returns the index just past the '}' closing the object at
// start, or -1. Braces inside string literals are ignored.
func balancedEnd(s string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}
