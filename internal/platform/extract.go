package platform

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	hashInputRunes = 200
	hashHexLen     = 16
	maxTitleRunes  = 120
)

// Strategy reads one candidate value from a payload. An empty result means "no match, try
// the next strategy".
type Strategy func(Payload) string

// Field reads the string at path.
func Field(path ...string) Strategy {
	return func(p Payload) string { return strings.TrimSpace(p.String(path...)) }
}

// FirstOf tries strategies in order and returns the first non-empty result.
func FirstOf(strategies ...Strategy) Strategy {
	return func(p Payload) string {
		for _, s := range strategies {
			if v := s(p); v != "" {
				return v
			}
		}
		return ""
	}
}

// LastSegment keeps the part after the final ':' of a URN style identifier.
func LastSegment(s Strategy) Strategy {
	return func(p Payload) string {
		v := s(p)
		if i := strings.LastIndexByte(v, ':'); i >= 0 {
			return v[i+1:]
		}
		return v
	}
}

// Const always yields v. Useful as the last link of a chain.
func Const(v string) Strategy {
	return func(Payload) string { return v }
}

// Extract runs the chain built from strategies against p.
func Extract(p Payload, strategies ...Strategy) string {
	return FirstOf(strategies...)(p)
}

// ExternalID returns the first native identifier found by ids, falling back to the content
// hash. The result is never empty.
func ExternalID(p Payload, content string, ids ...Strategy) string {
	if id := Extract(p, ids...); id != "" {
		return id
	}
	return ContentHash(content)
}

// ContentHash is a stable identifier derived from the first 200 runes of content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(truncateRunes(content, hashInputRunes)))
	return hex.EncodeToString(sum[:])[:hashHexLen]
}

// TitleOf returns the first line of content, capped at 120 runes.
func TitleOf(content string) string {
	content = strings.TrimSpace(content)
	if i := strings.IndexByte(content, '\n'); i >= 0 {
		content = content[:i]
	}
	return strings.TrimSpace(truncateRunes(content, maxTitleRunes))
}

// Timestamp normalizes an upstream timestamp. Numbers are epoch milliseconds; RFC 3339 and
// Ruby style dates (as used by the Twitter API) become RFC 3339 in UTC; any other string is
// passed through unchanged.
func Timestamp(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case float64:
		if t == 0 {
			return ""
		}
		return time.UnixMilli(int64(t)).UTC().Format(time.RFC3339)
	case int64:
		if t == 0 {
			return ""
		}
		return time.UnixMilli(t).UTC().Format(time.RFC3339)
	case string:
		for _, layout := range []string{time.RFC3339, time.RubyDate} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts.UTC().Format(time.RFC3339)
			}
		}
		return t
	}
	return ""
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
