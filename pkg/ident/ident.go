// Package ident canonicalizes SQL identifiers.
//
// Identifiers arrive from the parser with their delimiters intact:
// [Order Details], "Customer", `db`.tbl. Normalize produces the display
// form (delimiters removed, case kept) and the lookup key (case-folded).
package ident

import (
	"strings"

	"golang.org/x/text/cases"
)

// delimiters pairs each opening identifier delimiter with its closer.
var delimiters = map[byte]byte{
	'[': ']',
	'"': '"',
	'`': '`',
}

// Normalize returns the display and key forms of a raw, possibly
// multipart identifier. Dots inside a quoted part stay in that part.
// Empty or malformed input (an unterminated delimiter) yields "", "".
func Normalize(raw string) (display, key string) {
	parts, ok := split(raw)
	if !ok || len(parts) == 0 {
		return "", ""
	}
	for i, p := range parts {
		u, ok := Unquote(p)
		if !ok || u == "" {
			return "", ""
		}
		parts[i] = u
	}
	display = strings.Join(parts, ".")
	return display, Key(display)
}

// Part normalizes a single identifier part without splitting on dots.
func Part(raw string) (display, key string) {
	u, ok := Unquote(strings.TrimSpace(raw))
	if !ok || u == "" {
		return "", ""
	}
	return u, Key(u)
}

// Key case-folds an already unquoted identifier.
func Key(s string) string {
	return cases.Fold().String(s)
}

// Split splits a raw multipart identifier on dots that are outside
// delimiters. Parts keep their delimiters. Malformed input returns nil.
func Split(raw string) []string {
	parts, ok := split(raw)
	if !ok {
		return nil
	}
	return parts
}

func split(raw string) ([]string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	var parts []string
	var cur strings.Builder
	var closing byte
	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		if closing != 0 {
			cur.WriteByte(ch)
			if ch == closing {
				// doubled closer is an escaped delimiter
				if i+1 < len(raw) && raw[i+1] == closing {
					cur.WriteByte(closing)
					i++
					continue
				}
				closing = 0
			}
			continue
		}
		if c, ok := delimiters[ch]; ok {
			closing = c
			cur.WriteByte(ch)
			continue
		}
		if ch == '.' {
			parts = append(parts, strings.TrimSpace(cur.String()))
			cur.Reset()
			continue
		}
		cur.WriteByte(ch)
	}
	if closing != 0 {
		return nil, false
	}
	parts = append(parts, strings.TrimSpace(cur.String()))
	return parts, true
}

// Unquote removes one enclosing delimiter pair from part and collapses
// doubled closers. An unquoted part is returned unchanged. ok is false
// when part opens a delimiter it never closes.
func Unquote(part string) (string, bool) {
	if part == "" {
		return "", true
	}
	closing, quoted := delimiters[part[0]]
	if !quoted {
		return part, true
	}
	if len(part) < 2 || part[len(part)-1] != closing {
		return "", false
	}
	inner := part[1 : len(part)-1]
	doubled := string([]byte{closing, closing})
	return strings.ReplaceAll(inner, doubled, string(closing)), true
}

// StripDelimiters removes every delimiter character from s, wherever it
// appears. It is the lenient retry used when a lookup on the normalized
// form fails.
func StripDelimiters(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', '"', '`':
			return -1
		}
		return r
	}, s)
}

// IsQuoted reports whether the raw part is wrapped in delimiters.
func IsQuoted(part string) bool {
	if part == "" {
		return false
	}
	_, ok := delimiters[part[0]]
	return ok
}
