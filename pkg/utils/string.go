// Package utils provides common utility functions.
package utils

import (
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Ellipsis is appended to text cut by Sanitize.
const Ellipsis = "…"

var (
	htmlTagPattern     = regexp.MustCompile(`<[^>]*>`)
	controlCharPattern = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// Sanitize turns untrusted external text into a string that is safe to embed
// in HTML or a Markdown table cell, bounded to maxLength runes plus an ellipsis.
//
// The steps run in a fixed order: tags are stripped before escaping so that
// escaped angle brackets cannot be mistaken for tags, and escaping happens
// before the pipe and backtick substitutions so their entities stay intact.
func Sanitize(text string, maxLength int) string {
	if text == "" {
		return ""
	}

	t := htmlTagPattern.ReplaceAllString(text, "")
	t = html.EscapeString(t)
	t = strings.ReplaceAll(t, "|", "&#124;")
	t = strings.ReplaceAll(t, "`", "&#96;")
	t = controlCharPattern.ReplaceAllString(t, "")

	if maxLength < 0 {
		maxLength = 0
	}

	if utf8.RuneCountInString(t) > maxLength {
		t = strings.TrimRightFunc(TruncateRunes(t, maxLength), unicode.IsSpace) + Ellipsis
	}

	return t
}

// TruncateRunes cuts str to at most maxRunes runes without splitting a UTF-8 sequence.
func TruncateRunes(str string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}

	count := 0
	for i := range str {
		if count == maxRunes {
			return str[:i]
		}

		count++
	}

	return str
}

// CollapseNewlines replaces line breaks with spaces so text fits in a single table cell.
func CollapseNewlines(str string) string {
	str = strings.ReplaceAll(str, "\r\n", " ")
	str = strings.ReplaceAll(str, "\n", " ")

	return strings.TrimSpace(strings.ReplaceAll(str, "\r", " "))
}

// NormalizeWhitespace replaces runs of whitespace with a single space.
func NormalizeWhitespace(str string) string {
	return strings.Join(strings.Fields(str), " ")
}
