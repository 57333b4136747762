// Package normalize cleans user supplied text before it reaches the domain.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/text/unicode/norm"
)

// htmlTagPattern detects common block and inline HTML tags.
var htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|strong|em|a|ul|ol|li|h[1-6]|blockquote)[\s>/]`)

// Text applies NFC normalization, drops null bytes and control characters,
// and collapses runs of whitespace to a single space.
func Text(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFC.String(sanitizeString(s))
	return strings.Join(strings.Fields(s), " ")
}

// FullName normalizes a reader's name for storage and lookup.
func FullName(s string) string {
	return Text(s)
}

// Phone keeps the digits of a phone number and a leading plus sign.
// "+1 (555) 010-2030" -> "+15550102030".
func Phone(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Description normalizes a book description. HTML input is converted to
// Markdown; plain text only has its line endings and outer whitespace cleaned.
func Description(s string) string {
	s = strings.TrimSpace(norm.NFC.String(sanitizeString(s)))
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")

	if !containsHTML(s) {
		return s
	}

	markdown, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(markdown)
}

// Authors normalizes author names, dropping empties and duplicates
// while keeping the original order.
func Authors(authors []string) []string {
	if len(authors) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(authors))
	out := make([]string, 0, len(authors))
	for _, a := range authors {
		a = Text(a)
		if a == "" {
			continue
		}
		key := strings.ToLower(a)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	return out
}

// FileName reduces an uploaded file name to a safe single path segment.
func FileName(s string) string {
	s = norm.NFC.String(sanitizeString(s))
	if i := strings.LastIndexAny(s, `/\`); i >= 0 {
		s = s[i+1:]
	}
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-', r == '_':
			return r
		case unicode.IsSpace(r):
			return '_'
		default:
			return -1
		}
	}, s)
	s = strings.Trim(s, ".")
	if s == "" {
		return "cover"
	}
	return s
}

func containsHTML(s string) bool {
	return htmlTagPattern.MatchString(strings.ToLower(s))
}

// sanitizeString removes null bytes and non-printing control characters
// other than newline and tab.
func sanitizeString(s string) string {
	return strings.Map(func(r rune) rune {
		if r == 0 || (unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r') {
			return -1
		}
		return r
	}, s)
}
