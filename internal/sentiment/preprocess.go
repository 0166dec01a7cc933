package sentiment

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/russross/blackfriday/v2"
	"golang.org/x/text/unicode/norm"
)

var (
	markdownLinkPattern = regexp.MustCompile(`\[(.*?)\]\((https?:\/\/[^\s\)]+)\)`)
	urlPattern          = regexp.MustCompile(`https?://\S+|www\.\S+`)
	htmlTagPattern      = regexp.MustCompile(`<[^>]*>`)
)

// RemoveLinks keeps the text of markdown links and drops bare URLs.
func RemoveLinks(input string) string {
	input = markdownLinkPattern.ReplaceAllString(input, "$1")
	return urlPattern.ReplaceAllString(input, "")
}

// NormalizeText applies NFC and drops control characters other than
// newlines and tabs. NFC keeps Hangul compatibility jamo (ㅋ, ㅠ) intact.
func NormalizeText(text string) string {
	normed := norm.NFC.String(text)
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, normed)
}

// PlainText reduces markdown to plain sentence text. It is an opt-in
// display/CLI helper; stored reviews are scored on their raw content.
// Non-blank input never comes back blank: when stripping leaves nothing,
// the normalized input is returned with its whitespace collapsed.
func PlainText(input string) string {
	normalized := NormalizeText(input)

	rendered := blackfriday.Run([]byte(RemoveLinks(normalized)), blackfriday.WithNoExtensions())
	text := htmlTagPattern.ReplaceAllString(string(rendered), " ")
	text = html.UnescapeString(text)

	if plain := strings.Join(strings.Fields(RemoveLinks(text)), " "); plain != "" {
		return plain
	}
	return strings.Join(strings.Fields(normalized), " ")
}
