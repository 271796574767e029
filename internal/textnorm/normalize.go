// Package textnorm cleans article text before it is embedded and stored.
package textnorm

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// tagExpr matches one closed tag. Inner '<' is excluded so "a < b <i>" only matches "<i>".
var tagExpr = regexp.MustCompile(`<[^<>]+>`)

// Normalize strips markup, collapses whitespace runs to single spaces and trims the result.
// A '<' that never closes is kept as text. Entities are decoded whether or not tags are present.
func Normalize(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return collapse(stripTags(text))
}

func stripTags(text string) string {
	if !strings.ContainsAny(text, "<&") {
		return text
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(escapeUnclosed(text)))
	if err != nil {
		return tagExpr.ReplaceAllString(text, " ")
	}
	// Block elements carry no separator in Text(), so pad them before extraction.
	doc.Find("p, div, br, li").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	return doc.Text()
}

// escapeUnclosed rewrites every '<' outside a closed tag as "&lt;" so the HTML
// tokenizer cannot swallow the rest of the text as a tag.
func escapeUnclosed(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, loc := range tagExpr.FindAllStringIndex(text, -1) {
		b.WriteString(strings.ReplaceAll(text[last:loc[0]], "<", "&lt;"))
		b.WriteString(text[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(strings.ReplaceAll(text[last:], "<", "&lt;"))
	return b.String()
}

func collapse(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
