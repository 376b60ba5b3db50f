package editor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Excerpt derives a plain-text preview from article HTML: tags stripped,
// whitespace collapsed, cut to limit runes. The ellipsis is appended only
// when something was actually cut off.
func Excerpt(htmlContent string, limit int) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	text := strings.Join(strings.Fields(doc.Text()), " ")
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
