package normalize

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StripHTML turns an HTML fragment (YouTube textDisplay, Graph captions) into plain text.
// Line breaks become newlines and entities are decoded; plain input is returned as is
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p,div,li").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})
	return strings.TrimSpace(doc.Text())
}
