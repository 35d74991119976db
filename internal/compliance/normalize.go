package compliance

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var markupTag = regexp.MustCompile(`</?[a-zA-Z][a-zA-Z0-9]*(\s[^<>]*)?/?>`)

// blockSelector lists elements whose boundaries separate words in rendered text
const blockSelector = "p, div, li, br, h1, h2, h3, h4, h5, h6, tr, td, th, section, article, header, footer, blockquote"

// Normalize reduces HTML-bearing field values (email bodies, landing blurbs) to their
// visible text. Plain text is returned unchanged.
func Normalize(text string) string {
	if !markupTag.MatchString(text) {
		return text
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return text
	}

	doc.Find("script, style, noscript").Remove()
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		s.BeforeHtml(" ")
		s.AppendHtml(" ")
	})

	visible := strings.Join(strings.Fields(doc.Text()), " ")
	return visible
}
