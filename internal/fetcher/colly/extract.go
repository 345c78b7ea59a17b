package collyfetcher

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/JakeFAU/page-analyzer/internal/analyzer"
)

// ExtractSEO pulls the first <h1>, the <title> and the meta description out of
// an HTML body. Parsing is best-effort: malformed markup and missing elements
// yield empty strings, never an error.
func ExtractSEO(body []byte, contentType string) analyzer.SEO {
	if len(body) == 0 {
		return analyzer.SEO{}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(toUTF8(body, contentType)))
	if err != nil {
		return analyzer.SEO{}
	}
	return analyzer.SEO{
		H1:          collapse(doc.Find("h1").First().Text()),
		Title:       collapse(doc.Find("title").First().Text()),
		Description: collapse(metaDescription(doc)),
	}
}

func metaDescription(doc *goquery.Document) string {
	var content string
	doc.Find("meta[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.EqualFold(strings.TrimSpace(s.AttrOr("name", "")), "description") {
			return true
		}
		content = s.AttrOr("content", "")
		return false
	})
	return content
}

func toUTF8(body []byte, contentType string) []byte {
	enc, _, _ := charset.DetermineEncoding(body, contentType)
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return decoded
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
